package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitwire/packages/capture"
	"github.com/abdul-hamid-achik/hitwire/packages/cookie"
	"github.com/abdul-hamid-achik/hitwire/packages/core/config"
	hhttp "github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/output"
	"github.com/abdul-hamid-achik/hitwire/packages/resource"
	"github.com/abdul-hamid-achik/hitwire/packages/stats"
)

var (
	reqHeaderFlags []string
	reqDataFlag    string
	reqFormFlags   []string
	reqFileFlags   []string
	reqCookieFlags []string
	reqAsyncFlag   bool
	reqJSONFlag    bool
	reqVerboseFlag bool
	reqFailFlag    bool
	reqRepeatFlag  int
	reqTimeoutFlag string
	reqInsecure    bool
	reqProxyFlag   string
	reqCaptureFlag []string
)

var requestCmd = &cobra.Command{
	Use:   "request <METHOD> <URL>",
	Short: "Send a single HTTP request",
	Long: `Send an HTTP request through the pooled client, or through the
event-loop client with --async, and print the response.

Examples:
  hitwire request GET https://api.example.com/users/1
  hitwire request POST http://localhost:3000/users -d '{"name":"ann"}'
  hitwire request POST http://localhost:3000/login --form user=ann --form pass=secret
  hitwire request POST http://localhost:3000/upload --file avatar=@me.png
  hitwire request GET http://localhost:3000/whoami --cookie hitwire.sid=abc
  hitwire request GET http://localhost:3000/slow --async --repeat 50`,
	Args: cobra.ExactArgs(2),
	RunE: requestCommand,
}

func init() {
	f := requestCmd.Flags()
	f.StringArrayVarP(&reqHeaderFlags, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	f.StringVarP(&reqDataFlag, "data", "d", "", "Request body, or @file to read it from a file")
	f.StringArrayVar(&reqFormFlags, "form", nil, "Form field as name=value (repeatable)")
	f.StringArrayVar(&reqFileFlags, "file", nil, "Multipart file as name=@path (repeatable)")
	f.StringArrayVar(&reqCookieFlags, "cookie", nil, "Cookie as name=value (repeatable)")
	f.BoolVar(&reqAsyncFlag, "async", false, "Use the event-loop client")
	f.BoolVar(&reqJSONFlag, "json", false, "Print the response as JSON")
	f.BoolVarP(&reqVerboseFlag, "verbose", "v", false, "Print the request as sent")
	f.BoolVar(&reqFailFlag, "fail", false, "Exit with an error on 4xx and 5xx responses")
	f.IntVarP(&reqRepeatFlag, "repeat", "n", 1, "Send the request n times and print latency stats")
	f.StringVar(&reqTimeoutFlag, "timeout", "", "Read timeout (e.g., 5s)")
	f.BoolVarP(&reqInsecure, "insecure", "k", false, "Skip TLS certificate verification")
	f.StringVar(&reqProxyFlag, "proxy", "", "Proxy URL")
	f.StringArrayVar(&reqCaptureFlag, "capture", nil, "Print a response value as name=source.path, e.g. id=body.user.id (repeatable)")
}

// closingClient is implemented by both transports.
type closingClient interface {
	hhttp.Client
	Close() error
}

func requestCommand(cmd *cobra.Command, args []string) error {
	if reqRepeatFlag < 1 {
		return usageErrorf("--repeat must be at least 1")
	}

	cfg, err := requestSettings(appConfig)
	if err != nil {
		return err
	}
	clientCfg := cfg.ToClientConfig()

	var captures []*capture.Capture
	for _, expr := range reqCaptureFlag {
		c, err := capture.Parse(expr)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		captures = append(captures, c)
	}

	b, err := buildRequest(clientCfg.Charset, args[0], args[1])
	if err != nil {
		return err
	}
	req, err := b.Build()
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	rec := stats.NewRecorder()
	opts := append(cfg.ClientOptions(), hhttp.WithRecorder(rec))
	var client closingClient
	if reqAsyncFlag {
		client, err = hhttp.NewAsyncClient(clientCfg, opts...)
	} else {
		client, err = hhttp.NewPooledClient(clientCfg, opts...)
	}
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer client.Close()

	resp, err := send(cmd.Context(), client, req, reqRepeatFlag)
	if err != nil {
		return withExitCode(ExitNetworkError, err)
	}

	captured := capture.ExtractAll(resp, captures)
	out := cmd.OutOrStdout()
	if reqJSONFlag {
		if err := output.NewJSONFormatter(output.WithJSONWriter(out)).FormatResponse(resp, captured); err != nil {
			return err
		}
	} else {
		f := output.NewConsoleFormatter(output.WithWriter(out), output.WithVerbose(reqVerboseFlag))
		f.FormatResponse(resp)
		f.FormatCaptures(captured)
		if reqRepeatFlag > 1 {
			f.FormatStats(rec.Summary())
		}
	}

	if reqFailFlag && resp.StatusCode >= 400 {
		return withExitCode(ExitRequestFailure, fmt.Errorf("request failed with status %d", resp.StatusCode))
	}
	return nil
}

// send issues req n times and returns the last response. The async client
// has every call in flight at once.
func send(ctx context.Context, client closingClient, req *hhttp.Request, n int) (*hhttp.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if async, ok := client.(*hhttp.AsyncClient); ok {
		futures := make([]*hhttp.Future, n)
		for i := range futures {
			futures[i] = async.Go(ctx, req)
		}
		var (
			last    *hhttp.Response
			lastErr error
		)
		for _, f := range futures {
			resp, err := f.Await(ctx)
			if err != nil {
				lastErr = err
				continue
			}
			last = resp
		}
		if last == nil {
			return nil, lastErr
		}
		return last, nil
	}

	var last *hhttp.Response
	for i := 0; i < n; i++ {
		resp, err := client.Invoke(ctx, req)
		if err != nil {
			return nil, err
		}
		last = resp
	}
	return last, nil
}

func requestSettings(cfg *config.Config) (*config.Config, error) {
	override := &config.Config{Proxy: reqProxyFlag}
	if reqTimeoutFlag != "" {
		d, err := time.ParseDuration(reqTimeoutFlag)
		if err != nil {
			return nil, usageErrorf("invalid timeout %q: %v", reqTimeoutFlag, err)
		}
		override.Timeout = int(d / time.Millisecond)
	}
	if reqInsecure {
		override.ValidateSSL = config.BoolPtr(false)
	}
	return cfg.Merge(override), nil
}

// buildRequest stages the flags on a request builder.
func buildRequest(charset, method, url string) (*hhttp.RequestBuilder, error) {
	if !hhttp.IsValidMethod(strings.ToUpper(method)) {
		return nil, usageErrorf("invalid method: %q", method)
	}
	if err := hhttp.ValidateURL(url); err != nil {
		return nil, withExitCode(ExitUsageError, err)
	}
	b := hhttp.NewRequestBuilder(charset).URL(url).Method(method)

	for _, h := range reqHeaderFlags {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, usageErrorf("invalid header %q, want 'Name: value'", h)
		}
		b.Header(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	for _, c := range reqCookieFlags {
		name, value, ok := strings.Cut(c, "=")
		if !ok || name == "" {
			return nil, usageErrorf("invalid cookie %q, want name=value", c)
		}
		b.Cookie(cookie.Cookie{Name: name, Value: value})
	}

	for _, field := range reqFormFlags {
		name, value, ok := strings.Cut(field, "=")
		if !ok || name == "" {
			return nil, usageErrorf("invalid form field %q, want name=value", field)
		}
		b.FormField(name, value)
	}

	for _, file := range reqFileFlags {
		name, path, ok := strings.Cut(file, "=@")
		if !ok || name == "" || path == "" {
			return nil, usageErrorf("invalid file %q, want name=@path", file)
		}
		b.MultiPart(name, hhttp.FileValue{Path: path})
	}

	if reqDataFlag != "" {
		if path, ok := strings.CutPrefix(reqDataFlag, "@"); ok {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, withExitCode(ExitParseError, fmt.Errorf("cannot read body: %w", err))
			}
			if b.HeaderValue("Content-Type") == "" {
				if kind, ok := resource.FromFileExtension(path); ok {
					b.Header("Content-Type", kind.ContentType())
				}
			}
			b.Body(data)
		} else {
			b.Body(reqDataFlag)
		}
	}
	return b, nil
}
