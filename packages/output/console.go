package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	hhttp "github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/stats"
)

// ConsoleFormatter prints responses for humans.
type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

// WithVerbose also prints the request as sent.
func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResponse(resp *hhttp.Response) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if f.verbose && resp.Request != nil {
		req := resp.Request
		fmt.Fprintf(f.writer, "%s %s %s\n", dim(">"), bold(req.Method), req.URL)
		for _, h := range req.Header.Fields() {
			for _, v := range h.Values {
				fmt.Fprintf(f.writer, "%s %s: %s\n", dim(">"), h.Name, v)
			}
		}
		if body := requestBody(req); body != "" {
			fmt.Fprintf(f.writer, "%s\n%s\n", dim(">"), body)
		}
		fmt.Fprintln(f.writer)
	}

	fmt.Fprintf(f.writer, "%s %s\n", statusColor(resp.StatusCode)(fmt.Sprintf("%d %s", resp.StatusCode, resp.Status)),
		cyan(fmt.Sprintf("(%dms, %s)", resp.DurationMs(), humanize.Bytes(uint64(len(resp.Body))))))
	for _, h := range resp.Header.Fields() {
		for _, v := range h.Values {
			fmt.Fprintf(f.writer, "%s: %s\n", bold(h.Name), v)
		}
	}

	if len(resp.Body) > 0 {
		fmt.Fprintln(f.writer)
		fmt.Fprintln(f.writer, prettyBody(resp))
	}
}

// FormatCaptures prints captured values sorted by name.
func (f *ConsoleFormatter) FormatCaptures(captures map[string]any) {
	if len(captures) == 0 {
		return
	}
	bold := color.New(color.Bold).SprintFunc()
	names := make([]string, 0, len(captures))
	for name := range captures {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(f.writer, "\n%s\n", bold("Captures:"))
	for _, name := range names {
		fmt.Fprintf(f.writer, "  %s = %v\n", name, captures[name])
	}
}

// FormatStats prints the latency summary of a client.
func (f *ConsoleFormatter) FormatStats(s stats.Summary) {
	bold := color.New(color.Bold).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	errors := humanize.Comma(s.Errors)
	if s.Errors > 0 {
		errors = red(errors)
	}
	fmt.Fprintf(f.writer, "\n%s %s total, %s errors\n", bold("Requests:"), humanize.Comma(s.Total), errors)
	fmt.Fprintf(f.writer, "%s min %s | p50 %s | p95 %s | p99 %s | max %s\n", bold("Latency: "),
		s.Min, s.P50, s.P95, s.P99, s.Max)
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitwire"), version)
}

func statusColor(code int) func(a ...any) string {
	switch {
	case code >= 500:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case code >= 400:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	case code >= 300:
		return color.New(color.FgCyan, color.Bold).SprintFunc()
	default:
		return color.New(color.FgGreen, color.Bold).SprintFunc()
	}
}

func requestBody(req *hhttp.Request) string {
	if req.DisplayBody != "" {
		return req.DisplayBody
	}
	return string(req.Body)
}

// prettyBody indents JSON bodies and prints the rest as is.
func prettyBody(resp *hhttp.Response) string {
	if resp.IsJSON() {
		var buf bytes.Buffer
		if err := json.Indent(&buf, resp.Body, "", "  "); err == nil {
			return buf.String()
		}
	}
	return resp.BodyString()
}
