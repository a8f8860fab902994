package http

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/hitwire/packages/logger"
)

// Client is what script engines call to issue requests. Both transports
// implement it.
type Client interface {
	Invoke(ctx context.Context, req *Request) (*Response, error)
	Config() Config
	SetConfig(cfg Config) error
}

// Recorder receives the latency of every call.
type Recorder interface {
	Record(d time.Duration, err error)
}

// Observer receives one event per call, for metrics.
type Observer interface {
	ObserveCall(transport, method string, status int, d time.Duration, retried bool, err error)
}

type clientOptions struct {
	log      *slog.Logger
	recorder Recorder
	observer Observer
	limiter  *rate.Limiter
}

type ClientOption func(*clientOptions)

// WithLogger overrides the package logger for one client.
func WithLogger(l *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.log = l
	}
}

// WithRecorder records the latency of every call, e.g. into a stats.Recorder.
func WithRecorder(r Recorder) ClientOption {
	return func(o *clientOptions) {
		o.recorder = r
	}
}

// WithMetrics reports every call to an Observer.
func WithMetrics(obs Observer) ClientOption {
	return func(o *clientOptions) {
		o.observer = obs
	}
}

// WithRateLimit caps outbound calls per second. A burst below 1 is raised to 1.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(o *clientOptions) {
		if rps <= 0 {
			o.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func newClientOptions(opts []ClientOption) clientOptions {
	o := clientOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o *clientOptions) logger() *slog.Logger {
	if o.log != nil {
		return o.log
	}
	return logger.Log
}

func (o *clientOptions) wait(ctx context.Context) error {
	if o.limiter == nil {
		return nil
	}
	return o.limiter.Wait(ctx)
}

func (o *clientOptions) observe(transport string, req *Request, resp *Response, d time.Duration, retried bool, err error) {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if o.recorder != nil {
		o.recorder.Record(d, err)
	}
	if o.observer != nil {
		o.observer.ObserveCall(transport, req.Method, status, d, retried, err)
	}
	log := o.logger()
	if err != nil {
		log.Warn("http_call_failed", "transport", transport, "method", req.Method, "url", req.URL, "elapsed_ms", d.Milliseconds(), "error", err)
		return
	}
	log.Debug("http_call", "transport", transport, "method", req.Method, "url", req.URL, "status", status, "elapsed_ms", d.Milliseconds())
}

// wireOptions are the Transfer-Encoding directives moved off the headers.
type wireOptions struct {
	chunked bool
	gzip    bool
}

// prepare copies req, fills in default headers and turns a Transfer-Encoding
// header into transport-level chunking and gzip compression.
func prepare(req *Request, cfg Config) (*Request, wireOptions, error) {
	out := req.clone()
	out.StartTime, out.EndTime = time.Time{}, time.Time{}
	for k, v := range cfg.DefaultHeaders {
		if !out.Header.Has(k) {
			out.Header.Set(k, v)
		}
	}

	var wo wireOptions
	for _, v := range out.Header.Values("Transfer-Encoding") {
		for _, token := range strings.Split(v, ",") {
			switch strings.ToLower(strings.TrimSpace(token)) {
			case "chunked":
				wo.chunked = true
			case "gzip":
				wo.gzip = true
			}
		}
	}
	out.Header.Del("Transfer-Encoding")

	if wo.gzip && len(out.Body) > 0 {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(out.Body); err != nil {
			return nil, wo, fmt.Errorf("%w: gzip: %v", ErrEncoding, err)
		}
		if err := zw.Close(); err != nil {
			return nil, wo, fmt.Errorf("%w: gzip: %v", ErrEncoding, err)
		}
		out.Body = buf.Bytes()
		out.Header.Set("Content-Encoding", "gzip")
	}
	return out, wo, nil
}

type sendFunc func(ctx context.Context, req *Request) (*Response, error)

// authorize applies the configured auth mode around send. Digest needs a
// challenge, so it may send twice.
func authorize(ctx context.Context, cfg Config, req *Request, send sendFunc) (*Response, error) {
	switch cfg.authMode() {
	case AuthBasic:
		if !req.Header.Has("Authorization") {
			creds := cfg.Auth.Username + ":" + cfg.Auth.Password
			req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(creds)))
		}
		return send(ctx, req)
	case AuthAWS:
		authHeader, err := SignAWSRequest(req, cfg.Auth, time.Now())
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", authHeader)
		return send(ctx, req)
	case AuthDigest:
		return doWithDigestAuth(ctx, cfg.Auth, req, send)
	default:
		return send(ctx, req)
	}
}

// withRetry sends once and retries a single time when the peer closed the
// connection without responding.
func withRetry(ctx context.Context, log *slog.Logger, req *Request, send sendFunc) (*Response, bool, error) {
	resp, err := send(ctx, req)
	if err == nil || !isStaleConnection(err) || ctx.Err() != nil {
		return resp, false, err
	}
	log.Debug("http_call_retry", "method", req.Method, "url", req.URL, "error", err)
	resp, err = send(ctx, req)
	return resp, true, err
}
