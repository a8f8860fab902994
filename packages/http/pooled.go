package http

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

const transportPooled = "pooled"

// PooledClient is the synchronous transport built on net/http. Connections
// are never reused between calls; the dialer is bounded by a connection pool
// of Config.MaxConnections slots.
type PooledClient struct {
	mu        sync.RWMutex
	cfg       Config
	opts      clientOptions
	transport *http.Transport
	pool      *connPool
	closed    bool
}

var _ Client = (*PooledClient)(nil)

func NewPooledClient(cfg Config, opts ...ClientOption) (*PooledClient, error) {
	c := &PooledClient{opts: newClientOptions(opts)}
	if err := c.SetConfig(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func buildTransport(cfg Config) (*http.Transport, *connPool, error) {
	tlsCfg, err := cfg.TLS.build()
	if err != nil {
		return nil, nil, err
	}
	routes, err := newRoutePlanner(cfg.Proxy)
	if err != nil {
		return nil, nil, err
	}
	local, err := localTCPAddr(cfg.LocalAddress)
	if err != nil {
		return nil, nil, err
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	if local != nil {
		dialer.LocalAddr = local
	}
	pool := newConnPool(cfg.MaxConnections)

	transport := &http.Transport{
		Proxy:               routes.proxyFunc(),
		DialContext:         pool.dial(dialer.DialContext),
		TLSClientConfig:     tlsCfg,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		DisableKeepAlives:   true,
		MaxConnsPerHost:     cfg.MaxConnections,
	}
	return transport, pool, nil
}

// Config returns the active configuration.
func (c *PooledClient) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// SetConfig validates cfg and swaps transport, route planner and pool in
// one step. In-flight calls finish on the previous transport.
func (c *PooledClient) SetConfig(cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	transport, pool, err := buildTransport(cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.transport
	c.cfg = cfg
	c.transport = transport
	c.pool = pool
	c.mu.Unlock()

	if old != nil {
		old.CloseIdleConnections()
	}
	return nil
}

// InUse returns the number of connections currently open.
func (c *PooledClient) InUse() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pool.InUse()
}

func (c *PooledClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.transport.CloseIdleConnections()
	return nil
}

// Invoke sends req and returns the response with the body fully read. Every
// failure is returned as a *TransportError.
func (c *PooledClient) Invoke(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	cfg, transport, closed := c.cfg, c.transport, c.closed
	c.mu.RUnlock()
	if closed {
		return nil, ErrClientClosed
	}

	start := time.Now()
	if err := c.opts.wait(ctx); err != nil {
		return nil, &TransportError{URL: req.URL, Elapsed: time.Since(start), Err: err}
	}

	prepared, wo, err := prepare(req, cfg)
	if err != nil {
		return nil, err
	}

	jar := newCallJar()
	defer jar.clear()
	hc := &http.Client{
		Transport: transport,
		Jar:       jar,
		Timeout:   cfg.ReadTimeout,
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if !cfg.FollowRedirects || len(via) >= cfg.MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	var retried bool
	roundTrip := c.roundTrip(hc, wo)
	send := func(ctx context.Context, r *Request) (*Response, error) {
		resp, again, err := withRetry(ctx, c.opts.logger(), r, roundTrip)
		retried = retried || again
		return resp, err
	}

	resp, err := authorize(ctx, cfg, prepared, send)
	elapsed := time.Since(start)
	if err != nil {
		terr := &TransportError{URL: req.URL, Elapsed: elapsed, Retried: retried, Err: err}
		c.opts.observe(transportPooled, req, nil, elapsed, retried, terr)
		return nil, terr
	}

	reconcileCookies(resp.Header, jar.snapshot())
	resp.Duration = elapsed
	c.opts.observe(transportPooled, req, resp, elapsed, retried, nil)
	return resp, nil
}

type traceTimes struct {
	mu    sync.Mutex
	start time.Time
	end   time.Time
}

func (t *traceTimes) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		WroteHeaders: func() {
			t.mu.Lock()
			if t.start.IsZero() {
				t.start = time.Now()
			}
			t.mu.Unlock()
		},
		GotFirstResponseByte: func() {
			t.mu.Lock()
			t.end = time.Now()
			t.mu.Unlock()
		},
	}
}

func (t *traceTimes) times() (time.Time, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start, t.end
}

func (c *PooledClient) roundTrip(hc *http.Client, wo wireOptions) sendFunc {
	return func(ctx context.Context, r *Request) (*Response, error) {
		tt := &traceTimes{}
		ctx = httptrace.WithClientTrace(ctx, tt.clientTrace())

		var body io.Reader
		if len(r.Body) > 0 {
			body = bytes.NewReader(r.Body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
		if err != nil {
			return nil, err
		}
		for _, f := range r.Header.Fields() {
			if http.CanonicalHeaderKey(f.Name) == "Host" {
				if len(f.Values) > 0 {
					httpReq.Host = f.Values[0]
				}
				continue
			}
			for _, v := range f.Values {
				httpReq.Header.Add(f.Name, v)
			}
		}
		if wo.chunked && body != nil {
			httpReq.ContentLength = -1
		}

		httpResp, err := hc.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()

		respBody, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return nil, &bodyReadError{err: err}
		}

		sent := r.clone()
		sent.StartTime, sent.EndTime = tt.times()
		return &Response{
			StatusCode: httpResp.StatusCode,
			Status:     httpResp.Status,
			Header:     HeaderFromHTTP(httpResp.Header),
			Body:       respBody,
			Request:    sent,
		}, nil
	}
}
