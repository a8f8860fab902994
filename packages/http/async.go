package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpproxy"

	"github.com/abdul-hamid-achik/hitwire/packages/cookie"
)

const transportAsync = "async"

// Future is the pending result of AsyncClient.Go.
type Future struct {
	done chan struct{}
	resp *Response
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) complete(resp *Response, err error) {
	f.resp, f.err = resp, err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the call completes or ctx is done.
func (f *Future) Await(ctx context.Context) (*Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AsyncClient is the non-blocking transport built on fasthttp. Calls return a
// Future; when the context carries an Executor the call runs there.
// Request and response timestamps come from the connection itself: the first
// byte written and the first byte read.
type AsyncClient struct {
	mu     sync.RWMutex
	cfg    Config
	opts   clientOptions
	state  *asyncState
	closed bool
}

type asyncState struct {
	routes *routePlanner
	tls    *tls.Config
	local  *net.TCPAddr
	pool   *connPool
}

var _ Client = (*AsyncClient)(nil)

func NewAsyncClient(cfg Config, opts ...ClientOption) (*AsyncClient, error) {
	c := &AsyncClient{opts: newClientOptions(opts)}
	if err := c.SetConfig(cfg); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *AsyncClient) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

func (c *AsyncClient) SetConfig(cfg Config) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	routes, err := newRoutePlanner(cfg.Proxy)
	if err != nil {
		return err
	}
	tlsCfg, err := cfg.TLS.build()
	if err != nil {
		return err
	}
	local, err := localTCPAddr(cfg.LocalAddress)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.cfg = cfg
	c.state = &asyncState{routes: routes, tls: tlsCfg, local: local, pool: newConnPool(cfg.MaxConnections)}
	c.mu.Unlock()
	return nil
}

func (c *AsyncClient) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Invoke is Go followed by Await.
func (c *AsyncClient) Invoke(ctx context.Context, req *Request) (*Response, error) {
	return c.Go(ctx, req).Await(ctx)
}

// Go starts the call and returns immediately.
func (c *AsyncClient) Go(ctx context.Context, req *Request) *Future {
	f := newFuture()
	task := func() {
		resp, err := c.invoke(ctx, req)
		f.complete(resp, err)
	}
	if ex, ok := ExecutorFrom(ctx); ok {
		if err := ex.Submit(task); err != nil {
			f.complete(nil, &TransportError{URL: req.URL, Err: err})
		}
		return f
	}
	go task()
	return f
}

func (c *AsyncClient) invoke(ctx context.Context, req *Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	cfg, st, closed := c.cfg, c.state, c.closed
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

	var retried bool
	send := func(ctx context.Context, r *Request) (*Response, error) {
		resp, again, err := withRetry(ctx, c.opts.logger(), r, func(ctx context.Context, r *Request) (*Response, error) {
			return c.followRedirects(ctx, cfg, st, jar, wo, r)
		})
		retried = retried || again
		return resp, err
	}

	resp, err := authorize(ctx, cfg, prepared, send)
	elapsed := time.Since(start)
	if err != nil {
		terr := &TransportError{URL: req.URL, Elapsed: elapsed, Retried: retried, Err: err}
		c.opts.observe(transportAsync, req, nil, elapsed, retried, terr)
		return nil, terr
	}

	reconcileCookies(resp.Header, jar.snapshot())
	resp.Duration = elapsed
	c.opts.observe(transportAsync, req, resp, elapsed, retried, nil)
	return resp, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// followRedirects sends r and follows redirects itself so that every
// intermediate Set-Cookie lands in the call jar.
func (c *AsyncClient) followRedirects(ctx context.Context, cfg Config, st *asyncState, jar *callJar, wo wireOptions, r *Request) (*Response, error) {
	cur := r
	for hops := 0; ; hops++ {
		resp, err := c.do(ctx, cfg, st, wo, cur)
		if err != nil {
			return nil, err
		}
		base, err := url.Parse(cur.URL)
		if err != nil {
			return nil, err
		}
		for _, sc := range resp.Cookies() {
			jar.SetCookies(base, []*http.Cookie{toHTTPCookie(sc)})
		}

		location := resp.Header.Get("Location")
		if !cfg.FollowRedirects || !isRedirect(resp.StatusCode) || location == "" || hops >= cfg.MaxRedirects {
			return resp, nil
		}

		target, err := base.Parse(location)
		if err != nil {
			return resp, nil
		}

		next := cur.clone()
		next.URL = target.String()
		if resp.StatusCode == http.StatusSeeOther ||
			((resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound) && cur.Method == MethodPost) {
			next.Method = MethodGet
			next.Body = nil
			next.Header.Del("Content-Type")
			next.Header.Del("Content-Encoding")
		}
		if !domainMatch(target.Hostname(), base.Hostname()) {
			next.Header.Del("Cookie")
			next.Header.Del("Authorization")
		}
		if cookies := jar.Cookies(target); len(cookies) > 0 {
			pairs := make([]string, 0, len(cookies))
			for _, hc := range cookies {
				pairs = append(pairs, hc.Name+"="+hc.Value)
			}
			next.Header.Set("Cookie", strings.Join(pairs, "; "))
		}
		cur = next
	}
}

func toHTTPCookie(c cookie.Cookie) *http.Cookie {
	hc := &http.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path, Secure: c.Secure, HttpOnly: c.HttpOnly}
	if c.MaxAge != nil {
		if *c.MaxAge <= 0 {
			hc.MaxAge = -1
		} else {
			hc.MaxAge = int(*c.MaxAge)
		}
	}
	return hc
}

func hostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "https" {
		return net.JoinHostPort(u.Hostname(), "443")
	}
	return net.JoinHostPort(u.Hostname(), "80")
}

// dialer returns the fasthttp dial function for host, honoring the route
// planner and the local bind address.
func (st *asyncState) dialer(host string, timeout time.Duration) fasthttp.DialFunc {
	if proxy := st.routes.Route(host); proxy != nil {
		if proxy.Scheme == "socks5" {
			return fasthttpproxy.FasthttpSocksDialer(proxy.String())
		}
		addr := st.routes.proxyAddr()
		if proxy.User != nil {
			addr = proxy.User.String() + "@" + addr
		}
		return fasthttpproxy.FasthttpHTTPDialerTimeout(addr, timeout)
	}
	d := &fasthttp.TCPDialer{LocalAddr: st.local}
	return func(addr string) (net.Conn, error) {
		return d.DialTimeout(addr, timeout)
	}
}

func (c *AsyncClient) do(ctx context.Context, cfg Config, st *asyncState, wo wireOptions, r *Request) (*Response, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, err
	}
	addr := hostPort(u)
	base := st.dialer(u.Host, cfg.ConnectTimeout)
	tt := &traceTimes{}

	hc := &fasthttp.HostClient{
		Addr:                          addr,
		ReadTimeout:                   cfg.ReadTimeout,
		WriteTimeout:                  cfg.ReadTimeout,
		MaxIdemponentCallAttempts:     1,
		DisableHeaderNamesNormalizing: true,
		Dial: func(a string) (net.Conn, error) {
			slot, err := st.pool.Acquire(ctx)
			if err != nil {
				return nil, err
			}
			conn, err := base(a)
			if err != nil {
				st.pool.Release(slot)
				return nil, err
			}
			if u.Scheme == "https" {
				conn, err = handshake(ctx, conn, u.Hostname(), st.tls, cfg.ConnectTimeout)
				if err != nil {
					st.pool.Release(slot)
					return nil, err
				}
			}
			timed := &timedConn{Conn: conn, times: tt}
			return &pooledConn{Conn: timed, release: func() { st.pool.Release(slot) }}, nil
		},
	}

	freq := fasthttp.AcquireRequest()
	fresp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(freq)
	defer fasthttp.ReleaseResponse(fresp)

	freq.Header.DisableNormalizing()
	freq.SetRequestURI(r.URL)
	freq.Header.SetMethod(r.Method)
	for _, f := range r.Header.Fields() {
		for _, v := range f.Values {
			freq.Header.Add(f.Name, v)
		}
	}
	freq.SetConnectionClose()
	if wo.chunked && len(r.Body) > 0 {
		freq.SetBodyStream(bytes.NewReader(r.Body), -1)
	} else if len(r.Body) > 0 {
		freq.SetBody(r.Body)
	}

	if deadline, ok := ctx.Deadline(); ok {
		err = hc.DoDeadline(freq, fresp, deadline)
	} else {
		err = hc.Do(freq, fresp)
	}
	if err != nil {
		return nil, err
	}

	h := NewHeader()
	fresp.Header.VisitAll(func(k, v []byte) {
		h.Add(string(k), string(v))
	})

	sent := r.clone()
	sent.StartTime, sent.EndTime = tt.times()
	status := fresp.StatusCode()
	return &Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     h,
		Body:       append([]byte(nil), fresp.Body()...),
		Request:    sent,
	}, nil
}

func handshake(ctx context.Context, conn net.Conn, serverName string, base *tls.Config, timeout time.Duration) (net.Conn, error) {
	var cfg *tls.Config
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}
	tc := tls.Client(conn, cfg)
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := tc.HandshakeContext(hctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tc, nil
}

// timedConn records when the first request byte was written and the first
// response byte was read.
type timedConn struct {
	net.Conn
	times *traceTimes
}

func (c *timedConn) Write(p []byte) (int, error) {
	c.times.mu.Lock()
	if c.times.start.IsZero() {
		c.times.start = time.Now()
	}
	c.times.mu.Unlock()
	return c.Conn.Write(p)
}

func (c *timedConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		c.times.mu.Lock()
		if c.times.end.IsZero() {
			c.times.end = time.Now()
		}
		c.times.mu.Unlock()
	}
	return n, err
}
