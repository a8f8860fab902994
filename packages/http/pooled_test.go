package http

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBuild(t *testing.T, b *RequestBuilder) *Request {
	t.Helper()
	req, err := b.Build()
	require.NoError(t, err)
	return req
}

func newPooled(t *testing.T, cfg Config, opts ...ClientOption) *PooledClient {
	t.Helper()
	c, err := NewPooledClient(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPooledClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/test", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "hello"}`))
	}))
	defer server.Close()

	client := newPooled(t, DefaultConfig())
	resp, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL).Path("test")))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.HeaderValue("content-type"))
	assert.True(t, resp.IsJSON())
	assert.Contains(t, resp.BodyString(), "hello")
	require.NotNil(t, resp.Request)
	assert.False(t, resp.Request.StartTime.IsZero())
	assert.False(t, resp.Request.EndTime.IsZero())
	assert.True(t, resp.ResponseTime() >= 0)
}

func TestPooledClient_PostJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json; charset=utf-8", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"name":"test"}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 123}`))
	}))
	defer server.Close()

	client := newPooled(t, DefaultConfig())
	req := mustBuild(t, NewRequestBuilder("utf-8").URL(server.URL).Method("POST").Body(map[string]any{"name": "test"}))
	resp, err := client.Invoke(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, 201, resp.StatusCode)
	assert.Contains(t, resp.BodyString(), "123")
}

func TestPooledClient_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.ReadTimeout = 50 * time.Millisecond
	client := newPooled(t, cfg)
	_, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL)))

	require.Error(t, err)
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, server.URL, terr.URL)
	assert.False(t, terr.Retried)
	assert.True(t, terr.Elapsed > 0)
}

func TestPooledClient_DefaultHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "explicit", r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.DefaultHeaders = map[string]string{"Authorization": "test-token", "User-Agent": "default"}
	client := newPooled(t, cfg)
	resp, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL).Header("user-agent", "explicit")))

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

func TestPooledClient_Redirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/final" {
			_, _ = w.Write([]byte(`final`))
			return
		}
		redirectCount++
		http.Redirect(w, r, "/final", http.StatusFound)
	}))
	defer server.Close()

	client := newPooled(t, DefaultConfig())
	resp, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL+"/redirect")))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "final", resp.BodyString())
	assert.Equal(t, 1, redirectCount)

	cfg := DefaultConfig()
	cfg.FollowRedirects = false
	require.NoError(t, client.SetConfig(cfg))
	resp, err = client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL+"/redirect")))
	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
	assert.False(t, client.Config().FollowRedirects)
}

func TestPooledClient_MaxRedirects(t *testing.T) {
	redirectCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redirectCount++
		http.Redirect(w, r, "/redirect", http.StatusFound)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.MaxRedirects = 3
	client := newPooled(t, cfg)
	resp, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL+"/redirect")))

	require.NoError(t, err)
	assert.Equal(t, 302, resp.StatusCode)
	assert.LessOrEqual(t, redirectCount, 4)
}

func TestPooledClient_ReconcilesRedirectCookies(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "A", Value: "old"})
			http.SetCookie(w, &http.Cookie{Name: "B", Value: "b1", Path: "/"})
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}
		c, err := r.Cookie("B")
		if assert.NoError(t, err) {
			assert.Equal(t, "b1", c.Value)
		}
		http.SetCookie(w, &http.Cookie{Name: "A", Value: "new"})
		_, _ = w.Write([]byte("home"))
	}))
	defer server.Close()

	client := newPooled(t, DefaultConfig())
	resp, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL+"/login")))
	require.NoError(t, err)

	setCookies := resp.Header.Values("Set-Cookie")
	require.Len(t, setCookies, 2)
	assert.Equal(t, "A=new", setCookies[0])
	assert.Contains(t, setCookies[1], "B=b1")

	cookies := resp.Cookies()
	require.Len(t, cookies, 2)
	assert.Equal(t, "new", cookies[0].Value)
}

func TestPooledClient_RedirectCookiesStayOnTheirHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s1"})
			http.SetCookie(w, &http.Cookie{Name: "foreign", Value: "f1", Domain: "other.example"})
			http.Redirect(w, r, "/home", http.StatusFound)
			return
		}
		_, err := r.Cookie("sid")
		assert.NoError(t, err)
		_, err = r.Cookie("foreign")
		assert.ErrorIs(t, err, http.ErrNoCookie)
		_, _ = w.Write([]byte("home"))
	}))
	defer server.Close()

	client := newPooled(t, DefaultConfig())
	resp, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL+"/login")))
	require.NoError(t, err)
	assert.Equal(t, "home", resp.BodyString())
	assert.Len(t, resp.Cookies(), 2)
}

func TestCallJar_Cookies(t *testing.T) {
	jar := newCallJar()
	origin, _ := url.Parse("http://app.example.com/login")
	jar.SetCookies(origin, []*http.Cookie{
		{Name: "sid", Value: "s1"},
		{Name: "wide", Value: "w1", Domain: ".example.com"},
		{Name: "gone", Value: "x", MaxAge: -1},
	})

	tests := []struct {
		target string
		want   []string
	}{
		{"http://app.example.com/home", []string{"sid", "wide"}},
		{"http://APP.example.com:8080/home", []string{"sid", "wide"}},
		{"http://api.example.com/", []string{"wide"}},
		{"http://example.com/", []string{"wide"}},
		{"http://tracker.test/", nil},
		{"http://notexample.com/", nil},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			u, err := url.Parse(tt.target)
			require.NoError(t, err)
			var got []string
			for _, c := range jar.Cookies(u) {
				got = append(got, c.Name)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Empty(t, jar.Cookies(nil))
	assert.Len(t, jar.snapshot(), 3)
}

func TestPooledClient_TransferEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"chunked"}, r.TransferEncoding)
		assert.Equal(t, int64(-1), r.ContentLength)
		assert.Equal(t, "gzip", r.Header.Get("Content-Encoding"))
		zr, err := gzip.NewReader(r.Body)
		require.NoError(t, err)
		body, _ := io.ReadAll(zr)
		_, _ = w.Write(body)
	}))
	defer server.Close()

	client := newPooled(t, DefaultConfig())
	req := mustBuild(t, NewRequestBuilder("").URL(server.URL).Method("POST").
		Header("Transfer-Encoding", "gzip, chunked").
		Body("payload"))
	resp, err := client.Invoke(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "payload", resp.BodyString())
	assert.Equal(t, "gzip, chunked", req.Header.Get("Transfer-Encoding"), "built request is not modified")
	assert.False(t, resp.Request.Header.Has("Transfer-Encoding"))
}

// closeFirstListener drops the first accepted connection without a response.
func closeFirstListener(t *testing.T, handler http.Handler) (*httptest.Server, *int32) {
	t.Helper()
	var accepted int32
	server := httptest.NewUnstartedServer(handler)
	server.Config.ConnState = func(c net.Conn, state http.ConnState) {
		if state == http.StateNew && atomic.AddInt32(&accepted, 1) == 1 {
			_ = c.Close()
		}
	}
	server.Start()
	return server, &accepted
}

func TestPooledClient_RetriesStaleConnectionOnce(t *testing.T) {
	server, accepted := closeFirstListener(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newPooled(t, DefaultConfig())
	resp, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL)))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.BodyString())
	assert.Equal(t, int32(2), atomic.LoadInt32(accepted))
}

func TestPooledClient_RefusedIsNotRetried(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	client := newPooled(t, DefaultConfig())
	_, err = client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL("http://"+addr)))
	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.False(t, terr.Retried)
	assert.Equal(t, 0, client.InUse())
}

func TestPooledClient_Proxy(t *testing.T) {
	var proxied int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&proxied, 1)
		assert.Equal(t, "http://upstream.test/x", r.URL.String())
		assert.NotEmpty(t, r.Header.Get("Proxy-Authorization"))
		_, _ = w.Write([]byte("via proxy"))
	}))
	defer proxy.Close()

	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("direct"))
	}))
	defer direct.Close()
	directURL, _ := url.Parse(direct.URL)

	cfg := DefaultConfig()
	cfg.Proxy = ProxyConfig{URL: proxy.URL, Username: "u", Password: "p", NoProxyHosts: []string{directURL.Hostname()}}
	client := newPooled(t, cfg)

	resp, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL("http://upstream.test/x")))
	require.NoError(t, err)
	assert.Equal(t, "via proxy", resp.BodyString())

	resp, err = client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(direct.URL)))
	require.NoError(t, err)
	assert.Equal(t, "direct", resp.BodyString())
	assert.Equal(t, int32(1), atomic.LoadInt32(&proxied))
}

func TestPooledClient_NoEnvironmentProxy(t *testing.T) {
	t.Setenv("HTTP_PROXY", "http://127.0.0.1:1")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newPooled(t, DefaultConfig())
	resp, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL)))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.BodyString())
}

func TestPooledClient_BasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "ann", user)
		assert.Equal(t, "secret", pass)
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.Auth = AuthConfig{Mode: AuthBasic, Username: "ann", Password: "secret"}
	client := newPooled(t, cfg)
	_, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL)))
	require.NoError(t, err)
}

func TestPooledClient_DigestAuth(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		auth := r.Header.Get("Authorization")
		if auth == "" {
			w.Header().Set("WWW-Authenticate", `Digest realm="test", nonce="abc", qop="auth", opaque="xyz"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		params := ParseWWWAuthenticate(auth)
		expected := &DigestAuth{
			Username: "ann", Password: "secret", Realm: "test", Nonce: "abc",
			URI: "/private", Qop: "auth", Nc: params["nc"], Cnonce: params["cnonce"], Method: "GET",
		}
		assert.Equal(t, expected.ComputeDigestResponse(), params["response"])
		assert.Equal(t, "xyz", params["opaque"])
		_, _ = w.Write([]byte("welcome"))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.Auth = AuthConfig{Mode: AuthDigest, Username: "ann", Password: "secret"}
	client := newPooled(t, cfg)
	resp, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL+"/private")))
	require.NoError(t, err)
	assert.Equal(t, "welcome", resp.BodyString())
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestPooledClient_AWSAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Authorization"), "AWS4-HMAC-SHA256 Credential=AKID/")
		assert.NotEmpty(t, r.Header.Get("X-Amz-Date"))
		assert.NotEmpty(t, r.Header.Get("X-Amz-Content-Sha256"))
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.Auth = AuthConfig{Mode: AuthAWS, AccessKey: "AKID", SecretKey: "secret", Region: "us-east-1", Service: "s3"}
	client := newPooled(t, cfg)
	_, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL+"/bucket?list-type=2")))
	require.NoError(t, err)
}

type countingRecorder struct {
	calls  int32
	errors int32
}

func (r *countingRecorder) Record(_ time.Duration, err error) {
	atomic.AddInt32(&r.calls, 1)
	if err != nil {
		atomic.AddInt32(&r.errors, 1)
	}
}

type captureObserver struct {
	mu        sync.Mutex
	transport string
	status    int
}

func (o *captureObserver) ObserveCall(transport, _ string, status int, _ time.Duration, _ bool, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transport = transport
	o.status = status
}

func TestPooledClient_Options(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	rec := &countingRecorder{}
	obs := &captureObserver{}
	client := newPooled(t, DefaultConfig(), WithRecorder(rec), WithMetrics(obs), WithRateLimit(1000, 1))

	for i := 0; i < 3; i++ {
		_, err := client.Invoke(context.Background(), mustBuild(t, NewRequestBuilder("").URL(server.URL)))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&rec.calls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&rec.errors))
	assert.Equal(t, "pooled", obs.transport)
	assert.Equal(t, http.StatusAccepted, obs.status)
}

func TestPooledClient_ConfigErrorsAtConstruction(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		target error
	}{
		{"ntlm", func(c *Config) { c.Auth.Mode = AuthNTLM }, ErrUnsupportedAuth},
		{"unknown auth", func(c *Config) { c.Auth.Mode = "kerberos" }, ErrUnsupportedAuth},
		{"bad proxy scheme", func(c *Config) { c.Proxy.URL = "ftp://proxy:21" }, ErrInvalidProxy},
		{"missing ca", func(c *Config) { c.TLS.CAFile = "/does/not/exist.pem" }, ErrInvalidTLS},
		{"half key pair", func(c *Config) { c.TLS.CertFile = "cert.pem" }, ErrInvalidTLS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewPooledClient(cfg)
			assert.ErrorIs(t, err, tt.target)
			_, err = NewAsyncClient(cfg)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestPooledClient_ClosedAndInvalid(t *testing.T) {
	client := newPooled(t, DefaultConfig())

	_, err := client.Invoke(context.Background(), &Request{Method: "GET", URL: "ftp://x", Header: NewHeader()})
	assert.Error(t, err)

	require.NoError(t, client.Close())
	_, err = client.Invoke(context.Background(), NewRequest("GET", "http://example.com"))
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestResponse_StatusHelpers(t *testing.T) {
	tests := []struct {
		statusCode int
		success    bool
		redirect   bool
		client     bool
		server     bool
	}{
		{200, true, false, false, false},
		{204, true, false, false, false},
		{302, false, true, false, false},
		{404, false, false, true, false},
		{500, false, false, false, true},
	}

	for _, tt := range tests {
		resp := &Response{StatusCode: tt.statusCode}
		assert.Equal(t, tt.success, resp.IsSuccess(), "StatusCode: %d", tt.statusCode)
		assert.Equal(t, tt.redirect, resp.IsRedirect(), "StatusCode: %d", tt.statusCode)
		assert.Equal(t, tt.client, resp.IsClientError(), "StatusCode: %d", tt.statusCode)
		assert.Equal(t, tt.server, resp.IsServerError(), "StatusCode: %d", tt.statusCode)
	}
}

func TestResponse_KindIsCached(t *testing.T) {
	resp := NewResponse(200)
	resp.Header.Set("Content-Type", "application/json; charset=utf-8")
	assert.True(t, resp.IsJSON())

	resp.Header.Set("Content-Type", "text/html")
	assert.True(t, resp.Kind().IsJSON(), "kind must not be recomputed")

	other := NewResponse(200)
	other.Header.Set("Content-Type", "text/plain")
	assert.False(t, other.IsJSON())
}
