package http

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnPool_LIFO(t *testing.T) {
	p := newConnPool(3)
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, p.InUse())

	p.Release(a)
	p.Release(b)
	again, err := p.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, b, again, "most recently released slot is reused first")
}

func TestConnPool_BlocksWhenFull(t *testing.T) {
	p := newConnPool(1)
	slot, err := p.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	got := make(chan int, 1)
	go func() {
		s, err := p.Acquire(context.Background())
		if err == nil {
			got <- s
		}
	}()
	time.Sleep(20 * time.Millisecond)
	p.Release(slot)

	select {
	case s := <-got:
		assert.Equal(t, slot, s)
	case <-time.After(time.Second):
		t.Fatal("waiter was not handed the released slot")
	}
	assert.Equal(t, 1, p.InUse())
}

func TestConnPool_DialReleasesOnClose(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	p := newConnPool(2)
	dial := p.dial((&net.Dialer{}).DialContext)

	conn, err := dial(context.Background(), "tcp", l.Addr().String())
	require.NoError(t, err)
	assert.Equal(t, 1, p.InUse())
	require.NoError(t, conn.Close())
	_ = conn.Close()
	assert.Equal(t, 0, p.InUse())

	failing := p.dial(func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("refused")
	})
	_, err = failing(context.Background(), "tcp", "x")
	assert.Error(t, err)
	assert.Equal(t, 0, p.InUse())
}

func TestWorkerPool(t *testing.T) {
	p := NewWorkerPool(3, 10)
	var ran int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			atomic.AddInt32(&ran, 1)
		}))
	}
	wg.Wait()
	p.Close()
	p.Close()

	assert.Equal(t, int32(20), atomic.LoadInt32(&ran))
	assert.ErrorIs(t, p.Submit(func() {}), ErrExecutorClosed)
}

func TestExecutorFrom(t *testing.T) {
	_, ok := ExecutorFrom(context.Background())
	assert.False(t, ok)

	p := NewWorkerPool(1, 0)
	defer p.Close()
	ex, ok := ExecutorFrom(WithExecutor(context.Background(), p))
	assert.True(t, ok)
	assert.Same(t, p, ex)
}

func TestRoutePlanner(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProxyConfig
		host    string
		want    string
		wantErr bool
	}{
		{name: "no proxy", cfg: ProxyConfig{}, host: "example.com", want: ""},
		{name: "proxied", cfg: ProxyConfig{URL: "http://proxy:3128"}, host: "example.com:80", want: "http://proxy:3128"},
		{name: "scheme added", cfg: ProxyConfig{URL: "proxy:3128"}, host: "example.com", want: "http://proxy:3128"},
		{name: "credentials", cfg: ProxyConfig{URL: "http://proxy:3128", Username: "u", Password: "p"}, host: "example.com", want: "http://u:p@proxy:3128"},
		{name: "exact no-proxy host", cfg: ProxyConfig{URL: "http://proxy:3128", NoProxyHosts: []string{"Internal.local"}}, host: "internal.local:8080", want: ""},
		{name: "no suffix matching", cfg: ProxyConfig{URL: "http://proxy:3128", NoProxyHosts: []string{"local"}}, host: "internal.local", want: "http://proxy:3128"},
		{name: "socks", cfg: ProxyConfig{URL: "socks5://127.0.0.1:1080"}, host: "example.com", want: "socks5://127.0.0.1:1080"},
		{name: "bad scheme", cfg: ProxyConfig{URL: "gopher://proxy"}, wantErr: true},
		{name: "missing host", cfg: ProxyConfig{URL: "http://:8080"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rp, err := newRoutePlanner(tt.cfg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProxy)
				return
			}
			require.NoError(t, err)
			got := rp.Route(tt.host)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestRoutePlanner_ProxyAddr(t *testing.T) {
	rp, err := newRoutePlanner(ProxyConfig{URL: "https://proxy"})
	require.NoError(t, err)
	assert.Equal(t, "proxy:443", rp.proxyAddr())

	rp, err = newRoutePlanner(ProxyConfig{})
	require.NoError(t, err)
	assert.Empty(t, rp.proxyAddr())
	assert.Nil(t, rp.proxyFunc())
}

func TestIsStaleConnection(t *testing.T) {
	assert.True(t, isStaleConnection(errors.New("http: server closed idle connection")))
	assert.True(t, isStaleConnection(errors.New("read: connection reset by peer")))
	assert.False(t, isStaleConnection(&bodyReadError{err: errors.New("connection reset by peer")}))
	assert.False(t, isStaleConnection(errors.New("dial tcp: connection refused")))
	assert.False(t, isStaleConnection(nil))
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultTimeout, cfg.ReadTimeout)
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, DefaultMaxRedirects, cfg.MaxRedirects)
	assert.Equal(t, DefaultMaxConnections, cfg.MaxConnections)

	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Auth = AuthConfig{Mode: AuthBasic}
	assert.ErrorIs(t, bad.Validate(), ErrUnsupportedAuth)

	bad = DefaultConfig()
	bad.Auth = AuthConfig{Mode: AuthAWS, AccessKey: "a"}
	assert.ErrorIs(t, bad.Validate(), ErrUnsupportedAuth)

	bad = DefaultConfig()
	bad.LocalAddress = "not an address"
	assert.Error(t, bad.Validate())
}
