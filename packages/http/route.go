package http

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// routePlanner decides per destination host whether to go through the proxy.
// A nil proxy disables proxying entirely, including environment settings.
type routePlanner struct {
	proxy   *url.URL
	noProxy map[string]struct{}
}

func newRoutePlanner(cfg ProxyConfig) (*routePlanner, error) {
	rp := &routePlanner{noProxy: make(map[string]struct{})}
	if cfg.URL == "" {
		return rp, nil
	}

	raw := cfg.URL
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: missing host in %q", ErrInvalidProxy, cfg.URL)
	}
	if cfg.Username != "" {
		u.User = url.UserPassword(cfg.Username, cfg.Password)
	}
	rp.proxy = u

	for _, h := range cfg.NoProxyHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			rp.noProxy[h] = struct{}{}
		}
	}
	return rp, nil
}

// Route returns the proxy for host, or nil for a direct connection. host may
// carry a port; matching against NoProxyHosts is exact on the host name.
func (rp *routePlanner) Route(host string) *url.URL {
	if rp == nil || rp.proxy == nil {
		return nil
	}
	name := strings.ToLower(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		name = strings.ToLower(h)
	}
	if _, ok := rp.noProxy[name]; ok {
		return nil
	}
	if _, ok := rp.noProxy[strings.ToLower(host)]; ok {
		return nil
	}
	return rp.proxy
}

// proxyFunc plugs into http.Transport.Proxy. It is nil when no proxy is set.
func (rp *routePlanner) proxyFunc() func(*http.Request) (*url.URL, error) {
	if rp == nil || rp.proxy == nil {
		return nil
	}
	return func(r *http.Request) (*url.URL, error) {
		return rp.Route(r.URL.Host), nil
	}
}

// proxyAddr is host:port of the proxy for dialers that take an address.
func (rp *routePlanner) proxyAddr() string {
	if rp == nil || rp.proxy == nil {
		return ""
	}
	if rp.proxy.Port() != "" {
		return rp.proxy.Host
	}
	if rp.proxy.Scheme == "https" {
		return net.JoinHostPort(rp.proxy.Hostname(), "443")
	}
	return net.JoinHostPort(rp.proxy.Hostname(), "80")
}

func localTCPAddr(addr string) (*net.TCPAddr, error) {
	if addr == "" {
		return nil, nil
	}
	if ip := net.ParseIP(addr); ip != nil {
		return &net.TCPAddr{IP: ip}, nil
	}
	return net.ResolveTCPAddr("tcp", addr)
}
