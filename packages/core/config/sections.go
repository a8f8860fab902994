package config

import (
	"time"

	hhttp "github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/server"
	"github.com/abdul-hamid-achik/hitwire/packages/session"
)

// ClientConfig holds transport settings beyond the top-level knobs.
type ClientConfig struct {
	MaxConnections int              `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"`
	LocalAddress   string           `json:"localAddress,omitempty" yaml:"localAddress,omitempty"`
	Charset        string           `json:"charset,omitempty" yaml:"charset,omitempty"`
	ProxyUsername  string           `json:"proxyUsername,omitempty" yaml:"proxyUsername,omitempty"`
	ProxyPassword  string           `json:"proxyPassword,omitempty" yaml:"proxyPassword,omitempty"`
	NoProxyHosts   []string         `json:"noProxyHosts,omitempty" yaml:"noProxyHosts,omitempty"`
	TLS            hhttp.TLSConfig  `json:"tls,omitempty" yaml:"tls,omitempty"`
	Auth           hhttp.AuthConfig `json:"auth,omitempty" yaml:"auth,omitempty"`
}

func (c ClientConfig) merge(other ClientConfig) ClientConfig {
	if other.MaxConnections > 0 {
		c.MaxConnections = other.MaxConnections
	}
	if other.LocalAddress != "" {
		c.LocalAddress = other.LocalAddress
	}
	if other.Charset != "" {
		c.Charset = other.Charset
	}
	if other.ProxyUsername != "" {
		c.ProxyUsername = other.ProxyUsername
		c.ProxyPassword = other.ProxyPassword
	}
	if len(other.NoProxyHosts) > 0 {
		c.NoProxyHosts = other.NoProxyHosts
	}
	if other.TLS != (hhttp.TLSConfig{}) {
		c.TLS = other.TLS
	}
	if other.Auth.Mode != "" {
		c.Auth = other.Auth
	}
	return c
}

// ServerConfig holds the mock server settings. The handler knobs are
// inlined so they sit next to the listener settings in the file.
type ServerConfig struct {
	Port int   `json:"port,omitempty" yaml:"port,omitempty"`
	Fast *bool `json:"fast,omitempty" yaml:"fast,omitempty"`
	// Delay is added to every mock response, in milliseconds.
	Delay int `json:"delay,omitempty" yaml:"delay,omitempty"`
	// Sessions is a session.Open descriptor: memory, sqlite:<path> or pebble:<dir>.
	Sessions string `json:"sessions,omitempty" yaml:"sessions,omitempty"`
	// SweepSchedule is the cron expression for purging expired sessions.
	SweepSchedule  string `json:"sweepSchedule,omitempty" yaml:"sweepSchedule,omitempty"`
	MaxBodySize    int64  `json:"maxBodySize,omitempty" yaml:"maxBodySize,omitempty"`
	PerSessionLock *bool  `json:"perSessionLock,omitempty" yaml:"perSessionLock,omitempty"`

	server.Config `yaml:",inline"`
}

// GetFast returns whether the fasthttp server is used, defaulting to false
func (s ServerConfig) GetFast() bool {
	return getBool(s.Fast, false)
}

// merge overrides set values. Handler flags can only be switched on.
func (s ServerConfig) merge(other ServerConfig) ServerConfig {
	if other.Port > 0 {
		s.Port = other.Port
	}
	if other.Fast != nil {
		s.Fast = other.Fast
	}
	if other.Delay > 0 {
		s.Delay = other.Delay
	}
	if other.Sessions != "" {
		s.Sessions = other.Sessions
	}
	if other.SweepSchedule != "" {
		s.SweepSchedule = other.SweepSchedule
	}
	if other.MaxBodySize > 0 {
		s.MaxBodySize = other.MaxBodySize
	}
	if other.PerSessionLock != nil {
		s.PerSessionLock = other.PerSessionLock
	}

	o := other.Config
	if o.SessionCookieName != "" {
		s.SessionCookieName = o.SessionCookieName
	}
	if o.HomePagePath != "" {
		s.HomePagePath = o.HomePagePath
	}
	if o.SignInPath != "" {
		s.SignInPath = o.SignInPath
	}
	if o.SignOutPath != "" {
		s.SignOutPath = o.SignOutPath
	}
	if o.APIPrefix != "" {
		s.APIPrefix = o.APIPrefix
	}
	if o.HostContextPath != "" {
		s.HostContextPath = o.HostContextPath
	}
	if o.SessionExpiry > 0 {
		s.SessionExpiry = o.SessionExpiry
	}
	s.StripContextPath = s.StripContextPath || o.StripContextPath
	s.Stateless = s.Stateless || o.Stateless
	s.AutoCreateSession = s.AutoCreateSession || o.AutoCreateSession
	s.GlobalSession = s.GlobalSession || o.GlobalSession
	s.DevMode = s.DevMode || o.DevMode
	s.StrictStatic = s.StrictStatic || o.StrictStatic
	return s
}

// ToClientConfig maps the file settings onto the transport config.
func (c *Config) ToClientConfig() hhttp.Config {
	cfg := hhttp.DefaultConfig()
	if c.Timeout > 0 {
		cfg.ReadTimeout = time.Duration(c.Timeout) * time.Millisecond
	}
	if c.ConnectTimeout > 0 {
		cfg.ConnectTimeout = time.Duration(c.ConnectTimeout) * time.Millisecond
	}
	cfg.FollowRedirects = c.GetFollowRedirects()
	if c.MaxRedirects > 0 {
		cfg.MaxRedirects = c.MaxRedirects
	}
	if len(c.Headers) > 0 {
		cfg.DefaultHeaders = make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			cfg.DefaultHeaders[k] = v
		}
	}

	cl := c.Client
	if cl.MaxConnections > 0 {
		cfg.MaxConnections = cl.MaxConnections
	}
	if cl.Charset != "" {
		cfg.Charset = cl.Charset
	}
	cfg.LocalAddress = cl.LocalAddress
	cfg.Proxy = hhttp.ProxyConfig{
		URL:          c.Proxy,
		Username:     cl.ProxyUsername,
		Password:     cl.ProxyPassword,
		NoProxyHosts: cl.NoProxyHosts,
	}
	cfg.TLS = cl.TLS
	if !c.GetValidateSSL() {
		cfg.TLS.TrustAll = true
	}
	cfg.Auth = cl.Auth
	return cfg
}

// ClientOptions returns the client options implied by the file, such as
// the outbound rate limit.
func (c *Config) ClientOptions() []hhttp.ClientOption {
	var opts []hhttp.ClientOption
	if c.RateLimit > 0 {
		opts = append(opts, hhttp.WithRateLimit(c.RateLimit, c.RateBurst))
	}
	return opts
}

// ToServerConfig returns the handler knobs.
func (c *Config) ToServerConfig() server.Config {
	return c.Server.Config
}

// ToServerOptions opens the configured session store and returns the
// handler options that use it. The caller owns the store and closes it
// when it implements io.Closer.
func (c *Config) ToServerOptions() ([]server.Option, session.Store, error) {
	store, err := session.Open(c.Server.Sessions)
	if err != nil {
		return nil, nil, err
	}
	opts := []server.Option{server.WithSessionStore(store)}
	if c.Server.MaxBodySize > 0 {
		opts = append(opts, server.WithMaxBodySize(c.Server.MaxBodySize))
	}
	if getBool(c.Server.PerSessionLock, false) {
		opts = append(opts, server.WithPerSessionLock())
	}
	return opts, store, nil
}

// MockDelay is the extra delay added to every mock response.
func (c *Config) MockDelay() time.Duration {
	return time.Duration(c.Server.Delay) * time.Millisecond
}
