package http

import (
	"fmt"
	"net"
	"strings"
	"time"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultConnectTimeout bounds dialing a new connection
	DefaultConnectTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxConnections bounds concurrent connections per client
	DefaultMaxConnections = 100
)

type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthBasic  AuthMode = "basic"
	AuthDigest AuthMode = "digest"
	AuthAWS    AuthMode = "aws"
	AuthNTLM   AuthMode = "ntlm"
)

// AuthConfig holds credentials for the client-wide auth mode.
type AuthConfig struct {
	Mode     AuthMode `json:"mode,omitempty" yaml:"mode,omitempty"`
	Username string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password string   `json:"password,omitempty" yaml:"password,omitempty"`

	// AWS Signature v4
	AccessKey string `json:"accessKey,omitempty" yaml:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty" yaml:"secretKey,omitempty"`
	Region    string `json:"region,omitempty" yaml:"region,omitempty"`
	Service   string `json:"service,omitempty" yaml:"service,omitempty"`
}

// ProxyConfig routes every host through URL except the exact NoProxyHosts.
type ProxyConfig struct {
	URL          string   `json:"url,omitempty" yaml:"url,omitempty"`
	Username     string   `json:"username,omitempty" yaml:"username,omitempty"`
	Password     string   `json:"password,omitempty" yaml:"password,omitempty"`
	NoProxyHosts []string `json:"noProxyHosts,omitempty" yaml:"noProxyHosts,omitempty"`
}

type TLSConfig struct {
	TrustAll   bool   `json:"trustAll,omitempty" yaml:"trustAll,omitempty"`
	CAFile     string `json:"caFile,omitempty" yaml:"caFile,omitempty"`
	CertFile   string `json:"certFile,omitempty" yaml:"certFile,omitempty"`
	KeyFile    string `json:"keyFile,omitempty" yaml:"keyFile,omitempty"`
	ServerName string `json:"serverName,omitempty" yaml:"serverName,omitempty"`
}

// Config is applied once per client and swapped atomically by SetConfig.
type Config struct {
	ConnectTimeout  time.Duration     `json:"connectTimeout,omitempty" yaml:"connectTimeout,omitempty"`
	ReadTimeout     time.Duration     `json:"readTimeout,omitempty" yaml:"readTimeout,omitempty"`
	FollowRedirects bool              `json:"followRedirects" yaml:"followRedirects"`
	MaxRedirects    int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	MaxConnections  int               `json:"maxConnections,omitempty" yaml:"maxConnections,omitempty"`
	LocalAddress    string            `json:"localAddress,omitempty" yaml:"localAddress,omitempty"`
	Charset         string            `json:"charset,omitempty" yaml:"charset,omitempty"`
	DefaultHeaders  map[string]string `json:"defaultHeaders,omitempty" yaml:"defaultHeaders,omitempty"`
	Proxy           ProxyConfig       `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	TLS             TLSConfig         `json:"tls,omitempty" yaml:"tls,omitempty"`
	Auth            AuthConfig        `json:"auth,omitempty" yaml:"auth,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout:  DefaultConnectTimeout,
		ReadTimeout:     DefaultTimeout,
		FollowRedirects: true,
		MaxRedirects:    DefaultMaxRedirects,
		MaxConnections:  DefaultMaxConnections,
		Charset:         "utf-8",
	}
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultTimeout
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = DefaultMaxRedirects
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	return c
}

// Validate fails on anything that would otherwise only break on the first
// request: unsupported auth modes, a malformed proxy, unreadable TLS
// material or a bad local address.
func (c Config) Validate() error {
	switch AuthMode(strings.ToLower(string(c.Auth.Mode))) {
	case "", AuthNone:
	case AuthBasic, AuthDigest:
		if c.Auth.Username == "" {
			return fmt.Errorf("%w: %s auth needs a username", ErrUnsupportedAuth, c.Auth.Mode)
		}
	case AuthAWS:
		if c.Auth.AccessKey == "" || c.Auth.SecretKey == "" || c.Auth.Region == "" || c.Auth.Service == "" {
			return fmt.Errorf("%w: aws auth needs accessKey, secretKey, region and service", ErrUnsupportedAuth)
		}
	case AuthNTLM:
		return fmt.Errorf("%w: ntlm is not supported", ErrUnsupportedAuth)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAuth, c.Auth.Mode)
	}

	if _, err := newRoutePlanner(c.Proxy); err != nil {
		return err
	}
	if _, err := c.TLS.build(); err != nil {
		return err
	}
	if c.LocalAddress != "" && net.ParseIP(c.LocalAddress) == nil {
		if _, err := net.ResolveTCPAddr("tcp", c.LocalAddress); err != nil {
			return fmt.Errorf("invalid local address %q: %w", c.LocalAddress, err)
		}
	}
	return nil
}

func (c Config) authMode() AuthMode {
	m := AuthMode(strings.ToLower(string(c.Auth.Mode)))
	if m == "" {
		return AuthNone
	}
	return m
}
