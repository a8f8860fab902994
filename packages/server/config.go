package server

import (
	"fmt"
	"strings"
)

const (
	DefaultSessionCookieName = "hitwire.sid"
	DefaultHomePagePath      = "/index"
	DefaultSignInPath        = "/signin"
	DefaultSignOutPath       = "/signout"
	DefaultAPIPrefix         = "/api/"
	// DefaultSessionExpiry is ten minutes, in seconds.
	DefaultSessionExpiry = 600
)

// Config holds the knobs an embedding application sets on the handler.
// Paths carry a leading slash.
type Config struct {
	SessionCookieName string `json:"sessionCookieName,omitempty" yaml:"sessionCookieName,omitempty"`
	HomePagePath      string `json:"homePagePath,omitempty" yaml:"homePagePath,omitempty"`
	SignInPath        string `json:"signInPath,omitempty" yaml:"signInPath,omitempty"`
	SignOutPath       string `json:"signOutPath,omitempty" yaml:"signOutPath,omitempty"`
	APIPrefix         string `json:"apiPrefix,omitempty" yaml:"apiPrefix,omitempty"`

	// HostContextPath is stripped from request paths when StripContextPath
	// is set and prefixes the sign-in redirect.
	HostContextPath  string `json:"hostContextPath,omitempty" yaml:"hostContextPath,omitempty"`
	StripContextPath bool   `json:"stripContextPath,omitempty" yaml:"stripContextPath,omitempty"`

	// SessionExpiry is the idle timeout in seconds.
	SessionExpiry     int64 `json:"sessionExpiry,omitempty" yaml:"sessionExpiry,omitempty"`
	Stateless         bool  `json:"stateless,omitempty" yaml:"stateless,omitempty"`
	AutoCreateSession bool  `json:"autoCreateSession,omitempty" yaml:"autoCreateSession,omitempty"`
	GlobalSession     bool  `json:"globalSession,omitempty" yaml:"globalSession,omitempty"`

	// DevMode disables static caching.
	DevMode bool `json:"devMode,omitempty" yaml:"devMode,omitempty"`
	// StrictStatic answers 404 instead of an empty 200 when a static
	// resource cannot be read.
	StrictStatic bool `json:"strictStatic,omitempty" yaml:"strictStatic,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		SessionCookieName: DefaultSessionCookieName,
		HomePagePath:      DefaultHomePagePath,
		SignInPath:        DefaultSignInPath,
		SignOutPath:       DefaultSignOutPath,
		APIPrefix:         DefaultAPIPrefix,
		SessionExpiry:     DefaultSessionExpiry,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SessionCookieName == "" {
		c.SessionCookieName = d.SessionCookieName
	}
	if c.HomePagePath == "" {
		c.HomePagePath = d.HomePagePath
	}
	if c.SignInPath == "" {
		c.SignInPath = d.SignInPath
	}
	if c.SignOutPath == "" {
		c.SignOutPath = d.SignOutPath
	}
	if c.APIPrefix == "" {
		c.APIPrefix = d.APIPrefix
	}
	if c.SessionExpiry <= 0 {
		c.SessionExpiry = d.SessionExpiry
	}
	c.HomePagePath = withSlash(c.HomePagePath)
	c.SignInPath = withSlash(c.SignInPath)
	c.SignOutPath = withSlash(c.SignOutPath)
	if c.HostContextPath != "" {
		c.HostContextPath = "/" + strings.Trim(c.HostContextPath, "/")
	}
	return c
}

// Validate rejects combinations the handler cannot serve.
func (c Config) Validate() error {
	if strings.ContainsAny(c.SessionCookieName, " ;=,") {
		return fmt.Errorf("invalid session cookie name: %q", c.SessionCookieName)
	}
	if c.StripContextPath && c.HostContextPath == "" {
		return fmt.Errorf("stripContextPath needs a hostContextPath")
	}
	return nil
}

// redirectPath is where requests without a session are sent.
func (c Config) redirectPath() string {
	return c.HostContextPath + c.SignInPath
}

func withSlash(p string) string {
	if p == "" || strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
