package config

import (
	"github.com/abdul-hamid-achik/hitwire/packages/server"
)

const (
	DefaultTimeout        = 30000 // 30 seconds
	DefaultConnectTimeout = 30000
	DefaultMaxRedirects   = 10
	DefaultPort           = 3000
	// DefaultSweepSchedule purges expired sessions every five minutes.
	DefaultSweepSchedule = "*/5 * * * *"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         DefaultTimeout,
		ConnectTimeout:  DefaultConnectTimeout,
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    DefaultMaxRedirects,
		ValidateSSL:     BoolPtr(true),
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
		Server: ServerConfig{
			Port:          DefaultPort,
			Sessions:      "memory",
			SweepSchedule: DefaultSweepSchedule,
			Config:        server.DefaultConfig(),
		},
	}
}

// IsDefault returns true if the config matches defaults
func (c *Config) IsDefault() bool {
	d := DefaultConfig()
	return c.Timeout == d.Timeout &&
		c.ConnectTimeout == d.ConnectTimeout &&
		c.GetFollowRedirects() == d.GetFollowRedirects() &&
		c.MaxRedirects == d.MaxRedirects &&
		c.GetValidateSSL() == d.GetValidateSSL() &&
		c.Proxy == d.Proxy &&
		len(c.Headers) == 0 &&
		c.RateLimit == 0 &&
		c.GetVerbose() == d.GetVerbose() &&
		c.GetNoColor() == d.GetNoColor() &&
		c.Server.Port == d.Server.Port &&
		c.Server.Sessions == d.Server.Sessions &&
		c.Server.Config == d.Server.Config
}
