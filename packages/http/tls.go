package http

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// build loads the configured TLS material. It returns nil when nothing is
// configured so transports keep their defaults.
func (c TLSConfig) build() (*tls.Config, error) {
	if !c.TrustAll && c.CAFile == "" && c.CertFile == "" && c.KeyFile == "" && c.ServerName == "" {
		return nil, nil
	}

	cfg := &tls.Config{
		InsecureSkipVerify: c.TrustAll,
		ServerName:         c.ServerName,
		MinVersion:         tls.VersionTLS12,
	}

	if c.CAFile != "" {
		pem, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, fmt.Errorf("%w: ca file: %v", ErrInvalidTLS, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates in %s", ErrInvalidTLS, c.CAFile)
		}
		cfg.RootCAs = pool
	}

	if c.CertFile != "" || c.KeyFile != "" {
		if c.CertFile == "" || c.KeyFile == "" {
			return nil, fmt.Errorf("%w: certFile and keyFile must be set together", ErrInvalidTLS)
		}
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: key pair: %v", ErrInvalidTLS, err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}
