package http

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnsupportedAuth is returned at configure time for auth modes the
	// transports do not implement, such as NTLM.
	ErrUnsupportedAuth = errors.New("unsupported auth mode")
	// ErrInvalidProxy is returned for a malformed proxy URI.
	ErrInvalidProxy = errors.New("invalid proxy")
	// ErrInvalidTLS is returned when TLS material cannot be loaded.
	ErrInvalidTLS = errors.New("invalid tls configuration")
	// ErrEncoding is returned when a body or multipart part cannot be encoded.
	ErrEncoding = errors.New("encoding failed")
	// ErrClientClosed is returned by Invoke after Close.
	ErrClientClosed = errors.New("client closed")
)

// TransportError wraps every failed invocation with the target URL and the
// time spent before giving up.
type TransportError struct {
	URL     string
	Elapsed time.Duration
	Retried bool
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("http call failed after %d ms: %s: %v", e.Elapsed.Milliseconds(), e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
