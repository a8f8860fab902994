package http

import (
	"errors"
	"io"
	"strings"
	"syscall"
)

// bodyReadError marks failures after the response headers arrived. They are
// never retried because the peer did respond.
type bodyReadError struct {
	err error
}

func (e *bodyReadError) Error() string {
	return "reading response body: " + e.err.Error()
}

func (e *bodyReadError) Unwrap() error {
	return e.err
}

// isStaleConnection reports whether err means the peer closed the connection
// without sending a response. Only this failure is retried, once.
func isStaleConnection(err error) bool {
	if err == nil {
		return false
	}
	var br *bodyReadError
	if errors.As(err, &br) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "server closed idle connection") ||
		strings.Contains(msg, "connection reset by peer") ||
		strings.Contains(msg, "the server closed connection before returning the first response byte")
}
