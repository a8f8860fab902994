package http

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	MethodGet     = "GET"
	MethodHead    = "HEAD"
	MethodPost    = "POST"
	MethodPut     = "PUT"
	MethodPatch   = "PATCH"
	MethodDelete  = "DELETE"
	MethodOptions = "OPTIONS"
	MethodTrace   = "TRACE"
	MethodConnect = "CONNECT"
)

// Request is an outbound request produced by RequestBuilder.Build. It is not
// modified after it is built: transports work on a copy and attach it to the
// Response with StartTime and EndTime filled in.
type Request struct {
	Method string
	URL    string
	Header *Header
	Body   []byte

	// DisplayBody is a log-safe rendering of multipart bodies.
	DisplayBody string

	// StartTime is when the first byte of the request headers was written and
	// EndTime when the first byte of the response was read.
	StartTime time.Time
	EndTime   time.Time
}

// NewRequest creates a request with an empty header.
func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method: strings.ToUpper(method),
		URL:    requestURL,
		Header: NewHeader(),
	}
}

// IsValidMethod reports whether m is one of the canonical HTTP verbs.
func IsValidMethod(m string) bool {
	switch m {
	case MethodGet, MethodHead, MethodPost, MethodPut, MethodPatch,
		MethodDelete, MethodOptions, MethodTrace, MethodConnect:
		return true
	}
	return false
}

// Validate checks the invariants a transport relies on.
func (r *Request) Validate() error {
	if !IsValidMethod(r.Method) {
		return fmt.Errorf("invalid method: %q", r.Method)
	}
	if r.URL == "" {
		return fmt.Errorf("request URL is empty")
	}
	return ValidateURL(r.URL)
}

func (r *Request) clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	return &c
}

// ResponseTime is the time between request headers being written and the
// first response byte, or zero when the transport did not record it.
func (r *Request) ResponseTime() time.Duration {
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}

// ParseFormBody decodes an url-encoded body, keeping the first value per key.
func ParseFormBody(body string) map[string]string {
	result := make(map[string]string)
	for _, pair := range strings.Split(body, "&") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		key, _ := url.QueryUnescape(k)
		if _, seen := result[key]; seen {
			continue
		}
		value, _ := url.QueryUnescape(v)
		result[key] = value
	}
	return result
}
