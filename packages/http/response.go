package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/cookie"
	"github.com/abdul-hamid-achik/hitwire/packages/resource"
)

// Response is shared by the client transports and the server pipeline.
type Response struct {
	StatusCode int
	Status     string
	Header     *Header
	Body       []byte

	// Delay holds back a served response; only the server uses it.
	Delay time.Duration

	// Duration is the wall-clock time of the whole call, retries included.
	Duration time.Duration

	// Request is the request as sent, with timestamps.
	Request *Request

	kind         resource.Kind
	kindResolved bool
}

// NewResponse creates a response with an empty header.
func NewResponse(status int) *Response {
	return &Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     NewHeader(),
	}
}

// Kind derives the resource kind from Content-Type on first use and caches it.
// Later header changes do not affect the cached kind.
func (r *Response) Kind() resource.Kind {
	if !r.kindResolved {
		r.kind, _ = resource.FromContentType(r.ContentType())
		r.kindResolved = true
	}
	return r.kind
}

// SetKind pins the resource kind, bypassing Content-Type inference.
func (r *Response) SetKind(k resource.Kind) {
	r.kind = k
	r.kindResolved = true
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// HeaderValue returns the first value of a response header.
func (r *Response) HeaderValue(key string) string {
	return r.Header.Get(key)
}

func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

func (r *Response) IsJSON() bool {
	return r.Kind().IsJSON()
}

// Cookies decodes every Set-Cookie header. Malformed values are skipped.
func (r *Response) Cookies() []cookie.Cookie {
	var out []cookie.Cookie
	for _, v := range r.Header.Values("Set-Cookie") {
		c, err := cookie.Decode(v)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) IsRedirect() bool {
	return r.StatusCode >= 300 && r.StatusCode < 400
}

func (r *Response) IsClientError() bool {
	return r.StatusCode >= 400 && r.StatusCode < 500
}

func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// ResponseTime prefers the transport timestamps and falls back to Duration.
func (r *Response) ResponseTime() time.Duration {
	if r.Request != nil {
		if d := r.Request.ResponseTime(); d > 0 {
			return d
		}
	}
	return r.Duration
}
