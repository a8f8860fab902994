package server

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/abdul-hamid-achik/hitwire/packages/cookie"
	hhttp "github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/resource"
)

// Request is an inbound request, independent of the listener that accepted
// it. Path is the normalized path the handler dispatches on; PathOriginal
// is the path as received.
type Request struct {
	ID           string
	Method       string
	Path         string
	PathOriginal string
	Query        url.Values
	Header       *hhttp.Header
	Body         []byte
	Host         string
	RemoteAddr   string

	// ResourcePath is set by SetAPIIfPathStartsWith for API requests.
	ResourcePath string
}

// NewRequest creates a request for method and a path that may carry a
// query string.
func NewRequest(method, target string) *Request {
	path, rawQuery, _ := strings.Cut(target, "?")
	query, _ := url.ParseQuery(rawQuery)
	return &Request{
		ID:           uuid.NewString(),
		Method:       strings.ToUpper(method),
		Path:         path,
		PathOriginal: path,
		Query:        query,
		Header:       hhttp.NewHeader(),
	}
}

// Cookie returns the value of the request cookie called name.
func (r *Request) Cookie(name string) (string, bool) {
	c, ok := cookie.Find(r.Header.Get("Cookie"), name)
	if !ok {
		return "", false
	}
	return c.Value, true
}

// IsAjax reports whether the request came from an htmx-style partial update.
func (r *Request) IsAjax() bool {
	return strings.EqualFold(r.Header.Get("HX-Request"), "true")
}

// Kind resolves the resource kind from the path extension, falling back to
// the request Content-Type.
func (r *Request) Kind() (resource.Kind, bool) {
	if k, ok := resource.FromFileExtension(r.Path); ok {
		return k, true
	}
	return resource.FromContentType(r.Header.Get("Content-Type"))
}

// IsForStaticResource reports whether the request looks like a GET for an
// asset: a recognised file extension that is not a form encoding.
func (r *Request) IsForStaticResource() bool {
	if r.Method != hhttp.MethodGet {
		return false
	}
	k, ok := resource.FromFileExtension(r.Path)
	return ok && !k.IsURLEncodedOrMultipart()
}

// Param returns a query parameter, or a url-encoded form field of the body.
func (r *Request) Param(name string) string {
	if v := r.Query.Get(name); v != "" {
		return v
	}
	if k, ok := resource.FromContentType(r.Header.Get("Content-Type")); ok && k == resource.URLEncoded {
		return hhttp.ParseFormBody(string(r.Body))[name]
	}
	return ""
}

// BodyJSON decodes the body, returning nil for an empty body.
func (r *Request) BodyJSON() (any, error) {
	if len(r.Body) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(r.Body, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (r *Request) String() string {
	return r.Method + " " + r.PathOriginal
}
