package http

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/abdul-hamid-achik/hitwire/packages/cookie"
	"github.com/abdul-hamid-achik/hitwire/packages/resource"
)

type param struct {
	name   string
	values []string
}

// RequestBuilder stages the parts of an outbound request. Build can be called
// repeatedly: the only state it changes is the one-time encoding of a staged
// form or multipart body, which later builds reuse byte for byte.
type RequestBuilder struct {
	charset string
	url     string
	paths   []string
	params  []param
	header  *Header
	cookies []cookie.Cookie
	method  string
	retry   bool
	baseDir string

	body    any
	hasBody bool
	form    *MultiPartBuilder
}

// NewRequestBuilder creates a builder. charset is appended to inferred
// content types and may be empty.
func NewRequestBuilder(charset string) *RequestBuilder {
	return &RequestBuilder{charset: charset, header: NewHeader()}
}

// BaseDir sets the directory relative multipart file paths resolve against.
func (b *RequestBuilder) BaseDir(dir string) *RequestBuilder {
	b.baseDir = dir
	if b.form != nil {
		b.form.WithBaseDir(dir)
	}
	return b
}

func (b *RequestBuilder) URL(u string) *RequestBuilder {
	b.url = u
	return b
}

// Path appends a path segment. Leading and trailing slashes are trimmed and
// empty segments are ignored at build time.
func (b *RequestBuilder) Path(segment string) *RequestBuilder {
	b.paths = append(b.paths, segment)
	return b
}

// Param sets a query parameter. Values may be string, *string or any value
// printable with fmt; nil values are dropped and the key is removed when no
// value is left.
func (b *RequestBuilder) Param(name string, values ...any) *RequestBuilder {
	var vals []string
	for _, v := range values {
		switch t := v.(type) {
		case nil:
		case *string:
			if t != nil {
				vals = append(vals, *t)
			}
		case string:
			vals = append(vals, t)
		default:
			vals = append(vals, fmt.Sprint(t))
		}
	}
	for i := range b.params {
		if b.params[i].name == name {
			if len(vals) == 0 {
				b.params = append(b.params[:i], b.params[i+1:]...)
			} else {
				b.params[i].values = vals
			}
			return b
		}
	}
	if len(vals) > 0 {
		b.params = append(b.params, param{name: name, values: vals})
	}
	return b
}

// Header replaces a header, matching the name case-insensitively. Calling it
// without values removes the header.
func (b *RequestBuilder) Header(name string, values ...string) *RequestBuilder {
	if len(values) == 0 {
		return b.RemoveHeader(name)
	}
	b.header.Set(name, values...)
	return b
}

func (b *RequestBuilder) RemoveHeader(name string) *RequestBuilder {
	b.header.Del(name)
	return b
}

// HeaderValue returns a staged header value.
func (b *RequestBuilder) HeaderValue(name string) string {
	return b.header.Get(name)
}

// Cookie adds a cookie, replacing one with the same name.
func (b *RequestBuilder) Cookie(c cookie.Cookie) *RequestBuilder {
	for i := range b.cookies {
		if b.cookies[i].Name == c.Name {
			b.cookies[i] = c
			return b
		}
	}
	b.cookies = append(b.cookies, c)
	return b
}

// Cookies adds every cookie of a name-keyed map or list, in any shape
// cookie.Normalize accepts.
func (b *RequestBuilder) Cookies(v any) error {
	cookies, err := cookie.FromAny(v)
	if err != nil {
		return err
	}
	for _, c := range cookies {
		b.Cookie(c)
	}
	return nil
}

// Body stages a request body. It is serialized by Build.
func (b *RequestBuilder) Body(v any) *RequestBuilder {
	b.body = v
	b.hasBody = v != nil
	return b
}

// FormField stages url-encoded fields, one per value.
func (b *RequestBuilder) FormField(name string, values ...any) *RequestBuilder {
	if b.form == nil {
		b.form = NewMultiPartBuilder(false, b.charset).WithBaseDir(b.baseDir)
	}
	for _, v := range values {
		b.form.Part(name, v)
	}
	return b
}

// MultiPart stages a multipart field. Fields staged earlier with FormField
// are sent as multipart fields too.
func (b *RequestBuilder) MultiPart(name string, value any, opts ...PartOption) *RequestBuilder {
	if b.form == nil {
		b.form = NewMultiPartBuilder(true, b.charset).WithBaseDir(b.baseDir)
	} else if !b.form.built {
		b.form.multipart = true
	}
	b.form.Part(name, value, opts...)
	return b
}

// MultiPartMap stages a multipart field from an attribute map.
func (b *RequestBuilder) MultiPartMap(m map[string]any) error {
	if b.form == nil {
		b.form = NewMultiPartBuilder(true, b.charset).WithBaseDir(b.baseDir)
	} else if !b.form.built {
		b.form.multipart = true
	}
	return b.form.PartMap(m)
}

func (b *RequestBuilder) Method(m string) *RequestBuilder {
	b.method = strings.ToUpper(strings.TrimSpace(m))
	return b
}

// Retry marks the next build as a retry of an earlier attempt.
func (b *RequestBuilder) Retry(retry bool) *RequestBuilder {
	b.retry = retry
	return b
}

func (b *RequestBuilder) IsRetry() bool {
	return b.retry
}

// MultiPartBuilder exposes the staged form, or nil.
func (b *RequestBuilder) MultiPartBuilder() *MultiPartBuilder {
	return b.form
}

// Copy returns an independent builder. A staged form is shared so that the
// copy reuses its encoded bytes.
func (b *RequestBuilder) Copy() *RequestBuilder {
	c := *b
	c.paths = append([]string(nil), b.paths...)
	c.params = make([]param, len(b.params))
	for i, p := range b.params {
		c.params[i] = param{name: p.name, values: append([]string(nil), p.values...)}
	}
	c.header = b.header.Clone()
	c.cookies = append([]cookie.Cookie(nil), b.cookies...)
	return &c
}

func (b *RequestBuilder) resolveMethod() string {
	if b.method != "" {
		return b.method
	}
	if b.form != nil && b.form.multipart && b.form.Len() > 0 {
		return MethodPost
	}
	return MethodGet
}

// Build assembles the request.
func (b *RequestBuilder) Build() (*Request, error) {
	if b.url == "" {
		return nil, fmt.Errorf("request URL is not set")
	}
	method := b.resolveMethod()
	if !IsValidMethod(method) {
		return nil, fmt.Errorf("invalid method: %q", method)
	}

	req := &Request{Method: method, Header: b.header.Clone()}
	params := b.params

	if b.form != nil && b.form.Len() > 0 {
		if method == MethodGet && !b.form.multipart {
			fields, err := b.form.FormFields()
			if err != nil {
				return nil, err
			}
			params = append([]param(nil), params...)
			for _, f := range fields {
				params = append(params, param{name: f.Name, values: []string{f.Value}})
			}
		} else {
			if b.form.multipart && !b.form.built && req.Header.Has("Content-Type") {
				b.form.WithContentType(req.Header.Get("Content-Type"))
			}
			body, err := b.form.Build()
			if err != nil {
				return nil, err
			}
			req.Body = body
			req.Header.Set("Content-Type", b.form.ContentTypeHeader())
			if b.form.multipart {
				req.DisplayBody = b.form.BodyForDisplay()
			}
		}
	}

	u, err := b.buildURL(params)
	if err != nil {
		return nil, err
	}
	req.URL = u

	if len(b.cookies) > 0 {
		req.Header.Set("Cookie", cookie.HeaderValue(b.cookies))
	}

	if b.hasBody && req.Body == nil {
		body, err := encodeValue(b.body)
		if err != nil {
			return nil, fmt.Errorf("%w: body: %v", ErrEncoding, err)
		}
		req.Body = body

		ct := req.Header.Get("Content-Type")
		var kind resource.Kind
		if ct == "" {
			kind = resource.FromValueOr(b.body, resource.JSON)
			ct = kind.ContentType()
		} else {
			kind, _ = resource.FromContentType(ct)
		}
		if b.charset != "" && !kind.IsBinary() && !hasCharset(ct) {
			ct += "; charset=" + b.charset
		}
		req.Header.Set("Content-Type", ct)
	}

	return req, nil
}

func (b *RequestBuilder) buildURL(params []param) (string, error) {
	u, err := url.Parse(b.url)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", b.url, err)
	}

	if len(b.paths) > 0 {
		var segments []string
		for _, s := range strings.Split(u.Path, "/") {
			if s != "" {
				segments = append(segments, s)
			}
		}
		for _, p := range b.paths {
			p = strings.Trim(p, "/")
			if p != "" {
				segments = append(segments, p)
			}
		}
		u.Path = "/" + strings.Join(segments, "/")
		u.RawPath = ""
	}

	if len(params) > 0 {
		var q strings.Builder
		q.WriteString(u.RawQuery)
		for _, p := range params {
			for _, v := range p.values {
				if q.Len() > 0 {
					q.WriteByte('&')
				}
				q.WriteString(url.QueryEscape(p.name))
				q.WriteByte('=')
				q.WriteString(url.QueryEscape(v))
			}
		}
		u.RawQuery = q.String()
	}

	return u.String(), nil
}
