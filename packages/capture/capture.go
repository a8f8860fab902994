package capture

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hitwire/packages/cookie"
	hhttp "github.com/abdul-hamid-achik/hitwire/packages/http"
)

type Source string

const (
	SourceBody     Source = "body"
	SourceHeader   Source = "header"
	SourceCookie   Source = "cookie"
	SourceStatus   Source = "status"
	SourceDuration Source = "duration"
)

// Capture names a value to pull out of a response.
type Capture struct {
	Name   string
	Source Source
	Path   string
}

// Parse reads "name=source[.path]", e.g. "token=body.auth.token",
// "sid=cookie.hitwire.sid" or "code=status".
func Parse(expr string) (*Capture, error) {
	name, ref, ok := strings.Cut(expr, "=")
	name = strings.TrimSpace(name)
	ref = strings.TrimSpace(ref)
	if !ok || name == "" || ref == "" {
		return nil, fmt.Errorf("invalid capture %q, want name=source.path", expr)
	}

	src, path, _ := strings.Cut(ref, ".")
	c := &Capture{Name: name, Source: Source(src), Path: path}
	switch c.Source {
	case SourceBody:
	case SourceHeader, SourceCookie:
		if path == "" {
			return nil, fmt.Errorf("capture %q needs a %s name", name, src)
		}
	case SourceStatus, SourceDuration:
		if path != "" {
			return nil, fmt.Errorf("capture %q: %s takes no path", name, src)
		}
	default:
		return nil, fmt.Errorf("capture %q: unknown source %q", name, src)
	}
	return c, nil
}

type Extractor struct {
	response *hhttp.Response
	bodyJSON gjson.Result
	cookies  []cookie.Cookie
}

func NewExtractor(resp *hhttp.Response) *Extractor {
	e := &Extractor{
		response: resp,
		cookies:  resp.Cookies(),
	}
	if resp.IsJSON() {
		e.bodyJSON = gjson.ParseBytes(resp.Body)
	}
	return e
}

func (e *Extractor) Extract(c *Capture) (any, bool) {
	switch c.Source {
	case SourceBody:
		return e.extractFromBody(c.Path)
	case SourceHeader:
		return e.extractFromHeader(c.Path)
	case SourceCookie:
		for _, ck := range e.cookies {
			if ck.Name == c.Path {
				return ck.Value, true
			}
		}
		return nil, false
	case SourceStatus:
		return e.response.StatusCode, true
	case SourceDuration:
		return e.response.DurationMs(), true
	default:
		return nil, false
	}
}

func (e *Extractor) extractFromBody(path string) (any, bool) {
	if !e.bodyJSON.Exists() {
		if path == "" {
			return e.response.BodyString(), true
		}
		return nil, false
	}

	if path == "" {
		return e.bodyJSON.Value(), true
	}

	result := e.bodyJSON.Get(path)
	if !result.Exists() {
		return nil, false
	}
	return result.Value(), true
}

func (e *Extractor) extractFromHeader(name string) (any, bool) {
	value := e.response.HeaderValue(name)
	if value == "" {
		return nil, false
	}
	return value, true
}

// ExtractAll returns the captures that resolved, by name.
func ExtractAll(resp *hhttp.Response, captures []*Capture) map[string]any {
	extractor := NewExtractor(resp)
	results := make(map[string]any)

	for _, c := range captures {
		if value, ok := extractor.Extract(c); ok {
			results[c.Name] = value
		}
	}

	return results
}
