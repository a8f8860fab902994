package server

import (
	"io"
	"net/http"

	"github.com/abdul-hamid-achik/hitwire/packages/cookie"
	hhttp "github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/logger"
	"github.com/abdul-hamid-achik/hitwire/packages/resource"
	"github.com/abdul-hamid-achik/hitwire/packages/session"
)

const (
	cacheForever = "max-age=31536000"
	cacheNever   = "max-age=0"
)

// ResponseBuilder assembles the final response of a request: cookies,
// redirects, content type defaults and static resources.
type ResponseBuilder struct {
	cfg      Config
	resolver ResourceResolver
	header   *hhttp.Header
	body     []byte
	cookies  []cookie.Cookie
}

func NewResponseBuilder(cfg Config, resolver ResourceResolver) *ResponseBuilder {
	return &ResponseBuilder{cfg: cfg, resolver: resolver, header: hhttp.NewHeader()}
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.header.Set(name, value)
	return b
}

func (b *ResponseBuilder) Location(url string) *ResponseBuilder {
	return b.Header("Location", url)
}

// AjaxRedirect redirects an htmx request; the browser follows HX-Redirect
// instead of Location.
func (b *ResponseBuilder) AjaxRedirect(url string) *ResponseBuilder {
	return b.Header("HX-Redirect", url)
}

func (b *ResponseBuilder) HTML(body []byte) *ResponseBuilder {
	b.body = body
	return b.Header("Content-Type", resource.HTML.ContentType())
}

func (b *ResponseBuilder) Cookie(c cookie.Cookie) *ResponseBuilder {
	b.cookies = append(b.cookies, c)
	return b
}

func (b *ResponseBuilder) SessionCookie(id string) *ResponseBuilder {
	return b.Cookie(cookie.Cookie{
		Name:     b.cfg.SessionCookieName,
		Value:    id,
		Path:     b.cookiePath(),
		HttpOnly: true,
		SameSite: cookie.SameSiteLax,
	})
}

func (b *ResponseBuilder) DeleteSessionCookie() *ResponseBuilder {
	return b.Cookie(b.sessionCookieDeletion())
}

func (b *ResponseBuilder) sessionCookieDeletion() cookie.Cookie {
	c := cookie.Delete(b.cfg.SessionCookieName)
	c.Path = b.cookiePath()
	return c
}

// Session sets the session cookie when s was created by this request.
func (b *ResponseBuilder) Session(s *session.Session, isNew bool) *ResponseBuilder {
	if isNew && s.Persistent() {
		b.SessionCookie(s.ID)
	}
	return b
}

func (b *ResponseBuilder) cookiePath() string {
	if b.cfg.HostContextPath != "" {
		return b.cfg.HostContextPath
	}
	return "/"
}

// Status builds a response from the builder state alone.
func (b *ResponseBuilder) Status(code int) *hhttp.Response {
	resp := hhttp.NewResponse(code)
	resp.Body = b.body
	b.apply(resp, b.cookies)
	return resp
}

func (b *ResponseBuilder) apply(resp *hhttp.Response, cookies []cookie.Cookie) {
	for _, f := range b.header.Fields() {
		resp.Header.Set(f.Name, f.Values...)
	}
	for _, c := range cookies {
		resp.Header.Add("Set-Cookie", cookie.Encode(c))
	}
}

// Build finishes the response the engine produced for c.
func (b *ResponseBuilder) Build(c *Cycle) *hhttp.Response {
	resp := c.Response
	ctx := c.Context

	cookies := append(append([]cookie.Cookie(nil), b.cookies...), ctx.Cookies...)
	if ctx.closed && !ctx.Session.IsTemporary() {
		kept := cookies[:0]
		for _, ck := range cookies {
			if ck.Name != b.cfg.SessionCookieName {
				kept = append(kept, ck)
			}
		}
		cookies = append(kept, b.sessionCookieDeletion())
	}
	b.apply(resp, cookies)

	if len(ctx.BodyAppends) > 0 && isHTML(resp.ContentType()) {
		for _, fragment := range ctx.BodyAppends {
			resp.Body = append(resp.Body, fragment...)
		}
	}

	if ctx.RedirectPath != "" {
		resp.Header.Set("Location", ctx.RedirectPath)
		if ctx.Request.IsAjax() {
			resp.Header.Set("HX-Redirect", ctx.RedirectPath)
		}
		resp.StatusCode = http.StatusFound
	}

	if resp.StatusCode == http.StatusNoContent {
		resp.Body = nil
	}
	if ctx.API && len(resp.Body) > 0 && !resp.Header.Has("Content-Type") {
		resp.Header.Set("Content-Type", resource.JSON.ContentType())
	}
	resp.Status = http.StatusText(resp.StatusCode)
	return resp
}

// BuildStatic serves req from the resource resolver. A resource that cannot
// be read is logged and answered with an empty 200, or a 404 when
// StrictStatic is set.
func (b *ResponseBuilder) BuildStatic(req *Request) *hhttp.Response {
	kind, ok := resource.FromFileExtension(req.Path)
	if !ok {
		kind = resource.Binary
	}
	b.Header("Content-Type", kind.ContentType())

	data, err := b.readResource(req.Path)
	if err != nil {
		logger.Error("static_resource_failed", "path", req.Path, "error", err)
		if b.cfg.StrictStatic {
			return b.Status(http.StatusNotFound)
		}
		resp := b.Status(http.StatusOK)
		resp.SetKind(kind)
		return resp
	}

	b.body = data
	if b.cfg.DevMode {
		b.Header("Cache-Control", cacheNever)
	} else {
		b.Header("Cache-Control", cacheForever)
	}
	resp := b.Status(http.StatusOK)
	resp.SetKind(kind)
	return resp
}

// isHTML reads the header directly so the response's cached kind is not
// resolved before the content type is final.
func isHTML(contentType string) bool {
	k, _ := resource.FromContentType(contentType)
	return k.IsHTML()
}

func (b *ResponseBuilder) readResource(path string) ([]byte, error) {
	if b.resolver == nil {
		return nil, ErrNotFound
	}
	rc, err := b.resolver.Resolve(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
