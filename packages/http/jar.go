package http

import (
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/hitwire/packages/cookie"
)

// callJar is a cookie jar that lives for a single Invoke. It records every
// cookie regardless of domain or path, so Set-Cookie headers seen
// mid-redirect are not lost, but only sends a cookie back to hosts its
// Domain matches, or to the host that set it when it has no Domain.
type callJar struct {
	mu      sync.Mutex
	order   []string
	cookies map[string]*http.Cookie
	origins map[string]string
}

func newCallJar() *callJar {
	return &callJar{cookies: make(map[string]*http.Cookie), origins: make(map[string]string)}
}

func (j *callJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	origin := ""
	if u != nil {
		origin = strings.ToLower(u.Hostname())
	}
	for _, c := range cookies {
		if _, ok := j.cookies[c.Name]; !ok {
			j.order = append(j.order, c.Name)
		}
		j.cookies[c.Name] = c
		j.origins[c.Name] = origin
	}
}

func (j *callJar) Cookies(u *url.URL) []*http.Cookie {
	if u == nil {
		return nil
	}
	host := strings.ToLower(u.Hostname())
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]*http.Cookie, 0, len(j.cookies))
	for _, name := range j.order {
		c := j.cookies[name]
		if c.MaxAge < 0 {
			continue
		}
		if c.Domain != "" {
			if !domainMatch(host, c.Domain) {
				continue
			}
		} else if host != j.origins[name] {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// domainMatch reports whether host is domain or one of its subdomains.
func domainMatch(host, domain string) bool {
	d := strings.ToLower(strings.TrimPrefix(domain, "."))
	host = strings.ToLower(host)
	return host == d || strings.HasSuffix(host, "."+d)
}

// snapshot returns the jar contents in insertion order.
func (j *callJar) snapshot() []cookie.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]cookie.Cookie, 0, len(j.order))
	for _, name := range j.order {
		out = append(out, fromHTTPCookie(j.cookies[name]))
	}
	return out
}

func (j *callJar) clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.order = nil
	j.cookies = make(map[string]*http.Cookie)
	j.origins = make(map[string]string)
}

func fromHTTPCookie(c *http.Cookie) cookie.Cookie {
	out := cookie.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
	switch {
	case c.MaxAge > 0:
		out.MaxAge = cookie.Int64(int64(c.MaxAge))
	case c.MaxAge < 0:
		out.MaxAge = cookie.Int64(0)
	}
	switch c.SameSite {
	case http.SameSiteStrictMode:
		out.SameSite = cookie.SameSiteStrict
	case http.SameSiteLaxMode:
		out.SameSite = cookie.SameSiteLax
	case http.SameSiteNoneMode:
		out.SameSite = cookie.SameSiteNone
	}
	return out
}

// reconcileCookies keeps every Set-Cookie already on the response and adds a
// synthesized one for each jar cookie whose name was not seen there.
func reconcileCookies(h *Header, jar []cookie.Cookie) {
	seen := make(map[string]struct{})
	for _, v := range h.Values("Set-Cookie") {
		pair, _, _ := strings.Cut(v, ";")
		if name, _, ok := strings.Cut(pair, "="); ok {
			seen[strings.TrimSpace(name)] = struct{}{}
		}
	}
	for _, c := range jar {
		if _, ok := seen[c.Name]; ok {
			continue
		}
		seen[c.Name] = struct{}{}
		h.Add("Set-Cookie", cookie.Encode(c))
	}
}
