package mock

import (
	"regexp"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// Route is a compiled route.
type Route struct {
	Method      string
	PathPattern string
	PathRegex   *regexp.Regexp
	Name        string
	Schema      *gojsonschema.Schema
	Response    *Response
}

// Response is the response template of a route.
type Response struct {
	StatusCode  int
	ContentType string
	Headers     map[string]string
	Body        string
	Delay       time.Duration
	SignIn      bool
	Session     map[string]string
	Cookies     map[string]string
	Redirect    string
	Close       bool
}

// Router matches requests to routes in declaration order.
type Router struct {
	routes []*Route
}

func NewRouter(routes ...*Route) *Router {
	return &Router{routes: routes}
}

func (r *Router) AddRoute(route *Route) {
	r.routes = append(r.routes, route)
}

func (r *Router) Routes() []*Route {
	return r.routes
}

// Match returns the first route for method and path and its path
// parameters. A route with method "*" matches any method.
func (r *Router) Match(method, path string) (*Route, map[string]string) {
	path = normalizePath(path)
	for _, route := range r.routes {
		if route.Method != "*" && !strings.EqualFold(route.Method, method) {
			continue
		}
		if params := matchPath(route, path); params != nil {
			return route, params
		}
	}
	return nil, nil
}

// Allowed lists the methods of the routes matching path, for 405 answers.
func (r *Router) Allowed(path string) []string {
	path = normalizePath(path)
	var methods []string
	for _, route := range r.routes {
		if matchPath(route, path) != nil {
			methods = append(methods, route.Method)
		}
	}
	return methods
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

func matchPath(route *Route, path string) map[string]string {
	if route.PathRegex != nil {
		if matches := route.PathRegex.FindStringSubmatch(path); matches != nil {
			params := make(map[string]string)
			for i, name := range route.PathRegex.SubexpNames() {
				if i > 0 && name != "" {
					params[name] = matches[i]
				}
			}
			return params
		}
	}
	if route.PathPattern == path {
		return map[string]string{}
	}
	return nil
}

var paramPattern = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// createPathRegex turns {{param}} segments into named groups; the rest of
// the pattern matches literally.
func createPathRegex(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, m := range paramPattern.FindAllStringSubmatchIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:m[0]]))
		b.WriteString("(?P<")
		b.WriteString(pattern[m[2]:m[3]])
		b.WriteString(">[^/]+)")
		last = m[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil
	}
	return re
}
