package mock

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hitwire/packages/builtin"
	"github.com/abdul-hamid-achik/hitwire/packages/server"
)

var varPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// scope resolves template expressions for one request:
//
//	{{id}}                 path parameter, then file variable, then env
//	{{$uuid()}}            builtin function
//	{{request.body.a.b}}   JSON body path
//	{{request.query.q}}    query parameter, empty when missing
//	{{request.header.X}}   request header, empty when missing
//	{{request.path}}, {{request.method}}, {{request.id}}
//	{{session.key}}, {{session.id}}
type scope struct {
	cycle    *server.Cycle
	params   map[string]string
	vars     map[string]string
	registry *builtin.Registry
	body     gjson.Result
	bodyOK   bool
}

func newScope(c *server.Cycle, params, vars map[string]string, registry *builtin.Registry) *scope {
	s := &scope{cycle: c, params: params, vars: vars, registry: registry}
	if gjson.ValidBytes(c.Request.Body) {
		s.body = gjson.ParseBytes(c.Request.Body)
		s.bodyOK = true
	}
	return s
}

func (s *scope) render(input string) string {
	if !strings.Contains(input, "{{") {
		return input
	}
	return varPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := strings.TrimSpace(match[2 : len(match)-2])
		if v, ok := s.lookup(name); ok {
			return v
		}
		return match
	})
}

func (s *scope) lookup(name string) (string, bool) {
	if strings.HasPrefix(name, "$") {
		if v, ok := s.registry.Call(strings.TrimPrefix(name, "$")); ok {
			return fmt.Sprint(v), true
		}
		return "", false
	}
	if rest, ok := strings.CutPrefix(name, "request."); ok {
		return s.request(rest)
	}
	if rest, ok := strings.CutPrefix(name, "session."); ok {
		return s.session(rest)
	}
	if v, ok := s.params[name]; ok {
		return v, true
	}
	if v, ok := s.vars[name]; ok {
		return v, true
	}
	if v := os.Getenv(name); v != "" {
		return v, true
	}
	return "", false
}

func (s *scope) request(name string) (string, bool) {
	req := s.cycle.Request
	switch {
	case name == "path":
		return req.Path, true
	case name == "method":
		return req.Method, true
	case name == "id":
		return req.ID, true
	case name == "body":
		return string(req.Body), true
	case strings.HasPrefix(name, "body."):
		if !s.bodyOK {
			return "", false
		}
		r := s.body.Get(strings.TrimPrefix(name, "body."))
		if !r.Exists() {
			return "", false
		}
		return r.String(), true
	case strings.HasPrefix(name, "query."):
		return req.Query.Get(strings.TrimPrefix(name, "query.")), true
	case strings.HasPrefix(name, "header."):
		return req.Header.Get(strings.TrimPrefix(name, "header.")), true
	}
	return "", false
}

func (s *scope) session(key string) (string, bool) {
	sess := s.cycle.Session()
	if sess == nil {
		return "", false
	}
	if key == "id" {
		return sess.ID, true
	}
	v, ok := sess.Get(key)
	if !ok {
		return "", false
	}
	return fmt.Sprint(v), true
}
