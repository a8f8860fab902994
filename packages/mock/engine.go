package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/hitwire/packages/builtin"
	"github.com/abdul-hamid-achik/hitwire/packages/cookie"
	"github.com/abdul-hamid-achik/hitwire/packages/logger"
	"github.com/abdul-hamid-achik/hitwire/packages/server"
)

// Engine serves requests from a routes file. It implements server.Engine
// for API requests and server.TemplateEngine for pages, so one routes file
// can back a whole handler.
type Engine struct {
	mu       sync.RWMutex
	router   *Router
	vars     map[string]string
	path     string
	registry *builtin.Registry
	delay    time.Duration
	verbose  bool
}

var (
	_ server.Engine         = (*Engine)(nil)
	_ server.TemplateEngine = (*Engine)(nil)
)

type Option func(*Engine)

// WithDelay adds a delay to every response.
func WithDelay(delay time.Duration) Option {
	return func(e *Engine) {
		e.delay = delay
	}
}

// WithVerbose logs every matched request at info level.
func WithVerbose(verbose bool) Option {
	return func(e *Engine) {
		e.verbose = verbose
	}
}

// WithRegistry replaces the builtin function registry.
func WithRegistry(r *builtin.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		router:   NewRouter(),
		vars:     map[string]string{},
		registry: builtin.NewRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Load replaces the routes with those of f. Schema paths are resolved
// against baseDir. On error the current routes are kept.
func (e *Engine) Load(f *File, baseDir string) error {
	routes, err := f.compile(baseDir)
	if err != nil {
		return err
	}
	vars := make(map[string]string, len(f.Variables))
	for k, v := range f.Variables {
		vars[k] = v
	}
	e.mu.Lock()
	e.router = NewRouter(routes...)
	e.vars = vars
	e.mu.Unlock()
	return nil
}

// LoadFile loads a routes file and remembers its path for Reload.
func (e *Engine) LoadFile(path string) error {
	f, err := LoadFile(path)
	if err != nil {
		return err
	}
	if err := e.Load(f, filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to load routes file %s: %w", path, err)
	}
	e.mu.Lock()
	e.path = path
	e.mu.Unlock()
	logger.Info("mock_routes_loaded", "path", path, "routes", len(f.Routes))
	return nil
}

// Reload reloads the file given to LoadFile.
func (e *Engine) Reload() error {
	e.mu.RLock()
	path := e.path
	e.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("no routes file loaded")
	}
	return e.LoadFile(path)
}

func (e *Engine) Routes() []*Route {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Route(nil), e.router.Routes()...)
}

func (e *Engine) snapshot() (*Router, map[string]string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.router, e.vars
}

// Serve answers an API request from the first matching route.
func (e *Engine) Serve(ctx context.Context, c *server.Cycle) (server.Outcome, error) {
	return e.respond(c, c.Request.Method, c.Request.Path)
}

// Render answers a page request. The rendered body is returned for the
// cycle to send; routes without a content type are sent as HTML.
func (e *Engine) Render(ctx context.Context, name string, c *server.Cycle) ([]byte, server.Outcome, error) {
	out, err := e.respond(c, c.Request.Method, "/"+name)
	if err != nil {
		return nil, out, err
	}
	return c.Response.Body, out, nil
}

func (e *Engine) respond(c *server.Cycle, method, path string) (server.Outcome, error) {
	router, vars := e.snapshot()
	route, params := router.Match(method, path)
	if route == nil {
		if allowed := router.Allowed(path); len(allowed) > 0 {
			c.Response.StatusCode = 405
			c.Response.Header.Set("Allow", strings.Join(allowed, ", "))
			e.log(c, nil, 405)
			return server.Abort(), nil
		}
		e.log(c, nil, 404)
		return server.Continue(), server.ErrNotFound
	}

	if route.Schema != nil {
		if problems := validate(route.Schema, c.Request.Body); len(problems) > 0 {
			body, _ := json.Marshal(map[string]any{"error": "request body does not match schema", "details": problems})
			c.Response.StatusCode = 400
			c.Response.Header.Set("Content-Type", "application/json")
			c.Response.Body = body
			e.log(c, route, 400)
			return server.Abort(), nil
		}
	}

	s := newScope(c, params, vars, e.registry)
	tpl := route.Response
	resp := c.Response

	if tpl.SignIn {
		if err := c.InitSession(); err != nil {
			return server.Continue(), err
		}
	}
	if sess := c.Session(); sess != nil && !sess.IsTemporary() {
		for k, v := range tpl.Session {
			sess.Set(k, s.render(v))
		}
	}

	resp.StatusCode = tpl.StatusCode
	for k, v := range tpl.Headers {
		resp.Header.Set(k, s.render(v))
	}
	if tpl.ContentType != "" {
		resp.Header.Set("Content-Type", tpl.ContentType)
	}
	resp.Body = []byte(s.render(tpl.Body))
	resp.Delay = tpl.Delay + e.delay

	for name, v := range tpl.Cookies {
		c.Context.SetCookie(cookie.Cookie{Name: name, Value: s.render(v), Path: "/"})
	}
	if tpl.Redirect != "" {
		c.Context.Redirect(s.render(tpl.Redirect))
	}
	if tpl.Close {
		c.Context.Close()
	}

	e.log(c, route, resp.StatusCode)
	return server.Continue(), nil
}

func validate(schema *gojsonschema.Schema, body []byte) []string {
	if len(body) == 0 {
		return []string{"request body is empty"}
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return []string{err.Error()}
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return problems
}

func (e *Engine) log(c *server.Cycle, route *Route, status int) {
	name := ""
	if route != nil {
		name = route.Name
	}
	if e.verbose {
		logger.Info("mock_request", "method", c.Request.Method, "path", c.Request.Path, "route", name, "status", status)
		return
	}
	logger.Debug("mock_request", "method", c.Request.Method, "path", c.Request.Path, "route", name, "status", status)
}
