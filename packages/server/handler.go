package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"

	hhttp "github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/logger"
	"github.com/abdul-hamid-achik/hitwire/packages/session"
)

// DefaultMaxBodySize caps inbound request bodies read by the adapters.
const DefaultMaxBodySize = 10 << 20

// Observer receives one event per served request, for metrics.
type Observer interface {
	ObserveRequest(method string, status int, d time.Duration, api bool)
}

// Handler dispatches inbound requests: path normalization, static
// resources, session resolution, the engine cycle and the response.
type Handler struct {
	cfg      Config
	store    session.Store
	factory  ContextFactory
	resolver ResourceResolver
	engine   Engine
	pages    TemplateEngine
	locks    *sessionLocks
	executor hhttp.Executor
	observer Observer
	now      func() time.Time
	maxBody  int64
}

type Option func(*Handler)

// WithSessionStore replaces the default in-memory store.
func WithSessionStore(s session.Store) Option {
	return func(h *Handler) {
		h.store = s
	}
}

func WithContextFactory(f ContextFactory) Option {
	return func(h *Handler) {
		h.factory = f
	}
}

func WithResourceResolver(r ResourceResolver) Option {
	return func(h *Handler) {
		h.resolver = r
	}
}

// WithEngine sets the engine serving API requests.
func WithEngine(e Engine) Option {
	return func(h *Handler) {
		h.engine = e
	}
}

// WithTemplateEngine sets the engine rendering pages.
func WithTemplateEngine(t TemplateEngine) Option {
	return func(h *Handler) {
		h.pages = t
	}
}

// WithPerSessionLock serializes API requests flagged LockNeeded that share
// a session id.
func WithPerSessionLock() Option {
	return func(h *Handler) {
		h.locks = &sessionLocks{held: map[string]*sessionLock{}}
	}
}

// WithExecutor installs ex in every request context, so async client calls
// made by the engine run on ex.
func WithExecutor(ex hhttp.Executor) Option {
	return func(h *Handler) {
		h.executor = ex
	}
}

func WithObserver(o Observer) Option {
	return func(h *Handler) {
		h.observer = o
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

func WithMaxBodySize(n int64) Option {
	return func(h *Handler) {
		h.maxBody = n
	}
}

func NewHandler(cfg Config, opts ...Option) (*Handler, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Handler{
		cfg:     cfg,
		factory: DefaultContextFactory,
		now:     time.Now,
		maxBody: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.store == nil {
		h.store = session.NewMemoryStore()
	}
	return h, nil
}

func (h *Handler) Config() Config {
	return h.cfg
}

func (h *Handler) Store() session.Store {
	return h.store
}

// Handle serves req. A response delay set by the engine is waited out here,
// ending early when ctx is done.
func (h *Handler) Handle(ctx context.Context, req *Request) *hhttp.Response {
	start := h.now()
	resp, api := h.handle(ctx, req)

	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	d := h.now().Sub(start)
	resp.Duration = d
	if h.observer != nil {
		h.observer.ObserveRequest(req.Method, resp.StatusCode, d, api)
	}
	logger.Debug("request_served", "id", req.ID, "method", req.Method, "path", req.PathOriginal,
		"status", resp.StatusCode, "ms", d.Milliseconds())
	return resp
}

func (h *Handler) handle(ctx context.Context, req *Request) (*hhttp.Response, bool) {
	h.normalize(req)

	c := h.factory(h.cfg, req)
	if !c.API && req.IsForStaticResource() {
		return NewResponseBuilder(h.cfg, h.resolver).BuildStatic(req), false
	}

	if c.Session == nil && !c.Stateless {
		if resp := h.resolveSession(c); resp != nil {
			return resp, c.API
		}
	}

	cycle := newCycle(c, h.store, h.now)
	if h.locks != nil && c.API && c.LockNeeded {
		unlock := h.locks.lock(c.SessionID())
		defer unlock()
	}
	if h.executor != nil {
		ctx = hhttp.WithExecutor(ctx, h.executor)
	}

	err := cycle.Run(ctx, h.engine, h.pages)
	if ferr := cycle.Finish(); ferr != nil {
		logger.Error("session_save_failed", "id", c.SessionID(), "error", ferr)
	}
	if errors.Is(err, ErrNotFound) {
		return NewResponseBuilder(h.cfg, h.resolver).Status(http.StatusNotFound), c.API
	}
	if err != nil {
		logger.Error("handle_failed", "id", req.ID, "path", req.Path, "error", err)
		return NewResponseBuilder(h.cfg, h.resolver).Status(http.StatusInternalServerError), c.API
	}

	rb := NewResponseBuilder(h.cfg, h.resolver).Session(c.Session, c.NewSession)
	return rb.Build(cycle), c.API
}

func (h *Handler) normalize(req *Request) {
	if cp := h.cfg.HostContextPath; h.cfg.StripContextPath && cp != "" {
		if req.Path == cp || strings.HasPrefix(req.Path, cp+"/") {
			req.Path = req.Path[len(cp):]
		}
	}
	if req.Path == "" || req.Path == "/" {
		req.Path = h.cfg.HomePagePath
	}
}

// resolveSession assigns c.Session, or returns the response that ends the
// request when there is none.
func (h *Handler) resolveSession(c *Context) *hhttp.Response {
	req := c.Request
	now := h.now().Unix()
	id, hasCookie := c.SessionCookieValue()

	s, ok, err := session.Lookup(h.store, id, now, h.cfg.SessionExpiry)
	if err != nil {
		logger.Error("session_lookup_failed", "id", id, "error", err)
		return NewResponseBuilder(h.cfg, h.resolver).Status(http.StatusInternalServerError)
	}
	switch {
	case ok:
		c.Session = s
	case h.cfg.GlobalSession:
		c.Session = session.Global
	case h.cfg.AutoCreateSession:
		s, err := h.store.Create(now, now+h.cfg.SessionExpiry)
		if err != nil {
			logger.Error("session_create_failed", "error", err)
			return NewResponseBuilder(h.cfg, h.resolver).Status(http.StatusInternalServerError)
		}
		logger.Debug("session_created", "id", s.ID, "path", req.Path)
		c.Session = s
		c.NewSession = true
	case req.Path == h.cfg.SignInPath || req.Path == h.cfg.SignOutPath:
		c.Session = session.Temporary
	default:
		logger.Warn("session_not_found", "id", req.ID, "path", req.Path)
		rb := NewResponseBuilder(h.cfg, h.resolver)
		if hasCookie {
			rb.DeleteSessionCookie()
		}
		if req.IsAjax() {
			rb.AjaxRedirect(h.cfg.redirectPath())
		} else {
			rb.Location(h.cfg.redirectPath())
		}
		return rb.Status(http.StatusFound)
	}
	return nil
}

// ServeHTTP adapts the handler to net/http.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, err := h.fromHTTP(w, r)
	if err != nil {
		logger.Warn("request_body_failed", "path", r.URL.Path, "error", err)
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	resp := h.Handle(r.Context(), req)

	for _, f := range resp.Header.Fields() {
		if skipHeader(f.Name) {
			continue
		}
		for _, v := range f.Values {
			w.Header().Add(f.Name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if len(resp.Body) > 0 {
		_, _ = w.Write(resp.Body)
	}
}

func (h *Handler) fromHTTP(w http.ResponseWriter, r *http.Request) (*Request, error) {
	req := NewRequest(r.Method, r.URL.Path)
	req.Query = r.URL.Query()
	req.Header = hhttp.HeaderFromHTTP(r.Header)
	req.Host = r.Host
	req.RemoteAddr = r.RemoteAddr
	if id := r.Header.Get("X-Request-Id"); id != "" {
		req.ID = id
	}
	if r.Body == nil {
		return req, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	req.Body = body
	return req, nil
}

// FastHandler adapts the handler to fasthttp. The request context is the
// fasthttp.RequestCtx, which is done when the server shuts down.
func (h *Handler) FastHandler() fasthttp.RequestHandler {
	return func(fc *fasthttp.RequestCtx) {
		resp := h.Handle(fc, fromFast(fc))

		fc.SetStatusCode(resp.StatusCode)
		for _, f := range resp.Header.Fields() {
			if skipHeader(f.Name) {
				continue
			}
			if strings.EqualFold(f.Name, "Content-Type") {
				fc.SetContentType(f.Values[0])
				continue
			}
			for _, v := range f.Values {
				fc.Response.Header.Add(f.Name, v)
			}
		}
		fc.SetBody(resp.Body)
	}
}

func fromFast(fc *fasthttp.RequestCtx) *Request {
	req := NewRequest(string(fc.Method()), string(fc.Path()))
	req.Query, _ = url.ParseQuery(string(fc.QueryArgs().QueryString()))
	fc.Request.Header.VisitAll(func(k, v []byte) {
		req.Header.Add(string(k), string(v))
	})
	req.Body = append([]byte(nil), fc.PostBody()...)
	req.Host = string(fc.Host())
	req.RemoteAddr = fc.RemoteAddr().String()
	if id := req.Header.Get("X-Request-Id"); id != "" {
		req.ID = id
	}
	return req
}

// skipHeader drops framing headers the listener computes itself.
func skipHeader(name string) bool {
	return strings.EqualFold(name, "Content-Length") || strings.EqualFold(name, "Transfer-Encoding")
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type sessionLocks struct {
	mu   sync.Mutex
	held map[string]*sessionLock
}

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	sl, ok := l.held[id]
	if !ok {
		sl = &sessionLock{}
		l.held[id] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.mu.Lock()
	return func() {
		sl.mu.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.held, id)
		}
		l.mu.Unlock()
	}
}
