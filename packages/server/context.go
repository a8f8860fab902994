package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitwire/packages/cookie"
	"github.com/abdul-hamid-achik/hitwire/packages/logger"
	"github.com/abdul-hamid-achik/hitwire/packages/session"
)

// ContextFactory decides how a normalized request is served. It may
// pre-resolve a session, which skips the session lookup.
type ContextFactory func(cfg Config, req *Request) *Context

// DefaultContextFactory marks requests under the API prefix as API calls
// that need the per-session lock.
func DefaultContextFactory(cfg Config, req *Request) *Context {
	ctx := NewContext(cfg, req)
	if cfg.APIPrefix != "" && ctx.SetAPIIfPathStartsWith(cfg.APIPrefix) {
		ctx.LockNeeded = true
	}
	return ctx
}

// Context is the mutable state of one request. It is created by the
// ContextFactory, filled in by the engine during the cycle and read by the
// ResponseBuilder. It is never shared between requests.
type Context struct {
	Config  Config
	Request *Request
	Session *session.Session

	API            bool
	Stateless      bool
	HTTPGetAllowed bool
	LockNeeded     bool
	NewSession     bool

	RedirectPath   string
	BodyAppends    []string
	Cookies        []cookie.Cookie
	Variables      map[string]any
	SwitchTemplate string
	SwitchParams   map[string]any

	switched bool
	closed   bool
	nextID   int
}

func NewContext(cfg Config, req *Request) *Context {
	return &Context{Config: cfg, Request: req, Variables: map[string]any{}}
}

// SetAPIIfPathStartsWith marks the request as an API call when its path is
// under prefix. The resource path becomes the first segment after the
// prefix, and the request path keeps the prefix's trailing slash onwards:
// "/api/users/42" with prefix "/api/" has resource "/api/users" and path
// "/users/42".
func (c *Context) SetAPIIfPathStartsWith(prefix string) bool {
	path := c.Request.Path
	if prefix == "" || !strings.HasPrefix(path, prefix) {
		return false
	}
	c.API = true
	if pos := strings.IndexByte(path[len(prefix):], '/'); pos != -1 {
		c.Request.ResourcePath = path[:len(prefix)+pos]
	} else {
		c.Request.ResourcePath = path
	}
	c.Request.Path = path[len(prefix)-1:]
	return true
}

// SessionCookieValue returns the session id the client sent, if any.
func (c *Context) SessionCookieValue() (string, bool) {
	return c.Request.Cookie(c.Config.SessionCookieName)
}

// InitSession replaces a missing or temporary session with a new one, for
// engines that sign a visitor in.
func (c *Context) InitSession(store session.Store, now int64) error {
	if c.Session != nil && !c.Session.IsTemporary() {
		return nil
	}
	s, err := store.Create(now, now+c.Config.SessionExpiry)
	if err != nil {
		return err
	}
	c.Session = s
	c.NewSession = true
	logger.Debug("session_init", "id", s.ID)
	return nil
}

// Switch asks the cycle to render another template instead of the current
// one. Only the first call per request has an effect.
func (c *Context) Switch(template string, params map[string]any) bool {
	if c.switched {
		logger.Warn("switch_ignored", "template", template)
		return false
	}
	c.switched = true
	c.SwitchTemplate = template
	c.SwitchParams = params
	return true
}

func (c *Context) Switched() bool {
	return c.switched
}

// Close ends the session; it is deleted from the store after the cycle and
// its cookie is cleared.
func (c *Context) Close() {
	c.closed = true
}

// Closed is also true when there is no session to keep.
func (c *Context) Closed() bool {
	return c.closed || c.Session == nil || c.Session.IsTemporary()
}

// Redirect makes the response a 302 to path, whatever the engine sets.
func (c *Context) Redirect(path string) {
	c.RedirectPath = path
	logger.Debug("redirect_requested", "path", path)
}

// BodyAppend queues a fragment that is appended to an HTML response.
func (c *Context) BodyAppend(fragment string) {
	c.BodyAppends = append(c.BodyAppends, fragment)
}

func (c *Context) SetCookie(ck cookie.Cookie) {
	c.Cookies = append(c.Cookies, ck)
}

// NextID returns an id unique within the request.
func (c *Context) NextID() string {
	c.nextID++
	return strconv.Itoa(c.nextID) + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// SessionID is empty when there is no session.
func (c *Context) SessionID() string {
	if c.Session == nil {
		return ""
	}
	return c.Session.ID
}
