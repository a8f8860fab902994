package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	hhttp "github.com/abdul-hamid-achik/hitwire/packages/http"
	"github.com/abdul-hamid-achik/hitwire/packages/logger"
	"github.com/abdul-hamid-achik/hitwire/packages/resource"
	"github.com/abdul-hamid-achik/hitwire/packages/session"
)

// ErrNotFound is returned by engines that have nothing to serve for a path.
// The handler answers it with a 404.
var ErrNotFound = errors.New("not found")

type OutcomeKind uint8

const (
	// OutcomeContinue completes the cycle with what the engine produced.
	OutcomeContinue OutcomeKind = iota
	// OutcomeSwitch renders another template in place of the current one.
	OutcomeSwitch
	// OutcomeAbort stops the cycle and responds with the response as it is.
	OutcomeAbort
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeContinue:
		return "continue"
	case OutcomeSwitch:
		return "switch"
	case OutcomeAbort:
		return "abort"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(k))
	}
}

// Outcome is the result of an engine step.
type Outcome struct {
	Kind     OutcomeKind
	Template string
	Params   map[string]any
}

func Continue() Outcome {
	return Outcome{Kind: OutcomeContinue}
}

func SwitchTo(template string, params map[string]any) Outcome {
	return Outcome{Kind: OutcomeSwitch, Template: template, Params: params}
}

func Abort() Outcome {
	return Outcome{Kind: OutcomeAbort}
}

// Engine serves API requests by filling in c.Response.
type Engine interface {
	Serve(ctx context.Context, c *Cycle) (Outcome, error)
}

// TemplateEngine renders the page called name. Names carry no leading slash.
type TemplateEngine interface {
	Render(ctx context.Context, name string, c *Cycle) ([]byte, Outcome, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, c *Cycle) (Outcome, error)

func (f EngineFunc) Serve(ctx context.Context, c *Cycle) (Outcome, error) {
	return f(ctx, c)
}

// Cycle binds the context, session and response of one request for the
// engines.
type Cycle struct {
	Context  *Context
	Request  *Request
	Response *hhttp.Response

	store session.Store
	now   func() time.Time
}

func newCycle(c *Context, store session.Store, now func() time.Time) *Cycle {
	return &Cycle{
		Context:  c,
		Request:  c.Request,
		Response: hhttp.NewResponse(200),
		store:    store,
		now:      now,
	}
}

// Session is nil for stateless requests.
func (c *Cycle) Session() *session.Session {
	return c.Context.Session
}

// InitSession signs the visitor in with a new session when the request has
// none or a temporary one.
func (c *Cycle) InitSession() error {
	if c.store == nil {
		return fmt.Errorf("no session store")
	}
	return c.Context.InitSession(c.store, c.now().Unix())
}

// Run hands the request to the engine. Page requests may switch template
// once; a second switch keeps the body already rendered.
func (c *Cycle) Run(ctx context.Context, api Engine, pages TemplateEngine) error {
	if c.Context.API {
		if api == nil {
			return ErrNotFound
		}
		out, err := api.Serve(ctx, c)
		if err != nil {
			return err
		}
		if out.Kind == OutcomeSwitch {
			logger.Warn("switch_ignored_for_api", "path", c.Request.Path, "template", out.Template)
		}
		return nil
	}

	if pages == nil {
		return ErrNotFound
	}
	name := strings.TrimPrefix(c.Request.Path, "/")
	for {
		body, out, err := pages.Render(ctx, name, c)
		if err != nil {
			return err
		}
		switch out.Kind {
		case OutcomeAbort:
			return nil
		case OutcomeSwitch:
			if c.Context.Switch(out.Template, out.Params) {
				logger.Debug("template_switch", "from", name, "to", out.Template)
				name = strings.TrimPrefix(out.Template, "/")
				continue
			}
		}
		c.Response.Body = body
		if !c.Response.Header.Has("Content-Type") {
			c.Response.Header.Set("Content-Type", resource.HTML.ContentType())
		}
		return nil
	}
}

// Finish persists the session: saved when still open, deleted when the
// engine closed it. Global and temporary sessions are left alone.
func (c *Cycle) Finish() error {
	s := c.Context.Session
	if s == nil || !s.Persistent() || c.store == nil {
		return nil
	}
	if c.Context.closed {
		logger.Debug("session_deleted", "id", s.ID)
		return c.store.Delete(s.ID)
	}
	return c.store.Save(s)
}
