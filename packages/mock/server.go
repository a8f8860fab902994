package mock

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/abdul-hamid-achik/hitwire/packages/logger"
	"github.com/abdul-hamid-achik/hitwire/packages/server"
)

const shutdownTimeout = 5 * time.Second

// Server listens for requests and hands them to a server.Handler, over
// net/http or fasthttp.
type Server struct {
	handler *server.Handler
	port    int
	fast    bool
	extra   map[string]http.Handler
}

type ServerOption func(*Server)

func WithPort(port int) ServerOption {
	return func(s *Server) {
		s.port = port
	}
}

// WithFastHTTP serves with fasthttp instead of net/http.
func WithFastHTTP(fast bool) ServerOption {
	return func(s *Server) {
		s.fast = fast
	}
}

// WithHandle serves path with h instead of the request handler, e.g. a
// metrics endpoint.
func WithHandle(path string, h http.Handler) ServerOption {
	return func(s *Server) {
		s.extra[path] = h
	}
}

func NewServer(h *server.Handler, opts ...ServerOption) *Server {
	s := &Server{handler: h, port: 3000, extra: map[string]http.Handler{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Addr() string {
	return fmt.Sprintf(":%d", s.port)
}

// StartWithContext listens on the configured port until ctx is done.
func (s *Server) StartWithContext(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger.Info("mock_server_starting", "addr", ln.Addr().String(), "fasthttp", s.fast)
	if s.fast {
		return s.serveFast(ctx, ln)
	}

	mux := http.NewServeMux()
	for path, h := range s.extra {
		mux.Handle(path, h)
	}
	mux.Handle("/", s.handler)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) serveFast(ctx context.Context, ln net.Listener) error {
	handle := s.handler.FastHandler()
	extra := make(map[string]fasthttp.RequestHandler, len(s.extra))
	for path, h := range s.extra {
		extra[path] = fasthttpadaptor.NewFastHTTPHandler(h)
	}
	srv := &fasthttp.Server{
		Handler: func(fc *fasthttp.RequestCtx) {
			if h, ok := extra[string(fc.Path())]; ok {
				h(fc)
				return
			}
			handle(fc)
		},
		Name: "hitwire",
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown()
	}()

	return srv.Serve(ln)
}
