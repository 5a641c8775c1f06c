package http

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"

	"github.com/ju4n97/neurocalc/internal/service"
	"github.com/ju4n97/neurocalc/internal/xfs"
)

//go:embed web
var webFS embed.FS

// Options configures the HTTP server.
type Options struct {
	// ModelsDir is served under /models/ when set.
	ModelsDir    string
	Version      string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves the calculator API and page.
type Server struct {
	server *http.Server
	cancel context.CancelFunc
}

// NewServer creates a Server for calc.
func NewServer(opts Options, calc *service.Calculator) *Server {
	mux := http.NewServeMux()

	version := opts.Version
	if version == "" {
		version = "1.0.0"
	}
	api := humago.New(mux, huma.DefaultConfig("neurocalc", version))

	RegisterHealth(api)
	NewCalculatorHandler(api, calc)

	if opts.ModelsDir != "" {
		dir := xfs.ExpandTilde(opts.ModelsDir)
		mux.Handle("GET /models/", http.StripPrefix("/models/", http.FileServer(http.Dir(dir))))
	}

	page, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(fmt.Sprintf("embedded page: %v", err))
	}
	mux.Handle("GET /", http.FileServerFS(page))

	handler := Chain(
		RecoveryMiddleware,
		LoggerMiddleware,
	)(mux)

	// Streams hang off baseCtx so Stop can end them before Shutdown waits.
	baseCtx, cancel := context.WithCancel(context.Background())

	return &Server{
		server: &http.Server{
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
			Addr:              fmt.Sprintf(":%d", opts.Port),
			Handler:           handler,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      opts.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
		cancel: cancel,
	}
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until the server stops.
func (s *Server) Serve(ln net.Listener) error {
	slog.Info("Starting HTTP server", "addr", ln.Addr().String())

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
