package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tagvis/internal/config"
	"tagvis/internal/expansion"
	"tagvis/internal/metrics"
	"tagvis/internal/render"
	"tagvis/internal/vault"
)

// Deps are the parts of a running tagvis instance the server exposes.
type Deps struct {
	Engine *expansion.Engine
	// Latest receives the engine's snapshots; register it as a renderer.
	Latest *render.Latest
	// Provider answers raw queries on /api/query. Optional.
	Provider expansion.Provider
	// Store reports index statistics. Optional.
	Store   *vault.Store
	Metrics *metrics.Collector
	Vis     config.VisConfig
	// Load limits index-backed requests; the zero value disables it.
	Load LoadSheddingConfig
	// RunContext bounds runs started through POST /api/root. Request
	// contexts end with the response, so they cannot be used.
	RunContext context.Context
}

// Server represents the HTTP API server
type Server struct {
	router  *http.ServeMux
	server  *http.Server
	addr    string
	logger  *slog.Logger
	deps    Deps
	started time.Time

	// longPollTimeout bounds GET /api/tree?since=N
	longPollTimeout time.Duration
}

// NewServer creates a new HTTP server instance
func NewServer(addr string, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.Engine == nil || deps.Latest == nil {
		return nil, fmt.Errorf("api server needs an engine and a snapshot holder")
	}
	if deps.RunContext == nil {
		deps.RunContext = context.Background()
	}

	s := &Server{
		addr:            addr,
		logger:          logger,
		deps:            deps,
		router:          http.NewServeMux(),
		started:         time.Now(),
		longPollTimeout: 25 * time.Second,
	}

	s.registerRoutes()

	handler := s.applyMiddleware(s.router)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server shut down successfully")
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.server.Handler.ServeHTTP(w, r)
}

// applyMiddleware wraps the handler with middleware in the correct order
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Apply middleware in reverse order (last one wraps first)
	handler = LoadSheddingMiddleware(s.deps.Load, s.deps.Metrics)(handler)
	handler = RecoveryMiddleware(s.logger)(handler)
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware()(handler)
	handler = CORSMiddleware()(handler)
	return handler
}
