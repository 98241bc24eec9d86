// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package server exposes the gate over HTTP. Routes are served by a
// gorilla/mux router wrapped in a CORS handler; every response body is JSON.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/pdiddy/evidence-engine/internal/gate"
	"github.com/pdiddy/evidence-engine/internal/journal"
	"github.com/pdiddy/evidence-engine/pkg/types"
)

// shutdownTimeout bounds graceful shutdown after the context ends.
const shutdownTimeout = 10 * time.Second

// History is the read side of the decision journal.
type History interface {
	Recent(ctx context.Context, opts journal.QueryOptions) ([]journal.Record, error)
	Get(ctx context.Context, id string) (journal.Record, error)
	Summary(ctx context.Context) (journal.Summary, error)
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables the history routes.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// Server routes HTTP requests to a gate.Engine.
type Server struct {
	engine  *gate.Engine
	history History
	cfg     types.ServerConfig
	log     *zap.Logger
	version string
	started time.Time

	router  *mux.Router
	handler http.Handler
}

// New creates a Server with its routes registered.
func New(engine *gate.Engine, cfg types.ServerConfig, opts ...Option) *Server {
	s := &Server{
		engine:  engine,
		cfg:     cfg,
		log:     zap.NewNop(),
		version: "dev",
		started: time.Now(),
		router:  mux.NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	s.handler = c.Handler(s.router)
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/fetch", s.handleFetch).Methods(http.MethodGet)
	api.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/providers/{name}/reset", s.handleProviderReset).Methods(http.MethodPost)
	api.HandleFunc("/decisions/{id}/outcome", s.handleOutcome).Methods(http.MethodPost)
	api.HandleFunc("/history", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history/summary", s.handleHistorySummary).Methods(http.MethodGet)
	api.HandleFunc("/history/{id}", s.handleHistoryGet).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not-found", fmt.Errorf("no route for %s %s", r.Method, r.URL.Path))
	})
}

// Handler returns the CORS-wrapped router.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on the configured address until ctx ends, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", zap.String("addr", s.cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %s: %w", s.cfg.Addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("server shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}
