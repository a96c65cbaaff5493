// Package server provides the HTTP service for repackaging crates.
//
// Endpoints:
//   - POST /crates/{filename}?name=<new>[&old=<hint>][&publish=true]
//     Repackage the .crate in the request body and return the result.
//   - GET /crates/{name}/{version}/download - A published crate
//   - GET /crates/{name}/{version}/files?path=<dir> - List files in a published crate
//   - GET /crates/{name}/{version}/files/* - Contents of one file
//   - GET /health - Health check endpoint
//   - GET /metrics - Prometheus metrics
//
// The /crates/{name}/{version} routes and publishing need storage.url to be
// configured.
package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/git-pkgs/repackage/internal/config"
	"github.com/git-pkgs/repackage/internal/metrics"
	"github.com/git-pkgs/repackage/internal/storage"
)

// Store is the storage the server publishes to and browses.
type Store interface {
	storage.Storage
	io.Closer
}

// Server is the repackaging HTTP server.
type Server struct {
	cfg       *config.Config
	storage   Store // nil when publishing is disabled
	logger    *slog.Logger
	maxUpload int64
	http      *http.Server
}

// New creates a new Server with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	maxUpload, err := config.ParseSize(cfg.Server.MaxUploadSize)
	if err != nil {
		return nil, fmt.Errorf("parsing max upload size: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		maxUpload: maxUpload,
	}

	if cfg.Storage.URL != "" {
		store, err := storage.OpenBucket(context.Background(), cfg.Storage.URL)
		if err != nil {
			return nil, fmt.Errorf("initializing storage: %w", err)
		}
		s.storage = store
	}

	return s, nil
}

// Router builds the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(s.LoggerMiddleware)
	r.Use(middleware.Recoverer)

	r.Post("/crates/{filename}", s.handleRepackage)

	r.Route("/crates/{name}/{version}", func(r chi.Router) {
		r.Use(s.requireStorage)
		r.Get("/download", s.handleDownload)
		r.Get("/files", s.handleBrowseList)
		r.Get("/files/*", s.handleBrowseFile)
	})

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:         s.cfg.Server.Listen,
		Handler:      s.Router(),
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting server",
		"listen", s.cfg.Server.Listen,
		"storage", s.cfg.Storage.URL,
		"max_upload_size", s.cfg.Server.MaxUploadSize)

	return s.http.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error

	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "ok")
}

func (s *Server) requireStorage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.storage == nil {
			http.Error(w, "storage not configured", http.StatusNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
