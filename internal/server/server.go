package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/driftcode/fimproxy/internal/config"
)

// Server is the HTTP front end for the completion proxy: it binds the chi
// router to the configured address and provides graceful shutdown support.
type Server struct {
	router  chi.Router
	addr    string
	httpSrv *http.Server
}

// NewServer builds a Server wired to predictor, serving the routes in
// SPEC_FULL.md's external interface table.
func NewServer(predictor *Predictor, cfg *config.Config, logger zerolog.Logger) *Server {
	h := &apiHandler{predictor: predictor, cfg: cfg, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/predict", h.handlePredict)
	r.Post("/predict/stream", h.handlePredictStream)
	r.Get("/health", h.handleHealth)
	r.Get("/config", h.handleConfig)
	r.Handle("/ui/*", h.handleUI())

	addr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.Port)

	srv := &Server{router: r, addr: addr}
	srv.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}
	return srv
}

// Router returns the underlying chi.Router, useful for tests.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start begins listening for HTTP connections on the configured address. It
// blocks until the server is shut down or encounters a fatal error.
func (s *Server) Start() error {
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("completion server: %w", err)
	}
	return nil
}

// StartTLS begins listening for HTTPS connections using the given
// certificate and key files.
func (s *Server) StartTLS(certFile, keyFile string) error {
	if err := s.httpSrv.ListenAndServeTLS(certFile, keyFile); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("completion server (TLS): %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests to
// complete within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
