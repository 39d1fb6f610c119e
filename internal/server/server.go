// Package server provides the HTTP API for MirrorAPI.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ParsaBazrpash/MirrorAPI/internal/config"
	"github.com/ParsaBazrpash/MirrorAPI/internal/retrieval"
)

// requestTimeout leaves room for a full generation call behind /chat and /generate.
const requestTimeout = 180 * time.Second

// Server is the HTTP server for the MirrorAPI endpoints.
type Server struct {
	service *retrieval.Service
	config  *config.Config
	logger  *zap.Logger
	server  *http.Server
}

// NewServer creates a server over the retrieval service. cfg supplies the listen address, the
// default ingest folder, and the storage paths reported by /status.
func NewServer(service *retrieval.Service, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		service: service,
		config:  cfg,
		logger:  logger,
	}
}

// Handler returns the router with every route and middleware installed.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Post("/ingest", s.handleIngest)
	r.Post("/chat", s.handleChat)
	r.Post("/generate", s.handleGenerate)
	r.Post("/diff", s.handleDiff)
	r.Get("/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
