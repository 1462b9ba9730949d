package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/jononovo/5ducks-outreach/internal/config"
)

// Deps are the components the admin API exposes. Nil members disable the
// routes that need them.
type Deps struct {
	Drip        DripService
	Scheduler   SchedulerService
	Suppression SuppressionService
	DB          *sql.DB
	Redis       *redis.Client
}

// Server represents the admin API server
type Server struct {
	config  config.ServerConfig
	handler http.Handler
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	h := NewHandlers(deps.Drip, deps.Scheduler)
	health := NewHealthChecker(deps.DB, deps.Redis, deps.Drip, deps.Scheduler)
	var sh *SuppressionHandlers
	if deps.Suppression != nil {
		sh = NewSuppressionHandlers(deps.Suppression)
	}
	router := SetupRoutes(h, sh, health, cfg.CORSOrigins, cfg.AdminToken)

	return &Server{
		config:  cfg,
		handler: router,
		router:  router,
	}
}

// Start listens on the configured host and port. It blocks until the
// server stops; http.ErrServerClosed means a clean Shutdown. Without an
// admin token it refuses to listen.
func (s *Server) Start() error {
	return s.ListenAndServe(fmt.Sprintf("%s:%d", s.config.Host, s.config.Port))
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe(addr string) error {
	if s.config.AdminToken == "" {
		return ErrAdminTokenRequired
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the HTTP handler for testing
func (s *Server) Handler() http.Handler {
	return s.handler
}
