// Package core is the HTTP chassis of the dispatch API: the chi router,
// the global middleware chain, response helpers, request validation and
// the health endpoint. Domain handlers register themselves through
// V1RouteRegistrars.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"relaunch/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
// Implementations record request latency and count metrics to CloudWatch
// or equivalent backends.
type MetricsCollector interface {
	// RecordRequest records API request metrics including latency and count.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Server encapsulates all dependencies of the HTTP API, allowing for easy
// injection during testing.
type Server struct {
	Config       *config.Config
	Logger       *slog.Logger
	Validator    *Validator
	Metrics      MetricsCollector
	HealthProbes []HealthProbe

	// V1RouteRegistrars mount domain handlers under /v1. They are supplied by
	// the entrypoint so core never imports handler packages.
	V1RouteRegistrars []func(chi.Router)

	// OnShutdown runs in order during Shutdown (e.g. closing the DB pool).
	OnShutdown []func()

	router *chi.Mux
}

// NewServer initializes dependencies and prepares the router. Routes are
// mounted separately by MountRoutes so tests can customize registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown runs the registered shutdown hooks.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	for _, fn := range s.OnShutdown {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("shutdown interrupted: %w", err)
		}
		fn()
	}
	s.Logger.Info("server shutdown complete")
	return nil
}
