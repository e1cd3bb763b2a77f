// Package server hosts the MCP endpoint and the health route over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"excel-mcp/internal/config"
)

// ServiceName is reported by the health route.
const ServiceName = "mcp-excel-server"

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// HealthCheck reports the state of one dependency on the health route.
type HealthCheck struct {
	Name  string
	Check func() (healthy bool, detail any)
}

// NewRouter routes /health and /mcp. Rate limiting and bearer auth apply to
// /mcp only.
func NewRouter(mcpHandler http.Handler, cfg config.ServerConfig, logger zerolog.Logger, checks ...HealthCheck) chi.Router {
	r := chi.NewRouter()

	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("HTTP request")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/health", Health(checks...))

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(cfg.RateLimit, cfg.RateBurst))
		r.Use(RequireJWT(cfg.AuthSecret))
		r.Handle("/mcp", mcpHandler)
	})

	return r
}

type healthReport struct {
	Status  string         `json:"status"`
	Service string         `json:"service"`
	Checks  map[string]any `json:"checks,omitempty"`
}

// Health reports liveness. The route always answers 200; a failing check
// turns the status to "degraded".
func Health(checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := healthReport{Status: "healthy", Service: ServiceName}
		for _, c := range checks {
			healthy, detail := c.Check()
			if !healthy {
				report.Status = "degraded"
			}
			if report.Checks == nil {
				report.Checks = make(map[string]any, len(checks))
			}
			report.Checks[c.Name] = detail
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	}
}

// Server is the HTTP listener.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

// New creates a server for handler listening on cfg's address.
func New(cfg config.ServerConfig, addr string, handler http.Handler, logger zerolog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger.With().Str("component", "server").Logger(),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Server starting")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("Server stopped gracefully")
	return nil
}
