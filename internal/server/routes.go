package server

import (
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/fragstat/fragstat/internal/observability"
	"github.com/fragstat/fragstat/internal/security"
	"github.com/fragstat/fragstat/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	health := s.opts.Health
	s.router.Get("/health", health.HealthHandler)
	s.router.Get("/health/live", health.LivenessHandler)
	s.router.Get("/health/ready", health.ReadinessHandler)
	s.router.Get("/health/startup", health.StartupHandler)

	s.router.Get("/version", handlers.VersionHandler)
	s.router.Get("/metrics", MetricsHandler)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(corsMiddleware(s.opts.Gate))
		if s.opts.Gate != nil {
			r.Use(security.Middleware(s.opts.Gate))
		}

		r.Get("/home", s.api.Home)
		r.Get("/games", s.api.Games)
		r.Get("/matches", s.api.Matches)
		r.Get("/matches/{id}", s.api.Match)
		r.Post("/matches/{id}/odds", s.api.Odds)
		r.Get("/tournaments", s.api.Tournaments)
		r.Get("/tournaments/{id}/standings", s.api.Standings)
		r.Get("/teams", s.api.Teams)
		r.Get("/teams/{id}/roster", s.api.Roster)
		r.Get("/players", s.api.Players)
	})

	if s.opts.PprofEnabled {
		s.router.Mount("/debug", middleware.Profiler())
	}

	s.registerAdminEndpoint()
}

// registerAdminEndpoint exposes the gofulmen signal endpoint when an admin
// token is configured.
func (s *Server) registerAdminEndpoint() {
	logger := observability.ServerLogger
	if s.opts.AdminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no admin token set)")
		}
		return
	}

	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: s.opts.AdminToken,
		RateLimit: 10,
		RateBurst: 5,
	})
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
