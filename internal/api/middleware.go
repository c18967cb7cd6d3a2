package api

import (
	"kepler-sentinel-go/internal/api/middleware"
	"kepler-sentinel-go/internal/logging"
)

func (s *Server) setupMiddleware() {
	s.router.Use(logging.RequestContext())
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.Metrics())
	s.router.Use(middleware.Logger("/health", "/metrics", "/ws"))
	if s.config.APIRateLimit > 0 {
		s.router.Use(middleware.RateLimit(middleware.NewRateLimiter(s.config.APIRateLimit, s.config.APIRateBurst), "/health", "/metrics"))
	}
	s.router.Use(middleware.CORS())
}
