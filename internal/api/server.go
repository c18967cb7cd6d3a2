package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/api/handlers"
	"kepler-sentinel-go/internal/config"
	"kepler-sentinel-go/internal/services"
)

type Server struct {
	config    *config.Config
	container *services.ServiceContainer
	router    *gin.Engine
	server    *http.Server

	healthHandler *handlers.HealthHandler
	alertHandler  *handlers.AlertHandler
	zoneHandler   *handlers.ZoneHandler
	systemHandler *handlers.SystemHandler
}

func NewServer(cfg *config.Config, container *services.ServiceContainer) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:        cfg,
		container:     container,
		router:        gin.New(),
		healthHandler: handlers.NewHealthHandler(cfg, container.Health),
		alertHandler:  handlers.NewAlertHandler(container.History, container.Dedup),
		zoneHandler:   handlers.NewZoneHandler(container.Registry, container.ReloadMonitoring),
		systemHandler: handlers.NewSystemHandler(cfg, container),
	}

	s.setupMiddleware()
	s.setupRoutes()
	s.setupSwagger()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Int("port", cfg.Port).Msg("API server configured")
	return s
}

// Handler returns the router, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer returns the underlying server for supervision
func (s *Server) HTTPServer() *http.Server {
	return s.server
}
