package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kepler-sentinel-go/internal/websocket"
)

func (s *Server) setupRoutes() {
	s.router.GET("/", s.healthHandler.Info)
	s.router.GET("/health", s.healthHandler.HealthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	alerts := s.router.Group("/alerts")
	{
		alerts.GET("", s.alertHandler.ListAlerts)
		alerts.GET("/open", s.alertHandler.OpenEntries)
		alerts.GET("/download", s.alertHandler.DownloadCSV)
	}

	zones := s.router.Group("/zones")
	{
		zones.GET("", s.zoneHandler.ListZones)
		zones.POST("/reload", s.zoneHandler.Reload)
		zones.PUT("/:zone_id/active", s.zoneHandler.SetActive)
	}

	s.router.GET("/state", s.systemHandler.State)
	s.router.GET("/diagnostics", s.systemHandler.Diagnostics)

	pipeline := s.router.Group("/pipeline")
	{
		pipeline.GET("/settings", s.systemHandler.GetSettings)
		pipeline.PUT("/settings", s.systemHandler.UpdateSettings)
		pipeline.POST("/reset", s.systemHandler.Reset)
		pipeline.GET("/events", s.systemHandler.SystemEvents)
	}

	s.router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWS(s.container.Hub, c.Writer, c.Request)
	})
}
