package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kepler-sentinel-go/internal/config"
	"kepler-sentinel-go/internal/services/health"
)

type HealthHandler struct {
	cfg     *config.Config
	monitor *health.Monitor
	started time.Time
}

func NewHealthHandler(cfg *config.Config, monitor *health.Monitor) *HealthHandler {
	return &HealthHandler{cfg: cfg, monitor: monitor, started: time.Now()}
}

type HealthResponse struct {
	Status     string                   `json:"status" example:"healthy"`
	InstanceID string                   `json:"instance_id" example:"sentinel-1"`
	Components []health.ComponentStatus `json:"components"`
	CheckedAt  time.Time                `json:"checked_at"`
}

type InfoResponse struct {
	InstanceID   string    `json:"instance_id" example:"sentinel-1"`
	Status       string    `json:"status" example:"running"`
	Version      string    `json:"version" example:"1.0.0"`
	Environment  string    `json:"environment" example:"development"`
	StartTime    time.Time `json:"start_time"`
	Capabilities []string  `json:"capabilities"`
}

// ErrorResponse is returned by every failing endpoint
type ErrorResponse struct {
	Error string `json:"error" example:"zone \"gate\" not found"`
	Field string `json:"field,omitempty" example:"tracking.metric"`
}

// SuccessResponse acknowledges a command
type SuccessResponse struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message" example:"Monitoring configuration reloaded"`
}

// HealthCheck godoc
// @Summary Health check
// @Description Aggregated component health; 503 when a critical component fails
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	report := h.monitor.Check()
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, HealthResponse{
		Status:     report.Status,
		InstanceID: h.cfg.InstanceID,
		Components: report.Components,
		CheckedAt:  report.CheckedAt,
	})
}

// Info godoc
// @Summary Instance information
// @Description Basic instance information and capabilities
// @Tags health
// @Produce json
// @Success 200 {object} InfoResponse
// @Router / [get]
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, InfoResponse{
		InstanceID:  h.cfg.InstanceID,
		Status:      "running",
		Version:     h.cfg.Version,
		Environment: h.cfg.Environment,
		StartTime:   h.started,
		Capabilities: []string{
			"zone_intrusion",
			"alert_deduplication",
			"websocket_stream",
			"nats_fanout",
		},
	})
}
