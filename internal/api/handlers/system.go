package handlers

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"kepler-sentinel-go/internal/config"
	"kepler-sentinel-go/internal/logging"
	"kepler-sentinel-go/internal/models"
	"kepler-sentinel-go/internal/services"
	"kepler-sentinel-go/internal/services/eventbus"
	"kepler-sentinel-go/internal/services/pipeline"
	"kepler-sentinel-go/internal/services/tracking"
)

// SystemHandler serves pipeline state, settings and diagnostics
type SystemHandler struct {
	cfg       *config.Config
	container *services.ServiceContainer
}

func NewSystemHandler(cfg *config.Config, container *services.ServiceContainer) *SystemHandler {
	return &SystemHandler{cfg: cfg, container: container}
}

type DiagnosticsResponse struct {
	InstanceID     string                                        `json:"instance_id"`
	Pipeline       pipeline.Stats                                `json:"pipeline"`
	Suppressed     map[string]map[models.SuppressionReason]int64 `json:"suppressed"`
	OpenEntries    int                                           `json:"open_entries"`
	ZoneVersion    uint64                                        `json:"zone_version"`
	Overflows      []models.ConsumerOverflow                     `json:"overflows"`
	Consumers      []eventbus.ConsumerStats                      `json:"consumers"`
	LastSequence   uint64                                        `json:"last_sequence"`
	WebSocketConns int                                           `json:"websocket_clients"`
	Runtime        RuntimeStats                                  `json:"runtime"`
	Timestamp      time.Time                                     `json:"timestamp"`
}

type RuntimeStats struct {
	MemoryMB   uint64 `json:"memory_mb"`
	Goroutines int    `json:"goroutines"`
	CPUCores   int    `json:"cpu_cores"`
	GoVersion  string `json:"go_version"`
}

// SettingsPayload is the JSON form of the runtime thresholds
type SettingsPayload struct {
	Metric            string  `json:"metric" example:"iou"`
	Assignment        string  `json:"assignment" example:"greedy"`
	MinIoU            float64 `json:"min_iou" example:"0.1"`
	MaxCenterDistance float64 `json:"max_center_distance" example:"75"`
	MaxMissedFrames   int     `json:"max_missed_frames" example:"5"`
	HistoryLength     int     `json:"history_length" example:"32"`
	Prediction        bool    `json:"prediction" example:"true"`
	Cooldown          string  `json:"cooldown" example:"10s"`
	MinConfidence     float64 `json:"min_confidence" example:"0.35"`
	SnapshotInterval  string  `json:"snapshot_interval" example:"1s"`
}

func payloadFromSettings(s pipeline.Settings) SettingsPayload {
	return SettingsPayload{
		Metric:            string(s.Tracking.Metric),
		Assignment:        string(s.Tracking.Assignment),
		MinIoU:            s.Tracking.MinIoU,
		MaxCenterDistance: s.Tracking.MaxCenterDistance,
		MaxMissedFrames:   s.Tracking.MaxMissedFrames,
		HistoryLength:     s.Tracking.HistoryLength,
		Prediction:        s.Tracking.Prediction,
		Cooldown:          s.Cooldown.String(),
		MinConfidence:     s.MinConfidence,
		SnapshotInterval:  s.SnapshotInterval.String(),
	}
}

func (p SettingsPayload) settings() (pipeline.Settings, error) {
	cooldown, err := time.ParseDuration(p.Cooldown)
	if err != nil {
		return pipeline.Settings{}, &models.ConfigError{Field: "alerting.cooldown", Reason: err.Error()}
	}
	interval, err := time.ParseDuration(p.SnapshotInterval)
	if err != nil {
		return pipeline.Settings{}, &models.ConfigError{Field: "alerting.snapshot_interval", Reason: err.Error()}
	}
	return pipeline.Settings{
		Tracking: tracking.Config{
			Metric:            tracking.MatchMetric(p.Metric),
			Assignment:        tracking.Assignment(p.Assignment),
			MinIoU:            p.MinIoU,
			MaxCenterDistance: p.MaxCenterDistance,
			MaxMissedFrames:   p.MaxMissedFrames,
			HistoryLength:     p.HistoryLength,
			Prediction:        p.Prediction,
		},
		Cooldown:         cooldown,
		MinConfidence:    p.MinConfidence,
		SnapshotInterval: interval,
	}, nil
}

// State godoc
// @Summary Current pipeline state
// @Description Live tracks and intrusion states after the most recent frame
// @Tags pipeline
// @Produce json
// @Success 200 {object} models.StateSnapshot
// @Router /state [get]
func (h *SystemHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.container.Engine.State())
}

// GetSettings godoc
// @Summary Runtime thresholds
// @Description Staged settings if an update is pending, otherwise the active ones
// @Tags pipeline
// @Produce json
// @Success 200 {object} SettingsPayload
// @Router /pipeline/settings [get]
func (h *SystemHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, payloadFromSettings(h.container.Engine.Settings()))
}

// UpdateSettings godoc
// @Summary Update runtime thresholds
// @Description Validated, then applied before the next frame
// @Tags pipeline
// @Accept json
// @Produce json
// @Param request body SettingsPayload true "New settings"
// @Success 202 {object} SettingsPayload
// @Failure 400 {object} ErrorResponse
// @Router /pipeline/settings [put]
func (h *SystemHandler) UpdateSettings(c *gin.Context) {
	// start from the current values so partial bodies only change what they name
	payload := payloadFromSettings(h.container.Engine.Settings())
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	settings, err := payload.settings()
	if err == nil {
		err = h.container.Engine.UpdateSettings(settings)
	}
	if err != nil {
		var cfgErr *models.ConfigError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Field: cfgErr.Field})
			return
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	logging.Info(c).
		Str("metric", payload.Metric).
		Str("cooldown", payload.Cooldown).
		Float64("min_confidence", payload.MinConfidence).
		Msg("Pipeline settings staged via API")
	c.JSON(http.StatusAccepted, payloadFromSettings(settings))
}

// Reset godoc
// @Summary Reset pipeline state
// @Description Drops all tracks, intrusion states and open entries before the next frame, without emitting alerts
// @Tags pipeline
// @Produce json
// @Success 202 {object} SuccessResponse
// @Router /pipeline/reset [post]
func (h *SystemHandler) Reset(c *gin.Context) {
	h.container.Engine.Reset()
	h.container.PublishSystem("Pipeline state reset")
	logging.Info(c).Msg("Pipeline reset requested via API")
	c.JSON(http.StatusAccepted, SuccessResponse{Success: true, Message: "Pipeline reset scheduled"})
}

// SystemEvents godoc
// @Summary Recent system events
// @Tags pipeline
// @Produce json
// @Success 200 {array} models.Event
// @Router /pipeline/events [get]
func (h *SystemHandler) SystemEvents(c *gin.Context) {
	c.JSON(http.StatusOK, h.container.History.SystemEvents())
}

// Diagnostics godoc
// @Summary Diagnostics
// @Description Pipeline counters, suppression counts, bus overflow reports and runtime stats
// @Tags system
// @Produce json
// @Success 200 {object} DiagnosticsResponse
// @Router /diagnostics [get]
func (h *SystemHandler) Diagnostics(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	sc := h.container
	c.JSON(http.StatusOK, DiagnosticsResponse{
		InstanceID:     h.cfg.InstanceID,
		Pipeline:       sc.Engine.Stats(),
		Suppressed:     sc.Dedup.SuppressedByReason(),
		OpenEntries:    len(sc.Dedup.OpenEntries()),
		ZoneVersion:    sc.Registry.Snapshot().Version,
		Overflows:      sc.Bus.Overflows(),
		Consumers:      sc.Bus.Stats(),
		LastSequence:   sc.Bus.LastSequence(),
		WebSocketConns: sc.Hub.ClientCount(),
		Runtime: RuntimeStats{
			MemoryMB:   m.Alloc / 1024 / 1024,
			Goroutines: runtime.NumGoroutine(),
			CPUCores:   runtime.NumCPU(),
			GoVersion:  runtime.Version(),
		},
		Timestamp: time.Now(),
	})
}
