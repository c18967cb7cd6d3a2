package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kepler-sentinel-go/internal/logging"
	"kepler-sentinel-go/internal/models"
	"kepler-sentinel-go/internal/services/zones"
)

type ZoneHandler struct {
	registry *zones.Registry
	reload   func() error
}

func NewZoneHandler(registry *zones.Registry, reload func() error) *ZoneHandler {
	return &ZoneHandler{registry: registry, reload: reload}
}

type ZoneView struct {
	models.Zone
	// ActiveNow combines the active flag with the schedule
	ActiveNow bool `json:"active_now"`
}

type ZoneListResponse struct {
	Version  uint64     `json:"version" example:"3"`
	LoadedAt time.Time  `json:"loaded_at"`
	Zones    []ZoneView `json:"zones"`
}

type SetActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// ListZones godoc
// @Summary List zones
// @Description Zones of the current configuration snapshot in load order
// @Tags zones
// @Produce json
// @Success 200 {object} ZoneListResponse
// @Router /zones [get]
func (h *ZoneHandler) ListZones(c *gin.Context) {
	snap := h.registry.Snapshot()
	now := time.Now()

	views := make([]ZoneView, 0, snap.Len())
	for _, z := range snap.Zones() {
		views = append(views, ZoneView{Zone: z, ActiveNow: z.ActiveAt(now)})
	}
	c.JSON(http.StatusOK, ZoneListResponse{Version: snap.Version, LoadedAt: snap.LoadedAt, Zones: views})
}

// SetActive godoc
// @Summary Enable or disable a zone
// @Description Takes effect from the next frame; tracks inside a disabled zone get an exit alert
// @Tags zones
// @Accept json
// @Produce json
// @Param zone_id path string true "Zone ID"
// @Param request body SetActiveRequest true "Desired state"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /zones/{zone_id}/active [put]
func (h *ZoneHandler) SetActive(c *gin.Context) {
	zoneID := c.Param("zone_id")
	logging.SetZone(c, zoneID)

	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "body must be {\"active\": true|false}"})
		return
	}
	if _, ok := h.registry.Snapshot().Zone(zoneID); !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "zone not found: " + zoneID})
		return
	}
	if err := h.registry.SetActive(zoneID, *req.Active); err != nil {
		logging.Error(c).Err(err).Msg("Failed to toggle zone")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	logging.Info(c).Bool("active", *req.Active).Msg("Zone toggled via API")
	msg := "Zone disabled"
	if *req.Active {
		msg = "Zone enabled"
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: msg})
}

// Reload godoc
// @Summary Reload monitoring configuration
// @Description Re-reads the monitoring file; an invalid file leaves the running configuration untouched
// @Tags zones
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /zones/reload [post]
func (h *ZoneHandler) Reload(c *gin.Context) {
	if err := h.reload(); err != nil {
		var cfgErr *models.ConfigError
		if errors.As(err, &cfgErr) {
			logging.Warn(c).Err(err).Msg("Rejected monitoring reload")
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Field: cfgErr.Field})
			return
		}
		logging.Error(c).Err(err).Msg("Monitoring reload failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "Monitoring configuration reloaded"})
}
