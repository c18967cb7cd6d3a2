package handlers

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"kepler-sentinel-go/internal/logging"
	"kepler-sentinel-go/internal/models"
	"kepler-sentinel-go/internal/services/eventbus"
	"kepler-sentinel-go/internal/services/postprocessing"
)

const defaultAlertLimit = 100

type AlertHandler struct {
	history *eventbus.History
	dedup   *postprocessing.Service
}

func NewAlertHandler(history *eventbus.History, dedup *postprocessing.Service) *AlertHandler {
	return &AlertHandler{history: history, dedup: dedup}
}

type AlertListResponse struct {
	Count  int            `json:"count" example:"2"`
	Alerts []models.Alert `json:"alerts"`
}

type alertFilter struct {
	zoneID string
	kind   models.AlertKind
	since  time.Time
}

func (f alertFilter) match(a models.Alert) bool {
	if f.zoneID != "" && a.ZoneID != f.zoneID {
		return false
	}
	if f.kind != "" && a.Kind != f.kind {
		return false
	}
	return f.since.IsZero() || !a.Timestamp.Before(f.since)
}

func parseAlertFilter(c *gin.Context) (alertFilter, error) {
	f := alertFilter{zoneID: c.Query("zone_id")}
	switch kind := models.AlertKind(c.Query("kind")); kind {
	case "", models.AlertKindZoneEntry, models.AlertKindZoneExit:
		f.kind = kind
	default:
		return f, fmt.Errorf("kind must be %s or %s", models.AlertKindZoneEntry, models.AlertKindZoneExit)
	}
	if raw := c.Query("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, fmt.Errorf("since must be RFC3339: %w", err)
		}
		f.since = since
	}
	return f, nil
}

// filtered applies the filter and keeps the newest limit alerts, oldest first
func (h *AlertHandler) filtered(f alertFilter, limit int) []models.Alert {
	out := lo.Filter(h.history.Alerts(0), func(a models.Alert, _ int) bool {
		return f.match(a)
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// ListAlerts godoc
// @Summary Recent alerts
// @Description Most recent emitted alerts, newest last
// @Tags alerts
// @Produce json
// @Param limit query int false "Maximum number of alerts" default(100)
// @Param zone_id query string false "Only alerts of this zone"
// @Param kind query string false "ZONE_ENTRY or ZONE_EXIT"
// @Param since query string false "RFC3339 lower bound on alert timestamp"
// @Success 200 {object} AlertListResponse
// @Failure 400 {object} ErrorResponse
// @Router /alerts [get]
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	limit := defaultAlertLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	f, err := parseAlertFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	alerts := h.filtered(f, limit)
	c.JSON(http.StatusOK, AlertListResponse{Count: len(alerts), Alerts: alerts})
}

// OpenEntries godoc
// @Summary Open intrusions
// @Description Entry alerts whose exit has not been emitted yet
// @Tags alerts
// @Produce json
// @Success 200 {object} AlertListResponse
// @Router /alerts/open [get]
func (h *AlertHandler) OpenEntries(c *gin.Context) {
	open := h.dedup.OpenEntries()
	c.JSON(http.StatusOK, AlertListResponse{Count: len(open), Alerts: open})
}

var csvHeader = []string{
	"alert_id", "timestamp", "zone_id", "zone_name", "track_id", "class", "kind", "reason",
	"box_x", "box_y", "box_width", "box_height",
}

// DownloadCSV godoc
// @Summary Download alert log
// @Description Alert history as CSV, oldest first
// @Tags alerts
// @Produce text/csv
// @Param zone_id query string false "Only alerts of this zone"
// @Param kind query string false "ZONE_ENTRY or ZONE_EXIT"
// @Param since query string false "RFC3339 lower bound on alert timestamp"
// @Success 200 {string} string "CSV file"
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /alerts/download [get]
func (h *AlertHandler) DownloadCSV(c *gin.Context) {
	f, err := parseAlertFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	alerts := h.filtered(f, 0)
	if len(alerts) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "No alerts to download"})
		return
	}

	filename := fmt.Sprintf("alerts_%s.csv", time.Now().UTC().Format("20060102_150405"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(csvHeader)
	for _, a := range alerts {
		_ = w.Write([]string{
			a.ID,
			a.Timestamp.UTC().Format(time.RFC3339Nano),
			a.ZoneID,
			a.ZoneName,
			strconv.FormatUint(a.TrackID, 10),
			string(a.Class),
			string(a.Kind),
			string(a.Reason),
			strconv.FormatFloat(a.SnapshotBox.X, 'f', 2, 64),
			strconv.FormatFloat(a.SnapshotBox.Y, 'f', 2, 64),
			strconv.FormatFloat(a.SnapshotBox.Width, 'f', 2, 64),
			strconv.FormatFloat(a.SnapshotBox.Height, 'f', 2, 64),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		logging.Error(c).Err(err).Msg("Failed to write alert CSV")
		return
	}
	logging.Debug(c).Int("alerts", len(alerts)).Msg("Alert CSV exported")
}
