package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/models"
)

// LogConsumer writes alerts and system events to a zerolog logger.
// Snapshots are logged at debug level only.
type LogConsumer struct {
	logger zerolog.Logger
}

// NewLogConsumer creates a log consumer; a zero logger uses the global one
func NewLogConsumer(logger *zerolog.Logger) *LogConsumer {
	if logger == nil {
		logger = &log.Logger
	}
	return &LogConsumer{logger: logger.With().Str("consumer", "log").Logger()}
}

func (c *LogConsumer) Name() string { return "log" }

func (c *LogConsumer) Deliver(_ context.Context, ev models.Event) error {
	switch ev.Type {
	case models.EventTypeAlert:
		if ev.Alert == nil {
			return nil
		}
		c.logger.Info().
			Uint64("sequence", ev.Sequence).
			Str("alert_id", ev.Alert.ID).
			Str("kind", string(ev.Alert.Kind)).
			Uint64("track_id", ev.Alert.TrackID).
			Str("zone_id", ev.Alert.ZoneID).
			Str("zone_name", ev.Alert.ZoneName).
			Str("class", string(ev.Alert.Class)).
			Str("reason", string(ev.Alert.Reason)).
			Time("timestamp", ev.Alert.Timestamp).
			Msg("🚨 Intrusion alert")
	case models.EventTypeSnapshot:
		if ev.Snapshot == nil {
			return nil
		}
		c.logger.Debug().
			Uint64("sequence", ev.Sequence).
			Int("tracks", len(ev.Snapshot.Tracks)).
			Int("intrusions", len(ev.Snapshot.Intrusions)).
			Int64("frame_count", ev.Snapshot.FrameCount).
			Msg("State snapshot")
	default:
		c.logger.Info().
			Uint64("sequence", ev.Sequence).
			Str("message", ev.Message).
			Msg("System event")
	}
	return nil
}

// History keeps the most recent alerts and the latest snapshot in memory
// for the HTTP API
type History struct {
	mu       sync.RWMutex
	alerts   []models.Alert
	capacity int
	snapshot *models.StateSnapshot
	system   []models.Event
}

// NewHistory creates a history holding up to capacity alerts
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1000
	}
	return &History{capacity: capacity}
}

func (h *History) Name() string { return "history" }

func (h *History) Deliver(_ context.Context, ev models.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch ev.Type {
	case models.EventTypeAlert:
		if ev.Alert == nil {
			return nil
		}
		if len(h.alerts) == h.capacity {
			copy(h.alerts, h.alerts[1:])
			h.alerts = h.alerts[:len(h.alerts)-1]
		}
		h.alerts = append(h.alerts, *ev.Alert)
	case models.EventTypeSnapshot:
		h.snapshot = ev.Snapshot
	case models.EventTypeSystem:
		if len(h.system) == 100 {
			h.system = h.system[1:]
		}
		h.system = append(h.system, ev)
	}
	return nil
}

// Alerts returns up to limit most recent alerts, oldest first. limit <= 0
// returns everything kept.
func (h *History) Alerts(limit int) []models.Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()

	start := 0
	if limit > 0 && limit < len(h.alerts) {
		start = len(h.alerts) - limit
	}
	out := make([]models.Alert, len(h.alerts)-start)
	copy(out, h.alerts[start:])
	return out
}

// Len returns the number of alerts kept
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.alerts)
}

// Snapshot returns the latest state snapshot, nil before the first one
func (h *History) Snapshot() *models.StateSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.snapshot
}

// SystemEvents returns recent system events, oldest first
func (h *History) SystemEvents() []models.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.Event, len(h.system))
	copy(out, h.system)
	return out
}

// Clear drops every kept alert
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.alerts = nil
}
