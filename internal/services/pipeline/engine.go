package pipeline

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/metrics"
	"kepler-sentinel-go/internal/models"
	"kepler-sentinel-go/internal/services/intrusion"
	"kepler-sentinel-go/internal/services/postprocessing"
	"kepler-sentinel-go/internal/services/tracking"
	"kepler-sentinel-go/internal/services/zones"
)

// ErrOutOfOrder is returned for a frame older than the last processed one
var ErrOutOfOrder = errors.New("frame is older than the last processed frame")

// Publisher receives the events of completed frames
type Publisher interface {
	Publish(ev models.Event) models.Event
}

// Settings are the runtime-tunable thresholds of the engine
type Settings struct {
	Tracking         tracking.Config
	Cooldown         time.Duration
	MinConfidence    float64
	SnapshotInterval time.Duration
}

// Validate checks settings before they are staged
func (s Settings) Validate() error {
	switch s.Tracking.Metric {
	case tracking.MetricIoU, tracking.MetricCenter:
	default:
		return &models.ConfigError{Field: "tracking.metric", Reason: fmt.Sprintf("unknown metric %q", s.Tracking.Metric)}
	}
	switch s.Tracking.Assignment {
	case "", tracking.AssignmentGreedy, tracking.AssignmentHungarian:
	default:
		return &models.ConfigError{Field: "tracking.assignment", Reason: fmt.Sprintf("unknown assignment %q", s.Tracking.Assignment)}
	}
	if s.Tracking.MinIoU < 0 || s.Tracking.MinIoU > 1 {
		return &models.ConfigError{Field: "tracking.min_iou", Reason: "must be within [0,1]"}
	}
	if s.Tracking.MaxCenterDistance <= 0 {
		return &models.ConfigError{Field: "tracking.max_center_distance", Reason: "must be positive"}
	}
	if s.Tracking.MaxMissedFrames < 0 {
		return &models.ConfigError{Field: "tracking.max_missed_frames", Reason: "must not be negative"}
	}
	if s.Tracking.HistoryLength < 1 {
		return &models.ConfigError{Field: "tracking.history_length", Reason: "must be at least 1"}
	}
	if s.Cooldown < 0 {
		return &models.ConfigError{Field: "alerting.cooldown", Reason: "must not be negative"}
	}
	if s.MinConfidence < 0 || s.MinConfidence > 1 {
		return &models.ConfigError{Field: "alerting.min_confidence", Reason: "must be within [0,1]"}
	}
	if s.SnapshotInterval < 0 {
		return &models.ConfigError{Field: "alerting.snapshot_interval", Reason: "must not be negative"}
	}
	return nil
}

// FrameResult summarises one processed frame
type FrameResult struct {
	FrameID   int64
	Accepted  int
	Dropped   int
	Live      int
	Destroyed int
	Signals   int
	Alerts    []models.Alert
	Snapshot  bool
}

// Stats are the engine counters exposed through diagnostics
type Stats struct {
	FramesProcessed     int64     `json:"frames_processed"`
	FramesRejected      int64     `json:"frames_rejected"`
	DroppedMalformed    int64     `json:"detections_dropped_malformed"`
	DroppedLowConfident int64     `json:"detections_dropped_low_confidence"`
	SignalsRaised       int64     `json:"signals_raised"`
	AlertsEmitted       int64     `json:"alerts_emitted"`
	LastFrameTimestamp  time.Time `json:"last_frame_timestamp"`
	LastProcessedAt     time.Time `json:"last_processed_at"`
}

// Engine is the synchronous detection-to-alert pipeline. ProcessFrame must
// be called from one goroutine; every other method is safe for concurrent use.
type Engine struct {
	registry  *zones.Registry
	tracker   *tracking.Tracker
	evaluator *intrusion.Evaluator
	dedup     *postprocessing.Service
	bus       Publisher

	settings    Settings
	pending     atomic.Pointer[Settings]
	resetQueued atomic.Bool

	lastTS       time.Time
	lastSnapshot time.Time
	zoneVersion  uint64

	latest atomic.Pointer[models.StateSnapshot]

	framesProcessed  atomic.Int64
	framesRejected   atomic.Int64
	droppedMalformed atomic.Int64
	droppedLowConf   atomic.Int64
	signalsRaised    atomic.Int64
	alertsEmitted    atomic.Int64
	lastFrameNanos   atomic.Int64
	lastProcessedAt  atomic.Int64
}

// NewEngine wires the decision components together
func NewEngine(registry *zones.Registry, dedup *postprocessing.Service, bus Publisher, settings Settings) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("zone registry is required")
	}
	if dedup == nil {
		return nil, fmt.Errorf("alert deduplicator is required")
	}
	if bus == nil {
		return nil, fmt.Errorf("event publisher is required")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	dedup.SetCooldown(settings.Cooldown)

	e := &Engine{
		registry:  registry,
		tracker:   tracking.NewTracker(settings.Tracking),
		evaluator: intrusion.NewEvaluator(),
		dedup:     dedup,
		bus:       bus,
		settings:  settings,
	}
	e.latest.Store(&models.StateSnapshot{Tracks: []models.TrackView{}, Intrusions: []models.IntrusionState{}})

	log.Info().
		Str("metric", string(settings.Tracking.Metric)).
		Float64("min_iou", settings.Tracking.MinIoU).
		Int("max_missed_frames", settings.Tracking.MaxMissedFrames).
		Dur("cooldown", settings.Cooldown).
		Float64("min_confidence", settings.MinConfidence).
		Msg("Pipeline engine initialized")

	return e, nil
}

// UpdateSettings stages new settings. They take effect before the next
// frame so a frame is never evaluated with mixed thresholds.
func (e *Engine) UpdateSettings(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	e.pending.Store(&s)
	return nil
}

// Settings returns the staged settings if any, else the active ones
func (e *Engine) Settings() Settings {
	if p := e.pending.Load(); p != nil {
		return *p
	}
	return e.settings
}

// Reset stages a reset of all tracks, intrusion states and open entries.
// Nothing is emitted for the dropped state.
func (e *Engine) Reset() {
	e.resetQueued.Store(true)
}

// ProcessFrame runs one frame to completion. The frame's alerts are
// published only after every stage finished. A frame older than the previous
// one is rejected with ErrOutOfOrder and leaves all state untouched.
func (e *Engine) ProcessFrame(frame models.Frame) (FrameResult, error) {
	start := time.Now()
	result := FrameResult{FrameID: frame.FrameID}

	if !e.lastTS.IsZero() && frame.Timestamp.Before(e.lastTS) {
		e.framesRejected.Add(1)
		metrics.FramesRejected.WithLabelValues("out_of_order").Inc()
		log.Warn().
			Int64("frame_id", frame.FrameID).
			Time("timestamp", frame.Timestamp).
			Time("last_timestamp", e.lastTS).
			Msg("Rejecting out-of-order frame")
		return result, fmt.Errorf("frame %d at %s: %w", frame.FrameID, frame.Timestamp.Format(time.RFC3339Nano), ErrOutOfOrder)
	}

	e.applyPending()

	// one zone configuration for the whole frame
	snap := e.registry.Snapshot()
	if snap.Version != e.zoneVersion {
		e.onZonesChanged(snap)
	}

	detections := e.filter(frame.Detections, &result)

	tracked := e.tracker.Update(detections, frame.Timestamp)
	result.Live = len(tracked.Live)
	result.Destroyed = len(tracked.Destroyed)

	signals := e.evaluator.Evaluate(frame.Timestamp, tracked.Live, tracked.Destroyed, snap)
	result.Signals = len(signals)
	for _, sig := range signals {
		if alert, ok := e.dedup.Process(sig); ok {
			result.Alerts = append(result.Alerts, *alert)
		}
	}

	state := &models.StateSnapshot{
		Timestamp:       frame.Timestamp,
		FrameCount:      e.framesProcessed.Load() + 1,
		ZoneVersion:     snap.Version,
		Tracks:          tracked.Live,
		Intrusions:      e.evaluator.States(),
		SuppressedCount: e.dedup.SuppressedCount(),
	}

	// frame complete: commit and hand results to consumers
	e.lastTS = frame.Timestamp
	e.latest.Store(state)
	e.framesProcessed.Add(1)
	e.signalsRaised.Add(int64(len(signals)))
	e.alertsEmitted.Add(int64(len(result.Alerts)))
	e.lastFrameNanos.Store(frame.Timestamp.UnixNano())
	e.lastProcessedAt.Store(time.Now().UnixNano())

	for i := range result.Alerts {
		alert := result.Alerts[i]
		e.bus.Publish(models.Event{Type: models.EventTypeAlert, Timestamp: alert.Timestamp, Alert: &alert})
	}
	if e.snapshotDue(frame.Timestamp) {
		e.lastSnapshot = frame.Timestamp
		e.bus.Publish(models.Event{Type: models.EventTypeSnapshot, Timestamp: frame.Timestamp, Snapshot: state})
		result.Snapshot = true
	}

	metrics.RecordFrame(time.Since(start), result.Live, result.Destroyed, len(state.Intrusions))

	log.Debug().
		Int64("frame_id", frame.FrameID).
		Int("accepted", result.Accepted).
		Int("dropped", result.Dropped).
		Int("live_tracks", result.Live).
		Int("signals", result.Signals).
		Int("alerts", len(result.Alerts)).
		Msg("Frame processed")

	return result, nil
}

// State returns the state after the most recent frame
func (e *Engine) State() *models.StateSnapshot {
	return e.latest.Load()
}

// Stats returns the engine counters
func (e *Engine) Stats() Stats {
	s := Stats{
		FramesProcessed:     e.framesProcessed.Load(),
		FramesRejected:      e.framesRejected.Load(),
		DroppedMalformed:    e.droppedMalformed.Load(),
		DroppedLowConfident: e.droppedLowConf.Load(),
		SignalsRaised:       e.signalsRaised.Load(),
		AlertsEmitted:       e.alertsEmitted.Load(),
	}
	if n := e.lastFrameNanos.Load(); n != 0 {
		s.LastFrameTimestamp = time.Unix(0, n).UTC()
	}
	if n := e.lastProcessedAt.Load(); n != 0 {
		s.LastProcessedAt = time.Unix(0, n)
	}
	return s
}

// SuppressedByReason exposes the deduplicator counters
func (e *Engine) SuppressedByReason() map[string]map[models.SuppressionReason]int64 {
	return e.dedup.SuppressedByReason()
}

func (e *Engine) applyPending() {
	if p := e.pending.Swap(nil); p != nil {
		e.settings = *p
		e.tracker.UpdateConfig(p.Tracking)
		e.dedup.SetCooldown(p.Cooldown)
		log.Info().
			Str("metric", string(p.Tracking.Metric)).
			Dur("cooldown", p.Cooldown).
			Float64("min_confidence", p.MinConfidence).
			Msg("Pipeline settings applied")
	}
	if e.resetQueued.Swap(false) {
		e.tracker.Reset()
		e.evaluator.Reset()
		e.dedup.Reset()
		log.Info().Msg("Pipeline state reset")
	}
}

func (e *Engine) onZonesChanged(snap *zones.Snapshot) {
	overrides := make(map[string]time.Duration, snap.Len())
	for _, z := range snap.Zones() {
		if z.Cooldown > 0 {
			overrides[z.ID] = z.Cooldown
		}
	}
	e.dedup.SetZoneCooldowns(overrides)
	e.zoneVersion = snap.Version
	metrics.ZoneConfigVersion.Set(float64(snap.Version))
	log.Info().
		Uint64("version", snap.Version).
		Int("zones", snap.Len()).
		Msg("Zone configuration switched")
}

// filter drops malformed and low-confidence detections, counting both
func (e *Engine) filter(in []models.Detection, result *FrameResult) []models.Detection {
	out := make([]models.Detection, 0, len(in))
	for i, det := range in {
		norm, err := det.Normalize(i)
		if err != nil {
			result.Dropped++
			e.droppedMalformed.Add(1)
			metrics.DetectionsDropped.WithLabelValues("malformed").Inc()
			log.Debug().Err(err).Int64("frame_id", result.FrameID).Msg("Dropping malformed detection")
			continue
		}
		if norm.Confidence < e.settings.MinConfidence {
			result.Dropped++
			e.droppedLowConf.Add(1)
			metrics.DetectionsDropped.WithLabelValues("low_confidence").Inc()
			continue
		}
		out = append(out, norm)
	}
	result.Accepted = len(out)
	return out
}

func (e *Engine) snapshotDue(ts time.Time) bool {
	interval := e.settings.SnapshotInterval
	if interval <= 0 {
		return false
	}
	return e.lastSnapshot.IsZero() || ts.Sub(e.lastSnapshot) >= interval
}
