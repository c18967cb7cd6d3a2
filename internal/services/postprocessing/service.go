package postprocessing

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/metrics"
	"kepler-sentinel-go/internal/models"
)

// Options configures the deduplicator
type Options struct {
	// Global minimum interval between same-kind alerts in one zone. 0 disables.
	Cooldown time.Duration
	// Generates alert ids; defaults to random UUIDs
	NewID func() string
}

type pairKey struct {
	trackID uint64
	zoneID  string
}

// Service turns candidate signals into de-duplicated, rate-limited alerts.
// Cooldowns are measured in frame time so replays behave like live runs.
type Service struct {
	mu sync.RWMutex

	cooldown      time.Duration
	zoneCooldowns map[string]time.Duration
	lastSent      map[string]time.Time
	// unresolved emitted entries, value is the entry alert id
	open       map[pairKey]string
	suppressed map[string]map[models.SuppressionReason]int64
	emitted    int64

	newID func() string
}

// NewService creates a new deduplicator
func NewService(opts Options) (*Service, error) {
	if opts.Cooldown < 0 {
		return nil, fmt.Errorf("alert cooldown must not be negative: %s", opts.Cooldown)
	}
	newID := opts.NewID
	if newID == nil {
		newID = func() string { return uuid.New().String() }
	}

	s := &Service{
		cooldown:      opts.Cooldown,
		zoneCooldowns: make(map[string]time.Duration),
		lastSent:      make(map[string]time.Time),
		open:          make(map[pairKey]string),
		suppressed:    make(map[string]map[models.SuppressionReason]int64),
		newID:         newID,
	}

	log.Info().
		Dur("cooldown", s.cooldown).
		Msg("Alert deduplicator initialized")

	return s, nil
}

// Shutdown stops the service gracefully
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log.Info().
		Int64("alerts_emitted", s.emitted).
		Int("open_entries", len(s.open)).
		Msg("Alert deduplicator shutdown")
	return nil
}

// SetCooldown replaces the global cooldown
func (s *Service) SetCooldown(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cooldown = d
}

// SetZoneCooldowns replaces the per-zone overrides. Zones absent from the
// map, or mapped to 0, use the global cooldown.
func (s *Service) SetZoneCooldowns(overrides map[string]time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zoneCooldowns = make(map[string]time.Duration, len(overrides))
	for id, d := range overrides {
		if d > 0 {
			s.zoneCooldowns[id] = d
		}
	}
}

// Process converts one candidate into zero or one alert
func (s *Service) Process(sig models.CandidateSignal) (*models.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	decision := s.decide(sig)
	pair := pairKey{trackID: sig.TrackID, zoneID: sig.ZoneID}

	if sig.Kind == models.AlertKindZoneExit {
		delete(s.open, pair)
	}

	if !decision.ShouldAlert {
		s.recordSuppression(sig, decision)
		return nil, false
	}

	alert := &models.Alert{
		ID:          s.newID(),
		TrackID:     sig.TrackID,
		ZoneID:      sig.ZoneID,
		ZoneName:    sig.ZoneName,
		Class:       sig.Class,
		Kind:        sig.Kind,
		Timestamp:   sig.Timestamp,
		SnapshotBox: sig.Box,
		Reason:      sig.Reason,
	}
	if sig.Kind == models.AlertKindZoneEntry {
		s.open[pair] = alert.ID
	}
	s.updateCooldown(models.AlertCooldownKey{ZoneID: sig.ZoneID, Kind: sig.Kind}, sig.Timestamp)
	s.emitted++
	metrics.AlertsEmitted.WithLabelValues(sig.ZoneID, string(sig.Kind)).Inc()

	log.Info().
		Str("alert_id", alert.ID).
		Uint64("track_id", alert.TrackID).
		Str("zone_id", alert.ZoneID).
		Str("kind", string(alert.Kind)).
		Str("class", string(alert.Class)).
		Str("reason", string(alert.Reason)).
		Msg("Alert emitted")

	return alert, true
}

// ShouldCreateAlert reports what Process would decide without changing state
func (s *Service) ShouldCreateAlert(sig models.CandidateSignal) models.AlertDecision {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decide(sig)
}

func (s *Service) decide(sig models.CandidateSignal) models.AlertDecision {
	_, open := s.open[pairKey{trackID: sig.TrackID, zoneID: sig.ZoneID}]

	switch sig.Kind {
	case models.AlertKindZoneEntry:
		if open {
			return models.AlertDecision{Reason: models.SuppressedDuplicate}
		}
	case models.AlertKindZoneExit:
		if !open {
			return models.AlertDecision{Reason: models.SuppressedUnpaired}
		}
		// every emitted entry gets exactly one exit; exits are never rate limited
		return models.AlertDecision{ShouldAlert: true}
	}

	key := models.AlertCooldownKey{ZoneID: sig.ZoneID, Kind: sig.Kind}
	if remaining := s.checkCooldown(key, sig.Timestamp); remaining > 0 {
		return models.AlertDecision{Reason: models.SuppressedCooldown, Remaining: remaining}
	}
	return models.AlertDecision{ShouldAlert: true}
}

// checkCooldown returns how much of the cooldown window is left for key at
// ts, 0 when an alert may be sent. Caller holds the lock.
func (s *Service) checkCooldown(key models.AlertCooldownKey, ts time.Time) time.Duration {
	cooldown := s.cooldown
	if d, ok := s.zoneCooldowns[key.ZoneID]; ok {
		cooldown = d
	}
	if cooldown <= 0 {
		return 0
	}

	lastSent, exists := s.lastSent[key.String()]
	if !exists {
		return 0
	}
	if elapsed := ts.Sub(lastSent); elapsed < cooldown {
		return cooldown - elapsed
	}
	return 0
}

// updateCooldown records ts as the last send time for key. Caller holds
// the lock.
func (s *Service) updateCooldown(key models.AlertCooldownKey, ts time.Time) {
	s.lastSent[key.String()] = ts
}

func (s *Service) recordSuppression(sig models.CandidateSignal, decision models.AlertDecision) {
	byReason, ok := s.suppressed[sig.ZoneID]
	if !ok {
		byReason = make(map[models.SuppressionReason]int64)
		s.suppressed[sig.ZoneID] = byReason
	}
	byReason[decision.Reason]++
	metrics.AlertsSuppressed.WithLabelValues(sig.ZoneID, string(decision.Reason)).Inc()

	log.Debug().
		Uint64("track_id", sig.TrackID).
		Str("zone_id", sig.ZoneID).
		Str("kind", string(sig.Kind)).
		Str("suppression", string(decision.Reason)).
		Dur("remaining", decision.Remaining).
		Msg("Candidate signal suppressed")
}

// SuppressedCount returns the entries suppressed by the cooldown per zone.
// Duplicate and unpaired suppressions are reported by SuppressedByReason.
func (s *Service) SuppressedCount() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.suppressed))
	for zone, byReason := range s.suppressed {
		if n := byReason[models.SuppressedCooldown]; n > 0 {
			out[zone] = n
		}
	}
	return out
}

// SuppressedByReason returns per-zone suppression counts split by reason
func (s *Service) SuppressedByReason() map[string]map[models.SuppressionReason]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[models.SuppressionReason]int64, len(s.suppressed))
	for zone, byReason := range s.suppressed {
		cp := make(map[models.SuppressionReason]int64, len(byReason))
		for r, n := range byReason {
			cp[r] = n
		}
		out[zone] = cp
	}
	return out
}

// Emitted returns the number of alerts emitted so far
func (s *Service) Emitted() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.emitted
}

// OpenEntries returns the (track, zone) pairs with an unresolved entry alert
func (s *Service) OpenEntries() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Alert, 0, len(s.open))
	for k, id := range s.open {
		out = append(out, models.Alert{ID: id, TrackID: k.trackID, ZoneID: k.zoneID, Kind: models.AlertKindZoneEntry})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TrackID != out[j].TrackID {
			return out[i].TrackID < out[j].TrackID
		}
		return out[i].ZoneID < out[j].ZoneID
	})
	return out
}

// Reset forgets open entries and cooldown history. Suppression counters are kept.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = make(map[pairKey]string)
	s.lastSent = make(map[string]time.Time)
}
