package models

import (
	"time"
)

// AlertKind is the kind of transition an alert reports
type AlertKind string

const (
	AlertKindZoneEntry AlertKind = "ZONE_ENTRY"
	AlertKindZoneExit  AlertKind = "ZONE_EXIT"
)

// IntrusionStatus is the hysteresis state of one (track, zone) pair
type IntrusionStatus string

const (
	StatusOutside  IntrusionStatus = "OUTSIDE"
	StatusEntering IntrusionStatus = "ENTERING"
	StatusInside   IntrusionStatus = "INSIDE"
	StatusExiting  IntrusionStatus = "EXITING"
)

// SignalReason explains why the evaluator raised a candidate
type SignalReason string

const (
	ReasonConfirmed    SignalReason = "confirmed"
	ReasonTrackLost    SignalReason = "track_lost"
	ReasonZoneInactive SignalReason = "zone_inactive"
)

// CandidateSignal is an unfiltered transition proposal from the evaluator
type CandidateSignal struct {
	TrackID   uint64       `json:"track_id"`
	ZoneID    string       `json:"zone_id"`
	ZoneName  string       `json:"zone_name"`
	Class     ObjectClass  `json:"class"`
	Kind      AlertKind    `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	Box       Box          `json:"box"`
	Reason    SignalReason `json:"reason"`
}

// Alert is an emitted, de-duplicated intrusion record. Never mutated after emission.
type Alert struct {
	ID          string       `json:"alert_id"`
	TrackID     uint64       `json:"track_id"`
	ZoneID      string       `json:"zone_id"`
	ZoneName    string       `json:"zone_name"`
	Class       ObjectClass  `json:"class"`
	Kind        AlertKind    `json:"kind"`
	Timestamp   time.Time    `json:"timestamp"`
	SnapshotBox Box          `json:"snapshot_box"`
	Reason      SignalReason `json:"reason"`
}

// IntrusionState is the per (track, zone) hysteresis record
type IntrusionState struct {
	TrackID             uint64          `json:"track_id"`
	ZoneID              string          `json:"zone_id"`
	Status              IntrusionStatus `json:"status"`
	ConsecutiveIn       int             `json:"consecutive_frames_in_zone"`
	ConsecutiveOut      int             `json:"consecutive_frames_out_of_zone"`
	FirstEntryTimestamp time.Time       `json:"first_entry_timestamp,omitempty"`
}

// TrackView is a read-only copy of a track for snapshots
type TrackView struct {
	TrackID  uint64      `json:"track_id"`
	Class    ObjectClass `json:"class"`
	Box      Box         `json:"box"`
	LastSeen time.Time   `json:"last_seen"`
	Missed   int         `json:"missed"`
	Hits     int         `json:"hits"`
	History  []Point     `json:"history,omitempty"`
}

// StateSnapshot is the periodic view of tracks and intrusion states for dashboards
type StateSnapshot struct {
	Timestamp       time.Time        `json:"timestamp"`
	FrameCount      int64            `json:"frame_count"`
	ZoneVersion     uint64           `json:"zone_version"`
	Tracks          []TrackView      `json:"tracks"`
	Intrusions      []IntrusionState `json:"intrusions"`
	SuppressedCount map[string]int64 `json:"suppressed_count"`
}

// EventType names the payload carried by a bus Event
type EventType string

const (
	EventTypeAlert    EventType = "alert"
	EventTypeSnapshot EventType = "state_snapshot"
	EventTypeSystem   EventType = "system"
)

// Event is the envelope delivered to bus consumers
type Event struct {
	Sequence  uint64         `json:"sequence"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Alert     *Alert         `json:"alert,omitempty"`
	Snapshot  *StateSnapshot `json:"snapshot,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// MessagePublisher interface for publishing alerts
type MessagePublisher interface {
	Publish(subject string, data interface{}) error
}

// AlertCooldownKey identifies one cooldown bucket: a zone and an alert kind
type AlertCooldownKey struct {
	ZoneID string
	Kind   AlertKind
}

// String returns the map key form of the cooldown key
func (k AlertCooldownKey) String() string {
	return k.ZoneID + ":" + string(k.Kind)
}

// SuppressionReason explains why a candidate signal did not become an alert
type SuppressionReason string

const (
	SuppressedDuplicate SuppressionReason = "duplicate"
	SuppressedCooldown  SuppressionReason = "cooldown"
	SuppressedUnpaired  SuppressionReason = "unpaired"
)

// AlertDecision is the deduplicator's verdict on one candidate signal
type AlertDecision struct {
	ShouldAlert bool              `json:"should_alert"`
	Reason      SuppressionReason `json:"reason,omitempty"`
	// Remaining cooldown when Reason is cooldown
	Remaining time.Duration `json:"remaining,omitempty"`
}
