package models

import (
	"fmt"
	"time"
)

// ConfigError reports an invalid zone or threshold at load time.
// It is fatal to the load attempt only; the previous configuration stays in effect.
type ConfigError struct {
	ZoneID string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.ZoneID == "" {
		return fmt.Sprintf("config error: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("config error: zone %q: %s: %s", e.ZoneID, e.Field, e.Reason)
}

// MalformedDetectionError reports a detection that cannot be processed.
// The detection is dropped; the rest of the frame is still processed.
type MalformedDetectionError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedDetectionError) Error() string {
	return fmt.Sprintf("malformed detection #%d: %s %s", e.Index, e.Field, e.Reason)
}

// ConsumerOverflow is the diagnostic recorded when a bus consumer falls behind
// and its oldest buffered events are dropped.
type ConsumerOverflow struct {
	Consumer            string    `json:"consumer"`
	Dropped             int64     `json:"dropped"`
	LastDroppedSequence uint64    `json:"last_dropped_sequence"`
	LastDroppedAt       time.Time `json:"last_dropped_at"`
}
