package tracking

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/models"
)

// MatchMetric selects the geometric association metric
type MatchMetric string

const (
	MetricIoU    MatchMetric = "iou"
	MetricCenter MatchMetric = "center"
)

// Assignment selects how admissible pairs are resolved into matches
type Assignment string

const (
	// AssignmentGreedy takes the best remaining pair until none is left
	AssignmentGreedy Assignment = "greedy"
	// AssignmentHungarian maximizes the summed score over the whole frame
	AssignmentHungarian Assignment = "hungarian"
)

// Config holds association and lifecycle thresholds
type Config struct {
	// Metric used for association
	Metric MatchMetric
	// Assignment strategy; empty means greedy
	Assignment Assignment
	// Minimum IoU for a match when Metric is iou (IoU must also be > 0)
	MinIoU float64
	// Maximum centre distance in pixels for a match when Metric is center
	MaxCenterDistance float64
	// A track is destroyed once it has been missed more than this many frames
	MaxMissedFrames int
	// Number of past centre positions kept per track
	HistoryLength int
	// Use a Kalman-predicted box in addition to the last box when associating
	Prediction bool
}

// DefaultConfig returns the default tracking thresholds
func DefaultConfig() Config {
	return Config{
		Metric:            MetricIoU,
		Assignment:        AssignmentGreedy,
		MinIoU:            0.1,
		MaxCenterDistance: 75.0,
		MaxMissedFrames:   5,
		HistoryLength:     32,
		Prediction:        true,
	}
}

// Result is the outcome of one frame update
type Result struct {
	// Live tracks after the update, ordered by track id
	Live []models.TrackView
	// Tracks evicted during this update, ordered by track id
	Destroyed []models.TrackView
	// Tracks created during this update
	Created int
}

// Tracker associates per-frame detections into persistent tracks. Pairs are
// constrained to the same class and resolved greedily unless the Hungarian
// strategy is configured.
// Not safe for concurrent use; the pipeline drives it from one goroutine.
type Tracker struct {
	cfg    Config
	tracks map[uint64]*Track
	nextID uint64
}

// NewTracker creates a tracker with the given thresholds
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		cfg:    cfg,
		tracks: make(map[uint64]*Track),
		nextID: 1,
	}
}

// Config returns the active thresholds
func (t *Tracker) Config() Config {
	return t.cfg
}

// UpdateConfig replaces the thresholds. Existing tracks are kept.
func (t *Tracker) UpdateConfig(cfg Config) {
	t.cfg = cfg
}

// Len returns the number of live tracks
func (t *Tracker) Len() int {
	return len(t.tracks)
}

// Reset drops every track without reporting them as destroyed
func (t *Tracker) Reset() {
	t.tracks = make(map[uint64]*Track)
}

// Tracks returns copies of all live tracks including history, ordered by id
func (t *Tracker) Tracks() []models.TrackView {
	out := make([]models.TrackView, 0, len(t.tracks))
	for _, id := range t.sortedIDs() {
		out = append(out, t.tracks[id].View(true))
	}
	return out
}

// Update consumes every detection of one frame. Detections are expected to be
// normalized already.
func (t *Tracker) Update(detections []models.Detection, ts time.Time) Result {
	ids := t.sortedIDs()
	for _, id := range ids {
		t.tracks[id].predict()
	}

	var candidates []*matchCandidate
	for i, det := range detections {
		for _, id := range ids {
			track := t.tracks[id]
			if track.Class != det.Class {
				continue
			}
			if c, ok := t.score(track, det, i); ok {
				candidates = append(candidates, c)
			}
		}
	}

	var matches []*matchCandidate
	if t.cfg.Assignment == AssignmentHungarian {
		matches = assignHungarian(candidates, ids, len(detections))
	} else {
		matches = assignGreedy(candidates)
	}

	reserved := make(map[uint64]bool, len(ids))
	assigned := make(map[int]bool, len(detections))
	for _, c := range matches {
		reserved[c.trackID] = true
		assigned[c.detIndex] = true
		if err := t.tracks[c.trackID].update(detections[c.detIndex], ts); err != nil {
			log.Warn().Err(err).Uint64("track_id", c.trackID).Msg("Motion model update failed")
		}
	}

	var result Result
	for _, id := range ids {
		if reserved[id] {
			continue
		}
		track := t.tracks[id]
		track.Missed++
		if track.Missed > t.cfg.MaxMissedFrames {
			result.Destroyed = append(result.Destroyed, track.View(false))
			delete(t.tracks, id)
		}
	}

	for i, det := range detections {
		if assigned[i] {
			continue
		}
		id := t.nextID
		t.nextID++
		t.tracks[id] = newTrack(id, det, ts, t.cfg.HistoryLength, t.cfg.Prediction)
		result.Created++
	}

	result.Live = make([]models.TrackView, 0, len(t.tracks))
	for _, id := range t.sortedIDs() {
		result.Live = append(result.Live, t.tracks[id].View(false))
	}
	return result
}

// score evaluates a (track, detection) pair against the configured threshold
func (t *Tracker) score(track *Track, det models.Detection, detIndex int) (*matchCandidate, bool) {
	iou := det.Box.IoU(track.Box)
	if t.cfg.Prediction {
		iou = math.Max(iou, det.Box.IoU(track.Predicted))
	}

	c := &matchCandidate{iou: iou, trackID: track.ID, detIndex: detIndex}
	switch t.cfg.Metric {
	case MetricCenter:
		center := det.Box.Center()
		dist := distance(center, track.Box.Center())
		if t.cfg.Prediction {
			dist = math.Min(dist, distance(center, track.Predicted.Center()))
		}
		if dist > t.cfg.MaxCenterDistance {
			return nil, false
		}
		c.score = 1.0 / (1.0 + dist)
	default:
		if iou <= 0 || iou < t.cfg.MinIoU {
			return nil, false
		}
		c.score = iou
	}
	return c, true
}

func (t *Tracker) sortedIDs() []uint64 {
	ids := make([]uint64, 0, len(t.tracks))
	for id := range t.tracks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func distance(a, b models.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
