package intrusion

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/models"
	"kepler-sentinel-go/internal/services/zones"
)

type pairKey struct {
	trackID uint64
	zoneID  string
}

// entry is one non-Outside (track, zone) state plus what is needed to
// describe it in a final signal after the track or zone is gone
type entry struct {
	state    models.IntrusionState
	zoneName string
	class    models.ObjectClass
	box      models.Box
}

// Evaluator owns the sparse (track, zone) intrusion state map. Outside
// states are never stored, so map size is bounded by live intrusions.
// Not safe for concurrent use.
type Evaluator struct {
	states map[pairKey]*entry
}

// NewEvaluator creates an empty evaluator
func NewEvaluator() *Evaluator {
	return &Evaluator{states: make(map[pairKey]*entry)}
}

// Len returns the number of stored non-Outside states
func (e *Evaluator) Len() int {
	return len(e.states)
}

// Evaluate runs one frame. destroyed tracks and zones that are no longer
// active in snap release their states first, each non-Outside one raising a
// final ZoneExit. Live tracks seen this frame (Missed == 0) are then stepped
// against every active zone; tracks that missed the frame keep their state.
// Output order is deterministic: releases by (track, zone), then live tracks
// by id with zones in configuration order.
func (e *Evaluator) Evaluate(ts time.Time, live, destroyed []models.TrackView, snap *zones.Snapshot) []models.CandidateSignal {
	var out []models.CandidateSignal

	liveIDs := make(map[uint64]bool, len(live))
	for _, t := range live {
		liveIDs[t.TrackID] = true
	}
	active := make(map[string]bool)
	var activeZones []models.Zone
	if snap != nil {
		for z := range snap.ActiveZones(ts) {
			active[z.ID] = true
			activeZones = append(activeZones, z)
		}
	}

	for _, d := range destroyed {
		for _, k := range e.findTrack(d.TrackID) {
			e.states[k].box = d.Box
			out = append(out, e.release(k, ts, models.ReasonTrackLost))
		}
	}

	// states whose owner vanished without being reported (tracker reset)
	// or whose zone stopped being active
	for _, k := range e.sortedKeys() {
		switch {
		case !liveIDs[k.trackID]:
			out = append(out, e.release(k, ts, models.ReasonTrackLost))
		case !active[k.zoneID]:
			out = append(out, e.release(k, ts, models.ReasonZoneInactive))
		}
	}

	tracks := make([]models.TrackView, len(live))
	copy(tracks, live)
	sort.Slice(tracks, func(i, j int) bool { return tracks[i].TrackID < tracks[j].TrackID })

	for _, t := range tracks {
		if t.Missed > 0 {
			continue
		}
		center := t.Box.Center()
		for _, z := range activeZones {
			k := pairKey{trackID: t.TrackID, zoneID: z.ID}
			in := zones.Contains(z, center)
			en, ok := e.states[k]
			if !ok && !in {
				continue
			}
			if !ok {
				en = &entry{state: models.IntrusionState{TrackID: t.TrackID, ZoneID: z.ID, Status: models.StatusOutside}}
			}
			en.zoneName = z.Name
			en.class = t.Class
			en.box = t.Box

			tr := Step(en.state, in, z.Sensitivity, ts)
			if tr.State.Status == models.StatusOutside {
				delete(e.states, k)
			} else {
				en.state = tr.State
				e.states[k] = en
			}
			if tr.Signal != "" {
				out = append(out, models.CandidateSignal{
					TrackID:   t.TrackID,
					ZoneID:    z.ID,
					ZoneName:  z.Name,
					Class:     t.Class,
					Kind:      tr.Signal,
					Timestamp: ts,
					Box:       t.Box,
					Reason:    models.ReasonConfirmed,
				})
			}
		}
	}
	return out
}

// States returns copies of every non-Outside state ordered by (track, zone)
func (e *Evaluator) States() []models.IntrusionState {
	keys := e.sortedKeys()
	out := make([]models.IntrusionState, 0, len(keys))
	for _, k := range keys {
		out = append(out, e.states[k].state)
	}
	return out
}

// State returns the state of one pair; absent pairs are Outside
func (e *Evaluator) State(trackID uint64, zoneID string) models.IntrusionState {
	if en, ok := e.states[pairKey{trackID: trackID, zoneID: zoneID}]; ok {
		return en.state
	}
	return models.IntrusionState{TrackID: trackID, ZoneID: zoneID, Status: models.StatusOutside}
}

// Reset drops every state without raising signals
func (e *Evaluator) Reset() {
	e.states = make(map[pairKey]*entry)
}

func (e *Evaluator) release(k pairKey, ts time.Time, reason models.SignalReason) models.CandidateSignal {
	en := e.states[k]
	delete(e.states, k)
	log.Debug().
		Uint64("track_id", k.trackID).
		Str("zone_id", k.zoneID).
		Str("status", string(en.state.Status)).
		Str("reason", string(reason)).
		Msg("Intrusion state released")
	return models.CandidateSignal{
		TrackID:   k.trackID,
		ZoneID:    k.zoneID,
		ZoneName:  en.zoneName,
		Class:     en.class,
		Kind:      models.AlertKindZoneExit,
		Timestamp: ts,
		Box:       en.box,
		Reason:    reason,
	}
}

func (e *Evaluator) findTrack(trackID uint64) []pairKey {
	var keys []pairKey
	for k := range e.states {
		if k.trackID == trackID {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].zoneID < keys[j].zoneID })
	return keys
}

func (e *Evaluator) sortedKeys() []pairKey {
	keys := make([]pairKey, 0, len(e.states))
	for k := range e.states {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].trackID != keys[j].trackID {
			return keys[i].trackID < keys[j].trackID
		}
		return keys[i].zoneID < keys[j].zoneID
	})
	return keys
}
