package intrusion

import (
	"time"

	"kepler-sentinel-go/internal/models"
)

// Transition is the result of feeding one observation into the state machine
type Transition struct {
	State models.IntrusionState
	// Path lists every status visited after the starting one, in order.
	// A confirmation that completes in the same frame (sensitivity 1)
	// shows the intermediate status as well.
	Path []models.IntrusionStatus
	// Signal is the candidate kind raised by this step, empty when none
	Signal models.AlertKind
}

// allowed holds the legal status edges, self loops excluded
var allowed = map[models.IntrusionStatus]map[models.IntrusionStatus]bool{
	models.StatusOutside:  {models.StatusEntering: true},
	models.StatusEntering: {models.StatusInside: true, models.StatusOutside: true},
	models.StatusInside:   {models.StatusExiting: true},
	models.StatusExiting:  {models.StatusInside: true, models.StatusOutside: true},
}

// Allowed reports whether from -> to is a legal edge of the machine
func Allowed(from, to models.IntrusionStatus) bool {
	if from == to {
		return true
	}
	return allowed[from][to]
}

// Step advances one (track, zone) state by one frame observation.
// sensitivity below 1 is treated as 1.
func Step(s models.IntrusionState, inZone bool, sensitivity int, ts time.Time) Transition {
	if sensitivity < 1 {
		sensitivity = 1
	}
	if s.Status == "" {
		s.Status = models.StatusOutside
	}

	tr := Transition{State: s}
	move := func(to models.IntrusionStatus) {
		tr.State.Status = to
		tr.Path = append(tr.Path, to)
	}

	switch s.Status {
	case models.StatusOutside:
		if !inZone {
			return tr
		}
		tr.State.ConsecutiveIn = 1
		tr.State.ConsecutiveOut = 0
		tr.State.FirstEntryTimestamp = ts
		move(models.StatusEntering)
		if tr.State.ConsecutiveIn >= sensitivity {
			move(models.StatusInside)
			tr.Signal = models.AlertKindZoneEntry
		}

	case models.StatusEntering:
		if !inZone {
			// never confirmed, nothing to undo
			tr.State = reset(s)
			tr.Path = append(tr.Path, models.StatusOutside)
			return tr
		}
		tr.State.ConsecutiveIn++
		if tr.State.ConsecutiveIn >= sensitivity {
			move(models.StatusInside)
			tr.Signal = models.AlertKindZoneEntry
		}

	case models.StatusInside:
		if inZone {
			tr.State.ConsecutiveIn++
			return tr
		}
		tr.State.ConsecutiveOut = 1
		move(models.StatusExiting)
		if tr.State.ConsecutiveOut >= sensitivity {
			tr.State = reset(tr.State)
			tr.Path = append(tr.Path, models.StatusOutside)
			tr.Signal = models.AlertKindZoneExit
		}

	case models.StatusExiting:
		if inZone {
			tr.State.ConsecutiveOut = 0
			tr.State.ConsecutiveIn++
			move(models.StatusInside)
			return tr
		}
		tr.State.ConsecutiveOut++
		if tr.State.ConsecutiveOut >= sensitivity {
			tr.State = reset(tr.State)
			tr.Path = append(tr.Path, models.StatusOutside)
			tr.Signal = models.AlertKindZoneExit
		}
	}
	return tr
}

func reset(s models.IntrusionState) models.IntrusionState {
	return models.IntrusionState{
		TrackID: s.TrackID,
		ZoneID:  s.ZoneID,
		Status:  models.StatusOutside,
	}
}
