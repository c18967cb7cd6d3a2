package tracking

import (
	"time"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"

	"kepler-sentinel-go/internal/models"
)

// Track is one physical object followed across frames.
// Tracks are owned by the Tracker; callers only ever see TrackView copies.
type Track struct {
	ID        uint64
	Class     models.ObjectClass
	Box       models.Box
	Predicted models.Box
	FirstSeen time.Time
	LastSeen  time.Time
	Missed    int
	Hits      int

	history    []models.Point
	maxHistory int
	kf         *kalman_filter.KalmanBBox
}

func newTrack(id uint64, det models.Detection, ts time.Time, maxHistory int, prediction bool) *Track {
	t := &Track{
		ID:         id,
		Class:      det.Class,
		Box:        det.Box,
		Predicted:  det.Box,
		FirstSeen:  ts,
		LastSeen:   ts,
		Hits:       1,
		history:    make([]models.Point, 0, maxHistory),
		maxHistory: maxHistory,
	}
	if prediction {
		c := det.Box.Center()
		// constant velocity model, one step per frame, no control input
		t.kf = kalman_filter.NewKalmanBBox(
			1.0, 0.0, 0.0, 0.0, 0.0,
			2.0, 0.1, 0.1, 0.1, 0.1,
			kalman_filter.WithStateBBox(c.X, c.Y, det.Box.Width, det.Box.Height),
		)
	}
	t.appendHistory(det.Box.Center())
	return t
}

// predict advances the motion model one frame
func (t *Track) predict() {
	if t.kf == nil {
		t.Predicted = t.Box
		return
	}
	t.kf.Predict()
	cx, cy, w, h := t.kf.GetState()
	t.Predicted = models.Box{X: cx - w/2.0, Y: cy - h/2.0, Width: w, Height: h}
}

// update applies a matched detection. The raw detection box becomes the
// current box; the filter only feeds association on later frames.
func (t *Track) update(det models.Detection, ts time.Time) error {
	t.Box = det.Box
	t.LastSeen = ts
	t.Missed = 0
	t.Hits++
	t.appendHistory(det.Box.Center())

	if t.kf == nil {
		return nil
	}
	c := det.Box.Center()
	if err := t.kf.Update(c.X, c.Y, det.Box.Width, det.Box.Height); err != nil {
		return errors.Wrapf(err, "can't update motion model of track %d", t.ID)
	}
	return nil
}

func (t *Track) appendHistory(p models.Point) {
	if t.maxHistory <= 0 {
		return
	}
	if len(t.history) == t.maxHistory {
		copy(t.history, t.history[1:])
		t.history = t.history[:len(t.history)-1]
	}
	t.history = append(t.history, p)
}

// History returns a copy of the bounded position history, most recent last
func (t *Track) History() []models.Point {
	out := make([]models.Point, len(t.history))
	copy(out, t.history)
	return out
}

// View returns a detached copy of the track
func (t *Track) View(withHistory bool) models.TrackView {
	v := models.TrackView{
		TrackID:  t.ID,
		Class:    t.Class,
		Box:      t.Box,
		LastSeen: t.LastSeen,
		Missed:   t.Missed,
		Hits:     t.Hits,
	}
	if withHistory {
		v.History = t.History()
	}
	return v
}
