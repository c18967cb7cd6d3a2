package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kepler-sentinel-go/internal/models"
	"kepler-sentinel-go/internal/services/postprocessing"
	"kepler-sentinel-go/internal/services/tracking"
	"kepler-sentinel-go/internal/services/zones"
)

var (
	t0        = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	insideBox = models.Box{X: 40, Y: 40, Width: 20, Height: 20}
	// center 120,50: outside the zone, within matching distance of insideBox
	outsideBox = models.Box{X: 110, Y: 40, Width: 20, Height: 20}
)

type recorder struct {
	mu     sync.Mutex
	seq    uint64
	events []models.Event
}

func (r *recorder) Publish(ev models.Event) models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	ev.Sequence = r.seq
	r.events = append(r.events, ev)
	return ev
}

func (r *recorder) alerts() []models.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Alert
	for _, ev := range r.events {
		if ev.Type == models.EventTypeAlert {
			out = append(out, *ev.Alert)
		}
	}
	return out
}

func (r *recorder) count(typ models.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func testSettings() Settings {
	cfg := tracking.DefaultConfig()
	cfg.Metric = tracking.MetricCenter
	cfg.Prediction = false
	return Settings{
		Tracking:      cfg,
		Cooldown:      10 * time.Second,
		MinConfidence: 0.35,
	}
}

func zoneDef(id string, sensitivity int) models.ZoneDefinition {
	return models.ZoneDefinition{
		ID:          id,
		Name:        "Zone " + id,
		Polygon:     [][]float64{{0, 0}, {100, 0}, {100, 100}, {0, 100}},
		Sensitivity: sensitivity,
	}
}

func newEngine(t *testing.T, settings Settings, defs ...models.ZoneDefinition) (*Engine, *recorder) {
	t.Helper()

	registry := zones.NewRegistry()
	require.NoError(t, registry.Load(defs))
	dedup, err := postprocessing.NewService(postprocessing.Options{Cooldown: settings.Cooldown})
	require.NoError(t, err)
	rec := &recorder{}
	e, err := NewEngine(registry, dedup, rec, settings)
	require.NoError(t, err)
	return e, rec
}

func person(box models.Box) models.Detection {
	return models.Detection{Class: "person", Confidence: 0.9, Box: box}
}

func frameAt(i int, dets ...models.Detection) models.Frame {
	return models.Frame{FrameID: int64(i), Timestamp: t0.Add(time.Duration(i) * time.Second), Detections: dets}
}

func TestEngineEntryAndExit(t *testing.T) {
	t.Parallel()

	e, rec := newEngine(t, testSettings(), zoneDef("gate", 3))

	boxes := []models.Box{insideBox, insideBox, insideBox, outsideBox, outsideBox, outsideBox}
	for i, b := range boxes {
		res, err := e.ProcessFrame(frameAt(i+1, person(b)))
		require.NoError(t, err)

		switch i + 1 {
		case 3:
			require.Len(t, res.Alerts, 1)
			assert.Equal(t, models.AlertKindZoneEntry, res.Alerts[0].Kind)
		case 6:
			require.Len(t, res.Alerts, 1)
			assert.Equal(t, models.AlertKindZoneExit, res.Alerts[0].Kind)
		default:
			assert.Empty(t, res.Alerts, "frame %d", i+1)
		}
	}

	alerts := rec.alerts()
	require.Len(t, alerts, 2)
	assert.Equal(t, alerts[0].TrackID, alerts[1].TrackID)
	assert.Equal(t, "gate", alerts[0].ZoneID)
	assert.Equal(t, models.ClassPerson, alerts[0].Class)
	assert.Equal(t, t0.Add(3*time.Second), alerts[0].Timestamp)
	assert.Equal(t, t0.Add(6*time.Second), alerts[1].Timestamp)
	assert.Equal(t, 0, rec.count(models.EventTypeSnapshot))
}

func TestEngineShortExitKeepsInside(t *testing.T) {
	t.Parallel()

	e, rec := newEngine(t, testSettings(), zoneDef("gate", 3))

	boxes := []models.Box{insideBox, insideBox, insideBox, outsideBox, insideBox, insideBox}
	for i, b := range boxes {
		_, err := e.ProcessFrame(frameAt(i+1, person(b)))
		require.NoError(t, err)
	}

	alerts := rec.alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertKindZoneEntry, alerts[0].Kind)

	state := e.State()
	require.Len(t, state.Intrusions, 1)
	assert.Equal(t, models.StatusInside, state.Intrusions[0].Status)
}

func TestEngineCooldownAcrossTracks(t *testing.T) {
	t.Parallel()

	e, rec := newEngine(t, testSettings(), zoneDef("gate", 1))

	a := person(models.Box{X: 5, Y: 5, Width: 10, Height: 10})
	b := person(models.Box{X: 80, Y: 80, Width: 10, Height: 10})

	res, err := e.ProcessFrame(frameAt(1, a, b))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Live)
	assert.Equal(t, 2, res.Signals)
	require.Len(t, res.Alerts, 1)

	state := e.State()
	assert.Equal(t, int64(1), state.SuppressedCount["gate"])
	assert.Len(t, rec.alerts(), 1)
	assert.Equal(t, int64(1), e.SuppressedByReason()["gate"][models.SuppressedCooldown])
}

func TestEngineEvictionClosesEveryOpenEntry(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.Tracking.MaxMissedFrames = 0
	e, rec := newEngine(t, settings, zoneDef("gate", 1))

	a := person(models.Box{X: 5, Y: 5, Width: 10, Height: 10})
	b := person(models.Box{X: 80, Y: 80, Width: 10, Height: 10})

	_, err := e.ProcessFrame(frameAt(1, a))
	require.NoError(t, err)
	_, err = e.ProcessFrame(frameAt(20, a, b))
	require.NoError(t, err)

	// both tracks vanish in the same frame, inside the exit cooldown window
	res, err := e.ProcessFrame(frameAt(21))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Destroyed)
	require.Len(t, res.Alerts, 2)
	for _, alert := range res.Alerts {
		assert.Equal(t, models.AlertKindZoneExit, alert.Kind)
		assert.Equal(t, models.ReasonTrackLost, alert.Reason)
	}
	assert.NotEqual(t, res.Alerts[0].TrackID, res.Alerts[1].TrackID)

	assert.Len(t, rec.alerts(), 4)
	assert.Empty(t, e.State().SuppressedCount)
	assert.Empty(t, e.State().Intrusions)
}

func TestEngineZoneCooldownOverride(t *testing.T) {
	t.Parallel()

	def := zoneDef("gate", 1)
	def.Cooldown = time.Second
	e, rec := newEngine(t, testSettings(), def)

	a := person(models.Box{X: 5, Y: 5, Width: 10, Height: 10})
	b := person(models.Box{X: 80, Y: 80, Width: 10, Height: 10})

	_, err := e.ProcessFrame(frameAt(1, a))
	require.NoError(t, err)
	_, err = e.ProcessFrame(frameAt(3, a, b))
	require.NoError(t, err)

	alerts := rec.alerts()
	require.Len(t, alerts, 2)
	assert.NotEqual(t, alerts[0].TrackID, alerts[1].TrackID)
}

func TestEngineRejectsOutOfOrderFrames(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, testSettings(), zoneDef("gate", 3))

	_, err := e.ProcessFrame(frameAt(5, person(insideBox)))
	require.NoError(t, err)

	_, err = e.ProcessFrame(frameAt(4, person(insideBox)))
	require.ErrorIs(t, err, ErrOutOfOrder)

	// same timestamp is not older
	_, err = e.ProcessFrame(frameAt(5, person(insideBox)))
	require.NoError(t, err)

	stats := e.Stats()
	assert.Equal(t, int64(2), stats.FramesProcessed)
	assert.Equal(t, int64(1), stats.FramesRejected)
	assert.True(t, t0.Add(5*time.Second).Equal(stats.LastFrameTimestamp))

	state := e.State()
	require.Len(t, state.Intrusions, 1)
	assert.Equal(t, 2, state.Intrusions[0].ConsecutiveIn, "rejected frame must not advance state")
}

func TestEngineDropsBadDetections(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, testSettings(), zoneDef("gate", 3))

	frame := frameAt(1,
		person(insideBox),
		models.Detection{Class: "", Confidence: 0.9, Box: insideBox},
		models.Detection{Class: "car", Confidence: 0.1, Box: outsideBox},
		models.Detection{Class: "person", Confidence: 0.8, Box: models.Box{X: 1, Y: 1}},
	)
	res, err := e.ProcessFrame(frame)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, 3, res.Dropped)
	assert.Equal(t, 1, res.Live)

	stats := e.Stats()
	assert.Equal(t, int64(2), stats.DroppedMalformed)
	assert.Equal(t, int64(1), stats.DroppedLowConfident)
}

func TestEngineStagedSettings(t *testing.T) {
	t.Parallel()

	e, _ := newEngine(t, testSettings(), zoneDef("gate", 3))

	bad := testSettings()
	bad.Tracking.Metric = "nearest"
	var cfgErr *models.ConfigError
	require.ErrorAs(t, e.UpdateSettings(bad), &cfgErr)
	assert.Equal(t, "tracking.metric", cfgErr.Field)

	bad = testSettings()
	bad.Tracking.Assignment = "auction"
	require.ErrorAs(t, e.UpdateSettings(bad), &cfgErr)
	assert.Equal(t, "tracking.assignment", cfgErr.Field)

	next := testSettings()
	next.MinConfidence = 0.95
	require.NoError(t, e.UpdateSettings(next))
	assert.Equal(t, 0.95, e.Settings().MinConfidence, "staged settings are reported")

	res, err := e.ProcessFrame(frameAt(1, person(insideBox)))
	require.NoError(t, err)
	assert.Equal(t, 0, res.Accepted, "staged threshold applies from the next frame")
	assert.Equal(t, 1, res.Dropped)
}

func TestEngineSnapshotInterval(t *testing.T) {
	t.Parallel()

	settings := testSettings()
	settings.SnapshotInterval = 2 * time.Second
	e, rec := newEngine(t, settings, zoneDef("gate", 3))

	var snapshots []int
	for i := 1; i <= 5; i++ {
		res, err := e.ProcessFrame(frameAt(i, person(insideBox)))
		require.NoError(t, err)
		if res.Snapshot {
			snapshots = append(snapshots, i)
		}
	}

	assert.Equal(t, []int{1, 3, 5}, snapshots)
	assert.Equal(t, 3, rec.count(models.EventTypeSnapshot))

	state := e.State()
	assert.Equal(t, int64(5), state.FrameCount)
	assert.Equal(t, uint64(1), state.ZoneVersion)
	require.Len(t, state.Tracks, 1)
}

func TestEngineZoneSwitchBetweenFrames(t *testing.T) {
	t.Parallel()

	registry := zones.NewRegistry()
	require.NoError(t, registry.Load([]models.ZoneDefinition{zoneDef("gate", 1)}))
	dedup, err := postprocessing.NewService(postprocessing.Options{Cooldown: time.Second})
	require.NoError(t, err)
	rec := &recorder{}
	e, err := NewEngine(registry, dedup, rec, testSettings())
	require.NoError(t, err)

	_, err = e.ProcessFrame(frameAt(1, person(insideBox)))
	require.NoError(t, err)
	require.Len(t, rec.alerts(), 1)

	require.NoError(t, registry.SetActive("gate", false))

	res, err := e.ProcessFrame(frameAt(2, person(insideBox)))
	require.NoError(t, err)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, models.AlertKindZoneExit, res.Alerts[0].Kind)
	assert.Equal(t, models.ReasonZoneInactive, res.Alerts[0].Reason)
	assert.Equal(t, uint64(2), e.State().ZoneVersion)
	assert.Empty(t, e.State().Intrusions)
}

func TestEngineReset(t *testing.T) {
	t.Parallel()

	e, rec := newEngine(t, testSettings(), zoneDef("gate", 1))

	_, err := e.ProcessFrame(frameAt(1, person(insideBox)))
	require.NoError(t, err)
	require.Len(t, e.State().Intrusions, 1)

	e.Reset()
	res, err := e.ProcessFrame(frameAt(2))
	require.NoError(t, err)

	assert.Empty(t, res.Alerts, "reset drops state without emitting")
	assert.Empty(t, e.State().Tracks)
	assert.Empty(t, e.State().Intrusions)
	assert.Len(t, rec.alerts(), 1)
}

func TestNewEngineValidation(t *testing.T) {
	t.Parallel()

	registry := zones.NewRegistry()
	dedup, err := postprocessing.NewService(postprocessing.Options{})
	require.NoError(t, err)

	_, err = NewEngine(nil, dedup, &recorder{}, testSettings())
	assert.Error(t, err)
	_, err = NewEngine(registry, nil, &recorder{}, testSettings())
	assert.Error(t, err)
	_, err = NewEngine(registry, dedup, nil, testSettings())
	assert.Error(t, err)

	bad := testSettings()
	bad.Tracking.HistoryLength = 0
	_, err = NewEngine(registry, dedup, &recorder{}, bad)
	assert.Error(t, err)
}
