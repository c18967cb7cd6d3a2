package eventbus

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kepler-sentinel-go/internal/models"
)

func alertEvent(seq uint64, id string) models.Event {
	return models.Event{
		Sequence: seq,
		Type:     models.EventTypeAlert,
		Alert: &models.Alert{
			ID:        id,
			TrackID:   seq,
			ZoneID:    "gate",
			Kind:      models.AlertKindZoneEntry,
			Timestamp: time.Date(2024, 1, 1, 0, 0, int(seq), 0, time.UTC),
		},
	}
}

func TestHistoryKeepsMostRecent(t *testing.T) {
	t.Parallel()

	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		require.NoError(t, h.Deliver(context.Background(), alertEvent(uint64(i), "a"+string(rune('0'+i)))))
	}
	assert.Equal(t, 3, h.Len())

	alerts := h.Alerts(0)
	require.Len(t, alerts, 3)
	assert.Equal(t, "a3", alerts[0].ID)
	assert.Equal(t, "a5", alerts[2].ID)

	last := h.Alerts(2)
	require.Len(t, last, 2)
	assert.Equal(t, "a4", last[0].ID)

	h.Clear()
	assert.Empty(t, h.Alerts(0))
}

func TestHistorySnapshotAndSystem(t *testing.T) {
	t.Parallel()

	h := NewHistory(10)
	assert.Nil(t, h.Snapshot())

	snap := &models.StateSnapshot{FrameCount: 42}
	require.NoError(t, h.Deliver(context.Background(), models.Event{Type: models.EventTypeSnapshot, Snapshot: snap}))
	require.NoError(t, h.Deliver(context.Background(), models.Event{Type: models.EventTypeSystem, Message: "started"}))

	require.NotNil(t, h.Snapshot())
	assert.Equal(t, int64(42), h.Snapshot().FrameCount)
	require.Len(t, h.SystemEvents(), 1)
	assert.Equal(t, "started", h.SystemEvents()[0].Message)
	assert.Equal(t, 0, h.Len())
}

func TestLogConsumerWritesAlert(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	c := NewLogConsumer(&logger)
	assert.Equal(t, "log", c.Name())

	require.NoError(t, c.Deliver(context.Background(), alertEvent(7, "alert-7")))
	out := buf.String()
	assert.Contains(t, out, `"alert_id":"alert-7"`)
	assert.Contains(t, out, `"zone_id":"gate"`)
	assert.Contains(t, out, `"consumer":"log"`)
}
