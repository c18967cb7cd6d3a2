package detection

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kepler-sentinel-go/internal/models"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func TestDecodeFrame(t *testing.T) {
	t.Parallel()

	raw := `{"frame_id": 7, "camera_id": "cam-1", "timestamp": "2024-01-01T12:00:00Z", "detections": [
		{"class": "person", "confidence": 0.9, "box": {"x": 1, "y": 2, "width": 3, "height": 4}},
		{"label": "car", "score": 0.8, "bbox": [10, 20, 30, 60]},
		{"class": "person"}
	]}`
	frame, err := DecodeFrame([]byte(raw), time.Now())
	require.NoError(t, err)

	assert.Equal(t, int64(7), frame.FrameID)
	assert.Equal(t, "cam-1", frame.CameraID)
	assert.True(t, frame.Timestamp.Equal(t0))
	require.Len(t, frame.Detections, 3)

	assert.Equal(t, models.Detection{Class: "person", Confidence: 0.9, Box: models.Box{X: 1, Y: 2, Width: 3, Height: 4}}, frame.Detections[0])
	assert.Equal(t, models.Detection{Class: "car", Confidence: 0.8, Box: models.Box{X: 10, Y: 20, Width: 20, Height: 40}}, frame.Detections[1])

	missing := frame.Detections[2]
	assert.True(t, math.IsNaN(missing.Confidence))
	_, err = missing.Normalize(2)
	var malformed *models.MalformedDetectionError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "confidence", malformed.Field)
}

func TestDecodeFrameDefaultsTimestamp(t *testing.T) {
	t.Parallel()

	frame, err := DecodeFrame([]byte(`{"detections": []}`), t0)
	require.NoError(t, err)
	assert.Equal(t, t0, frame.Timestamp)

	_, err = DecodeFrame([]byte(`{not json`), t0)
	assert.Error(t, err)
}

func TestEncodeDecodeFrame(t *testing.T) {
	t.Parallel()

	in := models.Frame{FrameID: 3, Timestamp: t0, Detections: []models.Detection{
		{Class: models.ClassVehicle, Confidence: 0.5, Box: models.Box{X: 1, Y: 1, Width: 2, Height: 2}},
	}}
	data, err := EncodeFrame(in)
	require.NoError(t, err)
	out, err := DecodeFrame(data, time.Now())
	require.NoError(t, err)
	assert.Equal(t, in.Detections, out.Detections)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))
}

func collect(ctx context.Context, t *testing.T, src Source) ([]models.Frame, error) {
	t.Helper()
	out := make(chan models.Frame, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- src.Run(ctx, out)
		close(out)
	}()
	var frames []models.Frame
	for f := range out {
		frames = append(frames, f)
	}
	return frames, <-errCh
}

func TestFileSource(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "frames.jsonl")
	content := `{"frame_id": 1, "timestamp": "2024-01-01T12:00:00Z", "detections": []}
# comment

this is not json
{"frame_id": 2, "timestamp": "2024-01-01T12:00:01Z", "detections": [{"class": "person", "confidence": 0.7, "box": {"x": 0, "y": 0, "width": 5, "height": 5}}]}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	frames, err := collect(context.Background(), t, NewFileSource(path, false))
	require.NoError(t, err)
	require.Len(t, frames, 2)
	assert.Equal(t, int64(1), frames[0].FrameID)
	assert.Equal(t, int64(2), frames[1].FrameID)
	assert.Len(t, frames[1].Detections, 1)
}

func TestFileSourceMissingFile(t *testing.T) {
	t.Parallel()

	_, err := collect(context.Background(), t, NewFileSource(filepath.Join(t.TempDir(), "absent.jsonl"), false))
	assert.Error(t, err)
}

func TestFileSourceRealtimeStopsOnCancel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "frames.jsonl")
	content := `{"timestamp": "2024-01-01T12:00:00Z", "detections": []}
{"timestamp": "2024-01-01T13:00:00Z", "detections": []}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	frames, err := collect(ctx, t, NewFileSource(path, true))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, frames, 1)
}

func TestPollingSource(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	det := DetectorFunc(func(ctx context.Context, ts time.Time) ([]models.Detection, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return nil, errors.New("model warming up")
		}
		return []models.Detection{{Class: models.ClassPerson, Confidence: 0.9, Box: models.Box{Width: 1, Height: 1}}}, nil
	})

	src, err := NewPollingSource(det, 5*time.Millisecond, "cam-1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan models.Frame, 4)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	first := <-out
	second := <-out
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, int64(1), first.FrameID)
	assert.Equal(t, int64(2), second.FrameID)
	assert.Equal(t, "cam-1", first.CameraID)
	assert.False(t, second.Timestamp.Before(first.Timestamp))
	assert.True(t, src.IsHealthy())
}

func TestNewPollingSourceValidates(t *testing.T) {
	t.Parallel()

	_, err := NewPollingSource(nil, time.Second, "")
	assert.Error(t, err)
	_, err = NewPollingSource(DetectorFunc(nil), 0, "")
	assert.Error(t, err)
}

type fakeSubscriber struct {
	mu      sync.Mutex
	handler func([]byte)
	ready   chan struct{}
}

func (f *fakeSubscriber) QueueSubscribe(subject, queue string, handler func([]byte)) (*nats.Subscription, error) {
	f.mu.Lock()
	f.handler = handler
	f.mu.Unlock()
	close(f.ready)
	return nil, nil
}

func TestNATSSource(t *testing.T) {
	t.Parallel()

	sub := &fakeSubscriber{ready: make(chan struct{})}
	src, err := NewNATSSource(sub, "detections", "sentinel")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan models.Frame, 4)
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, out) }()

	<-sub.ready
	sub.mu.Lock()
	handler := sub.handler
	sub.mu.Unlock()

	handler([]byte(`{"frame_id": 9, "timestamp": "2024-01-01T12:00:00Z", "detections": []}`))
	handler([]byte(`garbage`))

	frame := <-out
	assert.Equal(t, int64(9), frame.FrameID)

	received, invalid := src.Stats()
	assert.Equal(t, int64(1), received)
	assert.Equal(t, int64(1), invalid)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
