package detection

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/models"
)

// Detector is the black-box vision model: detections for one timestamp
type Detector interface {
	Detect(ctx context.Context, ts time.Time) ([]models.Detection, error)
}

// DetectorFunc adapts a function to Detector
type DetectorFunc func(ctx context.Context, ts time.Time) ([]models.Detection, error)

func (f DetectorFunc) Detect(ctx context.Context, ts time.Time) ([]models.Detection, error) {
	return f(ctx, ts)
}

// Source produces frames in timestamp order into out until the input is
// exhausted (nil) or ctx is done (ctx.Err()).
type Source interface {
	Run(ctx context.Context, out chan<- models.Frame) error
	String() string
}

// PollingSource calls a Detector at a fixed interval
type PollingSource struct {
	detector  Detector
	interval  time.Duration
	cameraID  string
	frameID   atomic.Int64
	isHealthy atomic.Bool
	now       func() time.Time
}

// NewPollingSource creates a source polling detector every interval
func NewPollingSource(detector Detector, interval time.Duration, cameraID string) (*PollingSource, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive: %s", interval)
	}
	log.Info().
		Dur("interval", interval).
		Str("camera_id", cameraID).
		Msg("Initializing detector polling source")
	return &PollingSource{detector: detector, interval: interval, cameraID: cameraID, now: time.Now}, nil
}

func (s *PollingSource) Run(ctx context.Context, out chan<- models.Frame) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		ts := s.now()
		dets, err := s.detector.Detect(ctx, ts)
		if err != nil {
			if s.isHealthy.Swap(false) {
				log.Warn().Err(err).Msg("Detector unavailable, will retry on next tick")
			}
			continue
		}
		if !s.isHealthy.Swap(true) {
			log.Info().Msg("Detector available")
		}

		frame := models.Frame{
			FrameID:    s.frameID.Add(1),
			CameraID:   s.cameraID,
			Timestamp:  ts,
			Detections: dets,
		}
		select {
		case out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// IsHealthy reports whether the last Detect call succeeded
func (s *PollingSource) IsHealthy() bool {
	return s.isHealthy.Load()
}

func (s *PollingSource) String() string {
	return "detector-poller"
}
