package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"

	"kepler-sentinel-go/internal/models"
	"kepler-sentinel-go/internal/services/detection"
)

// Runner feeds frames from a detection source into the engine.
// It implements suture.Service.
type Runner struct {
	engine    *Engine
	source    detection.Source
	queueSize int

	running   atomic.Bool
	exhausted atomic.Bool
}

// NewRunner creates a runner; queueSize bounds frames waiting for the engine
func NewRunner(engine *Engine, source detection.Source, queueSize int) (*Runner, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if source == nil {
		return nil, fmt.Errorf("detection source is required")
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Runner{engine: engine, source: source, queueSize: queueSize}, nil
}

// Serve processes frames until ctx is done or the source is exhausted.
// Cancellation is honoured between frames, never inside one.
func (r *Runner) Serve(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)

	srcCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	frames := make(chan models.Frame, r.queueSize)
	srcDone := make(chan error, 1)
	go func() {
		srcDone <- r.source.Run(srcCtx, frames)
	}()

	log.Info().Str("source", r.source.String()).Int("queue_size", r.queueSize).Msg("Pipeline runner started")

	for {
		select {
		case <-ctx.Done():
			cancel()
			<-srcDone
			log.Info().Msg("Pipeline runner stopped")
			return ctx.Err()

		case err := <-srcDone:
			r.drain(ctx, frames)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("detection source %s: %w", r.source, err)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.exhausted.Store(true)
			log.Info().Str("source", r.source.String()).Msg("Detection source exhausted")
			return suture.ErrDoNotRestart

		case frame := <-frames:
			if ctx.Err() != nil {
				continue
			}
			r.process(frame)
		}
	}
}

// drain processes frames the source queued before it returned
func (r *Runner) drain(ctx context.Context, frames <-chan models.Frame) {
	for ctx.Err() == nil {
		select {
		case frame := <-frames:
			r.process(frame)
		default:
			return
		}
	}
}

func (r *Runner) process(frame models.Frame) {
	if _, err := r.engine.ProcessFrame(frame); err != nil && !errors.Is(err, ErrOutOfOrder) {
		log.Error().Err(err).Int64("frame_id", frame.FrameID).Msg("Frame processing failed")
	}
}

// IsRunning reports whether Serve is active
func (r *Runner) IsRunning() bool {
	return r.running.Load()
}

// Exhausted reports whether the source reached its end
func (r *Runner) Exhausted() bool {
	return r.exhausted.Load()
}

// Stale reports whether no frame was processed within threshold.
// A runner that has not processed any frame yet is not stale.
func (r *Runner) Stale(threshold time.Duration) bool {
	last := r.engine.Stats().LastProcessedAt
	if last.IsZero() || threshold <= 0 {
		return false
	}
	return time.Since(last) > threshold
}

func (r *Runner) String() string {
	return "pipeline-runner"
}
