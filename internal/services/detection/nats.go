package detection

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/models"
)

// Subscriber is the part of the messaging service the NATS source needs
type Subscriber interface {
	QueueSubscribe(subject, queue string, handler func([]byte)) (*nats.Subscription, error)
}

// NATSSource receives JSON frames from a NATS subject
type NATSSource struct {
	sub      Subscriber
	subject  string
	queue    string
	received atomic.Int64
	invalid  atomic.Int64
}

// NewNATSSource creates a source for subject, load-balanced over queue
func NewNATSSource(sub Subscriber, subject, queue string) (*NATSSource, error) {
	if sub == nil {
		return nil, fmt.Errorf("subscriber is required")
	}
	if subject == "" {
		return nil, fmt.Errorf("detections subject is required")
	}
	return &NATSSource{sub: sub, subject: subject, queue: queue}, nil
}

func (s *NATSSource) Run(ctx context.Context, out chan<- models.Frame) error {
	subscription, err := s.sub.QueueSubscribe(s.subject, s.queue, func(data []byte) {
		frame, err := DecodeFrame(data, time.Now())
		if err != nil {
			s.invalid.Add(1)
			log.Warn().Err(err).Str("subject", s.subject).Msg("Dropping undecodable frame message")
			return
		}
		s.received.Add(1)
		// frames are handed over in arrival order; the handler blocks while
		// the pipeline queue is full and NATS buffers upstream
		select {
		case out <- frame:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", s.subject, err)
	}

	log.Info().Str("subject", s.subject).Str("queue", s.queue).Msg("Subscribed to detections")
	<-ctx.Done()

	if err := subscription.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrBadSubscription) {
		log.Warn().Err(err).Str("subject", s.subject).Msg("Failed to unsubscribe from detections")
	}
	return ctx.Err()
}

// Stats returns received and undecodable message counts
func (s *NATSSource) Stats() (received, invalid int64) {
	return s.received.Load(), s.invalid.Load()
}

func (s *NATSSource) String() string {
	return "nats-source"
}
