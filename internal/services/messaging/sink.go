package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	gobreaker "github.com/sony/gobreaker/v2"

	"kepler-sentinel-go/internal/models"
)

// BreakerConfig controls the circuit breaker in front of NATS publishes
type BreakerConfig struct {
	// Consecutive publish failures that open the breaker; 0 means 5
	FailureThreshold uint32
	// Time the breaker stays open before letting one probe through; 0 means 30s
	Timeout time.Duration
}

// Sink is an event bus consumer that forwards events to NATS subjects
type Sink struct {
	publisher       models.MessagePublisher
	breaker         *gobreaker.CircuitBreaker[struct{}]
	alertsSubject   string
	snapshotSubject string
	systemSubject   string
}

// NewSink creates a NATS sink. An empty snapshotSubject disables snapshot
// forwarding.
func NewSink(publisher models.MessagePublisher, alertsSubject, snapshotSubject string, bc BreakerConfig) (*Sink, error) {
	if publisher == nil {
		return nil, fmt.Errorf("message publisher is required")
	}
	if alertsSubject == "" {
		alertsSubject = "alerts.intrusion"
	}
	if bc.FailureThreshold == 0 {
		bc.FailureThreshold = 5
	}
	if bc.Timeout <= 0 {
		bc.Timeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "nats-sink",
		MaxRequests: 1,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("NATS sink circuit breaker changed state")
		},
	})

	return &Sink{
		publisher:       publisher,
		breaker:         breaker,
		alertsSubject:   alertsSubject,
		snapshotSubject: snapshotSubject,
		systemSubject:   alertsSubject + ".system",
	}, nil
}

func (s *Sink) Name() string { return "nats" }

// BreakerState reports the breaker state: closed, half-open or open
func (s *Sink) BreakerState() string {
	return s.breaker.State().String()
}

// Deliver publishes one event. Errors are returned so the bus retries; while
// the breaker is open, Deliver fails fast with gobreaker.ErrOpenState.
func (s *Sink) Deliver(_ context.Context, ev models.Event) error {
	switch ev.Type {
	case models.EventTypeAlert:
		if ev.Alert == nil {
			return nil
		}
		subject := s.alertsSubject + "." + ev.Alert.ZoneID
		if err := s.publish(subject, ev); err != nil {
			return fmt.Errorf("failed to publish alert %s: %w", ev.Alert.ID, err)
		}
	case models.EventTypeSnapshot:
		if s.snapshotSubject == "" {
			return nil
		}
		if err := s.publish(s.snapshotSubject, ev); err != nil {
			return fmt.Errorf("failed to publish snapshot %d: %w", ev.Sequence, err)
		}
	default:
		if err := s.publish(s.systemSubject, ev); err != nil {
			return fmt.Errorf("failed to publish system event %d: %w", ev.Sequence, err)
		}
	}
	return nil
}

func (s *Sink) publish(subject string, ev models.Event) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.publisher.Publish(subject, ev)
	})
	return err
}
