package eventbus

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"kepler-sentinel-go/internal/metrics"
	"kepler-sentinel-go/internal/models"
)

// Consumer receives bus events. Deliver may block; the bus calls it from the
// consumer's own goroutine only.
type Consumer interface {
	Name() string
	Deliver(ctx context.Context, event models.Event) error
}

// Options configures buffering and retries
type Options struct {
	// Default per-consumer buffer size when Subscribe gets 0
	BufferSize int
	// Deliver attempts per event before it is counted as failed
	MaxAttempts int
	// Base delay between attempts, doubled every retry
	RetryBackoff time.Duration
	// Upper bound for the retry delay
	MaxBackoff time.Duration
}

// DefaultOptions returns the default bus options
func DefaultOptions() Options {
	return Options{
		BufferSize:   256,
		MaxAttempts:  3,
		RetryBackoff: 100 * time.Millisecond,
		MaxBackoff:   2 * time.Second,
	}
}

// ConsumerStats is the delivery report of one subscription
type ConsumerStats struct {
	Consumer  string `json:"consumer"`
	Buffered  int    `json:"buffered"`
	Capacity  int    `json:"capacity"`
	Delivered int64  `json:"delivered"`
	Failed    int64  `json:"failed"`
	Dropped   int64  `json:"dropped"`
}

// Bus fans events out to consumers. Publish never blocks on a consumer:
// each subscription owns a bounded ring buffer and, when full, the oldest
// buffered event is dropped and recorded as a ConsumerOverflow.
type Bus struct {
	opts Options

	mu      sync.RWMutex
	subs    []*subscription
	byName  map[string]*subscription
	serving context.Context
	wg      sync.WaitGroup

	seq atomic.Uint64
}

// NewBus creates a bus
func NewBus(opts Options) *Bus {
	def := DefaultOptions()
	if opts.BufferSize <= 0 {
		opts.BufferSize = def.BufferSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = def.RetryBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = def.MaxBackoff
	}
	return &Bus{
		opts:   opts,
		byName: make(map[string]*subscription),
	}
}

// Subscribe registers a consumer with its own buffer. Safe to call while the
// bus is serving; the consumer only sees events published after it joined.
func (b *Bus) Subscribe(c Consumer, bufferSize int) error {
	if c == nil {
		return fmt.Errorf("consumer is required")
	}
	if bufferSize <= 0 {
		bufferSize = b.opts.BufferSize
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	name := c.Name()
	if _, exists := b.byName[name]; exists {
		return fmt.Errorf("consumer %q already subscribed", name)
	}
	sub := newSubscription(c, bufferSize)
	b.subs = append(b.subs, sub)
	b.byName[name] = sub
	if b.serving != nil && b.serving.Err() == nil {
		b.start(b.serving, sub)
	}

	log.Info().
		Str("consumer", name).
		Int("buffer_size", bufferSize).
		Msg("Event bus consumer subscribed")
	return nil
}

// Publish assigns the next sequence number and enqueues the event for every
// consumer. The stamped event is returned.
func (b *Bus) Publish(ev models.Event) models.Event {
	ev.Sequence = b.seq.Add(1)
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	metrics.BusPublished.WithLabelValues(string(ev.Type)).Inc()

	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, sub := range subs {
		if dropped, ok := sub.push(ev); ok {
			metrics.BusDropped.WithLabelValues(sub.name).Inc()
			log.Warn().
				Str("consumer", sub.name).
				Uint64("dropped_sequence", dropped.Sequence).
				Str("dropped_type", string(dropped.Type)).
				Msg("Consumer overflow, oldest event dropped")
		}
		metrics.BusBuffered.WithLabelValues(sub.name).Set(float64(sub.len()))
	}
	return ev
}

// Serve delivers events until ctx is done. Implements suture.Service.
func (b *Bus) Serve(ctx context.Context) error {
	b.mu.Lock()
	if b.serving != nil {
		b.mu.Unlock()
		return fmt.Errorf("event bus already serving")
	}
	b.serving = ctx
	for _, sub := range b.subs {
		b.start(ctx, sub)
	}
	consumers := len(b.subs)
	b.mu.Unlock()

	log.Info().Int("consumers", consumers).Msg("Event bus started")
	<-ctx.Done()

	b.wg.Wait()
	b.mu.Lock()
	b.serving = nil
	b.mu.Unlock()

	log.Info().Msg("Event bus stopped")
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs
func (b *Bus) String() string {
	return "event-bus"
}

// Overflows returns a ConsumerOverflow for every consumer that dropped events
func (b *Bus) Overflows() []models.ConsumerOverflow {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []models.ConsumerOverflow
	for _, sub := range b.subs {
		if o := sub.overflowReport(); o.Dropped > 0 {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Consumer < out[j].Consumer })
	return out
}

// Stats returns delivery counters for every consumer, ordered by name
func (b *Bus) Stats() []ConsumerStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]ConsumerStats, 0, len(b.subs))
	for _, sub := range b.subs {
		out = append(out, sub.stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Consumer < out[j].Consumer })
	return out
}

// LastSequence returns the sequence number of the most recent event
func (b *Bus) LastSequence() uint64 {
	return b.seq.Load()
}

// start launches the delivery goroutine of sub. Caller holds b.mu.
func (b *Bus) start(ctx context.Context, sub *subscription) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run(ctx, sub)
	}()
}

func (b *Bus) run(ctx context.Context, sub *subscription) {
	for {
		ev, ok := sub.pop()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-sub.notify:
				continue
			}
		}
		metrics.BusBuffered.WithLabelValues(sub.name).Set(float64(sub.len()))
		if !b.deliver(ctx, sub, ev) && ctx.Err() != nil {
			return
		}
	}
}

// deliver retries one event with exponential backoff
func (b *Bus) deliver(ctx context.Context, sub *subscription, ev models.Event) bool {
	var err error
	for attempt := 1; attempt <= b.opts.MaxAttempts; attempt++ {
		if err = safeDeliver(ctx, sub.consumer, ev); err == nil {
			sub.delivered.Add(1)
			metrics.BusDelivered.WithLabelValues(sub.name).Inc()
			return true
		}
		if attempt == b.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(b.backoff(attempt)):
		}
	}

	sub.failed.Add(1)
	metrics.BusDeliveryFailures.WithLabelValues(sub.name).Inc()
	log.Error().
		Err(err).
		Str("consumer", sub.name).
		Uint64("sequence", ev.Sequence).
		Int("attempts", b.opts.MaxAttempts).
		Msg("Event delivery failed")
	return false
}

// backoff returns base * 2^(attempt-1), capped
func (b *Bus) backoff(attempt int) time.Duration {
	d := b.opts.RetryBackoff << (attempt - 1)
	if d <= 0 || d > b.opts.MaxBackoff {
		return b.opts.MaxBackoff
	}
	return d
}

func safeDeliver(ctx context.Context, c Consumer, ev models.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("consumer panic: %v", r)
		}
	}()
	return c.Deliver(ctx, ev)
}
