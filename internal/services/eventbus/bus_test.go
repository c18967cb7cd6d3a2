package eventbus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kepler-sentinel-go/internal/models"
)

type recorder struct {
	name string
	mu   sync.Mutex
	seen []uint64
	// fail makes the first n deliveries of every event fail
	fail  int
	tries map[uint64]int
	gate  chan struct{}
}

func newRecorder(name string) *recorder {
	return &recorder{name: name, tries: make(map[uint64]int)}
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Deliver(ctx context.Context, ev models.Event) error {
	if r.gate != nil {
		select {
		case <-r.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tries[ev.Sequence]++
	if r.tries[ev.Sequence] <= r.fail {
		return errors.New("sink unavailable")
	}
	r.seen = append(r.seen, ev.Sequence)
	return nil
}

func (r *recorder) sequences() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, len(r.seen))
	copy(out, r.seen)
	return out
}

type panicky struct{}

func (panicky) Name() string { return "panicky" }
func (panicky) Deliver(context.Context, models.Event) error {
	panic("boom")
}

func fastOptions() Options {
	return Options{BufferSize: 16, MaxAttempts: 3, RetryBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func serve(t *testing.T, b *Bus) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Serve(ctx) }()
	t.Cleanup(cancel)
	return cancel, done
}

func system(msg string) models.Event {
	return models.Event{Type: models.EventTypeSystem, Message: msg}
}

func TestPublishAssignsSequence(t *testing.T) {
	t.Parallel()

	b := NewBus(fastOptions())
	first := b.Publish(system("a"))
	second := b.Publish(system("b"))
	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)
	assert.False(t, first.Timestamp.IsZero())
	assert.Equal(t, uint64(2), b.LastSequence())
}

func TestSubscribeRejectsDuplicateName(t *testing.T) {
	t.Parallel()

	b := NewBus(fastOptions())
	require.NoError(t, b.Subscribe(newRecorder("dash"), 0))
	assert.Error(t, b.Subscribe(newRecorder("dash"), 0))
	assert.Error(t, b.Subscribe(nil, 0))
}

func TestPublishNeverBlocksOnStuckConsumer(t *testing.T) {
	t.Parallel()

	b := NewBus(fastOptions())
	stuck := newRecorder("stuck")
	stuck.gate = make(chan struct{})
	require.NoError(t, b.Subscribe(stuck, 2))
	serve(t, b)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(system("tick"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a stuck consumer")
	}

	overflows := b.Overflows()
	require.Len(t, overflows, 1)
	assert.Equal(t, "stuck", overflows[0].Consumer)
	assert.GreaterOrEqual(t, overflows[0].Dropped, int64(97))
	assert.Equal(t, uint64(100)-2, overflows[0].LastDroppedSequence)
	close(stuck.gate)
}

func TestOverflowDropsOldest(t *testing.T) {
	t.Parallel()

	b := NewBus(fastOptions())
	r := newRecorder("dash")
	require.NoError(t, b.Subscribe(r, 3))

	for i := 0; i < 5; i++ {
		b.Publish(system("tick"))
	}
	overflows := b.Overflows()
	require.Len(t, overflows, 1)
	assert.Equal(t, int64(2), overflows[0].Dropped)
	assert.Equal(t, uint64(2), overflows[0].LastDroppedSequence)

	serve(t, b)
	require.Eventually(t, func() bool { return len(r.sequences()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint64{3, 4, 5}, r.sequences())
}

func TestOrderedFanOut(t *testing.T) {
	t.Parallel()

	b := NewBus(fastOptions())
	one, two := newRecorder("one"), newRecorder("two")
	require.NoError(t, b.Subscribe(one, 64))
	require.NoError(t, b.Subscribe(two, 64))
	serve(t, b)

	for i := 0; i < 20; i++ {
		b.Publish(system("tick"))
	}
	want := make([]uint64, 20)
	for i := range want {
		want[i] = uint64(i + 1)
	}
	require.Eventually(t, func() bool { return len(one.sequences()) == 20 && len(two.sequences()) == 20 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, one.sequences())
	assert.Equal(t, want, two.sequences())
	assert.Empty(t, b.Overflows())
}

func TestSlowConsumerDoesNotDelayOthers(t *testing.T) {
	t.Parallel()

	b := NewBus(fastOptions())
	slow, fast := newRecorder("slow"), newRecorder("fast")
	slow.gate = make(chan struct{})
	require.NoError(t, b.Subscribe(slow, 4))
	require.NoError(t, b.Subscribe(fast, 64))
	serve(t, b)

	for i := 0; i < 10; i++ {
		b.Publish(system("tick"))
	}
	require.Eventually(t, func() bool { return len(fast.sequences()) == 10 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, slow.sequences())
	close(slow.gate)
}

func TestRetryUntilDelivered(t *testing.T) {
	t.Parallel()

	b := NewBus(fastOptions())
	r := newRecorder("flaky")
	r.fail = 2
	require.NoError(t, b.Subscribe(r, 0))
	serve(t, b)

	b.Publish(system("tick"))
	require.Eventually(t, func() bool { return len(r.sequences()) == 1 }, time.Second, 5*time.Millisecond)

	stats := b.Stats()
	require.Len(t, stats, 1)
	assert.Equal(t, int64(1), stats[0].Delivered)
	assert.Equal(t, int64(0), stats[0].Failed)
}

func TestGiveUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	b := NewBus(fastOptions())
	r := newRecorder("down")
	r.fail = 10
	require.NoError(t, b.Subscribe(r, 0))
	serve(t, b)

	b.Publish(system("a"))
	b.Publish(system("b"))
	require.Eventually(t, func() bool { return b.Stats()[0].Failed == 2 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, r.sequences())
	r.mu.Lock()
	assert.Equal(t, 3, r.tries[1])
	r.mu.Unlock()
}

func TestPanickingConsumerIsContained(t *testing.T) {
	t.Parallel()

	b := NewBus(fastOptions())
	ok := newRecorder("ok")
	require.NoError(t, b.Subscribe(panicky{}, 0))
	require.NoError(t, b.Subscribe(ok, 0))
	serve(t, b)

	b.Publish(system("tick"))
	require.Eventually(t, func() bool {
		for _, s := range b.Stats() {
			if s.Consumer == "panicky" && s.Failed == 1 {
				return len(ok.sequences()) == 1
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestSubscribeWhileServing(t *testing.T) {
	t.Parallel()

	b := NewBus(fastOptions())
	serve(t, b)
	b.Publish(system("before"))

	late := newRecorder("late")
	require.Eventually(t, func() bool {
		b.mu.RLock()
		defer b.mu.RUnlock()
		return b.serving != nil
	}, time.Second, time.Millisecond)
	require.NoError(t, b.Subscribe(late, 0))
	b.Publish(system("after"))

	require.Eventually(t, func() bool { return len(late.sequences()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []uint64{2}, late.sequences())
}

func TestServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	b := NewBus(fastOptions())
	stuck := newRecorder("stuck")
	stuck.gate = make(chan struct{})
	require.NoError(t, b.Subscribe(stuck, 0))
	cancel, done := serve(t, b)
	b.Publish(system("tick"))

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}
}

func TestBackoffCapped(t *testing.T) {
	t.Parallel()

	b := NewBus(Options{RetryBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond})
	assert.Equal(t, 100*time.Millisecond, b.backoff(1))
	assert.Equal(t, 200*time.Millisecond, b.backoff(2))
	assert.Equal(t, 300*time.Millisecond, b.backoff(3))
	assert.Equal(t, 300*time.Millisecond, b.backoff(40))
}

func TestConcurrentPublish(t *testing.T) {
	t.Parallel()

	b := NewBus(fastOptions())
	r := newRecorder("all")
	require.NoError(t, b.Subscribe(r, 1000))
	serve(t, b)

	var wg sync.WaitGroup
	var published atomic.Int64
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.Publish(system("tick"))
				published.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Eventually(t, func() bool { return int64(len(r.sequences())) == published.Load() }, 2*time.Second, 5*time.Millisecond)
}
