package eventbus

import (
	"sync"
	"sync/atomic"
	"time"

	"kepler-sentinel-go/internal/models"
)

// subscription is one consumer's bounded drop-oldest queue
type subscription struct {
	consumer Consumer
	name     string

	mu    sync.Mutex
	buf   []models.Event
	head  int
	count int

	overflow models.ConsumerOverflow
	notify   chan struct{}

	delivered atomic.Int64
	failed    atomic.Int64
}

func newSubscription(c Consumer, capacity int) *subscription {
	return &subscription{
		consumer: c,
		name:     c.Name(),
		buf:      make([]models.Event, capacity),
		overflow: models.ConsumerOverflow{Consumer: c.Name()},
		notify:   make(chan struct{}, 1),
	}
}

// push enqueues ev. When the buffer is full the oldest event is evicted and
// returned with ok set.
func (s *subscription) push(ev models.Event) (dropped models.Event, ok bool) {
	s.mu.Lock()
	if s.count == len(s.buf) {
		dropped = s.buf[s.head]
		s.buf[s.head] = models.Event{}
		s.head = (s.head + 1) % len(s.buf)
		s.count--
		ok = true

		s.overflow.Dropped++
		s.overflow.LastDroppedSequence = dropped.Sequence
		s.overflow.LastDroppedAt = time.Now()
	}
	s.buf[(s.head+s.count)%len(s.buf)] = ev
	s.count++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
	return dropped, ok
}

func (s *subscription) pop() (models.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return models.Event{}, false
	}
	ev := s.buf[s.head]
	s.buf[s.head] = models.Event{}
	s.head = (s.head + 1) % len(s.buf)
	s.count--
	return ev, true
}

func (s *subscription) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *subscription) overflowReport() models.ConsumerOverflow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overflow
}

func (s *subscription) stats() ConsumerStats {
	s.mu.Lock()
	buffered, capacity, dropped := s.count, len(s.buf), s.overflow.Dropped
	s.mu.Unlock()
	return ConsumerStats{
		Consumer:  s.name,
		Buffered:  buffered,
		Capacity:  capacity,
		Delivered: s.delivered.Load(),
		Failed:    s.failed.Load(),
		Dropped:   dropped,
	}
}
