package observer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dreschagin/vitals-bridge/internal/domain/entity"
	"github.com/dreschagin/vitals-bridge/internal/domain/valueobject"
)

// DefaultMaxBufferedEntries bounds the per-type replay buffer.
const DefaultMaxBufferedEntries = 150

var (
	ErrUnsupportedEntryType = errors.New("unsupported entry type")
	ErrTimelineClosed       = errors.New("timeline closed")
)

// Timeline is an in-memory performance timeline. Recorded entries are grouped
// by entry type and fanned out to subscribers; every subscriber gets its own
// copy of each batch, in recording order.
type Timeline struct {
	mu          sync.Mutex
	buffers     map[string][]entity.RawTimingEntry
	subs        map[string]map[*subscription]struct{}
	maxBuffered int
	closed      bool
}

// NewTimeline создает пустой timeline; maxBuffered <= 0 означает значение по умолчанию
func NewTimeline(maxBuffered int) *Timeline {
	if maxBuffered <= 0 {
		maxBuffered = DefaultMaxBufferedEntries
	}
	return &Timeline{
		buffers:     make(map[string][]entity.RawTimingEntry),
		subs:        make(map[string]map[*subscription]struct{}),
		maxBuffered: maxBuffered,
	}
}

// Observe implements port.Observer.
func (t *Timeline) Observe(ctx context.Context, entryType string, buffered bool) (<-chan []entity.RawTimingEntry, error) {
	if _, err := valueobject.KindFromEntryType(entryType); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEntryType, entryType)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTimelineClosed
	}

	sub := newSubscription()
	if buffered && len(t.buffers[entryType]) > 0 {
		sub.enqueue(entity.CloneEntries(t.buffers[entryType]))
	}

	if t.subs[entryType] == nil {
		t.subs[entryType] = make(map[*subscription]struct{})
	}
	t.subs[entryType][sub] = struct{}{}

	go func() {
		sub.run(ctx)
		t.unsubscribe(entryType, sub)
	}()

	return sub.out, nil
}

// Record adds entries to the timeline. Entries of one type recorded in a single
// call are delivered together as one batch.
func (t *Timeline) Record(entries ...entity.RawTimingEntry) error {
	if len(entries) == 0 {
		return nil
	}

	order := make([]string, 0, 4)
	batches := make(map[string][]entity.RawTimingEntry)
	for _, entry := range entries {
		if _, ok := batches[entry.EntryType]; !ok {
			order = append(order, entry.EntryType)
		}
		batches[entry.EntryType] = append(batches[entry.EntryType], entry.Clone())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrTimelineClosed
	}

	for _, entryType := range order {
		batch := batches[entryType]

		buffer := append(t.buffers[entryType], batch...)
		if overflow := len(buffer) - t.maxBuffered; overflow > 0 {
			buffer = append([]entity.RawTimingEntry(nil), buffer[overflow:]...)
		}
		t.buffers[entryType] = buffer

		for sub := range t.subs[entryType] {
			sub.enqueue(entity.CloneEntries(batch))
		}
	}

	return nil
}

// Buffered returns a copy of the replay buffer for one entry type.
func (t *Timeline) Buffered(entryType string) []entity.RawTimingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return entity.CloneEntries(t.buffers[entryType])
}

// Close ends every subscription once its pending batches are delivered.
func (t *Timeline) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true

	for _, subs := range t.subs {
		for sub := range subs {
			sub.close()
		}
	}
}

func (t *Timeline) unsubscribe(entryType string, sub *subscription) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.subs[entryType], sub)
}

// subscription is an unbounded FIFO pumped into out by its own goroutine,
// so Record never blocks on a slow consumer.
type subscription struct {
	mu     sync.Mutex
	queue  [][]entity.RawTimingEntry
	closed bool
	notify chan struct{}
	out    chan []entity.RawTimingEntry
}

func newSubscription() *subscription {
	return &subscription{
		notify: make(chan struct{}, 1),
		out:    make(chan []entity.RawTimingEntry),
	}
}

func (s *subscription) enqueue(batch []entity.RawTimingEntry) {
	s.mu.Lock()
	s.queue = append(s.queue, batch)
	s.mu.Unlock()
	s.signal()
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

func (s *subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			select {
			case <-s.notify:
				continue
			case <-ctx.Done():
				return
			}
		}
		batch := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- batch:
		case <-ctx.Done():
			return
		}
	}
}
