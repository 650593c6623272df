package events

import (
	"iter"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/moodtune/moodtune-sync/internal/id"
)

// Subscriber receives events on C until it is unsubscribed or the bus closes.
// Missed fires once after one or more events could not be delivered because
// C was full, and again after the next drop once it has been read.
type Subscriber struct {
	ID          string
	C           <-chan Event
	Missed      <-chan struct{}
	ConnectedAt time.Time

	ch     chan Event
	missed chan struct{}
	types  []EventType
}

func (s *Subscriber) markMissed() {
	select {
	case s.missed <- struct{}{}:
	default:
	}
}

func (s *Subscriber) wants(t EventType) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

// Bus fans published events out to subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses the event and is signalled on
// Missed.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
	bufferSize  int
	logger      *slog.Logger
}

// NewBus creates a bus whose subscribers buffer up to bufferSize events.
func NewBus(logger *slog.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{
		subscribers: make(map[string]*Subscriber),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe registers a subscriber for the given types, or all types if none are given.
func (b *Bus) Subscribe(types ...EventType) *Subscriber {
	ch := make(chan Event, b.bufferSize)
	missed := make(chan struct{}, 1)
	sub := &Subscriber{
		ID:          id.MustGenerate("sub"),
		C:           ch,
		Missed:      missed,
		ConnectedAt: time.Now(),
		ch:          ch,
		missed:      missed,
		types:       types,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return sub
	}
	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call twice.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[sub.ID]; !ok {
		return
	}
	delete(b.subscribers, sub.ID)
	close(sub.ch)
}

// Publish delivers event to every interested subscriber.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	var delivered, dropped int
	for _, sub := range b.subscribers {
		if !sub.wants(event.Type) {
			continue
		}
		select {
		case sub.ch <- event:
			delivered++
		default:
			sub.markMissed()
			dropped++
		}
	}

	if dropped > 0 {
		b.logger.Warn("dropped events for slow subscribers",
			slog.String("event_type", string(event.Type)),
			slog.Int("dropped", dropped))
	}
	b.logger.Debug("event published",
		slog.String("event_type", string(event.Type)),
		slog.String("table", event.Table),
		slog.Int("delivered", delivered))
}

// Subscribers returns an iterator over current subscribers.
func (b *Bus) Subscribers() iter.Seq[*Subscriber] {
	return func(yield func(*Subscriber) bool) {
		b.mu.RLock()
		defer b.mu.RUnlock()
		for _, sub := range b.subscribers {
			if !yield(sub) {
				return
			}
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close disconnects every subscriber. Later publishes are dropped.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = make(map[string]*Subscriber)
	b.logger.Info("event bus closed")
	return nil
}
