// Package bus provides in-process event fan-out between the agent adapters
// and the application frontends (CLI loop, future UIs).
package bus

import (
	"log/slog"
	"sync"
)

// Event is one named payload published on the bus.
type Event struct {
	// Name identifies the event kind, e.g. "stream-message".
	Name string
	// Payload is the event body, serializable to JSON.
	Payload any
}

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 256

// Bus fans events out to subscribers. Publishing never blocks: a subscriber
// that cannot keep up has events dropped rather than stalling the adapter
// goroutines.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	logger *slog.Logger
}

// New creates an event bus.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: logger,
	}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The unsubscribe function closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, DefaultBufferSize)
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, unsubscribe
}

// Publish delivers the event to every subscriber. Full subscriber buffers
// drop the event for that subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("subscriber buffer full, dropping event",
				"subscriber", id, "event", ev.Name)
		}
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
