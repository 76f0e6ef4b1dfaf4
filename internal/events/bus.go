package events

import (
	"sync"
	"time"

	"docweave/pkg/logging"

	"github.com/google/uuid"
)

// BufferTTL is how long a buffered event is retained for late subscribers
// (spec.md §4.5).
const BufferTTL = 30 * time.Second

// subscriberBufferSize bounds the channel given to each subscriber. A
// subscriber whose transport can't keep up is dropped rather than allowed
// to block publishers (spec.md §5 "the bus does not block publishers").
const subscriberBufferSize = 64

// Subscription is a handle returned by Bus.Subscribe. Callers read from C
// until it is closed, then call Bus.Unsubscribe (or simply stop reading;
// the bus removes dead subscribers lazily on the next publish).
type Subscription struct {
	ID string
	C  <-chan Event

	bus *Bus
	ch  chan Event
}

// Close unsubscribes and closes the channel. Idempotent.
func (s *Subscription) Close() {
	s.bus.Unsubscribe(s)
}

type bufferedEvent struct {
	event    Event
	storedAt time.Time
}

// Bus is an in-process publish/subscribe fan-out of Events. The zero value
// is not usable; construct with New.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]chan Event
	buffer      []bufferedEvent
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string]chan Event)}
}

// Subscribe registers a new subscriber, immediately flushes any buffered
// events younger than BufferTTL to it (in arrival order), and sends a
// one-shot "connected" event (spec.md §4.5).
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan Event, subscriberBufferSize)
	b.subscribers[id] = ch

	sub := &Subscription{ID: id, C: ch, bus: b, ch: ch}

	ch <- Event{Kind: KindConnected, Timestamp: time.Now()}

	now := time.Now()
	for _, be := range b.buffer {
		if now.Sub(be.storedAt) > BufferTTL {
			continue
		}
		select {
		case ch <- be.event:
		default:
		}
	}

	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Idempotent: a
// second call (or a call after the channel was already removed by a failed
// publish) is a no-op.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub.ID)
}

func (b *Bus) removeLocked(id string) {
	ch, ok := b.subscribers[id]
	if !ok {
		return
	}
	delete(b.subscribers, id)
	close(ch)
}

// Publish delivers event to every connected subscriber. If none are
// connected, it is appended to a buffer kept in arrival order (bounded only
// by BufferTTL, not by count) so a subscriber connecting within BufferTTL
// still observes it.
// Expired buffered events are evicted on every call (spec.md §4.5).
//
// A subscriber whose channel is full is dropped rather than blocking this
// call (spec.md §5 back-pressure policy).
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.evictExpiredLocked()

	if len(b.subscribers) == 0 {
		b.buffer = append(b.buffer, bufferedEvent{event: event, storedAt: time.Now()})
		return
	}

	for id, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			logging.Warn("ProgressBus", "subscriber %s buffer full, dropping subscriber", id)
			b.removeLocked(id)
		}
	}
}

func (b *Bus) evictExpiredLocked() {
	if len(b.buffer) == 0 {
		return
	}
	now := time.Now()
	kept := b.buffer[:0]
	for _, be := range b.buffer {
		if now.Sub(be.storedAt) <= BufferTTL {
			kept = append(kept, be)
		}
	}
	b.buffer = kept
}

// SubscriberCount reports the number of currently connected subscribers.
// Used by metrics and tests.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
