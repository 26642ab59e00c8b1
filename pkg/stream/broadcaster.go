// Package stream fans newly appended samples out to live viewers and
// tracks viewer sessions for presence reporting.
package stream

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// DefaultQueueSize is the per-subscriber delivery queue depth.
const DefaultQueueSize = 16

// Broadcaster delivers each published item to every current subscriber in
// publish order. A slow subscriber never blocks Publish: on a full queue
// its oldest queued item is dropped and the subscription is flagged with a
// gap, recoverable by re-fetching the store snapshot.
type Broadcaster[T any] struct {
	mu        sync.Mutex
	subs      map[string]*Subscription[T]
	queueSize int
	latest    T
	hasLatest bool
}

// Subscription is one viewer's handle on the broadcast stream.
type Subscription[T any] struct {
	id     string
	ch     chan T
	gapped atomic.Bool
}

// ID returns the subscription's opaque identifier.
func (s *Subscription[T]) ID() string { return s.id }

// C is the delivery channel. It is closed on unsubscribe.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Gap reports whether delivery overflowed and items were dropped.
func (s *Subscription[T]) Gap() bool { return s.gapped.Load() }

// ClearGap acknowledges a gap after the viewer has reconciled.
func (s *Subscription[T]) ClearGap() { s.gapped.Store(false) }

// offer enqueues without blocking. Caller holds the broadcaster lock, so
// the channel cannot be closed concurrently.
func (s *Subscription[T]) offer(v T) {
	select {
	case s.ch <- v:
		return
	default:
	}
	// Queue full: evict this subscriber's oldest item and flag the gap.
	s.gapped.Store(true)
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- v:
	default:
	}
}

// NewBroadcaster creates a broadcaster with the given per-subscriber
// queue depth.
func NewBroadcaster[T any](queueSize int) *Broadcaster[T] {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broadcaster[T]{
		subs:      make(map[string]*Subscription[T]),
		queueSize: queueSize,
	}
}

// Subscribe registers a new subscriber and returns its handle along with
// the initial backlog: the most recently published item, if any.
func (b *Broadcaster[T]) Subscribe() (*Subscription[T], []T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription[T]{
		id: uuid.NewString(),
		ch: make(chan T, b.queueSize),
	}
	b.subs[sub.id] = sub

	var backlog []T
	if b.hasLatest {
		backlog = []T{b.latest}
	}
	return sub, backlog
}

// Unsubscribe removes a subscriber and closes its channel. Idempotent.
func (b *Broadcaster[T]) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(sub.ch)
	}
}

// Publish delivers v to every current subscriber in publish order.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.latest = v
	b.hasLatest = true
	for _, sub := range b.subs {
		sub.offer(v)
	}
}

// SubscriberCount returns the number of live subscriptions.
func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Reset forgets the latest published item so new subscribers after a
// store reset start with an empty backlog.
func (b *Broadcaster[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	var zero T
	b.latest = zero
	b.hasLatest = false
}
