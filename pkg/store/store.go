// Package store implements the append-only, time-ordered history that
// backs each sample series, with count-based retention, a durable
// snapshot backend, and a periodic snapshotter.
package store

import (
	"sort"
	"sync"
	"time"
)

// Entry is implemented by the record types a Store can hold. StampReceived
// must return a copy; entries are immutable once appended.
type Entry[T any] interface {
	Received() time.Time
	StampReceived(t time.Time) T
	Validate() error
}

// Store is an append-only history for one series. Appends serialize
// concurrent writers; reads never observe a partially applied append.
// Entries are retained in non-decreasing Received order.
type Store[T Entry[T]] struct {
	mu       sync.RWMutex
	entries  []T
	maxCount int

	// appended counts every successful append since process start,
	// surviving retention eviction (but not Reset).
	appended int

	// evicted records whether head truncation or a reset has discarded
	// entries, and the arrival time of the newest discarded entry, so
	// Since can flag reads from a cursor that predates retained data.
	evicted       bool
	lastEvictedAt time.Time
}

// New creates a store retaining at most maxCount entries.
func New[T Entry[T]](maxCount int) *Store[T] {
	if maxCount <= 0 {
		maxCount = 1
	}
	return &Store[T]{maxCount: maxCount}
}

// Append validates e, assigns its arrival time if unset, and appends it.
// On a validation failure the store is left unmodified. It returns the
// entry as stored (arrival time stamped) and its index in total append
// order, so callers can broadcast exactly what readers will see.
func (s *Store[T]) Append(e T) (T, int, error) {
	if err := e.Validate(); err != nil {
		var zero T
		return zero, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.Received().IsZero() {
		e = e.StampReceived(time.Now())
	}
	// Arrival order is the store's ordering invariant: clamp a skewed
	// caller-supplied arrival time to the tail.
	if n := len(s.entries); n > 0 {
		if last := s.entries[n-1].Received(); e.Received().Before(last) {
			e = e.StampReceived(last)
		}
	}

	s.entries = append(s.entries, e)
	pos := s.appended
	s.appended++

	if over := len(s.entries) - s.maxCount; over > 0 {
		s.evicted = true
		s.lastEvictedAt = s.entries[over-1].Received()
		s.entries = append(s.entries[:0], s.entries[over:]...)
	}

	return e, pos, nil
}

// Snapshot returns a copy of all retained entries in append order.
func (s *Store[T]) Snapshot() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, len(s.entries))
	copy(out, s.entries)
	return out
}

// Since returns the retained entries with an arrival time after cursor,
// in append order. truncated reports that entries after the cursor have
// been evicted, in which case the earliest available data is returned
// rather than an error; callers recover by re-fetching Snapshot.
func (s *Store[T]) Since(cursor time.Time) (entries []T, truncated bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Received().After(cursor)
	})
	entries = make([]T, len(s.entries)-i)
	copy(entries, s.entries[i:])

	truncated = s.evicted && s.lastEvictedAt.After(cursor)
	return entries, truncated
}

// Len returns the number of retained entries.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Appended returns the total number of successful appends since start
// (or since the last Reset), including entries since evicted.
func (s *Store[T]) Appended() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appended
}

// Last returns the most recently appended retained entry.
func (s *Store[T]) Last() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var zero T
	if len(s.entries) == 0 {
		return zero, false
	}
	return s.entries[len(s.entries)-1], true
}

// Reset discards all history. Subsequent appends start a fresh,
// independently ordered history.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) > 0 {
		s.evicted = true
		s.lastEvictedAt = s.entries[len(s.entries)-1].Received()
	}
	s.entries = nil
	s.appended = 0
}

// Rehydrate replaces the store's contents with entries loaded from a
// durable snapshot. Entries are assumed already ordered; only the newest
// maxCount survive. Intended for process start, before ingestion begins.
func (s *Store[T]) Rehydrate(entries []T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if over := len(entries) - s.maxCount; over > 0 {
		entries = entries[over:]
	}
	s.entries = make([]T, len(entries))
	copy(s.entries, entries)
	s.appended = len(entries)
}
