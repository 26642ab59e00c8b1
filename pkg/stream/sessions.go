package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Tracker counts active viewer sessions for presence display. A session
// expires when its heartbeat is not renewed within the timeout; expiry is
// checked on access and by a periodic sweep, so worst-case staleness is
// the sweep interval.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]time.Time
	timeout  time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewTracker creates a tracker with the given inactivity timeout.
func NewTracker(timeout time.Duration) *Tracker {
	return &Tracker{
		sessions: make(map[string]time.Time),
		timeout:  timeout,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Track registers a new session and returns its identifier.
func (t *Tracker) Track() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := uuid.NewString()
	t.sessions[id] = time.Now()
	return id
}

// Touch renews a session's heartbeat. Unknown sessions (already expired
// or removed) are ignored.
func (t *Tracker) Touch(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.sessions[id]; ok {
		t.sessions[id] = time.Now()
	}
}

// Remove deregisters a session. Idempotent.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// Count prunes expired sessions and returns the number still active.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.pruneLocked()
	return len(t.sessions)
}

// pruneLocked removes sessions past the inactivity timeout (must hold lock).
func (t *Tracker) pruneLocked() {
	cutoff := time.Now().Add(-t.timeout)
	for id, beat := range t.sessions {
		if beat.Before(cutoff) {
			delete(t.sessions, id)
		}
	}
}

// Run sweeps expired sessions on the given interval until Close.
func (t *Tracker) Run(interval time.Duration) {
	defer close(t.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.mu.Lock()
			t.pruneLocked()
			t.mu.Unlock()
		}
	}
}

// Close stops the sweep loop.
func (t *Tracker) Close() {
	close(t.stop)
	<-t.done
}
