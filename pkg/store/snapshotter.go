package store

import (
	"log"
	"time"
)

// Snapshotter periodically writes series snapshots to the durable
// backend, off the ingestion critical path. The save function is expected
// to capture copy-on-read snapshots itself, so the write path is never
// held open for the duration of a disk write.
type Snapshotter struct {
	interval time.Duration
	save     func() error
	stop     chan struct{}
	done     chan struct{}
}

// NewSnapshotter creates a snapshotter invoking save on the given cadence.
func NewSnapshotter(interval time.Duration, save func() error) *Snapshotter {
	return &Snapshotter{
		interval: interval,
		save:     save,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run drives the snapshot loop until Close is called. A failing save is
// logged as degraded and retried on a doubling backoff capped at eight
// times the cadence; ingestion is unaffected.
func (s *Snapshotter) Run() {
	defer close(s.done)

	delay := s.interval
	maxDelay := s.interval * 8

	for {
		select {
		case <-s.stop:
			return
		case <-time.After(delay):
		}

		if err := s.save(); err != nil {
			if delay < maxDelay {
				delay *= 2
				if delay > maxDelay {
					delay = maxDelay
				}
			}
			log.Printf("[snapshot] save failed, retrying in %s: %v", delay, err)
			continue
		}
		delay = s.interval
	}
}

// Close stops the loop and performs a final flush.
func (s *Snapshotter) Close() error {
	close(s.stop)
	<-s.done
	return s.save()
}
