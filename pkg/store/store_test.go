package store

import (
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/vjranagit/pulsebridge/pkg/types"
)

func heartAt(value int, received time.Time) types.HeartSample {
	return types.HeartSample{
		Value:      value,
		ObservedAt: received,
		ReceivedAt: received,
	}
}

func TestAppendAndSnapshot(t *testing.T) {
	s := New[types.HeartSample](100)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, pos, err := s.Append(heartAt(60+i, base.Add(time.Duration(i)*time.Second)))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if pos != i {
			t.Errorf("Expected position %d, got %d", i, pos)
		}
	}

	snap := s.Snapshot()
	if len(snap) != 5 {
		t.Fatalf("Expected 5 entries, got %d", len(snap))
	}
	for i, e := range snap {
		if e.Value != 60+i {
			t.Errorf("Entry %d: expected value %d, got %d", i, 60+i, e.Value)
		}
	}
}

func TestAppendStampsArrivalTime(t *testing.T) {
	s := New[types.HeartSample](10)

	before := time.Now()
	stored, _, err := s.Append(types.HeartSample{Value: 72})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if stored.ReceivedAt.Before(before) {
		t.Errorf("Expected arrival time stamped after %v, got %v", before, stored.ReceivedAt)
	}
}

func TestAppendRejectsOutOfRange(t *testing.T) {
	s := New[types.HeartSample](10)

	if _, _, err := s.Append(heartAt(75, time.Now())); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	for _, v := range []int{-5, 0, 400} {
		_, _, err := s.Append(types.HeartSample{Value: v})
		if err == nil {
			t.Fatalf("Expected rejection for value %d", v)
		}
		var verr *types.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Expected ValidationError for value %d, got %T", v, err)
		}
	}

	// A rejection leaves the store unchanged.
	if got := s.Len(); got != 1 {
		t.Errorf("Expected 1 entry after rejections, got %d", got)
	}
}

func TestSinceReturnsOnlyNewer(t *testing.T) {
	s := New[types.HeartSample](100)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		if _, _, err := s.Append(heartAt(60+i, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	cursor := base.Add(4 * time.Second)
	entries, truncated := s.Since(cursor)
	if truncated {
		t.Error("Expected no truncation")
	}
	if len(entries) != 5 {
		t.Fatalf("Expected 5 entries after cursor, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Value != 65+i {
			t.Errorf("Entry %d: expected value %d, got %d", i, 65+i, e.Value)
		}
	}
}

func TestRetentionCeiling(t *testing.T) {
	const ceiling = 50
	s := New[types.HeartSample](ceiling)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < ceiling+10; i++ {
		if _, _, err := s.Append(heartAt(60, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if got := s.Len(); got != ceiling {
		t.Errorf("Expected length %d after overflow, got %d", ceiling, got)
	}

	snap := s.Snapshot()
	oldest := snap[0].ReceivedAt
	if !oldest.Equal(base.Add(10 * time.Second)) {
		t.Errorf("Expected oldest surviving entry at +10s, got %v", oldest)
	}

	// A cursor older than the earliest retained entry flags truncation
	// and still returns the earliest available data.
	entries, truncated := s.Since(base)
	if !truncated {
		t.Error("Expected truncation flag for evicted cursor")
	}
	if len(entries) != ceiling {
		t.Errorf("Expected %d entries, got %d", ceiling, len(entries))
	}

	// A cursor inside the retained range is clean.
	if _, truncated := s.Since(oldest); truncated {
		t.Error("Expected no truncation for a retained cursor")
	}
}

func TestResetClearsHistory(t *testing.T) {
	s := New[types.HeartSample](10)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.Append(heartAt(70, base.Add(time.Duration(i)*time.Second)))
	}

	s.Reset()
	if got := s.Len(); got != 0 {
		t.Fatalf("Expected empty store after reset, got %d entries", got)
	}
	if got := s.Appended(); got != 0 {
		t.Errorf("Expected append counter reset, got %d", got)
	}

	// A cursor from before the reset sees its history as truncated.
	if _, truncated := s.Since(base); !truncated {
		t.Error("Expected truncation flag after reset")
	}

	// A fresh append starts an independent history.
	_, pos, err := s.Append(heartAt(80, base.Add(time.Hour)))
	if err != nil {
		t.Fatalf("Append after reset failed: %v", err)
	}
	if pos != 0 {
		t.Errorf("Expected position 0 after reset, got %d", pos)
	}
}

// TestSinceUnderConcurrentAppends interleaves appends with reads and
// verifies no loss, duplication, or reordering is ever observed.
func TestSinceUnderConcurrentAppends(t *testing.T) {
	s := New[types.HeartSample](10000)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	const total = 2000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			if _, _, err := s.Append(heartAt(60+i%100, base.Add(time.Duration(i)*time.Millisecond))); err != nil {
				t.Errorf("Append failed: %v", err)
				return
			}
		}
	}()

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		cursor := base.Add(time.Duration(rng.Intn(total)) * time.Millisecond)
		entries, truncated := s.Since(cursor)
		if truncated {
			t.Fatal("Unexpected truncation without eviction")
		}
		for j := 1; j < len(entries); j++ {
			if entries[j].ReceivedAt.Before(entries[j-1].ReceivedAt) {
				t.Fatalf("Out-of-order entries at %d", j)
			}
		}
		for _, e := range entries {
			if !e.ReceivedAt.After(cursor) {
				t.Fatalf("Entry at %v not after cursor %v", e.ReceivedAt, cursor)
			}
		}
	}
	wg.Wait()

	snap := s.Snapshot()
	if len(snap) != total {
		t.Fatalf("Expected %d entries, got %d", total, len(snap))
	}
	for i := 1; i < len(snap); i++ {
		if snap[i].ReceivedAt.Before(snap[i-1].ReceivedAt) {
			t.Fatalf("Snapshot out of order at %d", i)
		}
	}
}

func TestRehydrateKeepsNewest(t *testing.T) {
	s := New[types.HeartSample](3)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	entries := make([]types.HeartSample, 5)
	for i := range entries {
		entries[i] = heartAt(60+i, base.Add(time.Duration(i)*time.Second))
	}

	s.Rehydrate(entries)
	snap := s.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Expected 3 entries after rehydrate, got %d", len(snap))
	}
	if snap[0].Value != 62 {
		t.Errorf("Expected oldest surviving value 62, got %d", snap[0].Value)
	}
}
