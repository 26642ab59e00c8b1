package types

import (
	"fmt"
	"time"
)

// Plausible physiological band for heart-rate values. Readings outside
// this range are rejected at the ingestion boundary.
const (
	MinHeartRate = 20
	MaxHeartRate = 250
)

// HeartSample is a single timestamped heart-rate reading.
type HeartSample struct {
	// Value is the reading in beats per minute.
	Value int `json:"value"`
	// SourceID identifies the producing device (e.g. a BLE address).
	SourceID string `json:"source_id,omitempty"`
	// Platform is the producer's reported platform, if any.
	Platform string `json:"platform,omitempty"`
	// ObservedAt is the producer-supplied timestamp (possibly skewed).
	ObservedAt time.Time `json:"observed_at"`
	// ReceivedAt is the server-assigned arrival time, used for ordering
	// and retention.
	ReceivedAt time.Time `json:"received_at"`
}

// Received returns the server-assigned arrival time.
func (s HeartSample) Received() time.Time { return s.ReceivedAt }

// StampReceived returns a copy with the arrival time set.
func (s HeartSample) StampReceived(t time.Time) HeartSample {
	s.ReceivedAt = t
	return s
}

// Validate checks the sample against the plausible physiological band.
func (s HeartSample) Validate() error {
	if s.Value < MinHeartRate || s.Value > MaxHeartRate {
		return &ValidationError{
			Field:  "heart_rate",
			Reason: fmt.Sprintf("value %d outside plausible range [%d, %d]", s.Value, MinHeartRate, MaxHeartRate),
		}
	}
	return nil
}

// FocusEvent records that an application became foreground at a point in
// time. Its focus duration is implicit: the interval until the next event
// in the series, or "now" for the most recent one.
type FocusEvent struct {
	// AppID identifies the application that gained focus.
	AppID string `json:"app_identifier"`
	// WindowTitle is the foreground window's title, if reported.
	WindowTitle string `json:"window_title,omitempty"`
	// ObservedAt is the producer-supplied timestamp of the focus change.
	ObservedAt time.Time `json:"observed_at"`
	// ReceivedAt is the server-assigned arrival time.
	ReceivedAt time.Time `json:"received_at"`
}

// Received returns the server-assigned arrival time.
func (e FocusEvent) Received() time.Time { return e.ReceivedAt }

// StampReceived returns a copy with the arrival time set.
func (e FocusEvent) StampReceived(t time.Time) FocusEvent {
	e.ReceivedAt = t
	return e
}

// Validate checks that the event names an application.
func (e FocusEvent) Validate() error {
	if e.AppID == "" {
		return &ValidationError{Field: "app", Reason: "app identifier is required"}
	}
	return nil
}

// Window bounds a query in observed time. A zero Start or End leaves that
// side unbounded.
type Window struct {
	Start time.Time `json:"start,omitempty"`
	End   time.Time `json:"end,omitempty"`
}

// Validate rejects windows whose end precedes their start.
func (w Window) Validate() error {
	if !w.Start.IsZero() && !w.End.IsZero() && w.End.Before(w.Start) {
		return &QueryError{Reason: fmt.Sprintf(
			"window end %s before start %s",
			w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339),
		)}
	}
	return nil
}

// Contains reports whether t falls within the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Start.IsZero() && t.Before(w.Start) {
		return false
	}
	if !w.End.IsZero() && t.After(w.End) {
		return false
	}
	return true
}

// ValidationError reports a malformed or out-of-range producer payload.
// Rejections happen at the ingestion boundary and never mutate state.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// QueryError reports an invalid analytics query, such as a window whose
// end precedes its start. No partial results accompany it.
type QueryError struct {
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}
