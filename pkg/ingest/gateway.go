// Package ingest validates and normalizes inbound producer payloads
// before they reach a series store, and triggers live fan-out.
package ingest

import (
	"sync"
	"time"

	"github.com/vjranagit/pulsebridge/pkg/store"
	"github.com/vjranagit/pulsebridge/pkg/stream"
	"github.com/vjranagit/pulsebridge/pkg/types"
)

// HeartPayload is the wire form of a heart-rate upload.
type HeartPayload struct {
	HeartRate     *int   `json:"heart_rate"`
	DeviceAddress string `json:"device_address,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
	Platform      string `json:"platform,omitempty"`
}

// FocusPayload is the wire form of a window-focus upload.
type FocusPayload struct {
	App       string `json:"app"`
	Title     string `json:"title,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// HeartAck acknowledges a successful heart-rate ingest.
type HeartAck struct {
	// DataCount is the running total of heart samples accepted since
	// start (or the last reset).
	DataCount int `json:"data_count"`
	// Retained is the store's current retained length.
	Retained int `json:"retained"`
	// ActiveClients is the current live-viewer presence count.
	ActiveClients int `json:"active_clients"`
}

// FocusAck acknowledges a successful focus-event ingest.
type FocusAck struct {
	// WindowCount is the focus store's current retained length.
	WindowCount int `json:"window_count"`
}

// Gateway is the ingestion boundary: it validates payloads, appends to
// the owning store, and publishes to the broadcaster. On a validation
// failure both store and broadcaster are left untouched.
type Gateway struct {
	hearts   *store.Store[types.HeartSample]
	focus    *store.Store[types.FocusEvent]
	heartBus *stream.Broadcaster[types.HeartSample]
	focusBus *stream.Broadcaster[types.FocusEvent]
	sessions *stream.Tracker

	// defaultSource is assigned to heart samples that arrive without a
	// device address.
	defaultSource string

	mu         sync.Mutex
	total      int
	currentApp string
}

// NewGateway wires the gateway to its stores, broadcasters, and the
// session tracker.
func NewGateway(
	hearts *store.Store[types.HeartSample],
	focus *store.Store[types.FocusEvent],
	heartBus *stream.Broadcaster[types.HeartSample],
	focusBus *stream.Broadcaster[types.FocusEvent],
	sessions *stream.Tracker,
	defaultSource string,
) *Gateway {
	return &Gateway{
		hearts:        hearts,
		focus:         focus,
		heartBus:      heartBus,
		focusBus:      focusBus,
		sessions:      sessions,
		defaultSource: defaultSource,
	}
}

// IngestHeart validates and appends one heart-rate sample.
func (g *Gateway) IngestHeart(p HeartPayload) (HeartAck, error) {
	if p.HeartRate == nil {
		return HeartAck{}, &types.ValidationError{Field: "heart_rate", Reason: "field is required"}
	}

	sample := types.HeartSample{
		Value:      *p.HeartRate,
		SourceID:   p.DeviceAddress,
		Platform:   p.Platform,
		ObservedAt: parseTimestamp(p.Timestamp),
	}
	if sample.SourceID == "" {
		sample.SourceID = g.defaultSource
	}

	// The broadcast record carries the server-assigned arrival time.
	stamped, _, err := g.hearts.Append(sample)
	if err != nil {
		return HeartAck{}, err
	}
	g.heartBus.Publish(stamped)

	g.mu.Lock()
	g.total++
	total := g.total
	g.mu.Unlock()

	return HeartAck{
		DataCount:     total,
		Retained:      g.hearts.Len(),
		ActiveClients: g.sessions.Count(),
	}, nil
}

// IngestFocus validates and appends one window-focus event.
func (g *Gateway) IngestFocus(p FocusPayload) (FocusAck, error) {
	event := types.FocusEvent{
		AppID:       p.App,
		WindowTitle: p.Title,
		ObservedAt:  parseTimestamp(p.Timestamp),
	}

	stamped, _, err := g.focus.Append(event)
	if err != nil {
		return FocusAck{}, err
	}
	g.focusBus.Publish(stamped)

	g.mu.Lock()
	g.currentApp = p.App
	g.mu.Unlock()

	return FocusAck{WindowCount: g.focus.Len()}, nil
}

// Total returns the running count of accepted heart samples.
func (g *Gateway) Total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.total
}

// CurrentApp returns the most recently reported foreground application.
func (g *Gateway) CurrentApp() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentApp
}

// Reset clears the gateway's counters alongside a store reset.
func (g *Gateway) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.total = 0
	g.currentApp = ""
}

// parseTimestamp accepts RFC 3339 timestamps with or without a zone
// offset (producers send bare ISO 8601). Absent or unparsable values
// default to server time, matching the producer contract's optionality.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now()
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, time.Local); err == nil {
		return t
	}
	return time.Now()
}
