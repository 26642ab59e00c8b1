package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vjranagit/pulsebridge/pkg/types"
)

// streamEvent is the wire form of one live heart-rate push.
type streamEvent struct {
	HeartRate       int    `json:"heart_rate"`
	DeviceAddress   string `json:"device_address"`
	Timestamp       string `json:"timestamp"`
	ServerTimestamp string `json:"server_timestamp"`
	ServerTimeMS    int64  `json:"server_time_ms"`
	ActiveClients   int    `json:"active_clients"`
}

// handleStream serves the live heart-rate feed over SSE. The connection
// stays open until the client disconnects; idle periods are bridged with
// keep-alive comments. A viewer that fell behind sees a gap event and
// recovers via /history.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	sub, backlog := s.opts.HeartBus.Subscribe()
	defer s.opts.HeartBus.Unsubscribe(sub.ID())

	sessionID := s.opts.Sessions.Track()
	defer s.opts.Sessions.Remove(sessionID)

	for _, sample := range backlog {
		s.writeEvent(w, sample)
	}
	flusher.Flush()

	keepAlive := time.NewTicker(s.opts.KeepAlive)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case sample, open := <-sub.C():
			if !open {
				return
			}
			if sub.Gap() {
				// Delivery overflowed for this viewer; older items were
				// dropped. Full history remains available via /history.
				fmt.Fprint(w, "event: gap\ndata: {}\n\n")
				sub.ClearGap()
			}
			s.writeEvent(w, sample)
			s.opts.Sessions.Touch(sessionID)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			s.opts.Sessions.Touch(sessionID)
			flusher.Flush()
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, sample types.HeartSample) {
	payload, err := json.Marshal(streamEvent{
		HeartRate:       sample.Value,
		DeviceAddress:   sample.SourceID,
		Timestamp:       sample.ObservedAt.Format(time.RFC3339Nano),
		ServerTimestamp: sample.ReceivedAt.Format(time.RFC3339Nano),
		ServerTimeMS:    sample.ReceivedAt.UnixMilli(),
		ActiveClients:   s.opts.Sessions.Count(),
	})
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}
