// Package api implements the HTTP/SSE binding of the service: ingest
// endpoints for producers, a live event stream and history fetch for
// viewers, and the read-only analytics query endpoints consumed by the
// agent-tool layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/vjranagit/pulsebridge/pkg/analytics"
	"github.com/vjranagit/pulsebridge/pkg/ingest"
	"github.com/vjranagit/pulsebridge/pkg/store"
	"github.com/vjranagit/pulsebridge/pkg/stream"
	"github.com/vjranagit/pulsebridge/pkg/types"
)

// Options wires the server to its collaborators.
type Options struct {
	Addr        string
	ReadTimeout time.Duration
	KeepAlive   time.Duration

	Gateway    *ingest.Gateway
	Hearts     *store.Store[types.HeartSample]
	Focus      *store.Store[types.FocusEvent]
	HeartBus   *stream.Broadcaster[types.HeartSample]
	FocusBus   *stream.Broadcaster[types.FocusEvent]
	Sessions   *stream.Tracker
	Cache      *analytics.ResultCache
	Thresholds analytics.Thresholds

	// Persist flushes the current snapshots to the durable backend
	// immediately; nil when running memory-only.
	Persist func() error
	// BackendMode names the storage backend for status reporting.
	BackendMode string
}

// Server implements the HTTP API server.
type Server struct {
	opts    Options
	started time.Time
	server  *http.Server
}

// NewServer creates a new API server.
func NewServer(opts Options) *Server {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}
	return &Server{opts: opts, started: time.Now()}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.opts.Addr,
		Handler: s.Handler(),
		// No write timeout: /stream holds its response open for the
		// lifetime of the viewer connection.
		ReadTimeout: s.opts.ReadTimeout,
	}
	return s.server.ListenAndServe()
}

// Handler returns the route table, usable directly in tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/upload_window", s.handleUploadWindow)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/reset", s.handleReset)

	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/correlation", s.handleCorrelation)
	mux.HandleFunc("/api/v1/idle", s.handleIdle)
	mux.HandleFunc("/api/v1/usage", s.handleUsage)

	return mux
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleUpload handles heart-rate ingestion from producers.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload ingest.HeartPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	ack, err := s.opts.Gateway.IngestHeart(payload)
	if err != nil {
		writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"data_count":     ack.DataCount,
		"retained":       ack.Retained,
		"active_clients": ack.ActiveClients,
	})
}

// handleUploadWindow handles focus-event ingestion from producers.
func (s *Server) handleUploadWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload ingest.FocusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	ack, err := s.opts.Gateway.IngestFocus(payload)
	if err != nil {
		writeIngestError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"window_count": ack.WindowCount,
	})
}

// handleHistory serves a full or cursor-relative snapshot of one series,
// the viewer's reconciliation path after a stream gap.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var cursor time.Time
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339Nano, since)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid since cursor")
			return
		}
		cursor = t
	}

	switch series := r.URL.Query().Get("series"); series {
	case "heart", "":
		entries, truncated := s.opts.Hearts.Since(cursor)
		writeJSON(w, http.StatusOK, map[string]any{"data": entries, "truncated": truncated})
	case "focus":
		entries, truncated := s.opts.Focus.Since(cursor)
		writeJSON(w, http.StatusOK, map[string]any{"data": entries, "truncated": truncated})
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown series %q", series))
	}
}

// handleStatus reports aggregate counts, presence, and backend mode.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"data_count":           s.opts.Gateway.Total(),
		"active_clients":       s.opts.Sessions.Count(),
		"current_app":          s.opts.Gateway.CurrentApp(),
		"hr_history_count":     s.opts.Hearts.Len(),
		"window_history_count": s.opts.Focus.Len(),
		"backend":              s.opts.BackendMode,
		"uptime_seconds":       int(time.Since(s.started).Seconds()),
		"timestamp":            time.Now().Format(time.RFC3339),
	})
}

// handleHealth reports liveness independent of data state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"count":  s.opts.Gateway.Total(),
	})
}

// handleReset clears all series histories, broadcaster state, counters,
// and the query cache, then persists the cleared state. Irreversible.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.opts.Hearts.Reset()
	s.opts.Focus.Reset()
	s.opts.HeartBus.Reset()
	s.opts.FocusBus.Reset()
	s.opts.Gateway.Reset()
	if s.opts.Cache != nil {
		s.opts.Cache.Clear()
	}
	if s.opts.Persist != nil {
		if err := s.opts.Persist(); err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("reset persisted state: %v", err))
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "reset"})
}

// writeIngestError maps gateway failures to responses: validation
// failures are the producer's fault, anything else is ours.
func writeIngestError(w http.ResponseWriter, err error) {
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, verr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, reason string) {
	writeJSON(w, status, map[string]string{"error": reason})
}
