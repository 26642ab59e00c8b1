package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vjranagit/pulsebridge/pkg/analytics"
	"github.com/vjranagit/pulsebridge/pkg/types"
)

// parseWindow reads the optional start/end query parameters.
func parseWindow(r *http.Request) (types.Window, error) {
	var window types.Window

	if start := r.URL.Query().Get("start"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return window, &types.QueryError{Reason: "invalid start time"}
		}
		window.Start = t
	}
	if end := r.URL.Query().Get("end"); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return window, &types.QueryError{Reason: "invalid end time"}
		}
		window.End = t
	}
	return window, window.Validate()
}

// serveQuery runs one analytics query with short-TTL response caching.
// The compute function operates on store snapshots taken at call time;
// ingestion continuing underneath never affects an in-flight query.
func (s *Server) serveQuery(w http.ResponseWriter, r *http.Request, name string, compute func(window types.Window, now time.Time) (any, error)) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	window, err := parseWindow(r)
	if err != nil {
		writeQueryError(w, err)
		return
	}

	key := analytics.CacheKey(name, r.URL.Query().Get("start"), r.URL.Query().Get("end"))
	if s.opts.Cache != nil {
		if payload, ok := s.opts.Cache.Get(key); ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write(payload)
			return
		}
	}

	result, err := compute(window, time.Now())
	if err != nil {
		writeQueryError(w, err)
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.opts.Cache != nil {
		s.opts.Cache.Put(key, payload)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// handleStats serves aggregate heart-rate statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, r, "stats", func(window types.Window, now time.Time) (any, error) {
		return analytics.Stats(s.opts.Hearts.Snapshot(), window)
	})
}

// handleCorrelation serves the per-application heart-rate correlation.
func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, r, "correlation", func(window types.Window, now time.Time) (any, error) {
		return analytics.Correlate(s.opts.Hearts.Snapshot(), s.opts.Focus.Snapshot(), window, now)
	})
}

// handleIdle serves the idle/low-engagement detection heuristic.
func (s *Server) handleIdle(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, r, "idle", func(window types.Window, now time.Time) (any, error) {
		return analytics.DetectIdle(s.opts.Hearts.Snapshot(), s.opts.Focus.Snapshot(), window, s.opts.Thresholds, now)
	})
}

// handleUsage serves the per-application focused-duration ranking.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	s.serveQuery(w, r, "usage", func(window types.Window, now time.Time) (any, error) {
		return analytics.AppUsageRanking(s.opts.Focus.Snapshot(), window, now)
	})
}

func writeQueryError(w http.ResponseWriter, err error) {
	var qerr *types.QueryError
	if errors.As(err, &qerr) {
		writeError(w, http.StatusBadRequest, qerr.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
