package analytics

import (
	"sort"
	"time"

	"github.com/vjranagit/pulsebridge/pkg/types"
)

// AppUsage is one application's total focused duration within a window.
type AppUsage struct {
	App          string        `json:"app"`
	Duration     time.Duration `json:"-"`
	TotalSeconds float64       `json:"total_seconds"`
}

// AppUsageRanking sums each application's focus intervals, clipped to the
// window, and ranks descending by total duration. Ties are broken by
// identifier so equal-duration applications order deterministically. The
// most recent event's interval extends to now.
func AppUsageRanking(focus []types.FocusEvent, window types.Window, now time.Time) ([]AppUsage, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	now = clampNow(window, now)

	events := sortedByObserved(focus)
	totals := make(map[string]time.Duration)

	for i, e := range events {
		start := e.ObservedAt
		end := now
		if i+1 < len(events) {
			end = events[i+1].ObservedAt
		}

		// Clip the interval to the query window.
		if !window.Start.IsZero() && start.Before(window.Start) {
			start = window.Start
		}
		if !window.End.IsZero() && end.After(window.End) {
			end = window.End
		}
		if !end.After(start) {
			continue
		}
		totals[e.AppID] += end.Sub(start)
	}

	result := make([]AppUsage, 0, len(totals))
	for app, d := range totals {
		result = append(result, AppUsage{
			App:          app,
			Duration:     d,
			TotalSeconds: d.Seconds(),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Duration != result[j].Duration {
			return result[i].Duration > result[j].Duration
		}
		return result[i].App < result[j].App
	})
	return result, nil
}
