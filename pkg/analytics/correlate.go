package analytics

import (
	"sort"
	"time"

	"github.com/vjranagit/pulsebridge/pkg/types"
)

// AppHeartRate is one application's aggregated heart-rate average across
// all of its focus intervals in the window.
type AppHeartRate struct {
	App     string  `json:"app"`
	Average float64 `json:"average"`
	Max     int     `json:"max"`
	Min     int     `json:"min"`
	Samples int     `json:"samples"`
}

// Correlate joins the two series by interval containment: each focus
// event opens an interval that closes at the next event's observed time
// (the last extends to now), and every heart sample observed inside an
// interval is attributed to that interval's application. The two series
// sample independently at unsynchronized rates; this is a stream join,
// not a nearest-neighbor match. Applications with no matching samples
// are excluded rather than zero-filled.
//
// Results are ordered by descending average, ties broken by application
// identifier for determinism.
func Correlate(hearts []types.HeartSample, focus []types.FocusEvent, window types.Window, now time.Time) ([]AppHeartRate, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	now = clampNow(window, now)

	events := filterFocusByObserved(focus, window)
	if len(events) == 0 {
		return []AppHeartRate{}, nil
	}

	type agg struct {
		sum, count, max, min int
	}
	perApp := make(map[string]*agg)

	for _, s := range filterByObserved(hearts, window) {
		if s.ObservedAt.After(now) {
			continue
		}
		// Owning interval: the latest focus event at or before the
		// sample's observed time.
		i := sort.Search(len(events), func(i int) bool {
			return events[i].ObservedAt.After(s.ObservedAt)
		})
		if i == 0 {
			continue // observed before the first focus event
		}
		app := events[i-1].AppID

		a := perApp[app]
		if a == nil {
			a = &agg{max: s.Value, min: s.Value}
			perApp[app] = a
		}
		a.sum += s.Value
		a.count++
		if s.Value > a.max {
			a.max = s.Value
		}
		if s.Value < a.min {
			a.min = s.Value
		}
	}

	result := make([]AppHeartRate, 0, len(perApp))
	for app, a := range perApp {
		result = append(result, AppHeartRate{
			App:     app,
			Average: float64(a.sum) / float64(a.count),
			Max:     a.max,
			Min:     a.min,
			Samples: a.count,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Average != result[j].Average {
			return result[i].Average > result[j].Average
		}
		return result[i].App < result[j].App
	})
	return result, nil
}
