// Package analytics provides pure, read-only query functions over series
// snapshots: aggregate statistics, cross-series correlation, idle
// detection, and per-application usage ranking. Every function operates
// on the snapshot it is handed and is deterministic given the same
// inputs and reference time.
package analytics

import (
	"sort"
	"time"

	"github.com/vjranagit/pulsebridge/pkg/types"
)

// Trend labels for heart-rate statistics.
const (
	TrendRising          = "rising"
	TrendRisingSlightly  = "rising_slightly"
	TrendFalling         = "falling"
	TrendFallingSlightly = "falling_slightly"
	TrendFlat            = "flat"
)

// Trend classification thresholds: second-half mean minus first-half
// mean, in bpm.
const (
	trendStrongDelta = 5.0
	trendSlightDelta = 2.0
)

// StatsResult summarizes heart samples within a window.
type StatsResult struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Max     int     `json:"max"`
	Min     int     `json:"min"`
	Latest  int     `json:"latest"`
	Trend   string  `json:"trend"`
}

// Stats aggregates the samples whose observed time falls in the window.
// The trend compares the second half's mean against the first half's;
// fewer than two samples classify as flat.
func Stats(samples []types.HeartSample, window types.Window) (StatsResult, error) {
	if err := window.Validate(); err != nil {
		return StatsResult{}, err
	}

	in := filterByObserved(samples, window)
	if len(in) == 0 {
		return StatsResult{Trend: TrendFlat}, nil
	}

	res := StatsResult{
		Count:  len(in),
		Max:    in[0].Value,
		Min:    in[0].Value,
		Latest: in[len(in)-1].Value,
	}
	sum := 0
	for _, s := range in {
		sum += s.Value
		if s.Value > res.Max {
			res.Max = s.Value
		}
		if s.Value < res.Min {
			res.Min = s.Value
		}
	}
	res.Average = float64(sum) / float64(len(in))
	res.Trend = classifyTrend(in)
	return res, nil
}

func classifyTrend(in []types.HeartSample) string {
	if len(in) < 2 {
		return TrendFlat
	}
	half := len(in) / 2
	first := meanValue(in[:half])
	second := meanValue(in[len(in)-half:])

	diff := second - first
	switch {
	case diff > trendStrongDelta:
		return TrendRising
	case diff > trendSlightDelta:
		return TrendRisingSlightly
	case diff < -trendStrongDelta:
		return TrendFalling
	case diff < -trendSlightDelta:
		return TrendFallingSlightly
	default:
		return TrendFlat
	}
}

func meanValue(samples []types.HeartSample) float64 {
	sum := 0
	for _, s := range samples {
		sum += s.Value
	}
	return float64(sum) / float64(len(samples))
}

// filterByObserved returns the samples inside the window, ordered by
// observed time. Producer clocks may be skewed relative to arrival
// order, so the result is sorted explicitly.
func filterByObserved(samples []types.HeartSample, window types.Window) []types.HeartSample {
	in := make([]types.HeartSample, 0, len(samples))
	for _, s := range samples {
		if window.Contains(s.ObservedAt) {
			in = append(in, s)
		}
	}
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].ObservedAt.Before(in[j].ObservedAt)
	})
	return in
}

// filterFocusByObserved does the same for focus events.
func filterFocusByObserved(events []types.FocusEvent, window types.Window) []types.FocusEvent {
	in := make([]types.FocusEvent, 0, len(events))
	for _, e := range events {
		if window.Contains(e.ObservedAt) {
			in = append(in, e)
		}
	}
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].ObservedAt.Before(in[j].ObservedAt)
	})
	return in
}

// sortedByObserved returns all focus events ordered by observed time,
// without window filtering. Usage attribution needs events before the
// window start whose focus interval extends into it.
func sortedByObserved(events []types.FocusEvent) []types.FocusEvent {
	out := make([]types.FocusEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservedAt.Before(out[j].ObservedAt)
	})
	return out
}

// clampNow resolves the reference "now": the window end when bounded,
// otherwise the supplied reference time.
func clampNow(window types.Window, now time.Time) time.Time {
	if !window.End.IsZero() && window.End.Before(now) {
		return window.End
	}
	return now
}
