package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/vjranagit/pulsebridge/pkg/types"
)

// Idle-detection trigger reasons.
const (
	ReasonLowHeartVariance = "low_heart_variance"
	ReasonSingleAppHold    = "single_app_hold"
	ReasonPassiveApp       = "passive_app"
)

// Thresholds configures the idle-detection heuristic. All values come
// from configuration; a zero duration or variance disables that trigger.
// The output is advisory, not ground truth.
type Thresholds struct {
	// LowVarianceBPM is the standard-deviation ceiling (in bpm) under
	// which a run of heart samples counts as low-variance.
	LowVarianceBPM float64
	// MinLowVarianceSpan is the minimum duration a low-variance run must
	// cover before it is flagged.
	MinLowVarianceSpan time.Duration
	// SingleAppHold flags any one application held in the foreground at
	// least this long.
	SingleAppHold time.Duration
	// PassiveApps lists application identifiers considered passive
	// (e.g. a video site); holding one at least PassiveAppHold flags it.
	PassiveApps    []string
	PassiveAppHold time.Duration
}

// IdleInterval is one flagged low-engagement span with its triggering
// reasons.
type IdleInterval struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Reasons []string  `json:"reasons"`
}

// DetectIdle flags candidate low-engagement sub-windows by combining
// sustained low heart-rate variance, a single application held beyond a
// threshold, and passive applications held beyond a threshold.
// Overlapping flagged spans merge with the union of their reasons;
// output is ordered by start time.
func DetectIdle(hearts []types.HeartSample, focus []types.FocusEvent, window types.Window, th Thresholds, now time.Time) ([]IdleInterval, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	now = clampNow(window, now)

	passive := make(map[string]bool, len(th.PassiveApps))
	for _, app := range th.PassiveApps {
		passive[app] = true
	}

	var flagged []IdleInterval

	events := sortedByObserved(focus)
	for i, e := range events {
		start := e.ObservedAt
		end := now
		if i+1 < len(events) {
			end = events[i+1].ObservedAt
		}
		if !window.Start.IsZero() && start.Before(window.Start) {
			start = window.Start
		}
		if !window.End.IsZero() && end.After(window.End) {
			end = window.End
		}
		if !end.After(start) {
			continue
		}

		held := end.Sub(start)
		var reasons []string
		if th.SingleAppHold > 0 && held >= th.SingleAppHold {
			reasons = append(reasons, ReasonSingleAppHold)
		}
		if th.PassiveAppHold > 0 && passive[e.AppID] && held >= th.PassiveAppHold {
			reasons = append(reasons, ReasonPassiveApp)
		}
		if len(reasons) > 0 {
			flagged = append(flagged, IdleInterval{Start: start, End: end, Reasons: reasons})
		}
	}

	if th.LowVarianceBPM > 0 && th.MinLowVarianceSpan > 0 {
		flagged = append(flagged, lowVarianceRuns(filterByObserved(hearts, window), th)...)
	}

	return mergeIntervals(flagged), nil
}

// lowVarianceRuns scans the ordered samples for maximal consecutive runs
// whose standard deviation stays under the ceiling, flagging runs that
// span at least the minimum duration.
func lowVarianceRuns(samples []types.HeartSample, th Thresholds) []IdleInterval {
	var out []IdleInterval

	start := 0
	for start < len(samples) {
		end := start + 1
		for end < len(samples) && stddev(samples[start:end+1]) <= th.LowVarianceBPM {
			end++
		}
		span := samples[end-1].ObservedAt.Sub(samples[start].ObservedAt)
		if end-start >= 2 && span >= th.MinLowVarianceSpan {
			out = append(out, IdleInterval{
				Start:   samples[start].ObservedAt,
				End:     samples[end-1].ObservedAt,
				Reasons: []string{ReasonLowHeartVariance},
			})
		}
		start = end
	}
	return out
}

func stddev(samples []types.HeartSample) float64 {
	if len(samples) < 2 {
		return 0
	}
	mean := meanValue(samples)
	var sq float64
	for _, s := range samples {
		d := float64(s.Value) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(samples)))
}

// mergeIntervals merges overlapping flagged intervals, unioning their
// reasons, and returns them ordered by start time.
func mergeIntervals(intervals []IdleInterval) []IdleInterval {
	if len(intervals) == 0 {
		return []IdleInterval{}
	}
	sort.Slice(intervals, func(i, j int) bool {
		if !intervals[i].Start.Equal(intervals[j].Start) {
			return intervals[i].Start.Before(intervals[j].Start)
		}
		return intervals[i].End.Before(intervals[j].End)
	})

	merged := []IdleInterval{cloneInterval(intervals[0])}
	for _, iv := range intervals[1:] {
		last := &merged[len(merged)-1]
		if !iv.Start.After(last.End) {
			if iv.End.After(last.End) {
				last.End = iv.End
			}
			last.Reasons = unionReasons(last.Reasons, iv.Reasons)
			continue
		}
		merged = append(merged, cloneInterval(iv))
	}
	return merged
}

func cloneInterval(iv IdleInterval) IdleInterval {
	reasons := make([]string, len(iv.Reasons))
	copy(reasons, iv.Reasons)
	sort.Strings(reasons)
	return IdleInterval{Start: iv.Start, End: iv.End, Reasons: reasons}
}

func unionReasons(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, r := range append(append([]string{}, a...), b...) {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	sort.Strings(out)
	return out
}
