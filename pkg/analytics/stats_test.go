package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/vjranagit/pulsebridge/pkg/types"
)

var statsBase = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleAt(value int, offset time.Duration) types.HeartSample {
	return types.HeartSample{
		Value:      value,
		ObservedAt: statsBase.Add(offset),
		ReceivedAt: statsBase.Add(offset),
	}
}

func TestStatsAggregates(t *testing.T) {
	samples := []types.HeartSample{
		sampleAt(60, 0),
		sampleAt(80, time.Minute),
		sampleAt(70, 2*time.Minute),
	}

	res, err := Stats(samples, types.Window{})
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if res.Count != 3 {
		t.Errorf("Expected count 3, got %d", res.Count)
	}
	if res.Average != 70.0 {
		t.Errorf("Expected average 70, got %g", res.Average)
	}
	if res.Max != 80 || res.Min != 60 {
		t.Errorf("Expected max 80 min 60, got %d/%d", res.Max, res.Min)
	}
	if res.Latest != 70 {
		t.Errorf("Expected latest 70, got %d", res.Latest)
	}
}

func TestStatsWindowFilter(t *testing.T) {
	samples := []types.HeartSample{
		sampleAt(60, 0),
		sampleAt(100, 10*time.Minute),
		sampleAt(70, 20*time.Minute),
	}

	window := types.Window{
		Start: statsBase.Add(5 * time.Minute),
		End:   statsBase.Add(15 * time.Minute),
	}
	res, err := Stats(samples, window)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if res.Count != 1 || res.Average != 100.0 {
		t.Errorf("Expected only the 100 bpm sample, got %+v", res)
	}
}

func TestStatsTrend(t *testing.T) {
	cases := []struct {
		name   string
		values []int
		want   string
	}{
		{"rising", []int{60, 60, 70, 70}, TrendRising},
		{"rising slightly", []int{60, 60, 63, 63}, TrendRisingSlightly},
		{"falling", []int{80, 80, 70, 70}, TrendFalling},
		{"falling slightly", []int{70, 70, 67, 67}, TrendFallingSlightly},
		{"flat", []int{70, 71, 70, 71}, TrendFlat},
		{"single sample", []int{70}, TrendFlat},
		{"empty", nil, TrendFlat},
	}

	for _, tc := range cases {
		samples := make([]types.HeartSample, len(tc.values))
		for i, v := range tc.values {
			samples[i] = sampleAt(v, time.Duration(i)*time.Minute)
		}
		res, err := Stats(samples, types.Window{})
		if err != nil {
			t.Fatalf("%s: Stats failed: %v", tc.name, err)
		}
		if res.Trend != tc.want {
			t.Errorf("%s: expected trend %q, got %q", tc.name, tc.want, res.Trend)
		}
	}
}

func TestStatsSortsSkewedObservations(t *testing.T) {
	// Producer clock skew: observed order differs from arrival order.
	samples := []types.HeartSample{
		sampleAt(90, 2*time.Minute),
		sampleAt(60, 0),
		sampleAt(61, time.Minute),
	}
	res, err := Stats(samples, types.Window{})
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	// Sorted by observed time the series is 60, 61, 90: clearly rising.
	if res.Trend != TrendRising {
		t.Errorf("Expected rising trend after observed-time sort, got %q", res.Trend)
	}
	if res.Latest != 90 {
		t.Errorf("Expected latest 90, got %d", res.Latest)
	}
}

func TestStatsInvalidWindow(t *testing.T) {
	_, err := Stats(nil, types.Window{
		Start: statsBase.Add(time.Hour),
		End:   statsBase,
	})
	if err == nil {
		t.Fatal("Expected QueryError for inverted window")
	}
	var qerr *types.QueryError
	if !errors.As(err, &qerr) {
		t.Errorf("Expected QueryError, got %T", err)
	}
}
