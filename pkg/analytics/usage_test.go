package analytics

import (
	"testing"
	"time"

	"github.com/vjranagit/pulsebridge/pkg/types"
)

func TestAppUsageRanking(t *testing.T) {
	// AppA 00:00-00:10 and 00:25-00:30 (15 min total), AppB
	// 00:10-00:25 (15 min): a tie, ordered by identifier.
	focus := []types.FocusEvent{
		focusAt("AppA", 0),
		focusAt("AppB", 10*time.Minute),
		focusAt("AppA", 25*time.Minute),
	}
	now := statsBase.Add(30 * time.Minute)

	result, err := AppUsageRanking(focus, types.Window{}, now)
	if err != nil {
		t.Fatalf("AppUsageRanking failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 applications, got %d", len(result))
	}
	if result[0].App != "AppA" || result[0].Duration != 15*time.Minute {
		t.Errorf("Expected AppA 15m first on tie, got %+v", result[0])
	}
	if result[1].App != "AppB" || result[1].Duration != 15*time.Minute {
		t.Errorf("Expected AppB 15m, got %+v", result[1])
	}
}

func TestAppUsageRankingDescending(t *testing.T) {
	focus := []types.FocusEvent{
		focusAt("short", 0),
		focusAt("long", 2*time.Minute),
	}
	now := statsBase.Add(10 * time.Minute)

	result, err := AppUsageRanking(focus, types.Window{}, now)
	if err != nil {
		t.Fatalf("AppUsageRanking failed: %v", err)
	}
	if result[0].App != "long" || result[0].Duration != 8*time.Minute {
		t.Errorf("Expected long 8m first, got %+v", result[0])
	}
	if result[1].App != "short" || result[1].Duration != 2*time.Minute {
		t.Errorf("Expected short 2m, got %+v", result[1])
	}
	if result[0].TotalSeconds != 480 {
		t.Errorf("Expected 480 total seconds, got %g", result[0].TotalSeconds)
	}
}

func TestAppUsageRankingClipsToWindow(t *testing.T) {
	// AppA's interval starts before the window and extends into it;
	// only the portion inside the window counts.
	focus := []types.FocusEvent{
		focusAt("AppA", 0),
		focusAt("AppB", 20*time.Minute),
	}
	window := types.Window{
		Start: statsBase.Add(10 * time.Minute),
		End:   statsBase.Add(25 * time.Minute),
	}
	now := statsBase.Add(time.Hour)

	result, err := AppUsageRanking(focus, window, now)
	if err != nil {
		t.Fatalf("AppUsageRanking failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 applications, got %d", len(result))
	}
	if result[0].App != "AppA" || result[0].Duration != 10*time.Minute {
		t.Errorf("Expected AppA clipped to 10m, got %+v", result[0])
	}
	if result[1].App != "AppB" || result[1].Duration != 5*time.Minute {
		t.Errorf("Expected AppB clipped to 5m, got %+v", result[1])
	}
}

func TestAppUsageRankingEmpty(t *testing.T) {
	result, err := AppUsageRanking(nil, types.Window{}, statsBase)
	if err != nil {
		t.Fatalf("AppUsageRanking failed: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("Expected empty ranking, got %+v", result)
	}
}
