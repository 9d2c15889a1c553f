package services

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"github.com/irfndi/bidback-engine/internal/models"
)

// Breadth-transition thresholds, in T2108 percentage points against the
// smoothed baseline.
const (
	breadthCollapsePoints = -25.0
	breadthSurgePoints    = 20.0
)

// BreadthTrend summarizes where the latest reading sits against the
// smoothed breadth baseline.
type BreadthTrend struct {
	Baseline  float64 `json:"baseline"` // SMA of T2108 over the window
	Latest    float64 `json:"latest"`
	Change    float64 `json:"change"` // latest minus baseline, in points
	Collapsed bool    `json:"collapsed"`
	Surged    bool    `json:"surged"`
}

// BreadthAnalyzer smooths a breadth-history window and flags regime
// transitions: a collapse (baseline broken hard to the downside) or a surge.
// It feeds the dashboard's early-warning panel; the per-refresh
// deterioration score stays with the lifecycle tracker.
type BreadthAnalyzer struct {
	window int
}

// NewBreadthAnalyzer creates an analyzer with the configured SMA window.
func NewBreadthAnalyzer(window int) *BreadthAnalyzer {
	if window < 2 {
		window = 2
	}
	return &BreadthAnalyzer{window: window}
}

// Window returns the configured SMA window.
func (ba *BreadthAnalyzer) Window() int {
	return ba.window
}

// Analyze evaluates a chronological snapshot history. It needs at least one
// full window plus the latest reading.
func (ba *BreadthAnalyzer) Analyze(history []models.MarketSnapshot) (*BreadthTrend, error) {
	if len(history) < ba.window+1 {
		return nil, models.NewValidationError("history", "not enough snapshots for the configured window")
	}

	latest := history[len(history)-1].T2108

	// Baseline excludes the latest reading so a single-day shock shows up
	// as change against the window, not inside it.
	values := make([]float64, 0, len(history)-1)
	for _, s := range history[:len(history)-1] {
		values = append(values, s.T2108)
	}

	sma := trend.NewSmaWithPeriod[float64](ba.window)
	smoothed := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
	baseline := smoothed[len(smoothed)-1]

	change := latest - baseline
	return &BreadthTrend{
		Baseline:  baseline,
		Latest:    latest,
		Change:    change,
		Collapsed: change <= breadthCollapsePoints,
		Surged:    change >= breadthSurgePoints,
	}, nil
}
