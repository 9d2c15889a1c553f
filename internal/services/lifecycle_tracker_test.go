package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/bidback-engine/internal/models"
)

// openTestPosition plans, executes, and fills a trade on 2025-03-10:
// elevated regime, stop 40.68, time exit 2025-03-17.
func openTestPosition(t *testing.T) (*models.OpenPosition, *LifecycleTracker) {
	t.Helper()
	planner, tracker := testPlanner()

	snapshot := &models.MarketSnapshot{
		StocksUp4Pct:   1250,
		StocksDown4Pct: 200,
		T2108:          28.5,
		VIX:            22.4,
		Date:           day("2025-03-10"),
	}
	trade, err := planner.PlanTrade(PlanRequest{
		Symbol:           "TQQQ",
		EntryPrice:       dec(45.20),
		BasePositionSize: dec(5000),
		EntryDate:        day("2025-03-10"),
	}, snapshot)
	require.NoError(t, err)

	ordered, err := tracker.Execute(*trade)
	require.NoError(t, err)

	pos, err := tracker.Fill(*ordered, 100, dec(45.20), day("2025-03-10"))
	require.NoError(t, err)
	require.Equal(t, models.PositionStatusOpen, pos.PositionStatus)
	return pos, tracker
}

func TestExecuteTransition(t *testing.T) {
	planner, tracker := testPlanner()

	trade, err := planner.PlanTrade(PlanRequest{
		Symbol:           "TQQQ",
		EntryPrice:       dec(45.20),
		BasePositionSize: dec(5000),
		EntryDate:        day("2025-03-10"),
	}, healthySnapshot("2025-03-10"))
	require.NoError(t, err)

	ordered, err := tracker.Execute(*trade)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusOrdered, ordered.Status)
	// The input record is untouched.
	assert.Equal(t, models.TradeStatusPlanned, trade.Status)

	// Executing twice is an illegal transition.
	_, err = tracker.Execute(*ordered)
	assertTransitionErr(t, err)
}

func TestCancelTrade(t *testing.T) {
	planner, tracker := testPlanner()

	trade, err := planner.PlanTrade(PlanRequest{
		Symbol:           "TQQQ",
		EntryPrice:       dec(45.20),
		BasePositionSize: dec(5000),
		EntryDate:        day("2025-03-10"),
	}, healthySnapshot("2025-03-10"))
	require.NoError(t, err)

	cancelled, err := tracker.CancelTrade(*trade)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusCancelled, cancelled.Status)

	// Cancelled is terminal.
	_, err = tracker.CancelTrade(*cancelled)
	assertTransitionErr(t, err)
	_, err = tracker.Execute(*cancelled)
	assertTransitionErr(t, err)
}

func TestFillRequiresOrderedTrade(t *testing.T) {
	planner, tracker := testPlanner()

	trade, err := planner.PlanTrade(PlanRequest{
		Symbol:           "TQQQ",
		EntryPrice:       dec(45.20),
		BasePositionSize: dec(5000),
		EntryDate:        day("2025-03-10"),
	}, healthySnapshot("2025-03-10"))
	require.NoError(t, err)

	_, err = tracker.Fill(*trade, 100, dec(45.20), day("2025-03-10"))
	assertTransitionErr(t, err)

	ordered, err := tracker.Execute(*trade)
	require.NoError(t, err)

	_, err = tracker.Fill(*ordered, 0, dec(45.20), day("2025-03-10"))
	assertValidationErr(t, err)
	_, err = tracker.Fill(*ordered, -10, dec(45.20), day("2025-03-10"))
	assertValidationErr(t, err)

	pos, err := tracker.Fill(*ordered, 100, dec(45.20), day("2025-03-10"))
	require.NoError(t, err)
	assert.Equal(t, 100, pos.Quantity)
	assert.Equal(t, 100, pos.RemainingQuantity)
	assert.Equal(t, models.RecommendationHold, pos.Deterioration.Recommendation)
}

func TestPartialExitLifecycle(t *testing.T) {
	pos, tracker := openTestPosition(t)

	// First scale-out: open -> partial.
	p1, err := tracker.RecordPartialExit(*pos, models.PartialExit{
		Date: day("2025-03-12"), Quantity: 40, Price: dec(49.80), Reason: "profit_target_1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PositionStatusPartial, p1.PositionStatus)
	assert.Equal(t, 60, p1.RemainingQuantity)
	assert.Equal(t, 40, p1.ExitedQuantity())
	// The input record is untouched.
	assert.Equal(t, 100, pos.RemainingQuantity)
	assert.Empty(t, pos.PartialExits)

	// Final scale-out empties the position: partial -> closed.
	p2, err := tracker.RecordPartialExit(*p1, models.PartialExit{
		Date: day("2025-03-14"), Quantity: 60, Price: dec(54.30), Reason: "profit_target_2",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PositionStatusClosed, p2.PositionStatus)
	assert.Equal(t, 0, p2.RemainingQuantity)
	assert.Equal(t, 100, p2.ExitedQuantity())

	// Closed is terminal.
	_, err = tracker.RecordPartialExit(*p2, models.PartialExit{
		Date: day("2025-03-17"), Quantity: 1, Price: dec(54.00),
	})
	assertTransitionErr(t, err)
}

func TestPartialExitRejectsOverdraw(t *testing.T) {
	pos, tracker := openTestPosition(t)

	_, err := tracker.RecordPartialExit(*pos, models.PartialExit{
		Date: day("2025-03-12"), Quantity: 101, Price: dec(49.80),
	})
	assertTransitionErr(t, err)
	// Rejection leaves the record unchanged.
	assert.Equal(t, 100, pos.RemainingQuantity)
	assert.Equal(t, models.PositionStatusOpen, pos.PositionStatus)
}

func TestPartialExitRejectsOutOfOrderTimestamps(t *testing.T) {
	pos, tracker := openTestPosition(t)

	p1, err := tracker.RecordPartialExit(*pos, models.PartialExit{
		Date: day("2025-03-13"), Quantity: 40, Price: dec(49.80),
	})
	require.NoError(t, err)

	// An exit dated before the previous one is rejected, not reordered.
	_, err = tracker.RecordPartialExit(*p1, models.PartialExit{
		Date: day("2025-03-12"), Quantity: 10, Price: dec(50.00),
	})
	assertTransitionErr(t, err)

	// Same-day exits are fine: ordering is non-decreasing.
	p2, err := tracker.RecordPartialExit(*p1, models.PartialExit{
		Date: day("2025-03-13"), Quantity: 10, Price: dec(50.00),
	})
	require.NoError(t, err)
	assert.Equal(t, 50, p2.RemainingQuantity)
}

func TestPartialExitValidation(t *testing.T) {
	pos, tracker := openTestPosition(t)

	_, err := tracker.RecordPartialExit(*pos, models.PartialExit{
		Date: day("2025-03-12"), Quantity: 0, Price: dec(49.80),
	})
	assertValidationErr(t, err)

	_, err = tracker.RecordPartialExit(*pos, models.PartialExit{
		Date: day("2025-03-12"), Quantity: 10, Price: dec(0),
	})
	assertValidationErr(t, err)

	_, err = tracker.RecordPartialExit(*pos, models.PartialExit{
		Date: day("2025-03-07"), Quantity: 10, Price: dec(49.80),
	})
	assertValidationErr(t, err)
}

func TestRefreshComputesPLAndAge(t *testing.T) {
	pos, tracker := openTestPosition(t)

	refreshed, err := tracker.Refresh(*pos, healthySnapshot("2025-03-12"), dec(47.46), day("2025-03-12"))
	require.NoError(t, err)

	// (47.46 - 45.20) x 100 shares.
	assert.Equal(t, "226.00", refreshed.UnrealizedPL.StringFixed(2))
	assert.Equal(t, "5.00", refreshed.UnrealizedPLPercent.StringFixed(2))
	assert.Equal(t, 2, refreshed.PositionAge)
	assert.Equal(t, 0, refreshed.Deterioration.DeteriorationScore)
	assert.Equal(t, models.RecommendationHold, refreshed.Deterioration.Recommendation)
	assert.False(t, refreshed.Deterioration.AvoidSignalActive)
}

func TestRefreshDeteriorationProgression(t *testing.T) {
	pos, tracker := openTestPosition(t)

	// Day 1: healthy tape, price well above the stop -> score 0, hold.
	r1, err := tracker.Refresh(*pos, healthySnapshot("2025-03-11"), dec(46.00), day("2025-03-11"))
	require.NoError(t, err)
	assert.Equal(t, 0, r1.Deterioration.DeteriorationScore)
	assert.Equal(t, models.RecommendationHold, r1.Deterioration.Recommendation)

	// Day 2: breadth reverses -> score 1, reduce.
	reversal := &models.MarketSnapshot{
		StocksUp4Pct: 200, StocksDown4Pct: 350, T2108: 40, VIX: 22.0, Date: day("2025-03-12"),
	}
	r2, err := tracker.Refresh(*r1, reversal, dec(46.00), day("2025-03-12"))
	require.NoError(t, err)
	assert.Equal(t, 1, r2.Deterioration.DeteriorationScore)
	assert.Equal(t, models.RecommendationReduce, r2.Deterioration.Recommendation)
	assert.False(t, r2.Deterioration.AvoidSignalActive)

	// Day 3: breadth still reversed, avoid-entry newly true, and the price
	// sits within the stop proximity band -> score 3, exit.
	washout := &models.MarketSnapshot{
		StocksUp4Pct: 120, StocksDown4Pct: 500, T2108: 35, VIX: 26.0, Date: day("2025-03-13"),
	}
	r3, err := tracker.Refresh(*r2, washout, dec(41.00), day("2025-03-13"))
	require.NoError(t, err)
	assert.Equal(t, 3, r3.Deterioration.DeteriorationScore)
	assert.Equal(t, models.RecommendationExit, r3.Deterioration.Recommendation)
	assert.True(t, r3.Deterioration.AvoidSignalActive)
}

func TestRefreshFlagsHoldPeriodExceeded(t *testing.T) {
	pos, tracker := openTestPosition(t)
	require.Equal(t, day("2025-03-17"), pos.TimeExitDate)

	// On the exit date the time predicate fires even on a healthy tape.
	r, err := tracker.Refresh(*pos, healthySnapshot("2025-03-17"), dec(46.00), day("2025-03-17"))
	require.NoError(t, err)
	assert.Equal(t, 1, r.Deterioration.DeteriorationScore)
	assert.Equal(t, models.RecommendationReduce, r.Deterioration.Recommendation)
}

func TestRefreshIsIdempotent(t *testing.T) {
	pos, tracker := openTestPosition(t)
	snapshot := healthySnapshot("2025-03-12")

	r1, err := tracker.Refresh(*pos, snapshot, dec(47.00), day("2025-03-12"))
	require.NoError(t, err)
	r2, err := tracker.Refresh(*pos, snapshot, dec(47.00), day("2025-03-12"))
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestRefreshRejectsTerminalPosition(t *testing.T) {
	pos, tracker := openTestPosition(t)

	closed, err := tracker.RecordPartialExit(*pos, models.PartialExit{
		Date: day("2025-03-12"), Quantity: 100, Price: dec(49.80),
	})
	require.NoError(t, err)
	require.Equal(t, models.PositionStatusClosed, closed.PositionStatus)

	_, err = tracker.Refresh(*closed, healthySnapshot("2025-03-13"), dec(49.00), day("2025-03-13"))
	assertTransitionErr(t, err)
}

func TestCancelPosition(t *testing.T) {
	pos, tracker := openTestPosition(t)

	cancelled, err := tracker.CancelPosition(*pos)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusCancelled, cancelled.Status)
	assert.Equal(t, models.PositionStatusCancelled, cancelled.PositionStatus)
	assert.True(t, cancelled.Terminal())

	_, err = tracker.Refresh(*cancelled, healthySnapshot("2025-03-12"), dec(47.00), day("2025-03-12"))
	assertTransitionErr(t, err)
	_, err = tracker.CancelPosition(*cancelled)
	assertTransitionErr(t, err)
}

func TestCancelledPositionRejectsPartialExit(t *testing.T) {
	pos, tracker := openTestPosition(t)

	cancelled, err := tracker.CancelPosition(*pos)
	require.NoError(t, err)

	after, err := tracker.RecordPartialExit(*cancelled, models.PartialExit{
		Date: day("2025-03-12"), Quantity: 40, Price: dec(49.72), Reason: "target1",
	})
	assertTransitionErr(t, err)
	assert.Nil(t, after)
	assert.Equal(t, models.PositionStatusCancelled, cancelled.PositionStatus)
	assert.Equal(t, 100, cancelled.RemainingQuantity)
}

func assertTransitionErr(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var terr *models.StateTransitionError
	assert.ErrorAs(t, err, &terr)
}
