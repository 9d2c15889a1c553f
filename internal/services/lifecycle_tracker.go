package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/bidback-engine/internal/calendar"
	"github.com/irfndi/bidback-engine/internal/config"
	"github.com/irfndi/bidback-engine/internal/models"
)

// LifecycleTracker drives a trade through its states and re-scores open
// positions for deterioration. Every method takes the current record by
// value and returns a new one, so a rejected call can never leave a record
// half-mutated. Re-evaluation is externally triggered; the tracker owns no
// timer and no clock.
type LifecycleTracker struct {
	detector *SignalDetector
	cal      *calendar.Calendar
	cfg      config.TrackerConfig
}

// NewLifecycleTracker creates a tracker sharing the detector's matrix and
// threshold snapshot.
func NewLifecycleTracker(detector *SignalDetector, cal *calendar.Calendar, cfg config.TrackerConfig) *LifecycleTracker {
	return &LifecycleTracker{detector: detector, cal: cal, cfg: cfg}
}

// Execute moves a planned trade to ordered.
func (lt *LifecycleTracker) Execute(trade models.PlannedTrade) (*models.PlannedTrade, error) {
	if trade.Status != models.TradeStatusPlanned {
		return nil, models.NewStateTransitionError(string(trade.Status), "execute", "only planned trades can be executed")
	}
	trade.Status = models.TradeStatusOrdered
	return &trade, nil
}

// CancelTrade moves a planned or ordered trade to cancelled. Cancelled is
// terminal.
func (lt *LifecycleTracker) CancelTrade(trade models.PlannedTrade) (*models.PlannedTrade, error) {
	switch trade.Status {
	case models.TradeStatusPlanned, models.TradeStatusOrdered:
		trade.Status = models.TradeStatusCancelled
		return &trade, nil
	default:
		return nil, models.NewStateTransitionError(string(trade.Status), "cancel", "trade is already terminal")
	}
}

// Fill confirms an external fill of an ordered trade and opens the position.
func (lt *LifecycleTracker) Fill(trade models.PlannedTrade, quantity int, fillPrice decimal.Decimal, fillDate time.Time) (*models.OpenPosition, error) {
	if trade.Status != models.TradeStatusOrdered {
		return nil, models.NewStateTransitionError(string(trade.Status), "fill", "only ordered trades can be filled")
	}
	if quantity <= 0 {
		return nil, models.NewValidationError("quantity", "must be positive")
	}
	if !fillPrice.IsPositive() {
		return nil, models.NewValidationError("fill_price", "must be positive")
	}

	pos := &models.OpenPosition{
		PlannedTrade:      trade,
		PositionStatus:    models.PositionStatusOpen,
		Quantity:          quantity,
		RemainingQuantity: quantity,
		EntryDate:         fillDate,
		CurrentPrice:      fillPrice,
	}
	pos.Status = models.TradeStatusOrdered
	pos.Deterioration = models.DeteriorationSignals{Recommendation: models.RecommendationHold}
	return pos, nil
}

// RecordPartialExit appends one scale-out. Exits must arrive in
// non-decreasing timestamp order and may never overdraw the position; a
// violation is rejected, never reordered. A final exit that empties the
// position closes it.
func (lt *LifecycleTracker) RecordPartialExit(pos models.OpenPosition, exit models.PartialExit) (*models.OpenPosition, error) {
	if pos.Terminal() {
		return nil, models.NewStateTransitionError(string(pos.PositionStatus), "partial_exit", "position is terminal")
	}
	if exit.Quantity <= 0 {
		return nil, models.NewValidationError("quantity", "must be positive")
	}
	if exit.Quantity > pos.RemainingQuantity {
		return nil, models.NewStateTransitionError(string(pos.PositionStatus), "partial_exit", "cannot exit more shares than remain")
	}
	if !exit.Price.IsPositive() {
		return nil, models.NewValidationError("price", "must be positive")
	}
	if exit.Date.Before(pos.EntryDate) {
		return nil, models.NewValidationError("date", "exit cannot predate entry")
	}
	if n := len(pos.PartialExits); n > 0 && exit.Date.Before(pos.PartialExits[n-1].Date) {
		return nil, models.NewStateTransitionError(string(pos.PositionStatus), "partial_exit", "exits must be recorded in chronological order")
	}

	// Copy the slice so the caller's record is untouched on success too.
	exits := make([]models.PartialExit, len(pos.PartialExits), len(pos.PartialExits)+1)
	copy(exits, pos.PartialExits)
	pos.PartialExits = append(exits, exit)
	pos.RemainingQuantity -= exit.Quantity

	if pos.RemainingQuantity == 0 {
		pos.PositionStatus = models.PositionStatusClosed
	} else {
		pos.PositionStatus = models.PositionStatusPartial
	}
	return &pos, nil
}

// CancelPosition marks a non-terminal position cancelled (bust trade).
// Cancelled is terminal: the position accepts no further exits or refreshes.
func (lt *LifecycleTracker) CancelPosition(pos models.OpenPosition) (*models.OpenPosition, error) {
	if pos.Terminal() {
		return nil, models.NewStateTransitionError(string(pos.PositionStatus), "cancel", "position is already terminal")
	}
	pos.Status = models.TradeStatusCancelled
	pos.PositionStatus = models.PositionStatusCancelled
	return &pos, nil
}

// Refresh re-evaluates an open position against a fresh snapshot, a current
// price, and the caller-supplied now. It recomputes unrealized P&L, position
// age, and the deterioration score: one point per independent red flag
// (breadth reversal, price nearing the stop, a newly true avoid-entry
// classification, hold period exceeded), mapped 0 to hold, 1-2 to reduce,
// 3-4 to exit. Identical inputs always yield an identical record.
func (lt *LifecycleTracker) Refresh(pos models.OpenPosition, snapshot *models.MarketSnapshot, currentPrice decimal.Decimal, now time.Time) (*models.OpenPosition, error) {
	if pos.Terminal() {
		return nil, models.NewStateTransitionError(string(pos.PositionStatus), "refresh", "position is terminal")
	}
	if !currentPrice.IsPositive() {
		return nil, models.NewValidationError("current_price", "must be positive")
	}

	signals, err := lt.detector.Classify(snapshot)
	if err != nil {
		return nil, err
	}

	remaining := decimal.NewFromInt(int64(pos.RemainingQuantity))
	pos.CurrentPrice = currentPrice
	pos.UnrealizedPL = currentPrice.Sub(pos.EntryPrice).Mul(remaining)
	pos.UnrealizedPLPercent = currentPrice.Sub(pos.EntryPrice).Div(pos.EntryPrice).Mul(oneHundred)
	pos.PositionAge = lt.cal.CountTradingDays(pos.EntryDate, now)

	score := 0
	for _, flag := range []bool{
		lt.breadthReversed(snapshot),
		lt.nearingStop(&pos, currentPrice),
		signals.AvoidEntry,
		lt.holdExceeded(&pos, now),
	} {
		if flag {
			score++
		}
	}

	pos.Deterioration = models.DeteriorationSignals{
		AvoidSignalActive:  signals.AvoidEntry,
		DeteriorationScore: score,
		Recommendation:     recommendationFor(score),
	}
	return &pos, nil
}

func (lt *LifecycleTracker) breadthReversed(snapshot *models.MarketSnapshot) bool {
	return snapshot.StocksDown4Pct > snapshot.StocksUp4Pct
}

func (lt *LifecycleTracker) nearingStop(pos *models.OpenPosition, currentPrice decimal.Decimal) bool {
	proximity := decimal.NewFromFloat(lt.cfg.StopProximityPercent)
	trigger := pos.StopLoss.Mul(decimal.NewFromInt(1).Add(proximity.Div(oneHundred)))
	return currentPrice.LessThanOrEqual(trigger)
}

func (lt *LifecycleTracker) holdExceeded(pos *models.OpenPosition, now time.Time) bool {
	return lt.cal.DaysToExit(now, pos.TimeExitDate) == 0
}

func recommendationFor(score int) models.Recommendation {
	switch {
	case score == 0:
		return models.RecommendationHold
	case score <= 2:
		return models.RecommendationReduce
	default:
		return models.RecommendationExit
	}
}
