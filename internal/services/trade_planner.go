package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/bidback-engine/internal/models"
)

// PlanRequest is one planning-time input set. EntryDate doubles as the
// caller-supplied "now": the engine owns no clock, so identical requests
// against identical snapshots always plan identical trades.
type PlanRequest struct {
	Symbol           string          `json:"symbol"`
	EntryPrice       decimal.Decimal `json:"entry_price"`
	BasePositionSize decimal.Decimal `json:"base_position_size"`
	EntryDate        time.Time       `json:"entry_date"`
}

// TradePlanner invokes the detector, the sizer, and the exit planner against
// one snapshot and assembles the resulting PlannedTrade.
type TradePlanner struct {
	detector      *SignalDetector
	sizer         *PositionSizer
	exits         *ExitPlanner
	portfolioSize decimal.Decimal
}

// NewTradePlanner wires the planning triple around one portfolio size.
func NewTradePlanner(detector *SignalDetector, sizer *PositionSizer, exits *ExitPlanner, portfolioSize decimal.Decimal) *TradePlanner {
	return &TradePlanner{
		detector:      detector,
		sizer:         sizer,
		exits:         exits,
		portfolioSize: portfolioSize,
	}
}

// PlanTrade produces a PlannedTrade from one snapshot. All inputs are
// validated at the boundary and never coerced.
func (tp *TradePlanner) PlanTrade(req PlanRequest, snapshot *models.MarketSnapshot) (*models.PlannedTrade, error) {
	if strings.TrimSpace(req.Symbol) == "" {
		return nil, models.NewValidationError("symbol", "must not be empty")
	}
	if !req.EntryPrice.IsPositive() {
		return nil, models.NewValidationError("entry_price", "must be positive")
	}
	if !req.BasePositionSize.IsPositive() {
		return nil, models.NewValidationError("base_position_size", "must be positive")
	}
	if !tp.portfolioSize.IsPositive() {
		return nil, models.NewValidationError("portfolio_size", "must be positive")
	}

	signals, err := tp.detector.Classify(snapshot)
	if err != nil {
		return nil, err
	}
	size, err := tp.sizer.Size(req.BasePositionSize, snapshot, tp.portfolioSize)
	if err != nil {
		return nil, err
	}
	exits, err := tp.exits.PlanExits(req.EntryPrice, snapshot.VIX, req.EntryDate)
	if err != nil {
		return nil, err
	}

	trade := &models.PlannedTrade{
		ID:                     uuid.New().String(),
		Symbol:                 strings.ToUpper(strings.TrimSpace(req.Symbol)),
		EntryPrice:             req.EntryPrice,
		BasePositionSize:       req.BasePositionSize,
		CalculatedPositionSize: size.FinalPosition,

		StocksUp4Pct:   snapshot.StocksUp4Pct,
		StocksDown4Pct: snapshot.StocksDown4Pct,
		T2108:          snapshot.T2108,
		VIX:            snapshot.VIX,
		SnapshotDate:   snapshot.Date,

		VixRegime:            signals.VixRegime,
		BreadthStrength:      signals.BreadthStrength,
		VixMultiplier:        size.VixMultiplier,
		BreadthMultiplier:    size.BreadthMultiplier,
		IsBigOpportunity:     signals.BigOpportunity,
		AvoidEntry:           signals.AvoidEntry,
		PortfolioHeatPercent: size.PortfolioHeatPercent,

		StopLoss:      exits.StopLoss,
		ProfitTarget1: exits.ProfitTarget1,
		ProfitTarget2: exits.ProfitTarget2,
		MaxHoldDays:   exits.MaxHoldDays,
		TimeExitDate:  exits.TimeExitDate,

		Status:    models.TradeStatusPlanned,
		CreatedAt: req.EntryDate,
	}

	logrus.WithFields(logrus.Fields{
		"symbol":          trade.Symbol,
		"regime":          trade.VixRegime,
		"calculated_size": trade.CalculatedPositionSize,
		"big_opportunity": trade.IsBigOpportunity,
		"avoid_entry":     trade.AvoidEntry,
	}).Debug("Planned trade")

	return trade, nil
}
