package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeStatus is the lifecycle state of a planned trade before execution.
type TradeStatus string

const (
	TradeStatusPlanned   TradeStatus = "planned"
	TradeStatusOrdered   TradeStatus = "ordered"
	TradeStatusCancelled TradeStatus = "cancelled"
)

// PositionStatus is the lifecycle state of an executed position.
type PositionStatus string

const (
	PositionStatusOpen      PositionStatus = "open"
	PositionStatusPartial   PositionStatus = "partial"
	PositionStatusClosed    PositionStatus = "closed"
	PositionStatusCancelled PositionStatus = "cancelled"
)

// Recommendation is the tracker's current advice for an open position.
type Recommendation string

const (
	RecommendationHold   Recommendation = "hold"
	RecommendationReduce Recommendation = "reduce"
	RecommendationExit   Recommendation = "exit"
)

// BreadthStrength classifies the up/down breadth ratio.
type BreadthStrength string

const (
	BreadthWeak      BreadthStrength = "weak"
	BreadthNeutral   BreadthStrength = "neutral"
	BreadthStrong    BreadthStrength = "strong"
	BreadthExplosive BreadthStrength = "explosive"
)

// Signals is the detector's classification of one snapshot. BigOpportunity
// and AvoidEntry are evaluated independently and can both be true; the sizer
// resolves the overlap in favor of capital preservation.
type Signals struct {
	VixRegime       VixRegime       `json:"vix_regime"`
	BreadthStrength BreadthStrength `json:"breadth_strength"`
	BigOpportunity  bool            `json:"big_opportunity"`
	AvoidEntry      bool            `json:"avoid_entry"`
}

// PlannedTrade is the output of one planning call: sizing, exits, and the
// snapshot fields it was derived from. Immutable except Status.
type PlannedTrade struct {
	ID                     string          `json:"id" db:"id"`
	Symbol                 string          `json:"symbol" db:"symbol"`
	EntryPrice             decimal.Decimal `json:"entry_price" db:"entry_price"`
	BasePositionSize       decimal.Decimal `json:"base_position_size" db:"base_position_size"`
	CalculatedPositionSize decimal.Decimal `json:"calculated_position_size" db:"calculated_position_size"`

	// Snapshot fields captured at planning time.
	StocksUp4Pct   int       `json:"stocks_up_4pct" db:"stocks_up_4pct"`
	StocksDown4Pct int       `json:"stocks_down_4pct" db:"stocks_down_4pct"`
	T2108          float64   `json:"t2108" db:"t2108"`
	VIX            float64   `json:"vix" db:"vix"`
	SnapshotDate   time.Time `json:"snapshot_date" db:"snapshot_date"`

	VixRegime            VixRegime       `json:"vix_regime" db:"vix_regime"`
	BreadthStrength      BreadthStrength `json:"breadth_strength" db:"breadth_strength"`
	VixMultiplier        decimal.Decimal `json:"vix_multiplier" db:"vix_multiplier"`
	BreadthMultiplier    decimal.Decimal `json:"breadth_multiplier" db:"breadth_multiplier"`
	IsBigOpportunity     bool            `json:"is_big_opportunity" db:"is_big_opportunity"`
	AvoidEntry           bool            `json:"avoid_entry" db:"avoid_entry"`
	PortfolioHeatPercent decimal.Decimal `json:"portfolio_heat_percent" db:"portfolio_heat_percent"`

	StopLoss      decimal.Decimal `json:"stop_loss" db:"stop_loss"`
	ProfitTarget1 decimal.Decimal `json:"profit_target_1" db:"profit_target_1"`
	ProfitTarget2 decimal.Decimal `json:"profit_target_2" db:"profit_target_2"`
	MaxHoldDays   int             `json:"max_hold_days" db:"max_hold_days"`
	TimeExitDate  time.Time       `json:"time_exit_date" db:"time_exit_date"`

	Status    TradeStatus `json:"status" db:"status"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

// PartialExit is one scale-out of an open position. The list on a position
// is append-only and chronological.
type PartialExit struct {
	Date     time.Time       `json:"date" db:"date"`
	Quantity int             `json:"quantity" db:"quantity"`
	Price    decimal.Decimal `json:"price" db:"price"`
	Reason   string          `json:"reason" db:"reason"`
}

// DeteriorationSignals is the tracker's rolling health check on an open
// position. AvoidSignalActive is an early-warning channel independent of
// the numeric score.
type DeteriorationSignals struct {
	AvoidSignalActive  bool           `json:"avoid_signal_active"`
	DeteriorationScore int            `json:"deterioration_score"` // 0..4
	Recommendation     Recommendation `json:"recommendation"`
}

// OpenPosition extends a planned trade once the order is filled. Only the
// lifecycle tracker mutates it, and always via copy-and-return.
type OpenPosition struct {
	PlannedTrade

	PositionStatus      PositionStatus  `json:"position_status" db:"position_status"`
	Quantity            int             `json:"quantity" db:"quantity"` // original fill size
	RemainingQuantity   int             `json:"remaining_quantity" db:"remaining_quantity"`
	EntryDate           time.Time       `json:"entry_date" db:"entry_date"`
	CurrentPrice        decimal.Decimal `json:"current_price" db:"current_price"`
	UnrealizedPL        decimal.Decimal `json:"unrealized_pl" db:"unrealized_pl"`
	UnrealizedPLPercent decimal.Decimal `json:"unrealized_pl_percent" db:"unrealized_pl_percent"`
	PositionAge         int             `json:"position_age" db:"position_age"` // trading days since entry

	PartialExits  []PartialExit        `json:"partial_exits"`
	Deterioration DeteriorationSignals `json:"deterioration_signals"`
}

// ExitedQuantity returns the cumulative quantity scaled out so far.
func (p *OpenPosition) ExitedQuantity() int {
	total := 0
	for _, exit := range p.PartialExits {
		total += exit.Quantity
	}
	return total
}

// Terminal reports whether the position can no longer change.
func (p *OpenPosition) Terminal() bool {
	return p.PositionStatus == PositionStatusClosed || p.PositionStatus == PositionStatusCancelled
}
