package models

import (
	"math"

	"github.com/shopspring/decimal"
)

// VixRegime labels one volatility band of the exit matrix. Regime labels and
// exit parameters share the same row boundaries, so a classification and a
// matrix lookup for the same reading can never disagree.
type VixRegime string

const (
	RegimeUltraLow VixRegime = "ultra_low"
	RegimeLow      VixRegime = "low"
	RegimeNormal   VixRegime = "normal"
	RegimeElevated VixRegime = "elevated"
	RegimeHigh     VixRegime = "high"
	RegimeExtreme  VixRegime = "extreme"
)

// VixExitMatrixRow is one volatility band of the exit matrix. Rows are static
// configuration, never mutated at runtime; percent fields are signed
// (stop negative, targets positive).
type VixExitMatrixRow struct {
	Regime               VixRegime       `json:"regime" mapstructure:"regime"`
	MinVix               float64         `json:"min_vix" mapstructure:"min_vix"`
	MaxVix               float64         `json:"max_vix" mapstructure:"max_vix"` // exclusive; +Inf on the last row
	StopLossPercent      decimal.Decimal `json:"stop_loss_percent" mapstructure:"stop_loss_percent"`
	ProfitTarget1Percent decimal.Decimal `json:"profit_target_1_percent" mapstructure:"profit_target_1_percent"`
	ProfitTarget2Percent decimal.Decimal `json:"profit_target_2_percent" mapstructure:"profit_target_2_percent"`
	MaxHoldDays          int             `json:"max_hold_days" mapstructure:"max_hold_days"`
	Multiplier           decimal.Decimal `json:"multiplier" mapstructure:"multiplier"`
}

// Contains reports whether vix falls in this row's band. Bands are
// lower-inclusive and upper-exclusive: a reading exactly on a boundary
// belongs to the higher band.
func (r *VixExitMatrixRow) Contains(vix float64) bool {
	return vix >= r.MinVix && vix < r.MaxVix
}

// VixExitMatrix is the ordered, contiguous, exhaustive set of volatility
// bands. Treat a loaded matrix as immutable; hot-reload by swapping the
// whole value, never by editing rows in place.
type VixExitMatrix struct {
	Rows []VixExitMatrixRow
}

// Lookup returns the row matching vix. The same returned row must feed the
// multiplier, the exit prices, and the hold period within one planning call.
func (m *VixExitMatrix) Lookup(vix float64) (*VixExitMatrixRow, error) {
	if math.IsNaN(vix) || math.IsInf(vix, 0) {
		return nil, NewValidationError("vix", "must be a finite number")
	}
	if vix < 0 {
		return nil, NewValidationError("vix", "must not be negative")
	}
	for i := range m.Rows {
		if m.Rows[i].Contains(vix) {
			return &m.Rows[i], nil
		}
	}
	// Unreachable once Validate has passed; kept so a bad hand-built matrix
	// fails loudly instead of planning with a zero row.
	return nil, NewConfigurationError("vix_matrix", "no row matches the supplied reading")
}

// Validate checks the structural invariants the planner relies on: bands
// contiguous from 0 to +Inf, stop < 0 < target1 < target2 per row, hold
// period at least one day, and multipliers positive and non-decreasing
// with volatility.
func (m *VixExitMatrix) Validate() error {
	if len(m.Rows) == 0 {
		return NewConfigurationError("vix_matrix", "matrix has no rows")
	}
	if m.Rows[0].MinVix != 0 {
		return NewConfigurationError("vix_matrix", "first row must start at 0")
	}
	if !math.IsInf(m.Rows[len(m.Rows)-1].MaxVix, 1) {
		return NewConfigurationError("vix_matrix", "last row must extend to +Inf")
	}
	prevMult := decimal.Zero
	for i := range m.Rows {
		row := &m.Rows[i]
		if i > 0 && row.MinVix != m.Rows[i-1].MaxVix {
			return NewConfigurationError("vix_matrix", "rows must be contiguous with no gaps or overlaps")
		}
		if row.MaxVix <= row.MinVix {
			return NewConfigurationError("vix_matrix", "row upper bound must exceed lower bound")
		}
		if !row.StopLossPercent.IsNegative() {
			return NewConfigurationError("vix_matrix", "stop loss percent must be negative")
		}
		if !row.ProfitTarget1Percent.IsPositive() {
			return NewConfigurationError("vix_matrix", "profit target 1 percent must be positive")
		}
		if row.ProfitTarget2Percent.LessThanOrEqual(row.ProfitTarget1Percent) {
			return NewConfigurationError("vix_matrix", "profit target 2 must exceed profit target 1")
		}
		if row.MaxHoldDays < 1 {
			return NewConfigurationError("vix_matrix", "max hold days must be at least 1")
		}
		if !row.Multiplier.IsPositive() {
			return NewConfigurationError("vix_matrix", "multiplier must be positive")
		}
		if row.Multiplier.LessThan(prevMult) {
			return NewConfigurationError("vix_matrix", "multiplier must be non-decreasing with volatility")
		}
		prevMult = row.Multiplier
	}
	return nil
}

// DefaultVixExitMatrix returns the stock BIDBACK exit matrix. Config may
// override it wholesale; overrides go through the same Validate.
func DefaultVixExitMatrix() *VixExitMatrix {
	return &VixExitMatrix{Rows: []VixExitMatrixRow{
		{Regime: RegimeUltraLow, MinVix: 0, MaxVix: 12,
			StopLossPercent:      decimal.NewFromFloat(-4.0),
			ProfitTarget1Percent: decimal.NewFromFloat(5.2),
			ProfitTarget2Percent: decimal.NewFromFloat(10.4),
			MaxHoldDays:          3, Multiplier: decimal.NewFromFloat(0.8)},
		{Regime: RegimeLow, MinVix: 12, MaxVix: 15,
			StopLossPercent:      decimal.NewFromFloat(-6.0),
			ProfitTarget1Percent: decimal.NewFromFloat(7.0),
			ProfitTarget2Percent: decimal.NewFromFloat(14.0),
			MaxHoldDays:          4, Multiplier: decimal.NewFromFloat(0.9)},
		{Regime: RegimeNormal, MinVix: 15, MaxVix: 20,
			StopLossPercent:      decimal.NewFromFloat(-8.0),
			ProfitTarget1Percent: decimal.NewFromFloat(8.0),
			ProfitTarget2Percent: decimal.NewFromFloat(16.0),
			MaxHoldDays:          5, Multiplier: decimal.NewFromFloat(1.0)},
		{Regime: RegimeElevated, MinVix: 20, MaxVix: 25,
			StopLossPercent:      decimal.NewFromFloat(-10.0),
			ProfitTarget1Percent: decimal.NewFromFloat(10.0),
			ProfitTarget2Percent: decimal.NewFromFloat(20.0),
			MaxHoldDays:          5, Multiplier: decimal.NewFromFloat(1.1)},
		{Regime: RegimeHigh, MinVix: 25, MaxVix: 35,
			StopLossPercent:      decimal.NewFromFloat(-12.0),
			ProfitTarget1Percent: decimal.NewFromFloat(12.0),
			ProfitTarget2Percent: decimal.NewFromFloat(24.0),
			MaxHoldDays:          6, Multiplier: decimal.NewFromFloat(1.2)},
		{Regime: RegimeExtreme, MinVix: 35, MaxVix: math.Inf(1),
			StopLossPercent:      decimal.NewFromFloat(-15.0),
			ProfitTarget1Percent: decimal.NewFromFloat(15.0),
			ProfitTarget2Percent: decimal.NewFromFloat(30.0),
			MaxHoldDays:          7, Multiplier: decimal.NewFromFloat(1.4)},
	}}
}
