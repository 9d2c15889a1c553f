package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/bidback-engine/internal/calendar"
	"github.com/irfndi/bidback-engine/internal/models"
)

// priceTickPlaces is the instrument price tick: US equity/ETF cents.
const priceTickPlaces = 2

var oneHundred = decimal.NewFromInt(100)

// ExitPlan carries the absolute exit levels derived from one matrix row.
type ExitPlan struct {
	StopLoss      decimal.Decimal  `json:"stop_loss"`
	ProfitTarget1 decimal.Decimal  `json:"profit_target_1"`
	ProfitTarget2 decimal.Decimal  `json:"profit_target_2"`
	TimeExitDate  time.Time        `json:"time_exit_date"`
	MaxHoldDays   int              `json:"max_hold_days"`
	Regime        models.VixRegime `json:"regime"`
	VixMultiplier decimal.Decimal  `json:"vix_multiplier"`
}

// ExitPlanner turns an entry price, a volatility reading, and an entry date
// into absolute exit prices and a calendar-aligned time exit.
type ExitPlanner struct {
	matrix *models.VixExitMatrix
	cal    *calendar.Calendar
}

// NewExitPlanner creates a planner bound to one matrix and calendar snapshot.
func NewExitPlanner(matrix *models.VixExitMatrix, cal *calendar.Calendar) *ExitPlanner {
	return &ExitPlanner{matrix: matrix, cal: cal}
}

// PlanExits derives the three exit prices and the time exit date. One matrix
// lookup feeds all derived outputs so a hot-reloaded table can never produce
// a mixed plan. Percentage math happens in full precision before rounding to
// the price tick: the stop rounds down (triggers no later than the raw
// level), the targets round half-up.
func (p *ExitPlanner) PlanExits(entryPrice decimal.Decimal, vix float64, entryDate time.Time) (*ExitPlan, error) {
	if !entryPrice.IsPositive() {
		return nil, models.NewValidationError("entry_price", "must be positive")
	}

	row, err := p.matrix.Lookup(vix)
	if err != nil {
		return nil, err
	}

	stop := applyPercent(entryPrice, row.StopLossPercent).RoundFloor(priceTickPlaces)
	target1 := applyPercent(entryPrice, row.ProfitTarget1Percent).Round(priceTickPlaces)
	target2 := applyPercent(entryPrice, row.ProfitTarget2Percent).Round(priceTickPlaces)

	// Tick rounding on a sub-dollar entry could collapse the level ordering.
	if !stop.LessThan(entryPrice) || !entryPrice.LessThan(target1) || !target1.LessThan(target2) {
		return nil, models.NewValidationError("entry_price", "too small to separate exit levels at the price tick")
	}

	return &ExitPlan{
		StopLoss:      stop,
		ProfitTarget1: target1,
		ProfitTarget2: target2,
		TimeExitDate:  p.cal.AddTradingDays(entryDate, row.MaxHoldDays),
		MaxHoldDays:   row.MaxHoldDays,
		Regime:        row.Regime,
		VixMultiplier: row.Multiplier,
	}, nil
}

func applyPercent(price, percent decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Add(percent.Div(oneHundred)))
}
