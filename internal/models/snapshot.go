package models

import (
	"math"
	"time"
)

// MarketSnapshot is one day's market-breadth reading. It is produced by the
// import layer (one per trading day) and is read-only to the engine.
type MarketSnapshot struct {
	ID             string    `json:"id" db:"id"`
	StocksUp4Pct   int       `json:"stocks_up_4pct" db:"stocks_up_4pct"`
	StocksDown4Pct int       `json:"stocks_down_4pct" db:"stocks_down_4pct"`
	T2108          float64   `json:"t2108" db:"t2108"` // % of stocks above their 40-day MA
	VIX            float64   `json:"vix" db:"vix"`
	Date           time.Time `json:"date" db:"date"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Validate rejects snapshots the engine must not plan against.
func (s *MarketSnapshot) Validate() error {
	if math.IsNaN(s.VIX) || math.IsInf(s.VIX, 0) {
		return NewValidationError("vix", "must be a finite number")
	}
	if s.VIX < 0 {
		return NewValidationError("vix", "must not be negative")
	}
	if s.StocksUp4Pct < 0 {
		return NewValidationError("stocks_up_4pct", "must not be negative")
	}
	if s.StocksDown4Pct < 0 {
		return NewValidationError("stocks_down_4pct", "must not be negative")
	}
	if s.T2108 < 0 || s.T2108 > 100 {
		return NewValidationError("t2108", "must be a percentage between 0 and 100")
	}
	return nil
}

// UpDownRatio returns the upside/downside breadth ratio. A zero downside
// count with any upside participation reads as maximal strength.
func (s *MarketSnapshot) UpDownRatio() float64 {
	if s.StocksDown4Pct == 0 {
		if s.StocksUp4Pct == 0 {
			return 1.0
		}
		return math.Inf(1)
	}
	return float64(s.StocksUp4Pct) / float64(s.StocksDown4Pct)
}
