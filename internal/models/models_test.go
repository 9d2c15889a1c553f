package models

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVixExitMatrixValidates(t *testing.T) {
	matrix := DefaultVixExitMatrix()
	require.NoError(t, matrix.Validate())

	for _, row := range matrix.Rows {
		assert.True(t, row.StopLossPercent.IsNegative(), "stop must be negative for %s", row.Regime)
		assert.True(t, row.ProfitTarget1Percent.IsPositive(), "target1 must be positive for %s", row.Regime)
		assert.True(t, row.ProfitTarget2Percent.GreaterThan(row.ProfitTarget1Percent), "target2 must exceed target1 for %s", row.Regime)
		assert.GreaterOrEqual(t, row.MaxHoldDays, 1, "hold days for %s", row.Regime)
	}
}

func TestVixMatrixLookupIsTotal(t *testing.T) {
	matrix := DefaultVixExitMatrix()

	// Sweep the configured range including every boundary; no reading may be
	// unmatched and the multiplier must never decrease with volatility.
	prevMult := decimal.Zero
	for vix := 0.0; vix <= 90.0; vix += 0.5 {
		row, err := matrix.Lookup(vix)
		require.NoError(t, err, "vix=%v", vix)
		assert.True(t, row.Multiplier.GreaterThanOrEqual(prevMult), "multiplier regressed at vix=%v", vix)
		prevMult = row.Multiplier
	}
}

func TestVixMatrixBoundariesBelongToHigherRange(t *testing.T) {
	matrix := DefaultVixExitMatrix()

	tests := []struct {
		vix    float64
		regime VixRegime
	}{
		{0, RegimeUltraLow},
		{11.99, RegimeUltraLow},
		{12, RegimeLow},
		{15, RegimeNormal},
		{20, RegimeElevated},
		{25, RegimeHigh},
		{35, RegimeExtreme},
		{120.5, RegimeExtreme},
	}
	for _, tt := range tests {
		row, err := matrix.Lookup(tt.vix)
		require.NoError(t, err)
		assert.Equal(t, tt.regime, row.Regime, "vix=%v", tt.vix)
	}
}

func TestVixMatrixLookupRejectsBadInput(t *testing.T) {
	matrix := DefaultVixExitMatrix()

	for _, vix := range []float64{-0.01, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := matrix.Lookup(vix)
		require.Error(t, err, "vix=%v", vix)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	}
}

func TestVixMatrixValidateRejectsBrokenTables(t *testing.T) {
	base := func() *VixExitMatrix { return DefaultVixExitMatrix() }

	t.Run("gap between rows", func(t *testing.T) {
		m := base()
		m.Rows[1].MinVix = 13
		assertConfigError(t, m.Validate())
	})

	t.Run("first row not anchored at zero", func(t *testing.T) {
		m := base()
		m.Rows[0].MinVix = 1
		assertConfigError(t, m.Validate())
	})

	t.Run("last row bounded", func(t *testing.T) {
		m := base()
		m.Rows[len(m.Rows)-1].MaxVix = 80
		assertConfigError(t, m.Validate())
	})

	t.Run("positive stop", func(t *testing.T) {
		m := base()
		m.Rows[2].StopLossPercent = decimal.NewFromFloat(8.0)
		assertConfigError(t, m.Validate())
	})

	t.Run("target ordering violated", func(t *testing.T) {
		m := base()
		m.Rows[2].ProfitTarget2Percent = m.Rows[2].ProfitTarget1Percent
		assertConfigError(t, m.Validate())
	})

	t.Run("zero hold days", func(t *testing.T) {
		m := base()
		m.Rows[0].MaxHoldDays = 0
		assertConfigError(t, m.Validate())
	})

	t.Run("multiplier regression", func(t *testing.T) {
		m := base()
		m.Rows[3].Multiplier = decimal.NewFromFloat(0.5)
		assertConfigError(t, m.Validate())
	})
}

func assertConfigError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var cerr *ConfigurationError
	assert.ErrorAs(t, err, &cerr)
}

func TestMarketSnapshotValidate(t *testing.T) {
	valid := MarketSnapshot{
		StocksUp4Pct:   800,
		StocksDown4Pct: 150,
		T2108:          45.0,
		VIX:            18.2,
		Date:           time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*MarketSnapshot)
	}{
		{"negative vix", func(s *MarketSnapshot) { s.VIX = -1 }},
		{"nan vix", func(s *MarketSnapshot) { s.VIX = math.NaN() }},
		{"inf vix", func(s *MarketSnapshot) { s.VIX = math.Inf(1) }},
		{"negative up count", func(s *MarketSnapshot) { s.StocksUp4Pct = -5 }},
		{"negative down count", func(s *MarketSnapshot) { s.StocksDown4Pct = -5 }},
		{"t2108 above 100", func(s *MarketSnapshot) { s.T2108 = 101 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			err := s.Validate()
			require.Error(t, err)
			var verr *ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestUpDownRatio(t *testing.T) {
	s := MarketSnapshot{StocksUp4Pct: 600, StocksDown4Pct: 200}
	assert.InDelta(t, 3.0, s.UpDownRatio(), 1e-9)

	s = MarketSnapshot{StocksUp4Pct: 600, StocksDown4Pct: 0}
	assert.True(t, math.IsInf(s.UpDownRatio(), 1))

	s = MarketSnapshot{}
	assert.Equal(t, 1.0, s.UpDownRatio())
}

func TestExitedQuantity(t *testing.T) {
	pos := OpenPosition{
		Quantity:          100,
		RemainingQuantity: 40,
		PartialExits: []PartialExit{
			{Quantity: 30, Price: decimal.NewFromFloat(50.10)},
			{Quantity: 30, Price: decimal.NewFromFloat(52.25)},
		},
	}
	assert.Equal(t, 60, pos.ExitedQuantity())
	assert.LessOrEqual(t, pos.ExitedQuantity(), pos.Quantity)
}
