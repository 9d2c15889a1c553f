package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/bidback-engine/internal/calendar"
	"github.com/irfndi/bidback-engine/internal/config"
	"github.com/irfndi/bidback-engine/internal/models"
)

func testThresholds() config.SignalThresholds {
	return config.SignalThresholds{
		AvoidEntryMinUp4Pct:   150,
		AvoidEntryMaxT2108:    70,
		ZeroSizeUp4Pct:        100,
		BigOppMinUp4Pct:       1000,
		BigOppMaxT2108:        30,
		WeakBreadthRatio:      0.5,
		StrongBreadthRatio:    1.5,
		ExplosiveBreadthRatio: 3.0,
	}
}

func testSizing() config.SizingConfig {
	return config.SizingConfig{
		MaxSinglePositionPercent: 20,
		MaxPortfolioHeatPercent:  80,
		WeakMultiplier:           0.5,
		NeutralMultiplier:        1.0,
		StrongMultiplier:         1.5,
		BigOpportunityMultiplier: 2.0,
	}
}

func testTracker() config.TrackerConfig {
	return config.TrackerConfig{StopProximityPercent: 2.0, BreadthWindow: 5}
}

func testDetector() *SignalDetector {
	return NewSignalDetector(models.DefaultVixExitMatrix(), testThresholds())
}

func testPlanner() (*TradePlanner, *LifecycleTracker) {
	matrix := models.DefaultVixExitMatrix()
	cal := calendar.Default()
	detector := NewSignalDetector(matrix, testThresholds())
	sizer := NewPositionSizer(detector, matrix, testSizing())
	exits := NewExitPlanner(matrix, cal)
	planner := NewTradePlanner(detector, sizer, exits, dec(100000))
	tracker := NewLifecycleTracker(detector, cal, testTracker())
	return planner, tracker
}

func dec(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// healthySnapshot is a normal-regime day with solid participation.
func healthySnapshot(date string) *models.MarketSnapshot {
	return &models.MarketSnapshot{
		StocksUp4Pct:   800,
		StocksDown4Pct: 150,
		T2108:          45.0,
		VIX:            18.2,
		Date:           day(date),
	}
}
