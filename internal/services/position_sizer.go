package services

import (
	"github.com/shopspring/decimal"

	"github.com/irfndi/bidback-engine/internal/config"
	"github.com/irfndi/bidback-engine/internal/models"
)

// SizeResult is the outcome of one sizing calculation.
type SizeResult struct {
	FinalPosition        decimal.Decimal `json:"final_position"`
	VixMultiplier        decimal.Decimal `json:"vix_multiplier"`
	BreadthMultiplier    decimal.Decimal `json:"breadth_multiplier"`
	PortfolioHeatPercent decimal.Decimal `json:"portfolio_heat_percent"`
	Capped               bool            `json:"capped"`
	AppliedOverride      string          `json:"applied_override,omitempty"`
}

// sizingOverride is one entry of the ordered override list. Overrides are
// evaluated after the independent signal predicates, in list order; the
// first match replaces the breadth multiplier outright. Order encodes
// precedence: capital preservation comes before opportunity sizing.
type sizingOverride struct {
	name       string
	applies    func(models.Signals, *models.MarketSnapshot) bool
	multiplier decimal.Decimal
}

// PositionSizer combines the base allocation with the VIX multiplier, the
// breadth multiplier, and the single-position ceiling.
type PositionSizer struct {
	detector  *SignalDetector
	matrix    *models.VixExitMatrix
	sizing    config.SizingConfig
	overrides []sizingOverride
}

// NewPositionSizer creates a sizer sharing the detector's matrix snapshot.
func NewPositionSizer(detector *SignalDetector, matrix *models.VixExitMatrix, sizing config.SizingConfig) *PositionSizer {
	return &PositionSizer{
		detector: detector,
		matrix:   matrix,
		sizing:   sizing,
		overrides: []sizingOverride{
			{
				name: "avoid_entry",
				applies: func(sig models.Signals, _ *models.MarketSnapshot) bool {
					return sig.AvoidEntry
				},
				multiplier: decimal.Zero,
			},
			{
				name: "breadth_floor",
				applies: func(_ models.Signals, snap *models.MarketSnapshot) bool {
					return detector.BelowZeroSizeFloor(snap)
				},
				multiplier: decimal.Zero,
			},
			{
				name: "big_opportunity",
				applies: func(sig models.Signals, _ *models.MarketSnapshot) bool {
					return sig.BigOpportunity
				},
				multiplier: decimal.NewFromFloat(sizing.BigOpportunityMultiplier),
			},
		},
	}
}

// Size computes the final position for one snapshot:
//
//	final = base × vixMultiplier × breadthMultiplier
//
// capped afterwards at portfolioSize × maxSinglePositionPercent, so an
// opportunity signal can reach but never exceed the ceiling. Aggregate heat
// across all open positions is the caller's responsibility.
func (ps *PositionSizer) Size(basePosition decimal.Decimal, snapshot *models.MarketSnapshot, portfolioSize decimal.Decimal) (*SizeResult, error) {
	if !basePosition.IsPositive() {
		return nil, models.NewValidationError("base_position", "must be positive")
	}
	if !portfolioSize.IsPositive() {
		return nil, models.NewValidationError("portfolio_size", "must be positive")
	}

	signals, err := ps.detector.Classify(snapshot)
	if err != nil {
		return nil, err
	}
	row, err := ps.matrix.Lookup(snapshot.VIX)
	if err != nil {
		return nil, err
	}

	breadthMult := ps.classMultiplier(signals.BreadthStrength)
	applied := ""
	for _, ov := range ps.overrides {
		if ov.applies(signals, snapshot) {
			breadthMult = ov.multiplier
			applied = ov.name
			break
		}
	}

	final := basePosition.Mul(row.Multiplier).Mul(breadthMult)

	ceiling := portfolioSize.Mul(decimal.NewFromFloat(ps.sizing.MaxSinglePositionPercent)).Div(decimal.NewFromInt(100))
	capped := false
	if final.GreaterThan(ceiling) {
		final = ceiling
		capped = true
	}

	heat := final.Div(portfolioSize).Mul(decimal.NewFromInt(100))

	return &SizeResult{
		FinalPosition:        final,
		VixMultiplier:        row.Multiplier,
		BreadthMultiplier:    breadthMult,
		PortfolioHeatPercent: heat,
		Capped:               capped,
		AppliedOverride:      applied,
	}, nil
}

func (ps *PositionSizer) classMultiplier(strength models.BreadthStrength) decimal.Decimal {
	switch strength {
	case models.BreadthWeak:
		return decimal.NewFromFloat(ps.sizing.WeakMultiplier)
	case models.BreadthStrong:
		return decimal.NewFromFloat(ps.sizing.StrongMultiplier)
	case models.BreadthExplosive:
		return decimal.NewFromFloat(ps.sizing.BigOpportunityMultiplier)
	default:
		return decimal.NewFromFloat(ps.sizing.NeutralMultiplier)
	}
}
