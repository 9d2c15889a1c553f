package services

import (
	"github.com/irfndi/bidback-engine/internal/config"
	"github.com/irfndi/bidback-engine/internal/models"
)

// SignalDetector classifies one market snapshot into a volatility regime, a
// breadth-strength class, and the two BIDBACK override flags. Classification
// is pure: the same snapshot always yields the same signals.
type SignalDetector struct {
	matrix     *models.VixExitMatrix
	thresholds config.SignalThresholds
}

// NewSignalDetector creates a detector bound to one matrix snapshot and one
// threshold set. Swap configuration by constructing a new detector.
func NewSignalDetector(matrix *models.VixExitMatrix, thresholds config.SignalThresholds) *SignalDetector {
	return &SignalDetector{matrix: matrix, thresholds: thresholds}
}

// Classify evaluates the snapshot. BigOpportunity and AvoidEntry are computed
// independently and may both be true; the position sizer resolves the overlap
// so that capital preservation dominates opportunity sizing.
func (d *SignalDetector) Classify(snapshot *models.MarketSnapshot) (models.Signals, error) {
	if err := snapshot.Validate(); err != nil {
		return models.Signals{}, err
	}

	// Regime labels come from the exit-matrix rows, so a label and the exit
	// parameters for the same reading can never disagree.
	row, err := d.matrix.Lookup(snapshot.VIX)
	if err != nil {
		return models.Signals{}, err
	}

	return models.Signals{
		VixRegime:       row.Regime,
		BreadthStrength: d.BreadthStrength(snapshot),
		AvoidEntry: snapshot.StocksUp4Pct < d.thresholds.AvoidEntryMinUp4Pct ||
			snapshot.T2108 > d.thresholds.AvoidEntryMaxT2108,
		BigOpportunity: snapshot.T2108 < d.thresholds.BigOppMaxT2108 &&
			snapshot.StocksUp4Pct > d.thresholds.BigOppMinUp4Pct,
	}, nil
}

// BreadthStrength buckets the up/down breadth ratio.
func (d *SignalDetector) BreadthStrength(snapshot *models.MarketSnapshot) models.BreadthStrength {
	ratio := snapshot.UpDownRatio()
	switch {
	case ratio < d.thresholds.WeakBreadthRatio:
		return models.BreadthWeak
	case ratio < d.thresholds.StrongBreadthRatio:
		return models.BreadthNeutral
	case ratio < d.thresholds.ExplosiveBreadthRatio:
		return models.BreadthStrong
	default:
		return models.BreadthExplosive
	}
}

// BelowZeroSizeFloor reports the hard floor that forces the calculated size
// to zero regardless of the avoid-entry flag.
func (d *SignalDetector) BelowZeroSizeFloor(snapshot *models.MarketSnapshot) bool {
	return snapshot.StocksUp4Pct < d.thresholds.ZeroSizeUp4Pct
}
