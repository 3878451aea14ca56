package engine

import "math"

// score combines the behavioral signals into the bounded overall risk
// score and its category.
//
// Each term is a risk fraction in [0,1]: one minus each stability score,
// the volatility index normalized by its configured ceiling, and one
// minus the diversity fraction against the configured target. The
// weighted blend scales to 0-100, then each raised anomaly flag adds its
// configured penalty. The result clamps to [0,100] and rounds to two
// decimal places.
func (e *Engine) score(b BehavioralAnalysis) (float64, RiskCategory) {
	w := e.cfg.Weights

	volTerm := b.VolatilityIndex / e.cfg.VolatilityCeiling
	if volTerm > 1 {
		volTerm = 1
	}

	divFraction := float64(b.CategoryDiversity) / float64(e.cfg.DiversityTarget)
	if divFraction > 1 {
		divFraction = 1
	}

	base := 100 * (w.IncomeStability*(1-b.IncomeStability) +
		w.SpendingStability*(1-b.SpendingStability) +
		w.Volatility*volTerm +
		w.CategoryDiversity*(1-divFraction))

	score := base
	for _, flag := range b.AnomalyFlags {
		switch flag {
		case FlagIrregularIncome:
			score += e.cfg.IrregularIncomePenalty
		case FlagCategoryConcentration:
			score += e.cfg.CategoryConcentrationPenalty
		case FlagSinglePeriodHistory:
			score += e.cfg.SinglePeriodHistoryPenalty
		}
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	score = math.Round(score*100) / 100

	return score, e.categorize(score)
}

// categorize maps a clamped score onto the ordered category scale.
// Boundary values resolve upward: a score exactly at LowMax is MEDIUM,
// exactly at MediumMax is HIGH.
func (e *Engine) categorize(score float64) RiskCategory {
	switch {
	case score < e.cfg.LowMax:
		return RiskLow
	case score < e.cfg.MediumMax:
		return RiskMedium
	default:
		return RiskHigh
	}
}
