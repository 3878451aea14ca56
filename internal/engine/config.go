package engine

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid engine config")

// Weights blend the four risk terms into the base score. They must sum
// to 1 so the base score is a true 0-100 percentage before penalties.
type Weights struct {
	IncomeStability   float64 `json:"incomeStability"`
	SpendingStability float64 `json:"spendingStability"`
	Volatility        float64 `json:"volatility"`
	CategoryDiversity float64 `json:"categoryDiversity"`
}

// Config is the full scoring configuration surface. Callers treat it as
// versioned configuration: loaded at startup, validated at engine
// construction, never mutated per call.
type Config struct {
	Weights Weights

	// Additive score penalties (in points on the 0-100 scale) applied
	// per raised anomaly flag.
	IrregularIncomePenalty       float64
	CategoryConcentrationPenalty float64
	SinglePeriodHistoryPenalty   float64

	// Category boundaries over the clamped score. Boundary values belong
	// to the higher category: score < LowMax is LOW, LowMax <= score <
	// MediumMax is MEDIUM, everything else is HIGH.
	LowMax    float64
	MediumMax float64

	// Behavioral thresholds.
	IrregularIncomeFloor float64 // income stability below this raises irregular_income
	ConcentrationShare   float64 // a single category above this share of expenses raises category_concentration
	VolatilityCeiling    float64 // coefficient of variation at which the volatility term saturates
	DiversityTarget      int     // distinct expense categories for full diversity credit

	// Eligibility rules.
	MinActivePeriods    int
	MaxEligibleCategory RiskCategory
}

// DefaultConfig returns the production scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			IncomeStability:   0.35,
			SpendingStability: 0.25,
			Volatility:        0.25,
			CategoryDiversity: 0.15,
		},
		IrregularIncomePenalty:       15,
		CategoryConcentrationPenalty: 10,
		SinglePeriodHistoryPenalty:   25,
		LowMax:                       30,
		MediumMax:                    60,
		IrregularIncomeFloor:         0.4,
		ConcentrationShare:           0.6,
		VolatilityCeiling:            2.0,
		DiversityTarget:              5,
		MinActivePeriods:             3,
		MaxEligibleCategory:          RiskMedium,
	}
}

// Validate rejects configurations that would make scoring undefined or
// the category boundaries overlap. All failures wrap ErrInvalidConfig.
func (c Config) Validate() error {
	sum := c.Weights.IncomeStability + c.Weights.SpendingStability +
		c.Weights.Volatility + c.Weights.CategoryDiversity
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("%w: weights sum to %v, want 1", ErrInvalidConfig, sum)
	}
	for name, w := range map[string]float64{
		"incomeStability":   c.Weights.IncomeStability,
		"spendingStability": c.Weights.SpendingStability,
		"volatility":        c.Weights.Volatility,
		"categoryDiversity": c.Weights.CategoryDiversity,
	} {
		if w < 0 {
			return fmt.Errorf("%w: weight %s is negative", ErrInvalidConfig, name)
		}
	}
	if c.IrregularIncomePenalty < 0 || c.CategoryConcentrationPenalty < 0 || c.SinglePeriodHistoryPenalty < 0 {
		return fmt.Errorf("%w: anomaly penalties must be non-negative", ErrInvalidConfig)
	}
	if !(c.LowMax > 0 && c.LowMax < c.MediumMax && c.MediumMax <= 100) {
		return fmt.Errorf("%w: category boundaries must satisfy 0 < LowMax < MediumMax <= 100, got %v and %v",
			ErrInvalidConfig, c.LowMax, c.MediumMax)
	}
	if c.IrregularIncomeFloor < 0 || c.IrregularIncomeFloor > 1 {
		return fmt.Errorf("%w: IrregularIncomeFloor must be in [0,1], got %v", ErrInvalidConfig, c.IrregularIncomeFloor)
	}
	if c.ConcentrationShare <= 0 || c.ConcentrationShare > 1 {
		return fmt.Errorf("%w: ConcentrationShare must be in (0,1], got %v", ErrInvalidConfig, c.ConcentrationShare)
	}
	if c.VolatilityCeiling <= 0 {
		return fmt.Errorf("%w: VolatilityCeiling must be positive, got %v", ErrInvalidConfig, c.VolatilityCeiling)
	}
	if c.DiversityTarget < 1 {
		return fmt.Errorf("%w: DiversityTarget must be at least 1, got %d", ErrInvalidConfig, c.DiversityTarget)
	}
	if c.MinActivePeriods < 1 {
		return fmt.Errorf("%w: MinActivePeriods must be at least 1, got %d", ErrInvalidConfig, c.MinActivePeriods)
	}
	if !c.MaxEligibleCategory.valid() {
		return fmt.Errorf("%w: unknown MaxEligibleCategory %q", ErrInvalidConfig, c.MaxEligibleCategory)
	}
	return nil
}

func (c RiskCategory) valid() bool {
	return c == RiskLow || c == RiskMedium || c == RiskHigh
}
