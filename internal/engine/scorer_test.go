package engine

import "testing"

func TestScorePerfectBehavior(t *testing.T) {
	e := mustEngine(t)
	b := BehavioralAnalysis{
		IncomeStability:   1.0,
		SpendingStability: 1.0,
		VolatilityIndex:   0,
		CategoryDiversity: 5,
		AnomalyFlags:      []string{},
	}

	score, cat := e.score(b)
	if score != 0 {
		t.Errorf("score = %v, want 0", score)
	}
	if cat != RiskLow {
		t.Errorf("category = %s, want %s", cat, RiskLow)
	}
}

func TestScoreWeightedBlend(t *testing.T) {
	e := mustEngine(t)
	// 0.35*0.2 + 0.25*0.2 = 0.12 of the scale.
	b := BehavioralAnalysis{
		IncomeStability:   0.8,
		SpendingStability: 0.8,
		VolatilityIndex:   0,
		CategoryDiversity: 5,
	}

	score, cat := e.score(b)
	if score != 12 {
		t.Errorf("score = %v, want 12", score)
	}
	if cat != RiskLow {
		t.Errorf("category = %s, want %s", cat, RiskLow)
	}
}

func TestScorePenaltyPerFlag(t *testing.T) {
	e := mustEngine(t)
	b := BehavioralAnalysis{
		IncomeStability:   0.8,
		SpendingStability: 0.8,
		CategoryDiversity: 5,
		AnomalyFlags:      []string{FlagIrregularIncome},
	}

	score, _ := e.score(b)
	if score != 27 {
		t.Errorf("score = %v, want 12 base + 15 penalty", score)
	}
}

func TestScoreClampsAtHundred(t *testing.T) {
	e := mustEngine(t)
	// Worst case on every term plus all three penalties would be 150
	// before the clamp.
	b := BehavioralAnalysis{
		IncomeStability:   0,
		SpendingStability: 0,
		VolatilityIndex:   10,
		CategoryDiversity: 0,
		AnomalyFlags: []string{
			FlagCategoryConcentration,
			FlagIrregularIncome,
			FlagSinglePeriodHistory,
		},
	}

	score, cat := e.score(b)
	if score != 100 {
		t.Errorf("score = %v, want clamp at 100", score)
	}
	if cat != RiskHigh {
		t.Errorf("category = %s, want %s", cat, RiskHigh)
	}
}

func TestScoreVolatilitySaturates(t *testing.T) {
	e := mustEngine(t)
	at := BehavioralAnalysis{IncomeStability: 1, SpendingStability: 1, VolatilityIndex: 2, CategoryDiversity: 5}
	beyond := at
	beyond.VolatilityIndex = 50

	a, _ := e.score(at)
	b, _ := e.score(beyond)
	if a != b {
		t.Errorf("volatility beyond the ceiling changed the score: %v vs %v", a, b)
	}
	if a != 25 {
		t.Errorf("saturated volatility term = %v, want 25", a)
	}
}

func TestCategorizeBoundaries(t *testing.T) {
	e := mustEngine(t)
	tests := []struct {
		score float64
		want  RiskCategory
	}{
		{0, RiskLow},
		{29.99, RiskLow},
		{30, RiskMedium}, // boundary resolves upward
		{59.99, RiskMedium},
		{60, RiskHigh},
		{100, RiskHigh},
	}
	for _, tc := range tests {
		if got := e.categorize(tc.score); got != tc.want {
			t.Errorf("categorize(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
