package engine

import (
	"math"
	"sort"
)

// neutralStability is the defined fallback when a series has too little
// signal for a variability estimate (fewer than two value-bearing
// periods). It deliberately sits below IrregularIncomeFloor-adjacent
// "steady" territory but above zero, so sparse data reads as uncertain
// rather than catastrophic.
const neutralStability = 0.5

// analyzeBehavior derives the behavioral signals from the ordered period
// buckets and the classified partition.
func (e *Engine) analyzeBehavior(buckets []periodBucket, parts partition) BehavioralAnalysis {
	credits := make([]float64, len(buckets))
	debits := make([]float64, len(buckets))
	flows := make([]float64, len(buckets))
	for i, b := range buckets {
		credits[i] = b.creditSum
		debits[i] = b.debitSum
		flows[i] = math.Abs(b.creditSum - b.debitSum)
	}

	incomeStability := stabilityScore(credits)
	spendingStability := stabilityScore(debits)

	volatility := 0.0
	if cv, ok := coefficientOfVariation(flows); ok {
		volatility = round4(cv)
	}

	diversity := 0
	for cat := range parts.byCategory {
		if cat != Uncategorized {
			diversity++
		}
	}

	flags := []string{}
	if incomeStability < e.cfg.IrregularIncomeFloor {
		flags = append(flags, FlagIrregularIncome)
	}
	if e.concentrated(parts) {
		flags = append(flags, FlagCategoryConcentration)
	}
	if len(buckets) < e.cfg.MinActivePeriods {
		flags = append(flags, FlagSinglePeriodHistory)
	}
	sort.Strings(flags)

	return BehavioralAnalysis{
		IncomeStability:   incomeStability,
		SpendingStability: spendingStability,
		VolatilityIndex:   volatility,
		CategoryDiversity: diversity,
		AnomalyFlags:      flags,
	}
}

// concentrated reports whether any single expense category exceeds the
// configured share of total expense. No expenses means no concentration.
func (e *Engine) concentrated(parts partition) bool {
	var total float64
	perCategory := make(map[string]float64, len(parts.byCategory))
	for cat, txns := range parts.byCategory {
		for _, tx := range txns {
			perCategory[cat] += tx.Amount
			total += tx.Amount
		}
	}
	if total <= 0 {
		return false
	}
	for _, sum := range perCategory {
		if sum/total > e.cfg.ConcentrationShare {
			return true
		}
	}
	return false
}

// stabilityScore is 1 minus the coefficient of variation, clamped to
// [0,1]. A series with fewer than two value-bearing periods gets the
// neutral default instead of an undefined statistic.
func stabilityScore(values []float64) float64 {
	nonZero := 0
	for _, v := range values {
		if v > 0 {
			nonZero++
		}
	}
	if nonZero < 2 {
		return neutralStability
	}
	cv, ok := coefficientOfVariation(values)
	if !ok {
		return neutralStability
	}
	s := 1 - cv
	if s < 0 {
		s = 0
	}
	if s > 1 {
		s = 1
	}
	return round4(s)
}

// coefficientOfVariation returns the population standard deviation over
// the mean. It is undefined (ok == false) for series shorter than two
// values or with a non-positive mean.
func coefficientOfVariation(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	m := mean(values)
	if m <= 0 {
		return 0, false
	}
	var sumSq float64
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq/float64(len(values))) / m, true
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
