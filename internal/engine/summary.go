package engine

import "math"

// buildSummary derives the aggregate descriptive statistics from the
// ordered period buckets. Callers guarantee txnCount matches the total
// bucket count; an empty history short-circuits before this point, so a
// zero-valued summary here only arises from the explicit degenerate path.
func buildSummary(buckets []periodBucket, txnCount int) FinancialSummary {
	if len(buckets) == 0 || txnCount == 0 {
		return FinancialSummary{}
	}

	var totalIncome, totalExpense float64
	for _, b := range buckets {
		totalIncome += b.creditSum
		totalExpense += b.debitSum
	}

	elapsed := monthSpan(buckets[0].key, buckets[len(buckets)-1].key)

	income := round4(totalIncome)
	expense := round4(totalExpense)

	return FinancialSummary{
		TransactionFrequency:   round4(float64(txnCount) / float64(elapsed)),
		TotalIncome:            income,
		TotalExpense:           expense,
		NetCashFlow:            income - expense, // exact: income - expense, by definition
		AverageTransactionSize: round4((totalIncome + totalExpense) / float64(txnCount)),
		ActivePeriods:          len(buckets),
	}
}

// round4 fixes derived floats at 4 decimal places so repeated analyses of
// the same input are bit-identical.
func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
