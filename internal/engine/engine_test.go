package engine

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func mustEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("New with default config: %v", err)
	}
	return e
}

func tx(t *testing.T, date string, amount float64, dir Direction, category string) Transaction {
	t.Helper()
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		t.Fatalf("bad test date %q: %v", date, err)
	}
	return Transaction{
		UserID:    "user_1",
		Date:      d,
		Amount:    amount,
		Direction: dir,
		Category:  category,
	}
}

// salaryHistory builds the reference scenario: five monthly salary credits
// of 50,000 and three months of five small recurring debit categories.
func salaryHistory(t *testing.T) []Transaction {
	t.Helper()
	var txns []Transaction
	for _, month := range []string{"2025-01", "2025-02", "2025-03", "2025-04", "2025-05"} {
		txns = append(txns, tx(t, month+"-01", 50000, DirectionCredit, "salary"))
	}
	expenses := []struct {
		amount   float64
		category string
	}{
		{3000, "groceries"},
		{1500, "utilities"},
		{800, "food"},
		{600, "entertainment"},
		{2000, "transport"},
	}
	for _, month := range []string{"2025-01", "2025-02", "2025-03"} {
		for _, e := range expenses {
			txns = append(txns, tx(t, month+"-15", e.amount, DirectionDebit, e.category))
		}
	}
	return txns
}

func TestSteadySalaryScenario(t *testing.T) {
	e := mustEngine(t)

	result, err := e.Analyze(salaryHistory(t))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if result.BehavioralAnalysis.IncomeStability != 1.0 {
		t.Errorf("income stability = %v, want 1.0 for perfectly regular salary", result.BehavioralAnalysis.IncomeStability)
	}
	if result.FinancialSummary.ActivePeriods != 5 {
		t.Errorf("active periods = %d, want 5", result.FinancialSummary.ActivePeriods)
	}
	if !result.LoanEligible {
		t.Errorf("expected eligible, got reason %q (score %v, category %s)",
			result.EligibilityReason, result.OverallRiskScore, result.RiskCategory)
	}
	if result.RiskCategory == RiskHigh {
		t.Errorf("risk category = HIGH, want LOW or MEDIUM (score %v)", result.OverallRiskScore)
	}
	if len(result.BehavioralAnalysis.AnomalyFlags) != 0 {
		t.Errorf("unexpected anomaly flags: %v", result.BehavioralAnalysis.AnomalyFlags)
	}
	if result.BehavioralAnalysis.CategoryDiversity != 5 {
		t.Errorf("category diversity = %d, want 5", result.BehavioralAnalysis.CategoryDiversity)
	}
}

func TestSummaryInvariants(t *testing.T) {
	e := mustEngine(t)

	result, err := e.Analyze(salaryHistory(t))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	s := result.FinancialSummary
	if s.TotalIncome-s.TotalExpense != s.NetCashFlow {
		t.Errorf("net cash flow %v != income %v - expense %v", s.NetCashFlow, s.TotalIncome, s.TotalExpense)
	}
	if s.TotalIncome != 250000 {
		t.Errorf("total income = %v, want 250000", s.TotalIncome)
	}
	if s.TotalExpense != 23700 {
		t.Errorf("total expense = %v, want 23700", s.TotalExpense)
	}
	if s.TransactionFrequency <= 0 {
		t.Errorf("transaction frequency = %v, want > 0 for non-empty history", s.TransactionFrequency)
	}
	// 5 credits + 15 debits over 5 elapsed months
	if s.TransactionFrequency != 4.0 {
		t.Errorf("transaction frequency = %v, want 4.0 (20 transactions over 5 months)", s.TransactionFrequency)
	}
}

func TestSingleTransactionScenario(t *testing.T) {
	e := mustEngine(t)

	result, err := e.Analyze([]Transaction{tx(t, "2025-03-10", 500, DirectionCredit, "salary")})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if result.FinancialSummary.ActivePeriods != 1 {
		t.Errorf("active periods = %d, want 1", result.FinancialSummary.ActivePeriods)
	}
	if !hasFlag(result.BehavioralAnalysis.AnomalyFlags, FlagSinglePeriodHistory) {
		t.Errorf("expected %s flag, got %v", FlagSinglePeriodHistory, result.BehavioralAnalysis.AnomalyFlags)
	}
	if result.LoanEligible {
		t.Error("single-period history must never be eligible")
	}
	if result.EligibilityReason != ReasonInsufficientHistory {
		t.Errorf("eligibility reason = %q, want %q", result.EligibilityReason, ReasonInsufficientHistory)
	}
}

func TestEmptyHistory(t *testing.T) {
	e := mustEngine(t)

	result, err := e.Analyze(nil)
	if err != nil {
		t.Fatalf("empty history must not error, got %v", err)
	}

	if result.RiskCategory != RiskHigh {
		t.Errorf("risk category = %s, want HIGH (absence of data is never low risk)", result.RiskCategory)
	}
	if result.OverallRiskScore != 100 {
		t.Errorf("risk score = %v, want 100", result.OverallRiskScore)
	}
	if result.LoanEligible {
		t.Error("empty history must be ineligible")
	}
	if result.EligibilityReason != ReasonNoHistory {
		t.Errorf("eligibility reason = %q, want %q", result.EligibilityReason, ReasonNoHistory)
	}
	if result.FinancialSummary.TransactionFrequency != 0 {
		t.Errorf("transaction frequency = %v, want 0", result.FinancialSummary.TransactionFrequency)
	}
}

func TestOrderIndependence(t *testing.T) {
	e := mustEngine(t)

	forward := salaryHistory(t)
	reversed := make([]Transaction, len(forward))
	for i, tx := range forward {
		reversed[len(forward)-1-i] = tx
	}

	a, err := e.Analyze(forward)
	if err != nil {
		t.Fatalf("Analyze forward: %v", err)
	}
	b, err := e.Analyze(reversed)
	if err != nil {
		t.Fatalf("Analyze reversed: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Errorf("results differ by input order:\nforward:  %+v\nreversed: %+v", a, b)
	}
}

func TestIdempotence(t *testing.T) {
	e := mustEngine(t)
	history := salaryHistory(t)

	a, err := e.Analyze(history)
	if err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	b, err := e.Analyze(history)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Errorf("repeated analysis not bit-identical:\nfirst:  %+v\nsecond: %+v", a, b)
	}
}

func TestMalformedAmountRejected(t *testing.T) {
	e := mustEngine(t)

	history := salaryHistory(t)
	history = append(history, tx(t, "2025-02-20", 0, DirectionDebit, "groceries"))

	result, err := e.Analyze(history)
	if result != nil {
		t.Error("expected no partial result for malformed input")
	}
	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected *InputError, got %v", err)
	}
	if inputErr.Index != len(history)-1 {
		t.Errorf("input error index = %d, want %d", inputErr.Index, len(history)-1)
	}
}

func TestUnknownDirectionRejected(t *testing.T) {
	e := mustEngine(t)

	bad := tx(t, "2025-02-20", 100, Direction("TRANSFER"), "misc")
	_, err := e.Analyze([]Transaction{bad})

	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected *InputError for unknown direction, got %v", err)
	}
}

func TestZeroTimestampRejected(t *testing.T) {
	e := mustEngine(t)

	bad := Transaction{UserID: "user_1", Amount: 100, Direction: DirectionDebit}
	_, err := e.Analyze([]Transaction{bad})

	var inputErr *InputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("expected *InputError for zero timestamp, got %v", err)
	}
}

func TestConcurrentAnalyze(t *testing.T) {
	e := mustEngine(t)
	history := salaryHistory(t)

	done := make(chan *Result, 8)
	for i := 0; i < 8; i++ {
		go func() {
			r, err := e.Analyze(history)
			if err != nil {
				t.Errorf("concurrent Analyze: %v", err)
			}
			done <- r
		}()
	}

	first := <-done
	for i := 1; i < 8; i++ {
		if r := <-done; !reflect.DeepEqual(first, r) {
			t.Error("concurrent analyses disagree")
		}
	}
}

func hasFlag(flags []string, want string) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
