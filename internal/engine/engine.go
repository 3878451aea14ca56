// Package engine implements deterministic transaction risk analysis for
// lending decisions.
//
// A user's transaction history is partitioned into income and expenses,
// bucketed by calendar month, and reduced to stability, volatility, and
// diversity statistics. Those are blended into one bounded risk score
// (0-100, lower = safer) by a fixed weighted formula plus per-anomaly
// penalties, mapped to a LOW/MEDIUM/HIGH category, and gated through
// eligibility rules. Scoring is rule/statistic based, not learned: all
// weights and thresholds live in Config and are validated up front.
//
// Analyze is a pure function of its input. It reads no clock, keeps no
// state between calls, and is safe for concurrent use.
package engine

import (
	"fmt"
	"math"
	"time"
)

// Direction marks a transaction as money in or money out.
type Direction string

const (
	DirectionCredit Direction = "CREDIT"
	DirectionDebit  Direction = "DEBIT"
)

// Valid reports whether the direction is one of the two known values.
func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Uncategorized is the sentinel bucket for expenses with no category label.
const Uncategorized = "uncategorized"

// Transaction is one already-validated history record. The engine never
// mutates it.
type Transaction struct {
	UserID      string
	Date        time.Time
	Description string
	Amount      float64
	Direction   Direction
	Category    string
	Channel     string
}

// RiskCategory is the ordered discrete risk bucket derived from the score.
type RiskCategory string

const (
	RiskLow    RiskCategory = "LOW"
	RiskMedium RiskCategory = "MEDIUM"
	RiskHigh   RiskCategory = "HIGH"
)

// Rank orders categories from safest to riskiest. Unknown values rank
// above HIGH so a bad config can never widen eligibility.
func (c RiskCategory) Rank() int {
	switch c {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return 3
	}
}

// Anomaly flags raised by the behavioral analyzer.
const (
	FlagIrregularIncome       = "irregular_income"
	FlagCategoryConcentration = "category_concentration"
	FlagSinglePeriodHistory   = "single_period_history"
)

// Eligibility reasons recorded on the result. The surrounding service is
// responsible for turning these into user-facing messages.
const (
	ReasonApproved            = "approved"
	ReasonInsufficientHistory = "insufficient_history"
	ReasonRiskCategoryTooHigh = "risk_category_too_high"
	ReasonNegativeCashFlow    = "negative_cash_flow"
	ReasonNoHistory           = "no_transaction_history"
)

// FinancialSummary holds aggregate descriptive statistics for the history.
type FinancialSummary struct {
	TransactionFrequency   float64 `json:"transactionFrequency"` // transactions per elapsed month
	TotalIncome            float64 `json:"totalIncome"`
	TotalExpense           float64 `json:"totalExpense"`
	NetCashFlow            float64 `json:"netCashFlow"`
	AverageTransactionSize float64 `json:"averageTransactionSize"`
	ActivePeriods          int     `json:"activePeriods"`
}

// BehavioralAnalysis holds the qualitative and quantitative behavior signals.
type BehavioralAnalysis struct {
	IncomeStability   float64  `json:"incomeStability"`   // [0,1], higher = steadier
	SpendingStability float64  `json:"spendingStability"` // [0,1], higher = steadier
	VolatilityIndex   float64  `json:"volatilityIndex"`   // >= 0, unbounded
	CategoryDiversity int      `json:"categoryDiversity"` // distinct non-sentinel expense categories
	AnomalyFlags      []string `json:"anomalyFlags"`      // sorted
}

// Result is the full risk assessment for one Analyze call. It is value
// data with no identity beyond the call that produced it.
type Result struct {
	OverallRiskScore   float64            `json:"overallRiskScore"` // [0,100], lower = safer
	RiskCategory       RiskCategory       `json:"riskCategory"`
	LoanEligible       bool               `json:"loanEligible"`
	EligibilityReason  string             `json:"eligibilityReason"`
	FinancialSummary   FinancialSummary   `json:"financialSummary"`
	BehavioralAnalysis BehavioralAnalysis `json:"behavioralAnalysis"`
}

// InputError reports a malformed transaction. The whole call fails rather
// than silently skipping the record, since a skipped record would corrupt
// frequency and stability statistics.
type InputError struct {
	Index  int
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("transaction %d: %s", e.Index, e.Reason)
}

// Engine scores transaction histories using a validated configuration.
type Engine struct {
	cfg Config
}

// New creates an engine. The configuration is validated once here, never
// per call.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.cfg
}

// Analyze produces a risk assessment for the given history. Malformed
// records (non-positive amount, unknown direction, zero timestamp) fail
// the whole call with *InputError. An empty history is not an error: it
// yields the worst-case-uncertainty result, since absence of data must
// never be rewarded as low risk.
func (e *Engine) Analyze(txns []Transaction) (*Result, error) {
	if err := validateInput(txns); err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return e.emptyResult(), nil
	}

	parts := classify(txns)
	buckets := aggregate(txns)
	summary := buildSummary(buckets, len(txns))
	behavior := e.analyzeBehavior(buckets, parts)
	score, category := e.score(behavior)
	eligible, reason := e.decide(category, summary)

	return &Result{
		OverallRiskScore:   score,
		RiskCategory:       category,
		LoanEligible:       eligible,
		EligibilityReason:  reason,
		FinancialSummary:   summary,
		BehavioralAnalysis: behavior,
	}, nil
}

func validateInput(txns []Transaction) error {
	for i, tx := range txns {
		if !(tx.Amount > 0) || math.IsInf(tx.Amount, 1) {
			return &InputError{Index: i, Reason: fmt.Sprintf("amount must be positive and finite, got %v", tx.Amount)}
		}
		if !tx.Direction.Valid() {
			return &InputError{Index: i, Reason: fmt.Sprintf("unknown direction %q", tx.Direction)}
		}
		if tx.Date.IsZero() {
			return &InputError{Index: i, Reason: "timestamp is zero"}
		}
	}
	return nil
}

// emptyResult is the documented zero-activity regime: every summary field
// zero, worst-case score and category, ineligible.
func (e *Engine) emptyResult() *Result {
	return &Result{
		OverallRiskScore:  100,
		RiskCategory:      RiskHigh,
		LoanEligible:      false,
		EligibilityReason: ReasonNoHistory,
		FinancialSummary:  FinancialSummary{},
		BehavioralAnalysis: BehavioralAnalysis{
			AnomalyFlags: []string{FlagSinglePeriodHistory},
		},
	}
}
