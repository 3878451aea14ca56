// Package credlens is a Go client for the Credlens HTTP API.
// It covers user registration, transaction ingest, risk analysis, and
// webhook subscription management.
package credlens

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// User is one borrower profile.
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	AccountNumber string    `json:"accountNumber"`
	IFSCCode      string    `json:"ifscCode"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Transaction is one ledger entry to ingest or read back.
type Transaction struct {
	ID          string    `json:"id,omitempty"`
	Date        time.Time `json:"date"`
	Description string    `json:"description,omitempty"`
	Amount      float64   `json:"amount"`
	Type        string    `json:"type"` // CREDIT or DEBIT
	Category    string    `json:"category,omitempty"`
	Channel     string    `json:"channel,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}

// Assessment is one risk analysis result.
type Assessment struct {
	ID                 string             `json:"id"`
	UserID             string             `json:"userId"`
	OverallRiskScore   float64            `json:"overallRiskScore"`
	RiskCategory       string             `json:"riskCategory"` // LOW, MEDIUM, HIGH
	LoanEligible       bool               `json:"loanEligible"`
	EligibilityReason  string             `json:"eligibilityReason"`
	FinancialSummary   FinancialSummary   `json:"financialSummary"`
	BehavioralAnalysis BehavioralAnalysis `json:"behavioralAnalysis"`
	TransactionCount   int                `json:"transactionCount"`
	CreatedAt          time.Time          `json:"createdAt"`
}

// FinancialSummary aggregates a user's cash flow.
type FinancialSummary struct {
	TransactionFrequency   float64 `json:"transactionFrequency"`
	TotalIncome            float64 `json:"totalIncome"`
	TotalExpense           float64 `json:"totalExpense"`
	NetCashFlow            float64 `json:"netCashFlow"`
	AverageTransactionSize float64 `json:"averageTransactionSize"`
	ActivePeriods          int     `json:"activePeriods"`
}

// BehavioralAnalysis holds stability and anomaly signals.
type BehavioralAnalysis struct {
	IncomeStability   float64  `json:"incomeStability"`
	SpendingStability float64  `json:"spendingStability"`
	VolatilityIndex   float64  `json:"volatilityIndex"`
	AnomalyFlags      []string `json:"anomalyFlags"`
}

// Webhook is one event subscription.
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}

// Error is a structured API error response.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// VerifySignature checks a webhook payload against the X-Credlens-Signature
// header using the secret returned at subscription time.
func VerifySignature(payload []byte, secret, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
