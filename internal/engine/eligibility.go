package engine

// decide applies the eligibility rules in fixed precedence and returns
// the verdict plus the machine-readable reason for it.
//
// Insufficient history disqualifies on its own, before the score is even
// consulted: a sparse history can look deceptively low-risk, and that
// must never translate into eligibility. Only then do the risk category
// ceiling and the cash-flow sign apply.
func (e *Engine) decide(category RiskCategory, summary FinancialSummary) (bool, string) {
	if summary.ActivePeriods < e.cfg.MinActivePeriods {
		return false, ReasonInsufficientHistory
	}
	if category.Rank() > e.cfg.MaxEligibleCategory.Rank() {
		return false, ReasonRiskCategoryTooHigh
	}
	if summary.NetCashFlow < 0 {
		return false, ReasonNegativeCashFlow
	}
	return true, ReasonApproved
}
