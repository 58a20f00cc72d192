package models

import "time"

// RiskTier classifies a day's projected net position against the debt principal
type RiskTier string

const (
	RiskSafe     RiskTier = "Safe"
	RiskWarning  RiskTier = "Warning"
	RiskCritical RiskTier = "Critical"
)

// RiskTiers lists every tier, safest first
var RiskTiers = []RiskTier{RiskSafe, RiskWarning, RiskCritical}

// CurrencyFlow is one currency's movement on one day, in native units
type CurrencyFlow struct {
	Credit     float64 `json:"credit"`
	Debit      float64 `json:"debit"`
	Net        float64 `json:"net"`
	Cumulative float64 `json:"cumulative"`
}

// DailyLedgerEntry represents the projected cash position for a specific day
type DailyLedgerEntry struct {
	Date               time.Time                 `json:"date"`
	Flows              map[Currency]CurrencyFlow `json:"flows"`
	CreditTotalEUR     float64                   `json:"credit_total_eur"`
	DebitTotalEUR      float64                   `json:"debit_total_eur"`
	NetCashFlowEUR     float64                   `json:"net_cash_flow_eur"`
	CumulativeTotalEUR float64                   `json:"cumulative_total_eur"`
	NetVsDebtEUR       float64                   `json:"net_vs_debt_eur"`
	RiskTier           RiskTier                  `json:"risk_tier"`
}

// Cumulative returns the native cumulative balance of c
func (e DailyLedgerEntry) Cumulative(c Currency) float64 {
	return e.Flows[c].Cumulative
}

// RiskSummary aggregates the per-day tiers of a ledger
type RiskSummary struct {
	TierCounts        map[RiskTier]int `json:"tier_counts"`
	NegativeDays      []time.Time      `json:"negative_days"`
	CriticalDays      []time.Time      `json:"critical_days"`
	WorstDay          time.Time        `json:"worst_day"`
	WorstNetVsDebtEUR float64          `json:"worst_net_vs_debt_eur"`
}

// ConsistencyViolation is a ledger entry whose stored total drifted from its per-currency recomputation
type ConsistencyViolation struct {
	Date          time.Time `json:"date"`
	StoredEUR     float64   `json:"stored_eur"`
	RecomputedEUR float64   `json:"recomputed_eur"`
	DriftEUR      float64   `json:"drift_eur"`
	// NonFinite marks a day whose totals were NaN or infinite; the amounts above are then zero
	NonFinite     bool      `json:"non_finite,omitempty"`
}

// ConsistencyReport is the post-hoc audit of a ledger
type ConsistencyReport struct {
	Passed               bool                   `json:"passed"`
	MaxDriftEUR          float64                `json:"max_drift_eur"`
	Violations           []ConsistencyViolation `json:"violations,omitempty"`
	ExpectedFinalEUR     float64                `json:"expected_final_eur"`
	ActualFinalEUR       float64                `json:"actual_final_eur"`
	ConservationDriftEUR float64                `json:"conservation_drift_eur"`
}

// Diagnostics collects input problems the engine worked around
type Diagnostics struct {
	InputIssues []string        `json:"input_issues,omitempty"`
	Projection  ProjectionStats `json:"projection"`
}

// ForecastResult is the complete output of one forecast run
type ForecastResult struct {
	Scenario          string             `json:"scenario"`
	StartDate         time.Time          `json:"start_date"`
	EndDate           time.Time          `json:"end_date"`
	FXRates           FXRates            `json:"fx_rates"`
	DebtPrincipal     float64            `json:"debt_principal"`
	InitialTotalEUR   float64            `json:"initial_total_eur"`
	FinalTotalEUR     float64            `json:"final_total_eur"`
	Ledger            []DailyLedgerEntry `json:"ledger"`
	Summary           RiskSummary        `json:"summary"`
	Consistency       ConsistencyReport  `json:"consistency"`
	Diagnostics       Diagnostics        `json:"diagnostics"`
	RecurringSchedule []RecurringPayment `json:"recurring_schedule"`
}

// InitialNetVsDebtEUR is the opening cash minus the debt principal
func (r *ForecastResult) InitialNetVsDebtEUR() float64 {
	return r.InitialTotalEUR - r.DebtPrincipal
}

// FinalNetVsDebtEUR is the closing cash minus the debt principal
func (r *ForecastResult) FinalNetVsDebtEUR() float64 {
	return r.FinalTotalEUR - r.DebtPrincipal
}
