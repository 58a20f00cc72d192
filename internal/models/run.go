package models

import "time"

// Run defaults
const (
	DefaultHorizonDays         = 90
	DefaultWarningThresholdEUR = 100_000
)

// RunConfig holds the immutable inputs of one forecast run
type RunConfig struct {
	StartDate           time.Time `json:"start_date"`
	MaxForecastDate     time.Time `json:"max_forecast_date"`
	HorizonDays         int       `json:"horizon_days"`
	WarningThresholdEUR float64   `json:"warning_threshold_eur"`
	Debt                DebtTerms `json:"debt"`
	InitialBalance      Balances  `json:"initial_balance"`
	FXRates             FXRates   `json:"fx_rates"`
}

// Clone returns a deep copy
func (c RunConfig) Clone() RunConfig {
	out := c
	out.InitialBalance = c.InitialBalance.Clone()
	return out
}

// EndDate is the last forecast day: start + horizon, capped at the max forecast date
func (c RunConfig) EndDate() time.Time {
	end := Day(c.StartDate).AddDate(0, 0, c.HorizonDays)
	if limit := Day(c.MaxForecastDate); end.After(limit) {
		return limit
	}
	return end
}

// ForecastDays is the number of ledger entries the run produces
func (c RunConfig) ForecastDays() int {
	return DaysBetween(c.StartDate, c.EndDate()) + 1
}

// RunRecord is a persisted forecast run
type RunRecord struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Trigger   string          `json:"trigger"`
	Result    *ForecastResult `json:"result"`
}

// RunSummary is the listing view of a persisted run
type RunSummary struct {
	ID                string    `json:"id"`
	Scenario          string    `json:"scenario"`
	Trigger           string    `json:"trigger"`
	StartDate         time.Time `json:"start_date"`
	EndDate           time.Time `json:"end_date"`
	FinalTotalEUR     float64   `json:"final_total_eur"`
	CriticalDays      int       `json:"critical_days"`
	ConsistencyPassed bool      `json:"consistency_passed"`
	CreatedAt         time.Time `json:"created_at"`
}
