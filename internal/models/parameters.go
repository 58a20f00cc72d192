package models

// Inflation bounds and fallback applied to the annualised rate
const (
	InflationFallback = 0.02
	InflationMax      = 0.10
)

// CurrencyMix is the share of EUR-equivalent volume per currency for one flow type
type CurrencyMix map[Currency]float64

// DefaultCurrencyMix is used when history carries no volume to derive a mix from
func DefaultCurrencyMix() CurrencyMix {
	return CurrencyMix{EUR: 0.82, USD: 0.04, JPY: 0.14}
}

// Clone returns an independent copy
func (m CurrencyMix) Clone() CurrencyMix {
	if m == nil {
		return nil
	}
	out := make(CurrencyMix, len(m))
	for c, v := range m {
		out[c] = v
	}
	return out
}

// Normalized rescales tracked shares to sum to one. A mix without positive shares becomes the default.
func (m CurrencyMix) Normalized() CurrencyMix {
	total := 0.0
	for _, c := range TrackedCurrencies {
		if v := m[c]; v > 0 {
			total += v
		}
	}
	if total <= 0 {
		return DefaultCurrencyMix()
	}
	out := make(CurrencyMix, len(TrackedCurrencies))
	for _, c := range TrackedCurrencies {
		if v := m[c]; v > 0 {
			out[c] = v / total
		} else {
			out[c] = 0
		}
	}
	return out
}

// HistoricalParameters is the statistical bundle computed once per run from history.
// Weekly patterns are keyed by weekday name ("Monday" .. "Sunday"); a missing key means no observations.
type HistoricalParameters struct {
	DSOMean float64 `json:"dso_mean"`
	DSOStd  float64 `json:"dso_std"`
	DPOMean float64 `json:"dpo_mean"`
	DPOStd  float64 `json:"dpo_std"`

	AvgDailyCredit float64 `json:"avg_daily_credit"`
	AvgDailyDebit  float64 `json:"avg_daily_debit"`
	StdDailyCredit float64 `json:"std_daily_credit"`
	StdDailyDebit  float64 `json:"std_daily_debit"`

	WeeklyCreditPattern map[string]float64 `json:"weekly_credit_pattern"`
	WeeklyDebitPattern  map[string]float64 `json:"weekly_debit_pattern"`

	CreditMix CurrencyMix `json:"credit_mix"`
	DebitMix  CurrencyMix `json:"debit_mix"`

	InflationRate       float64 `json:"inflation_rate"`
	OverdueRateSales    float64 `json:"overdue_rate_sales"`
	OverdueRatePurchase float64 `json:"overdue_rate_purchase"`
	AvgMonthlyRecurring float64 `json:"avg_monthly_recurring"`
}

// Clone returns a deep copy so perturbing one run cannot leak into another
func (p HistoricalParameters) Clone() HistoricalParameters {
	out := p
	out.WeeklyCreditPattern = clonePattern(p.WeeklyCreditPattern)
	out.WeeklyDebitPattern = clonePattern(p.WeeklyDebitPattern)
	out.CreditMix = p.CreditMix.Clone()
	out.DebitMix = p.DebitMix.Clone()
	return out
}

// CreditVolatility is the coefficient of variation of daily credits, zero when undefined
func (p HistoricalParameters) CreditVolatility() float64 {
	return coefficientOfVariation(p.StdDailyCredit, p.AvgDailyCredit)
}

// DebitVolatility is the coefficient of variation of daily debits, zero when undefined
func (p HistoricalParameters) DebitVolatility() float64 {
	return coefficientOfVariation(p.StdDailyDebit, p.AvgDailyDebit)
}

func coefficientOfVariation(std, avg float64) float64 {
	if avg <= 0 || std <= 0 {
		return 0
	}
	return std / avg
}

func clonePattern(p map[string]float64) map[string]float64 {
	if p == nil {
		return nil
	}
	out := make(map[string]float64, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
