package models

import "strings"

// Currency is an ISO 4217 code of a tracked cash currency
type Currency string

const (
	EUR Currency = "EUR"
	USD Currency = "USD"
	JPY Currency = "JPY"
)

// TrackedCurrencies lists the currencies the forecast keeps separate balances for, in ledger order
var TrackedCurrencies = []Currency{EUR, USD, JPY}

// ParseCurrency normalises a currency code. An empty code means EUR.
func ParseCurrency(code string) (Currency, bool) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	if c == "" {
		return EUR, true
	}
	for _, tracked := range TrackedCurrencies {
		if c == tracked {
			return c, true
		}
	}
	return c, false
}

// Fallback conversion rates used when no live source answers
const (
	FallbackUSDToEUR = 0.92
	FallbackJPYToEUR = 0.0065
)

// FXRates holds the fixed conversion rates of one forecast run
type FXRates struct {
	USDToEUR float64 `json:"usd_to_eur"`
	JPYToEUR float64 `json:"jpy_to_eur"`
	Source   string  `json:"source"`
}

// FallbackRates returns the documented default rates
func FallbackRates() FXRates {
	return FXRates{USDToEUR: FallbackUSDToEUR, JPYToEUR: FallbackJPYToEUR, Source: "fallback"}
}

// ToEUR returns the multiplier converting one unit of c into EUR
func (r FXRates) ToEUR(c Currency) float64 {
	switch c {
	case USD:
		return r.USDToEUR
	case JPY:
		return r.JPYToEUR
	default:
		return 1.0
	}
}

// Convert converts an amount in c into EUR
func (r FXRates) Convert(amount float64, c Currency) float64 {
	return amount * r.ToEUR(c)
}
