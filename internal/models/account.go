package models

// Balances holds cash per currency in native units
type Balances map[Currency]float64

// Clone returns an independent copy
func (b Balances) Clone() Balances {
	out := make(Balances, len(b))
	for c, v := range b {
		out[c] = v
	}
	return out
}

// TotalEUR converts every tracked balance at the given rates and sums them
func (b Balances) TotalEUR(rates FXRates) float64 {
	total := 0.0
	for _, c := range TrackedCurrencies {
		total += rates.Convert(b[c], c)
	}
	return total
}
