// Package fx fetches the USD and JPY conversion rates fixed for a forecast run.
package fx

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// ErrRateOutOfRange is returned when a quote is outside the plausible band
var ErrRateOutOfRange = errors.New("rate out of range")

// maxQuote bounds units of a foreign currency per EUR
const maxQuote = 1000

// Source is one live rate provider
type Source interface {
	Name() string
	Fetch(ctx context.Context) (models.FXRates, error)
}

// fromQuotes converts EUR-based quotes (units of X per EUR) into X->EUR multipliers
func fromQuotes(usdPerEUR, jpyPerEUR float64, source string) (models.FXRates, error) {
	for _, q := range []struct {
		currency models.Currency
		value    float64
	}{{models.USD, usdPerEUR}, {models.JPY, jpyPerEUR}} {
		if !(q.value > 0 && q.value < maxQuote) {
			return models.FXRates{}, fmt.Errorf("%w: %s %v per EUR", ErrRateOutOfRange, q.currency, q.value)
		}
	}
	return models.FXRates{
		USDToEUR: 1 / usdPerEUR,
		JPYToEUR: 1 / jpyPerEUR,
		Source:   source,
	}, nil
}
