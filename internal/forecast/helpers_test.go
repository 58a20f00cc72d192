package forecast

import (
	"time"

	"github.com/Dan9191/cash-forecast/internal/models"
)

func testConfig(start, limit time.Time) models.RunConfig {
	return models.RunConfig{
		StartDate:           start,
		MaxForecastDate:     limit,
		HorizonDays:         models.DefaultHorizonDays,
		WarningThresholdEUR: models.DefaultWarningThresholdEUR,
		Debt:                models.NewDebtTerms(20_000_000, 0.035, 0.012),
		InitialBalance:      models.Balances{models.EUR: 19_000_000},
		FXRates:             models.FXRates{USDToEUR: 0.92, JPYToEUR: 0.0065, Source: "test"},
	}
}

func eurOnlyParams() models.HistoricalParameters {
	return models.HistoricalParameters{
		AvgDailyCredit: 10_000,
		AvgDailyDebit:  9_000,
		CreditMix:      models.CurrencyMix{models.EUR: 1},
		DebitMix:       models.CurrencyMix{models.EUR: 1},
	}
}

func ptrDate(y int, m time.Month, d int) *time.Time {
	t := models.Date(y, m, d)
	return &t
}

func ptrAmount(v float64) *float64 {
	return &v
}
