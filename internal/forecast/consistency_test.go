package forecast

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/cash-forecast/internal/models"
)

func TestCheckConsistency_CleanRunPasses(t *testing.T) {
	cfg := testConfig(models.Date(2024, time.January, 1), models.Date(2024, time.March, 31))
	cfg.InitialBalance = models.Balances{models.EUR: 5_000_000, models.USD: 1_000_000, models.JPY: 90_000_000}
	params := eurOnlyParams()
	params.StdDailyCredit = 3_000
	params.StdDailyDebit = 2_500
	params.CreditMix = models.DefaultCurrencyMix()
	params.DebitMix = models.DefaultCurrencyMix()

	res, err := NewEngine().Run(cfg, params, nil)
	require.NoError(t, err)

	report := CheckConsistency(res.Ledger, cfg.InitialBalance, cfg.FXRates)

	assert.True(t, report.Passed)
	assert.Empty(t, report.Violations)
	assert.Less(t, report.MaxDriftEUR, ConsistencyToleranceEUR)
	assert.InDelta(t, report.ExpectedFinalEUR, report.ActualFinalEUR, ConsistencyToleranceEUR)
	assert.Equal(t, report, res.Consistency)
}

func TestCheckConsistency_FlagsDriftWithoutRepairing(t *testing.T) {
	cfg := testConfig(models.Date(2024, time.January, 1), models.Date(2024, time.January, 10))
	res, err := NewEngine().Run(cfg, eurOnlyParams(), nil)
	require.NoError(t, err)

	ledger := append([]models.DailyLedgerEntry(nil), res.Ledger...)
	tampered := ledger[4].CumulativeTotalEUR + 1
	ledger[4].CumulativeTotalEUR = tampered

	report := CheckConsistency(ledger, cfg.InitialBalance, cfg.FXRates)

	assert.False(t, report.Passed)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, ledger[4].Date, report.Violations[0].Date)
	assert.InDelta(t, 1.0, report.Violations[0].DriftEUR, 1e-6)
	assert.InDelta(t, 1.0, report.MaxDriftEUR, 1e-6)
	assert.Equal(t, tampered, ledger[4].CumulativeTotalEUR)
}

func TestCheckConsistency_ConservationBreak(t *testing.T) {
	cfg := testConfig(models.Date(2024, time.January, 1), models.Date(2024, time.January, 5))
	res, err := NewEngine().Run(cfg, eurOnlyParams(), nil)
	require.NoError(t, err)

	ledger := append([]models.DailyLedgerEntry(nil), res.Ledger...)
	ledger[2].NetCashFlowEUR += 0.5

	report := CheckConsistency(ledger, cfg.InitialBalance, cfg.FXRates)

	assert.False(t, report.Passed)
	assert.Empty(t, report.Violations)
	assert.InDelta(t, 0.5, report.ConservationDriftEUR, 1e-6)
}

func TestCheckConsistency_NonFiniteTotalsFail(t *testing.T) {
	cfg := testConfig(models.Date(2024, time.January, 1), models.Date(2024, time.January, 5))
	res, err := NewEngine().Run(cfg, eurOnlyParams(), nil)
	require.NoError(t, err)

	ledger := append([]models.DailyLedgerEntry(nil), res.Ledger...)
	ledger[2].CumulativeTotalEUR = math.NaN()
	ledger[4].CumulativeTotalEUR = math.Inf(1)

	report := CheckConsistency(ledger, cfg.InitialBalance, cfg.FXRates)

	assert.False(t, report.Passed)
	require.Len(t, report.Violations, 2)
	for _, v := range report.Violations {
		assert.True(t, v.NonFinite)
		assert.Zero(t, v.DriftEUR)
	}
	assert.Zero(t, report.ActualFinalEUR)
	assert.False(t, math.IsNaN(report.MaxDriftEUR) || math.IsInf(report.MaxDriftEUR, 0))
}

func TestCheckConsistency_NonFiniteNetFlowBreaksConservation(t *testing.T) {
	cfg := testConfig(models.Date(2024, time.January, 1), models.Date(2024, time.January, 5))
	res, err := NewEngine().Run(cfg, eurOnlyParams(), nil)
	require.NoError(t, err)

	ledger := append([]models.DailyLedgerEntry(nil), res.Ledger...)
	ledger[1].NetCashFlowEUR = math.Inf(-1)

	report := CheckConsistency(ledger, cfg.InitialBalance, cfg.FXRates)

	assert.False(t, report.Passed)
	assert.Empty(t, report.Violations)
	assert.Zero(t, report.ExpectedFinalEUR)
}
