package forecast

import (
	"math"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// ConsistencyToleranceEUR is the largest accepted gap between a stored total and its recomputation
const ConsistencyToleranceEUR = 0.01

// CheckConsistency audits a ledger without changing it. Each stored cumulative total is compared with
// the per-currency cumulatives converted at the run rates, and the closing total with the opening total
// plus the sum of daily net flows.
func CheckConsistency(ledger []models.DailyLedgerEntry, initial models.Balances, rates models.FXRates) models.ConsistencyReport {
	report := models.ConsistencyReport{Passed: true}

	for _, entry := range ledger {
		recomputed := 0.0
		for _, c := range models.TrackedCurrencies {
			recomputed += rates.Convert(entry.Cumulative(c), c)
		}
		drift := math.Abs(entry.CumulativeTotalEUR - recomputed)
		if !exceedsTolerance(drift) {
			report.MaxDriftEUR = math.Max(report.MaxDriftEUR, drift)
			continue
		}
		report.Passed = false
		v := models.ConsistencyViolation{
			Date:          entry.Date,
			StoredEUR:     finiteOrZero(entry.CumulativeTotalEUR),
			RecomputedEUR: finiteOrZero(recomputed),
			DriftEUR:      finiteOrZero(drift),
			NonFinite:     !validAmount(drift),
		}
		report.MaxDriftEUR = math.Max(report.MaxDriftEUR, v.DriftEUR)
		report.Violations = append(report.Violations, v)
	}

	expected := initial.TotalEUR(rates)
	for _, entry := range ledger {
		expected += entry.NetCashFlowEUR
	}
	actual := expected
	if n := len(ledger); n > 0 {
		actual = ledger[n-1].CumulativeTotalEUR
	}
	conservation := math.Abs(actual - expected)
	if exceedsTolerance(conservation) {
		report.Passed = false
	}

	report.ExpectedFinalEUR = finiteOrZero(expected)
	report.ActualFinalEUR = finiteOrZero(actual)
	report.ConservationDriftEUR = finiteOrZero(conservation)
	report.MaxDriftEUR = math.Max(report.MaxDriftEUR, report.ConservationDriftEUR)

	return report
}

// exceedsTolerance is true for drifts above the tolerance and for NaN or infinite drifts
func exceedsTolerance(drift float64) bool {
	return !validAmount(drift) || drift > ConsistencyToleranceEUR
}

// finiteOrZero keeps reported figures encodable; non-finite values are flagged separately
func finiteOrZero(v float64) float64 {
	if !validAmount(v) {
		return 0
	}
	return v
}
