package forecast

import (
	"time"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// RiskClassifier maps a day's net position against the debt to a tier.
// Every value falls in exactly one tier; days are classified independently.
type RiskClassifier struct {
	WarningThresholdEUR float64
}

// Classify returns Safe at or above zero, Warning down to -threshold inclusive, Critical below
func (c RiskClassifier) Classify(netVsDebtEUR float64) models.RiskTier {
	switch {
	case netVsDebtEUR >= 0:
		return models.RiskSafe
	case netVsDebtEUR >= -c.WarningThresholdEUR:
		return models.RiskWarning
	default:
		return models.RiskCritical
	}
}

// Summarize counts tiers, lists negative and critical days in order and finds the earliest worst day
func (c RiskClassifier) Summarize(ledger []models.DailyLedgerEntry) models.RiskSummary {
	summary := models.RiskSummary{
		TierCounts:   make(map[models.RiskTier]int, len(models.RiskTiers)),
		NegativeDays: []time.Time{},
		CriticalDays: []time.Time{},
	}
	for _, tier := range models.RiskTiers {
		summary.TierCounts[tier] = 0
	}

	for i, entry := range ledger {
		tier := c.Classify(entry.NetVsDebtEUR)
		summary.TierCounts[tier]++
		if entry.NetVsDebtEUR < 0 {
			summary.NegativeDays = append(summary.NegativeDays, entry.Date)
		}
		if tier == models.RiskCritical {
			summary.CriticalDays = append(summary.CriticalDays, entry.Date)
		}
		if i == 0 || entry.NetVsDebtEUR < summary.WorstNetVsDebtEUR {
			summary.WorstDay = entry.Date
			summary.WorstNetVsDebtEUR = entry.NetVsDebtEUR
		}
	}
	return summary
}
