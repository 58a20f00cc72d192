package forecast

import (
	"math"
	"time"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// ProjectInvoices turns unsettled invoices into dated cash events.
// Receivables land DSO days after their due date, payables DPO days after; amounts stay in their
// native currency. Rows without a due date, a finite amount or a tracked currency are counted and skipped.
func ProjectInvoices(invoices []models.Invoice, params models.HistoricalParameters) ([]models.ProjectedCashEvent, models.ProjectionStats) {
	var stats models.ProjectionStats
	events := make([]models.ProjectedCashEvent, 0, len(invoices))

	dsoDays := offsetDays(params.DSOMean)
	dpoDays := offsetDays(params.DPOMean)

	for _, inv := range invoices {
		if !inv.Status.Unsettled() {
			stats.Settled++
			continue
		}
		if inv.DueDate == nil || inv.DueDate.IsZero() {
			stats.MissingDueDate++
			continue
		}
		if inv.Amount == nil || !validAmount(*inv.Amount) {
			stats.MissingAmount++
			continue
		}
		currency, ok := models.ParseCurrency(inv.Currency)
		if !ok {
			stats.UnsupportedCurrency++
			continue
		}

		offset := dsoDays
		if inv.Direction == models.Payable {
			offset = dpoDays
		}
		events = append(events, models.ProjectedCashEvent{
			ExpectedDate: models.Day(*inv.DueDate).AddDate(0, 0, offset),
			Amount:       *inv.Amount,
			Currency:     currency,
			Direction:    inv.Direction,
		})
		stats.Projected++
	}

	return events, stats
}

func offsetDays(mean float64) int {
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return 0
	}
	return int(math.RoundToEven(mean))
}

// eventTotals sums the events of one day per currency and direction
type eventTotals struct {
	credit map[models.Currency]float64
	debit  map[models.Currency]float64
}

// eventIndex groups projected events by expected date
type eventIndex map[time.Time]*eventTotals

func indexEvents(events []models.ProjectedCashEvent) eventIndex {
	idx := make(eventIndex)
	for _, ev := range events {
		day := models.Day(ev.ExpectedDate)
		totals, ok := idx[day]
		if !ok {
			totals = &eventTotals{
				credit: make(map[models.Currency]float64),
				debit:  make(map[models.Currency]float64),
			}
			idx[day] = totals
		}
		if ev.Direction == models.Payable {
			totals.debit[ev.Currency] += ev.Amount
		} else {
			totals.credit[ev.Currency] += ev.Amount
		}
	}
	return idx
}

func (idx eventIndex) credit(day time.Time, c models.Currency) float64 {
	if totals, ok := idx[day]; ok {
		return totals.credit[c]
	}
	return 0
}

func (idx eventIndex) debit(day time.Time, c models.Currency) float64 {
	if totals, ok := idx[day]; ok {
		return totals.debit[c]
	}
	return 0
}
