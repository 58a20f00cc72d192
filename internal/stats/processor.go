// Package stats derives the historical parameter bundle of a forecast from bank movements and invoice books.
package stats

import (
	"slices"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// Bank categories feeding the recurring outflow and the inflation estimate
var (
	RecurringCategories = []string{"Loan Interest", "Payroll", "Bank Fee"}
	InflationCategories = []string{"Supplier Payment", "Payroll", "Loan Interest"}
)

const (
	loanInterestCategory = "Loan Interest"
	minInflationMonths   = 6
	recurringTolerance   = 0.9
)

// Result is everything the forecast needs from history
type Result struct {
	Parameters     models.HistoricalParameters `json:"parameters"`
	OpeningBalance models.Balances             `json:"opening_balance"`
	PaidSales      int                         `json:"paid_sales"`
	PaidPurchases  int                         `json:"paid_purchases"`
	MonthsObserved int                         `json:"months_observed"`
}

// Processor computes historical statistics at fixed conversion rates
type Processor struct {
	rates models.FXRates
	debt  models.DebtTerms
}

// NewProcessor creates a processor converting foreign amounts at rates
func NewProcessor(rates models.FXRates, debt models.DebtTerms) *Processor {
	return &Processor{rates: rates, debt: debt}
}

// Compute derives the parameter bundle and the opening balance as of start
func (p *Processor) Compute(transactions []models.BankTransaction, invoices []models.Invoice, start time.Time) Result {
	var receivables, payables []models.Invoice
	for _, inv := range invoices {
		if inv.Direction == models.Payable {
			payables = append(payables, inv)
		} else {
			receivables = append(receivables, inv)
		}
	}

	dso := paymentDelays(receivables)
	dpo := paymentDelays(payables)
	credits, debits := p.dailyTotals(transactions)

	params := models.HistoricalParameters{
		DSOMean:             mean(dso),
		DSOStd:              sampleStd(dso),
		DPOMean:             mean(dpo),
		DPOStd:              sampleStd(dpo),
		AvgDailyCredit:      mean(credits.values()),
		StdDailyCredit:      sampleStd(credits.values()),
		AvgDailyDebit:       mean(debits.values()),
		StdDailyDebit:       sampleStd(debits.values()),
		WeeklyCreditPattern: credits.weekdayMeans(),
		WeeklyDebitPattern:  debits.weekdayMeans(),
		CreditMix:           p.currencyMix(transactions, models.FlowCredit),
		DebitMix:            p.currencyMix(transactions, models.FlowDebit),
		InflationRate:       p.inflationRate(transactions),
		OverdueRateSales:    overdueRate(receivables),
		OverdueRatePurchase: overdueRate(payables),
	}

	recurring, months := p.monthlyRecurring(transactions)
	params.AvgMonthlyRecurring = recurring

	return Result{
		Parameters:     params,
		OpeningBalance: openingBalance(transactions, start),
		PaidSales:      len(dso),
		PaidPurchases:  len(dpo),
		MonthsObserved: months,
	}
}

// paymentDelays returns issue-to-payment days of paid invoices with both dates known
func paymentDelays(invoices []models.Invoice) []float64 {
	var delays []float64
	for _, inv := range invoices {
		if inv.Status != models.StatusPaid || inv.IssueDate == nil || inv.PaymentDate == nil {
			continue
		}
		delays = append(delays, float64(models.DaysBetween(*inv.IssueDate, *inv.PaymentDate)))
	}
	return delays
}

// dailySeries holds per-day EUR totals of one flow type, for days that saw that flow
type dailySeries map[time.Time]float64

func (s dailySeries) days() []time.Time {
	days := make([]time.Time, 0, len(s))
	for d := range s {
		days = append(days, d)
	}
	slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })
	return days
}

func (s dailySeries) values() []float64 {
	days := s.days()
	out := make([]float64, len(days))
	for i, d := range days {
		out[i] = s[d]
	}
	return out
}

func (s dailySeries) weekdayMeans() map[string]float64 {
	byWeekday := make(map[string][]float64)
	for _, d := range s.days() {
		name := d.Weekday().String()
		byWeekday[name] = append(byWeekday[name], s[d])
	}
	out := make(map[string]float64, len(byWeekday))
	for name, values := range byWeekday {
		out[name] = mean(values)
	}
	return out
}

func (p *Processor) dailyTotals(transactions []models.BankTransaction) (credits, debits dailySeries) {
	credits, debits = make(dailySeries), make(dailySeries)
	for _, tx := range transactions {
		day := models.Day(tx.Date)
		amount := p.rates.Convert(tx.Amount, tx.Currency)
		if tx.Type == models.FlowCredit {
			credits[day] += amount
		} else {
			debits[day] += amount
		}
	}
	return credits, debits
}

// currencyMix returns the share of EUR-equivalent volume per currency for one flow type
func (p *Processor) currencyMix(transactions []models.BankTransaction, flow models.FlowType) models.CurrencyMix {
	mix := make(models.CurrencyMix, len(models.TrackedCurrencies))
	for _, tx := range transactions {
		if tx.Type == flow {
			mix[tx.Currency] += p.rates.Convert(tx.Amount, tx.Currency)
		}
	}
	return mix.Normalized()
}

// monthlyRecurring averages monthly recurring outflows and tops up the debt interest the books miss.
// It also returns the number of months with recurring activity.
func (p *Processor) monthlyRecurring(transactions []models.BankTransaction) (float64, int) {
	all := p.monthlySums(transactions, RecurringCategories...)
	other := p.monthlySums(transactions, "Payroll", "Bank Fee")
	loan := p.monthlySums(transactions, loanInterestCategory)

	avg := mean(all.values())
	loanPerMonth := 0.0
	if len(all) > 0 {
		loanPerMonth = floats.Sum(loan.values()) / float64(len(all))
	}
	if loanPerMonth < p.debt.MonthlyInterest {
		avg += p.debt.MonthlyInterest - loanPerMonth
	}

	expected := mean(other.values()) + p.debt.MonthlyInterest
	if avg < expected*recurringTolerance {
		avg = expected
	}
	return max(avg, p.debt.MonthlyInterest), len(all)
}

// inflationRate annualises the mean month-over-month growth of recurring costs.
// Short or implausible histories fall back to the default rate.
func (p *Processor) inflationRate(transactions []models.BankTransaction) float64 {
	monthly := p.monthlySums(transactions, InflationCategories...).values()
	if len(monthly) < minInflationMonths {
		return models.InflationFallback
	}

	var growth []float64
	for i := 1; i < len(monthly); i++ {
		if prev := monthly[i-1]; prev > 0 {
			growth = append(growth, (monthly[i]-prev)/prev)
		}
	}
	if len(growth) == 0 {
		return models.InflationFallback
	}

	annual := mean(growth) * 12
	if annual < 0 || annual > models.InflationMax {
		return models.InflationFallback
	}
	return annual
}

// monthlySums totals EUR-equivalent debits of the given categories per calendar month
func (p *Processor) monthlySums(transactions []models.BankTransaction, categories ...string) dailySeries {
	sums := make(dailySeries)
	for _, tx := range transactions {
		if tx.Type != models.FlowDebit || !slices.Contains(categories, tx.Category) {
			continue
		}
		month := models.Date(tx.Date.Year(), tx.Date.Month(), 1)
		sums[month] += p.rates.Convert(tx.Amount, tx.Currency)
	}
	return sums
}

func overdueRate(invoices []models.Invoice) float64 {
	if len(invoices) == 0 {
		return 0
	}
	overdue := 0
	for _, inv := range invoices {
		if inv.Status == models.StatusOverdue {
			overdue++
		}
	}
	return float64(overdue) / float64(len(invoices))
}

// openingBalance nets every movement booked strictly before start, per currency
func openingBalance(transactions []models.BankTransaction, start time.Time) models.Balances {
	balance := make(models.Balances, len(models.TrackedCurrencies))
	for _, c := range models.TrackedCurrencies {
		balance[c] = 0
	}
	start = models.Day(start)
	for _, tx := range transactions {
		if !models.Day(tx.Date).Before(start) {
			continue
		}
		if tx.Type == models.FlowCredit {
			balance[tx.Currency] += tx.Amount
		} else {
			balance[tx.Currency] -= tx.Amount
		}
	}
	return balance
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// sampleStd is the unbiased standard deviation, zero below two observations
func sampleStd(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	return stat.StdDev(values, nil)
}
