package forecast

import (
	"time"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// accumulator is the running state threaded through the daily fold
type accumulator struct {
	cumulative models.Balances
	totalEUR   float64
}

func newAccumulator(initial models.Balances, rates models.FXRates) accumulator {
	cumulative := make(models.Balances, len(models.TrackedCurrencies))
	for _, c := range models.TrackedCurrencies {
		cumulative[c] = initial[c]
	}
	return accumulator{cumulative: cumulative, totalEUR: initial.TotalEUR(rates)}
}

// dayPlan holds the inputs shared by every currency on one day
type dayPlan struct {
	date         time.Time
	elapsed      int
	baseCredit   float64
	baseDebit    float64
	recurring    float64
	inflation    float64
	creditFactor float64
	debitFactor  float64
}

// loop is the day-by-day projection of one run
type loop struct {
	cfg        models.RunConfig
	params     models.HistoricalParameters
	events     eventIndex
	noise      NoiseSource
	creditVol  float64
	debitVol   float64
	classifier RiskClassifier
}

// run folds every day of the window into the ledger, oldest first
func (l *loop) run() []models.DailyLedgerEntry {
	days := l.cfg.ForecastDays()
	ledger := make([]models.DailyLedgerEntry, 0, days)
	acc := newAccumulator(l.cfg.InitialBalance, l.cfg.FXRates)
	start := models.Day(l.cfg.StartDate)
	limit := models.Day(l.cfg.MaxForecastDate)

	for elapsed := 0; elapsed < days; elapsed++ {
		date := start.AddDate(0, 0, elapsed)
		if date.After(limit) {
			break
		}
		var entry models.DailyLedgerEntry
		entry, acc = l.step(acc, l.plan(date, elapsed))
		ledger = append(ledger, entry)
	}
	return ledger
}

func (l *loop) plan(date time.Time, elapsed int) dayPlan {
	weekday := date.Weekday().String()

	baseCredit, ok := l.params.WeeklyCreditPattern[weekday]
	if !ok {
		baseCredit = l.params.AvgDailyCredit
	}
	baseDebit, ok := l.params.WeeklyDebitPattern[weekday]
	if !ok {
		baseDebit = l.params.AvgDailyDebit
	}

	recurring := 0.0
	if date.Day() == 1 {
		recurring = l.params.AvgMonthlyRecurring
	}

	zCredit, zDebit := l.noise.Draw(elapsed)

	return dayPlan{
		date:         date,
		elapsed:      elapsed,
		baseCredit:   baseCredit,
		baseDebit:    baseDebit,
		recurring:    recurring,
		inflation:    1 + l.params.InflationRate*float64(elapsed)/365,
		creditFactor: volumeFactor(zCredit, l.creditVol),
		debitFactor:  volumeFactor(zDebit, l.debitVol),
	}
}

// currencyFlow computes one currency's native credit and debit for the planned day
func (l *loop) currencyFlow(c models.Currency, p dayPlan) models.CurrencyFlow {
	rate := l.cfg.FXRates.ToEUR(c)

	credit := p.baseCredit*l.params.CreditMix[c]/rate + l.events.credit(p.date, c)
	debit := p.baseDebit*l.params.DebitMix[c]/rate + l.events.debit(p.date, c)
	if c == models.EUR {
		debit += p.recurring
	}

	credit *= p.creditFactor
	debit *= p.inflation * p.debitFactor

	return models.CurrencyFlow{Credit: credit, Debit: debit, Net: credit - debit}
}

// step applies one day to the accumulator and returns the day's entry with the next state
func (l *loop) step(acc accumulator, p dayPlan) (models.DailyLedgerEntry, accumulator) {
	rates := l.cfg.FXRates
	next := accumulator{
		cumulative: make(models.Balances, len(models.TrackedCurrencies)),
		totalEUR:   acc.totalEUR,
	}
	entry := models.DailyLedgerEntry{
		Date:  p.date,
		Flows: make(map[models.Currency]models.CurrencyFlow, len(models.TrackedCurrencies)),
	}

	for _, c := range models.TrackedCurrencies {
		flow := l.currencyFlow(c, p)
		next.cumulative[c] = acc.cumulative[c] + flow.Net
		flow.Cumulative = next.cumulative[c]
		entry.Flows[c] = flow

		entry.CreditTotalEUR += rates.Convert(flow.Credit, c)
		entry.DebitTotalEUR += rates.Convert(flow.Debit, c)
		entry.NetCashFlowEUR += rates.Convert(flow.Net, c)
	}

	next.totalEUR += entry.NetCashFlowEUR
	entry.CumulativeTotalEUR = next.totalEUR
	entry.NetVsDebtEUR = next.totalEUR - l.cfg.Debt.Principal
	entry.RiskTier = l.classifier.Classify(entry.NetVsDebtEUR)

	return entry, next
}

// recurringSchedule lists the monthly outflows booked inside the window
func recurringSchedule(cfg models.RunConfig, params models.HistoricalParameters) []models.RecurringPayment {
	var schedule []models.RecurringPayment
	start := models.Day(cfg.StartDate)
	for elapsed := 0; elapsed < cfg.ForecastDays(); elapsed++ {
		date := start.AddDate(0, 0, elapsed)
		if date.Day() != 1 {
			continue
		}
		schedule = append(schedule, models.RecurringPayment{
			PaymentDate:  date,
			Amount:       params.AvgMonthlyRecurring,
			Currency:     models.EUR,
			DebtInterest: cfg.Debt.MonthlyInterest,
		})
	}
	return schedule
}
