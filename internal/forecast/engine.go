// Package forecast projects a daily multi-currency cash position from historical parameters,
// open invoices and recurring payments, and grades each day against the outstanding debt.
//
// The engine is a pure, single-threaded fold: all inputs are materialised before Run and
// nothing is fetched, persisted or logged from here.
package forecast

import (
	"fmt"
	"math"
	"time"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// Engine runs forecasts
type Engine struct {
	noise NoiseSource
}

// Option configures an Engine
type Option func(*Engine)

// WithNoise replaces the seeded volatility source
func WithNoise(n NoiseSource) Option {
	return func(e *Engine) {
		e.noise = n
	}
}

// NewEngine creates an engine using the default per-day seeded normal draws
func NewEngine(opts ...Option) *Engine {
	e := &Engine{noise: SeededNormal{Seed: DefaultNoiseSeed}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run projects the ledger for cfg. It either returns a populated result or an error wrapping
// ErrInvalidConfig; input problems that can be defaulted are reported in the result diagnostics.
func (e *Engine) Run(cfg models.RunConfig, params models.HistoricalParameters, invoices []models.Invoice) (*models.ForecastResult, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	cfg = cfg.Clone()
	params, issues := normalizeParameters(params.Clone(), cfg.Debt)

	events, projection := ProjectInvoices(invoices, params)
	classifier := RiskClassifier{WarningThresholdEUR: cfg.WarningThresholdEUR}

	l := &loop{
		cfg:        cfg,
		params:     params,
		events:     indexEvents(events),
		noise:      e.noise,
		creditVol:  params.CreditVolatility(),
		debitVol:   params.DebitVolatility(),
		classifier: classifier,
	}
	ledger := l.run()

	result := &models.ForecastResult{
		StartDate:       models.Day(cfg.StartDate),
		EndDate:         cfg.EndDate(),
		FXRates:         cfg.FXRates,
		DebtPrincipal:   cfg.Debt.Principal,
		InitialTotalEUR: cfg.InitialBalance.TotalEUR(cfg.FXRates),
		Ledger:          ledger,
		Summary:         classifier.Summarize(ledger),
		Consistency:     CheckConsistency(ledger, cfg.InitialBalance, cfg.FXRates),
		Diagnostics: models.Diagnostics{
			InputIssues: issues,
			Projection:  projection,
		},
		RecurringSchedule: recurringSchedule(cfg, params),
	}
	result.FinalTotalEUR = result.InitialTotalEUR
	if n := len(ledger); n > 0 {
		result.FinalTotalEUR = ledger[n-1].CumulativeTotalEUR
	}
	return result, nil
}

func validateConfig(cfg models.RunConfig) error {
	if cfg.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidConfig)
	}
	if cfg.MaxForecastDate.IsZero() {
		return fmt.Errorf("%w: max forecast date is required", ErrInvalidConfig)
	}
	start, limit := models.Day(cfg.StartDate), models.Day(cfg.MaxForecastDate)
	if start.After(limit) {
		return fmt.Errorf("%w: start date %s is after max forecast date %s",
			ErrInvalidConfig, start.Format(models.DateLayout), limit.Format(models.DateLayout))
	}
	if cfg.HorizonDays <= 0 {
		return fmt.Errorf("%w: horizon must be positive, got %d", ErrInvalidConfig, cfg.HorizonDays)
	}
	if !validAmount(cfg.WarningThresholdEUR) || cfg.WarningThresholdEUR < 0 {
		return fmt.Errorf("%w: warning threshold must be a non-negative amount", ErrInvalidConfig)
	}
	if !validAmount(cfg.Debt.Principal) {
		return fmt.Errorf("%w: debt principal must be a finite amount", ErrInvalidConfig)
	}
	for _, c := range []models.Currency{models.USD, models.JPY} {
		if rate := cfg.FXRates.ToEUR(c); !validAmount(rate) || rate <= 0 {
			return fmt.Errorf("%w: %s rate must be positive, got %v", ErrInvalidConfig, c, rate)
		}
	}
	for _, c := range models.TrackedCurrencies {
		if !validAmount(cfg.InitialBalance[c]) {
			return fmt.Errorf("%w: initial %s balance must be a finite amount", ErrInvalidConfig, c)
		}
	}
	return nil
}

// normalizeParameters substitutes safe defaults for undefined or out-of-range statistics
func normalizeParameters(p models.HistoricalParameters, debt models.DebtTerms) (models.HistoricalParameters, []string) {
	var issues []string
	note := func(format string, args ...any) {
		issues = append(issues, fmt.Sprintf(format, args...))
	}

	if !validAmount(p.AvgDailyCredit) || p.AvgDailyCredit <= 0 {
		note("avg_daily_credit undefined (%v): credit volatility disabled", p.AvgDailyCredit)
		if !validAmount(p.AvgDailyCredit) || p.AvgDailyCredit < 0 {
			p.AvgDailyCredit = 0
		}
		p.StdDailyCredit = 0
	}
	if !validAmount(p.AvgDailyDebit) || p.AvgDailyDebit <= 0 {
		note("avg_daily_debit undefined (%v): debit volatility disabled", p.AvgDailyDebit)
		if !validAmount(p.AvgDailyDebit) || p.AvgDailyDebit < 0 {
			p.AvgDailyDebit = 0
		}
		p.StdDailyDebit = 0
	}
	if !validAmount(p.StdDailyCredit) || p.StdDailyCredit < 0 {
		note("std_daily_credit invalid (%v): treated as 0", p.StdDailyCredit)
		p.StdDailyCredit = 0
	}
	if !validAmount(p.StdDailyDebit) || p.StdDailyDebit < 0 {
		note("std_daily_debit invalid (%v): treated as 0", p.StdDailyDebit)
		p.StdDailyDebit = 0
	}

	offsets := []struct {
		name string
		mean *float64
	}{{"dso_mean", &p.DSOMean}, {"dpo_mean", &p.DPOMean}}
	for _, o := range offsets {
		if !validAmount(*o.mean) || *o.mean < 0 {
			note("%s invalid (%v): treated as 0", o.name, *o.mean)
			*o.mean = 0
		}
	}

	switch {
	case math.IsNaN(p.InflationRate):
		note("inflation_rate undefined: using fallback %.2f", models.InflationFallback)
		p.InflationRate = models.InflationFallback
	case p.InflationRate < 0:
		note("inflation_rate %.4f below 0: clamped", p.InflationRate)
		p.InflationRate = 0
	case p.InflationRate > models.InflationMax:
		note("inflation_rate %.4f above %.2f: clamped", p.InflationRate, models.InflationMax)
		p.InflationRate = models.InflationMax
	}

	if !validAmount(p.AvgMonthlyRecurring) || p.AvgMonthlyRecurring < debt.MonthlyInterest {
		note("avg_monthly_recurring %.2f below debt interest %.2f: raised to the floor", p.AvgMonthlyRecurring, debt.MonthlyInterest)
		p.AvgMonthlyRecurring = debt.MonthlyInterest
	}

	p.WeeklyCreditPattern = sanitizePattern(p.WeeklyCreditPattern, "weekly_credit_pattern", note)
	p.WeeklyDebitPattern = sanitizePattern(p.WeeklyDebitPattern, "weekly_debit_pattern", note)
	p.CreditMix = p.CreditMix.Normalized()
	p.DebitMix = p.DebitMix.Normalized()

	return p, issues
}

func sanitizePattern(pattern map[string]float64, name string, note func(string, ...any)) map[string]float64 {
	for d := time.Sunday; d <= time.Saturday; d++ {
		weekday := d.String()
		if v, ok := pattern[weekday]; ok && !validAmount(v) {
			note("%s[%s] invalid: falling back to the daily average", name, weekday)
			delete(pattern, weekday)
		}
	}
	return pattern
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
