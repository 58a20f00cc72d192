package forecast

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// Scenario names
const (
	ScenarioBase        = "base"
	ScenarioOptimistic  = "optimistic"
	ScenarioPessimistic = "pessimistic"
)

// Scenario perturbs private copies of the run inputs
type Scenario struct {
	Name   string
	Adjust func(cfg *models.RunConfig, params *models.HistoricalParameters)
}

// Shock sizes applied by the optimistic and pessimistic scenarios
const (
	rateShock      = 0.01
	fxShock        = 0.05
	volumeShock    = 0.10
	inflationShock = 0.005
	paymentShift   = 5.0
)

// DefaultScenarios returns the base, optimistic and pessimistic cases
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Name: ScenarioBase},
		{Name: ScenarioOptimistic, Adjust: shock(-1)},
		{Name: ScenarioPessimistic, Adjust: shock(+1)},
	}
}

// shock builds the stress adjustment. direction +1 is adverse, -1 favourable.
func shock(direction float64) func(*models.RunConfig, *models.HistoricalParameters) {
	return func(cfg *models.RunConfig, params *models.HistoricalParameters) {
		// interest moves by the applied rate change from its current value, which may be a configured override
		oldInterest := cfg.Debt.MonthlyInterest
		shifted := cfg.Debt.ShiftEuribor(direction * rateShock)
		applied := shifted.Euribor3M - cfg.Debt.Euribor3M
		shifted.MonthlyInterest = nonNegative(oldInterest + cfg.Debt.Principal*applied/12)
		cfg.Debt = shifted
		params.AvgMonthlyRecurring += cfg.Debt.MonthlyInterest - oldInterest

		cfg.FXRates.USDToEUR *= 1 - direction*fxShock
		cfg.FXRates.JPYToEUR *= 1 - direction*fxShock

		volume := 1 - direction*volumeShock
		params.AvgDailyCredit *= volume
		params.AvgDailyDebit *= volume
		params.StdDailyCredit *= volume
		params.StdDailyDebit *= volume
		scalePattern(params.WeeklyCreditPattern, volume)
		scalePattern(params.WeeklyDebitPattern, volume)

		params.InflationRate = nonNegative(params.InflationRate + direction*inflationShock)
		params.DSOMean = nonNegative(params.DSOMean + direction*paymentShift)
		params.DPOMean = nonNegative(params.DPOMean - direction*paymentShift)
	}
}

func scalePattern(pattern map[string]float64, factor float64) {
	for k := range pattern {
		pattern[k] *= factor
	}
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// RunScenarios runs every scenario concurrently, each on its own copy of the inputs.
// Any configuration failure fails the whole comparison.
func (e *Engine) RunScenarios(ctx context.Context, cfg models.RunConfig, params models.HistoricalParameters, invoices []models.Invoice, scenarios []Scenario) (map[string]*models.ForecastResult, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]*models.ForecastResult, len(scenarios))
	)
	g, ctx := errgroup.WithContext(ctx)

	for _, sc := range scenarios {
		runCfg := cfg.Clone()
		runParams := params.Clone()
		runInvoices := append([]models.Invoice(nil), invoices...)

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if sc.Adjust != nil {
				sc.Adjust(&runCfg, &runParams)
			}
			res, err := e.Run(runCfg, runParams, runInvoices)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.Name, err)
			}
			res.Scenario = sc.Name

			mu.Lock()
			results[sc.Name] = res
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ScenarioComparison is one row of a scenario side-by-side
type ScenarioComparison struct {
	Scenario          string                  `json:"scenario"`
	FinalTotalEUR     float64                 `json:"final_total_eur"`
	FinalNetVsDebtEUR float64                 `json:"final_net_vs_debt_eur"`
	WorstDay          string                  `json:"worst_day"`
	WorstNetVsDebtEUR float64                 `json:"worst_net_vs_debt_eur"`
	TierCounts        map[models.RiskTier]int `json:"tier_counts"`
}

// Compare orders scenario results as given by scenarios
func Compare(results map[string]*models.ForecastResult, scenarios []Scenario) []ScenarioComparison {
	rows := make([]ScenarioComparison, 0, len(results))
	for _, sc := range scenarios {
		res, ok := results[sc.Name]
		if !ok {
			continue
		}
		rows = append(rows, ScenarioComparison{
			Scenario:          sc.Name,
			FinalTotalEUR:     res.FinalTotalEUR,
			FinalNetVsDebtEUR: res.FinalNetVsDebtEUR(),
			WorstDay:          res.Summary.WorstDay.Format(models.DateLayout),
			WorstNetVsDebtEUR: res.Summary.WorstNetVsDebtEUR,
			TierCounts:        res.Summary.TierCounts,
		})
	}
	return rows
}
