package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/Dan9191/cash-forecast/internal/config"
	"github.com/Dan9191/cash-forecast/internal/forecast"
	"github.com/Dan9191/cash-forecast/internal/loader"
	"github.com/Dan9191/cash-forecast/internal/metrics"
	"github.com/Dan9191/cash-forecast/internal/models"
	"github.com/Dan9191/cash-forecast/internal/stats"
)

// Run triggers
const (
	TriggerAPI  = "api"
	TriggerCron = "cron"
	TriggerCLI  = "cli"
)

const tokenTTL = 24 * time.Hour

// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password
var ErrInvalidCredentials = errors.New("invalid credentials")

// Store persists operators and forecast runs
type Store interface {
	CreateOperator(ctx context.Context, op *models.Operator) error
	FindOperatorByEmail(ctx context.Context, email string) (*models.Operator, error)
	SaveRuns(ctx context.Context, recs ...*models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error)
}

// RateSource returns the conversion rates of a run. It never fails.
type RateSource interface {
	Rates(ctx context.Context) models.FXRates
}

// DataSource reads the historical extracts
type DataSource interface {
	Load() (*loader.Dataset, error)
}

// Alerter notifies about runs with critical days
type Alerter interface {
	SendCriticalAlert(rec *models.RunRecord) error
}

// ReportWriter exports a run result
type ReportWriter interface {
	Write(res *models.ForecastResult) ([]string, error)
}

// Service handles business logic
type Service struct {
	store   Store
	rates   RateSource
	data    DataSource
	alerter Alerter
	reports ReportWriter
	engine  *forecast.Engine
	metrics *metrics.Metrics
	log     *logrus.Logger
	config  *config.Config
}

// Option customises a Service
type Option func(*Service)

// WithAlerter sends critical-day alerts after each persisted run
func WithAlerter(a Alerter) Option {
	return func(s *Service) { s.alerter = a }
}

// WithReports exports every persisted run
func WithReports(w ReportWriter) Option {
	return func(s *Service) { s.reports = w }
}

// WithEngine replaces the default seeded engine
func WithEngine(e *forecast.Engine) Option {
	return func(s *Service) { s.engine = e }
}

// NewService initializes a new service. store may be nil when only Forecast and CompareScenarios are used.
func NewService(store Store, rates RateSource, data DataSource, m *metrics.Metrics, log *logrus.Logger, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		store:   store,
		rates:   rates,
		data:    data,
		engine:  forecast.NewEngine(),
		metrics: m,
		log:     log,
		config:  cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new operator with hashed password
func (s *Service) Register(ctx context.Context, username, email, password string) (*models.Operator, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	op := &models.Operator{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashedPassword),
	}
	if err := s.store.CreateOperator(ctx, op); err != nil {
		return nil, err
	}

	s.log.Infof("Operator registered: %s", op.Email)
	return op, nil
}

// Login authenticates an operator and returns a JWT token
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	op, err := s.store.FindOperatorByEmail(ctx, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(op.ID, 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
	})
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Infof("Operator logged in: %s", op.Email)
	return tokenString, nil
}

// inputs is everything one run needs, gathered once
type inputs struct {
	cfg      models.RunConfig
	params   models.HistoricalParameters
	invoices []models.Invoice
	issues   []string
}

func (s *Service) prepare(ctx context.Context, start time.Time) (*inputs, error) {
	ds, err := s.data.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	rates := s.rates.Rates(ctx)
	debt := s.debtTerms()
	start = models.Day(start)

	hist := stats.NewProcessor(rates, debt).Compute(ds.Transactions, ds.Invoices, start)
	s.log.WithFields(logrus.Fields{
		"start":          start.Format(models.DateLayout),
		"fx_source":      rates.Source,
		"paid_sales":     hist.PaidSales,
		"paid_purchases": hist.PaidPurchases,
		"months":         hist.MonthsObserved,
	}).Info("Historical parameters computed")

	return &inputs{
		cfg: models.RunConfig{
			StartDate:           start,
			MaxForecastDate:     s.config.MaxForecastDate,
			HorizonDays:         s.config.HorizonDays,
			WarningThresholdEUR: s.config.WarningThresholdEUR,
			Debt:                debt,
			InitialBalance:      hist.OpeningBalance,
			FXRates:             rates,
		},
		params:   hist.Parameters,
		invoices: ds.Invoices,
		issues:   ds.Issues(),
	}, nil
}

// debtTerms derives the monthly interest unless the configuration fixes it
func (s *Service) debtTerms() models.DebtTerms {
	debt := models.NewDebtTerms(s.config.DebtPrincipal, s.config.Euribor3M, s.config.DebtSpread)
	if s.config.DebtMonthlyInterest > 0 {
		debt.MonthlyInterest = s.config.DebtMonthlyInterest
	}
	return debt
}

// Forecast computes the base forecast from start without storing it
func (s *Service) Forecast(ctx context.Context, start time.Time) (*models.ForecastResult, error) {
	in, err := s.prepare(ctx, start)
	if err != nil {
		s.metrics.IncrRun(forecast.ScenarioBase, "error")
		return nil, err
	}

	res, err := s.engine.Run(in.cfg, in.params, in.invoices)
	if err != nil {
		s.metrics.IncrRun(forecast.ScenarioBase, "invalid")
		return nil, fmt.Errorf("failed to run forecast: %w", err)
	}
	res.Scenario = forecast.ScenarioBase
	res.Diagnostics.InputIssues = append(res.Diagnostics.InputIssues, in.issues...)
	return res, nil
}

// RunForecast runs the base forecast from start, persists it and fans out alerts and reports
func (s *Service) RunForecast(ctx context.Context, start time.Time, trigger string) (*models.RunRecord, error) {
	began := time.Now()
	defer func() { s.metrics.RecordRunDuration(trigger, time.Since(began)) }()

	res, err := s.Forecast(ctx, start)
	if err != nil {
		return nil, err
	}

	recs, err := s.persist(ctx, trigger, res)
	if err != nil {
		return nil, err
	}
	s.notify(recs[0])
	return recs[0], nil
}

// ScenarioReport is the outcome of a scenario comparison
type ScenarioReport struct {
	StartDate  time.Time                     `json:"start_date"`
	Comparison []forecast.ScenarioComparison `json:"comparison"`
	RunIDs     map[string]string             `json:"run_ids,omitempty"`

	results map[string]*models.ForecastResult
}

// Result returns the full result of one scenario
func (r *ScenarioReport) Result(scenario string) *models.ForecastResult {
	return r.results[scenario]
}

// CompareScenarios computes the base, optimistic and pessimistic forecasts from start without storing them
func (s *Service) CompareScenarios(ctx context.Context, start time.Time) (*ScenarioReport, error) {
	in, err := s.prepare(ctx, start)
	if err != nil {
		return nil, err
	}

	scenarios := forecast.DefaultScenarios()
	results, err := s.engine.RunScenarios(ctx, in.cfg, in.params, in.invoices, scenarios)
	if err != nil {
		for _, sc := range scenarios {
			s.metrics.IncrRun(sc.Name, "invalid")
		}
		return nil, fmt.Errorf("failed to run scenarios: %w", err)
	}
	for _, res := range results {
		res.Diagnostics.InputIssues = append(res.Diagnostics.InputIssues, in.issues...)
	}

	return &ScenarioReport{
		StartDate:  models.Day(start),
		Comparison: forecast.Compare(results, scenarios),
		results:    results,
	}, nil
}

// RunScenarios runs and persists the base, optimistic and pessimistic forecasts from start.
// The runs are stored together and only the base run raises a critical alert.
func (s *Service) RunScenarios(ctx context.Context, start time.Time, trigger string) (*ScenarioReport, error) {
	began := time.Now()
	defer func() { s.metrics.RecordRunDuration(trigger, time.Since(began)) }()

	report, err := s.CompareScenarios(ctx, start)
	if err != nil {
		return nil, err
	}

	results := make([]*models.ForecastResult, 0, len(report.Comparison))
	for _, row := range report.Comparison {
		results = append(results, report.Result(row.Scenario))
	}
	recs, err := s.persist(ctx, trigger, results...)
	if err != nil {
		return nil, err
	}

	report.RunIDs = make(map[string]string, len(recs))
	for _, rec := range recs {
		report.RunIDs[rec.Result.Scenario] = rec.ID
		if rec.Result.Scenario == forecast.ScenarioBase {
			s.notify(rec)
		}
	}
	return report, nil
}

// persist stores results as one batch, then records metrics and writes reports for each run
func (s *Service) persist(ctx context.Context, trigger string, results ...*models.ForecastResult) ([]*models.RunRecord, error) {
	recs := make([]*models.RunRecord, len(results))
	for i, res := range results {
		recs[i] = &models.RunRecord{ID: uuid.NewString(), Trigger: trigger, Result: res}
	}
	if err := s.store.SaveRuns(ctx, recs...); err != nil {
		for _, res := range results {
			s.metrics.IncrRun(res.Scenario, "error")
		}
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	for _, rec := range recs {
		s.saved(rec)
	}
	return recs, nil
}

func (s *Service) saved(rec *models.RunRecord) {
	res, trigger := rec.Result, rec.Trigger
	s.metrics.IncrRun(res.Scenario, "success")
	s.metrics.SetCriticalDays(res.Scenario, len(res.Summary.CriticalDays))
	if !res.Consistency.Passed {
		s.metrics.IncrConsistencyFailure()
		s.log.WithField("run_id", rec.ID).Warnf("Ledger audit failed: %d violations, max drift %.6f EUR",
			len(res.Consistency.Violations), res.Consistency.MaxDriftEUR)
	}
	for _, issue := range res.Diagnostics.InputIssues {
		s.log.WithField("run_id", rec.ID).Warn(issue)
	}

	s.log.WithFields(logrus.Fields{
		"run_id":        rec.ID,
		"scenario":      res.Scenario,
		"trigger":       trigger,
		"days":          len(res.Ledger),
		"critical_days": len(res.Summary.CriticalDays),
		"final_eur":     res.FinalTotalEUR,
	}).Info("Forecast run saved")

	if s.reports != nil {
		if paths, err := s.reports.Write(res); err != nil {
			s.log.WithField("run_id", rec.ID).Errorf("Failed to write reports: %v", err)
		} else {
			s.log.WithField("run_id", rec.ID).Debugf("Reports written: %v", paths)
		}
	}
}

// notify alerts on critical days. Failures are logged only.
func (s *Service) notify(rec *models.RunRecord) {
	if s.alerter == nil || len(rec.Result.Summary.CriticalDays) == 0 {
		return
	}
	if err := s.alerter.SendCriticalAlert(rec); err != nil {
		s.log.WithField("run_id", rec.ID).Errorf("Failed to send critical alert: %v", err)
	}
}

// GetRun returns a stored run
func (s *Service) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	return s.store.GetRun(ctx, id)
}

// ListRuns returns the most recent runs
func (s *Service) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	return s.store.ListRuns(ctx, limit)
}

// CurrentRates returns the rates a run started now would use
func (s *Service) CurrentRates(ctx context.Context) models.FXRates {
	return s.rates.Rates(ctx)
}
