package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/cash-forecast/internal/config"
	"github.com/Dan9191/cash-forecast/internal/forecast"
	"github.com/Dan9191/cash-forecast/internal/loader"
	"github.com/Dan9191/cash-forecast/internal/metrics"
	"github.com/Dan9191/cash-forecast/internal/models"
	"github.com/Dan9191/cash-forecast/internal/repository"
)

type fakeStore struct {
	mu        sync.Mutex
	operators map[string]*models.Operator
	runs      map[string]*models.RunRecord
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{operators: map[string]*models.Operator{}, runs: map[string]*models.RunRecord{}}
}

func (f *fakeStore) CreateOperator(_ context.Context, op *models.Operator) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	op.ID = int64(len(f.operators) + 1)
	f.operators[op.Email] = op
	return nil
}

func (f *fakeStore) FindOperatorByEmail(_ context.Context, email string) (*models.Operator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	op, ok := f.operators[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return op, nil
}

func (f *fakeStore) SaveRuns(_ context.Context, recs ...*models.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	for _, rec := range recs {
		rec.CreatedAt = time.Now()
		f.runs[rec.ID] = rec
	}
	return nil
}

func (f *fakeStore) GetRun(_ context.Context, id string) (*models.RunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.runs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) ListRuns(context.Context, int) ([]models.RunSummary, error) {
	return nil, nil
}

type fixedRates struct{}

func (fixedRates) Rates(context.Context) models.FXRates {
	return models.FXRates{USDToEUR: 0.92, JPYToEUR: 0.0065, Source: "test"}
}

type staticData struct {
	ds  *loader.Dataset
	err error
}

func (s staticData) Load() (*loader.Dataset, error) { return s.ds, s.err }

type recordingAlerter struct{ sent []*models.RunRecord }

func (a *recordingAlerter) SendCriticalAlert(rec *models.RunRecord) error {
	a.sent = append(a.sent, rec)
	return nil
}

type recordingReports struct{ written []*models.ForecastResult }

func (r *recordingReports) Write(res *models.ForecastResult) ([]string, error) {
	r.written = append(r.written, res)
	return []string{"report.csv"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:           "secret",
		MaxForecastDate:     models.Date(2025, 3, 31),
		HorizonDays:         90,
		WarningThresholdEUR: 100_000,
		DebtPrincipal:       20_000_000,
		Euribor3M:           0.035,
		DebtSpread:          0.012,
	}
}

// history with a single day of movements before the forecast start
func history(credit, debit float64) *loader.Dataset {
	day := models.Date(2024, 12, 2)
	ds := &loader.Dataset{
		Files: []loader.FileStats{{File: loader.SalesFile, Rows: 10, Loaded: 8, Dropped: 2}},
	}
	if credit > 0 {
		ds.Transactions = append(ds.Transactions, models.BankTransaction{Date: day, Type: models.FlowCredit, Amount: credit, Currency: models.EUR, Category: "Customer Payment"})
	}
	if debit > 0 {
		ds.Transactions = append(ds.Transactions, models.BankTransaction{Date: day, Type: models.FlowDebit, Amount: debit, Currency: models.EUR, Category: "Supplier Payment"})
	}
	return ds
}

type fixture struct {
	svc     *Service
	store   *fakeStore
	alerter *recordingAlerter
	reports *recordingReports
	metrics *metrics.Metrics
}

func newFixture(ds *loader.Dataset) *fixture {
	log := logrus.New()
	log.SetOutput(io.Discard)

	f := &fixture{
		store:   newFakeStore(),
		alerter: &recordingAlerter{},
		reports: &recordingReports{},
		metrics: metrics.NewMetrics(),
	}
	f.svc = NewService(f.store, fixedRates{}, staticData{ds: ds}, f.metrics, log, testConfig(),
		WithAlerter(f.alerter),
		WithReports(f.reports),
		WithEngine(forecast.NewEngine(forecast.WithNoise(forecast.NoNoise{}))),
	)
	return f
}

func TestService_RegisterAndLogin(t *testing.T) {
	f := newFixture(history(0, 0))
	ctx := context.Background()

	op, err := f.svc.Register(ctx, "treasurer", "t@corp.example", "s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", op.PasswordHash)

	token, err := f.svc.Login(ctx, "t@corp.example", "s3cret")
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return []byte("secret"), nil })
	require.NoError(t, err)
	assert.Equal(t, "1", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(tokenTTL), claims.ExpiresAt.Time, time.Minute)

	_, err = f.svc.Login(ctx, "t@corp.example", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "nobody@corp.example", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestService_RunForecast_Safe(t *testing.T) {
	f := newFixture(history(25_000_000, 0))

	rec, err := f.svc.RunForecast(context.Background(), models.Date(2025, 1, 1), TriggerAPI)
	require.NoError(t, err)

	res := rec.Result
	assert.Equal(t, forecast.ScenarioBase, res.Scenario)
	assert.Len(t, res.Ledger, 90)
	assert.Equal(t, 25_000_000.0, res.InitialTotalEUR)
	assert.Empty(t, res.Summary.CriticalDays)
	assert.True(t, res.Consistency.Passed)
	assert.Contains(t, res.Diagnostics.InputIssues, "sales_invoices.csv: 2 of 10 rows dropped as malformed")

	stored, err := f.svc.GetRun(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Same(t, rec, stored)
	assert.Equal(t, TriggerAPI, stored.Trigger)

	assert.Empty(t, f.alerter.sent)
	assert.Len(t, f.reports.written, 1)
	assertBaseRuns(t, f.metrics, "success")
}

func TestService_RunForecast_CriticalSendsAlert(t *testing.T) {
	f := newFixture(history(1_000_000, 5_000_000))

	rec, err := f.svc.RunForecast(context.Background(), models.Date(2025, 1, 1), TriggerCron)
	require.NoError(t, err)

	assert.Equal(t, -4_000_000.0, rec.Result.InitialTotalEUR)
	assert.Len(t, rec.Result.Summary.CriticalDays, len(rec.Result.Ledger))
	require.Len(t, f.alerter.sent, 1)
	assert.Equal(t, rec.ID, f.alerter.sent[0].ID)
}

func TestService_RunForecast_InvalidWindow(t *testing.T) {
	f := newFixture(history(0, 0))

	_, err := f.svc.RunForecast(context.Background(), models.Date(2025, 6, 1), TriggerAPI)
	assert.ErrorIs(t, err, forecast.ErrInvalidConfig)
	assert.Empty(t, f.store.runs)
	assertBaseRuns(t, f.metrics, "invalid")
}

func TestService_RunForecast_LoadFailure(t *testing.T) {
	f := newFixture(nil)
	f.svc.data = staticData{err: loader.ErrMissingColumn}

	_, err := f.svc.RunForecast(context.Background(), models.Date(2025, 1, 1), TriggerAPI)
	assert.ErrorIs(t, err, loader.ErrMissingColumn)
	assertBaseRuns(t, f.metrics, "error")
}

func TestService_RunForecast_SaveFailure(t *testing.T) {
	f := newFixture(history(1_000_000, 5_000_000))
	f.store.saveErr = errors.New("connection reset")

	_, err := f.svc.RunForecast(context.Background(), models.Date(2025, 1, 1), TriggerAPI)
	assert.ErrorContains(t, err, "failed to save run")
	assert.Empty(t, f.alerter.sent)
	assert.Empty(t, f.reports.written)
}

func TestService_RunScenarios(t *testing.T) {
	f := newFixture(history(25_000_000, 0))

	report, err := f.svc.RunScenarios(context.Background(), models.Date(2025, 1, 1), TriggerAPI)
	require.NoError(t, err)

	require.Len(t, report.Comparison, 3)
	assert.Equal(t, forecast.ScenarioBase, report.Comparison[0].Scenario)
	assert.Equal(t, forecast.ScenarioOptimistic, report.Comparison[1].Scenario)
	assert.Equal(t, forecast.ScenarioPessimistic, report.Comparison[2].Scenario)
	assert.Greater(t, report.Comparison[1].FinalTotalEUR, report.Comparison[2].FinalTotalEUR)

	assert.Len(t, report.RunIDs, 3)
	assert.Len(t, f.store.runs, 3)
	for name, id := range report.RunIDs {
		assert.Equal(t, name, f.store.runs[id].Result.Scenario)
	}
	assert.Len(t, f.reports.written, 3)
	assert.Empty(t, f.alerter.sent)
}

func TestService_RunScenarios_AlertsOnBaseOnly(t *testing.T) {
	f := newFixture(history(1_000_000, 5_000_000))

	report, err := f.svc.RunScenarios(context.Background(), models.Date(2025, 1, 1), TriggerCron)
	require.NoError(t, err)

	for _, row := range report.Comparison {
		require.NotZero(t, row.TierCounts[models.RiskCritical], row.Scenario)
	}
	require.Len(t, f.alerter.sent, 1)
	assert.Equal(t, report.RunIDs[forecast.ScenarioBase], f.alerter.sent[0].ID)
	assert.Equal(t, forecast.ScenarioBase, f.alerter.sent[0].Result.Scenario)
}

func TestService_RunScenarios_SaveFailureStoresNothing(t *testing.T) {
	f := newFixture(history(1_000_000, 5_000_000))
	f.store.saveErr = errors.New("connection reset")

	_, err := f.svc.RunScenarios(context.Background(), models.Date(2025, 1, 1), TriggerAPI)
	assert.ErrorContains(t, err, "failed to save run")
	assert.Empty(t, f.store.runs)
	assert.Empty(t, f.alerter.sent)
	assert.Empty(t, f.reports.written)

	expected := `
# HELP forecast_runs_total Forecast runs by scenario and outcome.
# TYPE forecast_runs_total counter
forecast_runs_total{outcome="error",scenario="base"} 1
forecast_runs_total{outcome="error",scenario="optimistic"} 1
forecast_runs_total{outcome="error",scenario="pessimistic"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(f.metrics.Registry, strings.NewReader(expected), "forecast_runs_total"))
}

func TestService_DebtTermsOverride(t *testing.T) {
	f := newFixture(history(0, 0))
	assert.InDelta(t, 78_333.33, f.svc.debtTerms().MonthlyInterest, 0.01)

	f.svc.config.DebtMonthlyInterest = 50_000
	assert.Equal(t, 50_000.0, f.svc.debtTerms().MonthlyInterest)
}

func TestService_ForecastDoesNotPersist(t *testing.T) {
	f := newFixture(history(1_000_000, 5_000_000))

	res, err := f.svc.Forecast(context.Background(), models.Date(2025, 1, 1))
	require.NoError(t, err)
	assert.NotEmpty(t, res.Summary.CriticalDays)
	assert.Empty(t, f.store.runs)
	assert.Empty(t, f.alerter.sent)
	assert.Empty(t, f.reports.written)
}

func TestService_CompareScenarios(t *testing.T) {
	f := newFixture(history(25_000_000, 0))

	report, err := f.svc.CompareScenarios(context.Background(), models.Date(2025, 1, 1))
	require.NoError(t, err)
	assert.Nil(t, report.RunIDs)
	assert.Empty(t, f.store.runs)

	pessimistic := report.Result(forecast.ScenarioPessimistic)
	require.NotNil(t, pessimistic)
	assert.Equal(t, forecast.ScenarioPessimistic, pessimistic.Scenario)
	assert.Contains(t, pessimistic.Diagnostics.InputIssues, "sales_invoices.csv: 2 of 10 rows dropped as malformed")
	assert.Nil(t, report.Result("unknown"))
}

// assertBaseRuns expects exactly one base run with the given outcome
func assertBaseRuns(t *testing.T, m *metrics.Metrics, outcome string) {
	t.Helper()
	expected := fmt.Sprintf(`
# HELP forecast_runs_total Forecast runs by scenario and outcome.
# TYPE forecast_runs_total counter
forecast_runs_total{outcome=%q,scenario="base"} 1
`, outcome)
	assert.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "forecast_runs_total"))
}
