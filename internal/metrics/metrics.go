// Package metrics exposes forecast run and rate-source metrics on a private Prometheus registry.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics of the service
type Metrics struct {
	// Registry owns these metrics and backs the /metrics endpoint
	Registry *prometheus.Registry

	runsTotal        *prometheus.CounterVec
	runDuration      *prometheus.HistogramVec
	rateSources      *prometheus.CounterVec
	externalErrors   *prometheus.CounterVec
	consistencyFails prometheus.Counter
	criticalDays     *prometheus.GaugeVec
}

// NewMetrics creates a dedicated registry so repeated construction in tests never collides
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_runs_total",
				Help: "Forecast runs by scenario and outcome.",
			},
			[]string{"scenario", "outcome"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "forecast_run_duration_seconds",
				Help:    "Duration of forecast runs including loading and persistence.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"trigger"},
		),
		rateSources: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_fx_source_total",
				Help: "FX rate lookups by the source that served them.",
			},
			[]string{"source"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "forecast_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		consistencyFails: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "forecast_consistency_failures_total",
				Help: "Runs whose ledger failed the consistency audit.",
			},
		),
		criticalDays: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "forecast_critical_days",
				Help: "Critical days in the latest run per scenario.",
			},
			[]string{"scenario"},
		),
	}
}

// IncrRun counts a finished run
func (m *Metrics) IncrRun(scenario, outcome string) {
	m.runsTotal.WithLabelValues(scenario, outcome).Inc()
}

// RecordRunDuration records how long a run took
func (m *Metrics) RecordRunDuration(trigger string, d time.Duration) {
	m.runDuration.WithLabelValues(trigger).Observe(d.Seconds())
}

// ObserveRateSource counts the source that served a rate lookup
func (m *Metrics) ObserveRateSource(source string) {
	m.rateSources.WithLabelValues(source).Inc()
}

// IncrExternalError increments the external error counter
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrConsistencyFailure counts a ledger that failed its audit
func (m *Metrics) IncrConsistencyFailure() {
	m.consistencyFails.Inc()
}

// SetCriticalDays records the critical-day count of the latest run
func (m *Metrics) SetCriticalDays(scenario string, n int) {
	m.criticalDays.WithLabelValues(scenario).Set(float64(n))
}

// runCount returns the cumulative number of runs with the given labels
func (m *Metrics) runCount(scenario, outcome string) float64 {
	return getCounterValue(m.runsTotal, scenario, outcome)
}

// getCounterValue extracts the current value of one labelled counter
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
