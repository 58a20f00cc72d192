package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dan9191/cash-forecast/internal/models"
	"github.com/Dan9191/cash-forecast/internal/service"
)

// ForecastRunner runs and stores a base forecast
type ForecastRunner interface {
	RunForecast(ctx context.Context, start time.Time, trigger string) (*models.RunRecord, error)
}

// DailyForecastJob re-runs the base forecast from today
type DailyForecastJob struct {
	runner  ForecastRunner
	timeout time.Duration
	log     *logrus.Entry
	now     func() time.Time
}

// NewDailyForecastJob creates the job. timeout bounds one run, zero means no limit.
func NewDailyForecastJob(runner ForecastRunner, timeout time.Duration, log *logrus.Logger) *DailyForecastJob {
	return &DailyForecastJob{
		runner:  runner,
		timeout: timeout,
		log:     log.WithField("job", "daily_forecast"),
		now:     time.Now,
	}
}

// Name returns the job name
func (j *DailyForecastJob) Name() string {
	return "daily_forecast"
}

// Run executes the forecast for the current day
func (j *DailyForecastJob) Run() error {
	ctx := context.Background()
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	start := models.Day(j.now())
	rec, err := j.runner.RunForecast(ctx, start, service.TriggerCron)
	if err != nil {
		return err
	}

	j.log.WithFields(logrus.Fields{
		"run_id":        rec.ID,
		"start":         start.Format(models.DateLayout),
		"critical_days": len(rec.Result.Summary.CriticalDays),
	}).Info("Scheduled forecast completed")
	return nil
}
