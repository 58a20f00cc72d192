package email

import (
	"errors"
	"io"
	"net/smtp"
	"testing"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/cash-forecast/internal/config"
	"github.com/Dan9191/cash-forecast/internal/models"
)

func criticalRun(n int) *models.RunRecord {
	start := models.Date(2025, 1, 1)
	days := make([]time.Time, n)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return &models.RunRecord{
		ID:      "run-1",
		Trigger: "cron",
		Result: &models.ForecastResult{
			StartDate: start,
			EndDate:   start.AddDate(0, 0, 90),
			Ledger:    make([]models.DailyLedgerEntry, 91),
			Summary: models.RiskSummary{
				CriticalDays:      days,
				WorstDay:          start,
				WorstNetVsDebtEUR: -1_250_000,
			},
		},
	}
}

func testSender(cfg *config.Config) (*Sender, *[]*email.Email) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewSender(cfg, logger)
	var sent []*email.Email
	s.send = func(e *email.Email, _ string, _ smtp.Auth) error {
		sent = append(sent, e)
		return nil
	}
	return s, &sent
}

func TestComposeCriticalAlert(t *testing.T) {
	e := composeCriticalAlert("from@x", []string{"a@x"}, criticalRun(12))

	assert.Equal(t, "Cash forecast alert: 12 critical days from 2025-01-01", e.Subject)
	body := string(e.Text)
	assert.Contains(t, body, "on 12 of 91 days")
	assert.Contains(t, body, "-1250000.00 EUR")
	assert.Contains(t, body, "2025-01-10")
	assert.NotContains(t, body, "2025-01-11")
	assert.Contains(t, body, "... and 2 more")
	assert.Contains(t, body, "Days by tier: 0 Safe, 0 Warning, 0 Critical")
}

func TestSendCriticalAlert(t *testing.T) {
	cfg := &config.Config{SMTPHost: "smtp.local", SMTPPort: "25", SenderEmail: "from@x", AlertRecipients: []string{"a@x", "b@x"}}
	s, sent := testSender(cfg)

	require.NoError(t, s.SendCriticalAlert(criticalRun(1)))
	require.Len(t, *sent, 1)
	assert.Equal(t, []string{"a@x", "b@x"}, (*sent)[0].To)
}

func TestSendCriticalAlert_NoRecipients(t *testing.T) {
	s, sent := testSender(&config.Config{SMTPHost: "smtp.local"})

	require.NoError(t, s.SendCriticalAlert(criticalRun(1)))
	assert.Empty(t, *sent)
}

func TestSendCriticalAlert_Failure(t *testing.T) {
	cfg := &config.Config{SMTPHost: "smtp.local", AlertRecipients: []string{"a@x"}}
	s, _ := testSender(cfg)
	s.send = func(*email.Email, string, smtp.Auth) error { return errors.New("connection refused") }

	err := s.SendCriticalAlert(criticalRun(1))
	assert.ErrorContains(t, err, "failed to send critical alert")
}
