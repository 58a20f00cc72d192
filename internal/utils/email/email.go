package email

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/cash-forecast/internal/config"
	"github.com/Dan9191/cash-forecast/internal/models"
)

// maxListedDays caps how many critical dates are spelled out in one alert
const maxListedDays = 10

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// SendCriticalAlert notifies the treasury recipients that a run projected critical days
func (s *Sender) SendCriticalAlert(rec *models.RunRecord) error {
	if len(s.cfg.AlertRecipients) == 0 {
		return nil
	}

	e := composeCriticalAlert(s.cfg.SenderEmail, s.cfg.AlertRecipients, rec)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send critical alert for run %s: %v", rec.ID, err)
		return fmt.Errorf("failed to send critical alert: %w", err)
	}

	s.logger.Infof("Critical alert sent to %s: %s", strings.Join(e.To, ", "), e.Subject)
	return nil
}

func composeCriticalAlert(from string, to []string, rec *models.RunRecord) *email.Email {
	res := rec.Result
	days := res.Summary.CriticalDays

	e := email.NewEmail()
	e.From = from
	e.To = append([]string(nil), to...)
	e.Subject = fmt.Sprintf("Cash forecast alert: %d critical days from %s", len(days), res.StartDate.Format(models.DateLayout))

	body := "Hello,\n\n"
	body += fmt.Sprintf(
		"Forecast run %s (%s) projects a Critical cash position on %d of %d days.\n"+
			"Period: %s to %s\n"+
			"Worst day: %s, %.2f EUR against the debt principal\n"+
			"Closing cash: %.2f EUR\n"+
			"Days by tier: %d Safe, %d Warning, %d Critical\n\n",
		rec.ID, rec.Trigger, len(days), len(res.Ledger),
		res.StartDate.Format(models.DateLayout), res.EndDate.Format(models.DateLayout),
		res.Summary.WorstDay.Format(models.DateLayout), res.Summary.WorstNetVsDebtEUR,
		res.FinalTotalEUR,
		res.Summary.TierCounts[models.RiskSafe], res.Summary.TierCounts[models.RiskWarning], res.Summary.TierCounts[models.RiskCritical],
	)
	body += "Critical days:\n"
	for i, d := range days {
		if i == maxListedDays {
			body += fmt.Sprintf("  ... and %d more\n", len(days)-maxListedDays)
			break
		}
		body += "  " + d.Format(models.DateLayout) + "\n"
	}
	body += "\nBest regards,\nCash Forecast Service"
	e.Text = []byte(body)
	return e
}
