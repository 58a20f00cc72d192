// Package report exports a forecast ledger as a CSV file and a plain-text summary.
package report

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Dan9191/cash-forecast/internal/models"
	"github.com/Dan9191/cash-forecast/internal/utils"
)

// Output file names inside <dir>/<start_date>/
const (
	LedgerFile   = "forecast_daily_90days.csv"
	SummaryFile  = "forecast_report.txt"
	SignatureExt = ".sig"

	dirPerm  = 0o755
	filePerm = 0o644
)

var ledgerHeader = []string{
	"Date",
	"Credit_EUR", "Debit_EUR", "Cumul_EUR",
	"Credit_USD", "Debit_USD", "Cumul_USD",
	"Credit_JPY", "Debit_JPY", "Cumul_JPY",
	"Credit_Total_EUR", "Debit_Total_EUR", "Cash_Flow_Net",
	"Cumul_Total_EUR", "Cumul_Net_EUR", "Risk_Level",
}

type output struct {
	name string
	data []byte
}

// Writer writes reports under a root directory
type Writer struct {
	dir        string
	signingKey string
}

// NewWriter creates a writer. A non-empty signingKey adds an HMAC signature next to the CSV.
func NewWriter(dir, signingKey string) *Writer {
	return &Writer{dir: dir, signingKey: signingKey}
}

// Write exports res and returns the paths written
func (w *Writer) Write(res *models.ForecastResult) ([]string, error) {
	dir := filepath.Join(w.dir, res.StartDate.Format(models.DateLayout))
	if res.Scenario != "" {
		dir = filepath.Join(dir, res.Scenario)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	ledger, err := LedgerCSV(res.Ledger)
	if err != nil {
		return nil, err
	}

	files := []output{
		{LedgerFile, ledger},
		{SummaryFile, []byte(Summary(res))},
	}
	if w.signingKey != "" {
		files = append(files, output{LedgerFile + SignatureExt, []byte(utils.GenerateHMAC(ledger, w.signingKey) + "\n")})
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, f.data, filePerm); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ErrNoSigningKey is returned when a signature check is requested without a key
var ErrNoSigningKey = errors.New("no report signing key configured")

// Verify checks a ledger CSV against the signature file written next to it
func Verify(ledgerPath, signingKey string) error {
	if signingKey == "" {
		return ErrNoSigningKey
	}
	ledger, err := os.ReadFile(ledgerPath)
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}
	sig, err := os.ReadFile(ledgerPath + SignatureExt)
	if err != nil {
		return fmt.Errorf("failed to read signature: %w", err)
	}
	if err := utils.VerifyHMAC(ledger, strings.TrimSpace(string(sig)), signingKey); err != nil {
		return fmt.Errorf("%s: %w", ledgerPath, err)
	}
	return nil
}

// LedgerCSV renders the ledger with amounts rounded to cents
func LedgerCSV(ledger []models.DailyLedgerEntry) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(ledgerHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for _, e := range ledger {
		row := []string{e.Date.Format(models.DateLayout)}
		for _, c := range models.TrackedCurrencies {
			f := e.Flows[c]
			row = append(row, cents(f.Credit), cents(f.Debit), cents(f.Cumulative))
		}
		row = append(row,
			cents(e.CreditTotalEUR), cents(e.DebitTotalEUR), cents(e.NetCashFlowEUR),
			cents(e.CumulativeTotalEUR), cents(e.NetVsDebtEUR), string(e.RiskTier),
		)
		if err := cw.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush ledger: %w", err)
	}
	return buf.Bytes(), nil
}

// Summary renders the plain-text report
func Summary(res *models.ForecastResult) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	title := "CASH FORECAST REPORT"
	if res.Scenario != "" {
		title += " (" + strings.ToUpper(res.Scenario) + ")"
	}
	line("%s", title)
	line("%s", strings.Repeat("=", len(title)))
	line("Period:            %s to %s (%d days)", res.StartDate.Format(models.DateLayout), res.EndDate.Format(models.DateLayout), len(res.Ledger))
	line("FX rates:          USD->EUR %s, JPY->EUR %s (%s)",
		decimal.NewFromFloat(res.FXRates.USDToEUR).StringFixed(4),
		decimal.NewFromFloat(res.FXRates.JPYToEUR).StringFixed(6),
		res.FXRates.Source)
	line("")
	line("Debt principal:    %s EUR", cents(res.DebtPrincipal))
	line("Opening cash:      %s EUR", cents(res.InitialTotalEUR))
	line("Opening net:       %s EUR", cents(res.InitialNetVsDebtEUR()))
	line("Closing cash:      %s EUR", cents(res.FinalTotalEUR))
	line("Closing net:       %s EUR", cents(res.FinalNetVsDebtEUR()))
	line("")
	line("RISK")
	for _, tier := range models.RiskTiers {
		line("  %-9s %d days", string(tier)+":", res.Summary.TierCounts[tier])
	}
	if !res.Summary.WorstDay.IsZero() {
		line("  Worst day: %s (%s EUR vs debt)", res.Summary.WorstDay.Format(models.DateLayout), cents(res.Summary.WorstNetVsDebtEUR))
	}
	if n := len(res.Summary.CriticalDays); n > 0 {
		line("  First critical day: %s", res.Summary.CriticalDays[0].Format(models.DateLayout))
	}
	line("")
	line("CONSISTENCY")
	status := "PASSED"
	if !res.Consistency.Passed {
		status = "FAILED"
	}
	line("  Audit: %s (max drift %s EUR, %d violations)", status, cents(res.Consistency.MaxDriftEUR), len(res.Consistency.Violations))
	line("  Conservation: expected %s, actual %s EUR", cents(res.Consistency.ExpectedFinalEUR), cents(res.Consistency.ActualFinalEUR))

	issues := res.Diagnostics.InputIssues
	stats := res.Diagnostics.Projection
	if len(issues) > 0 || stats.Dropped() > 0 {
		line("")
		line("DATA QUALITY")
		line("  Invoices projected: %d, settled: %d, dropped: %d", stats.Projected, stats.Settled, stats.Dropped())
		for _, issue := range issues {
			line("  - %s", issue)
		}
	}
	return b.String()
}

// cents rounds half away from zero to two decimals
func cents(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
