package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// ErrNotFound is returned when a run or operator does not exist
var ErrNotFound = errors.New("not found")

//go:embed schema.sql
var schema string

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Migrate creates the forecast schema when missing
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// CreateOperator creates a new operator in the database
func (r *Repository) CreateOperator(ctx context.Context, op *models.Operator) error {
	query := `
		INSERT INTO forecast.operators (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, query, op.Username, op.Email, op.PasswordHash).
		Scan(&op.ID, &op.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}
	return nil
}

// FindOperatorByEmail retrieves an operator by email
func (r *Repository) FindOperatorByEmail(ctx context.Context, email string) (*models.Operator, error) {
	op := &models.Operator{}
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM forecast.operators
		WHERE email = $1`
	err := r.db.QueryRowContext(ctx, query, email).
		Scan(&op.ID, &op.Username, &op.Email, &op.PasswordHash, &op.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("operator %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find operator: %w", err)
	}
	return op, nil
}

const insertRun = `
	INSERT INTO forecast.runs (
		id, scenario, trigger, start_date, end_date, usd_to_eur, jpy_to_eur, fx_source,
		debt_principal, initial_total_eur, final_total_eur, safe_days, warning_days, critical_days,
		worst_day, worst_net_vs_debt_eur, consistency_passed, max_drift_eur, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, CURRENT_TIMESTAMP)
	RETURNING created_at`

const insertEntry = `
	INSERT INTO forecast.ledger_entries (
		run_id, date, eur_credit, eur_debit, eur_cumulative, usd_credit, usd_debit, usd_cumulative,
		jpy_credit, jpy_debit, jpy_cumulative, credit_total_eur, debit_total_eur, net_cash_flow_eur,
		cumulative_total_eur, net_vs_debt_eur, risk_tier
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

// SaveRuns stores runs and their ledgers in one transaction. Either every run is saved or none is.
func (r *Repository) SaveRuns(ctx context.Context, recs ...*models.RunRecord) error {
	ids := make([]uuid.UUID, len(recs))
	for i, rec := range recs {
		id, err := uuid.Parse(rec.ID)
		if err != nil {
			return fmt.Errorf("invalid run id %q: %w", rec.ID, err)
		}
		ids[i] = id
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, rec := range recs {
		if err := saveRun(ctx, tx, ids[i], rec); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit runs: %w", err)
	}
	return nil
}

func saveRun(ctx context.Context, tx *sql.Tx, id uuid.UUID, rec *models.RunRecord) error {
	res := rec.Result

	var worstDay sql.NullTime
	if !res.Summary.WorstDay.IsZero() {
		worstDay = sql.NullTime{Time: res.Summary.WorstDay, Valid: true}
	}
	err := tx.QueryRowContext(ctx, insertRun,
		id, res.Scenario, rec.Trigger, res.StartDate, res.EndDate,
		res.FXRates.USDToEUR, res.FXRates.JPYToEUR, res.FXRates.Source,
		res.DebtPrincipal, res.InitialTotalEUR, res.FinalTotalEUR,
		res.Summary.TierCounts[models.RiskSafe], res.Summary.TierCounts[models.RiskWarning], res.Summary.TierCounts[models.RiskCritical],
		worstDay, res.Summary.WorstNetVsDebtEUR, res.Consistency.Passed, res.Consistency.MaxDriftEUR,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert %s run: %w", res.Scenario, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertEntry)
	if err != nil {
		return fmt.Errorf("failed to prepare ledger insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range res.Ledger {
		eur, usd, jpy := e.Flows[models.EUR], e.Flows[models.USD], e.Flows[models.JPY]
		_, err := stmt.ExecContext(ctx,
			id, e.Date,
			eur.Credit, eur.Debit, eur.Cumulative,
			usd.Credit, usd.Debit, usd.Cumulative,
			jpy.Credit, jpy.Debit, jpy.Cumulative,
			e.CreditTotalEUR, e.DebitTotalEUR, e.NetCashFlowEUR,
			e.CumulativeTotalEUR, e.NetVsDebtEUR, string(e.RiskTier),
		)
		if err != nil {
			return fmt.Errorf("failed to insert ledger entry %s: %w", e.Date.Format(models.DateLayout), err)
		}
	}
	return nil
}

// GetRun retrieves a stored run with its ledger
func (r *Repository) GetRun(ctx context.Context, runID string) (*models.RunRecord, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}

	res := &models.ForecastResult{
		Summary: models.RiskSummary{TierCounts: make(map[models.RiskTier]int, len(models.RiskTiers))},
	}
	rec := &models.RunRecord{ID: id.String(), Result: res}
	var (
		safe, warning, critical int
		worstDay                sql.NullTime
	)
	query := `
		SELECT scenario, trigger, start_date, end_date, usd_to_eur, jpy_to_eur, fx_source,
			debt_principal, initial_total_eur, final_total_eur, safe_days, warning_days, critical_days,
			worst_day, worst_net_vs_debt_eur, consistency_passed, max_drift_eur, created_at
		FROM forecast.runs
		WHERE id = $1`
	err = r.db.QueryRowContext(ctx, query, id).Scan(
		&res.Scenario, &rec.Trigger, &res.StartDate, &res.EndDate,
		&res.FXRates.USDToEUR, &res.FXRates.JPYToEUR, &res.FXRates.Source,
		&res.DebtPrincipal, &res.InitialTotalEUR, &res.FinalTotalEUR, &safe, &warning, &critical,
		&worstDay, &res.Summary.WorstNetVsDebtEUR, &res.Consistency.Passed, &res.Consistency.MaxDriftEUR, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find run: %w", err)
	}
	res.Summary.TierCounts[models.RiskSafe] = safe
	res.Summary.TierCounts[models.RiskWarning] = warning
	res.Summary.TierCounts[models.RiskCritical] = critical
	if worstDay.Valid {
		res.Summary.WorstDay = models.Day(worstDay.Time)
	}

	if res.Ledger, err = r.ledger(ctx, id); err != nil {
		return nil, err
	}
	for _, e := range res.Ledger {
		if e.NetVsDebtEUR < 0 {
			res.Summary.NegativeDays = append(res.Summary.NegativeDays, e.Date)
		}
		if e.RiskTier == models.RiskCritical {
			res.Summary.CriticalDays = append(res.Summary.CriticalDays, e.Date)
		}
	}
	return rec, nil
}

func (r *Repository) ledger(ctx context.Context, id uuid.UUID) ([]models.DailyLedgerEntry, error) {
	query := `
		SELECT date, eur_credit, eur_debit, eur_cumulative, usd_credit, usd_debit, usd_cumulative,
			jpy_credit, jpy_debit, jpy_cumulative, credit_total_eur, debit_total_eur, net_cash_flow_eur,
			cumulative_total_eur, net_vs_debt_eur, risk_tier
		FROM forecast.ledger_entries
		WHERE run_id = $1
		ORDER BY date`
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var ledger []models.DailyLedgerEntry
	for rows.Next() {
		var (
			e             models.DailyLedgerEntry
			eur, usd, jpy models.CurrencyFlow
			date          time.Time
			tier          string
		)
		if err := rows.Scan(&date,
			&eur.Credit, &eur.Debit, &eur.Cumulative,
			&usd.Credit, &usd.Debit, &usd.Cumulative,
			&jpy.Credit, &jpy.Debit, &jpy.Cumulative,
			&e.CreditTotalEUR, &e.DebitTotalEUR, &e.NetCashFlowEUR,
			&e.CumulativeTotalEUR, &e.NetVsDebtEUR, &tier,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		for _, f := range []*models.CurrencyFlow{&eur, &usd, &jpy} {
			f.Net = f.Credit - f.Debit
		}
		e.Date = models.Day(date)
		e.RiskTier = models.RiskTier(tier)
		e.Flows = map[models.Currency]models.CurrencyFlow{models.EUR: eur, models.USD: usd, models.JPY: jpy}
		ledger = append(ledger, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return ledger, nil
}

// ListRuns returns the most recent runs, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	query := `
		SELECT id, scenario, trigger, start_date, end_date, final_total_eur, critical_days, consistency_passed, created_at
		FROM forecast.runs
		ORDER BY created_at DESC
		LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.RunSummary{}
	for rows.Next() {
		var s models.RunSummary
		if err := rows.Scan(&s.ID, &s.Scenario, &s.Trigger, &s.StartDate, &s.EndDate,
			&s.FinalTotalEUR, &s.CriticalDays, &s.ConsistencyPassed, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}
