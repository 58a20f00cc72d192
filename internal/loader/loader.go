// Package loader reads the treasury CSV extracts: bank movements and the sales and purchase invoice books.
package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/cash-forecast/internal/models"
)

// Extract file names expected in the data directory
const (
	BankFile     = "bank_transactions.csv"
	SalesFile    = "sales_invoices.csv"
	PurchaseFile = "purchase_invoices.csv"
)

// ErrMissingColumn is returned when a file lacks a required header
var ErrMissingColumn = errors.New("missing required column")

var dateLayouts = []string{models.DateLayout, "2006-01-02 15:04:05", time.RFC3339}

// FileStats counts rows read from one file
type FileStats struct {
	File    string `json:"file"`
	Rows    int    `json:"rows"`
	Loaded  int    `json:"loaded"`
	Dropped int    `json:"dropped"`
}

// Dataset is the full history handed to the statistics and the engine
type Dataset struct {
	Transactions []models.BankTransaction `json:"-"`
	Invoices     []models.Invoice         `json:"-"`
	Files        []FileStats              `json:"files"`
}

// Issues describes files that had rows dropped
func (d *Dataset) Issues() []string {
	var issues []string
	for _, f := range d.Files {
		if f.Dropped > 0 {
			issues = append(issues, fmt.Sprintf("%s: %d of %d rows dropped as malformed", f.File, f.Dropped, f.Rows))
		}
	}
	return issues
}

// Loader reads extracts from a directory
type Loader struct {
	dir string
	log *logrus.Logger
}

// NewLoader creates a loader for dir
func NewLoader(dir string, log *logrus.Logger) *Loader {
	return &Loader{dir: dir, log: log}
}

// Load reads all three extracts
func (l *Loader) Load() (*Dataset, error) {
	ds := &Dataset{}

	transactions, stats, err := readFile(l.dir, BankFile, ReadTransactions)
	if err != nil {
		return nil, err
	}
	ds.Transactions = transactions
	ds.Files = append(ds.Files, stats)

	books := []struct {
		file      string
		direction models.Direction
	}{
		{SalesFile, models.Receivable},
		{PurchaseFile, models.Payable},
	}
	for _, book := range books {
		invoices, stats, err := readFile(l.dir, book.file, func(r io.Reader) ([]models.Invoice, FileStats, error) {
			return ReadInvoices(r, book.direction)
		})
		if err != nil {
			return nil, err
		}
		ds.Invoices = append(ds.Invoices, invoices...)
		ds.Files = append(ds.Files, stats)
	}

	for _, f := range ds.Files {
		entry := l.log.WithFields(logrus.Fields{"file": f.File, "rows": f.Rows, "loaded": f.Loaded})
		if f.Dropped > 0 {
			entry.Warnf("Dropped %d malformed rows", f.Dropped)
		} else {
			entry.Info("Loaded extract")
		}
	}
	return ds, nil
}

func readFile[T any](dir, name string, read func(io.Reader) ([]T, FileStats, error)) ([]T, FileStats, error) {
	path := filepath.Join(dir, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, FileStats{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, stats, err := read(f)
	if err != nil {
		return nil, FileStats{}, fmt.Errorf("failed to load %s: %w", name, err)
	}
	stats.File = name
	return records, stats, nil
}

// ReadTransactions parses a bank extract with columns date, type, amount, currency and optional category.
// Amounts are stored as absolute values; the type gives the direction.
func ReadTransactions(r io.Reader) ([]models.BankTransaction, FileStats, error) {
	var stats FileStats
	rows, err := newTable(r, "date", "type", "amount", "currency")
	if err != nil {
		return nil, stats, err
	}

	var out []models.BankTransaction
	for rows.next() {
		stats.Rows++
		tx, ok := parseTransaction(rows)
		if !ok {
			stats.Dropped++
			continue
		}
		out = append(out, tx)
		stats.Loaded++
	}
	return out, stats, rows.err
}

func parseTransaction(row *table) (models.BankTransaction, bool) {
	date, ok := parseDate(row.get("date"))
	if !ok || date == nil {
		return models.BankTransaction{}, false
	}
	amount, ok := parseAmount(row.get("amount"))
	if !ok || amount == nil {
		return models.BankTransaction{}, false
	}
	currency, ok := models.ParseCurrency(row.get("currency"))
	if !ok {
		return models.BankTransaction{}, false
	}

	var flow models.FlowType
	switch models.FlowType(strings.ToLower(row.get("type"))) {
	case models.FlowCredit:
		flow = models.FlowCredit
	case models.FlowDebit:
		flow = models.FlowDebit
	default:
		return models.BankTransaction{}, false
	}

	return models.BankTransaction{
		Date:     *date,
		Type:     flow,
		Amount:   math.Abs(*amount),
		Currency: currency,
		Category: row.get("category"),
	}, true
}

// ReadInvoices parses an invoice book. Amounts keep their sign so credit notes stay negative.
// Empty due dates and amounts are kept as unknown; unparsable values or statuses drop the row.
func ReadInvoices(r io.Reader, direction models.Direction) ([]models.Invoice, FileStats, error) {
	var stats FileStats
	rows, err := newTable(r, "due_date", "amount", "currency", "status")
	if err != nil {
		return nil, stats, err
	}

	var out []models.Invoice
	for rows.next() {
		stats.Rows++
		inv, ok := parseInvoice(rows, direction)
		if !ok {
			stats.Dropped++
			continue
		}
		out = append(out, inv)
		stats.Loaded++
	}
	return out, stats, rows.err
}

func parseInvoice(row *table, direction models.Direction) (models.Invoice, bool) {
	status, ok := models.ParseInvoiceStatus(row.get("status"))
	if !ok {
		return models.Invoice{}, false
	}
	issue, ok := parseDate(row.get("issue_date"))
	if !ok {
		return models.Invoice{}, false
	}
	due, ok := parseDate(row.get("due_date"))
	if !ok {
		return models.Invoice{}, false
	}
	paid, ok := parseDate(row.get("payment_date"))
	if !ok {
		return models.Invoice{}, false
	}
	amount, ok := parseAmount(row.get("amount"))
	if !ok {
		return models.Invoice{}, false
	}

	id := row.get("invoice_id")
	if id == "" {
		id = row.get("id")
	}
	return models.Invoice{
		ID:          id,
		Direction:   direction,
		IssueDate:   issue,
		DueDate:     due,
		PaymentDate: paid,
		Amount:      amount,
		Currency:    row.get("currency"),
		Status:      status,
	}, true
}

// parseDate returns nil for an empty cell and false for an unparsable one
func parseDate(s string) (*time.Time, bool) {
	if s == "" {
		return nil, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			day := models.Day(t)
			return &day, true
		}
	}
	return nil, false
}

// parseAmount returns the signed value, nil for an empty cell and false for an unparsable one
// or one outside the float64 range
func parseAmount(s string) (*float64, bool) {
	if s == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return nil, false
	}
	v := d.InexactFloat64()
	if math.IsInf(v, 0) {
		return nil, false
	}
	return &v, true
}

// table is a header-indexed CSV reader
type table struct {
	reader  *csv.Reader
	columns map[string]int
	record  []string
	err     error
}

func newTable(r io.Reader, required ...string) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return &table{reader: reader, columns: columns}, nil
}

func (t *table) next() bool {
	record, err := t.reader.Read()
	if err == io.EOF {
		return false
	}
	if err != nil {
		var parseErr *csv.ParseError
		if !errors.As(err, &parseErr) {
			t.err = err
			return false
		}
		// a malformed line yields an empty record, which every row parser rejects
		record = nil
	}
	t.record = record
	return true
}

func (t *table) get(column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(t.record) {
		return ""
	}
	return strings.TrimSpace(t.record[i])
}
