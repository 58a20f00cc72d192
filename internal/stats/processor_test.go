package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/cash-forecast/internal/models"
)

func date(y int, m time.Month, d int) *time.Time {
	t := models.Date(y, m, d)
	return &t
}

func newTestProcessor() *Processor {
	return NewProcessor(models.FallbackRates(), models.NewDebtTerms(20_000_000, 0.035, 0.012))
}

func TestProcessor_Compute(t *testing.T) {
	transactions := []models.BankTransaction{
		{Date: models.Date(2024, time.January, 1), Type: models.FlowCredit, Amount: 1000, Currency: models.EUR, Category: "Customer Payment"},
		{Date: models.Date(2024, time.January, 1), Type: models.FlowCredit, Amount: 100, Currency: models.USD, Category: "Customer Payment"},
		{Date: models.Date(2024, time.January, 1), Type: models.FlowDebit, Amount: 500, Currency: models.EUR, Category: "Payroll"},
		{Date: models.Date(2024, time.January, 2), Type: models.FlowCredit, Amount: 2000, Currency: models.EUR, Category: "Customer Payment"},
	}
	invoices := []models.Invoice{
		{Direction: models.Receivable, IssueDate: date(2024, time.January, 1), PaymentDate: date(2024, time.January, 31), Status: models.StatusPaid},
		{Direction: models.Receivable, IssueDate: date(2024, time.January, 1), PaymentDate: date(2024, time.February, 10), Status: models.StatusPaid},
		{Direction: models.Receivable, Status: models.StatusOverdue},
		{Direction: models.Receivable, Status: models.StatusOpen},
		{Direction: models.Payable, IssueDate: date(2024, time.March, 1), PaymentDate: date(2024, time.March, 21), Status: models.StatusPaid},
		{Direction: models.Payable, IssueDate: date(2024, time.March, 1), Status: models.StatusPaid},
	}

	res := newTestProcessor().Compute(transactions, invoices, models.Date(2024, time.January, 2))
	p := res.Parameters

	assert.InDelta(t, 35, p.DSOMean, 1e-9)
	assert.InDelta(t, 7.0710678, p.DSOStd, 1e-6)
	assert.InDelta(t, 20, p.DPOMean, 1e-9)
	assert.Zero(t, p.DPOStd)
	assert.Equal(t, 2, res.PaidSales)
	assert.Equal(t, 1, res.PaidPurchases)

	assert.InDelta(t, 1546, p.AvgDailyCredit, 1e-9)
	assert.InDelta(t, 500, p.AvgDailyDebit, 1e-9)
	assert.Zero(t, p.StdDailyDebit)
	assert.InDelta(t, 1092, p.WeeklyCreditPattern["Monday"], 1e-9)
	assert.InDelta(t, 2000, p.WeeklyCreditPattern["Tuesday"], 1e-9)
	assert.NotContains(t, p.WeeklyCreditPattern, "Wednesday")

	assert.InDelta(t, 3000.0/3092, p.CreditMix[models.EUR], 1e-9)
	assert.InDelta(t, 92.0/3092, p.CreditMix[models.USD], 1e-9)
	assert.Zero(t, p.CreditMix[models.JPY])
	assert.Equal(t, 1.0, p.DebitMix[models.EUR])

	assert.InDelta(t, 0.25, p.OverdueRateSales, 1e-9)
	assert.Zero(t, p.OverdueRatePurchase)
	assert.Equal(t, models.InflationFallback, p.InflationRate)

	assert.InDelta(t, 500+78_333.33, p.AvgMonthlyRecurring, 0.01)
	assert.Equal(t, 1, res.MonthsObserved)

	assert.Equal(t, models.Balances{models.EUR: 500, models.USD: 100, models.JPY: 0}, res.OpeningBalance)
}

func TestProcessor_EmptyHistory(t *testing.T) {
	res := newTestProcessor().Compute(nil, nil, models.Date(2024, time.January, 1))
	p := res.Parameters

	assert.Zero(t, p.AvgDailyCredit)
	assert.Zero(t, p.DSOMean)
	assert.Empty(t, p.WeeklyDebitPattern)
	assert.Equal(t, models.DefaultCurrencyMix(), p.CreditMix)
	assert.InDelta(t, 78_333.33, p.AvgMonthlyRecurring, 0.01)
	assert.Equal(t, models.InflationFallback, p.InflationRate)
}

func TestProcessor_LoanInterestAlreadyBooked(t *testing.T) {
	var transactions []models.BankTransaction
	for m := time.January; m <= time.March; m++ {
		transactions = append(transactions,
			models.BankTransaction{Date: models.Date(2024, m, 1), Type: models.FlowDebit, Amount: 80_000, Currency: models.EUR, Category: "Loan Interest"},
			models.BankTransaction{Date: models.Date(2024, m, 25), Type: models.FlowDebit, Amount: 50_000, Currency: models.EUR, Category: "Payroll"},
		)
	}

	res := newTestProcessor().Compute(transactions, nil, models.Date(2024, time.April, 1))

	assert.InDelta(t, 130_000, res.Parameters.AvgMonthlyRecurring, 1e-6)
	assert.Equal(t, 3, res.MonthsObserved)
}

func TestProcessor_InflationRate(t *testing.T) {
	tests := []struct {
		name    string
		growth  float64
		months  int
		want    float64
		inDelta float64
	}{
		{"steady growth", 0.005, 7, 0.06, 1e-9},
		{"implausible growth", 0.02, 7, models.InflationFallback, 0},
		{"shrinking costs", -0.01, 7, models.InflationFallback, 0},
		{"short history", 0.005, 5, models.InflationFallback, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var transactions []models.BankTransaction
			amount := 10_000.0
			for i := 0; i < tt.months; i++ {
				transactions = append(transactions, models.BankTransaction{
					Date:     models.Date(2023, time.January, 15).AddDate(0, i, 0),
					Type:     models.FlowDebit,
					Amount:   amount,
					Currency: models.EUR,
					Category: "Supplier Payment",
				})
				amount *= 1 + tt.growth
			}

			got := newTestProcessor().Compute(transactions, nil, models.Date(2024, time.January, 1)).Parameters.InflationRate
			assert.InDelta(t, tt.want, got, tt.inDelta)
		})
	}
}

func TestOpeningBalance_ExcludesStartDay(t *testing.T) {
	transactions := []models.BankTransaction{
		{Date: time.Date(2024, time.January, 1, 23, 59, 0, 0, time.UTC), Type: models.FlowCredit, Amount: 10, Currency: models.JPY},
		{Date: models.Date(2024, time.January, 2), Type: models.FlowCredit, Amount: 99, Currency: models.EUR},
	}

	balance := openingBalance(transactions, models.Date(2024, time.January, 2))

	require.Len(t, balance, 3)
	assert.Equal(t, 10.0, balance[models.JPY])
	assert.Zero(t, balance[models.EUR])
}
