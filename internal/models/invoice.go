package models

import (
	"strings"
	"time"
)

// Direction tells which side of the business an invoice sits on
type Direction string

const (
	Receivable Direction = "receivable"
	Payable    Direction = "payable"
)

// InvoiceStatus is the settlement state of an invoice
type InvoiceStatus string

const (
	StatusOpen    InvoiceStatus = "open"
	StatusOverdue InvoiceStatus = "overdue"
	StatusPaid    InvoiceStatus = "paid"
)

// ParseInvoiceStatus maps the book value (Open, Overdue, Paid) to a status
func ParseInvoiceStatus(s string) (InvoiceStatus, bool) {
	switch InvoiceStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StatusOpen:
		return StatusOpen, true
	case StatusOverdue:
		return StatusOverdue, true
	case StatusPaid:
		return StatusPaid, true
	}
	return "", false
}

// Unsettled reports whether the invoice still expects a cash movement
func (s InvoiceStatus) Unsettled() bool {
	return s == StatusOpen || s == StatusOverdue
}

// Invoice is a customer (receivable) or supplier (payable) invoice.
// Nil dates and amounts mean the source row left the field empty.
type Invoice struct {
	ID          string        `json:"id"`
	Direction   Direction     `json:"direction"`
	IssueDate   *time.Time    `json:"issue_date,omitempty"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	PaymentDate *time.Time    `json:"payment_date,omitempty"`
	Amount      *float64      `json:"amount,omitempty"`
	Currency    string        `json:"currency"`
	Status      InvoiceStatus `json:"status"`
}

// ProjectedCashEvent is the cash movement an open invoice is expected to cause
type ProjectedCashEvent struct {
	ExpectedDate time.Time `json:"expected_date"`
	Amount       float64   `json:"amount"`
	Currency     Currency  `json:"currency"`
	Direction    Direction `json:"direction"`
}

// ProjectionStats counts what happened to each invoice handed to the projector
type ProjectionStats struct {
	Projected           int `json:"projected"`
	Settled             int `json:"settled"`
	MissingDueDate      int `json:"missing_due_date"`
	MissingAmount       int `json:"missing_amount"`
	UnsupportedCurrency int `json:"unsupported_currency"`
}

// Dropped returns the number of unsettled invoices excluded for data-quality reasons
func (s ProjectionStats) Dropped() int {
	return s.MissingDueDate + s.MissingAmount + s.UnsupportedCurrency
}
