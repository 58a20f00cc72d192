package models

import "time"

// FlowType tells whether a bank transaction brought cash in or out
type FlowType string

const (
	FlowCredit FlowType = "credit"
	FlowDebit  FlowType = "debit"
)

// BankTransaction represents a historical bank movement
type BankTransaction struct {
	Date     time.Time `json:"date"`
	Type     FlowType  `json:"type"`
	Amount   float64   `json:"amount"` // Absolute value in native currency
	Currency Currency  `json:"currency"`
	Category string    `json:"category"`
}
