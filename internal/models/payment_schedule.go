package models

import "time"

// RecurringPayment is a monthly outflow scheduled inside the forecast window
type RecurringPayment struct {
	PaymentDate time.Time `json:"payment_date"`
	Amount      float64   `json:"amount"`
	Currency    Currency  `json:"currency"`
	// DebtInterest is the part of Amount guaranteed to cover the debt interest
	DebtInterest float64 `json:"debt_interest"`
}
