package models

// DebtTerms describes the outstanding floating-rate debt the cash position is measured against
type DebtTerms struct {
	Principal       float64 `json:"principal"`
	Euribor3M       float64 `json:"euribor_3m"`
	Spread          float64 `json:"spread"`
	MonthlyInterest float64 `json:"monthly_interest"`
}

// NewDebtTerms derives the monthly interest from principal, Euribor and spread
func NewDebtTerms(principal, euribor, spread float64) DebtTerms {
	d := DebtTerms{Principal: principal, Euribor3M: euribor, Spread: spread}
	d.MonthlyInterest = d.derivedMonthlyInterest()
	return d
}

// AnnualRate is Euribor 3M plus the bank spread
func (d DebtTerms) AnnualRate() float64 {
	return d.Euribor3M + d.Spread
}

func (d DebtTerms) derivedMonthlyInterest() float64 {
	return d.Principal * d.AnnualRate() / 12
}

// ShiftEuribor moves the reference rate by delta (floored at zero) and recomputes the monthly interest
func (d DebtTerms) ShiftEuribor(delta float64) DebtTerms {
	shifted := d.Euribor3M + delta
	if shifted < 0 {
		shifted = 0
	}
	return NewDebtTerms(d.Principal, shifted, d.Spread)
}
