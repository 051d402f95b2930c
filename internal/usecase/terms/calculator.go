// Package terms derives repayment figures for a fixed-term, fixed-rate loan.
//
// Interest is simple and prorated by term length:
//
//	total   = principal × (1 + rate/100 × months/12)
//	monthly = total / months
//
// Both figures are rounded to whole currency units (half away from zero).
// Callers must not assume compounding.
package terms

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"coop-loan-ledger/internal/domain/loan"
)

type Terms struct {
	Principal      int64   `json:"principal"`
	DurationMonths int     `json:"duration_months"`
	InterestRate   float64 `json:"interest_rate"`
	MonthlyPayment int64   `json:"monthly_payment"`
	TotalAmount    int64   `json:"total_amount"`
	InterestAmount int64   `json:"interest_amount"`
}

var monthsPerYearPercent = decimal.NewFromInt(1200)

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// Compute fails with *loan.InvalidTermError for a non-positive principal or
// duration, a negative or non-finite rate, or a total that does not fit in int64.
func Compute(principal int64, durationMonths int, annualRatePercent float64) (Terms, error) {
	switch {
	case principal <= 0:
		return Terms{}, &loan.InvalidTermError{Field: "principal", Value: principal}
	case durationMonths <= 0:
		return Terms{}, &loan.InvalidTermError{Field: "duration_months", Value: durationMonths}
	case annualRatePercent < 0 || math.IsNaN(annualRatePercent) || math.IsInf(annualRatePercent, 0):
		return Terms{}, &loan.InvalidTermError{Field: "interest_rate", Value: annualRatePercent}
	}

	p := decimal.NewFromInt(principal)
	months := decimal.NewFromInt(int64(durationMonths))

	// divide last so 1/12 never gets truncated
	interest := p.Mul(decimal.NewFromFloat(annualRatePercent)).Mul(months).Div(monthsPerYearPercent)
	total := p.Add(interest).Round(0)
	if total.GreaterThan(maxAmount) {
		return Terms{}, &loan.InvalidTermError{Field: "total_amount", Value: total.String()}
	}
	monthly := total.Div(months).Round(0)

	return Terms{
		Principal:      principal,
		DurationMonths: durationMonths,
		InterestRate:   annualRatePercent,
		MonthlyPayment: monthly.IntPart(),
		TotalAmount:    total.IntPart(),
		InterestAmount: total.IntPart() - principal,
	}, nil
}

type Installment struct {
	Number  int       `json:"number"`
	DueDate time.Time `json:"due_date"`
	Amount  int64     `json:"amount"`
}

// Schedule spreads TotalAmount over DurationMonths installments, the first due one
// month after start. The last installment absorbs the rounding remainder, so the
// plan always sums to TotalAmount exactly.
func Schedule(t Terms, start time.Time) []Installment {
	if t.DurationMonths <= 0 {
		return nil
	}
	out := make([]Installment, 0, t.DurationMonths)
	var allocated int64
	for i := 1; i <= t.DurationMonths; i++ {
		amt := t.MonthlyPayment
		if i == t.DurationMonths {
			amt = t.TotalAmount - allocated
		}
		allocated += amt
		out = append(out, Installment{
			Number:  i,
			DueDate: start.AddDate(0, i, 0),
			Amount:  amt,
		})
	}
	return out
}
