package portfolio

import (
	"time"

	"coop-loan-ledger/internal/domain/loan"
	"coop-loan-ledger/internal/domain/payment"
)

// LoanSummary is derived on demand and never persisted.
type LoanSummary struct {
	TotalDisbursed     int64     `json:"total_disbursed"`
	TotalRepaid        int64     `json:"total_repaid"`
	OutstandingBalance int64     `json:"outstanding_balance"`
	ActiveLoanCount    int       `json:"active_loan_count"`
	DefaultedLoanCount int       `json:"defaulted_loan_count"`
	PendingLoanCount   int       `json:"pending_loan_count"`
	CompletedLoanCount int       `json:"completed_loan_count"`
	RejectedLoanCount  int       `json:"rejected_loan_count"`
	GeneratedAt        time.Time `json:"generated_at"`
}

// DefaultPolicy decides whether an approved loan counts as defaulted.
// paid is the loan's cumulative repayment.
type DefaultPolicy interface {
	Defaulted(l loan.LoanApplication, paid int64, now time.Time) bool
}

// NoDefaultPolicy flags nothing; the ledger has no due-date tracking to base a default on yet.
type NoDefaultPolicy struct{}

func (NoDefaultPolicy) Defaulted(loan.LoanApplication, int64, time.Time) bool { return false }

// Summarize aggregates with the NoDefaultPolicy.
func Summarize(loans []loan.LoanApplication, payments []payment.LoanPayment) LoanSummary {
	return Aggregator{}.Summarize(loans, payments, time.Now().UTC())
}

type Aggregator struct {
	Policy DefaultPolicy
}

// Summarize is pure: the same inputs and now always give the same summary.
func (a Aggregator) Summarize(loans []loan.LoanApplication, payments []payment.LoanPayment, now time.Time) LoanSummary {
	policy := a.Policy
	if policy == nil {
		policy = NoDefaultPolicy{}
	}

	paidByLoan := make(map[uint64]int64, len(loans))
	s := LoanSummary{GeneratedAt: now}
	for _, p := range payments {
		s.TotalRepaid += p.Amount
		paidByLoan[p.LoanID] += p.Amount
	}

	for _, l := range loans {
		if l.Status.Disbursed() {
			s.TotalDisbursed += l.Amount
		}
		switch l.Status {
		case loan.StatusPending:
			s.PendingLoanCount++
		case loan.StatusApproved:
			s.ActiveLoanCount++
			if policy.Defaulted(l, paidByLoan[l.ID], now) {
				s.DefaultedLoanCount++
			}
		case loan.StatusCompleted:
			s.CompletedLoanCount++
		case loan.StatusRejected:
			s.RejectedLoanCount++
		}
	}

	if rest := s.TotalDisbursed - s.TotalRepaid; rest > 0 {
		s.OutstandingBalance = rest
	}
	return s
}
