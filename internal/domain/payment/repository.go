package payment

import "context"

// Repository is append-only: payments are never updated or deleted.
type Repository interface {
	// Create assigns PaymentID when empty.
	Create(ctx context.Context, p *LoanPayment) error
	// Oldest first.
	ListByLoanID(ctx context.Context, loanNumericID uint64) ([]LoanPayment, error)
	SumByLoanID(ctx context.Context, loanNumericID uint64) (int64, error)
	ListAll(ctx context.Context) ([]LoanPayment, error)
}
