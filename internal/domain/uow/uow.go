package uow

import (
	"context"

	"coop-loan-ledger/internal/domain/loan"
	"coop-loan-ledger/internal/domain/payment"
)

// Repos are bound to one transaction.
type Repos struct {
	Loans    loan.Repository
	Payments payment.Repository
}

// UnitOfWork commits when fn returns nil and rolls back otherwise.
// Implementations return loan.ErrNotFound for a missing loan and
// loan.LookupError when the locking read itself fails.
type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// lock loan first, then pass it in
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, l *loan.LoanApplication) error) error
	// lock the member's applications first
	WithinMemberTx(ctx context.Context, memberID string, fn func(r Repos) error) error
}
