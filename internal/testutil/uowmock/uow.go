package uowmock

import (
	"context"
	"errors"

	"coop-loan-ledger/internal/domain/loan"
	"coop-loan-ledger/internal/domain/uow"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	WithinTxFn       func(ctx context.Context, fn func(r uow.Repos) error) error
	WithinLoanTxFn   func(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.LoanApplication) error) error
	WithinMemberTxFn func(ctx context.Context, memberID string, fn func(r uow.Repos) error) error
}

// Passthrough runs every callback directly against r with no transaction,
// locking the loan through r.Loans.GetByLoanIDForUpdate like the real UoW.
func Passthrough(r uow.Repos) *UoW {
	return &UoW{
		WithinTxFn: func(ctx context.Context, fn func(uow.Repos) error) error { return fn(r) },
		WithinLoanTxFn: func(ctx context.Context, loanID string, fn func(uow.Repos, *loan.LoanApplication) error) error {
			l, err := r.Loans.GetByLoanIDForUpdate(ctx, loanID)
			if err != nil {
				if errors.Is(err, loan.ErrNotFound) {
					return err
				}
				return &loan.LookupError{Resource: "loan", Key: loanID, Err: err}
			}
			return fn(r, l)
		},
		WithinMemberTxFn: func(ctx context.Context, memberID string, fn func(uow.Repos) error) error {
			if err := r.Loans.LockMember(ctx, memberID); err != nil {
				return &loan.LookupError{Resource: "member loans", Key: memberID, Err: err}
			}
			return fn(r)
		},
	}
}

func (m *UoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}

func (m *UoW) WithinLoanTx(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.LoanApplication) error) error {
	if m.WithinLoanTxFn != nil {
		return m.WithinLoanTxFn(ctx, loanID, fn)
	}
	return errUnimplemented
}

func (m *UoW) WithinMemberTx(ctx context.Context, memberID string, fn func(r uow.Repos) error) error {
	if m.WithinMemberTxFn != nil {
		return m.WithinMemberTxFn(ctx, memberID, fn)
	}
	return errUnimplemented
}
