package paymentmock

import (
	"context"
	"errors"

	domain "coop-loan-ledger/internal/domain/payment"
)

var _ domain.Repository = (*Repo)(nil)

var ErrUnimplemented = errors.New("paymentmock: method not implemented")

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateFn       func(ctx context.Context, p *domain.LoanPayment) error
	ListByLoanIDFn func(ctx context.Context, loanNumericID uint64) ([]domain.LoanPayment, error)
	SumByLoanIDFn  func(ctx context.Context, loanNumericID uint64) (int64, error)
	ListAllFn      func(ctx context.Context) ([]domain.LoanPayment, error)
}

func (m *Repo) Create(ctx context.Context, p *domain.LoanPayment) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, p)
	}
	return nil
}

func (m *Repo) ListByLoanID(ctx context.Context, loanNumericID uint64) ([]domain.LoanPayment, error) {
	if m.ListByLoanIDFn != nil {
		return m.ListByLoanIDFn(ctx, loanNumericID)
	}
	return nil, ErrUnimplemented
}

func (m *Repo) SumByLoanID(ctx context.Context, loanNumericID uint64) (int64, error) {
	if m.SumByLoanIDFn != nil {
		return m.SumByLoanIDFn(ctx, loanNumericID)
	}
	return 0, ErrUnimplemented
}

func (m *Repo) ListAll(ctx context.Context) ([]domain.LoanPayment, error) {
	if m.ListAllFn != nil {
		return m.ListAllFn(ctx)
	}
	return nil, ErrUnimplemented
}
