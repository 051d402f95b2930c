package loanmock

import (
	"context"
	"errors"

	domain "coop-loan-ledger/internal/domain/loan"
)

var _ domain.Repository = (*Repo)(nil)

var ErrUnimplemented = errors.New("loanmock: method not implemented")

// Repo is a function-backed mock that satisfies domain.Repository.
// Writes default to a no-op; reads default to ErrUnimplemented.
type Repo struct {
	CreateFn               func(ctx context.Context, l *domain.LoanApplication) error
	SaveFn                 func(ctx context.Context, l *domain.LoanApplication) error
	GetByLoanIDFn          func(ctx context.Context, loanID string) (*domain.LoanApplication, error)
	GetByLoanIDForUpdateFn func(ctx context.Context, loanID string) (*domain.LoanApplication, error)
	ListByMemberIDFn       func(ctx context.Context, memberID string) ([]domain.LoanApplication, error)
	LockMemberFn           func(ctx context.Context, memberID string) error
	ListAllFn              func(ctx context.Context) ([]domain.LoanApplication, error)
}

func (m *Repo) Create(ctx context.Context, l *domain.LoanApplication) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}

func (m *Repo) Save(ctx context.Context, l *domain.LoanApplication) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, l)
	}
	return nil
}

func (m *Repo) GetByLoanID(ctx context.Context, loanID string) (*domain.LoanApplication, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, ErrUnimplemented
}

func (m *Repo) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*domain.LoanApplication, error) {
	if m.GetByLoanIDForUpdateFn != nil {
		return m.GetByLoanIDForUpdateFn(ctx, loanID)
	}
	return nil, ErrUnimplemented
}

func (m *Repo) ListByMemberID(ctx context.Context, memberID string) ([]domain.LoanApplication, error) {
	if m.ListByMemberIDFn != nil {
		return m.ListByMemberIDFn(ctx, memberID)
	}
	return nil, ErrUnimplemented
}

func (m *Repo) LockMember(ctx context.Context, memberID string) error {
	if m.LockMemberFn != nil {
		return m.LockMemberFn(ctx, memberID)
	}
	return nil
}

func (m *Repo) ListAll(ctx context.Context) ([]domain.LoanApplication, error) {
	if m.ListAllFn != nil {
		return m.ListAllFn(ctx)
	}
	return nil, ErrUnimplemented
}
