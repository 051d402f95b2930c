package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"coop-loan-ledger/internal/domain/loan"
	"coop-loan-ledger/internal/domain/payment"
	"coop-loan-ledger/internal/domain/uow"
)

type GormUoW struct{ db *gorm.DB }

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

var _ uow.UnitOfWork = (*GormUoW)(nil)

func repos(tx *gorm.DB) uow.Repos {
	return uow.Repos{
		Loans:    &LoanRepository{db: tx},
		Payments: &PaymentRepository{db: tx},
	}
}

func (u *GormUoW) WithinTx(ctx context.Context, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repos(tx))
	})
}

func (u *GormUoW) WithinLoanTx(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.LoanApplication) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := repos(tx)
		// lock the loan row up-front to prevent races
		l, err := r.Loans.GetByLoanIDForUpdate(ctx, loanID)
		if err != nil {
			if errors.Is(err, loan.ErrNotFound) {
				return err
			}
			return &loan.LookupError{Resource: "loan", Key: loanID, Err: err}
		}
		return fn(r, l)
	})
}

func (u *GormUoW) WithinMemberTx(ctx context.Context, memberID string, fn func(r uow.Repos) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := repos(tx)
		if err := r.Loans.LockMember(ctx, memberID); err != nil {
			return &loan.LookupError{Resource: "member loans", Key: memberID, Err: err}
		}
		return fn(r)
	})
}

// AutoMigrate creates or updates the ledger tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&loan.LoanApplication{}, &payment.LoanPayment{})
}
