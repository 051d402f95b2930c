package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	loanDomain "coop-loan-ledger/internal/domain/loan"
	"coop-loan-ledger/pkg/id"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

var _ loanDomain.Repository = (*LoanRepository)(nil)

// notFound maps gorm's sentinel onto the domain one; other errors pass through.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return loanDomain.ErrNotFound
	}
	return err
}

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.LoanApplication) error {
	if l.LoanID == "" {
		l.LoanID = id.NewID32()
	}
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *LoanRepository) Save(ctx context.Context, l *loanDomain.LoanApplication) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID string) (*loanDomain.LoanApplication, error) {
	var out loanDomain.LoanApplication
	if err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&out).Error; err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

// SQLite ignores the locking clause; MySQL takes a row lock.
func (r *LoanRepository) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*loanDomain.LoanApplication, error) {
	var out loanDomain.LoanApplication
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_id = ?", loanID).
		First(&out).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &out, nil
}

func (r *LoanRepository) ListByMemberID(ctx context.Context, memberID string) ([]loanDomain.LoanApplication, error) {
	var out []loanDomain.LoanApplication
	err := r.db.WithContext(ctx).
		Where("member_id = ?", memberID).
		Order("applied_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// LockMember locks the member's index range (InnoDB next-key lock), so a concurrent
// submission for the same member waits even when no row exists yet.
func (r *LoanRepository) LockMember(ctx context.Context, memberID string) error {
	var ids []uint64
	return r.db.WithContext(ctx).
		Model(&loanDomain.LoanApplication{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("member_id = ?", memberID).
		Pluck("id", &ids).Error
}

func (r *LoanRepository) ListAll(ctx context.Context) ([]loanDomain.LoanApplication, error) {
	var out []loanDomain.LoanApplication
	err := r.db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}
