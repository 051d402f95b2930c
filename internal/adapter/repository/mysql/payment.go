package mysql

import (
	"context"

	"gorm.io/gorm"

	paymentDomain "coop-loan-ledger/internal/domain/payment"
	"coop-loan-ledger/pkg/id"
)

// PaymentRepository only inserts and reads; payments are never updated.
type PaymentRepository struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) *PaymentRepository { return &PaymentRepository{db: db} }

var _ paymentDomain.Repository = (*PaymentRepository)(nil)

func (r *PaymentRepository) Create(ctx context.Context, p *paymentDomain.LoanPayment) error {
	if p.PaymentID == "" {
		p.PaymentID = id.NewID32()
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) ListByLoanID(ctx context.Context, loanNumericID uint64) ([]paymentDomain.LoanPayment, error) {
	var out []paymentDomain.LoanPayment
	err := r.db.WithContext(ctx).
		Where("loan_id = ?", loanNumericID).
		Order("paid_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

func (r *PaymentRepository) SumByLoanID(ctx context.Context, loanNumericID uint64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).
		Model(&paymentDomain.LoanPayment{}).
		Where("loan_id = ?", loanNumericID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	return sum, err
}

func (r *PaymentRepository) ListAll(ctx context.Context) ([]paymentDomain.LoanPayment, error) {
	var out []paymentDomain.LoanPayment
	err := r.db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}
