package portfolio

import (
	"context"
	"time"

	"go.uber.org/zap"

	"coop-loan-ledger/internal/domain/loan"
	"coop-loan-ledger/internal/domain/payment"
	"coop-loan-ledger/internal/domain/uow"
	"coop-loan-ledger/internal/infrastructure/metrics"
)

type Usecase struct {
	uow     uow.UnitOfWork
	agg     Aggregator
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewUsecase(tx uow.UnitOfWork, policy DefaultPolicy, log *zap.Logger, m *metrics.Metrics) *Usecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &Usecase{
		uow:     tx,
		agg:     Aggregator{Policy: policy},
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// GetSummary recomputes the portfolio from one transaction's snapshot on every call.
func (u *Usecase) GetSummary(ctx context.Context) (*LoanSummary, error) {
	defer u.metrics.Track("summary")()

	var (
		loans    []loan.LoanApplication
		payments []payment.LoanPayment
	)
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		var err error
		if loans, err = r.Loans.ListAll(ctx); err != nil {
			return &loan.LookupError{Resource: "loans", Key: "*", Err: err}
		}
		if payments, err = r.Payments.ListAll(ctx); err != nil {
			return &loan.LookupError{Resource: "payments", Key: "*", Err: err}
		}
		return nil
	})
	if err != nil {
		if !loan.IsDomainError(err) {
			err = &loan.LookupError{Resource: "portfolio", Key: "*", Err: err}
		}
		u.log.Error("portfolio summary failed", zap.Error(err))
		return nil, err
	}

	s := u.agg.Summarize(loans, payments, u.now().UTC())
	u.log.Debug("portfolio summarized",
		zap.Int("loans", len(loans)),
		zap.Int("payments", len(payments)),
		zap.Int64("outstanding", s.OutstandingBalance))
	return &s, nil
}
