package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coop-loan-ledger/internal/domain/loan"
	"coop-loan-ledger/internal/domain/payment"
	"coop-loan-ledger/internal/domain/uow"
	"coop-loan-ledger/internal/infrastructure/metrics"
	"coop-loan-ledger/internal/usecase/eligibility"
	"coop-loan-ledger/internal/usecase/terms"
	"coop-loan-ledger/pkg/keylock"
)

// OverpaymentPolicy decides what happens to a payment larger than the outstanding balance.
type OverpaymentPolicy string

const (
	// Record the full payment, clamp the balance at zero and report the excess.
	OverpaymentAccept OverpaymentPolicy = "accept"
	// Refuse the payment with an InvalidAmountError.
	OverpaymentReject OverpaymentPolicy = "reject"
)

func (p OverpaymentPolicy) Valid() bool {
	return p == OverpaymentAccept || p == OverpaymentReject
}

type Options struct {
	// DefaultInterestRate applies when a submission carries no rate. Nil means
	// loan.DefaultInterestRate; a zero rate is kept as zero.
	DefaultInterestRate *float64
	Overpayment         OverpaymentPolicy
	Logger              *zap.Logger
	Metrics             *metrics.Metrics
	Now                 func() time.Time
}

// Usecase is the authoritative state machine for loan applications and their payments.
// Mutations are serialized per loan id (and per member id for Submit) inside the process,
// and each runs in one unit of work so a failure leaves nothing behind.
type Usecase struct {
	uow         uow.UnitOfWork
	eligibility *eligibility.Evaluator
	locks       *keylock.Locker

	defaultRate float64
	overpayment OverpaymentPolicy
	log         *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewUsecase: the evaluator is re-bound to the transaction's loan repository on every
// Submit; pass nil to run the one-active-loan rule alone.
func NewUsecase(tx uow.UnitOfWork, ev *eligibility.Evaluator, opts Options) *Usecase {
	if ev == nil {
		ev = eligibility.NewEvaluator(nil)
	}
	u := &Usecase{
		uow:         tx,
		eligibility: ev,
		locks:       keylock.New(),
		defaultRate: loan.DefaultInterestRate,
		overpayment: opts.Overpayment,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		now:         opts.Now,
	}
	if opts.DefaultInterestRate != nil {
		u.defaultRate = *opts.DefaultInterestRate
	}
	if !u.overpayment.Valid() {
		u.overpayment = OverpaymentAccept
	}
	if u.log == nil {
		u.log = zap.NewNop()
	}
	if u.now == nil {
		u.now = time.Now
	}
	return u
}

func loanKey(loanID string) string     { return "loan:" + loanID }
func memberKey(memberID string) string { return "member:" + memberID }

// writeErr keeps domain errors as they are and reports anything else
// (typically a failed commit) as a PersistenceError.
func writeErr(op string, err error) error {
	if err == nil || loan.IsDomainError(err) {
		return err
	}
	return &loan.PersistenceError{Op: op, Err: err}
}

// readErr is writeErr for read-only operations.
func readErr(resource, key string, err error) error {
	if err == nil || loan.IsDomainError(err) {
		return err
	}
	return &loan.LookupError{Resource: resource, Key: key, Err: err}
}

func validateSubmit(in SubmitInput) error {
	if in.MemberID == "" {
		return &loan.ValidationError{Field: "member_id", Message: "is required"}
	}
	if in.Guarantor1ID == "" {
		return &loan.ValidationError{Field: "guarantor1_id", Message: "is required"}
	}
	if in.Guarantor1ID == in.MemberID {
		return &loan.ValidationError{Field: "guarantor1_id", Message: "member cannot guarantee their own loan"}
	}
	if g2 := in.Guarantor2ID; g2 != nil && *g2 != "" {
		if *g2 == in.MemberID {
			return &loan.ValidationError{Field: "guarantor2_id", Message: "member cannot guarantee their own loan"}
		}
		if *g2 == in.Guarantor1ID {
			return &loan.ValidationError{Field: "guarantor2_id", Message: "must differ from guarantor1_id"}
		}
	}
	return nil
}

// Submit opens a new application in pending once the member passes eligibility.
// The member lock is held from the eligibility read until the insert commits.
func (u *Usecase) Submit(ctx context.Context, in SubmitInput) (*LoanDTO, error) {
	defer u.metrics.Track("submit")()

	if err := validateSubmit(in); err != nil {
		u.metrics.IncSubmission("invalid")
		return nil, err
	}
	rate := u.defaultRate
	if in.InterestRate != nil {
		rate = *in.InterestRate
	}
	t, err := terms.Compute(in.Amount, in.DurationMonths, rate)
	if err != nil {
		u.metrics.IncSubmission("invalid")
		return nil, err
	}
	if in.Guarantor2ID != nil && *in.Guarantor2ID == "" {
		in.Guarantor2ID = nil
	}

	unlock := u.locks.Lock(memberKey(in.MemberID))
	defer unlock()

	var created *loan.LoanApplication
	err = u.uow.WithinMemberTx(ctx, in.MemberID, func(r uow.Repos) error {
		res, err := u.eligibility.WithLoans(r.Loans).Evaluate(ctx, in.MemberID, in.Amount)
		if err != nil {
			return err
		}
		if !res.Eligible {
			return &loan.IneligibleError{MemberID: in.MemberID, Reason: res.Reason, MaxEligibleAmount: res.MaxEligibleAmount}
		}

		l := &loan.LoanApplication{
			MemberID:       in.MemberID,
			Guarantor1ID:   in.Guarantor1ID,
			Guarantor2ID:   in.Guarantor2ID,
			Purpose:        in.Purpose,
			Amount:         t.Principal,
			DurationMonths: t.DurationMonths,
			InterestRate:   t.InterestRate,
			MonthlyPayment: t.MonthlyPayment,
			TotalAmount:    t.TotalAmount,
			InterestAmount: t.InterestAmount,
			Status:         loan.StatusPending,
			AppliedAt:      u.now().UTC(),
		}
		if err := r.Loans.Create(ctx, l); err != nil {
			return &loan.PersistenceError{Op: "create loan application", Err: err}
		}
		created = l
		return nil
	})
	if err != nil {
		err = writeErr("submit loan application", err)
		var ie *loan.IneligibleError
		if errors.As(err, &ie) {
			u.metrics.IncSubmission("ineligible")
			u.log.Info("loan submission refused",
				zap.String("member_id", in.MemberID), zap.String("reason", ie.Reason))
		} else {
			u.metrics.IncSubmission("error")
			u.log.Error("loan submission failed", zap.String("member_id", in.MemberID), zap.Error(err))
		}
		return nil, err
	}

	u.metrics.IncSubmission("created")
	u.log.Info("loan submitted",
		zap.String("loan_id", created.LoanID),
		zap.String("member_id", created.MemberID),
		zap.Int64("amount", created.Amount),
		zap.Int64("total_amount", created.TotalAmount))
	return toLoanDTO(created, 0), nil
}

func (u *Usecase) Approve(ctx context.Context, loanID string, in DecisionInput) (*LoanDTO, error) {
	return u.decide(ctx, loanID, loan.StatusApproved, in)
}

// Reject stores in.Note as the rejection reason.
func (u *Usecase) Reject(ctx context.Context, loanID string, in DecisionInput) (*LoanDTO, error) {
	return u.decide(ctx, loanID, loan.StatusRejected, in)
}

// Decide applies an administrative approve/reject. A second decision on the same
// loan always fails with InvalidTransitionError.
func (u *Usecase) Decide(ctx context.Context, loanID string, approve bool, in DecisionInput) (*LoanDTO, error) {
	if approve {
		return u.Approve(ctx, loanID, in)
	}
	return u.Reject(ctx, loanID, in)
}

func (u *Usecase) decide(ctx context.Context, loanID string, next loan.Status, in DecisionInput) (*LoanDTO, error) {
	op := "approve"
	if next == loan.StatusRejected {
		op = "reject"
	}
	defer u.metrics.Track(op)()

	unlock := u.locks.Lock(loanKey(loanID))
	defer unlock()

	var out *LoanDTO
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.LoanApplication) error {
		if err := l.Transition(op, next); err != nil {
			return err
		}
		now := u.now().UTC()
		l.DecidedAt = &now
		l.DecidedBy = in.DecidedBy
		l.DecisionNote = in.Note
		if next == loan.StatusApproved {
			l.ApprovedAt = &now
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return &loan.PersistenceError{Op: op + " loan", Err: err}
		}
		out = toLoanDTO(l, 0)
		return nil
	})
	if err != nil {
		return nil, writeErr(op+" loan", err)
	}

	u.metrics.IncDecision(string(next))
	u.log.Info("loan decided",
		zap.String("loan_id", loanID),
		zap.String("status", string(next)),
		zap.String("decided_by", in.DecidedBy))
	return out, nil
}

// RecordPayment appends a payment to an approved loan and completes the loan once
// cumulative payments reach its total amount.
func (u *Usecase) RecordPayment(ctx context.Context, loanID string, in PaymentInput) (*PaymentResult, error) {
	defer u.metrics.Track("record_payment")()

	if in.Amount <= 0 {
		return nil, &loan.InvalidAmountError{Amount: in.Amount}
	}
	if !in.Type.Valid() {
		return nil, &loan.ValidationError{Field: "type", Message: fmt.Sprintf("unknown payment type %q", in.Type)}
	}
	if !in.Method.Valid() {
		return nil, &loan.ValidationError{Field: "method", Message: fmt.Sprintf("unknown payment method %q", in.Method)}
	}
	paidAt := in.PaidAt
	if paidAt.IsZero() {
		paidAt = u.now()
	}

	unlock := u.locks.Lock(loanKey(loanID))
	defer unlock()

	var out *PaymentResult
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loan.LoanApplication) error {
		if l.Status != loan.StatusApproved {
			return &loan.InvalidTransitionError{LoanID: l.LoanID, Op: "record payment on", From: l.Status}
		}
		paid, err := r.Payments.SumByLoanID(ctx, l.ID)
		if err != nil {
			return &loan.LookupError{Resource: "payments", Key: l.LoanID, Err: err}
		}

		var excess int64
		if before := l.Outstanding(paid); in.Amount > before {
			if u.overpayment == OverpaymentReject {
				return &loan.InvalidAmountError{
					Amount: in.Amount,
					Reason: fmt.Sprintf("exceeds outstanding balance %d", before),
				}
			}
			excess = in.Amount - before
		}

		p := &payment.LoanPayment{
			LoanID:     l.ID,
			Amount:     in.Amount,
			PaidAt:     paidAt.UTC(),
			Type:       in.Type,
			Method:     in.Method,
			Note:       in.Note,
			RecordedBy: in.RecordedBy,
		}
		if err := r.Payments.Create(ctx, p); err != nil {
			return &loan.PersistenceError{Op: "create payment", Err: err}
		}

		paid += in.Amount
		if paid >= l.TotalAmount {
			if err := l.Transition("complete", loan.StatusCompleted); err != nil {
				return err
			}
			now := u.now().UTC()
			l.CompletedAt = &now
			if err := r.Loans.Save(ctx, l); err != nil {
				return &loan.PersistenceError{Op: "complete loan", Err: err}
			}
		}

		out = &PaymentResult{
			PaymentDTO:  toPaymentDTO(p, l.LoanID),
			Outstanding: l.Outstanding(paid),
			Excess:      excess,
			LoanStatus:  l.Status,
		}
		return nil
	})
	if err != nil {
		return nil, writeErr("record payment", err)
	}

	u.metrics.ObservePayment(string(in.Type), in.Amount, out.Excess)
	fields := []zap.Field{
		zap.String("loan_id", loanID),
		zap.String("payment_id", out.PaymentID),
		zap.Int64("amount", in.Amount),
		zap.Int64("outstanding", out.Outstanding),
	}
	if out.Excess > 0 {
		u.log.Warn("overpayment accepted", append(fields, zap.Int64("excess", out.Excess))...)
	} else {
		u.log.Info("payment recorded", fields...)
	}
	if out.LoanStatus == loan.StatusCompleted {
		u.log.Info("loan completed", zap.String("loan_id", loanID))
	}
	return out, nil
}

// loadWithPaid reads a loan and its paid-to-date inside r.
func loadWithPaid(ctx context.Context, r uow.Repos, loanID string) (*loan.LoanApplication, int64, error) {
	l, err := r.Loans.GetByLoanID(ctx, loanID)
	if err != nil {
		if errors.Is(err, loan.ErrNotFound) {
			return nil, 0, err
		}
		return nil, 0, &loan.LookupError{Resource: "loan", Key: loanID, Err: err}
	}
	paid, err := r.Payments.SumByLoanID(ctx, l.ID)
	if err != nil {
		return nil, 0, &loan.LookupError{Resource: "payments", Key: loanID, Err: err}
	}
	return l, paid, nil
}

// OutstandingBalance is max(0, total − Σ payments), read from one snapshot.
func (u *Usecase) OutstandingBalance(ctx context.Context, loanID string) (int64, error) {
	var out int64
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		l, paid, err := loadWithPaid(ctx, r, loanID)
		if err != nil {
			return err
		}
		out = l.Outstanding(paid)
		return nil
	})
	if err != nil {
		return 0, readErr("loan", loanID, err)
	}
	return out, nil
}

func (u *Usecase) Get(ctx context.Context, loanID string) (*LoanDTO, error) {
	var out *LoanDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		l, paid, err := loadWithPaid(ctx, r, loanID)
		if err != nil {
			return err
		}
		out = toLoanDTO(l, paid)
		return nil
	})
	if err != nil {
		return nil, readErr("loan", loanID, err)
	}
	return out, nil
}

// Payments lists a loan's payments, oldest first.
func (u *Usecase) Payments(ctx context.Context, loanID string) ([]PaymentDTO, error) {
	var out []PaymentDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		l, err := r.Loans.GetByLoanID(ctx, loanID)
		if err != nil {
			if errors.Is(err, loan.ErrNotFound) {
				return err
			}
			return &loan.LookupError{Resource: "loan", Key: loanID, Err: err}
		}
		ps, err := r.Payments.ListByLoanID(ctx, l.ID)
		if err != nil {
			return &loan.LookupError{Resource: "payments", Key: loanID, Err: err}
		}
		out = make([]PaymentDTO, 0, len(ps))
		for i := range ps {
			out = append(out, toPaymentDTO(&ps[i], l.LoanID))
		}
		return nil
	})
	if err != nil {
		return nil, readErr("payments", loanID, err)
	}
	return out, nil
}

// Schedule returns the repayment plan; due dates count from approval, or from the
// application date while the loan is still pending.
func (u *Usecase) Schedule(ctx context.Context, loanID string) (*ScheduleDTO, error) {
	l, err := u.Get(ctx, loanID)
	if err != nil {
		return nil, err
	}
	start, projected := l.AppliedAt, true
	if l.ApprovedAt != nil {
		start, projected = *l.ApprovedAt, false
	}
	t := terms.Terms{
		Principal:      l.Amount,
		DurationMonths: l.DurationMonths,
		InterestRate:   l.InterestRate,
		MonthlyPayment: l.MonthlyPayment,
		TotalAmount:    l.TotalAmount,
		InterestAmount: l.InterestAmount,
	}
	return &ScheduleDTO{
		LoanID:       l.LoanID,
		Projected:    projected,
		Installments: terms.Schedule(t, start),
	}, nil
}

// ApplicationsForMember returns every application of the member, most recent first.
func (u *Usecase) ApplicationsForMember(ctx context.Context, memberID string) ([]LoanDTO, error) {
	var out []LoanDTO
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		ls, err := r.Loans.ListByMemberID(ctx, memberID)
		if err != nil {
			return &loan.LookupError{Resource: "loan history", Key: memberID, Err: err}
		}
		out = make([]LoanDTO, 0, len(ls))
		for i := range ls {
			var paid int64
			if ls[i].Status.Disbursed() {
				if paid, err = r.Payments.SumByLoanID(ctx, ls[i].ID); err != nil {
					return &loan.LookupError{Resource: "payments", Key: ls[i].LoanID, Err: err}
				}
			}
			out = append(out, *toLoanDTO(&ls[i], paid))
		}
		return nil
	})
	if err != nil {
		return nil, readErr("loan history", memberID, err)
	}
	return out, nil
}
