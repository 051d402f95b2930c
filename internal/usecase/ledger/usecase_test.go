package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"coop-loan-ledger/internal/adapter/repository/mysql"
	"coop-loan-ledger/internal/domain/loan"
	"coop-loan-ledger/internal/domain/payment"
	"coop-loan-ledger/internal/domain/uow"
	"coop-loan-ledger/internal/infrastructure/metrics"
	"coop-loan-ledger/internal/testutil/dbtest"
	"coop-loan-ledger/internal/testutil/loanmock"
	"coop-loan-ledger/internal/testutil/paymentmock"
	"coop-loan-ledger/internal/testutil/uowmock"
)

const (
	member    = "11111111111111111111111111111111"
	guarantor = "22222222222222222222222222222222"
	admin     = "99999999999999999999999999999999"
)

var fixedNow = time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)

type harness struct {
	uc   *Usecase
	logs *observer.ObservedLogs
	m    *metrics.Metrics
}

func newHarness(t *testing.T, policy OverpaymentPolicy) harness {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	m := metrics.New()
	uc := NewUsecase(mysql.NewGormUoW(dbtest.Open(t)), nil, Options{
		Overpayment: policy,
		Logger:      zap.New(core),
		Metrics:     m,
		Now:         func() time.Time { return fixedNow },
	})
	return harness{uc: uc, logs: logs, m: m}
}

func submitInput(memberID string, amount int64, months int) SubmitInput {
	return SubmitInput{
		MemberID:       memberID,
		Amount:         amount,
		Purpose:        "school fees",
		DurationMonths: months,
		Guarantor1ID:   guarantor,
	}
}

func monthly(amount int64) PaymentInput {
	return PaymentInput{Amount: amount, Type: payment.TypeMonthly, Method: payment.MethodCash, RecordedBy: admin}
}

func mustApprovedLoan(t *testing.T, h harness) *LoanDTO {
	t.Helper()
	ctx := context.Background()
	l, err := h.uc.Submit(ctx, submitInput(member, 150000, 6))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := h.uc.Approve(ctx, l.LoanID, DecisionInput{DecidedBy: admin}); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	return l
}

func TestSubmit_ConfiguredZeroDefaultRate(t *testing.T) {
	zero := 0.0
	uc := NewUsecase(mysql.NewGormUoW(dbtest.Open(t)), nil, Options{
		DefaultInterestRate: &zero,
		Now:                 func() time.Time { return fixedNow },
	})

	l, err := uc.Submit(context.Background(), submitInput(member, 120000, 12))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if l.InterestRate != 0 || l.InterestAmount != 0 || l.TotalAmount != 120000 || l.MonthlyPayment != 10000 {
		t.Fatalf("zero default rate not honoured: rate=%v total=%d interest=%d monthly=%d",
			l.InterestRate, l.TotalAmount, l.InterestAmount, l.MonthlyPayment)
	}
}

func TestSubmit_UnsetDefaultRateFallsBack(t *testing.T) {
	uc := NewUsecase(mysql.NewGormUoW(dbtest.Open(t)), nil, Options{Now: func() time.Time { return fixedNow }})

	l, err := uc.Submit(context.Background(), submitInput(member, 120000, 12))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if l.InterestRate != loan.DefaultInterestRate || l.TotalAmount != 126000 {
		t.Fatalf("unexpected fallback terms: rate=%v total=%d", l.InterestRate, l.TotalAmount)
	}
}

func TestFullLifecycle(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	ctx := context.Background()

	l, err := h.uc.Submit(ctx, submitInput(member, 150000, 6))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if l.Status != loan.StatusPending || l.InterestRate != 5 {
		t.Fatalf("unexpected new loan: %+v", l)
	}
	if l.MonthlyPayment != 25625 || l.TotalAmount != 153750 || l.InterestAmount != 3750 {
		t.Fatalf("unexpected terms: monthly=%d total=%d interest=%d", l.MonthlyPayment, l.TotalAmount, l.InterestAmount)
	}

	approved, err := h.uc.Approve(ctx, l.LoanID, DecisionInput{DecidedBy: admin, Note: "ok"})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != loan.StatusApproved || approved.ApprovedAt == nil || approved.DecidedBy != admin {
		t.Fatalf("unexpected approved loan: %+v", approved)
	}

	for i := 0; i < 3; i++ {
		if _, err := h.uc.RecordPayment(ctx, l.LoanID, monthly(25625)); err != nil {
			t.Fatalf("payment %d: %v", i+1, err)
		}
	}
	bal, err := h.uc.OutstandingBalance(ctx, l.LoanID)
	if err != nil {
		t.Fatalf("OutstandingBalance: %v", err)
	}
	if bal != 76875 {
		t.Fatalf("balance after three payments: want 76875, got %d", bal)
	}

	var last *PaymentResult
	for i := 0; i < 3; i++ {
		if last, err = h.uc.RecordPayment(ctx, l.LoanID, monthly(25625)); err != nil {
			t.Fatalf("payment %d: %v", i+4, err)
		}
	}
	if last.LoanStatus != loan.StatusCompleted || last.Outstanding != 0 || last.Excess != 0 {
		t.Fatalf("unexpected final payment result: %+v", last)
	}

	got, err := h.uc.Get(ctx, l.LoanID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != loan.StatusCompleted || got.CompletedAt == nil || got.PaidToDate != 153750 {
		t.Fatalf("unexpected completed loan: %+v", got)
	}

	ps, err := h.uc.Payments(ctx, l.LoanID)
	if err != nil {
		t.Fatalf("Payments: %v", err)
	}
	if len(ps) != 6 {
		t.Fatalf("want 6 payments, got %d", len(ps))
	}

	if _, err := h.uc.RecordPayment(ctx, l.LoanID, monthly(1)); !isTransitionErr(err) {
		t.Fatalf("payment on completed loan: want InvalidTransitionError, got %v", err)
	}

	if n := h.logs.FilterMessage("loan completed").Len(); n != 1 {
		t.Fatalf("want one completion log, got %d", n)
	}
}

func isTransitionErr(err error) bool {
	var te *loan.InvalidTransitionError
	return errors.As(err, &te)
}

func TestSubmit_SecondApplicationIsIneligible(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	ctx := context.Background()

	if _, err := h.uc.Submit(ctx, submitInput(member, 100000, 3)); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, err := h.uc.Submit(ctx, submitInput(member, 50000, 3))
	var ie *loan.IneligibleError
	if !errors.As(err, &ie) {
		t.Fatalf("want IneligibleError, got %v", err)
	}
	if ie.Reason != loan.ReasonActiveApplication {
		t.Fatalf("unexpected reason %q", ie.Reason)
	}

	hist, err := h.uc.ApplicationsForMember(ctx, member)
	if err != nil {
		t.Fatalf("ApplicationsForMember: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("refused submission must not persist, got %d applications", len(hist))
	}
	if h.logs.FilterMessage("loan submission refused").Len() != 1 {
		t.Fatalf("expected refusal to be logged")
	}
}

func TestSubmit_AllowedAfterRejectAndAfterCompletion(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	ctx := context.Background()

	first, err := h.uc.Submit(ctx, submitInput(member, 10000, 1))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	rejected, err := h.uc.Reject(ctx, first.LoanID, DecisionInput{DecidedBy: admin, Note: "insufficient savings"})
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != loan.StatusRejected || rejected.DecisionNote != "insufficient savings" || rejected.ApprovedAt != nil {
		t.Fatalf("unexpected rejected loan: %+v", rejected)
	}

	second, err := h.uc.Submit(ctx, submitInput(member, 12000, 1))
	if err != nil {
		t.Fatalf("Submit after reject: %v", err)
	}
	if _, err := h.uc.Approve(ctx, second.LoanID, DecisionInput{DecidedBy: admin}); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	res, err := h.uc.RecordPayment(ctx, second.LoanID, PaymentInput{
		Amount: second.TotalAmount, Type: payment.TypeFull, Method: payment.MethodBankTransfer,
	})
	if err != nil {
		t.Fatalf("full payment: %v", err)
	}
	if res.LoanStatus != loan.StatusCompleted {
		t.Fatalf("want completed, got %s", res.LoanStatus)
	}

	if _, err := h.uc.Submit(ctx, submitInput(member, 15000, 2)); err != nil {
		t.Fatalf("Submit after completion: %v", err)
	}

	hist, err := h.uc.ApplicationsForMember(ctx, member)
	if err != nil {
		t.Fatalf("ApplicationsForMember: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("want 3 applications, got %d", len(hist))
	}
}

func TestDecide_SecondDecisionFails(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	ctx := context.Background()

	l, err := h.uc.Submit(ctx, submitInput(member, 150000, 6))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := h.uc.Decide(ctx, l.LoanID, true, DecisionInput{DecidedBy: admin}); err != nil {
		t.Fatalf("first decision: %v", err)
	}
	for _, approve := range []bool{true, false} {
		if _, err := h.uc.Decide(ctx, l.LoanID, approve, DecisionInput{DecidedBy: admin}); !isTransitionErr(err) {
			t.Fatalf("second decision (approve=%v): want InvalidTransitionError, got %v", approve, err)
		}
	}
	got, _ := h.uc.Get(ctx, l.LoanID)
	if got.Status != loan.StatusApproved {
		t.Fatalf("status changed by refused decision: %s", got.Status)
	}
}

func TestDecide_UnknownLoan(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	_, err := h.uc.Approve(context.Background(), "ffffffffffffffffffffffffffffffff", DecisionInput{})
	if !errors.Is(err, loan.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestRecordPayment_InvalidAmountLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	ctx := context.Background()
	l := mustApprovedLoan(t, h)

	for _, amt := range []int64{0, -500} {
		_, err := h.uc.RecordPayment(ctx, l.LoanID, monthly(amt))
		var ae *loan.InvalidAmountError
		if !errors.As(err, &ae) {
			t.Fatalf("amount %d: want InvalidAmountError, got %v", amt, err)
		}
	}
	bal, _ := h.uc.OutstandingBalance(ctx, l.LoanID)
	if bal != 153750 {
		t.Fatalf("balance changed: %d", bal)
	}
	ps, _ := h.uc.Payments(ctx, l.LoanID)
	if len(ps) != 0 {
		t.Fatalf("invalid payment persisted")
	}
}

func TestRecordPayment_InvalidTypeAndMethod(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	l := mustApprovedLoan(t, h)

	var ve *loan.ValidationError
	_, err := h.uc.RecordPayment(context.Background(), l.LoanID, PaymentInput{Amount: 10, Type: "weekly", Method: payment.MethodCash})
	if !errors.As(err, &ve) || ve.Field != "type" {
		t.Fatalf("want ValidationError on type, got %v", err)
	}
	_, err = h.uc.RecordPayment(context.Background(), l.LoanID, PaymentInput{Amount: 10, Type: payment.TypePartial, Method: "cheque"})
	if !errors.As(err, &ve) || ve.Field != "method" {
		t.Fatalf("want ValidationError on method, got %v", err)
	}
}

func TestRecordPayment_PendingLoanRefused(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	l, err := h.uc.Submit(context.Background(), submitInput(member, 1000, 1))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := h.uc.RecordPayment(context.Background(), l.LoanID, monthly(100)); !isTransitionErr(err) {
		t.Fatalf("want InvalidTransitionError, got %v", err)
	}
}

func TestOutstandingBalance_Monotonic(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	ctx := context.Background()
	l := mustApprovedLoan(t, h)

	prev, _ := h.uc.OutstandingBalance(ctx, l.LoanID)
	for _, amt := range []int64{1, 40000, 333, 25625, 70000} {
		if _, err := h.uc.RecordPayment(ctx, l.LoanID, PaymentInput{Amount: amt, Type: payment.TypePartial, Method: payment.MethodMobileMoney}); err != nil {
			t.Fatalf("payment %d: %v", amt, err)
		}
		bal, err := h.uc.OutstandingBalance(ctx, l.LoanID)
		if err != nil {
			t.Fatalf("OutstandingBalance: %v", err)
		}
		if bal > prev || bal < 0 {
			t.Fatalf("balance not monotonic: prev=%d now=%d", prev, bal)
		}
		prev = bal
	}
}

func TestRecordPayment_OverpaymentAccepted(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	ctx := context.Background()
	l := mustApprovedLoan(t, h)

	res, err := h.uc.RecordPayment(ctx, l.LoanID, PaymentInput{Amount: 160000, Type: payment.TypeFull, Method: payment.MethodCash})
	if err != nil {
		t.Fatalf("RecordPayment: %v", err)
	}
	if res.Excess != 6250 || res.Outstanding != 0 || res.LoanStatus != loan.StatusCompleted {
		t.Fatalf("unexpected result: %+v", res)
	}
	if h.logs.FilterMessage("overpayment accepted").FilterField(zap.Int64("excess", 6250)).Len() != 1 {
		t.Fatalf("overpayment was not logged with its excess")
	}
	if entries := h.logs.FilterMessage("overpayment accepted").All(); entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("want warn level, got %s", entries[0].Level)
	}
}

func TestRecordPayment_OverpaymentRejected(t *testing.T) {
	h := newHarness(t, OverpaymentReject)
	ctx := context.Background()
	l := mustApprovedLoan(t, h)

	_, err := h.uc.RecordPayment(ctx, l.LoanID, monthly(153751))
	var ae *loan.InvalidAmountError
	if !errors.As(err, &ae) {
		t.Fatalf("want InvalidAmountError, got %v", err)
	}
	got, _ := h.uc.Get(ctx, l.LoanID)
	if got.Status != loan.StatusApproved || got.PaidToDate != 0 {
		t.Fatalf("rejected overpayment changed the loan: %+v", got)
	}

	// exact payoff is still fine
	if _, err := h.uc.RecordPayment(ctx, l.LoanID, monthly(153750)); err != nil {
		t.Fatalf("exact payoff: %v", err)
	}
}

func TestSubmit_ConcurrentOnlyOneSucceeds(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	ctx := context.Background()

	const n = 8
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		ok         int
		ineligible int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.uc.Submit(ctx, submitInput(member, 5000, 2))
			mu.Lock()
			defer mu.Unlock()
			var ie *loan.IneligibleError
			switch {
			case err == nil:
				ok++
			case errors.As(err, &ie):
				ineligible++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || ineligible != n-1 {
		t.Fatalf("want 1 success and %d refusals, got %d and %d", n-1, ok, ineligible)
	}
}

func TestRecordPayment_ConcurrentPaymentsAllCounted(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	ctx := context.Background()
	l := mustApprovedLoan(t, h)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.uc.RecordPayment(ctx, l.LoanID, monthly(25625)); err != nil {
				t.Errorf("RecordPayment: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := h.uc.Get(ctx, l.LoanID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != loan.StatusCompleted || got.Outstanding != 0 {
		t.Fatalf("unexpected loan after concurrent payoff: %+v", got)
	}
}

func TestSubmit_ValidationErrors(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	ctx := context.Background()

	self := submitInput(member, 1000, 1)
	self.Guarantor1ID = member
	var ve *loan.ValidationError
	if _, err := h.uc.Submit(ctx, self); !errors.As(err, &ve) {
		t.Fatalf("self-guarantee: want ValidationError, got %v", err)
	}

	var te *loan.InvalidTermError
	if _, err := h.uc.Submit(ctx, submitInput(member, 0, 6)); !errors.As(err, &te) {
		t.Fatalf("zero amount: want InvalidTermError, got %v", err)
	}
	if _, err := h.uc.Submit(ctx, submitInput(member, 1000, 0)); !errors.As(err, &te) {
		t.Fatalf("zero duration: want InvalidTermError, got %v", err)
	}
	neg := -1.0
	in := submitInput(member, 1000, 1)
	in.InterestRate = &neg
	if _, err := h.uc.Submit(ctx, in); !errors.As(err, &te) {
		t.Fatalf("negative rate: want InvalidTermError, got %v", err)
	}
}

func TestSchedule_ProjectedUntilApproved(t *testing.T) {
	h := newHarness(t, OverpaymentAccept)
	ctx := context.Background()

	l, err := h.uc.Submit(ctx, submitInput(member, 150000, 6))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	s, err := h.uc.Schedule(ctx, l.LoanID)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !s.Projected || len(s.Installments) != 6 {
		t.Fatalf("unexpected projected schedule: %+v", s)
	}
	if _, err := h.uc.Approve(ctx, l.LoanID, DecisionInput{DecidedBy: admin}); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	s, _ = h.uc.Schedule(ctx, l.LoanID)
	if s.Projected {
		t.Fatalf("schedule still projected after approval")
	}
	var sum int64
	for _, in := range s.Installments {
		sum += in.Amount
	}
	if sum != l.TotalAmount {
		t.Fatalf("installments sum %d, want %d", sum, l.TotalAmount)
	}
}

// --- error propagation through mocks ---

func mockUsecase(loans *loanmock.Repo, pays *paymentmock.Repo) *Usecase {
	return NewUsecase(uowmock.Passthrough(uow.Repos{Loans: loans, Payments: pays}), nil, Options{})
}

func TestSubmit_HistoryFailureIsLookupError(t *testing.T) {
	created := false
	uc := mockUsecase(&loanmock.Repo{
		ListByMemberIDFn: func(ctx context.Context, memberID string) ([]loan.LoanApplication, error) {
			return nil, errors.New("db down")
		},
		CreateFn: func(ctx context.Context, l *loan.LoanApplication) error {
			created = true
			return nil
		},
	}, &paymentmock.Repo{})

	_, err := uc.Submit(context.Background(), submitInput(member, 1000, 1))
	var le *loan.LookupError
	if !errors.As(err, &le) {
		t.Fatalf("want LookupError, got %v", err)
	}
	if created {
		t.Fatalf("application created despite failed eligibility read")
	}
}

func TestSubmit_CreateFailureIsPersistenceError(t *testing.T) {
	uc := mockUsecase(&loanmock.Repo{
		ListByMemberIDFn: func(ctx context.Context, memberID string) ([]loan.LoanApplication, error) {
			return nil, nil
		},
		CreateFn: func(ctx context.Context, l *loan.LoanApplication) error {
			return errors.New("disk full")
		},
	}, &paymentmock.Repo{})

	_, err := uc.Submit(context.Background(), submitInput(member, 1000, 1))
	var pe *loan.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("want PersistenceError, got %v", err)
	}
}

func TestRecordPayment_SumFailureIsLookupError(t *testing.T) {
	approved := &loan.LoanApplication{ID: 7, LoanID: "L1", Status: loan.StatusApproved, TotalAmount: 1000}
	uc := mockUsecase(&loanmock.Repo{
		GetByLoanIDForUpdateFn: func(ctx context.Context, loanID string) (*loan.LoanApplication, error) {
			return approved, nil
		},
	}, &paymentmock.Repo{
		SumByLoanIDFn: func(ctx context.Context, loanNumericID uint64) (int64, error) {
			return 0, errors.New("timeout")
		},
	})

	_, err := uc.RecordPayment(context.Background(), "L1", monthly(100))
	var le *loan.LookupError
	if !errors.As(err, &le) {
		t.Fatalf("want LookupError, got %v", err)
	}
}

func TestApprove_SaveFailureIsPersistenceError(t *testing.T) {
	uc := mockUsecase(&loanmock.Repo{
		GetByLoanIDForUpdateFn: func(ctx context.Context, loanID string) (*loan.LoanApplication, error) {
			return &loan.LoanApplication{ID: 1, LoanID: loanID, Status: loan.StatusPending}, nil
		},
		SaveFn: func(ctx context.Context, l *loan.LoanApplication) error {
			return errors.New("deadlock")
		},
	}, &paymentmock.Repo{})

	_, err := uc.Approve(context.Background(), "L2", DecisionInput{DecidedBy: admin})
	var pe *loan.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("want PersistenceError, got %v", err)
	}
}

func TestGet_ReadFailureIsLookupError(t *testing.T) {
	uc := mockUsecase(&loanmock.Repo{
		GetByLoanIDFn: func(ctx context.Context, loanID string) (*loan.LoanApplication, error) {
			return nil, errors.New("connection reset")
		},
	}, &paymentmock.Repo{})

	_, err := uc.OutstandingBalance(context.Background(), "L3")
	var le *loan.LookupError
	if !errors.As(err, &le) {
		t.Fatalf("want LookupError, got %v", err)
	}
}
