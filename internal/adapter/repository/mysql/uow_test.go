package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	loanDomain "coop-loan-ledger/internal/domain/loan"
	"coop-loan-ledger/internal/domain/uow"
	"coop-loan-ledger/internal/testutil/dbtest"
)

func TestGormUoW_WithinTx_Commit(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	guow := NewGormUoW(db)
	loanRepo := NewLoanRepository(db)
	payRepo := NewPaymentRepository(db)

	var loanID string
	err := guow.WithinTx(ctx, func(r uow.Repos) error {
		l := makeLoan("BR-1", time.Now())
		if err := r.Loans.Create(ctx, l); err != nil {
			return err
		}
		if l.ID == 0 {
			t.Fatalf("loan auto ID not set")
		}
		loanID = l.LoanID
		return r.Payments.Create(ctx, makePayment(l.ID, 1000, time.Now()))
	})
	if err != nil {
		t.Fatalf("WithinTx commit err: %v", err)
	}

	l, err := loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		t.Fatalf("loan not visible after commit: %v", err)
	}
	if sum, _ := payRepo.SumByLoanID(ctx, l.ID); sum != 1000 {
		t.Fatalf("payment not visible after commit, sum=%d", sum)
	}
}

func TestGormUoW_WithinTx_Rollback(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	guow := NewGormUoW(db)
	loanRepo := NewLoanRepository(db)
	payRepo := NewPaymentRepository(db)

	sentinel := errors.New("boom")

	var loanID string
	err := guow.WithinTx(ctx, func(r uow.Repos) error {
		l := makeLoan("BR-2", time.Now())
		if err := r.Loans.Create(ctx, l); err != nil {
			return err
		}
		loanID = l.LoanID
		if err := r.Payments.Create(ctx, makePayment(l.ID, 500, time.Now())); err != nil {
			return err
		}
		return sentinel // force rollback
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel, got %v", err)
	}

	if _, err := loanRepo.GetByLoanID(ctx, loanID); !errors.Is(err, loanDomain.ErrNotFound) {
		t.Fatalf("expected loan not found after rollback, got %v", err)
	}
	if all, _ := payRepo.ListAll(ctx); len(all) != 0 {
		t.Fatalf("expected no payments after rollback, got %d", len(all))
	}
}

func TestGormUoW_WithinLoanTx_Commit(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	guow := NewGormUoW(db)
	loanRepo := NewLoanRepository(db)

	seed := makeLoan("BR-3", time.Now().Add(-time.Hour))
	if err := loanRepo.Create(ctx, seed); err != nil {
		t.Fatalf("seed loan: %v", err)
	}

	if err := guow.WithinLoanTx(ctx, seed.LoanID, func(r uow.Repos, l *loanDomain.LoanApplication) error {
		if l == nil || l.LoanID != seed.LoanID || l.Status != loanDomain.StatusPending {
			t.Fatalf("unexpected loan passed to fn: %+v", l)
		}
		if err := l.Transition("approve", loanDomain.StatusApproved); err != nil {
			return err
		}
		return r.Loans.Save(ctx, l)
	}); err != nil {
		t.Fatalf("WithinLoanTx commit err: %v", err)
	}

	got, err := loanRepo.GetByLoanID(ctx, seed.LoanID)
	if err != nil {
		t.Fatalf("GetByLoanID post-commit: %v", err)
	}
	if got.Status != loanDomain.StatusApproved {
		t.Fatalf("loan status not updated, got=%s", got.Status)
	}
}

func TestGormUoW_WithinLoanTx_Rollback(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	guow := NewGormUoW(db)
	loanRepo := NewLoanRepository(db)

	seed := makeLoan("BR-4", time.Now())
	if err := loanRepo.Create(ctx, seed); err != nil {
		t.Fatalf("seed loan: %v", err)
	}

	sentinel := errors.New("stop")
	_ = guow.WithinLoanTx(ctx, seed.LoanID, func(r uow.Repos, l *loanDomain.LoanApplication) error {
		l.Status = loanDomain.StatusApproved
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		return sentinel // force rollback
	})

	got, err := loanRepo.GetByLoanID(ctx, seed.LoanID)
	if err != nil {
		t.Fatalf("post-rollback GetByLoanID: %v", err)
	}
	if got.Status != loanDomain.StatusPending {
		t.Fatalf("expected pending after rollback, got %s", got.Status)
	}
}

func TestGormUoW_WithinLoanTx_LoanNotFound(t *testing.T) {
	db := dbtest.Open(t)
	guow := NewGormUoW(db)

	err := guow.WithinLoanTx(context.Background(), "LN-NOPE", func(r uow.Repos, l *loanDomain.LoanApplication) error {
		t.Fatalf("callback should not be called when loan missing")
		return nil
	})
	if !errors.Is(err, loanDomain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGormUoW_WithinMemberTx(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	guow := NewGormUoW(db)

	err := guow.WithinMemberTx(ctx, "BR-5", func(r uow.Repos) error {
		existing, err := r.Loans.ListByMemberID(ctx, "BR-5")
		if err != nil {
			return err
		}
		if len(existing) != 0 {
			t.Fatalf("expected no loans, got %d", len(existing))
		}
		return r.Loans.Create(ctx, makeLoan("BR-5", time.Now()))
	})
	if err != nil {
		t.Fatalf("WithinMemberTx: %v", err)
	}

	got, _ := NewLoanRepository(db).ListByMemberID(ctx, "BR-5")
	if len(got) != 1 {
		t.Fatalf("want 1 loan after commit, got %d", len(got))
	}
}

func TestGormUoW_ClosedDB(t *testing.T) {
	db := dbtest.Open(t)
	sqlDB, _ := db.DB()
	_ = sqlDB.Close()

	err := NewGormUoW(db).WithinMemberTx(context.Background(), "BR-6", func(r uow.Repos) error {
		t.Fatalf("callback should not run")
		return nil
	})
	if err == nil {
		t.Fatalf("expected error on closed db")
	}
}
