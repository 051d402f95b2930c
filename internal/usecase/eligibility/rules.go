package eligibility

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Collaborator sources for the optional rules. They live outside the ledger
// (savings accounts, membership registry, collections) and are injected.

type SavingsSource interface {
	SavingsBalance(ctx context.Context, memberID string) (int64, error)
}

type MembershipSource interface {
	JoinedAt(ctx context.Context, memberID string) (time.Time, error)
}

type DefaultHistorySource interface {
	HasDefaulted(ctx context.Context, memberID string) (bool, error)
}

const (
	ReasonSavingsCeiling     = "requested amount exceeds savings-based ceiling"
	ReasonMembershipDuration = "membership duration below minimum"
	ReasonPriorDefault       = "prior default on record"
)

// SavingsCeilingRule caps a request at Multiplier × the member's savings balance.
type SavingsCeilingRule struct {
	Savings    SavingsSource
	Multiplier float64
}

func (SavingsCeilingRule) Name() string { return "savings_ceiling" }

func (r SavingsCeilingRule) Check(ctx context.Context, in Input) (Result, error) {
	bal, err := r.Savings.SavingsBalance(ctx, in.MemberID)
	if err != nil {
		return Result{}, lookupErr("savings balance", in.MemberID, err)
	}
	ceiling := decimal.NewFromInt(bal).Mul(decimal.NewFromFloat(r.Multiplier)).Floor().IntPart()
	if in.RequestedAmount > ceiling {
		return ineligible(ReasonSavingsCeiling, &ceiling), nil
	}
	return eligible(), nil
}

// MembershipDurationRule requires MinMonths of membership before the first application.
type MembershipDurationRule struct {
	Members   MembershipSource
	MinMonths int
	Now       func() time.Time
}

func (MembershipDurationRule) Name() string { return "membership_duration" }

func (r MembershipDurationRule) Check(ctx context.Context, in Input) (Result, error) {
	joined, err := r.Members.JoinedAt(ctx, in.MemberID)
	if err != nil {
		return Result{}, lookupErr("membership", in.MemberID, err)
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	if joined.AddDate(0, r.MinMonths, 0).After(now()) {
		return ineligible(ReasonMembershipDuration, nil), nil
	}
	return eligible(), nil
}

type DefaultHistoryRule struct {
	Defaults DefaultHistorySource
}

func (DefaultHistoryRule) Name() string { return "default_history" }

func (r DefaultHistoryRule) Check(ctx context.Context, in Input) (Result, error) {
	defaulted, err := r.Defaults.HasDefaulted(ctx, in.MemberID)
	if err != nil {
		return Result{}, lookupErr("default history", in.MemberID, err)
	}
	if defaulted {
		return ineligible(ReasonPriorDefault, nil), nil
	}
	return eligible(), nil
}
