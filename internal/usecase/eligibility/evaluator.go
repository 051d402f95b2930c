package eligibility

import (
	"context"
	"errors"
	"fmt"

	"coop-loan-ledger/internal/domain/loan"
)

type Result struct {
	Eligible          bool   `json:"eligible"`
	Reason            string `json:"reason,omitempty"`
	MaxEligibleAmount *int64 `json:"max_eligible_amount,omitempty"`
}

func eligible() Result { return Result{Eligible: true} }

func ineligible(reason string, max *int64) Result {
	return Result{Reason: reason, MaxEligibleAmount: max}
}

// Input is what every rule sees: the request plus the member's loan history.
type Input struct {
	MemberID        string
	RequestedAmount int64
	History         []loan.LoanApplication
}

// Rule returns an ineligible Result to short-circuit evaluation. A returned error
// aborts evaluation and must already be a *loan.LookupError.
type Rule interface {
	Name() string
	Check(ctx context.Context, in Input) (Result, error)
}

var errNoRepository = errors.New("eligibility: no loan repository bound")

// Evaluator applies the one-active-loan rule followed by any extra rules, in order.
type Evaluator struct {
	loans loan.Repository
	rules []Rule
}

// NewEvaluator reads history through loans. A nil loans is only valid for an
// evaluator that is re-bound with WithLoans before Evaluate is called.
func NewEvaluator(loans loan.Repository, extra ...Rule) *Evaluator {
	rules := append([]Rule{ActiveLoanRule{}}, extra...)
	return &Evaluator{loans: loans, rules: rules}
}

// WithLoans returns a copy reading history through r (e.g. a tx-bound repository).
func (e *Evaluator) WithLoans(r loan.Repository) *Evaluator {
	return &Evaluator{loans: r, rules: e.rules}
}

func (e *Evaluator) Rules() []string {
	out := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.Name())
	}
	return out
}

func (e *Evaluator) Evaluate(ctx context.Context, memberID string, requestedAmount int64) (Result, error) {
	if e.loans == nil {
		return Result{}, &loan.LookupError{Resource: "loan history", Key: memberID, Err: errNoRepository}
	}
	history, err := e.loans.ListByMemberID(ctx, memberID)
	if err != nil {
		return Result{}, &loan.LookupError{Resource: "loan history", Key: memberID, Err: err}
	}
	in := Input{MemberID: memberID, RequestedAmount: requestedAmount, History: history}
	for _, r := range e.rules {
		res, err := r.Check(ctx, in)
		if err != nil {
			return Result{}, err
		}
		if !res.Eligible {
			return res, nil
		}
	}
	return eligible(), nil
}

// ActiveLoanRule enforces one pending-or-approved application per member.
type ActiveLoanRule struct{}

func (ActiveLoanRule) Name() string { return "active_loan" }

func (ActiveLoanRule) Check(_ context.Context, in Input) (Result, error) {
	for _, l := range in.History {
		if l.Status.Active() {
			return ineligible(loan.ReasonActiveApplication, nil), nil
		}
	}
	return eligible(), nil
}

func lookupErr(resource, memberID string, err error) error {
	return &loan.LookupError{Resource: resource, Key: memberID, Err: fmt.Errorf("%s: %w", resource, err)}
}
