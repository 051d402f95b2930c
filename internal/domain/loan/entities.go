package loan

import (
	"time"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

// transitions is the whole lifecycle graph; anything missing here is illegal.
var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCompleted},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal edge out of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool { return len(transitions[s]) == 0 }

// Active statuses block a member from opening another application.
func (s Status) Active() bool { return s == StatusPending || s == StatusApproved }

// Disbursed statuses count towards the money lent out.
func (s Status) Disbursed() bool { return s == StatusApproved || s == StatusCompleted }

const DefaultInterestRate = 5.0

// Table: loan_applications
type LoanApplication struct {
	// Internal numeric PK
	ID uint64 `gorm:"primaryKey;column:id" json:"-"`
	// Public identifier (32-char lowercase hex), assigned by the repository
	LoanID       string  `gorm:"column:loan_id;size:32;not null;uniqueIndex:ux_loan_applications_loan_id" json:"loan_id"`
	MemberID     string  `gorm:"column:member_id;size:32;not null;index:idx_loan_applications_member" json:"member_id"`
	Guarantor1ID string  `gorm:"column:guarantor1_id;size:32;not null" json:"guarantor1_id"`
	Guarantor2ID *string `gorm:"column:guarantor2_id;size:32" json:"guarantor2_id,omitempty"`
	Purpose      string  `gorm:"column:purpose;type:text" json:"purpose"`

	Amount         int64   `gorm:"column:amount;not null" json:"amount"`
	DurationMonths int     `gorm:"column:duration_months;not null" json:"duration_months"`
	InterestRate   float64 `gorm:"column:interest_rate;type:decimal(6,3);not null" json:"interest_rate"`
	MonthlyPayment int64   `gorm:"column:monthly_payment;not null" json:"monthly_payment"`
	TotalAmount    int64   `gorm:"column:total_amount;not null" json:"total_amount"`
	InterestAmount int64   `gorm:"column:interest_amount;not null" json:"interest_amount"`

	Status       Status     `gorm:"column:status;type:varchar(16);not null;default:'pending';index:idx_loan_applications_member" json:"status"`
	AppliedAt    time.Time  `gorm:"column:applied_at;not null" json:"applied_at"`
	ApprovedAt   *time.Time `gorm:"column:approved_at" json:"approved_at,omitempty"`
	DecidedAt    *time.Time `gorm:"column:decided_at" json:"decided_at,omitempty"`
	DecidedBy    string     `gorm:"column:decided_by;size:32" json:"decided_by,omitempty"`
	DecisionNote string     `gorm:"column:decision_note;type:text" json:"decision_note,omitempty"`
	CompletedAt  *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (LoanApplication) TableName() string { return "loan_applications" }

// Transition moves the application to next, or returns an InvalidTransitionError
// naming op and leaves the application untouched.
func (l *LoanApplication) Transition(op string, next Status) error {
	if !l.Status.CanTransitionTo(next) {
		return &InvalidTransitionError{LoanID: l.LoanID, Op: op, From: l.Status}
	}
	l.Status = next
	return nil
}

// Outstanding is total minus paid, floored at zero.
func (l *LoanApplication) Outstanding(paid int64) int64 {
	if rest := l.TotalAmount - paid; rest > 0 {
		return rest
	}
	return 0
}
