package ledger

import (
	"time"

	"coop-loan-ledger/internal/domain/loan"
	"coop-loan-ledger/internal/domain/payment"
	"coop-loan-ledger/internal/usecase/terms"
)

type SubmitInput struct {
	MemberID       string
	Amount         int64
	Purpose        string
	DurationMonths int
	InterestRate   *float64 // nil → configured default
	Guarantor1ID   string
	Guarantor2ID   *string
}

type DecisionInput struct {
	Note      string
	DecidedBy string // admin member id
}

type PaymentInput struct {
	Amount     int64
	Type       payment.Type
	Method     payment.Method
	Note       string
	PaidAt     time.Time // zero → now
	RecordedBy string
}

type LoanDTO struct {
	LoanID         string      `json:"loan_id"`
	MemberID       string      `json:"member_id"`
	Guarantor1ID   string      `json:"guarantor1_id"`
	Guarantor2ID   *string     `json:"guarantor2_id,omitempty"`
	Purpose        string      `json:"purpose,omitempty"`
	Amount         int64       `json:"amount"`
	DurationMonths int         `json:"duration_months"`
	InterestRate   float64     `json:"interest_rate"`
	MonthlyPayment int64       `json:"monthly_payment"`
	TotalAmount    int64       `json:"total_amount"`
	InterestAmount int64       `json:"interest_amount"`
	Status         loan.Status `json:"status"`
	AppliedAt      time.Time   `json:"applied_at"`
	ApprovedAt     *time.Time  `json:"approved_at,omitempty"`
	DecidedAt      *time.Time  `json:"decided_at,omitempty"`
	DecidedBy      string      `json:"decided_by,omitempty"`
	DecisionNote   string      `json:"decision_note,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	PaidToDate     int64       `json:"paid_to_date"`
	Outstanding    int64       `json:"outstanding_balance"`
}

type PaymentDTO struct {
	PaymentID  string         `json:"payment_id"`
	LoanID     string         `json:"loan_id"`
	Amount     int64          `json:"amount"`
	PaidAt     time.Time      `json:"paid_at"`
	Type       payment.Type   `json:"type"`
	Method     payment.Method `json:"method"`
	Note       string         `json:"note,omitempty"`
	RecordedBy string         `json:"recorded_by,omitempty"`
}

// PaymentResult is the recorded payment plus the loan position right after it.
// Excess is the part of Amount above the balance that was outstanding before the payment.
type PaymentResult struct {
	PaymentDTO
	Outstanding int64       `json:"outstanding_balance"`
	Excess      int64       `json:"excess,omitempty"`
	LoanStatus  loan.Status `json:"loan_status"`
}

type ScheduleDTO struct {
	LoanID string `json:"loan_id"`
	// Projected is true until the loan is approved; due dates then count from the application date.
	Projected    bool                `json:"projected"`
	Installments []terms.Installment `json:"installments"`
}

func toLoanDTO(l *loan.LoanApplication, paid int64) *LoanDTO {
	return &LoanDTO{
		LoanID:         l.LoanID,
		MemberID:       l.MemberID,
		Guarantor1ID:   l.Guarantor1ID,
		Guarantor2ID:   l.Guarantor2ID,
		Purpose:        l.Purpose,
		Amount:         l.Amount,
		DurationMonths: l.DurationMonths,
		InterestRate:   l.InterestRate,
		MonthlyPayment: l.MonthlyPayment,
		TotalAmount:    l.TotalAmount,
		InterestAmount: l.InterestAmount,
		Status:         l.Status,
		AppliedAt:      l.AppliedAt,
		ApprovedAt:     l.ApprovedAt,
		DecidedAt:      l.DecidedAt,
		DecidedBy:      l.DecidedBy,
		DecisionNote:   l.DecisionNote,
		CompletedAt:    l.CompletedAt,
		PaidToDate:     paid,
		Outstanding:    l.Outstanding(paid),
	}
}

func toPaymentDTO(p *payment.LoanPayment, loanID string) PaymentDTO {
	return PaymentDTO{
		PaymentID:  p.PaymentID,
		LoanID:     loanID,
		Amount:     p.Amount,
		PaidAt:     p.PaidAt,
		Type:       p.Type,
		Method:     p.Method,
		Note:       p.Note,
		RecordedBy: p.RecordedBy,
	}
}
