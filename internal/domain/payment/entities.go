package payment

import "time"

type Type string

const (
	TypeMonthly Type = "monthly"
	TypePartial Type = "partial"
	TypeFull    Type = "full"
)

func (t Type) Valid() bool {
	switch t {
	case TypeMonthly, TypePartial, TypeFull:
		return true
	}
	return false
}

type Method string

const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodMobileMoney  Method = "mobile_money"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodMobileMoney:
		return true
	}
	return false
}

// Table: loan_payments. Rows are append-only.
type LoanPayment struct {
	ID uint64 `gorm:"primaryKey;column:id" json:"-"`
	// Public identifier (32-char lowercase hex), assigned by the repository
	PaymentID string `gorm:"column:payment_id;size:32;not null;uniqueIndex:ux_loan_payments_payment_id" json:"payment_id"`
	// FK to loan_applications.id (numeric)
	LoanID     uint64    `gorm:"column:loan_id;not null;index" json:"-"`
	Amount     int64     `gorm:"column:amount;not null" json:"amount"`
	PaidAt     time.Time `gorm:"column:paid_at;not null" json:"paid_at"`
	Type       Type      `gorm:"column:type;type:varchar(16);not null" json:"type"`
	Method     Method    `gorm:"column:method;type:varchar(16);not null" json:"method"`
	Note       string    `gorm:"column:note;type:text" json:"note,omitempty"`
	RecordedBy string    `gorm:"column:recorded_by;size:32" json:"recorded_by,omitempty"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (LoanPayment) TableName() string { return "loan_payments" }

// Total sums payment amounts.
func Total(ps []LoanPayment) int64 {
	var sum int64
	for _, p := range ps {
		sum += p.Amount
	}
	return sum
}
