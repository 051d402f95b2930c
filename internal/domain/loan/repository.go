package loan

import "context"

// Repository returns ErrNotFound for missing rows; any other error is a storage failure.
type Repository interface {
	// Create assigns LoanID when empty.
	Create(ctx context.Context, l *LoanApplication) error
	Save(ctx context.Context, l *LoanApplication) error
	GetByLoanID(ctx context.Context, loanID string) (*LoanApplication, error)
	// Locks the row until the surrounding transaction ends.
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*LoanApplication, error)
	// Most recent first.
	ListByMemberID(ctx context.Context, memberID string) ([]LoanApplication, error)
	// Locks the member's application rows so concurrent submissions queue up.
	LockMember(ctx context.Context, memberID string) error
	ListAll(ctx context.Context) ([]LoanApplication, error)
}
