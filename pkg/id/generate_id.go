package id

import (
	"strings"

	"github.com/google/uuid"
)

// NewID32 returns a random (v4) UUID rendered as 32 lowercase hex characters,
// the format used for every public identifier (loan_id, payment_id, member ids).
func NewID32() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Valid reports whether s is a 32-char lowercase hex identifier.
func Valid(s string) bool {
	if len(s) != 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
