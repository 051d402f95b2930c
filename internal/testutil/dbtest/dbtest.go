// Package dbtest opens migrated in-memory SQLite databases for tests.
package dbtest

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coop-loan-ledger/internal/domain/loan"
	"coop-loan-ledger/internal/domain/payment"
)

// Open returns a fresh in-memory database with both ledger tables.
// The pool is pinned to one connection: every new SQLite ":memory:"
// connection would otherwise see its own empty database.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&loan.LoanApplication{}, &payment.LoanPayment{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}
