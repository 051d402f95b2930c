package db

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// OpenGorm opens the ledger store. dsn is a MySQL DSN or a SQLite file path.
func OpenGorm(driver, dsn string, log *zap.Logger) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch driver {
	case DriverMySQL:
		dial = mysql.Open(dsn)
	case DriverSQLite:
		dial = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := OpenGormWithDialector(dial)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// one writer at a time; SQLite serializes writes anyway
		sqlDB, _ := db.DB()
		sqlDB.SetMaxOpenConns(1)
	}
	if log != nil {
		log.Info("gorm: connected", zap.String("driver", driver))
	}
	return db, nil
}

// OpenGormWithDialector configures the pool and pings once.
func OpenGormWithDialector(dial gorm.Dialector) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:               logger.Default.LogMode(logger.Warn),
		DisableAutomaticPing: true,
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}
