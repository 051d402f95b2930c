package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	AppPort  string
	LogLevel string

	DBDriver      string // mysql | sqlite
	DBAutoMigrate bool

	MySQLHost string
	MySQLPort string
	MySQLDB   string
	MySQLUser string
	MySQLPass string

	SQLitePath string

	RedisAddr string
	RedisDB   int

	IdempTTLSecs int

	DefaultInterestRate float64
	OverpaymentPolicy   string // accept | reject

	ShutdownTimeoutSecs int
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

func getenvFloat(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return d
}

func getenvBool(k string, d bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return d
}

func Load() *Config {
	return &Config{
		AppPort:  getenv("APP_PORT", "8080"),
		LogLevel: strings.ToLower(getenv("LOG_LEVEL", "info")),

		DBDriver:      strings.ToLower(getenv("DB_DRIVER", "mysql")),
		DBAutoMigrate: getenvBool("DB_AUTO_MIGRATE", true),

		MySQLHost: getenv("MYSQL_HOST", "mysql"),
		MySQLPort: getenv("MYSQL_PORT", "3306"),
		MySQLDB:   getenv("MYSQL_DB", "coop_ledger"),
		MySQLUser: getenv("MYSQL_USER", "coop"),
		MySQLPass: getenv("MYSQL_PASS", "coop"),

		SQLitePath: getenv("SQLITE_PATH", "coop-ledger.db"),

		RedisAddr: getenv("REDIS_ADDR", "redis:6379"),
		RedisDB:   getenvInt("REDIS_DB", 0),

		IdempTTLSecs: getenvInt("IDEMPOTENCY_TTL_SECONDS", 300),

		DefaultInterestRate: getenvFloat("DEFAULT_INTEREST_RATE", 5),
		OverpaymentPolicy:   strings.ToLower(getenv("OVERPAYMENT_POLICY", "accept")),

		ShutdownTimeoutSecs: getenvInt("SHUTDOWN_TIMEOUT_SECONDS", 10),
	}
}

func (c *Config) Validate() error {
	if c.AppPort == "" {
		return errors.New("missing APP_PORT")
	}
	switch c.DBDriver {
	case "mysql":
		if c.MySQLHost == "" || c.MySQLPort == "" || c.MySQLDB == "" || c.MySQLUser == "" {
			return errors.New("missing MySQL config (MYSQL_HOST/PORT/DB/USER)")
		}
		// ensure port is valid
		if _, err := net.LookupPort("tcp", c.MySQLPort); err != nil {
			return fmt.Errorf("invalid MYSQL_PORT %q: %w", c.MySQLPort, err)
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("missing SQLITE_PATH")
		}
	default:
		return fmt.Errorf("invalid DB_DRIVER %q (want mysql or sqlite)", c.DBDriver)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	if c.OverpaymentPolicy != "accept" && c.OverpaymentPolicy != "reject" {
		return fmt.Errorf("invalid OVERPAYMENT_POLICY %q (want accept or reject)", c.OverpaymentPolicy)
	}
	if c.DefaultInterestRate < 0 {
		return fmt.Errorf("invalid DEFAULT_INTEREST_RATE %v", c.DefaultInterestRate)
	}
	if c.IdempTTLSecs <= 0 {
		return fmt.Errorf("invalid IDEMPOTENCY_TTL_SECONDS %d", c.IdempTTLSecs)
	}
	if c.ShutdownTimeoutSecs <= 0 {
		return fmt.Errorf("invalid SHUTDOWN_TIMEOUT_SECONDS %d", c.ShutdownTimeoutSecs)
	}
	return nil
}

func (c *Config) mysqlAddr() string { return net.JoinHostPort(c.MySQLHost, c.MySQLPort) }

func (c *Config) MySQLDSN() string {
	// parseTime needed for DATETIME
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&charset=utf8mb4,utf8",
		c.MySQLUser, c.MySQLPass, c.mysqlAddr(), c.MySQLDB)
}

// DSN is what db.OpenGorm expects for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return c.MySQLDSN()
}
