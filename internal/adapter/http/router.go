package http

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"coop-loan-ledger/internal/adapter/middleware"
	"coop-loan-ledger/internal/infrastructure/metrics"
	"coop-loan-ledger/internal/usecase/ledger"
	"coop-loan-ledger/internal/usecase/portfolio"
)

type RouterDeps struct {
	Ledger    *ledger.Usecase
	Portfolio *portfolio.Usecase
	Redis     *redis.Client
	IdempTTL  time.Duration
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// NewRouter builds the echo instance with every route of the service.
func NewRouter(d RouterDeps) *echo.Echo {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	e.GET("/health", NewHealthHandler(d.Redis).Health)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	guarded := []echo.MiddlewareFunc{
		middleware.RequireActor(),
		middleware.Idempotency(d.Redis, d.IdempTTL, log),
	}

	lh := NewLoanHandler(d.Ledger, log)
	loans := e.Group("/loans", guarded...)
	loans.POST("", lh.Submit)
	loans.GET("/:loan_id", lh.Get)
	loans.POST("/:loan_id/decision", lh.Decide)
	loans.POST("/:loan_id/payments", lh.RecordPayment)
	loans.GET("/:loan_id/payments", lh.Payments)
	loans.GET("/:loan_id/balance", lh.Balance)
	loans.GET("/:loan_id/schedule", lh.Schedule)

	members := e.Group("/members", guarded...)
	members.GET("/:member_id/loans", lh.MemberLoans)

	ph := NewPortfolioHandler(d.Portfolio, log)
	e.GET("/portfolio/summary", ph.Summary, middleware.RequireActor())

	return e
}
