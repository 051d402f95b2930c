package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpadp "coop-loan-ledger/internal/adapter/http"
	"coop-loan-ledger/internal/adapter/repository/mysql"
	"coop-loan-ledger/internal/config"
	"coop-loan-ledger/internal/infrastructure/cache"
	"coop-loan-ledger/internal/infrastructure/db"
	"coop-loan-ledger/internal/infrastructure/logger"
	"coop-loan-ledger/internal/infrastructure/metrics"
	"coop-loan-ledger/internal/usecase/eligibility"
	"coop-loan-ledger/internal/usecase/ledger"
	"coop-loan-ledger/internal/usecase/portfolio"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN(), log)
	if err != nil {
		log.Fatal("open database", zap.String("driver", cfg.DBDriver), zap.Error(err))
	}
	if cfg.DBAutoMigrate {
		if err := mysql.AutoMigrate(gdb); err != nil {
			log.Fatal("migrate database", zap.Error(err))
		}
	}

	rdb, err := cache.OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Fatal("open redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	defer func() { _ = rdb.Close() }()

	m := metrics.New()
	tx := mysql.NewGormUoW(gdb)

	defaultRate := cfg.DefaultInterestRate
	ledgerUC := ledger.NewUsecase(tx, eligibility.NewEvaluator(mysql.NewLoanRepository(gdb)), ledger.Options{
		DefaultInterestRate: &defaultRate,
		Overpayment:         ledger.OverpaymentPolicy(cfg.OverpaymentPolicy),
		Logger:              log.Named("ledger"),
		Metrics:             m,
	})
	portfolioUC := portfolio.NewUsecase(tx, portfolio.NoDefaultPolicy{}, log.Named("portfolio"), m)

	e := httpadp.NewRouter(httpadp.RouterDeps{
		Ledger:    ledgerUC,
		Portfolio: portfolioUC,
		Redis:     rdb,
		IdempTTL:  time.Duration(cfg.IdempTTLSecs) * time.Second,
		Logger:    log.Named("http"),
		Metrics:   m,
	})

	addr := ":" + cfg.AppPort
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", addr), zap.String("db_driver", cfg.DBDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSecs)*time.Second)
		defer cancel()
		log.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", zap.Error(err))
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("bye")
}
