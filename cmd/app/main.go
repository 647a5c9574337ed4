// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"saas-payments/internal/config"
	"saas-payments/internal/domain/model"
	pg "saas-payments/internal/infra/db/postgres"
	"saas-payments/internal/infra/logging"
	"saas-payments/internal/infra/metrics"
	payment "saas-payments/internal/infra/payment"
	red "saas-payments/internal/infra/redis"
	"saas-payments/internal/infra/sched"
	"saas-payments/internal/infra/web"
	"saas-payments/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = godotenv.Load()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, insecure cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisClient.Close()

	// ---- Plan table ----
	plans := make([]*model.Plan, 0, len(cfg.Plans))
	for _, pc := range cfg.Plans {
		p, err := model.NewPlan(pc.ID, pc.Name, pc.Description, pc.PriceMinorUnits, pc.CreditGrant, model.BillingType(pc.BillingType))
		if err != nil {
			logger.Fatal().Err(err).Str("plan_id", pc.ID).Msg("invalid plan config")
		}
		plans = append(plans, p)
	}
	planRegistry, err := model.NewPlanRegistry(plans)
	if err != nil {
		logger.Fatal().Err(err).Msg("plan registry")
	}

	// ---- Repositories ----
	accountRepo := pg.NewAccountRepoCacheDecorator(pg.NewAccountRepo(pool), redisClient, cfg.Redis.TTL)
	ledgerRepo := pg.NewLedgerRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- Use cases ----
	reconcileUC := usecase.NewReconcileUseCase(accountRepo, ledgerRepo, planRegistry, txManager, logger)
	providerRegistry := payment.NewRegistry(cfg.Payment, planRegistry, logger)
	paymentUC := usecase.NewPaymentUseCase(providerRegistry, planRegistry, paymentRepo, reconcileUC, cfg.Payment.CallTimeout, logger)

	// ---- HTTP API ----
	auth := web.NewAuthManager(cfg.Security.JWTSecret, !cfg.Runtime.Dev, "", cfg.Security.TokenTTL)
	apiServer := web.NewServer(paymentUC, auth, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http api listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Metrics ----
	metrics.MustRegister()
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", metricsServer.Addr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	// ---- Stale-pending verify worker ----
	worker := sched.NewVerifyWorker(paymentUC, paymentRepo, cfg.Worker.Interval, cfg.Worker.StaleAfter, logger)
	go worker.Start(ctx)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
}
