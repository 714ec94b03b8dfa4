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

	"webshop-payments/internal/config"
	"webshop-payments/internal/domain/ports/adapter"
	pg "webshop-payments/internal/infra/db/postgres"
	"webshop-payments/internal/infra/logging"
	"webshop-payments/internal/infra/metrics"
	"webshop-payments/internal/infra/provider/targetpay"
	red "webshop-payments/internal/infra/redis"
	"webshop-payments/internal/infra/sched"
	"webshop-payments/internal/infra/web"
	"webshop-payments/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	bus := red.NewBus(redisClient)

	// ---- Repositories ----
	payRepo := pg.NewPaymentRepo(pool)

	// ---- Provider gateways ----
	tp := cfg.Payment.Targetpay
	urls := web.NewCallbackURLs("targetpay", tp.CallbackSecret)
	gateways := []adapter.ProviderGateway{
		targetpay.NewGateway(tp, targetpay.Ideal(), urls, logger),
		targetpay.NewGateway(tp, targetpay.CreditCard(tp.LegacyCreditcard), urls, logger),
		targetpay.NewGateway(tp, targetpay.MrCash(), urls, logger),
	}

	// ---- Use cases ----
	payUC := usecase.NewPaymentUseCase(payRepo, gateways, bus, logger)

	// ---- HTTP ----
	metrics.MustRegister()
	srv := web.NewServer(payUC, tp.CallbackSecret, logger)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Routes(),
	}
	go func() {
		logger.Info().Int("port", cfg.Server.Port).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Scheduled reconciliation ----
	reconciler := sched.NewPaymentReconciler(payUC, payRepo, locker, logger,
		cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, cfg.Reconciler.Limit)
	go reconciler.Start(ctx)

	// ---- Signals ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.Info().Str("signal", s.String()).Msg("shutting down")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown failed")
	}
}
