package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"callcenter-billing/internal/config"
	"callcenter-billing/internal/domain/ports/adapter"
	"callcenter-billing/internal/infra/db/postgres"
	"callcenter-billing/internal/infra/logging"
	"callcenter-billing/internal/infra/metrics"
	"callcenter-billing/internal/infra/payment"
	redisinfra "callcenter-billing/internal/infra/redis"
	"callcenter-billing/internal/infra/sched"
	"callcenter-billing/internal/infra/web"
	"callcenter-billing/internal/usecase"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connect failed")
	}
	defer pool.Close()

	redisCli, err := redisinfra.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connect failed")
	}
	defer redisCli.Close()

	var gateway adapter.PaymentGateway
	var verifier adapter.WebhookVerifier
	switch cfg.Gateway.Provider {
	case "noop":
		gateway = payment.NewNoopGateway()
		verifier = payment.NoopWebhookVerifier{}
	default:
		pp := payment.NewPayPalGateway(cfg.Gateway.PayPal)
		gateway = pp
		verifier = payment.NewPayPalWebhookVerifier(pp, cfg.Gateway.PayPal.WebhookID)
	}

	payments := postgres.NewPaymentRepo(pool)
	subscriptions := postgres.NewSubscriptionRepo(pool)
	invoices := postgres.NewInvoiceRepo(pool)
	tm := postgres.NewTxManager(pool)

	locker := redisinfra.NewLocker(redisCli)
	dedup := redisinfra.NewEventDedup(redisCli, cfg.Redis.TTL)

	payUC := usecase.NewPaymentUseCase(payments, invoices, gateway, tm, locker, cfg.Gateway.DefaultCurrency, logger)
	subUC := usecase.NewSubscriptionUseCase(subscriptions, gateway, nil, logger)
	hookUC := usecase.NewWebhookUseCase(payments, invoices, subscriptions, tm, verifier, dedup, logger)

	reconciler := sched.NewPaymentReconciler(payUC, payments, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	auth := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.SessionTTL)
	server := web.NewServer(payUC, subUC, hookUC, auth, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start(cfg.Server.Port) }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server exited")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
}
