package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"edtech-enrollment/internal/config"
	"edtech-enrollment/internal/domain/model"
	"edtech-enrollment/internal/domain/ports/adapter"
	"edtech-enrollment/internal/domain/ports/repository"
	"edtech-enrollment/internal/infra/adapters/notify"
	"edtech-enrollment/internal/infra/db/migrations"
	pg "edtech-enrollment/internal/infra/db/postgres"
	httpapi "edtech-enrollment/internal/infra/http"
	"edtech-enrollment/internal/infra/i18n"
	"edtech-enrollment/internal/infra/logging"
	"edtech-enrollment/internal/infra/metrics"
	"edtech-enrollment/internal/infra/payment"
	red "edtech-enrollment/internal/infra/redis"
	"edtech-enrollment/internal/infra/sched"
	"edtech-enrollment/internal/infra/worker"
	"edtech-enrollment/internal/usecase"
)

type serveOptions struct {
	autoMigrate bool
}

func serveCmd(flags *rootFlags) *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, webhook receiver and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.autoMigrate, "migrate", false, "apply pending schema migrations before serving")
	return cmd
}

func runServe(parent context.Context, flags *rootFlags, opts serveOptions) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(flags.configPath, flags.dev)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(Version, Commit)

	// ---- Postgres ----
	if opts.autoMigrate {
		changed, err := migrations.Up(cfg.Database.URL)
		if err != nil {
			return err
		}
		logger.Info().Bool("changed", changed).Msg("schema migrations applied")
	}
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis (optional) ----
	var (
		deliveries repository.DeliveryLog
		limiter    httpapi.RateLimiter
		locker     red.Locker
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		deliveries = red.NewDeliveryStore(redisClient)
		limiter = red.NewRateLimiter(redisClient)
		locker = red.NewLocker(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; delivery de-duplication, rate limiting and sweep locking are disabled")
	}

	// ---- Repositories ----
	enrollmentRepo := pg.NewEnrollmentRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)

	// ---- Notifications ----
	tr := i18n.MustDefault()
	notifiers := []adapter.Notifier{notify.NewLogNotifier(logger, tr, cfg.Runtime.Dev)}
	if cfg.Notify.Telegram.Token != "" {
		tn, err := notify.NewTelegramNotifier(cfg.Notify.Telegram, tr)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifier disabled")
		} else {
			notifiers = append(notifiers, tn)
		}
	}
	workers := worker.NewPool(cfg.Notify.Workers, cfg.Notify.QueueSize, logger)
	workers.Start(ctx)
	defer workers.Stop()
	notifyUC := usecase.NewNotificationUseCase(workers, notifiers, 10*time.Second, logger)

	// ---- Use cases ----
	gateway := payment.NewPaystackGateway(cfg.Paystack)
	prices := make(model.PriceTable, len(cfg.Pricing.AgeBands))
	for band, price := range cfg.Pricing.AgeBands {
		prices[model.AgeBand(band)] = price
	}
	enrollUC := usecase.NewEnrollmentUseCase(enrollmentRepo, paymentRepo, subRepo, gateway, usecase.EnrollmentConfig{
		Prices:       prices,
		Currency:     cfg.Paystack.Currency,
		Channels:     cfg.Paystack.Channels,
		PublicOrigin: cfg.Server.PublicOrigin,
		Dev:          cfg.Runtime.Dev,
	}, logger)
	reconcileUC := usecase.NewReconcileUseCase(enrollmentRepo, paymentRepo, subRepo, tm, deliveries, gateway, notifyUC,
		usecase.ReconcileConfig{Currency: cfg.Paystack.Currency, DeliveryTTL: cfg.Redis.TTL}, logger)

	// ---- HTTP ----
	srv := httpapi.NewServer(cfg.Server, httpapi.Deps{
		Enrollments:     enrollUC,
		Reconciler:      reconcileUC,
		Limiter:         limiter,
		Auth:            httpapi.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.SecureCookie, cfg.Admin.SessionTTL),
		AdminAPIKey:     cfg.Admin.APIKey,
		WebhookSecret:   cfg.Paystack.SecretKey,
		InitializeLimit: cfg.RateLimit.InitializePerMinute,
		Translator:      tr,
		Health:          pool.Ping,
		Dev:             cfg.Runtime.Dev,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().Msg("shutdown requested")
		return srv.Shutdown(shutdownCtx)
	})

	// ---- Background workers ----
	g.Go(func() error {
		pg.ReportPoolStats(gctx, pool, 15*time.Second)
		return nil
	})
	g.Go(func() error { return ignoreCanceled(sched.NewStatsWorker(time.Minute, enrollmentRepo, logger).Run(gctx)) })
	if cfg.Reconciler.Enabled {
		sweeper := sched.NewPendingSweeper(reconcileUC, enrollmentRepo, locker, sched.SweeperConfig{
			Interval:   cfg.Reconciler.Interval,
			StaleAfter: cfg.Reconciler.StaleAfter,
			MaxAge:     cfg.Reconciler.MaxAge,
			BatchSize:  cfg.Reconciler.BatchSize,
		}, logger)
		g.Go(func() error { return ignoreCanceled(sweeper.Run(gctx)) })
	}

	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
