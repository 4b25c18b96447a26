package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeldelgado/deliverydash-backend/internal/cron"
	"github.com/angeldelgado/deliverydash-backend/internal/dispatch"
	"github.com/angeldelgado/deliverydash-backend/internal/drivers"
	"github.com/angeldelgado/deliverydash-backend/internal/ledger"
	"github.com/angeldelgado/deliverydash-backend/internal/orders"
	"github.com/angeldelgado/deliverydash-backend/pkg/config"
	"github.com/angeldelgado/deliverydash-backend/pkg/db"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
	"github.com/angeldelgado/deliverydash-backend/pkg/metrics"
	"github.com/angeldelgado/deliverydash-backend/pkg/migrate"
	"github.com/angeldelgado/deliverydash-backend/pkg/outbox"
	"github.com/angeldelgado/deliverydash-backend/pkg/redis"
	"github.com/angeldelgado/deliverydash-backend/pkg/telegram"
)

const lockKeyFormat = "dd:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

	driversRepo := drivers.NewRepository(dbClient.DB())
	driversSvc, err := drivers.NewService(driversRepo, dbClient, outboxSvc, cfg.Dispatch.MaxActiveOrdersPerDriver)
	if err != nil {
		logg.Error(context.Background(), "failed to create driver service", err)
		os.Exit(1)
	}

	flagger, err := drivers.NewFlagger(driversRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create driver flagger", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, outboxSvc, flagger)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry()

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	registry.Register(retentionJob)

	if cfg.FeatureFlags.TelegramEnabled {
		tgClient, err := telegram.NewClient(context.Background(), cfg.Telegram, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create telegram client", err)
			os.Exit(1)
		}

		dispatchMetrics := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)
		executor, err := dispatch.NewExecutor(tgClient, ledgerSvc, nil, dispatchMetrics, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create dispatch executor", err)
			os.Exit(1)
		}

		engine, err := dispatch.NewEngine(ordersSvc, driversSvc, ledgerSvc, executor, cfg.Dispatch, dispatchMetrics, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create dispatch engine", err)
			os.Exit(1)
		}

		recheckJob, err := cron.NewDispatchRecheckJob(cron.DispatchRecheckJobParams{
			Logger: logg,
			Engine: engine,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create dispatch recheck job", err)
			os.Exit(1)
		}
		registry.Register(recheckJob)

		cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
			Logger:  logg,
			Ledger:  ledgerSvc,
			Gateway: tgClient,
		})
		if err != nil {
			logg.Error(context.Background(), "failed to create notification cleanup job", err)
			os.Exit(1)
		}
		registry.Register(cleanupJob)
	} else {
		logg.Warn(context.Background(), "telegram disabled, dispatch jobs not scheduled")
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metricsCollector,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
