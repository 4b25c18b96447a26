package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

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
	"github.com/angeldelgado/deliverydash-backend/pkg/outbox/idempotency"
	"github.com/angeldelgado/deliverydash-backend/pkg/pubsub"
	"github.com/angeldelgado/deliverydash-backend/pkg/redis"
	"github.com/angeldelgado/deliverydash-backend/pkg/telegram"
)

const processedEventTTL = 24 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "dispatch-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "dispatch-worker"

	logg = logger.New(logger.Options{
		ServiceName: "dispatch-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if !cfg.FeatureFlags.TelegramEnabled {
		logg.Error(context.Background(), "dispatch worker requires telegram", errors.New("telegram is disabled"))
		os.Exit(1)
	}

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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

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

	manager, err := idempotency.NewManager(redisClient, processedEventTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create idempotency manager", err)
		os.Exit(1)
	}

	consumer, err := dispatch.NewConsumer(engine, pubsubClient.DispatchSubscription(), manager, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create dispatch consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting dispatch worker")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "dispatch worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "dispatch worker shutting down gracefully")
}
