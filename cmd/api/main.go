package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeldelgado/deliverydash-backend/api/controllers"
	"github.com/angeldelgado/deliverydash-backend/api/routes"
	"github.com/angeldelgado/deliverydash-backend/internal/dispatch"
	"github.com/angeldelgado/deliverydash-backend/internal/drivers"
	"github.com/angeldelgado/deliverydash-backend/internal/ledger"
	"github.com/angeldelgado/deliverydash-backend/internal/orders"
	"github.com/angeldelgado/deliverydash-backend/internal/realtime"
	"github.com/angeldelgado/deliverydash-backend/pkg/config"
	"github.com/angeldelgado/deliverydash-backend/pkg/db"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
	"github.com/angeldelgado/deliverydash-backend/pkg/metrics"
	"github.com/angeldelgado/deliverydash-backend/pkg/migrate"
	"github.com/angeldelgado/deliverydash-backend/pkg/outbox"
	"github.com/angeldelgado/deliverydash-backend/pkg/redis"
	"github.com/angeldelgado/deliverydash-backend/pkg/telegram"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	dispatchMetrics := metrics.NewDispatchMetrics(prometheus.DefaultRegisterer)

	hub := realtime.NewHub(cfg.Realtime, logg)
	go hub.Run(context.Background())

	var engine controllers.Dispatcher
	if cfg.FeatureFlags.TelegramEnabled {
		tgClient, err := telegram.NewClient(context.Background(), cfg.Telegram, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create telegram client", err)
			os.Exit(1)
		}

		executor, err := dispatch.NewExecutor(tgClient, ledgerSvc, hub, dispatchMetrics, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create dispatch executor", err)
			os.Exit(1)
		}

		eng, err := dispatch.NewEngine(ordersSvc, driversSvc, ledgerSvc, executor, cfg.Dispatch, dispatchMetrics, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to create dispatch engine", err)
			os.Exit(1)
		}
		engine = eng
	} else {
		logg.Warn(context.Background(), "telegram disabled, driver dispatch is inert")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, driversSvc, ordersSvc, engine, hub),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
