package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angeldelgado/deliverydash-backend/api/controllers"
	"github.com/angeldelgado/deliverydash-backend/api/middleware"
	"github.com/angeldelgado/deliverydash-backend/internal/drivers"
	"github.com/angeldelgado/deliverydash-backend/internal/orders"
	"github.com/angeldelgado/deliverydash-backend/internal/realtime"
	"github.com/angeldelgado/deliverydash-backend/pkg/config"
	"github.com/angeldelgado/deliverydash-backend/pkg/db"
	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
	"github.com/angeldelgado/deliverydash-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	driverService drivers.Service,
	orderService orders.Service,
	engine controllers.Dispatcher,
	hub *realtime.Hub,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	// A nil client must stay nil behind the interfaces the middlewares take.
	var idemStore redis.IdempotencyStore
	if redisClient != nil {
		idemStore = redisClient
	}

	actionPolicy := middleware.NewActionRateLimitPolicy(
		"driver-action",
		cfg.ActionLimit.Window,
		cfg.ActionLimit.IPLimit,
		cfg.ActionLimit.DriverLimit,
	)

	// Inline dispatch runs the first broadcast inside the create request;
	// otherwise the dispatch worker picks the order up from the outbox.
	inlineEngine := engine
	if !cfg.FeatureFlags.InlineDispatch {
		inlineEngine = nil
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger(redisClient)))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/telegram", controllers.TelegramWebhook(cfg.Telegram.WebhookSecret, driverService, engine, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(orderService, inlineEngine, logg))
			r.Get("/", controllers.OrderList(orderService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(orderService, logg))
			r.Post("/{orderId}/status", controllers.OrderTransitionStatus(orderService, engine, logg))
		})

		r.Route("/drivers", func(r chi.Router) {
			r.Post("/", controllers.DriverRegister(driverService, logg))
			r.Get("/", controllers.DriverList(driverService, logg))
			r.Get("/{driverId}", controllers.DriverDetail(driverService, logg))
			r.Post("/{driverId}/status", controllers.DriverSetStatus(driverService, engine, logg))
			r.Post("/{driverId}/heartbeat", controllers.DriverHeartbeat(driverService, engine, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.ActionRateLimit(actionPolicy, limiterStore(redisClient), logg))
				r.Post("/{driverId}/accept", controllers.DriverAccept(engine, logg))
				r.Post("/{driverId}/refuse", controllers.DriverRefuse(engine, logg))
			})
		})

		r.Get("/realtime/drivers/{driverId}", controllers.DriverRealtime(hub, driverService, engine, cfg.Realtime, logg))
	})

	return r
}

func limiterStore(client *redis.Client) middleware.RateLimiterStore {
	if client == nil {
		return nil
	}
	return client
}

func redisPinger(client *redis.Client) controllers.Pinger {
	if client == nil {
		return nil
	}
	return client
}
