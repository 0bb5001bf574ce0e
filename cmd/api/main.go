package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/loterodev/swapmarket-backend/api/controllers"
	"github.com/loterodev/swapmarket-backend/api/routes"
	"github.com/loterodev/swapmarket-backend/internal/fulfillment"
	"github.com/loterodev/swapmarket-backend/internal/notifications"
	"github.com/loterodev/swapmarket-backend/internal/payments"
	"github.com/loterodev/swapmarket-backend/internal/products"
	"github.com/loterodev/swapmarket-backend/internal/users"
	shippingwebhook "github.com/loterodev/swapmarket-backend/internal/webhooks/shipping"
	"github.com/loterodev/swapmarket-backend/pkg/config"
	"github.com/loterodev/swapmarket-backend/pkg/db"
	"github.com/loterodev/swapmarket-backend/pkg/logger"
	"github.com/loterodev/swapmarket-backend/pkg/metrics"
	"github.com/loterodev/swapmarket-backend/pkg/migrate"
	"github.com/loterodev/swapmarket-backend/pkg/outbox"
	"github.com/loterodev/swapmarket-backend/pkg/pubsub"
	"github.com/loterodev/swapmarket-backend/pkg/redis"
	"github.com/loterodev/swapmarket-backend/pkg/stripe"
)

const shutdownGrace = 15 * time.Second

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

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	fulfillmentMetrics := metrics.NewFulfillmentMetrics(registry)

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)
	usersRepo := users.NewRepository(gormDB)
	catalog := products.NewCatalog(gormDB)

	ledger, err := payments.NewLedger(payments.NewLedgerRepository(gormDB), dbClient, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payout ledger", err)
		os.Exit(1)
	}
	processor := payments.NewStripeProcessor(stripeClient, cfg.Payouts)
	disburser, err := payments.NewDisburser(processor, usersRepo, ledger, logg, fulfillmentMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create disburser", err)
		os.Exit(1)
	}

	notificationsRepo := notifications.NewRepository(gormDB)
	notificationsService, err := notifications.NewService(notificationsRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}
	dispatcher, err := notifications.NewDispatcher(
		notificationsRepo,
		usersRepo,
		catalog,
		notifications.NewTopicPublisher(pubsubClient.PushPublisher()),
		notifications.NewTopicPublisher(pubsubClient.EmailPublisher()),
		logg,
		fulfillmentMetrics,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	fulfillmentRepo := fulfillment.NewRepository(gormDB)
	syncer, err := fulfillment.NewSyncer(dbClient, fulfillmentRepo, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create syncer", err)
		os.Exit(1)
	}
	engine, err := fulfillment.NewEngine(fulfillment.EngineParams{
		Guard:     fulfillment.NewIdempotencyGuard(fulfillmentRepo, logg),
		Syncer:    syncer,
		Payments:  processor,
		Disburser: disburser,
		Notifier:  dispatcher,
		DB:        dbClient,
		Events:    outboxService,
		Logger:    logg,
		Metrics:   fulfillmentMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create transition engine", err)
		os.Exit(1)
	}

	webhookService, err := shippingwebhook.NewService(engine, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shipping webhook service", err)
		os.Exit(1)
	}
	webhookGuard, err := shippingwebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.EventDedupTTL, "shipping-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook idempotency guard", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(routes.RouterParams{
		Config: cfg,
		Logger: logg,
		Health: controllers.HealthDeps{
			DB:     dbClient,
			Redis:  redisClient,
			PubSub: pubsubClient,
		},
		Engine:               engine,
		NotificationsService: notificationsService,
		Ledger:               ledger,
		WebhookService:       webhookService,
		WebhookGuard:         webhookGuard,
		Redis:                redisClient,
		Metrics:              registry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
