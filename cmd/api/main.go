package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/makersrow/makersrow-backend/api/routes"
	"github.com/makersrow/makersrow-backend/internal/analytics/capture"
	"github.com/makersrow/makersrow-backend/internal/dispatch"
	"github.com/makersrow/makersrow-backend/internal/events"
	"github.com/makersrow/makersrow-backend/internal/inventory"
	"github.com/makersrow/makersrow-backend/internal/orders"
	"github.com/makersrow/makersrow-backend/internal/products"
	"github.com/makersrow/makersrow-backend/internal/refunds"
	"github.com/makersrow/makersrow-backend/internal/tenants"
	"github.com/makersrow/makersrow-backend/pkg/config"
	"github.com/makersrow/makersrow-backend/pkg/db"
	"github.com/makersrow/makersrow-backend/pkg/email"
	"github.com/makersrow/makersrow-backend/pkg/idempotency"
	"github.com/makersrow/makersrow-backend/pkg/logger"
	"github.com/makersrow/makersrow-backend/pkg/metrics"
	"github.com/makersrow/makersrow-backend/pkg/migrate"
	"github.com/makersrow/makersrow-backend/pkg/pubsub"
	"github.com/makersrow/makersrow-backend/pkg/redis"
	"github.com/makersrow/makersrow-backend/pkg/stripe"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	requireResource(ctx, logg, "stripe", err)
	resources := stripe.NewResources(stripeClient)

	registry := prometheus.NewRegistry()
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	tenantRepo := tenants.NewRepository(dbClient.DB())
	tenantService, err := tenants.NewService(tenantRepo, logg)
	requireResource(ctx, logg, "tenant service", err)

	productRepo := products.NewRepository(dbClient.DB())

	stockLedger, err := inventory.NewLedger(dbClient.DB(), logg, webhookMetrics)
	requireResource(ctx, logg, "inventory ledger", err)

	orderRepo := orders.NewRepository(dbClient.DB())
	materializer, err := orders.NewMaterializer(orderRepo, productRepo, tenantService, stockLedger, resources, logg)
	requireResource(ctx, logg, "order materializer", err)

	refundRepo := refunds.NewRepository(dbClient.DB())
	refundEngine, err := refunds.NewEngine(refundRepo, orderRepo, tenantRepo, resources, logg)
	requireResource(ctx, logg, "refund engine", err)

	guard, err := idempotency.NewManager(redisClient, cfg.Webhook.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	eventLedger, err := events.NewLedger(dbClient.DB(), guard)
	requireResource(ctx, logg, "event ledger", err)

	runner, err := dispatch.NewRunner(logg)
	requireResource(ctx, logg, "dispatch runner", err)

	var mailer *email.Client
	if cfg.FeatureFlags.SendEmails {
		mailer, err = email.NewClient(ctx, cfg.Sendgrid, logg)
		requireResource(ctx, logg, "sendgrid", err)
	}

	var captureService *capture.Service
	if cfg.FeatureFlags.Capture {
		captureService, err = capture.NewService(capture.NewGCPPublisher(pubsubClient.AnalyticsPublisher()), logg)
		requireResource(ctx, logg, "analytics capture", err)
	}

	notifier, err := events.NewNotifier(runner, mailer, captureService, tenantRepo, cfg.Sendgrid, cfg.FeatureFlags, logg)
	requireResource(ctx, logg, "notifier", err)

	admitter, err := events.NewService(events.ServiceParams{
		Ledger:   eventLedger,
		Orders:   materializer,
		Refunds:  refundEngine,
		Accounts: tenantService,
		Notifier: notifier,
		Metrics:  webhookMetrics,
		DevMode:  cfg.App.IsDev(),
		Logger:   logg,
	})
	requireResource(ctx, logg, "event admitter", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			DB:     dbClient,
			Redis:  redisClient,
			PubSub: pubsubClient,
		}, admitter, stripeClient, registry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
