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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tramar/pcbuilder-backend/api/routes"
	"github.com/tramar/pcbuilder-backend/internal/cart"
	"github.com/tramar/pcbuilder-backend/internal/checkout"
	"github.com/tramar/pcbuilder-backend/internal/inventory"
	"github.com/tramar/pcbuilder-backend/internal/orders"
	"github.com/tramar/pcbuilder-backend/internal/payments"
	"github.com/tramar/pcbuilder-backend/internal/pricing"
	"github.com/tramar/pcbuilder-backend/internal/products"
	"github.com/tramar/pcbuilder-backend/pkg/config"
	"github.com/tramar/pcbuilder-backend/pkg/db"
	"github.com/tramar/pcbuilder-backend/pkg/instance"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
	"github.com/tramar/pcbuilder-backend/pkg/metrics"
	"github.com/tramar/pcbuilder-backend/pkg/migrate"
	"github.com/tramar/pcbuilder-backend/pkg/outbox"
	"github.com/tramar/pcbuilder-backend/pkg/redis"
	pkgstripe "github.com/tramar/pcbuilder-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

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

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	engine, err := pricing.NewEngine(cfg.Pricing)
	if err != nil {
		logg.Error(context.Background(), "invalid pricing config", err)
		os.Exit(1)
	}

	orderMetrics := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)
	httpMetrics := metrics.NewHTTPMetrics(prometheus.DefaultRegisterer)

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ledger := inventory.NewLedger()
	orderRepo := orders.NewRepository(dbClient.DB())

	gateway, err := payments.NewStripeGateway(stripeClient.PaymentIntents())
	if err != nil {
		logg.Error(context.Background(), "failed to create payment gateway", err)
		os.Exit(1)
	}

	cartSvc, err := cart.NewService(cart.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Tx:        dbClient,
		Products:  products.NewRepository(dbClient.DB()),
		Orders:    orderRepo,
		Inventory: ledger,
		Cart:      cartSvc,
		Pricing:   engine,
		Outbox:    outboxSvc,
		Metrics:   orderMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	ordersSvc, err := orders.NewService(orderRepo, dbClient, outboxSvc, ledger, gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Orders:   orderRepo,
		Tx:       dbClient,
		Outbox:   outboxSvc,
		Gateway:  gateway,
		Currency: cfg.Pricing.Currency,
		Metrics:  orderMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	guard, err := payments.NewEventGuard(redisClient, cfg.Stripe.EventTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook event guard", err)
		os.Exit(1)
	}

	webhook, err := payments.NewWebhook(payments.WebhookParams{
		Verifier: stripeClient.Verifier(),
		Guard:    guard,
		Payments: paymentsSvc,
		Orders:   orderRepo,
		Tx:       dbClient,
		Outbox:   outboxSvc,
		Currency: cfg.Pricing.Currency,
		Metrics:  orderMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook handler", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(cfg, logg, routes.Dependencies{
		DB:             dbClient,
		Redis:          redisClient,
		Checkout:       checkoutSvc,
		Orders:         ordersSvc,
		Payments:       paymentsSvc,
		Webhook:        webhook,
		Cart:           cartSvc,
		Inventory:      inventory.NewService(dbClient, ledger, outboxSvc, logg),
		HTTPMetrics:    httpMetrics,
		MetricsHandler: promhttp.Handler(),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server shutting down gracefully")
	}
}
