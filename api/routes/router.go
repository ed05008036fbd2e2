package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tramar/pcbuilder-backend/api/controllers"
	cartcontrollers "github.com/tramar/pcbuilder-backend/api/controllers/cart"
	ordercontrollers "github.com/tramar/pcbuilder-backend/api/controllers/orders"
	paymentcontrollers "github.com/tramar/pcbuilder-backend/api/controllers/payments"
	webhookcontrollers "github.com/tramar/pcbuilder-backend/api/controllers/webhooks"
	"github.com/tramar/pcbuilder-backend/api/middleware"
	"github.com/tramar/pcbuilder-backend/internal/cart"
	checkoutsvc "github.com/tramar/pcbuilder-backend/internal/checkout"
	"github.com/tramar/pcbuilder-backend/internal/inventory"
	"github.com/tramar/pcbuilder-backend/internal/orders"
	"github.com/tramar/pcbuilder-backend/internal/payments"
	"github.com/tramar/pcbuilder-backend/pkg/config"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
	"github.com/tramar/pcbuilder-backend/pkg/metrics"
	"github.com/tramar/pcbuilder-backend/pkg/types"
)

// RedisStore is the slice of the redis client the HTTP layer uses.
type RedisStore interface {
	middleware.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type restocker interface {
	Restock(ctx context.Context, productID uuid.UUID, qty int, actor types.Actor) (*inventory.RestockResult, error)
}

// Dependencies are the services mounted on the router. Redis, DB and the
// metrics handler are optional.
type Dependencies struct {
	DB             controllers.Pinger
	Redis          RedisStore
	Checkout       checkoutsvc.Service
	Orders         orders.Service
	Payments       payments.Service
	Webhook        *payments.Webhook
	Cart           cart.Service
	Inventory      restocker
	HTTPMetrics    *metrics.HTTPMetrics
	MetricsHandler http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	readiness := map[string]controllers.Pinger{"db": deps.DB}
	var idempotencyStore middleware.IdempotencyStore
	var limiter interface {
		FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	}
	if deps.Redis != nil {
		readiness["redis"] = deps.Redis
		idempotencyStore = deps.Redis
		limiter = deps.Redis
	}
	idempotent := middleware.Idempotency(idempotencyStore, logg)
	placementLimit := middleware.RateLimit(
		middleware.NewRateLimitPolicy("order-placement", cfg.Orders.PlacementRateLimit, cfg.Orders.PlacementRateWindow),
		limiter,
		logg,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	stripeWebhook := webhookcontrollers.StripeWebhook(nil, logg)
	if deps.Webhook != nil {
		stripeWebhook = webhookcontrollers.StripeWebhook(deps.Webhook, logg)
	}
	// Signature verification needs the untouched body, so the webhook sits
	// outside Auth and the body-reading middleware.
	r.Post("/api/payment/webhook", stripeWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/api/orders", func(r chi.Router) {
			r.With(placementLimit, idempotent).Post("/", ordercontrollers.Place(deps.Checkout, logg))
			r.Get("/mine", ordercontrollers.ListMine(deps.Orders, logg))
			r.Get("/myorders", ordercontrollers.ListMine(deps.Orders, logg))
			r.With(middleware.RequireAdmin(logg)).Get("/", ordercontrollers.ListAll(deps.Orders, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
			r.Put("/{orderId}/pay", ordercontrollers.ConfirmPayment(deps.Payments, logg))
			r.With(idempotent).Post("/{orderId}/cancel", ordercontrollers.Cancel(deps.Orders, logg))
			r.With(middleware.RequireAdmin(logg)).Put("/{orderId}/deliver", ordercontrollers.Deliver(deps.Orders, logg))
			r.With(middleware.RequireAdmin(logg)).Put("/{orderId}/collect", ordercontrollers.CollectCash(deps.Payments, logg))
		})

		r.With(idempotent).Post("/api/payment/create-payment-intent", paymentcontrollers.CreatePaymentIntent(deps.Payments, logg))

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", cartcontrollers.Fetch(deps.Cart, logg))
			r.Post("/", cartcontrollers.AddItem(deps.Cart, logg))
			r.Delete("/", cartcontrollers.Clear(deps.Cart, logg))
			r.Put("/{itemId}", cartcontrollers.UpdateItem(deps.Cart, logg))
			r.Delete("/{itemId}", cartcontrollers.RemoveItem(deps.Cart, logg))
		})

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin(logg))
			r.With(idempotent).Post("/products/{productId}/restock", controllers.AdminRestockProduct(deps.Inventory, logg))
		})
	})

	return r
}
