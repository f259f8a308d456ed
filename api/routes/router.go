package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-orders/api/controllers"
	ordercontrollers "github.com/angelmondragon/storefront-orders/api/controllers/orders"
	paymentcontrollers "github.com/angelmondragon/storefront-orders/api/controllers/payments"
	webhookcontrollers "github.com/angelmondragon/storefront-orders/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-orders/api/middleware"
	checkoutsvc "github.com/angelmondragon/storefront-orders/internal/checkout"
	"github.com/angelmondragon/storefront-orders/internal/orders"
	"github.com/angelmondragon/storefront-orders/internal/payments"
	"github.com/angelmondragon/storefront-orders/pkg/config"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
	"github.com/angelmondragon/storefront-orders/pkg/metrics"
	"github.com/angelmondragon/storefront-orders/pkg/redis"
)

// Deps carries everything the HTTP surface is wired to. A nil service makes
// its routes answer 500 instead of panicking.
type Deps struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency redis.IdempotencyStore
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics

	Checkout checkoutsvc.Service
	Orders   orders.Service
	Payments payments.Service
	Refunds  paymentcontrollers.Refunder
	Webhooks webhookcontrollers.RazorpayIngestor
}

func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	logg := d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Metrics(d.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, d.DB, d.Redis))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	idempotent := middleware.Idempotency(d.Idempotency, middleware.DefaultIdempotencyRules(cfg.Eventing.IdempotencyTTL), logg)

	r.Route("/api/v1", func(r chi.Router) {
		// The gateway authenticates with the payload signature, not a JWT.
		r.Post("/razorpay/webhook", webhookcontrollers.RazorpayWebhook(d.Webhooks, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.With(middleware.RequireRole(logg, enums.RoleCustomer), idempotent).
				Post("/checkout/confirm", controllers.CheckoutConfirm(d.Checkout, logg))

			r.Route("/razorpay", func(r chi.Router) {
				r.With(middleware.RequireRole(logg, enums.RoleCustomer, enums.RoleAdmin)).
					Post("/create-order", paymentcontrollers.CreateOrder(d.Payments, logg))
				r.With(middleware.RequireRole(logg, enums.RoleCustomer, enums.RoleAdmin)).
					Post("/verify-payment", paymentcontrollers.VerifyPayment(d.Payments, logg))
				r.With(middleware.RequireRole(logg, enums.RoleAdmin), idempotent).
					Post("/refund", paymentcontrollers.Refund(d.Refunds, logg))
			})

			r.Route("/orders/{orderId}", func(r chi.Router) {
				r.With(middleware.RequireRole(logg, enums.RoleAdmin)).
					Post("/status", ordercontrollers.UpdateStatus(d.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.RoleCustomer)).
					Post("/cancel", ordercontrollers.Cancel(d.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.RoleCustomer, enums.RoleAdmin)).
					Get("/history", ordercontrollers.History(d.Orders, logg))
			})
		})
	})

	return r
}
