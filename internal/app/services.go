// Package app wires the domain services shared by the API server and the
// cron worker.
package app

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/internal/cart"
	"github.com/angelmondragon/storefront-orders/internal/catalog"
	"github.com/angelmondragon/storefront-orders/internal/checkout"
	"github.com/angelmondragon/storefront-orders/internal/coupons"
	"github.com/angelmondragon/storefront-orders/internal/customers"
	"github.com/angelmondragon/storefront-orders/internal/orders"
	"github.com/angelmondragon/storefront-orders/internal/payments"
	"github.com/angelmondragon/storefront-orders/internal/shipping"
	razorpaywebhook "github.com/angelmondragon/storefront-orders/internal/webhooks/razorpay"
	"github.com/angelmondragon/storefront-orders/pkg/config"
	"github.com/angelmondragon/storefront-orders/pkg/db"
	"github.com/angelmondragon/storefront-orders/pkg/idgen"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
	"github.com/angelmondragon/storefront-orders/pkg/metrics"
	"github.com/angelmondragon/storefront-orders/pkg/outbox"
	"github.com/angelmondragon/storefront-orders/pkg/redis"
)

const webhookIdempotencyScope = "razorpay-webhook"

// Database is the transactional handle the services run on.
type Database interface {
	db.TxRunner
	DB() *gorm.DB
}

type Params struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         Database
	Redis      redis.IdempotencyStore
	Gateway    payments.Gateway
	Registerer prometheus.Registerer
}

// Services holds the wired domain services. Payments, Refunds and Webhooks
// are nil when no gateway is configured; Webhooks is also nil without a
// webhook secret or Redis.
type Services struct {
	Checkout checkout.Service
	Orders   orders.Service
	Payments payments.Service
	Refunds  *payments.RefundManager
	Webhooks *razorpaywebhook.Ingestor
}

func Build(p Params) (*Services, error) {
	if p.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if p.DB == nil {
		return nil, fmt.Errorf("database required")
	}
	cfg := p.Config
	logg := p.Logger
	conn := p.DB.DB()

	taxRate, err := cfg.Checkout.TaxRate()
	if err != nil {
		return nil, err
	}
	courierDefault, err := cfg.Checkout.CourierDefault()
	if err != nil {
		return nil, err
	}
	ids, err := idgen.New(cfg.IDGen.NodeID)
	if err != nil {
		return nil, fmt.Errorf("id generator: %w", err)
	}

	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	orderRepo := orders.NewRepository(conn)
	directory := customers.NewDirectory(conn)

	persister, err := orders.NewPersister(orderRepo, emitter, logg)
	if err != nil {
		return nil, err
	}
	machine, err := orders.NewStateMachine(p.DB, orderRepo, emitter, logg)
	if err != nil {
		return nil, err
	}
	orderSvc, err := orders.NewService(orderRepo, p.DB, machine)
	if err != nil {
		return nil, err
	}

	cod, err := checkout.NewCashOnDelivery(machine)
	if err != nil {
		return nil, err
	}
	methods := []checkout.PaymentMethod{cod}
	if p.Gateway != nil {
		methods = append(methods, checkout.Gateway{})
	}

	policy := checkout.AbortOnVendorFailure
	if cfg.Checkout.RetryVendorOnce {
		policy = checkout.RetryVendorOnce
	}

	checkoutSvc, err := checkout.NewService(checkout.ServiceParams{
		Tx:        p.DB,
		Cart:      cart.NewSource(conn),
		Customers: directory,
		Vendors:   catalog.NewVendorLookup(conn),
		Rates:     shipping.NewCourierRates(conn, courierDefault),
		Coupons:   coupons.NewLookup(conn),
		Persister: persister,
		Methods:   checkout.NewRegistry(methods...),
		IDs:       ids,
		TaxRate:   taxRate,
		Policy:    policy,
		Metrics:   metrics.NewCheckoutMetrics(p.Registerer),
		Logger:    logg,
	})
	if err != nil {
		return nil, err
	}

	out := &Services{Checkout: checkoutSvc, Orders: orderSvc}
	if p.Gateway == nil {
		return out, nil
	}

	paymentRepo := payments.NewRepository(conn)
	reconciler, err := payments.NewReconciler(payments.ReconcilerParams{
		Repo:      paymentRepo,
		Orders:    orderRepo,
		Machine:   machine,
		Persister: persister,
		Customers: directory,
		Outbox:    emitter,
		Logger:    logg,
	})
	if err != nil {
		return nil, err
	}
	out.Payments, err = payments.NewService(payments.ServiceParams{
		Tx:         p.DB,
		Repo:       paymentRepo,
		Orders:     orderRepo,
		Customers:  directory,
		Gateway:    p.Gateway,
		Reconciler: reconciler,
		IDs:        ids,
		Currency:   cfg.Razorpay.Currency,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}
	out.Refunds, err = payments.NewRefundManager(p.DB, paymentRepo, p.Gateway, reconciler, ids, logg)
	if err != nil {
		return nil, err
	}

	secret := strings.TrimSpace(cfg.Razorpay.WebhookSecret)
	if secret == "" || p.Redis == nil {
		return out, nil
	}
	guard, err := razorpaywebhook.NewIdempotencyGuard(p.Redis, cfg.Eventing.WebhookIdempotencyTTL, webhookIdempotencyScope)
	if err != nil {
		return nil, err
	}
	out.Webhooks, err = razorpaywebhook.NewIngestor(razorpaywebhook.IngestorParams{
		Tx:         p.DB,
		Repo:       razorpaywebhook.NewRepository(conn),
		Payments:   paymentRepo,
		Reconciler: reconciler,
		Guard:      guard,
		Secret:     secret,
		Metrics:    metrics.NewWebhookMetrics(p.Registerer),
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
