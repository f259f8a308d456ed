package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/internal/cart"
	"github.com/angelmondragon/storefront-orders/internal/catalog"
	"github.com/angelmondragon/storefront-orders/internal/coupons"
	"github.com/angelmondragon/storefront-orders/internal/customers"
	"github.com/angelmondragon/storefront-orders/internal/orders"
	"github.com/angelmondragon/storefront-orders/internal/shipping"
	"github.com/angelmondragon/storefront-orders/internal/totals"
	"github.com/angelmondragon/storefront-orders/pkg/db"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
	"github.com/angelmondragon/storefront-orders/pkg/idgen"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
	"github.com/angelmondragon/storefront-orders/pkg/metrics"
	"github.com/angelmondragon/storefront-orders/pkg/outbox"
)

// FailurePolicy decides what happens when one vendor order fails to persist.
type FailurePolicy string

const (
	AbortOnVendorFailure FailurePolicy = "abort"
	RetryVendorOnce      FailurePolicy = "retry_once"
)

const (
	courierTitle      = "Courier Charges"
	couponDiscountKey = "coupon"
)

// ConfirmInput is a checkout submission. PaymentAddressID defaults to the
// shipping address.
type ConfirmInput struct {
	CustomerID        uint64
	PaymentMethod     string
	AgreeTerms        bool
	ShippingAddressID uint64
	PaymentAddressID  uint64
	Comment           string
	Coupon            string
}

// Result lists the orders a checkout produced. OrderID is set for single
// vendor checkouts, ParentOrderID for split ones.
type Result struct {
	OrderID         uint64          `json:"order_id,omitempty"`
	ParentOrderID   string          `json:"parent_order_id,omitempty"`
	OrderIDs        []uint64        `json:"order_ids"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentRequired bool            `json:"payment_required"`
	Total           decimal.Decimal `json:"total"`
}

type Service interface {
	Confirm(ctx context.Context, input ConfirmInput) (*Result, error)
}

type ServiceParams struct {
	Tx        db.TxRunner
	Cart      cart.Source
	Customers customers.Directory
	Vendors   catalog.VendorLookup
	Rates     shipping.CourierRates
	Coupons   coupons.Lookup
	Persister *orders.Persister
	Methods   *Registry
	IDs       *idgen.Generator
	TaxRate   decimal.Decimal
	Policy    FailurePolicy
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
}

type service struct {
	tx        db.TxRunner
	cart      cart.Source
	customers customers.Directory
	vendors   catalog.VendorLookup
	rates     shipping.CourierRates
	coupons   coupons.Lookup
	persister *orders.Persister
	methods   *Registry
	ids       *idgen.Generator
	taxRate   decimal.Decimal
	policy    FailurePolicy
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case p.Cart == nil:
		return nil, fmt.Errorf("cart source required")
	case p.Customers == nil:
		return nil, fmt.Errorf("customer directory required")
	case p.Vendors == nil:
		return nil, fmt.Errorf("vendor lookup required")
	case p.Rates == nil:
		return nil, fmt.Errorf("courier rates required")
	case p.Coupons == nil:
		return nil, fmt.Errorf("coupon lookup required")
	case p.Persister == nil:
		return nil, fmt.Errorf("order persister required")
	case p.Methods == nil:
		return nil, fmt.Errorf("payment method registry required")
	case p.IDs == nil:
		return nil, fmt.Errorf("id generator required")
	case p.TaxRate.IsNegative():
		return nil, fmt.Errorf("tax rate must not be negative")
	}
	policy := p.Policy
	if policy == "" {
		policy = AbortOnVendorFailure
	}
	return &service{
		tx:        p.Tx,
		cart:      p.Cart,
		customers: p.Customers,
		vendors:   p.Vendors,
		rates:     p.Rates,
		coupons:   p.Coupons,
		persister: p.Persister,
		methods:   p.Methods,
		ids:       p.IDs,
		taxRate:   p.TaxRate,
		policy:    policy,
		metrics:   p.Metrics,
		logg:      p.Logger,
	}, nil
}

// vendorPlan is one vendor order ready to persist.
type vendorPlan struct {
	group VendorGroup
	plan  orders.OrderPlan
}

// Confirm turns the customer's cart into one order per vendor. Everything that
// can fail validation is checked before the transaction opens.
func (s *service) Confirm(ctx context.Context, input ConfirmInput) (*Result, error) {
	if input.CustomerID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "customer required")
	}
	if !input.AgreeTerms {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "terms and conditions must be accepted").
			WithDetails(map[string]any{"field": "agree_terms"})
	}
	if input.ShippingAddressID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required").
			WithDetails(map[string]any{"field": "address_id"})
	}
	method, err := s.methods.Lookup(input.PaymentMethod)
	if err != nil {
		return nil, err
	}

	customer, err := s.customers.Customer(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	shippingAddr, err := s.customers.Address(ctx, input.CustomerID, input.ShippingAddressID)
	if err != nil {
		return nil, err
	}
	paymentAddr := shippingAddr
	if input.PaymentAddressID != 0 && input.PaymentAddressID != input.ShippingAddressID {
		if paymentAddr, err = s.customers.Address(ctx, input.CustomerID, input.PaymentAddressID); err != nil {
			return nil, err
		}
	}

	snapshot, err := s.cart.Snapshot(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	vendorOf, err := s.vendors.VendorsFor(ctx, snapshot.ProductIDs())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve vendors")
	}
	groups, err := SplitByVendor(snapshot.Lines, vendorOf)
	if err != nil {
		return nil, err
	}

	var coupon *models.Coupon
	if code := strings.TrimSpace(input.Coupon); code != "" {
		if coupon, err = s.coupons.Find(ctx, code); err != nil {
			return nil, err
		}
		AllocateDiscount(groups, coupons.Discount(coupon, CartSubTotal(groups)))
	}

	plans := make([]vendorPlan, 0, len(groups))
	for _, group := range groups {
		plan, err := s.buildPlan(ctx, group, customer, shippingAddr, paymentAddr, method, coupon, input.Comment)
		if err != nil {
			return nil, err
		}
		plans = append(plans, vendorPlan{group: group, plan: plan})
	}

	result := &Result{
		PaymentMethod:   string(method.Code()),
		PaymentRequired: method.RequiresGateway(),
	}
	var parentID string
	if len(plans) > 1 {
		parentID = s.ids.ParentOrderID()
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		courier := decimal.Zero
		total := decimal.Zero
		orderIDs := make([]uint64, 0, len(plans))
		for _, vp := range plans {
			order, err := s.persistVendor(ctx, tx, vp.plan)
			if err != nil {
				return err
			}
			orderIDs = append(orderIDs, order.OrderID)
			courier = courier.Add(order.CourierCharge)
			total = total.Add(order.Total)

			if coupon != nil && vp.group.Discount.IsPositive() {
				if err := s.coupons.RecordUsageTx(ctx, tx, coupons.Usage{
					CouponID:   coupon.CouponID,
					OrderID:    order.OrderID,
					CustomerID: customer.CustomerID,
					Amount:     vp.group.Discount,
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record coupon usage")
				}
			}
		}

		if parentID != "" {
			if _, err := s.persister.CreateParent(ctx, tx, orders.ParentPlan{
				ParentOrderID: parentID,
				CustomerID:    customer.CustomerID,
				OrderIDs:      orderIDs,
				CourierCharge: courier,
				Total:         total,
				Actor:         actorFor(customer.CustomerID),
			}); err != nil {
				return err
			}
		}

		if err := method.Settle(ctx, tx, orderIDs); err != nil {
			return err
		}
		if err := s.cart.ClearTx(ctx, tx, customer.CustomerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
		}

		result.OrderIDs = orderIDs
		result.Total = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	shape := "single"
	if parentID != "" {
		result.ParentOrderID = parentID
		shape = "split"
	} else {
		result.OrderID = result.OrderIDs[0]
	}
	s.metrics.IncConfirmed(result.PaymentMethod, shape)
	logCtx := s.logg.WithFields(s.logg.WithCustomerID(ctx, customer.CustomerID), map[string]any{
		"order_ids":       result.OrderIDs,
		"parent_order_id": parentID,
		"payment_method":  result.PaymentMethod,
		"total":           result.Total.StringFixed(2),
	})
	s.logg.Info(logCtx, "checkout confirmed")
	return result, nil
}

func (s *service) buildPlan(
	ctx context.Context,
	group VendorGroup,
	customer *models.Customer,
	shippingAddr, paymentAddr *models.Address,
	method PaymentMethod,
	coupon *models.Coupon,
	comment string,
) (orders.OrderPlan, error) {
	charge, err := s.rates.ChargeFor(ctx, shippingAddr.Postcode, group.VendorID)
	if err != nil {
		return orders.OrderPlan{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve courier charge")
	}

	in := totals.Input{
		Lines:          make([]totals.Line, 0, len(group.Lines)),
		Shipping:       &totals.Shipping{Title: courierTitle, Cost: charge},
		TaxRatePercent: s.taxRate,
	}
	lines := make([]orders.PlanLine, 0, len(group.Lines))
	for _, line := range group.Lines {
		tl := line.TotalsLine()
		in.Lines = append(in.Lines, tl)
		unit, err := totals.UnitPrice(tl)
		if err != nil {
			return orders.OrderPlan{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart line").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		options := make([]orders.PlanOption, 0, len(line.Options))
		for _, opt := range line.Options {
			options = append(options, orders.PlanOption{Name: opt.Name, Value: opt.Value, Price: opt.Price, Prefix: opt.Prefix})
		}
		lines = append(lines, orders.PlanLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Model:     line.Model,
			Quantity:  line.Quantity,
			UnitPrice: unit,
			Total:     unit.Mul(decimal.NewFromInt(int64(line.Quantity))),
			Tax:       unit.Mul(s.taxRate).Div(decimal.NewFromInt(100)).Round(2),
			Options:   options,
		})
	}
	if coupon != nil && group.Discount.IsPositive() {
		in.Discounts = append(in.Discounts, totals.Discount{
			Code:   couponDiscountKey,
			Title:  fmt.Sprintf("Coupon (%s)", coupon.Code),
			Amount: group.Discount,
		})
	}
	summary, err := totals.Calculate(in)
	if err != nil {
		return orders.OrderPlan{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "compute order totals")
	}

	return orders.OrderPlan{
		VendorID: group.VendorID,
		Customer: orders.Customer{
			ID:        customer.CustomerID,
			Firstname: customer.Firstname,
			Lastname:  customer.Lastname,
			Email:     customer.Email,
			Telephone: customer.Telephone,
		},
		PaymentAddress:  customers.Snapshot(paymentAddr),
		ShippingAddress: customers.Snapshot(shippingAddr),
		PaymentMethod:   method.Title(),
		PaymentCode:     method.Code(),
		Comment:         strings.TrimSpace(comment),
		Status:          enums.OrderStatusPending,
		Lines:           lines,
		Summary:         summary,
		Actor:           actorFor(customer.CustomerID),
	}, nil
}

// persistVendor writes one vendor order inside a savepoint so a failed attempt
// leaves the rest of the checkout transaction intact.
func (s *service) persistVendor(ctx context.Context, tx *gorm.DB, plan orders.OrderPlan) (*models.Order, error) {
	attempts := 1
	if s.policy == RetryVendorOnce {
		attempts = 2
	}
	var (
		order *models.Order
		err   error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		err = db.Savepoint(tx, func(sp *gorm.DB) error {
			var createErr error
			order, createErr = s.persister.Create(ctx, sp, plan)
			return createErr
		})
		if err == nil {
			return order, nil
		}
		s.metrics.IncVendorFailure(string(s.policy))
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"vendor_id": plan.VendorID,
			"attempt":   attempt,
			"policy":    string(s.policy),
		})
		s.logg.Warn(logCtx, "vendor order failed to persist")
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			break
		}
	}
	if pkgerrors.As(err) != nil {
		return nil, err
	}
	return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("persist order for vendor %d", plan.VendorID))
}

func actorFor(customerID uint64) *outbox.ActorRef {
	return &outbox.ActorRef{CustomerID: customerID, Role: "customer", Source: "checkout"}
}
