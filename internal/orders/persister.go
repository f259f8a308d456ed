package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/internal/totals"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
	"github.com/angelmondragon/storefront-orders/pkg/outbox"
)

const (
	createdComment       = "Order created"
	vendorCreatedComment = "created"
)

// Customer is the identity snapshot copied onto the order.
type Customer struct {
	ID        uint64
	Firstname string
	Lastname  string
	Email     string
	Telephone string
}

// PlanOption is a selected product option carried into oc_order_option.
type PlanOption struct {
	Name   string
	Value  string
	Price  decimal.Decimal
	Prefix string
}

// PlanLine is one purchased product. UnitPrice already includes option deltas.
type PlanLine struct {
	ProductID uint64
	Name      string
	Model     string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	Tax       decimal.Decimal
	Options   []PlanOption
}

// OrderPlan is everything needed to write one vendor order.
type OrderPlan struct {
	VendorID        uint64
	ParentOrderID   *string
	Customer        Customer
	PaymentAddress  models.AddressSnapshot
	ShippingAddress models.AddressSnapshot
	PaymentMethod   string
	PaymentCode     enums.PaymentCode
	Comment         string
	Status          enums.OrderStatus
	Lines           []PlanLine
	Summary         *totals.Summary
	Actor           *outbox.ActorRef
}

// ParentPlan groups the child orders of a multi-vendor checkout.
type ParentPlan struct {
	ParentOrderID string
	CustomerID    uint64
	OrderIDs      []uint64
	CourierCharge decimal.Decimal
	Total         decimal.Decimal
	Actor         *outbox.ActorRef
}

// Persister writes orders and their satellite rows inside a caller-owned transaction.
type Persister struct {
	repo   Repository
	outbox outbox.Emitter
	logg   *logger.Logger
}

func NewPersister(repo Repository, emitter outbox.Emitter, logg *logger.Logger) (*Persister, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Persister{repo: repo, outbox: emitter, logg: logg}, nil
}

// Create writes the order header, line items, options, totals, the first
// history entries and the vendor mirrors.
func (p *Persister) Create(ctx context.Context, tx *gorm.DB, plan OrderPlan) (*models.Order, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if err := validatePlan(plan); err != nil {
		return nil, err
	}
	repo := p.repo.WithTx(tx)

	order := &models.Order{
		ParentOrderID:   plan.ParentOrderID,
		VendorID:        plan.VendorID,
		CustomerID:      plan.Customer.ID,
		Firstname:       plan.Customer.Firstname,
		Lastname:        plan.Customer.Lastname,
		Email:           plan.Customer.Email,
		Telephone:       plan.Customer.Telephone,
		PaymentAddress:  plan.PaymentAddress,
		ShippingAddress: plan.ShippingAddress,
		PaymentMethod:   plan.PaymentMethod,
		PaymentCode:     plan.PaymentCode,
		OrderStatusID:   plan.Status,
		Total:           plan.Summary.Total,
		CourierCharge:   plan.Summary.Shipping,
		Comment:         plan.Comment,
	}
	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	mirrors := make([]models.VendorOrderLineItem, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		item := &models.OrderLineItem{
			OrderID:   order.OrderID,
			ProductID: line.ProductID,
			Name:      line.Name,
			Model:     line.Model,
			Quantity:  line.Quantity,
			Price:     line.UnitPrice,
			Total:     line.Total,
			Tax:       line.Tax,
		}
		if err := repo.CreateLineItem(ctx, item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order line item")
		}

		options := make([]models.OrderOption, 0, len(line.Options))
		for _, opt := range line.Options {
			prefix := opt.Prefix
			if prefix == "" {
				prefix = "+"
			}
			options = append(options, models.OrderOption{
				OrderID:        order.OrderID,
				OrderProductID: item.OrderProductID,
				Name:           opt.Name,
				Value:          opt.Value,
				Price:          opt.Price,
				PricePrefix:    prefix,
			})
		}
		if err := repo.CreateOptions(ctx, options); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order options")
		}

		if plan.VendorID != 0 {
			mirrors = append(mirrors, models.VendorOrderLineItem{
				OrderID:        order.OrderID,
				OrderProductID: item.OrderProductID,
				VendorID:       plan.VendorID,
				ProductID:      line.ProductID,
				Name:           line.Name,
				Model:          line.Model,
				Quantity:       line.Quantity,
				Price:          line.UnitPrice,
				Total:          line.Total,
				OrderStatusID:  plan.Status,
			})
		}
	}

	rows := make([]models.OrderTotal, 0, len(plan.Summary.Rows))
	for _, row := range plan.Summary.Rows {
		rows = append(rows, models.OrderTotal{
			OrderID:   order.OrderID,
			Code:      row.Code,
			Title:     row.Title,
			Value:     row.Value,
			SortOrder: row.SortOrder,
		})
	}
	if err := repo.CreateTotals(ctx, rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order totals")
	}

	if err := repo.CreateHistory(ctx, &models.OrderHistory{
		OrderID:       order.OrderID,
		OrderStatusID: plan.Status,
		Comment:       createdComment,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order history")
	}

	if len(mirrors) > 0 {
		if err := repo.CreateVendorLineItems(ctx, mirrors); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create vendor line items")
		}
		if err := repo.CreateVendorHistory(ctx, []models.OrderVendorHistory{{
			OrderID:       order.OrderID,
			VendorID:      plan.VendorID,
			OrderStatusID: plan.Status,
			Comment:       vendorCreatedComment,
		}}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create vendor history")
		}
	}

	if err := p.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   strconv.FormatUint(order.OrderID, 10),
		Actor:         plan.Actor,
		Data: outbox.OrderCreatedEvent{
			OrderID:       order.OrderID,
			ParentOrderID: order.ParentOrderID,
			CustomerID:    order.CustomerID,
			VendorID:      order.VendorID,
			PaymentCode:   order.PaymentCode,
			Total:         order.Total.StringFixed(2),
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created")
	}

	p.logg.Info(p.logg.WithOrderID(ctx, order.OrderID), "order persisted")
	return order, nil
}

// CreateParent writes the parent order once every child exists and points the
// children back at it.
func (p *Persister) CreateParent(ctx context.Context, tx *gorm.DB, plan ParentPlan) (*models.ParentOrder, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if plan.ParentOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent order id required")
	}
	if len(plan.OrderIDs) < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent order requires at least two child orders")
	}
	repo := p.repo.WithTx(tx)

	parent := &models.ParentOrder{
		ParentOrderID: plan.ParentOrderID,
		CustomerID:    plan.CustomerID,
		OrderIDs:      append([]uint64(nil), plan.OrderIDs...),
		CourierCharge: plan.CourierCharge,
		Total:         plan.Total,
	}
	if err := repo.CreateParentOrder(ctx, parent); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create parent order")
	}
	if err := repo.AssignParent(ctx, plan.ParentOrderID, plan.OrderIDs); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link child orders")
	}

	if err := p.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCheckoutCompleted,
		AggregateType: enums.AggregateParentOrder,
		AggregateID:   plan.ParentOrderID,
		Actor:         plan.Actor,
		Data: outbox.CheckoutCompletedEvent{
			ParentOrderID: plan.ParentOrderID,
			OrderIDs:      parent.OrderIDs,
			CustomerID:    plan.CustomerID,
			Total:         plan.Total.StringFixed(2),
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit checkout completed")
	}
	return parent, nil
}

func validatePlan(plan OrderPlan) error {
	if plan.Customer.ID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer required")
	}
	if !plan.PaymentCode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if !plan.Status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown initial order status")
	}
	if plan.Summary == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order totals required")
	}
	if len(plan.Lines) == 0 && plan.VendorID != 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor order requires at least one line")
	}
	for _, line := range plan.Lines {
		if line.Quantity <= 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "product %d has invalid quantity", line.ProductID)
		}
	}
	return checkTotals(plan.Summary)
}

// checkTotals enforces that the total row equals the sum of every other row.
func checkTotals(summary *totals.Summary) error {
	var (
		sum      = decimal.Zero
		total    decimal.Decimal
		hasTotal bool
	)
	for _, row := range summary.Rows {
		if row.Code == totals.CodeTotal {
			total = row.Value
			hasTotal = true
			continue
		}
		sum = sum.Add(row.Value)
	}
	if !hasTotal {
		return pkgerrors.New(pkgerrors.CodeValidation, "order totals missing total row")
	}
	if !sum.Equal(total) || !total.Equal(summary.Total) {
		return pkgerrors.Newf(pkgerrors.CodeInternal, "order totals do not balance: rows %s total %s", sum, total)
	}
	return nil
}
