package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/internal/customers"
	"github.com/angelmondragon/storefront-orders/internal/orders"
	"github.com/angelmondragon/storefront-orders/internal/totals"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
	"github.com/angelmondragon/storefront-orders/pkg/money"
	"github.com/angelmondragon/storefront-orders/pkg/outbox"
)

const (
	SourceVerify  = "verify"
	SourceWebhook = "webhook"
	SourceRefund  = "refund"
	SourceExpiry  = "expiry"

	gatewayMethodTitle = "Razorpay"
)

// Capture is the gateway evidence that a payment succeeded. Amount is in minor
// units; zero means the source did not report one.
type Capture struct {
	GatewayPaymentID string
	Method           string
	Amount           int64
	Source           string
}

// Settlement reports the orders a capture was reconciled against.
type Settlement struct {
	PrimaryOrderID uint64
	OrderIDs       []uint64
	Amount         int64
	AlreadyPaid    bool
}

// AppliedRefund is a gateway refund to be recorded against a payment.
type AppliedRefund struct {
	GatewayRefundID string
	Amount          int64
	Currency        string
	Status          enums.RefundStatus
	Type            enums.RefundType
	OrderID         *uint64
	Reason          string
	Receipt         string
	Source          string
}

// Reconciler applies payment outcomes to payment records and orders. It is
// shared by the client verify path, the webhook ingestor and the refund manager
// so every path produces the same transitions.
type Reconciler struct {
	repo      Repository
	orders    orders.Repository
	machine   orders.Transitioner
	persister *orders.Persister
	customers customers.Directory
	outbox    outbox.Emitter
	logg      *logger.Logger
	now       func() time.Time
}

type ReconcilerParams struct {
	Repo      Repository
	Orders    orders.Repository
	Machine   orders.Transitioner
	Persister *orders.Persister
	Customers customers.Directory
	Outbox    outbox.Emitter
	Logger    *logger.Logger
}

func NewReconciler(p ReconcilerParams) (*Reconciler, error) {
	switch {
	case p.Repo == nil:
		return nil, fmt.Errorf("payments repository required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Machine == nil:
		return nil, fmt.Errorf("state machine required")
	case p.Persister == nil:
		return nil, fmt.Errorf("order persister required")
	case p.Customers == nil:
		return nil, fmt.Errorf("customer directory required")
	case p.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &Reconciler{
		repo:      p.Repo,
		orders:    p.Orders,
		machine:   p.Machine,
		persister: p.Persister,
		customers: p.Customers,
		outbox:    p.Outbox,
		logg:      p.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// MarkPaidTx records the capture and moves the linked orders to processing.
// When the record links no order a header-only order is created for the paid
// amount. Calling it again for an already paid record only reports the orders.
func (r *Reconciler) MarkPaidTx(ctx context.Context, tx *gorm.DB, record *models.PaymentRecord, capture Capture) (*Settlement, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	settlement := &Settlement{Amount: record.Amount}

	switch record.Status {
	case enums.PaymentRecordPaid, enums.PaymentRecordRefunded:
		ids, err := r.linkedOrderIDs(ctx, tx, record)
		if err != nil {
			return nil, err
		}
		settlement.OrderIDs = ids
		if len(ids) > 0 {
			settlement.PrimaryOrderID = ids[0]
		}
		settlement.AlreadyPaid = true
		return settlement, nil
	}

	if capture.Amount != 0 && capture.Amount != record.Amount {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "captured amount %d does not match payment order amount %d", capture.Amount, record.Amount)
	}

	ids, err := r.linkedOrderIDs(ctx, tx, record)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{
		"status":     enums.PaymentRecordPaid,
		"updated_at": r.now(),
	}
	if capture.GatewayPaymentID != "" {
		updates["gateway_payment_id"] = capture.GatewayPaymentID
		record.GatewayPaymentID = &capture.GatewayPaymentID
	}
	if capture.Method != "" {
		updates["method"] = capture.Method
		record.Method = &capture.Method
	}

	if len(ids) == 0 {
		order, err := r.createHeaderOrder(ctx, tx, record)
		if err != nil {
			return nil, err
		}
		ids = []uint64{order.OrderID}
		updates["order_id"] = order.OrderID
		record.OrderID = &order.OrderID
	}

	if err := r.repo.WithTx(tx).UpdatePayment(ctx, record.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payment paid")
	}
	record.Status = enums.PaymentRecordPaid

	comment := fmt.Sprintf("Payment captured (%s)", capture.GatewayPaymentID)
	if err := r.transitionAll(ctx, tx, ids, enums.OrderStatusProcessing, comment); err != nil {
		return nil, err
	}

	if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentCaptured,
		AggregateType: enums.AggregatePayment,
		AggregateID:   record.GatewayOrderID,
		Data: outbox.PaymentEvent{
			GatewayOrderID:   record.GatewayOrderID,
			GatewayPaymentID: capture.GatewayPaymentID,
			Amount:           record.Amount,
			Currency:         record.Currency,
			OrderIDs:         ids,
			Source:           capture.Source,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit payment captured")
	}

	settlement.OrderIDs = ids
	settlement.PrimaryOrderID = ids[0]
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"gateway_order_id": record.GatewayOrderID,
		"order_ids":        ids,
		"source":           capture.Source,
	})
	r.logg.Info(logCtx, "payment captured")
	return settlement, nil
}

// MarkFailedTx marks a created record as failed. Paid and refunded records are
// left untouched; it reports whether anything changed.
func (r *Reconciler) MarkFailedTx(ctx context.Context, tx *gorm.DB, record *models.PaymentRecord, gatewayPaymentID, source string) (bool, error) {
	if tx == nil {
		return false, errors.New("transaction required")
	}
	if record.Status != enums.PaymentRecordCreated {
		return false, nil
	}
	updates := map[string]any{
		"status":     enums.PaymentRecordFailed,
		"updated_at": r.now(),
	}
	if gatewayPaymentID != "" {
		updates["gateway_payment_id"] = gatewayPaymentID
	}
	if err := r.repo.WithTx(tx).UpdatePayment(ctx, record.ID, updates); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payment failed")
	}
	record.Status = enums.PaymentRecordFailed

	if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPaymentFailed,
		AggregateType: enums.AggregatePayment,
		AggregateID:   record.GatewayOrderID,
		Data: outbox.PaymentEvent{
			GatewayOrderID:   record.GatewayOrderID,
			GatewayPaymentID: gatewayPaymentID,
			Amount:           record.Amount,
			Currency:         record.Currency,
			Source:           source,
		},
	}); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit payment failed")
	}
	return true, nil
}

// ApplyRefundTx records a refund once per gateway refund id. A repeated refund
// only refreshes its status. When the cumulative refunded amount reaches the
// captured amount the record and its orders become refunded.
func (r *Reconciler) ApplyRefundTx(ctx context.Context, tx *gorm.DB, record *models.PaymentRecord, refund AppliedRefund) (*models.RefundRecord, bool, error) {
	if tx == nil {
		return nil, false, errors.New("transaction required")
	}
	if refund.GatewayRefundID == "" {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "gateway refund id required")
	}
	repo := r.repo.WithTx(tx)

	existing, err := repo.FindRefund(ctx, refund.GatewayRefundID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load refund")
	}
	if existing != nil {
		if refund.Status != "" && refund.Status != existing.Status && existing.Status != enums.RefundStatusProcessed {
			if err := repo.UpdateRefund(ctx, existing.ID, map[string]any{"status": refund.Status, "updated_at": r.now()}); err != nil {
				return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update refund status")
			}
			existing.Status = refund.Status
		}
		return existing, false, nil
	}

	if refund.Amount <= 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	if record.RefundedAmount+refund.Amount > record.Amount {
		return nil, false, pkgerrors.Newf(pkgerrors.CodeValidation, "refund of %d exceeds refundable balance %d", refund.Amount, record.Remaining()).
			WithDetails(map[string]any{
				"amount":          refund.Amount,
				"refunded_amount": record.RefundedAmount,
				"payment_amount":  record.Amount,
			})
	}

	refundType := refund.Type
	if refundType == "" {
		refundType = enums.RefundTypePartial
		if refund.Amount == record.Amount {
			refundType = enums.RefundTypeFull
		}
	}
	status := refund.Status
	if status == "" {
		status = enums.RefundStatusPending
	}
	currency := refund.Currency
	if currency == "" {
		currency = record.Currency
	}
	gatewayPaymentID := ""
	if record.GatewayPaymentID != nil {
		gatewayPaymentID = *record.GatewayPaymentID
	}
	orderID := refund.OrderID
	if orderID == nil {
		orderID = record.OrderID
	}

	row := &models.RefundRecord{
		GatewayRefundID:  refund.GatewayRefundID,
		GatewayPaymentID: gatewayPaymentID,
		OrderID:          orderID,
		Amount:           refund.Amount,
		Currency:         currency,
		Status:           status,
		RefundType:       refundType,
		Reason:           refund.Reason,
		Receipt:          refund.Receipt,
	}
	if err := repo.CreateRefund(ctx, row); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create refund")
	}

	refunded := record.RefundedAmount + refund.Amount
	updates := map[string]any{
		"refunded_amount": refunded,
		"updated_at":      r.now(),
	}
	fullyRefunded := refunded >= record.Amount
	if fullyRefunded {
		updates["status"] = enums.PaymentRecordRefunded
	}
	if err := repo.UpdatePayment(ctx, record.ID, updates); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update refunded amount")
	}
	record.RefundedAmount = refunded

	if fullyRefunded {
		record.Status = enums.PaymentRecordRefunded
		ids, err := r.linkedOrderIDs(ctx, tx, record)
		if err != nil {
			return nil, false, err
		}
		comment := fmt.Sprintf("Refunded %s (%s)", money.Format(money.FromMinor(refunded)), refund.GatewayRefundID)
		if err := r.transitionAll(ctx, tx, ids, enums.OrderStatusRefunded, comment); err != nil {
			return nil, false, err
		}
	}

	if err := r.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRefundCreated,
		AggregateType: enums.AggregateRefund,
		AggregateID:   refund.GatewayRefundID,
		Data: outbox.RefundCreatedEvent{
			GatewayRefundID:  refund.GatewayRefundID,
			GatewayPaymentID: gatewayPaymentID,
			Amount:           refund.Amount,
			RefundType:       refundType,
		},
	}); err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit refund created")
	}
	return row, true, nil
}

// linkedOrderIDs resolves the orders paid for by a record: the directly linked
// order and every child of the linked parent order.
func (r *Reconciler) linkedOrderIDs(ctx context.Context, tx *gorm.DB, record *models.PaymentRecord) ([]uint64, error) {
	var ids []uint64
	seen := map[uint64]struct{}{}
	add := func(id uint64) {
		if id == 0 {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if record.OrderID != nil {
		add(*record.OrderID)
	}
	if record.ParentOrderID != nil && *record.ParentOrderID != "" {
		parent, err := r.orders.WithTx(tx).FindParentOrder(ctx, *record.ParentOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "parent order %s not found", *record.ParentOrderID)
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load parent order")
		}
		for _, id := range parent.OrderIDs {
			add(id)
		}
	}
	return ids, nil
}

// transitionAll moves every order to target. Orders whose current status
// cannot reach target (for example cancelled before the payment landed) are
// skipped and logged for manual follow-up.
func (r *Reconciler) transitionAll(ctx context.Context, tx *gorm.DB, orderIDs []uint64, target enums.OrderStatus, comment string) error {
	for _, id := range orderIDs {
		_, err := r.machine.TransitionTx(ctx, tx, id, target, comment)
		if err == nil {
			continue
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			logCtx := r.logg.WithFields(r.logg.WithOrderID(ctx, id), map[string]any{"target_status": target.String()})
			r.logg.Warn(logCtx, "payment reconciliation skipped order in incompatible status")
			continue
		}
		return err
	}
	return nil
}

func (r *Reconciler) createHeaderOrder(ctx context.Context, tx *gorm.DB, record *models.PaymentRecord) (*models.Order, error) {
	customer, err := r.customers.WithTx(tx).Customer(ctx, record.CustomerID)
	if err != nil {
		return nil, err
	}
	amount := money.FromMinor(record.Amount)
	summary, err := totals.Calculate(totals.Input{Lines: []totals.Line{{UnitPrice: amount, Quantity: 1}}})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute payment order totals")
	}
	return r.persister.Create(ctx, tx, orders.OrderPlan{
		Customer: orders.Customer{
			ID:        customer.CustomerID,
			Firstname: customer.Firstname,
			Lastname:  customer.Lastname,
			Email:     customer.Email,
			Telephone: customer.Telephone,
		},
		PaymentMethod: gatewayMethodTitle,
		PaymentCode:   enums.PaymentCodeRazorpay,
		Status:        enums.OrderStatusPending,
		Comment:       "Created from payment " + record.GatewayOrderID,
		Summary:       summary,
	})
}
