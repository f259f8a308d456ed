package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/internal/customers"
	"github.com/angelmondragon/storefront-orders/internal/orders"
	"github.com/angelmondragon/storefront-orders/pkg/db"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
	"github.com/angelmondragon/storefront-orders/pkg/idgen"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
	"github.com/angelmondragon/storefront-orders/pkg/money"
	"github.com/angelmondragon/storefront-orders/pkg/razorpay"
	"github.com/angelmondragon/storefront-orders/pkg/signature"
)

const statusPaid = "paid"

type CreateOrderInput struct {
	Amount        decimal.Decimal
	Currency      string
	CustomerID    uint64
	OrderID       *uint64
	ParentOrderID *string
}

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// CreateOrderResult is handed to the checkout SDK. Amount is in minor units.
type CreateOrderResult struct {
	OrderID  string  `json:"order_id"`
	Amount   int64   `json:"amount"`
	Currency string  `json:"currency"`
	KeyID    string  `json:"key_id"`
	Prefill  Prefill `json:"prefill"`
}

// VerifyInput is the client checkout callback. CustomerID pins the payment
// to the session customer; zero is used for admin sessions.
type VerifyInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	CustomerID       uint64
}

// VerifyResult reports the reconciled order. Amount is in minor units.
type VerifyResult struct {
	Status    string   `json:"status"`
	OcOrderID uint64   `json:"oc_order_id"`
	OrderIDs  []uint64 `json:"order_ids,omitempty"`
	Amount    int64    `json:"amount"`
}

// Service creates gateway orders and confirms client-side payments.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	VerifyPayment(ctx context.Context, input VerifyInput) (*VerifyResult, error)
	ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

type service struct {
	tx         db.TxRunner
	repo       Repository
	orders     orders.Repository
	customers  customers.Directory
	gateway    Gateway
	reconciler *Reconciler
	ids        *idgen.Generator
	currency   string
	logg       *logger.Logger
	now        func() time.Time
}

type ServiceParams struct {
	Tx         db.TxRunner
	Repo       Repository
	Orders     orders.Repository
	Customers  customers.Directory
	Gateway    Gateway
	Reconciler *Reconciler
	IDs        *idgen.Generator
	Currency   string
	Logger     *logger.Logger
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Repo == nil:
		return nil, fmt.Errorf("payments repository required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.Customers == nil:
		return nil, fmt.Errorf("customer directory required")
	case p.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case p.Reconciler == nil:
		return nil, fmt.Errorf("reconciler required")
	case p.IDs == nil:
		return nil, fmt.Errorf("id generator required")
	}
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if currency == "" {
		currency = "INR"
	}
	return &service{
		tx:         p.Tx,
		repo:       p.Repo,
		orders:     p.Orders,
		customers:  p.Customers,
		gateway:    p.Gateway,
		reconciler: p.Reconciler,
		ids:        p.IDs,
		currency:   currency,
		logg:       p.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreateOrder registers a gateway order for the amount. The payment record is
// written only after the gateway accepts the order, so a gateway failure or
// timeout persists nothing.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	amount, err := money.ToMinor(input.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.currency
	}
	if currency != s.currency {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unsupported currency %s", currency)
	}

	customer, err := s.customers.Customer(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}
	if err := s.checkLinks(ctx, input, input.Amount); err != nil {
		return nil, err
	}

	receipt := s.ids.Receipt()
	notes := map[string]string{"customer_id": strconv.FormatUint(input.CustomerID, 10)}
	if input.OrderID != nil {
		notes["oc_order_id"] = strconv.FormatUint(*input.OrderID, 10)
	}
	if input.ParentOrderID != nil {
		notes["parent_order_id"] = *input.ParentOrderID
	}

	gatewayOrder, err := s.gateway.CreateOrder(ctx, razorpay.CreateOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "create gateway order")
	}

	record := &models.PaymentRecord{
		GatewayOrderID: gatewayOrder.ID,
		CustomerID:     input.CustomerID,
		Amount:         amount,
		Currency:       currency,
		Receipt:        receipt,
		Status:         enums.PaymentRecordCreated,
		OrderID:        input.OrderID,
		ParentOrderID:  input.ParentOrderID,
	}
	if err := s.repo.CreatePayment(ctx, record); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist payment record")
	}

	logCtx := s.logg.WithFields(s.logg.WithCustomerID(ctx, input.CustomerID), map[string]any{
		"gateway_order_id": gatewayOrder.ID,
		"amount":           amount,
	})
	s.logg.Info(logCtx, "gateway order created")

	return &CreateOrderResult{
		OrderID:  gatewayOrder.ID,
		Amount:   amount,
		Currency: currency,
		KeyID:    s.gateway.KeyID(),
		Prefill: Prefill{
			Name:    customers.FullName(customer),
			Email:   customer.Email,
			Contact: customer.Telephone,
		},
	}, nil
}

// checkLinks makes sure linked orders belong to the customer, still await
// payment and add up to the requested amount.
func (s *service) checkLinks(ctx context.Context, input CreateOrderInput, amount decimal.Decimal) error {
	var linked []models.Order
	if input.OrderID != nil {
		order, err := s.orders.FindOrder(ctx, *input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %d not found", *input.OrderID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
		}
		linked = append(linked, *order)
	}
	if input.ParentOrderID != nil {
		parent, err := s.orders.FindParentOrder(ctx, *input.ParentOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Newf(pkgerrors.CodeNotFound, "parent order %s not found", *input.ParentOrderID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load parent order")
		}
		if parent.CustomerID != input.CustomerID {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "parent order %s not found", *input.ParentOrderID)
		}
		if input.OrderID == nil && !parent.Total.Equal(amount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "amount does not match the order total").
				WithDetails(map[string]any{"expected": parent.Total.StringFixed(2)})
		}
		for _, id := range parent.OrderIDs {
			order, err := s.orders.FindOrder(ctx, id)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load child order")
			}
			linked = append(linked, *order)
		}
	}
	for _, order := range linked {
		if order.CustomerID != input.CustomerID {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "order %d not found", order.OrderID)
		}
		if order.OrderStatusID != enums.OrderStatusPending {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order %d is not awaiting payment", order.OrderID)
		}
	}
	if input.OrderID != nil && input.ParentOrderID == nil && !linked[0].Total.Equal(amount) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount does not match the order total").
			WithDetails(map[string]any{"expected": linked[0].Total.StringFixed(2)})
	}
	return nil
}

// VerifyPayment checks the checkout signature, confirms the payment with the
// gateway and reconciles the linked orders. The signature is checked before the
// record is loaded so a tampered request is always a signature failure. A
// payment the gateway has not captured yet leaves the record created for the
// payment.captured webhook to settle.
func (s *service) VerifyPayment(ctx context.Context, input VerifyInput) (*VerifyResult, error) {
	input.GatewayOrderID = strings.TrimSpace(input.GatewayOrderID)
	input.GatewayPaymentID = strings.TrimSpace(input.GatewayPaymentID)
	input.Signature = strings.TrimSpace(input.Signature)
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "razorpay_order_id, razorpay_payment_id and razorpay_signature are required")
	}

	logCtx := s.logg.WithField(ctx, "gateway_order_id", input.GatewayOrderID)
	if !signature.VerifyPayment(input.GatewayOrderID, input.GatewayPaymentID, input.Signature, s.gateway.KeySecret()) {
		if err := s.failMismatched(ctx, input); err != nil {
			s.logg.Error(logCtx, "mark payment failed after signature mismatch", err)
		}
		s.logg.Warn(logCtx, "payment signature mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "payment signature verification failed")
	}

	record, err := s.repo.FindByGatewayOrderID(ctx, input.GatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "payment order %s not found", input.GatewayOrderID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load payment record")
	}
	if !ownedBy(record, input.CustomerID) {
		return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "payment order %s not found", input.GatewayOrderID)
	}

	if record.Status == enums.PaymentRecordPaid || record.Status == enums.PaymentRecordRefunded {
		return s.settle(ctx, input, Capture{GatewayPaymentID: input.GatewayPaymentID, Source: SourceVerify})
	}

	payment, err := s.gateway.FetchPayment(ctx, input.GatewayPaymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetch payment")
	}
	if payment.OrderID != "" && payment.OrderID != input.GatewayOrderID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment does not belong to this order")
	}
	if payment.Status == "failed" {
		if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			locked, err := s.repo.WithTx(tx).FindByGatewayOrderIDForUpdate(ctx, input.GatewayOrderID)
			if err != nil {
				return err
			}
			_, err = s.reconciler.MarkFailedTx(ctx, tx, locked, payment.ID, SourceVerify)
			return err
		}); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark payment failed")
		}
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment failed at the gateway")
	}
	if !payment.Captured() {
		s.logg.Warn(s.logg.WithField(logCtx, "payment_status", payment.Status), "payment not captured yet")
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "payment %s is %s and not captured yet", payment.ID, payment.Status).
			WithDetails(map[string]any{"payment_status": payment.Status})
	}
	if payment.Amount != record.Amount {
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"captured_amount": payment.Amount,
			"expected_amount": record.Amount,
		}), "captured amount mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "captured amount does not match the payment order").
			WithDetails(map[string]any{"expected": record.Amount, "captured": payment.Amount})
	}

	return s.settle(ctx, input, Capture{
		GatewayPaymentID: payment.ID,
		Method:           payment.Method,
		Amount:           payment.Amount,
		Source:           SourceVerify,
	})
}

// failMismatched fails the record behind a tampered verification. Unknown
// records and records of another customer are left alone.
func (s *service) failMismatched(ctx context.Context, input VerifyInput) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.WithTx(tx).FindByGatewayOrderIDForUpdate(ctx, input.GatewayOrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if !ownedBy(locked, input.CustomerID) {
			return nil
		}
		_, err = s.reconciler.MarkFailedTx(ctx, tx, locked, input.GatewayPaymentID, SourceVerify)
		return err
	})
}

// ownedBy reports whether the record belongs to customerID. Zero skips the check.
func ownedBy(record *models.PaymentRecord, customerID uint64) bool {
	return customerID == 0 || record.CustomerID == customerID
}

func (s *service) settle(ctx context.Context, input VerifyInput, capture Capture) (*VerifyResult, error) {
	var settlement *Settlement
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		record, err := s.repo.WithTx(tx).FindByGatewayOrderIDForUpdate(ctx, input.GatewayOrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock payment record")
		}
		settlement, err = s.reconciler.MarkPaidTx(ctx, tx, record, capture)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		Status:    statusPaid,
		OcOrderID: settlement.PrimaryOrderID,
		OrderIDs:  settlement.OrderIDs,
		Amount:    settlement.Amount,
	}, nil
}

// ExpireStale fails gateway orders that never completed. Their orders stay
// pending for manual follow-up.
func (s *service) ExpireStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("expiry window must be positive")
	}
	cutoff := s.now().Add(-olderThan)
	stale, err := s.repo.ListStaleCreated(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list stale payments: %w", err)
	}
	expired := 0
	for _, candidate := range stale {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			record, err := s.repo.WithTx(tx).FindByGatewayOrderIDForUpdate(ctx, candidate.GatewayOrderID)
			if err != nil {
				return err
			}
			changed, err := s.reconciler.MarkFailedTx(ctx, tx, record, "", SourceExpiry)
			if changed {
				expired++
			}
			return err
		})
		if err != nil {
			return expired, fmt.Errorf("expire payment %s: %w", candidate.GatewayOrderID, err)
		}
	}
	return expired, nil
}
