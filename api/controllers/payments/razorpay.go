package payments

import (
	"context"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-orders/api/middleware"
	"github.com/angelmondragon/storefront-orders/api/responses"
	"github.com/angelmondragon/storefront-orders/api/validators"
	paymentsvc "github.com/angelmondragon/storefront-orders/internal/payments"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
)

type createOrderRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency" validate:"omitempty,currency"`
	CustomerID    uint64          `json:"customer_id"`
	OcOrderID     *uint64         `json:"oc_order_id"`
	ParentOrderID *string         `json:"parent_order_id"`
}

// CreateOrder registers a gateway order for a storefront order or split checkout.
func CreateOrder(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !payload.Amount.IsPositive() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive"))
			return
		}

		customerID, err := resolveCustomer(r, payload.CustomerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var parent *string
		if payload.ParentOrderID != nil {
			if trimmed := strings.TrimSpace(*payload.ParentOrderID); trimmed != "" {
				parent = &trimmed
			}
		}

		result, err := svc.CreateOrder(r.Context(), paymentsvc.CreateOrderInput{
			Amount:        payload.Amount,
			Currency:      payload.Currency,
			CustomerID:    customerID,
			OrderID:       payload.OcOrderID,
			ParentOrderID: parent,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required,gateway_id=order"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required,gateway_id=pay"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}

// VerifyPayment confirms a client-side checkout and reconciles its orders.
func VerifyPayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		customerID, err := sessionCustomer(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifyPayment(r.Context(), paymentsvc.VerifyInput{
			GatewayOrderID:   strings.TrimSpace(payload.RazorpayOrderID),
			GatewayPaymentID: strings.TrimSpace(payload.RazorpayPaymentID),
			Signature:        strings.TrimSpace(payload.RazorpaySignature),
			CustomerID:       customerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type refundRequest struct {
	PaymentID string           `json:"payment_id" validate:"required,gateway_id=pay"`
	Amount    *decimal.Decimal `json:"amount"`
	Reason    string           `json:"reason" validate:"max=255"`
	Receipt   string           `json:"receipt" validate:"max=40"`
}

// Refunder issues refunds against captured payments.
type Refunder interface {
	CreateRefund(ctx context.Context, input paymentsvc.RefundInput) (*paymentsvc.RefundResult, error)
}

// Refund issues a full or partial refund. Admin only.
func Refund(refunds Refunder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if refunds == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund manager unavailable"))
			return
		}

		var payload refundRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Amount != nil && !payload.Amount.IsPositive() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive"))
			return
		}

		result, err := refunds.CreateRefund(r.Context(), paymentsvc.RefundInput{
			PaymentID: strings.TrimSpace(payload.PaymentID),
			Amount:    payload.Amount,
			Reason:    validators.SanitizeString(payload.Reason, 255),
			Receipt:   validators.SanitizeString(payload.Receipt, 40),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// resolveCustomer pins customers to their own id. Admins may act for any
// customer named in the body.
func resolveCustomer(r *http.Request, requested uint64) (uint64, error) {
	ctx := r.Context()
	switch middleware.RoleFromContext(ctx) {
	case enums.RoleAdmin:
		if requested == 0 {
			return 0, pkgerrors.New(pkgerrors.CodeValidation, "customer_id is required")
		}
		return requested, nil
	case enums.RoleCustomer:
		own := middleware.CustomerIDFromContext(ctx)
		if requested != 0 && requested != own {
			return 0, pkgerrors.New(pkgerrors.CodeForbidden, "customer_id does not match session")
		}
		return own, nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeForbidden, "customer or admin session required")
	}
}

// sessionCustomer scopes gateway records to the session customer. Admin
// sessions return zero and may act on any record.
func sessionCustomer(r *http.Request) (uint64, error) {
	ctx := r.Context()
	switch middleware.RoleFromContext(ctx) {
	case enums.RoleAdmin:
		return 0, nil
	case enums.RoleCustomer:
		return middleware.CustomerIDFromContext(ctx), nil
	default:
		return 0, pkgerrors.New(pkgerrors.CodeForbidden, "customer or admin session required")
	}
}
