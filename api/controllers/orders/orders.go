package orders

import (
	"net/http"

	"github.com/angelmondragon/storefront-orders/api/middleware"
	"github.com/angelmondragon/storefront-orders/api/responses"
	"github.com/angelmondragon/storefront-orders/api/validators"
	internalorders "github.com/angelmondragon/storefront-orders/internal/orders"
	"github.com/angelmondragon/storefront-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
)

type transitionResponse struct {
	OrderID    uint64 `json:"order_id"`
	FromStatus int    `json:"from_status_id"`
	StatusID   int    `json:"order_status_id"`
	Status     string `json:"status"`
	Changed    bool   `json:"changed"`
}

func newTransitionResponse(result *internalorders.TransitionResult) transitionResponse {
	if result == nil {
		return transitionResponse{}
	}
	return transitionResponse{
		OrderID:    result.OrderID,
		FromStatus: int(result.From),
		StatusID:   int(result.To),
		Status:     result.To.String(),
		Changed:    result.Changed,
	}
}

type updateStatusRequest struct {
	OrderStatusID *int   `json:"order_status_id" validate:"required"`
	Comment       string `json:"comment" validate:"max=1000"`
}

// UpdateStatus moves an order through the state machine. Admin only.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUintParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID)
		result, err := svc.UpdateStatus(ctx, orderID, *payload.OrderStatusID, validators.SanitizeString(payload.Comment, 1000))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransitionResponse(result))
	}
}

type cancelRequest struct {
	Comment string `json:"comment" validate:"max=1000"`
}

// Cancel lets a customer cancel their own order while it can still be cancelled.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		customerID := middleware.CustomerIDFromContext(r.Context())
		if customerID == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "customer session required"))
			return
		}

		orderID, err := validators.ParseUintParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cancelRequest
		if err := validators.DecodeOptionalJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithOrderID(r.Context(), orderID)
		result, err := svc.Cancel(ctx, orderID, customerID, validators.SanitizeString(payload.Comment, 1000))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransitionResponse(result))
	}
}

// History returns the order's status, label, totals and history. Customers
// see only their own orders; admins see any.
func History(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUintParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		admin := middleware.RoleFromContext(r.Context()) == enums.RoleAdmin
		customerID := middleware.CustomerIDFromContext(r.Context())
		if !admin && customerID == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "customer session required"))
			return
		}

		view, err := svc.History(r.Context(), orderID, customerID, admin)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
