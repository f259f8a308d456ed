package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-orders/api/middleware"
	"github.com/angelmondragon/storefront-orders/api/responses"
	"github.com/angelmondragon/storefront-orders/api/validators"
	checkoutsvc "github.com/angelmondragon/storefront-orders/internal/checkout"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
)

// CheckoutConfirm turns the customer's cart into one order per vendor.
func CheckoutConfirm(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		customerID := middleware.CustomerIDFromContext(r.Context())
		if customerID == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "customer session required for checkout"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shippingAddressID := payload.ShippingAddressID
		if shippingAddressID == 0 {
			shippingAddressID = payload.AddressID
		}

		result, err := svc.Confirm(r.Context(), checkoutsvc.ConfirmInput{
			CustomerID:        customerID,
			PaymentMethod:     payload.PaymentMethod,
			AgreeTerms:        payload.AgreeTerms,
			ShippingAddressID: shippingAddressID,
			PaymentAddressID:  payload.PaymentAddressID,
			Comment:           validators.SanitizeString(payload.Comment, 1000),
			Coupon:            validators.SanitizeString(payload.Coupon, 20),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// address_id is the legacy name for shipping_address_id.
type checkoutRequest struct {
	PaymentMethod     string `json:"payment_method" validate:"required,max=32"`
	AgreeTerms        bool   `json:"agree_terms"`
	AddressID         uint64 `json:"address_id" validate:"required_without=ShippingAddressID"`
	ShippingAddressID uint64 `json:"shipping_address_id"`
	PaymentAddressID  uint64 `json:"payment_address_id"`
	Comment           string `json:"comment"`
	Coupon            string `json:"coupon"`
}
