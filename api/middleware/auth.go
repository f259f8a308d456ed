package middleware

import (
	"errors"
	"net/http"

	"github.com/angelmondragon/storefront-orders/api/responses"
	pkgAuth "github.com/angelmondragon/storefront-orders/pkg/auth"
	"github.com/angelmondragon/storefront-orders/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
	"github.com/angelmondragon/storefront-orders/pkg/logger"
)

// Auth validates the access token and seeds the request context with the
// caller's role plus customer or vendor identity.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := pkgAuth.ParseRequest(cfg, r)
			switch {
			case errors.Is(err, pkgAuth.ErrNoCredentials):
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			case err != nil:
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithRole(r.Context(), claims.Role)
			fields := map[string]any{"actor_role": string(claims.Role)}
			if claims.CustomerID != 0 {
				ctx = WithCustomerID(ctx, claims.CustomerID)
				fields["customer_id"] = claims.CustomerID
			}
			if claims.VendorID != nil {
				ctx = WithVendorID(ctx, *claims.VendorID)
				fields["vendor_id"] = *claims.VendorID
			}
			if logg != nil {
				ctx = logg.WithFields(ctx, fields)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
