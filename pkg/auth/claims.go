package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/storefront-orders/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	CustomerID uint64
	VendorID   *uint64
	Role       enums.Role
	JTI        string
}

// AccessTokenClaims represents the typed JWT issued to clients. Vendor
// tokens carry the vendor they act for.
type AccessTokenClaims struct {
	CustomerID uint64     `json:"customer_id"`
	VendorID   *uint64    `json:"vendor_id,omitempty"`
	Role       enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after the registered claims checks during parsing and
// before signing when minting.
func (c AccessTokenClaims) Validate() error {
	if !c.Role.IsValid() {
		return fmt.Errorf("invalid role %q", c.Role)
	}
	if c.Role == enums.RoleCustomer && c.CustomerID == 0 {
		return fmt.Errorf("customer tokens require a customer id")
	}
	if c.Role == enums.RoleVendor && (c.VendorID == nil || *c.VendorID == 0) {
		return fmt.Errorf("vendor tokens require a vendor id")
	}
	return nil
}
