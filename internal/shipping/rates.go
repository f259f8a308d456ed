// Package shipping resolves courier charges by destination pincode.
package shipping

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
)

// CourierRates prices delivery of one vendor's parcel.
type CourierRates interface {
	ChargeFor(ctx context.Context, pincode string, vendorID uint64) (decimal.Decimal, error)
}

type courierRates struct {
	db       *gorm.DB
	fallback decimal.Decimal
}

// NewCourierRates uses fallback when no rule matches the pincode.
func NewCourierRates(db *gorm.DB, fallback decimal.Decimal) CourierRates {
	return &courierRates{db: db, fallback: fallback}
}

// ChargeFor prefers a vendor-specific rule over the storewide one.
func (r *courierRates) ChargeFor(ctx context.Context, pincode string, vendorID uint64) (decimal.Decimal, error) {
	pincode = strings.TrimSpace(pincode)
	if pincode == "" {
		return r.fallback, nil
	}
	var rule models.CourierCharge
	err := r.db.WithContext(ctx).
		Where("pincode = ? AND vendor_id IN ?", pincode, []uint64{vendorID, 0}).
		Order("vendor_id DESC").
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.fallback, nil
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load courier charge")
	}
	return rule.Charge, nil
}
