// Package catalog resolves product ownership from the vendor marketplace tables.
package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
)

// VendorLookup maps products to the vendor that sells them.
type VendorLookup interface {
	VendorsFor(ctx context.Context, productIDs []uint64) (map[uint64]uint64, error)
}

type vendorLookup struct {
	db *gorm.DB
}

func NewVendorLookup(db *gorm.DB) VendorLookup {
	return &vendorLookup{db: db}
}

// VendorsFor returns product_id -> vendor_id. Products without a vendor are
// absent from the map.
func (l *vendorLookup) VendorsFor(ctx context.Context, productIDs []uint64) (map[uint64]uint64, error) {
	out := make(map[uint64]uint64, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []models.VendorToProduct
	if err := l.db.WithContext(ctx).Where("product_id IN ?", productIDs).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product vendors")
	}
	for _, row := range rows {
		if row.VendorID == 0 {
			continue
		}
		out[row.ProductID] = row.VendorID
	}
	return out, nil
}
