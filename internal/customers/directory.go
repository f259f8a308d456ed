// Package customers reads customer accounts and address-book entries owned by
// the storefront account module.
package customers

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
)

// Directory resolves customers and their addresses.
type Directory interface {
	WithTx(tx *gorm.DB) Directory
	Customer(ctx context.Context, customerID uint64) (*models.Customer, error)
	Address(ctx context.Context, customerID, addressID uint64) (*models.Address, error)
}

type directory struct {
	db *gorm.DB
}

func NewDirectory(db *gorm.DB) Directory {
	return &directory{db: db}
}

func (d *directory) WithTx(tx *gorm.DB) Directory {
	if tx == nil {
		return d
	}
	return &directory{db: tx}
}

func (d *directory) Customer(ctx context.Context, customerID uint64) (*models.Customer, error) {
	var customer models.Customer
	err := d.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&customer).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "customer %d not found", customerID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
	}
	if !customer.Status {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "customer account is disabled")
	}
	return &customer, nil
}

// Address returns the address only when it belongs to the customer.
func (d *directory) Address(ctx context.Context, customerID, addressID uint64) (*models.Address, error) {
	var address models.Address
	err := d.db.WithContext(ctx).
		Where("address_id = ? AND customer_id = ?", addressID, customerID).
		First(&address).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "address %d not found", addressID).
				WithDetails(map[string]any{"address_id": addressID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load address")
	}
	return &address, nil
}

// FullName joins the customer's first and last name.
func FullName(c *models.Customer) string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Firstname + " " + c.Lastname)
}

// Snapshot copies an address-book entry into the order column group.
func Snapshot(a *models.Address) models.AddressSnapshot {
	if a == nil {
		return models.AddressSnapshot{}
	}
	return models.AddressSnapshot{
		Firstname: a.Firstname,
		Lastname:  a.Lastname,
		Company:   a.Company,
		Address1:  a.Address1,
		Address2:  a.Address2,
		City:      a.City,
		Postcode:  a.Postcode,
		Country:   a.Country,
		Zone:      a.Zone,
	}
}
