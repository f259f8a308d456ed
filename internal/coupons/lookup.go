// Package coupons validates cart coupons and records their redemption.
package coupons

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
)

const (
	TypePercent = "P"
	TypeFixed   = "F"
)

var hundred = decimal.NewFromInt(100)

// Lookup finds redeemable coupons.
type Lookup interface {
	Find(ctx context.Context, code string) (*models.Coupon, error)
	RecordUsageTx(ctx context.Context, tx *gorm.DB, usage Usage) error
}

// Usage is one redemption against an order.
type Usage struct {
	CouponID   uint64
	OrderID    uint64
	CustomerID uint64
	Amount     decimal.Decimal
}

type lookup struct {
	db  *gorm.DB
	now func() time.Time
}

func NewLookup(db *gorm.DB) Lookup {
	return &lookup{db: db, now: time.Now}
}

// Find returns the coupon when it is enabled and inside its date window.
func (l *lookup) Find(ctx context.Context, code string) (*models.Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}
	var coupon models.Coupon
	err := l.db.WithContext(ctx).Where("code = ? AND status = ?", code, true).First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalidCoupon(code)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load coupon")
	}
	now := l.now()
	if coupon.DateStart != nil && now.Before(*coupon.DateStart) {
		return nil, invalidCoupon(code)
	}
	if coupon.DateEnd != nil && !now.Before(*coupon.DateEnd) {
		return nil, invalidCoupon(code)
	}
	if coupon.Type != TypePercent && coupon.Type != TypeFixed {
		return nil, invalidCoupon(code)
	}
	return &coupon, nil
}

func (l *lookup) RecordUsageTx(ctx context.Context, tx *gorm.DB, usage Usage) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if usage.Amount.IsZero() {
		return nil
	}
	return tx.WithContext(ctx).Create(&models.CouponHistory{
		CouponID:   usage.CouponID,
		OrderID:    usage.OrderID,
		CustomerID: usage.CustomerID,
		Amount:     usage.Amount,
	}).Error
}

// Discount is the reduction the coupon grants on subTotal, never more than subTotal.
func Discount(coupon *models.Coupon, subTotal decimal.Decimal) decimal.Decimal {
	if coupon == nil || !subTotal.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch coupon.Type {
	case TypePercent:
		amount = subTotal.Mul(coupon.Discount).Div(hundred).Round(2)
	case TypeFixed:
		amount = coupon.Discount
	default:
		return decimal.Zero
	}
	return decimal.Min(amount, subTotal)
}

func invalidCoupon(code string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "coupon is invalid or expired").
		WithDetails(map[string]any{"coupon": code})
}
