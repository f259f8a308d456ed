package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-orders/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
)

func TestFindHonoursStatusAndWindow(t *testing.T) {
	conn := dbtest.Open(t)
	expired := time.Now().AddDate(-1, 0, 0)
	require.NoError(t, conn.Create(&models.Coupon{Name: "Ten", Code: "TEN", Type: TypePercent, Discount: decimal.NewFromInt(10), Status: true}).Error)
	require.NoError(t, conn.Create(&models.Coupon{Name: "Old", Code: "OLD", Type: TypeFixed, Discount: decimal.NewFromInt(50), Status: true, DateEnd: &expired}).Error)

	l := NewLookup(conn)
	coupon, err := l.Find(context.Background(), " TEN ")
	require.NoError(t, err)
	assert.Equal(t, "TEN", coupon.Code)

	_, err = l.Find(context.Background(), "OLD")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = l.Find(context.Background(), "MISSING")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestDiscount(t *testing.T) {
	sub := decimal.RequireFromString("250")
	assert.True(t, Discount(&models.Coupon{Type: TypePercent, Discount: decimal.NewFromInt(10)}, sub).Equal(decimal.RequireFromString("25")))
	assert.True(t, Discount(&models.Coupon{Type: TypeFixed, Discount: decimal.NewFromInt(400)}, sub).Equal(sub))
	assert.True(t, Discount(nil, sub).IsZero())
}

func TestRecordUsageTx(t *testing.T) {
	conn := dbtest.Open(t)
	l := NewLookup(conn)
	require.Error(t, l.RecordUsageTx(context.Background(), nil, Usage{}))
	require.NoError(t, l.RecordUsageTx(context.Background(), conn, Usage{CouponID: 1, OrderID: 2, CustomerID: 3, Amount: decimal.NewFromInt(5)}))
	require.NoError(t, l.RecordUsageTx(context.Background(), conn, Usage{CouponID: 1, OrderID: 3, CustomerID: 3}))

	var count int64
	require.NoError(t, conn.Model(&models.CouponHistory{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
