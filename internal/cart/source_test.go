package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-orders/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
)

func seedProduct(t *testing.T, conn *gorm.DB, p models.Product) {
	t.Helper()
	if p.Minimum == 0 {
		p.Minimum = 1
	}
	p.Status = true
	require.NoError(t, conn.Create(&p).Error)
}

func TestSnapshotAppliesSpecialsAndOptions(t *testing.T) {
	conn := dbtest.Open(t)
	seedProduct(t, conn, models.Product{ProductID: 1, Name: "Kettle", Price: decimal.RequireFromString("120"), Quantity: 10, Subtract: true})
	seedProduct(t, conn, models.Product{ProductID: 2, Name: "Mug", Price: decimal.RequireFromString("50"), Quantity: 10, Subtract: true})

	past := time.Now().AddDate(-1, 0, 0)
	future := time.Now().AddDate(1, 0, 0)
	require.NoError(t, conn.Create(&models.ProductSpecial{ProductID: 1, Priority: 2, Price: decimal.RequireFromString("90")}).Error)
	require.NoError(t, conn.Create(&models.ProductSpecial{ProductID: 1, Priority: 1, Price: decimal.RequireFromString("100"), DateStart: &past, DateEnd: &future}).Error)
	require.NoError(t, conn.Create(&models.ProductOptionValue{ProductOptionValueID: 11, ProductOptionID: 3, ProductID: 2, Name: "Colour", Value: "Blue", Price: decimal.RequireFromString("5"), PricePrefix: "+"}).Error)

	require.NoError(t, conn.Create(&models.CartItem{CustomerID: 7, ProductID: 1, Quantity: 2, Option: "{}"}).Error)
	require.NoError(t, conn.Create(&models.CartItem{CustomerID: 7, ProductID: 2, Quantity: 1, Option: `{"3":"11"}`}).Error)

	snapshot, err := NewSource(conn).Snapshot(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, snapshot.Lines, 2)

	assert.True(t, snapshot.Lines[0].BasePrice.Equal(decimal.RequireFromString("100")), "priority 1 special wins")
	require.Len(t, snapshot.Lines[1].Options, 1)
	assert.Equal(t, "Blue", snapshot.Lines[1].Options[0].Value)
	assert.Equal(t, []uint64{1, 2}, snapshot.ProductIDs())

	tl := snapshot.Lines[1].TotalsLine()
	assert.Equal(t, 1, tl.Quantity)
	require.Len(t, tl.Options, 1)
}

func TestSnapshotRejectsUnorderableLines(t *testing.T) {
	conn := dbtest.Open(t)
	seedProduct(t, conn, models.Product{ProductID: 1, Name: "Kettle", Price: decimal.RequireFromString("120"), Quantity: 1, Subtract: true})
	seedProduct(t, conn, models.Product{ProductID: 2, Name: "Mug", Price: decimal.RequireFromString("50"), Quantity: 10, Minimum: 3})

	require.NoError(t, conn.Create(&models.CartItem{CustomerID: 7, ProductID: 1, Quantity: 2, Option: "{}"}).Error)
	require.NoError(t, conn.Create(&models.CartItem{CustomerID: 7, ProductID: 2, Quantity: 1, Option: "{}"}).Error)
	require.NoError(t, conn.Create(&models.CartItem{CustomerID: 7, ProductID: 99, Quantity: 1, Option: "{}"}).Error)

	_, err := NewSource(conn).Snapshot(context.Background(), 7)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	problems, ok := typed.Details().([]LineProblem)
	require.True(t, ok)
	assert.Len(t, problems, 3)
}

func TestSnapshotEmptyCart(t *testing.T) {
	conn := dbtest.Open(t)
	_, err := NewSource(conn).Snapshot(context.Background(), 7)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestClearTx(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, conn.Create(&models.CartItem{CustomerID: 7, ProductID: 1, Quantity: 1, Option: "{}"}).Error)
	require.NoError(t, conn.Create(&models.CartItem{CustomerID: 8, ProductID: 1, Quantity: 1, Option: "{}"}).Error)

	require.NoError(t, NewSource(conn).ClearTx(context.Background(), conn, 7))

	var count int64
	require.NoError(t, conn.Model(&models.CartItem{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestParseOptionValueIDs(t *testing.T) {
	ids, err := parseOptionValueIDs(`{"3":"11","4":[12,"13"],"5":11}`)
	require.NoError(t, err)
	assert.Equal(t, []uint64{11, 12, 13}, ids)

	ids, err = parseOptionValueIDs("[]")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = parseOptionValueIDs(`{"3":"abc"}`)
	assert.Error(t, err)
}
