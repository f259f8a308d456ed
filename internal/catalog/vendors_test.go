package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-orders/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
)

func TestVendorsForSkipsUnownedProducts(t *testing.T) {
	conn := dbtest.Open(t)
	require.NoError(t, conn.Create(&models.VendorToProduct{VendorID: 3, ProductID: 10}).Error)
	require.NoError(t, conn.Create(&models.VendorToProduct{VendorID: 4, ProductID: 11}).Error)
	require.NoError(t, conn.Create(&models.VendorToProduct{VendorID: 0, ProductID: 12}).Error)

	got, err := NewVendorLookup(conn).VendorsFor(context.Background(), []uint64{10, 11, 12, 13})
	require.NoError(t, err)
	assert.Equal(t, map[uint64]uint64{10: 3, 11: 4}, got)
}

func TestVendorsForEmptyInput(t *testing.T) {
	got, err := NewVendorLookup(dbtest.Open(t)).VendorsFor(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}
