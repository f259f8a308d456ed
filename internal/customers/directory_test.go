package customers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-orders/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-orders/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
)

func seedCustomer(t *testing.T, dir Directory, active bool) (*models.Customer, *models.Address) {
	t.Helper()
	conn := dir.(*directory).db
	customer := &models.Customer{Firstname: "Asha", Lastname: "Rao", Email: "asha@example.com", Telephone: "9800000000", Status: true}
	require.NoError(t, conn.Create(customer).Error)
	if !active {
		require.NoError(t, conn.Model(customer).Update("status", false).Error)
	}
	address := &models.Address{CustomerID: customer.CustomerID, Firstname: "Asha", Lastname: "Rao", Address1: "12 MG Road", City: "Bengaluru", Postcode: "560001", Country: "India", Zone: "Karnataka"}
	require.NoError(t, conn.Create(address).Error)
	return customer, address
}

func TestCustomerLookup(t *testing.T) {
	dir := NewDirectory(dbtest.Open(t))
	customer, _ := seedCustomer(t, dir, true)

	got, err := dir.Customer(context.Background(), customer.CustomerID)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", FullName(got))

	_, err = dir.Customer(context.Background(), customer.CustomerID+100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDisabledCustomerIsForbidden(t *testing.T) {
	dir := NewDirectory(dbtest.Open(t))
	customer, _ := seedCustomer(t, dir, false)

	_, err := dir.Customer(context.Background(), customer.CustomerID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestAddressMustBelongToCustomer(t *testing.T) {
	dir := NewDirectory(dbtest.Open(t))
	customer, address := seedCustomer(t, dir, true)
	ctx := context.Background()

	got, err := dir.Address(ctx, customer.CustomerID, address.AddressID)
	require.NoError(t, err)
	snap := Snapshot(got)
	assert.Equal(t, "560001", snap.Postcode)
	assert.Equal(t, "12 MG Road", snap.Address1)

	_, err = dir.Address(ctx, customer.CustomerID+1, address.AddressID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSnapshotAndFullNameHandleNil(t *testing.T) {
	assert.Equal(t, models.AddressSnapshot{}, Snapshot(nil))
	assert.Empty(t, FullName(nil))
}
