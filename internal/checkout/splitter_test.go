package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-orders/internal/cart"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
)

func line(productID uint64, price string, qty int) cart.Line {
	return cart.Line{ProductID: productID, Name: "p", Quantity: qty, BasePrice: decimal.RequireFromString(price)}
}

func TestSplitByVendorOrdersGroupsAndKeepsLineOrder(t *testing.T) {
	lines := []cart.Line{line(5, "10", 1), line(1, "20", 2), line(6, "5", 3), line(2, "1", 1)}
	vendorOf := map[uint64]uint64{5: 30, 1: 10, 6: 30, 2: 20}

	groups, err := SplitByVendor(lines, vendorOf)
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, []uint64{10, 20, 30}, []uint64{groups[0].VendorID, groups[1].VendorID, groups[2].VendorID})
	require.Len(t, groups[2].Lines, 2)
	assert.Equal(t, uint64(5), groups[2].Lines[0].ProductID)
	assert.Equal(t, uint64(6), groups[2].Lines[1].ProductID)
	assert.True(t, groups[0].SubTotal.Equal(decimal.RequireFromString("40")))
	assert.True(t, groups[2].SubTotal.Equal(decimal.RequireFromString("25")))
	assert.True(t, CartSubTotal(groups).Equal(decimal.RequireFromString("66")))
}

func TestSplitByVendorRejectsUnresolvedLines(t *testing.T) {
	lines := []cart.Line{line(1, "20", 1), line(9, "5", 1)}

	_, err := SplitByVendor(lines, map[uint64]uint64{1: 10})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	unresolved, ok := details["unresolved"].([]UnresolvedLine)
	require.True(t, ok)
	require.Len(t, unresolved, 1)
	assert.Equal(t, uint64(9), unresolved[0].ProductID)

	_, err = SplitByVendor(nil, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAllocateDiscount(t *testing.T) {
	cases := []struct {
		name     string
		subs     []string
		discount string
		want     []string
	}{
		{name: "pro rata", subs: []string{"200", "100"}, discount: "30", want: []string{"20", "10"}},
		{name: "remainder on last", subs: []string{"100", "100", "100"}, discount: "10", want: []string{"3.33", "3.33", "3.34"}},
		{name: "clamped to cart", subs: []string{"10", "10"}, discount: "50", want: []string{"10", "10"}},
		{name: "single group", subs: []string{"80"}, discount: "15", want: []string{"15"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			groups := make([]VendorGroup, len(tc.subs))
			for i, s := range tc.subs {
				groups[i] = VendorGroup{VendorID: uint64(i + 1), SubTotal: decimal.RequireFromString(s)}
			}
			AllocateDiscount(groups, decimal.RequireFromString(tc.discount))
			sum := decimal.Zero
			for i, want := range tc.want {
				assert.True(t, groups[i].Discount.Equal(decimal.RequireFromString(want)), "group %d got %s", i, groups[i].Discount)
				sum = sum.Add(groups[i].Discount)
			}
			assert.True(t, sum.Equal(decimal.Min(decimal.RequireFromString(tc.discount), CartSubTotal(groups))))
		})
	}
}
