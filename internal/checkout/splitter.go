package checkout

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-orders/internal/cart"
	"github.com/angelmondragon/storefront-orders/internal/totals"
	pkgerrors "github.com/angelmondragon/storefront-orders/pkg/errors"
)

// VendorGroup is the slice of a cart one vendor fulfils.
type VendorGroup struct {
	VendorID uint64
	Lines    []cart.Line
	SubTotal decimal.Decimal
	// Discount is this group's share of cart-level discounts.
	Discount decimal.Decimal
}

// UnresolvedLine names a cart line whose product has no vendor.
type UnresolvedLine struct {
	ProductID uint64 `json:"product_id"`
	Name      string `json:"name"`
}

// SplitByVendor groups lines by owning vendor in ascending vendor order,
// keeping cart order inside each group. Any line without a vendor fails the
// whole split.
func SplitByVendor(lines []cart.Line, vendorOf map[uint64]uint64) ([]VendorGroup, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	var unresolved []UnresolvedLine
	byVendor := map[uint64]*VendorGroup{}
	for _, line := range lines {
		vendorID := vendorOf[line.ProductID]
		if vendorID == 0 {
			unresolved = append(unresolved, UnresolvedLine{ProductID: line.ProductID, Name: line.Name})
			continue
		}
		lineTotal, err := totals.LineTotal(line.TotalsLine())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart line").
				WithDetails(map[string]any{"product_id": line.ProductID})
		}
		group, ok := byVendor[vendorID]
		if !ok {
			group = &VendorGroup{VendorID: vendorID}
			byVendor[vendorID] = group
		}
		group.Lines = append(group.Lines, line)
		group.SubTotal = group.SubTotal.Add(lineTotal)
	}
	if len(unresolved) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "some products are not sold by any vendor").
			WithDetails(map[string]any{"unresolved": unresolved})
	}

	groups := make([]VendorGroup, 0, len(byVendor))
	for _, group := range byVendor {
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].VendorID < groups[j].VendorID })
	return groups, nil
}

// AllocateDiscount spreads a cart-level discount across groups pro rata by
// sub-total. Shares are rounded to 2 dp and the last group absorbs the remainder.
func AllocateDiscount(groups []VendorGroup, discount decimal.Decimal) {
	if len(groups) == 0 || !discount.IsPositive() {
		return
	}
	cartTotal := decimal.Zero
	for _, g := range groups {
		cartTotal = cartTotal.Add(g.SubTotal)
	}
	if !cartTotal.IsPositive() {
		return
	}
	discount = decimal.Min(discount, cartTotal)
	allocated := decimal.Zero
	for i := range groups {
		if i == len(groups)-1 {
			groups[i].Discount = discount.Sub(allocated)
			break
		}
		share := discount.Mul(groups[i].SubTotal).Div(cartTotal).Round(2)
		groups[i].Discount = share
		allocated = allocated.Add(share)
	}
}

// CartSubTotal sums the groups' sub-totals.
func CartSubTotal(groups []VendorGroup) decimal.Decimal {
	sum := decimal.Zero
	for _, g := range groups {
		sum = sum.Add(g.SubTotal)
	}
	return sum
}
