// Package money converts between major-unit decimals and gateway minor units.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var minorFactor = decimal.NewFromInt(100)

// ToMinor converts a major-unit amount (rupees) into minor units (paise).
// Amounts with more than two decimal places are rejected rather than rounded.
func ToMinor(amount decimal.Decimal) (int64, error) {
	scaled := amount.Mul(minorFactor)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("amount %s has sub-minor precision", amount)
	}
	return scaled.IntPart(), nil
}

// FromMinor converts minor units back to a major-unit decimal.
func FromMinor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

// Format renders a major-unit amount with two decimals.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}
