// Package totals computes the ordered financial summary rows of an order.
package totals

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	CodeSubTotal       = "sub_total"
	CodeCourierCharges = "courier_charges"
	CodeTax            = "tax"
	CodeTotal          = "total"
)

const (
	sortSubTotal = 1
	sortShipping = 3
	sortDiscount = 4
	sortTax      = 5
	sortTotal    = 9
)

var hundred = decimal.NewFromInt(100)

// OptionDelta is a selected option's price adjustment with its stored sign.
type OptionDelta struct {
	Price  decimal.Decimal
	Prefix string
}

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
	Options   []OptionDelta
}

type Shipping struct {
	Title string
	Cost  decimal.Decimal
}

// Discount is a reduction applied to the order. Amount is positive.
type Discount struct {
	Code   string
	Title  string
	Amount decimal.Decimal
}

type Input struct {
	Lines          []Line
	Shipping       *Shipping
	Discounts      []Discount
	TaxRatePercent decimal.Decimal
}

type Row struct {
	Code      string
	Title     string
	Value     decimal.Decimal
	SortOrder int
}

// Summary is the result of Calculate with convenient accessors.
type Summary struct {
	Rows     []Row
	SubTotal decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// UnitPrice applies option deltas to the base unit price.
func UnitPrice(line Line) (decimal.Decimal, error) {
	price := line.UnitPrice
	for _, opt := range line.Options {
		switch strings.TrimSpace(opt.Prefix) {
		case "+", "":
			price = price.Add(opt.Price)
		case "-":
			price = price.Sub(opt.Price)
		default:
			return decimal.Zero, fmt.Errorf("unsupported option price prefix %q", opt.Prefix)
		}
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("option deltas produce a negative unit price %s", price)
	}
	return price, nil
}

// LineTotal is the extended price of one line.
func LineTotal(line Line) (decimal.Decimal, error) {
	if line.Quantity <= 0 {
		return decimal.Zero, fmt.Errorf("quantity must be positive, got %d", line.Quantity)
	}
	price, err := UnitPrice(line)
	if err != nil {
		return decimal.Zero, err
	}
	return price.Mul(decimal.NewFromInt(int64(line.Quantity))), nil
}

// Calculate builds the ordered total rows. The total row always equals the
// sum of every other row; discounts are clamped so the total never goes below zero.
func Calculate(in Input) (*Summary, error) {
	if in.TaxRatePercent.IsNegative() {
		return nil, fmt.Errorf("tax rate must not be negative")
	}

	subTotal := decimal.Zero
	for i, line := range in.Lines {
		lineTotal, err := LineTotal(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		subTotal = subTotal.Add(lineTotal)
	}
	subTotal = round(subTotal)

	summary := &Summary{SubTotal: subTotal}
	summary.Rows = append(summary.Rows, Row{Code: CodeSubTotal, Title: "Sub-Total", Value: subTotal, SortOrder: sortSubTotal})

	if in.Shipping != nil && !in.Shipping.Cost.IsZero() {
		if in.Shipping.Cost.IsNegative() {
			return nil, fmt.Errorf("shipping cost must not be negative")
		}
		summary.Shipping = round(in.Shipping.Cost)
		title := in.Shipping.Title
		if title == "" {
			title = "Courier Charges"
		}
		summary.Rows = append(summary.Rows, Row{Code: CodeCourierCharges, Title: title, Value: summary.Shipping, SortOrder: sortShipping})
	}

	tax := round(subTotal.Mul(in.TaxRatePercent).Div(hundred))
	summary.Tax = tax

	available := subTotal.Add(summary.Shipping).Add(tax)
	for _, d := range in.Discounts {
		if d.Amount.IsNegative() {
			return nil, fmt.Errorf("discount %q must not be negative", d.Code)
		}
		amount := decimal.Min(round(d.Amount), available)
		if amount.IsZero() {
			continue
		}
		available = available.Sub(amount)
		summary.Discount = summary.Discount.Add(amount)
		summary.Rows = append(summary.Rows, Row{Code: d.Code, Title: d.Title, Value: amount.Neg(), SortOrder: sortDiscount})
	}

	if !tax.IsZero() {
		summary.Rows = append(summary.Rows, Row{Code: CodeTax, Title: "Tax", Value: tax, SortOrder: sortTax})
	}

	total := decimal.Zero
	for _, row := range summary.Rows {
		total = total.Add(row.Value)
	}
	summary.Total = total
	summary.Rows = append(summary.Rows, Row{Code: CodeTotal, Title: "Total", Value: total, SortOrder: sortTotal})
	return summary, nil
}

func round(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}
