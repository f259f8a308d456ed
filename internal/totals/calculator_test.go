package totals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func rowCodes(rows []Row) []string {
	codes := make([]string, 0, len(rows))
	for _, r := range rows {
		codes = append(codes, r.Code)
	}
	return codes
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name      string
		in        Input
		wantCodes []string
		wantTotal string
	}{
		{
			name: "sub total only",
			in: Input{Lines: []Line{
				{UnitPrice: d("100"), Quantity: 2},
				{UnitPrice: d("49.50"), Quantity: 1},
			}},
			wantCodes: []string{CodeSubTotal, CodeTotal},
			wantTotal: "249.5",
		},
		{
			name: "zero cost shipping omitted",
			in: Input{
				Lines:    []Line{{UnitPrice: d("10"), Quantity: 3}},
				Shipping: &Shipping{Title: "Free Delivery", Cost: decimal.Zero},
			},
			wantCodes: []string{CodeSubTotal, CodeTotal},
			wantTotal: "30",
		},
		{
			name: "option deltas with sign",
			in: Input{Lines: []Line{{
				UnitPrice: d("200"),
				Quantity:  2,
				Options: []OptionDelta{
					{Price: d("25"), Prefix: "+"},
					{Price: d("10"), Prefix: "-"},
				},
			}}},
			wantCodes: []string{CodeSubTotal, CodeTotal},
			wantTotal: "430",
		},
		{
			name: "shipping tax and discount",
			in: Input{
				Lines:          []Line{{UnitPrice: d("500"), Quantity: 2}},
				Shipping:       &Shipping{Title: "Courier Charges", Cost: d("60")},
				Discounts:      []Discount{{Code: "coupon", Title: "Coupon (SAVE10)", Amount: d("100")}},
				TaxRatePercent: d("18"),
			},
			wantCodes: []string{CodeSubTotal, CodeCourierCharges, "coupon", CodeTax, CodeTotal},
			wantTotal: "1140",
		},
		{
			name: "discount clamped to order value",
			in: Input{
				Lines:     []Line{{UnitPrice: d("40"), Quantity: 1}},
				Discounts: []Discount{{Code: "coupon", Title: "Coupon", Amount: d("75")}},
			},
			wantCodes: []string{CodeSubTotal, "coupon", CodeTotal},
			wantTotal: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := Calculate(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCodes, rowCodes(summary.Rows))
			assert.True(t, d(tt.wantTotal).Equal(summary.Total), "total %s", summary.Total)

			sum := decimal.Zero
			var totalRow Row
			for _, r := range summary.Rows {
				if r.Code == CodeTotal {
					totalRow = r
					continue
				}
				sum = sum.Add(r.Value)
			}
			assert.True(t, sum.Equal(totalRow.Value), "rows sum %s != total %s", sum, totalRow.Value)
		})
	}
}

func TestCalculateSortOrderIsAscending(t *testing.T) {
	summary, err := Calculate(Input{
		Lines:          []Line{{UnitPrice: d("99.99"), Quantity: 3}},
		Shipping:       &Shipping{Cost: d("40")},
		Discounts:      []Discount{{Code: "coupon", Title: "Coupon", Amount: d("5")}},
		TaxRatePercent: d("5"),
	})
	require.NoError(t, err)
	for i := 1; i < len(summary.Rows); i++ {
		assert.LessOrEqual(t, summary.Rows[i-1].SortOrder, summary.Rows[i].SortOrder)
	}
	assert.Equal(t, "Courier Charges", summary.Rows[1].Title)
	assert.True(t, d("15").Equal(summary.Tax), "tax %s", summary.Tax)
}

func TestCalculateRejectsInvalidInput(t *testing.T) {
	_, err := Calculate(Input{Lines: []Line{{UnitPrice: d("10"), Quantity: 0}}})
	assert.Error(t, err)

	_, err = Calculate(Input{Lines: []Line{{UnitPrice: d("10"), Quantity: 1, Options: []OptionDelta{{Price: d("1"), Prefix: "*"}}}}})
	assert.Error(t, err)

	_, err = Calculate(Input{Lines: []Line{{UnitPrice: d("10"), Quantity: 1, Options: []OptionDelta{{Price: d("11"), Prefix: "-"}}}}})
	assert.Error(t, err)

	_, err = Calculate(Input{Lines: []Line{{UnitPrice: d("10"), Quantity: 1}}, TaxRatePercent: d("-1")})
	assert.Error(t, err)
}

func TestLineTotal(t *testing.T) {
	total, err := LineTotal(Line{UnitPrice: d("12.25"), Quantity: 4, Options: []OptionDelta{{Price: d("0.75"), Prefix: "+"}}})
	require.NoError(t, err)
	assert.True(t, d("52").Equal(total))
}
