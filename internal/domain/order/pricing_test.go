package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeTotals(t *testing.T) {
	lines := []Line{
		{ProductID: "A", Quantity: 2, UnitPrice: dec("10.00")},
		{ProductID: "B", Quantity: 1, UnitPrice: dec("5.00")},
	}

	got := ComputeTotals(lines, dec("20.00"), nil, DefaultTaxRate)

	assert.True(t, dec("25.00").Equal(got.Subtotal), "subtotal %s", got.Subtotal)
	assert.True(t, got.Discount.IsZero())
	assert.True(t, dec("0.45").Equal(got.Tax), "tax %s", got.Tax)
	assert.True(t, dec("45.45").Equal(got.Total), "total %s", got.Total)
	assert.True(t, got.Total.Equal(got.Subtotal.Add(got.Shipping).Add(got.Tax)))
}

func TestComputeTotalsWithCoupon(t *testing.T) {
	lines := []Line{{ProductID: "A", Quantity: 4, UnitPrice: dec("25.00")}}
	pct := dec("10")

	got := ComputeTotals(lines, dec("20.00"), &pct, DefaultTaxRate)

	assert.True(t, dec("100").Equal(got.Subtotal))
	assert.True(t, dec("10.00").Equal(got.Discount))
	assert.True(t, dec("1.10").Equal(got.Tax), "tax %s", got.Tax)
	assert.True(t, dec("111.10").Equal(got.Total), "total %s", got.Total)
}

func TestComputeTotalsDiscountCappedAtSubtotal(t *testing.T) {
	lines := []Line{{ProductID: "A", Quantity: 1, UnitPrice: dec("5.00")}}
	pct := dec("150")

	got := ComputeTotals(lines, decimal.Zero, &pct, DefaultTaxRate)

	assert.True(t, got.Discount.Equal(got.Subtotal))
	assert.True(t, got.Total.IsZero())
}
