package order

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// DefaultTaxRate is applied when no rate is configured.
var DefaultTaxRate = decimal.RequireFromString("0.01")

type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// ComputeTotals prices the lines. couponPct is a percentage (0-100) of the subtotal
// and may be nil. Tax is charged on the discounted subtotal plus shipping and
// rounded to cents. The total never drops below zero.
func ComputeTotals(lines []Line, shipping decimal.Decimal, couponPct *decimal.Decimal, taxRate decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}

	discount := decimal.Zero
	if couponPct != nil && couponPct.IsPositive() {
		discount = subtotal.Mul(*couponPct).Div(hundred).Round(2)
		if discount.GreaterThan(subtotal) {
			discount = subtotal
		}
	}

	taxable := subtotal.Sub(discount).Add(shipping)
	tax := taxable.Mul(taxRate).Round(2)
	total := taxable.Add(tax)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    total,
	}
}
