package payment

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ToMinor converts a major-unit amount to minor units, rounding half away from zero.
func ToMinor(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromMinor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}
