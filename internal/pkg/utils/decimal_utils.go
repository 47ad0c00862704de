package utils

import (
	"github.com/shopspring/decimal"
)

// Pow10 returns 10^places as a decimal scale. Non-positive places yield 1.
// Example: Pow10(6) => 1000000
func Pow10(places int) decimal.Decimal {
	if places <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.New(1, int32(places))
}

// Descale divides a raw fixed-point integer by its scale.
// A zero scale is treated as 1.
func Descale(raw decimal.Decimal, scale decimal.Decimal) decimal.Decimal {
	if scale.IsZero() {
		return raw
	}
	return raw.Div(scale)
}
