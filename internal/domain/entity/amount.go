package entity

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a CapData amount record, e.g. {"brand":"$1.Alleged: stATOM brand","value":"+1500000"}.
type Amount struct {
	Brand string `json:"brand"`
	Value string `json:"value"`
}

// Decimal parses the signed decimal-integer value. The marshalled bigint carries
// a leading "+" or "-"; the digits are kept at full precision.
func (a Amount) Decimal() (decimal.Decimal, error) {
	return ParseAmountValue(a.Value)
}

// ParseAmountValue parses a marshalled bigint string such as "+100452870470097742390".
func ParseAmountValue(s string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("empty amount value")
	}
	negative := false
	switch raw[0] {
	case '+':
		raw = raw[1:]
	case '-':
		negative = true
		raw = raw[1:]
	}
	if raw == "" {
		return decimal.Zero, fmt.Errorf("amount value %q has no digits", s)
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return decimal.Zero, fmt.Errorf("amount value %q is not an integer", s)
		}
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount value %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// CollateralType is the lowercased alleged name of a brand, e.g. "statom".
// It keys both aggregation and price lookup.
type CollateralType string

// CollateralTypeFromBrand extracts the alleged name from a brand string
// ("$1.Alleged: stATOM brand" -> "statom"). ok is false when the brand has no name token.
func CollateralTypeFromBrand(brand string) (CollateralType, bool) {
	fields := strings.Fields(brand)
	if len(fields) < 2 {
		return "", false
	}
	return CollateralType(strings.ToLower(fields[1])), true
}

func (c CollateralType) String() string {
	return string(c)
}
