// Package money holds the fixed-point helpers shared by every price and total computation.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for amounts.
const Scale = 2

// Round rounds to two decimal places, half away from zero.
// For non-negative amounts this is round-half-up.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Equal compares two amounts after rounding both to two decimal places.
func Equal(a, b decimal.Decimal) bool {
	return Round(a).Equal(Round(b))
}

// Line returns unit × quantity without rounding.
func Line(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

// Parse reads a decimal string such as "13.50".
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("money: parse %q: %w", s, err)
	}
	return d, nil
}

// Format renders an amount with exactly two decimals.
func Format(d decimal.Decimal) string {
	return Round(d).StringFixed(Scale)
}
