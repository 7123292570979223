// Package money converts the provider's integer milli-units into decimal
// currency and owns the rounding rules applied at presentation boundaries.
package money

import "github.com/shopspring/decimal"

var (
	milliPerUnit = decimal.NewFromInt(1000)

	// epsilon is the display-zero threshold: anything smaller in magnitude
	// than half a cent renders as zero.
	epsilon = decimal.New(5, -3)
)

// FromMilli converts a signed milli-unit amount (1000 = one currency unit)
// to its decimal value. The conversion is exact; rounding happens only in
// RoundCents.
func FromMilli(milli int64) decimal.Decimal {
	return decimal.NewFromInt(milli).Div(milliPerUnit)
}

// RoundCents rounds to two decimal places using round-half-to-even. Call it
// at presentation boundaries only; internal arithmetic keeps full precision.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// IsZero reports whether d displays as zero (|d| < 0.005). The sign of a
// sub-epsilon value is still preserved by the caller's data.
func IsZero(d decimal.Decimal) bool {
	return d.Abs().LessThan(epsilon)
}
