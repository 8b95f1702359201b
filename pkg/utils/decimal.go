package utils

import (
	"github.com/shopspring/decimal"
)

// DefaultQuantityPrecision is the number of decimal places quantities are truncated to.
const DefaultQuantityPrecision = 8

// RoundToDecimalPrecision truncates the quantity to the specified decimal precision.
// Truncation never rounds a quantity up past what was actually available.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	return decimal.NewFromFloat(quantity).Truncate(int32(decimalPrecision)).InexactFloat64()
}

// SplitEvenly divides total into n legs truncated to precision.
// The last leg absorbs the rounding remainder so the legs always sum to total.
func SplitEvenly(total decimal.Decimal, n int, precision int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}

	legs := make([]decimal.Decimal, n)
	share := total.Div(decimal.NewFromInt(int64(n))).Truncate(int32(precision))
	allocated := decimal.Zero

	for i := 0; i < n-1; i++ {
		legs[i] = share
		allocated = allocated.Add(share)
	}

	legs[n-1] = total.Sub(allocated)

	return legs
}

// PercentOf returns value as a percentage of base. A zero base yields zero.
func PercentOf(value, base float64) float64 {
	if base == 0 {
		return 0
	}

	return decimal.NewFromFloat(value).
		Div(decimal.NewFromFloat(base)).
		Mul(decimal.NewFromInt(100)).
		InexactFloat64()
}

// WithinBand reports whether price lies inside +/- pct percent of reference.
func WithinBand(price, reference, pct float64) bool {
	ref := decimal.NewFromFloat(reference)
	width := ref.Mul(decimal.NewFromFloat(pct)).Div(decimal.NewFromInt(100)).Abs()
	diff := decimal.NewFromFloat(price).Sub(ref).Abs()

	return diff.LessThanOrEqual(width)
}
