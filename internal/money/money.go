// Package money provides integer-cents arithmetic for the settlement core.
//
// All amounts downstream of the conversion boundary are int64 cents.
// Multiplications that could overflow fail loudly instead of wrapping,
// because a wrapped amount is a financial bug, not a recoverable state.
package money

import (
	"errors"
	"math"
)

var (
	// ErrInvalidAmount is returned for non-finite or disallowed negative amounts.
	ErrInvalidAmount = errors.New("money: invalid amount")

	// ErrArithmeticOverflow is returned when a cents computation would
	// exceed the int64 range.
	ErrArithmeticOverflow = errors.New("money: arithmetic overflow")
)

// ToCents converts a decimal currency amount to integer cents, rounding
// half away from zero. Non-finite values are rejected. Negative amounts
// are rejected unless allowNegative is set.
func ToCents(amount float64, allowNegative bool) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, ErrInvalidAmount
	}
	if amount < 0 && !allowNegative {
		return 0, ErrInvalidAmount
	}

	cents := math.Round(amount * 100)
	if cents > math.MaxInt64 || cents < math.MinInt64 {
		return 0, ErrArithmeticOverflow
	}
	return int64(cents), nil
}

// Mul multiplies two cents amounts, failing with ErrArithmeticOverflow
// rather than silently wrapping.
func Mul(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	result := a * b
	if result/b != a {
		return 0, ErrArithmeticOverflow
	}
	return result, nil
}

// RoundDiv divides n by d, rounding half up. Used for proportional
// allocation so that refund shares land on exact cents deterministically.
// Panics if d <= 0; callers validate denominators (purchased quantities)
// before dividing.
func RoundDiv(n, d int64) int64 {
	if d <= 0 {
		panic("money: RoundDiv with non-positive divisor")
	}
	if n >= 0 {
		return (n + d/2) / d
	}
	return -((-n + d/2) / d)
}

// Clamp returns n if it is non-negative, otherwise 0.
func Clamp(n int64) int64 {
	if n < 0 {
		return 0
	}
	return n
}
