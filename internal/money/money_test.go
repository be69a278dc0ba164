package money_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vardenhq/varden/internal/money"
)

func Test_ToCents_RoundsToNearestCent(t *testing.T) {
	tests := []struct {
		name     string
		amount   float64
		expected int64
	}{
		{name: "whole dollars", amount: 25.00, expected: 2500},
		{name: "exact cents", amount: 19.99, expected: 1999},
		{name: "sub-cent rounds up", amount: 10.005, expected: 1001},
		{name: "sub-cent rounds down", amount: 10.004, expected: 1000},
		{name: "zero", amount: 0, expected: 0},
		{name: "float representation of 4.10", amount: 4.10, expected: 410},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cents, err := money.ToCents(tt.amount, false)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, cents)
		})
	}
}

func Test_ToCents_RejectsInvalidAmounts(t *testing.T) {
	_, err := money.ToCents(math.NaN(), false)
	assert.ErrorIs(t, err, money.ErrInvalidAmount)

	_, err = money.ToCents(math.Inf(1), false)
	assert.ErrorIs(t, err, money.ErrInvalidAmount)

	_, err = money.ToCents(-5.00, false)
	assert.ErrorIs(t, err, money.ErrInvalidAmount)
}

func Test_ToCents_AllowNegative(t *testing.T) {
	cents, err := money.ToCents(-5.25, true)
	assert.NoError(t, err)
	assert.Equal(t, int64(-525), cents)
}

func Test_Mul_Overflow(t *testing.T) {
	_, err := money.Mul(math.MaxInt64/2, 3)
	assert.ErrorIs(t, err, money.ErrArithmeticOverflow)

	result, err := money.Mul(2500, 4)
	assert.NoError(t, err)
	assert.Equal(t, int64(10000), result)

	result, err = money.Mul(0, math.MaxInt64)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), result)
}

func Test_RoundDiv_Proportionality(t *testing.T) {
	// Refunding 1 of 2 units of a 1000-cent line yields exactly 500.
	assert.Equal(t, int64(500), money.RoundDiv(1000*1, 2))

	// Halves round up.
	assert.Equal(t, int64(1), money.RoundDiv(1, 2))
	assert.Equal(t, int64(334), money.RoundDiv(1001, 3))
	assert.Equal(t, int64(333), money.RoundDiv(1000, 3))
}

func Test_Clamp(t *testing.T) {
	assert.Equal(t, int64(0), money.Clamp(-100))
	assert.Equal(t, int64(100), money.Clamp(100))
}
