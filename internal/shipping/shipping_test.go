package shipping_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vardenhq/varden/internal/domain"
	"github.com/vardenhq/varden/internal/shipping"
)

func Test_PerItemCost_Modes(t *testing.T) {
	tests := []struct {
		name        string
		descriptor  domain.ShippingDescriptor
		expected    int64
		deferred    bool
		expectError bool
	}{
		{
			name:       "free is zero",
			descriptor: domain.ShippingDescriptor{Mode: domain.ShippingModeFree},
			expected:   0,
		},
		{
			name:       "flat uses explicit cents",
			descriptor: domain.ShippingDescriptor{Mode: domain.ShippingModeFlat, PerUnitCents: 500},
			expected:   500,
		},
		{
			name:       "flat prefers cents over legacy decimal",
			descriptor: domain.ShippingDescriptor{Mode: domain.ShippingModeFlat, PerUnitCents: 500, LegacyPerUnit: 9.99},
			expected:   500,
		},
		{
			name:       "flat converts legacy decimal when cents absent",
			descriptor: domain.ShippingDescriptor{Mode: domain.ShippingModeFlat, LegacyPerUnit: 4.995},
			expected:   500,
		},
		{
			name:       "flat clamps negative to zero",
			descriptor: domain.ShippingDescriptor{Mode: domain.ShippingModeFlat, PerUnitCents: -250},
			expected:   0,
		},
		{
			name:       "calculated defers to the processor",
			descriptor: domain.ShippingDescriptor{Mode: domain.ShippingModeCalculated},
			deferred:   true,
		},
		{
			name:        "unknown mode rejected",
			descriptor:  domain.ShippingDescriptor{Mode: "carrier_pigeon"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cost, err := shipping.PerItemCost(tt.descriptor)
			if tt.expectError {
				require.Error(t, err)
				assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cost.PerUnitCents)
			assert.Equal(t, tt.deferred, cost.Deferred)
		})
	}
}

func Test_Total_MultipliesByQuantity(t *testing.T) {
	// One flat item at 500/unit qty 2, one free item: shipping is 1000.
	total, deferred, err := shipping.Total(
		[]domain.ShippingDescriptor{
			{Mode: domain.ShippingModeFlat, PerUnitCents: 500},
			{Mode: domain.ShippingModeFree},
		},
		[]int64{2, 1},
	)

	require.NoError(t, err)
	assert.Equal(t, int64(1000), total)
	assert.False(t, deferred)
}

func Test_Total_RejectsMixedFlatAndCalculated(t *testing.T) {
	_, _, err := shipping.Total(
		[]domain.ShippingDescriptor{
			{Mode: domain.ShippingModeFlat, PerUnitCents: 500},
			{Mode: domain.ShippingModeCalculated},
		},
		[]int64{1, 1},
	)

	assert.ErrorIs(t, err, domain.ErrMixedShippingMode)
}

func Test_Total_ZeroFlatMixesWithCalculated(t *testing.T) {
	// A zero flat amount contributes nothing, so deferring the rest to the
	// processor is unambiguous.
	total, deferred, err := shipping.Total(
		[]domain.ShippingDescriptor{
			{Mode: domain.ShippingModeFlat, PerUnitCents: 0},
			{Mode: domain.ShippingModeCalculated},
		},
		[]int64{3, 1},
	)

	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.True(t, deferred)
}

func Test_Total_AllCalculated(t *testing.T) {
	total, deferred, err := shipping.Total(
		[]domain.ShippingDescriptor{
			{Mode: domain.ShippingModeCalculated},
			{Mode: domain.ShippingModeCalculated},
		},
		[]int64{1, 2},
	)

	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.True(t, deferred)
}
