package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vardenhq/varden/internal/billing"
	"github.com/vardenhq/varden/internal/domain"
	"github.com/vardenhq/varden/internal/service"
)

// mockCatalog resolves products from a fixed map.
type mockCatalog struct {
	products map[string]domain.Product
	err      error
}

func (m *mockCatalog) ResolveProducts(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	result := make(map[string]domain.Product)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			result[id] = p
		}
	}
	return result, nil
}

func newCheckoutFixture() (*mockCatalog, *billing.MockProvider, service.CheckoutService) {
	catalog := &mockCatalog{products: map[string]domain.Product{
		"prod_beans": {
			ID:         "prod_beans",
			Name:       "House Blend",
			PriceCents: 1800,
			Shipping:   domain.ShippingDescriptor{Mode: domain.ShippingModeFlat, PerUnitCents: 500},
		},
		"prod_mug": {
			ID:         "prod_mug",
			Name:       "Mug",
			PriceCents: 1200,
			Shipping:   domain.ShippingDescriptor{Mode: domain.ShippingModeFree},
		},
		"prod_grinder": {
			ID:         "prod_grinder",
			Name:       "Grinder",
			PriceCents: 9900,
			Shipping:   domain.ShippingDescriptor{Mode: domain.ShippingModeCalculated},
		},
	}}
	provider := billing.NewMockProvider()
	svc := service.NewCheckoutService(catalog, provider, nil, service.CheckoutConfig{
		PlatformFeeBasisPoints: 1000, // 10%
		Currency:               "usd",
	})
	return catalog, provider, svc
}

func Test_BuildTotal_ShippingAndFee(t *testing.T) {
	_, _, svc := newCheckoutFixture()

	// Flat 500/unit qty 2 plus a free-shipping item: shipping is 1000.
	total, err := svc.BuildTotal(context.Background(), map[string]int64{
		"prod_beans": 2,
		"prod_mug":   1,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1800*2+1200), total.ItemsSubtotalCents)
	assert.Equal(t, int64(1000), total.ShippingCents)
	assert.Equal(t, int64(480), total.PlatformFeeCents, "10% of 4800")
	assert.Equal(t, total.ItemsSubtotalCents+total.ShippingCents, total.GrandTotalCents,
		"platform fee comes out of seller proceeds, not the buyer total")
	assert.False(t, total.ShippingDeferred)
}

func Test_BuildTotal_CanonicalOrderIndependence(t *testing.T) {
	_, _, svc := newCheckoutFixture()
	cart := map[string]int64{"prod_mug": 1, "prod_beans": 2}

	a, err := svc.BuildTotal(context.Background(), cart)
	require.NoError(t, err)
	b, err := svc.BuildTotal(context.Background(), map[string]int64{"prod_beans": 2, "prod_mug": 1})
	require.NoError(t, err)

	aJSON, err := json.Marshal(a)
	require.NoError(t, err)
	bJSON, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, aJSON, bJSON, "canonical payloads must be byte-identical")

	// Lines are sorted by product id.
	require.Len(t, a.Lines, 2)
	assert.Equal(t, "prod_beans", a.Lines[0].ProductID)
	assert.Equal(t, "prod_mug", a.Lines[1].ProductID)
}

func Test_BuildTotal_Validation(t *testing.T) {
	stock := int64(3)
	maxPerOrder := int64(2)

	tests := []struct {
		name     string
		cart     map[string]int64
		products map[string]domain.Product
		expected error
	}{
		{
			name:     "empty cart",
			cart:     map[string]int64{},
			expected: domain.ErrEmptyCart,
		},
		{
			name:     "unknown product",
			cart:     map[string]int64{"prod_missing": 1},
			expected: domain.ErrProductUnavailable,
		},
		{
			name: "archived product",
			cart: map[string]int64{"prod_old": 1},
			products: map[string]domain.Product{
				"prod_old": {ID: "prod_old", PriceCents: 100, Archived: true},
			},
			expected: domain.ErrProductUnavailable,
		},
		{
			name: "quantity exceeds tracked stock",
			cart: map[string]int64{"prod_low": 5},
			products: map[string]domain.Product{
				"prod_low": {ID: "prod_low", PriceCents: 100, StockQuantity: &stock},
			},
			expected: domain.ErrInsufficientStock,
		},
		{
			name: "quantity exceeds per-product cap",
			cart: map[string]int64{"prod_capped": 3},
			products: map[string]domain.Product{
				"prod_capped": {ID: "prod_capped", PriceCents: 100, MaxPerOrder: &maxPerOrder},
			},
			expected: domain.ErrInsufficientStock,
		},
		{
			name:     "non-positive quantity",
			cart:     map[string]int64{"prod_beans": 0},
			expected: domain.ErrInvalidQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog, _, svc := newCheckoutFixture()
			for id, p := range tt.products {
				catalog.products[id] = p
			}

			_, err := svc.BuildTotal(context.Background(), tt.cart)
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func Test_BuildTotal_RejectsMixedShipping(t *testing.T) {
	_, _, svc := newCheckoutFixture()

	_, err := svc.BuildTotal(context.Background(), map[string]int64{
		"prod_beans":   1, // flat, nonzero
		"prod_grinder": 1, // calculated
	})
	assert.ErrorIs(t, err, domain.ErrMixedShippingMode)
}

func Test_CreateSession_IdempotentKey(t *testing.T) {
	_, provider, svc := newCheckoutFixture()

	params := service.CreateSessionParams{
		Cart:       map[string]int64{"prod_mug": 1, "prod_beans": 2},
		AccountID:  "acct_seller",
		SuccessURL: "https://shop.test/ok",
		CancelURL:  "https://shop.test/cancel",
		Salt:       "attempt-1",
	}

	first, err := svc.CreateSession(context.Background(), params)
	require.NoError(t, err)

	// Same cart with different client-side ordering and the same salt.
	params.Cart = map[string]int64{"prod_beans": 2, "prod_mug": 1}
	second, err := svc.CreateSession(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
	require.Len(t, provider.SessionKeys, 2)
	assert.Equal(t, provider.SessionKeys[0], provider.SessionKeys[1])

	// A fresh salt changes the key: a new attempt is a new charge.
	params.Salt = "attempt-2"
	third, err := svc.CreateSession(context.Background(), params)
	require.NoError(t, err)
	assert.NotEqual(t, first.Key, third.Key)
}

func Test_CreateSession_PassesFeeAndShippingToProcessor(t *testing.T) {
	_, provider, svc := newCheckoutFixture()

	var captured billing.CreateCheckoutSessionParams
	provider.CreateCheckoutSessionFunc = func(ctx context.Context, params billing.CreateCheckoutSessionParams) (*billing.CheckoutSession, error) {
		captured = params
		return &billing.CheckoutSession{ID: "cs_test", RedirectURL: "https://stripe.test/cs_test"}, nil
	}

	_, err := svc.CreateSession(context.Background(), service.CreateSessionParams{
		Cart:      map[string]int64{"prod_beans": 2},
		AccountID: "acct_seller",
		Salt:      "attempt-1",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(360), captured.ApplicationFeeCents, "10% of 3600")
	assert.Equal(t, int64(1000), captured.ShippingCents)
	assert.Equal(t, "acct_seller", captured.AccountID)
	assert.Equal(t, "usd", captured.Currency)
	assert.True(t, captured.AutomaticTax, "mock account reports tax-ready")
	assert.NotEmpty(t, captured.IdempotencyKey)
}

func Test_CreateSession_ProcessorFailureSurfaced(t *testing.T) {
	_, provider, svc := newCheckoutFixture()

	processorErr := &billing.ProcessorError{Message: "rate limited", Code: "rate_limit"}
	provider.CreateCheckoutSessionFunc = func(ctx context.Context, params billing.CreateCheckoutSessionParams) (*billing.CheckoutSession, error) {
		return nil, processorErr
	}

	_, err := svc.CreateSession(context.Background(), service.CreateSessionParams{
		Cart:      map[string]int64{"prod_mug": 1},
		AccountID: "acct_seller",
		Salt:      "attempt-1",
	})

	require.Error(t, err)
	assert.Equal(t, domain.EPAYMENT, domain.ErrorCode(err))

	var pe *billing.ProcessorError
	require.True(t, errors.As(err, &pe), "processor code/message preserved")
	assert.Equal(t, "rate_limit", pe.Code)
}
