package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/vardenhq/varden/internal/billing"
	"github.com/vardenhq/varden/internal/domain"
	"github.com/vardenhq/varden/internal/events"
	"github.com/vardenhq/varden/internal/idempotency"
	"github.com/vardenhq/varden/internal/money"
	"github.com/vardenhq/varden/internal/shipping"
)

// CheckoutConfig carries the platform-level constants injected into the
// total builder, instead of ambient global state, so tests can vary them
// per case.
type CheckoutConfig struct {
	// PlatformFeeBasisPoints is the platform fee rate in basis points
	// (e.g., 1000 for 10%). The fee is collected from the seller's
	// proceeds, never added to the buyer's charge.
	PlatformFeeBasisPoints int64

	// Currency is the ISO 4217 lowercase currency code for sessions.
	Currency string
}

// CheckoutService builds deterministic checkout totals and creates
// idempotent payment sessions from them.
type CheckoutService interface {
	// BuildTotal aggregates a cart into the canonical checkout breakdown.
	// Prices and shipping descriptors come from the catalog; client input
	// contributes only product ids and quantities.
	BuildTotal(ctx context.Context, cart map[string]int64) (*domain.CheckoutTotal, error)

	// CreateSession builds the total and creates the processor session
	// for it, deriving the idempotency key from the canonical payload.
	CreateSession(ctx context.Context, params CreateSessionParams) (*domain.CheckoutSession, error)
}

// CreateSessionParams contains parameters for creating a checkout session.
type CreateSessionParams struct {
	// Cart maps product id to requested quantity.
	Cart map[string]int64

	// AccountID is the seller's processor account for fund routing.
	AccountID string

	SuccessURL string
	CancelURL  string

	// Salt is the per-attempt idempotency salt. Generated fresh when
	// empty; fixed by tests and by retries that want the same session.
	Salt string
}

type checkoutService struct {
	catalog   domain.CatalogService
	provider  billing.Provider
	publisher events.Publisher
	config    CheckoutConfig
}

// NewCheckoutService creates a new CheckoutService instance.
func NewCheckoutService(catalog domain.CatalogService, provider billing.Provider, publisher events.Publisher, config CheckoutConfig) CheckoutService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &checkoutService{
		catalog:   catalog,
		provider:  provider,
		publisher: publisher,
		config:    config,
	}
}

// BuildTotal aggregates cart lines into subtotal, shipping, and platform
// fee, producing the canonical order-independent structure used for
// idempotency-key derivation.
func (s *checkoutService) BuildTotal(ctx context.Context, cart map[string]int64) (*domain.CheckoutTotal, error) {
	if len(cart) == 0 {
		return nil, domain.ErrEmptyCart
	}

	ids := make([]string, 0, len(cart))
	for id, qty := range cart {
		if qty <= 0 {
			return nil, fmt.Errorf("%w: product %s", domain.ErrInvalidQuantity, id)
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	products, err := s.catalog.ResolveProducts(ctx, ids)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "checkout.build", "failed to resolve products")
	}

	lines := make([]domain.CheckoutLine, 0, len(ids))
	descriptors := make([]domain.ShippingDescriptor, 0, len(ids))
	quantities := make([]int64, 0, len(ids))
	var subtotal int64

	for _, id := range ids {
		qty := cart[id]

		product, ok := products[id]
		if !ok || product.Archived {
			return nil, fmt.Errorf("%w: %s", domain.ErrProductUnavailable, id)
		}
		if product.MaxPerOrder != nil && qty > *product.MaxPerOrder {
			return nil, fmt.Errorf("%w: %s allows at most %d per order", domain.ErrInsufficientStock, id, *product.MaxPerOrder)
		}
		if product.StockQuantity != nil && qty > *product.StockQuantity {
			return nil, fmt.Errorf("%w: %s has %d in stock", domain.ErrInsufficientStock, id, *product.StockQuantity)
		}

		lineSubtotal, err := money.Mul(product.PriceCents, qty)
		if err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, "checkout.build", "line subtotal overflow")
		}

		lines = append(lines, domain.CheckoutLine{
			ProductID:      id,
			ProductName:    product.Name,
			Quantity:       qty,
			UnitPriceCents: product.PriceCents,
			SubtotalCents:  lineSubtotal,
		})
		descriptors = append(descriptors, product.Shipping)
		quantities = append(quantities, qty)
		subtotal += lineSubtotal
	}

	shippingCents, deferred, err := shipping.Total(descriptors, quantities)
	if err != nil {
		return nil, err
	}

	// Canonical ordering: item id, then unit price, then quantity. Ids are
	// unique per cart so the extra keys only matter for stability if that
	// ever changes.
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].ProductID != lines[j].ProductID {
			return lines[i].ProductID < lines[j].ProductID
		}
		if lines[i].UnitPriceCents != lines[j].UnitPriceCents {
			return lines[i].UnitPriceCents < lines[j].UnitPriceCents
		}
		return lines[i].Quantity < lines[j].Quantity
	})

	feeNumerator, err := money.Mul(subtotal, s.config.PlatformFeeBasisPoints)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "checkout.build", "platform fee overflow")
	}
	fee := money.Clamp(money.RoundDiv(feeNumerator, 10000))

	return &domain.CheckoutTotal{
		Lines:              lines,
		ItemsSubtotalCents: subtotal,
		ShippingCents:      shippingCents,
		PlatformFeeCents:   fee,
		GrandTotalCents:    subtotal + shippingCents,
		Currency:           s.config.Currency,
		ShippingDeferred:   deferred,
	}, nil
}

// CreateSession builds the checkout total and creates the processor
// session for it.
func (s *checkoutService) CreateSession(ctx context.Context, params CreateSessionParams) (*domain.CheckoutSession, error) {
	total, err := s.BuildTotal(ctx, params.Cart)
	if err != nil {
		return nil, err
	}

	salt := params.Salt
	if salt == "" {
		salt, err = idempotency.NewSalt()
		if err != nil {
			return nil, domain.Internal(err, "checkout.session", "failed to generate idempotency salt")
		}
	}

	key, err := idempotency.DeriveKey("checkout.session", params.AccountID, total, salt)
	if err != nil {
		return nil, domain.Internal(err, "checkout.session", "failed to derive idempotency key")
	}

	// Automatic tax requires a fully onboarded account; fall back to no
	// automatic tax when introspection reports otherwise.
	automaticTax := false
	if acct, err := s.provider.GetAccount(ctx, params.AccountID); err == nil {
		automaticTax = acct.TaxReady
	}

	lineItems := make([]billing.SessionLineItem, len(total.Lines))
	for i, line := range total.Lines {
		lineItems[i] = billing.SessionLineItem{
			ProductID:       line.ProductID,
			Name:            line.ProductName,
			Quantity:        line.Quantity,
			UnitAmountCents: line.UnitPriceCents,
		}
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, billing.CreateCheckoutSessionParams{
		LineItems:           lineItems,
		Currency:            total.Currency,
		ShippingCents:       total.ShippingCents,
		DeferShipping:       total.ShippingDeferred,
		ApplicationFeeCents: total.PlatformFeeCents,
		AccountID:           params.AccountID,
		AutomaticTax:        automaticTax,
		SuccessURL:          params.SuccessURL,
		CancelURL:           params.CancelURL,
		Metadata: map[string]string{
			"items_subtotal_cents": fmt.Sprintf("%d", total.ItemsSubtotalCents),
			"shipping_cents":       fmt.Sprintf("%d", total.ShippingCents),
			"platform_fee_cents":   fmt.Sprintf("%d", total.PlatformFeeCents),
		},
		IdempotencyKey: key,
	})
	if err != nil {
		return nil, domain.WrapError(err, domain.EPAYMENT, "checkout.session", "checkout session creation failed")
	}

	s.publisher.Publish(ctx, events.CheckoutSessionCreated{
		SessionID:       sess.ID,
		AccountID:       params.AccountID,
		GrandTotalCents: total.GrandTotalCents,
		Currency:        total.Currency,
	})

	return &domain.CheckoutSession{
		SessionID:   sess.ID,
		RedirectURL: sess.RedirectURL,
		Total:       *total,
		Key:         key,
	}, nil
}
