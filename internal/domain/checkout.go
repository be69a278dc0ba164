package domain

import (
	"context"
)

// =============================================================================
// CHECKOUT DOMAIN ERRORS
// =============================================================================

var (
	ErrEmptyCart          = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrInvalidQuantity    = &Error{Code: EINVALID, Message: "Quantity must be greater than 0"}
	ErrProductUnavailable = &Error{Code: EINVALID, Message: "Product not available for purchase"}
	ErrInsufficientStock  = &Error{Code: EINVALID, Message: "Requested quantity exceeds available stock"}
	ErrMixedShippingMode  = &Error{Code: EINVALID, Message: "Flat and calculated shipping cannot be combined in one checkout"}
)

// Product is the catalog view consumed by checkout. Prices are always
// resolved from the catalog, never trusted from the client.
type Product struct {
	ID         string
	Name       string
	PriceCents int64
	Archived   bool

	// StockQuantity is the tracked inventory level. Nil means untracked.
	StockQuantity *int64

	// MaxPerOrder caps the quantity one checkout may request. Nil means
	// uncapped.
	MaxPerOrder *int64

	Shipping ShippingDescriptor
}

// ShippingMode selects how shipping is priced for a product.
type ShippingMode string

const (
	ShippingModeFree       ShippingMode = "free"
	ShippingModeFlat       ShippingMode = "flat"
	ShippingModeCalculated ShippingMode = "calculated"
)

// ShippingDescriptor is the normalized per-product shipping configuration.
type ShippingDescriptor struct {
	Mode ShippingMode

	// PerUnitCents is the flat per-unit shipping amount. Preferred over
	// LegacyPerUnit when both are present.
	PerUnitCents int64

	// LegacyPerUnit is the decimal dollar amount carried by older catalog
	// rows. Converted and rounded when PerUnitCents is absent.
	LegacyPerUnit float64
}

// CatalogService resolves products for checkout.
type CatalogService interface {
	// ResolveProducts returns the catalog rows for the given ids. Missing
	// ids are simply absent from the result; the caller decides whether
	// that is an error.
	ResolveProducts(ctx context.Context, ids []string) (map[string]Product, error)
}

// CheckoutLine is one canonical line of a checkout request after catalog
// resolution and sorting.
type CheckoutLine struct {
	ProductID      string `json:"product_id"`
	ProductName    string `json:"-"`
	Quantity       int64  `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

// CheckoutTotal is the canonical, order-independent checkout breakdown.
// Lines are sorted by (product id, unit price, quantity) so semantically
// equal carts serialize identically for idempotency-key derivation.
type CheckoutTotal struct {
	Lines              []CheckoutLine `json:"lines"`
	ItemsSubtotalCents int64          `json:"items_subtotal_cents"`
	ShippingCents      int64          `json:"shipping_cents"`

	// PlatformFeeCents is collected from the seller's proceeds, not added
	// to the buyer's charge.
	PlatformFeeCents int64 `json:"platform_fee_cents"`

	GrandTotalCents int64  `json:"grand_total_cents"`
	Currency        string `json:"currency"`

	// ShippingDeferred is set when any line uses calculated shipping and
	// the amount is resolved by the processor at checkout time.
	ShippingDeferred bool `json:"shipping_deferred"`
}

// CheckoutSession is the processor-side session created for a checkout.
type CheckoutSession struct {
	SessionID   string
	RedirectURL string
	Total       CheckoutTotal
	Key         string
}
