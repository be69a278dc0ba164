package billing

import (
	"context"
	"time"
)

// Provider defines the interface for payment processing.
// Implementations can use Stripe, PayPal, Square, etc.
type Provider interface {
	// CreateCheckoutSession creates a hosted checkout session for a cart.
	// The idempotency key makes caller-level retries safe; the processor
	// enforces at-most-one session per key.
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// CreateRefund issues a partial or full refund against a payment.
	// Funds are routed through the seller's connected account.
	CreateRefund(ctx context.Context, params CreateRefundParams) (*Refund, error)

	// GetAccount introspects a connected account's charge and tax
	// readiness. Used to decide whether automatic tax can be enabled on a
	// checkout session.
	GetAccount(ctx context.Context, accountID string) (*Account, error)

	// VerifyWebhookSignature verifies that a webhook request is authentic.
	VerifyWebhookSignature(payload []byte, signature string, secret string) error
}

// SessionLineItem is one priced line of a checkout session.
type SessionLineItem struct {
	// ProductID links back to our catalog (stored in metadata).
	ProductID string

	// Name shown to the customer.
	Name string

	Quantity int64

	// UnitAmountCents is the per-unit price in the smallest currency unit.
	UnitAmountCents int64
}

// CreateCheckoutSessionParams contains parameters for creating a session.
type CreateCheckoutSessionParams struct {
	LineItems []SessionLineItem

	// Currency code (ISO 4217 lowercase) - e.g., "usd"
	Currency string

	// ShippingCents is the locally-resolved flat shipping amount. Ignored
	// when DeferShipping is set.
	ShippingCents int64

	// DeferShipping lets the processor resolve shipping at checkout time
	// (calculated mode).
	DeferShipping bool

	// ApplicationFeeCents is the platform fee collected from the seller's
	// proceeds. Not added to the buyer's charge.
	ApplicationFeeCents int64

	// AccountID is the seller's connected account for fund routing.
	AccountID string

	// AutomaticTax enables processor-side tax calculation on the session.
	AutomaticTax bool

	SuccessURL string
	CancelURL  string

	// Metadata for filtering and forensic traceability.
	Metadata map[string]string

	// IdempotencyKey prevents duplicate sessions on retry.
	IdempotencyKey string
}

// CheckoutSession represents a created processor checkout session.
type CheckoutSession struct {
	// ID is the processor session ID (cs_... for Stripe).
	ID string

	// RedirectURL is where the buyer completes payment.
	RedirectURL string

	AmountTotalCents int64
	Currency         string
	CreatedAt        time.Time
}

// CreateRefundParams contains parameters for creating a refund.
type CreateRefundParams struct {
	// AmountCents to refund. Must be positive; full refunds pass the full
	// remaining amount explicitly.
	AmountCents int64

	// PaymentIntentID or ChargeID references the original payment. At
	// least one is required.
	PaymentIntentID string
	ChargeID        string

	// AccountID routes the refund through the seller's connected account.
	AccountID string

	// Reason: "duplicate", "fraudulent", "requested_by_customer".
	Reason string

	// Metadata echoes order id and selections for forensic traceability.
	Metadata map[string]string

	// IdempotencyKey makes retried refund requests safe.
	IdempotencyKey string
}

// Refund represents a processor refund.
type Refund struct {
	// ID is the processor refund ID (re_... for Stripe).
	ID string

	AmountCents int64

	// Status is the processor's raw status string; callers translate it
	// into the local enum.
	Status string

	CreatedAt time.Time
}

// Account is the introspected state of a connected account.
type Account struct {
	ID             string
	ChargesEnabled bool
	PayoutsEnabled bool

	// TaxReady reports whether processor-side tax calculation can be
	// enabled for this account.
	TaxReady bool
}
