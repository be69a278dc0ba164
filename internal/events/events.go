// Package events publishes settlement events for downstream consumers
// (analytics, fulfillment, notification). Publishing is best-effort:
// a failed publish never fails the money flow that produced it.
package events

import (
	"context"
)

// Event is a publishable settlement event.
type Event interface {
	// Subject is the broker subject the event is published on.
	Subject() string
}

// CheckoutSessionCreated is emitted after a processor session exists.
type CheckoutSessionCreated struct {
	SessionID       string `json:"session_id"`
	AccountID       string `json:"account_id"`
	GrandTotalCents int64  `json:"grand_total_cents"`
	Currency        string `json:"currency"`
}

func (CheckoutSessionCreated) Subject() string { return "checkout.session.created" }

// RefundCreated is emitted after the refund audit record is persisted.
type RefundCreated struct {
	RefundID          string `json:"refund_id"`
	OrderID           string `json:"order_id"`
	ProcessorRefundID string `json:"processor_refund_id"`
	AmountCents       int64  `json:"amount_cents"`
	Status            string `json:"status"`
}

func (RefundCreated) Subject() string { return "refund.created" }

// Publisher emits events to whatever broker is configured.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Noop discards all events. Used when no broker is configured and in
// tests that do not assert on events.
type Noop struct{}

func (Noop) Publish(ctx context.Context, event Event) {}
