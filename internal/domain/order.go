package domain

import (
	"context"
	"time"
)

// =============================================================================
// ORDER DOMAIN ERRORS
// =============================================================================

var (
	ErrOrderNotFound           = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrMissingPaymentReference = &Error{Code: EINTERNAL, Message: "Order is missing a payment reference"}
	ErrMissingProcessorAccount = &Error{Code: EINTERNAL, Message: "Order is missing a processor account reference"}
)

// OrderSnapshot is the read-only view of an order consumed by the refund
// engine. It is read fresh on every refund request; nothing in the engine
// mutates it.
type OrderSnapshot struct {
	ID       string
	Currency string

	// TotalCents is the authoritative order total.
	TotalCents int64

	// RefundedTotalCents is the cumulative amount already refunded.
	// Monotonically non-decreasing; maintained by the store's reservation
	// update, never written directly by the engine.
	RefundedTotalCents int64

	Items []OrderItem

	// Payment references. At least one of PaymentIntentID or ChargeID is
	// required before any refund can be issued.
	PaymentIntentID string
	ChargeID        string

	// ProcessorAccountID routes funds to the seller's connected account.
	ProcessorAccountID string

	CreatedAt time.Time
}

// OrderItem is one line of an order with its price snapshot.
type OrderItem struct {
	// ItemID is stable and unique within the order.
	ItemID string

	// Quantity purchased. Always positive.
	Quantity int64

	UnitAmountCents int64

	// AmountTotalCents is the authoritative per-line total. It may embed
	// tax or discounts, so it is preferred over UnitAmountCents*Quantity
	// whenever present (non-zero).
	AmountTotalCents int64

	AmountTaxCents int64

	ProductName string
}

// LineTotalCents returns the authoritative total for the line, falling
// back to unit price times quantity when no per-line total was captured.
func (i OrderItem) LineTotalCents() int64 {
	if i.AmountTotalCents > 0 {
		return i.AmountTotalCents
	}
	return i.UnitAmountCents * i.Quantity
}

// RemainingRefundableCents returns the order-level refund ceiling.
func (o *OrderSnapshot) RemainingRefundableCents() int64 {
	return o.TotalCents - o.RefundedTotalCents
}

// Item resolves a line item by its stable identifier.
func (o *OrderSnapshot) Item(itemID string) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.ItemID == itemID {
			return item, true
		}
	}
	return OrderItem{}, false
}

// HasPaymentReference reports whether the order carries at least one
// processor payment reference.
func (o *OrderSnapshot) HasPaymentReference() bool {
	return o.PaymentIntentID != "" || o.ChargeID != ""
}

// OrderStore is the persistence boundary for orders and refund audit
// records. Implementations are PostgreSQL in production and an in-memory
// mock in tests.
type OrderStore interface {
	// FindOrder returns the order snapshot, or ErrOrderNotFound.
	FindOrder(ctx context.Context, orderID string) (*OrderSnapshot, error)

	// ListRefundsForOrder returns all refund audit records for the order
	// whose status is in statuses. Pass nil for all statuses.
	ListRefundsForOrder(ctx context.Context, orderID string, statuses []RefundStatus) ([]RefundRecord, error)

	// CreateRefundRecord appends one refund audit record. Records are
	// never mutated after creation.
	CreateRefundRecord(ctx context.Context, record RefundRecord) (*RefundRecord, error)

	// ReserveRefundable atomically increments the order's refunded total
	// by amountCents, failing with ErrExceedsRefundable semantics (a
	// conditional-update miss) if the increment would exceed the order
	// total. Taken immediately before the processor call.
	ReserveRefundable(ctx context.Context, orderID string, amountCents int64) error

	// ReleaseRefundable reverts a reservation after a failed processor
	// call. Best-effort; the caller logs but does not fail on error.
	ReleaseRefundable(ctx context.Context, orderID string, amountCents int64) error
}
