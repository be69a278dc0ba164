package domain

import (
	"encoding/json"
	"time"
)

// RefundStatus is the local view of a processor refund's state.
type RefundStatus string

const (
	RefundStatusSucceeded RefundStatus = "succeeded"
	RefundStatusPending   RefundStatus = "pending"
	RefundStatusFailed    RefundStatus = "failed"
	RefundStatusCanceled  RefundStatus = "canceled"
)

// CountsTowardCaps reports whether records in this status consume refund
// headroom. Pending refunds count conservatively; failed and canceled do
// not.
func (s RefundStatus) CountsTowardCaps() bool {
	return s == RefundStatusSucceeded || s == RefundStatusPending
}

// RefundReason mirrors the processor's accepted refund reasons.
type RefundReason string

const (
	ReasonRequestedByCustomer RefundReason = "requested_by_customer"
	ReasonDuplicate           RefundReason = "duplicate"
	ReasonFraudulent          RefundReason = "fraudulent"
)

// SelectionKind tags a line selection as quantity-based or amount-based.
type SelectionKind string

const (
	SelectionByQuantity SelectionKind = "quantity"
	SelectionByAmount   SelectionKind = "amount"
)

// LineSelection references one order line plus either a quantity or an
// explicit cents amount to refund from it. The two shapes are mutually
// exclusive; Kind records which one this entry is.
//
// Persisted records carry a snapshot of the line's prices at refund time
// for forensic replay. Historical records written before the Kind tag
// existed are classified by field presence in Normalize.
type LineSelection struct {
	Kind   SelectionKind `json:"kind,omitempty"`
	ItemID string        `json:"item_id"`

	// Quantity of purchased units to refund proportionally. Set only for
	// quantity selections.
	Quantity int64 `json:"quantity,omitempty"`

	// AmountCents to refund explicitly against the line. Set only for
	// amount selections.
	AmountCents int64 `json:"amount_cents,omitempty"`

	// Price snapshot captured when the refund was created.
	UnitAmountCents  int64 `json:"unit_amount_cents,omitempty"`
	AmountTotalCents int64 `json:"amount_total_cents,omitempty"`
}

// Normalize returns the selection with its Kind tag populated. Legacy
// untagged records are classified by field presence: an explicit amount
// wins over a quantity, matching how the records were originally applied.
// This is the single interpretation boundary; the rest of the engine only
// ever sees tagged selections.
func (s LineSelection) Normalize() LineSelection {
	if s.Kind == SelectionByQuantity || s.Kind == SelectionByAmount {
		return s
	}
	if s.AmountCents > 0 {
		s.Kind = SelectionByAmount
		return s
	}
	s.Kind = SelectionByQuantity
	return s
}

// RefundRecord is the append-only audit record persisted once per
// successful processor refund call.
type RefundRecord struct {
	ID      string
	OrderID string

	// ProcessorRefundID is the processor's identifier (re_... for Stripe).
	ProcessorRefundID string

	AmountCents int64
	Status      RefundStatus

	Selections []LineSelection

	// Fee adjustments applied when the amount was computed.
	RestockingFeeCents  int64
	RefundShippingCents int64

	Reason RefundReason
	Notes  string

	// IdempotencyKey used for the processor call.
	IdempotencyKey string

	CreatedAt time.Time
}

// MarshalSelections encodes the selection list for persistence.
func MarshalSelections(selections []LineSelection) ([]byte, error) {
	return json.Marshal(selections)
}

// UnmarshalSelections decodes a persisted selection list, normalizing
// legacy untagged entries so callers never see the raw shape.
func UnmarshalSelections(data []byte) ([]LineSelection, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var selections []LineSelection
	if err := json.Unmarshal(data, &selections); err != nil {
		return nil, err
	}
	for i := range selections {
		selections[i] = selections[i].Normalize()
	}
	return selections, nil
}
