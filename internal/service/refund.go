package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vardenhq/varden/internal/billing"
	"github.com/vardenhq/varden/internal/domain"
	"github.com/vardenhq/varden/internal/events"
	"github.com/vardenhq/varden/internal/idempotency"
	"github.com/vardenhq/varden/internal/money"
)

// RefundRequest is the caller's input to a refund computation.
type RefundRequest struct {
	Selections []domain.LineSelection

	// RestockingFeeCents is subtracted from the computed amount; negative
	// values are ignored.
	RestockingFeeCents int64

	// RefundShippingCents is added to the computed amount; negative
	// values are ignored.
	RefundShippingCents int64

	Reason domain.RefundReason

	// Notes are free text. Deliberately excluded from the idempotency
	// payload so cosmetic edits do not break dedup.
	Notes string

	// IdempotencyKey overrides the derived key when set.
	IdempotencyKey string
}

// RefundComputation is the validated outcome of the allocation engine,
// before any external side effect.
type RefundComputation struct {
	Order *domain.OrderSnapshot

	// AmountCents is the total to refund after adjustments.
	AmountCents int64

	// Selections are the normalized, snapshot-enriched selections that
	// will be persisted on the audit record.
	Selections []domain.LineSelection

	IdempotencyKey string
}

// RefundService computes partial-refund amounts from line selections,
// enforces caps against prior refunds, and orchestrates the processor
// call and the audit write.
type RefundService interface {
	// ComputeRefund runs the allocation engine without side effects.
	ComputeRefund(ctx context.Context, orderID string, req RefundRequest) (*RefundComputation, error)

	// CreateRefund computes, reserves the remaining balance, calls the
	// processor, and persists the audit record. The record is written
	// only after the processor call succeeds.
	CreateRefund(ctx context.Context, orderID string, req RefundRequest) (*domain.RefundRecord, error)

	// ListRefunds returns the order's refund audit records.
	ListRefunds(ctx context.Context, orderID string) ([]domain.RefundRecord, error)
}

type refundService struct {
	store     domain.OrderStore
	provider  billing.Provider
	publisher events.Publisher
	logger    *slog.Logger
}

// NewRefundService creates a new RefundService instance.
func NewRefundService(store domain.OrderStore, provider billing.Provider, publisher events.Publisher, logger *slog.Logger) RefundService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &refundService{
		store:     store,
		provider:  provider,
		publisher: publisher,
		logger:    logger,
	}
}

// priorTotals aggregates prior non-failed refund records into per-item
// refunded quantity and refunded amount. Legacy untagged selections are
// normalized at the interpretation boundary, so both shapes replay the
// same way.
type priorTotals struct {
	quantity map[string]int64
	amount   map[string]int64
}

func replayPriorRefunds(order *domain.OrderSnapshot, records []domain.RefundRecord) priorTotals {
	totals := priorTotals{
		quantity: make(map[string]int64),
		amount:   make(map[string]int64),
	}

	for _, record := range records {
		if !record.Status.CountsTowardCaps() {
			continue
		}
		for _, sel := range record.Selections {
			sel = sel.Normalize()
			switch sel.Kind {
			case domain.SelectionByAmount:
				totals.amount[sel.ItemID] += sel.AmountCents
			case domain.SelectionByQuantity:
				totals.quantity[sel.ItemID] += sel.Quantity
				if item, ok := order.Item(sel.ItemID); ok {
					numerator, err := money.Mul(item.LineTotalCents(), sel.Quantity)
					if err != nil {
						// A record this large cannot be allocated precisely;
						// count the whole line as refunded so the caps stay
						// closed instead of corrupting the amount map.
						totals.amount[sel.ItemID] += item.LineTotalCents()
						continue
					}
					totals.amount[sel.ItemID] += money.RoundDiv(numerator, item.Quantity)
				}
			}
		}
	}

	return totals
}

// ComputeRefund runs steps Validating → Computing → Capped | WithinCaps.
// Every failure is terminal and local: no partial state is written and
// the processor is never called from here.
func (s *refundService) ComputeRefund(ctx context.Context, orderID string, req RefundRequest) (*RefundComputation, error) {
	// Existence and reference checks.
	order, err := s.store.FindOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.HasPaymentReference() {
		return nil, domain.ErrMissingPaymentReference
	}
	if order.ProcessorAccountID == "" {
		return nil, domain.ErrMissingProcessorAccount
	}

	// Order-level ceiling, checked before the selections are even read.
	remaining := order.RemainingRefundableCents()
	if remaining <= 0 {
		return nil, ErrFullyRefunded
	}

	if len(req.Selections) == 0 {
		return nil, domain.Invalid("refund.compute", "at least one line selection is required")
	}

	// Replay prior refunds into per-item caps. Pending records count
	// conservatively; failed and canceled do not.
	prior, err := s.store.ListRefundsForOrder(ctx, orderID, nil)
	if err != nil {
		return nil, err
	}
	totals := replayPriorRefunds(order, prior)

	// Validate each selection and accumulate its contribution. Requested
	// quantities and amounts are folded into the running totals so that
	// several selections against the same line are jointly capped.
	var base int64
	selections := make([]domain.LineSelection, 0, len(req.Selections))

	for _, sel := range req.Selections {
		sel = sel.Normalize()

		item, ok := order.Item(sel.ItemID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrItemNotFound, sel.ItemID)
		}

		lineTotal := item.LineTotalCents()

		switch sel.Kind {
		case domain.SelectionByQuantity:
			if sel.Quantity <= 0 {
				return nil, fmt.Errorf("%w: item %s", domain.ErrInvalidQuantity, sel.ItemID)
			}
			// Compared against the remaining headroom rather than summed,
			// so a hostile quantity cannot wrap the comparison around.
			if sel.Quantity > item.Quantity || totals.quantity[sel.ItemID] > item.Quantity-sel.Quantity {
				return nil, fmt.Errorf("%w: item %s (%d requested, %d already refunded, %d purchased)",
					ErrExceedsPurchasedQuantity, sel.ItemID, sel.Quantity, totals.quantity[sel.ItemID], item.Quantity)
			}

			numerator, err := money.Mul(lineTotal, sel.Quantity)
			if err != nil {
				return nil, domain.WrapError(err, domain.EINTERNAL, "refund.compute", "line refund overflow")
			}
			lineRefund := money.RoundDiv(numerator, item.Quantity)

			totals.quantity[sel.ItemID] += sel.Quantity
			totals.amount[sel.ItemID] += lineRefund
			base += lineRefund

		case domain.SelectionByAmount:
			if sel.AmountCents <= 0 {
				return nil, domain.Errorf(domain.EINVALID, "refund.compute", "refund amount must be positive for item %s", sel.ItemID)
			}
			if sel.AmountCents+totals.amount[sel.ItemID] > lineTotal {
				return nil, fmt.Errorf("%w: item %s (%d requested, %d already refunded, line total %d)",
					ErrExceedsLineAmount, sel.ItemID, sel.AmountCents, totals.amount[sel.ItemID], lineTotal)
			}

			totals.amount[sel.ItemID] += sel.AmountCents
			base += sel.AmountCents
		}

		// Snapshot the line's prices for forensic replay.
		sel.UnitAmountCents = item.UnitAmountCents
		sel.AmountTotalCents = item.AmountTotalCents
		selections = append(selections, sel)
	}

	// Adjustments: shipping refunded on top, restocking fee subtracted.
	// Both are clamped at zero so a negative adjustment cannot warp the
	// computed amount.
	amount := base + money.Clamp(req.RefundShippingCents) - money.Clamp(req.RestockingFeeCents)
	if amount <= 0 {
		return nil, ErrNonPositiveRefundAmount
	}

	if amount > remaining {
		return nil, exceedsRefundable(amount, remaining)
	}

	key := req.IdempotencyKey
	if key == "" {
		key, err = deriveRefundKey(orderID, selections, req)
		if err != nil {
			return nil, domain.Internal(err, "refund.compute", "failed to derive idempotency key")
		}
	}

	return &RefundComputation{
		Order:          order,
		AmountCents:    amount,
		Selections:     selections,
		IdempotencyKey: key,
	}, nil
}

// refundKeyPayload is the canonical refund request shape hashed into the
// idempotency key. Notes are excluded: cosmetic edits must not break
// dedup across retries.
type refundKeyPayload struct {
	OrderID             string                 `json:"order_id"`
	Selections          []domain.LineSelection `json:"selections"`
	RestockingFeeCents  int64                  `json:"restocking_fee_cents"`
	RefundShippingCents int64                  `json:"refund_shipping_cents"`
	Reason              domain.RefundReason    `json:"reason"`
}

func deriveRefundKey(orderID string, selections []domain.LineSelection, req RefundRequest) (string, error) {
	// Stably-sorted copy so client-supplied ordering does not change the key.
	sorted := make([]domain.LineSelection, len(selections))
	copy(sorted, selections)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ItemID != sorted[j].ItemID {
			return sorted[i].ItemID < sorted[j].ItemID
		}
		if sorted[i].Kind != sorted[j].Kind {
			return sorted[i].Kind < sorted[j].Kind
		}
		if sorted[i].Quantity != sorted[j].Quantity {
			return sorted[i].Quantity < sorted[j].Quantity
		}
		return sorted[i].AmountCents < sorted[j].AmountCents
	})

	return idempotency.DeriveKey("refund", orderID, refundKeyPayload{
		OrderID:             orderID,
		Selections:          sorted,
		RestockingFeeCents:  money.Clamp(req.RestockingFeeCents),
		RefundShippingCents: money.Clamp(req.RefundShippingCents),
		Reason:              req.Reason,
	}, "")
}

// CreateRefund sequences the external refund call and the audit write.
// Ordering is the correctness mechanism: validation strictly precedes the
// reservation, which precedes the processor call, which precedes the
// audit write.
func (s *refundService) CreateRefund(ctx context.Context, orderID string, req RefundRequest) (*domain.RefundRecord, error) {
	comp, err := s.ComputeRefund(ctx, orderID, req)
	if err != nil {
		return nil, err
	}

	// Atomically reserve the remaining balance before the processor call.
	// A concurrent refund that got there first makes the conditional
	// update miss, which surfaces as the same ceiling error the engine
	// would have produced with fresh data.
	if err := s.store.ReserveRefundable(ctx, orderID, comp.AmountCents); err != nil {
		return nil, err
	}

	processorRefund, err := s.provider.CreateRefund(ctx, billing.CreateRefundParams{
		AmountCents:     comp.AmountCents,
		PaymentIntentID: comp.Order.PaymentIntentID,
		ChargeID:        comp.Order.ChargeID,
		AccountID:       comp.Order.ProcessorAccountID,
		Reason:          string(req.Reason),
		Metadata:        refundMetadata(orderID, comp.Selections),
		IdempotencyKey:  comp.IdempotencyKey,
	})
	if err != nil {
		// No audit record on processor failure; release the reservation
		// and surface the error. The idempotency key makes caller-level
		// retry safe, so no local retry is attempted.
		if releaseErr := s.store.ReleaseRefundable(ctx, orderID, comp.AmountCents); releaseErr != nil {
			s.logger.Error("failed to release refund reservation",
				"order_id", orderID, "amount_cents", comp.AmountCents, "error", releaseErr)
		}
		return nil, domain.WrapError(err, domain.EPAYMENT, "refund.create", "refund failed at payment processor")
	}

	record, err := s.store.CreateRefundRecord(ctx, domain.RefundRecord{
		OrderID:             orderID,
		ProcessorRefundID:   processorRefund.ID,
		AmountCents:         processorRefund.AmountCents,
		Status:              translateRefundStatus(processorRefund.Status),
		Selections:          comp.Selections,
		RestockingFeeCents:  money.Clamp(req.RestockingFeeCents),
		RefundShippingCents: money.Clamp(req.RefundShippingCents),
		Reason:              req.Reason,
		Notes:               req.Notes,
		IdempotencyKey:      comp.IdempotencyKey,
	})
	if err != nil {
		// The processor refund already happened; the reservation stays so
		// the ceiling remains accurate even though the audit record is
		// missing. Surface loudly for reconciliation.
		return nil, domain.Internal(err, "refund.create",
			fmt.Sprintf("refund %s succeeded at processor but audit record write failed", processorRefund.ID))
	}

	// A synchronously failed or canceled refund does not count toward the
	// caps, so its reservation is handed back.
	if !record.Status.CountsTowardCaps() {
		if releaseErr := s.store.ReleaseRefundable(ctx, orderID, comp.AmountCents); releaseErr != nil {
			s.logger.Error("failed to release reservation for non-counting refund",
				"order_id", orderID, "refund_id", record.ID, "error", releaseErr)
		}
	}

	s.publisher.Publish(ctx, events.RefundCreated{
		RefundID:          record.ID,
		OrderID:           orderID,
		ProcessorRefundID: record.ProcessorRefundID,
		AmountCents:       record.AmountCents,
		Status:            string(record.Status),
	})

	return record, nil
}

// ListRefunds returns the order's refund audit records.
func (s *refundService) ListRefunds(ctx context.Context, orderID string) ([]domain.RefundRecord, error) {
	if _, err := s.store.FindOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.ListRefundsForOrder(ctx, orderID, nil)
}

// translateRefundStatus maps the processor's status into the local enum.
// Unrecognized or transient statuses default to pending rather than
// failing the operation; pending counts toward caps, so the conservative
// default cannot over-refund.
func translateRefundStatus(status string) domain.RefundStatus {
	switch status {
	case "succeeded":
		return domain.RefundStatusSucceeded
	case "failed":
		return domain.RefundStatusFailed
	case "canceled":
		return domain.RefundStatusCanceled
	default:
		return domain.RefundStatusPending
	}
}

// refundMetadata echoes the order id and selections onto the processor
// refund for forensic traceability.
func refundMetadata(orderID string, selections []domain.LineSelection) map[string]string {
	metadata := map[string]string{"order_id": orderID}
	if encoded, err := domain.MarshalSelections(selections); err == nil {
		metadata["selections"] = string(encoded)
	}
	return metadata
}
