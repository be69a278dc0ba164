package service

import (
	"fmt"

	"github.com/vardenhq/varden/internal/domain"
)

// Validation errors (client-correctable).
var (
	ErrItemNotFound             = &domain.Error{Code: domain.EINVALID, Message: "Order item not found"}
	ErrExceedsPurchasedQuantity = &domain.Error{Code: domain.EINVALID, Message: "Refund quantity exceeds purchased quantity"}
	ErrExceedsLineAmount        = &domain.Error{Code: domain.EINVALID, Message: "Refund amount exceeds the line item total"}
	ErrNonPositiveRefundAmount  = &domain.Error{Code: domain.EINVALID, Message: "Computed refund amount must be positive"}
)

// Business-rule ceilings (order-state-dependent).
var (
	ErrFullyRefunded = &domain.Error{Code: domain.EUNPROCESSABLE, Message: "Order is already fully refunded"}
)

// ExceedsRefundableError is returned when a computed refund amount
// exceeds the order's remaining refundable balance. It carries both
// amounts so the caller can render an actionable message.
type ExceedsRefundableError struct {
	RequestedCents int64
	RemainingCents int64
}

func (e *ExceedsRefundableError) Error() string {
	return fmt.Sprintf("requested refund of %d cents exceeds remaining refundable %d cents", e.RequestedCents, e.RemainingCents)
}

// exceedsRefundable wraps the detail error in a domain error so the
// handler layer maps it to a business-rule status.
func exceedsRefundable(requested, remaining int64) error {
	return &domain.Error{
		Code:    domain.EUNPROCESSABLE,
		Op:      "refund.ceiling",
		Message: fmt.Sprintf("Refund of %d cents exceeds remaining refundable %d cents", requested, remaining),
		Err:     &ExceedsRefundableError{RequestedCents: requested, RemainingCents: remaining},
	}
}
