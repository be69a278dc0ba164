package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingPaymentReference is returned when a refund has neither a
	// payment intent nor a charge reference.
	ErrMissingPaymentReference = errors.New("billing: refund requires a payment intent or charge reference")

	// ErrAmountNotPositive is returned when a refund amount is zero or
	// negative before the processor is called.
	ErrAmountNotPositive = errors.New("billing: refund amount must be positive")

	// ErrInvalidWebhookSignature is returned when webhook signature
	// verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")
)

// ProcessorError wraps a payment-processor API error with the processor's
// code and message preserved, so callers can surface machine-readable
// failures without depending on the SDK's error types.
type ProcessorError struct {
	Message       string // Human-readable error message
	Code          string // Processor error code (e.g., "charge_already_refunded")
	RequestID     string // Processor request ID for debugging
	OriginalError error  // Original error from the SDK
}

func (e *ProcessorError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("processor: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("processor: %s", e.Message)
}

func (e *ProcessorError) Unwrap() error {
	return e.OriginalError
}

// IsTemporary returns true if the error is likely transient and a
// caller-level retry (with the same idempotency key) is reasonable.
func (e *ProcessorError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.Code == "api_connection_error" || e.Code == "lock_timeout"
}
