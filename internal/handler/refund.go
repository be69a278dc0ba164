package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vardenhq/varden/internal/domain"
	"github.com/vardenhq/varden/internal/middleware"
	"github.com/vardenhq/varden/internal/service"
)

// RefundHandler serves refund computation previews, refund creation, and
// the order's refund history.
type RefundHandler struct {
	refunds  service.RefundService
	metrics  *middleware.Metrics
	validate *validator.Validate
}

// NewRefundHandler creates a new refund handler. metrics may be nil.
func NewRefundHandler(refunds service.RefundService, metrics *middleware.Metrics) *RefundHandler {
	return &RefundHandler{
		refunds:  refunds,
		metrics:  metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type refundRequest struct {
	Selections          []selectionRequest  `json:"selections" validate:"required,min=1,dive"`
	RestockingFeeCents  int64               `json:"restocking_fee_cents" validate:"min=0"`
	RefundShippingCents int64               `json:"refund_shipping_cents" validate:"min=0"`
	Reason              domain.RefundReason `json:"reason" validate:"omitempty,oneof=requested_by_customer duplicate fraudulent"`
	Notes               string              `json:"notes"`
	IdempotencyKey      string              `json:"idempotency_key"`
}

type selectionRequest struct {
	Kind        domain.SelectionKind `json:"kind" validate:"omitempty,oneof=quantity amount"`
	ItemID      string               `json:"item_id" validate:"required"`
	Quantity    int64                `json:"quantity"`
	AmountCents int64                `json:"amount_cents"`
}

type refundResponse struct {
	ID                  string                 `json:"id"`
	OrderID             string                 `json:"order_id"`
	ProcessorRefundID   string                 `json:"processor_refund_id,omitempty"`
	AmountCents         int64                  `json:"amount_cents"`
	Status              domain.RefundStatus    `json:"status"`
	Selections          []domain.LineSelection `json:"selections"`
	RestockingFeeCents  int64                  `json:"restocking_fee_cents,omitempty"`
	RefundShippingCents int64                  `json:"refund_shipping_cents,omitempty"`
	Reason              domain.RefundReason    `json:"reason,omitempty"`
	Notes               string                 `json:"notes,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
}

type previewResponse struct {
	AmountCents    int64                  `json:"amount_cents"`
	Selections     []domain.LineSelection `json:"selections"`
	IdempotencyKey string                 `json:"idempotency_key"`
}

func (h *RefundHandler) parseRequest(r *http.Request) (service.RefundRequest, error) {
	var req refundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return service.RefundRequest{}, domain.Invalid("refund.parse", "invalid request body")
	}
	if err := h.validate.Struct(req); err != nil {
		return service.RefundRequest{}, domain.Invalid("refund.parse", validationMessage(err))
	}

	selections := make([]domain.LineSelection, len(req.Selections))
	for i, sel := range req.Selections {
		// Untagged selections setting both fields are ambiguous. Legacy
		// kind inference is for persisted records only, never new input.
		if sel.Kind == "" && sel.Quantity != 0 && sel.AmountCents != 0 {
			return service.RefundRequest{}, domain.Invalid("refund.parse",
				"selection for item "+sel.ItemID+" sets both quantity and amount_cents; tag it with kind")
		}
		selections[i] = domain.LineSelection{
			Kind:        sel.Kind,
			ItemID:      sel.ItemID,
			Quantity:    sel.Quantity,
			AmountCents: sel.AmountCents,
		}
	}

	return service.RefundRequest{
		Selections:          selections,
		RestockingFeeCents:  req.RestockingFeeCents,
		RefundShippingCents: req.RefundShippingCents,
		Reason:              req.Reason,
		Notes:               req.Notes,
		IdempotencyKey:      req.IdempotencyKey,
	}, nil
}

// Preview handles POST /api/orders/{id}/refunds/preview. It runs the
// allocation engine without side effects.
func (h *RefundHandler) Preview(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	req, err := h.parseRequest(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	comp, err := h.refunds.ComputeRefund(r.Context(), orderID, req)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, previewResponse{
		AmountCents:    comp.AmountCents,
		Selections:     comp.Selections,
		IdempotencyKey: comp.IdempotencyKey,
	})
}

// Create handles POST /api/orders/{id}/refunds.
func (h *RefundHandler) Create(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	req, err := h.parseRequest(r)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	record, err := h.refunds.CreateRefund(r.Context(), orderID, req)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordRefund("rejected", 0)
		}
		ErrorResponse(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordRefund(string(record.Status), record.AmountCents)
	}

	respondJSON(w, http.StatusCreated, toRefundResponse(*record))
}

// List handles GET /api/orders/{id}/refunds.
func (h *RefundHandler) List(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	records, err := h.refunds.ListRefunds(r.Context(), orderID)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	out := make([]refundResponse, len(records))
	for i, record := range records {
		out[i] = toRefundResponse(record)
	}

	respondJSON(w, http.StatusOK, map[string]any{"refunds": out})
}

func toRefundResponse(record domain.RefundRecord) refundResponse {
	return refundResponse{
		ID:                  record.ID,
		OrderID:             record.OrderID,
		ProcessorRefundID:   record.ProcessorRefundID,
		AmountCents:         record.AmountCents,
		Status:              record.Status,
		Selections:          record.Selections,
		RestockingFeeCents:  record.RestockingFeeCents,
		RefundShippingCents: record.RefundShippingCents,
		Reason:              record.Reason,
		Notes:               record.Notes,
		CreatedAt:           record.CreatedAt,
	}
}
