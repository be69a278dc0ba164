package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/vardenhq/varden/internal/domain"
	"github.com/vardenhq/varden/internal/service"
)

// CheckoutHandler serves checkout total previews and session creation.
type CheckoutHandler struct {
	checkout service.CheckoutService
	validate *validator.Validate
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(checkout service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// totalRequest is the cart payload for both preview and session creation.
type totalRequest struct {
	// Cart maps product id to requested quantity.
	Cart map[string]int64 `json:"cart" validate:"required,min=1"`
}

type sessionRequest struct {
	Cart       map[string]int64 `json:"cart" validate:"required,min=1"`
	AccountID  string           `json:"account_id" validate:"required"`
	SuccessURL string           `json:"success_url" validate:"required,url"`
	CancelURL  string           `json:"cancel_url" validate:"required,url"`
}

type sessionResponse struct {
	SessionID   string               `json:"session_id"`
	RedirectURL string               `json:"redirect_url"`
	Total       domain.CheckoutTotal `json:"total"`
}

// Total handles POST /api/checkout/totals. It returns the canonical
// breakdown without touching the payment processor.
func (h *CheckoutHandler) Total(w http.ResponseWriter, r *http.Request) {
	var req totalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("checkout.total", "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		ErrorResponse(w, r, domain.Invalid("checkout.total", "cart is required"))
		return
	}

	total, err := h.checkout.BuildTotal(r.Context(), req.Cart)
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, total)
}

// CreateSession handles POST /api/checkout/sessions.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, domain.Invalid("checkout.session", "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		ErrorResponse(w, r, domain.Invalid("checkout.session", validationMessage(err)))
		return
	}

	sess, err := h.checkout.CreateSession(r.Context(), service.CreateSessionParams{
		Cart:       req.Cart,
		AccountID:  req.AccountID,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		ErrorResponse(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, sessionResponse{
		SessionID:   sess.SessionID,
		RedirectURL: sess.RedirectURL,
		Total:       sess.Total,
	})
}

// validationMessage flattens validator errors into one user-facing line.
func validationMessage(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return "invalid request"
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "url":
		return fe.Field() + " must be a valid URL"
	case "min":
		return fe.Field() + " must not be empty"
	default:
		return fe.Field() + " is invalid"
	}
}
