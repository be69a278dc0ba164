package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/vardenhq/varden/internal/billing"
	"github.com/vardenhq/varden/internal/domain"
	"github.com/vardenhq/varden/internal/middleware"
)

// maxWebhookBody bounds the payload read for signature verification.
const maxWebhookBody = 64 * 1024

// WebhookHandler receives processor event notifications. Every payload is
// signature-verified before it is trusted.
type WebhookHandler struct {
	provider billing.Provider
	secret   string
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(provider billing.Provider, secret string) *WebhookHandler {
	return &WebhookHandler{provider: provider, secret: secret}
}

// webhookEvent is the envelope shared by processor events.
type webhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// HandleEvent handles POST /webhooks/stripe. Events are acknowledged once
// verified; unrecognized event types are acknowledged without action so
// the processor stops retrying them.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		ErrorResponse(w, r, domain.Invalid("webhook.read", "failed to read payload"))
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if err := h.provider.VerifyWebhookSignature(payload, signature, h.secret); err != nil {
		ErrorResponse(w, r, domain.Errorf(domain.EUNAUTHORIZED, "webhook.verify", "webhook signature verification failed"))
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		ErrorResponse(w, r, domain.Invalid("webhook.parse", "malformed event payload"))
		return
	}

	switch event.Type {
	case "checkout.session.completed",
		"refund.updated",
		"charge.refunded":
		logger.Info("processor event received", "event_id", event.ID, "type", event.Type)
	default:
		logger.Debug("ignoring processor event", "event_id", event.ID, "type", event.Type)
	}

	w.WriteHeader(http.StatusOK)
}
