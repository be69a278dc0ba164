package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockProvider is a mock billing provider for testing.
// Simulates successful processor flows without calling the Stripe API.
type MockProvider struct {
	// CreateCheckoutSessionFunc allows customizing session creation behavior
	CreateCheckoutSessionFunc func(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// CreateRefundFunc allows customizing refund creation behavior
	CreateRefundFunc func(ctx context.Context, params CreateRefundParams) (*Refund, error)

	// GetAccountFunc allows customizing account introspection behavior
	GetAccountFunc func(ctx context.Context, accountID string) (*Account, error)

	// Sessions stores created checkout sessions for assertions
	Sessions map[string]*CheckoutSession

	// Refunds stores created refunds for assertions
	Refunds map[string]*Refund

	// SessionKeys records the idempotency key of each created session
	SessionKeys []string

	// RefundKeys records the idempotency key of each created refund
	RefundKeys []string

	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Sessions: make(map[string]*CheckoutSession),
		Refunds:  make(map[string]*Refund),
		CallLog:  []string{},
	}
}

// CreateCheckoutSession creates a mock checkout session.
func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateCheckoutSession(%d items, fee %d)", len(params.LineItems), params.ApplicationFeeCents))
	m.SessionKeys = append(m.SessionKeys, params.IdempotencyKey)

	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}

	var total int64
	for _, item := range params.LineItems {
		total += item.UnitAmountCents * item.Quantity
	}
	total += params.ShippingCents

	sess := &CheckoutSession{
		ID:               "cs_" + uuid.New().String(),
		RedirectURL:      "https://checkout.example.test/" + uuid.New().String(),
		AmountTotalCents: total,
		Currency:         params.Currency,
		CreatedAt:        time.Now(),
	}
	m.Sessions[sess.ID] = sess
	return sess, nil
}

// CreateRefund creates a mock refund in succeeded status.
func (m *MockProvider) CreateRefund(ctx context.Context, params CreateRefundParams) (*Refund, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateRefund(%d)", params.AmountCents))
	m.RefundKeys = append(m.RefundKeys, params.IdempotencyKey)

	if m.CreateRefundFunc != nil {
		return m.CreateRefundFunc(ctx, params)
	}

	r := &Refund{
		ID:          "re_" + uuid.New().String(),
		AmountCents: params.AmountCents,
		Status:      "succeeded",
		CreatedAt:   time.Now(),
	}
	m.Refunds[r.ID] = r
	return r, nil
}

// GetAccount returns a fully-enabled mock account.
func (m *MockProvider) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	m.CallLog = append(m.CallLog, fmt.Sprintf("GetAccount(%s)", accountID))

	if m.GetAccountFunc != nil {
		return m.GetAccountFunc(ctx, accountID)
	}

	return &Account{
		ID:             accountID,
		ChargesEnabled: true,
		PayoutsEnabled: true,
		TaxReady:       true,
	}, nil
}

// VerifyWebhookSignature accepts every signature.
func (m *MockProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	m.CallLog = append(m.CallLog, "VerifyWebhookSignature")
	return nil
}
