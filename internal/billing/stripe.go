package billing

import (
	"context"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/account"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements Provider using Stripe Connect destination
// charges: the platform charges the buyer, collects the application fee,
// and transfers the remainder to the seller's connected account.
type StripeProvider struct {
	config StripeConfig
}

// Compile-time check that StripeProvider implements Provider.
var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider creates a new Stripe billing provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	stripe.Key = config.APIKey
	return &StripeProvider{config: config}, nil
}

// CreateCheckoutSession creates a Stripe Checkout session in payment mode.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, p CreateCheckoutSessionParams) (*CheckoutSession, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, len(p.LineItems))
	for i, item := range p.LineItems {
		lineItems[i] = &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(item.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(p.Currency),
				UnitAmount: stripe.Int64(item.UnitAmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:     stripe.String(item.Name),
					Metadata: map[string]string{"product_id": item.ProductID},
				},
			},
		}
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems:  lineItems,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(p.ApplicationFeeCents),
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(p.AccountID),
			},
		},
	}
	params.Context = ctx

	if p.AutomaticTax {
		params.AutomaticTax = &stripe.CheckoutSessionAutomaticTaxParams{
			Enabled: stripe.Bool(true),
		}
	}

	// Flat shipping resolved locally is attached as a fixed-amount rate.
	// Calculated shipping is left to Stripe's address-based options.
	if !p.DeferShipping && p.ShippingCents > 0 {
		params.ShippingOptions = []*stripe.CheckoutSessionShippingOptionParams{
			{
				ShippingRateData: &stripe.CheckoutSessionShippingOptionShippingRateDataParams{
					DisplayName: stripe.String("Shipping"),
					Type:        stripe.String("fixed_amount"),
					FixedAmount: &stripe.CheckoutSessionShippingOptionShippingRateDataFixedAmountParams{
						Amount:   stripe.Int64(p.ShippingCents),
						Currency: stripe.String(p.Currency),
					},
				},
			},
		}
	}

	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, wrapStripeError(err, "checkout session creation failed")
	}

	return &CheckoutSession{
		ID:               sess.ID,
		RedirectURL:      sess.URL,
		AmountTotalCents: sess.AmountTotal,
		Currency:         string(sess.Currency),
		CreatedAt:        time.Unix(sess.Created, 0),
	}, nil
}

// CreateRefund refunds part of a payment, reversing the proportional
// transfer to the seller's connected account.
func (s *StripeProvider) CreateRefund(ctx context.Context, p CreateRefundParams) (*Refund, error) {
	if p.AmountCents <= 0 {
		return nil, ErrAmountNotPositive
	}
	if p.PaymentIntentID == "" && p.ChargeID == "" {
		return nil, ErrMissingPaymentReference
	}

	params := &stripe.RefundParams{
		Amount: stripe.Int64(p.AmountCents),
	}
	params.Context = ctx

	if p.PaymentIntentID != "" {
		params.PaymentIntent = stripe.String(p.PaymentIntentID)
	} else {
		params.Charge = stripe.String(p.ChargeID)
	}

	if p.Reason != "" {
		params.Reason = stripe.String(p.Reason)
	}

	// Destination charge: pull the refunded share back from the seller.
	if p.AccountID != "" {
		params.ReverseTransfer = stripe.Bool(true)
		params.RefundApplicationFee = stripe.Bool(false)
	}

	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	if p.IdempotencyKey != "" {
		params.SetIdempotencyKey(p.IdempotencyKey)
	}

	r, err := refund.New(params)
	if err != nil {
		return nil, wrapStripeError(err, "refund creation failed")
	}

	return &Refund{
		ID:          r.ID,
		AmountCents: r.Amount,
		Status:      string(r.Status),
		CreatedAt:   time.Unix(r.Created, 0),
	}, nil
}

// GetAccount introspects a connected account.
func (s *StripeProvider) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	acct, err := account.GetByID(accountID, params)
	if err != nil {
		return nil, wrapStripeError(err, "account lookup failed")
	}

	return &Account{
		ID:             acct.ID,
		ChargesEnabled: acct.ChargesEnabled,
		PayoutsEnabled: acct.PayoutsEnabled,
		// Readiness proxy: automatic tax needs a fully onboarded account
		// that can take charges.
		TaxReady: acct.ChargesEnabled && acct.DetailsSubmitted,
	}, nil
}

// VerifyWebhookSignature verifies a Stripe webhook signature.
func (s *StripeProvider) VerifyWebhookSignature(payload []byte, signature string, secret string) error {
	if _, err := webhook.ConstructEvent(payload, signature, secret); err != nil {
		return errors.Join(ErrInvalidWebhookSignature, err)
	}
	return nil
}

// wrapStripeError converts a Stripe SDK error into a ProcessorError with
// the processor's code and message preserved.
func wrapStripeError(err error, message string) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		msg := stripeErr.Msg
		if msg == "" {
			msg = message
		}
		return &ProcessorError{
			Message:       msg,
			Code:          string(stripeErr.Code),
			RequestID:     stripeErr.RequestID,
			OriginalError: err,
		}
	}
	return &ProcessorError{
		Message:       message,
		OriginalError: err,
	}
}
