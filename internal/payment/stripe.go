package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/webhook"
)

// Stripe implements Processor with Stripe Checkout.
type Stripe struct {
	priceID       string
	webhookSecret string
}

// NewStripe configures the Stripe client.
func NewStripe(secretKey, webhookSecret, priceID string) (*Stripe, error) {
	if secretKey == "" || priceID == "" {
		return nil, fmt.Errorf("stripe secret key and price id are required")
	}
	stripe.Key = secretKey
	return &Stripe{priceID: priceID, webhookSecret: webhookSecret}, nil
}

// CreateCheckoutSession creates a single-item payment session carrying the
// document identity in both session and payment-intent metadata.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(p.Email),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{
				"document_id":    p.DocumentID,
				"document_token": p.DocumentToken,
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("document_id", p.DocumentID)
	params.AddMetadata("document_token", p.DocumentToken)

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// VerifyEvent authenticates the webhook body against the Stripe-Signature
// header and extracts the checkout session fields.
func (s *Stripe) VerifyEvent(payload []byte, signature string) (*Event, error) {
	if s.webhookSecret == "" {
		return nil, fmt.Errorf("stripe webhook secret is not configured")
	}

	ev, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	out := &Event{Type: string(ev.Type)}
	if out.Type != EventCheckoutCompleted {
		return out, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decoding checkout session: %w", err)
	}
	out.SessionID = sess.ID
	if sess.PaymentIntent != nil {
		out.PaymentIntentID = sess.PaymentIntent.ID
	}
	out.DocumentID = sess.Metadata["document_id"]
	out.DocumentToken = sess.Metadata["document_token"]
	return out, nil
}
