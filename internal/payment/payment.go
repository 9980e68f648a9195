// Package payment is the boundary to the external payment processor:
// checkout session creation and webhook event verification. Anything touching
// money fails closed; a bad signature rejects the request with no state
// change.
package payment

import (
	"context"
	"errors"
	"fmt"
)

// ErrSignatureInvalid marks a webhook payload that failed verification.
var ErrSignatureInvalid = errors.New("invalid event signature")

// EventCheckoutCompleted is the completion event confirming funds were
// captured.
const EventCheckoutCompleted = "checkout.session.completed"

// CheckoutParams describe one checkout session.
type CheckoutParams struct {
	Email         string
	DocumentID    string
	DocumentToken string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the processor's handle for a payment attempt.
type CheckoutSession struct {
	ID  string
	URL string
}

// Event is a verified processor notification. DocumentID round-trips through
// the session metadata set at checkout.
type Event struct {
	Type            string
	SessionID       string
	PaymentIntentID string
	DocumentID      string
	DocumentToken   string
}

// Processor is the payment collaborator consumed by the lifecycle engine.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)

	// VerifyEvent authenticates a raw webhook body against its signature
	// header and decodes the event. Fails closed on a bad signature.
	VerifyEvent(payload []byte, signature string) (*Event, error)
}

// Disabled rejects all payment operations; used when no processor is
// configured.
type Disabled struct{}

func (Disabled) CreateCheckoutSession(context.Context, CheckoutParams) (*CheckoutSession, error) {
	return nil, fmt.Errorf("payment processor is not configured")
}

func (Disabled) VerifyEvent([]byte, string) (*Event, error) {
	return nil, fmt.Errorf("payment processor is not configured")
}
