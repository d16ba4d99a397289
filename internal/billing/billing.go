package billing

import (
	"context"
	"time"
)

// Provider defines the interface for payment processing.
// StripeProvider is the production implementation; MockProvider backs tests.
type Provider interface {
	// CreatePaymentIntent creates a payment intent for a one-time charge.
	// Returns the intent with the client_secret the browser confirms with.
	CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)

	// GetPaymentIntent retrieves an existing payment intent.
	GetPaymentIntent(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error)

	// CancelPaymentIntent cancels an intent that has not been confirmed.
	CancelPaymentIntent(ctx context.Context, paymentIntentID string) error

	// RefundPayment refunds all or part of a captured payment.
	RefundPayment(ctx context.Context, params RefundParams) (*Refund, error)

	// ConstructEvent verifies the signature header against the raw payload
	// and decodes the event. It returns ErrInvalidWebhookSignature for any
	// verification failure without saying which check failed.
	ConstructEvent(payload []byte, signature string) (*Event, error)
}

// CreatePaymentIntentParams contains parameters for creating a payment intent.
type CreatePaymentIntentParams struct {
	// AmountCents is the amount in smallest currency unit (cents for USD)
	AmountCents int64

	// Currency code (ISO 4217) - e.g., "usd", "eur"
	Currency string

	// CustomerEmail is used for the processor receipt
	CustomerEmail string

	// Description appears in the processor dashboard
	Description string

	// Metadata ties the intent back to the order (order_id, order_number, customer_email)
	Metadata map[string]string

	// IdempotencyKey makes retries for the same order return the same intent
	IdempotencyKey string
}

// GetPaymentIntentParams contains parameters for retrieving a payment intent.
type GetPaymentIntentParams struct {
	PaymentIntentID string
}

// PaymentIntent is the processor's in-progress charge attempt.
type PaymentIntent struct {
	// ID is the Stripe payment intent ID (pi_...)
	ID string

	// ClientSecret is used by Stripe.js on the frontend to confirm payment
	ClientSecret string

	// AmountCents is the amount in smallest currency unit
	AmountCents int64

	Currency string

	// Status: requires_payment_method, requires_confirmation, succeeded, etc.
	Status string

	Metadata map[string]string

	// LatestChargeID is the charge created when the intent succeeded (ch_...)
	LatestChargeID string

	// CustomerID is the processor customer, when one was attached (cus_...)
	CustomerID string

	// LastErrorMessage is the decline reason from the last failed attempt
	LastErrorMessage string

	CreatedAt time.Time
}

// RefundParams contains parameters for refunding a payment.
type RefundParams struct {
	PaymentIntentID string

	// AmountCents is the partial amount to refund; 0 refunds the full charge
	AmountCents int64

	// Reason: duplicate, fraudulent, requested_by_customer
	Reason string

	Metadata       map[string]string
	IdempotencyKey string
}

// Refund is a refund issued by the processor.
type Refund struct {
	ID              string
	PaymentIntentID string
	AmountCents     int64
	Currency        string
	Status          string
	Reason          string
	CreatedAt       time.Time
}

// Refund reasons accepted by the processor.
const (
	RefundReasonDuplicate           = "duplicate"
	RefundReasonFraudulent          = "fraudulent"
	RefundReasonRequestedByCustomer = "requested_by_customer"
)

// Webhook event types the order reconciler acts on.
const (
	EventPaymentIntentSucceeded = "payment_intent.succeeded"
	EventPaymentIntentFailed    = "payment_intent.payment_failed"
	EventPaymentIntentCanceled  = "payment_intent.canceled"
)

// Event is a verified webhook event.
type Event struct {
	ID        string
	Type      string
	CreatedAt time.Time

	// PaymentIntent is set for payment_intent.* events.
	PaymentIntent *PaymentIntent
}
