package billing

import (
	"errors"
	"fmt"
)

// MinimumChargeCents is the smallest card amount the processor accepts.
const MinimumChargeCents = 50

var (
	ErrInvalidAPIKey           = errors.New("billing: invalid or missing API key")
	ErrPaymentIntentNotFound   = errors.New("billing: payment intent not found")
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")
	ErrInvalidWebhookPayload   = errors.New("billing: invalid webhook payload")
	ErrIdempotencyConflict     = errors.New("billing: idempotency key reused with different parameters")
	ErrAmountTooSmall          = errors.New("billing: amount below processor minimum")
	ErrChargeAlreadyRefunded   = errors.New("billing: charge already refunded")
)

// StripeError is a processor failure with no dedicated sentinel. Message
// may include card details and must not reach clients.
type StripeError struct {
	Message        string
	Code           string // e.g. card_declined
	DeclineCode    string
	Type           string // e.g. card_error, api_error
	HTTPStatusCode int
	RequestID      string
	OriginalError  error
}

func (e *StripeError) Error() string {
	if e.Code == "" {
		return "stripe: " + e.Message
	}
	return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// IsDeclined reports a card decline.
func (e *StripeError) IsDeclined() bool {
	return e.Code == "card_declined" || e.DeclineCode != ""
}

// IsTemporary reports failures worth retrying later.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.Type == "api_error" || e.HTTPStatusCode >= 500 || e.HTTPStatusCode == 429
}
