package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements Provider using the Stripe API.
type StripeProvider struct {
	config StripeConfig
}

var _ Provider = (*StripeProvider)(nil)

// NewStripeProvider configures the stripe-go client and returns a provider.
// The stripe-go client is process global, so only one provider should exist.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 2
	}
	if config.TimeoutSeconds == 0 {
		config.TimeoutSeconds = 30
	}

	stripe.Key = config.APIKey
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: time.Duration(config.TimeoutSeconds) * time.Second},
		MaxNetworkRetries: stripe.Int64(int64(config.MaxRetries)),
	}))

	return &StripeProvider{config: config}, nil
}

// CreatePaymentIntent creates a Stripe payment intent with automatic payment
// methods. The idempotency key makes a retried call return the original intent.
func (s *StripeProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	if params.AmountCents < MinimumChargeCents {
		return nil, ErrAmountTooSmall
	}

	p := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(strings.ToLower(params.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	p.Context = ctx
	if params.CustomerEmail != "" {
		p.ReceiptEmail = stripe.String(params.CustomerEmail)
	}
	if params.Description != "" {
		p.Description = stripe.String(params.Description)
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		p.SetIdempotencyKey(params.IdempotencyKey)
	}

	pi, err := paymentintent.New(p)
	if err != nil {
		return nil, translateStripeError(err)
	}
	return convertPaymentIntent(pi), nil
}

// GetPaymentIntent retrieves a payment intent by id.
func (s *StripeProvider) GetPaymentIntent(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error) {
	p := &stripe.PaymentIntentParams{}
	p.Context = ctx

	pi, err := paymentintent.Get(params.PaymentIntentID, p)
	if err != nil {
		return nil, translateStripeError(err)
	}
	return convertPaymentIntent(pi), nil
}

// CancelPaymentIntent cancels an unconfirmed payment intent.
func (s *StripeProvider) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	p := &stripe.PaymentIntentCancelParams{}
	p.Context = ctx

	if _, err := paymentintent.Cancel(paymentIntentID, p); err != nil {
		return translateStripeError(err)
	}
	return nil
}

// RefundPayment refunds the charge behind a payment intent.
func (s *StripeProvider) RefundPayment(ctx context.Context, params RefundParams) (*Refund, error) {
	p := &stripe.RefundParams{
		PaymentIntent: stripe.String(params.PaymentIntentID),
	}
	p.Context = ctx
	if params.AmountCents > 0 {
		p.Amount = stripe.Int64(params.AmountCents)
	}
	if params.Reason != "" {
		p.Reason = stripe.String(params.Reason)
	}
	for k, v := range params.Metadata {
		p.AddMetadata(k, v)
	}
	if params.IdempotencyKey != "" {
		p.SetIdempotencyKey(params.IdempotencyKey)
	}

	r, err := refund.New(p)
	if err != nil {
		return nil, translateStripeError(err)
	}

	result := &Refund{
		ID:              r.ID,
		PaymentIntentID: params.PaymentIntentID,
		AmountCents:     r.Amount,
		Currency:        string(r.Currency),
		Status:          string(r.Status),
		Reason:          string(r.Reason),
		CreatedAt:       time.Unix(r.Created, 0),
	}
	return result, nil
}

// ConstructEvent verifies a webhook payload and decodes it.
// API version mismatches are tolerated; the fields read here are stable.
func (s *StripeProvider) ConstructEvent(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.config.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, ErrInvalidWebhookSignature
	}
	return decodeEvent(event)
}

// decodeEvent converts a verified stripe.Event into an Event.
func decodeEvent(event stripe.Event) (*Event, error) {
	e := &Event{
		ID:        event.ID,
		Type:      string(event.Type),
		CreatedAt: time.Unix(event.Created, 0),
	}

	if !strings.HasPrefix(e.Type, "payment_intent.") {
		return e, nil
	}
	if event.Data == nil {
		return nil, ErrInvalidWebhookPayload
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookPayload, err)
	}
	if pi.ID == "" {
		return nil, ErrInvalidWebhookPayload
	}
	e.PaymentIntent = convertPaymentIntent(&pi)
	return e, nil
}

func convertPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	result := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
		Metadata:     pi.Metadata,
		CreatedAt:    time.Unix(pi.Created, 0),
	}
	if pi.LatestCharge != nil {
		result.LatestChargeID = pi.LatestCharge.ID
	}
	if pi.Customer != nil {
		result.CustomerID = pi.Customer.ID
	}
	if pi.LastPaymentError != nil {
		result.LastErrorMessage = pi.LastPaymentError.Msg
	}
	return result
}

// translateStripeError maps stripe-go errors onto billing errors.
func translateStripeError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return err
	}

	switch string(stripeErr.Code) {
	case "resource_missing":
		return ErrPaymentIntentNotFound
	case "idempotency_key_in_use":
		return ErrIdempotencyConflict
	case "charge_already_refunded":
		return ErrChargeAlreadyRefunded
	case "amount_too_small":
		return ErrAmountTooSmall
	}

	return &StripeError{
		Message:        stripeErr.Msg,
		Code:           string(stripeErr.Code),
		DeclineCode:    string(stripeErr.DeclineCode),
		Type:           string(stripeErr.Type),
		HTTPStatusCode: stripeErr.HTTPStatusCode,
		RequestID:      stripeErr.RequestID,
		OriginalError:  err,
	}
}
