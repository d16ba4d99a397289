package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockProvider is an in-memory Provider for tests. Setting one of the Func
// fields overrides the matching method; otherwise intents and refunds live
// in the exported maps.
type MockProvider struct {
	CreatePaymentIntentFunc func(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error)
	GetPaymentIntentFunc    func(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error)
	CancelPaymentIntentFunc func(ctx context.Context, paymentIntentID string) error
	RefundPaymentFunc       func(ctx context.Context, params RefundParams) (*Refund, error)
	ConstructEventFunc      func(payload []byte, signature string) (*Event, error)

	PaymentIntents map[string]*PaymentIntent
	Refunds        map[string]*Refund
	CallLog        []string

	idempotency map[string]string // key -> intent id
	mu          sync.Mutex
}

var _ Provider = (*MockProvider)(nil)

func NewMockProvider() *MockProvider {
	return &MockProvider{
		PaymentIntents: map[string]*PaymentIntent{},
		Refunds:        map[string]*Refund{},
		idempotency:    map[string]string{},
	}
}

// intent must be called with mu held.
func (m *MockProvider) intent(id string) (*PaymentIntent, error) {
	pi, ok := m.PaymentIntents[id]
	if !ok {
		return nil, ErrPaymentIntentNotFound
	}
	return pi, nil
}

func (m *MockProvider) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, call)
}

// Calls returns a copy of the call log.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

// CreatePaymentIntent creates a mock payment intent. Repeating an
// idempotency key returns the intent created for it the first time.
func (m *MockProvider) CreatePaymentIntent(ctx context.Context, params CreatePaymentIntentParams) (*PaymentIntent, error) {
	m.record(fmt.Sprintf("CreatePaymentIntent(%d, %s)", params.AmountCents, params.Currency))

	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.idempotency[params.IdempotencyKey]; ok && params.IdempotencyKey != "" {
		return m.PaymentIntents[id], nil
	}

	id := "pi_" + uuid.New().String()
	pi := &PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.New().String()[:8],
		AmountCents:  params.AmountCents,
		Currency:     params.Currency,
		Status:       "requires_payment_method",
		Metadata:     params.Metadata,
		CreatedAt:    time.Now(),
	}

	m.PaymentIntents[pi.ID] = pi
	if params.IdempotencyKey != "" {
		m.idempotency[params.IdempotencyKey] = pi.ID
	}
	return pi, nil
}

// GetPaymentIntent retrieves a mock payment intent.
func (m *MockProvider) GetPaymentIntent(ctx context.Context, params GetPaymentIntentParams) (*PaymentIntent, error) {
	m.record(fmt.Sprintf("GetPaymentIntent(%s)", params.PaymentIntentID))

	if m.GetPaymentIntentFunc != nil {
		return m.GetPaymentIntentFunc(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.intent(params.PaymentIntentID)
}

// CancelPaymentIntent cancels a mock payment intent.
func (m *MockProvider) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	m.record(fmt.Sprintf("CancelPaymentIntent(%s)", paymentIntentID))

	if m.CancelPaymentIntentFunc != nil {
		return m.CancelPaymentIntentFunc(ctx, paymentIntentID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pi, err := m.intent(paymentIntentID)
	if err != nil {
		return err
	}
	pi.Status = "canceled"
	return nil
}

// RefundPayment refunds a mock payment. The intent must have succeeded.
func (m *MockProvider) RefundPayment(ctx context.Context, params RefundParams) (*Refund, error) {
	m.record(fmt.Sprintf("RefundPayment(%s, %d)", params.PaymentIntentID, params.AmountCents))

	if m.RefundPaymentFunc != nil {
		return m.RefundPaymentFunc(ctx, params)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pi, err := m.intent(params.PaymentIntentID)
	if err != nil {
		return nil, err
	}
	if pi.Status != "succeeded" {
		return nil, &StripeError{Message: "payment intent has not succeeded", Code: "charge_not_refundable"}
	}

	amount := params.AmountCents
	if amount == 0 {
		amount = pi.AmountCents
	}
	r := &Refund{
		ID:              "re_" + uuid.New().String()[:8],
		PaymentIntentID: pi.ID,
		AmountCents:     amount,
		Currency:        pi.Currency,
		Status:          "succeeded",
		Reason:          params.Reason,
		CreatedAt:       time.Now(),
	}
	m.Refunds[r.ID] = r
	return r, nil
}

// ConstructEvent returns ErrInvalidWebhookSignature unless ConstructEventFunc is set.
func (m *MockProvider) ConstructEvent(payload []byte, signature string) (*Event, error) {
	m.record("ConstructEvent")

	if m.ConstructEventFunc != nil {
		return m.ConstructEventFunc(payload, signature)
	}
	return nil, ErrInvalidWebhookSignature
}

// SimulateSucceededPayment marks the intent succeeded with a new charge.
func (m *MockProvider) SimulateSucceededPayment(paymentIntentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pi, err := m.intent(paymentIntentID)
	if err != nil {
		return err
	}
	pi.Status = "succeeded"
	pi.LatestChargeID = "ch_" + uuid.New().String()[:8]
	return nil
}

// SimulateFailedPayment returns the intent to requires_payment_method with
// errorMessage as the last payment error.
func (m *MockProvider) SimulateFailedPayment(paymentIntentID string, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pi, err := m.intent(paymentIntentID)
	if err != nil {
		return err
	}
	pi.Status = "requires_payment_method"
	pi.LastErrorMessage = errorMessage
	return nil
}
