package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/service"
)

const validIntentBody = `{
	"customerInfo": {
		"name": "Ada Lovelace",
		"email": "ada@example.com",
		"shippingAddress": {"line1": "12 St James's Square", "city": "London", "postalCode": "SW1Y 4JH", "country": "GB"}
	},
	"items": [{"productId": "5f0c6a52-7f4e-4a43-9c55-2b1d8e1f0a77", "quantity": 2}],
	"shippingCost": 10,
	"tax": 5
}`

func TestPaymentHandler_CreatePaymentIntent(t *testing.T) {
	t.Run("returns client secret and order reference", func(t *testing.T) {
		var got service.CreateOrderParams
		h := NewPaymentHandler(&mockPaymentService{
			createIntentFunc: func(ctx context.Context, params service.CreateOrderParams) (*service.PaymentIntentResult, error) {
				got = params
				return &service.PaymentIntentResult{
					ClientSecret:    "pi_1_secret_2",
					PaymentIntentID: "pi_1",
					Order:           sampleOrder(),
				}, nil
			},
		})

		rec := serve("POST /payment/create-payment-intent", h.CreatePaymentIntent, http.MethodPost, "/payment/create-payment-intent", validIntentBody)

		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, domain.PaymentMethodCard, got.PaymentMethod)

		body := decode(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "pi_1_secret_2", body["clientSecret"])
		assert.Equal(t, testOrderID.String(), body["orderId"])
		assert.Equal(t, "ORD-1700000000000-7", body["orderNumber"])
		assert.Equal(t, 115.0, body["amount"])
	})

	t.Run("processor failure is a sanitized 500", func(t *testing.T) {
		h := NewPaymentHandler(&mockPaymentService{
			createIntentFunc: func(ctx context.Context, params service.CreateOrderParams) (*service.PaymentIntentResult, error) {
				return nil, service.ErrPaymentIntentCreationFailed
			},
		})

		rec := serve("POST /payment/create-payment-intent", h.CreatePaymentIntent, http.MethodPost, "/payment/create-payment-intent", validIntentBody)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Failed to create payment intent", body["message"])
	})

	t.Run("invalid body never reaches the service", func(t *testing.T) {
		called := false
		h := NewPaymentHandler(&mockPaymentService{
			createIntentFunc: func(ctx context.Context, params service.CreateOrderParams) (*service.PaymentIntentResult, error) {
				called = true
				return nil, nil
			},
		})

		rec := serve("POST /payment/create-payment-intent", h.CreatePaymentIntent, http.MethodPost, "/payment/create-payment-intent", `{"items":[]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, called)
	})
}

func TestPaymentHandler_PaymentStatus(t *testing.T) {
	h := NewPaymentHandler(&mockPaymentService{
		statusFunc: func(ctx context.Context, paymentIntentID string) (*service.PaymentStatusResult, error) {
			if paymentIntentID != "pi_1" {
				return nil, service.ErrPaymentIntentNotFound
			}
			return &service.PaymentStatusResult{
				PaymentIntentID: "pi_1",
				Status:          "succeeded",
				Amount:          11500,
				Currency:        "usd",
				Order:           sampleOrder(),
			}, nil
		},
	})

	rec := serve("GET /payment/payment-status/{intentId}", h.PaymentStatus, http.MethodGet, "/payment/payment-status/pi_1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "succeeded", body["status"])
	assert.Equal(t, 115.0, body["amount"])
	assert.NotNil(t, body["order"])

	rec = serve("GET /payment/payment-status/{intentId}", h.PaymentStatus, http.MethodGet, "/payment/payment-status/pi_missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPaymentHandler_Refund(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
	}{
		{"full refund", `{"paymentIntentId":"pi_1"}`, nil, http.StatusOK},
		{"partial refund with reason", `{"paymentIntentId":"pi_1","amount":20.5,"reason":"requested_by_customer"}`, nil, http.StatusOK},
		{"missing intent id", `{"amount":10}`, nil, http.StatusBadRequest},
		{"negative amount", `{"paymentIntentId":"pi_1","amount":-1}`, nil, http.StatusBadRequest},
		{"unknown reason", `{"paymentIntentId":"pi_1","reason":"bored"}`, nil, http.StatusBadRequest},
		{"unpaid order", `{"paymentIntentId":"pi_1"}`, service.ErrOrderNotPaid, http.StatusBadRequest},
		{"unknown intent", `{"paymentIntentId":"pi_x"}`, service.ErrOrderNotFound, http.StatusNotFound},
		{"processor failure", `{"paymentIntentId":"pi_1"}`, service.ErrRefundFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got service.RefundParams
			h := NewPaymentHandler(&mockPaymentService{
				refundFunc: func(ctx context.Context, params service.RefundParams) (*service.RefundResult, error) {
					got = params
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					order := sampleOrder()
					order.Status = domain.OrderStatusCancelled
					order.PaymentStatus = domain.PaymentStatusRefunded
					return &service.RefundResult{RefundID: "re_1", Amount: order.TotalAmount, Status: "succeeded", Order: order}, nil
				},
			})

			rec := serve("POST /payment/refund", h.Refund, http.MethodPost, "/payment/refund", tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.name == "partial refund with reason" {
				assert.Equal(t, domain.Cents(2050), got.Amount)
				assert.Equal(t, "requested_by_customer", got.Reason)
			}
			if rec.Code == http.StatusOK {
				refund := decode(t, rec)["refund"].(map[string]any)
				assert.Equal(t, "re_1", refund["id"])
			}
		})
	}
}
