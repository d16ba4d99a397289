package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/service"
)

func TestOrderHandler_Create(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
		checkBody      func(t *testing.T, body map[string]any)
	}{
		{
			name:           "creates order",
			body:           validOrderBody,
			expectedStatus: http.StatusCreated,
			checkBody: func(t *testing.T, body map[string]any) {
				assert.Equal(t, true, body["success"])
				order := body["order"].(map[string]any)
				assert.Equal(t, "ORD-1700000000000-7", order["orderNumber"])
				assert.Equal(t, 115.0, order["totalAmount"])
			},
		},
		{
			name:           "missing customer fields",
			body:           `{"customerInfo":{"email":"bad"},"items":[{"productId":"5f0c6a52-7f4e-4a43-9c55-2b1d8e1f0a77","quantity":0}],"paymentMethod":"cheque"}`,
			expectedStatus: http.StatusBadRequest,
			checkBody: func(t *testing.T, body map[string]any) {
				assert.Equal(t, false, body["success"])
				errs := body["errors"].(map[string]any)
				assert.Equal(t, "is required", errs["customerInfo.name"])
				assert.Equal(t, "must be a valid email address", errs["customerInfo.email"])
				assert.Equal(t, "is required", errs["customerInfo.shippingAddress.line1"])
				assert.Equal(t, "must be at least 1", errs["items[0].quantity"])
				assert.Contains(t, errs["paymentMethod"], "must be one of")
			},
		},
		{
			name:           "no items",
			body:           `{"customerInfo":{"name":"Ada","email":"ada@example.com","shippingAddress":{"line1":"1","city":"x","postalCode":"1","country":"GB"}},"items":[],"paymentMethod":"card"}`,
			expectedStatus: http.StatusBadRequest,
			checkBody: func(t *testing.T, body map[string]any) {
				errs := body["errors"].(map[string]any)
				assert.Contains(t, errs, "items")
			},
		},
		{
			name:           "three decimal amounts are rejected",
			body:           `{"customerInfo":{"name":"Ada","email":"ada@example.com","shippingAddress":{"line1":"1","city":"x","postalCode":"1","country":"GB"}},"items":[{"productId":"5f0c6a52-7f4e-4a43-9c55-2b1d8e1f0a77","quantity":1}],"shippingCost":1.005,"paymentMethod":"card"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "amounts beyond the maximum are rejected",
			body:           `{"customerInfo":{"name":"Ada","email":"ada@example.com","shippingAddress":{"line1":"1","city":"x","postalCode":"1","country":"GB"}},"items":[{"productId":"5f0c6a52-7f4e-4a43-9c55-2b1d8e1f0a77","quantity":1}],"shippingCost":184467440737095516.21,"paymentMethod":"card"}`,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "malformed json",
			body:           `{"items":`,
			expectedStatus: http.StatusBadRequest,
			checkBody: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "Invalid request body", body["message"])
			},
		},
		{
			name:           "insufficient stock",
			body:           validOrderBody,
			serviceErr:     domain.WrapError(service.ErrInsufficientStock, domain.EINVALID, "order.create", "Insufficient stock for Mug: requested 2, available 1"),
			expectedStatus: http.StatusBadRequest,
			checkBody: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "Insufficient stock for Mug: requested 2, available 1", body["message"])
			},
		},
		{
			name:           "unknown product",
			body:           validOrderBody,
			serviceErr:     service.ErrProductNotFound,
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got service.CreateOrderParams
			h := NewOrderHandler(&mockOrderService{
				createOrderFunc: func(ctx context.Context, params service.CreateOrderParams) (*domain.Order, error) {
					got = params
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return sampleOrder(), nil
				},
			})

			rec := serve("POST /orders", h.Create, http.MethodPost, "/orders", tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.expectedStatus == http.StatusCreated {
				require.Len(t, got.Items, 1)
				assert.Equal(t, testProductID, got.Items[0].ProductID)
				assert.Equal(t, 2, got.Items[0].Quantity)
				assert.Equal(t, domain.Cents(1000), got.ShippingCost)
				assert.Equal(t, domain.Cents(500), got.Tax)
				assert.Equal(t, domain.PaymentMethodCard, got.PaymentMethod)
			}
			if tt.checkBody != nil {
				tt.checkBody(t, decode(t, rec))
			}
		})
	}
}

func TestOrderHandler_List(t *testing.T) {
	t.Run("passes filters and clamps limit", func(t *testing.T) {
		var got domain.OrderFilter
		h := NewOrderHandler(&mockOrderService{
			listOrdersFunc: func(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
				got = filter
				return []*domain.Order{sampleOrder()}, nil
			},
		})

		rec := serve("GET /orders", h.List, http.MethodGet, "/orders?status=pending&paymentStatus=paid&email=ada@example.com&limit=500&offset=20", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.OrderStatusPending, got.Status)
		assert.Equal(t, domain.PaymentStatusPaid, got.PaymentStatus)
		assert.Equal(t, "ada@example.com", got.Email)
		assert.Equal(t, domain.MaxOrderListLimit, got.Limit)
		assert.Equal(t, 20, got.Offset)

		body := decode(t, rec)
		assert.Equal(t, 1.0, body["count"])
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		h := NewOrderHandler(&mockOrderService{})
		rec := serve("GET /orders", h.List, http.MethodGet, "/orders?status=lost&limit=ten", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		errs := decode(t, rec)["errors"].(map[string]any)
		assert.Contains(t, errs, "status")
		assert.Contains(t, errs, "limit")
	})
}

func TestOrderHandler_Get(t *testing.T) {
	h := NewOrderHandler(&mockOrderService{
		getOrderFunc: func(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
			if id == testOrderID {
				return sampleOrder(), nil
			}
			return nil, service.ErrOrderNotFound
		},
	})

	tests := []struct {
		name           string
		target         string
		expectedStatus int
	}{
		{"found", "/orders/" + testOrderID.String(), http.StatusOK},
		{"not found", "/orders/" + uuid.NewString(), http.StatusNotFound},
		{"malformed id", "/orders/ORD-123", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve("GET /orders/{id}", h.Get, http.MethodGet, tt.target, "")
			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}

func TestOrderHandler_ListByCustomer(t *testing.T) {
	var got string
	h := NewOrderHandler(&mockOrderService{
		listByEmailFunc: func(ctx context.Context, email string) ([]*domain.Order, error) {
			got = email
			return []*domain.Order{sampleOrder(), sampleOrder()}, nil
		},
	})

	rec := serve("GET /orders/customer/{email}", h.ListByCustomer, http.MethodGet, "/orders/customer/ada@example.com", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada@example.com", got)
	assert.Equal(t, 2.0, decode(t, rec)["count"])
}

func TestOrderHandler_UpdateStatus(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		serviceErr     error
		expectedStatus int
	}{
		{"ship", `{"status":"shipped","note":"UPS 1Z999"}`, nil, http.StatusOK},
		{"mark paid", `{"paymentStatus":"paid"}`, nil, http.StatusOK},
		{"unknown status", `{"status":"lost"}`, nil, http.StatusBadRequest},
		{"terminal order", `{"status":"processing"}`, service.ErrOrderTerminal, http.StatusConflict},
		{"card order marked paid", `{"paymentStatus":"paid"}`, domain.NewValidationError("order.update_status", "paymentStatus", "Card payment status is set by the payment processor"), http.StatusBadRequest},
		{"missing order", `{"status":"processing"}`, service.ErrOrderNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got service.UpdateStatusParams
			h := NewOrderHandler(&mockOrderService{
				updateStatusFunc: func(ctx context.Context, id uuid.UUID, params service.UpdateStatusParams) (*domain.Order, error) {
					got = params
					if tt.serviceErr != nil {
						return nil, tt.serviceErr
					}
					return sampleOrder(), nil
				},
			})

			rec := serve("PATCH /orders/{id}/status", h.UpdateStatus, http.MethodPatch, "/orders/"+testOrderID.String()+"/status", tt.body)

			assert.Equal(t, tt.expectedStatus, rec.Code, rec.Body.String())
			if tt.name == "ship" {
				assert.Equal(t, domain.OrderStatusShipped, got.Status)
				assert.Equal(t, "UPS 1Z999", got.Note)
			}
		})
	}
}

func TestOrderHandler_Delete(t *testing.T) {
	var deleted uuid.UUID
	h := NewOrderHandler(&mockOrderService{
		deleteOrderFunc: func(ctx context.Context, id uuid.UUID) error {
			deleted = id
			return nil
		},
	})

	rec := serve("DELETE /orders/{id}", h.Delete, http.MethodDelete, "/orders/"+testOrderID.String(), "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testOrderID, deleted)
	assert.Equal(t, true, decode(t, rec)["success"])
}
