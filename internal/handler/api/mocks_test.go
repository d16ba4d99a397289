package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/service"
)

// mockOrderService implements service.OrderService for testing
type mockOrderService struct {
	createOrderFunc  func(ctx context.Context, params service.CreateOrderParams) (*domain.Order, error)
	getOrderFunc     func(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	listOrdersFunc   func(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error)
	listByEmailFunc  func(ctx context.Context, email string) ([]*domain.Order, error)
	updateStatusFunc func(ctx context.Context, id uuid.UUID, params service.UpdateStatusParams) (*domain.Order, error)
	deleteOrderFunc  func(ctx context.Context, id uuid.UUID) error
	cancelStaleFunc  func(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, params service.CreateOrderParams) (*domain.Order, error) {
	if m.createOrderFunc != nil {
		return m.createOrderFunc(ctx, params)
	}
	return nil, nil
}

func (m *mockOrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	if m.getOrderFunc != nil {
		return m.getOrderFunc(ctx, id)
	}
	return nil, service.ErrOrderNotFound
}

func (m *mockOrderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	if m.listOrdersFunc != nil {
		return m.listOrdersFunc(ctx, filter)
	}
	return nil, nil
}

func (m *mockOrderService) ListOrdersByCustomerEmail(ctx context.Context, email string) ([]*domain.Order, error) {
	if m.listByEmailFunc != nil {
		return m.listByEmailFunc(ctx, email)
	}
	return nil, nil
}

func (m *mockOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, params service.UpdateStatusParams) (*domain.Order, error) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, params)
	}
	return nil, nil
}

func (m *mockOrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if m.deleteOrderFunc != nil {
		return m.deleteOrderFunc(ctx, id)
	}
	return nil
}

func (m *mockOrderService) CancelStalePendingOrders(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	if m.cancelStaleFunc != nil {
		return m.cancelStaleFunc(ctx, maxAge, limit)
	}
	return 0, nil
}

// mockPaymentService implements service.PaymentService for testing
type mockPaymentService struct {
	createIntentFunc func(ctx context.Context, params service.CreateOrderParams) (*service.PaymentIntentResult, error)
	ensureIntentFunc func(ctx context.Context, orderID uuid.UUID) (*service.PaymentIntentResult, error)
	statusFunc       func(ctx context.Context, paymentIntentID string) (*service.PaymentStatusResult, error)
	refundFunc       func(ctx context.Context, params service.RefundParams) (*service.RefundResult, error)
}

func (m *mockPaymentService) CreatePaymentIntent(ctx context.Context, params service.CreateOrderParams) (*service.PaymentIntentResult, error) {
	if m.createIntentFunc != nil {
		return m.createIntentFunc(ctx, params)
	}
	return nil, nil
}

func (m *mockPaymentService) EnsurePaymentIntent(ctx context.Context, orderID uuid.UUID) (*service.PaymentIntentResult, error) {
	if m.ensureIntentFunc != nil {
		return m.ensureIntentFunc(ctx, orderID)
	}
	return nil, nil
}

func (m *mockPaymentService) GetPaymentStatus(ctx context.Context, paymentIntentID string) (*service.PaymentStatusResult, error) {
	if m.statusFunc != nil {
		return m.statusFunc(ctx, paymentIntentID)
	}
	return nil, service.ErrPaymentIntentNotFound
}

func (m *mockPaymentService) Refund(ctx context.Context, params service.RefundParams) (*service.RefundResult, error) {
	if m.refundFunc != nil {
		return m.refundFunc(ctx, params)
	}
	return nil, nil
}

// mockProductService implements service.ProductService for testing
type mockProductService struct {
	createProductFunc func(ctx context.Context, params service.CreateProductParams) (*domain.Product, error)
	getProductFunc    func(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	adjustStockFunc   func(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error)
}

func (m *mockProductService) CreateProduct(ctx context.Context, params service.CreateProductParams) (*domain.Product, error) {
	if m.createProductFunc != nil {
		return m.createProductFunc(ctx, params)
	}
	return nil, nil
}

func (m *mockProductService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if m.getProductFunc != nil {
		return m.getProductFunc(ctx, id)
	}
	return nil, service.ErrProductNotFound
}

func (m *mockProductService) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error) {
	if m.adjustStockFunc != nil {
		return m.adjustStockFunc(ctx, id, delta)
	}
	return nil, nil
}

var (
	testOrderID   = uuid.MustParse("0b7e4d9a-1d38-4bd5-9d0e-3f7e5a2c9b11")
	testProductID = uuid.MustParse("5f0c6a52-7f4e-4a43-9c55-2b1d8e1f0a77")
)

func sampleOrder() *domain.Order {
	return &domain.Order{
		ID:          testOrderID,
		OrderNumber: "ORD-1700000000000-7",
		CustomerInfo: domain.CustomerInfo{
			Name:  "Ada Lovelace",
			Email: "ada@example.com",
		},
		Items: []domain.OrderItem{
			{ProductID: testProductID, ProductName: "Mug", Quantity: 2, Price: 5000, Total: 10000},
		},
		Subtotal:      10000,
		ShippingCost:  1000,
		Tax:           500,
		TotalAmount:   11500,
		Currency:      "usd",
		Status:        domain.OrderStatusPending,
		PaymentMethod: domain.PaymentMethodCard,
		PaymentStatus: domain.PaymentStatusPending,
	}
}

// serve routes a single request through a mux so path values resolve.
func serve(pattern string, h http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(pattern, h)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

const validOrderBody = `{
	"customerInfo": {
		"name": "Ada Lovelace",
		"email": "ada@example.com",
		"shippingAddress": {"line1": "12 St James's Square", "city": "London", "postalCode": "SW1Y 4JH", "country": "GB"}
	},
	"items": [{"productId": "5f0c6a52-7f4e-4a43-9c55-2b1d8e1f0a77", "quantity": 2}],
	"shippingCost": 10.00,
	"tax": 5,
	"paymentMethod": "card"
}`
