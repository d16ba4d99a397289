package repository

import (
	"context"

	"github.com/google/uuid"
)

// Querier lists every statement the services run. Services depend on this
// interface so tests can substitute function-field mocks.
type Querier interface {
	// Products
	CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error)
	DecrementProductStock(ctx context.Context, arg DecrementProductStockParams) (int64, error)
	IncrementProductStock(ctx context.Context, arg IncrementProductStockParams) (int64, error)
	AdjustProductStock(ctx context.Context, arg AdjustProductStockParams) (Product, error)

	// Orders
	NextOrderSequence(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error)
	CreateOrderStatusHistory(ctx context.Context, arg CreateOrderStatusHistoryParams) (OrderStatusHistory, error)
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error)
	GetOrderByPaymentIntentID(ctx context.Context, paymentIntentID string) (Order, error)
	GetOrderByPaymentIntentIDForUpdate(ctx context.Context, paymentIntentID string) (Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error)
	ListOrderStatusHistory(ctx context.Context, orderID uuid.UUID) ([]OrderStatusHistory, error)
	ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error)
	ListOrdersByCustomerEmail(ctx context.Context, email string) ([]Order, error)
	ListStalePendingCardOrders(ctx context.Context, arg ListStalePendingCardOrdersParams) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error)
	SetOrderPaymentIntent(ctx context.Context, arg SetOrderPaymentIntentParams) (int64, error)
	UpdateOrderPaymentDetails(ctx context.Context, arg UpdateOrderPaymentDetailsParams) error
	DeleteOrder(ctx context.Context, id uuid.UUID) (int64, error)

	// Webhook dedupe
	InsertProcessedWebhookEvent(ctx context.Context, arg InsertProcessedWebhookEventParams) (int64, error)
}

var _ Querier = (*Queries)(nil)
