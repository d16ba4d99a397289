// Package events publishes order lifecycle notifications for other services
// (fulfilment, e-mail, analytics) to consume.
package events

import (
	"context"
	"time"

	"github.com/dukerupert/storefront/internal/domain"
)

// Order event types. The NATS subject is "<prefix>.<type>".
const (
	OrderCreated       = "created"
	OrderPaid          = "paid"
	OrderCancelled     = "cancelled"
	OrderRefunded      = "refunded"
	OrderStatusChanged = "status_changed"
)

// OrderEvent is the message body published for every committed transition.
type OrderEvent struct {
	Type          string               `json:"type"`
	OrderID       string               `json:"orderId"`
	OrderNumber   string               `json:"orderNumber"`
	Status        domain.OrderStatus   `json:"status"`
	PaymentStatus domain.PaymentStatus `json:"paymentStatus"`
	TotalAmount   domain.Cents         `json:"totalAmount"`
	Currency      string               `json:"currency"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// NewOrderEvent builds an event from the order's current state.
func NewOrderEvent(eventType string, order *domain.Order) OrderEvent {
	return OrderEvent{
		Type:          eventType,
		OrderID:       order.ID.String(),
		OrderNumber:   order.OrderNumber,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalAmount:   order.TotalAmount,
		Currency:      order.Currency,
		OccurredAt:    time.Now().UTC(),
	}
}

// Publisher delivers order events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// NopPublisher discards events. Used when NATS is not configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }
