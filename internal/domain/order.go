package domain

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ORDER DOMAIN TYPES
// =============================================================================

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further status change is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusDelivered
}

// HoldsStock reports whether an order in this status still holds its
// reserved units in the warehouse. Shipped and delivered goods are gone and
// cancelled orders have already given their units back.
func (s OrderStatus) HoldsStock() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing:
		return true
	}
	return false
}

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentMethod is how the buyer intends to pay.
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
)

// Valid reports whether m is a supported payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCashOnDelivery, PaymentMethodCard, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// ShippingAddress is the delivery address copied onto the order.
type ShippingAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// CustomerInfo is a snapshot of the buyer taken at order time.
// It is not linked to any account; guests can place orders.
type CustomerInfo struct {
	Name            string          `json:"name"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone,omitempty"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
}

// OrderItem is a line item snapshot. Name, image and price are copied from
// the product when the order is placed and never follow later edits.
type OrderItem struct {
	ProductID    uuid.UUID `json:"productId"`
	ProductName  string    `json:"productName"`
	ProductImage string    `json:"productImage,omitempty"`
	Quantity     int       `json:"quantity"`
	Price        Cents     `json:"price"`
	Total        Cents     `json:"itemTotal"`
}

// StatusEntry is one record of the append-only status log.
type StatusEntry struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Note      string      `json:"note,omitempty"`
}

// Order is the aggregate root for a placed order.
type Order struct {
	ID                      uuid.UUID     `json:"id"`
	OrderNumber             string        `json:"orderNumber"`
	CustomerInfo            CustomerInfo  `json:"customerInfo"`
	Items                   []OrderItem   `json:"items"`
	Subtotal                Cents         `json:"subtotal"`
	ShippingCost            Cents         `json:"shippingCost"`
	Tax                     Cents         `json:"tax"`
	TotalAmount             Cents         `json:"totalAmount"`
	Currency                string        `json:"currency"`
	Status                  OrderStatus   `json:"status"`
	PaymentMethod           PaymentMethod `json:"paymentMethod"`
	PaymentStatus           PaymentStatus `json:"paymentStatus"`
	ExternalPaymentIntentID string        `json:"externalPaymentIntentId,omitempty"`
	ExternalCustomerID      string        `json:"externalCustomerId,omitempty"`
	ExternalChargeID        string        `json:"externalChargeId,omitempty"`
	StatusHistory           []StatusEntry `json:"statusHistory"`
	CustomerNotes           string        `json:"customerNotes,omitempty"`
	CreatedAt               time.Time     `json:"createdAt"`
	UpdatedAt               time.Time     `json:"updatedAt"`
}

// ComputeTotals fills each item's Total and returns the order subtotal and
// grand total. All arithmetic is in minor units so the result is exact.
func ComputeTotals(items []OrderItem, shipping, tax Cents) (subtotal, total Cents) {
	for i := range items {
		items[i].Total = items[i].Price * Cents(items[i].Quantity)
		subtotal += items[i].Total
	}
	return subtotal, subtotal + shipping + tax
}

var orderNumberPattern = regexp.MustCompile(`^ORD-\d+-\d+$`)

// FormatOrderNumber builds the human-readable order number from the creation
// time and a monotonically increasing sequence value.
func FormatOrderNumber(createdAt time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%d-%d", createdAt.UnixMilli(), seq)
}

// IsOrderNumber reports whether s has the ORD-<millis>-<sequence> shape.
func IsOrderNumber(s string) bool {
	return orderNumberPattern.MatchString(s)
}

// OrderFilter narrows an order listing.
type OrderFilter struct {
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Email         string
	Limit         int
	Offset        int
}

// MaxItemQuantity is the most units one order line may ask for.
const MaxItemQuantity = 1000

// Order listing bounds.
const (
	DefaultOrderListLimit = 20
	MaxOrderListLimit     = 100
)

// Normalize clamps the paging fields to their allowed range.
func (f *OrderFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = DefaultOrderListLimit
	}
	if f.Limit > MaxOrderListLimit {
		f.Limit = MaxOrderListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
