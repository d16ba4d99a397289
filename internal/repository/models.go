package repository

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Product struct {
	ID         uuid.UUID
	Name       string
	ImageUrl   string
	PriceCents int64
	Stock      int32
	CreatedAt  pgtype.Timestamptz
	UpdatedAt  pgtype.Timestamptz
}

type Order struct {
	ID                      uuid.UUID
	OrderNumber             string
	CustomerName            string
	CustomerEmail           string
	CustomerPhone           string
	ShippingLine1           string
	ShippingLine2           string
	ShippingCity            string
	ShippingState           string
	ShippingPostalCode      string
	ShippingCountry         string
	SubtotalCents           int64
	ShippingCents           int64
	TaxCents                int64
	TotalCents              int64
	Currency                string
	Status                  string
	PaymentMethod           string
	PaymentStatus           string
	ExternalPaymentIntentID pgtype.Text
	ExternalCustomerID      pgtype.Text
	ExternalChargeID        pgtype.Text
	CustomerNotes           string
	CreatedAt               pgtype.Timestamptz
	UpdatedAt               pgtype.Timestamptz
}

type OrderItem struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	ProductImage   string
	Quantity       int32
	UnitPriceCents int64
	TotalCents     int64
	Position       int32
}

type OrderStatusHistory struct {
	ID        int64
	OrderID   uuid.UUID
	Status    string
	Note      string
	CreatedAt pgtype.Timestamptz
}

type ProcessedWebhookEvent struct {
	EventID     string
	EventType   string
	ProcessedAt pgtype.Timestamptz
}
