package service

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/repository"
)

func toDomainProduct(p repository.Product) *domain.Product {
	return &domain.Product{
		ID:        p.ID,
		Name:      p.Name,
		ImageURL:  p.ImageUrl,
		Price:     domain.Cents(p.PriceCents),
		Stock:     int(p.Stock),
		CreatedAt: timeValue(p.CreatedAt),
		UpdatedAt: timeValue(p.UpdatedAt),
	}
}

func toDomainItems(rows []repository.OrderItem) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, domain.OrderItem{
			ProductID:    r.ProductID,
			ProductName:  r.ProductName,
			ProductImage: r.ProductImage,
			Quantity:     int(r.Quantity),
			Price:        domain.Cents(r.UnitPriceCents),
			Total:        domain.Cents(r.TotalCents),
		})
	}
	return items
}

func toDomainHistory(rows []repository.OrderStatusHistory) []domain.StatusEntry {
	history := make([]domain.StatusEntry, 0, len(rows))
	for _, r := range rows {
		history = append(history, domain.StatusEntry{
			Status:    domain.OrderStatus(r.Status),
			Timestamp: timeValue(r.CreatedAt),
			Note:      r.Note,
		})
	}
	return history
}

func toDomainOrder(o repository.Order, items []repository.OrderItem, history []repository.OrderStatusHistory) *domain.Order {
	return &domain.Order{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		CustomerInfo: domain.CustomerInfo{
			Name:  o.CustomerName,
			Email: o.CustomerEmail,
			Phone: o.CustomerPhone,
			ShippingAddress: domain.ShippingAddress{
				Line1:      o.ShippingLine1,
				Line2:      o.ShippingLine2,
				City:       o.ShippingCity,
				State:      o.ShippingState,
				PostalCode: o.ShippingPostalCode,
				Country:    o.ShippingCountry,
			},
		},
		Items:                   toDomainItems(items),
		Subtotal:                domain.Cents(o.SubtotalCents),
		ShippingCost:            domain.Cents(o.ShippingCents),
		Tax:                     domain.Cents(o.TaxCents),
		TotalAmount:             domain.Cents(o.TotalCents),
		Currency:                o.Currency,
		Status:                  domain.OrderStatus(o.Status),
		PaymentMethod:           domain.PaymentMethod(o.PaymentMethod),
		PaymentStatus:           domain.PaymentStatus(o.PaymentStatus),
		ExternalPaymentIntentID: textValue(o.ExternalPaymentIntentID),
		ExternalCustomerID:      textValue(o.ExternalCustomerID),
		ExternalChargeID:        textValue(o.ExternalChargeID),
		StatusHistory:           toDomainHistory(history),
		CustomerNotes:           o.CustomerNotes,
		CreatedAt:               timeValue(o.CreatedAt),
		UpdatedAt:               timeValue(o.UpdatedAt),
	}
}

func textValue(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}
	return t.String
}

func optionalText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func timeValue(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

func timestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}
