package api

import (
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/service"
)

type addressRequest struct {
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=56"`
}

type customerInfoRequest struct {
	Name            string         `json:"name" validate:"required,max=200"`
	Email           string         `json:"email" validate:"required,email,max=254"`
	Phone           string         `json:"phone" validate:"max=40"`
	ShippingAddress addressRequest `json:"shippingAddress"`
}

type orderLineRequest struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"min=1,max=1000"`
}

type createOrderRequest struct {
	CustomerInfo  customerInfoRequest `json:"customerInfo"`
	Items         []orderLineRequest  `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingCost  domain.Cents        `json:"shippingCost" validate:"gte=0"`
	Tax           domain.Cents        `json:"tax" validate:"gte=0"`
	PaymentMethod string              `json:"paymentMethod" validate:"required,oneof=cash_on_delivery card bank_transfer"`
	CustomerNotes string              `json:"customerNotes" validate:"max=1000"`
}

func (r *createOrderRequest) params() service.CreateOrderParams {
	return checkoutParams(r.CustomerInfo, r.Items, r.ShippingCost, r.Tax, domain.PaymentMethod(r.PaymentMethod), r.CustomerNotes)
}

// paymentIntentRequest places a card order; the payment method is implied.
type paymentIntentRequest struct {
	CustomerInfo  customerInfoRequest `json:"customerInfo"`
	Items         []orderLineRequest  `json:"items" validate:"required,min=1,max=100,dive"`
	ShippingCost  domain.Cents        `json:"shippingCost" validate:"gte=0"`
	Tax           domain.Cents        `json:"tax" validate:"gte=0"`
	CustomerNotes string              `json:"customerNotes" validate:"max=1000"`
}

func (r *paymentIntentRequest) params() service.CreateOrderParams {
	return checkoutParams(r.CustomerInfo, r.Items, r.ShippingCost, r.Tax, domain.PaymentMethodCard, r.CustomerNotes)
}

// checkoutParams converts a validated request. Item ids were checked by the
// uuid tag, so parsing cannot fail here.
func checkoutParams(info customerInfoRequest, lines []orderLineRequest, shipping, tax domain.Cents, method domain.PaymentMethod, notes string) service.CreateOrderParams {
	items := make([]service.OrderLine, 0, len(lines))
	for _, line := range lines {
		items = append(items, service.OrderLine{
			ProductID: uuid.MustParse(line.ProductID),
			Quantity:  line.Quantity,
		})
	}

	addr := info.ShippingAddress
	return service.CreateOrderParams{
		CustomerInfo: domain.CustomerInfo{
			Name:  strings.TrimSpace(info.Name),
			Email: strings.TrimSpace(info.Email),
			Phone: strings.TrimSpace(info.Phone),
			ShippingAddress: domain.ShippingAddress{
				Line1:      strings.TrimSpace(addr.Line1),
				Line2:      strings.TrimSpace(addr.Line2),
				City:       strings.TrimSpace(addr.City),
				State:      strings.TrimSpace(addr.State),
				PostalCode: strings.TrimSpace(addr.PostalCode),
				Country:    strings.TrimSpace(addr.Country),
			},
		},
		Items:         items,
		ShippingCost:  shipping,
		Tax:           tax,
		PaymentMethod: method,
		CustomerNotes: strings.TrimSpace(notes),
	}
}

type updateStatusRequest struct {
	Status        string `json:"status" validate:"omitempty,oneof=pending confirmed processing shipped delivered cancelled"`
	PaymentStatus string `json:"paymentStatus" validate:"omitempty,oneof=pending paid failed refunded"`
	Note          string `json:"note" validate:"max=500"`
}

type refundRequest struct {
	PaymentIntentID string       `json:"paymentIntentId" validate:"required,max=255"`
	Amount          domain.Cents `json:"amount" validate:"gte=0"`
	Reason          string       `json:"reason" validate:"omitempty,oneof=duplicate fraudulent requested_by_customer"`
}

type adjustStockRequest struct {
	Delta int `json:"delta" validate:"ne=0,min=-1000000,max=1000000"`
}

// parseID reads a UUID path value.
func parseID(raw, op, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(op, field, "must be a valid id")
	}
	return id, nil
}
