package api

import (
	"net/http"
	"strings"

	"github.com/dukerupert/storefront/internal/handler"
	"github.com/dukerupert/storefront/internal/service"
)

// PaymentHandler serves the card payment endpoints. Webhooks are handled
// separately by the webhook package.
type PaymentHandler struct {
	payments service.PaymentService
}

// NewPaymentHandler creates a payment handler.
func NewPaymentHandler(payments service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// CreatePaymentIntent handles POST /payment/create-payment-intent
//
// Places a card order and returns the client secret the browser confirms
// the payment with.
func (h *PaymentHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	const op = "api.payment.create_intent"

	var req paymentIntentRequest
	if err := handler.DecodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.payments.CreatePaymentIntent(r.Context(), req.params())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"clientSecret":    result.ClientSecret,
		"paymentIntentId": result.PaymentIntentID,
		"orderId":         result.Order.ID,
		"orderNumber":     result.Order.OrderNumber,
		"amount":          result.Order.TotalAmount,
	})
}

// PaymentStatus handles GET /payment/payment-status/{intentId}
func (h *PaymentHandler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	result, err := h.payments.GetPaymentStatus(r.Context(), strings.TrimSpace(r.PathValue("intentId")))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"paymentIntentId": result.PaymentIntentID,
		"status":          result.Status,
		"amount":          result.Amount,
		"currency":        result.Currency,
		"order":           result.Order,
	})
}

// Refund handles POST /payment/refund (admin)
func (h *PaymentHandler) Refund(w http.ResponseWriter, r *http.Request) {
	const op = "api.payment.refund"

	var req refundRequest
	if err := handler.DecodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.payments.Refund(r.Context(), service.RefundParams{
		PaymentIntentID: strings.TrimSpace(req.PaymentIntentID),
		Amount:          req.Amount,
		Reason:          req.Reason,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"refund": map[string]any{
			"id":     result.RefundID,
			"amount": result.Amount,
			"status": result.Status,
		},
		"order": result.Order,
	})
}
