package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/handler"
	"github.com/dukerupert/storefront/internal/service"
)

// OrderHandler serves the order endpoints.
type OrderHandler struct {
	orders service.OrderService
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(orders service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// Create handles POST /orders
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	const op = "api.order.create"

	var req createOrderRequest
	if err := handler.DecodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.CreateOrder(r.Context(), req.params())
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"order":   order,
	})
}

// List handles GET /orders (admin)
//
// Query parameters: status, paymentStatus, email, limit, offset.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	const op = "api.order.list"

	q := r.URL.Query()
	filter := domain.OrderFilter{
		Status:        domain.OrderStatus(q.Get("status")),
		PaymentStatus: domain.PaymentStatus(q.Get("paymentStatus")),
		Email:         strings.TrimSpace(q.Get("email")),
	}

	var verr error
	if filter.Status != "" && !filter.Status.Valid() {
		verr = domain.AddFieldError(verr, "status", "is invalid")
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		verr = domain.AddFieldError(verr, "paymentStatus", "is invalid")
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		verr = domain.AddFieldError(verr, "limit", "must be a number")
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		verr = domain.AddFieldError(verr, "offset", "must be a number")
	}
	if verr != nil {
		handler.ValidationErrorResponse(w, r, withOp(verr, op))
		return
	}
	filter.Normalize()

	orders, err := h.orders.ListOrders(r.Context(), filter)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  orders,
		"count":   len(orders),
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

// Get handles GET /orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"), "api.order.get", "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.GetOrder(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   order,
	})
}

// ListByCustomer handles GET /orders/customer/{email}
func (h *OrderHandler) ListByCustomer(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrdersByCustomerEmail(r.Context(), r.PathValue("email"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orders":  orders,
		"count":   len(orders),
	})
}

// UpdateStatus handles PATCH /orders/{id}/status (admin)
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.order.update_status"

	id, err := parseID(r.PathValue("id"), op, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req updateStatusRequest
	if err := handler.DecodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), id, service.UpdateStatusParams{
		Status:        domain.OrderStatus(req.Status),
		PaymentStatus: domain.PaymentStatus(req.PaymentStatus),
		Note:          strings.TrimSpace(req.Note),
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"order":   order,
	})
}

// Delete handles DELETE /orders/{id} (admin)
func (h *OrderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"), "api.order.delete", "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	if err := h.orders.DeleteOrder(r.Context(), id); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Order deleted",
	})
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func withOp(err error, op string) error {
	if ve, ok := err.(*domain.ValidationError); ok {
		ve.Op = op
	}
	return err
}
