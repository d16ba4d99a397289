package api

import (
	"net/http"

	"github.com/dukerupert/storefront/internal/handler"
	"github.com/dukerupert/storefront/internal/service"
)

// ProductHandler exposes product stock, the part of the catalogue the
// order flow depends on.
type ProductHandler struct {
	products service.ProductService
}

// NewProductHandler creates a product handler.
func NewProductHandler(products service.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// Get handles GET /products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"), "api.product.get", "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	product, err := h.products.GetProduct(r.Context(), id)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"product": product,
	})
}

// AdjustStock handles PATCH /admin/products/{id}/stock (admin)
//
// Body: {"delta": 12} to restock, {"delta": -2} to write off.
func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	const op = "api.product.adjust_stock"

	id, err := parseID(r.PathValue("id"), op, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req adjustStockRequest
	if err := handler.DecodeJSON(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	product, err := h.products.AdjustStock(r.Context(), id, req.Delta)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"product": product,
	})
}
