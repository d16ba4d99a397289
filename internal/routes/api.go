package routes

import (
	"github.com/dukerupert/storefront/internal/router"
)

// RegisterAPIRoutes registers the order, payment and product routes.
// Admin routes require a bearer token carrying the admin role.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	// Checkout
	checkout := r.Group(optional(deps.CheckoutLimit)...)
	checkout.Post("/orders", deps.Orders.Create)
	checkout.Post("/payment/create-payment-intent", deps.Payments.CreatePaymentIntent)

	// Public lookups
	r.Get("/orders/{id}", deps.Orders.Get)
	r.Get("/orders/customer/{email}", deps.Orders.ListByCustomer)
	r.Get("/payment/payment-status/{intentId}", deps.Payments.PaymentStatus)
	r.Get("/products/{id}", deps.Products.Get)

	// Admin
	admin := r.Group(deps.RequireAdmin)
	admin.Get("/orders", deps.Orders.List)
	admin.Patch("/orders/{id}/status", deps.Orders.UpdateStatus)
	admin.Delete("/orders/{id}", deps.Orders.Delete)
	admin.Post("/payment/refund", deps.Payments.Refund)
	admin.Patch("/admin/products/{id}/stock", deps.Products.AdjustStock)
	admin.Post("/admin/tokens/revoke", deps.Tokens.Revoke)
}

func optional(m router.Middleware) []router.Middleware {
	if m == nil {
		return nil
	}
	return []router.Middleware{m}
}
