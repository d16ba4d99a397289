package routes

import (
	"net/http"

	"github.com/dukerupert/storefront/internal/handler/api"
	"github.com/dukerupert/storefront/internal/router"
)

// APIDeps contains dependencies for the public and admin JSON API
type APIDeps struct {
	Orders   *api.OrderHandler
	Payments *api.PaymentHandler
	Products *api.ProductHandler
	Tokens   *api.TokenHandler

	// RequireAdmin guards admin routes (bearer token with the admin role)
	RequireAdmin router.Middleware

	// CheckoutLimit rate limits order creation and payment intents
	CheckoutLimit router.Middleware
}

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc

	// BodyLimit caps webhook payloads
	BodyLimit router.Middleware
}
