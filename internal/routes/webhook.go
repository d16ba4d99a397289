package routes

import (
	"github.com/dukerupert/storefront/internal/router"
)

// RegisterWebhookRoutes mounts the payment processor callback. It carries no
// bearer auth; the handler verifies the processor's signature instead.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	r.Post("/payment/webhook", deps.StripeHandler, optional(deps.BodyLimit)...)
}
