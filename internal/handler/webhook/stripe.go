package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/storefront/internal/billing"
	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/handler"
	"github.com/dukerupert/storefront/internal/middleware"
	"github.com/dukerupert/storefront/internal/service"
	"github.com/dukerupert/storefront/internal/telemetry"
)

// SignatureHeader carries the processor's payload signature.
const SignatureHeader = "Stripe-Signature"

// DefaultMaxPayloadBytes caps the webhook body. Payment intent events are a
// few kilobytes.
const DefaultMaxPayloadBytes = 64 * 1024

// EventVerifier checks a payload signature and decodes the event.
// billing.StripeProvider implements it.
type EventVerifier interface {
	ConstructEvent(payload []byte, signature string) (*billing.Event, error)
}

// StripeHandler handles Stripe webhook events
type StripeHandler struct {
	verifier   EventVerifier
	reconciler service.PaymentReconciler
	logger     *slog.Logger
	maxPayload int64
}

// NewStripeHandler creates a new Stripe webhook handler
func NewStripeHandler(verifier EventVerifier, reconciler service.PaymentReconciler, logger *slog.Logger) *StripeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeHandler{
		verifier:   verifier,
		reconciler: reconciler,
		logger:     logger,
		maxPayload: DefaultMaxPayloadBytes,
	}
}

// HandleWebhook handles POST /payment/webhook
//
// The signature is checked against the exact request bytes before anything
// is parsed. Responses:
//   - 400 when the signature does not verify; nothing is changed
//   - 200 {"received": true} once the event is applied, was already
//     applied, or needs no action
//   - 500 when applying the event failed, so the processor redelivers it
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/payment/webhook
//	stripe trigger payment_intent.succeeded
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := middleware.GetLogger(r.Context(), h.logger)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxPayload))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			recordFailure("too_large")
			handler.ErrorResponse(w, r, domain.Errorf(domain.ETOOLARGE, "webhook.read", "Payload too large"))
			return
		}
		recordFailure("read_error")
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "webhook.read", "Error reading request body"))
		return
	}

	signature := r.Header.Get(SignatureHeader)
	if signature == "" {
		logger.Warn("webhook rejected: missing signature header", "payload_bytes", len(payload))
		recordFailure("signature")
		handler.ErrorResponse(w, r, service.ErrInvalidWebhookSignature)
		return
	}

	event, err := h.verifier.ConstructEvent(payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrInvalidWebhookPayload) {
			logger.Error("verified webhook payload could not be decoded", "error", err)
			recordFailure("payload")
			handler.ErrorResponse(w, r, service.ErrInvalidWebhookPayload)
			return
		}
		logger.Warn("webhook rejected: signature verification failed", "payload_bytes", len(payload))
		recordFailure("signature")
		handler.ErrorResponse(w, r, service.ErrInvalidWebhookSignature)
		return
	}

	logger = logger.With("event_id", event.ID, "event_type", event.Type)
	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(event.Type).Inc()
		defer func() {
			telemetry.Business.WebhookLatency.WithLabelValues(event.Type).Observe(time.Since(start).Seconds())
		}()
	}

	// The processor does not wait long; finish the transaction even if the
	// client goes away first.
	ctx := context.WithoutCancel(r.Context())
	outcome, err := h.reconciler.HandleEvent(ctx, event)
	if err != nil {
		if errors.Is(err, service.ErrInvalidWebhookPayload) {
			logger.Error("webhook event missing payment intent", "error", err)
			recordFailure("payload")
			handler.ErrorResponse(w, r, err)
			return
		}
		logger.Error("webhook processing failed, processor will retry", "error", err)
		recordFailure("processing")
		handler.ErrorResponse(w, r, err)
		return
	}

	logger.Info("webhook processed", "outcome", outcome.String())
	if telemetry.Business != nil {
		telemetry.Business.WebhookProcessed.WithLabelValues(event.Type, outcome.Result).Inc()
	}

	handler.JSON(w, http.StatusOK, map[string]any{"received": true})
}

func recordFailure(reason string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookFailed.WithLabelValues(reason).Inc()
	}
}
