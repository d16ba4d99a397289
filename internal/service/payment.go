package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/storefront/internal/billing"
	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/events"
	"github.com/dukerupert/storefront/internal/repository"
	"github.com/dukerupert/storefront/internal/telemetry"
)

// PaymentService bridges card orders and the payment processor.
type PaymentService interface {
	// CreatePaymentIntent places a card order and opens a payment intent for
	// its total. If the intent cannot be created the order is cancelled and
	// its stock released before the error is returned.
	CreatePaymentIntent(ctx context.Context, params CreateOrderParams) (*PaymentIntentResult, error)

	// EnsurePaymentIntent returns the order's payment intent, creating it
	// when the order has none. Safe to retry.
	EnsurePaymentIntent(ctx context.Context, orderID uuid.UUID) (*PaymentIntentResult, error)

	// GetPaymentStatus reads the intent's live status from the processor
	// together with the local order, if one references it.
	GetPaymentStatus(ctx context.Context, paymentIntentID string) (*PaymentStatusResult, error)

	// Refund refunds a paid order through the processor, then marks it
	// refunded and cancelled and gives its stock back.
	Refund(ctx context.Context, params RefundParams) (*RefundResult, error)
}

// PaymentIntentResult is returned to the buyer to complete payment client-side.
type PaymentIntentResult struct {
	ClientSecret    string
	PaymentIntentID string
	Order           *domain.Order
}

// PaymentStatusResult is the processor's view of an intent.
type PaymentStatusResult struct {
	PaymentIntentID string
	Status          string
	Amount          domain.Cents
	Currency        string
	Order           *domain.Order
}

// RefundParams identifies the payment to refund. A zero Amount refunds
// the order total.
type RefundParams struct {
	PaymentIntentID string
	Amount          domain.Cents
	Reason          string
}

// RefundResult describes the refund issued and the updated order.
type RefundResult struct {
	RefundID string
	Amount   domain.Cents
	Status   string
	Order    *domain.Order
}

type paymentService struct {
	store   repository.Store
	orders  OrderService
	billing billing.Provider
	notify  notifier
	logger  *slog.Logger
}

// NewPaymentService creates a PaymentService.
func NewPaymentService(store repository.Store, orders OrderService, billingProvider billing.Provider, publisher events.Publisher, logger *slog.Logger) PaymentService {
	return &paymentService{
		store:   store,
		orders:  orders,
		billing: billingProvider,
		notify:  notifier{publisher: publisher, logger: logger},
		logger:  logger,
	}
}

func (s *paymentService) CreatePaymentIntent(ctx context.Context, params CreateOrderParams) (*PaymentIntentResult, error) {
	params.PaymentMethod = domain.PaymentMethodCard

	order, err := s.orders.CreateOrder(ctx, params)
	if err != nil {
		return nil, err
	}

	result, err := s.EnsurePaymentIntent(ctx, order.ID)
	if err != nil {
		s.compensate(ctx, order, err)
		return nil, err
	}
	return result, nil
}

// compensate releases the reservation of an order whose intent could not be
// created. It runs detached from the request so a client disconnect cannot
// strand the stock; anything it misses is picked up by the stale order
// sweeper.
func (s *paymentService) compensate(ctx context.Context, order *domain.Order, cause error) {
	const op = "payment.compensate"

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	row, err := s.store.GetOrder(ctx, order.ID)
	if err != nil {
		s.logger.Error("failed to load order for compensation", "order_id", order.ID, "error", err)
		return
	}

	cancelled, changed, err := cancelAwaitingPayment(ctx, s.store, s.logger, op, row, "Payment intent could not be created")
	if err != nil {
		s.logger.Error("failed to cancel order after payment intent failure",
			"order_id", order.ID,
			"cause", cause,
			"error", err,
		)
		return
	}
	if !changed {
		return
	}

	s.logger.Warn("order cancelled after payment intent failure",
		"order_id", cancelled.ID,
		"order_number", cancelled.OrderNumber,
		"cause", cause,
	)
	if telemetry.Business != nil {
		telemetry.Business.OrdersCancelled.WithLabelValues("intent_failed").Inc()
	}
	s.notify.publish(ctx, events.OrderCancelled, cancelled)
}

func (s *paymentService) EnsurePaymentIntent(ctx context.Context, orderID uuid.UUID) (*PaymentIntentResult, error) {
	const op = "payment.ensure_intent"

	row, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load order")
	}
	if row.PaymentMethod != string(domain.PaymentMethodCard) {
		return nil, opError(ErrOrderNotCardPayment, op, nil)
	}

	if row.ExternalPaymentIntentID.Valid {
		return s.existingIntent(ctx, op, row)
	}
	if row.Status != string(domain.OrderStatusPending) || row.PaymentStatus != string(domain.PaymentStatusPending) {
		return nil, opError(ErrOrderNotPayable, op, nil)
	}

	start := time.Now()
	pi, err := s.billing.CreatePaymentIntent(ctx, billing.CreatePaymentIntentParams{
		AmountCents:   row.TotalCents,
		Currency:      row.Currency,
		CustomerEmail: row.CustomerEmail,
		Description:   fmt.Sprintf("Order %s", row.OrderNumber),
		Metadata: map[string]string{
			"order_id":       row.ID.String(),
			"order_number":   row.OrderNumber,
			"customer_email": row.CustomerEmail,
		},
		IdempotencyKey: fmt.Sprintf("order-%s-intent", row.ID),
	})
	observeStripe("create_payment_intent", start)
	if err != nil {
		recordIntent("failed")
		s.logger.Error("failed to create payment intent", append([]any{"order_id", row.ID}, processorAttrs(err)...)...)
		return nil, opError(ErrPaymentIntentCreationFailed, op, err)
	}
	recordIntent("created")

	n, err := s.store.SetOrderPaymentIntent(ctx, repository.SetOrderPaymentIntentParams{
		ID:                      row.ID,
		ExternalPaymentIntentID: pi.ID,
	})
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to store payment intent")
	}
	if n == 0 {
		// A concurrent call stored an intent first; the idempotency key
		// makes it the same one, but the stored value wins either way.
		current, err := s.store.GetOrder(ctx, row.ID)
		if err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to reload order")
		}
		if textValue(current.ExternalPaymentIntentID) != pi.ID {
			s.logger.Warn("order already has a different payment intent",
				"order_id", row.ID,
				"stored", textValue(current.ExternalPaymentIntentID),
				"created", pi.ID,
			)
			return s.existingIntent(ctx, op, current)
		}
		row = current
	} else {
		row.ExternalPaymentIntentID = optionalText(pi.ID)
	}

	order, err := loadOrder(ctx, s.store, op, row)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment intent created",
		"order_id", order.ID,
		"payment_intent_id", pi.ID,
		"amount_cents", pi.AmountCents,
	)
	return &PaymentIntentResult{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
		Order:           order,
	}, nil
}

func (s *paymentService) existingIntent(ctx context.Context, op string, row repository.Order) (*PaymentIntentResult, error) {
	start := time.Now()
	pi, err := s.billing.GetPaymentIntent(ctx, billing.GetPaymentIntentParams{
		PaymentIntentID: row.ExternalPaymentIntentID.String,
	})
	observeStripe("get_payment_intent", start)
	if err != nil {
		return nil, opError(ErrPaymentStatusUnavailable, op, err)
	}

	order, err := loadOrder(ctx, s.store, op, row)
	if err != nil {
		return nil, err
	}
	return &PaymentIntentResult{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
		Order:           order,
	}, nil
}

func (s *paymentService) GetPaymentStatus(ctx context.Context, paymentIntentID string) (*PaymentStatusResult, error) {
	const op = "payment.status"

	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, domain.NewValidationError(op, "paymentIntentId", "Payment intent ID is required")
	}

	start := time.Now()
	pi, err := s.billing.GetPaymentIntent(ctx, billing.GetPaymentIntentParams{PaymentIntentID: paymentIntentID})
	observeStripe("get_payment_intent", start)
	if err != nil {
		if errors.Is(err, billing.ErrPaymentIntentNotFound) {
			return nil, opError(ErrPaymentIntentNotFound, op, err)
		}
		return nil, opError(ErrPaymentStatusUnavailable, op, err)
	}

	result := &PaymentStatusResult{
		PaymentIntentID: pi.ID,
		Status:          pi.Status,
		Amount:          domain.Cents(pi.AmountCents),
		Currency:        pi.Currency,
	}

	row, err := s.store.GetOrderByPaymentIntentID(ctx, pi.ID)
	switch {
	case err == nil:
		if result.Order, err = loadOrder(ctx, s.store, op, row); err != nil {
			return nil, err
		}
	case repository.IsNotFound(err):
	default:
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load order")
	}
	return result, nil
}

func (s *paymentService) Refund(ctx context.Context, params RefundParams) (*RefundResult, error) {
	const op = "payment.refund"

	params.PaymentIntentID = strings.TrimSpace(params.PaymentIntentID)
	var verr error
	if params.PaymentIntentID == "" {
		verr = domain.AddFieldError(verr, "paymentIntentId", "Payment intent ID is required")
	}
	if params.Amount < 0 {
		verr = domain.AddFieldError(verr, "amount", "Amount must be positive")
	}
	if verr != nil {
		return nil, verr
	}
	switch params.Reason {
	case "", billing.RefundReasonDuplicate, billing.RefundReasonFraudulent, billing.RefundReasonRequestedByCustomer:
	default:
		return nil, opError(ErrInvalidRefundReason, op, nil)
	}

	// The order row stays locked across the processor call. A concurrent
	// refund of the same payment waits and then finds the order refunded.
	var (
		order  *domain.Order
		refund *billing.Refund
		amount domain.Cents
	)
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		row, err := q.GetOrderByPaymentIntentIDForUpdate(ctx, params.PaymentIntentID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrOrderNotFound
			}
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to lock order")
		}
		if row.PaymentStatus != string(domain.PaymentStatusPaid) {
			return opError(ErrOrderNotPaid, op, nil)
		}

		amount = params.Amount
		if amount == 0 {
			amount = domain.Cents(row.TotalCents)
		}
		if int64(amount) > row.TotalCents {
			return opError(ErrRefundExceedsTotal, op, nil)
		}

		refund, err = s.refundAtProcessor(ctx, op, row, params, amount)
		if err != nil {
			return err
		}

		note := fmt.Sprintf("Refunded %s %s", amount, strings.ToUpper(row.Currency))
		if params.Reason != "" {
			note += " (" + params.Reason + ")"
		}

		if row.Status != string(domain.OrderStatusCancelled) {
			lines, err := orderStockLines(ctx, q, op, row.ID)
			if err != nil {
				return err
			}
			if err := restoreStock(ctx, q, s.logger, op, row.ID, lines); err != nil {
				return err
			}
		}

		updated, err := setStatus(ctx, q, op, row, domain.OrderStatusCancelled, domain.PaymentStatusRefunded, note)
		if err != nil {
			return err
		}
		order, err = loadOrder(ctx, q, op, updated)
		return err
	})
	if err != nil {
		return nil, internalError(err, op, "failed to record refund")
	}

	result := &RefundResult{Amount: amount, Status: "succeeded", Order: order}
	if refund != nil {
		result.RefundID = refund.ID
		result.Amount = domain.Cents(refund.AmountCents)
		result.Status = refund.Status
	}

	s.logger.Info("order refunded",
		"order_id", order.ID,
		"refund_id", result.RefundID,
		"amount_cents", int64(result.Amount),
		"by", domain.AdminSubject(ctx),
	)
	if telemetry.Business != nil {
		reason := params.Reason
		if reason == "" {
			reason = "none"
		}
		telemetry.Business.RefundsIssued.WithLabelValues(reason).Inc()
		telemetry.Business.RefundAmount.WithLabelValues(order.Currency).Add(float64(result.Amount))
		telemetry.Business.OrdersCancelled.WithLabelValues("refund").Inc()
	}
	s.notify.publish(ctx, events.OrderRefunded, order)

	return result, nil
}

// refundAtProcessor issues the processor refund for a locked order. A charge
// the processor reports as already refunded was refunded by an earlier
// attempt whose local update did not commit, so the local side proceeds.
func (s *paymentService) refundAtProcessor(ctx context.Context, op string, row repository.Order, params RefundParams, amount domain.Cents) (*billing.Refund, error) {
	start := time.Now()
	refund, err := s.billing.RefundPayment(ctx, billing.RefundParams{
		PaymentIntentID: params.PaymentIntentID,
		AmountCents:     int64(amount),
		Reason:          params.Reason,
		Metadata: map[string]string{
			"order_id":     row.ID.String(),
			"order_number": row.OrderNumber,
			"refunded_by":  domain.AdminSubject(ctx),
		},
		IdempotencyKey: fmt.Sprintf("refund-%s-%d", params.PaymentIntentID, int64(amount)),
	})
	observeStripe("refund", start)
	switch {
	case err == nil:
		return refund, nil
	case errors.Is(err, billing.ErrChargeAlreadyRefunded):
		s.logger.Warn("charge already refunded, completing local refund",
			"order_id", row.ID,
			"payment_intent_id", params.PaymentIntentID,
		)
		return nil, nil
	}
	s.logger.Error("refund failed",
		append([]any{"order_id", row.ID, "payment_intent_id", params.PaymentIntentID}, processorAttrs(err)...)...)
	return nil, opError(ErrRefundFailed, op, err)
}

func observeStripe(operation string, start time.Time) {
	if telemetry.Business != nil {
		telemetry.Business.StripeAPILatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

func recordIntent(result string) {
	if telemetry.Business != nil {
		telemetry.Business.PaymentIntentsCreated.WithLabelValues(result).Inc()
	}
}

// processorAttrs describes a payment processor failure for logs.
func processorAttrs(err error) []any {
	attrs := []any{"error", err}
	var se *billing.StripeError
	if errors.As(err, &se) {
		attrs = append(attrs,
			"processor_code", se.Code,
			"processor_request_id", se.RequestID,
			"declined", se.IsDeclined(),
			"temporary", se.IsTemporary(),
		)
	}
	return attrs
}
