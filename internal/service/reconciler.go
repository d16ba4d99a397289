package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dukerupert/storefront/internal/billing"
	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/events"
	"github.com/dukerupert/storefront/internal/repository"
	"github.com/dukerupert/storefront/internal/telemetry"
)

// Reconcile results.
const (
	ReconcileApplied       = "applied"
	ReconcileDuplicate     = "duplicate"
	ReconcileIgnored       = "ignored"
	ReconcileOrderNotFound = "order_not_found"
)

// ReconcileOutcome reports what a webhook event did.
type ReconcileOutcome struct {
	Result  string
	OrderID uuid.UUID
}

// PaymentReconciler applies verified payment events to orders.
type PaymentReconciler interface {
	// HandleEvent applies the event exactly once. Replays of an event id
	// that was already processed change nothing.
	HandleEvent(ctx context.Context, event *billing.Event) (*ReconcileOutcome, error)
}

type paymentReconciler struct {
	store  repository.Store
	notify notifier
	logger *slog.Logger
}

// NewPaymentReconciler creates a PaymentReconciler.
func NewPaymentReconciler(store repository.Store, publisher events.Publisher, logger *slog.Logger) PaymentReconciler {
	return &paymentReconciler{
		store:  store,
		notify: notifier{publisher: publisher, logger: logger},
		logger: logger,
	}
}

// pendingEvent is an order event to publish after commit.
type pendingEvent struct {
	eventType string
	order     *domain.Order
}

func (r *paymentReconciler) HandleEvent(ctx context.Context, event *billing.Event) (*ReconcileOutcome, error) {
	const op = "payment.reconcile"

	switch event.Type {
	case billing.EventPaymentIntentSucceeded, billing.EventPaymentIntentFailed, billing.EventPaymentIntentCanceled:
	default:
		r.logger.Info("ignoring webhook event", "event_id", event.ID, "type", event.Type)
		return &ReconcileOutcome{Result: ReconcileIgnored}, nil
	}
	if event.PaymentIntent == nil {
		return nil, opError(ErrInvalidWebhookPayload, op, nil)
	}
	pi := event.PaymentIntent

	outcome := &ReconcileOutcome{}
	var publish []pendingEvent

	err := r.store.ExecTx(ctx, func(q repository.Querier) error {
		// Reset in case the store retries the function.
		publish = publish[:0]

		inserted, err := q.InsertProcessedWebhookEvent(ctx, repository.InsertProcessedWebhookEventParams{
			EventID:   event.ID,
			EventType: event.Type,
		})
		if err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to record webhook event")
		}
		if inserted == 0 {
			outcome.Result = ReconcileDuplicate
			return nil
		}

		row, found, err := r.lockOrderForIntent(ctx, q, op, pi)
		if err != nil {
			return err
		}
		if !found {
			outcome.Result = ReconcileOrderNotFound
			return nil
		}
		outcome.OrderID = row.ID

		var ev *pendingEvent
		switch event.Type {
		case billing.EventPaymentIntentSucceeded:
			ev, err = r.applySucceeded(ctx, q, op, row, pi)
		case billing.EventPaymentIntentFailed:
			note := "Payment failed"
			if pi.LastErrorMessage != "" {
				note += ": " + pi.LastErrorMessage
			}
			ev, err = r.applyFailed(ctx, q, op, row, note)
		case billing.EventPaymentIntentCanceled:
			ev, err = r.applyFailed(ctx, q, op, row, "Payment canceled")
		}
		if err != nil {
			return err
		}

		outcome.Result = ReconcileApplied
		if ev != nil {
			publish = append(publish, *ev)
		} else {
			outcome.Result = ReconcileIgnored
		}
		return nil
	})
	if err != nil {
		return nil, internalError(err, op, "failed to apply payment event")
	}

	switch outcome.Result {
	case ReconcileDuplicate:
		r.logger.Info("duplicate webhook event", "event_id", event.ID, "type", event.Type)
	case ReconcileOrderNotFound:
		r.logger.Warn("no order for payment intent",
			"event_id", event.ID,
			"type", event.Type,
			"payment_intent_id", pi.ID,
		)
	case ReconcileIgnored:
		r.logger.Info("payment event left order unchanged",
			"event_id", event.ID,
			"type", event.Type,
			"order_id", outcome.OrderID,
		)
	}

	for _, p := range publish {
		r.recordMetrics(event, p)
		r.notify.publish(ctx, p.eventType, p.order)
	}
	return outcome, nil
}

// lockOrderForIntent finds the order by its stored intent id. An order whose
// intent id was never stored (the process stopped between creating the
// intent and saving it) is found through the order_id metadata instead and
// gets the intent attached.
func (r *paymentReconciler) lockOrderForIntent(ctx context.Context, q repository.Querier, op string, pi *billing.PaymentIntent) (repository.Order, bool, error) {
	row, err := q.GetOrderByPaymentIntentIDForUpdate(ctx, pi.ID)
	if err == nil {
		return row, true, nil
	}
	if !repository.IsNotFound(err) {
		return repository.Order{}, false, domain.WrapError(err, domain.EINTERNAL, op, "failed to lock order")
	}

	orderID, perr := uuid.Parse(pi.Metadata["order_id"])
	if perr != nil {
		return repository.Order{}, false, nil
	}
	row, err = q.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if repository.IsNotFound(err) {
			return repository.Order{}, false, nil
		}
		return repository.Order{}, false, domain.WrapError(err, domain.EINTERNAL, op, "failed to lock order")
	}
	if row.ExternalPaymentIntentID.Valid {
		// The order belongs to a different intent.
		return repository.Order{}, false, nil
	}

	if _, err := q.SetOrderPaymentIntent(ctx, repository.SetOrderPaymentIntentParams{
		ID:                      row.ID,
		ExternalPaymentIntentID: pi.ID,
	}); err != nil {
		return repository.Order{}, false, domain.WrapError(err, domain.EINTERNAL, op, "failed to attach payment intent")
	}
	row.ExternalPaymentIntentID = optionalText(pi.ID)
	r.logger.Warn("attached payment intent from metadata", "order_id", row.ID, "payment_intent_id", pi.ID)
	return row, true, nil
}

// applySucceeded marks the order paid. A pending order is confirmed. An
// order that was cancelled because an earlier attempt failed is revived
// when its stock can be reserved again; otherwise it stays cancelled and
// is flagged for a refund.
func (r *paymentReconciler) applySucceeded(ctx context.Context, q repository.Querier, op string, row repository.Order, pi *billing.PaymentIntent) (*pendingEvent, error) {
	payment := domain.PaymentStatus(row.PaymentStatus)
	if payment == domain.PaymentStatusPaid || payment == domain.PaymentStatusRefunded {
		return nil, nil
	}

	if err := q.UpdateOrderPaymentDetails(ctx, repository.UpdateOrderPaymentDetailsParams{
		ID:                 row.ID,
		ExternalChargeID:   optionalText(pi.LatestChargeID),
		ExternalCustomerID: optionalText(pi.CustomerID),
	}); err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to store payment details")
	}

	status := domain.OrderStatus(row.Status)
	next := status
	note := "Payment received"

	switch {
	case status == domain.OrderStatusPending:
		next = domain.OrderStatusConfirmed
	case status == domain.OrderStatusCancelled && payment == domain.PaymentStatusFailed:
		lines, err := orderStockLines(ctx, q, op, row.ID)
		if err != nil {
			return nil, err
		}
		products, err := lockProducts(ctx, q, op, lines)
		if err != nil {
			if domain.IsCode(err, domain.ENOTFOUND) {
				note = "Payment received after cancellation; a product no longer exists, refund required"
				break
			}
			return nil, err
		}
		if checkStock(op, products, lines) != nil {
			note = "Payment received after cancellation; stock no longer available, refund required"
			break
		}
		if _, err := reserveStock(ctx, q, op, lines); err != nil {
			return nil, err
		}
		next = domain.OrderStatusConfirmed
		note = "Payment received after an earlier failure; stock reserved again"
	case status == domain.OrderStatusCancelled:
		note = "Payment received for a cancelled order; refund required"
	}

	updated, err := setStatus(ctx, q, op, row, next, domain.PaymentStatusPaid, note)
	if err != nil {
		return nil, err
	}
	order, err := loadOrder(ctx, q, op, updated)
	if err != nil {
		return nil, err
	}

	if next == domain.OrderStatusCancelled {
		r.logger.Error("payment succeeded for cancelled order, refund required",
			"order_id", order.ID,
			"payment_intent_id", pi.ID,
		)
	}
	return &pendingEvent{eventType: events.OrderPaid, order: order}, nil
}

// applyFailed cancels an unpaid order and gives its stock back. Orders that
// are already paid, refunded or cancelled are left alone, so a failure
// event that arrives late or twice cannot release stock a second time.
func (r *paymentReconciler) applyFailed(ctx context.Context, q repository.Querier, op string, row repository.Order, note string) (*pendingEvent, error) {
	switch domain.PaymentStatus(row.PaymentStatus) {
	case domain.PaymentStatusPaid, domain.PaymentStatusRefunded:
		return nil, nil
	}
	if domain.OrderStatus(row.Status) == domain.OrderStatusCancelled {
		return nil, nil
	}

	lines, err := orderStockLines(ctx, q, op, row.ID)
	if err != nil {
		return nil, err
	}
	if err := restoreStock(ctx, q, r.logger, op, row.ID, lines); err != nil {
		return nil, err
	}

	updated, err := setStatus(ctx, q, op, row, domain.OrderStatusCancelled, domain.PaymentStatusFailed, note)
	if err != nil {
		return nil, err
	}
	order, err := loadOrder(ctx, q, op, updated)
	if err != nil {
		return nil, err
	}
	return &pendingEvent{eventType: events.OrderCancelled, order: order}, nil
}

func (r *paymentReconciler) recordMetrics(event *billing.Event, p pendingEvent) {
	if telemetry.Business == nil {
		return
	}
	switch p.eventType {
	case events.OrderPaid:
		telemetry.Business.PaymentSucceeded.WithLabelValues(p.order.Currency).Inc()
		telemetry.Business.RevenueCollected.WithLabelValues(p.order.Currency).Add(float64(p.order.TotalAmount))
	case events.OrderCancelled:
		telemetry.Business.PaymentFailed.WithLabelValues(event.Type).Inc()
		reason := "payment_failed"
		if event.Type == billing.EventPaymentIntentCanceled {
			reason = "payment_canceled"
		}
		telemetry.Business.OrdersCancelled.WithLabelValues(reason).Inc()
	}
}

// String is used in logs.
func (o *ReconcileOutcome) String() string {
	if o.OrderID == uuid.Nil {
		return o.Result
	}
	return fmt.Sprintf("%s (order %s)", o.Result, o.OrderID)
}
