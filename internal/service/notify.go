package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/events"
	"github.com/dukerupert/storefront/internal/repository"
	"github.com/dukerupert/storefront/internal/telemetry"
)

// notifier publishes order events after the transaction that produced them
// has committed. A failed publish is logged and never fails the request.
type notifier struct {
	publisher events.Publisher
	logger    *slog.Logger
}

func (n notifier) publish(ctx context.Context, eventType string, order *domain.Order) {
	if n.publisher == nil || order == nil {
		return
	}

	result := "ok"
	if err := n.publisher.Publish(ctx, events.NewOrderEvent(eventType, order)); err != nil {
		result = "error"
		n.logger.Warn("failed to publish order event",
			"event", eventType,
			"order_id", order.ID,
			"error", err,
		)
	}
	if telemetry.Business != nil {
		telemetry.Business.EventsPublished.WithLabelValues(eventType, result).Inc()
	}
}

// internalError passes domain errors through and wraps anything else as
// EINTERNAL.
func internalError(err error, op, message string) error {
	var de *domain.Error
	if errors.As(err, &de) || domain.IsValidationError(err) {
		return err
	}
	return domain.WrapError(err, domain.EINTERNAL, op, message)
}

// loadOrder attaches items and status history to an order row.
func loadOrder(ctx context.Context, q repository.Querier, op string, row repository.Order) (*domain.Order, error) {
	items, err := q.ListOrderItems(ctx, row.ID)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load order items")
	}
	history, err := q.ListOrderStatusHistory(ctx, row.ID)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load order history")
	}
	return toDomainOrder(row, items, history), nil
}

// setStatus writes both statuses and appends a history entry.
func setStatus(ctx context.Context, q repository.Querier, op string, row repository.Order, status domain.OrderStatus, payment domain.PaymentStatus, note string) (repository.Order, error) {
	updated, err := q.UpdateOrderStatus(ctx, repository.UpdateOrderStatusParams{
		ID:            row.ID,
		Status:        string(status),
		PaymentStatus: string(payment),
	})
	if err != nil {
		return repository.Order{}, domain.WrapError(err, domain.EINTERNAL, op, "failed to update order status")
	}
	if _, err := q.CreateOrderStatusHistory(ctx, repository.CreateOrderStatusHistoryParams{
		OrderID: row.ID,
		Status:  string(status),
		Note:    note,
	}); err != nil {
		return repository.Order{}, domain.WrapError(err, domain.EINTERNAL, op, "failed to record status history")
	}
	return updated, nil
}

// cancelAwaitingPayment cancels a card order that never got a payment
// intent and gives its stock back. It reports false without changing
// anything when the order has moved on in the meantime.
func cancelAwaitingPayment(ctx context.Context, store repository.Store, logger *slog.Logger, op string, row repository.Order, note string) (*domain.Order, bool, error) {
	var (
		cancelled *domain.Order
		changed   bool
	)
	err := store.ExecTx(ctx, func(q repository.Querier) error {
		current, err := q.GetOrderForUpdate(ctx, row.ID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil
			}
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to lock order")
		}
		if current.Status != string(domain.OrderStatusPending) ||
			current.PaymentStatus != string(domain.PaymentStatusPending) ||
			current.ExternalPaymentIntentID.Valid {
			return nil
		}

		lines, err := orderStockLines(ctx, q, op, current.ID)
		if err != nil {
			return err
		}
		if err := restoreStock(ctx, q, logger, op, current.ID, lines); err != nil {
			return err
		}
		updated, err := setStatus(ctx, q, op, current, domain.OrderStatusCancelled, domain.PaymentStatusFailed, note)
		if err != nil {
			return err
		}
		cancelled, err = loadOrder(ctx, q, op, updated)
		if err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, internalError(err, op, "failed to cancel order")
	}
	return cancelled, changed, nil
}
