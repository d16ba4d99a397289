package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/storefront/internal/billing"
	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/events"
	"github.com/dukerupert/storefront/internal/repository"
	"github.com/dukerupert/storefront/internal/telemetry"
)

// OrderService provides business logic for order operations
type OrderService interface {
	// CreateOrder snapshots product data, computes totals and reserves
	// stock in one transaction. Either the order exists and every line's
	// stock is deducted, or nothing changed.
	CreateOrder(ctx context.Context, params CreateOrderParams) (*domain.Order, error)

	// GetOrder retrieves a single order with items and status history.
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)

	// ListOrders returns a filtered page of orders, newest first.
	ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error)

	// ListOrdersByCustomerEmail returns every order placed with the email,
	// newest first. Matching is case-insensitive.
	ListOrdersByCustomerEmail(ctx context.Context, email string) ([]*domain.Order, error)

	// UpdateStatus applies an admin status change. Cancelling gives stock
	// back; cancelled and delivered orders cannot change status again.
	UpdateStatus(ctx context.Context, id uuid.UUID, params UpdateStatusParams) (*domain.Order, error)

	// DeleteOrder removes an order. Stock held by an order that has not
	// shipped is given back first.
	DeleteOrder(ctx context.Context, id uuid.UUID) error

	// CancelStalePendingOrders cancels card orders that never got a payment
	// intent and are older than maxAge. Returns how many were cancelled.
	CancelStalePendingOrders(ctx context.Context, maxAge time.Duration, limit int) (int, error)
}

// OrderLine is one requested product and quantity.
type OrderLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderParams holds the buyer's order request. Prices are never taken
// from the caller; they are read from the product at order time.
type CreateOrderParams struct {
	CustomerInfo  domain.CustomerInfo
	Items         []OrderLine
	ShippingCost  domain.Cents
	Tax           domain.Cents
	PaymentMethod domain.PaymentMethod
	CustomerNotes string
}

// UpdateStatusParams holds an admin status change. Empty fields are left
// unchanged.
type UpdateStatusParams struct {
	Status        domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	Note          string
}

// OrderServiceConfig holds order settings.
type OrderServiceConfig struct {
	// Currency is the ISO code every order is priced in.
	Currency string
}

type orderService struct {
	store   repository.Store
	billing billing.Provider
	notify  notifier
	logger  *slog.Logger
	config  OrderServiceConfig
	now     func() time.Time
}

// NewOrderService creates a new OrderService instance.
// The billing provider is used to cancel open payment intents when an
// unpaid card order is cancelled.
func NewOrderService(store repository.Store, billingProvider billing.Provider, publisher events.Publisher, logger *slog.Logger, config OrderServiceConfig) OrderService {
	if config.Currency == "" {
		config.Currency = "usd"
	}
	return &orderService{
		store:   store,
		billing: billingProvider,
		notify:  notifier{publisher: publisher, logger: logger},
		logger:  logger,
		config:  config,
		now:     time.Now,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, params CreateOrderParams) (*domain.Order, error) {
	const op = "order.create"

	if err := validateCreateOrder(op, params); err != nil {
		return nil, err
	}

	lines := mergeOrderLines(params.Items)
	customer := normalizeCustomer(params.CustomerInfo)

	var created *domain.Order
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		products, err := reserveStock(ctx, q, op, lines)
		if err != nil {
			return err
		}

		items := make([]domain.OrderItem, 0, len(lines))
		for _, line := range lines {
			p := products[line.ProductID]
			items = append(items, domain.OrderItem{
				ProductID:    p.ID,
				ProductName:  p.Name,
				ProductImage: p.ImageUrl,
				Quantity:     line.Quantity,
				Price:        domain.Cents(p.PriceCents),
			})
		}
		subtotal, total := domain.ComputeTotals(items, params.ShippingCost, params.Tax)
		if err := checkOrderTotal(op, params.PaymentMethod, total); err != nil {
			return err
		}

		seq, err := q.NextOrderSequence(ctx)
		if err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to allocate order number")
		}
		now := s.now().UTC()

		row, err := q.CreateOrder(ctx, repository.CreateOrderParams{
			OrderNumber:        domain.FormatOrderNumber(now, seq),
			CustomerName:       customer.Name,
			CustomerEmail:      customer.Email,
			CustomerPhone:      customer.Phone,
			ShippingLine1:      customer.ShippingAddress.Line1,
			ShippingLine2:      customer.ShippingAddress.Line2,
			ShippingCity:       customer.ShippingAddress.City,
			ShippingState:      customer.ShippingAddress.State,
			ShippingPostalCode: customer.ShippingAddress.PostalCode,
			ShippingCountry:    customer.ShippingAddress.Country,
			SubtotalCents:      int64(subtotal),
			ShippingCents:      int64(params.ShippingCost),
			TaxCents:           int64(params.Tax),
			TotalCents:         int64(total),
			Currency:           s.config.Currency,
			Status:             string(domain.OrderStatusPending),
			PaymentMethod:      string(params.PaymentMethod),
			PaymentStatus:      string(domain.PaymentStatusPending),
			CustomerNotes:      strings.TrimSpace(params.CustomerNotes),
			CreatedAt:          timestamptz(now),
		})
		if err != nil {
			if repository.IsUniqueViolation(err) {
				return domain.WrapError(err, domain.ECONFLICT, op, "Order number already in use, please retry")
			}
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to create order")
		}

		itemRows := make([]repository.OrderItem, 0, len(items))
		for i, item := range items {
			itemRow, err := q.CreateOrderItem(ctx, repository.CreateOrderItemParams{
				OrderID:        row.ID,
				ProductID:      item.ProductID,
				ProductName:    item.ProductName,
				ProductImage:   item.ProductImage,
				Quantity:       int32(item.Quantity),
				UnitPriceCents: int64(item.Price),
				TotalCents:     int64(item.Total),
				Position:       int32(i),
			})
			if err != nil {
				return domain.WrapError(err, domain.EINTERNAL, op, "failed to create order item")
			}
			itemRows = append(itemRows, itemRow)
		}

		entry, err := q.CreateOrderStatusHistory(ctx, repository.CreateOrderStatusHistoryParams{
			OrderID: row.ID,
			Status:  string(domain.OrderStatusPending),
			Note:    "Order placed",
		})
		if err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to record status history")
		}

		created = toDomainOrder(row, itemRows, []repository.OrderStatusHistory{entry})
		return nil
	})
	if err != nil {
		return nil, internalError(err, op, "failed to create order")
	}

	s.logger.Info("order created",
		"order_id", created.ID,
		"order_number", created.OrderNumber,
		"payment_method", created.PaymentMethod,
		"total_cents", int64(created.TotalAmount),
	)
	if telemetry.Business != nil {
		method := string(created.PaymentMethod)
		units := 0
		for _, item := range created.Items {
			units += item.Quantity
		}
		telemetry.Business.OrdersCreated.WithLabelValues(method).Inc()
		telemetry.Business.OrderValue.WithLabelValues(method).Observe(float64(created.TotalAmount))
		telemetry.Business.OrderItemCount.WithLabelValues(method).Observe(float64(units))
	}
	s.notify.publish(ctx, events.OrderCreated, created)

	return created, nil
}

func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	const op = "order.get"

	row, err := s.store.GetOrder(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrOrderNotFound
		}
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load order")
	}
	return loadOrder(ctx, s.store, op, row)
}

func (s *orderService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	const op = "order.list"

	var verr error
	if filter.Status != "" && !filter.Status.Valid() {
		verr = domain.AddFieldError(verr, "status", fmt.Sprintf("Unknown status: %s", filter.Status))
	}
	if filter.PaymentStatus != "" && !filter.PaymentStatus.Valid() {
		verr = domain.AddFieldError(verr, "paymentStatus", fmt.Sprintf("Unknown payment status: %s", filter.PaymentStatus))
	}
	if verr != nil {
		return nil, verr
	}
	filter.Normalize()

	rows, err := s.store.ListOrders(ctx, repository.ListOrdersParams{
		Status:        optionalText(string(filter.Status)),
		PaymentStatus: optionalText(string(filter.PaymentStatus)),
		Email:         optionalText(strings.TrimSpace(filter.Email)),
		Limit:         int32(filter.Limit),
		Offset:        int32(filter.Offset),
	})
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to list orders")
	}
	return s.loadOrders(ctx, op, rows)
}

func (s *orderService) ListOrdersByCustomerEmail(ctx context.Context, email string) ([]*domain.Order, error) {
	const op = "order.list_by_email"

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, domain.NewValidationError(op, "email", "Email is required")
	}

	rows, err := s.store.ListOrdersByCustomerEmail(ctx, email)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to list orders")
	}
	return s.loadOrders(ctx, op, rows)
}

func (s *orderService) loadOrders(ctx context.Context, op string, rows []repository.Order) ([]*domain.Order, error) {
	orders := make([]*domain.Order, 0, len(rows))
	for _, row := range rows {
		order, err := loadOrder(ctx, s.store, op, row)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// checkManualPaymentStatus rejects payment status edits an admin may not
// make by hand. Card payments reach paid through the processor webhook and
// refunded through the refund endpoint; the only manual card edit is marking
// an unpaid order failed while cancelling it. Any refunded order must have
// been paid and ends up cancelled.
func checkManualPaymentStatus(method domain.PaymentMethod, from, to domain.PaymentStatus, status domain.OrderStatus) error {
	var msg string
	switch {
	case to == domain.PaymentStatusRefunded && method == domain.PaymentMethodCard:
		msg = "Card payments are refunded through the refund endpoint"
	case to == domain.PaymentStatusRefunded && from != domain.PaymentStatusPaid:
		msg = "Only paid orders can be refunded"
	case to == domain.PaymentStatusRefunded && status != domain.OrderStatusCancelled:
		msg = "A refunded order must also be cancelled"
	case method != domain.PaymentMethodCard:
		return nil
	case to == domain.PaymentStatusFailed && from == domain.PaymentStatusPending && status == domain.OrderStatusCancelled:
		return nil
	default:
		msg = "Card payment status is set by the payment processor"
	}
	return domain.NewValidationError("order.update_status", "paymentStatus", msg)
}

func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, params UpdateStatusParams) (*domain.Order, error) {
	const op = "order.update_status"

	var verr error
	if params.Status == "" && params.PaymentStatus == "" {
		verr = domain.AddFieldError(verr, "status", "Status or payment status is required")
	}
	if params.Status != "" && !params.Status.Valid() {
		verr = domain.AddFieldError(verr, "status", fmt.Sprintf("Unknown status: %s", params.Status))
	}
	if params.PaymentStatus != "" && !params.PaymentStatus.Valid() {
		verr = domain.AddFieldError(verr, "paymentStatus", fmt.Sprintf("Unknown payment status: %s", params.PaymentStatus))
	}
	if verr != nil {
		return nil, verr
	}

	actor := domain.AdminSubject(ctx)

	var (
		result       *domain.Order
		previous     domain.OrderStatus
		changed      bool
		cancelIntent string
	)
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		row, err := q.GetOrderForUpdate(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrOrderNotFound
			}
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to lock order")
		}

		previous = domain.OrderStatus(row.Status)
		prevPayment := domain.PaymentStatus(row.PaymentStatus)
		next, nextPayment := previous, prevPayment
		if params.Status != "" {
			next = params.Status
		}
		if params.PaymentStatus != "" {
			nextPayment = params.PaymentStatus
		}

		if next != previous && previous.Terminal() {
			return &domain.Error{
				Code:    domain.ECONFLICT,
				Op:      op,
				Message: fmt.Sprintf("Order is %s and its status can no longer be changed", previous),
				Err:     ErrOrderTerminal,
			}
		}
		if next == previous && nextPayment == prevPayment {
			result, err = loadOrder(ctx, q, op, row)
			return err
		}
		if nextPayment != prevPayment {
			if err := checkManualPaymentStatus(domain.PaymentMethod(row.PaymentMethod), prevPayment, nextPayment, next); err != nil {
				return err
			}
		}

		if next == domain.OrderStatusCancelled && previous != domain.OrderStatusCancelled {
			lines, err := orderStockLines(ctx, q, op, row.ID)
			if err != nil {
				return err
			}
			if err := restoreStock(ctx, q, s.logger, op, row.ID, lines); err != nil {
				return err
			}
			if row.PaymentMethod == string(domain.PaymentMethodCard) &&
				row.ExternalPaymentIntentID.Valid &&
				prevPayment != domain.PaymentStatusPaid && prevPayment != domain.PaymentStatusRefunded {
				cancelIntent = row.ExternalPaymentIntentID.String
			}
		}

		note := strings.TrimSpace(params.Note)
		if note == "" {
			if next != previous {
				note = fmt.Sprintf("Status changed from %s to %s by %s", previous, next, actor)
			} else {
				note = fmt.Sprintf("Payment status changed from %s to %s by %s", prevPayment, nextPayment, actor)
			}
		}

		updated, err := setStatus(ctx, q, op, row, next, nextPayment, note)
		if err != nil {
			return err
		}
		changed = true
		result, err = loadOrder(ctx, q, op, updated)
		return err
	})
	if err != nil {
		return nil, internalError(err, op, "failed to update order status")
	}
	if !changed {
		return result, nil
	}

	if result.Status == previous {
		s.logger.Info("order payment status updated",
			"order_id", result.ID,
			"payment_status", result.PaymentStatus,
			"by", actor,
		)
		s.notify.publish(ctx, events.OrderStatusChanged, result)
		return result, nil
	}

	s.logger.Info("order status updated",
		"order_id", result.ID,
		"from", previous,
		"to", result.Status,
		"by", actor,
	)
	if telemetry.Business != nil {
		telemetry.Business.OrderStatusSet.WithLabelValues(string(result.Status)).Inc()
	}

	if result.Status == domain.OrderStatusCancelled {
		if result.PaymentStatus == domain.PaymentStatusPaid {
			s.logger.Warn("paid order cancelled without refund", "order_id", result.ID)
		}
		if cancelIntent != "" {
			// The reservation is already released; an intent that cannot be
			// cancelled here is handled by the canceled webhook or a refund.
			if err := s.billing.CancelPaymentIntent(ctx, cancelIntent); err != nil {
				s.logger.Warn("failed to cancel payment intent",
					"order_id", result.ID,
					"payment_intent_id", cancelIntent,
					"error", err,
				)
			}
		}
		if telemetry.Business != nil {
			telemetry.Business.OrdersCancelled.WithLabelValues("admin").Inc()
		}
		s.notify.publish(ctx, events.OrderCancelled, result)
		return result, nil
	}

	s.notify.publish(ctx, events.OrderStatusChanged, result)
	return result, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	const op = "order.delete"

	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		row, err := q.GetOrderForUpdate(ctx, id)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrOrderNotFound
			}
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to lock order")
		}

		if domain.OrderStatus(row.Status).HoldsStock() {
			lines, err := orderStockLines(ctx, q, op, row.ID)
			if err != nil {
				return err
			}
			if err := restoreStock(ctx, q, s.logger, op, row.ID, lines); err != nil {
				return err
			}
		}

		n, err := q.DeleteOrder(ctx, row.ID)
		if err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to delete order")
		}
		if n == 0 {
			return ErrOrderNotFound
		}
		return nil
	})
	if err != nil {
		return internalError(err, op, "failed to delete order")
	}

	s.logger.Info("order deleted", "order_id", id, "by", domain.AdminSubject(ctx))
	return nil
}

func (s *orderService) CancelStalePendingOrders(ctx context.Context, maxAge time.Duration, limit int) (int, error) {
	const op = "order.cancel_stale"

	rows, err := s.store.ListStalePendingCardOrders(ctx, repository.ListStalePendingCardOrdersParams{
		CreatedBefore: pgtype.Timestamptz{Time: s.now().Add(-maxAge), Valid: true},
		Limit:         int32(limit),
	})
	if err != nil {
		return 0, domain.WrapError(err, domain.EINTERNAL, op, "failed to list stale orders")
	}

	cancelled := 0
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return cancelled, err
		}

		order, changed, err := cancelAwaitingPayment(ctx, s.store, s.logger, op, row, "Payment was never started; order expired")
		if err != nil {
			s.logger.Error("failed to cancel stale order", "order_id", row.ID, "error", err)
			continue
		}
		if !changed {
			continue
		}

		cancelled++
		s.logger.Info("stale order cancelled", "order_id", order.ID, "order_number", order.OrderNumber)
		if telemetry.Business != nil {
			telemetry.Business.OrdersCancelled.WithLabelValues("stale").Inc()
		}
		s.notify.publish(ctx, events.OrderCancelled, order)
	}
	return cancelled, nil
}

// mergeOrderLines collapses repeated products into one line, keeping the
// order in which each product first appeared.
func mergeOrderLines(items []OrderLine) []domain.StockLine {
	index := make(map[uuid.UUID]int, len(items))
	lines := make([]domain.StockLine, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			lines[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, domain.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func normalizeCustomer(c domain.CustomerInfo) domain.CustomerInfo {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	c.ShippingAddress.Country = strings.ToUpper(strings.TrimSpace(c.ShippingAddress.Country))
	return c
}

func validateCreateOrder(op string, params CreateOrderParams) error {
	var verr error

	c := params.CustomerInfo
	if strings.TrimSpace(c.Name) == "" {
		verr = domain.AddFieldError(verr, "customerInfo.name", "Name is required")
	}
	if strings.TrimSpace(c.Email) == "" {
		verr = domain.AddFieldError(verr, "customerInfo.email", "Email is required")
	} else if _, err := mail.ParseAddress(c.Email); err != nil {
		verr = domain.AddFieldError(verr, "customerInfo.email", "Email is invalid")
	}
	addr := c.ShippingAddress
	if strings.TrimSpace(addr.Line1) == "" {
		verr = domain.AddFieldError(verr, "customerInfo.shippingAddress.line1", "Address is required")
	}
	if strings.TrimSpace(addr.City) == "" {
		verr = domain.AddFieldError(verr, "customerInfo.shippingAddress.city", "City is required")
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		verr = domain.AddFieldError(verr, "customerInfo.shippingAddress.postalCode", "Postal code is required")
	}
	if strings.TrimSpace(addr.Country) == "" {
		verr = domain.AddFieldError(verr, "customerInfo.shippingAddress.country", "Country is required")
	}

	if len(params.Items) == 0 {
		verr = domain.AddFieldError(verr, "items", "At least one item is required")
	}
	for i, item := range params.Items {
		if item.ProductID == uuid.Nil {
			verr = domain.AddFieldError(verr, fmt.Sprintf("items[%d].productId", i), "Product is required")
		}
		if item.Quantity < 1 {
			verr = domain.AddFieldError(verr, fmt.Sprintf("items[%d].quantity", i), ErrInvalidQuantity.(*domain.Error).Message)
		}
		if item.Quantity > domain.MaxItemQuantity {
			verr = domain.AddFieldError(verr, fmt.Sprintf("items[%d].quantity", i), fmt.Sprintf("Quantity cannot exceed %d", domain.MaxItemQuantity))
		}
	}

	if !params.PaymentMethod.Valid() {
		verr = domain.AddFieldError(verr, "paymentMethod", fmt.Sprintf("Unsupported payment method: %s", params.PaymentMethod))
	}
	if params.ShippingCost < 0 {
		verr = domain.AddFieldError(verr, "shippingCost", "Shipping cost cannot be negative")
	}
	if params.ShippingCost > domain.MaxAmount {
		verr = domain.AddFieldError(verr, "shippingCost", fmt.Sprintf("Shipping cost cannot exceed %s", domain.MaxAmount))
	}
	if params.Tax < 0 {
		verr = domain.AddFieldError(verr, "tax", "Tax cannot be negative")
	}
	if params.Tax > domain.MaxAmount {
		verr = domain.AddFieldError(verr, "tax", fmt.Sprintf("Tax cannot exceed %s", domain.MaxAmount))
	}

	if ve, ok := verr.(*domain.ValidationError); ok {
		ve.Op = op
	}
	return verr
}

// checkOrderTotal rejects totals the order cannot be charged for: anything
// above MaxAmount, and card totals below the processor minimum.
func checkOrderTotal(op string, method domain.PaymentMethod, total domain.Cents) error {
	switch {
	case total > domain.MaxAmount:
		return domain.NewValidationError(op, "totalAmount", fmt.Sprintf("Order total cannot exceed %s", domain.MaxAmount))
	case method == domain.PaymentMethodCard && total < billing.MinimumChargeCents:
		return domain.NewValidationError(op, "totalAmount", fmt.Sprintf("Card payments must be at least %s", domain.Cents(billing.MinimumChargeCents)))
	}
	return nil
}
