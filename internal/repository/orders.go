package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, customer_name, customer_email, customer_phone,
	shipping_line1, shipping_line2, shipping_city, shipping_state, shipping_postal_code, shipping_country,
	subtotal_cents, shipping_cents, tax_cents, total_cents, currency,
	status, payment_method, payment_status,
	external_payment_intent_id, external_customer_id, external_charge_id,
	customer_notes, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.CustomerPhone,
		&o.ShippingLine1,
		&o.ShippingLine2,
		&o.ShippingCity,
		&o.ShippingState,
		&o.ShippingPostalCode,
		&o.ShippingCountry,
		&o.SubtotalCents,
		&o.ShippingCents,
		&o.TaxCents,
		&o.TotalCents,
		&o.Currency,
		&o.Status,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.ExternalPaymentIntentID,
		&o.ExternalCustomerID,
		&o.ExternalChargeID,
		&o.CustomerNotes,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	return o, err
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const nextOrderSequence = `-- name: NextOrderSequence :one
SELECT nextval('order_number_seq')`

func (q *Queries) NextOrderSequence(ctx context.Context) (int64, error) {
	var seq int64
	err := q.db.QueryRow(ctx, nextOrderSequence).Scan(&seq)
	return seq, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
	order_number, customer_name, customer_email, customer_phone,
	shipping_line1, shipping_line2, shipping_city, shipping_state, shipping_postal_code, shipping_country,
	subtotal_cents, shipping_cents, tax_cents, total_cents, currency,
	status, payment_method, payment_status, customer_notes, created_at, updated_at
) VALUES (
	$1, $2, $3, $4,
	$5, $6, $7, $8, $9, $10,
	$11, $12, $13, $14, $15,
	$16, $17, $18, $19, $20, $20
)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber        string
	CustomerName       string
	CustomerEmail      string
	CustomerPhone      string
	ShippingLine1      string
	ShippingLine2      string
	ShippingCity       string
	ShippingState      string
	ShippingPostalCode string
	ShippingCountry    string
	SubtotalCents      int64
	ShippingCents      int64
	TaxCents           int64
	TotalCents         int64
	Currency           string
	Status             string
	PaymentMethod      string
	PaymentStatus      string
	CustomerNotes      string
	CreatedAt          pgtype.Timestamptz
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.CustomerName,
		arg.CustomerEmail,
		arg.CustomerPhone,
		arg.ShippingLine1,
		arg.ShippingLine2,
		arg.ShippingCity,
		arg.ShippingState,
		arg.ShippingPostalCode,
		arg.ShippingCountry,
		arg.SubtotalCents,
		arg.ShippingCents,
		arg.TaxCents,
		arg.TotalCents,
		arg.Currency,
		arg.Status,
		arg.PaymentMethod,
		arg.PaymentStatus,
		arg.CustomerNotes,
		arg.CreatedAt,
	)
	return scanOrder(row)
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (
	order_id, product_id, product_name, product_image, quantity, unit_price_cents, total_cents, position
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, order_id, product_id, product_name, product_image, quantity, unit_price_cents, total_cents, position`

type CreateOrderItemParams struct {
	OrderID        uuid.UUID
	ProductID      uuid.UUID
	ProductName    string
	ProductImage   string
	Quantity       int32
	UnitPriceCents int64
	TotalCents     int64
	Position       int32
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.ProductName,
		arg.ProductImage,
		arg.Quantity,
		arg.UnitPriceCents,
		arg.TotalCents,
		arg.Position,
	)
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.ProductName,
		&i.ProductImage,
		&i.Quantity,
		&i.UnitPriceCents,
		&i.TotalCents,
		&i.Position,
	)
	return i, err
}

const createOrderStatusHistory = `-- name: CreateOrderStatusHistory :one
INSERT INTO order_status_history (order_id, status, note)
VALUES ($1, $2, $3)
RETURNING id, order_id, status, note, created_at`

type CreateOrderStatusHistoryParams struct {
	OrderID uuid.UUID
	Status  string
	Note    string
}

func (q *Queries) CreateOrderStatusHistory(ctx context.Context, arg CreateOrderStatusHistoryParams) (OrderStatusHistory, error) {
	row := q.db.QueryRow(ctx, createOrderStatusHistory, arg.OrderID, arg.Status, arg.Note)
	var h OrderStatusHistory
	err := row.Scan(&h.ID, &h.OrderID, &h.Status, &h.Note, &h.CreatedAt)
	return h, err
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const getOrderByPaymentIntentID = `-- name: GetOrderByPaymentIntentID :one
SELECT ` + orderColumns + ` FROM orders WHERE external_payment_intent_id = $1`

func (q *Queries) GetOrderByPaymentIntentID(ctx context.Context, paymentIntentID string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByPaymentIntentID, paymentIntentID))
}

const getOrderByPaymentIntentIDForUpdate = `-- name: GetOrderByPaymentIntentIDForUpdate :one
SELECT ` + orderColumns + ` FROM orders WHERE external_payment_intent_id = $1 FOR UPDATE`

// GetOrderByPaymentIntentIDForUpdate serializes concurrent webhook
// deliveries for the same intent on the order row lock.
func (q *Queries) GetOrderByPaymentIntentIDForUpdate(ctx context.Context, paymentIntentID string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByPaymentIntentIDForUpdate, paymentIntentID))
}

const listOrderItems = `-- name: ListOrderItems :many
SELECT id, order_id, product_id, product_name, product_image, quantity, unit_price_cents, total_cents, position
FROM order_items
WHERE order_id = $1
ORDER BY position`

func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(
			&i.ID,
			&i.OrderID,
			&i.ProductID,
			&i.ProductName,
			&i.ProductImage,
			&i.Quantity,
			&i.UnitPriceCents,
			&i.TotalCents,
			&i.Position,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const listOrderStatusHistory = `-- name: ListOrderStatusHistory :many
SELECT id, order_id, status, note, created_at
FROM order_status_history
WHERE order_id = $1
ORDER BY id`

func (q *Queries) ListOrderStatusHistory(ctx context.Context, orderID uuid.UUID) ([]OrderStatusHistory, error) {
	rows, err := q.db.Query(ctx, listOrderStatusHistory, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderStatusHistory
	for rows.Next() {
		var h OrderStatusHistory
		if err := rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.Note, &h.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, h)
	}
	return items, rows.Err()
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR payment_status = $2)
  AND ($3::text IS NULL OR lower(customer_email) = lower($3))
ORDER BY created_at DESC, id
LIMIT $4 OFFSET $5`

type ListOrdersParams struct {
	Status        pgtype.Text
	PaymentStatus pgtype.Text
	Email         pgtype.Text
	Limit         int32
	Offset        int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.Status,
		arg.PaymentStatus,
		arg.Email,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

const listOrdersByCustomerEmail = `-- name: ListOrdersByCustomerEmail :many
SELECT ` + orderColumns + ` FROM orders
WHERE lower(customer_email) = lower($1)
ORDER BY created_at DESC, id`

func (q *Queries) ListOrdersByCustomerEmail(ctx context.Context, email string) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByCustomerEmail, email)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

const listStalePendingCardOrders = `-- name: ListStalePendingCardOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE payment_method = 'card'
  AND status = 'pending'
  AND payment_status = 'pending'
  AND external_payment_intent_id IS NULL
  AND created_at < $1
ORDER BY created_at
LIMIT $2`

type ListStalePendingCardOrdersParams struct {
	CreatedBefore pgtype.Timestamptz
	Limit         int32
}

func (q *Queries) ListStalePendingCardOrders(ctx context.Context, arg ListStalePendingCardOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listStalePendingCardOrders, arg.CreatedBefore, arg.Limit)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2, payment_status = $3, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID            uuid.UUID
	Status        string
	PaymentStatus string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.PaymentStatus))
}

const setOrderPaymentIntent = `-- name: SetOrderPaymentIntent :execrows
UPDATE orders
SET external_payment_intent_id = $2, updated_at = now()
WHERE id = $1 AND external_payment_intent_id IS NULL`

type SetOrderPaymentIntentParams struct {
	ID                      uuid.UUID
	ExternalPaymentIntentID string
}

// SetOrderPaymentIntent only writes when no intent is stored yet, so a
// retried request can never overwrite the reconciliation key.
func (q *Queries) SetOrderPaymentIntent(ctx context.Context, arg SetOrderPaymentIntentParams) (int64, error) {
	tag, err := q.db.Exec(ctx, setOrderPaymentIntent, arg.ID, arg.ExternalPaymentIntentID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const updateOrderPaymentDetails = `-- name: UpdateOrderPaymentDetails :exec
UPDATE orders
SET external_charge_id = COALESCE($2, external_charge_id),
    external_customer_id = COALESCE($3, external_customer_id),
    updated_at = now()
WHERE id = $1`

type UpdateOrderPaymentDetailsParams struct {
	ID                 uuid.UUID
	ExternalChargeID   pgtype.Text
	ExternalCustomerID pgtype.Text
}

func (q *Queries) UpdateOrderPaymentDetails(ctx context.Context, arg UpdateOrderPaymentDetailsParams) error {
	_, err := q.db.Exec(ctx, updateOrderPaymentDetails, arg.ID, arg.ExternalChargeID, arg.ExternalCustomerID)
	return err
}

const deleteOrder = `-- name: DeleteOrder :execrows
DELETE FROM orders WHERE id = $1`

func (q *Queries) DeleteOrder(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteOrder, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
