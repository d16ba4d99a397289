package repository

import (
	"context"

	"github.com/google/uuid"
)

const productColumns = `id, name, image_url, price_cents, stock, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.ImageUrl,
		&p.PriceCents,
		&p.Stock,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

const createProduct = `-- name: CreateProduct :one
INSERT INTO products (name, image_url, price_cents, stock)
VALUES ($1, $2, $3, $4)
RETURNING ` + productColumns

type CreateProductParams struct {
	Name       string
	ImageUrl   string
	PriceCents int64
	Stock      int32
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct, arg.Name, arg.ImageUrl, arg.PriceCents, arg.Stock)
	return scanProduct(row)
}

const getProduct = `-- name: GetProduct :one
SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProduct, id))
}

const getProductForUpdate = `-- name: GetProductForUpdate :one
SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

// GetProductForUpdate locks the product row until the surrounding
// transaction ends. Callers lock products in id order to avoid deadlocks.
func (q *Queries) GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductForUpdate, id))
}

const decrementProductStock = `-- name: DecrementProductStock :execrows
UPDATE products
SET stock = stock - $2, updated_at = now()
WHERE id = $1 AND stock >= $2`

type DecrementProductStockParams struct {
	ID       uuid.UUID
	Quantity int32
}

// DecrementProductStock returns 0 rows when the product is missing or
// holds fewer than Quantity units; stock never goes negative.
func (q *Queries) DecrementProductStock(ctx context.Context, arg DecrementProductStockParams) (int64, error) {
	tag, err := q.db.Exec(ctx, decrementProductStock, arg.ID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const incrementProductStock = `-- name: IncrementProductStock :execrows
UPDATE products
SET stock = stock + $2, updated_at = now()
WHERE id = $1`

type IncrementProductStockParams struct {
	ID       uuid.UUID
	Quantity int32
}

func (q *Queries) IncrementProductStock(ctx context.Context, arg IncrementProductStockParams) (int64, error) {
	tag, err := q.db.Exec(ctx, incrementProductStock, arg.ID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const adjustProductStock = `-- name: AdjustProductStock :one
UPDATE products
SET stock = stock + $2, updated_at = now()
WHERE id = $1 AND stock + $2 >= 0
RETURNING ` + productColumns

type AdjustProductStockParams struct {
	ID    uuid.UUID
	Delta int32
}

func (q *Queries) AdjustProductStock(ctx context.Context, arg AdjustProductStockParams) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, adjustProductStock, arg.ID, arg.Delta))
}
