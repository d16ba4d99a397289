package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/repository"
	"github.com/dukerupert/storefront/internal/telemetry"
)

// The stock ledger. Every function here runs on a transactional Querier;
// callers own the transaction so the stock change commits together with
// the order status change that caused it.

// lockProducts loads and row-locks every product in lines. Locks are taken
// in product id order so concurrent orders over the same products cannot
// deadlock.
func lockProducts(ctx context.Context, q repository.Querier, op string, lines []domain.StockLine) (map[uuid.UUID]repository.Product, error) {
	ordered := slices.Clone(lines)
	slices.SortFunc(ordered, func(a, b domain.StockLine) int {
		return bytes.Compare(a.ProductID[:], b.ProductID[:])
	})

	products := make(map[uuid.UUID]repository.Product, len(ordered))
	for _, line := range ordered {
		p, err := q.GetProductForUpdate(ctx, line.ProductID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil, &domain.Error{
					Code:    domain.ENOTFOUND,
					Op:      op,
					Message: fmt.Sprintf("Product not found: %s", line.ProductID),
					Err:     ErrProductNotFound,
				}
			}
			return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load product")
		}
		products[line.ProductID] = p
	}
	return products, nil
}

// checkStock returns an insufficient stock error for the first line the
// locked products cannot cover.
func checkStock(op string, products map[uuid.UUID]repository.Product, lines []domain.StockLine) error {
	for _, line := range lines {
		p := products[line.ProductID]
		if int(p.Stock) < line.Quantity {
			return insufficientStock(op, p.Name, line.Quantity, int(p.Stock))
		}
	}
	return nil
}

func insufficientStock(op, productName string, requested, available int) error {
	return &domain.Error{
		Code:    domain.EINVALID,
		Op:      op,
		Message: fmt.Sprintf("Insufficient stock for %s: requested %d, available %d", productName, requested, available),
		Err:     ErrInsufficientStock,
	}
}

// reserveStock deducts every line from stock, or nothing at all. All
// products are locked and checked before the first decrement.
func reserveStock(ctx context.Context, q repository.Querier, op string, lines []domain.StockLine) (map[uuid.UUID]repository.Product, error) {
	products, err := lockProducts(ctx, q, op, lines)
	if err != nil {
		return nil, err
	}
	if err := checkStock(op, products, lines); err != nil {
		recordReservation("insufficient")
		return nil, err
	}

	for _, line := range lines {
		n, err := q.DecrementProductStock(ctx, repository.DecrementProductStockParams{
			ID:       line.ProductID,
			Quantity: int32(line.Quantity),
		})
		if err != nil {
			return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to decrement stock")
		}
		if n == 0 {
			// Unreachable while the row lock is held.
			p := products[line.ProductID]
			return nil, insufficientStock(op, p.Name, line.Quantity, int(p.Stock))
		}
	}

	recordReservation("reserved")
	return products, nil
}

// restoreStock adds every line back to stock. Products that no longer
// exist are skipped with a warning.
func restoreStock(ctx context.Context, q repository.Querier, logger *slog.Logger, op string, orderID uuid.UUID, lines []domain.StockLine) error {
	for _, line := range lines {
		n, err := q.IncrementProductStock(ctx, repository.IncrementProductStockParams{
			ID:       line.ProductID,
			Quantity: int32(line.Quantity),
		})
		if err != nil {
			return domain.WrapError(err, domain.EINTERNAL, op, "failed to restore stock")
		}
		if n == 0 {
			logger.Warn("stock not restored, product missing",
				"order_id", orderID,
				"product_id", line.ProductID,
				"quantity", line.Quantity,
			)
		}
	}

	if telemetry.Business != nil {
		telemetry.Business.StockRestored.Inc()
	}
	return nil
}

// orderStockLines loads an order's items and merges them per product.
func orderStockLines(ctx context.Context, q repository.Querier, op string, orderID uuid.UUID) ([]domain.StockLine, error) {
	rows, err := q.ListOrderItems(ctx, orderID)
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load order items")
	}
	return domain.StockLines(toDomainItems(rows)), nil
}

func recordReservation(result string) {
	if telemetry.Business != nil {
		telemetry.Business.StockReservations.WithLabelValues(result).Inc()
	}
}
