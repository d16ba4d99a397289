package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/dukerupert/storefront/internal/domain"
	"github.com/dukerupert/storefront/internal/repository"
)

// ProductService exposes the product reads and stock corrections the order
// flow depends on. Catalogue management lives elsewhere.
type ProductService interface {
	// CreateProduct adds a product with an opening stock level.
	CreateProduct(ctx context.Context, params CreateProductParams) (*domain.Product, error)

	// GetProduct returns a product with its current stock.
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)

	// AdjustStock applies a manual stock correction (restock, shrinkage).
	// The result can never be negative.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error)
}

// MaxStockDelta bounds a single manual stock correction.
const MaxStockDelta = 1_000_000

// CreateProductParams holds the fields for a new product.
type CreateProductParams struct {
	Name     string
	ImageURL string
	Price    domain.Cents
	Stock    int
}

type productService struct {
	store  repository.Store
	logger *slog.Logger
}

// NewProductService creates a ProductService.
func NewProductService(store repository.Store, logger *slog.Logger) ProductService {
	return &productService{store: store, logger: logger}
}

func (s *productService) CreateProduct(ctx context.Context, params CreateProductParams) (*domain.Product, error) {
	const op = "product.create"

	var verr error
	if strings.TrimSpace(params.Name) == "" {
		verr = domain.AddFieldError(verr, "name", "Name is required")
	}
	if params.Price < 0 {
		verr = domain.AddFieldError(verr, "price", "Price cannot be negative")
	}
	if params.Price > domain.MaxAmount {
		verr = domain.AddFieldError(verr, "price", fmt.Sprintf("Price cannot exceed %s", domain.MaxAmount))
	}
	if params.Stock < 0 {
		verr = domain.AddFieldError(verr, "stock", "Stock cannot be negative")
	}
	if params.Stock > math.MaxInt32 {
		verr = domain.AddFieldError(verr, "stock", fmt.Sprintf("Stock cannot exceed %d", math.MaxInt32))
	}
	if verr != nil {
		return nil, verr
	}

	p, err := s.store.CreateProduct(ctx, repository.CreateProductParams{
		Name:       strings.TrimSpace(params.Name),
		ImageUrl:   params.ImageURL,
		PriceCents: int64(params.Price),
		Stock:      int32(params.Stock),
	})
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to create product")
	}

	s.logger.Info("product created", "product_id", p.ID, "stock", p.Stock)
	return toDomainProduct(p), nil
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	const op = "product.get"

	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrProductNotFound
		}
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to load product")
	}
	return toDomainProduct(p), nil
}

func (s *productService) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*domain.Product, error) {
	const op = "product.adjust_stock"

	if delta == 0 {
		return s.GetProduct(ctx, id)
	}
	if delta > MaxStockDelta || delta < -MaxStockDelta {
		return nil, domain.NewValidationError(op, "delta", fmt.Sprintf("Delta must be between %d and %d", -MaxStockDelta, MaxStockDelta))
	}

	p, err := s.store.AdjustProductStock(ctx, repository.AdjustProductStockParams{ID: id, Delta: int32(delta)})
	if err == nil {
		s.logger.Info("stock adjusted",
			"product_id", id,
			"delta", delta,
			"stock", p.Stock,
			"by", domain.AdminSubject(ctx),
		)
		return toDomainProduct(p), nil
	}
	if repository.IsCheckViolation(err) {
		return nil, ErrStockWouldGoBelow
	}
	if !repository.IsNotFound(err) {
		return nil, domain.WrapError(err, domain.EINTERNAL, op, "failed to adjust stock")
	}

	// No row: either the product is missing or the result would be negative.
	if _, err := s.GetProduct(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrStockWouldGoBelow
}
