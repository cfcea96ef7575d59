package repository

import (
	"context"
	"errors"

	"github.com/jcalderon/inventory-import-service/internal/domain"
)

// Sentinel errors for constraint violations, so callers can map them to
// sanitized user-facing messages without parsing driver error text.
var (
	// ErrDuplicate indicates a unique constraint violation (name or SKU).
	ErrDuplicate = errors.New("duplicate record")

	// ErrInvalidReference indicates a foreign key violation (category id).
	ErrInvalidReference = errors.New("invalid reference")
)

// CatalogRepository defines the catalog operations the import pipeline needs
type CatalogRepository interface {
	// SearchProducts runs the catalog's fuzzy search and returns rows
	// ranked by relevance, best first
	SearchProducts(ctx context.Context, term string, limit int, similarityThreshold float64, activeOnly bool) ([]domain.ProductSearchHit, error)

	// ListCategories returns all categories ordered by name
	ListCategories(ctx context.Context) ([]domain.Category, error)

	// CreateCategory inserts a new category
	CreateCategory(ctx context.Context, name, description string) (*domain.Category, error)

	// CreateProduct inserts a new product
	CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error)
}
