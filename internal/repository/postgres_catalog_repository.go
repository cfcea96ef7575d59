package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jcalderon/inventory-import-service/internal/domain"
)

// PostgresCatalogRepository implements CatalogRepository using PostgreSQL.
// Fuzzy search goes through the search_products_hybrid function, which
// combines pg_trgm similarity with full-text search and returns rows
// ordered by relevance.
type PostgresCatalogRepository struct {
	db *pgxpool.Pool
}

// NewPostgresCatalogRepository creates a new PostgreSQL catalog repository
func NewPostgresCatalogRepository(db *pgxpool.Pool) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{
		db: db,
	}
}

// SearchProducts calls the hybrid fuzzy search function. Rows come back
// already ranked best-first; callers must not re-rank them.
func (r *PostgresCatalogRepository) SearchProducts(ctx context.Context, term string, limit int, similarityThreshold float64, activeOnly bool) ([]domain.ProductSearchHit, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, sku
		FROM search_products_hybrid($1, $2, $3, $4)
	`, strings.TrimSpace(term), limit, similarityThreshold, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	hits := []domain.ProductSearchHit{}
	for rows.Next() {
		var hit domain.ProductSearchHit
		if err := rows.Scan(&hit.ID, &hit.Name, &hit.SKU); err != nil {
			return nil, fmt.Errorf("failed to scan search hit: %w", err)
		}
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search hits: %w", err)
	}

	return hits, nil
}

// ListCategories returns all categories ordered by name
func (r *PostgresCatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, COALESCE(description, ''), created_at
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// CreateCategory inserts a new category
func (r *PostgresCatalogRepository) CreateCategory(ctx context.Context, name, description string) (*domain.Category, error) {
	category := &domain.Category{Name: name, Description: description}

	err := r.db.QueryRow(ctx, `
		INSERT INTO categories (name, description)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, name, description).Scan(&category.ID, &category.CreatedAt)
	if err != nil {
		return nil, mapConstraintError(err, "failed to insert category")
	}

	return category, nil
}

// CreateProduct inserts a new product
func (r *PostgresCatalogRepository) CreateProduct(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	var categoryID interface{}
	if product.CategoryID != "" {
		categoryID = product.CategoryID
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO products (sku, name, description, category_id, unit_price, cost_price, min_stock_level, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
		RETURNING id, created_at
	`, product.SKU, product.Name, product.Description, categoryID,
		product.UnitPrice, product.CostPrice, product.MinStockLevel,
	).Scan(&product.ID, &product.CreatedAt)
	if err != nil {
		return nil, mapConstraintError(err, "failed to insert product")
	}

	product.IsActive = true
	return product, nil
}

// mapConstraintError converts PostgreSQL constraint violations into the
// repository sentinel errors.
func mapConstraintError(err error, msg string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", msg, ErrDuplicate)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", msg, ErrInvalidReference)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}
