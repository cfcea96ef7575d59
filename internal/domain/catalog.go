package domain

import "time"

// Category is an existing product category in the catalog.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Product is an existing product in the catalog. Only the fields the
// import pipeline reads and writes are modeled here.
type Product struct {
	ID            string    `json:"id"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	CategoryID    string    `json:"category_id,omitempty"`
	UnitPrice     float64   `json:"unit_price"`
	CostPrice     float64   `json:"cost_price"`
	MinStockLevel int       `json:"min_stock_level"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// ProductSearchHit is one row returned by the catalog fuzzy search,
// already ranked by relevance (best first).
type ProductSearchHit struct {
	ID   string
	Name string
	SKU  string
}

// AutocompleteSuggestion is one AI-generated completion for a partial
// product name.
type AutocompleteSuggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}
