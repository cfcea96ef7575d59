package domain

// MatchConfidence is the coarse confidence tier assigned to a catalog match.
type MatchConfidence string

const (
	ConfidenceHigh   MatchConfidence = "high"
	ConfidenceMedium MatchConfidence = "medium"
	ConfidenceLow    MatchConfidence = "low"
	ConfidenceNone   MatchConfidence = "none"
)

// rank orders the tiers so thresholds can compare them. Higher is better.
func (c MatchConfidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether c is the same tier as other or a better one.
func (c MatchConfidence) AtLeast(other MatchConfidence) bool {
	return c.rank() >= other.rank()
}

// ProductMatch is one candidate catalog product for an extracted description.
type ProductMatch struct {
	ExistingProductID   string          `json:"existing_product_id"`
	ExistingProductName string          `json:"existing_product_name"`
	ExistingProductSKU  string          `json:"existing_product_sku"`
	SimilarityScore     float64         `json:"similarity_score"`
	Confidence          MatchConfidence `json:"confidence"`
}

// MatchedProduct wraps an extracted product with its ranked catalog matches.
type MatchedProduct struct {
	Extracted     ExtractedProduct `json:"extracted"`
	Matches       []ProductMatch   `json:"matches"`
	IsNewProduct  bool             `json:"is_new_product"`
	SuggestedName string           `json:"suggested_name,omitempty"`
}

// DetectedCategory aggregates one suggested category name across a batch.
// Aggregation is case-insensitive; Name keeps the first spelling seen.
type DetectedCategory struct {
	Name               string `json:"name"`
	ExistsInCatalog    bool   `json:"exists_in_catalog"`
	ExistingCategoryID string `json:"existing_category_id,omitempty"`
	ProductCount       int    `json:"product_count"`
}
