package model

import "github.com/jcalderon/inventory-import-service/internal/domain"

// ImageExtractionRequest asks for extraction from a single base64 image.
type ImageExtractionRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
	ImageType   string `json:"image_type"`
}

// BatchExtractionResponse is the payload for multi-image extraction.
type BatchExtractionResponse struct {
	Extractions          []domain.ExtractionResult `json:"extractions"`
	MatchedProducts      []domain.MatchedProduct   `json:"matched_products"`
	DetectedCategories   []domain.DetectedCategory `json:"detected_categories"`
	TotalProducts        int                       `json:"total_products"`
	TotalImagesProcessed int                       `json:"total_images_processed"`
	ProcessingTimeMs     int64                     `json:"processing_time_ms"`
}

// AutocompleteRequest asks for AI completions of a partial product name.
type AutocompleteRequest struct {
	PartialText string `json:"partial_text" binding:"required,min=2,max=100"`
	Context     string `json:"context,omitempty" binding:"max=500"`
}

// AutocompleteResponse carries up to five suggestions.
type AutocompleteResponse struct {
	Suggestions []domain.AutocompleteSuggestion `json:"suggestions"`
}

// MatchProductRequest asks for catalog matches of one description.
type MatchProductRequest struct {
	Description       string `json:"description" binding:"required"`
	SuggestedCategory string `json:"suggested_category,omitempty"`
}

// MatchProductResponse is the single-description match result.
type MatchProductResponse struct {
	Matched          domain.MatchedProduct `json:"matched"`
	ProcessingTimeMs int64                 `json:"processing_time_ms"`
}

// BulkCreateItem is one product to create from corrected extraction output.
type BulkCreateItem struct {
	Name          string  `json:"name" binding:"required"`
	Description   string  `json:"description,omitempty"`
	CategoryID    string  `json:"category_id,omitempty"`
	CategoryName  string  `json:"category_name,omitempty"`
	UnitPrice     float64 `json:"unit_price"`
	CostPrice     float64 `json:"cost_price"`
	MinStockLevel int     `json:"min_stock_level"`
}

// BulkCreateRequest creates several products at once.
type BulkCreateRequest struct {
	Products                []BulkCreateItem `json:"products" binding:"required,min=1"`
	CreateMissingCategories bool             `json:"create_missing_categories"`
}

// BulkCreateResultItem reports the outcome for one requested product.
type BulkCreateResultItem struct {
	Index      int    `json:"index"`
	Success    bool   `json:"success"`
	ProductID  string `json:"product_id,omitempty"`
	ProductSKU string `json:"product_sku,omitempty"`
	Error      string `json:"error,omitempty"`
}

// BulkCreateResponse summarizes a bulk creation run.
type BulkCreateResponse struct {
	TotalRequested    int                    `json:"total_requested"`
	TotalCreated      int                    `json:"total_created"`
	TotalFailed       int                    `json:"total_failed"`
	Results           []BulkCreateResultItem `json:"results"`
	CategoriesCreated int                    `json:"categories_created"`
	ProcessingTimeMs  int64                  `json:"processing_time_ms"`
}

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

// ErrorDetail describes a single field-level validation problem.
type ErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Success bool          `json:"success"`
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}
