package domain

// ExtractedProduct is a single product line read from an invoice image.
// Instances are built during normalization and never mutated afterwards.
type ExtractedProduct struct {
	Quantity          int     `json:"quantity"`
	Description       string  `json:"description"`
	UnitPrice         float64 `json:"unit_price"`
	TotalPrice        float64 `json:"total_price"`
	SuggestedCategory string  `json:"suggested_category,omitempty"`
}

// ExtractedInvoice holds invoice-level metadata for one image in a batch.
// All fields except ImageIndex are optional and may be empty when the
// invoice does not show them.
type ExtractedInvoice struct {
	SupplierName  string `json:"supplier_name,omitempty"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
	InvoiceDate   string `json:"invoice_date,omitempty"`
	ImageIndex    int    `json:"image_index"`
}

// ExtractionResult pairs one invoice with its extracted products.
//
// A failed or rejected image still yields a result: confidence 0.0,
// no products, and the error text in RawText. Callers can rely on one
// result per input image.
type ExtractionResult struct {
	Invoice              ExtractedInvoice   `json:"invoice"`
	Products             []ExtractedProduct `json:"products"`
	ExtractionConfidence float64            `json:"extraction_confidence"`
	RawText              string             `json:"raw_text,omitempty"`
}

// FailedExtraction builds the sentinel result for an image whose
// extraction could not be completed.
func FailedExtraction(imageIndex int, reason string) ExtractionResult {
	return ExtractionResult{
		Invoice:              ExtractedInvoice{ImageIndex: imageIndex},
		Products:             []ExtractedProduct{},
		ExtractionConfidence: 0,
		RawText:              reason,
	}
}
