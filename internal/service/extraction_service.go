package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jcalderon/inventory-import-service/internal/domain"
	"github.com/jcalderon/inventory-import-service/internal/gemini"
	"github.com/jcalderon/inventory-import-service/internal/imageutil"
	"github.com/jcalderon/inventory-import-service/internal/prompt"
)

// Batch limits. Requests violating these are rejected before any model
// call is made.
const (
	DefaultMaxImagesPerBatch = 20
	DefaultMaxImageSizeMB    = 10
)

// allowedImageTypes is the MIME allow-list for uploaded invoice images.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// AllowedImageType reports whether the MIME type is accepted for upload.
func AllowedImageType(mimeType string) bool {
	return allowedImageTypes[strings.ToLower(strings.TrimSpace(mimeType))]
}

// Oracle is the generative model contract the extraction service consumes.
type Oracle interface {
	GenerateVision(ctx context.Context, prompt string, image []byte, mimeType string, cfg gemini.GenerateConfig) (string, error)
	GenerateText(ctx context.Context, prompt string, cfg gemini.GenerateConfig) (string, error)
	IsConfigured() bool
}

// ImageArchiver stores raw invoice images for audit. Archival is
// best-effort and never blocks extraction.
type ImageArchiver interface {
	ArchiveImage(ctx context.Context, image []byte, mimeType string) (string, error)
}

// ImageInput is one image in an extraction batch.
type ImageInput struct {
	Data     []byte
	MimeType string
}

// ExtractionService drives AI extraction of products from invoice images.
type ExtractionService struct {
	oracle            Oracle
	prompts           *prompt.Renderer
	archiver          ImageArchiver
	maxImagesPerBatch int
	maxImageBytes     int64
}

// ExtractionConfig configures the extraction service limits.
type ExtractionConfig struct {
	MaxImagesPerBatch int
	MaxImageSizeMB    int
}

// NewExtractionService creates a new extraction service
func NewExtractionService(oracle Oracle, prompts *prompt.Renderer, cfg ExtractionConfig) *ExtractionService {
	maxImages := cfg.MaxImagesPerBatch
	if maxImages <= 0 {
		maxImages = DefaultMaxImagesPerBatch
	}
	maxMB := cfg.MaxImageSizeMB
	if maxMB <= 0 {
		maxMB = DefaultMaxImageSizeMB
	}

	return &ExtractionService{
		oracle:            oracle,
		prompts:           prompts,
		maxImagesPerBatch: maxImages,
		maxImageBytes:     int64(maxMB) * 1024 * 1024,
	}
}

// SetArchiver sets the optional image archiver
func (s *ExtractionService) SetArchiver(archiver ImageArchiver) {
	s.archiver = archiver
}

// MaxImagesPerBatch returns the configured batch size limit.
func (s *ExtractionService) MaxImagesPerBatch() int {
	return s.maxImagesPerBatch
}

// MaxImageBytes returns the configured per-image size limit in bytes.
func (s *ExtractionService) MaxImageBytes() int64 {
	return s.maxImageBytes
}

// ValidateBatch checks batch-level constraints: image count, per-image
// size and MIME type. A violation rejects the whole batch.
func (s *ExtractionService) ValidateBatch(images []ImageInput) error {
	if len(images) == 0 {
		return fmt.Errorf("no images provided")
	}
	if len(images) > s.maxImagesPerBatch {
		return fmt.Errorf("too many images: %d (maximum %d)", len(images), s.maxImagesPerBatch)
	}
	for i, img := range images {
		if !AllowedImageType(img.MimeType) {
			return fmt.Errorf("image %d: unsupported type %q", i+1, img.MimeType)
		}
		if int64(len(img.Data)) > s.maxImageBytes {
			return fmt.Errorf("image %d: too large (%.1fMB, maximum %dMB)",
				i+1, float64(len(img.Data))/1024/1024, s.maxImageBytes/1024/1024)
		}
	}
	return nil
}

// ExtractFromImage extracts products from a single invoice image.
// Category names from the catalog are injected into the prompt so the
// model suggests categories the store already uses.
func (s *ExtractionService) ExtractFromImage(ctx context.Context, image []byte, mimeType string, imageIndex int, categories []domain.Category) (domain.ExtractionResult, error) {
	extractionPrompt, err := s.prompts.ExtractionPrompt(categories)
	if err != nil {
		return domain.ExtractionResult{}, classifyError("render_prompt", err)
	}

	if s.archiver != nil {
		if _, err := s.archiver.ArchiveImage(ctx, image, mimeType); err != nil {
			// Archival never blocks extraction
			log.Printf("Failed to archive image %d: %v", imageIndex, err)
		}
	}

	// Downscale oversized images before sending them to the model.
	// A decode failure keeps the original bytes; the model may still
	// handle them.
	if resized, err := imageutil.ResizeImage(image, nil); err == nil {
		image = resized
	}

	reply, err := s.oracle.GenerateVision(ctx, extractionPrompt, image, mimeType, gemini.ExtractionConfig())
	if err != nil {
		return domain.ExtractionResult{}, classifyError("generate_vision", err)
	}

	parsed, err := gemini.ExtractJSON(reply)
	if err != nil {
		log.Printf("Failed to parse model response for image %d (length %d): %v", imageIndex, len(reply), err)
		return domain.ExtractionResult{}, classifyError("parse_response", err)
	}

	result, err := normalizeExtraction(parsed, imageIndex)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	log.Printf("Extraction complete for image %d: %d products, confidence %.2f",
		imageIndex, len(result.Products), result.ExtractionConfidence)
	return result, nil
}

// ExtractBatch extracts products from a batch of invoice images.
//
// Images are processed sequentially and independently: a failure on one
// image degrades that image's result to the zero-confidence sentinel and
// never aborts the batch. The returned slice always has one result per
// input image, in input order.
func (s *ExtractionService) ExtractBatch(ctx context.Context, images []ImageInput, categories []domain.Category) ([]domain.ExtractionResult, int64, error) {
	if err := s.ValidateBatch(images); err != nil {
		return nil, 0, err
	}

	start := time.Now()
	results := make([]domain.ExtractionResult, 0, len(images))

	for idx, img := range images {
		result, err := s.ExtractFromImage(ctx, img.Data, img.MimeType, idx, categories)
		if err != nil {
			log.Printf("Batch extraction error for image %d: %v", idx, err)
			result = domain.FailedExtraction(idx, fmt.Sprintf("Error: %v", err))
		}
		results = append(results, result)
	}

	elapsed := time.Since(start).Milliseconds()

	totalProducts := 0
	for _, r := range results {
		totalProducts += len(r.Products)
	}
	log.Printf("Batch extraction complete: %d images, %d products, %dms", len(images), totalProducts, elapsed)

	return results, elapsed, nil
}

// Autocomplete generates up to maxSuggestions completions for a partial
// product name.
func (s *ExtractionService) Autocomplete(ctx context.Context, partialText, contextText string, categories []domain.Category, maxSuggestions int) ([]domain.AutocompleteSuggestion, error) {
	if maxSuggestions <= 0 {
		maxSuggestions = 5
	}

	autocompletePrompt, err := s.prompts.AutocompletePrompt(partialText, contextText, categories, maxSuggestions)
	if err != nil {
		return nil, classifyError("render_prompt", err)
	}

	reply, err := s.oracle.GenerateText(ctx, autocompletePrompt, gemini.AutocompleteConfig())
	if err != nil {
		return nil, classifyError("generate_text", err)
	}

	parsed, err := gemini.ExtractJSON(reply)
	if err != nil {
		return nil, classifyError("parse_response", err)
	}

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, &ExtractionError{
			Kind: KindUnexpectedShape,
			Op:   "parse_suggestions",
			Err:  fmt.Errorf("unexpected response type %T", parsed),
		}
	}

	rawSuggestions, _ := obj["suggestions"].([]interface{})
	suggestions := make([]domain.AutocompleteSuggestion, 0, maxSuggestions)
	for _, raw := range rawSuggestions {
		if len(suggestions) >= maxSuggestions {
			break
		}
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		name := coerceString(entry["name"])
		if name == "" {
			continue
		}
		suggestions = append(suggestions, domain.AutocompleteSuggestion{
			Name:        name,
			Description: coerceString(entry["description"]),
			Category:    coerceString(entry["category"]),
		})
	}

	return suggestions, nil
}

// normalizeExtraction converts a parsed model reply into a typed
// ExtractionResult, repairing known model quirks along the way.
func normalizeExtraction(parsed interface{}, imageIndex int) (domain.ExtractionResult, error) {
	// The model sometimes wraps a well-formed object in a singleton
	// list, and sometimes returns a bare products array. Logged so a
	// change in upstream behavior is visible.
	if list, ok := parsed.([]interface{}); ok {
		log.Printf("Unexpected list response for image %d (length %d)", imageIndex, len(list))
		if len(list) == 1 {
			if first, ok := list[0].(map[string]interface{}); ok {
				if _, hasProducts := first["products"]; hasProducts {
					parsed = first
				} else if _, hasInvoice := first["invoice"]; hasInvoice {
					parsed = first
				} else {
					parsed = map[string]interface{}{"products": list, "extraction_confidence": 0.5}
				}
			} else {
				parsed = map[string]interface{}{"products": list, "extraction_confidence": 0.5}
			}
		} else {
			parsed = map[string]interface{}{"products": list, "extraction_confidence": 0.5}
		}
	}

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return domain.ExtractionResult{}, &ExtractionError{
			Kind: KindUnexpectedShape,
			Op:   "normalize_response",
			Err:  fmt.Errorf("unexpected response type %T", parsed),
		}
	}

	// An error key is the model's way of saying "not an invoice";
	// it degrades to the sentinel result, not a failure.
	if errText := coerceString(obj["error"]); errText != "" {
		log.Printf("Model reports image %d is not an invoice", imageIndex)
		return domain.FailedExtraction(imageIndex, errText), nil
	}

	invoice := domain.ExtractedInvoice{ImageIndex: imageIndex}
	if invoiceData, ok := obj["invoice"].(map[string]interface{}); ok {
		invoice.SupplierName = coerceString(invoiceData["supplier_name"])
		invoice.InvoiceNumber = coerceString(invoiceData["invoice_number"])
		invoice.InvoiceDate = coerceString(invoiceData["invoice_date"])
	}

	rawProducts, _ := obj["products"].([]interface{})
	products := make([]domain.ExtractedProduct, 0, len(rawProducts))
	for _, raw := range rawProducts {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		description := strings.TrimSpace(coerceString(entry["description"]))
		if description == "" {
			// Lines without a readable description are dropped
			continue
		}
		products = append(products, domain.ExtractedProduct{
			Quantity:          coerceQuantity(entry["quantity"]),
			Description:       description,
			UnitPrice:         coercePrice(entry["unit_price"]),
			TotalPrice:        coercePrice(entry["total_price"]),
			SuggestedCategory: coerceString(entry["suggested_category"]),
		})
	}

	return domain.ExtractionResult{
		Invoice:              invoice,
		Products:             products,
		ExtractionConfidence: coerceConfidence(obj["extraction_confidence"]),
		RawText:              coerceString(obj["raw_text"]),
	}, nil
}

// coerceQuantity converts a raw quantity to an integer with floor 1.
// Invalid values clamp to 1.
func coerceQuantity(v interface{}) int {
	f, ok := coerceFloat(v)
	if !ok {
		return 1
	}
	q := int(f)
	if q < 1 {
		return 1
	}
	return q
}

// coercePrice converts a raw price to a non-negative decimal. Negative
// or invalid values clamp to 0.
func coercePrice(v interface{}) float64 {
	f, ok := coerceFloat(v)
	if !ok || f < 0 {
		return 0
	}
	return f
}

// coerceConfidence clamps a confidence to [0,1], defaulting to 0.7 when
// absent or invalid.
func coerceConfidence(v interface{}) float64 {
	f, ok := coerceFloat(v)
	if !ok {
		return 0.7
	}
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func coerceFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func coerceString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
