package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jcalderon/inventory-import-service/internal/domain"
	"github.com/jcalderon/inventory-import-service/internal/model"
	"github.com/jcalderon/inventory-import-service/internal/repository"
	"github.com/jcalderon/inventory-import-service/internal/service"
)

const maxAutocompleteSuggestions = 5

// AIStatus reports whether the generative model backend is usable.
type AIStatus interface {
	IsConfigured() bool
	ModelName() string
}

// ImportHandler handles HTTP requests for the invoice import pipeline
type ImportHandler struct {
	extraction *service.ExtractionService
	matching   *service.MatchingService
	catalog    repository.CatalogRepository
	ai         AIStatus
}

// NewImportHandler creates a new import handler
func NewImportHandler(extraction *service.ExtractionService, matching *service.MatchingService, catalog repository.CatalogRepository, ai AIStatus) *ImportHandler {
	return &ImportHandler{
		extraction: extraction,
		matching:   matching,
		catalog:    catalog,
		ai:         ai,
	}
}

// RegisterRoutes registers the handler's routes with the given router
func (h *ImportHandler) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/v1/import")
	group.POST("/extract-from-image", h.ExtractFromImage)
	group.POST("/extract-from-images", h.ExtractFromImages)
	group.POST("/autocomplete-product", h.AutocompleteProduct)
	group.POST("/match-products", h.MatchProducts)
	group.POST("/bulk-create", h.BulkCreate)
	group.GET("/health", h.Health)
}

// listCategories fetches catalog categories for prompt injection and
// match aggregation. A catalog failure degrades to an empty list so the
// AI pipeline keeps working without category hints.
func (h *ImportHandler) listCategories(ctx context.Context) []domain.Category {
	if h.catalog == nil {
		return nil
	}
	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		log.Printf("Failed to list categories: %v", err)
		return nil
	}
	return categories
}

// ExtractFromImage handles a request to extract products from a single base64 image
// @Summary Extract products from an invoice image
// @Description Extract product lines from a base64-encoded invoice image using AI, then match them against the catalog
// @Tags import
// @Accept json
// @Produce json
// @Param request body model.ImageExtractionRequest true "Base64 image payload"
// @Success 200 {object} model.SuccessResponse "Extraction and matching result"
// @Failure 400 {object} model.ErrorResponse "Invalid image payload"
// @Failure 500 {object} model.ErrorResponse "Extraction failed"
// @Router /v1/import/extract-from-image [post]
func (h *ImportHandler) ExtractFromImage(c *gin.Context) {
	var request model.ImageExtractionRequest
	if err := bindJSON(c, &request); err != nil {
		respondBadRequest(c, ErrInvalidInput, newErrorDetail("image_base64", err.Error()))
		return
	}

	imageType := request.ImageType
	if imageType == "" {
		imageType = "image/jpeg"
	}
	if !service.AllowedImageType(imageType) {
		respondBadRequest(c, fmt.Sprintf("Unsupported image type %q. Use JPEG, PNG or WebP.", imageType))
		return
	}

	// Reject oversized payloads before decoding: base64 inflates the
	// raw size by 4/3, so the decoded estimate is len*3/4.
	if int64(len(request.ImageBase64))*3/4 > h.extraction.MaxImageBytes() {
		respondBadRequest(c, fmt.Sprintf("Image too large. Maximum size is %dMB.", h.extraction.MaxImageBytes()/1024/1024))
		return
	}

	imageData, err := base64.StdEncoding.DecodeString(request.ImageBase64)
	if err != nil {
		respondBadRequest(c, "Invalid base64 image data")
		return
	}
	if int64(len(imageData)) > h.extraction.MaxImageBytes() {
		respondBadRequest(c, fmt.Sprintf("Image too large. Maximum size is %dMB.", h.extraction.MaxImageBytes()/1024/1024))
		return
	}

	start := time.Now()
	categories := h.listCategories(c.Request.Context())

	extraction, err := h.extraction.ExtractFromImage(c.Request.Context(), imageData, imageType, 0, categories)
	if err != nil {
		log.Printf("Extraction failed: %v", err)
		respondInternalServerError(c, service.SanitizedMessage(err, ErrExtractionFailed))
		return
	}

	matched, detected := h.matching.MatchExtractionResults(c.Request.Context(), []domain.ExtractionResult{extraction}, categories)

	respondOK(c, model.BatchExtractionResponse{
		Extractions:          []domain.ExtractionResult{extraction},
		MatchedProducts:      matched,
		DetectedCategories:   detected,
		TotalProducts:        len(matched),
		TotalImagesProcessed: 1,
		ProcessingTimeMs:     time.Since(start).Milliseconds(),
	})
}

// ExtractFromImages handles a request to extract products from a batch of uploaded images
// @Summary Extract products from multiple invoice images
// @Description Upload up to 20 invoice images and extract product lines from each using AI. A failing image degrades to an error placeholder instead of aborting the batch.
// @Tags import
// @Accept multipart/form-data
// @Produce json
// @Param files formData file true "Invoice image files"
// @Success 200 {object} model.SuccessResponse "Per-image extractions plus aggregated matches"
// @Failure 400 {object} model.ErrorResponse "Invalid batch"
// @Failure 500 {object} model.ErrorResponse "Extraction failed"
// @Router /v1/import/extract-from-images [post]
func (h *ImportHandler) ExtractFromImages(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		respondBadRequest(c, "Failed to parse form data: "+err.Error())
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		respondBadRequest(c, "No images provided. Upload files under the 'files' field.")
		return
	}
	if len(files) > h.extraction.MaxImagesPerBatch() {
		respondBadRequest(c, fmt.Sprintf("Too many images: %d. Maximum is %d per batch.", len(files), h.extraction.MaxImagesPerBatch()))
		return
	}

	images := make([]service.ImageInput, 0, len(files))
	for i, header := range files {
		contentType := fileContentType(header)
		if !service.AllowedImageType(contentType) {
			respondBadRequest(c, fmt.Sprintf("Image %d (%s): unsupported type %q. Use JPEG, PNG or WebP.", i+1, header.Filename, contentType))
			return
		}
		if header.Size > h.extraction.MaxImageBytes() {
			respondBadRequest(c, fmt.Sprintf("Image %d (%s): too large. Maximum size is %dMB.", i+1, header.Filename, h.extraction.MaxImageBytes()/1024/1024))
			return
		}
		data, err := readFormFile(header)
		if err != nil {
			respondBadRequest(c, err.Error())
			return
		}
		images = append(images, service.ImageInput{Data: data, MimeType: contentType})
	}

	start := time.Now()
	categories := h.listCategories(c.Request.Context())

	extractions, _, err := h.extraction.ExtractBatch(c.Request.Context(), images, categories)
	if err != nil {
		log.Printf("Batch extraction failed: %v", err)
		respondInternalServerError(c, service.SanitizedMessage(err, ErrExtractionFailed))
		return
	}

	matched, detected := h.matching.MatchExtractionResults(c.Request.Context(), extractions, categories)

	respondOK(c, model.BatchExtractionResponse{
		Extractions:          extractions,
		MatchedProducts:      matched,
		DetectedCategories:   detected,
		TotalProducts:        len(matched),
		TotalImagesProcessed: len(extractions),
		ProcessingTimeMs:     time.Since(start).Milliseconds(),
	})
}

// AutocompleteProduct handles a request for AI name completions
// @Summary Autocomplete a product name
// @Description Generate up to 5 AI completions for a partial product name
// @Tags import
// @Accept json
// @Produce json
// @Param request body model.AutocompleteRequest true "Partial product name"
// @Success 200 {object} model.SuccessResponse "Suggestions"
// @Failure 400 {object} model.ErrorResponse "Invalid input"
// @Failure 500 {object} model.ErrorResponse "Suggestion generation failed"
// @Router /v1/import/autocomplete-product [post]
func (h *ImportHandler) AutocompleteProduct(c *gin.Context) {
	var request model.AutocompleteRequest
	if err := bindJSON(c, &request); err != nil {
		respondBadRequest(c, ErrInvalidInput, newErrorDetail("partial_text", err.Error()))
		return
	}

	categories := h.listCategories(c.Request.Context())

	suggestions, err := h.extraction.Autocomplete(c.Request.Context(), request.PartialText, request.Context, categories, maxAutocompleteSuggestions)
	if err != nil {
		log.Printf("Autocomplete failed: %v", err)
		respondInternalServerError(c, service.SanitizedMessage(err, ErrAutocompleteFailed))
		return
	}

	respondOK(c, model.AutocompleteResponse{Suggestions: suggestions})
}

// MatchProducts handles a request to match one description against the catalog
// @Summary Match a product description against the catalog
// @Description Fuzzy-search the catalog for an extracted product description and report match candidates with confidence tiers
// @Tags import
// @Accept json
// @Produce json
// @Param request body model.MatchProductRequest true "Description to match"
// @Success 200 {object} model.SuccessResponse "Match result"
// @Failure 400 {object} model.ErrorResponse "Invalid input"
// @Router /v1/import/match-products [post]
func (h *ImportHandler) MatchProducts(c *gin.Context) {
	var request model.MatchProductRequest
	if err := bindJSON(c, &request); err != nil {
		respondBadRequest(c, ErrInvalidInput, newErrorDetail("description", err.Error()))
		return
	}
	if strings.TrimSpace(request.Description) == "" {
		respondBadRequest(c, "Description must not be empty")
		return
	}

	start := time.Now()
	matched := h.matching.MatchSingleProduct(c.Request.Context(), request.Description, request.SuggestedCategory)

	respondOK(c, model.MatchProductResponse{
		Matched:          matched,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	})
}

// BulkCreate handles a request to create several products at once
// @Summary Bulk-create products
// @Description Create products from corrected extraction output. Items are processed independently; one failure never aborts the rest. Missing categories can be auto-created.
// @Tags import
// @Accept json
// @Produce json
// @Param request body model.BulkCreateRequest true "Products to create"
// @Success 201 {object} model.SuccessResponse "Per-item results"
// @Failure 400 {object} model.ErrorResponse "Invalid input"
// @Router /v1/import/bulk-create [post]
func (h *ImportHandler) BulkCreate(c *gin.Context) {
	var request model.BulkCreateRequest
	if err := bindJSON(c, &request); err != nil {
		respondBadRequest(c, ErrInvalidInput, newErrorDetail("products", err.Error()))
		return
	}
	if h.catalog == nil {
		respondInternalServerError(c, "Catalog is not available")
		return
	}

	start := time.Now()
	ctx := c.Request.Context()

	// Category names resolve case-insensitively against a snapshot of
	// the catalog plus any categories created during this request.
	categoryIDs := make(map[string]string)
	for _, cat := range h.listCategories(ctx) {
		categoryIDs[strings.ToLower(cat.Name)] = cat.ID
	}

	results := make([]model.BulkCreateResultItem, 0, len(request.Products))
	created := 0
	categoriesCreated := 0

	for i, item := range request.Products {
		result := model.BulkCreateResultItem{Index: i}

		name := strings.TrimSpace(item.Name)
		if name == "" {
			result.Error = "Product name must not be empty"
			results = append(results, result)
			continue
		}

		categoryID := item.CategoryID
		if categoryID == "" && item.CategoryName != "" {
			key := strings.ToLower(strings.TrimSpace(item.CategoryName))
			if id, ok := categoryIDs[key]; ok {
				categoryID = id
			} else if request.CreateMissingCategories {
				category, err := h.catalog.CreateCategory(ctx, strings.TrimSpace(item.CategoryName), "")
				if err != nil {
					log.Printf("Bulk create: category %q failed: %v", item.CategoryName, err)
					result.Error = "Failed to create category " + item.CategoryName
					results = append(results, result)
					continue
				}
				categoryIDs[key] = category.ID
				categoryID = category.ID
				categoriesCreated++
			}
		}

		product, err := h.catalog.CreateProduct(ctx, &domain.Product{
			SKU:           generateSKU(item.CategoryName),
			Name:          h.matching.StandardizeName(name),
			Description:   item.Description,
			CategoryID:    categoryID,
			UnitPrice:     item.UnitPrice,
			CostPrice:     item.CostPrice,
			MinStockLevel: item.MinStockLevel,
			IsActive:      true,
		})
		if err != nil {
			log.Printf("Bulk create: product %q failed: %v", name, err)
			result.Error = bulkCreateErrorMessage(err)
			results = append(results, result)
			continue
		}

		result.Success = true
		result.ProductID = product.ID
		result.ProductSKU = product.SKU
		created++
		results = append(results, result)
	}

	// New products invalidate cached match results
	if created > 0 {
		h.matching.ClearCache()
	}

	respondCreated(c, model.BulkCreateResponse{
		TotalRequested:    len(request.Products),
		TotalCreated:      created,
		TotalFailed:       len(request.Products) - created,
		Results:           results,
		CategoriesCreated: categoriesCreated,
		ProcessingTimeMs:  time.Since(start).Milliseconds(),
	})
}

// Health reports import pipeline readiness
// @Summary Import pipeline health
// @Description Report whether the AI backend is configured and which model is in use
// @Tags import
// @Produce json
// @Success 200 {object} model.SuccessResponse "Pipeline status"
// @Router /v1/import/health [get]
func (h *ImportHandler) Health(c *gin.Context) {
	aiConfigured := h.ai != nil && h.ai.IsConfigured()
	modelName := ""
	if h.ai != nil {
		modelName = h.ai.ModelName()
	}

	respondOK(c, gin.H{
		"status":        "ok",
		"ai_configured": aiConfigured,
		"model":         modelName,
	})
}

// generateSKU builds a SKU of the form PREFIX-XXXXXX where the prefix
// comes from the category name and the suffix from a random UUID.
func generateSKU(categoryName string) string {
	prefix := "GEN"
	trimmed := strings.TrimSpace(categoryName)
	if trimmed != "" {
		letters := make([]rune, 0, 3)
		for _, r := range strings.ToUpper(trimmed) {
			if r >= 'A' && r <= 'Z' {
				letters = append(letters, r)
			}
			if len(letters) == 3 {
				break
			}
		}
		if len(letters) == 3 {
			prefix = string(letters)
		}
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return prefix + "-" + suffix
}

// bulkCreateErrorMessage maps repository errors to user-facing text
func bulkCreateErrorMessage(err error) string {
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return ErrProductDuplicate
	case errors.Is(err, repository.ErrInvalidReference):
		return ErrInvalidCategoryRef
	default:
		return "Failed to create product"
	}
}
