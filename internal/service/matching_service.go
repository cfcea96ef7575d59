package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/jcalderon/inventory-import-service/internal/domain"
)

// Matching defaults. The similarity threshold is deliberately low: the
// database ranks rows itself, the threshold only prunes noise.
const (
	DefaultMatchLimit          = 5
	batchMatchLimit            = 3
	DefaultSimilarityThreshold = 0.15
)

// CatalogSearcher is the fuzzy-search capability the matcher consumes.
// Implementations return rows ranked by relevance, best first; absolute
// similarity scores are not part of the contract.
type CatalogSearcher interface {
	SearchProducts(ctx context.Context, term string, limit int, similarityThreshold float64, activeOnly bool) ([]domain.ProductSearchHit, error)
}

// CategoryLister provides the existing categories used for prompt
// injection and category reconciliation.
type CategoryLister interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

// MatchingService matches extracted products against the existing
// catalog using the database's fuzzy search, with an in-process result
// cache. When no catalog searcher is configured it falls back to a
// local word-overlap matcher over a preloaded product snapshot.
type MatchingService struct {
	catalog          CatalogSearcher
	cache            *MatchCache
	fallbackProducts []domain.Product

	titleCaser cases.Caser
}

// NewMatchingService creates a new matching service. A nil cache gets
// the default TTL and capacity.
func NewMatchingService(catalog CatalogSearcher, cache *MatchCache) *MatchingService {
	if cache == nil {
		cache = NewMatchCache(DefaultMatchCacheTTL, DefaultMatchCacheSize, nil)
	}
	return &MatchingService{
		catalog:    catalog,
		cache:      cache,
		titleCaser: cases.Title(language.Spanish),
	}
}

// SetFallbackProducts provides a product snapshot for the local
// word-overlap matcher, used only when no catalog searcher is set.
func (s *MatchingService) SetFallbackProducts(products []domain.Product) {
	s.fallbackProducts = products
}

// FindMatches returns catalog matches for a description, best first.
// Results are cached per (description, limit, threshold); a search
// failure degrades to no matches instead of propagating.
func (s *MatchingService) FindMatches(ctx context.Context, description string, limit int, similarityThreshold float64) []domain.ProductMatch {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return []domain.ProductMatch{}
	}

	cacheKey := fmt.Sprintf("%s:%d:%g", strings.ToLower(trimmed), limit, similarityThreshold)
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached
	}

	if s.catalog == nil {
		matches := WordOverlapMatches(trimmed, s.fallbackProducts)
		if len(matches) > limit {
			matches = matches[:limit]
		}
		s.cache.Set(cacheKey, matches)
		return matches
	}

	hits, err := s.catalog.SearchProducts(ctx, trimmed, limit, similarityThreshold, true)
	if err != nil {
		log.Printf("Catalog search failed for %q: %v", truncate(trimmed, 30), err)
		return []domain.ProductMatch{}
	}

	matches := make([]domain.ProductMatch, 0, len(hits))
	for position, hit := range hits {
		// Rows arrive ranked; the tier comes from the rank position and
		// the similarity score is an estimate for display only.
		var confidence domain.MatchConfidence
		switch {
		case position == 0:
			confidence = domain.ConfidenceHigh
		case position <= 2:
			confidence = domain.ConfidenceMedium
		default:
			confidence = domain.ConfidenceLow
		}

		estimated := 1.0 - float64(position)*0.15
		if estimated < 0.3 {
			estimated = 0.3
		}

		matches = append(matches, domain.ProductMatch{
			ExistingProductID:   hit.ID,
			ExistingProductName: hit.Name,
			ExistingProductSKU:  hit.SKU,
			SimilarityScore:     estimated,
			Confidence:          confidence,
		})
	}

	s.cache.Set(cacheKey, matches)
	return matches
}

// MatchSingleProduct matches one description against the catalog.
//
// Note: this path classifies a product as new when the best match tier
// is low or there are no matches, which differs from the batch path's
// strictly-below-medium threshold. Both thresholds are intentional and
// must not be unified without a product decision.
func (s *MatchingService) MatchSingleProduct(ctx context.Context, description, suggestedCategory string) domain.MatchedProduct {
	matches := s.FindMatches(ctx, description, DefaultMatchLimit, DefaultSimilarityThreshold)

	isNew := len(matches) == 0 || matches[0].Confidence == domain.ConfidenceLow

	return domain.MatchedProduct{
		Extracted: domain.ExtractedProduct{
			Quantity:          1,
			Description:       description,
			SuggestedCategory: suggestedCategory,
		},
		Matches:       matches,
		IsNewProduct:  isNew,
		SuggestedName: s.StandardizeName(description),
	}
}

// MatchExtractionResults matches every extracted product against the
// catalog and reconciles the suggested categories across the batch.
//
// Products are processed in extraction order and category aggregation
// preserves first-seen order, keyed case-insensitively.
func (s *MatchingService) MatchExtractionResults(ctx context.Context, extractions []domain.ExtractionResult, existingCategories []domain.Category) ([]domain.MatchedProduct, []domain.DetectedCategory) {
	matchedProducts := []domain.MatchedProduct{}

	categoryLookup := make(map[string]domain.Category, len(existingCategories))
	for _, c := range existingCategories {
		categoryLookup[strings.ToLower(c.Name)] = c
	}

	categoryCounts := map[string]*domain.DetectedCategory{}
	categoryOrder := []string{}

	for _, extraction := range extractions {
		for _, product := range extraction.Products {
			matches := s.FindMatches(ctx, product.Description, batchMatchLimit, DefaultSimilarityThreshold)

			isNew := len(matches) == 0 || !matches[0].Confidence.AtLeast(domain.ConfidenceMedium)

			matchedProducts = append(matchedProducts, domain.MatchedProduct{
				Extracted:     product,
				Matches:       matches,
				IsNewProduct:  isNew,
				SuggestedName: s.StandardizeName(product.Description),
			})

			if product.SuggestedCategory == "" {
				continue
			}
			key := strings.ToLower(product.SuggestedCategory)
			detected, seen := categoryCounts[key]
			if !seen {
				detected = &domain.DetectedCategory{
					Name: product.SuggestedCategory,
				}
				if existing, ok := categoryLookup[key]; ok {
					detected.ExistsInCatalog = true
					detected.ExistingCategoryID = existing.ID
				}
				categoryCounts[key] = detected
				categoryOrder = append(categoryOrder, key)
			}
			detected.ProductCount++
		}
	}

	detectedCategories := make([]domain.DetectedCategory, 0, len(categoryOrder))
	for _, key := range categoryOrder {
		detectedCategories = append(detectedCategories, *categoryCounts[key])
	}

	newCount := 0
	for _, m := range matchedProducts {
		if m.IsNewProduct {
			newCount++
		}
	}
	log.Printf("Batch matching complete: %d products (%d new), %d categories",
		len(matchedProducts), newCount, len(detectedCategories))

	return matchedProducts, detectedCategories
}

// ClearCache empties the match cache. Must be called after any catalog
// mutation (product create/update/delete).
func (s *MatchingService) ClearCache() {
	s.cache.Clear()
	log.Println("Match cache cleared")
}

// nameReplacements expands common Spanish abbreviations found on
// handwritten invoices, in both space-padded and trailing-dot forms.
var nameReplacements = [...][2]string{
	{" Gde ", " Grande "},
	{" Gde.", " Grande"},
	{" Peq ", " Pequeño "},
	{" Peq.", " Pequeño"},
	{" Med ", " Mediano "},
	{" Med.", " Mediano"},
	{" Pza ", " Pieza "},
	{" Pza.", " Pieza"},
	{" Unid ", " Unidad "},
	{" Unid.", " Unidad"},
	{" Cja ", " Caja "},
	{" Cja.", " Caja"},
	{" Paq ", " Paquete "},
	{" Paq.", " Paquete"},
}

// StandardizeName turns a raw invoice description into a presentable
// product name: trimmed, title-cased, with common abbreviations expanded.
func (s *MatchingService) StandardizeName(rawName string) string {
	standardized := s.titleCaser.String(strings.TrimSpace(rawName))
	for _, pair := range nameReplacements {
		standardized = strings.ReplaceAll(standardized, pair[0], pair[1])
	}
	return standardized
}

// WordOverlapMatches scores products by Jaccard word overlap with the
// description. It is a local fallback for deployments without the
// database fuzzy search, never the primary strategy.
func WordOverlapMatches(description string, products []domain.Product) []domain.ProductMatch {
	descWords := wordSet(description)
	if len(descWords) == 0 {
		return []domain.ProductMatch{}
	}

	matches := []domain.ProductMatch{}
	for _, product := range products {
		nameWords := wordSet(product.Name)

		common := 0
		for w := range descWords {
			if nameWords[w] {
				common++
			}
		}
		if common == 0 {
			continue
		}

		union := len(descWords) + len(nameWords) - common
		score := float64(common) / float64(union)
		if score < 0.3 {
			continue
		}

		var confidence domain.MatchConfidence
		switch {
		case score >= 0.9:
			confidence = domain.ConfidenceHigh
		case score >= 0.7:
			confidence = domain.ConfidenceMedium
		case score >= 0.5:
			confidence = domain.ConfidenceLow
		default:
			confidence = domain.ConfidenceNone
		}

		matches = append(matches, domain.ProductMatch{
			ExistingProductID:   product.ID,
			ExistingProductName: product.Name,
			ExistingProductSKU:  product.SKU,
			SimilarityScore:     score,
			Confidence:          confidence,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].SimilarityScore > matches[j].SimilarityScore
	})
	return matches
}

func wordSet(text string) map[string]bool {
	words := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[w] = true
	}
	return words
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
