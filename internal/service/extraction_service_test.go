package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcalderon/inventory-import-service/internal/domain"
	"github.com/jcalderon/inventory-import-service/internal/gemini"
	"github.com/jcalderon/inventory-import-service/internal/prompt"
)

// fakeOracle implements Oracle for tests.
type fakeOracle struct {
	vision func(prompt string, image []byte) (string, error)
	text   func(prompt string) (string, error)
}

func (f *fakeOracle) GenerateVision(_ context.Context, prompt string, image []byte, _ string, _ gemini.GenerateConfig) (string, error) {
	return f.vision(prompt, image)
}

func (f *fakeOracle) GenerateText(_ context.Context, prompt string, _ gemini.GenerateConfig) (string, error) {
	return f.text(prompt)
}

func (f *fakeOracle) IsConfigured() bool { return true }

func newTestExtractionService(t *testing.T, oracle Oracle) *ExtractionService {
	t.Helper()
	prompts, err := prompt.NewRenderer()
	require.NoError(t, err)
	return NewExtractionService(oracle, prompts, ExtractionConfig{})
}

func mustParse(t *testing.T, raw string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestNormalizeExtractionClampsAndFilters(t *testing.T) {
	parsed := mustParse(t, `{
		"invoice": {"supplier_name": "Don Pedro", "invoice_number": "A-104", "invoice_date": "12/03/2024"},
		"products": [
			{"quantity": 0, "description": "Escoba Gde", "unit_price": -5, "total_price": 12.5, "suggested_category": "Limpieza"},
			{"quantity": -3, "description": "Jabón en polvo", "unit_price": 8, "total_price": -1},
			{"quantity": 2, "description": "   ", "unit_price": 1, "total_price": 2},
			{"quantity": 2, "description": "", "unit_price": 1, "total_price": 2},
			{"quantity": "4", "description": "  Detergente  ", "unit_price": "3.50", "total_price": 14}
		],
		"extraction_confidence": 1.7
	}`)

	result, err := normalizeExtraction(parsed, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Invoice.ImageIndex)
	assert.Equal(t, "Don Pedro", result.Invoice.SupplierName)
	assert.Equal(t, "A-104", result.Invoice.InvoiceNumber)

	// Whitespace-only and empty descriptions are dropped.
	require.Len(t, result.Products, 3)

	first := result.Products[0]
	assert.Equal(t, 1, first.Quantity, "quantity floors at 1")
	assert.Equal(t, 0.0, first.UnitPrice, "negative price clamps to 0")
	assert.Equal(t, 12.5, first.TotalPrice)
	assert.Equal(t, "Limpieza", first.SuggestedCategory)

	assert.Equal(t, 1, result.Products[1].Quantity)
	assert.Equal(t, 0.0, result.Products[1].TotalPrice)

	third := result.Products[2]
	assert.Equal(t, 4, third.Quantity, "numeric strings coerce")
	assert.Equal(t, "Detergente", third.Description, "descriptions are trimmed")
	assert.Equal(t, 3.5, third.UnitPrice)

	assert.Equal(t, 1.0, result.ExtractionConfidence, "confidence clamps to [0,1]")
}

func TestNormalizeExtractionConfidenceDefault(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want float64
	}{
		{"absent", `{"products": []}`, 0.7},
		{"invalid", `{"products": [], "extraction_confidence": "high"}`, 0.7},
		{"negative", `{"products": [], "extraction_confidence": -0.2}`, 0.0},
		{"in range", `{"products": [], "extraction_confidence": 0.42}`, 0.42},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := normalizeExtraction(mustParse(t, tc.raw), 0)
			require.NoError(t, err)
			assert.Equal(t, tc.want, result.ExtractionConfidence)
		})
	}
}

func TestNormalizeExtractionInvalidQuantity(t *testing.T) {
	result, err := normalizeExtraction(mustParse(t, `{
		"products": [{"quantity": "many", "description": "Clavos"}]
	}`), 0)
	require.NoError(t, err)
	require.Len(t, result.Products, 1)
	assert.Equal(t, 1, result.Products[0].Quantity)
}

func TestNormalizeExtractionListUnwrap(t *testing.T) {
	inner := `{
		"invoice": {"supplier_name": "Ferretería Sur"},
		"products": [{"quantity": 3, "description": "Martillo", "unit_price": 25, "total_price": 75}],
		"extraction_confidence": 0.9
	}`

	direct, err := normalizeExtraction(mustParse(t, inner), 1)
	require.NoError(t, err)

	// A singleton list wrapping a well-formed object must normalize
	// identically to the inner object.
	wrapped, err := normalizeExtraction(mustParse(t, "["+inner+"]"), 1)
	require.NoError(t, err)

	assert.Equal(t, direct, wrapped)
}

func TestNormalizeExtractionBareProductList(t *testing.T) {
	result, err := normalizeExtraction(mustParse(t, `[
		{"quantity": 1, "description": "Escoba"},
		{"quantity": 2, "description": "Balde"}
	]`), 0)
	require.NoError(t, err)

	assert.Len(t, result.Products, 2)
	assert.Equal(t, 0.5, result.ExtractionConfidence, "raw lists default to 0.5 confidence")
	assert.Empty(t, result.Invoice.SupplierName)
}

func TestNormalizeExtractionErrorKey(t *testing.T) {
	result, err := normalizeExtraction(mustParse(t, `{"error": "not an invoice"}`), 3)
	require.NoError(t, err, "an error key is a sentinel, not a failure")

	assert.Equal(t, 0.0, result.ExtractionConfidence)
	assert.Empty(t, result.Products)
	assert.Equal(t, "not an invoice", result.RawText)
	assert.Equal(t, 3, result.Invoice.ImageIndex)
}

func TestNormalizeExtractionUnexpectedShape(t *testing.T) {
	_, err := normalizeExtraction(mustParse(t, `"just a string"`), 0)
	require.Error(t, err)

	var extractionErr *ExtractionError
	require.True(t, errors.As(err, &extractionErr))
	assert.Equal(t, KindUnexpectedShape, extractionErr.Kind)
}

func TestExtractFromImageMalformedResponse(t *testing.T) {
	oracle := &fakeOracle{
		vision: func(string, []byte) (string, error) {
			return "sorry, I cannot read this image", nil
		},
	}
	svc := newTestExtractionService(t, oracle)

	_, err := svc.ExtractFromImage(context.Background(), []byte("img"), "image/jpeg", 0, nil)
	require.Error(t, err)

	var extractionErr *ExtractionError
	require.True(t, errors.As(err, &extractionErr))
	assert.Equal(t, KindMalformedResponse, extractionErr.Kind)
}

func TestExtractFromImagePromptIncludesCategories(t *testing.T) {
	var seenPrompt string
	oracle := &fakeOracle{
		vision: func(p string, _ []byte) (string, error) {
			seenPrompt = p
			return `{"products": []}`, nil
		},
	}
	svc := newTestExtractionService(t, oracle)

	_, err := svc.ExtractFromImage(context.Background(), []byte("img"), "image/jpeg", 0, []domain.Category{{Name: "Limpieza"}})
	require.NoError(t, err)
	assert.Contains(t, seenPrompt, "Limpieza")
}

func TestExtractBatchIsolatesFailures(t *testing.T) {
	call := 0
	oracle := &fakeOracle{
		vision: func(string, []byte) (string, error) {
			call++
			if call == 2 {
				return "", &gemini.APIError{Op: "generate_vision", Err: fmt.Errorf("boom")}
			}
			return fmt.Sprintf(`{"products": [{"quantity": %d, "description": "Producto %d"}], "extraction_confidence": 0.8}`, call, call), nil
		},
	}
	svc := newTestExtractionService(t, oracle)

	images := []ImageInput{
		{Data: []byte("a"), MimeType: "image/jpeg"},
		{Data: []byte("b"), MimeType: "image/png"},
		{Data: []byte("c"), MimeType: "image/webp"},
	}

	results, elapsed, err := svc.ExtractBatch(context.Background(), images, nil)
	require.NoError(t, err, "batch always succeeds once validation passes")
	require.Len(t, results, 3, "one result per input image")
	assert.GreaterOrEqual(t, elapsed, int64(0))

	// The failed image degrades to the sentinel result at its index.
	assert.Equal(t, 0.0, results[1].ExtractionConfidence)
	assert.Empty(t, results[1].Products)
	assert.Contains(t, results[1].RawText, "Error:")
	assert.Equal(t, 1, results[1].Invoice.ImageIndex)

	// Neighbors are unaffected and keep input order.
	assert.Equal(t, 0.8, results[0].ExtractionConfidence)
	assert.Equal(t, "Producto 1", results[0].Products[0].Description)
	assert.Equal(t, "Producto 3", results[2].Products[0].Description)
	assert.Equal(t, 2, results[2].Invoice.ImageIndex)
}

func TestExtractBatchValidation(t *testing.T) {
	oracle := &fakeOracle{
		vision: func(string, []byte) (string, error) {
			t.Fatal("oracle must not be called when validation fails")
			return "", nil
		},
	}
	svc := newTestExtractionService(t, oracle)

	t.Run("empty batch", func(t *testing.T) {
		_, _, err := svc.ExtractBatch(context.Background(), nil, nil)
		require.Error(t, err)
	})

	t.Run("too many images", func(t *testing.T) {
		images := make([]ImageInput, DefaultMaxImagesPerBatch+1)
		for i := range images {
			images[i] = ImageInput{Data: []byte("x"), MimeType: "image/jpeg"}
		}
		_, _, err := svc.ExtractBatch(context.Background(), images, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too many images")
	})

	t.Run("disallowed mime type", func(t *testing.T) {
		_, _, err := svc.ExtractBatch(context.Background(), []ImageInput{
			{Data: []byte("x"), MimeType: "application/pdf"},
		}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported type")
	})

	t.Run("oversized image", func(t *testing.T) {
		_, _, err := svc.ExtractBatch(context.Background(), []ImageInput{
			{Data: bytes.Repeat([]byte("x"), int(svc.MaxImageBytes())+1), MimeType: "image/jpeg"},
		}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})
}

func TestAllowedImageType(t *testing.T) {
	for _, mime := range []string{"image/jpeg", "image/jpg", "image/png", "image/webp", "IMAGE/PNG"} {
		assert.True(t, AllowedImageType(mime), mime)
	}
	for _, mime := range []string{"image/gif", "application/pdf", "text/plain", ""} {
		assert.False(t, AllowedImageType(mime), mime)
	}
}

func TestAutocomplete(t *testing.T) {
	oracle := &fakeOracle{
		text: func(p string) (string, error) {
			assert.Contains(t, p, "escob")
			return `{"suggestions": [
				{"name": "Escoba Grande", "description": "Escoba de cerdas duras", "category": "Limpieza"},
				{"name": "", "description": "sin nombre"},
				{"name": "Escobilla de Baño", "description": "", "category": "Limpieza"}
			]}`, nil
		},
	}
	svc := newTestExtractionService(t, oracle)

	suggestions, err := svc.Autocomplete(context.Background(), "escob", "", nil, 5)
	require.NoError(t, err)

	// Nameless suggestions are dropped.
	require.Len(t, suggestions, 2)
	assert.Equal(t, "Escoba Grande", suggestions[0].Name)
	assert.Equal(t, "Limpieza", suggestions[0].Category)
	assert.Equal(t, "Escobilla de Baño", suggestions[1].Name)
}

func TestAutocompleteCapsSuggestions(t *testing.T) {
	oracle := &fakeOracle{
		text: func(string) (string, error) {
			return `{"suggestions": [
				{"name": "A"}, {"name": "B"}, {"name": "C"}, {"name": "D"}
			]}`, nil
		},
	}
	svc := newTestExtractionService(t, oracle)

	suggestions, err := svc.Autocomplete(context.Background(), "ab", "", nil, 2)
	require.NoError(t, err)
	assert.Len(t, suggestions, 2)
}

func TestSanitizedMessage(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			"not configured",
			&gemini.APIError{Op: "validate_configuration", Err: errors.New("API key is not configured")},
			"AI service is not configured. Please contact support.",
		},
		{
			"quota exceeded",
			errors.New("googleapi: quota exceeded for model"),
			"AI service temporarily unavailable. Please try again later.",
		},
		{
			"rate limited",
			errors.New("429 rate limit"),
			"AI service temporarily unavailable. Please try again later.",
		},
		{
			"anything else",
			errors.New("connection reset by peer"),
			"fallback message",
		},
		{
			// op names like generate_vision contain "rate" and must
			// not trigger the rate-limit message
			"wrapper op does not match",
			classifyError("generate_vision", errors.New("connection reset by peer")),
			"fallback message",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizedMessage(tc.err, "fallback message"))
		})
	}
}
