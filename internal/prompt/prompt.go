// Package prompt renders the text prompts sent to the vision model.
// Category names come from the live catalog so the model suggests
// categories the store actually uses.
package prompt

import (
	"strings"
	"text/template"

	"github.com/jcalderon/inventory-import-service/internal/domain"
)

// DefaultCategory is suggested when no catalog category fits a product.
const DefaultCategory = "Otros"

const extractionTemplate = `You are an assistant that reads handwritten supplier invoices for a small retail store.
Extract every product line from the invoice image.

{{if .Categories -}}
Known store categories (prefer these for suggested_category):
{{range .Categories -}}
- {{.Name}}{{if .Description}}: {{.Description}}{{end}}
{{end -}}
If no category fits, use "{{.DefaultCategory}}".
{{else -}}
Suggest a short category name for each product, or "{{.DefaultCategory}}" if unsure.
{{end}}
Respond with ONLY a JSON object in this exact shape:
{
  "invoice": {
    "supplier_name": "string or null",
    "invoice_number": "string or null",
    "invoice_date": "string or null"
  },
  "products": [
    {
      "quantity": 1,
      "description": "string",
      "unit_price": 0.0,
      "total_price": 0.0,
      "suggested_category": "string"
    }
  ],
  "extraction_confidence": 0.0
}

Rules:
- quantity is a whole number, at least 1.
- unit_price and total_price are non-negative decimals.
- extraction_confidence is your overall confidence between 0 and 1.
- If the image is not an invoice, respond with {"error": "not an invoice"}.
- Do not add any text outside the JSON object.`

const autocompleteTemplate = `You are helping a store clerk name a product in an inventory system.
Complete the partial product name below with up to {{.MaxSuggestions}} realistic suggestions.

Partial text: "{{.PartialText}}"
{{if .Context -}}
Additional context: {{.Context}}
{{end -}}
{{if .Categories -}}
Store categories: {{join .Categories ", "}}.
{{end}}
Respond with ONLY a JSON object:
{
  "suggestions": [
    {"name": "string", "description": "string", "category": "string"}
  ]
}`

// Renderer renders extraction and autocomplete prompts.
type Renderer struct {
	extraction   *template.Template
	autocomplete *template.Template
}

// NewRenderer parses the built-in templates. Parsing happens once at
// startup so template errors fail fast.
func NewRenderer() (*Renderer, error) {
	extraction, err := template.New("extraction").Parse(extractionTemplate)
	if err != nil {
		return nil, err
	}

	autocomplete, err := template.New("autocomplete").
		Funcs(template.FuncMap{"join": strings.Join}).
		Parse(autocompleteTemplate)
	if err != nil {
		return nil, err
	}

	return &Renderer{extraction: extraction, autocomplete: autocomplete}, nil
}

// ExtractionPrompt renders the invoice extraction prompt with the
// store's current categories.
func (r *Renderer) ExtractionPrompt(categories []domain.Category) (string, error) {
	var sb strings.Builder
	err := r.extraction.Execute(&sb, struct {
		Categories      []domain.Category
		DefaultCategory string
	}{
		Categories:      categories,
		DefaultCategory: DefaultCategory,
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// AutocompletePrompt renders the product autocomplete prompt.
func (r *Renderer) AutocompletePrompt(partialText, context string, categories []domain.Category, maxSuggestions int) (string, error) {
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}

	var sb strings.Builder
	err := r.autocomplete.Execute(&sb, struct {
		PartialText    string
		Context        string
		Categories     []string
		MaxSuggestions int
	}{
		PartialText:    partialText,
		Context:        context,
		Categories:     names,
		MaxSuggestions: maxSuggestions,
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
