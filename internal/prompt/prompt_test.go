package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcalderon/inventory-import-service/internal/domain"
)

func TestExtractionPromptWithCategories(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.ExtractionPrompt([]domain.Category{
		{Name: "Limpieza", Description: "Productos de limpieza"},
		{Name: "Ferretería"},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "Limpieza: Productos de limpieza")
	assert.Contains(t, out, "Ferretería")
	assert.Contains(t, out, DefaultCategory)
	assert.Contains(t, out, `"extraction_confidence"`)
}

func TestExtractionPromptWithoutCategories(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.ExtractionPrompt(nil)
	require.NoError(t, err)

	assert.NotContains(t, out, "Known store categories")
	assert.Contains(t, out, DefaultCategory)
}

func TestAutocompletePrompt(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.AutocompletePrompt("escob", "cleaning aisle", []domain.Category{
		{Name: "Limpieza"},
		{Name: "Hogar"},
	}, 5)
	require.NoError(t, err)

	assert.Contains(t, out, `"escob"`)
	assert.Contains(t, out, "cleaning aisle")
	assert.Contains(t, out, "Limpieza, Hogar")
	assert.Contains(t, out, "5")
}
