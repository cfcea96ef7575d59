package gemini

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONValidObject(t *testing.T) {
	input := `{"key": "value", "count": 3}`

	got, err := ExtractJSON(input)
	require.NoError(t, err)

	// Already-valid JSON must parse identically to a direct parse.
	var direct interface{}
	require.NoError(t, json.Unmarshal([]byte(input), &direct))
	assert.Equal(t, direct, got)
}

func TestExtractJSONValidArray(t *testing.T) {
	got, err := ExtractJSON(`[{"description": "Escoba"}]`)
	require.NoError(t, err)

	list, ok := got.([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 1)
}

func TestExtractJSONTrailingGarbage(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"conversational suffix", `{"key": "value"} Thanks for asking!`},
		{"unbalanced braces in suffix", `{"key": "value"} }}{{ leftover`},
		{"newline before suffix", "{\"key\": \"value\"}\nHere is the data you requested."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractJSON(tc.input)
			require.NoError(t, err)

			obj, ok := got.(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, "value", obj["key"])
		})
	}
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	got, err := ExtractJSON(`{"key": "a { b } c"} trailing`)
	require.NoError(t, err)

	obj, ok := got.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "a { b } c", obj["key"])
}

func TestExtractJSONEscapedBackslashes(t *testing.T) {
	got, err := ExtractJSON(`{"path": "C:\\Users\\test"} done`)
	require.NoError(t, err)

	obj, ok := got.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, `C:\Users\test`, obj["path"])
	assert.Len(t, obj, 1)
}

func TestExtractJSONNestedObjectWithGarbage(t *testing.T) {
	input := `{"invoice": {"supplier_name": "Don Pedro"}, "products": [{"description": "Jabón"}]} I hope this helps!`

	got, err := ExtractJSON(input)
	require.NoError(t, err)

	obj, ok := got.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, obj, "invoice")
	assert.Contains(t, obj, "products")
}

func TestExtractJSONMalformed(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"plain text", "this is not json at all"},
		{"truncated object", `{"key": "val`},
		{"unbalanced to the end", `{"a": {"b": 1}`},
		{"empty input", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractJSON(tc.input)
			require.Error(t, err)

			var malformed *MalformedResponseError
			require.True(t, errors.As(err, &malformed))
			// The original text is preserved for diagnostics.
			assert.Contains(t, malformed.Raw, tc.input)
		})
	}
}

func TestFindJSONEnd(t *testing.T) {
	assert.Equal(t, 1, findJSONEnd(`{}`))
	assert.Equal(t, 15, findJSONEnd(`{"key": "value"} extra`))
	assert.Equal(t, -1, findJSONEnd(`{"key": "value"`))
	assert.Equal(t, -1, findJSONEnd(`{"key": "unterminated string}`))
}
