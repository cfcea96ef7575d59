package gemini

import (
	"encoding/json"
	"strings"
)

// MalformedResponseError reports that no valid JSON object could be
// recovered from a model reply. Raw carries the original text for
// diagnostics.
type MalformedResponseError struct {
	Raw string
	Err error
}

// Error implements the error interface
func (e *MalformedResponseError) Error() string {
	if e.Err == nil {
		return "could not extract valid JSON from response"
	}
	return "could not extract valid JSON from response: " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// ExtractJSON parses a model reply that should be JSON but sometimes has
// conversational text appended after a valid object. It tries a direct
// parse first, then recovers the leading balanced object by scanning
// brace depth, and fails with MalformedResponseError otherwise.
func ExtractJSON(text string) (interface{}, error) {
	text = strings.TrimSpace(text)

	var value interface{}
	firstErr := json.Unmarshal([]byte(text), &value)
	if firstErr == nil {
		return value, nil
	}

	if strings.HasPrefix(text, "{") {
		if end := findJSONEnd(text); end >= 0 {
			if err := json.Unmarshal([]byte(text[:end+1]), &value); err == nil {
				return value, nil
			}
		}
	}

	return nil, &MalformedResponseError{Raw: text, Err: firstErr}
}

// findJSONEnd returns the index of the closing brace that balances the
// opening brace at the start of text, or -1 when none is found. Braces
// inside double-quoted strings are ignored; a backslash escapes the next
// character regardless of mode.
func findJSONEnd(text string) int {
	depth := 0
	inString := false
	escapeNext := false

	for i := 0; i < len(text); i++ {
		ch := text[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		switch {
		case ch == '\\':
			escapeNext = true
		case ch == '"':
			inString = !inString
		case inString:
			// content inside strings never affects depth
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
