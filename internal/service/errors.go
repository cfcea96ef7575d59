package service

import (
	"errors"
	"strings"

	"github.com/jcalderon/inventory-import-service/internal/gemini"
)

// ErrorKind classifies extraction failures for the orchestrator and the
// HTTP layer.
type ErrorKind string

const (
	// KindMalformedResponse means the sanitizer could not recover valid
	// JSON from the model reply.
	KindMalformedResponse ErrorKind = "malformed_response"

	// KindUnexpectedShape means the reply parsed but was neither an
	// object nor a recoverable list.
	KindUnexpectedShape ErrorKind = "unexpected_response_shape"

	// KindOracleUnavailable means the model call itself failed
	// (transport, configuration, quota).
	KindOracleUnavailable ErrorKind = "oracle_unavailable"
)

// ExtractionError represents a failure of a single extraction call.
// In batch mode it is caught at the orchestrator boundary and degraded
// to a zero-confidence result; in single-image mode it surfaces with a
// sanitized message.
type ExtractionError struct {
	Kind ErrorKind
	Op   string // Operation that failed
	Err  error  // Original error
}

// Error implements the error interface
func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return "extraction error: " + e.Op
	}
	return "extraction error: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// classifyError wraps an error from the extraction pipeline into an
// ExtractionError with the right kind.
func classifyError(op string, err error) *ExtractionError {
	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return extractionErr
	}

	var malformed *gemini.MalformedResponseError
	if errors.As(err, &malformed) {
		return &ExtractionError{Kind: KindMalformedResponse, Op: op, Err: err}
	}

	var apiErr *gemini.APIError
	if errors.As(err, &apiErr) {
		return &ExtractionError{Kind: KindOracleUnavailable, Op: op, Err: err}
	}

	return &ExtractionError{Kind: KindOracleUnavailable, Op: op, Err: err}
}

// SanitizedMessage maps an extraction failure to a user-facing message.
// Raw model/transport error text never reaches the client. Matching runs
// against the root cause only: wrapper op names like "generate_vision"
// must not trip the substring checks.
func SanitizedMessage(err error, fallback string) string {
	root := err
	for {
		unwrapped := errors.Unwrap(root)
		if unwrapped == nil {
			break
		}
		root = unwrapped
	}
	text := strings.ToLower(root.Error())
	switch {
	case strings.Contains(text, "not configured"):
		return "AI service is not configured. Please contact support."
	case strings.Contains(text, "quota"), strings.Contains(text, "rate"):
		return "AI service temporarily unavailable. Please try again later."
	default:
		return fallback
	}
}
