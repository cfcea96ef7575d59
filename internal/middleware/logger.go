package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// sensitiveFields contains patterns for fields that should be redacted
var sensitiveFields = []string{
	"password",
	"token",
	"api_key",
	"apikey",
	"api-key",
	"secret",
	"authorization",
	"bearer",
	"credential",
	"cookie",
}

// bulkyFields contains fields whose values are truncated in logs. Base64
// image payloads can be megabytes; logging them verbatim is useless.
var bulkyFields = []string{
	"image_base64",
	"raw_text",
}

// sensitiveHeaderPatterns contains regex patterns for sensitive headers
var sensitiveHeaderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)authorization`),
	regexp.MustCompile(`(?i)api[-_]?key`),
	regexp.MustCompile(`(?i)token`),
	regexp.MustCompile(`(?i)secret`),
	regexp.MustCompile(`(?i)cookie`),
}

// responseWriter is a custom response writer to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestResponseLogger creates a middleware that logs all API requests and responses
func RequestResponseLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		// Multipart bodies (image uploads) are not buffered: they can be
		// tens of megabytes and are logged by size only.
		var requestBody []byte
		isMultipart := strings.HasPrefix(c.ContentType(), "multipart/")
		if !isMultipart && c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
			// Restore the body for the next handler
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		responseBodyWriter := &responseWriter{
			ResponseWriter: c.Writer,
			body:           bytes.NewBufferString(""),
		}
		c.Writer = responseBodyWriter

		c.Next()

		latency := time.Since(startTime)
		entry := buildLogEntry(c, requestBody, responseBodyWriter.body.Bytes(), latency, isMultipart)
		printJSONLog(entry)
	}
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp    string            `json:"timestamp"`
	Method       string            `json:"method"`
	Path         string            `json:"path"`
	StatusCode   int               `json:"status_code"`
	Latency      string            `json:"latency"`
	ClientIP     string            `json:"client_ip"`
	UserAgent    string            `json:"user_agent"`
	Headers      map[string]string `json:"headers"`
	RequestBody  interface{}       `json:"request_body,omitempty"`
	RequestSize  int64             `json:"request_size,omitempty"`
	ResponseBody interface{}       `json:"response_body,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// buildLogEntry constructs a log entry from request and response data
func buildLogEntry(c *gin.Context, requestBody, responseBody []byte, latency time.Duration, isMultipart bool) LogEntry {
	entry := LogEntry{
		Timestamp:  time.Now().Format(time.RFC3339),
		Method:     c.Request.Method,
		Path:       c.Request.URL.Path,
		StatusCode: c.Writer.Status(),
		Latency:    latency.String(),
		ClientIP:   c.ClientIP(),
		UserAgent:  c.Request.UserAgent(),
		Headers:    redactHeaders(c.Request.Header),
	}

	if isMultipart {
		entry.RequestSize = c.Request.ContentLength
	} else if len(requestBody) > 0 {
		entry.RequestBody = parseAndRedactBody(requestBody)
	}

	if len(responseBody) > 0 {
		entry.ResponseBody = parseAndRedactBody(responseBody)
	}

	if len(c.Errors) > 0 {
		entry.Error = c.Errors.String()
	}

	return entry
}

// redactHeaders redacts sensitive headers
func redactHeaders(headers map[string][]string) map[string]string {
	redacted := make(map[string]string)
	for key, values := range headers {
		if isSensitiveHeader(key) {
			redacted[key] = "[REDACTED]"
		} else {
			redacted[key] = strings.Join(values, ", ")
		}
	}
	return redacted
}

// isSensitiveHeader checks if a header name is sensitive
func isSensitiveHeader(headerName string) bool {
	for _, pattern := range sensitiveHeaderPatterns {
		if pattern.MatchString(headerName) {
			return true
		}
	}
	return false
}

// parseAndRedactBody parses JSON body and redacts sensitive or bulky fields
func parseAndRedactBody(body []byte) interface{} {
	var jsonBody interface{}
	if err := json.Unmarshal(body, &jsonBody); err != nil {
		// If not JSON, return truncated string
		bodyStr := string(body)
		if len(bodyStr) > 1000 {
			bodyStr = bodyStr[:1000] + "... (truncated)"
		}
		return bodyStr
	}

	redactFields(jsonBody)
	return jsonBody
}

// redactFields recursively redacts sensitive fields and truncates bulky
// ones in JSON data
func redactFields(data interface{}) {
	switch v := data.(type) {
	case map[string]interface{}:
		for key, value := range v {
			switch {
			case isSensitiveField(key):
				v[key] = "[REDACTED]"
			case isBulkyField(key):
				if s, ok := value.(string); ok && len(s) > 64 {
					v[key] = fmt.Sprintf("%s... (%d bytes)", s[:64], len(s))
				}
			default:
				redactFields(value)
			}
		}
	case []interface{}:
		for _, item := range v {
			redactFields(item)
		}
	}
}

// isSensitiveField checks if a field name is sensitive
func isSensitiveField(fieldName string) bool {
	lowerField := strings.ToLower(fieldName)
	for _, sensitive := range sensitiveFields {
		if strings.Contains(lowerField, sensitive) {
			return true
		}
	}
	return false
}

// isBulkyField checks if a field carries payloads too large to log
func isBulkyField(fieldName string) bool {
	lowerField := strings.ToLower(fieldName)
	for _, bulky := range bulkyFields {
		if strings.Contains(lowerField, bulky) {
			return true
		}
	}
	return false
}

// printJSONLog outputs the log entry as JSON
func printJSONLog(entry LogEntry) {
	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		fmt.Printf(`{"error": "failed to marshal log entry: %v"}%s`, err, "\n")
		return
	}
	fmt.Println(string(jsonBytes))
}
