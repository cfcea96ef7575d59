package gemini

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

// APIError represents an error that occurred while talking to the Gemini API
type APIError struct {
	Op  string // Operation that caused the error
	Err error  // Original error
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Err == nil {
		return "gemini error: " + e.Op
	}
	return "gemini error: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *APIError) Unwrap() error {
	return e.Err
}

// GenerateConfig controls a single generation call.
type GenerateConfig struct {
	Temperature     float32
	MaxOutputTokens int32
}

// ExtractionConfig is the generation config used for invoice extraction.
// Low temperature for accuracy, high token ceiling so responses aren't
// truncated mid-object.
func ExtractionConfig() GenerateConfig {
	return GenerateConfig{Temperature: 0.1, MaxOutputTokens: 8192}
}

// AutocompleteConfig is the generation config used for autocomplete.
func AutocompleteConfig() GenerateConfig {
	return GenerateConfig{Temperature: 0.3, MaxOutputTokens: 2048}
}

// Config holds configuration for the Gemini client
type Config struct {
	APIKey       string
	ModelName    string
	Timeout      time.Duration
	RateLimitRPS float64
	RateBurst    int
}

// DefaultConfig returns a default configuration for the Gemini client
func DefaultConfig() *Config {
	return &Config{
		ModelName:    "gemini-1.5-flash",
		Timeout:      60 * time.Second,
		RateLimitRPS: 2,
		RateBurst:    5,
	}
}

// Client wraps the Gemini generative API for vision extraction and
// text-only autocomplete calls. Calls are rate limited client-side and
// bounded by a per-call timeout so a hung request cannot stall a batch.
type Client struct {
	apiKey    string
	modelName string
	timeout   time.Duration
	limiter   *rate.Limiter

	initOnce sync.Once
	initErr  error
	genai    *genai.Client
}

// NewClient creates a new Gemini client. The underlying API client is
// created lazily on first use so a missing key degrades per call instead
// of failing startup.
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	rps := config.RateLimitRPS
	if rps <= 0 {
		rps = 2
	}
	burst := config.RateBurst
	if burst <= 0 {
		burst = 5
	}

	return &Client{
		apiKey:    config.APIKey,
		modelName: config.ModelName,
		timeout:   timeout,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// ModelName returns the configured model identifier.
func (c *Client) ModelName() string {
	return c.modelName
}

func (c *Client) ensureClient(ctx context.Context) error {
	if c.apiKey == "" {
		return &APIError{
			Op:  "validate_configuration",
			Err: fmt.Errorf("Gemini API key is not configured. Please set GEMINI_API_KEY environment variable"),
		}
	}

	c.initOnce.Do(func() {
		client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
		if err != nil {
			c.initErr = &APIError{Op: "create_client", Err: err}
			return
		}
		c.genai = client
	})

	return c.initErr
}

// GenerateVision sends a prompt plus one image to the model and returns
// the raw text reply.
func (c *Client) GenerateVision(ctx context.Context, prompt string, image []byte, mimeType string, cfg GenerateConfig) (string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return "", err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &APIError{Op: "rate_limit_wait", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.model(cfg)
	resp, err := model.GenerateContent(ctx,
		genai.Text(prompt),
		genai.ImageData(imageFormat(mimeType), image),
	)
	if err != nil {
		return "", &APIError{Op: "generate_vision", Err: err}
	}

	return responseText(resp)
}

// GenerateText sends a text-only prompt to the model and returns the
// raw text reply. Used for autocomplete.
func (c *Client) GenerateText(ctx context.Context, prompt string, cfg GenerateConfig) (string, error) {
	if err := c.ensureClient(ctx); err != nil {
		return "", err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", &APIError{Op: "rate_limit_wait", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.model(cfg)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", &APIError{Op: "generate_text", Err: err}
	}

	return responseText(resp)
}

func (c *Client) model(cfg GenerateConfig) *genai.GenerativeModel {
	model := c.genai.GenerativeModel(c.modelName)
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(cfg.Temperature)
	if cfg.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(cfg.MaxOutputTokens)
	}
	return model
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", &APIError{Op: "check_response_candidates", Err: fmt.Errorf("no candidates in response")}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", &APIError{Op: "check_response_text", Err: fmt.Errorf("empty text response")}
	}
	return out, nil
}

// imageFormat converts a MIME type into the bare format genai expects
// (e.g. "image/jpeg" -> "jpeg").
func imageFormat(mimeType string) string {
	format := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
	if format == "jpg" {
		format = "jpeg"
	}
	if format == "" {
		format = "jpeg"
	}
	return format
}
