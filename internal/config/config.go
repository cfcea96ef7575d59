package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port        int
	CORSOrigins []string

	// Gemini configuration
	GeminiAPIKey    string
	GeminiModel     string
	GeminiTimeout   time.Duration
	GeminiRateLimit float64
	GeminiRateBurst int

	// Database configuration
	PostgresURL string

	// Import pipeline configuration
	MaxImagesPerBatch int
	MaxImageSizeMB    int
	MatchCacheTTL     time.Duration
	MatchCacheSize    int

	// Image archive configuration (S3-compatible storage)
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// LoadConfig loads the application configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env file. Using environment variables.")
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	// Create and populate config
	config := &Config{
		// Server configuration
		Port:        getEnvInt("PORT", 8080),
		CORSOrigins: getEnvStringSlice("CORS_ORIGINS", []string{"*"}),

		// Gemini configuration
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnvString("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiTimeout:   time.Duration(getEnvInt("GEMINI_TIMEOUT", 60)) * time.Second,
		GeminiRateLimit: getEnvFloat("GEMINI_RATE_LIMIT_RPS", 2),
		GeminiRateBurst: getEnvInt("GEMINI_RATE_LIMIT_BURST", 5),

		// Database configuration
		PostgresURL: os.Getenv("POSTGRES_DB_URL"),

		// Import pipeline configuration
		MaxImagesPerBatch: getEnvInt("MAX_IMAGES_PER_BATCH", 20),
		MaxImageSizeMB:    getEnvInt("MAX_IMAGE_SIZE_MB", 10),
		MatchCacheTTL:     time.Duration(getEnvInt("MATCH_CACHE_TTL", 300)) * time.Second,
		MatchCacheSize:    getEnvInt("MATCH_CACHE_SIZE", 500),

		// Image archive configuration
		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    getEnvString("S3_REGION", "us-east-1"),
		S3Bucket:    getEnvString("S3_BUCKET", "invoice-images"),
		S3AccessKey: os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey: os.Getenv("S3_SECRET_KEY"),
	}

	// Validate critical configuration
	validateConfig(config)

	return config, nil
}

// validateConfig checks if critical configuration values are set and logs warnings if they're missing
func validateConfig(config *Config) {
	if config.GeminiAPIKey == "" {
		log.Println("Warning: No Gemini API key provided. Extraction requests will fail.")
	}

	if config.PostgresURL == "" {
		log.Println("Warning: No Postgres URL provided. Catalog matching will fall back to in-memory search.")
	}

	if config.S3AccessKey == "" || config.S3SecretKey == "" {
		log.Println("Warning: No S3 credentials provided. Image archival is disabled.")
	}
}

// getEnvInt gets an integer from an environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// getEnvFloat gets a float from an environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %g", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// getEnvString gets a string from an environment variable with a default value
func getEnvString(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvStringSlice gets a string slice from a comma-separated environment variable
func getEnvStringSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}
