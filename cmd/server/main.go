package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jcalderon/inventory-import-service/internal/config"
	"github.com/jcalderon/inventory-import-service/internal/database"
	"github.com/jcalderon/inventory-import-service/internal/gemini"
	"github.com/jcalderon/inventory-import-service/internal/handler"
	"github.com/jcalderon/inventory-import-service/internal/prompt"
	"github.com/jcalderon/inventory-import-service/internal/repository"
	"github.com/jcalderon/inventory-import-service/internal/server"
	"github.com/jcalderon/inventory-import-service/internal/service"
	"github.com/jcalderon/inventory-import-service/internal/storage"
)

// @title Inventory Import Service API
// @version 1.0
// @description AI-assisted invoice extraction and catalog matching for inventory management
// @BasePath /
func main() {
	// Load configuration
	log.Println("Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize Gemini client for extraction and autocomplete
	geminiClient := gemini.NewClient(&gemini.Config{
		APIKey:       cfg.GeminiAPIKey,
		ModelName:    cfg.GeminiModel,
		Timeout:      cfg.GeminiTimeout,
		RateLimitRPS: cfg.GeminiRateLimit,
		RateBurst:    cfg.GeminiRateBurst,
	})

	promptRenderer, err := prompt.NewRenderer()
	if err != nil {
		log.Fatalf("Failed to parse prompt templates: %v", err)
	}

	// Connect to the catalog database. A missing database degrades
	// matching to the in-memory fallback instead of failing startup.
	var catalogRepo repository.CatalogRepository
	if cfg.PostgresURL != "" {
		db, err := database.NewPostgresDB(context.Background(), cfg.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		catalogRepo = repository.NewPostgresCatalogRepository(db.GetPool())
		log.Println("Connected to catalog database")
	} else {
		log.Println("No database configured, catalog matching uses in-memory fallback")
	}

	// Create extraction service
	log.Println("Creating AI extraction service...")
	extractionService := service.NewExtractionService(geminiClient, promptRenderer, service.ExtractionConfig{
		MaxImagesPerBatch: cfg.MaxImagesPerBatch,
		MaxImageSizeMB:    cfg.MaxImageSizeMB,
	})

	// Attach the image archiver when S3 credentials are present
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		archiver, err := storage.NewS3Archiver(&storage.Config{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			AccessKeySecret: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
		})
		if err != nil {
			log.Printf("Image archival disabled: %v", err)
		} else {
			extractionService.SetArchiver(archiver)
			log.Printf("Archiving invoice images to bucket %s", cfg.S3Bucket)
		}
	}

	// Create matching service with its result cache
	var searcher service.CatalogSearcher
	if catalogRepo != nil {
		searcher = catalogRepo
	}
	matchCache := service.NewMatchCache(cfg.MatchCacheTTL, cfg.MatchCacheSize, nil)
	matchingService := service.NewMatchingService(searcher, matchCache)

	// Create handler
	importHandler := handler.NewImportHandler(extractionService, matchingService, catalogRepo, geminiClient)

	// Create and configure server
	log.Println("Configuring server...")
	appServer := server.NewServer(cfg)
	appServer.RegisterImportRoutes(importHandler)

	// Start server (blocking call)
	log.Printf("Starting server on port %d...", cfg.Port)
	if err := appServer.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server shutdown complete")
}
