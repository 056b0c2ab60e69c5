package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/flowscribe-dev/flowscribe/db"
	"github.com/flowscribe-dev/flowscribe/internal/ai"
	"github.com/flowscribe-dev/flowscribe/internal/apperrors"
	"github.com/flowscribe-dev/flowscribe/internal/config"
	"github.com/flowscribe-dev/flowscribe/internal/handlers"
	"github.com/flowscribe-dev/flowscribe/internal/router"
	"github.com/flowscribe-dev/flowscribe/internal/scheduler"
	"github.com/flowscribe-dev/flowscribe/internal/undo"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	cfg := config.Load()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	apperrors.SetEnvironment(cfg.Environment)
	log.Printf("Configuration loaded: %v", cfg.SafeSummary())

	if err := db.ConnectDatabase(cfg.DSN()); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx := context.Background()

	aiService := ai.NewAIService(cfg.ProhibitedTermsMode)

	if err := aiService.Initialize(ctx, cfg.OpenAIAPIKey); err != nil {
		log.Fatalf("Failed to initialize AI service: %v", err)
	}

	claudeService := ai.NewClaudeService(cfg.ClaudeModel, cfg.ClaudeMaxTokens, cfg.ClaudeTemperature)

	if cfg.AnthropicAPIKey != "" {
		if err := claudeService.Initialize(ctx, cfg.AnthropicAPIKey); err != nil {
			log.Fatalf("Failed to initialize Claude service: %v", err)
		}
	} else {
		log.Println("ANTHROPIC_API_KEY not set, incremental generation disabled")
	}

	var undoStore undo.Store = undo.NewMemoryStore()

	if cfg.UndoStore == config.UndoStoreDatabase {
		undoStore = undo.NewGormStore(db.DB)
	}

	maintenance := scheduler.NewScheduler()
	defer maintenance.Stop()

	if cfg.UndoRetention > 0 {
		retention := cfg.UndoRetention
		maintenance.AddJob("undo-retention-sweep", time.Hour, func(context.Context) {
			swept, err := undoStore.Sweep(time.Now().Add(-retention))
			if err != nil {
				log.Printf("Undo retention sweep failed: %v", err)
				return
			}
			if swept > 0 {
				log.Printf("Undo retention sweep removed %d expired entries", swept)
			}
		})
	}

	flowHandler := handlers.NewFlowHandler(aiService, claudeService, undoStore)

	r := router.NewRouter(flowHandler, cfg.Environment, aiService)

	log.Printf("Starting server on port %s", cfg.Port)

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
