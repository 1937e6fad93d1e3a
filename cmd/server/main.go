package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/moviemind/movie-rag/internal/adapter/ai"
	"github.com/moviemind/movie-rag/internal/adapter/store"
	"github.com/moviemind/movie-rag/internal/handler"
	"github.com/moviemind/movie-rag/internal/service"
	"github.com/moviemind/movie-rag/pkg/config"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	slog.Info("🎬 Starting movie RAG service",
		"port", cfg.Port,
		"collection", cfg.Collection,
		"embed_model", cfg.OllamaEmbedModel,
		"chat_model", cfg.OllamaChatModel,
	)

	// ── Conversation memory (Postgres) ───────────────────────────────────
	chatStore, err := store.NewChatStore(cfg.DatabaseURL())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer chatStore.Close()

	if err := chatStore.EnsureSchema(context.Background()); err != nil {
		slog.Error("failed to prepare chat history schema", "error", err)
		os.Exit(1)
	}

	// ── Vector index (Qdrant) ────────────────────────────────────────────
	// The collection itself is created by the ingest binary; searching an
	// absent collection is reported as collection_not_found, not created
	// on the fly.
	vectorIndex := store.NewQdrantIndex(store.QdrantConfig{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.Collection,
	})

	// ── AI provider (Ollama) ─────────────────────────────────────────────
	ollamaAI := ai.NewOllamaProvider(
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaEmbedURL,
			Model:   cfg.OllamaEmbedModel,
			Token:   cfg.OllamaEmbedToken,
		},
		ai.OllamaEndpointConfig{
			BaseURL: cfg.OllamaChatURL,
			Model:   cfg.OllamaChatModel,
			Token:   cfg.OllamaChatToken,
		},
	)

	// ── Chat engine ──────────────────────────────────────────────────────
	engine := service.NewChatEngine(ollamaAI, vectorIndex, chatStore, service.Config{
		TopK:        cfg.RetrievalTopK,
		TokenBudget: cfg.ChatTokenLimit,
	})

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:     cfg.AppName,
		ReadTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
	}))

	api := app.Group("/api")

	api.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": cfg.AppName,
		})
	})

	handler.NewChatHandler(engine).Register(api)
	handler.NewSearchHandler(engine).Register(api)

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
