package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/moviemind/movie-rag/internal/adapter/ai"
	"github.com/moviemind/movie-rag/internal/adapter/store"
	"github.com/moviemind/movie-rag/internal/domain"
	"github.com/moviemind/movie-rag/internal/pipeline"
	"github.com/moviemind/movie-rag/pkg/config"
)

// embedBatchSize bounds how many chunk texts go into one embedding call.
const embedBatchSize = 32

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if cfg.DatasetPath == "" {
		slog.Error("missing required configuration: DATASET_PATH")
		os.Exit(1)
	}

	slog.Info("📥 Starting ingestion",
		"dataset", cfg.DatasetPath,
		"collection", cfg.Collection,
		"chunk_size", cfg.ChunkSize,
		"chunk_overlap", cfg.ChunkOverlap,
	)

	ctx := context.Background()

	// ── Load and split ───────────────────────────────────────────────────
	documents, err := pipeline.LoadCSV(cfg.DatasetPath)
	if err != nil {
		slog.Error("failed to load dataset", "error", err)
		os.Exit(1)
	}
	slog.Info("loaded documents", "count", len(documents))

	splitter, err := pipeline.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		slog.Error("invalid chunking configuration", "error", err)
		os.Exit(1)
	}
	chunks := splitter.Split(documents)
	slog.Info("split into chunks", "count", len(chunks))

	// ── Prepare collection ───────────────────────────────────────────────
	vectorIndex := store.NewQdrantIndex(store.QdrantConfig{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.Collection,
		Timeout:    time.Minute,
	})

	existed, err := vectorIndex.EnsureCollection(ctx, cfg.EmbeddingDimension)
	if err != nil {
		slog.Error("failed to ensure collection", "error", err)
		os.Exit(1)
	}
	slog.Info("collection ready", "collection", cfg.Collection, "existed", existed)

	// ── Embed and upsert ─────────────────────────────────────────────────
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

	start := time.Now()
	for i := 0; i < len(chunks); i += embedBatchSize {
		end := min(i+embedBatchSize, len(chunks))
		batch := chunks[i:end]

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		vectors, err := ollamaAI.EmbedBatch(ctx, texts)
		if err != nil {
			slog.Error("embedding batch failed", "offset", i, "error", err)
			os.Exit(1)
		}

		ready := make([]domain.Chunk, len(batch))
		for j, c := range batch {
			c.Vector = vectors[j]
			ready[j] = c
		}

		if err := vectorIndex.Upsert(ctx, ready); err != nil {
			slog.Error("upsert batch failed", "offset", i, "error", err)
			os.Exit(1)
		}

		slog.Info("indexed batch", "done", end, "total", len(chunks))
	}

	slog.Info("✅ Ingestion complete",
		"chunks", len(chunks),
		"elapsed", time.Since(start).Round(time.Second).String(),
	)
}
