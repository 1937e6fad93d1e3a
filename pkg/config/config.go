package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment
// variables.
type Config struct {
	// Server
	Port    string
	AppName string

	// Qdrant
	QdrantURL    string
	QdrantAPIKey string
	Collection   string

	// Ollama — embed endpoint
	OllamaEmbedURL   string
	OllamaEmbedModel string
	OllamaEmbedToken string

	// Ollama — chat endpoint
	OllamaChatURL   string
	OllamaChatModel string
	OllamaChatToken string

	EmbeddingDimension int

	// Postgres (conversation history)
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string

	// Chat engine knobs
	ChatTokenLimit int
	RetrievalTopK  int

	// Ingestion
	ChunkSize    int
	ChunkOverlap int
	DatasetPath  string // required by the ingest binary only
}

// requiredKeys have no sensible default; their absence is a startup-time
// fatal error, not something deferred to first use.
var requiredKeys = []string{
	"COLLECTION_NAME",
	"OLLAMA_EMBED_MODEL",
	"OLLAMA_CHAT_MODEL",
	"POSTGRES_DB",
	"POSTGRES_USER",
	"POSTGRES_PASSWORD",
}

// Load reads configuration from environment variables. It fails listing
// every missing required key at once.
func Load() (*Config, error) {
	var missing []string
	for _, key := range requiredKeys {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return &Config{
		Port:    envOrDefault("PORT", "8000"),
		AppName: envOrDefault("APP_NAME", "imdb-movie-rag"),

		QdrantURL:    envOrDefault("QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey: os.Getenv("QDRANT_API_KEY"),
		Collection:   os.Getenv("COLLECTION_NAME"),

		OllamaEmbedURL:   envOrDefault("OLLAMA_EMBED_URL", envOrDefault("OLLAMA_BASE_URL", "http://localhost:11434")),
		OllamaEmbedModel: os.Getenv("OLLAMA_EMBED_MODEL"),
		OllamaEmbedToken: os.Getenv("OLLAMA_EMBED_TOKEN"),

		OllamaChatURL:   envOrDefault("OLLAMA_CHAT_URL", envOrDefault("OLLAMA_BASE_URL", "http://localhost:11434")),
		OllamaChatModel: os.Getenv("OLLAMA_CHAT_MODEL"),
		OllamaChatToken: os.Getenv("OLLAMA_CHAT_TOKEN"),

		EmbeddingDimension: envOrDefaultInt("EMBEDDING_DIMENSION", 768),

		PostgresHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort:     envOrDefault("POSTGRES_PORT", "5432"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),

		ChatTokenLimit: envOrDefaultInt("CHAT_TOKEN_LIMIT", 5000),
		RetrievalTopK:  envOrDefaultInt("RETRIEVAL_TOP_K", 5),

		ChunkSize:    envOrDefaultInt("CHUNK_SIZE", 1024),
		ChunkOverlap: envOrDefaultInt("CHUNK_OVERLAP", 200),
		DatasetPath:  os.Getenv("DATASET_PATH"),
	}, nil
}

// DatabaseURL assembles the Postgres connection string for lib/pq.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}
