package port

import (
	"context"

	"github.com/moviemind/movie-rag/internal/domain"
)

// AIProvider abstracts the AI backend for embeddings and chat generation.
// Implementations can target Ollama or any compatible API.
type AIProvider interface {
	// ModelName returns the identifier of the generation model being used.
	ModelName() string

	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call,
	// one vector per input in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Generate sends a composed prompt with conversation history and
	// returns the full response text.
	Generate(ctx context.Context, systemPrompt, userPrompt string, history []domain.ChatTurn) (string, error)

	// GenerateStream sends a composed prompt and streams the response.
	// The stream ends with exactly one terminal StreamDelta: Done for a
	// clean completion, Err for an interrupted one.
	GenerateStream(ctx context.Context, systemPrompt, userPrompt string, history []domain.ChatTurn) (<-chan domain.StreamDelta, error)
}
