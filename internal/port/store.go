package port

import (
	"context"

	"github.com/moviemind/movie-rag/internal/domain"
)

// VectorIndex owns one named collection of embedded chunks and answers
// top-k similarity queries over it.
type VectorIndex interface {
	// EnsureCollection creates the collection when absent and reports
	// whether it already existed. It never recreates an existing
	// collection.
	EnsureCollection(ctx context.Context, dimension int) (existed bool, err error)

	// Upsert writes chunks (with vectors) keyed by chunk ID, overwriting
	// existing entries.
	Upsert(ctx context.Context, chunks []domain.Chunk) error

	// Delete removes entries by chunk ID.
	Delete(ctx context.Context, ids []string) error

	// Search returns up to topK entries by descending similarity.
	// topK <= 0 is a validation error, reported before any I/O.
	Search(ctx context.Context, vector []float32, topK int) ([]domain.RetrievedChunk, error)
}

// MemoryStore owns per-user, append-only conversation history.
type MemoryStore interface {
	// Append atomically adds one turn to the user's history.
	Append(ctx context.Context, userID string, turn domain.ChatTurn) error

	// Window returns the trailing turns for userID whose combined token
	// estimate fits tokenBudget, oldest first. The most recent turn is
	// always included even when it alone exceeds the budget.
	Window(ctx context.Context, userID string, tokenBudget int) ([]domain.ChatTurn, error)

	// Clear removes all history for userID. Administrative; not exposed
	// on the request boundary.
	Clear(ctx context.Context, userID string) error
}
