package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/moviemind/movie-rag/internal/domain"
	"github.com/moviemind/movie-rag/internal/port"
)

// Pipeline step names reported in the error envelope.
const (
	stepRetrieval   = "retrieval"
	stepComposition = "composition"
	stepGeneration  = "generation"
	stepPersistence = "persistence"
)

// persistTimeout bounds the memory append that runs after generation has
// already completed.
const persistTimeout = 10 * time.Second

// Config holds the tunable knobs of the chat engine.
type Config struct {
	TopK        int // retrieval depth, default 5
	TokenBudget int // conversation window budget, default 5000
}

// ChatEngine orchestrates one chat turn: retrieval, prompt composition,
// generation, and history persistence. The expensive collaborators are
// constructed once at process start and shared across turns; the engine
// itself holds no per-turn state beyond the per-user serialization locks.
type ChatEngine struct {
	ai     port.AIProvider
	index  port.VectorIndex
	memory port.MemoryStore
	cfg    Config

	userLocks sync.Map // userID -> *sync.Mutex; grows with user cardinality, never reaped
}

// NewChatEngine creates a chat engine over the given collaborators.
func NewChatEngine(ai port.AIProvider, index port.VectorIndex, memory port.MemoryStore, cfg Config) *ChatEngine {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.TokenBudget <= 0 {
		cfg.TokenBudget = 5000
	}
	return &ChatEngine{ai: ai, index: index, memory: memory, cfg: cfg}
}

// Retrieve embeds the query and returns the top-k most similar chunks.
// It is stateless: no conversation memory is read or written.
func (e *ChatEngine) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, error) {
	vector, err := e.ai.Embed(ctx, query)
	if err != nil {
		return nil, &port.StepError{Step: stepRetrieval, Err: fmt.Errorf("embed query: %w", err)}
	}

	chunks, err := e.index.Search(ctx, vector, topK)
	if err != nil {
		return nil, &port.StepError{Step: stepRetrieval, Err: fmt.Errorf("search index: %w", err)}
	}
	return chunks, nil
}

// Chat runs one blocking turn for userID and returns the full response.
func (e *ChatEngine) Chat(ctx context.Context, userID, message string) (string, error) {
	unlock := e.lockUser(userID)
	defer unlock()

	systemPrompt, history, err := e.prepareTurn(ctx, userID, message)
	if err != nil {
		return "", err
	}

	response, err := e.ai.Generate(ctx, systemPrompt, message, history)
	if err != nil {
		return "", &port.StepError{Step: stepGeneration, Err: err}
	}

	if err := e.persistTurn(ctx, userID, message, response); err != nil {
		return response, err
	}
	return response, nil
}

// ChatStream runs one streaming turn for userID. Retrieval and composition
// failures are returned immediately; generation and persistence failures
// arrive as the terminal delta on the stream. Tokens are forwarded as they
// are produced while the full text is assembled for persistence, which is
// skipped entirely when the stream is cancelled or errors mid-flight.
func (e *ChatEngine) ChatStream(ctx context.Context, userID, message string) (<-chan domain.StreamDelta, error) {
	unlock := e.lockUser(userID)

	systemPrompt, history, err := e.prepareTurn(ctx, userID, message)
	if err != nil {
		unlock()
		return nil, err
	}

	inner, err := e.ai.GenerateStream(ctx, systemPrompt, message, history)
	if err != nil {
		unlock()
		return nil, &port.StepError{Step: stepGeneration, Err: err}
	}

	out := make(chan domain.StreamDelta)
	go func() {
		defer close(out)
		defer unlock()

		var full strings.Builder
		for delta := range inner {
			if delta.Err != nil {
				out <- domain.StreamDelta{Err: &port.StepError{Step: stepGeneration, Err: delta.Err}}
				return
			}
			if delta.Done {
				if err := e.persistTurn(ctx, userID, message, full.String()); err != nil {
					out <- domain.StreamDelta{Err: err}
					return
				}
				out <- domain.StreamDelta{Done: true}
				return
			}

			full.WriteString(delta.Content)
			select {
			case out <- delta:
			case <-ctx.Done():
				// Drain the adapter stream so its goroutine can finish
				// delivering buffered deltas and exit.
				go func() {
					for range inner {
					}
				}()
				out <- domain.StreamDelta{Err: &port.StepError{
					Step: stepGeneration,
					Err:  fmt.Errorf("%w: %w", port.ErrGenerationInterrupted, ctx.Err()),
				}}
				return
			}
		}

		// The adapter closed the stream without a terminal event.
		out <- domain.StreamDelta{Err: &port.StepError{
			Step: stepGeneration,
			Err:  fmt.Errorf("%w: stream ended without completion", port.ErrGenerationInterrupted),
		}}
	}()

	return out, nil
}

// prepareTurn executes the retrieval and composition steps shared by the
// blocking and streaming paths.
func (e *ChatEngine) prepareTurn(ctx context.Context, userID, message string) (string, []domain.ChatTurn, error) {
	chunks, err := e.Retrieve(ctx, message, e.cfg.TopK)
	if err != nil {
		return "", nil, err
	}

	history, err := e.memory.Window(ctx, userID, e.cfg.TokenBudget)
	if err != nil {
		return "", nil, &port.StepError{Step: stepComposition, Err: fmt.Errorf("load window: %w", err)}
	}

	slog.Debug("turn composed", "user_id", userID, "retrieved", len(chunks), "history", len(history))
	return composePrompt(chunks), history, nil
}

// persistTurn appends the user's message and the assistant's full response,
// in that order. It runs after generation has already succeeded, so it is
// detached from request cancellation: the caller got an answer and history
// should record it. A failure here is reported as PersistenceFailed,
// distinct from a generation failure.
func (e *ChatEngine) persistTurn(ctx context.Context, userID, message, response string) error {
	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := e.memory.Append(persistCtx, userID, domain.ChatTurn{Role: domain.RoleUser, Content: message}); err != nil {
		return &port.StepError{Step: stepPersistence, Err: fmt.Errorf("%w: %w", port.ErrPersistenceFailed, err)}
	}
	if err := e.memory.Append(persistCtx, userID, domain.ChatTurn{Role: domain.RoleAssistant, Content: response}); err != nil {
		return &port.StepError{Step: stepPersistence, Err: fmt.Errorf("%w: %w", port.ErrPersistenceFailed, err)}
	}
	return nil
}

// lockUser serializes turns sharing a user_id so concurrent window reads
// and appends cannot interleave. Turns for distinct users proceed in
// parallel.
func (e *ChatEngine) lockUser(userID string) func() {
	mu, _ := e.userLocks.LoadOrStore(userID, &sync.Mutex{})
	lock := mu.(*sync.Mutex)
	lock.Lock()
	return lock.Unlock
}
