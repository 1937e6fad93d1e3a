package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/moviemind/movie-rag/internal/domain"
	"github.com/moviemind/movie-rag/internal/port"
)

// windowPageSize is the keyset pagination step for history reads. Window
// keeps fetching older pages until the token budget is provably exhausted,
// so a long history is never truncated at a fixed row cap.
const windowPageSize = 200

// ChatStore implements port.MemoryStore on a Postgres chat_history table.
// Append order is the bigserial id, which is the true order key; timestamps
// are informational only.
type ChatStore struct {
	db *sql.DB
}

// NewChatStore opens a connection pool and verifies connectivity.
func NewChatStore(databaseURL string) (*ChatStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &ChatStore{db: db}, nil
}

// Close closes the database connection.
func (s *ChatStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the chat_history table and its index when absent.
func (s *ChatStore) EnsureSchema(ctx context.Context) error {
	createTable := `
		CREATE TABLE IF NOT EXISTS chat_history (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	if _, err := s.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("create chat_history: %w: %w", port.ErrStorageUnavailable, err)
	}

	createIndex := `CREATE INDEX IF NOT EXISTS chat_history_user_idx ON chat_history (user_id, id)`
	if _, err := s.db.ExecContext(ctx, createIndex); err != nil {
		return fmt.Errorf("create chat_history index: %w: %w", port.ErrStorageUnavailable, err)
	}
	return nil
}

// Append atomically adds one turn to the user's history.
func (s *ChatStore) Append(ctx context.Context, userID string, turn domain.ChatTurn) error {
	query := `INSERT INTO chat_history (user_id, role, content) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, userID, turn.Role, turn.Content); err != nil {
		return fmt.Errorf("append turn: %w: %w", port.ErrStorageUnavailable, err)
	}
	return nil
}

// Window returns the trailing turns for userID that fit tokenBudget, oldest
// first. A failed read is reported, never treated as empty history.
func (s *ChatStore) Window(ctx context.Context, userID string, tokenBudget int) ([]domain.ChatTurn, error) {
	newestFirst, err := collectWindow(func(beforeID int64) ([]domain.ChatTurn, error) {
		return s.readPage(ctx, userID, beforeID)
	}, tokenBudget)
	if err != nil {
		return nil, err
	}
	return trimWindow(newestFirst, tokenBudget), nil
}

// collectWindow pages through a history newest-first until the accumulated
// token estimate exceeds the budget or the history runs out. Scanning past
// the budget is pointless: no older turn can still fit. The exact eviction
// rule is applied afterwards by trimWindow.
func collectWindow(readPage func(beforeID int64) ([]domain.ChatTurn, error), tokenBudget int) ([]domain.ChatTurn, error) {
	var newestFirst []domain.ChatTurn
	var used int
	beforeID := int64(math.MaxInt64)

	for {
		page, err := readPage(beforeID)
		if err != nil {
			return nil, err
		}
		for _, t := range page {
			used += estimateTokens(t.Content)
		}
		newestFirst = append(newestFirst, page...)
		if used > tokenBudget || len(page) < windowPageSize {
			return newestFirst, nil
		}
		beforeID = page[len(page)-1].Seq
	}
}

// readPage fetches up to windowPageSize turns older than beforeID, newest
// first.
func (s *ChatStore) readPage(ctx context.Context, userID string, beforeID int64) ([]domain.ChatTurn, error) {
	query := `SELECT id, role, content, created_at
	          FROM chat_history WHERE user_id = $1 AND id < $2
	          ORDER BY id DESC LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, userID, beforeID, windowPageSize)
	if err != nil {
		return nil, fmt.Errorf("load window: %w: %w", port.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var page []domain.ChatTurn
	for rows.Next() {
		var t domain.ChatTurn
		if err := rows.Scan(&t.Seq, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w: %w", port.ErrStorageUnavailable, err)
		}
		page = append(page, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load window: %w: %w", port.ErrStorageUnavailable, err)
	}
	return page, nil
}

// Clear removes all history for userID.
func (s *ChatStore) Clear(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_history WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear history: %w: %w", port.ErrStorageUnavailable, err)
	}
	return nil
}

// trimWindow applies FIFO eviction to a newest-first turn list: it keeps
// the most recent turns whose combined token estimate fits the budget and
// returns them in append order. The most recent turn survives even when it
// alone exceeds the budget, so an oversized last answer never empties the
// window.
func trimWindow(newestFirst []domain.ChatTurn, tokenBudget int) []domain.ChatTurn {
	var kept int
	var used int
	for _, t := range newestFirst {
		cost := estimateTokens(t.Content)
		if kept > 0 && used+cost > tokenBudget {
			break
		}
		kept++
		used += cost
	}

	window := make([]domain.ChatTurn, kept)
	for i := 0; i < kept; i++ {
		window[kept-1-i] = newestFirst[i]
	}
	return window
}

// estimateTokens approximates token count by whitespace-separated words.
// The budget configured in CHAT_TOKEN_LIMIT is interpreted in these units.
func estimateTokens(content string) int {
	return len(strings.Fields(content))
}
