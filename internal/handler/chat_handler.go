package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/moviemind/movie-rag/internal/domain"
)

// ChatService is the slice of the chat engine the chat routes need.
type ChatService interface {
	Chat(ctx context.Context, userID, message string) (string, error)
	ChatStream(ctx context.Context, userID, message string) (<-chan domain.StreamDelta, error)
}

// ChatHandler handles the blocking and streaming chat endpoints.
type ChatHandler struct {
	engine ChatService
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(engine ChatService) *ChatHandler {
	return &ChatHandler{engine: engine}
}

// Register sets up chat routes.
func (h *ChatHandler) Register(router fiber.Router) {
	chat := router.Group("/chat")
	chat.Post("/", h.Chat)
	chat.Post("/stream", h.ChatStream)
}

// Chat handles a blocking chat turn.
func (h *ChatHandler) Chat(c fiber.Ctx) error {
	var body chatRequest
	if err := c.Bind().JSON(&body); err != nil {
		return validationError(c, "invalid request body")
	}
	if body.Message == "" {
		return validationError(c, "message is required")
	}
	if body.UserID == "" {
		return validationError(c, "user_id is required")
	}

	content, err := h.engine.Chat(c.Context(), body.UserID, body.Message)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(chatResponse{
		Content:   content,
		UserID:    body.UserID,
		MessageID: uuid.New().String(),
	})
}

// ChatStream handles a streaming chat turn over Server-Sent Events: one
// content frame per token, a [DONE] sentinel on clean completion, or an
// error frame in place of further content. A client disconnect cancels the
// turn, which skips history persistence.
func (h *ChatHandler) ChatStream(c fiber.Ctx) error {
	var body chatRequest
	if err := c.Bind().JSON(&body); err != nil {
		return validationError(c, "invalid request body")
	}
	if body.Message == "" {
		return validationError(c, "message is required")
	}
	if body.UserID == "" {
		return validationError(c, "user_id is required")
	}

	// The stream writer outlives the handler, and fiber recycles the
	// request context once the handler returns, so the turn runs on a
	// detached context cancelled from the writer.
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := h.engine.ChatStream(ctx, body.UserID, body.Message)
	if err != nil {
		cancel()
		return writeError(c, err)
	}

	userID := body.UserID
	messageID := uuid.New().String()

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for delta := range stream {
			switch {
			case delta.Err != nil:
				writeFrame(w, streamErrorFrame{
					Error:   "An error occurred while processing your request",
					Details: delta.Err.Error(),
				})
				return
			case delta.Done:
				fmt.Fprint(w, "data: [DONE]\n\n")
				w.Flush()
				return
			default:
				frame := chatResponse{Content: delta.Content, UserID: userID, MessageID: messageID}
				if err := writeFrame(w, frame); err != nil {
					// Client gone: cancel the turn and drain the
					// stream so the engine goroutine can exit.
					cancel()
					for range stream {
					}
					return
				}
			}
		}
	})
}

// writeFrame sends one SSE data frame and flushes it. The flush error is
// the disconnect signal.
func writeFrame(w *bufio.Writer, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}
