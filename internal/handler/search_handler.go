package handler

import (
	"bufio"
	"context"
	"fmt"

	"github.com/gofiber/fiber/v3"

	"github.com/moviemind/movie-rag/internal/domain"
)

// defaultSearchLimit is used when a request omits the limit field.
const defaultSearchLimit = 5

// SearchService is the slice of the chat engine the search routes need.
type SearchService interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedChunk, error)
}

// SearchHandler handles pure-retrieval search, with no conversation memory
// involved.
type SearchHandler struct {
	engine SearchService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(engine SearchService) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// Register sets up search routes.
func (h *SearchHandler) Register(router fiber.Router) {
	search := router.Group("/search")
	search.Post("/", h.Search)
	search.Post("/stream", h.SearchStream)
}

// Search handles a blocking vector search.
func (h *SearchHandler) Search(c fiber.Ctx) error {
	resp, failure := h.search(c)
	if resp == nil {
		return failure
	}
	return c.JSON(resp)
}

// SearchStream returns the same result as Search, framed as SSE with a
// [DONE] sentinel for clients consuming the streaming surface.
func (h *SearchHandler) SearchStream(c fiber.Ctx) error {
	resp, failure := h.search(c)
	if resp == nil {
		return failure
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("Connection", "keep-alive")

	payload := *resp
	return c.SendStreamWriter(func(w *bufio.Writer) {
		if err := writeFrame(w, payload); err != nil {
			return
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
		w.Flush()
	})
}

// search validates the request and runs retrieval. A nil response means
// the failure was already written; the returned error is the write result.
func (h *SearchHandler) search(c fiber.Ctx) (*searchResponse, error) {
	var body searchRequest
	if err := c.Bind().JSON(&body); err != nil {
		return nil, validationError(c, "invalid request body")
	}
	if body.Query == "" {
		return nil, validationError(c, "query is required")
	}

	limit := defaultSearchLimit
	if body.Limit != nil {
		limit = *body.Limit
	}
	if limit <= 0 {
		return nil, validationError(c, "limit must be positive, got %d", limit)
	}

	chunks, err := h.engine.Retrieve(c.Context(), body.Query, limit)
	if err != nil {
		return nil, writeError(c, err)
	}

	results := make([]searchResult, len(chunks))
	for i, chunk := range chunks {
		results[i] = searchResult{
			NodeID:   chunk.ID,
			Text:     chunk.Text,
			Score:    chunk.Score,
			Metadata: chunk.Metadata,
		}
	}

	return &searchResponse{
		Results:      results,
		Query:        body.Query,
		TotalResults: len(results),
	}, nil
}
