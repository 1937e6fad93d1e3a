package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/moviemind/movie-rag/internal/domain"
	"github.com/moviemind/movie-rag/internal/port"
)

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// QdrantIndex implements port.VectorIndex against the Qdrant REST API for
// one named collection. Collections are created with cosine distance;
// Qdrant returns hits in descending similarity with stable ordering, which
// Search preserves.
type QdrantIndex struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

// NewQdrantIndex creates a Qdrant-backed vector index.
func NewQdrantIndex(cfg QdrantConfig) *QdrantIndex {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &QdrantIndex{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Collection returns the collection name this index is bound to.
func (q *QdrantIndex) Collection() string {
	return q.collection
}

// EnsureCollection creates the collection when absent and reports whether
// it already existed. An existing collection is never dropped or recreated.
func (q *QdrantIndex) EnsureCollection(ctx context.Context, dimension int) (bool, error) {
	if dimension <= 0 {
		return false, fmt.Errorf("%w: dimension must be positive, got %d", port.ErrValidation, dimension)
	}

	status, _, err := q.do(ctx, http.MethodGet, "/collections/"+q.collection, nil)
	if err != nil {
		return false, fmt.Errorf("qdrant get collection: %w: %w", port.ErrStorageUnavailable, err)
	}
	if status == http.StatusOK {
		return true, nil
	}
	if status != http.StatusNotFound {
		return false, fmt.Errorf("qdrant get collection: %w: unexpected status %d", port.ErrStorageUnavailable, status)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	status, respBody, err := q.do(ctx, http.MethodPut, "/collections/"+q.collection, body)
	if err != nil {
		return false, fmt.Errorf("qdrant create collection: %w: %w", port.ErrStorageUnavailable, err)
	}
	if status >= 300 {
		return false, fmt.Errorf("qdrant create collection: %w: status %d: %s", port.ErrStorageUnavailable, status, respBody)
	}
	return false, nil
}

// Upsert writes chunks keyed by chunk ID, overwriting existing points.
func (q *QdrantIndex) Upsert(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]map[string]any, len(chunks))
	for i, c := range chunks {
		points[i] = map[string]any{
			"id":     c.ID,
			"vector": c.Vector,
			"payload": map[string]any{
				"text":     c.Text,
				"metadata": c.Metadata,
			},
		}
	}

	status, body, err := q.do(ctx, http.MethodPut, "/collections/"+q.collection+"/points?wait=true", map[string]any{"points": points})
	if err != nil {
		return fmt.Errorf("qdrant upsert: %w: %w", port.ErrStorageUnavailable, err)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("qdrant upsert: %w: collection %q", port.ErrCollectionNotFound, q.collection)
	}
	if status >= 300 {
		return fmt.Errorf("qdrant upsert: %w: status %d: %s", port.ErrStorageUnavailable, status, body)
	}
	return nil
}

// Delete removes points by chunk ID.
func (q *QdrantIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	status, body, err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/delete?wait=true", map[string]any{"points": ids})
	if err != nil {
		return fmt.Errorf("qdrant delete: %w: %w", port.ErrStorageUnavailable, err)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("qdrant delete: %w: collection %q", port.ErrCollectionNotFound, q.collection)
	}
	if status >= 300 {
		return fmt.Errorf("qdrant delete: %w: status %d: %s", port.ErrStorageUnavailable, status, body)
	}
	return nil
}

// Search returns up to topK chunks by descending similarity.
func (q *QdrantIndex) Search(ctx context.Context, vector []float32, topK int) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", port.ErrValidation, topK)
	}

	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	status, body, err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/search", req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search: %w: %w", port.ErrStorageUnavailable, err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("qdrant search: %w: collection %q", port.ErrCollectionNotFound, q.collection)
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant search: %w: status %d: %s", port.ErrStorageUnavailable, status, body)
	}

	var resp struct {
		Result []struct {
			ID      string  `json:"id"`
			Score   float64 `json:"score"`
			Payload struct {
				Text     string            `json:"text"`
				Metadata map[string]string `json:"metadata"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("qdrant search decode: %w: %w", port.ErrStorageUnavailable, err)
	}

	results := make([]domain.RetrievedChunk, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.RetrievedChunk{
			Chunk: domain.Chunk{
				ID:       r.ID,
				Text:     r.Payload.Text,
				Metadata: r.Payload.Metadata,
			},
			Score: r.Score,
		})
	}
	return results, nil
}

// do issues one JSON request against the Qdrant API and returns the status
// code and response body.
func (q *QdrantIndex) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.url+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}
