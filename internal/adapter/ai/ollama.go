package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/moviemind/movie-rag/internal/domain"
	"github.com/moviemind/movie-rag/internal/port"
)

// OllamaEndpointConfig holds the configuration for a single Ollama endpoint.
type OllamaEndpointConfig struct {
	BaseURL string // e.g. http://localhost:11434 or https://api.ollama.com
	Model   string // e.g. nomic-embed-text, qwen3
	Token   string // Bearer token for Ollama Cloud (empty = no auth)
}

// OllamaProvider implements port.AIProvider using the Ollama REST API.
// Supports separate endpoints for embed vs chat (different URLs, models,
// and tokens).
type OllamaProvider struct {
	embed      OllamaEndpointConfig
	chat       OllamaEndpointConfig
	httpClient *http.Client
}

// NewOllamaProvider creates a new Ollama-backed AI provider with separate
// embed/chat configs.
func NewOllamaProvider(embed, chat OllamaEndpointConfig) *OllamaProvider {
	return &OllamaProvider{
		embed:      embed,
		chat:       chat,
		httpClient: &http.Client{},
	}
}

// ModelName returns the chat model identifier.
func (o *OllamaProvider) ModelName() string {
	return o.chat.Model
}

// Embed generates a vector embedding for the given text.
func (o *OllamaProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one call.
// The result is order-preserving, one vector per input.
func (o *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	payload := map[string]interface{}{
		"model": o.embed.Model,
		"input": texts,
	}

	body, err := o.post(ctx, o.embed, "/api/embed", payload)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w: %w", port.ErrServiceUnavailable, err)
	}

	var resp struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w: %w", port.ErrServiceUnavailable, err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: %w: got %d vectors for %d inputs",
			port.ErrServiceUnavailable, len(resp.Embeddings), len(texts))
	}

	return resp.Embeddings, nil
}

// Generate sends the composed prompt with history and returns the complete
// response.
func (o *OllamaProvider) Generate(ctx context.Context, systemPrompt, userPrompt string, history []domain.ChatTurn) (string, error) {
	payload := map[string]interface{}{
		"model":    o.chat.Model,
		"messages": buildMessages(systemPrompt, userPrompt, history),
		"stream":   false,
	}

	body, err := o.post(ctx, o.chat, "/api/chat", payload)
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w: %w", port.ErrServiceUnavailable, err)
	}

	var resp struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ollama chat decode: %w: %w", port.ErrServiceUnavailable, err)
	}

	return resp.Message.Content, nil
}

// GenerateStream sends the composed prompt and streams the response
// token-by-token. The stream finishes with a Done delta on clean
// completion; a mid-stream failure or cancellation produces a terminal
// Err delta instead, so consumers can tell a complete answer from a
// truncated one. After cancellation the channel always closes promptly,
// even when the consumer stops receiving; a close without a Done delta
// means the stream was truncated.
func (o *OllamaProvider) GenerateStream(ctx context.Context, systemPrompt, userPrompt string, history []domain.ChatTurn) (<-chan domain.StreamDelta, error) {
	payload := map[string]interface{}{
		"model":    o.chat.Model,
		"messages": buildMessages(systemPrompt, userPrompt, history),
		"stream":   true,
	}

	payloadBytes, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.chat.BaseURL+"/api/chat", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("ollama stream: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.chat.Token != "" {
		req.Header.Set("Authorization", "Bearer "+o.chat.Token)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama stream: %w: %w", port.ErrServiceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("ollama stream: %w: API error (%d): %s",
			port.ErrServiceUnavailable, resp.StatusCode, string(body))
	}

	ch := make(chan domain.StreamDelta, 64)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		decoder := json.NewDecoder(resp.Body)
		for decoder.More() {
			var chunk struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
				Done bool `json:"done"`
			}
			if err := decoder.Decode(&chunk); err != nil {
				if ctx.Err() != nil {
					interrupt(ctx, ch)
					return
				}
				ch <- domain.StreamDelta{Err: fmt.Errorf("ollama stream: %w: %w", port.ErrGenerationInterrupted, err)}
				return
			}
			if chunk.Message.Content != "" {
				select {
				case ch <- domain.StreamDelta{Content: chunk.Message.Content}:
				case <-ctx.Done():
					interrupt(ctx, ch)
					return
				}
			}
			if chunk.Done {
				ch <- domain.StreamDelta{Done: true}
				return
			}
		}
		// The model closed the connection without a done marker.
		if ctx.Err() != nil {
			interrupt(ctx, ch)
			return
		}
		ch <- domain.StreamDelta{Err: fmt.Errorf("ollama stream: %w: response ended without completion", port.ErrGenerationInterrupted)}
	}()

	return ch, nil
}

// interrupt places the terminal error for a cancelled stream without
// blocking. A consumer that stopped receiving leaves the buffer full; the
// delta is then dropped and the close alone marks the stream truncated.
func interrupt(ctx context.Context, ch chan<- domain.StreamDelta) {
	select {
	case ch <- domain.StreamDelta{Err: fmt.Errorf("ollama stream: %w: %w", port.ErrGenerationInterrupted, ctx.Err())}:
	default:
	}
}

// buildMessages assembles the Ollama chat message list: system instruction,
// prior conversation turns in order, then the current user message.
func buildMessages(systemPrompt, userPrompt string, history []domain.ChatTurn) []map[string]string {
	messages := make([]map[string]string, 0, len(history)+2)
	messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	for _, turn := range history {
		messages = append(messages, map[string]string{"role": turn.Role, "content": turn.Content})
	}
	messages = append(messages, map[string]string{"role": "user", "content": userPrompt})
	return messages
}

// post is a helper for POST requests to an Ollama endpoint (with optional
// bearer token).
func (o *OllamaProvider) post(ctx context.Context, cfg OllamaEndpointConfig, path string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
