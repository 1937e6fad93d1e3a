package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviemind/movie-rag/internal/domain"
	"github.com/moviemind/movie-rag/internal/port"
)

func newTestProvider(srv *httptest.Server) *OllamaProvider {
	return NewOllamaProvider(
		OllamaEndpointConfig{BaseURL: srv.URL, Model: "nomic-embed-text"},
		OllamaEndpointConfig{BaseURL: srv.URL, Model: "qwen3"},
	)
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		// One distinct vector per input, in request order.
		vectors := make([][]float32, len(req.Input))
		for i := range req.Input {
			vectors[i] = []float32{float32(i), float32(i) + 0.5}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": vectors})
	}))
	defer srv.Close()

	provider := newTestProvider(srv)
	vectors, err := provider.EmbedBatch(context.Background(), []string{"first", "second", "third"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{0, 0.5}, vectors[0])
	assert.Equal(t, []float32{2, 2.5}, vectors[2])
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embeddings": [][]float32{{0.1, 0.2}},
		})
	}))
	defer srv.Close()

	provider := newTestProvider(srv)
	_, err := provider.EmbedBatch(context.Background(), []string{"one", "two"})
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrServiceUnavailable)
}

func TestEmbedUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	provider := newTestProvider(srv)
	_, err := provider.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrServiceUnavailable)
}

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)

		var req struct {
			Model    string              `json:"model"`
			Messages []map[string]string `json:"messages"`
			Stream   bool                `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "qwen3", req.Model)
		assert.False(t, req.Stream)

		// system, two history turns, current user message.
		require.Len(t, req.Messages, 4)
		assert.Equal(t, "system", req.Messages[0]["role"])
		assert.Equal(t, "user", req.Messages[1]["role"])
		assert.Equal(t, "assistant", req.Messages[2]["role"])
		assert.Equal(t, "Who directed it?", req.Messages[3]["content"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"message": map[string]string{"role": "assistant", "content": "Christopher Nolan directed Inception."},
		})
	}))
	defer srv.Close()

	history := []domain.ChatTurn{
		{Role: domain.RoleUser, Content: "Tell me about Inception."},
		{Role: domain.RoleAssistant, Content: "Inception is a 2010 sci-fi film."},
	}

	provider := newTestProvider(srv)
	answer, err := provider.Generate(context.Background(), "You are a movie assistant.", "Who directed it?", history)
	require.NoError(t, err)
	assert.Equal(t, "Christopher Nolan directed Inception.", answer)
}

func TestGenerateAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	provider := newTestProvider(srv)
	_, err := provider.Generate(context.Background(), "sys", "hi", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrServiceUnavailable)
}

func TestGenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, token := range []string{"Christopher", " Nolan"} {
			fmt.Fprintf(w, `{"message":{"content":%q},"done":false}`+"\n", token)
		}
		fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
	}))
	defer srv.Close()

	provider := newTestProvider(srv)
	ch, err := provider.GenerateStream(context.Background(), "sys", "who directed Inception?", nil)
	require.NoError(t, err)

	var content string
	var done bool
	for delta := range ch {
		require.NoError(t, delta.Err)
		if delta.Done {
			done = true
			continue
		}
		content += delta.Content
	}
	assert.True(t, done, "stream must end with a done delta")
	assert.Equal(t, "Christopher Nolan", content)
}

func TestGenerateStreamMalformedChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"partial"},"done":false}`)
		fmt.Fprintln(w, `{{{not json`)
	}))
	defer srv.Close()

	provider := newTestProvider(srv)
	ch, err := provider.GenerateStream(context.Background(), "sys", "hi", nil)
	require.NoError(t, err)

	var deltas []domain.StreamDelta
	for delta := range ch {
		deltas = append(deltas, delta)
	}
	require.NotEmpty(t, deltas)

	last := deltas[len(deltas)-1]
	require.Error(t, last.Err)
	assert.ErrorIs(t, last.Err, port.ErrGenerationInterrupted)
	assert.False(t, last.Done)
}

func TestGenerateStreamTruncatedWithoutDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"half an"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"content":" answer"},"done":false}`)
	}))
	defer srv.Close()

	provider := newTestProvider(srv)
	ch, err := provider.GenerateStream(context.Background(), "sys", "hi", nil)
	require.NoError(t, err)

	var last domain.StreamDelta
	for delta := range ch {
		last = delta
	}
	require.Error(t, last.Err)
	assert.ErrorIs(t, last.Err, port.ErrGenerationInterrupted)
}

func TestGenerateStreamRejectsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	provider := newTestProvider(srv)
	_, err := provider.GenerateStream(context.Background(), "sys", "hi", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, port.ErrServiceUnavailable)
}

func TestGenerateStreamCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"content":"first"},"done":false}`)
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	provider := newTestProvider(srv)
	ch, err := provider.GenerateStream(ctx, "sys", "hi", nil)
	require.NoError(t, err)

	first := <-ch
	require.NoError(t, first.Err)
	assert.Equal(t, "first", first.Content)

	cancel()

	select {
	case last, ok := <-ch:
		require.True(t, ok, "cancellation must produce a terminal delta before close")
		require.Error(t, last.Err)
		assert.ErrorIs(t, last.Err, port.ErrGenerationInterrupted)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not terminate after cancellation")
	}
}

func TestGenerateStreamCancelledWithoutConsumerExits(t *testing.T) {
	// Enough chunks to overfill the delta buffer many times over.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 200; i++ {
			fmt.Fprintf(w, `{"message":{"content":"token %d"},"done":false}`+"\n", i)
		}
		fmt.Fprintln(w, `{"message":{"content":""},"done":true}`)
	}))
	defer srv.Close()

	provider := newTestProvider(srv)
	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := provider.GenerateStream(ctx, "sys", "hi", nil)
	require.NoError(t, err)

	// The consumer walks away without receiving a single delta.
	cancel()

	deadline := time.Now().Add(3 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("stream goroutine still alive after cancellation: %d goroutines, started with %d",
				runtime.NumGoroutine(), before)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestGenerateStreamCancelledChannelClosesForDrainingConsumer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 200; i++ {
			fmt.Fprintf(w, `{"message":{"content":"token %d"},"done":false}`+"\n", i)
		}
	}))
	defer srv.Close()

	provider := newTestProvider(srv)
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := provider.GenerateStream(ctx, "sys", "hi", nil)
	require.NoError(t, err)
	cancel()

	var sawDone bool
	deadline := time.After(3 * time.Second)
	for open := true; open; {
		select {
		case delta, ok := <-ch:
			if !ok {
				open = false
				break
			}
			sawDone = sawDone || delta.Done
		case <-deadline:
			t.Fatal("stream channel never closed after cancellation")
		}
	}
	assert.False(t, sawDone, "a cancelled stream must never report clean completion")
}

func TestModelName(t *testing.T) {
	provider := NewOllamaProvider(
		OllamaEndpointConfig{Model: "nomic-embed-text"},
		OllamaEndpointConfig{Model: "qwen3"},
	)
	assert.Equal(t, "qwen3", provider.ModelName())
}
