package domain

// Document is one source record from the movie dataset, rendered as text
// with its structured fields carried alongside for metadata filtering.
type Document struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Chunk is a contiguous span of a Document's text, the unit of embedding
// and retrieval. Metadata is duplicated from the parent Document so it
// survives splitting. Vector is filled once, after embedding.
type Chunk struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Vector   []float32         `json:"-"`
}

// RetrievedChunk is a search hit: a chunk plus its similarity score.
// Results are ordered by descending score and never persisted.
type RetrievedChunk struct {
	Chunk
	Score float64 `json:"score"`
}
