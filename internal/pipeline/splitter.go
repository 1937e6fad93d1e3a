package pipeline

import (
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/moviemind/movie-rag/internal/domain"
	"github.com/moviemind/movie-rag/internal/port"
)

// Default splitting parameters, matching the dataset's record sizes.
const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 200
)

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]*`)

// Splitter cuts documents into sentence-boundary-aware chunks with a
// character overlap between neighbors. Sentences are never severed to hit
// the size target; a sentence longer than the chunk size becomes its own
// oversized chunk rather than being cut mid-fact.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

// NewSplitter validates the chunking parameters at construction.
// chunkOverlap must be non-negative and strictly less than chunkSize.
func NewSplitter(chunkSize, chunkOverlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk_size must be positive, got %d", port.ErrValidation, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", port.ErrValidation, chunkOverlap)
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Split produces chunks for every document. Each chunk inherits its parent
// document's metadata and gets a fresh unique ID. Chunks are pure values;
// embedding vectors are attached later by the indexing pipeline.
func (s *Splitter) Split(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, doc := range docs {
		for _, text := range s.splitText(doc.Text) {
			chunks = append(chunks, domain.Chunk{
				ID:       uuid.New().String(),
				Text:     text,
				Metadata: maps.Clone(doc.Metadata),
			})
		}
	}
	return chunks
}

// splitText accumulates whole sentences up to the size target, then starts
// the next chunk with the tail of the previous one as overlap.
func (s *Splitter) splitText(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder

	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+1+len(sentence) > s.chunkSize {
			chunks = append(chunks, current.String())
			tail := overlapTail(current.String(), s.chunkOverlap)
			current.Reset()
			current.WriteString(tail)
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitSentences breaks text at sentence-ending punctuation, keeping any
// trailing fragment so no text is lost.
func splitSentences(text string) []string {
	matches := sentencePattern.FindAllString(text, -1)
	sentences := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.TrimSpace(m)
		if m != "" {
			sentences = append(sentences, m)
		}
	}
	return sentences
}

// overlapTail returns up to n trailing characters of text, advanced to the
// next word boundary so the overlap never starts mid-word.
func overlapTail(text string, n int) string {
	if n <= 0 || len(text) <= n {
		if n <= 0 {
			return ""
		}
		return text
	}
	tail := text[len(text)-n:]
	if idx := strings.IndexByte(tail, ' '); idx >= 0 {
		tail = tail[idx+1:]
	}
	return tail
}
