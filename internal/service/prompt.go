package service

import (
	"fmt"
	"strings"

	"github.com/moviemind/movie-rag/internal/domain"
)

// promptInstruction is the fixed system instruction for every chat turn.
// The retrieved context is appended below it, highest similarity first.
const promptInstruction = `You are an intelligent assistant specialized in answering questions about movies, actors, directors, and ratings using IMDb data.
When a user asks a question:
1. Understand the query (e.g., movie details, actor filmography, top-rated movies, release dates, etc.).
2. Retrieve relevant information from the IMDb dataset provided in the context.
3. If the context does not have the answer, state that the information is unavailable.
4. Present the answer in a clear and concise format, including structured details such as:
   - Title
   - Release Year
   - Genre
   - Cast
   - Director
   - IMDb Rating
   - Other relevant details

Always prefer factual information from the retrieved IMDb context. Do not make up answers.
If multiple results are relevant, present them as a ranked list.`

// composePrompt fills the context slot of the prompt template with the
// retrieved chunks, preserving their retrieval order.
func composePrompt(chunks []domain.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString(promptInstruction)
	b.WriteString("\n\nContext:\n")
	for i, chunk := range chunks {
		fmt.Fprintf(&b, "\n--- Result %d ---\n%s\n", i+1, chunk.Text)
	}
	return b.String()
}
