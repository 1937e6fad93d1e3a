package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/moviemind/movie-rag/internal/domain"
)

// metadataFields are the structured columns duplicated into every chunk so
// metadata filtering survives splitting.
var metadataFields = []string{"Series_Title", "Genre", "Director", "Released_Year"}

// LoadCSV reads the movie dataset and converts each row into one Document.
// The document text is the full record rendered as "column: value" lines;
// metadata carries the structured fields. Rows that fail to parse or miss a
// required field are skipped with a warning so one malformed row never
// aborts the batch.
func LoadCSV(path string) ([]domain.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}
	for _, field := range metadataFields {
		if _, ok := columns[field]; !ok {
			return nil, fmt.Errorf("dataset missing required column %q", field)
		}
	}

	var documents []domain.Document
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			slog.Warn("skipping malformed row", "row", row, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read rows: %w", err)
		}

		doc, err := rowToDocument(header, columns, record)
		if err != nil {
			slog.Warn("skipping malformed row", "row", row, "error", err)
			continue
		}
		documents = append(documents, doc)
	}
	return documents, nil
}

func rowToDocument(header []string, columns map[string]int, row []string) (domain.Document, error) {
	if len(row) < len(header) {
		return domain.Document{}, fmt.Errorf("expected %d fields, got %d", len(header), len(row))
	}

	metadata := make(map[string]string, len(metadataFields))
	for _, field := range metadataFields {
		value := strings.TrimSpace(row[columns[field]])
		if value == "" {
			return domain.Document{}, fmt.Errorf("missing required field %q", field)
		}
		metadata[field] = value
	}

	var text strings.Builder
	for i, name := range header {
		value := strings.TrimSpace(row[i])
		if value == "" {
			continue
		}
		fmt.Fprintf(&text, "%s: %s. ", strings.TrimSpace(name), value)
	}

	return domain.Document{
		Text:     strings.TrimSpace(text.String()),
		Metadata: metadata,
	}, nil
}
