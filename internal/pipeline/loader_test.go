package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "movies.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCSV(t *testing.T) {
	path := writeDataset(t, `Series_Title,Released_Year,Genre,Director,Overview
Inception,2010,Sci-Fi,Christopher Nolan,A thief who steals corporate secrets through dream-sharing technology.
12 Angry Men,1957,Drama,Sidney Lumet,A jury holdout attempts to prevent a miscarriage of justice.
`)

	docs, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	first := docs[0]
	assert.Contains(t, first.Text, "Series_Title: Inception.")
	assert.Contains(t, first.Text, "Director: Christopher Nolan.")
	assert.Contains(t, first.Text, "Overview: A thief who steals corporate secrets")
	assert.Equal(t, map[string]string{
		"Series_Title":  "Inception",
		"Genre":         "Sci-Fi",
		"Director":      "Christopher Nolan",
		"Released_Year": "2010",
	}, first.Metadata)
}

func TestLoadCSVSkipsMalformedRows(t *testing.T) {
	path := writeDataset(t, `Series_Title,Released_Year,Genre,Director
Inception,2010,Sci-Fi,Christopher Nolan
The Nameless,1999,,
Se7en,1995,Thriller,David Fincher
`)

	docs, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, docs, 2, "row with empty required fields is skipped, not fatal")
	assert.Equal(t, "Inception", docs[0].Metadata["Series_Title"])
	assert.Equal(t, "Se7en", docs[1].Metadata["Series_Title"])
}

func TestLoadCSVSkipsUnparsableRows(t *testing.T) {
	path := writeDataset(t, `Series_Title,Released_Year,Genre,Director
Inception,2010,Sci-Fi,Christopher Nolan
"The "Broken" Quote,1999,Drama,Nobody
Se7en,1995,Thriller,David Fincher
`)

	docs, err := LoadCSV(path)
	require.NoError(t, err, "a row with a quoting error is skipped, not fatal")
	require.Len(t, docs, 2)
	assert.Equal(t, "Inception", docs[0].Metadata["Series_Title"])
	assert.Equal(t, "Se7en", docs[1].Metadata["Series_Title"])
}

func TestLoadCSVMissingColumnFails(t *testing.T) {
	path := writeDataset(t, `Series_Title,Released_Year,Genre
Inception,2010,Sci-Fi
`)

	_, err := LoadCSV(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Director")
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestLoadCSVOmitsEmptyOptionalColumns(t *testing.T) {
	path := writeDataset(t, `Series_Title,Released_Year,Genre,Director,Gross
Inception,2010,Sci-Fi,Christopher Nolan,
`)

	docs, err := LoadCSV(path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotContains(t, docs[0].Text, "Gross")
}
