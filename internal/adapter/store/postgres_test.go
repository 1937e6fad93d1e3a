package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moviemind/movie-rag/internal/domain"
)

func turn(seq int64, role, content string) domain.ChatTurn {
	return domain.ChatTurn{Seq: seq, Role: role, Content: content}
}

func TestTrimWindowKeepsOrderWithinBudget(t *testing.T) {
	newestFirst := []domain.ChatTurn{
		turn(4, domain.RoleAssistant, "Nolan directed it."),
		turn(3, domain.RoleUser, "Who directed Inception?"),
		turn(2, domain.RoleAssistant, "Hello there."),
		turn(1, domain.RoleUser, "Hi."),
	}

	window := trimWindow(newestFirst, 1000)
	require.Len(t, window, 4)
	for i := range window {
		assert.Equal(t, int64(i+1), window[i].Seq, "window must come back in append order")
	}
}

func TestTrimWindowEvictsOldestFirst(t *testing.T) {
	// Each turn costs 3 tokens; a budget of 7 fits the two newest turns
	// plus nothing else.
	newestFirst := []domain.ChatTurn{
		turn(3, domain.RoleAssistant, "three word answer"),
		turn(2, domain.RoleUser, "three word question"),
		turn(1, domain.RoleUser, "the oldest turn"),
	}

	window := trimWindow(newestFirst, 7)
	require.Len(t, window, 2)
	assert.Equal(t, int64(2), window[0].Seq)
	assert.Equal(t, int64(3), window[1].Seq)
}

func TestTrimWindowKeepsOversizedNewestTurn(t *testing.T) {
	long := strings.Repeat("word ", 50)
	newestFirst := []domain.ChatTurn{
		turn(2, domain.RoleAssistant, long),
		turn(1, domain.RoleUser, "short question"),
	}

	window := trimWindow(newestFirst, 10)
	require.Len(t, window, 1, "the most recent turn survives even over budget")
	assert.Equal(t, int64(2), window[0].Seq)
}

// fakePager serves a fixed history (newest first) in windowPageSize pages,
// the way readPage does.
type fakePager struct {
	newestFirst []domain.ChatTurn
	calls       int
}

func (p *fakePager) read(beforeID int64) ([]domain.ChatTurn, error) {
	p.calls++
	var page []domain.ChatTurn
	for _, t := range p.newestFirst {
		if t.Seq >= beforeID {
			continue
		}
		page = append(page, t)
		if len(page) == windowPageSize {
			break
		}
	}
	return page, nil
}

func longHistory(n, wordsPerTurn int) []domain.ChatTurn {
	content := strings.TrimSpace(strings.Repeat("word ", wordsPerTurn))
	newestFirst := make([]domain.ChatTurn, n)
	for i := 0; i < n; i++ {
		newestFirst[i] = turn(int64(n-i), domain.RoleUser, content)
	}
	return newestFirst
}

func TestCollectWindowPagesPastOnePage(t *testing.T) {
	// 300 ten-word turns cost 3000 tokens; a 5000 budget admits them all,
	// which takes more than one page to discover.
	pager := &fakePager{newestFirst: longHistory(300, 10)}

	newestFirst, err := collectWindow(pager.read, 5000)
	require.NoError(t, err)
	assert.Len(t, newestFirst, 300, "no turn may be dropped while the budget is not exceeded")
	assert.Equal(t, 2, pager.calls)

	window := trimWindow(newestFirst, 5000)
	require.Len(t, window, 300)
	assert.Equal(t, int64(1), window[0].Seq)
	assert.Equal(t, int64(300), window[len(window)-1].Seq)
}

func TestCollectWindowStopsAtExhaustedBudget(t *testing.T) {
	pager := &fakePager{newestFirst: longHistory(600, 10)}

	newestFirst, err := collectWindow(pager.read, 50)
	require.NoError(t, err)
	assert.Equal(t, 1, pager.calls, "scanning past an exhausted budget reads no further pages")

	window := trimWindow(newestFirst, 50)
	require.Len(t, window, 5)
	assert.Equal(t, int64(600), window[len(window)-1].Seq, "the newest turn is the last of the window")
}

func TestTrimWindowEmptyHistory(t *testing.T) {
	assert.Empty(t, trimWindow(nil, 5000))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 0, estimateTokens("   "))
	assert.Equal(t, 3, estimateTokens("who directed Inception?"))
	assert.Equal(t, 2, estimateTokens("  spaced   out  "))
}
