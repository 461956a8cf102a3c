package conversation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchPaths(results []SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Path
	}
	return out
}

func TestSearchFindsMessages(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	q := add(t, m, "", RoleUser, "How do materialized paths work?")
	add(t, m, q.Path, RoleAssistant, "Each row stores its full lineage as a dotted path.")
	add(t, m, "", RoleUser, "Something unrelated")

	results, err := m.Search(ctx, "materialized", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1.1", results[0].Path)
	assert.Equal(t, int64(1), results[0].ThreadID)
	assert.Equal(t, RoleUser, results[0].Data.Role)
	assert.Contains(t, results[0].Snippet, "<b>")

	results, err = m.Search(ctx, "PATH", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1.1", "1.1.1"}, searchPaths(results), "case-insensitive substring match")
}

func TestSearchFollowsWrites(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	q := add(t, m, "", RoleUser, "alpha question")
	a := add(t, m, q.Path, RoleAssistant, "beta answer")
	other := add(t, m, "", RoleUser, "gamma")

	_, err := m.MoveMessage(ctx, a.Path, other.Path)
	require.NoError(t, err)
	results, err := m.Search(ctx, "beta", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"2.1.1"}, searchPaths(results))

	_, err = m.Tree().UpdateNode(ctx, "2.1.1", NewMessage(RoleAssistant, "delta answer"))
	require.NoError(t, err)
	results, err = m.Search(ctx, "beta", 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	require.NoError(t, m.CascadeDelete(ctx, "2.1"))
	results, err = m.Search(ctx, "delta", 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = m.Search(ctx, "alpha", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1"}, searchPaths(results))
}

func TestSearchShortQueryFallsBackToLike(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	add(t, m, "", RoleUser, "go is fun")
	add(t, m, "", RoleUser, "rust")
	add(t, m, "", RoleUser, "100% sure")

	results, err := m.Search(ctx, "Go", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "1.1", results[0].Path)
	assert.Equal(t, "<b>go</b> is fun", results[0].Snippet)

	results, err = m.Search(ctx, "%", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"3.1"}, searchPaths(results), "wildcards are literal")
}

func TestSearchEdgeCases(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		add(t, m, "", RoleUser, fmt.Sprintf("note number %d", i))
	}

	results, err := m.Search(ctx, "   ", 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = m.Search(ctx, "number", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = m.Search(ctx, `"number" OR NOT`, 0)
	require.NoError(t, err, "operators are searched literally")
	assert.Empty(t, results)
}

func TestReindex(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	add(t, m, "", RoleUser, "rebuild me please")

	require.NoError(t, m.Reindex(ctx))
	results, err := m.Search(ctx, "rebuild", 0)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestHighlight(t *testing.T) {
	assert.Equal(t, "say <b>Hi</b> there", highlight("say Hi there", "hi"))
	assert.Equal(t, "no match", highlight("no match", "zz"))

	long := "0123456789012345678901234567890123456789 xy 0123456789012345678901234567890123456789"
	got := highlight(long, "xy")
	assert.Equal(t, "...12345678901234567890123456789 <b>xy</b> 01234567890123456789012345678...", got)
}
