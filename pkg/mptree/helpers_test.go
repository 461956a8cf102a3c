package mptree_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/mammal/internal/store"
	"github.com/kittclouds/mammal/pkg/mptree"
)

type note struct {
	Text string `json:"text"`
}

func newTestTree(t *testing.T, opts ...mptree.Option) (*mptree.Tree[note], *store.SQLiteStore) {
	t.Helper()
	db, err := store.NewSQLiteStore()
	require.NoError(t, err, "Failed to create store")
	t.Cleanup(func() { db.Close() })

	tree, err := mptree.New[note](context.Background(), db, "messages", opts...)
	require.NoError(t, err)
	return tree, db
}

// seed stores a note at each explicit path, parents first.
func seed(t *testing.T, tree *mptree.Tree[note], paths ...string) {
	t.Helper()
	for _, p := range paths {
		_, err := tree.Restore(context.Background(), p, note{Text: p})
		require.NoError(t, err, p)
	}
}

func paths(nodes []*mptree.Node[note]) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Path
	}
	return out
}

func allPaths(t *testing.T, db mptree.Adapter) []string {
	t.Helper()
	rows, err := db.Select(context.Background(), `SELECT path FROM messages ORDER BY id`)
	require.NoError(t, err)
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = mptree.RowString(r, "path")
	}
	return out
}

// fakeAdapter records calls and returns canned results.
type fakeAdapter struct {
	selects  []string
	executes []string

	rows       []map[string]any
	selectErr  error
	executeErr error
}

func (f *fakeAdapter) Select(_ context.Context, query string, _ ...any) ([]map[string]any, error) {
	f.selects = append(f.selects, query)
	return f.rows, f.selectErr
}

func (f *fakeAdapter) Execute(_ context.Context, query string, _ ...any) error {
	f.executes = append(f.executes, query)
	return f.executeErr
}

func (f *fakeAdapter) reset() {
	f.selects = nil
	f.executes = nil
}
