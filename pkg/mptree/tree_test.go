package mptree_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/mammal/pkg/mptree"
)

// =============================================================================
// Construction
// =============================================================================

func TestNewRejectsInvalidTableNames(t *testing.T) {
	for _, name := range []string{"", "1messages", "msg-table", "msg table", "messages;DROP TABLE x", "näme"} {
		t.Run(name, func(t *testing.T) {
			db := &fakeAdapter{}
			_, err := mptree.New[note](context.Background(), db, name)
			require.Error(t, err)
			assert.True(t, errors.Is(err, mptree.ErrInvalidTableName))
			assert.Empty(t, db.executes, "nothing may reach storage")
		})
	}
}

func TestNewAcceptsIdentifiers(t *testing.T) {
	for _, name := range []string{"messages", "_scratch", "Chat_2"} {
		db := &fakeAdapter{}
		tree, err := mptree.New[note](context.Background(), db, name)
		require.NoError(t, err, name)
		assert.Equal(t, name, tree.Table())
		assert.Len(t, db.executes, 1)
		assert.Contains(t, db.executes[0], mptree.TopLevelView(name))
	}
}

func TestNewIsIdempotent(t *testing.T) {
	tree, db := newTestTree(t)
	_, err := tree.AddRoot(context.Background(), note{Text: "hi"})
	require.NoError(t, err)

	again, err := mptree.New[note](context.Background(), db, "messages")
	require.NoError(t, err)
	n, err := again.GetNode(context.Background(), "1.1")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "hi", n.Data.Text)
}

func TestRootDepthOption(t *testing.T) {
	tree, _ := newTestTree(t)
	assert.Equal(t, mptree.DefaultRootDepth, tree.RootDepth())

	deep, _ := newTestTree(t, mptree.WithRootDepth(3))
	assert.Equal(t, 3, deep.RootDepth())

	fallback, _ := newTestTree(t, mptree.WithRootDepth(0))
	assert.Equal(t, mptree.DefaultRootDepth, fallback.RootDepth())
}

// =============================================================================
// Path Allocation
// =============================================================================

func TestRootNumbering(t *testing.T) {
	tree, _ := newTestTree(t)
	ctx := context.Background()

	next, err := tree.NextChildPath(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "1.1", next)

	root, err := tree.AddNode(ctx, "", note{Text: "first"})
	require.NoError(t, err)
	assert.Equal(t, "1.1", root.Path)
	assert.Equal(t, int64(1), root.ThreadID)

	next, err = tree.NextChildPath(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2.1", next)
}

func TestRootNumberingPastNineThreads(t *testing.T) {
	tree, _ := newTestTree(t)
	ctx := context.Background()
	for i := 0; i < 11; i++ {
		_, err := tree.AddRoot(ctx, note{})
		require.NoError(t, err)
	}
	next, err := tree.NextChildPath(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "12.1", next)
}

func TestChildNumbering(t *testing.T) {
	tree, _ := newTestTree(t)
	seed(t, tree, "3.1", "3.1.1", "3.1.2", "3.1.2.5")

	next, err := tree.NextChildPath(context.Background(), "3.1")
	require.NoError(t, err)
	assert.Equal(t, "3.1.3", next)

	next, err = tree.NextChildPath(context.Background(), "3.1.1")
	require.NoError(t, err)
	assert.Equal(t, "3.1.1.1", next)
}

func TestChildNumberingIgnoresLexicalOrder(t *testing.T) {
	tree, _ := newTestTree(t)
	seed(t, tree, "1.1", "1.1.9", "1.1.10")

	next, err := tree.NextChildPath(context.Background(), "1.1")
	require.NoError(t, err)
	assert.Equal(t, "1.1.11", next)
}

func TestMonotonicAllocation(t *testing.T) {
	tree, _ := newTestTree(t)
	ctx := context.Background()
	root, err := tree.AddRoot(ctx, note{})
	require.NoError(t, err)

	var last int64
	var created []*mptree.Node[note]
	for i := 0; i < 12; i++ {
		next, err := tree.NextChildPath(ctx, root.Path)
		require.NoError(t, err)
		assert.Greater(t, mptree.LastSegment(next), last)
		last = mptree.LastSegment(next)

		child, err := root.AddChild(ctx, note{})
		require.NoError(t, err)
		assert.Equal(t, next, child.Path)
		created = append(created, child)
	}

	// Freed numbers below the maximum are not handed out again.
	require.NoError(t, created[3].Delete(ctx))
	next, err := tree.NextChildPath(ctx, root.Path)
	require.NoError(t, err)
	assert.Equal(t, "1.1.13", next)
}

func TestNextChildPathRejectsMalformedParent(t *testing.T) {
	tree, _ := newTestTree(t)
	_, err := tree.NextChildPath(context.Background(), "1..2")
	assert.True(t, errors.Is(err, mptree.ErrInvalidPath))

	_, err = tree.AddNode(context.Background(), "x", note{})
	assert.True(t, errors.Is(err, mptree.ErrInvalidPath))
}

func TestPathUniqueness(t *testing.T) {
	tree, db := newTestTree(t)
	ctx := context.Background()

	var nodes []*mptree.Node[note]
	root, err := tree.AddRoot(ctx, note{})
	require.NoError(t, err)
	nodes = append(nodes, root)

	// Deterministic mix of child, sibling and root additions.
	for i := 0; i < 60; i++ {
		base := nodes[(i*7)%len(nodes)]
		var n *mptree.Node[note]
		switch i % 3 {
		case 0:
			n, err = base.AddChild(ctx, note{})
		case 1:
			n, err = base.AddSibling(ctx, note{})
		default:
			n, err = tree.AddNode(ctx, "", note{})
		}
		require.NoError(t, err)
		nodes = append(nodes, n)
	}

	seen := map[string]bool{}
	for _, n := range nodes {
		assert.False(t, seen[n.Path], "duplicate path %s", n.Path)
		seen[n.Path] = true
	}
	assert.Len(t, allPaths(t, db), len(nodes))
}

// =============================================================================
// Reads
// =============================================================================

func TestGetNode(t *testing.T) {
	tree, _ := newTestTree(t)
	ctx := context.Background()
	seed(t, tree, "2.1", "2.1.1")

	n, err := tree.GetNode(ctx, "2.1.1")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, "2.1.1", n.Data.Text)
	assert.Equal(t, int64(2), n.ThreadID)

	missing, err := tree.GetNode(ctx, "2.1.9")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestGetNodeDecodeError(t *testing.T) {
	tree, db := newTestTree(t)
	require.NoError(t, db.Execute(context.Background(),
		`INSERT INTO messages (path, data) VALUES (?, ?)`, "1.1", "{not json"))

	_, err := tree.GetNode(context.Background(), "1.1")
	assert.Error(t, err)
}

func TestUpdateNodeKeepsPath(t *testing.T) {
	tree, db := newTestTree(t)
	ctx := context.Background()
	seed(t, tree, "1.1", "1.1.1")

	updated, err := tree.UpdateNode(ctx, "1.1", note{Text: "changed"})
	require.NoError(t, err)
	assert.Equal(t, "1.1", updated.Path)

	n, err := tree.GetNode(ctx, "1.1")
	require.NoError(t, err)
	assert.Equal(t, "changed", n.Data.Text)
	assert.Equal(t, []string{"1.1", "1.1.1"}, allPaths(t, db))
}

func TestRestoreRejectsInvalidAndTakenPaths(t *testing.T) {
	tree, db := newTestTree(t)
	_, err := tree.Restore(context.Background(), "1.x", note{})
	assert.True(t, errors.Is(err, mptree.ErrInvalidPath))

	seed(t, tree, "1.1", "1.1.1")
	_, err = tree.Restore(context.Background(), "1.1", note{})
	assert.Error(t, err, "path is UNIQUE")

	// A zero-padded spelling would be a second child numbered 1.
	for _, padded := range []string{"1.01", "1.1.01", "01.1"} {
		_, err = tree.Restore(context.Background(), padded, note{})
		assert.True(t, errors.Is(err, mptree.ErrInvalidPath), padded)
	}
	assert.Equal(t, []string{"1.1", "1.1.1"}, allPaths(t, db))
}

func TestGetTreeViews(t *testing.T) {
	tree, _ := newTestTree(t)
	ctx := context.Background()

	view, err := tree.GetTree(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, view, "empty table has no view")

	seed(t, tree, "1.1", "1.1.1", "1.1.2", "1.1.10", "1.1.2.1")

	view, err = tree.GetTree(ctx, "1.1")
	require.NoError(t, err)
	single, ok := view.(mptree.SingleTree[note])
	require.True(t, ok, "one common top is a SingleTree, got %T", view)
	assert.Equal(t, "1.1", single.Root.Node.Path)

	var children []string
	for _, c := range single.Root.Children {
		children = append(children, c.Node.Path)
	}
	assert.Equal(t, []string{"1.1.1", "1.1.2", "1.1.10"}, children, "children in numeric order")
	assert.Equal(t, "1.1.2.1", single.Root.Children[1].Children[0].Node.Path)

	// The whole table with a single thread is still a SingleTree.
	view, err = tree.GetTree(ctx, "")
	require.NoError(t, err)
	assert.IsType(t, mptree.SingleTree[note]{}, view)

	seed(t, tree, "1.2", "2.1")
	view, err = tree.GetTree(ctx, "")
	require.NoError(t, err)
	forest, ok := view.(mptree.Forest[note])
	require.True(t, ok, "disjoint tops are a Forest, got %T", view)
	assert.Len(t, forest.Roots, 3)
	assert.Equal(t, "1.1", forest.Branches()[0].Node.Path)
	assert.Equal(t, "1.2", forest.Branches()[1].Node.Path)
	assert.Equal(t, "2.1", forest.Branches()[2].Node.Path)
}

func TestGetTreeMissingOrMalformed(t *testing.T) {
	tree, _ := newTestTree(t)
	seed(t, tree, "1.1")

	view, err := tree.GetTree(context.Background(), "9.1")
	require.NoError(t, err)
	assert.Nil(t, view)

	view, err = tree.GetTree(context.Background(), "1%")
	require.NoError(t, err)
	assert.Nil(t, view)
}

func TestBranchWalkAndFind(t *testing.T) {
	tree, _ := newTestTree(t)
	seed(t, tree, "1.1", "1.1.1", "1.1.1.1", "1.1.2")

	view, err := tree.GetTree(context.Background(), "1.1")
	require.NoError(t, err)
	root := view.Branches()[0]

	var visited []string
	root.Walk(func(b *mptree.Branch[note], level int) bool {
		visited = append(visited, fmt.Sprintf("%d:%s", level, b.Node.Path))
		return true
	})
	assert.Equal(t, []string{"0:1.1", "1:1.1.1", "2:1.1.1.1", "1:1.1.2"}, visited)

	found := root.Find("1.1.1.1")
	require.NotNil(t, found)
	assert.Equal(t, "1.1.1.1", found.Node.Data.Text)
	assert.Nil(t, root.Find("1.1.3"))
}

func TestGetRootNodes(t *testing.T) {
	tree, _ := newTestTree(t)
	ctx := context.Background()
	seed(t, tree, "1.1", "1.1.1", "1.2", "1.10", "2.1", "2.1.1", "3.1")

	roots, err := tree.GetRootNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.10", "2.1", "3.1"}, paths(roots))
	assert.Equal(t, "1.10", roots[0].Data.Text)
	assert.Equal(t, int64(1), roots[0].ThreadID)
}

func TestFirstAndLastRootNode(t *testing.T) {
	tree, _ := newTestTree(t)
	ctx := context.Background()

	first, err := tree.FirstRootNode(ctx)
	require.NoError(t, err)
	assert.Nil(t, first)

	seed(t, tree, "2.1", "2.2", "9.1", "10.1", "10.2", "10.2.1")

	first, err = tree.FirstRootNode(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "2.1", first.Path)

	last, err := tree.LastRootNode(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "10.2", last.Path)
}

func TestCountThread(t *testing.T) {
	tree, _ := newTestTree(t)
	seed(t, tree, "1.1", "1.1.1", "1.2", "11.1")

	count, err := tree.CountThread(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = tree.CountThread(context.Background(), 4)
	require.NoError(t, err)
	assert.Zero(t, count)
}

// =============================================================================
// Deletes
// =============================================================================

func TestSubtreeDelete(t *testing.T) {
	tree, db := newTestTree(t)
	seed(t, tree, "1.1", "2.1", "2.1.1", "2.1.1.1", "2.10", "2.2", "12.1")

	require.NoError(t, tree.DeleteNode(context.Background(), "2.1"))
	assert.Equal(t, []string{"1.1", "2.10", "2.2", "12.1"}, allPaths(t, db))
}

func TestDeleteNodeRejectsPatterns(t *testing.T) {
	tree, db := newTestTree(t)
	seed(t, tree, "1.1", "1.1.1")

	err := tree.DeleteNode(context.Background(), "%")
	assert.True(t, errors.Is(err, mptree.ErrInvalidPath))
	assert.Len(t, allPaths(t, db), 2)
}

// =============================================================================
// Adapter Errors
// =============================================================================

func TestAdapterErrorsPropagateUnchanged(t *testing.T) {
	boom := errors.New("disk on fire")
	db := &fakeAdapter{}
	tree, err := mptree.New[note](context.Background(), db, "messages")
	require.NoError(t, err)

	db.selectErr = boom
	_, err = tree.AddRoot(context.Background(), note{})
	assert.Same(t, boom, err)

	_, err = tree.GetNode(context.Background(), "1.1")
	assert.Same(t, boom, err)

	_, err = tree.GetTree(context.Background(), "")
	assert.Same(t, boom, err)

	db.selectErr = nil
	db.executeErr = boom
	_, err = tree.AddRoot(context.Background(), note{})
	assert.Same(t, boom, err)
	assert.Same(t, boom, tree.DeleteNode(context.Background(), "1.1"))
}

func TestNewPropagatesSchemaError(t *testing.T) {
	boom := errors.New("read-only")
	_, err := mptree.New[note](context.Background(), &fakeAdapter{executeErr: boom}, "messages")
	assert.Same(t, boom, err)
}
