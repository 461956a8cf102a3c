package mptree

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultRootDepth is the segment count of a thread's first real node ("3.1").
// The bare thread id ("3") never stores a row.
const DefaultRootDepth = 2

// Tree owns one node table and hands out Node handles bound to it.
// T is the payload type, stored as JSON text.
type Tree[T any] struct {
	db        Adapter
	table     string
	rootDepth int
}

type options struct {
	rootDepth int
}

// Option configures a Tree.
type Option func(*options)

// WithRootDepth sets the segment count that IsRoot and the root-level queries
// treat as a root.
func WithRootDepth(depth int) Option {
	return func(o *options) {
		o.rootDepth = depth
	}
}

// New validates the table name and makes sure the table, its indexes and the
// top-level view exist.
func New[T any](ctx context.Context, db Adapter, table string, opts ...Option) (*Tree[T], error) {
	if err := ValidateTableName(table); err != nil {
		return nil, err
	}

	o := options{rootDepth: DefaultRootDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rootDepth < 1 {
		o.rootDepth = DefaultRootDepth
	}

	if err := db.Execute(ctx, schemaFor(table)); err != nil {
		return nil, err
	}
	log.Debug().Str("table", table).Int("rootDepth", o.rootDepth).Msg("tree schema ready")

	return &Tree[T]{db: db, table: table, rootDepth: o.rootDepth}, nil
}

// Table returns the backing table name.
func (t *Tree[T]) Table() string {
	return t.table
}

// RootDepth returns the segment count of root nodes.
func (t *Tree[T]) RootDepth() int {
	return t.rootDepth
}

// =============================================================================
// Mutations
// =============================================================================

// AddNode allocates the next path below parentPath and stores data there.
// An empty parentPath starts a new thread.
func (t *Tree[T]) AddNode(ctx context.Context, parentPath string, data T) (*Node[T], error) {
	path, err := t.NextChildPath(ctx, parentPath)
	if err != nil {
		return nil, err
	}
	return t.insert(ctx, path, data)
}

// AddRoot starts a new thread with data as its first node.
func (t *Tree[T]) AddRoot(ctx context.Context, data T) (*Node[T], error) {
	return t.AddNode(ctx, "", data)
}

// Restore stores data at an explicit path. The path must be free.
func (t *Tree[T]) Restore(ctx context.Context, path string, data T) (*Node[T], error) {
	if !ValidPath(path) {
		return nil, errors.Wrapf(ErrInvalidPath, "restore %q", path)
	}
	return t.insert(ctx, path, data)
}

// UpdateNode replaces the payload at path. The path never changes.
func (t *Tree[T]) UpdateNode(ctx context.Context, path string, data T) (*Node[T], error) {
	raw, err := encodeData(data)
	if err != nil {
		return nil, err
	}
	if err := t.db.Execute(ctx,
		fmt.Sprintf(`UPDATE %s SET data = ? WHERE path = ?`, t.table), raw, path); err != nil {
		return nil, err
	}
	return t.newNode(path, data), nil
}

// DeleteNode removes the node at path and its whole subtree.
func (t *Tree[T]) DeleteNode(ctx context.Context, path string) error {
	if !ValidPath(path) {
		return errors.Wrapf(ErrInvalidPath, "delete %q", path)
	}
	return t.db.Execute(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE path = ? OR path LIKE ?`, t.table),
		path, path+Separator+"%")
}

func (t *Tree[T]) insert(ctx context.Context, path string, data T) (*Node[T], error) {
	raw, err := encodeData(data)
	if err != nil {
		return nil, err
	}
	if err := t.db.Execute(ctx,
		fmt.Sprintf(`INSERT INTO %s (path, data) VALUES (?, ?)`, t.table), path, raw); err != nil {
		return nil, err
	}
	return t.newNode(path, data), nil
}

// =============================================================================
// Queries
// =============================================================================

// GetNode looks up a single node. Returns nil, nil when the path is absent.
func (t *Tree[T]) GetNode(ctx context.Context, path string) (*Node[T], error) {
	return t.selectNode(ctx, "path = ?", path)
}

// GetTree assembles the node at parentPath and all of its descendants, or the
// whole table when parentPath is empty. Returns nil when nothing matched,
// SingleTree when one node is the common top and Forest otherwise.
func (t *Tree[T]) GetTree(ctx context.Context, parentPath string) (View[T], error) {
	var nodes []*Node[T]
	var err error
	switch {
	case parentPath == "":
		nodes, err = t.selectNodes(ctx, "1 = 1")
	case !ValidPath(parentPath):
		return nil, nil
	default:
		nodes, err = t.selectNodes(ctx, "path = ? OR path LIKE ?", parentPath, parentPath+Separator+"%")
	}
	if err != nil {
		return nil, err
	}
	return buildView(nodes), nil
}

// GetRootNodes returns, per thread, the top-level node with the highest
// second segment: the newest message on each thread's trunk.
func (t *Tree[T]) GetRootNodes(ctx context.Context) ([]*Node[T], error) {
	rows, err := t.db.Select(ctx, fmt.Sprintf(`
		SELECT
			t.path AS path,
			t.data AS data,
			t.thread_id AS thread_id
		FROM %[1]s t
		INNER JOIN (
			SELECT thread_id, MAX(depth) AS max_depth
			FROM %[1]s
			GROUP BY thread_id
		) AS max_paths ON t.thread_id = max_paths.thread_id AND t.depth = max_paths.max_depth
		ORDER BY t.thread_id
	`, TopLevelView(t.table)))
	if err != nil {
		return nil, err
	}
	return t.nodesFromRows(rows)
}

// FirstRootNode returns the root-level node of the lowest thread id.
func (t *Tree[T]) FirstRootNode(ctx context.Context) (*Node[T], error) {
	return t.edgeRootNode(ctx, "MIN", false)
}

// LastRootNode returns the root-level node of the highest thread id.
func (t *Tree[T]) LastRootNode(ctx context.Context) (*Node[T], error) {
	return t.edgeRootNode(ctx, "MAX", true)
}

func (t *Tree[T]) edgeRootNode(ctx context.Context, agg string, last bool) (*Node[T], error) {
	nodes, err := t.selectNodes(ctx, fmt.Sprintf(
		`segments = ? AND thread_id = (SELECT %s(thread_id) FROM %s WHERE segments = ?)`, agg, t.table),
		t.rootDepth, t.rootDepth)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	if last {
		return nodes[len(nodes)-1], nil
	}
	return nodes[0], nil
}

// CountThread counts the rows stored under a thread id.
func (t *Tree[T]) CountThread(ctx context.Context, threadID int64) (int, error) {
	rows, err := t.db.Select(ctx,
		fmt.Sprintf(`SELECT COUNT(*) AS count FROM %s WHERE thread_id = ?`, t.table), threadID)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return int(RowInt(rows[0], "count")), nil
}

// =============================================================================
// Helpers
// =============================================================================

func (t *Tree[T]) selectNodes(ctx context.Context, where string, args ...any) ([]*Node[T], error) {
	rows, err := t.db.Select(ctx,
		fmt.Sprintf(`SELECT path, data, thread_id FROM %s WHERE %s`, t.table, where), args...)
	if err != nil {
		return nil, err
	}
	nodes, err := t.nodesFromRows(rows)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(nodes, func(a, b *Node[T]) int {
		return ComparePaths(a.Path, b.Path)
	})
	return nodes, nil
}

func (t *Tree[T]) selectNode(ctx context.Context, where string, args ...any) (*Node[T], error) {
	nodes, err := t.selectNodes(ctx, where, args...)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return nodes[0], nil
}

func (t *Tree[T]) count(ctx context.Context, where string, args ...any) (int, error) {
	rows, err := t.db.Select(ctx,
		fmt.Sprintf(`SELECT COUNT(*) AS count FROM %s WHERE %s`, t.table, where), args...)
	if err != nil || len(rows) == 0 {
		return 0, err
	}
	return int(RowInt(rows[0], "count")), nil
}

func (t *Tree[T]) nodesFromRows(rows []map[string]any) ([]*Node[T], error) {
	nodes := make([]*Node[T], 0, len(rows))
	for _, r := range rows {
		path := RowString(r, "path")
		var data T
		if raw := RowString(r, "data"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &data); err != nil {
				return nil, errors.Wrapf(err, "decode data at %s", path)
			}
		}
		n := t.newNode(path, data)
		if id := RowInt(r, "thread_id"); id != 0 {
			n.ThreadID = id
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (t *Tree[T]) newNode(path string, data T) *Node[T] {
	return &Node[T]{
		Path:     path,
		ThreadID: ThreadID(path),
		Data:     data,
		tree:     t,
	}
}

func encodeData(data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", errors.Wrap(err, "encode node data")
	}
	return string(raw), nil
}
