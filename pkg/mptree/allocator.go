package mptree

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// NextChildPath returns the first unused path below parentPath.
//
// An empty parentPath allocates a new thread: one past the highest thread id
// found in the top-level view, always starting at "{n}.1" ("1.1" for an empty
// table). Otherwise the direct children of parentPath are scanned and the
// result is max(last segment)+1, so numbers freed by deletes below the current
// maximum are never handed out again.
//
// Allocation is read-then-write. Callers must serialise writes below the same
// parent; two concurrent writers can receive the same path and the second
// insert then fails on the UNIQUE constraint.
func (t *Tree[T]) NextChildPath(ctx context.Context, parentPath string) (string, error) {
	if parentPath == "" {
		rows, err := t.db.Select(ctx, fmt.Sprintf(
			`SELECT MAX(thread_id) AS thread_id FROM %s`, TopLevelView(t.table)))
		if err != nil {
			return "", err
		}
		var last int64
		if len(rows) > 0 {
			last = RowInt(rows[0], "thread_id")
		}
		return JoinPath(last+1, 1), nil
	}

	if !ValidPath(parentPath) {
		return "", errors.Wrapf(ErrInvalidPath, "parent %q", parentPath)
	}

	where, args := childrenWhere(parentPath)
	rows, err := t.db.Select(ctx, fmt.Sprintf(`SELECT path FROM %s WHERE %s`, t.table, where), args...)
	if err != nil {
		return "", err
	}

	var last int64
	for _, r := range rows {
		if n := LastSegment(RowString(r, "path")); n > last {
			last = n
		}
	}
	return fmt.Sprintf("%s%s%d", parentPath, Separator, last+1), nil
}

// childrenWhere filters rows exactly one level below parent.
// The LIKE prefix keeps the path index usable; segments cuts deeper rows.
func childrenWhere(parent string) (string, []any) {
	if parent == "" {
		return "segments = 1", nil
	}
	return "path LIKE ? AND segments = ?", []any{parent + Separator + "%", Depth(parent) + 1}
}
