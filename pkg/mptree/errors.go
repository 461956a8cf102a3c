package mptree

import "github.com/pkg/errors"

var (
	// ErrInvalidTableName is returned by New when the table name is not a plain identifier.
	ErrInvalidTableName = errors.New("invalid table name")

	// ErrInvalidPath is returned when a write is addressed to a malformed path.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNodeNotFound is returned when a handle's row no longer exists.
	ErrNodeNotFound = errors.New("node not found")

	// ErrMoveIntoSubtree is returned when a node would be moved below itself.
	ErrMoveIntoSubtree = errors.New("cannot move a node into its own subtree")
)
