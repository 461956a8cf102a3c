package conversation

import "github.com/pkg/errors"

var (
	// ErrMessageNotFound is returned by mutations addressed to a missing path.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNoSibling is returned when sibling navigation runs past either end.
	ErrNoSibling = errors.New("no sibling in that direction")
)
