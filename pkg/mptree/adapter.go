package mptree

import (
	"context"
	"strconv"
)

// Row is one result row keyed by column name.
type Row = map[string]any

// Adapter is the storage contract the tree depends on.
// Implementations must serialise statements; the tree issues parameterised
// queries only and never retries a failed call.
type Adapter interface {
	Select(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	Execute(ctx context.Context, query string, args ...any) error
}

// RowString reads a text column, accepting the []byte form some drivers return.
func RowString(r Row, col string) string {
	switch v := r[col].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	default:
		return ""
	}
}

// RowInt reads an integer column. NULL reads as 0.
func RowInt(r Row, col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	case []byte:
		n, _ := strconv.ParseInt(string(v), 10, 64)
		return n
	default:
		return 0
	}
}
