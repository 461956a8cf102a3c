// Package mptree stores trees in a single flat table using materialized paths.
// A path is a dot-separated list of positive integers ("12.3.1"); removing the
// last segment yields the parent, the first segment is the thread id.
package mptree

import (
	"strconv"
	"strings"
)

// Separator joins path segments.
const Separator = "."

// Segments parses a path into its integer segments.
// Returns false if the path is empty or any segment is not a positive integer
// in canonical form ("01" is rejected, so every number has one spelling).
func Segments(path string) ([]int64, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, Separator)
	segs := make([]int64, len(parts))
	for i, p := range parts {
		if p == "" || p[0] == '+' || p[0] == '-' || (len(p) > 1 && p[0] == '0') {
			return nil, false
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n <= 0 {
			return nil, false
		}
		segs[i] = n
	}
	return segs, true
}

// ValidPath reports whether path is a well-formed materialized path.
func ValidPath(path string) bool {
	_, ok := Segments(path)
	return ok
}

// JoinPath builds a path from integer segments.
func JoinPath(segs ...int64) string {
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = strconv.FormatInt(s, 10)
	}
	return strings.Join(parts, Separator)
}

// ParentPath returns everything before the last dot, or "" for a single segment.
func ParentPath(path string) string {
	i := strings.LastIndex(path, Separator)
	if i < 0 {
		return ""
	}
	return path[:i]
}

// Depth is the number of segments in path.
func Depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, Separator) + 1
}

// LastSegment returns the numeric value of the last segment, 0 if malformed.
func LastSegment(path string) int64 {
	n, err := strconv.ParseInt(path[strings.LastIndex(path, Separator)+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ThreadID returns the first segment of path, 0 if malformed.
func ThreadID(path string) int64 {
	head, _, _ := strings.Cut(path, Separator)
	n, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// PathPrefix returns the first n segments of path.
func PathPrefix(path string, n int) string {
	if n <= 0 {
		return ""
	}
	parts := strings.SplitN(path, Separator, n+1)
	if len(parts) <= n {
		return path
	}
	return strings.Join(parts[:n], Separator)
}

// AncestorPaths lists every proper prefix of path, shortest first.
func AncestorPaths(path string) []string {
	var out []string
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			out = append(out, path[:i])
		}
	}
	return out
}

// IsDescendantPath reports whether path lies strictly below ancestor.
func IsDescendantPath(path, ancestor string) bool {
	return ancestor != "" && strings.HasPrefix(path, ancestor+Separator)
}

// ComparePaths orders paths segment by segment as integers, so "1.9" sorts
// before "1.10". A path sorts before its own descendants.
// Malformed segments compare as 0.
func ComparePaths(a, b string) int {
	for a != "" && b != "" {
		var ha, hb string
		ha, a, _ = strings.Cut(a, Separator)
		hb, b, _ = strings.Cut(b, Separator)
		na, _ := strconv.ParseInt(ha, 10, 64)
		nb, _ := strconv.ParseInt(hb, 10, 64)
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
	}
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return -1
	default:
		return 1
	}
}
