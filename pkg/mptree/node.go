package mptree

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Node is a handle on one stored path. Relationship queries are prefix and
// segment-count filters over the flat table; a path that no longer exists
// simply yields empty results.
type Node[T any] struct {
	Path     string
	ThreadID int64
	Data     T

	tree *Tree[T]
}

// ParentPath returns the path of the parent, "" for a single-segment path.
func (n *Node[T]) ParentPath() string {
	return ParentPath(n.Path)
}

// Depth returns the number of segments of the node's path.
func (n *Node[T]) Depth() int {
	return Depth(n.Path)
}

// =============================================================================
// Relationships
// =============================================================================

// Parent fetches the parent node, nil if it is not stored.
func (n *Node[T]) Parent(ctx context.Context) (*Node[T], error) {
	parent := n.ParentPath()
	if parent == "" {
		return nil, nil
	}
	return n.tree.GetNode(ctx, parent)
}

// Root fetches the root-level ancestor (or the node itself).
func (n *Node[T]) Root(ctx context.Context) (*Node[T], error) {
	if n.Depth() < n.tree.rootDepth {
		return nil, nil
	}
	return n.tree.GetNode(ctx, PathPrefix(n.Path, n.tree.rootDepth))
}

// Children returns the direct children in numeric path order.
func (n *Node[T]) Children(ctx context.Context) ([]*Node[T], error) {
	where, args := childrenWhere(n.Path)
	return n.tree.selectNodes(ctx, where, args...)
}

// ChildrenCount counts the direct children.
func (n *Node[T]) ChildrenCount(ctx context.Context) (int, error) {
	where, args := childrenWhere(n.Path)
	return n.tree.count(ctx, where, args...)
}

// Descendants returns every node below this one, at any depth.
func (n *Node[T]) Descendants(ctx context.Context) ([]*Node[T], error) {
	return n.tree.selectNodes(ctx, "path LIKE ?", n.Path+Separator+"%")
}

// DescendantCount counts every node below this one.
func (n *Node[T]) DescendantCount(ctx context.Context) (int, error) {
	return n.tree.count(ctx, "path LIKE ?", n.Path+Separator+"%")
}

// Ancestors returns the stored proper prefixes of the path, outermost first.
func (n *Node[T]) Ancestors(ctx context.Context) ([]*Node[T], error) {
	paths := AncestorPaths(n.Path)
	if len(paths) == 0 {
		return nil, nil
	}
	args := make([]any, len(paths))
	for i, p := range paths {
		args[i] = p
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(paths)), ", ")
	return n.tree.selectNodes(ctx, fmt.Sprintf("path IN (%s)", placeholders), args...)
}

// Siblings returns the children of the parent, optionally including this node.
func (n *Node[T]) Siblings(ctx context.Context, includeSelf bool) ([]*Node[T], error) {
	where, args := childrenWhere(n.ParentPath())
	if !includeSelf {
		where += " AND path != ?"
		args = append(args, n.Path)
	}
	return n.tree.selectNodes(ctx, where, args...)
}

// FirstChild returns the child with the lowest index.
func (n *Node[T]) FirstChild(ctx context.Context) (*Node[T], error) {
	children, err := n.Children(ctx)
	return firstNode(children), err
}

// LastChild returns the child with the highest index.
func (n *Node[T]) LastChild(ctx context.Context) (*Node[T], error) {
	children, err := n.Children(ctx)
	return lastNode(children), err
}

// FirstSibling returns the sibling with the lowest index, possibly this node.
func (n *Node[T]) FirstSibling(ctx context.Context) (*Node[T], error) {
	siblings, err := n.Siblings(ctx, true)
	return firstNode(siblings), err
}

// LastSibling returns the sibling with the highest index, possibly this node.
func (n *Node[T]) LastSibling(ctx context.Context) (*Node[T], error) {
	siblings, err := n.Siblings(ctx, true)
	return lastNode(siblings), err
}

// PrevSibling returns the nearest sibling ordered before this node.
func (n *Node[T]) PrevSibling(ctx context.Context) (*Node[T], error) {
	siblings, err := n.Siblings(ctx, false)
	if err != nil {
		return nil, err
	}
	var prev *Node[T]
	for _, s := range siblings {
		if ComparePaths(s.Path, n.Path) < 0 {
			prev = s
		}
	}
	return prev, nil
}

// NextSibling returns the nearest sibling ordered after this node.
func (n *Node[T]) NextSibling(ctx context.Context) (*Node[T], error) {
	siblings, err := n.Siblings(ctx, false)
	if err != nil {
		return nil, err
	}
	for _, s := range siblings {
		if ComparePaths(s.Path, n.Path) > 0 {
			return s, nil
		}
	}
	return nil, nil
}

// IsChildOf reports whether other is the direct parent of n.
func (n *Node[T]) IsChildOf(other *Node[T]) bool {
	return other != nil && n.ParentPath() == other.Path
}

// IsDescendantOf reports whether n lies anywhere below other.
func (n *Node[T]) IsDescendantOf(other *Node[T]) bool {
	return other != nil && IsDescendantPath(n.Path, other.Path)
}

// IsSiblingOf reports whether n and other are distinct nodes sharing a parent.
func (n *Node[T]) IsSiblingOf(other *Node[T]) bool {
	return other != nil && other.Path != n.Path && other.ParentPath() == n.ParentPath()
}

// IsRoot reports whether the node sits at the tree's root depth.
func (n *Node[T]) IsRoot() bool {
	return n.Depth() == n.tree.rootDepth
}

// IsLeaf reports whether the node has no children.
func (n *Node[T]) IsLeaf(ctx context.Context) (bool, error) {
	count, err := n.ChildrenCount(ctx)
	return count == 0, err
}

// =============================================================================
// Mutations
// =============================================================================

// AddChild stores data as the next child of n.
func (n *Node[T]) AddChild(ctx context.Context, data T) (*Node[T], error) {
	return n.tree.AddNode(ctx, n.Path, data)
}

// AddSibling stores data as the next child of n's parent.
func (n *Node[T]) AddSibling(ctx context.Context, data T) (*Node[T], error) {
	return n.tree.AddNode(ctx, n.ParentPath(), data)
}

// Update overwrites the payload. The path is unchanged.
func (n *Node[T]) Update(ctx context.Context, data T) error {
	if _, err := n.tree.UpdateNode(ctx, n.Path, data); err != nil {
		return err
	}
	n.Data = data
	return nil
}

// Delete removes n and its whole subtree.
func (n *Node[T]) Delete(ctx context.Context) error {
	return n.tree.DeleteNode(ctx, n.Path)
}

// Move re-parents n (and everything below it) under newParentPath. An empty
// newParentPath moves the subtree into a new thread. The destination must not
// be n or one of its descendants; that is checked before anything is written.
// A handle whose row was deleted fails with ErrNodeNotFound and keeps its path.
// All paths are rewritten by a single UPDATE, so the subtree is never split.
func (n *Node[T]) Move(ctx context.Context, newParentPath string) error {
	if newParentPath == n.Path || IsDescendantPath(newParentPath, n.Path) {
		return errors.Wrapf(ErrMoveIntoSubtree, "move %s under %s", n.Path, newParentPath)
	}
	if newParentPath != "" && !ValidPath(newParentPath) {
		return errors.Wrapf(ErrInvalidPath, "move target %q", newParentPath)
	}

	current, err := n.tree.GetNode(ctx, n.Path)
	if err != nil {
		return err
	}
	if current == nil {
		return errors.Wrapf(ErrNodeNotFound, "move %s", n.Path)
	}

	newPath, err := n.tree.NextChildPath(ctx, newParentPath)
	if err != nil {
		return err
	}

	oldPath := n.Path
	// SUBSTR from len(oldPath)+1 is "" for the node itself and ".x.y" for descendants.
	if err := n.tree.db.Execute(ctx, fmt.Sprintf(`
		UPDATE %s
		SET path = ? || SUBSTR(path, ?)
		WHERE path = ? OR path LIKE ?`, n.tree.table),
		newPath, len(oldPath)+1, oldPath, oldPath+Separator+"%"); err != nil {
		return err
	}

	n.Path = newPath
	n.ThreadID = ThreadID(newPath)
	return nil
}

func firstNode[T any](nodes []*Node[T]) *Node[T] {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func lastNode[T any](nodes []*Node[T]) *Node[T] {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[len(nodes)-1]
}
