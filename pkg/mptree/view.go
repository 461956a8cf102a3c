package mptree

// Branch is an in-memory node with its children attached.
type Branch[T any] struct {
	Node     *Node[T]
	Children []*Branch[T]
}

// Walk visits b and its descendants depth first. Returning false from fn
// skips the children of that branch.
func (b *Branch[T]) Walk(fn func(b *Branch[T], level int) bool) {
	b.walk(fn, 0)
}

func (b *Branch[T]) walk(fn func(b *Branch[T], level int) bool, level int) {
	if !fn(b, level) {
		return
	}
	for _, c := range b.Children {
		c.walk(fn, level+1)
	}
}

// Find returns the branch holding path, nil if it is not part of b.
func (b *Branch[T]) Find(path string) *Branch[T] {
	var found *Branch[T]
	b.Walk(func(c *Branch[T], _ int) bool {
		if found != nil {
			return false
		}
		if c.Node.Path == path {
			found = c
			return false
		}
		return c.Node.Path == b.Node.Path || IsDescendantPath(path, c.Node.Path)
	})
	return found
}

// View is the result of Tree.GetTree: either a SingleTree or a Forest.
// Only real stored nodes appear in a View.
type View[T any] interface {
	// Branches returns the top-level branches, one for a SingleTree.
	Branches() []*Branch[T]
	isView()
}

// SingleTree is a view whose rows share one top node.
type SingleTree[T any] struct {
	Root *Branch[T]
}

func (s SingleTree[T]) Branches() []*Branch[T] { return []*Branch[T]{s.Root} }
func (SingleTree[T]) isView()                  {}

// Forest is a view holding several disjoint top-level trees.
type Forest[T any] struct {
	Roots []*Branch[T]
}

func (f Forest[T]) Branches() []*Branch[T] { return f.Roots }
func (Forest[T]) isView()                  {}

// buildView links nodes to their parents. nodes must be sorted so that every
// parent precedes its children; a node whose parent is absent becomes a top.
func buildView[T any](nodes []*Node[T]) View[T] {
	byPath := make(map[string]*Branch[T], len(nodes))
	var tops []*Branch[T]
	for _, n := range nodes {
		b := &Branch[T]{Node: n}
		byPath[n.Path] = b
		if parent, ok := byPath[ParentPath(n.Path)]; ok {
			parent.Children = append(parent.Children, b)
		} else {
			tops = append(tops, b)
		}
	}

	switch len(tops) {
	case 0:
		return nil
	case 1:
		return SingleTree[T]{Root: tops[0]}
	default:
		return Forest[T]{Roots: tops}
	}
}
