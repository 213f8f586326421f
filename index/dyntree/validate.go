package dyntree

import (
	"errors"
	"fmt"

	"github.com/hupe1980/spatialgo/internal/arena"
)

// ErrCorrupt is wrapped by every error returned from Validate.
var ErrCorrupt = errors.New("dyntree: corrupt tree")

// Validate walks the whole tree and checks parent links, heights, AVL
// balance, bounds containment and the ID lookup table.
func (t *Tree) Validate() error {
	if t.root == arena.Nil {
		if len(t.leaves) != 0 || t.nodes.Len() != 0 {
			return fmt.Errorf("%w: empty root with %d leaves and %d nodes", ErrCorrupt, len(t.leaves), t.nodes.Len())
		}
		return nil
	}

	if p := t.n(t.root).parent; p != arena.Nil {
		return fmt.Errorf("%w: root has parent %d", ErrCorrupt, p)
	}

	leaves, err := t.validate(t.root)
	if err != nil {
		return err
	}

	if leaves != len(t.leaves) {
		return fmt.Errorf("%w: %d leaves reachable, %d registered", ErrCorrupt, leaves, len(t.leaves))
	}
	if want := 2*leaves - 1; t.nodes.Len() != want {
		return fmt.Errorf("%w: %d nodes allocated, want %d", ErrCorrupt, t.nodes.Len(), want)
	}

	for id, leaf := range t.leaves {
		n := t.n(leaf)
		if n == nil || !n.leaf() || n.item.ID != id {
			return fmt.Errorf("%w: lookup entry %q does not point at its leaf", ErrCorrupt, id)
		}
	}
	return nil
}

func (t *Tree) validate(id arena.NodeID) (int, error) {
	n := t.n(id)
	if n == nil {
		return 0, fmt.Errorf("%w: dangling node %d", ErrCorrupt, id)
	}

	if n.leaf() {
		if n.right != arena.Nil {
			return 0, fmt.Errorf("%w: leaf %d has a right child", ErrCorrupt, id)
		}
		if n.height != 0 {
			return 0, fmt.Errorf("%w: leaf %d has height %d", ErrCorrupt, id, n.height)
		}
		if !n.fat.Contains(n.item.Bounds) {
			return 0, fmt.Errorf("%w: leaf %q fat bounds do not contain actual bounds", ErrCorrupt, n.item.ID)
		}
		return 1, nil
	}

	if n.right == arena.Nil {
		return 0, fmt.Errorf("%w: internal node %d has one child", ErrCorrupt, id)
	}

	l, r := t.n(n.left), t.n(n.right)
	if l == nil || r == nil {
		return 0, fmt.Errorf("%w: internal node %d has a dangling child", ErrCorrupt, id)
	}
	if l.parent != id || r.parent != id {
		return 0, fmt.Errorf("%w: children of %d have wrong parent links", ErrCorrupt, id)
	}
	if want := 1 + max(l.height, r.height); n.height != want {
		return 0, fmt.Errorf("%w: node %d height %d, want %d", ErrCorrupt, id, n.height, want)
	}
	if diff := l.height - r.height; diff > 1 || diff < -1 {
		return 0, fmt.Errorf("%w: node %d is unbalanced (%d vs %d)", ErrCorrupt, id, l.height, r.height)
	}
	if n.fat != l.fat.Union(r.fat) {
		return 0, fmt.Errorf("%w: node %d bounds are not the union of its children", ErrCorrupt, id)
	}

	left, err := t.validate(n.left)
	if err != nil {
		return 0, err
	}
	right, err := t.validate(n.right)
	if err != nil {
		return 0, err
	}
	return left + right, nil
}
