// Package dyntree provides a self-balancing dynamic AABB tree.
//
// Leaves store the caller's box and a fattened copy. Moves that stay inside
// the fattened box are applied in place; larger moves detach and reinsert the
// leaf. Insertion descends by least surface-area growth and every structural
// change is followed by an AVL rebalance of the affected path.
package dyntree

import (
	"log/slog"
	"maps"
	"slices"
	"unsafe"

	"github.com/hupe1980/spatialgo/geom"
	"github.com/hupe1980/spatialgo/index"
	"github.com/hupe1980/spatialgo/internal/arena"
	"github.com/hupe1980/spatialgo/internal/queue"
)

// Compile-time checks to ensure Tree satisfies required interfaces.
var (
	_ index.Mutable   = (*Tree)(nil)
	_ index.Nearester = (*Tree)(nil)
)

type node struct {
	fat    geom.AABB // union of children for internal nodes
	parent arena.NodeID
	left   arena.NodeID
	right  arena.NodeID
	height int // leaves are 0

	item index.Item // leaves only; item.Bounds is the actual box
}

func (n *node) leaf() bool { return n.left == arena.Nil }

// Tree is a dynamic AABB tree.
//
// Tree is not safe for concurrent use.
type Tree struct {
	opts   Options
	logger *slog.Logger
	rec    *index.Recorder

	nodes  *arena.Arena[node]
	root   arena.NodeID
	leaves map[string]arena.NodeID

	ops          int
	needsRebuild bool
	rebuilds     int
}

// New creates an empty tree.
func New(optFns ...func(o *Options)) (*Tree, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &Tree{
		opts:   opts,
		logger: index.LoggerOrDiscard(opts.Logger).With("index", index.TypeDynamicTree.String()),
		rec:    index.NewRecorder(index.TypeDynamicTree, opts.EventSink, opts.Clock),
		nodes:  arena.New[node](0),
		root:   arena.Nil,
		leaves: make(map[string]arena.NodeID),
	}, nil
}

// Type returns index.TypeDynamicTree.
func (*Tree) Type() index.Type { return index.TypeDynamicTree }

func (t *Tree) n(id arena.NodeID) *node { return t.nodes.Get(id) }

// Insert adds item. It fails with index.ErrAlreadyExists if the ID is present.
func (t *Tree) Insert(item index.Item) error {
	if _, ok := t.leaves[item.ID]; ok {
		return &index.DuplicateError{ID: item.ID}
	}

	start := t.rec.Now()
	t.prepare()

	if err := t.insert(item); err != nil {
		return err
	}

	if levels := t.height() + 1; levels > t.opts.MaxDepth && !t.needsRebuild {
		t.logger.Warn("tree exceeds max depth, scheduling rebuild",
			"depth", levels,
			"max_depth", t.opts.MaxDepth,
		)
		t.needsRebuild = true
	}

	t.rec.Done(index.OpInsert, item.ID, start, 0)
	t.tick()
	return nil
}

func (t *Tree) insert(item index.Item) error {
	leaf, err := t.nodes.Alloc(node{
		fat:    item.Bounds.Fatten(t.opts.FattenFactor),
		parent: arena.Nil,
		left:   arena.Nil,
		right:  arena.Nil,
		item:   item,
	})
	if err != nil {
		return err
	}
	if err := t.insertLeaf(leaf); err != nil {
		t.nodes.Free(leaf)
		return err
	}
	t.leaves[item.ID] = leaf
	return nil
}

// Update moves an item to bounds. It returns false for unknown IDs.
func (t *Tree) Update(id string, bounds geom.AABB) bool {
	leaf, ok := t.leaves[id]
	if !ok {
		return false
	}

	start := t.rec.Now()
	if t.prepare() {
		leaf = t.leaves[id]
	}

	n := t.n(leaf)
	n.item.Bounds = bounds

	if !n.fat.Contains(bounds) {
		t.removeLeaf(leaf)
		n = t.n(leaf)
		n.fat = bounds.Fatten(t.opts.FattenFactor)
		n.parent = arena.Nil
		// The leaf slot is reused, so no allocation can fail here.
		_ = t.insertLeaf(leaf)
	}

	t.rec.Done(index.OpUpdate, id, start, 0)
	t.tick()
	return true
}

// Remove deletes an item. It returns false for unknown IDs.
func (t *Tree) Remove(id string) bool {
	leaf, ok := t.leaves[id]
	if !ok {
		return false
	}

	start := t.rec.Now()
	if t.prepare() {
		leaf = t.leaves[id]
	}

	t.removeLeaf(leaf)
	t.nodes.Free(leaf)
	delete(t.leaves, id)

	t.rec.Done(index.OpRemove, id, start, 0)
	t.tick()
	return true
}

// insertLeaf links a detached leaf into the tree.
func (t *Tree) insertLeaf(leaf arena.NodeID) error {
	if t.root == arena.Nil {
		t.root = leaf
		t.n(leaf).parent = arena.Nil
		return nil
	}

	fat := t.n(leaf).fat

	sibling := t.root
	for s := t.n(sibling); !s.leaf(); s = t.n(sibling) {
		l, r := t.n(s.left), t.n(s.right)
		costL := l.fat.Union(fat).SurfaceArea() - l.fat.SurfaceArea()
		costR := r.fat.Union(fat).SurfaceArea() - r.fat.SurfaceArea()
		if costL <= costR {
			sibling = s.left
		} else {
			sibling = s.right
		}
	}

	oldParent := t.n(sibling).parent
	parent, err := t.nodes.Alloc(node{
		fat:    t.n(sibling).fat.Union(fat),
		parent: oldParent,
		left:   sibling,
		right:  leaf,
		height: t.n(sibling).height + 1,
	})
	if err != nil {
		return err
	}

	t.replaceChild(oldParent, sibling, parent)
	t.n(sibling).parent = parent
	t.n(leaf).parent = parent

	t.refit(parent)
	return nil
}

// removeLeaf unlinks leaf and splices its sibling into the parent's slot.
// The leaf node itself stays allocated.
func (t *Tree) removeLeaf(leaf arena.NodeID) {
	if leaf == t.root {
		t.root = arena.Nil
		return
	}

	parent := t.n(leaf).parent
	p := t.n(parent)
	grand := p.parent
	sibling := p.left
	if sibling == leaf {
		sibling = p.right
	}

	t.replaceChild(grand, parent, sibling)
	t.n(sibling).parent = grand
	t.nodes.Free(parent)
	t.n(leaf).parent = arena.Nil

	if grand != arena.Nil {
		t.refit(grand)
	}
}

// replaceChild points parent's slot for old at repl. A nil parent means old
// was the root.
func (t *Tree) replaceChild(parent, old, repl arena.NodeID) {
	if parent == arena.Nil {
		t.root = repl
		return
	}
	p := t.n(parent)
	if p.left == old {
		p.left = repl
	} else {
		p.right = repl
	}
}

// refit walks from id to the root recomputing bounds and heights and
// rebalancing every node on the way.
func (t *Tree) refit(id arena.NodeID) {
	for id != arena.Nil {
		t.fix(id)
		id = t.balance(id)
		id = t.n(id).parent
	}
}

func (t *Tree) fix(id arena.NodeID) {
	n := t.n(id)
	l, r := t.n(n.left), t.n(n.right)
	n.height = 1 + max(l.height, r.height)
	n.fat = l.fat.Union(r.fat)
}

// balance rotates the subtree at id when its children's heights differ by
// more than one and returns the subtree's new root.
func (t *Tree) balance(id arena.NodeID) arena.NodeID {
	n := t.n(id)
	if n.leaf() || n.height < 2 {
		return id
	}

	l, r := t.n(n.left), t.n(n.right)
	switch diff := r.height - l.height; {
	case diff > 1:
		if t.n(r.left).height > t.n(r.right).height {
			t.rotateRight(n.right)
		}
		return t.rotateLeft(id)
	case diff < -1:
		if t.n(l.right).height > t.n(l.left).height {
			t.rotateLeft(n.left)
		}
		return t.rotateRight(id)
	default:
		return id
	}
}

// rotateLeft lifts x's right child above x.
func (t *Tree) rotateLeft(x arena.NodeID) arena.NodeID {
	xn := t.n(x)
	y := xn.right
	yn := t.n(y)

	xn.right = yn.left
	t.n(yn.left).parent = x

	yn.parent = xn.parent
	t.replaceChild(xn.parent, x, y)

	yn.left = x
	xn.parent = y

	t.fix(x)
	t.fix(y)
	return y
}

// rotateRight lifts x's left child above x.
func (t *Tree) rotateRight(x arena.NodeID) arena.NodeID {
	xn := t.n(x)
	y := xn.left
	yn := t.n(y)

	xn.left = yn.right
	t.n(yn.right).parent = x

	yn.parent = xn.parent
	t.replaceChild(xn.parent, x, y)

	yn.right = x
	xn.parent = y

	t.fix(x)
	t.fix(y)
	return y
}

// prepare runs a scheduled rebuild before a mutation. It reports whether
// node handles changed.
func (t *Tree) prepare() bool {
	if !t.needsRebuild {
		return false
	}
	t.rebuild()
	return true
}

// tick counts a mutation and rebuilds once RebuildThreshold is reached.
func (t *Tree) tick() {
	t.ops++
	if t.opts.RebuildThreshold > 0 && t.ops >= t.opts.RebuildThreshold {
		t.rebuild()
	}
}

// Rebuild reinserts every item with freshly fattened bounds.
func (t *Tree) Rebuild() {
	t.rebuild()
}

func (t *Tree) rebuild() {
	start := t.rec.Now()
	items := t.Items()
	before := t.height() + 1

	t.reset()
	for _, it := range items {
		// Slots were just released, so allocation cannot fail.
		_ = t.insert(it)
	}
	t.rebuilds++

	t.logger.Debug("tree rebuilt",
		"items", len(items),
		"depth_before", before,
		"depth_after", t.height()+1,
	)
	t.rec.Done(index.OpRebuild, "", start, len(items))
}

func (t *Tree) reset() {
	t.nodes.Reset()
	t.root = arena.Nil
	clear(t.leaves)
	t.ops = 0
	t.needsRebuild = false
}

// Query returns the items whose bounds overlap q.Bounds.
func (t *Tree) Query(q index.Query) []index.Result {
	start := t.rec.Now()

	var results []index.Result
	t.visit(q.Bounds, func(it index.Item) bool {
		if !it.Bounds.Overlaps(q.Bounds) || !q.Accept(it) {
			return true
		}
		results = append(results, index.Result{Item: it})
		return !q.Full(len(results))
	})

	t.rec.Done(index.OpQuery, "", start, len(results))
	return results
}

// visit calls fn for every leaf whose fat bounds overlap box until fn
// returns false.
func (t *Tree) visit(box geom.AABB, fn func(it index.Item) bool) {
	if t.root == arena.Nil {
		return
	}
	stack := []arena.NodeID{t.root}
	for len(stack) > 0 {
		n := t.n(stack[len(stack)-1])
		stack = stack[:len(stack)-1]

		if !n.fat.Overlaps(box) {
			continue
		}
		if n.leaf() {
			if !fn(n.item) {
				return
			}
			continue
		}
		stack = append(stack, n.right, n.left)
	}
}

// Nearest returns the item closest to point. Subtrees whose fat bounds are
// farther than the best match so far are skipped.
func (t *Tree) Nearest(point geom.Vector3, maxDistance float64) (index.Result, bool) {
	start := t.rec.Now()

	var (
		best  index.Result
		found bool
	)

	if t.root != arena.Nil {
		pq := queue.NewMin(16)
		pq.PushItem(queue.PriorityQueueItem{Index: int(t.root), Distance: t.n(t.root).fat.DistanceToPoint(point)})

		for {
			top, ok := pq.PopItem()
			if !ok || !index.WithinDistance(top.Distance, maxDistance) {
				break
			}
			if found && top.Distance > best.Distance {
				break
			}

			n := t.n(arena.NodeID(top.Index))
			if n.leaf() {
				d := n.item.Bounds.DistanceToPoint(point)
				if index.WithinDistance(d, maxDistance) && (!found || d < best.Distance) {
					best, found = index.Result{Item: n.item, Distance: d}, true
				}
				continue
			}

			for _, c := range [2]arena.NodeID{n.left, n.right} {
				pq.PushItem(queue.PriorityQueueItem{Index: int(c), Distance: t.n(c).fat.DistanceToPoint(point)})
			}
		}
	}

	count := 0
	if found {
		count = 1
	}
	t.rec.Done(index.OpNearest, "", start, count)
	return best, found
}

// Get returns the item stored under id.
func (t *Tree) Get(id string) (index.Item, bool) {
	leaf, ok := t.leaves[id]
	if !ok {
		return index.Item{}, false
	}
	return t.n(leaf).item, true
}

// Items returns a copy of every item ordered by ID.
func (t *Tree) Items() []index.Item {
	ids := slices.Sorted(maps.Keys(t.leaves))
	items := make([]index.Item, len(ids))
	for i, id := range ids {
		items[i] = t.n(t.leaves[id]).item
	}
	return items
}

// Len returns the number of indexed items.
func (t *Tree) Len() int { return len(t.leaves) }

// Clear removes every item and resets query statistics.
func (t *Tree) Clear() {
	t.reset()
	t.rec.Reset()
}

func (t *Tree) height() int {
	if t.root == arena.Nil {
		return -1
	}
	return t.n(t.root).height
}

// Rebuilds returns how many full rebuilds have run.
func (t *Tree) Rebuilds() int { return t.rebuilds }

// Debug returns structural and query statistics. Depth counts levels.
func (t *Tree) Debug() index.DebugInfo {
	const mapEntry = int64(unsafe.Sizeof("")) + int64(unsafe.Sizeof(arena.NodeID(0)))

	return index.DebugInfo{
		IndexType:   index.TypeDynamicTree,
		ItemCount:   len(t.leaves),
		NodeCount:   t.nodes.Len(),
		Depth:       t.height() + 1,
		MemoryUsage: t.nodes.Stats().BytesUsed + int64(len(t.leaves))*mapEntry,
		QueryStats:  t.rec.Stats(),
	}
}
