// Package bvh provides a build-once bounding volume hierarchy.
package bvh

import (
	"log/slog"
	"math"
	"slices"
	"unsafe"

	"github.com/hupe1980/spatialgo/geom"
	"github.com/hupe1980/spatialgo/index"
	"github.com/hupe1980/spatialgo/internal/arena"
)

// Compile-time checks to ensure BVH satisfies required interfaces.
var (
	_ index.Builder   = (*BVH)(nil)
	_ index.Nearester = (*BVH)(nil)
	_ index.Raycaster = (*BVH)(nil)
)

// node is either internal (two children, no items) or a leaf.
type node struct {
	bounds      geom.AABB
	left, right arena.NodeID
	items       []int32 // slots in BVH.items, leaves only
}

func (n *node) leaf() bool { return n.left == arena.Nil }

// BVH is a static bounding volume hierarchy. It is rebuilt as a whole and
// has no per-item mutation.
//
// BVH is not safe for concurrent use.
type BVH struct {
	opts   Options
	logger *slog.Logger
	rec    *index.Recorder

	nodes *arena.Arena[node]
	root  arena.NodeID
	items []index.Item
	depth int
}

// New creates an empty BVH.
func New(optFns ...func(o *Options)) (*BVH, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &BVH{
		opts:   opts,
		logger: index.LoggerOrDiscard(opts.Logger).With("index", index.TypeBVH.String()),
		rec:    index.NewRecorder(index.TypeBVH, opts.EventSink, opts.Clock),
		nodes:  arena.New[node](0),
		root:   arena.Nil,
	}, nil
}

// Type returns index.TypeBVH.
func (*BVH) Type() index.Type { return index.TypeBVH }

// Build replaces the hierarchy with one built from items. Duplicate IDs
// fail with index.ErrAlreadyExists and leave the previous tree untouched.
func (b *BVH) Build(items []index.Item) error {
	start := b.rec.Now()

	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			return &index.DuplicateError{ID: it.ID}
		}
		seen[it.ID] = struct{}{}
	}

	b.reset()
	b.items = slices.Clone(items)

	if len(b.items) > 0 {
		slots := make([]int32, len(b.items))
		for i := range slots {
			slots[i] = int32(i)
		}
		root, err := b.build(slots, 1)
		if err != nil {
			b.reset()
			return err
		}
		b.root = root
	}

	b.logger.Debug("bvh built",
		"items", len(b.items),
		"nodes", b.nodes.Len(),
		"depth", b.depth,
		"strategy", b.opts.SplitStrategy.String(),
	)
	b.rec.Done(index.OpRebuild, "", start, len(b.items))
	return nil
}

func (b *BVH) build(slots []int32, depth int) (arena.NodeID, error) {
	b.depth = max(b.depth, depth)

	bounds := b.items[slots[0]].Bounds
	for _, s := range slots[1:] {
		bounds = bounds.Union(b.items[s].Bounds)
	}

	if b.stop(slots, bounds, depth) {
		return b.leaf(slots, bounds)
	}

	var left, right []int32
	if b.opts.SplitStrategy == SplitSAH && len(slots) <= b.opts.SAHMaxItems {
		left, right = b.splitSAH(slots, bounds)
	} else {
		left, right = b.splitMedian(slots, bounds)
	}

	if len(left) == 0 || len(right) == 0 {
		return b.leaf(slots, bounds)
	}

	l, err := b.build(left, depth+1)
	if err != nil {
		return arena.Nil, err
	}
	r, err := b.build(right, depth+1)
	if err != nil {
		return arena.Nil, err
	}

	return b.nodes.Alloc(node{bounds: bounds, left: l, right: r})
}

func (b *BVH) stop(slots []int32, bounds geom.AABB, depth int) bool {
	if len(slots) <= b.opts.MaxItemsPerLeaf || depth >= b.opts.MaxDepth {
		return true
	}
	_, extent := bounds.LongestAxis()
	return extent < b.opts.MinNodeExtent
}

func (b *BVH) leaf(slots []int32, bounds geom.AABB) (arena.NodeID, error) {
	return b.nodes.Alloc(node{
		bounds: bounds,
		left:   arena.Nil,
		right:  arena.Nil,
		items:  slices.Clone(slots),
	})
}

func (b *BVH) centroid(slot int32, axis geom.Axis) float64 {
	return geom.Component(b.items[slot].Bounds.Center(), axis)
}

func (b *BVH) sortAlong(slots []int32, axis geom.Axis) {
	slices.SortStableFunc(slots, func(x, y int32) int {
		cx, cy := b.centroid(x, axis), b.centroid(y, axis)
		switch {
		case cx < cy:
			return -1
		case cx > cy:
			return 1
		default:
			return 0
		}
	})
}

// splitMedian sorts by centroid along the node's longest axis and cuts the
// list in half.
func (b *BVH) splitMedian(slots []int32, bounds geom.AABB) ([]int32, []int32) {
	axis, _ := bounds.LongestAxis()
	sorted := slices.Clone(slots)
	b.sortAlong(sorted, axis)
	mid := len(sorted) / 2
	return sorted[:mid], sorted[mid:]
}

// splitSAH evaluates up to SAHCandidates cut positions per axis and keeps the
// cheapest. The cost of a cut is
// TraversalCost + SA(left)/SA(parent)*|left| + SA(right)/SA(parent)*|right|.
func (b *BVH) splitSAH(slots []int32, bounds geom.AABB) ([]int32, []int32) {
	parentSA := bounds.SurfaceArea()
	if parentSA <= 0 {
		return b.splitMedian(slots, bounds)
	}

	n := len(slots)
	sorted := slices.Clone(slots)
	suffix := make([]geom.AABB, n)
	cuts := candidateCuts(n, b.opts.SAHCandidates)

	bestCost := math.Inf(1)
	bestAxis := geom.AxisX
	bestCut := 0

	for axis := geom.AxisX; axis <= geom.AxisZ; axis++ {
		copy(sorted, slots)
		b.sortAlong(sorted, axis)

		suffix[n-1] = b.items[sorted[n-1]].Bounds
		for i := n - 2; i >= 0; i-- {
			suffix[i] = suffix[i+1].Union(b.items[sorted[i]].Bounds)
		}

		prefix := b.items[sorted[0]].Bounds
		next := 0
		for cut := 1; cut < n && next < len(cuts); cut++ {
			if cut > 1 {
				prefix = prefix.Union(b.items[sorted[cut-1]].Bounds)
			}
			if cut != cuts[next] {
				continue
			}
			next++

			cost := b.opts.TraversalCost +
				prefix.SurfaceArea()/parentSA*float64(cut) +
				suffix[cut].SurfaceArea()/parentSA*float64(n-cut)
			if cost < bestCost {
				bestCost, bestAxis, bestCut = cost, axis, cut
			}
		}
	}

	if bestCut == 0 {
		return nil, slots
	}

	copy(sorted, slots)
	b.sortAlong(sorted, bestAxis)
	return sorted[:bestCut], sorted[bestCut:]
}

// candidateCuts spreads at most limit cut positions evenly over the n-1
// possible cuts of n sorted items. Positions are ascending and distinct.
func candidateCuts(n, limit int) []int {
	total := n - 1
	if total <= limit {
		cuts := make([]int, total)
		for i := range cuts {
			cuts[i] = i + 1
		}
		return cuts
	}
	cuts := make([]int, limit)
	for k := range cuts {
		cuts[k] = 1 + k*total/limit
	}
	return cuts
}

// Query returns the items whose bounds overlap q.Bounds.
func (b *BVH) Query(q index.Query) []index.Result {
	start := b.rec.Now()
	results := b.query(q)
	b.rec.Done(index.OpQuery, "", start, len(results))
	return results
}

func (b *BVH) query(q index.Query) []index.Result {
	var results []index.Result
	if b.root == arena.Nil {
		return results
	}

	stack := []arena.NodeID{b.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := b.nodes.Get(id)
		if !n.bounds.Overlaps(q.Bounds) {
			continue
		}

		if !n.leaf() {
			stack = append(stack, n.right, n.left)
			continue
		}

		for _, s := range n.items {
			it := b.items[s]
			if !it.Bounds.Overlaps(q.Bounds) || !q.Accept(it) {
				continue
			}
			results = append(results, index.Result{Item: it})
			if q.Full(len(results)) {
				return results
			}
		}
	}
	return results
}

// Nearest returns the item closest to point. Every leaf is visited.
func (b *BVH) Nearest(point geom.Vector3, maxDistance float64) (index.Result, bool) {
	start := b.rec.Now()

	var (
		best  index.Result
		found bool
	)
	b.forEachLeaf(func(n *node) {
		for _, s := range n.items {
			it := b.items[s]
			d := it.Bounds.DistanceToPoint(point)
			if !index.WithinDistance(d, maxDistance) {
				continue
			}
			if !found || d < best.Distance {
				best, found = index.Result{Item: it, Distance: d}, true
			}
		}
	})

	count := 0
	if found {
		count = 1
	}
	b.rec.Done(index.OpNearest, "", start, count)
	return best, found
}

// Raycast returns the items overlapping the box around the ray segment,
// ordered by distance from origin.
func (b *BVH) Raycast(origin, direction geom.Vector3, maxDistance float64) []index.Result {
	start := b.rec.Now()
	hits := b.query(index.Query{Bounds: index.RayBounds(origin, direction, maxDistance)})
	results := index.RayResults(hits, origin)
	b.rec.Done(index.OpRaycast, "", start, len(results))
	return results
}

func (b *BVH) forEachLeaf(fn func(n *node)) {
	if b.root == arena.Nil {
		return
	}
	stack := []arena.NodeID{b.root}
	for len(stack) > 0 {
		n := b.nodes.Get(stack[len(stack)-1])
		stack = stack[:len(stack)-1]
		if n.leaf() {
			fn(n)
			continue
		}
		stack = append(stack, n.right, n.left)
	}
}

// Items returns a copy of the indexed items in build order.
func (b *BVH) Items() []index.Item {
	return slices.Clone(b.items)
}

// Len returns the number of indexed items.
func (b *BVH) Len() int { return len(b.items) }

// Bounds returns the root bounds. ok is false for an empty hierarchy.
func (b *BVH) Bounds() (geom.AABB, bool) {
	if b.root == arena.Nil {
		return geom.AABB{}, false
	}
	return b.nodes.Get(b.root).bounds, true
}

// Clear drops the hierarchy and resets query statistics.
func (b *BVH) Clear() {
	b.reset()
	b.rec.Reset()
}

func (b *BVH) reset() {
	b.nodes.Reset()
	b.root = arena.Nil
	b.items = nil
	b.depth = 0
}

// Debug returns structural and query statistics. Depth counts levels, so a
// single-leaf hierarchy has depth 1.
func (b *BVH) Debug() index.DebugInfo {
	var leafSlots int
	b.forEachLeaf(func(n *node) { leafSlots += cap(n.items) })

	mem := b.nodes.Stats().BytesUsed +
		int64(cap(b.items))*int64(unsafe.Sizeof(index.Item{})) +
		int64(leafSlots)*4

	return index.DebugInfo{
		IndexType:   index.TypeBVH,
		ItemCount:   len(b.items),
		NodeCount:   b.nodes.Len(),
		Depth:       b.depth,
		MemoryUsage: mem,
		QueryStats:  b.rec.Stats(),
	}
}
