// Package gridhash provides a uniform spatial hash over a bounded world.
//
// The world box is divided into cubical cells. Each occupied cell keeps a
// roaring set of item handles, and each item remembers the cells it occupies
// so moves only touch the cells that changed.
package gridhash

import (
	"log/slog"
	"maps"
	"math"
	"slices"
	"time"
	"unsafe"

	"golang.org/x/time/rate"

	"github.com/hupe1980/spatialgo/geom"
	"github.com/hupe1980/spatialgo/index"
	"github.com/hupe1980/spatialgo/internal/arena"
	"github.com/hupe1980/spatialgo/internal/bitmap"
)

// Compile-time check to ensure Grid satisfies the mutable index interface.
var _ index.Mutable = (*Grid)(nil)

// CellKey is the integer coordinate of a cell.
type CellKey struct {
	X, Y, Z int32
}

type cell struct {
	items      *bitmap.Set
	lastAccess time.Time
}

type entry struct {
	item  index.Item
	cells []CellKey
}

// Grid is a uniform spatial hash.
//
// Grid is not safe for concurrent use.
type Grid struct {
	opts   Options
	logger *slog.Logger
	rec    *index.Recorder
	warn   *rate.Limiter

	dims [3]int32

	cells   map[CellKey]*cell
	entries *arena.Arena[entry]
	handles map[string]arena.NodeID

	lastSweep time.Time
}

// New creates an empty grid. CellSize and World are required; invalid values
// fail with index.ErrInvalidOptions.
func New(optFns ...func(o *Options)) (*Grid, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}

	limit := rate.Inf
	if opts.WarnEvery > 0 {
		limit = rate.Every(opts.WarnEvery)
	}

	g := &Grid{
		opts:    opts,
		logger:  index.LoggerOrDiscard(opts.Logger).With("index", index.TypeGridHash.String()),
		rec:     index.NewRecorder(index.TypeGridHash, opts.EventSink, opts.Clock),
		warn:    rate.NewLimiter(limit, 1),
		cells:   make(map[CellKey]*cell),
		entries: arena.New[entry](0),
		handles: make(map[string]arena.NodeID),
	}

	size := opts.World.Size()
	for i, extent := range []float64{size.X, size.Y, size.Z} {
		g.dims[i] = int32(max(1, math.Ceil(extent/opts.CellSize)))
	}
	g.lastSweep = g.rec.Now()

	return g, nil
}

// Type returns index.TypeGridHash.
func (*Grid) Type() index.Type { return index.TypeGridHash }

// Dims returns the number of cells along each axis.
func (g *Grid) Dims() (x, y, z int32) {
	return g.dims[0], g.dims[1], g.dims[2]
}

func (g *Grid) coord(v, origin float64, axis int) int32 {
	c := math.Floor((v - origin) / g.opts.CellSize)
	switch {
	case c < 0:
		return 0
	case c > float64(g.dims[axis]-1):
		return g.dims[axis] - 1
	default:
		return int32(c)
	}
}

// cellRange returns the inclusive cell range covered by box after clamping
// it to the world. ok is false when box lies entirely outside the world.
func (g *Grid) cellRange(box geom.AABB) (lo, hi CellKey, ok bool) {
	if !box.Valid() || !box.Overlaps(g.opts.World) {
		return CellKey{}, CellKey{}, false
	}
	box = box.Clamp(g.opts.World)
	w := g.opts.World.Min

	lo = CellKey{g.coord(box.Min.X, w.X, 0), g.coord(box.Min.Y, w.Y, 1), g.coord(box.Min.Z, w.Z, 2)}
	hi = CellKey{g.coord(box.Max.X, w.X, 0), g.coord(box.Max.Y, w.Y, 1), g.coord(box.Max.Z, w.Z, 2)}
	return lo, hi, true
}

// CellsFor returns the keys of every cell box occupies, in x-major order.
func (g *Grid) CellsFor(box geom.AABB) []CellKey {
	lo, hi, ok := g.cellRange(box)
	if !ok {
		return nil
	}
	keys := make([]CellKey, 0, int(hi.X-lo.X+1)*int(hi.Y-lo.Y+1)*int(hi.Z-lo.Z+1))
	for x := lo.X; x <= hi.X; x++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for z := lo.Z; z <= hi.Z; z++ {
				keys = append(keys, CellKey{x, y, z})
			}
		}
	}
	return keys
}

// Insert adds item. It fails with index.ErrAlreadyExists if the ID is present.
// Items entirely outside the world are kept but occupy no cells.
func (g *Grid) Insert(item index.Item) error {
	if _, ok := g.handles[item.ID]; ok {
		return &index.DuplicateError{ID: item.ID}
	}

	start := g.rec.Now()

	keys := g.CellsFor(item.Bounds)
	h, err := g.entries.Alloc(entry{item: item, cells: keys})
	if err != nil {
		return err
	}
	g.handles[item.ID] = h

	for _, k := range keys {
		g.addToCell(k, h, start)
	}

	g.rec.Done(index.OpInsert, item.ID, start, 0)
	return nil
}

func (g *Grid) addToCell(k CellKey, h arena.NodeID, now time.Time) {
	c, ok := g.cells[k]
	if !ok {
		c = &cell{items: bitmap.New()}
		g.cells[k] = c
	}
	c.items.Add(uint32(h))
	c.lastAccess = now

	if n := c.items.Cardinality(); g.opts.MaxItemsPerCell > 0 && n > g.opts.MaxItemsPerCell && g.warn.Allow() {
		g.logger.Warn("cell over capacity",
			"cell", k,
			"items", n,
			"max_items_per_cell", g.opts.MaxItemsPerCell,
		)
	}
}

// Update moves an item to bounds, touching only the cells that changed.
// It returns false for unknown IDs.
func (g *Grid) Update(id string, bounds geom.AABB) bool {
	h, ok := g.handles[id]
	if !ok {
		return false
	}

	start := g.rec.Now()
	e := g.entries.Get(h)

	keys := g.CellsFor(bounds)
	next := make(map[CellKey]struct{}, len(keys))
	for _, k := range keys {
		next[k] = struct{}{}
	}
	prev := make(map[CellKey]struct{}, len(e.cells))
	for _, k := range e.cells {
		prev[k] = struct{}{}
		if _, keep := next[k]; !keep {
			g.cells[k].items.Remove(uint32(h))
		}
	}
	for _, k := range keys {
		if _, had := prev[k]; !had {
			g.addToCell(k, h, start)
		}
	}

	e.item.Bounds = bounds
	e.cells = keys

	g.rec.Done(index.OpUpdate, id, start, 0)
	return true
}

// Remove deletes an item. Cells it leaves empty stay until the next sweep.
// It returns false for unknown IDs.
func (g *Grid) Remove(id string) bool {
	h, ok := g.handles[id]
	if !ok {
		return false
	}

	start := g.rec.Now()
	for _, k := range g.entries.Get(h).cells {
		g.cells[k].items.Remove(uint32(h))
	}
	g.entries.Free(h)
	delete(g.handles, id)

	g.rec.Done(index.OpRemove, id, start, 0)
	return true
}

// Query returns the items whose bounds overlap q.Bounds. Each item is
// reported once no matter how many cells it spans.
func (g *Grid) Query(q index.Query) []index.Result {
	start := g.rec.Now()

	var results []index.Result

	if lo, hi, ok := g.cellRange(q.Bounds); ok {
		candidates := bitmap.Get()
		defer bitmap.Put(candidates)

		touch := func(c *cell) {
			c.lastAccess = start
			candidates.Or(c.items)
		}

		span := int64(hi.X-lo.X+1) * int64(hi.Y-lo.Y+1) * int64(hi.Z-lo.Z+1)
		if span > int64(len(g.cells)) {
			for k, c := range g.cells {
				if inRange(k, lo, hi) {
					touch(c)
				}
			}
		} else {
			for x := lo.X; x <= hi.X; x++ {
				for y := lo.Y; y <= hi.Y; y++ {
					for z := lo.Z; z <= hi.Z; z++ {
						if c, ok := g.cells[CellKey{x, y, z}]; ok {
							touch(c)
						}
					}
				}
			}
		}

		candidates.ForEach(func(h uint32) bool {
			it := g.entries.Get(arena.NodeID(h)).item
			if !it.Bounds.Overlaps(q.Bounds) || !q.Accept(it) {
				return true
			}
			results = append(results, index.Result{Item: it})
			return !q.Full(len(results))
		})
	}

	g.sweep(start)
	g.rec.Done(index.OpQuery, "", start, len(results))
	return results
}

func inRange(k, lo, hi CellKey) bool {
	return k.X >= lo.X && k.X <= hi.X &&
		k.Y >= lo.Y && k.Y <= hi.Y &&
		k.Z >= lo.Z && k.Z <= hi.Z
}

// sweep drops empty cells idle for longer than IdleTimeout. It runs at most
// once per CleanupInterval.
func (g *Grid) sweep(now time.Time) {
	if now.Sub(g.lastSweep) < g.opts.CleanupInterval {
		return
	}
	g.lastSweep = now

	removed := 0
	for k, c := range g.cells {
		if c.items.IsEmpty() && now.Sub(c.lastAccess) > g.opts.IdleTimeout {
			delete(g.cells, k)
			removed++
		}
	}

	if removed > 0 {
		g.logger.Debug("idle cells swept", "removed", removed, "remaining", len(g.cells))
	}
}

// Get returns the item stored under id.
func (g *Grid) Get(id string) (index.Item, bool) {
	h, ok := g.handles[id]
	if !ok {
		return index.Item{}, false
	}
	return g.entries.Get(h).item, true
}

// Items returns a copy of every item ordered by ID.
func (g *Grid) Items() []index.Item {
	ids := slices.Sorted(maps.Keys(g.handles))
	items := make([]index.Item, len(ids))
	for i, id := range ids {
		items[i] = g.entries.Get(g.handles[id]).item
	}
	return items
}

// Len returns the number of indexed items, including items outside the world.
func (g *Grid) Len() int { return len(g.handles) }

// CellCount returns the number of cells currently allocated, empty or not.
func (g *Grid) CellCount() int { return len(g.cells) }

// Clear removes every item and cell and resets query statistics.
func (g *Grid) Clear() {
	clear(g.cells)
	clear(g.handles)
	g.entries.Reset()
	g.rec.Reset()
	g.lastSweep = g.rec.Now()
}

// Debug returns occupancy and query statistics. NodeCount is the number of
// allocated cells; the grid is flat, so Depth is 1 once any cell exists.
func (g *Grid) Debug() index.DebugInfo {
	var mem int64
	for _, c := range g.cells {
		mem += c.items.SizeInBytes() + int64(unsafe.Sizeof(CellKey{})) + int64(unsafe.Sizeof(cell{}))
	}
	for _, h := range g.handles {
		mem += int64(len(g.entries.Get(h).cells)) * int64(unsafe.Sizeof(CellKey{}))
	}
	mem += g.entries.Stats().BytesUsed

	depth := 0
	if len(g.cells) > 0 {
		depth = 1
	}

	return index.DebugInfo{
		IndexType:   index.TypeGridHash,
		ItemCount:   len(g.handles),
		NodeCount:   len(g.cells),
		Depth:       depth,
		MemoryUsage: mem,
		QueryStats:  g.rec.Stats(),
	}
}
