package spatialgo

import (
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/hupe1980/spatialgo/geom"
	"github.com/hupe1980/spatialgo/index"
	"github.com/hupe1980/spatialgo/index/bvh"
	"github.com/hupe1980/spatialgo/index/dyntree"
	"github.com/hupe1980/spatialgo/index/gridhash"
)

// Manager owns one active spatial index plus the authoritative item map.
// Switching the index type never loses items: the new index is repopulated
// from the map on the next operation.
//
// Manager is not safe for concurrent use; callers must serialize access.
type Manager struct {
	opts    options
	logger  *Logger
	metrics MetricsCollector
	now     index.Clock

	items  map[string]index.Item
	active index.Index
	dirty  bool

	stats *index.Recorder
	ops   int
}

// New creates a manager. Index options are validated eagerly, so a bad grid
// or tree configuration fails here with ErrInvalidOptions.
func New(optFns ...Option) (*Manager, error) {
	opts := applyOptions(optFns)

	now := opts.clock
	if now == nil {
		now = time.Now
	}

	m := &Manager{
		opts:    opts,
		logger:  opts.logger,
		metrics: opts.metricsCollector,
		now:     now,
		items:   make(map[string]index.Item),
		stats:   index.NewRecorder(opts.indexType, nil, now),
	}

	// Validate every configured index up front.
	for _, t := range []index.Type{index.TypeDynamicTree, index.TypeBVH, index.TypeGridHash} {
		if t == index.TypeGridHash && !opts.gridConfigured {
			continue
		}
		idx, err := m.newIndex(t)
		if err != nil {
			return nil, err
		}
		if t == opts.indexType {
			m.active = idx
		}
	}

	if m.active == nil {
		return nil, &ErrUnavailable{Type: opts.indexType}
	}

	return m, nil
}

func (m *Manager) newIndex(t index.Type) (index.Index, error) {
	var (
		idx index.Index
		err error
	)

	switch t {
	case index.TypeDynamicTree:
		idx, err = dyntree.New(append(slices.Clone(m.opts.treeOptions), func(o *dyntree.Options) {
			m.inject(&o.Logger, &o.EventSink, &o.Clock)
		})...)
	case index.TypeBVH:
		idx, err = bvh.New(append(slices.Clone(m.opts.bvhOptions), func(o *bvh.Options) {
			m.inject(&o.Logger, &o.EventSink, &o.Clock)
		})...)
	case index.TypeGridHash:
		if !m.opts.gridConfigured {
			return nil, &ErrUnavailable{Type: t}
		}
		idx, err = gridhash.New(append(slices.Clone(m.opts.gridOptions), func(o *gridhash.Options) {
			m.inject(&o.Logger, &o.EventSink, &o.Clock)
		})...)
	default:
		return nil, &ErrUnavailable{Type: t}
	}

	if err != nil {
		return nil, translateError(t, err)
	}
	return idx, nil
}

// inject fills the shared logging, event and clock settings an index
// option set left unset.
func (m *Manager) inject(logger **slog.Logger, sink *index.EventSink, clock *index.Clock) {
	if *logger == nil {
		*logger = m.logger.Logger
	}
	if *sink == nil {
		*sink = m.opts.eventSink
	}
	if *clock == nil {
		*clock = m.now
	}
}

// IndexType returns the active index type.
func (m *Manager) IndexType() index.Type {
	return m.active.Type()
}

// Insert adds item. It fails with ErrAlreadyExists if the ID is present and
// with ErrInvalidBounds if item.Bounds is inverted.
func (m *Manager) Insert(item index.Item) error {
	start := m.now()
	err := m.insert(item)
	m.metrics.RecordInsert(m.now().Sub(start), err)
	m.logger.LogInsert(item.ID, err)
	m.tick()
	return err
}

func (m *Manager) insert(item index.Item) error {
	if _, ok := m.items[item.ID]; ok {
		return &index.DuplicateError{ID: item.ID}
	}
	if !item.Bounds.Valid() {
		return &ErrBounds{ID: item.ID, Bounds: item.Bounds}
	}

	if mut, ok := m.mutable(); ok {
		if err := mut.Insert(item); err != nil {
			return translateError(mut.Type(), err)
		}
	} else {
		m.emit(index.OpInsert, item.ID, m.now(), 0)
	}

	m.items[item.ID] = item
	return nil
}

// Update moves an item to bounds. It returns false for unknown IDs and for
// inverted bounds.
func (m *Manager) Update(id string, bounds geom.AABB) bool {
	start := m.now()
	found := m.update(id, bounds)
	m.metrics.RecordUpdate(m.now().Sub(start), found)
	m.tick()
	return found
}

func (m *Manager) update(id string, bounds geom.AABB) bool {
	item, ok := m.items[id]
	if !ok {
		return false
	}
	if !bounds.Valid() {
		m.logger.Warn("update rejected", "id", id, "error", &ErrBounds{ID: id, Bounds: bounds})
		return false
	}

	if mut, ok := m.mutable(); ok {
		mut.Update(id, bounds)
	} else {
		m.emit(index.OpUpdate, id, m.now(), 0)
	}

	item.Bounds = bounds
	m.items[id] = item
	return true
}

// Remove deletes an item. It returns false for unknown IDs.
func (m *Manager) Remove(id string) bool {
	start := m.now()
	found := m.remove(id)
	m.metrics.RecordRemove(m.now().Sub(start), found)
	m.tick()
	return found
}

func (m *Manager) remove(id string) bool {
	if _, ok := m.items[id]; !ok {
		return false
	}

	if mut, ok := m.mutable(); ok {
		mut.Remove(id)
	} else {
		m.emit(index.OpRemove, id, m.now(), 0)
	}

	delete(m.items, id)
	return true
}

// mutable returns the active index when it supports per-item mutation,
// repopulating it first if needed. Build-once indexes are marked dirty
// instead and rebuilt before the next read.
func (m *Manager) mutable() (index.Mutable, bool) {
	mut, ok := m.active.(index.Mutable)
	if !ok {
		m.dirty = true
		return nil, false
	}
	m.prepare()
	return mut, true
}

// Query returns the items whose bounds overlap q.Bounds.
func (m *Manager) Query(q index.Query) []index.Result {
	start := m.now()
	m.prepare()

	results := m.active.Query(q)

	m.done(index.OpQuery, start, len(results))
	return results
}

// Nearest returns the item closest to point. A maxDistance <= 0 searches
// every item. Indexes without a native nearest search are served by a box
// query around point.
func (m *Manager) Nearest(point geom.Vector3, maxDistance float64) (index.Result, bool) {
	start := m.now()
	m.prepare()

	var (
		r  index.Result
		ok bool
	)
	if n, native := m.active.(index.Nearester); native {
		r, ok = n.Nearest(point, maxDistance)
	} else {
		r, ok = m.fallbackNearest(point, maxDistance)
	}

	count := 0
	if ok {
		count = 1
	}
	m.done(index.OpNearest, start, count)
	return r, ok
}

func (m *Manager) fallbackNearest(point geom.Vector3, maxDistance float64) (index.Result, bool) {
	box := geom.PointBox(point).Expand(maxDistance)
	if maxDistance <= 0 {
		all, ok := m.bounds()
		if !ok {
			return index.Result{}, false
		}
		box = all.Union(geom.PointBox(point))
	}

	var (
		best  index.Result
		found bool
	)
	for _, hit := range m.active.Query(index.Query{Bounds: box}) {
		d := hit.Item.Bounds.DistanceToPoint(point)
		if !index.WithinDistance(d, maxDistance) {
			continue
		}
		if !found || d < best.Distance || (d == best.Distance && hit.Item.ID < best.Item.ID) {
			best, found = index.Result{Item: hit.Item, Distance: d}, true
		}
	}
	return best, found
}

// Raycast returns the items overlapping the box around the segment from
// origin along direction, ordered by distance from origin. A maxDistance <= 0
// uses index.DefaultRayDistance.
func (m *Manager) Raycast(origin, direction geom.Vector3, maxDistance float64) []index.Result {
	start := m.now()
	m.prepare()

	var results []index.Result
	if rc, native := m.active.(index.Raycaster); native {
		results = rc.Raycast(origin, direction, maxDistance)
	} else {
		hits := m.active.Query(index.Query{Bounds: index.RayBounds(origin, direction, maxDistance)})
		results = index.RayResults(hits, origin)
	}

	m.done(index.OpRaycast, start, len(results))
	return results
}

func (m *Manager) done(op index.Op, start time.Time, results int) {
	m.stats.Done(op, "", start, results)
	m.metrics.RecordQuery(op, results, m.now().Sub(start))
	m.tick()
}

// Build replaces the whole item set. Duplicate IDs or inverted bounds fail
// before any state changes.
func (m *Manager) Build(items []index.Item) error {
	next := make(map[string]index.Item, len(items))
	for _, it := range items {
		if _, ok := next[it.ID]; ok {
			return &index.DuplicateError{ID: it.ID}
		}
		if !it.Bounds.Valid() {
			return &ErrBounds{ID: it.ID, Bounds: it.Bounds}
		}
		next[it.ID] = it
	}

	m.items = next
	m.dirty = true
	return m.sync()
}

// Rebuild repopulates the active index from the item map.
func (m *Manager) Rebuild() error {
	m.dirty = true
	return m.sync()
}

func (m *Manager) prepare() {
	if err := m.sync(); err != nil {
		m.logger.Error("lazy rebuild failed", "error", err)
	}
}

// sync repopulates the active index when the manager is dirty. Items are
// inserted in ID order so rebuilds are deterministic.
func (m *Manager) sync() error {
	if !m.dirty {
		return nil
	}

	start := m.now()
	items := m.Items()
	t := m.active.Type()

	m.active.Clear()

	var err error
	switch idx := m.active.(type) {
	case index.Builder:
		err = idx.Build(items)
	case index.Mutable:
		for _, it := range items {
			if err = idx.Insert(it); err != nil {
				break
			}
		}
		if err == nil {
			m.emit(index.OpRebuild, "", start, len(items))
		}
	}
	err = translateError(t, err)

	took := m.now().Sub(start)
	m.logger.LogRebuild(t, len(items), took, err)
	if err != nil {
		return err
	}

	m.dirty = false
	m.metrics.RecordRebuild(t, len(items), took)
	return nil
}

// SwitchIndex makes t the active index type. The new index is populated
// lazily. Switching to the grid hash without WithGrid fails with
// ErrIndexUnavailable.
func (m *Manager) SwitchIndex(t index.Type) error {
	return m.switchTo(t, "requested")
}

func (m *Manager) switchTo(t index.Type, reason string) error {
	from := m.active.Type()
	if t == from {
		return nil
	}

	start := m.now()
	idx, err := m.newIndex(t)
	if err != nil {
		return err
	}

	m.active = idx
	m.dirty = true

	m.logger.LogSwitch(from, t, len(m.items), reason)
	m.metrics.RecordSwitch(from, t)
	m.emit(index.OpSwitch, "", start, len(m.items))
	return nil
}

// tick counts an operation and consults the policy every OptimizeInterval
// operations.
func (m *Manager) tick() {
	m.ops++
	if !m.opts.autoOptimize || m.opts.optimizeInterval <= 0 || m.opts.policy == nil {
		return
	}
	if m.ops%m.opts.optimizeInterval != 0 {
		return
	}

	current := m.active.Type()
	target, reason := m.opts.policy.Pick(current, len(m.items))
	if target == current {
		return
	}
	if target == index.TypeGridHash && !m.opts.gridConfigured {
		m.logger.Debug("policy prefers unavailable grid", "items", len(m.items))
		return
	}
	if err := m.switchTo(target, reason); err != nil {
		m.logger.Warn("auto-optimize switch failed", "to", target.String(), "error", err)
	}
}

func (m *Manager) emit(op index.Op, id string, start time.Time, results int) {
	if m.opts.eventSink == nil {
		return
	}
	end := m.now()
	m.opts.eventSink(index.Event{
		IndexType:   m.active.Type(),
		Op:          op,
		ItemID:      id,
		Duration:    end.Sub(start),
		ResultCount: results,
		Time:        end,
	})
}

// Get returns the item stored under id.
func (m *Manager) Get(id string) (index.Item, bool) {
	it, ok := m.items[id]
	return it, ok
}

// Items returns every item ordered by ID.
func (m *Manager) Items() []index.Item {
	ids := slices.Sorted(maps.Keys(m.items))
	items := make([]index.Item, len(ids))
	for i, id := range ids {
		items[i] = m.items[id]
	}
	return items
}

// Len returns the number of live items.
func (m *Manager) Len() int { return len(m.items) }

func (m *Manager) bounds() (geom.AABB, bool) {
	var (
		b     geom.AABB
		found bool
	)
	for _, it := range m.items {
		if !found {
			b, found = it.Bounds, true
			continue
		}
		b = b.Union(it.Bounds)
	}
	return b, found
}

// Clear removes every item and resets statistics.
func (m *Manager) Clear() {
	clear(m.items)
	m.active.Clear()
	m.dirty = false
	m.ops = 0
	m.stats.Reset()
}

// Debug returns the active index's structure with the manager's item count
// and query statistics, which survive index switches.
func (m *Manager) Debug() index.DebugInfo {
	m.prepare()
	info := m.active.Debug()
	info.ItemCount = len(m.items)
	info.QueryStats = m.stats.Stats()
	return info
}
