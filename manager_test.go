package spatialgo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/spatialgo/geom"
	"github.com/hupe1980/spatialgo/index"
	"github.com/hupe1980/spatialgo/index/bvh"
	"github.com/hupe1980/spatialgo/testutil"
)

var world = geom.Box(0, 0, 0, 100, 100, 100)

var allTypes = []index.Type{index.TypeDynamicTree, index.TypeBVH, index.TypeGridHash}

func newManager(t *testing.T, optFns ...Option) *Manager {
	t.Helper()
	opts := append([]Option{WithGrid(10, world), WithAutoOptimize(false)}, optFns...)
	m, err := New(opts...)
	require.NoError(t, err)
	return m
}

func TestNew(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		m, err := New()
		require.NoError(t, err)
		assert.Equal(t, index.TypeDynamicTree, m.IndexType())
		assert.Equal(t, 0, m.Len())
	})

	t.Run("GridNotConfigured", func(t *testing.T) {
		_, err := New(WithIndexType(index.TypeGridHash))
		require.ErrorIs(t, err, ErrIndexUnavailable)

		var ue *ErrUnavailable
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, index.TypeGridHash, ue.Type)
	})

	t.Run("InvalidGrid", func(t *testing.T) {
		_, err := New(WithGrid(0, world))
		assert.ErrorIs(t, err, ErrInvalidOptions)
	})

	t.Run("InvalidBVH", func(t *testing.T) {
		_, err := New(WithBVHOptions(func(o *bvh.Options) { o.MaxItemsPerLeaf = 0 }))
		assert.ErrorIs(t, err, ErrInvalidOptions)
	})
}

func TestInsert_Errors(t *testing.T) {
	for _, typ := range allTypes {
		t.Run(typ.String(), func(t *testing.T) {
			m := newManager(t, WithIndexType(typ))
			require.NoError(t, m.Insert(index.Item{ID: "a", Bounds: geom.Box(1, 1, 1, 2, 2, 2)}))

			err := m.Insert(index.Item{ID: "a", Bounds: geom.Box(5, 5, 5, 6, 6, 6)})
			require.ErrorIs(t, err, ErrAlreadyExists)

			err = m.Insert(index.Item{ID: "b", Bounds: geom.Box(2, 0, 0, 1, 1, 1)})
			require.ErrorIs(t, err, ErrInvalidBounds)

			var be *ErrBounds
			require.ErrorAs(t, err, &be)
			assert.Equal(t, "b", be.ID)

			assert.Equal(t, 1, m.Len())
			got := m.Query(index.Query{Bounds: world})
			assert.Equal(t, []string{"a"}, testutil.IDs(got))
		})
	}
}

func TestUpdateRemove(t *testing.T) {
	for _, typ := range allTypes {
		t.Run(typ.String(), func(t *testing.T) {
			m := newManager(t, WithIndexType(typ))
			require.NoError(t, m.Insert(index.Item{ID: "a", Bounds: geom.Box(1, 1, 1, 2, 2, 2), UserData: 42}))

			assert.False(t, m.Update("missing", geom.Box(0, 0, 0, 1, 1, 1)))
			assert.False(t, m.Update("a", geom.Box(3, 3, 3, 1, 1, 1)))
			assert.True(t, m.Update("a", geom.Box(50, 50, 50, 51, 51, 51)))

			assert.Empty(t, m.Query(index.Query{Bounds: geom.Box(0, 0, 0, 5, 5, 5)}))
			got := m.Query(index.Query{Bounds: geom.Box(49, 49, 49, 52, 52, 52)})
			require.Len(t, got, 1)
			assert.Equal(t, 42, got[0].Item.UserData)

			it, ok := m.Get("a")
			require.True(t, ok)
			assert.Equal(t, geom.Box(50, 50, 50, 51, 51, 51), it.Bounds)

			assert.False(t, m.Remove("missing"))
			assert.True(t, m.Remove("a"))
			assert.False(t, m.Remove("a"))
			assert.Empty(t, m.Query(index.Query{Bounds: world}))
			assert.Equal(t, 0, m.Len())
		})
	}
}

func TestSwitchIndex_PreservesItems(t *testing.T) {
	rng := testutil.NewRNG(7)
	items := rng.UniformItems("item", 300, world, 0.5, 4)
	queries := rng.UniformBoxes(20, world, 5, 30)

	m := newManager(t)
	for _, it := range items {
		require.NoError(t, m.Insert(it))
	}

	for _, typ := range []index.Type{index.TypeBVH, index.TypeGridHash, index.TypeDynamicTree, index.TypeGridHash} {
		require.NoError(t, m.SwitchIndex(typ))
		assert.Equal(t, typ, m.IndexType())

		// Population is deferred to the next read.
		assert.True(t, m.dirty)
		assert.Equal(t, 0, m.active.Len())

		for _, qb := range queries {
			q := index.Query{Bounds: qb}
			got := m.Query(q)
			if diff := cmp.Diff(testutil.BruteQuery(items, q), testutil.IDs(got)); diff != "" {
				t.Fatalf("%s query mismatch (-want +got):\n%s", typ, diff)
			}
		}

		assert.False(t, m.dirty)
		assert.Equal(t, len(items), m.active.Len())
		assert.Equal(t, len(items), m.Debug().ItemCount)
	}
}

func TestSwitchIndex_Unavailable(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	require.NoError(t, m.Insert(index.Item{ID: "a", Bounds: geom.Box(0, 0, 0, 1, 1, 1)}))

	err = m.SwitchIndex(index.TypeGridHash)
	require.ErrorIs(t, err, ErrIndexUnavailable)
	assert.Equal(t, index.TypeDynamicTree, m.IndexType())
	assert.Len(t, m.Query(index.Query{Bounds: world}), 1)
}

func TestSwitchIndex_Same(t *testing.T) {
	var events []index.Event
	m := newManager(t, WithEventSink(func(e index.Event) { events = append(events, e) }))

	require.NoError(t, m.SwitchIndex(index.TypeDynamicTree))
	assert.Empty(t, events)
}

func TestBVH_MutationsMarkDirty(t *testing.T) {
	m := newManager(t, WithIndexType(index.TypeBVH))
	require.NoError(t, m.Build(testutil.UnitCubes("cube", 10)))
	assert.False(t, m.dirty)

	require.NoError(t, m.Insert(index.Item{ID: "extra", Bounds: geom.Box(20, 0, 0, 21, 1, 1)}))
	assert.True(t, m.dirty)
	assert.Equal(t, 10, m.active.Len())

	got := m.Query(index.Query{Bounds: geom.Box(19.5, 0, 0, 22, 1, 1)})
	assert.Equal(t, []string{"extra"}, testutil.IDs(got))
	assert.False(t, m.dirty)
	assert.Equal(t, 11, m.active.Len())

	assert.True(t, m.Update("extra", geom.Box(40, 0, 0, 41, 1, 1)))
	assert.True(t, m.Remove("cube-0"))
	assert.True(t, m.dirty)

	got = m.Query(index.Query{Bounds: geom.Box(0, 0, 0, 50, 1, 1)})
	assert.Len(t, got, 10)
	assert.NotContains(t, testutil.IDs(got), "cube-0")
}

func TestNearest_AllTypes(t *testing.T) {
	rng := testutil.NewRNG(11)
	items := rng.UniformItems("item", 200, world, 0.5, 3)
	points := make([]geom.Vector3, 25)
	for i := range points {
		points[i] = rng.Point(world)
	}

	for _, typ := range allTypes {
		t.Run(typ.String(), func(t *testing.T) {
			m := newManager(t, WithIndexType(typ))
			require.NoError(t, m.Build(items))

			for _, p := range points {
				for _, maxD := range []float64{0, 2, 8} {
					want, wantOK := testutil.BruteNearest(items, p, maxD)
					got, ok := m.Nearest(p, maxD)
					require.Equal(t, wantOK, ok, "point %v maxDistance %v", p, maxD)
					if ok {
						assert.InDelta(t, want, got.Distance, 1e-9)
						assert.InDelta(t, got.Item.Bounds.DistanceToPoint(p), got.Distance, 1e-9)
					}
				}
			}
		})
	}
}

func TestNearest_Empty(t *testing.T) {
	for _, typ := range allTypes {
		m := newManager(t, WithIndexType(typ))
		_, ok := m.Nearest(geom.Vec(1, 1, 1), 0)
		assert.False(t, ok, typ.String())
	}
}

func TestRaycast_AllTypes(t *testing.T) {
	items := testutil.UnitCubes("cube", 20)
	origin := geom.Vec(-1, 0.5, 0.5)
	dir := geom.Vec(1, 0, 0)

	var want []string
	for _, typ := range allTypes {
		t.Run(typ.String(), func(t *testing.T) {
			m := newManager(t, WithIndexType(typ))
			require.NoError(t, m.Build(items))

			got := m.Raycast(origin, dir, 5.5)
			for i := 1; i < len(got); i++ {
				assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
			}
			ids := testutil.IDs(got)
			if want == nil {
				want = ids
				assert.Equal(t, []string{"cube-0", "cube-1", "cube-2", "cube-3", "cube-4"}, want)
				return
			}
			assert.Equal(t, want, ids)
		})
	}
}

func TestQuery_Idempotent(t *testing.T) {
	rng := testutil.NewRNG(3)
	items := rng.UniformItems("item", 150, world, 1, 5)

	for _, typ := range allTypes {
		m := newManager(t, WithIndexType(typ))
		require.NoError(t, m.Build(items))

		q := index.Query{Bounds: geom.Box(10, 10, 10, 60, 60, 60)}
		first := m.Query(q)
		second := m.Query(q)
		assert.Equal(t, testutil.IDs(first), testutil.IDs(second), typ.String())
	}
}

func TestItemCount_RandomOps(t *testing.T) {
	rng := testutil.NewRNG(19)
	m := newManager(t)

	live := map[string]bool{}
	for i := range 1500 {
		if i%250 == 0 {
			require.NoError(t, m.SwitchIndex(allTypes[rng.Intn(len(allTypes))]))
		}

		id := fmt.Sprintf("item-%d", rng.Intn(200))
		switch rng.Intn(3) {
		case 0:
			err := m.Insert(index.Item{ID: id, Bounds: rng.Box(world, 0.5, 4)})
			if live[id] {
				require.ErrorIs(t, err, ErrAlreadyExists)
			} else {
				require.NoError(t, err)
				live[id] = true
			}
		case 1:
			assert.Equal(t, live[id], m.Update(id, rng.Box(world, 0.5, 4)))
		case 2:
			assert.Equal(t, live[id], m.Remove(id))
			delete(live, id)
		}

		if i%50 == 0 {
			assert.Equal(t, len(live), m.Len())
			assert.Equal(t, len(live), m.Debug().ItemCount)
			assert.Len(t, m.Query(index.Query{Bounds: world}), len(live))
		}
	}
	assert.Len(t, m.Items(), len(live))
}

func TestBuild(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.Insert(index.Item{ID: "old", Bounds: geom.Box(0, 0, 0, 1, 1, 1)}))

	require.NoError(t, m.Build(testutil.UnitCubes("cube", 5)))
	assert.Equal(t, 5, m.Len())
	_, ok := m.Get("old")
	assert.False(t, ok)

	dup := []index.Item{
		{ID: "x", Bounds: geom.Box(0, 0, 0, 1, 1, 1)},
		{ID: "x", Bounds: geom.Box(2, 2, 2, 3, 3, 3)},
	}
	require.ErrorIs(t, m.Build(dup), ErrAlreadyExists)

	bad := []index.Item{{ID: "y", Bounds: geom.Box(1, 1, 1, 0, 0, 0)}}
	require.ErrorIs(t, m.Build(bad), ErrInvalidBounds)

	// Failed builds leave the item set untouched.
	assert.Equal(t, testutil.ItemIDs(testutil.UnitCubes("cube", 5)), testutil.ItemIDs(m.Items()))
}

func TestClear(t *testing.T) {
	for _, typ := range allTypes {
		m := newManager(t, WithIndexType(typ))
		require.NoError(t, m.Build(testutil.UnitCubes("cube", 8)))
		m.Query(index.Query{Bounds: world})

		m.Clear()
		assert.Equal(t, 0, m.Len())
		assert.Empty(t, m.Query(index.Query{Bounds: world}))

		info := m.Debug()
		assert.Equal(t, 0, info.ItemCount)
		assert.Equal(t, int64(1), info.QueryStats.TotalQueries)
	}
}

func TestAutoOptimize(t *testing.T) {
	var switches []index.Event
	m := newManager(t,
		WithAutoOptimize(true),
		WithOptimizeInterval(1),
		WithPolicy(ThresholdPolicy{GridAbove: 5, TreeBelow: 2}),
		WithEventSink(func(e index.Event) {
			if e.Op == index.OpSwitch {
				switches = append(switches, e)
			}
		}),
	)

	items := testutil.UnitCubes("cube", 6)
	for _, it := range items[:5] {
		require.NoError(t, m.Insert(it))
	}
	assert.Equal(t, index.TypeDynamicTree, m.IndexType())

	require.NoError(t, m.Insert(items[5]))
	assert.Equal(t, index.TypeGridHash, m.IndexType())
	assert.Len(t, m.Query(index.Query{Bounds: world}), 6)

	for _, it := range items[:5] {
		require.True(t, m.Remove(it.ID))
	}
	assert.Equal(t, index.TypeDynamicTree, m.IndexType())
	assert.Equal(t, []string{"cube-5"}, testutil.IDs(m.Query(index.Query{Bounds: world})))

	require.Len(t, switches, 2)
	assert.Equal(t, index.TypeGridHash, switches[0].IndexType)
	assert.Equal(t, 6, switches[0].ResultCount)
	assert.Equal(t, index.TypeDynamicTree, switches[1].IndexType)
}

func TestAutoOptimize_GridNotConfigured(t *testing.T) {
	m, err := New(
		WithOptimizeInterval(1),
		WithPolicy(ThresholdPolicy{GridAbove: 1, TreeBelow: 0}),
	)
	require.NoError(t, err)

	for _, it := range testutil.UnitCubes("cube", 4) {
		require.NoError(t, m.Insert(it))
	}
	assert.Equal(t, index.TypeDynamicTree, m.IndexType())
}

func TestEvents_SwitchAndRebuild(t *testing.T) {
	var ops []index.Op
	m := newManager(t, WithIndexType(index.TypeBVH), WithEventSink(func(e index.Event) {
		ops = append(ops, e.Op)
	}))

	require.NoError(t, m.Insert(index.Item{ID: "a", Bounds: geom.Box(0, 0, 0, 1, 1, 1)}))
	require.NoError(t, m.SwitchIndex(index.TypeDynamicTree))
	m.Query(index.Query{Bounds: world})

	// The BVH insert is reported by the manager; the tree repopulation
	// reports its own insert followed by the rebuild.
	want := []index.Op{index.OpInsert, index.OpSwitch, index.OpInsert, index.OpRebuild, index.OpQuery}
	assert.Equal(t, want, ops)
}

func TestMetrics(t *testing.T) {
	mc := &BasicMetricsCollector{}
	m := newManager(t, WithMetricsCollector(mc))

	require.NoError(t, m.Insert(index.Item{ID: "a", Bounds: geom.Box(0, 0, 0, 1, 1, 1)}))
	require.Error(t, m.Insert(index.Item{ID: "a", Bounds: geom.Box(0, 0, 0, 1, 1, 1)}))
	m.Update("a", geom.Box(1, 1, 1, 2, 2, 2))
	m.Update("b", geom.Box(1, 1, 1, 2, 2, 2))
	m.Remove("b")
	m.Query(index.Query{Bounds: world})
	m.Nearest(geom.Vec(0, 0, 0), 0)
	m.Raycast(geom.Vec(-1, 1.5, 1.5), geom.Vec(1, 0, 0), 10)
	require.NoError(t, m.SwitchIndex(index.TypeBVH))
	m.Query(index.Query{Bounds: world})

	stats := mc.GetStats()
	assert.Equal(t, int64(2), stats.InsertCount)
	assert.Equal(t, int64(1), stats.InsertErrors)
	assert.Equal(t, int64(2), stats.UpdateCount)
	assert.Equal(t, int64(1), stats.UpdateMisses)
	assert.Equal(t, int64(1), stats.RemoveMisses)
	assert.Equal(t, int64(4), stats.QueryCount)
	assert.Equal(t, int64(1), stats.NearestCount)
	assert.Equal(t, int64(1), stats.RaycastCount)
	assert.Equal(t, int64(1), stats.SwitchCount)
	assert.Equal(t, int64(1), stats.RebuildCount)
}

func TestTranslateError(t *testing.T) {
	dup := &index.DuplicateError{ID: "a"}
	assert.Same(t, dup, translateError(index.TypeBVH, dup))

	err := translateError(index.TypeGridHash, &index.OptionError{Option: "CellSize", Reason: "must be positive"})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	assert.Contains(t, err.Error(), "grid_hash")

	assert.NoError(t, translateError(index.TypeBVH, nil))

	other := errors.New("boom")
	assert.Equal(t, other, translateError(index.TypeBVH, other))
}
