package gridhash

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hupe1980/spatialgo/geom"
	"github.com/hupe1980/spatialgo/index"
	"github.com/hupe1980/spatialgo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var world = geom.Box(0, 0, 0, 100, 100, 100)

func newGrid(t *testing.T, optFns ...func(o *Options)) *Grid {
	t.Helper()
	fns := append([]func(o *Options){func(o *Options) {
		o.CellSize = 10
		o.World = world
	}}, optFns...)
	g, err := New(fns...)
	require.NoError(t, err)
	return g
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name   string
		fn     func(o *Options)
		option string
	}{
		{"ZeroCellSize", func(o *Options) { o.World = world }, "CellSize"},
		{"NegativeCellSize", func(o *Options) { o.CellSize = -1; o.World = world }, "CellSize"},
		{"InvertedWorld", func(o *Options) { o.CellSize = 1; o.World = geom.Box(10, 0, 0, 0, 10, 10) }, "World"},
		{"TooManyCells", func(o *Options) { o.CellSize = 1e-12; o.World = world }, "CellSize"},
		{"NegativeMaxItems", func(o *Options) { o.CellSize = 1; o.World = world; o.MaxItemsPerCell = -1 }, "MaxItemsPerCell"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.fn)
			require.ErrorIs(t, err, index.ErrInvalidOptions)

			var optErr *index.OptionError
			require.ErrorAs(t, err, &optErr)
			assert.Equal(t, tt.option, optErr.Option)
		})
	}
}

func TestDims(t *testing.T) {
	g := newGrid(t)
	x, y, z := g.Dims()
	assert.Equal(t, [3]int32{10, 10, 10}, [3]int32{x, y, z})
}

func TestQuery_CrossingItemReportedOnce(t *testing.T) {
	g := newGrid(t)
	require.NoError(t, g.Insert(index.Item{ID: "span", Bounds: geom.Box(8, 8, 8, 12, 12, 12)}))

	assert.Equal(t, 8, g.CellCount())

	got := g.Query(index.Query{Bounds: geom.Box(0, 0, 0, 20, 20, 20)})
	require.Len(t, got, 1)
	assert.Equal(t, "span", got[0].Item.ID)
	require.NoError(t, g.Validate())
}

func TestCellsFor(t *testing.T) {
	g := newGrid(t)

	tests := []struct {
		name string
		box  geom.AABB
		want []CellKey
	}{
		{"Inside", geom.Box(1, 1, 1, 2, 2, 2), []CellKey{{0, 0, 0}}},
		{"CrossX", geom.Box(9, 1, 1, 11, 2, 2), []CellKey{{0, 0, 0}, {1, 0, 0}}},
		{"ClampedAtMax", geom.Box(95, 95, 95, 500, 96, 96), []CellKey{{9, 9, 9}}},
		{"ClampedAtMin", geom.Box(-50, 5, 5, 1, 6, 6), []CellKey{{0, 0, 0}}},
		{"Outside", geom.Box(200, 200, 200, 201, 201, 201), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, g.CellsFor(tt.box)); diff != "" {
				t.Errorf("CellsFor() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInsert_Duplicate(t *testing.T) {
	g := newGrid(t)
	require.NoError(t, g.Insert(index.Item{ID: "a", Bounds: geom.Box(1, 1, 1, 2, 2, 2)}))

	err := g.Insert(index.Item{ID: "a", Bounds: geom.Box(50, 50, 50, 51, 51, 51)})
	require.ErrorIs(t, err, index.ErrAlreadyExists)
	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 1, g.CellCount())
}

func TestOutsideWorld(t *testing.T) {
	g := newGrid(t)
	require.NoError(t, g.Insert(index.Item{ID: "far", Bounds: geom.Box(500, 500, 500, 501, 501, 501)}))

	assert.Equal(t, 1, g.Len())
	assert.Equal(t, 0, g.CellCount())
	assert.Empty(t, g.Query(index.Query{Bounds: geom.Box(400, 400, 400, 600, 600, 600)}))

	// Moving it into the world makes it reachable.
	require.True(t, g.Update("far", geom.Box(50, 50, 50, 51, 51, 51)))
	assert.Len(t, g.Query(index.Query{Bounds: world}), 1)
	require.NoError(t, g.Validate())
}

func TestUpdate_MovesBetweenCells(t *testing.T) {
	g := newGrid(t)
	require.NoError(t, g.Insert(index.Item{ID: "a", Bounds: geom.Box(1, 1, 1, 2, 2, 2)}))
	require.NoError(t, g.Insert(index.Item{ID: "b", Bounds: geom.Box(3, 3, 3, 4, 4, 4)}))

	require.True(t, g.Update("a", geom.Box(55, 55, 55, 56, 56, 56)))
	require.NoError(t, g.Validate())

	got := g.Query(index.Query{Bounds: geom.Box(0, 0, 0, 9, 9, 9)})
	assert.Equal(t, []string{"b"}, testutil.IDs(got))

	got = g.Query(index.Query{Bounds: geom.Box(50, 50, 50, 60, 60, 60)})
	assert.Equal(t, []string{"a"}, testutil.IDs(got))

	it, ok := g.Get("a")
	require.True(t, ok)
	assert.Equal(t, geom.Box(55, 55, 55, 56, 56, 56), it.Bounds)

	assert.False(t, g.Update("missing", world))
}

func TestRandomOperations_KeepMapsConsistent(t *testing.T) {
	rng := testutil.NewRNG(4711)
	g := newGrid(t)

	live := map[string]index.Item{}
	for step := 0; step < 1500; step++ {
		switch op := rng.Intn(10); {
		case op < 5 || len(live) == 0:
			// Some boxes poke outside the world.
			it := index.Item{ID: fmt.Sprintf("item-%d", step), Bounds: rng.Box(world.Expand(10), 0.5, 15)}
			require.NoError(t, g.Insert(it))
			live[it.ID] = it
		case op < 8:
			for id, it := range live {
				it.Bounds = rng.Box(world, 0.5, 15)
				require.True(t, g.Update(id, it.Bounds))
				live[id] = it
				break
			}
		default:
			for id := range live {
				require.True(t, g.Remove(id))
				delete(live, id)
				break
			}
		}

		if step%150 == 0 {
			require.NoError(t, g.Validate(), "step %d", step)
		}
	}
	require.NoError(t, g.Validate())

	items := make([]index.Item, 0, len(live))
	for _, it := range live {
		items = append(items, it)
	}
	assert.Equal(t, testutil.ItemIDs(items), testutil.ItemIDs(g.Items()))

	// Queries stay inside the world; items wholly outside it are unreachable.
	inner := geom.Box(0, 0, 0, 60, 60, 60)
	for i := 0; i < 30; i++ {
		q := index.Query{Bounds: rng.Box(inner, 1, 40)}
		if diff := cmp.Diff(testutil.BruteQuery(items, q), testutil.IDs(g.Query(q))); diff != "" {
			t.Fatalf("query %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestQuery_FilterAndMaxResults(t *testing.T) {
	g := newGrid(t)
	for i := 0; i < 10; i++ {
		x := float64(i)
		require.NoError(t, g.Insert(index.Item{ID: fmt.Sprintf("c-%d", i), Bounds: geom.Box(x, 0, 0, x+0.5, 1, 1)}))
	}

	assert.Len(t, g.Query(index.Query{Bounds: world, MaxResults: 4}), 4)

	got := g.Query(index.Query{Bounds: world, Filter: func(it index.Item) bool { return it.ID == "c-3" }})
	assert.Equal(t, []string{"c-3"}, testutil.IDs(got))
}

func TestSweep_IdleEmptyCells(t *testing.T) {
	now := time.Unix(1000, 0)
	g := newGrid(t, func(o *Options) {
		o.Clock = func() time.Time { return now }
		o.CleanupInterval = 10 * time.Second
		o.IdleTimeout = 30 * time.Second
	})

	require.NoError(t, g.Insert(index.Item{ID: "a", Bounds: geom.Box(1, 1, 1, 2, 2, 2)}))
	require.NoError(t, g.Insert(index.Item{ID: "b", Bounds: geom.Box(51, 51, 51, 52, 52, 52)}))
	require.True(t, g.Remove("a"))

	// Removal leaves the empty cell behind.
	assert.Equal(t, 2, g.CellCount())

	probe := index.Query{Bounds: geom.Box(50, 50, 50, 60, 60, 60)}

	// Sweep runs, but the empty cell has not been idle long enough.
	now = now.Add(25 * time.Second)
	g.Query(probe)
	assert.Equal(t, 2, g.CellCount())

	// Idle long enough, but the sweep interval has not elapsed.
	now = now.Add(7 * time.Second)
	g.Query(probe)
	assert.Equal(t, 2, g.CellCount())

	now = now.Add(3 * time.Second)
	g.Query(probe)
	assert.Equal(t, 1, g.CellCount(), "empty idle cell is dropped, occupied cell stays")
	require.NoError(t, g.Validate())
}

func TestOverflowWarning_RateLimited(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	g := newGrid(t, func(o *Options) {
		o.MaxItemsPerCell = 2
		o.WarnEvery = time.Hour
		o.Logger = logger
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, g.Insert(index.Item{ID: fmt.Sprintf("i-%d", i), Bounds: geom.Box(1, 1, 1, 2, 2, 2)}))
	}

	assert.Equal(t, 1, strings.Count(buf.String(), "cell over capacity"))
	assert.Len(t, g.Query(index.Query{Bounds: geom.Box(0, 0, 0, 3, 3, 3)}), 10, "cells never split")
}

func TestDebugAndClear(t *testing.T) {
	var events []index.Event
	g := newGrid(t, func(o *Options) {
		o.EventSink = func(e index.Event) { events = append(events, e) }
	})

	require.NoError(t, g.Insert(index.Item{ID: "a", Bounds: geom.Box(8, 8, 8, 12, 12, 12)}))
	g.Query(index.Query{Bounds: world})

	info := g.Debug()
	assert.Equal(t, index.TypeGridHash, info.IndexType)
	assert.Equal(t, 1, info.ItemCount)
	assert.Equal(t, 8, info.NodeCount)
	assert.Equal(t, 1, info.Depth)
	assert.Positive(t, info.MemoryUsage)
	assert.Equal(t, int64(1), info.QueryStats.TotalQueries)

	require.Len(t, events, 2)
	assert.Equal(t, index.OpInsert, events[0].Op)
	assert.Equal(t, index.OpQuery, events[1].Op)

	g.Clear()
	assert.Equal(t, 0, g.Len())
	assert.Equal(t, 0, g.CellCount())
	assert.Equal(t, 0, g.Debug().Depth)
	require.NoError(t, g.Validate())
}
