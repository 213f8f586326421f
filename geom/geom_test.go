package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAABBOverlaps(t *testing.T) {
	unit := Box(0, 0, 0, 1, 1, 1)

	tests := []struct {
		name  string
		other AABB
		want  bool
	}{
		{name: "separated on x", other: Box(2, 0, 0, 3, 1, 1), want: false},
		{name: "separated on y", other: Box(0, -3, 0, 1, -2, 1), want: false},
		{name: "separated on z", other: Box(0, 0, 1.5, 1, 1, 2), want: false},
		{name: "touching face", other: Box(1, 0, 0, 2, 1, 1), want: true},
		{name: "partial", other: Box(0.5, 0.5, 0.5, 1.5, 1.5, 1.5), want: true},
		{name: "contained", other: Box(0.25, 0.25, 0.25, 0.75, 0.75, 0.75), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, unit.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(unit), "symmetry")
		})
	}
}

func TestAABBUnionAndContains(t *testing.T) {
	a := Box(0, 0, 0, 1, 1, 1)
	b := Box(2, -1, 0.5, 3, 0.5, 4)

	u := a.Union(b)
	assert.Equal(t, Box(0, -1, 0, 3, 1, 4), u)
	assert.True(t, u.Contains(a))
	assert.True(t, u.Contains(b))
	assert.False(t, a.Contains(u))

	bb, ok := Bounds(a, b)
	assert.True(t, ok)
	assert.Equal(t, u, bb)

	_, ok = Bounds()
	assert.False(t, ok)
}

func TestAABBMeasures(t *testing.T) {
	a := Box(0, 0, 0, 2, 3, 4)

	assert.Equal(t, Vec(2, 3, 4), a.Size())
	assert.Equal(t, Vec(1, 1.5, 2), a.Center())
	assert.InDelta(t, 2*(6+8+12), a.SurfaceArea(), 1e-12)
	assert.InDelta(t, 24, a.Volume(), 1e-12)

	axis, length := a.LongestAxis()
	assert.Equal(t, AxisZ, axis)
	assert.InDelta(t, 4, length, 1e-12)
}

func TestAABBFatten(t *testing.T) {
	a := Box(0, 0, 0, 10, 2, 4)

	fat := a.Fatten(0.1)
	want := Box(-1, -0.2, -0.4, 11, 2.2, 4.4)
	assert.InDelta(t, want.Min.X, fat.Min.X, 1e-12)
	assert.InDelta(t, want.Min.Y, fat.Min.Y, 1e-12)
	assert.InDelta(t, want.Min.Z, fat.Min.Z, 1e-12)
	assert.InDelta(t, want.Max.X, fat.Max.X, 1e-12)
	assert.InDelta(t, want.Max.Y, fat.Max.Y, 1e-12)
	assert.InDelta(t, want.Max.Z, fat.Max.Z, 1e-12)
	assert.True(t, fat.Contains(a))

	assert.Equal(t, a, a.Fatten(0), "non-positive factor is a no-op")
	assert.Equal(t, Box(-1, -1, -1, 11, 3, 5), a.Expand(1))
}

func TestAABBClampAndDistance(t *testing.T) {
	world := Box(0, 0, 0, 10, 10, 10)

	clamped := Box(-5, 2, 8, 5, 3, 15).Clamp(world)
	assert.Equal(t, Box(0, 2, 8, 5, 3, 10), clamped)
	assert.True(t, clamped.Valid())

	disjoint := Box(20, 20, 20, 30, 30, 30).Clamp(world)
	assert.False(t, disjoint.Valid())

	a := Box(0, 0, 0, 1, 1, 1)
	assert.Zero(t, a.DistanceToPoint(Vec(0.5, 0.5, 0.5)))
	assert.InDelta(t, 2, a.DistanceToPoint(Vec(3, 0.5, 0.5)), 1e-12)
	assert.InDelta(t, math.Sqrt(3), a.DistanceToPoint(Vec(2, 2, 2)), 1e-12)
	assert.Equal(t, Vec(1, 0, 0.5), a.ClosestPoint(Vec(4, -1, 0.5)))
}

func TestSegmentBounds(t *testing.T) {
	b := SegmentBounds(Vec(1, 1, 1), Vec(0, 0, -2), 5)
	assert.Equal(t, Box(1, 1, -4, 1, 1, 1), b)

	b = SegmentBounds(Vec(0, 0, 0), Vec(1, 1, 0), math.Sqrt2)
	assert.InDelta(t, 1, b.Max.X, 1e-12)
	assert.InDelta(t, 1, b.Max.Y, 1e-12)

	assert.Equal(t, PointBox(Vec(3, 3, 3)), SegmentBounds(Vec(3, 3, 3), Vec(0, 0, 0), 10))
}

func TestValid(t *testing.T) {
	assert.True(t, Box(0, 0, 0, 0, 0, 0).Valid())
	assert.False(t, Box(1, 0, 0, 0, 1, 1).Valid())
	assert.False(t, Box(math.NaN(), 0, 0, 1, 1, 1).Valid())
}

func TestComponent(t *testing.T) {
	v := Vec(1, 2, 3)
	assert.Equal(t, 1.0, Component(v, AxisX))
	assert.Equal(t, 2.0, Component(v, AxisY))
	assert.Equal(t, 3.0, Component(v, AxisZ))
	assert.Equal(t, "y", AxisY.String())
}
