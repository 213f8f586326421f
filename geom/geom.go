// Package geom provides the vector and axis-aligned bounding box math shared by
// every spatial index.
//
// All functions operate on values and never allocate. An AABB is expected to
// satisfy Min <= Max on every axis; use Valid to check caller input.
package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vector3 is a point or direction in 3D space.
type Vector3 = r3.Vec

// Axis identifies one of the three coordinate axes.
type Axis int

// Coordinate axes.
const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// String returns a string representation of the Axis.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	case AxisZ:
		return "z"
	default:
		return "unknown"
	}
}

// Vec returns the vector (x, y, z).
func Vec(x, y, z float64) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// Component returns the coordinate of v along axis.
func Component(v Vector3, axis Axis) float64 {
	switch axis {
	case AxisY:
		return v.Y
	case AxisZ:
		return v.Z
	default:
		return v.X
	}
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min Vector3
	Max Vector3
}

// NewAABB returns the box spanned by min and max.
func NewAABB(min, max Vector3) AABB {
	return AABB{Min: min, Max: max}
}

// Box returns the box spanned by (x0, y0, z0) and (x1, y1, z1).
func Box(x0, y0, z0, x1, y1, z1 float64) AABB {
	return AABB{Min: Vec(x0, y0, z0), Max: Vec(x1, y1, z1)}
}

// FromCenter returns the box centered on c with the given half extents.
func FromCenter(c, halfExtents Vector3) AABB {
	return AABB{Min: r3.Sub(c, halfExtents), Max: r3.Add(c, halfExtents)}
}

// PointBox returns the zero-size box located at p.
func PointBox(p Vector3) AABB {
	return AABB{Min: p, Max: p}
}

// Valid reports whether Min <= Max on every axis and no coordinate is NaN.
func (a AABB) Valid() bool {
	return a.Min.X <= a.Max.X && a.Min.Y <= a.Max.Y && a.Min.Z <= a.Max.Z
}

// Union returns the smallest box enclosing both a and b.
func (a AABB) Union(b AABB) AABB {
	return AABB{
		Min: Vector3{X: math.Min(a.Min.X, b.Min.X), Y: math.Min(a.Min.Y, b.Min.Y), Z: math.Min(a.Min.Z, b.Min.Z)},
		Max: Vector3{X: math.Max(a.Max.X, b.Max.X), Y: math.Max(a.Max.Y, b.Max.Y), Z: math.Max(a.Max.Z, b.Max.Z)},
	}
}

// Overlaps reports whether a and b share at least one point. Touching boxes overlap.
func (a AABB) Overlaps(b AABB) bool {
	return a.Min.X <= b.Max.X && b.Min.X <= a.Max.X &&
		a.Min.Y <= b.Max.Y && b.Min.Y <= a.Max.Y &&
		a.Min.Z <= b.Max.Z && b.Min.Z <= a.Max.Z
}

// Contains reports whether b lies entirely inside a.
func (a AABB) Contains(b AABB) bool {
	return a.Min.X <= b.Min.X && a.Min.Y <= b.Min.Y && a.Min.Z <= b.Min.Z &&
		a.Max.X >= b.Max.X && a.Max.Y >= b.Max.Y && a.Max.Z >= b.Max.Z
}

// ContainsPoint reports whether p lies inside a or on its boundary.
func (a AABB) ContainsPoint(p Vector3) bool {
	return a.Min.X <= p.X && p.X <= a.Max.X &&
		a.Min.Y <= p.Y && p.Y <= a.Max.Y &&
		a.Min.Z <= p.Z && p.Z <= a.Max.Z
}

// Size returns the edge lengths of a.
func (a AABB) Size() Vector3 {
	return r3.Sub(a.Max, a.Min)
}

// Center returns the midpoint of a.
func (a AABB) Center() Vector3 {
	return r3.Scale(0.5, r3.Add(a.Min, a.Max))
}

// SurfaceArea returns the total area of the six faces of a.
func (a AABB) SurfaceArea() float64 {
	s := a.Size()
	return 2 * (s.X*s.Y + s.X*s.Z + s.Y*s.Z)
}

// Volume returns the volume of a.
func (a AABB) Volume() float64 {
	s := a.Size()
	return s.X * s.Y * s.Z
}

// LongestAxis returns the axis along which a is largest, and its length.
func (a AABB) LongestAxis() (Axis, float64) {
	s := a.Size()
	axis, length := AxisX, s.X
	if s.Y > length {
		axis, length = AxisY, s.Y
	}
	if s.Z > length {
		axis, length = AxisZ, s.Z
	}
	return axis, length
}

// Expand grows a by margin on every side.
func (a AABB) Expand(margin float64) AABB {
	m := Vector3{X: margin, Y: margin, Z: margin}
	return AABB{Min: r3.Sub(a.Min, m), Max: r3.Add(a.Max, m)}
}

// Fatten grows each axis of a by factor times its size on both sides.
// A box fattened with a positive factor always contains the original.
func (a AABB) Fatten(factor float64) AABB {
	if factor <= 0 {
		return a
	}
	m := r3.Scale(factor, a.Size())
	return AABB{Min: r3.Sub(a.Min, m), Max: r3.Add(a.Max, m)}
}

// Clamp returns the intersection of a and bounds. The result is only Valid when
// the two boxes overlap.
func (a AABB) Clamp(bounds AABB) AABB {
	return AABB{
		Min: Vector3{X: math.Max(a.Min.X, bounds.Min.X), Y: math.Max(a.Min.Y, bounds.Min.Y), Z: math.Max(a.Min.Z, bounds.Min.Z)},
		Max: Vector3{X: math.Min(a.Max.X, bounds.Max.X), Y: math.Min(a.Max.Y, bounds.Max.Y), Z: math.Min(a.Max.Z, bounds.Max.Z)},
	}
}

// ClosestPoint returns the point of a nearest to p.
func (a AABB) ClosestPoint(p Vector3) Vector3 {
	return Vector3{
		X: clamp(p.X, a.Min.X, a.Max.X),
		Y: clamp(p.Y, a.Min.Y, a.Max.Y),
		Z: clamp(p.Z, a.Min.Z, a.Max.Z),
	}
}

// DistanceSquaredToPoint returns the squared euclidean distance between p and
// the closest point of a. It is zero when p lies inside a.
func (a AABB) DistanceSquaredToPoint(p Vector3) float64 {
	return r3.Norm2(r3.Sub(p, a.ClosestPoint(p)))
}

// DistanceToPoint returns the euclidean distance between p and the closest
// point of a.
func (a AABB) DistanceToPoint(p Vector3) float64 {
	return math.Sqrt(a.DistanceSquaredToPoint(p))
}

// SegmentBounds returns the box enclosing the segment that starts at origin and
// runs maxDistance along dir. dir does not need to be normalized; a zero
// direction yields the point box at origin.
func SegmentBounds(origin, dir Vector3, maxDistance float64) AABB {
	n := r3.Norm(dir)
	if n == 0 || maxDistance <= 0 {
		return PointBox(origin)
	}
	end := r3.Add(origin, r3.Scale(maxDistance/n, dir))
	return PointBox(origin).Union(PointBox(end))
}

// Bounds returns the union of boxes. ok is false when boxes is empty.
func Bounds(boxes ...AABB) (b AABB, ok bool) {
	if len(boxes) == 0 {
		return AABB{}, false
	}
	b = boxes[0]
	for _, o := range boxes[1:] {
		b = b.Union(o)
	}
	return b, true
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
