// Package index provides interfaces and types shared by the spatial indexes.
package index

import (
	"github.com/hupe1980/spatialgo/geom"
)

// DefaultRayDistance is the segment length used by raycasts that do not
// specify a positive maximum distance.
const DefaultRayDistance = 1000.0

// Type identifies an index implementation.
type Type int

// Index types.
const (
	TypeDynamicTree Type = iota
	TypeBVH
	TypeGridHash
)

// String returns a string representation of the Type.
func (t Type) String() string {
	switch t {
	case TypeDynamicTree:
		return "dynamic_tree"
	case TypeBVH:
		return "bvh"
	case TypeGridHash:
		return "grid_hash"
	default:
		return "unknown"
	}
}

// ParseType returns the Type named by s. It accepts the values produced by
// Type.String.
func ParseType(s string) (Type, bool) {
	switch s {
	case "dynamic_tree", "dyntree", "tree":
		return TypeDynamicTree, true
	case "bvh":
		return TypeBVH, true
	case "grid_hash", "gridhash", "grid":
		return TypeGridHash, true
	default:
		return 0, false
	}
}

// Item is a caller-owned entry in a spatial index.
type Item struct {
	// ID uniquely identifies the item within one index.
	ID string

	// Bounds is the axis-aligned box the item occupies.
	Bounds geom.AABB

	// UserData is carried along untouched.
	UserData any
}

// Filter reports whether an item should be part of a result set.
type Filter func(item Item) bool

// Query describes a box query.
type Query struct {
	// Bounds selects every item whose box overlaps it.
	Bounds geom.AABB

	// Filter optionally rejects candidates. Nil accepts all.
	Filter Filter

	// MaxResults truncates the result set. Zero or negative means unlimited.
	MaxResults int
}

// Accept reports whether item passes the query's filter.
func (q Query) Accept(item Item) bool {
	return q.Filter == nil || q.Filter(item)
}

// Full reports whether n results already satisfy MaxResults.
func (q Query) Full(n int) bool {
	return q.MaxResults > 0 && n >= q.MaxResults
}

// Result represents a query result.
type Result struct {
	// Item is the matching item.
	Item Item

	// Distance is set by nearest and raycast operations. Box queries leave it zero.
	Distance float64
}

// Index is the read surface every spatial index provides.
type Index interface {
	// Type returns the implementation kind.
	Type() Type

	// Query returns the items whose bounds overlap q.Bounds.
	Query(q Query) []Result

	// Items returns a copy of every indexed item.
	Items() []Item

	// Len returns the number of indexed items.
	Len() int

	// Clear removes every item.
	Clear()

	// Debug returns structural and query statistics.
	Debug() DebugInfo
}

// Mutable is implemented by indexes that support per-item mutation.
type Mutable interface {
	Index

	// Insert adds item. It fails with ErrAlreadyExists if the ID is present.
	Insert(item Item) error

	// Update moves an item to new bounds. It returns false for unknown IDs.
	Update(id string, bounds geom.AABB) bool

	// Remove deletes an item. It returns false for unknown IDs.
	Remove(id string) bool
}

// Builder is implemented by build-once indexes.
type Builder interface {
	Index

	// Build replaces the whole index content with items.
	Build(items []Item) error
}

// Nearester is an optional capability for indexes with a native nearest search.
type Nearester interface {
	// Nearest returns the item closest to point. A maxDistance <= 0 is unbounded.
	Nearest(point geom.Vector3, maxDistance float64) (Result, bool)
}

// Raycaster is an optional capability for indexes with a native raycast.
type Raycaster interface {
	// Raycast returns the items hit by the segment starting at origin along
	// direction, ordered by distance from origin.
	Raycast(origin, direction geom.Vector3, maxDistance float64) []Result
}

// DebugInfo is a snapshot of an index's shape and query activity.
type DebugInfo struct {
	IndexType   Type
	ItemCount   int
	NodeCount   int
	Depth       int
	MemoryUsage int64
	QueryStats  QueryStats
}
