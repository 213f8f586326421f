package bitmap

import (
	"iter"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Set is a compressed set of 32-bit handles.
type Set struct {
	rb *roaring.Bitmap
}

// setPool is a sync.Pool for reusing scratch sets.
// This keeps query unions allocation-free in the steady state.
var setPool = sync.Pool{
	New: func() any {
		return &Set{
			rb: roaring.New(),
		}
	},
}

// New creates a new empty set.
func New() *Set {
	return &Set{
		rb: roaring.New(),
	}
}

// Get gets an empty set from the pool. Call Put when done.
func Get() *Set {
	s := setPool.Get().(*Set)
	s.rb.Clear()
	return s
}

// Put returns a set to the pool.
func Put(s *Set) {
	if s == nil {
		return
	}
	s.rb.Clear()
	setPool.Put(s)
}

// Add adds a handle. It reports whether the handle was newly added.
func (s *Set) Add(id uint32) bool {
	return s.rb.CheckedAdd(id)
}

// Remove removes a handle. It reports whether the handle was present.
func (s *Set) Remove(id uint32) bool {
	return s.rb.CheckedRemove(id)
}

// Contains checks if a handle is in the set.
func (s *Set) Contains(id uint32) bool {
	return s.rb.Contains(id)
}

// Or merges other into s.
func (s *Set) Or(other *Set) {
	s.rb.Or(other.rb)
}

// ForEach calls fn for each handle in ascending order until fn returns false.
func (s *Set) ForEach(fn func(id uint32) bool) {
	it := s.rb.Iterator()
	for it.HasNext() {
		if !fn(it.Next()) {
			break
		}
	}
}

// All returns an iterator over the set in ascending order.
func (s *Set) All() iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		s.ForEach(yield)
	}
}

// ToArray returns the handles in ascending order.
func (s *Set) ToArray() []uint32 {
	return s.rb.ToArray()
}

// IsEmpty returns true if the set is empty.
func (s *Set) IsEmpty() bool {
	return s.rb.IsEmpty()
}

// Cardinality returns the number of handles in the set.
func (s *Set) Cardinality() int {
	return int(s.rb.GetCardinality())
}

// SizeInBytes estimates the serialized size of the set.
func (s *Set) SizeInBytes() int64 {
	return int64(s.rb.GetSizeInBytes())
}

// Clear removes all handles.
func (s *Set) Clear() {
	s.rb.Clear()
}
