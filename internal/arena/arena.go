package arena

import (
	"errors"
	"unsafe"
)

// NodeID is a handle to a slot in an Arena.
type NodeID int32

// Nil is the handle that never refers to a slot.
const Nil NodeID = -1

// ErrMaxSlotsExceeded is returned when the arena cannot address another slot.
var ErrMaxSlotsExceeded = errors.New("arena: max slots exceeded")

// MaxSlots limits the number of addressable slots.
const MaxSlots = 1<<31 - 1

// Stats tracks arena usage.
type Stats struct {
	Slots       int   // Slots currently backed by the arena
	Live        int   // Slots in use
	Free        int   // Slots waiting on the free list
	TotalAllocs int64 // Historical: total allocations
	BytesUsed   int64 // Approximate bytes held by the slot slice
}

type slot[T any] struct {
	val  T
	live bool
}

// Arena hands out stable int32 handles to values of type T.
type Arena[T any] struct {
	slots  []slot[T]
	free   []NodeID
	allocs int64
}

// New creates an arena with room for capacity slots before growing.
func New[T any](capacity int) *Arena[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Arena[T]{
		slots: make([]slot[T], 0, capacity),
	}
}

// Alloc stores v in a free slot and returns its handle.
func (a *Arena[T]) Alloc(v T) (NodeID, error) {
	a.allocs++

	if n := len(a.free); n > 0 {
		id := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[id] = slot[T]{val: v, live: true}
		return id, nil
	}

	if len(a.slots) >= MaxSlots {
		return Nil, ErrMaxSlotsExceeded
	}

	a.slots = append(a.slots, slot[T]{val: v, live: true})
	return NodeID(len(a.slots) - 1), nil
}

// Get returns a pointer to the value behind id, or nil if id is not live.
// The pointer is invalidated by the next Alloc.
func (a *Arena[T]) Get(id NodeID) *T {
	if id < 0 || int(id) >= len(a.slots) || !a.slots[id].live {
		return nil
	}
	return &a.slots[id].val
}

// Free releases id for reuse. Freeing a dead handle is a no-op.
func (a *Arena[T]) Free(id NodeID) bool {
	if a.Get(id) == nil {
		return false
	}
	var zero T
	a.slots[id] = slot[T]{val: zero}
	a.free = append(a.free, id)
	return true
}

// Len returns the number of live slots.
func (a *Arena[T]) Len() int {
	return len(a.slots) - len(a.free)
}

// Reset drops every slot. Handles issued before Reset must not be used again.
func (a *Arena[T]) Reset() {
	a.slots = a.slots[:0]
	a.free = a.free[:0]
}

// Stats returns a usage snapshot.
func (a *Arena[T]) Stats() Stats {
	var zero slot[T]
	return Stats{
		Slots:       len(a.slots),
		Live:        a.Len(),
		Free:        len(a.free),
		TotalAllocs: a.allocs,
		BytesUsed:   int64(cap(a.slots))*int64(unsafe.Sizeof(zero)) + int64(cap(a.free))*4,
	}
}
