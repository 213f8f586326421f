// Package arena provides an index-stable slot allocator for tree nodes.
//
// Nodes are addressed by int32 handles instead of pointers. Freed slots are
// recycled through a free list, so a handle stays valid until it is freed
// and the backing slice never shrinks until Reset.
//
// # Safety
//
// Get returns nil for out-of-range or freed handles rather than panicking.
package arena
