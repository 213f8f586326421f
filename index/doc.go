// Package index defines the contract shared by the spatial indexes.
//
// spatialgo ships three index types:
//
//   - BVH: build-once bounding volume hierarchy for static scenes
//   - Dynamic tree: self-balancing AABB tree for moving objects
//   - Grid hash: uniform spatial hash for dense, evenly spread objects
//
// # Index Selection
//
//   - BVH: geometry that rarely changes, many queries per rebuild
//   - Dynamic tree: frequent updates, mixed object sizes
//   - Grid hash: many small objects of similar size inside a known world box
//
// # Index Interface
//
// Every implementation satisfies Index. Mutation lives in Mutable, bulk
// construction in Builder. Nearester and Raycaster are optional
// capabilities checked by type assertion:
//
//	if n, ok := idx.(index.Nearester); ok {
//	    r, found := n.Nearest(p, 0)
//	}
//
// # Events
//
// Indexes report every operation to an optional EventSink and keep running
// QueryStats exposed through Debug.
package index
