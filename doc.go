// Package spatialgo provides in-memory spatial indexes for axis-aligned boxes.
//
// Three index implementations share one item model (a string ID, a box and
// opaque user data):
//
//   - dyntree: an incrementally balanced tree of fattened boxes, cheap to
//     update when items move a little every frame
//   - bvh: a bounding volume hierarchy built once from a full item set
//   - gridhash: a uniform grid of fixed-size cells over a bounded world
//
// A Manager owns the authoritative item set and one active index. It can
// switch between index types at runtime without losing items and, when
// auto-optimization is enabled, lets an IndexPolicy pick the type that fits
// the current item count.
//
// # Quick Start
//
//	m, _ := spatialgo.New(
//	    spatialgo.WithGrid(16, geom.Box(0, 0, 0, 1024, 1024, 1024)),
//	)
//	_ = m.Insert(index.Item{ID: "crate", Bounds: geom.Box(1, 1, 1, 2, 2, 2)})
//
//	hits := m.Query(index.Query{Bounds: geom.Box(0, 0, 0, 4, 4, 4)})
//	near, ok := m.Nearest(geom.Vec(0, 0, 0), 0)
//	ray := m.Raycast(geom.Vec(0, 1.5, 1.5), geom.Vec(1, 0, 0), 100)
//
// # Capabilities
//
// Not every index answers every query natively. The BVH and dynamic tree
// provide nearest search; only the BVH provides a raycast. The manager serves
// missing capabilities with a box query followed by a distance ranking, so
// every index type answers all three query kinds.
//
// The BVH cannot be mutated in place. Mutations while it is active update the
// item set and mark the hierarchy stale; it is rebuilt before the next read.
//
// # Observability
//
// Logging uses log/slog through Logger. Operational metrics go to a
// MetricsCollector; observability.PrometheusCollector exports them to
// Prometheus. Every index operation can also be observed through an
// index.EventSink.
//
// A Manager is not safe for concurrent use.
package spatialgo
