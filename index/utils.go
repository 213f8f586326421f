package index

import (
	"github.com/hupe1980/spatialgo/geom"
	"github.com/hupe1980/spatialgo/internal/queue"
)

// SortByDistance returns results ordered by ascending Distance. Equal
// distances keep their input order.
func SortByDistance(results []Result) []Result {
	if len(results) < 2 {
		return results
	}

	pq := queue.NewMin(len(results))
	for i, r := range results {
		pq.PushItem(queue.PriorityQueueItem{Index: i, Distance: r.Distance})
	}

	sorted := make([]Result, 0, len(results))
	for _, i := range pq.Drain() {
		sorted = append(sorted, results[i])
	}
	return sorted
}

// RayResults converts box-query hits into raycast results carrying the
// distance from origin, ordered nearest first.
func RayResults(hits []Result, origin geom.Vector3) []Result {
	for i := range hits {
		hits[i].Distance = hits[i].Item.Bounds.DistanceToPoint(origin)
	}
	return SortByDistance(hits)
}

// RayBounds returns the query box used to approximate a raycast.
func RayBounds(origin, direction geom.Vector3, maxDistance float64) geom.AABB {
	if maxDistance <= 0 {
		maxDistance = DefaultRayDistance
	}
	return geom.SegmentBounds(origin, direction, maxDistance)
}

// WithinDistance reports whether d satisfies an optional maxDistance bound.
func WithinDistance(d, maxDistance float64) bool {
	return maxDistance <= 0 || d <= maxDistance
}
