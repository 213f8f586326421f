package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/spatialgo/geom"
	"github.com/hupe1980/spatialgo/index"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Range returns a pseudo-random number in [lo, hi).
func (r *RNG) Range(lo, hi float64) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo + r.rand.Float64()*(hi-lo)
}

// Point returns a uniform random point inside world.
func (r *RNG) Point(world geom.AABB) geom.Vector3 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pointLocked(world)
}

func (r *RNG) pointLocked(world geom.AABB) geom.Vector3 {
	return geom.Vec(
		world.Min.X+r.rand.Float64()*(world.Max.X-world.Min.X),
		world.Min.Y+r.rand.Float64()*(world.Max.Y-world.Min.Y),
		world.Min.Z+r.rand.Float64()*(world.Max.Z-world.Min.Z),
	)
}

// Box returns a random box whose minimum corner lies inside world and whose
// side lengths are drawn from [minSize, maxSize).
func (r *RNG) Box(world geom.AABB, minSize, maxSize float64) geom.AABB {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.boxLocked(world, minSize, maxSize)
}

func (r *RNG) boxLocked(world geom.AABB, minSize, maxSize float64) geom.AABB {
	p := r.pointLocked(world)
	side := func() float64 { return minSize + r.rand.Float64()*(maxSize-minSize) }
	return geom.NewAABB(p, geom.Vec(p.X+side(), p.Y+side(), p.Z+side()))
}

// UniformBoxes generates n random boxes inside world.
func (r *RNG) UniformBoxes(n int, world geom.AABB, minSize, maxSize float64) []geom.AABB {
	r.mu.Lock()
	defer r.mu.Unlock()

	boxes := make([]geom.AABB, n)
	for i := range n {
		boxes[i] = r.boxLocked(world, minSize, maxSize)
	}
	return boxes
}

// ClusteredBoxes generates n boxes grouped around clusters random centers.
// spread is the standard deviation of each box's offset from its center.
func (r *RNG) ClusteredBoxes(n, clusters int, world geom.AABB, spread, size float64) []geom.AABB {
	centers := make([]geom.Vector3, clusters)
	for i := range centers {
		centers[i] = r.Point(world)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	boxes := make([]geom.AABB, n)
	for i := range n {
		c := centers[i%clusters]
		p := geom.Vec(
			c.X+r.rand.NormFloat64()*spread,
			c.Y+r.rand.NormFloat64()*spread,
			c.Z+r.rand.NormFloat64()*spread,
		)
		boxes[i] = geom.FromCenter(p, geom.Vec(size/2, size/2, size/2))
	}
	return boxes
}

// UniformItems generates n items named prefix-0 .. prefix-(n-1).
func (r *RNG) UniformItems(prefix string, n int, world geom.AABB, minSize, maxSize float64) []index.Item {
	return ItemsFromBoxes(prefix, r.UniformBoxes(n, world, minSize, maxSize))
}

// ItemsFromBoxes wraps boxes into items with sequential IDs.
func ItemsFromBoxes(prefix string, boxes []geom.AABB) []index.Item {
	items := make([]index.Item, len(boxes))
	for i, b := range boxes {
		items[i] = index.Item{ID: fmt.Sprintf("%s-%d", prefix, i), Bounds: b}
	}
	return items
}

// UnitCubes returns n unit cubes laid out along the X axis with their minimum
// corners at integer positions.
func UnitCubes(prefix string, n int) []index.Item {
	boxes := make([]geom.AABB, n)
	for i := range n {
		x := float64(i)
		boxes[i] = geom.Box(x, 0, 0, x+1, 1, 1)
	}
	return ItemsFromBoxes(prefix, boxes)
}

// BruteQuery returns the sorted IDs of items that overlap q.Bounds and pass
// q.Filter. MaxResults is ignored.
func BruteQuery(items []index.Item, q index.Query) []string {
	ids := []string{}
	for _, it := range items {
		if it.Bounds.Overlaps(q.Bounds) && q.Accept(it) {
			ids = append(ids, it.ID)
		}
	}
	slices.Sort(ids)
	return ids
}

// BruteNearest returns the distance from point to the closest item, or false
// when none is within maxDistance (maxDistance <= 0 is unbounded).
func BruteNearest(items []index.Item, point geom.Vector3, maxDistance float64) (float64, bool) {
	best := math.Inf(1)
	for _, it := range items {
		if d := it.Bounds.DistanceToPoint(point); d < best {
			best = d
		}
	}
	if math.IsInf(best, 1) || !index.WithinDistance(best, maxDistance) {
		return 0, false
	}
	return best, true
}

// IDs returns the sorted IDs of results.
func IDs(results []index.Result) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.Item.ID
	}
	slices.Sort(ids)
	return ids
}

// ItemIDs returns the sorted IDs of items.
func ItemIDs(items []index.Item) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	slices.Sort(ids)
	return ids
}
