package spatialgo

import "github.com/hupe1980/spatialgo/index"

// IndexPolicy decides which index type should serve the current item count.
// It is consulted every OptimizeInterval operations.
type IndexPolicy interface {
	// Pick returns the preferred index type and a short reason. Returning
	// current keeps the active index.
	Pick(current index.Type, items int) (index.Type, string)
}

// ThresholdPolicy prefers the grid hash for large item counts and the dynamic
// tree for small ones. Counts between the thresholds keep the current index.
type ThresholdPolicy struct {
	// GridAbove switches to the grid hash once the item count exceeds it.
	GridAbove int

	// TreeBelow switches to the dynamic tree once the item count drops below it.
	TreeBelow int
}

// DefaultThresholdPolicy is the policy used when auto-optimization is enabled
// without an explicit policy.
var DefaultThresholdPolicy = ThresholdPolicy{
	GridAbove: 10000,
	TreeBelow: 1000,
}

// Pick implements IndexPolicy.
func (p ThresholdPolicy) Pick(current index.Type, items int) (index.Type, string) {
	switch {
	case items > p.GridAbove && current != index.TypeGridHash:
		return index.TypeGridHash, "item count above grid threshold"
	case items < p.TreeBelow && current != index.TypeDynamicTree:
		return index.TypeDynamicTree, "item count below tree threshold"
	default:
		return current, ""
	}
}
