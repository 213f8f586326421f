package bvh

import (
	"log/slog"

	"github.com/hupe1980/spatialgo/index"
)

// SplitStrategy selects how internal nodes partition their items.
type SplitStrategy int

const (
	// SplitSAH uses the surface area heuristic on small nodes and falls back
	// to the median split on large ones.
	SplitSAH SplitStrategy = iota
	// SplitMedian always splits at the median centroid of the longest axis.
	SplitMedian
)

// String returns a string representation of the SplitStrategy.
func (s SplitStrategy) String() string {
	switch s {
	case SplitSAH:
		return "sah"
	case SplitMedian:
		return "median"
	default:
		return "unknown"
	}
}

// Options contains configuration options for the BVH.
type Options struct {
	// MaxItemsPerLeaf stops subdivision once a node holds this many items or fewer.
	MaxItemsPerLeaf int

	// MaxDepth caps the number of tree levels.
	MaxDepth int

	// SplitStrategy chooses the partitioning method.
	SplitStrategy SplitStrategy

	// MinNodeExtent forces a leaf when a node's largest side is smaller.
	MinNodeExtent float64

	// SAHMaxItems is the largest node size evaluated with the surface area heuristic.
	SAHMaxItems int

	// SAHCandidates bounds the split offsets evaluated per axis.
	SAHCandidates int

	// TraversalCost is the constant cost added to every SAH split.
	TraversalCost float64

	Logger    *slog.Logger
	EventSink index.EventSink
	Clock     index.Clock
}

// DefaultOptions contains the default configuration options for the BVH.
var DefaultOptions = Options{
	MaxItemsPerLeaf: 4,
	MaxDepth:        32,
	SplitStrategy:   SplitSAH,
	MinNodeExtent:   1e-9,
	SAHMaxItems:     50,
	SAHCandidates:   16,
	TraversalCost:   1,
}

func (o *Options) validate() error {
	switch {
	case o.MaxItemsPerLeaf < 1:
		return &index.OptionError{Option: "MaxItemsPerLeaf", Reason: "must be at least 1"}
	case o.MaxDepth < 1:
		return &index.OptionError{Option: "MaxDepth", Reason: "must be at least 1"}
	case o.SplitStrategy != SplitSAH && o.SplitStrategy != SplitMedian:
		return &index.OptionError{Option: "SplitStrategy", Reason: "unknown strategy"}
	case o.MinNodeExtent < 0:
		return &index.OptionError{Option: "MinNodeExtent", Reason: "must not be negative"}
	case o.SAHCandidates < 1:
		return &index.OptionError{Option: "SAHCandidates", Reason: "must be at least 1"}
	}
	return nil
}
