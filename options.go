package spatialgo

import (
	"log/slog"

	"github.com/hupe1980/spatialgo/geom"
	"github.com/hupe1980/spatialgo/index"
	"github.com/hupe1980/spatialgo/index/bvh"
	"github.com/hupe1980/spatialgo/index/dyntree"
	"github.com/hupe1980/spatialgo/index/gridhash"
)

// DefaultOptimizeInterval is the number of operations between policy checks.
const DefaultOptimizeInterval = 1000

type options struct {
	indexType        index.Type
	treeOptions      []func(*dyntree.Options)
	bvhOptions       []func(*bvh.Options)
	gridOptions      []func(*gridhash.Options)
	gridConfigured   bool
	metricsCollector MetricsCollector
	logger           *Logger
	eventSink        index.EventSink
	clock            index.Clock
	policy           IndexPolicy
	optimizeInterval int
	autoOptimize     bool
}

// Option configures a Manager.
type Option func(*options)

// WithIndexType selects the index type the manager starts with.
// The default is the dynamic tree.
func WithIndexType(t index.Type) Option {
	return func(o *options) {
		o.indexType = t
	}
}

// WithDynamicTreeOptions configures the dynamic tree.
//
// Example:
//
//	m, _ := spatialgo.New(
//	    spatialgo.WithDynamicTreeOptions(func(o *dyntree.Options) {
//	        o.FattenFactor = 0.2
//	    }),
//	)
func WithDynamicTreeOptions(optFns ...func(*dyntree.Options)) Option {
	return func(o *options) {
		o.treeOptions = append(o.treeOptions, optFns...)
	}
}

// WithBVHOptions configures the bounding volume hierarchy.
func WithBVHOptions(optFns ...func(*bvh.Options)) Option {
	return func(o *options) {
		o.bvhOptions = append(o.bvhOptions, optFns...)
	}
}

// WithGrid makes the grid hash available. cellSize and world are required by
// the grid; without this option switching to the grid fails with
// ErrIndexUnavailable.
func WithGrid(cellSize float64, world geom.AABB, optFns ...func(*gridhash.Options)) Option {
	return func(o *options) {
		o.gridConfigured = true
		o.gridOptions = append([]func(*gridhash.Options){func(g *gridhash.Options) {
			g.CellSize = cellSize
			g.World = world
		}}, optFns...)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &spatialgo.BasicMetricsCollector{}
//	m, _ := spatialgo.New(spatialgo.WithMetricsCollector(metrics))
//	// ... use m ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for the manager and its indexes.
// Pass nil to disable logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel configures a text logger to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithEventSink registers a callback that receives every index and manager
// event synchronously.
func WithEventSink(sink index.EventSink) Option {
	return func(o *options) {
		o.eventSink = sink
	}
}

// WithClock replaces time.Now for timing and grid cleanup.
func WithClock(clock index.Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithPolicy sets the policy consulted by auto-optimization.
func WithPolicy(p IndexPolicy) Option {
	return func(o *options) {
		o.policy = p
	}
}

// WithOptimizeInterval sets the number of operations between policy checks.
func WithOptimizeInterval(n int) Option {
	return func(o *options) {
		o.optimizeInterval = n
	}
}

// WithAutoOptimize enables or disables policy-driven index switching.
// It is enabled by default.
func WithAutoOptimize(enabled bool) Option {
	return func(o *options) {
		o.autoOptimize = enabled
	}
}

func applyOptions(opts []Option) options {
	o := options{
		indexType:        index.TypeDynamicTree,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		policy:           DefaultThresholdPolicy,
		optimizeInterval: DefaultOptimizeInterval,
		autoOptimize:     true,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
