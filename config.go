package spatialgo

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/segmentio/encoding/json"

	"github.com/hupe1980/spatialgo/geom"
	"github.com/hupe1980/spatialgo/index"
	"github.com/hupe1980/spatialgo/index/bvh"
	"github.com/hupe1980/spatialgo/index/dyntree"
	"github.com/hupe1980/spatialgo/index/gridhash"
)

// Config is the file form of the manager options. Unset fields keep their
// defaults.
type Config struct {
	IndexType        string        `json:"index_type,omitempty"`
	LogLevel         string        `json:"log_level,omitempty"`
	OptimizeInterval *int          `json:"optimize_interval,omitempty"`
	AutoOptimize     *bool         `json:"auto_optimize,omitempty"`
	Policy           *PolicyConfig `json:"policy,omitempty"`
	DynamicTree      *TreeConfig   `json:"dynamic_tree,omitempty"`
	BVH              *BVHConfig    `json:"bvh,omitempty"`
	Grid             *GridConfig   `json:"grid,omitempty"`
}

// PolicyConfig configures a ThresholdPolicy.
type PolicyConfig struct {
	GridAbove int `json:"grid_above"`
	TreeBelow int `json:"tree_below"`
}

// TreeConfig mirrors dyntree.Options.
type TreeConfig struct {
	FattenFactor     *float64 `json:"fatten_factor,omitempty"`
	RebuildThreshold *int     `json:"rebuild_threshold,omitempty"`
	MaxDepth         *int     `json:"max_depth,omitempty"`
}

// BVHConfig mirrors bvh.Options.
type BVHConfig struct {
	MaxItemsPerLeaf *int     `json:"max_items_per_leaf,omitempty"`
	MaxDepth        *int     `json:"max_depth,omitempty"`
	SplitStrategy   string   `json:"split_strategy,omitempty"`
	MinNodeExtent   *float64 `json:"min_node_extent,omitempty"`
	SAHMaxItems     *int     `json:"sah_max_items,omitempty"`
	SAHCandidates   *int     `json:"sah_candidates,omitempty"`
}

// GridConfig mirrors gridhash.Options. Durations use time.ParseDuration syntax.
type GridConfig struct {
	CellSize        float64    `json:"cell_size"`
	WorldMin        [3]float64 `json:"world_min"`
	WorldMax        [3]float64 `json:"world_max"`
	MaxItemsPerCell *int       `json:"max_items_per_cell,omitempty"`
	CleanupInterval string     `json:"cleanup_interval,omitempty"`
	IdleTimeout     string     `json:"idle_timeout,omitempty"`
}

// LoadConfig reads a JSON config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig decodes a JSON config. Unknown fields are rejected.
func ParseConfig(data []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var c Config
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("%w: decode config: %v", ErrInvalidOptions, err)
	}
	return &c, nil
}

// Options converts the config into manager options.
func (c *Config) Options() ([]Option, error) {
	var opts []Option

	if c.IndexType != "" {
		t, ok := index.ParseType(c.IndexType)
		if !ok {
			return nil, &index.OptionError{Option: "IndexType", Reason: fmt.Sprintf("unknown index type %q", c.IndexType)}
		}
		opts = append(opts, WithIndexType(t))
	}

	if c.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return nil, &index.OptionError{Option: "LogLevel", Reason: err.Error()}
		}
		opts = append(opts, WithLogLevel(level))
	}

	if c.OptimizeInterval != nil {
		opts = append(opts, WithOptimizeInterval(*c.OptimizeInterval))
	}
	if c.AutoOptimize != nil {
		opts = append(opts, WithAutoOptimize(*c.AutoOptimize))
	}
	if c.Policy != nil {
		opts = append(opts, WithPolicy(ThresholdPolicy{
			GridAbove: c.Policy.GridAbove,
			TreeBelow: c.Policy.TreeBelow,
		}))
	}

	if t := c.DynamicTree; t != nil {
		opts = append(opts, WithDynamicTreeOptions(func(o *dyntree.Options) {
			setIf(&o.FattenFactor, t.FattenFactor)
			setIf(&o.RebuildThreshold, t.RebuildThreshold)
			setIf(&o.MaxDepth, t.MaxDepth)
		}))
	}

	if b := c.BVH; b != nil {
		strategy := bvh.SplitSAH
		switch b.SplitStrategy {
		case "", "sah":
		case "median":
			strategy = bvh.SplitMedian
		default:
			return nil, &index.OptionError{Option: "SplitStrategy", Reason: fmt.Sprintf("%q is not sah or median", b.SplitStrategy)}
		}
		opts = append(opts, WithBVHOptions(func(o *bvh.Options) {
			setIf(&o.MaxItemsPerLeaf, b.MaxItemsPerLeaf)
			setIf(&o.MaxDepth, b.MaxDepth)
			setIf(&o.MinNodeExtent, b.MinNodeExtent)
			setIf(&o.SAHMaxItems, b.SAHMaxItems)
			setIf(&o.SAHCandidates, b.SAHCandidates)
			o.SplitStrategy = strategy
		}))
	}

	if g := c.Grid; g != nil {
		cleanup, err := parseDuration("CleanupInterval", g.CleanupInterval)
		if err != nil {
			return nil, err
		}
		idle, err := parseDuration("IdleTimeout", g.IdleTimeout)
		if err != nil {
			return nil, err
		}

		world := geom.NewAABB(
			geom.Vec(g.WorldMin[0], g.WorldMin[1], g.WorldMin[2]),
			geom.Vec(g.WorldMax[0], g.WorldMax[1], g.WorldMax[2]),
		)
		opts = append(opts, WithGrid(g.CellSize, world, func(o *gridhash.Options) {
			setIf(&o.MaxItemsPerCell, g.MaxItemsPerCell)
			if cleanup != nil {
				o.CleanupInterval = *cleanup
			}
			if idle != nil {
				o.IdleTimeout = *idle
			}
		}))
	}

	return opts, nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func parseDuration(name, s string) (*time.Duration, error) {
	if s == "" {
		return nil, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, &index.OptionError{Option: name, Reason: err.Error()}
	}
	return &d, nil
}
