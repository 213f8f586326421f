package gridhash

import (
	"log/slog"
	"math"
	"time"

	"github.com/hupe1980/spatialgo/geom"
	"github.com/hupe1980/spatialgo/index"
)

// maxCellsPerAxis keeps cell coordinates inside int32.
const maxCellsPerAxis = math.MaxInt32

// Options contains configuration options for the grid hash.
type Options struct {
	// CellSize is the edge length of every cubical cell. Required.
	CellSize float64

	// World is the region covered by cells. Boxes are clamped to it. Required.
	World geom.AABB

	// MaxItemsPerCell is the occupancy above which a warning is logged.
	// Cells never split. Zero disables the warning.
	MaxItemsPerCell int

	// CleanupInterval is the minimum time between idle-cell sweeps.
	CleanupInterval time.Duration

	// IdleTimeout is how long an empty cell must go unaccessed before a sweep
	// drops it.
	IdleTimeout time.Duration

	// WarnEvery limits overflow warnings to one per interval.
	WarnEvery time.Duration

	Logger    *slog.Logger
	EventSink index.EventSink
	Clock     index.Clock
}

// DefaultOptions contains the default configuration options for the grid
// hash. CellSize and World have no usable default.
var DefaultOptions = Options{
	MaxItemsPerCell: 64,
	CleanupInterval: 10 * time.Second,
	IdleTimeout:     30 * time.Second,
	WarnEvery:       time.Second,
}

func (o *Options) validate() error {
	switch {
	case !(o.CellSize > 0) || math.IsInf(o.CellSize, 1):
		return &index.OptionError{Option: "CellSize", Reason: "must be a positive finite number"}
	case !o.World.Valid():
		return &index.OptionError{Option: "World", Reason: "min must not exceed max"}
	case o.MaxItemsPerCell < 0:
		return &index.OptionError{Option: "MaxItemsPerCell", Reason: "must not be negative"}
	case o.CleanupInterval < 0 || o.IdleTimeout < 0 || o.WarnEvery < 0:
		return &index.OptionError{Option: "Interval", Reason: "durations must not be negative"}
	}

	size := o.World.Size()
	for _, extent := range []float64{size.X, size.Y, size.Z} {
		if math.IsInf(extent, 0) || math.Ceil(extent/o.CellSize) > maxCellsPerAxis {
			return &index.OptionError{Option: "CellSize", Reason: "too small for the world size"}
		}
	}
	return nil
}
