package dyntree

import (
	"log/slog"

	"github.com/hupe1980/spatialgo/index"
)

// Options contains configuration options for the dynamic tree.
type Options struct {
	// FattenFactor enlarges each leaf box by this fraction of its size on
	// every side so small moves do not restructure the tree.
	FattenFactor float64

	// RebuildThreshold is the number of mutations after which the whole tree
	// is rebuilt. Zero disables periodic rebuilds.
	RebuildThreshold int

	// MaxDepth is the number of levels above which a warning is logged and a
	// rebuild is scheduled for the next mutation.
	MaxDepth int

	Logger    *slog.Logger
	EventSink index.EventSink
	Clock     index.Clock
}

// DefaultOptions contains the default configuration options for the dynamic tree.
var DefaultOptions = Options{
	FattenFactor:     0.1,
	RebuildThreshold: 10000,
	MaxDepth:         64,
}

func (o *Options) validate() error {
	switch {
	case o.FattenFactor < 0:
		return &index.OptionError{Option: "FattenFactor", Reason: "must not be negative"}
	case o.RebuildThreshold < 0:
		return &index.OptionError{Option: "RebuildThreshold", Reason: "must not be negative"}
	case o.MaxDepth < 1:
		return &index.OptionError{Option: "MaxDepth", Reason: "must be at least 1"}
	}
	return nil
}
