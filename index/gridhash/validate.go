package gridhash

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hupe1980/spatialgo/internal/arena"
)

// ErrCorrupt is wrapped by every error returned from Validate.
var ErrCorrupt = errors.New("gridhash: corrupt grid")

// Validate checks that the cell sets and the per-item cell lists describe the
// same membership and that every item occupies exactly the cells its bounds
// cover.
func (g *Grid) Validate() error {
	if g.entries.Len() != len(g.handles) {
		return fmt.Errorf("%w: %d entries for %d ids", ErrCorrupt, g.entries.Len(), len(g.handles))
	}

	for id, h := range g.handles {
		e := g.entries.Get(h)
		if e == nil || e.item.ID != id {
			return fmt.Errorf("%w: id %q does not resolve to its entry", ErrCorrupt, id)
		}
		if !slices.Equal(e.cells, g.CellsFor(e.item.Bounds)) {
			return fmt.Errorf("%w: item %q cell list is stale", ErrCorrupt, id)
		}
		for _, k := range e.cells {
			c, ok := g.cells[k]
			if !ok || !c.items.Contains(uint32(h)) {
				return fmt.Errorf("%w: item %q missing from cell %v", ErrCorrupt, id, k)
			}
		}
	}

	for k, c := range g.cells {
		var err error
		c.items.ForEach(func(h uint32) bool {
			e := g.entries.Get(arena.NodeID(h))
			if e == nil {
				err = fmt.Errorf("%w: cell %v holds dead handle %d", ErrCorrupt, k, h)
				return false
			}
			if !slices.Contains(e.cells, k) {
				err = fmt.Errorf("%w: cell %v holds %q which does not list it", ErrCorrupt, k, e.item.ID)
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	return nil
}
