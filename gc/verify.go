package gc

import (
	"errors"
	"fmt"
)

// Verify checks the heap's bookkeeping: every block's bitmap, free count,
// header and occupants, the ownership table, and the root set. It returns
// all problems found joined together, or nil.
func (h *Heap) Verify() error {
	var errs []error
	seen := 0
	for class := range h.buckets {
		want := h.classes.size(class)
		for _, b := range h.buckets[class].blocks {
			seen++
			if b.cellSize != want {
				errs = append(errs, fmt.Errorf("gc: block %v in class %d has cell size %d, want %d", b.base, class, b.cellSize, want))
			}
			if owned, ok := h.blocks[b.base]; !ok || owned != b {
				errs = append(errs, fmt.Errorf("gc: block %v missing from ownership table", b.base))
			}
			if b.base&^(h.region|Addr(maxBlocksPerRegion)<<15) != 0 {
				errs = append(errs, fmt.Errorf("gc: block %v outside heap region %v", b.base, h.region))
			}
			if err := b.verify(h.pending); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if seen != h.nblocks || len(h.blocks) != h.nblocks {
		errs = append(errs, fmt.Errorf("gc: block count %d, buckets %d, table %d", h.nblocks, seen, len(h.blocks)))
	}
	for c, n := range h.roots.pinned {
		if n <= 0 {
			errs = append(errs, fmt.Errorf("gc: pin count %d for %s", n, Describe(c)))
		}
		if !h.IsLive(c) {
			errs = append(errs, fmt.Errorf("gc: pinned cell %s is not live", Describe(c)))
		}
	}
	return errors.Join(errs...)
}
