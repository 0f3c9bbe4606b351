package gc

// sweepBlock releases every occupied, unmarked slot of b and returns how
// many Cells and bytes it reclaimed. Slots whose constructor is still
// running have no occupant yet and are left alone.
func (h *Heap) sweepBlock(b *Block) (cells int, bytes int64) {
	for i, c := range b.All() {
		if c == nil {
			continue
		}
		hdr := c.gcHeader()
		if hdr.marked {
			continue
		}
		teardown(c)
		b.releaseIndex(i)
		cells++
		bytes += int64(b.cellSize)
	}
	return cells, bytes
}

// sweep sweeps every block and then, if configured, releases blocks left
// empty.
func (h *Heap) sweep(cs *CycleStats) {
	for class := range h.buckets {
		bk := &h.buckets[class]
		for _, b := range bk.blocks {
			n, bytes := h.sweepBlock(b)
			cs.CellsSwept += n
			cs.BytesSwept += bytes
		}
		bk.hint = 0
		if h.opts.ReleaseEmptyBlocks {
			h.releaseEmpty(class, cs)
		}
	}
}

// releaseEmpty unmaps empty blocks of class, newest first, as long as the
// class keeps at least one block.
func (h *Heap) releaseEmpty(class int, cs *CycleStats) {
	bk := &h.buckets[class]
	for pos := len(bk.blocks) - 1; pos >= 0 && len(bk.blocks) > 1; pos-- {
		b := bk.blocks[pos]
		if !b.isEmpty() {
			continue
		}
		if err := h.removeBlock(class, pos); err != nil {
			h.log.Warn("release block failed", "base", b.base.String(), "err", err)
		}
		cs.BlocksReleased++
	}
}
