package gc

import (
	"fmt"
	"log/slog"
)

// Slot is what a constructor receives: the address the new Cell will live
// at, the slot size, and the slot's zeroed raw bytes.
type Slot struct {
	Addr    Addr
	Size    int
	Payload []byte
}

// Constructor builds a Cell in a freshly acquired slot. It must return a new
// Cell (one never allocated before); a live or released Cell is rejected
// with ErrBoundCell. It may allocate further Cells; any Cell
// it holds across such an allocation must be rooted, as a collection can run.
type Constructor func(slot Slot) Cell

// Allocate obtains a slot large enough for size bytes and constructs a Cell
// in it. This is the only sanctioned way to create a Cell.
func (h *Heap) Allocate(size int, ctor Constructor) (Cell, error) {
	if h.closed {
		return nil, ErrClosed
	}
	if h.phase != phaseIdle {
		return nil, ErrCollecting
	}
	if ctor == nil {
		return nil, fmt.Errorf("%w: nil constructor", ErrNilCell)
	}
	class, _, err := h.SizeClass(size)
	if err != nil {
		return nil, err
	}
	h.stats.AllocCalls++

	b, slow, err := h.blockWithFree(class)
	if err != nil {
		return nil, err
	}
	if slow {
		h.stats.AllocSlowPath++
	} else {
		h.stats.AllocFastPath++
	}

	idx, addr := b.AcquireFreeSlot()
	payload := b.Payload(idx)
	clear(payload)

	c, err := h.runConstructor(b, idx, ctor, Slot{Addr: addr, Size: b.cellSize, Payload: payload})
	if err != nil {
		return nil, err
	}

	hdr := c.gcHeader()
	hdr.addr, hdr.size, hdr.marked = addr, int32(b.cellSize), false
	b.cells[idx] = c
	h.stats.BytesAllocated += int64(b.cellSize)
	return c, nil
}

// runConstructor runs ctor for slot idx of b and validates its result. The
// slot is returned to the block if ctor fails or panics.
func (h *Heap) runConstructor(b *Block, idx int, ctor Constructor, s Slot) (c Cell, err error) {
	h.pending++
	ok := false
	defer func() {
		h.pending--
		if !ok {
			b.abandon(idx)
		}
	}()

	c = ctor(s)
	if isNil(c) {
		return nil, ErrNilCell
	}
	if hdr := c.gcHeader(); hdr.addr != 0 || hdr.retired {
		return nil, ErrBoundCell
	}
	ok = true
	return c, nil
}

// abandon returns a slot whose construction failed.
func (b *Block) abandon(i int) {
	b.cells[i] = nil
	b.used.clear(i)
	b.free++
	b.syncHeader()
}

// Alloc is the typed form of Heap.Allocate.
func Alloc[T Cell](h *Heap, size int, ctor func(Slot) T) (T, error) {
	var zero T
	if ctor == nil {
		return zero, fmt.Errorf("%w: nil constructor", ErrNilCell)
	}
	c, err := h.Allocate(size, func(s Slot) Cell { return ctor(s) })
	if err != nil {
		return zero, err
	}
	return c.(T), nil
}

// blockWithFree returns a block of class with a free slot, growing or
// collecting according to the policy. slow reports whether the fast path
// (an existing block with room) failed.
func (h *Heap) blockWithFree(class int) (*Block, bool, error) {
	bk := &h.buckets[class]
	if b := bk.findFree(); b != nil {
		return b, false, nil
	}

	collected := false
	switch h.opts.Policy {
	case PolicyCollectFirst:
		// A class without blocks has nothing a collection could free.
		if len(bk.blocks) > 0 {
			h.collect("exhausted")
			collected = true
		}
	case PolicyBudget:
		if h.grownSinceCollect >= h.opts.GrowBudget {
			h.collect("budget")
			collected = true
		}
	}
	if collected {
		if b := bk.findFree(); b != nil {
			return b, true, nil
		}
	}

	if h.opts.MaxBlocks > 0 && h.nblocks >= h.opts.MaxBlocks {
		if !collected {
			h.collect("max-blocks")
			if b := bk.findFree(); b != nil {
				return b, true, nil
			}
		}
		h.reclaimEmpty()
		if h.nblocks >= h.opts.MaxBlocks {
			h.log.Debug("heap exhausted",
				slog.Int("class", class),
				slog.Int("blocks", h.nblocks),
			)
			return nil, true, fmt.Errorf("%w: %d blocks (class %d, %d-byte cells)",
				ErrNoSpace, h.nblocks, class, h.classes.size(class))
		}
	}

	b, err := h.addBlock(class)
	if err != nil {
		return nil, true, err
	}
	return b, true, nil
}

// reclaimEmpty releases empty blocks of any class, newest first, until the
// heap is below MaxBlocks. Unlike the sweep's release it may leave a class
// with no blocks at all.
func (h *Heap) reclaimEmpty() {
	for class := len(h.buckets) - 1; class >= 0 && h.nblocks >= h.opts.MaxBlocks; class-- {
		bk := &h.buckets[class]
		for pos := len(bk.blocks) - 1; pos >= 0 && h.nblocks >= h.opts.MaxBlocks; pos-- {
			b := bk.blocks[pos]
			if !b.isEmpty() {
				continue
			}
			if err := h.removeBlock(class, pos); err != nil {
				h.log.Warn("release block failed", "base", b.base.String(), "err", err)
			}
		}
	}
}

// findFree returns the first block with a free slot, starting at the hint.
func (bk *bucket) findFree() *Block {
	n := len(bk.blocks)
	for k := range n {
		i := (bk.hint + k) % n
		if bk.blocks[i].HasFree() {
			bk.hint = i
			return bk.blocks[i]
		}
	}
	return nil
}

// Free releases a live Cell immediately, running its teardown. Use it only
// when the mutator knows nothing references the Cell any more.
func (h *Heap) Free(c Cell) error {
	if h.closed {
		return ErrClosed
	}
	if h.phase != phaseIdle {
		return ErrCollecting
	}
	if isNil(c) {
		return ErrNilCell
	}
	if !h.IsLive(c) {
		return ErrNotLive
	}
	if h.roots.isPinned(c) {
		return ErrPinned
	}
	addr := c.gcHeader().addr
	b, _ := h.ContainingBlock(addr)

	// Teardown runs in the sweeping phase: Collect panics, Allocate and
	// Free fail.
	h.phase = phaseSweeping
	defer func() { h.phase = phaseIdle }()
	teardown(c)
	if err := b.ReleaseSlot(addr); err != nil {
		return err
	}
	h.stats.FreeCalls++
	h.stats.BytesFreed += int64(b.cellSize)
	h.bucketFor(b).noteFree(b)
	return nil
}

// bucketFor returns the bucket holding b.
func (h *Heap) bucketFor(b *Block) *bucket {
	class, _ := h.classes.classFor(b.cellSize)
	return &h.buckets[class]
}

// noteFree points the hint at b if b precedes it, so the lowest block with
// room is reused first.
func (bk *bucket) noteFree(b *Block) {
	for i := 0; i < bk.hint && i < len(bk.blocks); i++ {
		if bk.blocks[i] == b {
			bk.hint = i
			return
		}
	}
}
