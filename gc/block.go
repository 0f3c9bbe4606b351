package gc

import (
	"fmt"

	"github.com/joshuapare/cellheap/internal/format"
)

// Block is a 32 KiB arena of same-size slots. The first BlockHeaderSize
// bytes of its memory hold the encoded block header; slot i occupies
// [HeaderSize + i*cellSize, HeaderSize + (i+1)*cellSize).
//
// Slot bookkeeping is a bitmap kept beside the memory, so freed slots are
// never threaded into a free list through object memory.
type Block struct {
	base    Addr
	seq     uint32
	mem     []byte // exactly format.BlockSize bytes
	release func() error

	cellSize int
	total    int
	free     int

	used  bitmap
	cells []Cell   // occupant per slot; nil while free or under construction
	gens  []uint32 // bumped every time a slot is released
}

// BlockBase returns the candidate block base for addr by masking off the
// in-block bits. The result is NOT validated; a Heap must confirm that it
// owns a block at that base (see Heap.Resolve).
func BlockBase(addr Addr) Addr {
	return Addr(format.BlockBase(uint64(addr)))
}

// newBlock builds a block of cellSize slots over mem. mem is zeroed.
func newBlock(base Addr, seq uint32, mem []byte, release func() error, cellSize int) (*Block, error) {
	if len(mem) != format.BlockSize {
		return nil, fmt.Errorf("gc: block memory is %d bytes, want %d", len(mem), format.BlockSize)
	}
	if cellSize < format.MinCellSize || cellSize > format.MaxCellSize || cellSize%format.CellAlignment != 0 {
		return nil, fmt.Errorf("gc: invalid cell size %d", cellSize)
	}
	if !format.IsBlockAligned(uint64(base)) {
		return nil, fmt.Errorf("gc: block base %v not 32KiB-aligned", base)
	}

	total := format.SlotCount(cellSize)
	b := &Block{
		base:     base,
		seq:      seq,
		mem:      mem,
		release:  release,
		cellSize: cellSize,
		total:    total,
		free:     total,
		used:     newBitmap(total),
		cells:    make([]Cell, total),
		gens:     make([]uint32, total),
	}
	clear(b.mem)
	b.syncHeader()
	return b, nil
}

// syncHeader rewrites the on-block header from the in-memory state.
func (b *Block) syncHeader() {
	err := format.PutBlockHeader(b.mem, format.BlockHeader{
		CellSize: uint32(b.cellSize),
		Total:    uint32(b.total),
		Free:     uint32(b.free),
		Base:     uint64(b.base),
		Seq:      b.seq,
	})
	if err != nil {
		panic(fmt.Sprintf("gc: block %v header: %v", b.base, err))
	}
}

// Header decodes the block header stored in block memory.
func (b *Block) Header() (format.BlockHeader, error) {
	return format.DecodeBlockHeader(b.mem)
}

// Base returns the block's base address.
func (b *Block) Base() Addr { return b.base }

// Seq returns the block's sequence number within its heap.
func (b *Block) Seq() uint32 { return b.seq }

// CellSize returns the slot size.
func (b *Block) CellSize() int { return b.cellSize }

// TotalCount returns the number of slots.
func (b *Block) TotalCount() int { return b.total }

// FreeCount returns the number of free slots.
func (b *Block) FreeCount() int { return b.free }

// UsedCount returns the number of occupied slots.
func (b *Block) UsedCount() int { return b.total - b.free }

// HasFree reports whether at least one slot is free.
func (b *Block) HasFree() bool { return b.free > 0 }

// Contains reports whether addr falls inside this block's address range.
func (b *Block) Contains(addr Addr) bool {
	return addr >= b.base && addr < b.base+format.BlockSize
}

// SlotAt returns the address of slot i. i must be in [0, TotalCount()).
func (b *Block) SlotAt(i int) Addr {
	if i < 0 || i >= b.total {
		panic(fmt.Sprintf("gc: slot index %d out of range [0, %d)", i, b.total))
	}
	return b.base + format.BlockHeaderSize + Addr(i*b.cellSize)
}

// SlotFor maps addr back to its slot index. It returns false if addr lies
// outside the slot area of this block or is not exactly on a slot boundary.
func (b *Block) SlotFor(addr Addr) (int, bool) {
	first := b.base + format.BlockHeaderSize
	if addr < first {
		return -1, false
	}
	diff := uint64(addr - first)
	if diff%uint64(b.cellSize) != 0 {
		return -1, false
	}
	idx := diff / uint64(b.cellSize)
	if idx >= uint64(b.total) {
		return -1, false
	}
	return int(idx), true
}

// IsOccupied reports whether slot i holds a Cell.
func (b *Block) IsOccupied(i int) bool {
	return i >= 0 && i < b.total && b.used.test(i)
}

// CellAt returns the occupant of slot i, or nil.
func (b *Block) CellAt(i int) Cell {
	if !b.IsOccupied(i) {
		return nil
	}
	return b.cells[i]
}

// Generation returns how many times slot i has been released.
func (b *Block) Generation(i int) uint32 {
	return b.gens[i]
}

// Payload returns the raw bytes of slot i.
func (b *Block) Payload(i int) []byte {
	off := format.BlockHeaderSize + i*b.cellSize
	return b.mem[off : off+b.cellSize : off+b.cellSize]
}

// AcquireFreeSlot claims the lowest free slot and returns its index and
// address. Calling it on a block without free slots is a bookkeeping defect
// and panics; so does a free count that disagrees with the bitmap.
func (b *Block) AcquireFreeSlot() (int, Addr) {
	if !b.HasFree() {
		panic(fmt.Sprintf("gc: AcquireFreeSlot on full block %v (cell size %d)", b.base, b.cellSize))
	}
	i := b.used.firstClear(b.total)
	if i >= b.total {
		panic(fmt.Sprintf("gc: block %v reports %d free slots but bitmap is full", b.base, b.free))
	}
	b.used.set(i)
	b.free--
	b.syncHeader()
	return i, b.SlotAt(i)
}

// ReleaseSlot frees the slot at addr. The slot memory is not cleared; the
// next acquisition zeroes it. Returns ErrBadSlot for addresses that are not
// exactly a slot of this block and ErrSlotFree for slots already free.
func (b *Block) ReleaseSlot(addr Addr) error {
	i, ok := b.SlotFor(addr)
	if !ok {
		return fmt.Errorf("%w: %v in block %v", ErrBadSlot, addr, b.base)
	}
	if !b.used.test(i) {
		return fmt.Errorf("%w: %v", ErrSlotFree, addr)
	}
	b.releaseIndex(i)
	return nil
}

// releaseIndex frees slot i, which must be occupied.
func (b *Block) releaseIndex(i int) {
	if c := b.cells[i]; c != nil {
		h := c.gcHeader()
		h.addr, h.size, h.marked = 0, 0, false
		h.retired = true
	}
	b.cells[i] = nil
	b.used.clear(i)
	b.gens[i]++
	b.free++
	b.syncHeader()
}

// UnmarkAll clears the mark bit of every occupant.
func (b *Block) UnmarkAll() {
	for _, c := range b.All() {
		if c != nil {
			c.gcHeader().Unmark()
		}
	}
}

// isEmpty reports whether no slot is occupied.
func (b *Block) isEmpty() bool { return b.free == b.total }

// unmap releases the block's memory. The block must not be used afterwards.
func (b *Block) unmap() error {
	b.mem = nil
	if b.release == nil {
		return nil
	}
	err := b.release()
	b.release = nil
	return err
}

// BlockStats describes the occupancy of one block.
type BlockStats struct {
	Base     Addr
	Seq      uint32
	CellSize int
	Total    int
	Used     int
}

// Stats returns a snapshot of the block's occupancy.
func (b *Block) Stats() BlockStats {
	return BlockStats{Base: b.base, Seq: b.seq, CellSize: b.cellSize, Total: b.total, Used: b.UsedCount()}
}

// verify checks the bitmap / free count / header / occupant invariants.
// pending is the number of slots that may legitimately be occupied without
// an occupant (constructors still running).
func (b *Block) verify(pending int) error {
	used := b.used.count()
	if b.total-used != b.free {
		return fmt.Errorf("gc: block %v: free count %d != %d clear bits", b.base, b.free, b.total-used)
	}
	hdr, err := b.Header()
	if err != nil {
		return fmt.Errorf("gc: block %v: %w", b.base, err)
	}
	if hdr.Base != uint64(b.base) || int(hdr.CellSize) != b.cellSize || int(hdr.Free) != b.free {
		return fmt.Errorf("gc: block %v: header %+v out of sync", b.base, hdr)
	}
	empty := 0
	for i := range b.total {
		c := b.cells[i]
		if !b.used.test(i) {
			if c != nil {
				return fmt.Errorf("gc: block %v: free slot %d has an occupant", b.base, i)
			}
			continue
		}
		if c == nil {
			empty++
			continue
		}
		h := c.gcHeader()
		if h.addr != b.SlotAt(i) || int(h.size) != b.cellSize {
			return fmt.Errorf("gc: block %v: slot %d occupant bound to %v/%d", b.base, i, h.addr, h.size)
		}
	}
	if empty > pending {
		return fmt.Errorf("gc: block %v: %d occupied slots without an occupant", b.base, empty)
	}
	return nil
}
