package gc

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/joshuapare/cellheap/internal/blockmem"
	"github.com/joshuapare/cellheap/internal/format"
)

// regionShift sizes the private address region of every heap (1 TiB).
const regionShift = 40

// maxBlocksPerRegion is how many blocks fit in one heap's region.
const maxBlocksPerRegion = 1<<(regionShift-15) - 1

// maxHeapID is the last id whose region fits in an Addr.
const maxHeapID = 1<<(64-regionShift) - 1

// heapIDs hands out address regions so that addresses of two heaps never alias.
var heapIDs atomic.Uint64

// GrowthPolicy decides what Allocate does when a size class has no free slot.
type GrowthPolicy int

const (
	// PolicyGrow always adds a block. Collections happen only when Collect
	// is called, or as a last resort once MaxBlocks is reached.
	PolicyGrow GrowthPolicy = iota

	// PolicyCollectFirst runs a collection first and grows only if the
	// class is still exhausted afterwards.
	PolicyCollectFirst

	// PolicyBudget grows until GrowBudget blocks have been added since the
	// last collection, then collects before growing any further.
	PolicyBudget
)

var policyNames = map[GrowthPolicy]string{
	PolicyGrow:         "grow",
	PolicyCollectFirst: "collect-first",
	PolicyBudget:       "budget",
}

func (p GrowthPolicy) String() string {
	if s, ok := policyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("GrowthPolicy(%d)", int(p))
}

// ParseGrowthPolicy parses a policy name as printed by String.
func ParseGrowthPolicy(s string) (GrowthPolicy, error) {
	for p, name := range policyNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrBadPolicy, s)
}

// MemorySource supplies block memory. Map must return exactly size zeroed
// bytes and a function releasing them.
type MemorySource interface {
	Map(size int) ([]byte, func() error, error)
}

// defaultGrowBudget is the PolicyBudget allowance when Options.GrowBudget is 0.
const defaultGrowBudget = 8

// Options configures a Heap. The zero value is usable.
type Options struct {
	// SizeClasses selects the size class table (nil means DefaultConfig).
	SizeClasses *SizeClassConfig

	// Policy is the growth policy (default PolicyGrow).
	Policy GrowthPolicy

	// GrowBudget is the number of blocks PolicyBudget may add between
	// collections (default 8).
	GrowBudget int

	// MaxBlocks caps the number of blocks (0 means unlimited). Reaching the
	// cap forces a collection; if that frees nothing usable, Allocate
	// returns ErrNoSpace.
	MaxBlocks int

	// ReleaseEmptyBlocks returns the memory of blocks left empty by a sweep,
	// keeping one block per size class.
	ReleaseEmptyBlocks bool

	// Memory supplies block memory (default: anonymous mappings).
	Memory MemorySource

	// Logger receives debug events (default: CELLHEAP_LOG, else discarded).
	Logger *slog.Logger
}

type phase uint8

const (
	phaseIdle phase = iota
	phaseMarking
	phaseSweeping
)

// bucket is the ordered set of blocks of one size class.
type bucket struct {
	blocks []*Block
	hint   int // index of the block most recently found with a free slot
}

// Heap owns a set of blocks grouped by size class and collects the Cells in
// them. Create one with New; there is no global heap.
type Heap struct {
	id     uint64
	region Addr
	opts   Options
	log    *slog.Logger

	classes *sizeClassTable
	buckets []bucket
	blocks  map[Addr]*Block // ownership table keyed by block base
	nblocks int
	nextSeq uint32

	roots    rootSet
	scanners []*scannerEntry

	stats             Stats
	grownSinceCollect int
	pending           int // constructors currently running
	phase             phase
	closed            bool

	// Test hook: called before a block is added (nil in production)
	onGrow func(class int)
}

// New creates an empty heap.
func New(opts Options) (*Heap, error) {
	config := DefaultConfig
	if opts.SizeClasses != nil {
		config = *opts.SizeClasses
	}
	table, err := newSizeClassTable(config)
	if err != nil {
		return nil, err
	}
	if opts.GrowBudget <= 0 {
		opts.GrowBudget = defaultGrowBudget
	}
	if opts.MaxBlocks < 0 {
		return nil, fmt.Errorf("gc: MaxBlocks %d must not be negative", opts.MaxBlocks)
	}
	if _, ok := policyNames[opts.Policy]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrBadPolicy, int(opts.Policy))
	}
	if opts.Memory == nil {
		opts.Memory = blockmem.Anonymous{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = envLogger()
	}

	id := heapIDs.Add(1)
	if id > maxHeapID {
		return nil, fmt.Errorf("%w: address regions used up (%d heaps)", ErrNoSpace, maxHeapID)
	}
	h := &Heap{
		id:      id,
		region:  Addr(id << regionShift),
		opts:    opts,
		classes: table,
		buckets: make([]bucket, table.NumClasses()),
		blocks:  make(map[Addr]*Block, 64),
		nextSeq: 1,
		roots:   newRootSet(),
	}
	h.log = logger.With("heap", id)
	return h, nil
}

// ID returns the heap's identifier.
func (h *Heap) ID() uint64 { return h.id }

// Policy returns the growth policy in effect.
func (h *Heap) Policy() GrowthPolicy { return h.opts.Policy }

// ClassSizes returns the slot size of every size class, ascending.
func (h *Heap) ClassSizes() []int {
	return append([]int(nil), h.classes.sizes...)
}

// SizeClass returns the class index and slot size used for an allocation of
// size bytes.
func (h *Heap) SizeClass(size int) (class, cellSize int, err error) {
	if size <= 0 {
		return -1, 0, ErrBadSize
	}
	c, ok := h.classes.classFor(size)
	if !ok {
		return -1, 0, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, size, h.classes.maxSize())
	}
	return c, h.classes.size(c), nil
}

// NumBlocks returns the number of blocks currently owned.
func (h *Heap) NumBlocks() int { return h.nblocks }

// Blocks returns every owned block, ordered by size class then creation.
func (h *Heap) Blocks() []*Block {
	out := make([]*Block, 0, h.nblocks)
	for i := range h.buckets {
		out = append(out, h.buckets[i].blocks...)
	}
	return out
}

// ContainingBlock masks addr to a block base and returns the block only if
// this heap owns it.
func (h *Heap) ContainingBlock(addr Addr) (*Block, bool) {
	b, ok := h.blocks[BlockBase(addr)]
	return b, ok
}

// Resolve classifies addr conservatively: it returns the live Cell whose
// slot starts exactly at addr, or false for anything else (foreign memory,
// block headers, misaligned addresses, free slots).
func (h *Heap) Resolve(addr Addr) (Cell, bool) {
	if addr == 0 {
		return nil, false
	}
	b, ok := h.ContainingBlock(addr)
	if !ok {
		return nil, false
	}
	i, ok := b.SlotFor(addr)
	if !ok || !b.used.test(i) {
		return nil, false
	}
	c := b.cells[i]
	if c == nil {
		return nil, false
	}
	return c, true
}

// IsLive reports whether c currently occupies a slot of this heap.
func (h *Heap) IsLive(c Cell) bool {
	if isNil(c) {
		return false
	}
	got, ok := h.Resolve(c.gcHeader().addr)
	return ok && got == c
}

// Close tears down every remaining Cell and releases all block memory.
// The heap is unusable afterwards.
func (h *Heap) Close() error {
	if h.closed {
		return nil
	}
	if h.phase != phaseIdle {
		panic("gc: Close called during collection")
	}
	h.phase = phaseSweeping
	defer func() { h.phase = phaseIdle }()

	var errs []error
	for i := range h.buckets {
		for _, b := range h.buckets[i].blocks {
			for idx, c := range b.All() {
				if c != nil {
					teardown(c)
				}
				b.releaseIndex(idx)
			}
			if err := b.unmap(); err != nil {
				errs = append(errs, fmt.Errorf("gc: release block %v: %w", b.base, err))
			}
		}
		h.buckets[i] = bucket{}
	}
	clear(h.blocks)
	h.nblocks = 0
	h.roots = newRootSet()
	h.scanners = nil
	h.closed = true
	h.log.Debug("heap closed")
	return errors.Join(errs...)
}

// teardown runs the Cell's Destroy hook, if any.
func teardown(c Cell) {
	if d, ok := c.(Destroyer); ok {
		d.Destroy()
	}
}

// addBlock maps memory for a new block of class and registers it.
func (h *Heap) addBlock(class int) (*Block, error) {
	if h.onGrow != nil {
		h.onGrow(class)
	}
	if h.nextSeq > maxBlocksPerRegion {
		return nil, fmt.Errorf("%w: address region full", ErrNoSpace)
	}
	mem, release, err := h.opts.Memory.Map(format.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGrowFail, err)
	}
	seq := h.nextSeq
	base := h.region + Addr(seq)*format.BlockSize
	b, err := newBlock(base, seq, mem, release, h.classes.size(class))
	if err != nil {
		if release != nil {
			_ = release()
		}
		return nil, fmt.Errorf("%w: %w", ErrGrowFail, err)
	}
	h.nextSeq++
	h.blocks[base] = b
	bk := &h.buckets[class]
	bk.blocks = append(bk.blocks, b)
	bk.hint = len(bk.blocks) - 1
	h.nblocks++
	h.grownSinceCollect++
	h.stats.GrowCalls++
	h.stats.GrowBytes += format.BlockSize

	h.log.Debug("grow",
		slog.Int("class", class),
		slog.Int("cell_size", b.cellSize),
		slog.String("base", base.String()),
		slog.Int("slots", b.total),
		slog.Int("blocks", h.nblocks),
	)
	return b, nil
}

// removeBlock unregisters and unmaps the block at position pos of class.
func (h *Heap) removeBlock(class, pos int) error {
	bk := &h.buckets[class]
	b := bk.blocks[pos]
	bk.blocks = append(bk.blocks[:pos], bk.blocks[pos+1:]...)
	if bk.hint >= len(bk.blocks) {
		bk.hint = 0
	}
	delete(h.blocks, b.base)
	h.nblocks--
	h.stats.BlocksReleased++
	h.log.Debug("release block",
		slog.Int("class", class),
		slog.String("base", b.base.String()),
	)
	return b.unmap()
}
