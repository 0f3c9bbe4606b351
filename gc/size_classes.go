package gc

import (
	"fmt"
	"math"

	"github.com/joshuapare/cellheap/internal/format"
)

// SizeClassConfig defines the size class strategy: linear steps for small
// cells, geometric growth for medium ones.
type SizeClassConfig struct {
	// Name for this configuration (for reports and benchmarks)
	Name string

	// Small classes: SmallMin, SmallMin+SmallIncrement, ... SmallMax
	SmallMin       int
	SmallMax       int
	SmallIncrement int

	// Medium classes grow by GrowthFactor from SmallMax up to MediumMax,
	// which is the largest allocation the heap accepts.
	MediumMax    int
	GrowthFactor float64
}

// Predefined configurations.
var (
	// FineGrained: many small classes, least internal fragmentation.
	// 16-256 step 8 (31 classes) + 256-8K x1.25 (~16 classes).
	ConfigFineGrained = SizeClassConfig{
		Name:           "FineGrained",
		SmallMin:       16,
		SmallMax:       256,
		SmallIncrement: 8,
		MediumMax:      8192,
		GrowthFactor:   1.25,
	}

	// Balanced: the default.
	// 16-256 step 16 (16 classes) + 256-8K x1.5 (~9 classes).
	ConfigBalanced = SizeClassConfig{
		Name:           "Balanced",
		SmallMin:       16,
		SmallMax:       256,
		SmallIncrement: 16,
		MediumMax:      8192,
		GrowthFactor:   1.5,
	}

	// Coarse: few classes, fewer partially filled blocks.
	// 16-512 step 32 (16 classes) + 512-16K x2 (5 classes).
	ConfigCoarse = SizeClassConfig{
		Name:           "Coarse",
		SmallMin:       16,
		SmallMax:       512,
		SmallIncrement: 32,
		MediumMax:      16384,
		GrowthFactor:   2.0,
	}

	// DefaultConfig is used when Options.SizeClasses is nil.
	DefaultConfig = ConfigBalanced
)

// Presets maps lower-case preset names to configurations.
var Presets = map[string]SizeClassConfig{
	"finegrained": ConfigFineGrained,
	"balanced":    ConfigBalanced,
	"coarse":      ConfigCoarse,
}

// sizeClassTable holds the computed slot size of every class, ascending.
type sizeClassTable struct {
	config SizeClassConfig
	sizes  []int
}

func (c SizeClassConfig) validate() error {
	switch {
	case c.SmallMin < format.MinCellSize:
		return fmt.Errorf("%w: SmallMin %d < %d", ErrBadConfig, c.SmallMin, format.MinCellSize)
	case c.SmallIncrement <= 0 || c.SmallIncrement%format.CellAlignment != 0:
		return fmt.Errorf("%w: SmallIncrement %d must be a positive multiple of %d",
			ErrBadConfig, c.SmallIncrement, format.CellAlignment)
	case c.SmallMax < c.SmallMin:
		return fmt.Errorf("%w: SmallMax %d < SmallMin %d", ErrBadConfig, c.SmallMax, c.SmallMin)
	case c.MediumMax < c.SmallMax:
		return fmt.Errorf("%w: MediumMax %d < SmallMax %d", ErrBadConfig, c.MediumMax, c.SmallMax)
	case c.MediumMax > format.MaxCellSize:
		return fmt.Errorf("%w: MediumMax %d > %d", ErrBadConfig, c.MediumMax, format.MaxCellSize)
	case c.MediumMax > c.SmallMax && c.GrowthFactor <= 1:
		return fmt.Errorf("%w: GrowthFactor %v must exceed 1", ErrBadConfig, c.GrowthFactor)
	}
	return nil
}

// newSizeClassTable computes class sizes from config.
func newSizeClassTable(config SizeClassConfig) (*sizeClassTable, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	table := &sizeClassTable{
		config: config,
		sizes:  make([]int, 0, 64),
	}

	// Phase 1: small classes (linear increments)
	last := 0
	for size := config.SmallMin; size <= config.SmallMax; size += config.SmallIncrement {
		last = format.Align8(size)
		table.sizes = append(table.sizes, last)
	}

	// Phase 2: medium classes (geometric growth), capped at MediumMax
	limit := config.MediumMax &^ format.CellAlignmentMask
	for last < limit {
		next := format.Align8(int(math.Ceil(float64(last) * config.GrowthFactor)))
		if next <= last {
			next = last + format.CellAlignment // Ensure progress
		}
		next = min(next, limit)
		table.sizes = append(table.sizes, next)
		last = next
	}
	return table, nil
}

// classFor returns the smallest class whose slots hold size bytes.
func (t *sizeClassTable) classFor(size int) (int, bool) {
	lo, hi := 0, len(t.sizes)-1
	if size > t.sizes[hi] {
		return -1, false
	}
	for lo < hi {
		mid := (lo + hi) / 2
		if size <= t.sizes[mid] {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, true
}

// size returns the slot size of class.
func (t *sizeClassTable) size(class int) int { return t.sizes[class] }

// maxSize returns the largest slot size.
func (t *sizeClassTable) maxSize() int { return t.sizes[len(t.sizes)-1] }

// NumClasses returns the number of size classes.
func (t *sizeClassTable) NumClasses() int { return len(t.sizes) }

// String returns the configuration name.
func (t *sizeClassTable) String() string { return t.config.Name }

// ClassSizes returns the slot sizes config would produce.
func ClassSizes(config SizeClassConfig) ([]int, error) {
	t, err := newSizeClassTable(config)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), t.sizes...), nil
}
