package format

// Alignment utilities for heap block geometry.

// Align8 returns n aligned up to the next 8-byte boundary.
// Used for slot sizes, which must be 8-byte aligned.
//
// Example:
//
//	Align8(1)  = 8
//	Align8(8)  = 8
//	Align8(9)  = 16
//	Align8(16) = 16
func Align8(n int) int {
	return (n + CellAlignmentMask) & ^CellAlignmentMask
}

// AlignBlock returns n aligned up to the next 32KB block boundary.
//
// Example:
//
//	AlignBlock(1)     = 32768
//	AlignBlock(32768) = 32768
//	AlignBlock(32769) = 65536
func AlignBlock(n uint64) uint64 {
	return (n + BlockAlignmentMask) &^ BlockAlignmentMask
}

// BlockBase masks off the in-block offset bits of addr. The result is only a
// candidate: nothing guarantees a block actually lives there.
func BlockBase(addr uint64) uint64 {
	return addr &^ BlockAlignmentMask
}

// IsBlockAligned reports whether addr is a possible block base.
func IsBlockAligned(addr uint64) bool {
	return addr&BlockAlignmentMask == 0
}

// SlotCount returns how many slots of cellSize fit in one block.
//
//	SlotCount(16)   = 2046
//	SlotCount(4096) = 7
func SlotCount(cellSize int) int {
	if cellSize <= 0 {
		return 0
	}
	return BlockDataSize / cellSize
}
