// Package format holds the fixed geometry of heap blocks and the codec for
// the small header written at the start of every block. Higher-level packages
// never hard-code block sizes or offsets; they read them from here.
package format

// BlockSignature is the four-byte signature at the start of every block.
// Layout:
//
//	0x00  'h' 'b' 'l' 'k'
var BlockSignature = []byte{'h', 'b', 'l', 'k'}

const (
	// BlockSize is the size of every heap block in bytes (32 KiB). Block base
	// addresses are aligned to this value.
	BlockSize = 32 * 1024

	// BlockAlignmentMask is the bitmask of the in-block offset bits (BlockSize - 1).
	BlockAlignmentMask = BlockSize - 1

	// BlockHeaderSize is the number of bytes reserved at the start of each
	// block for its header. Slots begin immediately after it.
	BlockHeaderSize = 0x20

	// BlockDataSize is the usable slot space in a block.
	BlockDataSize = BlockSize - BlockHeaderSize // 32736 bytes

	// CellAlignment is the required alignment of slot sizes.
	CellAlignment = 8

	// CellAlignmentMask is the bitmask used for aligning to 8-byte boundaries (CellAlignment - 1).
	CellAlignmentMask = CellAlignment - 1

	// MinCellSize is the smallest slot size a block will be built for.
	MinCellSize = 16

	// MaxCellSize is the largest slot size a block can hold (one slot per block).
	MaxCellSize = BlockDataSize &^ CellAlignmentMask

	// MaxSlotsPerBlock bounds the used-bitmap of any block.
	MaxSlotsPerBlock = BlockDataSize / MinCellSize
)

// Block header field offsets (little-endian).
//
//	Offset  Size  Field
//	0x00    4     'h' 'b' 'l' 'k'
//	0x04    4     Cell (slot) size in bytes
//	0x08    4     Total slot count
//	0x0C    4     Free slot count
//	0x10    8     Base address of this block
//	0x18    4     Block sequence number within its heap
//	0x1C    4     Reserved
const (
	BlockSignatureOffset = 0x00
	BlockSignatureSize   = 4
	BlockCellSizeOffset  = 0x04
	BlockTotalOffset     = 0x08
	BlockFreeOffset      = 0x0C
	BlockBaseOffset      = 0x10
	BlockSeqOffset       = 0x18
)
