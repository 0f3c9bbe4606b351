package format

import (
	"bytes"
	"fmt"
)

// BlockHeader is the decoded form of the 0x20-byte header at the start of
// every block.
type BlockHeader struct {
	CellSize uint32
	Total    uint32
	Free     uint32
	Base     uint64
	Seq      uint32
}

// PutBlockHeader encodes h into the first BlockHeaderSize bytes of b.
func PutBlockHeader(b []byte, h BlockHeader) error {
	if len(b) < BlockHeaderSize {
		return fmt.Errorf("block header: %w", ErrTruncated)
	}
	copy(b[BlockSignatureOffset:BlockSignatureOffset+BlockSignatureSize], BlockSignature)
	PutU32(b, BlockCellSizeOffset, h.CellSize)
	PutU32(b, BlockTotalOffset, h.Total)
	PutU32(b, BlockFreeOffset, h.Free)
	PutU64(b, BlockBaseOffset, h.Base)
	PutU32(b, BlockSeqOffset, h.Seq)
	return nil
}

// DecodeBlockHeader validates and decodes the header at the start of b.
func DecodeBlockHeader(b []byte) (BlockHeader, error) {
	if len(b) < BlockHeaderSize {
		return BlockHeader{}, fmt.Errorf("block header: %w", ErrTruncated)
	}
	if !bytes.Equal(b[BlockSignatureOffset:BlockSignatureOffset+BlockSignatureSize], BlockSignature) {
		return BlockHeader{}, fmt.Errorf("block header: %w", ErrSignatureMismatch)
	}
	h := BlockHeader{
		CellSize: ReadU32(b, BlockCellSizeOffset),
		Total:    ReadU32(b, BlockTotalOffset),
		Free:     ReadU32(b, BlockFreeOffset),
		Base:     ReadU64(b, BlockBaseOffset),
		Seq:      ReadU32(b, BlockSeqOffset),
	}
	if h.CellSize < MinCellSize || h.CellSize > MaxCellSize || h.CellSize%CellAlignment != 0 {
		return BlockHeader{}, fmt.Errorf("block header: cell size %d: %w", h.CellSize, ErrGeometry)
	}
	if int(h.Total) != SlotCount(int(h.CellSize)) {
		return BlockHeader{}, fmt.Errorf(
			"block header: total %d for cell size %d: %w",
			h.Total,
			h.CellSize,
			ErrGeometry,
		)
	}
	if h.Free > h.Total {
		return BlockHeader{}, fmt.Errorf("block header: free %d > total %d: %w", h.Free, h.Total, ErrGeometry)
	}
	if !IsBlockAligned(h.Base) {
		return BlockHeader{}, fmt.Errorf("block header: base 0x%X not 32KiB-aligned: %w", h.Base, ErrGeometry)
	}
	return h, nil
}
