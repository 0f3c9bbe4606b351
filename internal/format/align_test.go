package format

import "testing"

func TestAlign8(t *testing.T) {
	cases := map[int]int{1: 8, 8: 8, 9: 16, 16: 16, 17: 24}
	for in, want := range cases {
		if got := Align8(in); got != want {
			t.Errorf("Align8(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestAlignBlock(t *testing.T) {
	if got := AlignBlock(1); got != BlockSize {
		t.Fatalf("AlignBlock(1) = %d", got)
	}
	if got := AlignBlock(BlockSize); got != BlockSize {
		t.Fatalf("AlignBlock(BlockSize) = %d", got)
	}
	if got := AlignBlock(BlockSize + 1); got != 2*BlockSize {
		t.Fatalf("AlignBlock(BlockSize+1) = %d", got)
	}
}

func TestBlockBase(t *testing.T) {
	base := uint64(7 * BlockSize)
	for _, off := range []uint64{0, 1, BlockHeaderSize, BlockSize - 1} {
		if got := BlockBase(base + off); got != base {
			t.Errorf("BlockBase(base+%d) = 0x%X, want 0x%X", off, got, base)
		}
	}
	if BlockBase(base+BlockSize) == base {
		t.Fatalf("next block masked to previous base")
	}
	if !IsBlockAligned(base) || IsBlockAligned(base+8) {
		t.Fatalf("IsBlockAligned mismatch")
	}
}

func TestSlotCount(t *testing.T) {
	if got := SlotCount(MinCellSize); got != (BlockSize-BlockHeaderSize)/16 {
		t.Fatalf("SlotCount(16) = %d", got)
	}
	if got := SlotCount(MinCellSize); got != MaxSlotsPerBlock {
		t.Fatalf("MaxSlotsPerBlock = %d, SlotCount(16) = %d", MaxSlotsPerBlock, got)
	}
	if got := SlotCount(MaxCellSize); got != 1 {
		t.Fatalf("SlotCount(MaxCellSize) = %d", got)
	}
	if SlotCount(0) != 0 || SlotCount(-8) != 0 {
		t.Fatalf("non-positive sizes must yield zero slots")
	}
}
