package gc

import "errors"

var (
	// ErrBadSize indicates a non-positive allocation size.
	ErrBadSize = errors.New("gc: allocation size must be positive")

	// ErrTooLarge indicates no size class can hold the requested size.
	ErrTooLarge = errors.New("gc: allocation larger than largest size class")

	// ErrNoSpace indicates the heap reached MaxBlocks and a collection freed nothing usable.
	ErrNoSpace = errors.New("gc: heap exhausted")

	// ErrGrowFail indicates block memory could not be obtained.
	ErrGrowFail = errors.New("gc: grow failed")

	// ErrBadSlot indicates an address that is not exactly a slot of the block.
	ErrBadSlot = errors.New("gc: address is not a slot of this block")

	// ErrSlotFree indicates an attempt to release a slot that is already free.
	ErrSlotFree = errors.New("gc: slot already free")

	// ErrNilCell indicates a nil Cell (or a constructor that produced none).
	ErrNilCell = errors.New("gc: nil cell")

	// ErrBoundCell indicates a constructor returned a Cell that lives in a slot
	// or was released earlier.
	ErrBoundCell = errors.New("gc: cell already bound to a slot")

	// ErrNotLive indicates a Cell that is not currently live in this heap.
	ErrNotLive = errors.New("gc: cell not live in this heap")

	// ErrPinned indicates an attempt to free a pinned Cell.
	ErrPinned = errors.New("gc: cell is pinned")

	// ErrCollecting indicates heap mutation from inside a collection (e.g. from Destroy).
	ErrCollecting = errors.New("gc: heap is collecting")

	// ErrClosed indicates use of a closed heap.
	ErrClosed = errors.New("gc: heap closed")

	// ErrBadConfig indicates an invalid size class configuration.
	ErrBadConfig = errors.New("gc: invalid size class config")

	// ErrBadPolicy indicates an unknown growth policy name.
	ErrBadPolicy = errors.New("gc: unknown growth policy")
)
