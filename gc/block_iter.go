package gc

import (
	"io"
	"iter"
)

// SlotIterator walks the occupied slots of a block in ascending index order.
// Releasing the slot most recently returned does not disturb the walk.
type SlotIterator struct {
	b    *Block
	next int
	done bool
}

// Slots returns an iterator positioned before the first occupied slot.
func (b *Block) Slots() *SlotIterator {
	return &SlotIterator{b: b}
}

// Next returns the next occupied slot index and its occupant, or io.EOF.
// The occupant is nil only for a slot whose constructor is still running.
func (it *SlotIterator) Next() (int, Cell, error) {
	if it.done {
		return -1, nil, io.EOF
	}
	i := it.b.used.nextSet(it.next, it.b.total)
	if i >= it.b.total {
		it.done = true
		return -1, nil, io.EOF
	}
	it.next = i + 1
	return i, it.b.cells[i], nil
}

// Reset rewinds the iterator to the first slot.
func (it *SlotIterator) Reset() {
	it.next, it.done = 0, false
}

// All yields every occupied slot index and its occupant.
func (b *Block) All() iter.Seq2[int, Cell] {
	return func(yield func(int, Cell) bool) {
		for i := b.used.nextSet(0, b.total); i < b.total; i = b.used.nextSet(i+1, b.total) {
			if !yield(i, b.cells[i]) {
				return
			}
		}
	}
}
