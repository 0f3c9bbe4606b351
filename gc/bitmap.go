package gc

import "math/bits"

// bitmap is the used-slot map of a block: bit i set means slot i holds a
// constructed Cell.
type bitmap []uint64

func newBitmap(n int) bitmap {
	return make(bitmap, (n+63)/64)
}

func (b bitmap) set(i int) { b[i>>6] |= 1 << (uint(i) & 63) }

func (b bitmap) clear(i int) { b[i>>6] &^= 1 << (uint(i) & 63) }

func (b bitmap) test(i int) bool { return b[i>>6]&(1<<(uint(i)&63)) != 0 }

// firstClear returns the lowest clear bit below n, or n if all are set.
func (b bitmap) firstClear(n int) int {
	for w, word := range b {
		if word == ^uint64(0) {
			continue
		}
		i := w<<6 + bits.TrailingZeros64(^word)
		if i < n {
			return i
		}
		return n
	}
	return n
}

// nextSet returns the lowest set bit in [from, n), or n if there is none.
func (b bitmap) nextSet(from, n int) int {
	if from >= n {
		return n
	}
	w := from >> 6
	word := b[w] & (^uint64(0) << (uint(from) & 63))
	for {
		if word != 0 {
			i := w<<6 + bits.TrailingZeros64(word)
			if i < n {
				return i
			}
			return n
		}
		w++
		if w >= len(b) {
			return n
		}
		word = b[w]
	}
}

// count returns the number of set bits.
func (b bitmap) count() int {
	n := 0
	for _, word := range b {
		n += bits.OnesCount64(word)
	}
	return n
}
