package gc

// rootSet is the explicit root registry: a shadow stack of frames holding
// Cells and Values, plus reference-counted pinned globals.
type rootSet struct {
	cells  []Cell
	values []Value
	frames []*Scope
	pinned map[Cell]int
}

func newRootSet() rootSet {
	return rootSet{pinned: make(map[Cell]int)}
}

func (r *rootSet) isPinned(c Cell) bool {
	return r.pinned[c] > 0
}

// Scope is one shadow-stack frame. Everything added to it stays reachable
// until Close. Scopes nest strictly: only the innermost open scope may be
// added to or closed.
type Scope struct {
	h      *Heap
	cells  int // stack heights when the frame was opened
	values int
	closed bool
}

// Scope opens a new shadow-stack frame.
func (h *Heap) Scope() *Scope {
	s := &Scope{h: h, cells: len(h.roots.cells), values: len(h.roots.values)}
	h.roots.frames = append(h.roots.frames, s)
	return s
}

func (s *Scope) checkInnermost(op string) {
	if s.closed {
		panic("gc: " + op + " on closed scope")
	}
	frames := s.h.roots.frames
	if len(frames) == 0 || frames[len(frames)-1] != s {
		panic("gc: " + op + " on a scope that is not innermost")
	}
}

// Add roots c for the lifetime of the scope and returns it. Nil is ignored.
func (s *Scope) Add(c Cell) Cell {
	s.checkInnermost("Add")
	if !isNil(c) {
		s.h.roots.cells = append(s.h.roots.cells, c)
	}
	return c
}

// AddValue roots a tagged Value for the lifetime of the scope.
func (s *Scope) AddValue(v Value) {
	s.checkInnermost("AddValue")
	if v.IsRef() {
		s.h.roots.values = append(s.h.roots.values, v)
	}
}

// Len returns the number of roots held by the scope.
func (s *Scope) Len() int {
	if s.closed {
		return 0
	}
	return len(s.h.roots.cells) - s.cells + len(s.h.roots.values) - s.values
}

// Close pops the frame. Closing twice, or after the heap was closed, is a
// no-op; closing a frame that has open inner frames panics.
func (s *Scope) Close() {
	if s.closed || s.h.closed {
		s.closed = true
		return
	}
	s.checkInnermost("Close")
	r := &s.h.roots
	clear(r.cells[s.cells:])
	r.cells = r.cells[:s.cells]
	r.values = r.values[:s.values]
	r.frames = r.frames[:len(r.frames)-1]
	s.closed = true
}

// Depth returns the number of open scopes.
func (h *Heap) Depth() int { return len(h.roots.frames) }

// Pin makes c a global root until a matching Unpin. Pins nest.
func (h *Heap) Pin(c Cell) error {
	if isNil(c) {
		return ErrNilCell
	}
	if !h.IsLive(c) {
		return ErrNotLive
	}
	h.roots.pinned[c]++
	return nil
}

// Unpin drops one pin of c. It reports whether c was pinned.
func (h *Heap) Unpin(c Cell) bool {
	n, ok := h.roots.pinned[c]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(h.roots.pinned, c)
	} else {
		h.roots.pinned[c] = n - 1
	}
	return true
}

// IsPinned reports whether c is pinned.
func (h *Heap) IsPinned(c Cell) bool {
	return h.roots.isPinned(c)
}

// RootScanner supplies raw words to be classified conservatively at the
// start of every collection. Words that do not resolve to a live Cell are
// ignored, so a scanner may hand over integers, floats or garbage freely.
type RootScanner interface {
	ScanRoots(yield func(word uint64))
}

// RootScannerFunc adapts a function to RootScanner.
type RootScannerFunc func(yield func(word uint64))

// ScanRoots calls f.
func (f RootScannerFunc) ScanRoots(yield func(word uint64)) { f(yield) }

type scannerEntry struct {
	s RootScanner
}

// AddRootScanner registers s and returns a function that unregisters it.
func (h *Heap) AddRootScanner(s RootScanner) (remove func()) {
	e := &scannerEntry{s: s}
	h.scanners = append(h.scanners, e)
	return func() {
		for i, x := range h.scanners {
			if x == e {
				h.scanners = append(h.scanners[:i], h.scanners[i+1:]...)
				return
			}
		}
	}
}

// WordStack is a stack of raw machine words, the way an interpreter keeps
// its operand stack. Registered with AddRootScanner, its contents are
// scanned conservatively.
type WordStack struct {
	words []uint64
}

// Push appends a word.
func (w *WordStack) Push(word uint64) { w.words = append(w.words, word) }

// PushAddr appends an address word.
func (w *WordStack) PushAddr(a Addr) { w.Push(uint64(a)) }

// Pop removes and returns the top word.
func (w *WordStack) Pop() (uint64, bool) {
	n := len(w.words)
	if n == 0 {
		return 0, false
	}
	word := w.words[n-1]
	w.words = w.words[:n-1]
	return word, true
}

// Len returns the number of words.
func (w *WordStack) Len() int { return len(w.words) }

// At returns the word at height i.
func (w *WordStack) At(i int) uint64 { return w.words[i] }

// Truncate drops everything above height n.
func (w *WordStack) Truncate(n int) {
	if n < len(w.words) {
		w.words = w.words[:n]
	}
}

// ScanRoots yields every word, bottom first.
func (w *WordStack) ScanRoots(yield func(word uint64)) {
	for _, word := range w.words {
		yield(word)
	}
}
