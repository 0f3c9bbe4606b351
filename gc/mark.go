package gc

// marker is the collector's Visitor. Cells are marked when first seen and
// pushed on an explicit worklist, so deep object graphs never grow the Go
// stack.
type marker struct {
	h      *Heap
	work   []Cell
	marked int
	stale  int
}

// Visit marks c if it is a live, unmarked Cell of this heap.
func (m *marker) Visit(c Cell) {
	if isNil(c) {
		return
	}
	hdr := c.gcHeader()
	if hdr.marked {
		return
	}
	if !m.h.IsLive(c) {
		// A reference to a Cell that was freed or belongs to another heap.
		m.stale++
		return
	}
	hdr.marked = true
	m.marked++
	m.work = append(m.work, c)
}

// VisitValue marks the Cell v refers to, if any.
func (m *marker) VisitValue(v Value) {
	if !v.IsRef() {
		return
	}
	c, ok := m.h.Resolve(v.Addr())
	if !ok {
		m.stale++
		return
	}
	m.Visit(c)
}

// visitWord classifies a raw word conservatively. Words that do not resolve
// are ordinary data and are not counted as stale.
func (m *marker) visitWord(word uint64) bool {
	c, ok := m.h.Resolve(Addr(word))
	if !ok {
		return false
	}
	m.Visit(c)
	return true
}

// drain processes the worklist until it is empty.
func (m *marker) drain() {
	for len(m.work) > 0 {
		n := len(m.work) - 1
		c := m.work[n]
		m.work[n] = nil
		m.work = m.work[:n]
		c.VisitChildren(m)
	}
}
