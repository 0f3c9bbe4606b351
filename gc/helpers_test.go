package gc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/cellheap/internal/blockmem"
)

// node is a test Cell with an arbitrary number of children.
type node struct {
	Header
	name     string
	kids     []Cell
	destroys *int
}

func (n *node) VisitChildren(v Visitor) {
	for _, k := range n.kids {
		v.Visit(k)
	}
}

func (n *node) Destroy() {
	if n.destroys != nil {
		*n.destroys++
	}
}

func (n *node) Describe() string { return "node(" + n.name + ")" }

// box holds tagged Values instead of Cells.
type box struct {
	Header
	vals []Value
}

func (b *box) VisitChildren(v Visitor) {
	for _, x := range b.vals {
		v.VisitValue(x)
	}
}

// leaf has no children and no hooks.
type leaf struct {
	Header
}

func (*leaf) VisitChildren(Visitor) {}

// teardownLog records Destroy calls per Cell.
type teardownLog map[*tracked]int

type tracked struct {
	Header
	next *tracked
	log  teardownLog
}

func (c *tracked) VisitChildren(v Visitor) {
	if c.next != nil {
		v.Visit(c.next)
	}
}

func (c *tracked) Destroy() { c.log[c]++ }

// failingMemory fails every Map call after the first ok calls.
type failingMemory struct {
	ok    int
	calls int
}

var errNoMemory = errors.New("out of test memory")

func (m *failingMemory) Map(size int) ([]byte, func() error, error) {
	m.calls++
	if m.calls > m.ok {
		return nil, nil, errNoMemory
	}
	return blockmem.GoHeap{}.Map(size)
}

// newTestHeap creates a heap backed by Go memory and closes it at test end.
func newTestHeap(t *testing.T, opts Options) *Heap {
	t.Helper()
	if opts.Memory == nil {
		opts.Memory = blockmem.GoHeap{}
	}
	h, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// newNode allocates a node of size bytes.
func newNode(t *testing.T, h *Heap, size int, name string, destroys *int, kids ...Cell) *node {
	t.Helper()
	n, err := Alloc(h, size, func(Slot) *node {
		return &node{name: name, kids: kids, destroys: destroys}
	})
	require.NoError(t, err)
	return n
}

// newLeaves allocates n leaves of size bytes.
func newLeaves(t *testing.T, h *Heap, size, n int) []*leaf {
	t.Helper()
	out := make([]*leaf, n)
	for i := range out {
		l, err := Alloc(h, size, func(Slot) *leaf { return &leaf{} })
		require.NoError(t, err, "leaf %d", i)
		out[i] = l
	}
	return out
}

// requireVerified fails the test if the heap bookkeeping is inconsistent.
func requireVerified(t *testing.T, h *Heap) {
	t.Helper()
	require.NoError(t, h.Verify())
}
