package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScope_Nesting(t *testing.T) {
	h := newTestHeap(t, Options{})

	outer := h.Scope()
	a := newNode(t, h, 16, "a", nil)
	outer.Add(a)

	inner := h.Scope()
	b := newNode(t, h, 16, "b", nil)
	inner.Add(b)
	inner.AddValue(Int(3)) // immediates are not roots
	require.Equal(t, 2, h.Depth())
	require.Equal(t, 1, inner.Len())

	require.Panics(t, func() { outer.Close() }, "outer frame closed before inner")
	require.Panics(t, func() { outer.Add(a) })

	h.Collect()
	require.True(t, h.IsLive(a))
	require.True(t, h.IsLive(b))

	inner.Close()
	inner.Close() // no-op
	require.Zero(t, inner.Len())
	h.Collect()
	require.True(t, h.IsLive(a))
	require.False(t, h.IsLive(b))

	outer.Close()
	require.Zero(t, h.Depth())
	h.Collect()
	require.False(t, h.IsLive(a))
}

func TestScope_AddNilIgnored(t *testing.T) {
	h := newTestHeap(t, Options{})
	s := h.Scope()
	defer s.Close()
	s.Add(nil)
	s.Add((*node)(nil))
	require.Zero(t, s.Len())
	require.Zero(t, h.Collect().Roots)
}

func TestPin_Counted(t *testing.T) {
	h := newTestHeap(t, Options{})
	g := newNode(t, h, 16, "global", nil)

	require.NoError(t, h.Pin(g))
	require.NoError(t, h.Pin(g))
	require.True(t, h.IsPinned(g))

	require.True(t, h.Unpin(g))
	h.Collect()
	require.True(t, h.IsLive(g), "still pinned once")

	require.True(t, h.Unpin(g))
	require.False(t, h.IsPinned(g))
	require.False(t, h.Unpin(g))
	h.Collect()
	require.False(t, h.IsLive(g))

	require.ErrorIs(t, h.Pin(g), ErrNotLive)
	require.ErrorIs(t, h.Pin(nil), ErrNilCell)
}

func TestRootScanner_Conservative(t *testing.T) {
	h := newTestHeap(t, Options{})
	var stack WordStack
	remove := h.AddRootScanner(&stack)

	kept := newNode(t, h, 48, "kept", nil)
	interior := newNode(t, h, 48, "interior", nil)
	dropped := newNode(t, h, 48, "dropped", nil)
	b, _ := h.ContainingBlock(kept.Addr())

	stack.PushAddr(kept.Addr())
	stack.PushAddr(interior.Addr() + 8) // interior pointers do not count
	stack.Push(42)
	stack.Push(uint64(Int(99)))
	stack.PushAddr(b.Base())                     // block header
	stack.PushAddr(b.SlotAt(10))                 // free slot
	stack.PushAddr(kept.Addr() + 1<<regionShift) // another region
	require.Equal(t, 7, stack.Len())

	cs := h.Collect()
	require.Equal(t, 7, cs.WordsScanned)
	require.Equal(t, 1, cs.ConservativeRoots)
	require.True(t, h.IsLive(kept))
	require.False(t, h.IsLive(interior))
	require.False(t, h.IsLive(dropped))

	w, ok := stack.Pop()
	require.True(t, ok)
	require.Equal(t, uint64(kept.Addr()+1<<regionShift), w)
	stack.Truncate(0)
	_, ok = stack.Pop()
	require.False(t, ok)

	stack.PushAddr(kept.Addr())
	remove()
	h.Collect()
	require.False(t, h.IsLive(kept))
}

func TestRootScannerFunc(t *testing.T) {
	h := newTestHeap(t, Options{})
	n := newNode(t, h, 16, "n", nil)
	addr := uint64(n.Addr())
	h.AddRootScanner(RootScannerFunc(func(yield func(uint64)) {
		yield(addr)
		yield(addr + 3)
	}))

	cs := h.Collect()
	require.Equal(t, 2, cs.WordsScanned)
	require.True(t, h.IsLive(n))
}

func TestValue_Tagging(t *testing.T) {
	require.True(t, Nil.IsNil())
	require.False(t, Nil.IsRef())
	require.False(t, Nil.IsInt())

	for _, n := range []int64{0, 1, -1, 1 << 40, -(1 << 40)} {
		v := Int(n)
		require.True(t, v.IsInt())
		require.False(t, v.IsRef())
		require.Equal(t, n, v.Int())
		require.Equal(t, Addr(0), v.Addr())
	}

	h := newTestHeap(t, Options{})
	n := newNode(t, h, 16, "n", nil)
	v := Ref(n)
	require.True(t, v.IsRef())
	require.Equal(t, n.Addr(), v.Addr())
	require.Equal(t, "&"+n.Addr().String(), v.String())
	require.Equal(t, "-5", Int(-5).String())
	require.Equal(t, "nil", Nil.String())
	require.Equal(t, Nil, Ref(nil))
}
