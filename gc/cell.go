package gc

import (
	"fmt"
	"reflect"
)

// Addr is an opaque heap address. Each Heap owns a private address region;
// an Addr identifies one slot of one block of that heap.
type Addr uint64

// String formats the address in hex.
func (a Addr) String() string {
	return fmt.Sprintf("0x%X", uint64(a))
}

// Header is the per-object collector state. Embed it (by value) in every
// Cell type. Only the Heap binds a Header to a slot.
type Header struct {
	addr    Addr
	size    int32
	marked  bool
	retired bool // released once; never bound again
}

func (h *Header) gcHeader() *Header { return h }

// Mark sets the mark bit.
func (h *Header) Mark() { h.marked = true }

// Unmark clears the mark bit.
func (h *Header) Unmark() { h.marked = false }

// IsMarked reports the mark bit.
func (h *Header) IsMarked() bool { return h.marked }

// Addr returns the slot address of the Cell, or 0 if it is not live.
func (h *Header) Addr() Addr { return h.addr }

// SlotSize returns the size of the slot holding the Cell, or 0 if it is not live.
func (h *Header) SlotSize() int { return int(h.size) }

// Cell is the unit of garbage-collected allocation.
//
// Implementations embed Header and report every referenced Cell (and every
// referencing Value) from VisitChildren. Leaf objects implement it as a no-op.
type Cell interface {
	gcHeader() *Header
	VisitChildren(v Visitor)
}

// Visitor receives the children of a Cell during the mark phase. Only the
// collector implements it; object types only call it. Nil Cells and
// non-reference Values are ignored.
type Visitor interface {
	Visit(c Cell)
	VisitValue(v Value)
}

// Destroyer is implemented by Cells that need teardown. Destroy runs exactly
// once, when the Cell is swept, freed, or its Heap is closed.
type Destroyer interface {
	Destroy()
}

// Describer is implemented by Cells that want a custom debug representation.
type Describer interface {
	Describe() string
}

// isNil reports whether c is nil or a typed nil pointer.
func isNil(c Cell) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Value is a tagged word used by object models that store references
// without Go pointers. A set low bit marks an immediate 63-bit integer;
// otherwise the word is an Addr and 0 is nil.
type Value uint64

// Nil is the nil Value.
const Nil Value = 0

// Int boxes n as an immediate Value. The top bit of n is lost.
func Int(n int64) Value {
	return Value(uint64(n)<<1 | 1)
}

// Ref returns a reference Value for c, or Nil if c is nil or not live.
func Ref(c Cell) Value {
	if isNil(c) {
		return Nil
	}
	return Value(c.gcHeader().addr)
}

// IsNil reports whether v is the nil reference.
func (v Value) IsNil() bool { return v == Nil }

// IsInt reports whether v holds an immediate integer.
func (v Value) IsInt() bool { return v&1 == 1 }

// IsRef reports whether v holds a non-nil reference.
func (v Value) IsRef() bool { return v != Nil && !v.IsInt() }

// Int returns the immediate integer held by v.
func (v Value) Int() int64 { return int64(v) >> 1 }

// Addr returns the address held by v, or 0 for integers.
func (v Value) Addr() Addr {
	if v.IsInt() {
		return 0
	}
	return Addr(v)
}

func (v Value) String() string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsInt():
		return fmt.Sprintf("%d", v.Int())
	default:
		return "&" + Addr(v).String()
	}
}
