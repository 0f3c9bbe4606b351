// Package gc provides the cell heap: a non-moving, stop-the-world
// mark-and-sweep memory manager for a dynamically-typed object runtime.
//
// # Overview
//
// Every heap object is a Cell. Cells live in fixed-size slots inside 32 KiB
// blocks; all slots of one block have the same size, and blocks are grouped
// into size classes. The Heap hands out slots, grows by adding blocks, and
// reclaims unreachable Cells with a full mark-and-sweep cycle.
//
// # Cells
//
// An object type becomes a Cell by embedding Header and implementing
// VisitChildren:
//
//	type Pair struct {
//	    gc.Header
//	    Car, Cdr gc.Cell
//	}
//
//	func (p *Pair) VisitChildren(v gc.Visitor) {
//	    v.Visit(p.Car)
//	    v.Visit(p.Cdr)
//	}
//
// VisitChildren must report every Cell the object references. A reference
// that is not reported is invisible to the collector and its target will be
// reclaimed while still in use. Nothing detects this; it is a silent bug.
//
// Types may also implement Destroyer (teardown run exactly once when the
// Cell is swept) and Describer (debug representation).
//
// # Allocation
//
// The only way to obtain a Cell is through the Heap:
//
//	h, err := gc.New(gc.Options{})
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
//	p, err := gc.Alloc(h, 32, func(s gc.Slot) *Pair { return &Pair{} })
//
// The requested size selects the size class; the slot's raw payload bytes
// (zeroed) are passed to the constructor through Slot.Payload.
//
// # Roots
//
// The collector does not scan the goroutine stack. Mutators register roots
// explicitly:
//
//	s := h.Scope()   // shadow-stack frame
//	defer s.Close()
//	s.Add(p)         // p survives collections while s is open
//
//	h.Pin(globalTable) // always reachable until Unpin
//
// Runtimes that keep raw machine words (for example an interpreter value
// stack) can register a RootScanner; its words are classified
// conservatively: a word counts as a root only if it masks to a block owned
// by this heap and lands exactly on an occupied slot.
//
// # Collection
//
// Collect runs one full cycle: unmark every Cell, gather roots, mark the
// reachable graph with an explicit worklist (cycles are safe), then sweep
// every block, tearing down and freeing each unmarked Cell. Allocation may
// also trigger a cycle, depending on the GrowthPolicy.
//
// # Thread Safety
//
// A Heap is not thread-safe. The mutator and the collector run on the same
// goroutine; callers must synchronize externally if they share a Heap.
package gc
