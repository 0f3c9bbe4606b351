package gc

import (
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CycleStats describes one collection.
type CycleStats struct {
	Reason            string // "explicit", "exhausted", "budget" or "max-blocks"
	Roots             int
	WordsScanned      int
	ConservativeRoots int
	CellsMarked       int
	CellsSwept        int
	BytesSwept        int64
	StaleRefs         int
	BlocksBefore      int
	BlocksAfter       int
	BlocksReleased    int
	Pause             time.Duration
}

// Stats accumulates counters over the lifetime of a Heap.
type Stats struct {
	AllocCalls     int64
	AllocFastPath  int64 // served by a block that already had room
	AllocSlowPath  int64 // needed a collection or a new block
	FreeCalls      int64
	GrowCalls      int64
	GrowBytes      int64
	BytesAllocated int64
	BytesFreed     int64 // explicit Free only
	BlocksReleased int64

	Collections       int64
	CellsMarked       int64
	CellsSwept        int64
	BytesSwept        int64
	WordsScanned      int64
	ConservativeRoots int64
	StaleRefs         int64
	TotalPause        time.Duration
	LastCycle         CycleStats

	// Snapshot values, filled in by Heap.Stats.
	Blocks    int
	LiveCells int
	LiveBytes int64
	Capacity  int64 // slot bytes across all blocks
}

// ClassStats describes one size class.
type ClassStats struct {
	Class     int
	CellSize  int
	Blocks    int
	Slots     int
	LiveCells int
}

// Utilization returns the fraction of slots in use.
func (c ClassStats) Utilization() float64 {
	if c.Slots == 0 {
		return 0
	}
	return float64(c.LiveCells) / float64(c.Slots)
}

// Stats returns the heap's counters together with a live snapshot.
func (h *Heap) Stats() Stats {
	s := h.stats
	s.Blocks = h.nblocks
	for _, b := range h.Blocks() {
		used := b.UsedCount()
		s.LiveCells += used
		s.LiveBytes += int64(used * b.cellSize)
		s.Capacity += int64(b.total * b.cellSize)
	}
	return s
}

// ClassStats returns occupancy per size class, including empty classes.
func (h *Heap) ClassStats() []ClassStats {
	out := make([]ClassStats, len(h.buckets))
	for class := range h.buckets {
		cs := ClassStats{Class: class, CellSize: h.classes.size(class)}
		for _, b := range h.buckets[class].blocks {
			cs.Blocks++
			cs.Slots += b.total
			cs.LiveCells += b.UsedCount()
		}
		out[class] = cs
	}
	return out
}

// PrintStats writes a human readable summary of Stats to w.
func (h *Heap) PrintStats(w io.Writer) {
	s := h.Stats()
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "\n=== HEAP %d STATISTICS ===\n", h.id)
	p.Fprintf(w, "Blocks:             %d (%d grown, %d released)\n", s.Blocks, s.GrowCalls, s.BlocksReleased)
	p.Fprintf(w, "Alloc calls:        %d (fast: %d, slow: %d)\n", s.AllocCalls, s.AllocFastPath, s.AllocSlowPath)
	p.Fprintf(w, "Free calls:         %d\n", s.FreeCalls)
	p.Fprintf(w, "Bytes allocated:    %d\n", s.BytesAllocated)
	p.Fprintf(w, "Live cells:         %d (%d bytes of %d)\n", s.LiveCells, s.LiveBytes, s.Capacity)
	p.Fprintf(w, "Collections:        %d (total pause %v)\n", s.Collections, s.TotalPause)
	p.Fprintf(w, "Cells marked:       %d\n", s.CellsMarked)
	p.Fprintf(w, "Cells swept:        %d (%d bytes)\n", s.CellsSwept, s.BytesSwept)
	p.Fprintf(w, "Words scanned:      %d (%d resolved)\n", s.WordsScanned, s.ConservativeRoots)
	if s.StaleRefs > 0 {
		p.Fprintf(w, "Stale references:   %d\n", s.StaleRefs)
	}

	p.Fprintf(w, "\nPer-class occupancy:\n")
	for _, c := range h.ClassStats() {
		if c.Blocks == 0 {
			continue
		}
		p.Fprintf(w, "  class %2d  %6d B  %3d blocks  %8d / %8d slots  %5.1f%%\n",
			c.Class, c.CellSize, c.Blocks, c.LiveCells, c.Slots, c.Utilization()*100)
	}
	p.Fprintf(w, "===========================\n\n")
}
