package gc

import (
	"log/slog"
	"time"
)

// Collect runs a full mark-and-sweep cycle and returns its statistics.
// Calling Collect from inside a collection (for example from a Destroy hook
// or VisitChildren) panics.
func (h *Heap) Collect() CycleStats {
	if h.closed {
		return CycleStats{}
	}
	return h.collect("explicit")
}

// collect is one synchronous cycle: unmark, gather roots, mark, sweep.
func (h *Heap) collect(reason string) CycleStats {
	if h.phase != phaseIdle {
		panic("gc: collection started during collection")
	}
	start := time.Now()
	cs := CycleStats{Reason: reason, BlocksBefore: h.nblocks}

	h.phase = phaseMarking
	defer func() { h.phase = phaseIdle }()

	for _, b := range h.Blocks() {
		b.UnmarkAll()
	}

	m := &marker{h: h}
	h.markRoots(m, &cs)
	m.drain()
	cs.CellsMarked = m.marked
	cs.StaleRefs = m.stale

	h.phase = phaseSweeping
	h.sweep(&cs)

	cs.BlocksAfter = h.nblocks
	cs.Pause = time.Since(start)
	h.grownSinceCollect = 0

	h.stats.Collections++
	h.stats.CellsMarked += int64(cs.CellsMarked)
	h.stats.CellsSwept += int64(cs.CellsSwept)
	h.stats.BytesSwept += cs.BytesSwept
	h.stats.WordsScanned += int64(cs.WordsScanned)
	h.stats.ConservativeRoots += int64(cs.ConservativeRoots)
	h.stats.StaleRefs += int64(cs.StaleRefs)
	h.stats.TotalPause += cs.Pause
	h.stats.LastCycle = cs

	h.log.Debug("collect",
		slog.String("reason", reason),
		slog.Int("roots", cs.Roots),
		slog.Int("marked", cs.CellsMarked),
		slog.Int("swept", cs.CellsSwept),
		slog.Int64("bytes_swept", cs.BytesSwept),
		slog.Int("blocks", cs.BlocksAfter),
		slog.Duration("pause", cs.Pause),
	)
	return cs
}

// markRoots marks everything reachable directly from the root set: shadow
// stack Cells and Values, pinned globals, and conservative scanner words.
func (h *Heap) markRoots(m *marker, cs *CycleStats) {
	r := &h.roots
	for _, c := range r.cells {
		m.Visit(c)
		cs.Roots++
	}
	for _, v := range r.values {
		m.VisitValue(v)
		cs.Roots++
	}
	for c := range r.pinned {
		m.Visit(c)
		cs.Roots++
	}
	for _, e := range h.scanners {
		e.s.ScanRoots(func(word uint64) {
			cs.WordsScanned++
			if m.visitWord(word) {
				cs.ConservativeRoots++
				cs.Roots++
			}
		})
	}
}
