package workload

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/joshuapare/cellheap/gc"
)

// OpCounts counts executed mutator operations.
type OpCounts struct {
	Alloc  int `json:"alloc"`
	Link   int `json:"link"`
	Store  int `json:"store"`
	Pop    int `json:"pop"`
	Global int `json:"global"`
}

// Report summarises a run.
type Report struct {
	Config      Config          `json:"config"`
	Steps       int             `json:"steps"`
	Ops         OpCounts        `json:"ops"`
	OutOfMemory int             `json:"out_of_memory"`
	PeakBlocks  int             `json:"peak_blocks"`
	MaxPause    time.Duration   `json:"max_pause_ns"`
	Elapsed     time.Duration   `json:"elapsed_ns"`
	Stats       gc.Stats        `json:"stats"`
	Classes     []gc.ClassStats `json:"classes"`
}

// Simulator drives a deterministic synthetic mutator against its own Heap.
// Roots are held two ways: a conservatively scanned word stack, as an
// interpreter operand stack would be, and a few pinned global objects.
type Simulator struct {
	cfg  Config
	heap *gc.Heap
	log  *slog.Logger
	rng  *rand.Rand

	stack       gc.WordStack
	dropScanner func()
	globals     []*Object
	sizeWeights int

	report         Report
	seenCollection int64
}

// New creates a simulator and its heap. A nil logger discards output.
func New(cfg Config, logger *slog.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	opts, err := cfg.HeapOptions()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	opts.Logger = logger
	h, err := gc.New(opts)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		cfg:    cfg,
		heap:   h,
		log:    logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		report: Report{Config: cfg},
	}
	for _, sw := range cfg.Sizes {
		s.sizeWeights += sw.Weight
	}
	s.dropScanner = h.AddRootScanner(&s.stack)

	for range cfg.Globals {
		g, err := gc.Alloc(h, 8*fieldSize, NewObject)
		if err != nil {
			_ = h.Close()
			return nil, fmt.Errorf("workload: allocate global: %w", err)
		}
		if err := h.Pin(g); err != nil {
			_ = h.Close()
			return nil, err
		}
		s.globals = append(s.globals, g)
	}
	return s, nil
}

// Heap returns the simulator's heap.
func (s *Simulator) Heap() *gc.Heap { return s.heap }

// Close releases the heap.
func (s *Simulator) Close() error {
	s.dropScanner()
	return s.heap.Close()
}

// Run executes the configured number of steps and returns the report.
func (s *Simulator) Run() (*Report, error) {
	start := time.Now()
	for i := range s.cfg.Steps {
		if err := s.Step(); err != nil {
			return nil, fmt.Errorf("workload: step %d: %w", i, err)
		}
	}
	s.report.Elapsed = time.Since(start)
	return s.Report(), nil
}

// Report returns the statistics gathered so far.
func (s *Simulator) Report() *Report {
	r := s.report
	r.Stats = s.heap.Stats()
	r.Classes = s.heap.ClassStats()
	return &r
}

// Step performs one weighted random mutator operation.
func (s *Simulator) Step() error {
	s.report.Steps++
	var err error
	m := s.cfg.Mix
	switch n := s.rng.Intn(m.total()); {
	case n < m.Alloc || s.stack.Len() == 0:
		err = s.alloc()
	case n < m.Alloc+m.Link:
		s.link()
	case n < m.Alloc+m.Link+m.Store:
		s.store()
	case n < m.Alloc+m.Link+m.Store+m.Pop:
		s.pop()
	default:
		s.global()
	}
	if err != nil {
		return err
	}

	if every := s.cfg.CollectEvery; every > 0 && s.report.Steps%every == 0 {
		s.heap.Collect()
	}
	return s.afterStep()
}

// afterStep records collections that happened during the step and
// verifies the heap if asked to.
func (s *Simulator) afterStep() error {
	st := s.heap.Stats()
	s.report.PeakBlocks = max(s.report.PeakBlocks, st.Blocks)
	if st.Collections == s.seenCollection {
		return nil
	}
	s.seenCollection = st.Collections
	s.report.MaxPause = max(s.report.MaxPause, st.LastCycle.Pause)
	if s.cfg.Verify {
		if err := s.heap.Verify(); err != nil {
			return fmt.Errorf("after collection %d: %w", st.Collections, err)
		}
	}
	return nil
}

func (s *Simulator) pickSize() int {
	n := s.rng.Intn(s.sizeWeights)
	for _, sw := range s.cfg.Sizes {
		if n < sw.Weight {
			return sw.Size
		}
		n -= sw.Weight
	}
	return s.cfg.Sizes[len(s.cfg.Sizes)-1].Size
}

// alloc allocates an object, links it to the top of the stack and pushes it.
func (s *Simulator) alloc() error {
	s.report.Ops.Alloc++
	if s.stack.Len() >= s.cfg.MaxStack {
		s.stack.Truncate(s.rng.Intn(s.cfg.MaxStack/2 + 1))
	}
	top := s.pickObject()
	obj, err := gc.Alloc(s.heap, s.pickSize(), NewObject)
	if errors.Is(err, gc.ErrNoSpace) {
		// Unwind half the stack, as a runtime would after an out-of-memory
		// exception, and carry on.
		s.report.OutOfMemory++
		s.log.Debug("out of memory", "stack", s.stack.Len())
		s.stack.Truncate(s.stack.Len() / 2)
		return nil
	}
	if err != nil {
		return err
	}
	if top != nil && s.heap.IsLive(top) {
		obj.SetField(0, gc.Ref(top))
	}
	s.stack.PushAddr(obj.Addr())
	return nil
}

// link stores a reference to one stack object in another.
func (s *Simulator) link() {
	a, b := s.pickObject(), s.pickObject()
	if a == nil || b == nil {
		return
	}
	s.report.Ops.Link++
	a.SetField(s.rng.Intn(a.NumFields()), gc.Ref(b))
}

// store overwrites a field with an immediate and pushes a non-reference word.
func (s *Simulator) store() {
	s.report.Ops.Store++
	if o := s.pickObject(); o != nil {
		v := gc.Nil
		if s.rng.Intn(2) == 0 {
			v = gc.Int(s.rng.Int63n(1 << 20))
		}
		o.SetField(s.rng.Intn(o.NumFields()), v)
	}
	if s.stack.Len() < s.cfg.MaxStack {
		s.stack.Push(uint64(gc.Int(s.rng.Int63())))
	}
}

// pop drops a few words from the stack.
func (s *Simulator) pop() {
	s.report.Ops.Pop++
	drop := 1 + s.rng.Intn(8)
	s.stack.Truncate(max(0, s.stack.Len()-drop))
}

// global publishes a stack object through a pinned global, or clears a slot.
func (s *Simulator) global() {
	if len(s.globals) == 0 {
		return
	}
	s.report.Ops.Global++
	g := s.globals[s.rng.Intn(len(s.globals))]
	v := gc.Nil
	if o := s.pickObject(); o != nil && s.rng.Intn(3) > 0 {
		v = gc.Ref(o)
	}
	g.SetField(s.rng.Intn(g.NumFields()), v)
}

// pickObject returns a random object referenced from the stack, or nil.
func (s *Simulator) pickObject() *Object {
	n := s.stack.Len()
	if n == 0 {
		return nil
	}
	for range 8 {
		word := s.stack.At(s.rng.Intn(n))
		if c, ok := s.heap.Resolve(gc.Addr(word)); ok {
			if o, ok := c.(*Object); ok {
				return o
			}
		}
	}
	return nil
}
