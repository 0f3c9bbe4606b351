package workload

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/cellheap/gc"
)

func runConfig(t *testing.T, c Config) *Report {
	t.Helper()
	sim, err := New(c, nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, sim.Close()) })
	r, err := sim.Run()
	require.NoError(t, err)
	return r
}

func TestSimulator_Runs(t *testing.T) {
	r := runConfig(t, Config{Steps: 20_000, Verify: true, CollectEvery: 500})

	require.Equal(t, 20_000, r.Steps)
	require.Positive(t, r.Ops.Alloc)
	require.Positive(t, r.Ops.Link)
	require.GreaterOrEqual(t, r.Stats.Collections, int64(40))
	require.Positive(t, r.Stats.CellsSwept)
	require.Positive(t, r.Stats.ConservativeRoots)
	require.Positive(t, r.PeakBlocks)
	require.Zero(t, r.OutOfMemory)
	require.Len(t, r.Classes, len(mustSizes(t, gc.ConfigBalanced)))
}

func TestSimulator_Deterministic(t *testing.T) {
	c := Config{Seed: 99, Steps: 5000, CollectEvery: 250}
	a := runConfig(t, c)
	b := runConfig(t, c)

	require.Equal(t, a.Ops, b.Ops)
	require.Equal(t, a.Stats.AllocCalls, b.Stats.AllocCalls)
	require.Equal(t, a.Stats.CellsSwept, b.Stats.CellsSwept)
	require.Equal(t, a.Stats.LiveCells, b.Stats.LiveCells)
	require.Equal(t, a.Stats.Blocks, b.Stats.Blocks)

	other := runConfig(t, Config{Seed: 100, Steps: 5000, CollectEvery: 250})
	require.NotEqual(t, a.Ops, other.Ops)
}

func TestSimulator_Policies(t *testing.T) {
	for _, p := range []string{"grow", "collect-first", "budget"} {
		t.Run(p, func(t *testing.T) {
			r := runConfig(t, Config{Steps: 10_000, Policy: p, Verify: true, ReleaseEmptyBlocks: true})
			require.Equal(t, 10_000, r.Steps)
			if p != "grow" {
				require.Positive(t, r.Stats.Collections)
			}
		})
	}
}

func TestSimulator_MaxBlocksRecovers(t *testing.T) {
	r := runConfig(t, Config{
		Steps:     20_000,
		MaxBlocks: 3,
		MaxStack:  8192,
		Mix:       Mix{Alloc: 1},
		Sizes:     []SizeWeight{{Size: 2048, Weight: 1}},
		Verify:    true,
	})
	require.Positive(t, r.OutOfMemory)
	require.LessOrEqual(t, r.PeakBlocks, 3)
	require.LessOrEqual(t, r.Stats.Blocks, 3)
}

func TestSimulator_GlobalsArePinned(t *testing.T) {
	sim, err := New(Config{Globals: 3}, nil)
	require.NoError(t, err)
	defer sim.Close()

	sim.Heap().Collect()
	require.Equal(t, 3, sim.Heap().Stats().LiveCells)
	for _, g := range sim.globals {
		require.True(t, sim.Heap().IsPinned(g))
	}
}

func TestObject_Fields(t *testing.T) {
	h, err := gc.New(gc.Options{})
	require.NoError(t, err)
	defer h.Close()

	a, err := gc.Alloc(h, 40, NewObject)
	require.NoError(t, err)
	b, err := gc.Alloc(h, 16, NewObject)
	require.NoError(t, err)

	require.Equal(t, 6, a.NumFields(), "40 bytes round up to a 48-byte slot")
	for i := range a.NumFields() {
		require.True(t, a.Field(i).IsNil())
	}
	a.SetField(0, gc.Ref(b))
	a.SetField(5, gc.Int(-3))
	require.Equal(t, b.Addr(), a.Field(0).Addr())
	require.EqualValues(t, -3, a.Field(5).Int())
	require.Contains(t, a.Describe(), "&"+b.Addr().String())
	require.Contains(t, a.Describe(), "+2")

	require.NoError(t, h.Pin(a))
	cs := h.Collect()
	require.Equal(t, 2, cs.CellsMarked)
	require.True(t, h.IsLive(b))
}

func mustSizes(t *testing.T, c gc.SizeClassConfig) []int {
	t.Helper()
	sizes, err := gc.ClassSizes(c)
	require.NoError(t, err)
	return sizes
}
