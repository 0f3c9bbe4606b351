package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/cellheap/gc"
	"github.com/joshuapare/cellheap/internal/blockmem"
	"github.com/joshuapare/cellheap/internal/format"
)

// withJSON enables --json for the duration of a test.
func withJSON(t *testing.T) {
	t.Helper()
	jsonOut = true
	t.Cleanup(func() { jsonOut = false })
}

func TestClasses(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runClasses(&out, "balanced"))
	s := out.String()
	require.Contains(t, s, "Balanced size classes (25)")
	require.Contains(t, s, "2,046")

	require.Error(t, runClasses(&out, "nosuch"))
}

func TestClasses_JSON(t *testing.T) {
	withJSON(t)
	var out bytes.Buffer
	require.NoError(t, runClasses(&out, "coarse"))

	var rows []ClassRow
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	require.Equal(t, 16, rows[0].CellSize)
	require.Equal(t, 2046, rows[0].SlotsPerBlock)
	for _, r := range rows {
		require.Equal(t, format.BlockDataSize, r.SlotsPerBlock*r.CellSize+r.SlackBytes)
	}
}

func TestLayout(t *testing.T) {
	l, err := blockLayout("balanced", 20)
	require.NoError(t, err)
	require.Equal(t, 32, l.CellSize)
	require.Equal(t, 1, l.Class)
	require.Equal(t, 1023, l.Slots)
	require.Equal(t, "0x0020", l.FirstSlot)
	require.Equal(t, 12, l.InternalWaste)
	require.Equal(t, 16, l.BitmapWords)

	_, err = blockLayout("balanced", 100_000)
	require.ErrorIs(t, err, gc.ErrTooLarge)

	var out bytes.Buffer
	require.NoError(t, runLayout(&out, "balanced", 20))
	require.Contains(t, out.String(), "1 (32-byte cells)")
}

func TestScript(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runScript(&out, nil, "testdata/cycle.heap"))
	require.Contains(t, out.String(), "collect: roots=1 marked=3 swept=2")

	err := runScript(&out, strings.NewReader("alloc a 16\nexpect dead a\n"), "-")
	require.ErrorContains(t, err, "line 2")

	require.Error(t, runScript(&out, nil, "testdata/missing.heap"))
}

func TestWorkloadConfig_Flags(t *testing.T) {
	var f simFlags
	cmd := &cobra.Command{Use: "test"}
	addSimFlags(cmd, &f)
	require.NoError(t, cmd.ParseFlags([]string{
		"--config", "testdata/workload.yaml",
		"--steps", "123",
		"--max-heap", "1MB",
		"--policy", "collect-first",
	}))

	c, err := f.workloadConfig(cmd)
	require.NoError(t, err)
	require.Equal(t, 123, c.Steps)
	require.EqualValues(t, 3, c.Seed, "unset flags keep the file's values")
	require.Equal(t, 32, c.MaxBlocks)
	require.Equal(t, "collect-first", c.Policy)
	require.Equal(t, 2000, c.CollectEvery)

	var g simFlags
	cmd = &cobra.Command{Use: "test"}
	addSimFlags(cmd, &g)
	require.NoError(t, cmd.ParseFlags([]string{"--max-heap", "1KB"}))
	_, err = g.workloadConfig(cmd)
	require.Error(t, err)
}

func TestSimulate(t *testing.T) {
	var f simFlags
	cmd := &cobra.Command{Use: "test"}
	addSimFlags(cmd, &f)
	require.NoError(t, cmd.ParseFlags([]string{"--config", "testdata/workload.yaml"}))
	c, err := f.workloadConfig(cmd)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runSimulate(&out, c, true))
	s := out.String()
	require.Contains(t, s, "seed 3, 20,000 steps, policy budget")
	require.Contains(t, s, "Collector")
	require.Contains(t, s, "STATISTICS")
}

func TestOccupancyBar(t *testing.T) {
	h, err := gc.New(gc.Options{Memory: blockmem.GoHeap{}})
	require.NoError(t, err)
	defer h.Close()

	s := h.Scope()
	defer s.Close()
	for i := range 1023 {
		c, err := gc.Alloc(h, 32, func(gc.Slot) *mapCell { return &mapCell{} })
		require.NoError(t, err)
		if i < 512 {
			s.Add(c)
		}
	}
	h.Collect()

	b := h.Blocks()[0]
	bar := occupancyBar(b, 8)
	require.Equal(t, "####+...", bar)
	require.Len(t, occupancyBar(b, 5000), 1023)

	withJSON(t)
	var out bytes.Buffer
	require.NoError(t, renderMap(&out, h, 8))
	var rows []BlockRow
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	require.Len(t, rows, 1)
	require.Equal(t, 512, rows[0].Used)
}

type mapCell struct {
	gc.Header
}

func (*mapCell) VisitChildren(gc.Visitor) {}

func TestColorDisabledForBuffers(t *testing.T) {
	var out bytes.Buffer
	require.False(t, colorEnabled(&out))
	require.Equal(t, "##", colorBar(newStyles(&out), "##"))
}
