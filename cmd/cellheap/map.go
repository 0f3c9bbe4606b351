package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/joshuapare/cellheap/gc"
	"github.com/joshuapare/cellheap/internal/workload"
)

var (
	mapFlags simFlags
	mapWidth int
)

func init() {
	cmd := newMapCmd()
	addSimFlags(cmd, &mapFlags)
	cmd.Flags().IntVar(&mapWidth, "width", 48, "Characters per block row")
	rootCmd.AddCommand(cmd)
}

func newMapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "map",
		Short: "Render block occupancy after a workload",
		Long: `The map command runs a synthetic workload (same flags as simulate) and
draws every block of the resulting heap as a bar: each character covers a run
of slots and shows how many of them are occupied.

Example:
  cellheap map --steps 50000
  cellheap map --config workload.yaml --width 64`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := mapFlags.workloadConfig(cmd)
			if err != nil {
				return err
			}
			if mapWidth < 1 {
				return fmt.Errorf("--width must be positive")
			}
			sim, err := workload.New(c, heapLogger())
			if err != nil {
				return err
			}
			defer sim.Close()
			if _, err := sim.Run(); err != nil {
				return err
			}
			return renderMap(cmd.OutOrStdout(), sim.Heap(), mapWidth)
		},
	}
}

// BlockRow is the JSON form of one rendered block.
type BlockRow struct {
	Base     string `json:"base"`
	CellSize int    `json:"cell_size"`
	Used     int    `json:"used"`
	Total    int    `json:"total"`
	Bar      string `json:"bar"`
}

// occupancyBar summarises the slots of b in width characters.
func occupancyBar(b *gc.Block, width int) string {
	total := b.TotalCount()
	width = min(width, total)
	var sb strings.Builder
	for col := range width {
		lo, hi := col*total/width, (col+1)*total/width
		used := 0
		for i := lo; i < hi; i++ {
			if b.IsOccupied(i) {
				used++
			}
		}
		switch {
		case used == 0:
			sb.WriteByte('.')
		case used == hi-lo:
			sb.WriteByte('#')
		default:
			sb.WriteByte('+')
		}
	}
	return sb.String()
}

func renderMap(w io.Writer, h *gc.Heap, width int) error {
	blocks := h.Blocks()
	rows := make([]BlockRow, len(blocks))
	for i, b := range blocks {
		rows[i] = BlockRow{
			Base:     b.Base().String(),
			CellSize: b.CellSize(),
			Used:     b.UsedCount(),
			Total:    b.TotalCount(),
			Bar:      occupancyBar(b, width),
		}
	}
	if jsonOut {
		return printJSON(w, rows)
	}

	st := newStyles(w)
	lines := []string{st.title.Render(fmt.Sprintf("Heap %d: %d blocks", h.ID(), len(rows)))}
	for _, r := range rows {
		label := st.label.Render(fmt.Sprintf("%-16s %5dB", r.Base, r.CellSize))
		count := st.muted.Render(fmt.Sprintf("%5d/%-5d", r.Used, r.Total))
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, label, " ", colorBar(st, r.Bar), " ", count))
	}
	lines = append(lines, st.muted.Render("# full  + partial  . empty"))
	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, lines...))
	return err
}

// colorBar styles runs of equal bar characters.
func colorBar(st styles, bar string) string {
	var sb strings.Builder
	for len(bar) > 0 {
		ch := bar[0]
		n := 1
		for n < len(bar) && bar[n] == ch {
			n++
		}
		run := bar[:n]
		switch ch {
		case '#':
			sb.WriteString(st.full.Render(run))
		case '+':
			sb.WriteString(st.part.Render(run))
		default:
			sb.WriteString(st.empty.Render(run))
		}
		bar = bar[n:]
	}
	return sb.String()
}
