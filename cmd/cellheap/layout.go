package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/cellheap/gc"
	"github.com/joshuapare/cellheap/internal/format"
)

var layoutPreset string

func init() {
	cmd := newLayoutCmd()
	cmd.Flags().StringVar(&layoutPreset, "preset", "balanced", "Size class preset ("+presetNames()+")")
	rootCmd.AddCommand(cmd)
}

func newLayoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "layout <size>",
		Short: "Show the block layout used for an allocation size",
		Long: `The layout command shows which size class an allocation of the given
size lands in and how a block of that class is laid out.

Example:
  cellheap layout 24
  cellheap layout 3000 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			size, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid size %q: %w", args[0], err)
			}
			return runLayout(cmd.OutOrStdout(), layoutPreset, size)
		},
	}
}

// Layout is the geometry of one block.
type Layout struct {
	Request       int    `json:"request"`
	Class         int    `json:"class"`
	CellSize      int    `json:"cell_size"`
	BlockSize     int    `json:"block_size"`
	HeaderSize    int    `json:"header_size"`
	Slots         int    `json:"slots"`
	FirstSlot     string `json:"first_slot_offset"`
	LastSlot      string `json:"last_slot_offset"`
	SlackBytes    int    `json:"slack_bytes"`
	InternalWaste int    `json:"internal_waste"`
	BitmapWords   int    `json:"bitmap_words"`
}

func blockLayout(preset string, size int) (Layout, error) {
	config, err := lookupPreset(preset)
	if err != nil {
		return Layout{}, err
	}
	h, err := gc.New(gc.Options{SizeClasses: &config})
	if err != nil {
		return Layout{}, err
	}
	defer h.Close()

	class, cellSize, err := h.SizeClass(size)
	if err != nil {
		return Layout{}, err
	}
	slots := format.SlotCount(cellSize)
	return Layout{
		Request:       size,
		Class:         class,
		CellSize:      cellSize,
		BlockSize:     format.BlockSize,
		HeaderSize:    format.BlockHeaderSize,
		Slots:         slots,
		FirstSlot:     fmt.Sprintf("0x%04X", format.BlockHeaderSize),
		LastSlot:      fmt.Sprintf("0x%04X", format.BlockHeaderSize+(slots-1)*cellSize),
		SlackBytes:    format.BlockDataSize - slots*cellSize,
		InternalWaste: cellSize - size,
		BitmapWords:   (slots + 63) / 64,
	}, nil
}

func runLayout(w io.Writer, preset string, size int) error {
	l, err := blockLayout(preset, size)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(w, l)
	}

	st := newStyles(w)
	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", st.label.Render(fmt.Sprintf("%-16s", label)), value)
	}
	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("Layout for %s allocations", humanize.IBytes(uint64(size)))))
	row("Size class:", fmt.Sprintf("%d (%d-byte cells)", l.Class, l.CellSize))
	row("Block size:", humanize.IBytes(uint64(l.BlockSize)))
	row("Header:", fmt.Sprintf("%d bytes", l.HeaderSize))
	row("Slots:", humanize.Comma(int64(l.Slots)))
	row("First slot:", l.FirstSlot)
	row("Last slot:", l.LastSlot)
	row("Block slack:", fmt.Sprintf("%d bytes", l.SlackBytes))
	row("Per-cell waste:", fmt.Sprintf("%d bytes", l.InternalWaste))
	row("Bitmap:", fmt.Sprintf("%d words", l.BitmapWords))
	return nil
}
