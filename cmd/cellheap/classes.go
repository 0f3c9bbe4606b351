package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/cellheap/gc"
	"github.com/joshuapare/cellheap/internal/format"
)

var classesPreset string

func init() {
	cmd := newClassesCmd()
	cmd.Flags().StringVar(&classesPreset, "preset", "balanced", "Size class preset ("+presetNames()+")")
	rootCmd.AddCommand(cmd)
}

func newClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "Show the size class table",
		Long: `The classes command lists every size class of a preset with the number
of slots per 32 KiB block and the bytes each block leaves unused.

Example:
  cellheap classes
  cellheap classes --preset finegrained --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses(cmd.OutOrStdout(), classesPreset)
		},
	}
}

// ClassRow describes one size class.
type ClassRow struct {
	Class         int `json:"class"`
	CellSize      int `json:"cell_size"`
	SlotsPerBlock int `json:"slots_per_block"`
	SlackBytes    int `json:"slack_bytes"`
}

func presetNames() string {
	names := make([]string, 0, len(gc.Presets))
	for name := range gc.Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}

func lookupPreset(name string) (gc.SizeClassConfig, error) {
	c, ok := gc.Presets[strings.ToLower(name)]
	if !ok {
		return gc.SizeClassConfig{}, fmt.Errorf("unknown preset %q (want one of %s)", name, presetNames())
	}
	return c, nil
}

func classRows(config gc.SizeClassConfig) ([]ClassRow, error) {
	sizes, err := gc.ClassSizes(config)
	if err != nil {
		return nil, err
	}
	rows := make([]ClassRow, len(sizes))
	for i, size := range sizes {
		slots := format.SlotCount(size)
		rows[i] = ClassRow{
			Class:         i,
			CellSize:      size,
			SlotsPerBlock: slots,
			SlackBytes:    format.BlockDataSize - slots*size,
		}
	}
	return rows, nil
}

func runClasses(w io.Writer, preset string) error {
	config, err := lookupPreset(preset)
	if err != nil {
		return err
	}
	rows, err := classRows(config)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(w, rows)
	}

	st := newStyles(w)
	fmt.Fprintln(w, st.title.Render(fmt.Sprintf("%s size classes (%d)", config.Name, len(rows))))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CLASS\tCELL SIZE\tSLOTS/BLOCK\tSLACK\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t\n",
			r.Class, humanize.IBytes(uint64(r.CellSize)), humanize.Comma(int64(r.SlotsPerBlock)), humanize.IBytes(uint64(r.SlackBytes)))
	}
	return tw.Flush()
}
