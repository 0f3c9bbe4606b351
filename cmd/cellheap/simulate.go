package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/inhies/go-bytesize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/cellheap/internal/format"
	"github.com/joshuapare/cellheap/internal/workload"
)

// simFlags are the workload flags shared by simulate and map.
type simFlags struct {
	config       string
	steps        int
	seed         int64
	policy       string
	preset       string
	maxHeap      bytesize.ByteSize
	collectEvery int
	release      bool
	verify       bool
	stats        bool
}

var simulateFlags simFlags

func init() {
	cmd := newSimulateCmd()
	addSimFlags(cmd, &simulateFlags)
	cmd.Flags().BoolVar(&simulateFlags.stats, "stats", false, "Print the heap's own statistics block")
	rootCmd.AddCommand(cmd)
}

func addSimFlags(cmd *cobra.Command, f *simFlags) {
	cmd.Flags().StringVarP(&f.config, "config", "c", "", "YAML workload file")
	cmd.Flags().IntVar(&f.steps, "steps", 0, "Number of mutator steps (overrides config)")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed (overrides config)")
	cmd.Flags().StringVar(&f.policy, "policy", "", "Growth policy: grow, collect-first, budget")
	cmd.Flags().StringVar(&f.preset, "preset", "", "Size class preset ("+presetNames()+")")
	cmd.Flags().Var(&f.maxHeap, "max-heap", "Cap the heap size, e.g. 4MB (rounded down to whole blocks)")
	cmd.Flags().IntVar(&f.collectEvery, "collect-every", 0, "Force a collection every N steps")
	cmd.Flags().BoolVar(&f.release, "release-empty", false, "Release blocks left empty by a sweep")
	cmd.Flags().BoolVar(&f.verify, "verify", false, "Verify heap invariants after every collection")
}

// workloadConfig merges the config file with explicitly set flags.
func (f *simFlags) workloadConfig(cmd *cobra.Command) (workload.Config, error) {
	var c workload.Config
	if f.config != "" {
		var err error
		if c, err = workload.LoadConfig(f.config); err != nil {
			return c, err
		}
		printVerbose("Loaded workload: %s\n", f.config)
	}
	flags := cmd.Flags()
	if flags.Changed("steps") {
		c.Steps = f.steps
	}
	if flags.Changed("seed") {
		c.Seed = f.seed
	}
	if flags.Changed("policy") {
		c.Policy = f.policy
	}
	if flags.Changed("preset") {
		c.SizeClasses = f.preset
	}
	if flags.Changed("max-heap") {
		blocks := int(uint64(f.maxHeap) / format.BlockSize)
		if blocks < 1 {
			return c, fmt.Errorf("--max-heap %v is smaller than one block (%s)", f.maxHeap, humanize.IBytes(format.BlockSize))
		}
		c.MaxBlocks = blocks
	}
	if flags.Changed("collect-every") {
		c.CollectEvery = f.collectEvery
	}
	if flags.Changed("release-empty") {
		c.ReleaseEmptyBlocks = f.release
	}
	if flags.Changed("verify") {
		c.Verify = f.verify
	}
	return c, c.Validate()
}

func newSimulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simulate",
		Short: "Run a synthetic mutator workload",
		Long: `The simulate command runs a deterministic synthetic mutator against a
fresh heap and reports allocation, collection and occupancy statistics.

Example:
  cellheap simulate --steps 200000 --policy collect-first
  cellheap simulate --config workload.yaml --max-heap 4MB --verify
  cellheap simulate --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := simulateFlags.workloadConfig(cmd)
			if err != nil {
				return err
			}
			return runSimulate(cmd.OutOrStdout(), c, simulateFlags.stats)
		},
	}
}

func runSimulate(w io.Writer, c workload.Config, heapStats bool) error {
	sim, err := workload.New(c, heapLogger())
	if err != nil {
		return err
	}
	defer sim.Close()

	report, err := sim.Run()
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(w, report)
	}
	if !quiet {
		printReport(w, report)
	}
	if heapStats {
		sim.Heap().PrintStats(w)
	}
	return nil
}

func printReport(w io.Writer, r *workload.Report) {
	st := newStyles(w)
	s := r.Stats
	cfg := r.Config

	fmt.Fprintln(w, st.title.Render("Workload"))
	fmt.Fprintf(w, "  seed %d, %s steps, policy %s, preset %s\n",
		cfg.Seed, humanize.Comma(int64(r.Steps)), cfg.Policy, cfg.SizeClasses)
	fmt.Fprintf(w, "  ops: alloc %s, link %s, store %s, pop %s, global %s\n",
		humanize.Comma(int64(r.Ops.Alloc)), humanize.Comma(int64(r.Ops.Link)),
		humanize.Comma(int64(r.Ops.Store)), humanize.Comma(int64(r.Ops.Pop)),
		humanize.Comma(int64(r.Ops.Global)))
	fmt.Fprintf(w, "  elapsed %v\n\n", r.Elapsed)

	fmt.Fprintln(w, st.title.Render("Heap"))
	fmt.Fprintf(w, "  blocks %d (peak %d, %s mapped)\n", s.Blocks, r.PeakBlocks, humanize.IBytes(uint64(s.Blocks)*format.BlockSize))
	fmt.Fprintf(w, "  live %s cells, %s of %s slot capacity\n",
		humanize.Comma(int64(s.LiveCells)), humanize.IBytes(uint64(s.LiveBytes)), humanize.IBytes(uint64(s.Capacity)))
	fmt.Fprintf(w, "  allocated %s cells, %s total\n", humanize.Comma(s.AllocCalls), humanize.IBytes(uint64(s.BytesAllocated)))
	if r.OutOfMemory > 0 {
		fmt.Fprintf(w, "  %s\n", st.part.Render(fmt.Sprintf("out of memory %d times", r.OutOfMemory)))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, st.title.Render("Collector"))
	fmt.Fprintf(w, "  collections %d, total pause %v, max pause %v\n", s.Collections, s.TotalPause, r.MaxPause)
	fmt.Fprintf(w, "  marked %s, swept %s cells (%s)\n",
		humanize.Comma(s.CellsMarked), humanize.Comma(s.CellsSwept), humanize.IBytes(uint64(s.BytesSwept)))
	fmt.Fprintf(w, "  conservative roots %s of %s words scanned\n",
		humanize.Comma(s.ConservativeRoots), humanize.Comma(s.WordsScanned))
	if s.BlocksReleased > 0 {
		fmt.Fprintf(w, "  released %d empty blocks\n", s.BlocksReleased)
	}
	fmt.Fprintln(w)

	if !verbose {
		return
	}
	fmt.Fprintln(w, st.title.Render("Classes"))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CLASS\tCELL\tBLOCKS\tLIVE\tSLOTS\tUSE\t")
	for _, c := range r.Classes {
		if c.Blocks == 0 {
			continue
		}
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%.1f%%\t\n", c.Class, c.CellSize, c.Blocks,
			humanize.Comma(int64(c.LiveCells)), humanize.Comma(int64(c.Slots)), c.Utilization()*100)
	}
	_ = tw.Flush()
}
