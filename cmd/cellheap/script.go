package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshuapare/cellheap/gc"
	"github.com/joshuapare/cellheap/internal/script"
)

var (
	scriptTrace  bool
	scriptPolicy string
)

func init() {
	cmd := newScriptCmd()
	cmd.Flags().BoolVar(&scriptTrace, "trace", false, "Print every teardown")
	cmd.Flags().StringVar(&scriptPolicy, "policy", "grow", "Growth policy: grow, collect-first, budget")
	rootCmd.AddCommand(cmd)
}

func newScriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "script <file>",
		Short: "Run a heap script",
		Long: `The script command runs a heap script against a fresh heap. Use - to read
the script from stdin.

Commands:
  alloc NAME SIZE [CHILD...]   allocate a cell referencing CHILDren
  link FROM TO...              add references
  unlink FROM TO...            remove references
  scope / end                  open / close a shadow-stack frame
  root NAME...                 root cells in the innermost frame
  pin NAME... / unpin NAME...  pin or unpin global roots
  word NAME[+OFF]|NUMBER...    push raw words on the conservative stack
  drop [N]                     pop N words (default all)
  free NAME...                 free cells explicitly
  collect                      run a collection
  expect live|dead NAME...     assert liveness
  expect destroyed NAME N      assert teardown count
  describe [NAME...]           print cells
  dump | stats | verify        heap diagnostics

Example:
  cellheap script testdata/cycle.heap --trace`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScript(cmd.OutOrStdout(), cmd.InOrStdin(), args[0])
		},
	}
}

func runScript(w io.Writer, stdin io.Reader, path string) error {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()
		r = f
	}

	policy, err := gc.ParseGrowthPolicy(strings.TrimSpace(scriptPolicy))
	if err != nil {
		return err
	}
	h, err := gc.New(gc.Options{Policy: policy, Logger: heapLogger()})
	if err != nil {
		return err
	}
	defer h.Close()

	in := script.New(h, w)
	defer in.Close()
	in.Trace = scriptTrace

	printVerbose("Running script: %s\n", path)
	if err := in.Run(r); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
