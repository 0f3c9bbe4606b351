package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool
	noColor bool
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "cellheap",
	Short: "Inspect and exercise a mark-and-sweep cell heap",
	Long: `cellheap inspects the geometry of the cell heap (size classes, block
layout) and exercises it with deterministic synthetic workloads and heap
scripts, reporting collection and occupancy statistics.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log heap events to stderr")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v\n", err)
		os.Exit(1)
	}
}

// Helper functions for output

// printError prints an error message
func printError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format, args...)
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...any) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// heapLogger returns the logger handed to heaps: debug events on stderr with
// --debug, otherwise nil so CELLHEAP_LOG decides.
func heapLogger() *slog.Logger {
	if !debug {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// colorEnabled reports whether styled output should be used for w.
func colorEnabled(w io.Writer) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// styles holds the terminal styles; all of them are plain when colour is off.
type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	muted lipgloss.Style
	full  lipgloss.Style
	part  lipgloss.Style
	empty lipgloss.Style
}

var (
	primaryColor = lipgloss.Color("#7D56F4")
	successColor = lipgloss.Color("#04B575")
	warningColor = lipgloss.Color("#FFA500")
	mutedColor   = lipgloss.Color("#666666")
)

func newStyles(w io.Writer) styles {
	if !colorEnabled(w) {
		plain := lipgloss.NewStyle()
		return styles{title: plain, label: plain, muted: plain, full: plain, part: plain, empty: plain}
	}
	return styles{
		title: lipgloss.NewStyle().Bold(true).Foreground(primaryColor),
		label: lipgloss.NewStyle().Foreground(primaryColor),
		muted: lipgloss.NewStyle().Foreground(mutedColor),
		full:  lipgloss.NewStyle().Foreground(successColor),
		part:  lipgloss.NewStyle().Foreground(warningColor),
		empty: lipgloss.NewStyle().Foreground(mutedColor),
	}
}
