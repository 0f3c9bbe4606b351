package gc

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"
)

// envLogger returns the logger used when Options.Logger is nil. Setting
// CELLHEAP_LOG=debug (or info) sends heap events to stderr.
func envLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(os.Getenv("CELLHEAP_LOG")) {
	case "debug", "1", "true":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	default:
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// Describe returns a one-line debug representation of c: the Cell's own
// Describe if it implements Describer, otherwise its type and address.
func Describe(c Cell) string {
	if isNil(c) {
		return "<nil>"
	}
	if d, ok := c.(Describer); ok {
		return d.Describe()
	}
	hdr := c.gcHeader()
	return fmt.Sprintf("<%s %v>", typeName(c), hdr.addr)
}

func typeName(c Cell) string {
	t := reflect.TypeOf(c)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// DumpHeap writes every block and its live Cells to w.
func (h *Heap) DumpHeap(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "heap %d: %d blocks, policy %v\n", h.id, h.nblocks, h.opts.Policy); err != nil {
		return err
	}
	for _, b := range h.Blocks() {
		if _, err := fmt.Fprintf(w, "block %v seq=%d cell=%d used=%d/%d\n",
			b.base, b.seq, b.cellSize, b.UsedCount(), b.total); err != nil {
			return err
		}
		for i, c := range b.All() {
			mark := ' '
			if c != nil && c.gcHeader().marked {
				mark = '*'
			}
			desc := "<constructing>"
			if c != nil {
				desc = Describe(c)
			}
			if _, err := fmt.Fprintf(w, "  %c [%4d] %v %s\n", mark, i, b.SlotAt(i), desc); err != nil {
				return err
			}
		}
	}
	return nil
}
