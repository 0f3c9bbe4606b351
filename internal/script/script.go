// Package script runs line-oriented heap scripts, one command per line:
//
//	alloc a 32        # allocate a 32-byte cell named a
//	alloc b 16
//	link a b          # a references b
//	scope             # open a shadow-stack frame
//	root a            # root a in the innermost frame
//	collect
//	expect live a b
//	end               # close the frame
//	collect
//	expect dead a b
//
// Lines are tokenised with shell rules, so names may be quoted and '#'
// starts a comment. The interpreter is used by the cellheap CLI and by
// tests that want to describe an object graph compactly.
package script

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/joshuapare/cellheap/gc"
)

var (
	// ErrSyntax indicates a malformed command line.
	ErrSyntax = errors.New("script: syntax error")

	// ErrUnknownCommand indicates a command the interpreter does not know.
	ErrUnknownCommand = errors.New("script: unknown command")

	// ErrUnknownName indicates a reference to a name never allocated.
	ErrUnknownName = errors.New("script: unknown name")

	// ErrExpect indicates a failed expect command.
	ErrExpect = errors.New("script: expectation failed")
)

// cell is the object type scripts allocate.
type cell struct {
	gc.Header
	name string
	refs []gc.Cell
	in   *Interpreter
}

func (c *cell) VisitChildren(v gc.Visitor) {
	for _, r := range c.refs {
		v.Visit(r)
	}
}

func (c *cell) Destroy() {
	c.in.destroyed[c.name]++
	if c.in.Trace {
		fmt.Fprintf(c.in.out, "destroy %s\n", c.name)
	}
}

func (c *cell) Describe() string {
	names := make([]string, 0, len(c.refs))
	for _, r := range c.refs {
		if rc, ok := r.(*cell); ok {
			names = append(names, rc.name)
		}
	}
	return fmt.Sprintf("%s@%v -> [%s]", c.name, c.Addr(), strings.Join(names, " "))
}

// Interpreter executes script commands against a heap.
type Interpreter struct {
	// Trace prints teardown events as they happen.
	Trace bool

	h         *gc.Heap
	out       io.Writer
	cells     map[string]*cell
	scopes    []*gc.Scope
	words     gc.WordStack
	unscan    func()
	destroyed map[string]int
}

// New returns an interpreter writing command output to out.
func New(h *gc.Heap, out io.Writer) *Interpreter {
	in := &Interpreter{
		h:         h,
		out:       out,
		cells:     make(map[string]*cell),
		destroyed: make(map[string]int),
	}
	in.unscan = h.AddRootScanner(&in.words)
	return in
}

// Close closes any scopes the script left open and unregisters the word
// stack.
func (in *Interpreter) Close() {
	for i := len(in.scopes) - 1; i >= 0; i-- {
		in.scopes[i].Close()
	}
	in.scopes = nil
	in.unscan()
}

// Destroyed returns how many times the cell named name has been torn down.
func (in *Interpreter) Destroyed(name string) int { return in.destroyed[name] }

// Run executes every line of r, stopping at the first error.
func (in *Interpreter) Run(r io.Reader) error {
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		if err := in.Exec(sc.Text()); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return sc.Err()
}

// Exec executes one line.
func (in *Interpreter) Exec(line string) error {
	args, err := shlex.Split(line)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSyntax, err)
	}
	if len(args) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "alloc":
		return in.alloc(args)
	case "link":
		return in.link(args, true)
	case "unlink":
		return in.link(args, false)
	case "scope":
		if err := arity(cmd, args, 0); err != nil {
			return err
		}
		in.scopes = append(in.scopes, in.h.Scope())
		return nil
	case "end":
		if err := arity(cmd, args, 0); err != nil {
			return err
		}
		if len(in.scopes) == 0 {
			return fmt.Errorf("%w: end without scope", ErrSyntax)
		}
		in.scopes[len(in.scopes)-1].Close()
		in.scopes = in.scopes[:len(in.scopes)-1]
		return nil
	case "root":
		return in.root(args)
	case "pin", "unpin", "free":
		return in.each(cmd, args)
	case "word":
		return in.word(args)
	case "drop":
		return in.drop(args)
	case "collect":
		cs := in.h.Collect()
		fmt.Fprintf(in.out, "collect: roots=%d marked=%d swept=%d\n", cs.Roots, cs.CellsMarked, cs.CellsSwept)
		return nil
	case "expect":
		return in.expect(args)
	case "describe":
		return in.describe(args)
	case "dump":
		return in.h.DumpHeap(in.out)
	case "stats":
		in.h.PrintStats(in.out)
		return nil
	case "verify":
		return in.h.Verify()
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
}

func arity(cmd string, args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", ErrSyntax, cmd, n, len(args))
	}
	return nil
}

// lookup returns the cell last allocated under name.
func (in *Interpreter) lookup(name string) (*cell, error) {
	c, ok := in.cells[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	return c, nil
}

// alloc NAME SIZE [CHILD...]
func (in *Interpreter) alloc(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: alloc NAME SIZE [CHILD...]", ErrSyntax)
	}
	size, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: size %q", ErrSyntax, args[1])
	}
	var refs []gc.Cell
	for _, name := range args[2:] {
		k, err := in.lookup(name)
		if err != nil {
			return err
		}
		refs = append(refs, k)
	}
	c, err := gc.Alloc(in.h, size, func(gc.Slot) *cell {
		return &cell{name: args[0], refs: refs, in: in}
	})
	if err != nil {
		return err
	}
	in.cells[args[0]] = c
	return nil
}

// link FROM TO... / unlink FROM TO...
func (in *Interpreter) link(args []string, add bool) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: link FROM TO...", ErrSyntax)
	}
	from, err := in.lookup(args[0])
	if err != nil {
		return err
	}
	for _, name := range args[1:] {
		to, err := in.lookup(name)
		if err != nil {
			return err
		}
		if add {
			from.refs = append(from.refs, to)
			continue
		}
		from.refs = slices.DeleteFunc(from.refs, func(r gc.Cell) bool { return r == gc.Cell(to) })
	}
	return nil
}

// root NAME... adds to the innermost scope.
func (in *Interpreter) root(args []string) error {
	if len(in.scopes) == 0 {
		return fmt.Errorf("%w: root outside scope", ErrSyntax)
	}
	s := in.scopes[len(in.scopes)-1]
	for _, name := range args {
		c, err := in.lookup(name)
		if err != nil {
			return err
		}
		s.Add(c)
	}
	return nil
}

// each applies pin, unpin or free to every named cell.
func (in *Interpreter) each(cmd string, args []string) error {
	for _, name := range args {
		c, err := in.lookup(name)
		if err != nil {
			return err
		}
		switch cmd {
		case "pin":
			err = in.h.Pin(c)
		case "unpin":
			if !in.h.Unpin(c) {
				err = fmt.Errorf("%s is not pinned", name)
			}
		case "free":
			err = in.h.Free(c)
		}
		if err != nil {
			return fmt.Errorf("%s %s: %w", cmd, name, err)
		}
	}
	return nil
}

// word NAME|NUMBER... pushes raw words on the conservatively scanned stack.
// A name pushes the cell's address; offsets like a+8 push interior words.
func (in *Interpreter) word(args []string) error {
	for _, a := range args {
		w, err := in.parseWord(a)
		if err != nil {
			return err
		}
		in.words.Push(w)
	}
	return nil
}

func (in *Interpreter) parseWord(a string) (uint64, error) {
	if n, err := strconv.ParseUint(a, 0, 64); err == nil {
		return n, nil
	}
	name, off := a, uint64(0)
	if i := strings.IndexByte(a, '+'); i > 0 {
		n, err := strconv.ParseUint(a[i+1:], 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: word %q", ErrSyntax, a)
		}
		name, off = a[:i], n
	}
	c, err := in.lookup(name)
	if err != nil {
		return 0, err
	}
	return uint64(c.Addr()) + off, nil
}

// drop [N] pops N words (default: all).
func (in *Interpreter) drop(args []string) error {
	switch len(args) {
	case 0:
		in.words.Truncate(0)
	case 1:
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("%w: drop %q", ErrSyntax, args[0])
		}
		in.words.Truncate(max(0, in.words.Len()-n))
	default:
		return fmt.Errorf("%w: drop [N]", ErrSyntax)
	}
	return nil
}

// expect live|dead NAME... / expect destroyed NAME COUNT
func (in *Interpreter) expect(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: expect live|dead NAME...", ErrSyntax)
	}
	switch args[0] {
	case "live", "dead":
		want := args[0] == "live"
		for _, name := range args[1:] {
			c, err := in.lookup(name)
			if err != nil {
				return err
			}
			if in.h.IsLive(c) != want {
				return fmt.Errorf("%w: %s is not %s", ErrExpect, name, args[0])
			}
		}
		return nil
	case "destroyed":
		if len(args) != 3 {
			return fmt.Errorf("%w: expect destroyed NAME COUNT", ErrSyntax)
		}
		n, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("%w: count %q", ErrSyntax, args[2])
		}
		if got := in.destroyed[args[1]]; got != n {
			return fmt.Errorf("%w: %s destroyed %d times, want %d", ErrExpect, args[1], got, n)
		}
		return nil
	}
	return fmt.Errorf("%w: expect %q", ErrSyntax, args[0])
}

// describe NAME... prints each cell, or every named cell if none are given.
func (in *Interpreter) describe(args []string) error {
	if len(args) == 0 {
		for name := range in.cells {
			args = append(args, name)
		}
		slices.Sort(args)
	}
	for _, name := range args {
		c, err := in.lookup(name)
		if err != nil {
			return err
		}
		state := "dead"
		if in.h.IsLive(c) {
			state = "live"
		}
		fmt.Fprintf(in.out, "%-5s %s\n", state, gc.Describe(c))
	}
	return nil
}
