package script

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/cellheap/gc"
	"github.com/joshuapare/cellheap/internal/blockmem"
)

func newInterpreter(t *testing.T) (*Interpreter, *bytes.Buffer) {
	t.Helper()
	h, err := gc.New(gc.Options{Memory: blockmem.GoHeap{}})
	require.NoError(t, err)
	var out bytes.Buffer
	in := New(h, &out)
	t.Cleanup(func() {
		in.Close()
		require.NoError(t, h.Close())
	})
	return in, &out
}

func run(t *testing.T, in *Interpreter, src string) {
	t.Helper()
	require.NoError(t, in.Run(strings.NewReader(src)))
}

func TestScript_ScopesAndLinks(t *testing.T) {
	in, out := newInterpreter(t)
	run(t, in, `
# a -> b -> c, d unreachable
alloc c 16
alloc b 16 c
alloc a 32 b
alloc d 16
scope
root a
collect
expect live a b c
expect dead d
expect destroyed d 1
unlink b c
collect
expect dead c
end
collect
expect dead a b
verify
`)
	require.Contains(t, out.String(), "collect: roots=1 marked=3 swept=1")
	require.Equal(t, 1, in.Destroyed("c"))
	require.Equal(t, 1, in.Destroyed("a"))
}

func TestScript_Cycles(t *testing.T) {
	in, _ := newInterpreter(t)
	run(t, in, `
alloc x 24
alloc y 24 x
link x y
pin x
collect
expect live x y
unpin x
collect
expect dead x y
expect destroyed x 1
expect destroyed y 1
`)
}

func TestScript_ConservativeWords(t *testing.T) {
	in, _ := newInterpreter(t)
	run(t, in, `
alloc a 16
alloc b 16
alloc "with space" 16
word a b+8 12345 0xDEAD
collect
expect live a
expect dead b "with space"
drop
collect
expect dead a
`)
}

func TestScript_FreeAndDescribe(t *testing.T) {
	in, out := newInterpreter(t)
	in.Trace = true
	run(t, in, `
alloc a 16
alloc b 48 a
pin b
describe
free a
describe a
`)
	s := out.String()
	require.Contains(t, s, "live  b@")
	require.Contains(t, s, "-> [a]")
	require.Contains(t, s, "destroy a")
	require.Contains(t, s, "dead  a@0x0")

	err := in.Exec("free b")
	require.ErrorIs(t, err, gc.ErrPinned)
}

func TestScript_Errors(t *testing.T) {
	in, _ := newInterpreter(t)
	tests := []struct {
		line string
		want error
	}{
		{"frobnicate", ErrUnknownCommand},
		{"alloc a", ErrSyntax},
		{"alloc a big", ErrSyntax},
		{"alloc a 16 nosuch", ErrUnknownName},
		{"alloc a 0", gc.ErrBadSize},
		{"alloc a 100000", gc.ErrTooLarge},
		{"link nosuch a", ErrUnknownName},
		{"root nosuch", ErrSyntax},
		{"end", ErrSyntax},
		{"scope extra", ErrSyntax},
		{`alloc "unterminated 16`, ErrSyntax},
		{"expect maybe a", ErrSyntax},
		{"drop -1", ErrSyntax},
		{"word nosuch+8", ErrUnknownName},
	}
	for _, tt := range tests {
		require.ErrorIs(t, in.Exec(tt.line), tt.want, tt.line)
	}

	require.NoError(t, in.Exec("alloc a 16"))
	require.ErrorIs(t, in.Exec("expect dead a"), ErrExpect)
	require.ErrorIs(t, in.Exec("expect destroyed a 1"), ErrExpect)

	err := in.Run(strings.NewReader("alloc b 16\n\nbogus\n"))
	require.ErrorIs(t, err, ErrUnknownCommand)
	require.Contains(t, err.Error(), "line 3")
}

func TestScript_CloseClosesScopes(t *testing.T) {
	in, _ := newInterpreter(t)
	run(t, in, "scope\nscope\nalloc a 16\nroot a\n")
	require.Equal(t, 2, in.h.Depth())
	in.Close()
	require.Zero(t, in.h.Depth())
}
