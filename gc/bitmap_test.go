package gc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitmap_SetClearTest(t *testing.T) {
	b := newBitmap(130)
	require.Len(t, b, 3)

	for _, i := range []int{0, 63, 64, 129} {
		require.False(t, b.test(i))
		b.set(i)
		require.True(t, b.test(i))
	}
	require.Equal(t, 4, b.count())

	b.clear(63)
	require.False(t, b.test(63))
	require.Equal(t, 3, b.count())
}

func TestBitmap_FirstClear(t *testing.T) {
	const n = 130
	b := newBitmap(n)
	require.Equal(t, 0, b.firstClear(n))

	for i := range 70 {
		b.set(i)
	}
	require.Equal(t, 70, b.firstClear(n))

	b.clear(5)
	require.Equal(t, 5, b.firstClear(n))

	for i := range n {
		b.set(i)
	}
	require.Equal(t, n, b.firstClear(n), "padding bits beyond n must not be reported")
}

func TestBitmap_NextSet(t *testing.T) {
	const n = 200
	b := newBitmap(n)
	require.Equal(t, n, b.nextSet(0, n))

	for _, i := range []int{3, 64, 65, 199} {
		b.set(i)
	}
	var got []int
	for i := b.nextSet(0, n); i < n; i = b.nextSet(i+1, n) {
		got = append(got, i)
	}
	require.Equal(t, []int{3, 64, 65, 199}, got)
	require.Equal(t, 64, b.nextSet(4, n))
	require.Equal(t, n, b.nextSet(n, n))
}
