package gc

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/cellheap/internal/format"
)

func TestSizeClasses_Presets(t *testing.T) {
	for name, config := range Presets {
		t.Run(name, func(t *testing.T) {
			sizes, err := ClassSizes(config)
			require.NoError(t, err)
			require.NotEmpty(t, sizes)
			require.True(t, sort.IntsAreSorted(sizes))
			require.Equal(t, config.SmallMin, sizes[0])
			require.Equal(t, config.MediumMax, sizes[len(sizes)-1])
			for i, s := range sizes {
				require.Zero(t, s%format.CellAlignment, "class %d size %d", i, s)
				require.Positive(t, format.SlotCount(s))
				if i > 0 {
					require.Greater(t, s, sizes[i-1])
				}
			}
		})
	}
}

func TestSizeClasses_Balanced(t *testing.T) {
	sizes, err := ClassSizes(ConfigBalanced)
	require.NoError(t, err)
	require.Equal(t, []int{
		16, 32, 48, 64, 80, 96, 112, 128, 144, 160, 176, 192, 208, 224, 240, 256,
		384, 576, 864, 1296, 1944, 2920, 4384, 6576, 8192,
	}, sizes)
}

func TestSizeClasses_ClassFor(t *testing.T) {
	table, err := newSizeClassTable(ConfigBalanced)
	require.NoError(t, err)

	tests := []struct {
		size int
		want int
	}{
		{1, 16},
		{16, 16},
		{17, 32},
		{256, 256},
		{257, 384},
		{8000, 8192},
		{8192, 8192},
	}
	for _, tt := range tests {
		c, ok := table.classFor(tt.size)
		require.True(t, ok, "size %d", tt.size)
		require.Equal(t, tt.want, table.size(c), "size %d", tt.size)
	}
	_, ok := table.classFor(8193)
	require.False(t, ok)
}

func TestSizeClasses_Validate(t *testing.T) {
	bad := []SizeClassConfig{
		{SmallMin: 8, SmallMax: 64, SmallIncrement: 8, MediumMax: 64},
		{SmallMin: 16, SmallMax: 64, SmallIncrement: 12, MediumMax: 64},
		{SmallMin: 64, SmallMax: 16, SmallIncrement: 8, MediumMax: 64},
		{SmallMin: 16, SmallMax: 64, SmallIncrement: 8, MediumMax: 32},
		{SmallMin: 16, SmallMax: 64, SmallIncrement: 8, MediumMax: 128, GrowthFactor: 1},
		{SmallMin: 16, SmallMax: 64, SmallIncrement: 8, MediumMax: format.BlockSize},
	}
	for i, c := range bad {
		_, err := ClassSizes(c)
		require.ErrorIs(t, err, ErrBadConfig, "config %d", i)
	}

	// Linear only.
	sizes, err := ClassSizes(SizeClassConfig{SmallMin: 16, SmallMax: 64, SmallIncrement: 16, MediumMax: 64})
	require.NoError(t, err)
	require.Equal(t, []int{16, 32, 48, 64}, sizes)
}
