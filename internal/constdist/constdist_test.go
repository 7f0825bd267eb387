package constdist

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatCost(t *testing.T) {
	tests := []struct {
		v    int64
		want uint64
	}{
		{0, 0},
		{1, 0},
		{-1, 1},
		{2047, 1},
		{-2048, 1},
		{2048, 2},
		{-2049, 2},
		{1<<31 - 1, 2},
		{-1 << 31, 2},
		{1 << 31, 4},
		{-1<<31 - 1, 4},
		{-1 << 63, 4},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, MatCost(tc.v), "value %d", tc.v)
	}
}

func TestReadWrite(t *testing.T) {
	in := "0 10\n-5 3\n\n4096 1\n"
	entries, err := Read(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Entry{{0, 10}, {-5, 3}, {4096, 1}}, entries)

	var out bytes.Buffer
	require.NoError(t, Write(&out, entries))
	assert.Equal(t, "0 10\n-5 3\n4096 1\n", out.String())

	// 0 is free, -5 costs one per use and 4096 two.
	assert.Equal(t, uint64(3+2), Total(entries))
}

func TestReadMalformed(t *testing.T) {
	for _, in := range []string{"1\n", "1 2 3\n", "x 1\n", "1 -1\n", "1 4294967296\n"} {
		_, err := Read(strings.NewReader(in))
		assert.ErrorIs(t, err, ErrMalformed, "input %q", in)
	}
}

func TestFromHistogram(t *testing.T) {
	entries := FromHistogram(map[int64]uint64{7: 2, -3: 1, 100: 1 << 40})
	assert.Equal(t, []Entry{{-3, 1}, {7, 2}, {100, 1<<32 - 1}}, entries)
}

func TestThresholdAndTop(t *testing.T) {
	entries := []Entry{{1, 500}, {2, 1}, {3, 1}, {4, 498}}

	assert.Equal(t, []uint64{1, 2, 500, 1000}, Cumulative(entries))

	// 0.1% of 1000 uses is just above one use, so the second rare constant reaches it.
	pos, count, ok := Threshold(entries, DefaultRatio)
	require.True(t, ok)
	assert.Equal(t, 1, pos)
	assert.Equal(t, uint32(1), count)

	pos, count, ok = Threshold(entries, 0.5)
	require.True(t, ok)
	assert.Equal(t, 2, pos)
	assert.Equal(t, uint32(498), count)

	_, _, ok = Threshold(nil, DefaultRatio)
	assert.False(t, ok)

	assert.Equal(t, []Entry{{4, 498}, {1, 500}}, Top(entries, 2))
	assert.Len(t, Top(entries, 16), 4)
}

func TestRenderChart(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RenderChart(&out, []Entry{{0, 4}, {9, 1}}))
	assert.Contains(t, out.String(), "Constant distribution")
}
