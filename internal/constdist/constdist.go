// Package constdist reads, writes and summarises histograms of materialized integer
// constants collected over a corpus.
package constdist

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// DefaultRatio is the share of all constant uses the threshold has to cover.
const DefaultRatio = 0.999

var ErrMalformed = errors.New("constdist: malformed line")

type Entry struct {
	Value int64
	Count uint32
}

// Read parses whitespace separated "<value> <count>" pairs, one per line. Blank lines
// are ignored.
func Read(r io.Reader) ([]Entry, error) {
	var entries []Entry
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w %d: %q", ErrMalformed, line, sc.Text())
		}
		v, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w %d: %w", ErrMalformed, line, err)
		}
		c, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w %d: %w", ErrMalformed, line, err)
		}
		entries = append(entries, Entry{Value: v, Count: uint32(c)})
	}
	return entries, sc.Err()
}

// FromHistogram converts a value histogram into entries ordered by value. Counts
// above the format's range are clamped.
func FromHistogram(h map[int64]uint64) []Entry {
	entries := make([]Entry, 0, len(h))
	for v, n := range h {
		if n > 1<<32-1 {
			n = 1<<32 - 1
		}
		entries = append(entries, Entry{Value: v, Count: uint32(n)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Value < entries[j].Value })
	return entries
}

func Write(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		fmt.Fprintf(bw, "%d %d\n", e.Value, e.Count)
	}
	return bw.Flush()
}

// MatCost is the number of instructions needed to build v in a register: free for 0
// and 1, one for a 12-bit value, two for a 32-bit value, otherwise a constant pool load.
func MatCost(v int64) uint64 {
	switch {
	case v == 0 || v == 1:
		return 0
	case v >= -1<<11 && v < 1<<11:
		return 1
	case v >= -1<<31 && v < 1<<31:
		return 2
	}
	return 4
}

// Total is the materialization cost of every use in entries.
func Total(entries []Entry) uint64 {
	var sum uint64
	for _, e := range entries {
		sum += MatCost(e.Value) * uint64(e.Count)
	}
	return sum
}

// byCount returns a copy of entries in ascending count order, ties keeping their
// original order.
func byCount(entries []Entry) []Entry {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count < sorted[j].Count })
	return sorted
}

// Cumulative returns the running sum of counts in ascending count order.
func Cumulative(entries []Entry) []uint64 {
	sorted := byCount(entries)
	cum := make([]uint64, len(sorted))
	var sum uint64
	for i, e := range sorted {
		sum += uint64(e.Count)
		cum[i] = sum
	}
	return cum
}

// Threshold finds the first position, in ascending count order, where the cumulative
// count reaches (1-ratio) of the total. Every entry from there on is frequent enough to
// be among the constants covering ratio of all uses. It returns the position and the
// count of the entry there, or ok false when entries is empty.
func Threshold(entries []Entry, ratio float64) (pos int, count uint32, ok bool) {
	cum := Cumulative(entries)
	if len(cum) == 0 {
		return 0, 0, false
	}
	limit := float64(cum[len(cum)-1]) * (1 - ratio)
	sorted := byCount(entries)
	for i, c := range cum {
		if float64(c) >= limit {
			return i, sorted[i].Count, true
		}
	}
	return 0, sorted[0].Count, true
}

// Top returns the n most frequent entries in ascending count order.
func Top(entries []Entry, n int) []Entry {
	sorted := byCount(entries)
	if n < len(sorted) {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}

// RenderChart writes an HTML line chart of the cumulative distribution, the x axis
// being the fraction of distinct constants.
func RenderChart(w io.Writer, entries []Entry) error {
	cum := Cumulative(entries)
	xs := make([]string, len(cum))
	ys := make([]opts.LineData, len(cum))
	for i, c := range cum {
		x := 0.0
		if len(cum) > 1 {
			x = float64(i) / float64(len(cum)-1)
		}
		xs[i] = strconv.FormatFloat(x, 'f', 4, 64)
		ys[i] = opts.LineData{Value: c}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Constant distribution",
			Subtitle: fmt.Sprintf("%d distinct constants, materialization cost %d", len(entries), Total(entries)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "constants"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "uses"}),
	)
	line.SetXAxis(xs).AddSeries("cumulative uses", ys)
	return line.Render(w)
}
