package corpus

import (
	"bufio"
	"fmt"
	"io"
	"sort"
)

// Table maps report names to module costs.
type Table map[string]uint64

// Names returns the keys in lexicographic order.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for k := range t {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (t Table) Total() uint64 {
	var sum uint64
	for _, v := range t {
		sum += v
	}
	return sum
}

// WriteReport writes one "<name> <cost>" line per entry in name order followed by
// "Total <sum>".
func WriteReport(w io.Writer, t Table) error {
	bw := bufio.NewWriter(w)
	for _, name := range t.Names() {
		fmt.Fprintf(bw, "%s %d\n", name, t[name])
	}
	fmt.Fprintf(bw, "Total %d\n", t.Total())
	return bw.Flush()
}
