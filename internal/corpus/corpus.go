// Package corpus runs the cost model over a directory of optimized modules and
// produces the per-file cost table.
package corpus

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dtcxzyw/r6/internal/costmodel"
	"github.com/dtcxzyw/r6/internal/ir/llparse"
	"github.com/dtcxzyw/r6/pkg/log"
)

type Options struct {
	Scan ScanOptions
	// Jobs bounds the number of files processed at once, GOMAXPROCS when zero.
	Jobs int
	// Cache is optional.
	Cache *Cache
	// Progress receives the running file counter, nothing is written when nil.
	Progress io.Writer
}

// Result is the outcome of one run.
type Result struct {
	Table Table
	// Constants is the histogram of materialized integer constants over all files.
	Constants map[int64]uint64
	Inputs    int
	Skipped   int
	CacheHits int
}

type Driver struct {
	model *costmodel.Model
	opts  Options
}

func NewDriver(m *costmodel.Model, opts Options) *Driver {
	if opts.Jobs <= 0 {
		opts.Jobs = runtime.GOMAXPROCS(0)
	}
	if opts.Scan.Marker == "" {
		opts.Scan.Marker = DefaultMarker
	}
	if opts.Scan.Ext == "" {
		opts.Scan.Ext = DefaultExt
	}
	return &Driver{model: m, opts: opts}
}

// Run estimates every input under root. Files that fail to parse are logged and left
// out of the table. Any other failure aborts the run.
func (d *Driver) Run(ctx context.Context, root string) (*Result, error) {
	inputs, err := Scan(root, d.opts.Scan)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	log.Corpus.Info().Msgf("Input files: %d", len(inputs))

	res := &Result{
		Table:     make(Table, len(inputs)),
		Constants: make(map[int64]uint64),
		Inputs:    len(inputs),
	}
	var mu sync.Mutex
	prog := &progress{w: d.opts.Progress}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Jobs)
	for _, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s, hit, err := d.estimateFile(in)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if s == nil {
				res.Skipped++
				return nil
			}
			if hit {
				res.CacheHits++
			}
			res.Table[in.Name] = s.Cost
			for v, n := range s.Constants {
				res.Constants[v] += n
			}
			prog.step()
			return nil
		})
	}
	err = g.Wait()
	prog.done()
	if err != nil {
		return nil, err
	}

	if d.opts.Cache != nil {
		if err := d.opts.Cache.Flush(); err != nil {
			return nil, fmt.Errorf("flushing cache: %w", err)
		}
	}
	log.Corpus.Debug().Int("estimated", len(res.Table)).Int("skipped", res.Skipped).
		Int("cache_hits", res.CacheHits).Msg("corpus estimated")
	return res, nil
}

// estimateFile returns nil without error for a module that does not parse.
func (d *Driver) estimateFile(in Input) (*costmodel.Summary, bool, error) {
	data, err := os.ReadFile(in.Path)
	if err != nil {
		return nil, false, err
	}

	var key []byte
	if c := d.opts.Cache; c != nil {
		key = c.Key(data)
		s, ok, err := c.Lookup(key)
		if err != nil {
			return nil, false, fmt.Errorf("cache lookup for %s: %w", in.Name, err)
		}
		if ok {
			return &s, true, nil
		}
	}

	mod, err := llparse.Parse(in.Path, data)
	if err != nil {
		log.Corpus.Warn().Err(err).Str("file", in.Path).Msg("skipping module that does not parse")
		return nil, false, nil
	}
	s := d.model.EstimateModule(mod)

	if key != nil {
		if err := d.opts.Cache.Store(key, s); err != nil {
			return nil, false, fmt.Errorf("cache store for %s: %w", in.Name, err)
		}
	}
	return &s, false, nil
}

type progress struct {
	w io.Writer
	n int
}

func (p *progress) step() {
	if p.w == nil {
		return
	}
	p.n++
	fmt.Fprintf(p.w, "\rProgress: %d", p.n)
}

func (p *progress) done() {
	if p.w == nil || p.n == 0 {
		return
	}
	fmt.Fprintln(p.w)
}
