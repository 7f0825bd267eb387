package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dtcxzyw/r6/internal/constdist"
	"github.com/dtcxzyw/r6/internal/corpus"
	"github.com/dtcxzyw/r6/pkg/db/pebble"
	"github.com/dtcxzyw/r6/pkg/log"
)

func newEstimateCmd(g *globalFlags) *cobra.Command {
	var (
		output    string
		constDist string
		cacheDir  string
		jobs      int
	)
	scan := corpus.DefaultScanOptions()

	cmd := &cobra.Command{
		Use:   "estimate <dir>",
		Short: "Estimate the cost of every optimized module under a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := g.model()
			if err != nil {
				return err
			}

			// The report file is created up front so an unwritable destination fails
			// before any module is parsed.
			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating report: %w", err)
			}
			defer out.Close()

			opts := corpus.Options{Scan: scan, Jobs: jobs, Progress: os.Stderr}
			if cacheDir != "" {
				store, err := pebble.Open(cacheDir)
				if err != nil {
					return fmt.Errorf("opening cache %s: %w", cacheDir, err)
				}
				defer store.Close()
				opts.Cache = corpus.NewCache(store, m)
				if n, err := opts.Cache.Len(); err == nil {
					log.Corpus.Debug().Int("entries", n).Str("dir", cacheDir).Msg("cache opened")
				}
			}

			res, err := corpus.NewDriver(m, opts).Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := corpus.WriteReport(out, res.Table); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			if err := out.Close(); err != nil {
				return fmt.Errorf("writing report: %w", err)
			}
			log.Corpus.Info().Uint64("total", res.Table.Total()).Int("modules", len(res.Table)).
				Int("skipped", res.Skipped).Str("output", output).Msg("report written")

			if constDist != "" {
				if err := writeConstDist(constDist, res.Constants); err != nil {
					return err
				}
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "cost.txt", "report file")
	flags.IntVarP(&jobs, "jobs", "j", 0, "modules estimated in parallel, 0 for one per CPU")
	flags.StringVar(&cacheDir, "cache-dir", "", "directory of the persistent cost cache, disabled when empty")
	flags.StringVar(&scan.Marker, "marker", corpus.DefaultMarker, "path segment that selects input modules")
	flags.StringVar(&scan.Ext, "ext", corpus.DefaultExt, "extension of input modules")
	flags.StringVar(&constDist, "const-dist", "", "also write the distribution of materialized constants to this file")
	return cmd
}

func writeConstDist(path string, h map[int64]uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating constant distribution: %w", err)
	}
	defer f.Close()
	if err := constdist.Write(f, constdist.FromHistogram(h)); err != nil {
		return fmt.Errorf("writing constant distribution: %w", err)
	}
	return f.Close()
}
