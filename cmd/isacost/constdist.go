package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dtcxzyw/r6/internal/constdist"
)

func newConstDistCmd() *cobra.Command {
	var (
		chart string
		ratio float64
		top   int
	)

	cmd := &cobra.Command{
		Use:   "constdist <file>",
		Short: "Summarize a constant distribution written by estimate --const-dist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			entries, err := constdist.Read(f)
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Cost: %d\n", constdist.Total(entries))
			if pos, count, ok := constdist.Threshold(entries, ratio); ok {
				fmt.Fprintf(w, "%d %d\n", pos, count)
			}
			for _, e := range constdist.Top(entries, top) {
				fmt.Fprintf(w, "%d %d\n", e.Value, e.Count)
			}

			if chart == "" {
				return nil
			}
			out, err := os.Create(chart)
			if err != nil {
				return err
			}
			defer out.Close()
			if err := constdist.RenderChart(out, entries); err != nil {
				return fmt.Errorf("rendering chart: %w", err)
			}
			return out.Close()
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&chart, "chart", "", "write an HTML chart of the cumulative distribution")
	flags.Float64Var(&ratio, "ratio", constdist.DefaultRatio, "share of uses the threshold covers")
	flags.IntVar(&top, "top", 16, "number of most frequent constants listed")
	return cmd
}
