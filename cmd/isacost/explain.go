package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/dtcxzyw/r6/internal/costmodel"
	"github.com/dtcxzyw/r6/internal/ir/llparse"
)

func newExplainCmd(g *globalFlags) *cobra.Command {
	var function string

	cmd := &cobra.Command{
		Use:   "explain <file.ll>",
		Short: "Itemize the cost of the functions of one module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := g.model()
			if err != nil {
				return err
			}
			mod, err := llparse.ParseFile(args[0])
			if err != nil {
				return err
			}

			var breakdowns []costmodel.Breakdown
			for _, fn := range mod.Funcs {
				if fn.IsDeclaration() || (function != "" && fn.Name != function) {
					continue
				}
				breakdowns = append(breakdowns, m.Explain(fn))
			}
			if function != "" && len(breakdowns) == 0 {
				return fmt.Errorf("no function @%s with a body in %s", function, args[0])
			}
			fmt.Fprint(cmd.OutOrStdout(), explainTree(args[0], breakdowns).String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&function, "function", "f", "", "only explain this function")
	return cmd
}

// explainTree renders one branch per function holding its instruction charges and
// materialized values. Free instructions are listed too, they were visited.
func explainTree(name string, breakdowns []costmodel.Breakdown) treeprint.Tree {
	var total uint64
	for _, b := range breakdowns {
		total += b.Total
	}

	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("%s: %d", name, total))
	for _, b := range breakdowns {
		fb := tree.AddBranch(fmt.Sprintf("@%s: %d", b.Function, b.Total))
		for _, c := range b.Insts {
			fb.AddNode(fmt.Sprintf("%4d  %s", c.Cost, c))
		}
		if len(b.Materialized) == 0 {
			continue
		}
		mb := fb.AddBranch("materialized")
		for _, c := range b.Materialized {
			mb.AddNode(fmt.Sprintf("%4d  %s", c.Cost, c))
		}
	}
	return tree
}
