package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dtcxzyw/r6/internal/isa"
	"github.com/dtcxzyw/r6/pkg/log"
)

func newEncodeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "encode",
		Short: "Assign prefix-free opcodes for the selected instruction set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := g.params()
			if err != nil {
				return err
			}
			ops := isa.Opcodes(p)
			log.ISA.Info().Str("isa", p.Name).Int("opcodes", len(ops)).Msg("assigning prefixes")

			encs, err := isa.AssignPrefixes(ops)
			if err != nil {
				return err
			}
			if !isa.Distinct(encs) {
				return fmt.Errorf("%w: assignment is not prefix-free", isa.ErrUnsatisfiable)
			}
			fmt.Fprint(cmd.OutOrStdout(), isa.FormatEncodings(encs))
			return nil
		},
	}
}
