// isacost estimates the dynamic instruction cost of LLVM IR modules on a candidate
// instruction set and assigns opcode prefixes for it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dtcxzyw/r6/internal/costmodel"
	"github.com/dtcxzyw/r6/internal/isa"
	"github.com/dtcxzyw/r6/pkg/log"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	isaName  string
	isaFile  string
	variant  string
	logLevel string
}

func (g *globalFlags) params() (isa.Params, error) {
	if g.isaFile != "" {
		return isa.Load(g.isaFile)
	}
	return isa.Revision(g.isaName)
}

func (g *globalFlags) model() (*costmodel.Model, error) {
	p, err := g.params()
	if err != nil {
		return nil, err
	}
	v, err := costmodel.ParseVariant(g.variant)
	if err != nil {
		return nil, err
	}
	log.ISA.Debug().Str("isa", p.Name).Str("variant", v.String()).Msg("cost model ready")
	return costmodel.New(p, v), nil
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "isacost",
		Short:         "Instruction set cost estimator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := log.ParseLogLevel(g.logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", g.logLevel, err)
			}
			log.Init(log.Options{LogLevel: level, Type: log.ConsoleLogger})
			return nil
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&g.isaName, "isa", isa.Rev1.Name, "built-in instruction set revision (rev1, rev2)")
	flags.StringVar(&g.isaFile, "isa-file", "", "YAML file with instruction set parameters, overrides --isa")
	flags.StringVar(&g.variant, "variant", costmodel.Reference.String(), "cost model variant (reference, legacy)")
	flags.StringVar(&g.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newEstimateCmd(g),
		newExplainCmd(g),
		newEncodeCmd(g),
		newConstDistCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
