package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is filled in at build time via -ldflags; empty when built with
// a plain "go build".
var Version string

var rootCmd = &cobra.Command{
	Use:   "pathfinder",
	Short: "Static infeasible-path analysis over a control-flow graph.",
	Long: `pathfinder explores a control-flow graph's paths under abstract
interpretation, asks an SMT backend which ones are infeasible, and reports
the shortest witness for each.`,
}

// Execute adds every subcommand to rootCmd and runs it. Called once from
// main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug-level logging")
}
