package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "triarb",
	Short: "Triangular arbitrage execution engine",
	Long: `Execution engine for triangular arbitrage cycles on centralized
exchanges. It accepts detector opportunities over HTTP, revalidates them
against fresh orderbooks with taker fees priced in, executes the three legs
sequentially as market orders, and records every attempt.

The engine runs one cycle at a time. Opportunities arriving while a cycle is
in flight are discarded, not queued: a queued opportunity is a stale one.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	// Flags can be added here if needed
}
