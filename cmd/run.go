package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mserran2/triarb/internal/app"
	"github.com/mserran2/triarb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the execution engine",
	Long: `Starts the execution engine, which will:
1. Connect to the configured exchange and sync its clock
2. Expose the opportunity intake and operator API over HTTP
3. Revalidate and execute submitted cycles, one at a time
4. Record every attempt to the configured sinks

The engine trades real funds when venue credentials are set. All
configuration comes from environment variables.`,
	RunE: runEngine,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(runCmd)
}

func runEngine(_ *cobra.Command, _ []string) error {
	// Load config
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create logger
	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	application, err := app.New(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	// Run app
	err = application.Run()
	if err != nil {
		return fmt.Errorf("run app: %w", err)
	}

	return nil
}
