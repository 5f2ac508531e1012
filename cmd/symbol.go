package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mserran2/triarb/internal/venue"
	"github.com/mserran2/triarb/pkg/config"
	"github.com/mserran2/triarb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var symbolCmd = &cobra.Command{
	Use:   "symbol <SYMBOL>...",
	Short: "Show venue trading rules for symbols",
	Long: `Fetches and displays the venue's trading rules for one or more symbols:
price tick, lot step, venue minimums and whether trading is open. These are
the rules order sizing quantizes against, so check them when a cycle keeps
failing sizing.

Example:
  triarb symbol KCS-USDT KCS-BTC BTC-USDT`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSymbol,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(symbolCmd)
}

func runSymbol(cmd *cobra.Command, args []string) error {
	// Load .env
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found\n")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	for _, symbol := range args {
		if _, _, err := types.ParseSymbol(symbol); err != nil {
			return fmt.Errorf("parse symbol: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	adapter, err := venue.New(&venue.Config{
		Exchange:      cfg.Exchange,
		BaseURL:       cfg.VenueBaseURL,
		APIKey:        cfg.VenueAPIKey,
		APISecret:     cfg.VenueAPISecret,
		APIPassphrase: cfg.VenueAPIPassphrase,
		KeyVersion:    cfg.VenueKeyVersion,

		HTTPTimeout:       cfg.VenueHTTPTimeout,
		TimeSyncBufferMS:  cfg.TimeSyncBufferMS,
		OrderPollInterval: cfg.OrderPollInterval,
		OrderPollTimeout:  cfg.OrderPollTimeout,

		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create venue adapter: %w", err)
	}
	defer adapter.Close()

	fmt.Printf("Fetching trading rules from %s...\n\n", adapter.Name())

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SYMBOL\tBASE\tQUOTE\tTICK\tLOT STEP\tMIN BASE\tMIN FUNDS\tTRADING\n")
	fmt.Fprintf(w, "------\t----\t-----\t----\t--------\t--------\t---------\t-------\n")

	for _, symbol := range args {
		info, err := adapter.SymbolInfo(ctx, symbol)
		if err != nil {
			return fmt.Errorf("fetch rules for %s: %w", symbol, err)
		}

		trading := "✓"
		if !info.EnableTrading {
			trading = "✗ (suspended)"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			info.Symbol, info.BaseCurrency, info.QuoteCurrency,
			info.PriceIncrement, info.BaseIncrement,
			info.BaseMinSize, info.MinFunds, trading)
	}

	w.Flush()

	return nil
}
