package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mserran2/triarb/internal/venue"
	"github.com/mserran2/triarb/pkg/config"
	"github.com/mserran2/triarb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var bookCmd = &cobra.Command{
	Use:   "book <SYMBOL>",
	Short: "Fetch the orderbook for a symbol",
	Long: `Fetches a point-in-time orderbook from the venue REST API and prints
both sides best-first. With --watch the book is re-fetched on an interval
until interrupted. Useful for eyeballing depth before sizing a cycle.

Example:
  triarb book KCS-USDT
  triarb book KCS-BTC --depth 10 --watch --interval 2s`,
	Args: cobra.ExactArgs(1),
	RunE: runBook,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(bookCmd)
	bookCmd.Flags().IntP("depth", "d", 10, "Levels to fetch per side")
	bookCmd.Flags().BoolP("watch", "w", false, "Re-fetch on an interval until interrupted")
	bookCmd.Flags().DurationP("interval", "i", time.Second, "Watch interval")
	bookCmd.Flags().BoolP("json", "j", false, "Output raw JSON snapshots")
}

func runBook(cmd *cobra.Command, args []string) error {
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

	// Get flags
	depth, _ := cmd.Flags().GetInt("depth")
	watch, _ := cmd.Flags().GetBool("watch")
	interval, _ := cmd.Flags().GetDuration("interval")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	symbol := args[0]
	if _, _, err := types.ParseSymbol(symbol); err != nil {
		return fmt.Errorf("parse symbol: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	fetch := func() error {
		snap, err := adapter.GetOrderbook(ctx, symbol, depth)
		if err != nil {
			return fmt.Errorf("fetch orderbook: %w", err)
		}

		if jsonOutput {
			jsonBytes, _ := json.MarshalIndent(snap, "", "  ")
			fmt.Println(string(jsonBytes))
			return nil
		}

		printBookSnapshot(os.Stdout, snap)

		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	if !watch {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nShutting down...")
			return nil
		case <-ticker.C:
			if err := fetch(); err != nil {
				return err
			}
		}
	}
}

// printBookSnapshot renders both sides of the book best-first, bids on the
// left, with a spread line computed from top-of-book.
func printBookSnapshot(out io.Writer, snap *types.OrderbookSnapshot) {
	fmt.Fprintf(out, "=== %s @ %s ===\n", snap.Symbol, snap.CapturedAt.Format("15:04:05.000"))

	if bid, ask, ok := snap.TopOfBook(); ok {
		mid := (bid.Price + ask.Price) / 2
		spreadPct := 0.0

		if mid > 0 {
			spreadPct = (ask.Price - bid.Price) / mid * 100
		}

		fmt.Fprintf(out, "Spread: %g / %g (%.4f%%)\n\n", bid.Price, ask.Price, spreadPct)
	} else {
		fmt.Fprintf(out, "Spread: one side empty\n\n")
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(w, "\tBID SIZE\tBID PRICE\tASK PRICE\tASK SIZE\t\n")

	rows := len(snap.Bids)
	if len(snap.Asks) > rows {
		rows = len(snap.Asks)
	}

	for i := 0; i < rows; i++ {
		bidSize, bidPrice, askPrice, askSize := "", "", "", ""

		if i < len(snap.Bids) {
			bidSize = fmt.Sprintf("%g", snap.Bids[i].Size)
			bidPrice = fmt.Sprintf("%g", snap.Bids[i].Price)
		}

		if i < len(snap.Asks) {
			askPrice = fmt.Sprintf("%g", snap.Asks[i].Price)
			askSize = fmt.Sprintf("%g", snap.Asks[i].Size)
		}

		fmt.Fprintf(w, "[%d]\t%s\t%s\t%s\t%s\t\n", i+1, bidSize, bidPrice, askPrice, askSize)
	}

	w.Flush()
	fmt.Fprintln(out)
}
