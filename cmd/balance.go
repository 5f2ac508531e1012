package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mserran2/triarb/internal/venue"
	"github.com/mserran2/triarb/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Check trade account balances on the venue",
	Long: `Displays the available balance for each requested currency, clock
drift against the venue, and whether the fee-discount token is funded.

Also compares the funding currency balance against FUNDING_CAP so you can see
at a glance whether the engine can fund a full cycle.`,
	RunE: runBalanceSheet,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(balanceCmd)
	balanceCmd.Flags().StringP("currencies", "c", "", "Comma separated currencies (default: funding currency and fee token)")
}

func runBalanceSheet(cmd *cobra.Command, args []string) error {
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
	currenciesFlag, _ := cmd.Flags().GetString("currencies")

	currencies := balanceCurrencies(currenciesFlag, cfg.FundingCurrency, cfg.FeeToken)

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

		Fees: venue.FeeSchedule{
			PerLegFeePct: cfg.PerLegFeePct,
			FeeToken:     cfg.FeeToken,
			FeeDiscount:  cfg.FeeDiscount,
		},

		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create venue adapter: %w", err)
	}
	defer adapter.Close()

	fmt.Printf("=== Account Balance Sheet ===\n\n")
	fmt.Printf("Venue: %s\n", adapter.Name())

	// Balance endpoints are signed; sync the clock first and report drift
	// while we are at it.
	driftMS, err := adapter.SyncTime(ctx)
	if err != nil {
		return fmt.Errorf("sync venue time: %w", err)
	}

	fmt.Printf("Clock drift: %dms\n\n", driftMS)

	balances := make(map[string]decimal.Decimal, len(currencies))

	for _, c := range currencies {
		bal, err := adapter.Balance(ctx, c)
		if err != nil {
			return fmt.Errorf("get %s balance: %w", c, err)
		}

		balances[c] = bal
		fmt.Printf("%s Balance: %s\n", c, bal)
	}

	fmt.Println()

	if funding, ok := balances[cfg.FundingCurrency]; ok {
		if funding.GreaterThanOrEqual(cfg.FundingCap) {
			fmt.Printf("Funding: %s %s covers the %s cap ✅\n", funding, cfg.FundingCurrency, cfg.FundingCap)
		} else {
			fmt.Printf("Funding: %s %s is below the %s cap ❌\n", funding, cfg.FundingCurrency, cfg.FundingCap)
			fmt.Printf("Cycles will be sized down or rejected until the account is topped up.\n")
		}
	}

	if cfg.FeeToken != "" {
		if tok, ok := balances[cfg.FeeToken]; ok {
			if tok.IsPositive() {
				fmt.Printf("Fee token: %s funded, taker fees discounted %.0f%% ✅\n", cfg.FeeToken, cfg.FeeDiscount*100)
			} else {
				fmt.Printf("Fee token: %s empty, full taker fee applies\n", cfg.FeeToken)
			}
		}
	}

	return nil
}

// balanceCurrencies resolves the currency list: an explicit flag wins,
// otherwise the funding currency plus the fee token, deduplicated.
func balanceCurrencies(flag, fundingCurrency, feeToken string) []string {
	seen := make(map[string]bool)

	var out []string

	add := func(c string) {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || seen[c] {
			return
		}

		seen[c] = true

		out = append(out, c)
	}

	if flag != "" {
		for _, c := range strings.Split(flag, ",") {
			add(c)
		}

		sort.Strings(out)

		return out
	}

	add(fundingCurrency)
	add(feeToken)

	return out
}
