package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mserran2/triarb/internal/engine"
	"github.com/mserran2/triarb/internal/recorder"
	"github.com/mserran2/triarb/internal/venue"
	"github.com/mserran2/triarb/pkg/config"
	"github.com/mserran2/triarb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var executeCmd = &cobra.Command{
	Use:   "execute <C0,C1,C2>",
	Short: "Execute a single cycle against the configured venue",
	Long: `Runs one triangular cycle end to end: probes the three books,
revalidates profitability with taker fees priced in, and places the legs as
market orders. The attempt is recorded to the console sink.

Legs are derived from the currency order: buy C1 with C0, sell C1 for C2,
sell C2 for C0. Use --steps when the venue lists a pair the other way round.

Examples:
  triarb execute USDT,KCS,BTC
  triarb execute USDT,KCS,BTC --amount 50 --confirm
  triarb execute USDT,ETH,BTC --steps "ETH-USDT:buy,ETH-BTC:sell,BTC-USDT:sell"`,
	Args: cobra.ExactArgs(1),
	RunE: runExecute,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(executeCmd)
	executeCmd.Flags().StringP("amount", "a", "", "Funding amount in C0 (default: FUNDING_CAP)")
	executeCmd.Flags().Float64P("threshold", "t", -1, "Minimum net profit percent (default: REVALIDATION_THRESHOLD_PCT)")
	executeCmd.Flags().StringP("steps", "s", "", "Explicit legs as SYMBOL:side triples, comma separated")
	executeCmd.Flags().BoolP("confirm", "c", false, "Hold the cycle for interactive confirmation after revalidation")
}

func runExecute(cmd *cobra.Command, args []string) error {
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
	amountFlag, _ := cmd.Flags().GetString("amount")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	stepsSpec, _ := cmd.Flags().GetString("steps")
	confirm, _ := cmd.Flags().GetBool("confirm")

	cycle, err := parseCycle(args[0])
	if err != nil {
		return err
	}

	amount := cfg.FundingCap

	if amountFlag != "" {
		amount, err = decimal.NewFromString(amountFlag)
		if err != nil {
			return fmt.Errorf("parse amount %q: %w", amountFlag, err)
		}
	}

	if threshold < 0 {
		threshold = cfg.RevalidationThresholdPct
	}

	opp, err := buildOpportunity(cfg.Exchange, cycle, amount, stepsSpec)
	if err != nil {
		return err
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

	rec := recorder.New(&recorder.Config{
		Sink:   recorder.NewConsoleSink(logger),
		Logger: logger,
	})

	controller, err := engine.New(&engine.Config{
		Venue:    adapter,
		Recorder: rec,

		FundingCurrency: cycle[0],
		FundingCap:      amount,
		ThresholdPct:    threshold,

		OrderbookDepth: cfg.OrderbookDepth,
		ParallelProbe:  cfg.ParallelProbe,
		ProbeDeadline:  cfg.ProbeDeadline,
		CycleDeadline:  cfg.CycleDeadline,

		RequireManualConfirm: confirm,
		ConfirmTimeout:       60 * time.Second,

		RateBudgetPerMin: cfg.RateBudgetPerMin,
		FeeTokenRefresh:  cfg.FeeTokenRefresh,

		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	controller.Start(ctx)

	fmt.Printf("=== Cycle Execution ===\n\n")
	fmt.Printf("Venue: %s\n", cfg.Exchange)
	fmt.Printf("Cycle: %s\n", opp.Path())
	fmt.Printf("Funding: %s %s\n", amount, cycle[0])
	fmt.Printf("Threshold: %.3f%% net\n\n", threshold)

	if confirm {
		go promptConfirmation(controller)
	}

	outcome, trade := controller.Submit(ctx, opp)

	printOutcome(outcome, trade)

	return nil
}

// promptConfirmation reads one line from stdin and delivers it as the
// operator token. The engine ignores the prompt if the cycle was already
// refused before confirmation.
func promptConfirmation(controller *engine.Controller) {
	fmt.Printf("Revalidation passed. Press enter to confirm execution: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return
	}

	token := strings.TrimSpace(line)
	if token == "" {
		token = "cli-operator"
	}

	if err := controller.Confirm(token); err != nil {
		fmt.Printf("confirmation not delivered: %v\n", err)
	}
}

func printOutcome(outcome engine.Outcome, trade *types.TradeRecord) {
	fmt.Printf("\n=== Result ===\n\n")
	fmt.Printf("Outcome: %s\n", outcome)

	if trade == nil {
		return
	}

	fmt.Printf("Trade ID: %s\n", trade.TradeID)
	fmt.Printf("Duration: %dms\n", trade.DurationMS)

	switch trade.Status {
	case types.StatusSuccess:
		fmt.Printf("Initial: %s\n", trade.Initial)
		fmt.Printf("Final: %s\n", trade.Final)
		fmt.Printf("Profit: %s (%.4f%%)\n", trade.ActualProfit, trade.ActualProfitPct)
		fmt.Printf("Fees (reported separately): %s\n", trade.Fees)
	case types.StatusFailed:
		fmt.Printf("Error kind: %s\n", trade.ErrorKind)
		fmt.Printf("Error: %s\n", trade.Error)

		if trade.FailedLegIndex > 0 {
			fmt.Printf("Failed leg: %d\n", trade.FailedLegIndex)
		}

		if len(trade.Ledger) > 0 {
			fmt.Printf("Realized ledger: %s\n", formatLedger(trade.Ledger))
		}

		if trade.Desynchronized {
			fmt.Printf("\n⚠ Account is desynchronized: funds are parked in an intermediate currency.\n")
			fmt.Printf("Reconcile manually before submitting further cycles.\n")
		}
	case types.StatusAttempt:
		// Terminal records only; the attempt line never reaches here.
	}
}

func formatLedger(ledger []decimal.Decimal) string {
	parts := make([]string, len(ledger))
	for i, v := range ledger {
		parts[i] = v.String()
	}

	return strings.Join(parts, " -> ")
}

// parseCycle splits and normalizes an ordered currency triple like
// "USDT,KCS,BTC".
func parseCycle(raw string) ([3]string, error) {
	var cycle [3]string

	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return cycle, fmt.Errorf("cycle must be three comma separated currencies, got %q", raw)
	}

	for i, p := range parts {
		c := strings.ToUpper(strings.TrimSpace(p))
		if c == "" {
			return cycle, fmt.Errorf("cycle currency %d is empty", i)
		}

		cycle[i] = c
	}

	return cycle, nil
}

// buildOpportunity derives the three legs from the currency order, or parses
// an explicit --steps spec, and validates the closed-cycle invariant.
func buildOpportunity(exchange string, cycle [3]string, amount decimal.Decimal, stepsSpec string) (*types.Opportunity, error) {
	opp := &types.Opportunity{
		ID:            fmt.Sprintf("cli-%d", time.Now().UnixMilli()),
		Exchange:      exchange,
		Cycle:         cycle,
		InitialAmount: amount,
		DetectedAt:    time.Now(),
	}

	if stepsSpec == "" {
		opp.Steps = [3]types.Step{
			{Symbol: cycle[1] + "-" + cycle[0], Side: types.SideBuy},
			{Symbol: cycle[1] + "-" + cycle[2], Side: types.SideSell},
			{Symbol: cycle[2] + "-" + cycle[0], Side: types.SideSell},
		}
	} else {
		steps, err := parseSteps(stepsSpec)
		if err != nil {
			return nil, err
		}

		opp.Steps = steps
	}

	err := opp.Validate()
	if err != nil {
		return nil, fmt.Errorf("cycle does not close: %w", err)
	}

	return opp, nil
}

// parseSteps parses "KCS-USDT:buy,KCS-BTC:sell,BTC-USDT:sell".
func parseSteps(spec string) ([3]types.Step, error) {
	var steps [3]types.Step

	parts := strings.Split(spec, ",")
	if len(parts) != 3 {
		return steps, fmt.Errorf("steps must be three comma separated legs, got %q", spec)
	}

	for i, p := range parts {
		fields := strings.Split(strings.TrimSpace(p), ":")
		if len(fields) != 2 {
			return steps, fmt.Errorf("leg %d must be SYMBOL:side, got %q", i+1, p)
		}

		side := types.Side(strings.ToLower(strings.TrimSpace(fields[1])))
		if side != types.SideBuy && side != types.SideSell {
			return steps, fmt.Errorf("leg %d side must be buy or sell, got %q", i+1, fields[1])
		}

		steps[i] = types.Step{
			Symbol: strings.ToUpper(strings.TrimSpace(fields[0])),
			Side:   side,
		}
	}

	return steps, nil
}
