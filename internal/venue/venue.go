// Package venue defines the adapter contract between the execution engine and
// one centralized exchange. The engine is written against the Adapter
// interface; per-exchange implementations normalize venue quirks (signing,
// order field names, error codes) to this contract.
package venue

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mserran2/triarb/pkg/cache"
	"github.com/mserran2/triarb/pkg/types"
)

// Adapter is the uniform interface to one exchange.
//
// Quantity semantics for PlaceMarketOrder are the engine-wide contract: on a
// buy, quantity is the QUOTE currency amount to spend; on a sell, quantity is
// the BASE currency amount to sell. The returned LegResult reports realized
// amounts after the order reached a terminal state, with CostQuote being the
// quote currency received on a sell and spent on a buy.
type Adapter interface {
	// Name returns the venue identifier ("kucoin").
	Name() string

	// GetOrderbook fetches a point-in-time book for one symbol. It must
	// return at least top-of-book on both sides while the market is open;
	// an empty side maps to a NO_LIQUIDITY venue error. Safe to call from
	// concurrent goroutines.
	GetOrderbook(ctx context.Context, symbol string, depth int) (*types.OrderbookSnapshot, error)

	// PlaceMarketOrder submits a market order and blocks until the venue
	// reports a terminal state (filled, partially filled or rejected).
	PlaceMarketOrder(ctx context.Context, symbol string, side types.Side, quantity decimal.Decimal) (*types.LegResult, error)

	// SyncTime recomputes the server/client clock offset and stores it for
	// subsequent request signing. Called before each cycle's order burst
	// and again on a CLOCK_SKEW error.
	SyncTime(ctx context.Context) (driftMS int64, err error)

	// SymbolInfo reports the venue's trading rules for a symbol.
	SymbolInfo(ctx context.Context, symbol string) (*SymbolInfo, error)

	// Balance reports the available amount of one currency on the trade
	// account.
	Balance(ctx context.Context, currency string) (decimal.Decimal, error)

	// FeeSchedule reports the taker fee model this adapter was configured
	// with, including the venue's fee-discount token.
	FeeSchedule() FeeSchedule

	// Close releases adapter resources.
	Close() error
}

// SymbolInfo holds the trading rules for one symbol: the increments order
// quantities must land on and the venue minimums below which a market order
// is rejected.
type SymbolInfo struct {
	Symbol         string
	BaseCurrency   string
	QuoteCurrency  string
	PriceIncrement decimal.Decimal // tick size
	BaseIncrement  decimal.Decimal // lot step for base quantities
	QuoteIncrement decimal.Decimal // step for quote (funds) quantities
	BaseMinSize    decimal.Decimal // minimum base quantity on a sell
	MinFunds       decimal.Decimal // minimum notional on a buy
	EnableTrading  bool
}

// FeeSchedule is the taker fee model for one venue.
type FeeSchedule struct {
	PerLegFeePct float64 // taker fee per leg, in percent (0.08 = 0.08%)
	FeeToken     string  // venue-native discount token, "" when none
	FeeDiscount  float64 // fraction taken off the fee when the token is active
}

// Config holds everything a venue adapter needs. Credentials stay here; the
// engine never sees them.
type Config struct {
	Exchange      string
	BaseURL       string
	APIKey        string
	APISecret     string
	APIPassphrase string
	KeyVersion    string

	HTTPTimeout       time.Duration
	TimeSyncBufferMS  int64
	OrderPollInterval time.Duration
	OrderPollTimeout  time.Duration

	Fees FeeSchedule

	// MetadataCache holds SymbolInfo between cycles. Optional.
	MetadataCache cache.Cache

	Logger *zap.Logger
}

// New builds the adapter for the configured exchange id.
func New(cfg *Config) (Adapter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	switch cfg.Exchange {
	case "kucoin":
		return NewKuCoin(cfg)
	default:
		return nil, fmt.Errorf("unsupported exchange %q", cfg.Exchange)
	}
}

// quantizeDown floors q to an exact multiple of step. Exchanges reject
// quantities that do not land on the symbol's increment, and flooring never
// spends more than the caller holds.
func quantizeDown(q, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return q
	}

	whole, _ := q.QuoRem(step, 0)

	return whole.Mul(step)
}
