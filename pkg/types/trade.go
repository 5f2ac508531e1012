package types

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// LegResult is the realized outcome of one market order as reported by the
// venue, after the order reached a terminal state.
//
// FilledBase is the base currency amount transacted. CostQuote is the quote
// currency amount transacted: spent on a buy, received on a sell. Adapters
// must normalize to this contract whatever the venue's native fields are
// called; the sequencer's cross-leg accounting depends on it.
type LegResult struct {
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	FilledBase  decimal.Decimal `json:"filled_base"`
	CostQuote   decimal.Decimal `json:"cost_quote"`
	FeePaid     decimal.Decimal `json:"fee_paid"`
	FeeCurrency string          `json:"fee_currency"`
	WallclockMS int64           `json:"wallclock_ms"`
	OrderID     string          `json:"order_id,omitempty"`
}

// AmountLedger holds the realized output amount of each completed leg.
// Slot i is denominated in the currency the leg produced, i.e. C_{(i+1) mod 3}
// of the cycle. It is created empty, appended exactly once per completed leg
// and read back by the next leg and the final profit computation.
type AmountLedger struct {
	vals []decimal.Decimal
}

// NewAmountLedger returns an empty three-slot ledger.
func NewAmountLedger() *AmountLedger {
	return &AmountLedger{vals: make([]decimal.Decimal, 0, 3)}
}

// Append records the realized output of the next leg.
func (l *AmountLedger) Append(v decimal.Decimal) error {
	if len(l.vals) >= 3 {
		return errors.New("ledger already holds three legs")
	}

	l.vals = append(l.vals, v)

	return nil
}

// Len reports how many legs have completed.
func (l *AmountLedger) Len() int {
	return len(l.vals)
}

// At returns the realized output of leg i (0-based). Reading an unpopulated
// slot is a programming error and returns zero.
func (l *AmountLedger) At(i int) decimal.Decimal {
	if i < 0 || i >= len(l.vals) {
		return decimal.Zero
	}

	return l.vals[i]
}

// Values returns a copy of the populated slots, for records.
func (l *AmountLedger) Values() []decimal.Decimal {
	out := make([]decimal.Decimal, len(l.vals))
	copy(out, l.vals)

	return out
}

// TradeStatus is the lifecycle state of a TradeRecord.
type TradeStatus string

const (
	StatusAttempt TradeStatus = "ATTEMPT"
	StatusSuccess TradeStatus = "SUCCESS"
	StatusFailed  TradeStatus = "FAILED"
)

// TradeRecord is the durable account of one execution attempt. A record is
// created with status ATTEMPT at admission and terminal-mutated exactly once
// to SUCCESS or FAILED. Pre-admission aborts produce a single FAILED record
// with FailedLegIndex 0.
type TradeRecord struct {
	TradeID           string          `json:"trade_id"`
	TS                time.Time       `json:"ts"`
	Exchange          string          `json:"exchange"`
	Cycle             [3]string       `json:"cycle"`
	Path              string          `json:"path"`
	Status            TradeStatus     `json:"status"`
	Initial           decimal.Decimal `json:"initial"`
	Final             decimal.Decimal `json:"final"`
	ExpectedProfitPct float64         `json:"expected_profit_pct"`
	ActualProfit      decimal.Decimal `json:"actual_profit"`
	ActualProfitPct   float64         `json:"actual_profit_pct"`
	Fees              decimal.Decimal `json:"fees"`
	DurationMS        int64           `json:"duration_ms"`

	// Failure detail. Ledger carries the realized prefix so the operator can
	// reconcile a partially traversed cycle; Desynchronized flags that the
	// account is holding a non-funding currency.
	ErrorKind          ErrorKind         `json:"error_kind,omitempty"`
	Error              string            `json:"error,omitempty"`
	FailedLegIndex     int               `json:"failed_leg_index,omitempty"`
	Ledger             []decimal.Decimal `json:"ledger,omitempty"`
	Desynchronized     bool              `json:"desynchronized,omitempty"`
	CancelledPostAdmit bool              `json:"cancelled_post_admit,omitempty"`
	DeadlineExceeded   bool              `json:"deadline_exceeded,omitempty"`
}
