package sequencer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mserran2/triarb/pkg/types"
)

func testOpportunity() *types.Opportunity {
	return &types.Opportunity{
		Exchange: "kucoin",
		Cycle:    [3]string{"USDT", "KCS", "BTC"},
		Steps: [3]types.Step{
			{Symbol: "KCS-USDT", Side: types.SideBuy},
			{Symbol: "KCS-BTC", Side: types.SideSell},
			{Symbol: "BTC-USDT", Side: types.SideSell},
		},
		InitialAmount: decimal.NewFromInt(20),
	}
}

func leg(side types.Side, filledBase, costQuote, fee string) *types.LegResult {
	return &types.LegResult{
		Side:        side,
		FilledBase:  decimal.RequireFromString(filledBase),
		CostQuote:   decimal.RequireFromString(costQuote),
		FeePaid:     decimal.RequireFromString(fee),
		FeeCurrency: "KCS",
	}
}

func TestRun_HappyPath(t *testing.T) {
	v := newScriptedVenue(
		scriptOK(leg(types.SideBuy, "2.0", "20", "0.00128")),
		scriptOK(leg(types.SideSell, "2.0", "0.0004", "0.00128")),
		scriptOK(leg(types.SideSell, "0.0004", "20.08", "0.00128")),
	)
	s := New(&Config{Venue: v, Logger: zap.NewNop()})

	res, err := s.Run(context.Background(), testOpportunity(), decimal.NewFromInt(20))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Quantity passed per side: quote to spend on the buy, base to sell
	// on the sells, each carried from the previous leg's realized output.
	wantQty := []string{"20", "2", "0.0004"}
	for i, o := range v.placed() {
		if o.qty.String() != wantQty[i] {
			t.Fatalf("leg %d quantity: got %s, want %s", i+1, o.qty, wantQty[i])
		}
	}

	wantLedger := []string{"2", "0.0004", "20.08"}
	for i, v := range res.Ledger.Values() {
		if v.String() != wantLedger[i] {
			t.Fatalf("ledger[%d]: got %s, want %s", i, v, wantLedger[i])
		}
	}

	if !res.Final.Equal(decimal.RequireFromString("20.08")) {
		t.Fatalf("final: got %s, want 20.08", res.Final)
	}

	if !res.Fees.Equal(decimal.RequireFromString("0.00384")) {
		t.Fatalf("fees: got %s, want 0.00384", res.Fees)
	}
}

func TestRun_MiddleBuyCreditsFilledBase(t *testing.T) {
	opp := testOpportunity()
	opp.Cycle = [3]string{"USDT", "BTC", "KCS"}
	opp.Steps = [3]types.Step{
		{Symbol: "BTC-USDT", Side: types.SideBuy},
		{Symbol: "KCS-BTC", Side: types.SideBuy},
		{Symbol: "KCS-USDT", Side: types.SideSell},
	}

	v := newScriptedVenue(
		scriptOK(leg(types.SideBuy, "0.0004", "20", "0")),
		scriptOK(leg(types.SideBuy, "2.0", "0.0004", "0")),
		scriptOK(leg(types.SideSell, "2.0", "20.1", "0")),
	)
	s := New(&Config{Venue: v, Logger: zap.NewNop()})

	res, err := s.Run(context.Background(), opp, decimal.NewFromInt(20))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// A middle buy credits the base it acquired, not the quote it spent.
	if !res.Ledger.At(1).Equal(decimal.RequireFromString("2.0")) {
		t.Fatalf("ledger[1]: got %s, want 2.0", res.Ledger.At(1))
	}

	// And the quantity handed to the middle buy is the quote amount held.
	if got := v.placed()[1].qty; !got.Equal(decimal.RequireFromString("0.0004")) {
		t.Fatalf("leg 2 quantity: got %s, want 0.0004", got)
	}
}

func TestRun_MiddleSellCreditsCostQuote(t *testing.T) {
	v := newScriptedVenue(
		scriptOK(leg(types.SideBuy, "2.0", "20", "0")),
		scriptOK(leg(types.SideSell, "2.0", "0.0004", "0")),
		scriptOK(leg(types.SideSell, "0.0004", "20.08", "0")),
	)
	s := New(&Config{Venue: v, Logger: zap.NewNop()})

	res, err := s.Run(context.Background(), testOpportunity(), decimal.NewFromInt(20))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// A middle sell credits the quote received, never the base sold.
	if !res.Ledger.At(1).Equal(decimal.RequireFromString("0.0004")) {
		t.Fatalf("ledger[1]: got %s, want 0.0004", res.Ledger.At(1))
	}
}

func TestRun_MidCycleRejectKeepsLedgerPrefix(t *testing.T) {
	v := newScriptedVenue(
		scriptOK(leg(types.SideBuy, "2.0", "20", "0")),
		scriptErr(&types.VenueError{Venue: "kucoin", Kind: types.ErrRejected, Code: "300000", Message: "order rejected"}),
	)
	s := New(&Config{Venue: v, Logger: zap.NewNop()})

	res, err := s.Run(context.Background(), testOpportunity(), decimal.NewFromInt(20))
	if err == nil {
		t.Fatal("expected rejection")
	}

	var cerr *types.CycleError
	if !errors.As(err, &cerr) {
		t.Fatalf("error is not a CycleError: %v", err)
	}

	if cerr.Kind != types.ErrRejected || cerr.Leg != 2 {
		t.Fatalf("got kind=%s leg=%d, want REJECTED leg 2", cerr.Kind, cerr.Leg)
	}

	if res.Ledger.Len() != 1 || !res.Ledger.At(0).Equal(decimal.RequireFromString("2.0")) {
		t.Fatalf("ledger prefix: got %v", res.Ledger.Values())
	}
}

func TestRun_ZeroFillAborts(t *testing.T) {
	v := newScriptedVenue(
		scriptOK(leg(types.SideBuy, "2.0", "20", "0")),
		scriptOK(leg(types.SideSell, "0", "0", "0")),
	)
	s := New(&Config{Venue: v, Logger: zap.NewNop()})

	res, err := s.Run(context.Background(), testOpportunity(), decimal.NewFromInt(20))
	if types.KindOf(err) != types.ErrZeroFill {
		t.Fatalf("got %v, want ZERO_FILL", err)
	}

	var cerr *types.CycleError
	if !errors.As(err, &cerr) || cerr.Leg != 2 {
		t.Fatalf("got %v, want leg 2", err)
	}

	if res.Ledger.Len() != 1 {
		t.Fatalf("zero-fill leg must not reach the ledger: %v", res.Ledger.Values())
	}
}

func TestRun_ClockSkewRetriesFirstLegOnce(t *testing.T) {
	v := newScriptedVenue(
		scriptErr(&types.VenueError{Venue: "kucoin", Kind: types.ErrClockSkew, Code: "400005", Message: "KC-API-TIMESTAMP invalid"}),
		scriptOK(leg(types.SideBuy, "2.0", "20", "0")),
		scriptOK(leg(types.SideSell, "2.0", "0.0004", "0")),
		scriptOK(leg(types.SideSell, "0.0004", "20.08", "0")),
	)
	s := New(&Config{Venue: v, Logger: zap.NewNop()})

	res, err := s.Run(context.Background(), testOpportunity(), decimal.NewFromInt(20))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if v.syncCount() != 1 {
		t.Fatalf("sync count: got %d, want 1", v.syncCount())
	}

	if len(v.placed()) != 4 {
		t.Fatalf("orders placed: got %d, want 4 (retry included)", len(v.placed()))
	}

	if res.Ledger.Len() != 3 {
		t.Fatalf("ledger incomplete after retry: %v", res.Ledger.Values())
	}
}

func TestRun_ClockSkewAfterFirstLegIsFatal(t *testing.T) {
	v := newScriptedVenue(
		scriptOK(leg(types.SideBuy, "2.0", "20", "0")),
		scriptErr(&types.VenueError{Venue: "kucoin", Kind: types.ErrClockSkew, Code: "400005", Message: "KC-API-TIMESTAMP invalid"}),
	)
	s := New(&Config{Venue: v, Logger: zap.NewNop()})

	_, err := s.Run(context.Background(), testOpportunity(), decimal.NewFromInt(20))
	if types.KindOf(err) != types.ErrClockSkew {
		t.Fatalf("got %v, want CLOCK_SKEW", err)
	}

	if v.syncCount() != 0 {
		t.Fatalf("no resync allowed after leg 1, got %d", v.syncCount())
	}

	if len(v.placed()) != 2 {
		t.Fatalf("orders placed: got %d, want 2 (no retry)", len(v.placed()))
	}
}

type placedOrder struct {
	symbol string
	side   types.Side
	qty    decimal.Decimal
}

type legScript struct {
	leg *types.LegResult
	err error
}

func scriptOK(l *types.LegResult) legScript { return legScript{leg: l} }

func scriptErr(err error) legScript { return legScript{err: err} }

// scriptedVenue returns pre-programmed leg results in order.
type scriptedVenue struct {
	mu     sync.Mutex
	script []legScript
	orders []placedOrder
	syncs  int
}

func newScriptedVenue(script ...legScript) *scriptedVenue {
	return &scriptedVenue{script: script}
}

func (v *scriptedVenue) PlaceMarketOrder(_ context.Context, symbol string, side types.Side, qty decimal.Decimal) (*types.LegResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.orders = append(v.orders, placedOrder{symbol: symbol, side: side, qty: qty})

	if len(v.script) == 0 {
		return nil, &types.VenueError{Venue: "scripted", Kind: types.ErrRejected, Message: "script exhausted"}
	}

	next := v.script[0]
	v.script = v.script[1:]

	if next.err != nil {
		return nil, next.err
	}

	out := *next.leg
	out.Symbol = symbol

	return &out, nil
}

func (v *scriptedVenue) SyncTime(context.Context) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.syncs++

	return 0, nil
}

func (v *scriptedVenue) placed() []placedOrder {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make([]placedOrder, len(v.orders))
	copy(out, v.orders)

	return out
}

func (v *scriptedVenue) syncCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.syncs
}
