package revalidate

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mserran2/triarb/pkg/types"
)

const tolerance = 1e-9

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

func snap(symbol string, bid, bidSize, ask, askSize float64) *types.OrderbookSnapshot {
	return &types.OrderbookSnapshot{
		Symbol:     symbol,
		Bids:       []types.PriceLevel{{Price: bid, Size: bidSize}},
		Asks:       []types.PriceLevel{{Price: ask, Size: askSize}},
		CapturedAt: time.Now(),
	}
}

// Happy-path books: 20 USDT -> 2 KCS -> 0.0004 BTC -> 20.08 USDT.
func happyBooks() [3]*types.OrderbookSnapshot {
	return [3]*types.OrderbookSnapshot{
		snap("KCS-USDT", 9.99, 10, 10.0, 10),
		snap("KCS-BTC", 0.00020, 10, 0.00021, 10),
		snap("BTC-USDT", 50200, 1, 50300, 1),
	}
}

func newTestRevalidator(thresholdPct float64) *Revalidator {
	return New(&Config{
		PerLegFeePct: 0.08,
		FeeDiscount:  0.20,
		ThresholdPct: thresholdPct,
		Logger:       zap.NewNop(),
	})
}

func TestCheck_HappyPath(t *testing.T) {
	r := newTestRevalidator(0.2)

	res, err := r.Check(testOpportunity(), happyBooks(), decimal.NewFromInt(20), true)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if math.Abs(res.LegOutputs[0]-2.0) > tolerance {
		t.Fatalf("leg 1 output: got %v, want 2.0", res.LegOutputs[0])
	}

	if math.Abs(res.LegOutputs[1]-0.0004) > tolerance {
		t.Fatalf("leg 2 output: got %v, want 0.0004", res.LegOutputs[1])
	}

	if math.Abs(res.FinalAmount-20.08) > 1e-6 {
		t.Fatalf("final amount: got %v, want 20.08", res.FinalAmount)
	}

	if math.Abs(res.TotalFeePct-0.192) > tolerance {
		t.Fatalf("total fee: got %v, want 0.192", res.TotalFeePct)
	}

	wantNet := res.GrossProfitPct - 0.192
	if math.Abs(res.NetProfitPct-wantNet) > tolerance || res.NetProfitPct < 0.2 {
		t.Fatalf("net profit: got %v", res.NetProfitPct)
	}
}

func TestCheck_BelowThreshold(t *testing.T) {
	r := newTestRevalidator(0.2)

	books := happyBooks()
	books[2] = snap("BTC-USDT", 50010, 1, 50100, 1)

	_, err := r.Check(testOpportunity(), books, decimal.NewFromInt(20), true)
	if err == nil {
		t.Fatal("expected below-threshold rejection")
	}

	if types.KindOf(err) != types.ErrBelowThreshold {
		t.Fatalf("error kind: got %s, want %s", types.KindOf(err), types.ErrBelowThreshold)
	}
}

func TestCheck_ThinBook(t *testing.T) {
	r := newTestRevalidator(0.2)

	books := happyBooks()
	books[0] = snap("KCS-USDT", 9.99, 10, 10.0, 1.5) // leg 1 needs 2.0 KCS

	_, err := r.Check(testOpportunity(), books, decimal.NewFromInt(20), true)
	if err == nil {
		t.Fatal("expected thin-book rejection")
	}

	var cerr *types.CycleError
	if !errors.As(err, &cerr) || cerr.Kind != types.ErrThinBook || cerr.Leg != 1 {
		t.Fatalf("got %v, want THIN_BOOK at leg 1", err)
	}
}

func TestCheck_DepthBoundaryInclusive(t *testing.T) {
	r := newTestRevalidator(0.2)

	books := happyBooks()
	books[0] = snap("KCS-USDT", 9.99, 10, 10.0, 2.0) // exactly the 2.0 KCS required

	if _, err := r.Check(testOpportunity(), books, decimal.NewFromInt(20), true); err != nil {
		t.Fatalf("size == consumption must pass: %v", err)
	}

	books[0] = snap("KCS-USDT", 9.99, 10, 10.0, 2.0-1e-9)

	_, err := r.Check(testOpportunity(), books, decimal.NewFromInt(20), true)
	if types.KindOf(err) != types.ErrThinBook {
		t.Fatalf("size just under consumption: got %v, want THIN_BOOK", err)
	}
}

func TestCheck_ThresholdBoundaryInclusive(t *testing.T) {
	// Compute the net with the gate disabled, then gate at exactly that net.
	probe := newTestRevalidator(-100)

	res, err := probe.Check(testOpportunity(), happyBooks(), decimal.NewFromInt(20), true)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	exact := newTestRevalidator(res.NetProfitPct)

	if _, err := exact.Check(testOpportunity(), happyBooks(), decimal.NewFromInt(20), true); err != nil {
		t.Fatalf("net == threshold must pass: %v", err)
	}
}

func TestCheck_FeeDiscountRequiresActiveToken(t *testing.T) {
	r := newTestRevalidator(0.2)

	// Gross here is ~0.4%. With the discount net is ~0.208%, without it
	// fees are 0.24% and net ~0.16%, under the gate.
	res, err := r.Check(testOpportunity(), happyBooks(), decimal.NewFromInt(20), true)
	if err != nil {
		t.Fatalf("discounted run failed: %v", err)
	}

	if math.Abs(res.TotalFeePct-0.192) > tolerance {
		t.Fatalf("discounted fee: got %v, want 0.192", res.TotalFeePct)
	}

	_, err = r.Check(testOpportunity(), happyBooks(), decimal.NewFromInt(20), false)
	if types.KindOf(err) != types.ErrBelowThreshold {
		t.Fatalf("undiscounted run: got %v, want BELOW_THRESHOLD", err)
	}
}

func TestCheck_InvertedMiddleMatchesDirect(t *testing.T) {
	r := newTestRevalidator(0.2)

	direct, err := r.Check(testOpportunity(), happyBooks(), decimal.NewFromInt(20), true)
	if err != nil {
		t.Fatalf("direct check failed: %v", err)
	}

	books := happyBooks()
	inv := snap("BTC-KCS", 1/0.00021, 10*0.00021, 5000, 10*0.00020)
	inv.Inverted = true
	books[1] = inv

	inverted, err := r.Check(testOpportunity(), books, decimal.NewFromInt(20), true)
	if err != nil {
		t.Fatalf("inverted check failed: %v", err)
	}

	if math.Abs(direct.NetProfitPct-inverted.NetProfitPct) > tolerance {
		t.Fatalf("net profit diverges: direct %v, inverted %v",
			direct.NetProfitPct, inverted.NetProfitPct)
	}
}

func TestCheck_BuyMiddleLeg(t *testing.T) {
	opp := &types.Opportunity{
		Exchange: "kucoin",
		Cycle:    [3]string{"USDT", "BTC", "KCS"},
		Steps: [3]types.Step{
			{Symbol: "BTC-USDT", Side: types.SideBuy},
			{Symbol: "KCS-BTC", Side: types.SideBuy},
			{Symbol: "KCS-USDT", Side: types.SideSell},
		},
		InitialAmount: decimal.NewFromInt(20),
	}
	books := [3]*types.OrderbookSnapshot{
		snap("BTC-USDT", 49900, 1, 50000, 1),
		snap("KCS-BTC", 0.00019, 10000, 0.00020, 10000),
		snap("KCS-USDT", 10.05, 10000, 10.06, 10000),
	}

	r := newTestRevalidator(0.2)

	res, err := r.Check(opp, books, decimal.NewFromInt(20), true)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	// 20 USDT -> 0.0004 BTC -> 2 KCS -> 20.1 USDT.
	if math.Abs(res.LegOutputs[1]-2.0) > tolerance {
		t.Fatalf("middle buy output: got %v, want 2.0", res.LegOutputs[1])
	}

	if math.Abs(res.FinalAmount-20.1) > 1e-6 {
		t.Fatalf("final amount: got %v, want 20.1", res.FinalAmount)
	}
}

func TestCheck_EmptySideIsNoLiquidity(t *testing.T) {
	r := newTestRevalidator(0.2)

	books := happyBooks()
	books[0].Asks = nil

	_, err := r.Check(testOpportunity(), books, decimal.NewFromInt(20), true)
	if types.KindOf(err) != types.ErrNoLiquidity {
		t.Fatalf("got %v, want NO_LIQUIDITY", err)
	}
}

