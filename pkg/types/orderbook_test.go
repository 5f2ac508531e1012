package types

import (
	"math"
	"testing"
	"time"
)

func TestTopOfBook_EmptySide(t *testing.T) {
	snap := &OrderbookSnapshot{
		Symbol:     "KCS-USDT",
		Bids:       []PriceLevel{{Price: 9.99, Size: 100}},
		CapturedAt: time.Now(),
	}

	_, _, ok := snap.TopOfBook()
	if ok {
		t.Error("TopOfBook should fail with an empty ask side")
	}
}

func TestEffectiveTop_Direct(t *testing.T) {
	snap := &OrderbookSnapshot{
		Symbol: "KCS-USDT",
		Bids:   []PriceLevel{{Price: 9.99, Size: 120}},
		Asks:   []PriceLevel{{Price: 10.0, Size: 80}},
	}

	bid, ask, ok := snap.EffectiveTop()
	if !ok {
		t.Fatal("EffectiveTop failed on a populated book")
	}

	if bid.Price != 9.99 || ask.Price != 10.0 {
		t.Errorf("direct snapshot must pass through untouched, got bid=%v ask=%v", bid.Price, ask.Price)
	}
}

func TestEffectiveTop_Inverted(t *testing.T) {
	// The cycle wants KCS-BTC but the venue lists BTC-KCS. An ask of
	// 5000 KCS per BTC is a bid of 0.0002 BTC per KCS, and 0.1 BTC of
	// ask depth is 500 KCS of sellable depth.
	snap := &OrderbookSnapshot{
		Symbol:   "BTC-KCS",
		Bids:     []PriceLevel{{Price: 4990, Size: 0.2}},
		Asks:     []PriceLevel{{Price: 5000, Size: 0.1}},
		Inverted: true,
	}

	bid, ask, ok := snap.EffectiveTop()
	if !ok {
		t.Fatal("EffectiveTop failed on inverted snapshot")
	}

	if math.Abs(bid.Price-0.0002) > 1e-12 {
		t.Errorf("effective bid = %v, want 0.0002", bid.Price)
	}

	if math.Abs(bid.Size-500) > 1e-9 {
		t.Errorf("effective bid size = %v KCS, want 500", bid.Size)
	}

	wantAsk := 1.0 / 4990
	if math.Abs(ask.Price-wantAsk) > 1e-15 {
		t.Errorf("effective ask = %v, want %v", ask.Price, wantAsk)
	}

	if math.Abs(ask.Size-998) > 1e-9 {
		t.Errorf("effective ask size = %v KCS, want 998", ask.Size)
	}
}

func TestEffectiveTop_InvertedZeroPrice(t *testing.T) {
	snap := &OrderbookSnapshot{
		Symbol:   "BTC-KCS",
		Bids:     []PriceLevel{{Price: 0, Size: 1}},
		Asks:     []PriceLevel{{Price: 5000, Size: 1}},
		Inverted: true,
	}

	_, _, ok := snap.EffectiveTop()
	if ok {
		t.Error("EffectiveTop must refuse to invert a zero price")
	}
}
