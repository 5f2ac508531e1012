// Package testutil provides shared fixtures and mocks for engine tests.
package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mserran2/triarb/pkg/types"
)

// CreateTestOpportunity returns the canonical profitable test cycle
// USDT -> KCS -> BTC -> USDT funded with 20 USDT.
func CreateTestOpportunity() *types.Opportunity {
	return &types.Opportunity{
		ID:       "test-opp-1",
		Exchange: "kucoin",
		Cycle:    [3]string{"USDT", "KCS", "BTC"},
		Steps: [3]types.Step{
			{Symbol: "KCS-USDT", Side: types.SideBuy},
			{Symbol: "KCS-BTC", Side: types.SideSell},
			{Symbol: "BTC-USDT", Side: types.SideSell},
		},
		InitialAmount:     decimal.NewFromInt(20),
		ExpectedProfitPct: 0.3,
		ExpectedFees:      0.192,
		ExpectedSlippage:  0.05,
		DetectedAt:        time.Now(),
	}
}

// CreateTestBooks returns deep, profitable orderbooks for the canonical
// cycle: 20 USDT buys 2 KCS at 10.0, the KCS sells for 0.0004 BTC at
// 0.00020, and the BTC sells for 20.08 USDT at 50200.
func CreateTestBooks() map[string]*types.OrderbookSnapshot {
	now := time.Now()

	book := func(symbol string, bid, bidSize, ask, askSize float64) *types.OrderbookSnapshot {
		return &types.OrderbookSnapshot{
			Symbol:     symbol,
			Bids:       []types.PriceLevel{{Price: bid, Size: bidSize}},
			Asks:       []types.PriceLevel{{Price: ask, Size: askSize}},
			CapturedAt: now,
		}
	}

	return map[string]*types.OrderbookSnapshot{
		"KCS-USDT": book("KCS-USDT", 9.99, 50, 10.0, 50),
		"KCS-BTC":  book("KCS-BTC", 0.00020, 50, 0.00021, 50),
		"BTC-USDT": book("BTC-USDT", 50200, 2, 50300, 2),
	}
}
