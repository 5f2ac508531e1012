package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mserran2/triarb/internal/venue"
	"github.com/mserran2/triarb/pkg/types"
)

// PlacedOrder captures one PlaceMarketOrder call.
type PlacedOrder struct {
	Symbol   string
	Side     types.Side
	Quantity decimal.Decimal
}

// LegScript pre-programs the result of one PlaceMarketOrder call.
type LegScript struct {
	Result *types.LegResult
	Err    error
}

// MockVenue is an in-memory venue adapter for tests.
//
// Orderbooks come from Books. Orders consume LegScripts in order when any are
// set; otherwise they auto-fill at top-of-book, which models a venue with no
// slippage and fees charged in the fee token. All state access is
// mutex-guarded so the parallel probe can hit it concurrently.
type MockVenue struct {
	mu sync.Mutex

	Books    map[string]*types.OrderbookSnapshot
	BookErrs map[string]error
	// BookDelay stalls GetOrderbook per symbol, for deadline tests.
	BookDelay map[string]time.Duration

	LegScripts []LegScript
	Orders     []PlacedOrder
	OrderDelay time.Duration

	Balances map[string]decimal.Decimal
	Fees     venue.FeeSchedule
	Infos    map[string]*venue.SymbolInfo

	SyncErr   error
	SyncCalls int
	DriftMS   int64

	Closed bool
}

// NewMockVenue creates a mock with the canonical test books, a funded USDT
// account, a held fee-token balance and the KuCoin-like fee schedule.
func NewMockVenue() *MockVenue {
	return &MockVenue{
		Books:     CreateTestBooks(),
		BookErrs:  make(map[string]error),
		BookDelay: make(map[string]time.Duration),
		Balances: map[string]decimal.Decimal{
			"USDT": decimal.NewFromInt(1000),
			"KCS":  decimal.NewFromInt(5),
		},
		Fees:  venue.FeeSchedule{PerLegFeePct: 0.08, FeeToken: "KCS", FeeDiscount: 0.20},
		Infos: make(map[string]*venue.SymbolInfo),
	}
}

// Name identifies the mock venue.
func (m *MockVenue) Name() string { return "mock" }

// GetOrderbook serves the configured snapshot for the symbol.
func (m *MockVenue) GetOrderbook(ctx context.Context, symbol string, _ int) (*types.OrderbookSnapshot, error) {
	m.mu.Lock()
	delay := m.BookDelay[symbol]
	err := m.BookErrs[symbol]
	book := m.Books[symbol]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}

	if book == nil {
		return nil, &types.VenueError{
			Venue: "mock", Kind: types.ErrNoLiquidity,
			Message: fmt.Sprintf("no book for %s", symbol),
		}
	}

	cp := *book
	cp.CapturedAt = time.Now()

	return &cp, nil
}

// PlaceMarketOrder consumes the next script entry, or auto-fills at
// top-of-book when nothing is scripted.
func (m *MockVenue) PlaceMarketOrder(ctx context.Context, symbol string, side types.Side, quantity decimal.Decimal) (*types.LegResult, error) {
	m.mu.Lock()
	m.Orders = append(m.Orders, PlacedOrder{Symbol: symbol, Side: side, Quantity: quantity})

	var script *LegScript

	if len(m.LegScripts) > 0 {
		s := m.LegScripts[0]
		m.LegScripts = m.LegScripts[1:]
		script = &s
	}

	book := m.Books[symbol]
	fees := m.Fees
	delay := m.OrderDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if script != nil {
		if script.Err != nil {
			return nil, script.Err
		}

		out := *script.Result
		out.Symbol = symbol
		out.Side = side

		return &out, nil
	}

	if book == nil {
		return nil, &types.VenueError{
			Venue: "mock", Kind: types.ErrRejected,
			Message: fmt.Sprintf("no market for %s", symbol),
		}
	}

	bid, ask, ok := book.TopOfBook()
	if !ok {
		return nil, &types.VenueError{
			Venue: "mock", Kind: types.ErrNoLiquidity,
			Message: fmt.Sprintf("empty book for %s", symbol),
		}
	}

	leg := &types.LegResult{
		Symbol:      symbol,
		Side:        side,
		FeeCurrency: fees.FeeToken,
		WallclockMS: 5,
	}

	feeRate := decimal.NewFromFloat(fees.PerLegFeePct * (1 - fees.FeeDiscount) / 100)

	switch side {
	case types.SideBuy:
		price := decimal.NewFromFloat(ask.Price)
		leg.CostQuote = quantity
		leg.FilledBase = quantity.Div(price)
		leg.FeePaid = quantity.Mul(feeRate)
	case types.SideSell:
		price := decimal.NewFromFloat(bid.Price)
		leg.FilledBase = quantity
		leg.CostQuote = quantity.Mul(price)
		leg.FeePaid = leg.CostQuote.Mul(feeRate)
	}

	return leg, nil
}

// SyncTime reports the configured drift.
func (m *MockVenue) SyncTime(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SyncCalls++

	if m.SyncErr != nil {
		return 0, m.SyncErr
	}

	return m.DriftMS, nil
}

// SymbolInfo returns scripted rules, defaulting to permissive increments.
func (m *MockVenue) SymbolInfo(_ context.Context, symbol string) (*venue.SymbolInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if info, ok := m.Infos[symbol]; ok {
		return info, nil
	}

	base, quote, err := types.ParseSymbol(symbol)
	if err != nil {
		return nil, err
	}

	return &venue.SymbolInfo{
		Symbol:         symbol,
		BaseCurrency:   base,
		QuoteCurrency:  quote,
		PriceIncrement: decimal.New(1, -8),
		BaseIncrement:  decimal.New(1, -8),
		QuoteIncrement: decimal.New(1, -8),
		EnableTrading:  true,
	}, nil
}

// Balance reports the configured available amount.
func (m *MockVenue) Balance(_ context.Context, currency string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Balances[currency], nil
}

// FeeSchedule reports the configured fee model.
func (m *MockVenue) FeeSchedule() venue.FeeSchedule {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.Fees
}

// Close marks the mock closed.
func (m *MockVenue) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true

	return nil
}

// PlacedOrders returns a copy of every order the mock received.
func (m *MockVenue) PlacedOrders() []PlacedOrder {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PlacedOrder, len(m.Orders))
	copy(out, m.Orders)

	return out
}

// Script replaces the leg scripts.
func (m *MockVenue) Script(scripts ...LegScript) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LegScripts = scripts
}

// MockSink is an in-memory trade record sink.
type MockSink struct {
	mu     sync.Mutex
	recs   []types.TradeRecord
	Err    error
	Closed bool
}

// NewMockSink creates an empty sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// StoreTrade stores a snapshot of the record's state at emit time.
func (m *MockSink) StoreTrade(_ context.Context, rec *types.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}

	cp := *rec
	cp.Ledger = append([]decimal.Decimal(nil), rec.Ledger...)
	m.recs = append(m.recs, cp)

	return nil
}

// Close marks the sink closed.
func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Closed = true

	return nil
}

// Records returns a copy of everything stored.
func (m *MockSink) Records() []types.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]types.TradeRecord, len(m.recs))
	copy(out, m.recs)

	return out
}
