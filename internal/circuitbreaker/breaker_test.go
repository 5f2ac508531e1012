package circuitbreaker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
)

// fundsStub is a settable FundsSource.
type fundsStub struct {
	mu      sync.Mutex
	balance decimal.Decimal
	err     error
}

func newFundsStub(balance string) *fundsStub {
	return &fundsStub{balance: decimal.RequireFromString(balance)}
}

func (f *fundsStub) Balance(_ context.Context, _ string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return decimal.Zero, f.err
	}

	return f.balance, nil
}

func (f *fundsStub) set(balance string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.balance = decimal.RequireFromString(balance)
}

func validConfig(t *testing.T, funds FundsSource) *Config {
	t.Helper()

	return &Config{
		CheckInterval:   time.Minute,
		TradeMultiplier: 3.0,
		MinAbsolute:     10.0,
		HysteresisRatio: 1.5,
		MaxFailureRun:   3,
		Funds:           funds,
		Currency:        "USDT",
		Logger:          zaptest.NewLogger(t),
	}
}

func TestNew(t *testing.T) {
	t.Parallel()

	funds := newFundsStub("100")

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid-config", mutate: func(*Config) {}},
		{name: "nil-funds", mutate: func(c *Config) { c.Funds = nil }, wantErr: "funds source cannot be nil"},
		{name: "nil-logger", mutate: func(c *Config) { c.Logger = nil }, wantErr: "logger cannot be nil"},
		{name: "empty-currency", mutate: func(c *Config) { c.Currency = "" }, wantErr: "currency cannot be empty"},
		{name: "zero-check-interval", mutate: func(c *Config) { c.CheckInterval = 0 }, wantErr: "check interval must be positive"},
		{name: "zero-trade-multiplier", mutate: func(c *Config) { c.TradeMultiplier = 0 }, wantErr: "trade multiplier must be positive"},
		{name: "zero-min-absolute", mutate: func(c *Config) { c.MinAbsolute = 0 }, wantErr: "min absolute must be positive"},
		{name: "hysteresis-below-one", mutate: func(c *Config) { c.HysteresisRatio = 0.9 }, wantErr: "hysteresis ratio must be >= 1.0"},
		{name: "zero-failure-run", mutate: func(c *Config) { c.MaxFailureRun = 0 }, wantErr: "max failure run must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t, funds)
			tt.mutate(cfg)

			b, err := New(cfg)

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("New failed: %v", err)
				}

				if !b.IsEnabled() {
					t.Fatal("breaker must start enabled")
				}

				return
			}

			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNew_NilConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestRecordFailure_DesyncLatchesUntilReset(t *testing.T) {
	t.Parallel()

	b, err := New(validConfig(t, newFundsStub("100")))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	b.RecordFailure(true)

	if b.IsEnabled() {
		t.Fatal("desynchronized failure must halt admission")
	}

	status := b.GetStatus()
	if !status.Latched || status.LatchReason == "" {
		t.Fatalf("status: %+v", status)
	}

	// Further successes must not unlatch; only the operator may.
	b.RecordSuccess(20)

	if b.IsEnabled() {
		t.Fatal("success must not clear a latched halt")
	}

	b.Reset()

	if !b.IsEnabled() {
		t.Fatal("reset must re-enable admission")
	}

	if got := b.GetStatus(); got.Latched || got.FailureRun != 0 {
		t.Fatalf("status after reset: %+v", got)
	}
}

func TestRecordFailure_RunLatches(t *testing.T) {
	t.Parallel()

	b, err := New(validConfig(t, newFundsStub("100")))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	b.RecordFailure(false)
	b.RecordFailure(false)

	if !b.IsEnabled() {
		t.Fatal("two failures must not latch with max run 3")
	}

	b.RecordFailure(false)

	if b.IsEnabled() {
		t.Fatal("third consecutive failure must latch")
	}
}

func TestRecordSuccess_ClearsFailureRun(t *testing.T) {
	t.Parallel()

	b, err := New(validConfig(t, newFundsStub("100")))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	b.RecordFailure(false)
	b.RecordFailure(false)
	b.RecordSuccess(20)
	b.RecordFailure(false)
	b.RecordFailure(false)

	if !b.IsEnabled() {
		t.Fatal("success must reset the consecutive failure run")
	}

	if got := b.GetStatus().FailureRun; got != 2 {
		t.Fatalf("failure run: got %d, want 2", got)
	}
}

func TestCheckBalance_HysteresisTransitions(t *testing.T) {
	t.Parallel()

	funds := newFundsStub("100")

	b, err := New(validConfig(t, funds))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()

	// Below the disable threshold (10): halt.
	funds.set("5")

	if err := b.CheckBalance(ctx); err != nil {
		t.Fatalf("CheckBalance failed: %v", err)
	}

	if b.IsEnabled() {
		t.Fatal("balance below threshold must halt")
	}

	// Between disable (10) and enable (15): hysteresis keeps it halted.
	funds.set("12")
	_ = b.CheckBalance(ctx)

	if b.IsEnabled() {
		t.Fatal("balance under the enable threshold must stay halted")
	}

	// Above the enable threshold: recover.
	funds.set("16")
	_ = b.CheckBalance(ctx)

	if !b.IsEnabled() {
		t.Fatal("balance above the enable threshold must re-enable")
	}
}

func TestCheckBalance_FetchErrorKeepsState(t *testing.T) {
	t.Parallel()

	funds := newFundsStub("100")

	b, err := New(validConfig(t, funds))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	funds.mu.Lock()
	funds.err = errors.New("venue unreachable")
	funds.mu.Unlock()

	if err := b.CheckBalance(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}

	if !b.IsEnabled() {
		t.Fatal("fetch error must not change breaker state")
	}
}

func TestRecordSuccess_RaisesThresholds(t *testing.T) {
	t.Parallel()

	b, err := New(validConfig(t, newFundsStub("100")))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	b.RecordSuccess(20)

	status := b.GetStatus()

	// multiplier 3 x avg 20 = 60 disable, x1.5 hysteresis = 90 enable.
	if status.DisableThreshold != 60 || status.EnableThreshold != 90 {
		t.Fatalf("thresholds: %+v", status)
	}

	if status.AvgTradeSize != 20 || status.RecentTradeCount != 1 {
		t.Fatalf("window: %+v", status)
	}
}

func TestStart_InitialCheckHaltsOnLowBalance(t *testing.T) {
	t.Parallel()

	funds := newFundsStub("1")
	cfg := validConfig(t, funds)
	cfg.CheckInterval = 10 * time.Millisecond

	b, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Start(ctx)

	if b.IsEnabled() {
		t.Fatal("initial check must halt on a drained account")
	}
}
