package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.Exchange != "kucoin" {
		t.Errorf("Exchange = %q, want kucoin", cfg.Exchange)
	}

	if !cfg.FundingCap.Equal(decimal.NewFromInt(20)) {
		t.Errorf("FundingCap = %s, want 20", cfg.FundingCap)
	}

	if cfg.RevalidationThresholdPct != 0.8 {
		t.Errorf("RevalidationThresholdPct = %f, want 0.8", cfg.RevalidationThresholdPct)
	}

	if cfg.ProbeDeadline != 200*time.Millisecond {
		t.Errorf("ProbeDeadline = %s, want 200ms", cfg.ProbeDeadline)
	}

	if cfg.CycleDeadline != 2*time.Second {
		t.Errorf("CycleDeadline = %s, want 2s", cfg.CycleDeadline)
	}

	if !cfg.ParallelProbe {
		t.Error("ParallelProbe should default to true")
	}
}

func TestLoadFromEnv_FeeTokenDefaultsFollowVenue(t *testing.T) {
	tests := []struct {
		exchange     string
		wantToken    string
		wantDiscount float64
	}{
		{"kucoin", "KCS", 0.20},
		{"binance", "BNB", 0.25},
		{"gate", "GT", 0.15},
		{"mexc", "MX", 0.10},
	}

	for _, tt := range tests {
		t.Run(tt.exchange, func(t *testing.T) {
			t.Setenv("EXCHANGE", tt.exchange)

			cfg, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv: %v", err)
			}

			if cfg.FeeToken != tt.wantToken {
				t.Errorf("FeeToken = %q, want %q", cfg.FeeToken, tt.wantToken)
			}

			if cfg.FeeDiscount != tt.wantDiscount {
				t.Errorf("FeeDiscount = %f, want %f", cfg.FeeDiscount, tt.wantDiscount)
			}
		})
	}
}

func TestLoadFromEnv_ExplicitFeeTokenWins(t *testing.T) {
	t.Setenv("EXCHANGE", "kucoin")
	t.Setenv("FEE_TOKEN", "NONE")
	t.Setenv("FEE_DISCOUNT", "0")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.FeeToken != "NONE" || cfg.FeeDiscount != 0 {
		t.Errorf("explicit env must override venue defaults, got %q/%f", cfg.FeeToken, cfg.FeeDiscount)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("FUNDING_CAP", "55.5")
	t.Setenv("REVALIDATION_THRESHOLD_PCT", "1.25")
	t.Setenv("PROBE_DEADLINE", "150ms")
	t.Setenv("PARALLEL_PROBE", "false")
	t.Setenv("TIME_SYNC_BUFFER_MS", "750")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if !cfg.FundingCap.Equal(decimal.RequireFromString("55.5")) {
		t.Errorf("FundingCap = %s, want 55.5", cfg.FundingCap)
	}

	if cfg.RevalidationThresholdPct != 1.25 {
		t.Errorf("RevalidationThresholdPct = %f, want 1.25", cfg.RevalidationThresholdPct)
	}

	if cfg.ProbeDeadline != 150*time.Millisecond {
		t.Errorf("ProbeDeadline = %s, want 150ms", cfg.ProbeDeadline)
	}

	if cfg.ParallelProbe {
		t.Error("PARALLEL_PROBE=false not honored")
	}

	if cfg.TimeSyncBufferMS != 750 {
		t.Errorf("TimeSyncBufferMS = %d, want 750", cfg.TimeSyncBufferMS)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty_port", func(c *Config) { c.HTTPPort = "" }},
		{"empty_exchange", func(c *Config) { c.Exchange = "" }},
		{"zero_funding_cap", func(c *Config) { c.FundingCap = decimal.Zero }},
		{"negative_threshold", func(c *Config) { c.RevalidationThresholdPct = -0.1 }},
		{"fee_discount_one", func(c *Config) { c.FeeDiscount = 1.0 }},
		{"zero_depth", func(c *Config) { c.OrderbookDepth = 0 }},
		{"rate_budget_below_cycle", func(c *Config) { c.RateBudgetPerMin = 6 }},
		{"bad_sink_mode", func(c *Config) { c.SinkMode = "kafka" }},
		{"confirm_without_timeout", func(c *Config) {
			c.RequireManualConfirm = true
			c.ConfirmTimeout = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv: %v", err)
			}

			tt.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestGetDecimalOrDefault_BadValueFallsBack(t *testing.T) {
	t.Setenv("FUNDING_CAP", "not-a-number")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if !cfg.FundingCap.Equal(decimal.NewFromInt(20)) {
		t.Errorf("FundingCap = %s, want default 20", cfg.FundingCap)
	}
}
