package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all engine configuration, loaded from the environment.
type Config struct {
	// Application
	LogLevel  string
	LogFormat string
	HTTPPort  string
	UserID    string

	// Venue
	Exchange           string
	VenueBaseURL       string
	VenueAPIKey        string
	VenueAPISecret     string
	VenueAPIPassphrase string
	VenueKeyVersion    string
	VenueHTTPTimeout   time.Duration
	TimeSyncBufferMS   int64
	OrderPollInterval  time.Duration
	OrderPollTimeout   time.Duration
	RateBudgetPerMin   int

	// Execution
	FundingCurrency          string
	FundingCap               decimal.Decimal
	RevalidationThresholdPct float64
	PerLegFeePct             float64
	FeeToken                 string
	FeeDiscount              float64
	OrderbookDepth           int
	ParallelProbe            bool
	ProbeDeadline            time.Duration
	CycleDeadline            time.Duration
	RequireManualConfirm     bool
	ConfirmTimeout           time.Duration
	FeeTokenRefresh          time.Duration

	// Safety
	BreakerEnabled         bool
	BreakerCheckInterval   time.Duration
	BreakerTradeMultiplier float64
	BreakerMinAbsolute     float64
	BreakerHysteresisRatio float64
	MaxConsecutiveFailures int

	// Recording
	SinkMode         string // "postgres" or "console"
	TradeFeedEnabled bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPass     string
	PostgresDB       string
	PostgresSSL      string
}

// feeTokenDefaults maps a venue id to its native fee-discount token and the
// taker discount it grants. Applied only when FEE_TOKEN / FEE_DISCOUNT are
// not set explicitly.
//
//nolint:gochecknoglobals // static venue table
var feeTokenDefaults = map[string]struct {
	Token    string
	Discount float64
}{
	"binance": {"BNB", 0.25},
	"kucoin":  {"KCS", 0.20},
	"gate":    {"GT", 0.15},
	"bybit":   {"BIT", 0.10},
	"coinex":  {"CET", 0.20},
	"htx":     {"HT", 0.20},
	"mexc":    {"MX", 0.10},
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	exchange := getEnvOrDefault("EXCHANGE", "kucoin")

	cfg := &Config{
		// Application defaults
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),
		HTTPPort:  getEnvOrDefault("HTTP_PORT", "8080"),
		UserID:    os.Getenv("USER_ID"),

		// Venue defaults
		Exchange:           exchange,
		VenueBaseURL:       getEnvOrDefault("VENUE_BASE_URL", "https://api.kucoin.com"),
		VenueAPIKey:        os.Getenv("VENUE_API_KEY"),
		VenueAPISecret:     os.Getenv("VENUE_API_SECRET"),
		VenueAPIPassphrase: os.Getenv("VENUE_API_PASSPHRASE"),
		VenueKeyVersion:    getEnvOrDefault("VENUE_KEY_VERSION", "2"),
		VenueHTTPTimeout:   getDurationOrDefault("VENUE_HTTP_TIMEOUT", 10*time.Second),
		TimeSyncBufferMS:   getInt64OrDefault("TIME_SYNC_BUFFER_MS", 500),
		OrderPollInterval:  getDurationOrDefault("ORDER_POLL_INTERVAL", 100*time.Millisecond),
		OrderPollTimeout:   getDurationOrDefault("ORDER_POLL_TIMEOUT", 10*time.Second),
		RateBudgetPerMin:   getIntOrDefault("RATE_BUDGET_PER_MIN", 120),

		// Execution defaults
		FundingCurrency:          getEnvOrDefault("FUNDING_CURRENCY", "USDT"),
		FundingCap:               getDecimalOrDefault("FUNDING_CAP", decimal.NewFromInt(20)),
		RevalidationThresholdPct: getFloat64OrDefault("REVALIDATION_THRESHOLD_PCT", 0.8),
		PerLegFeePct:             getFloat64OrDefault("PER_LEG_FEE_PCT", 0.1),
		FeeToken:                 getEnvOrDefault("FEE_TOKEN", feeTokenDefaults[exchange].Token),
		FeeDiscount:              getFloat64OrDefault("FEE_DISCOUNT", feeTokenDefaults[exchange].Discount),
		OrderbookDepth:           getIntOrDefault("ORDERBOOK_DEPTH", 20),
		ParallelProbe:            getBoolOrDefault("PARALLEL_PROBE", true),
		ProbeDeadline:            getDurationOrDefault("PROBE_DEADLINE", 200*time.Millisecond),
		CycleDeadline:            getDurationOrDefault("CYCLE_DEADLINE", 2*time.Second),
		RequireManualConfirm:     getBoolOrDefault("REQUIRE_MANUAL_CONFIRM", false),
		ConfirmTimeout:           getDurationOrDefault("CONFIRM_TIMEOUT", 10*time.Second),
		FeeTokenRefresh:          getDurationOrDefault("FEE_TOKEN_REFRESH", time.Minute),

		// Safety defaults
		BreakerEnabled:         getBoolOrDefault("BREAKER_ENABLED", true),
		BreakerCheckInterval:   getDurationOrDefault("BREAKER_CHECK_INTERVAL", 30*time.Second),
		BreakerTradeMultiplier: getFloat64OrDefault("BREAKER_TRADE_MULTIPLIER", 3.0),
		BreakerMinAbsolute:     getFloat64OrDefault("BREAKER_MIN_ABSOLUTE", 10.0),
		BreakerHysteresisRatio: getFloat64OrDefault("BREAKER_HYSTERESIS_RATIO", 1.5),
		MaxConsecutiveFailures: getIntOrDefault("MAX_CONSECUTIVE_FAILURES", 3),

		// Recording defaults
		SinkMode:         getEnvOrDefault("SINK_MODE", "console"),
		TradeFeedEnabled: getBoolOrDefault("TRADE_FEED_ENABLED", true),
		PostgresHost:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnvOrDefault("POSTGRES_USER", "triarb"),
		PostgresPass:     getEnvOrDefault("POSTGRES_PASSWORD", "triarb123"),
		PostgresDB:       getEnvOrDefault("POSTGRES_DB", "triarb"),
		PostgresSSL:      getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.Exchange == "" {
		return fmt.Errorf("EXCHANGE cannot be empty")
	}

	if c.VenueBaseURL == "" {
		return fmt.Errorf("VENUE_BASE_URL cannot be empty")
	}

	if c.FundingCurrency == "" {
		return fmt.Errorf("FUNDING_CURRENCY cannot be empty")
	}

	if !c.FundingCap.IsPositive() {
		return fmt.Errorf("FUNDING_CAP must be positive, got %s", c.FundingCap)
	}

	if c.RevalidationThresholdPct < 0 {
		return fmt.Errorf("REVALIDATION_THRESHOLD_PCT must be >= 0, got %f", c.RevalidationThresholdPct)
	}

	if c.PerLegFeePct < 0 || c.PerLegFeePct > 5.0 {
		return fmt.Errorf("PER_LEG_FEE_PCT must be between 0 and 5.0, got %f", c.PerLegFeePct)
	}

	if c.FeeDiscount < 0 || c.FeeDiscount >= 1.0 {
		return fmt.Errorf("FEE_DISCOUNT must be in [0, 1), got %f", c.FeeDiscount)
	}

	if c.OrderbookDepth < 1 {
		return fmt.Errorf("ORDERBOOK_DEPTH must be >= 1, got %d", c.OrderbookDepth)
	}

	if c.ProbeDeadline <= 0 {
		return fmt.Errorf("PROBE_DEADLINE must be positive, got %s", c.ProbeDeadline)
	}

	if c.CycleDeadline <= 0 {
		return fmt.Errorf("CYCLE_DEADLINE must be positive, got %s", c.CycleDeadline)
	}

	// A cycle projects 7 venue calls: 3 book fetches, 1 time sync, 3 orders.
	// A smaller budget could never admit anything.
	if c.RateBudgetPerMin < 7 {
		return fmt.Errorf("RATE_BUDGET_PER_MIN must be >= 7, got %d", c.RateBudgetPerMin)
	}

	if c.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("MAX_CONSECUTIVE_FAILURES must be >= 1, got %d", c.MaxConsecutiveFailures)
	}

	if c.BreakerEnabled {
		if c.BreakerCheckInterval <= 0 {
			return fmt.Errorf("BREAKER_CHECK_INTERVAL must be positive, got %s", c.BreakerCheckInterval)
		}

		if c.BreakerTradeMultiplier <= 0 {
			return fmt.Errorf("BREAKER_TRADE_MULTIPLIER must be positive, got %f", c.BreakerTradeMultiplier)
		}

		if c.BreakerMinAbsolute <= 0 {
			return fmt.Errorf("BREAKER_MIN_ABSOLUTE must be positive, got %f", c.BreakerMinAbsolute)
		}

		if c.BreakerHysteresisRatio < 1.0 {
			return fmt.Errorf("BREAKER_HYSTERESIS_RATIO must be >= 1.0, got %f", c.BreakerHysteresisRatio)
		}
	}

	if c.RequireManualConfirm && c.ConfirmTimeout <= 0 {
		return fmt.Errorf("CONFIRM_TIMEOUT must be positive when REQUIRE_MANUAL_CONFIRM is set")
	}

	if c.SinkMode != "console" && c.SinkMode != "postgres" {
		return fmt.Errorf("SINK_MODE must be console or postgres, got %q", c.SinkMode)
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}

func getDecimalOrDefault(key string, defaultValue decimal.Decimal) decimal.Decimal {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return defaultValue
	}

	return parsed
}
