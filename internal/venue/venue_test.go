package venue

import (
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"
)

func TestNew_UnsupportedExchange(t *testing.T) {
	_, err := New(&Config{Exchange: "hyperliquid", BaseURL: "http://x", Logger: zaptest.NewLogger(t)})
	if err == nil {
		t.Fatal("unknown exchange id must fail")
	}
}

func TestNew_KuCoin(t *testing.T) {
	a, err := New(&Config{Exchange: "kucoin", BaseURL: "http://localhost", Logger: zaptest.NewLogger(t)})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if a.Name() != "kucoin" {
		t.Errorf("Name = %q, want kucoin", a.Name())
	}
}

func TestQuantizeDown(t *testing.T) {
	cases := []struct {
		q, step, want string
	}{
		{"1.23456789", "0.0001", "1.2345"},
		{"20", "0.01", "20"},
		{"0.00049", "0.0001", "0.0004"},
		{"5", "0", "5"}, // zero step leaves the quantity alone
	}

	for _, tc := range cases {
		got := quantizeDown(decimal.RequireFromString(tc.q), decimal.RequireFromString(tc.step))
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Errorf("quantizeDown(%s, %s) = %s, want %s", tc.q, tc.step, got, tc.want)
		}
	}
}
