package cmd

import (
	"reflect"
	"testing"
)

// TestBalanceCommand_Structure tests command is properly configured
func TestBalanceCommand_Structure(t *testing.T) {
	if balanceCmd == nil {
		t.Fatal("balanceCmd is nil")
	}

	if balanceCmd.Use != "balance" {
		t.Errorf("expected Use='balance', got '%s'", balanceCmd.Use)
	}

	if balanceCmd.RunE == nil {
		t.Error("RunE function is nil")
	}
}

// TestBalanceCurrencies tests currency list resolution
func TestBalanceCurrencies(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		funding string
		token   string
		want    []string
	}{
		{name: "defaults", flag: "", funding: "USDT", token: "KCS", want: []string{"USDT", "KCS"}},
		{name: "no fee token", flag: "", funding: "USDT", token: "", want: []string{"USDT"}},
		{name: "funding equals token", flag: "", funding: "KCS", token: "KCS", want: []string{"KCS"}},
		{name: "explicit flag sorted", flag: "btc,eth,usdt", funding: "USDT", token: "KCS", want: []string{"BTC", "ETH", "USDT"}},
		{name: "flag deduplicates", flag: "BTC, btc ,ETH", funding: "USDT", token: "KCS", want: []string{"BTC", "ETH"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := balanceCurrencies(tt.flag, tt.funding, tt.token)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
