package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a market order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Step is one leg of a cycle: the pair to trade and the direction dictated by
// the symbol's orientation at the venue.
type Step struct {
	Symbol string `json:"symbol"`
	Side   Side   `json:"side"`
}

// Opportunity is a candidate cycle produced by an external detector.
//
// Cycle is the ordered currency triple (C0, C1, C2) where C0 is the funding
// currency; the traversal is C0->C1->C2->C0. Steps must be oriented so that
// step 1 acquires C1 with C0, step 2 acquires C2 with C1 and step 3 returns
// to C0. Expected* fields come from the detector and are used only to report
// expected-vs-actual deltas.
type Opportunity struct {
	ID                string          `json:"id,omitempty"`
	Exchange          string          `json:"exchange"`
	Cycle             [3]string       `json:"cycle"`
	Steps             [3]Step         `json:"steps"`
	InitialAmount     decimal.Decimal `json:"initial_amount"`
	ExpectedProfitPct float64         `json:"expected_profit_pct"`
	ExpectedFees      float64         `json:"expected_fees"`
	ExpectedSlippage  float64         `json:"expected_slippage"`
	DetectedAt        time.Time       `json:"detected_at,omitempty"`
}

// Path renders the cycle for logs and records, e.g. "USDT -> KCS -> BTC -> USDT".
func (o *Opportunity) Path() string {
	return fmt.Sprintf("%s -> %s -> %s -> %s", o.Cycle[0], o.Cycle[1], o.Cycle[2], o.Cycle[0])
}

// Validate checks the closed-cycle invariant: the currency produced by step i
// funds step i+1 (mod 3), so the third leg lands back on the funding currency.
// Violations are reported as MALFORMED_CYCLE; no venue calls are made here.
func (o *Opportunity) Validate() error {
	if o.Exchange == "" {
		return &CycleError{Kind: ErrMalformedCycle, Message: "missing exchange"}
	}

	for i, c := range o.Cycle {
		if strings.TrimSpace(c) == "" {
			return &CycleError{Kind: ErrMalformedCycle, Message: fmt.Sprintf("cycle currency %d is empty", i)}
		}
	}

	if !o.InitialAmount.IsPositive() {
		return &CycleError{Kind: ErrMalformedCycle, Message: "initial amount must be positive"}
	}

	input := currency(o.Cycle[0])

	for i, step := range o.Steps {
		base, quote, err := ParseSymbol(step.Symbol)
		if err != nil {
			return &CycleError{Kind: ErrMalformedCycle, Message: fmt.Sprintf("step %d: %v", i+1, err)}
		}

		want := currency(o.Cycle[(i+1)%3])

		var output string

		switch step.Side {
		case SideBuy:
			// Buying the base spends the quote.
			if quote != input {
				return &CycleError{Kind: ErrMalformedCycle,
					Message: fmt.Sprintf("step %d buys %s with %s but holds %s", i+1, base, quote, input)}
			}
			output = base
		case SideSell:
			// Selling the base yields the quote.
			if base != input {
				return &CycleError{Kind: ErrMalformedCycle,
					Message: fmt.Sprintf("step %d sells %s but holds %s", i+1, base, input)}
			}
			output = quote
		default:
			return &CycleError{Kind: ErrMalformedCycle, Message: fmt.Sprintf("step %d: unknown side %q", i+1, step.Side)}
		}

		if output != want {
			return &CycleError{Kind: ErrMalformedCycle,
				Message: fmt.Sprintf("step %d produces %s, cycle requires %s", i+1, output, want)}
		}

		input = output
	}

	return nil
}

// ParseSymbol splits a pair symbol into base and quote currencies. Both the
// hyphenated venue form ("KCS-USDT") and the slash form ("KCS/USDT") are
// accepted; currencies are normalized to upper case.
func ParseSymbol(symbol string) (base, quote string, err error) {
	sep := "-"
	if strings.Contains(symbol, "/") {
		sep = "/"
	}

	parts := strings.Split(symbol, sep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("symbol %q is not BASE%sQUOTE", symbol, sep)
	}

	return currency(parts[0]), currency(parts[1]), nil
}

func currency(c string) string {
	return strings.ToUpper(strings.TrimSpace(c))
}
