package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestAmountLedger_AppendAndRead(t *testing.T) {
	ledger := NewAmountLedger()

	if ledger.Len() != 0 {
		t.Fatalf("new ledger Len = %d, want 0", ledger.Len())
	}

	for i, v := range []string{"2.0", "0.0004", "20.08"} {
		err := ledger.Append(decimal.RequireFromString(v))
		if err != nil {
			t.Fatalf("append slot %d: %v", i, err)
		}
	}

	if ledger.Len() != 3 {
		t.Fatalf("Len = %d, want 3", ledger.Len())
	}

	if !ledger.At(2).Equal(decimal.RequireFromString("20.08")) {
		t.Errorf("At(2) = %s, want 20.08", ledger.At(2))
	}

	err := ledger.Append(decimal.NewFromInt(1))
	if err == nil {
		t.Error("fourth append must fail; the cycle has three legs")
	}
}

func TestAmountLedger_ValuesIsACopy(t *testing.T) {
	ledger := NewAmountLedger()
	_ = ledger.Append(decimal.NewFromInt(2))

	vals := ledger.Values()
	vals[0] = decimal.NewFromInt(999)

	if !ledger.At(0).Equal(decimal.NewFromInt(2)) {
		t.Error("mutating Values() must not touch the ledger")
	}
}

func TestAmountLedger_OutOfRangeReadsZero(t *testing.T) {
	ledger := NewAmountLedger()

	if !ledger.At(1).IsZero() {
		t.Error("unpopulated slot must read zero")
	}

	if !ledger.At(-1).IsZero() {
		t.Error("negative index must read zero")
	}
}

func TestKindOf(t *testing.T) {
	ce := &CycleError{Kind: ErrThinBook, Message: "top ask too small"}
	if KindOf(ce) != ErrThinBook {
		t.Errorf("KindOf(CycleError) = %s, want %s", KindOf(ce), ErrThinBook)
	}

	ve := &VenueError{Venue: "kucoin", Kind: ErrClockSkew, Code: "400005"}
	if KindOf(ve) != ErrClockSkew {
		t.Errorf("KindOf(VenueError) = %s, want %s", KindOf(ve), ErrClockSkew)
	}

	wrapped := &CycleError{Kind: ErrRejected, Leg: 2, Err: ve}
	if KindOf(wrapped) != ErrRejected {
		t.Errorf("outermost kind wins, got %s", KindOf(wrapped))
	}

	if KindOf(nil) != "" {
		t.Error("nil error must yield the empty kind")
	}
}
