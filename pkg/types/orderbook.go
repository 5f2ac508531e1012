package types

import "time"

// PriceLevel is a single orderbook level.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderbookSnapshot is a point-in-time view of one symbol's book. Bids are
// ordered best-first descending, asks best-first ascending; top-of-book is
// element 0 of each side.
//
// Inverted marks a snapshot that was fetched for the reversed pair (the venue
// lists Y/X where the cycle step names X/Y). Consumers must flip bid/ask
// interpretation; EffectiveTop does the conversion.
type OrderbookSnapshot struct {
	Symbol     string       `json:"symbol"`
	Bids       []PriceLevel `json:"bids"`
	Asks       []PriceLevel `json:"asks"`
	CapturedAt time.Time    `json:"captured_at"`
	Inverted   bool         `json:"inverted,omitempty"`
}

// TopOfBook returns the raw best bid and ask levels. ok is false when either
// side is empty, in which case the snapshot is unusable for revalidation.
func (s *OrderbookSnapshot) TopOfBook() (bid, ask PriceLevel, ok bool) {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return PriceLevel{}, PriceLevel{}, false
	}

	return s.Bids[0], s.Asks[0], true
}

// EffectiveTop returns top-of-book in the orientation the cycle step asked
// for. For a direct snapshot this is TopOfBook. For an inverted snapshot of
// pair X/Y fetched as Y/X:
//
//	bid(X/Y) = 1/ask(Y/X)   ask(X/Y) = 1/bid(Y/X)
//
// and level sizes convert from Y/X base units into X units at the flipped
// level's own price, so depth checks stay denominated in the step's base.
func (s *OrderbookSnapshot) EffectiveTop() (bid, ask PriceLevel, ok bool) {
	rawBid, rawAsk, ok := s.TopOfBook()
	if !ok {
		return PriceLevel{}, PriceLevel{}, false
	}

	if !s.Inverted {
		return rawBid, rawAsk, true
	}

	if rawBid.Price <= 0 || rawAsk.Price <= 0 {
		return PriceLevel{}, PriceLevel{}, false
	}

	bid = PriceLevel{Price: 1 / rawAsk.Price, Size: rawAsk.Size * rawAsk.Price}
	ask = PriceLevel{Price: 1 / rawBid.Price, Size: rawBid.Size * rawBid.Price}

	return bid, ask, true
}
