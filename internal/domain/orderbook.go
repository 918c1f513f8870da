package domain

// BookLevel is a single price+size entry in an order book.
type BookLevel struct {
	Price float64
	Size  float64
}

// OrderBook holds one instrument's bid and ask ladders, best price first.
// Either side may be empty, meaning no resting liquidity on that side.
type OrderBook struct {
	Bids []BookLevel
	Asks []BookLevel
}

// BestBid returns the highest resting bid, if any.
func (b OrderBook) BestBid() (float64, bool) {
	if len(b.Bids) == 0 {
		return 0, false
	}
	return b.Bids[0].Price, true
}

// BestAsk returns the lowest resting ask, if any.
func (b OrderBook) BestAsk() (float64, bool) {
	if len(b.Asks) == 0 {
		return 0, false
	}
	return b.Asks[0].Price, true
}

// Spread returns best ask minus best bid when both sides are present.
func (b OrderBook) Spread() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask - bid, true
}
