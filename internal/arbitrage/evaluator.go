// Package arbitrage evaluates complete-set arbitrage on prediction markets.
//
// The core identity: a market's outcomes are mutually exclusive and
// exhaustive, so one share of every outcome pays exactly $1.00 at
// settlement. Whenever the asks sum below $1.00 the difference is locked-in
// profit, less the venue's fee on winnings.
package arbitrage

import (
	"math"

	"github.com/polytrage/polytrage/internal/domain"
)

const (
	// DefaultFeeRate is Polymarket's 2% fee on winnings.
	DefaultFeeRate = 0.02

	// MinProfitThreshold is the smallest net profit per dollar worth
	// reporting, $0.005.
	MinProfitThreshold = 0.005
)

// Config tunes the evaluator.
type Config struct {
	FeeRate   float64 // venue fee charged on winnings
	MinProfit float64 // net profit per dollar below which candidates are dropped
}

// DefaultConfig returns the standard fee rate and profit floor.
func DefaultConfig() Config {
	return Config{FeeRate: DefaultFeeRate, MinProfit: MinProfitThreshold}
}

// FromOrderBooks evaluates a market against live order books, one per token
// in market order. This is the authoritative check: it prices the arbitrage
// at the asks actually available. Returns nil when the book count does not
// match the token count, when any outcome has no ask to lift, or when the
// position does not clear Config.MinProfit.
func FromOrderBooks(m domain.Market, books []domain.OrderBook, cfg Config) *domain.Opportunity {
	n := len(m.TokenIDs)
	if len(books) != n {
		return nil
	}
	if len(m.Outcomes) < n || len(m.OutcomePrices) < n {
		return nil
	}

	outcomes := make([]domain.Outcome, 0, n)
	for i, book := range books {
		ask, ok := book.BestAsk()
		if !ok {
			return nil // no asks, this outcome cannot be bought
		}
		o := domain.Outcome{
			Name:    m.Outcomes[i],
			TokenID: m.TokenIDs[i],
			Price:   m.OutcomePrices[i],
			BestAsk: &ask,
		}
		if bid, ok := book.BestBid(); ok {
			o.BestBid = &bid
		}
		outcomes = append(outcomes, o)
	}

	return evaluate(m, outcomes, cfg)
}

// FromAskPrices evaluates a market against separately fetched best-ask
// prices, one per token in market order.
func FromAskPrices(m domain.Market, asks []float64, cfg Config) *domain.Opportunity {
	n := len(m.TokenIDs)
	if len(asks) != n {
		return nil
	}
	if len(m.Outcomes) < n || len(m.OutcomePrices) < n {
		return nil
	}

	outcomes := make([]domain.Outcome, 0, n)
	for i, ask := range asks {
		ask := ask
		outcomes = append(outcomes, domain.Outcome{
			Name:    m.Outcomes[i],
			TokenID: m.TokenIDs[i],
			Price:   m.OutcomePrices[i],
			BestAsk: &ask,
		})
	}

	return evaluate(m, outcomes, cfg)
}

// FromReferencePrices evaluates a market against its own embedded reference
// prices, treating each as an approximate ask. Cheap but optimistic; use it
// to screen candidates before paying for order book fetches. Returns nil
// when the market carries fewer than two prices.
func FromReferencePrices(m domain.Market, cfg Config) *domain.Opportunity {
	n := len(m.OutcomePrices)
	if n < 2 {
		return nil
	}
	if len(m.Outcomes) < n || len(m.TokenIDs) < n {
		return nil
	}

	outcomes := make([]domain.Outcome, 0, n)
	for i, p := range m.OutcomePrices {
		p := p
		outcomes = append(outcomes, domain.Outcome{
			Name:    m.Outcomes[i],
			TokenID: m.TokenIDs[i],
			Price:   p,
			BestAsk: &p,
		})
	}

	return evaluate(m, outcomes, cfg)
}

// evaluate applies the arbitrage identity to a priced outcome set:
//
//	total_cost = Σ best asks
//	gross      = 1.0 − total_cost
//	net        = gross × (1 − fee)     fee applies to profit, not capital
//
// A candidate survives only if total_cost < 1.0 and net ≥ MinProfit; a net
// exactly at the floor is kept. Figures are rounded here, at the reporting
// boundary, to 6 decimals (ROI to 4).
func evaluate(m domain.Market, outcomes []domain.Outcome, cfg Config) *domain.Opportunity {
	var total float64
	for _, o := range outcomes {
		if o.BestAsk != nil {
			total += *o.BestAsk
		}
	}

	if total >= 1.0 {
		return nil
	}

	gross := 1.0 - total
	net := gross * (1.0 - cfg.FeeRate)
	if net < cfg.MinProfit {
		return nil
	}

	roi := 0.0
	if total > 0 {
		roi = net / total * 100.0
	}

	return &domain.Opportunity{
		Market:          m,
		MarketType:      m.Type(),
		Outcomes:        outcomes,
		TotalCost:       round6(total),
		GrossProfit:     round6(gross),
		NetProfit:       round6(net),
		ROIPct:          round4(roi),
		CapitalRequired: round6(total),
	}
}

func round6(v float64) float64 { return math.Round(v*1e6) / 1e6 }

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
