package domain

// MarketType distinguishes a plain two-outcome market from a multi-outcome
// negative-risk group.
type MarketType string

const (
	MarketTypeBinary  MarketType = "binary"
	MarketTypeNegRisk MarketType = "negrisk"
)

// Market is an immutable snapshot of one Polymarket market, built once per
// fetch cycle from raw Gamma API data and discarded after the cycle.
//
// Outcomes, TokenIDs and OutcomePrices are parallel lists: index i describes
// one tradeable outcome. Parsing guarantees equal lengths of at least 2.
type Market struct {
	ID            string
	Question      string
	Slug          string
	Outcomes      []string
	TokenIDs      []string
	OutcomePrices []float64
	NegRisk       bool
	Volume        float64
	Liquidity     float64
	Active        bool
}

// Type returns the market classification used in reports.
func (m Market) Type() MarketType {
	if m.NegRisk {
		return MarketTypeNegRisk
	}
	return MarketTypeBinary
}

// NumOutcomes returns the number of tradeable outcomes.
func (m Market) NumOutcomes() int {
	return len(m.Outcomes)
}
