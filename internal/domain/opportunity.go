package domain

// Outcome is the evaluation-time view of one tradeable outcome. BestAsk and
// BestBid are nil when the corresponding book side was empty or never
// fetched. Constructed per evaluation, never persisted.
type Outcome struct {
	Name    string
	TokenID string
	Price   float64 // last-known reference price
	BestAsk *float64
	BestBid *float64
}

// Opportunity is a verified arbitrage opening: buying one unit of every
// outcome costs TotalCost and pays exactly $1.00 at resolution, whichever
// outcome wins. Monetary fields are rounded to 6 decimals (ROI to 4) when
// the value is built; nothing downstream recomputes them.
type Opportunity struct {
	Market          Market
	MarketType      MarketType
	Outcomes        []Outcome
	TotalCost       float64
	GrossProfit     float64
	NetProfit       float64
	ROIPct          float64
	CapitalRequired float64
}

// ProfitGuarantee bounds the value extractable from a mispriced outcome set.
// GuaranteedProfit is a lower bound net of fees; the true figure may be
// higher but never lower.
type ProfitGuarantee struct {
	KLDivergence     float64
	FWGap            float64
	GuaranteedProfit float64
	ExtractionPct    float64
	ShouldTrade      bool
}
