package bot

import (
	"time"

	"github.com/polytrage/polytrage/internal/domain"
)

// PaperPosition is one simulated complete-set purchase.
type PaperPosition struct {
	MarketID  string
	Question  string
	Cost      float64
	NetProfit float64
	ROIPct    float64
	OpenedAt  time.Time
}

// PortfolioSummary is the running total over all simulated fills.
type PortfolioSummary struct {
	Positions int
	Invested  float64
	Profit    float64
	ROIPct    float64
}

// Portfolio tracks simulated fills while paper trading is on. The scan loop
// is its only caller; it is not safe for concurrent use.
type Portfolio struct {
	positions []PaperPosition
	invested  float64
	profit    float64
}

// NewPortfolio creates an empty paper portfolio.
func NewPortfolio() *Portfolio {
	return &Portfolio{}
}

// Record books opp as a simulated fill and returns the resulting position.
// Questions are cut at 80 characters for the in-memory view.
func (p *Portfolio) Record(opp domain.Opportunity) PaperPosition {
	question := opp.Market.Question
	if len(question) > 80 {
		question = question[:80]
	}
	pos := PaperPosition{
		MarketID:  opp.Market.ID,
		Question:  question,
		Cost:      opp.TotalCost,
		NetProfit: opp.NetProfit,
		ROIPct:    opp.ROIPct,
		OpenedAt:  time.Now().UTC(),
	}
	p.positions = append(p.positions, pos)
	p.invested += opp.TotalCost
	p.profit += opp.NetProfit
	return pos
}

// Positions returns a copy of all recorded fills, oldest first.
func (p *Portfolio) Positions() []PaperPosition {
	return append([]PaperPosition(nil), p.positions...)
}

// Summary returns the running totals. ROI is 0 while nothing is invested.
func (p *Portfolio) Summary() PortfolioSummary {
	roi := 0.0
	if p.invested > 0 {
		roi = p.profit / p.invested * 100
	}
	return PortfolioSummary{
		Positions: len(p.positions),
		Invested:  p.invested,
		Profit:    p.profit,
		ROIPct:    roi,
	}
}
