package bot

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrage/polytrage/internal/domain"
)

func TestPortfolioRecordAndSummary(t *testing.T) {
	p := NewPortfolio()

	empty := p.Summary()
	assert.Zero(t, empty.Positions)
	assert.Zero(t, empty.ROIPct, "nothing invested means zero ROI")

	first := p.Record(domain.Opportunity{
		Market:    domain.Market{ID: "m1", Question: strings.Repeat("long ", 30)},
		TotalCost: 0.9,
		NetProfit: 0.098,
	})
	assert.Equal(t, "m1", first.MarketID)
	assert.Len(t, first.Question, 80)
	assert.False(t, first.OpenedAt.IsZero())

	p.Record(domain.Opportunity{
		Market:    domain.Market{ID: "m2", Question: "short"},
		TotalCost: 0.8,
		NetProfit: 0.196,
	})

	s := p.Summary()
	assert.Equal(t, 2, s.Positions)
	assert.InDelta(t, 1.7, s.Invested, 1e-12)
	assert.InDelta(t, 0.294, s.Profit, 1e-12)
	assert.InDelta(t, 0.294/1.7*100, s.ROIPct, 1e-12)

	positions := p.Positions()
	require.Len(t, positions, 2)
	assert.Equal(t, "short", positions[1].Question)
}
