package arbitrage_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrage/polytrage/internal/arbitrage"
	"github.com/polytrage/polytrage/internal/domain"
)

func binaryMarket() domain.Market {
	return domain.Market{
		ID:            "0xmkt",
		Question:      "Will it settle yes?",
		Slug:          "will-it-settle-yes",
		Outcomes:      []string{"Yes", "No"},
		TokenIDs:      []string{"tok-yes", "tok-no"},
		OutcomePrices: []float64{0.5, 0.5},
		Active:        true,
		Liquidity:     5000,
		Volume:        25000,
	}
}

func askBook(price, size float64) domain.OrderBook {
	return domain.OrderBook{Asks: []domain.BookLevel{{Price: price, Size: size}}}
}

func TestFromOrderBooksProfitable(t *testing.T) {
	m := binaryMarket()
	books := []domain.OrderBook{
		{
			Bids: []domain.BookLevel{{Price: 0.46, Size: 100}},
			Asks: []domain.BookLevel{{Price: 0.48, Size: 100}},
		},
		askBook(0.49, 200),
	}

	opp := arbitrage.FromOrderBooks(m, books, arbitrage.DefaultConfig())
	require.NotNil(t, opp)

	assert.Equal(t, 0.97, opp.TotalCost)
	assert.Equal(t, 0.03, opp.GrossProfit)
	assert.Equal(t, 0.0294, opp.NetProfit)
	assert.Equal(t, 3.0309, opp.ROIPct)
	assert.Equal(t, opp.TotalCost, opp.CapitalRequired)
	assert.Equal(t, domain.MarketTypeBinary, opp.MarketType)

	require.Len(t, opp.Outcomes, 2)
	assert.Equal(t, "Yes", opp.Outcomes[0].Name)
	assert.Equal(t, "tok-yes", opp.Outcomes[0].TokenID)
	require.NotNil(t, opp.Outcomes[0].BestBid)
	assert.Equal(t, 0.46, *opp.Outcomes[0].BestBid)
	assert.Nil(t, opp.Outcomes[1].BestBid, "book without bids leaves the field unset")
}

func TestFromOrderBooksRejects(t *testing.T) {
	m := binaryMarket()

	t.Run("asks at or above one dollar", func(t *testing.T) {
		books := []domain.OrderBook{askBook(0.50, 10), askBook(0.50, 10)}
		assert.Nil(t, arbitrage.FromOrderBooks(m, books, arbitrage.DefaultConfig()))
	})

	t.Run("book count mismatch", func(t *testing.T) {
		books := []domain.OrderBook{askBook(0.40, 10)}
		assert.Nil(t, arbitrage.FromOrderBooks(m, books, arbitrage.DefaultConfig()))
	})

	t.Run("outcome with no asks", func(t *testing.T) {
		books := []domain.OrderBook{askBook(0.40, 10), {Bids: []domain.BookLevel{{Price: 0.3, Size: 5}}}}
		assert.Nil(t, arbitrage.FromOrderBooks(m, books, arbitrage.DefaultConfig()))
	})

	t.Run("net profit under the floor", func(t *testing.T) {
		books := []domain.OrderBook{askBook(0.499, 10), askBook(0.5, 10)}
		assert.Nil(t, arbitrage.FromOrderBooks(m, books, arbitrage.DefaultConfig()))
	})
}

func TestFromOrderBooksNetAtFloorIsKept(t *testing.T) {
	m := binaryMarket()
	books := []domain.OrderBook{askBook(0.4, 10), askBook(0.4, 10)}
	net := (1.0 - (0.4 + 0.4)) * (1.0 - 0.02)

	cfg := arbitrage.Config{FeeRate: 0.02, MinProfit: net}
	require.NotNil(t, arbitrage.FromOrderBooks(m, books, cfg), "net exactly at the floor must pass")

	cfg.MinProfit = math.Nextafter(net, 1)
	assert.Nil(t, arbitrage.FromOrderBooks(m, books, cfg), "one ulp above the floor must reject")
}

func TestFromOrderBooksFeeOnProfitOnly(t *testing.T) {
	m := binaryMarket()
	books := []domain.OrderBook{askBook(0.4, 10), askBook(0.4, 10)}

	opp := arbitrage.FromOrderBooks(m, books, arbitrage.DefaultConfig())
	require.NotNil(t, opp)

	// $0.20 gross on $0.80 of capital; the 2% fee touches only the gross.
	assert.Equal(t, 0.8, opp.TotalCost)
	assert.Equal(t, 0.2, opp.GrossProfit)
	assert.Equal(t, 0.196, opp.NetProfit)
	assert.Equal(t, 24.5, opp.ROIPct)
}

func TestFromAskPrices(t *testing.T) {
	m := binaryMarket()

	opp := arbitrage.FromAskPrices(m, []float64{0.45, 0.45}, arbitrage.DefaultConfig())
	require.NotNil(t, opp)
	assert.Equal(t, 0.9, opp.TotalCost)
	require.NotNil(t, opp.Outcomes[0].BestAsk)
	assert.Equal(t, 0.45, *opp.Outcomes[0].BestAsk)
	assert.Nil(t, opp.Outcomes[0].BestBid)

	assert.Nil(t, arbitrage.FromAskPrices(m, []float64{0.45}, arbitrage.DefaultConfig()),
		"price count must match token count")
}

func TestFromReferencePrices(t *testing.T) {
	m := binaryMarket()
	m.OutcomePrices = []float64{0.44, 0.42}

	opp := arbitrage.FromReferencePrices(m, arbitrage.DefaultConfig())
	require.NotNil(t, opp)
	assert.Equal(t, 0.86, opp.TotalCost)
	require.NotNil(t, opp.Outcomes[0].BestAsk)
	assert.Equal(t, m.OutcomePrices[0], *opp.Outcomes[0].BestAsk, "reference price stands in for the ask")
	assert.Equal(t, m.OutcomePrices[0], opp.Outcomes[0].Price)
}

func TestFromReferencePricesNeedsTwoPrices(t *testing.T) {
	m := binaryMarket()
	m.OutcomePrices = []float64{0.5}
	assert.Nil(t, arbitrage.FromReferencePrices(m, arbitrage.DefaultConfig()))

	m.OutcomePrices = nil
	assert.Nil(t, arbitrage.FromReferencePrices(m, arbitrage.DefaultConfig()))
}

func TestNegRiskMarketType(t *testing.T) {
	m := domain.Market{
		ID:            "0xnr",
		Question:      "Who wins the nomination?",
		Slug:          "who-wins-the-nomination",
		Outcomes:      []string{"A", "B", "C"},
		TokenIDs:      []string{"tok-a", "tok-b", "tok-c"},
		OutcomePrices: []float64{0.3, 0.3, 0.3},
		NegRisk:       true,
	}
	books := []domain.OrderBook{askBook(0.31, 10), askBook(0.32, 10), askBook(0.3, 10)}

	opp := arbitrage.FromOrderBooks(m, books, arbitrage.DefaultConfig())
	require.NotNil(t, opp)
	assert.Equal(t, domain.MarketTypeNegRisk, opp.MarketType)
	assert.Equal(t, 0.93, opp.TotalCost)
}

func TestZeroTotalCostKeepsZeroROI(t *testing.T) {
	m := binaryMarket()

	opp := arbitrage.FromAskPrices(m, []float64{0, 0}, arbitrage.DefaultConfig())
	require.NotNil(t, opp)
	assert.Equal(t, 0.0, opp.TotalCost)
	assert.Equal(t, 0.98, opp.NetProfit)
	assert.Equal(t, 0.0, opp.ROIPct, "ROI is defined as zero when no capital is at risk")
}
