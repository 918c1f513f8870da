package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TradeRecord is one simulated fill appended to the trade journal.
type TradeRecord struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	MarketID       string    `json:"market_id"`
	MarketQuestion string    `json:"market_question"`
	TotalCost      float64   `json:"total_cost"`
	NetProfit      float64   `json:"net_profit"`
	ROIPct         float64   `json:"roi_pct"`
}

// NewTradeRecord builds the journal entry for one simulated fill. Long
// questions are cut at 200 characters to keep records bounded.
func NewTradeRecord(opp Opportunity) TradeRecord {
	question := opp.Market.Question
	if len(question) > 200 {
		question = question[:200]
	}
	return TradeRecord{
		ID:             uuid.New().String(),
		Timestamp:      time.Now().UTC(),
		MarketID:       opp.Market.ID,
		MarketQuestion: question,
		TotalCost:      opp.TotalCost,
		NetProfit:      opp.NetProfit,
		ROIPct:         opp.ROIPct,
	}
}

// JournalTotals summarises everything the journal has recorded.
type JournalTotals struct {
	Trades        int
	TotalInvested float64
	TotalProfit   float64
}

// ROIPct returns the blended return on invested capital, 0 when nothing has
// been invested.
func (t JournalTotals) ROIPct() float64 {
	if t.TotalInvested <= 0 {
		return 0
	}
	return t.TotalProfit / t.TotalInvested * 100
}

// Journal is the append-only paper-trade log. Load restores state from the
// backing store on startup; Record appends one fill.
type Journal interface {
	Load(ctx context.Context) error
	Record(ctx context.Context, rec TradeRecord) error
	Recent(limit int) []TradeRecord
	Totals() JournalTotals
}
