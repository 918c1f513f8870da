package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polytrage/polytrage/internal/notify"
)

// DefaultChannel is the Pub/Sub channel opportunities are published to when
// the config does not name one.
const DefaultChannel = "polytrage.opportunities"

// opportunityMessage is the wire format published per hit. Prices were
// rounded when the opportunity was built; they go out as-is.
type opportunityMessage struct {
	Kind           string           `json:"kind"`
	PublishedAt    time.Time        `json:"published_at"`
	MarketID       string           `json:"market_id"`
	MarketSlug     string           `json:"market_slug"`
	MarketQuestion string           `json:"market_question"`
	TotalCost      float64          `json:"total_cost"`
	GrossProfit    float64          `json:"gross_profit"`
	NetProfit      float64          `json:"net_profit"`
	ROIPct         float64          `json:"roi_pct"`
	Outcomes       []outcomeMessage `json:"outcomes"`
}

type outcomeMessage struct {
	Name    string   `json:"name"`
	TokenID string   `json:"token_id"`
	BestAsk *float64 `json:"best_ask,omitempty"`
}

// Publisher forwards detected opportunities to a Redis Pub/Sub channel. It
// plugs into the notifier as one more sender; events other than
// opportunities are dropped so the channel stays a machine-readable feed of
// hits.
type Publisher struct {
	rdb     *redis.Client
	channel string
}

// NewPublisher creates a Publisher backed by the given Client. An empty
// channel selects DefaultChannel.
func NewPublisher(c *Client, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{rdb: c.Underlying(), channel: channel}
}

// Send publishes the event's opportunity as JSON. Non-opportunity events are
// ignored.
func (p *Publisher) Send(ctx context.Context, ev notify.Event) error {
	if ev.Kind != notify.EventOpportunity || ev.Opportunity == nil {
		return nil
	}

	opp := ev.Opportunity
	msg := opportunityMessage{
		Kind:           string(ev.Kind),
		PublishedAt:    time.Now().UTC(),
		MarketID:       opp.Market.ID,
		MarketSlug:     opp.Market.Slug,
		MarketQuestion: opp.Market.Question,
		TotalCost:      opp.TotalCost,
		GrossProfit:    opp.GrossProfit,
		NetProfit:      opp.NetProfit,
		ROIPct:         opp.ROIPct,
	}
	for _, o := range opp.Outcomes {
		msg.Outcomes = append(msg.Outcomes, outcomeMessage{
			Name:    o.Name,
			TokenID: o.TokenID,
			BestAsk: o.BestAsk,
		})
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("redis: marshal opportunity: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", p.channel, err)
	}
	return nil
}

// Name identifies the sender in notifier logs.
func (p *Publisher) Name() string {
	return "redis"
}

// Compile-time interface check.
var _ notify.Sender = (*Publisher)(nil)
