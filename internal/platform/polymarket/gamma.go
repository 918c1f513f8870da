package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/polytrage/polytrage/internal/domain"
)

// GetActiveMarkets returns one page of active (non-closed) markets from the
// Gamma API. Items that fail to parse are skipped so one malformed market
// cannot poison a page.
func (c *Client) GetActiveMarkets(ctx context.Context, limit, offset int) ([]domain.Market, error) {
	params := url.Values{}
	params.Set("closed", "false")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var items []json.RawMessage
	if err := c.getJSON(ctx, c.cfg.GammaURL+"/markets", params, &items); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: list markets: %w", err)
	}

	markets := make([]domain.Market, 0, len(items))
	for _, raw := range items {
		var item apiMarket
		if err := json.Unmarshal(raw, &item); err != nil {
			c.logger.Debug("skipping undecodable market", slog.Any("error", err))
			continue
		}
		m, err := item.toDomain()
		if err != nil {
			if !errors.Is(err, errMarketIncomplete) {
				c.logger.Debug("skipping unparseable market",
					slog.String("id", string(item.ID)), slog.Any("error", err))
			}
			continue
		}
		markets = append(markets, m)
	}

	return markets, nil
}

// GetAllActiveMarkets pages through active markets up to maxMarkets,
// stopping early when the venue runs out of pages.
func (c *Client) GetAllActiveMarkets(ctx context.Context, maxMarkets int) ([]domain.Market, error) {
	var all []domain.Market
	offset := 0
	for offset < maxMarkets {
		batch, err := c.GetActiveMarkets(ctx, pageSize, offset)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		all = append(all, batch...)
		offset += len(batch)
	}
	if len(all) > maxMarkets {
		all = all[:maxMarkets]
	}
	return all, nil
}
