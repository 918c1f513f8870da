package polymarket

import (
	"context"
	"fmt"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/polytrage/polytrage/internal/domain"
)

// GetOrderBook fetches the full order book for a token.
func (c *Client) GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	var book apiBook
	if err := c.getJSON(ctx, c.cfg.ClobURL+"/book", params, &book); err != nil {
		return domain.OrderBook{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}
	return book.toDomain(), nil
}

// GetPrice fetches the best price for a token on one side, "buy" or "sell".
func (c *Client) GetPrice(ctx context.Context, tokenID, side string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)
	params.Set("side", side)

	var pr apiPrice
	if err := c.getJSON(ctx, c.cfg.ClobURL+"/price", params, &pr); err != nil {
		return 0, fmt.Errorf("polymarket/clob: get price %s: %w", tokenID, err)
	}
	if pr.Price == nil {
		return 0, fmt.Errorf("polymarket/clob: get price %s: response missing price", tokenID)
	}
	return float64(*pr.Price), nil
}

// GetMidpoint fetches the midpoint price for a token.
func (c *Client) GetMidpoint(ctx context.Context, tokenID string) (float64, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	var mp apiMidpoint
	if err := c.getJSON(ctx, c.cfg.ClobURL+"/midpoint", params, &mp); err != nil {
		return 0, fmt.Errorf("polymarket/clob: get midpoint %s: %w", tokenID, err)
	}
	if mp.Mid == nil {
		return 0, fmt.Errorf("polymarket/clob: get midpoint %s: response missing mid", tokenID)
	}
	return float64(*mp.Mid), nil
}

// GetMarketPrices fetches best-ask prices for every outcome of a market
// concurrently, returned in token order. One failed leg fails the market.
func (c *Client) GetMarketPrices(ctx context.Context, m domain.Market) ([]float64, error) {
	g, ctx := errgroup.WithContext(ctx)
	prices := make([]float64, len(m.TokenIDs))
	for i, tokenID := range m.TokenIDs {
		i, tokenID := i, tokenID
		g.Go(func() error {
			p, err := c.GetPrice(ctx, tokenID, "buy")
			if err != nil {
				return err
			}
			prices[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return prices, nil
}

// GetMarketOrderBooks fetches order books for every outcome of a market
// concurrently, returned in token order. One failed leg fails the market.
func (c *Client) GetMarketOrderBooks(ctx context.Context, m domain.Market) ([]domain.OrderBook, error) {
	g, ctx := errgroup.WithContext(ctx)
	books := make([]domain.OrderBook, len(m.TokenIDs))
	for i, tokenID := range m.TokenIDs {
		i, tokenID := i, tokenID
		g.Go(func() error {
			book, err := c.GetOrderBook(ctx, tokenID)
			if err != nil {
				return err
			}
			books[i] = book
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return books, nil
}
