// Package scanner orchestrates the scan funnel: fetch the active-market
// universe, filter it, screen candidates against their cheap reference
// prices, then verify survivors against live order books.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/polytrage/polytrage/internal/arbitrage"
	"github.com/polytrage/polytrage/internal/domain"
	"github.com/polytrage/polytrage/internal/profit"
)

// PrefilterThreshold is the relaxed price-sum cut for the reference-price
// screen. Reference prices are approximate, so the screen admits sets
// costing slightly over a dollar that real asks may still price under it.
const PrefilterThreshold = 1.02

// MarketSource is the slice of the venue client the scanner needs.
type MarketSource interface {
	GetAllActiveMarkets(ctx context.Context, maxMarkets int) ([]domain.Market, error)
	GetMarketOrderBooks(ctx context.Context, m domain.Market) ([]domain.OrderBook, error)
}

// Config tunes a scan cycle.
type Config struct {
	MaxMarkets    int
	MinProfit     float64
	FeeRate       float64
	UseOrderbooks bool // false skips book verification and trusts reference prices
	MinLiquidity  float64
	MinVolume     float64
}

// DefaultConfig returns the standard scan parameters.
func DefaultConfig() Config {
	return Config{
		MaxMarkets:    100,
		MinProfit:     arbitrage.MinProfitThreshold,
		FeeRate:       arbitrage.DefaultFeeRate,
		UseOrderbooks: true,
	}
}

// Result is the outcome of one scan cycle. Errors carries non-fatal
// per-cycle failures; the cycle as a whole still counts as completed.
type Result struct {
	MarketsScanned int
	Opportunities  []domain.Opportunity
	Errors         []string
}

// TotalProfit sums net profit across all opportunities.
func (r *Result) TotalProfit() float64 {
	var total float64
	for _, o := range r.Opportunities {
		total += o.NetProfit
	}
	return total
}

// Best returns the opportunity with the highest net profit, or nil when the
// cycle found none.
func (r *Result) Best() *domain.Opportunity {
	if len(r.Opportunities) == 0 {
		return nil
	}
	best := &r.Opportunities[0]
	for i := range r.Opportunities {
		if r.Opportunities[i].NetProfit > best.NetProfit {
			best = &r.Opportunities[i]
		}
	}
	return best
}

// Scanner runs the scan funnel against a market source.
type Scanner struct {
	client MarketSource
	cfg    Config
	logger *slog.Logger
}

// New creates a scanner.
func New(client MarketSource, cfg Config, logger *slog.Logger) *Scanner {
	return &Scanner{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "scanner")),
	}
}

// Scan runs one full cycle. A returned error means the market universe could
// not be fetched and the cycle produced nothing; it is also recorded in
// Result.Errors for display. Failures against individual markets never fail
// the cycle, they are collected in Result.Errors instead.
func (s *Scanner) Scan(ctx context.Context) (Result, error) {
	var result Result

	markets, err := s.client.GetAllActiveMarkets(ctx, s.cfg.MaxMarkets)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to fetch markets: %v", err))
		return result, fmt.Errorf("scanner: fetch markets: %w", err)
	}

	markets = s.filterMarkets(markets)
	result.MarketsScanned = len(markets)
	s.logger.Info("scanning markets", slog.Int("count", len(markets)))

	candidates := prefilter(markets)
	s.logger.Info("reference-price screen complete",
		slog.Int("candidates", len(candidates)))

	var opportunities []domain.Opportunity
	if s.cfg.UseOrderbooks && len(candidates) > 0 {
		opportunities = s.deepScan(ctx, candidates, &result)
	} else {
		// Without book verification the reference-price evaluation is final.
		for _, m := range candidates {
			if opp := arbitrage.FromReferencePrices(m, s.evalConfig()); opp != nil {
				opportunities = append(opportunities, *opp)
			}
		}
	}

	sort.SliceStable(opportunities, func(i, j int) bool {
		return opportunities[i].ROIPct > opportunities[j].ROIPct
	})
	result.Opportunities = opportunities

	return result, nil
}

// filterMarkets drops inactive, thin, and single-outcome markets before any
// pricing work.
func (s *Scanner) filterMarkets(markets []domain.Market) []domain.Market {
	filtered := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		if !m.Active {
			continue
		}
		if m.Liquidity < s.cfg.MinLiquidity {
			continue
		}
		if m.Volume < s.cfg.MinVolume {
			continue
		}
		if len(m.TokenIDs) < 2 {
			continue
		}
		filtered = append(filtered, m)
	}
	return filtered
}

// prefilter keeps markets whose reference prices sum under the relaxed
// threshold. No network calls happen here.
func prefilter(markets []domain.Market) []domain.Market {
	candidates := make([]domain.Market, 0, len(markets))
	for _, m := range markets {
		var total float64
		for _, p := range m.OutcomePrices {
			total += p
		}
		if total < PrefilterThreshold {
			candidates = append(candidates, m)
		}
	}
	return candidates
}

// deepScan verifies candidates against live order books concurrently. The
// client's own concurrency cap throttles the fan-out. A failure on one
// market is recorded and does not disturb the others.
func (s *Scanner) deepScan(ctx context.Context, candidates []domain.Market, result *Result) []domain.Opportunity {
	type checked struct {
		opp *domain.Opportunity
		err error
	}
	results := make([]checked, len(candidates))

	var wg sync.WaitGroup
	for i, m := range candidates {
		i, m := i, m
		wg.Add(1)
		go func() {
			defer wg.Done()
			opp, err := s.checkMarket(ctx, m)
			results[i] = checked{opp: opp, err: err}
		}()
	}
	wg.Wait()

	var opportunities []domain.Opportunity
	for i, res := range results {
		if res.err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("scan %s: %v", candidates[i].Slug, res.err))
			continue
		}
		if res.opp != nil {
			opportunities = append(opportunities, *res.opp)
		}
	}
	return opportunities
}

// checkMarket fetches a candidate's order books and evaluates them. Found
// opportunities are logged together with their divergence bound.
func (s *Scanner) checkMarket(ctx context.Context, m domain.Market) (*domain.Opportunity, error) {
	books, err := s.client.GetMarketOrderBooks(ctx, m)
	if err != nil {
		return nil, err
	}

	opp := arbitrage.FromOrderBooks(m, books, s.evalConfig())
	if opp != nil {
		asks := make([]float64, 0, len(opp.Outcomes))
		for _, o := range opp.Outcomes {
			if o.BestAsk != nil {
				asks = append(asks, *o.BestAsk)
			}
		}
		params := profit.DefaultParams()
		params.FeeRate = s.cfg.FeeRate
		guarantee := profit.Evaluate(asks, nil, params)
		s.logger.Info("arbitrage found",
			slog.String("market", m.Slug),
			slog.Float64("total_cost", opp.TotalCost),
			slog.Float64("net_profit", opp.NetProfit),
			slog.Float64("roi_pct", opp.ROIPct),
			slog.Float64("kl_divergence", guarantee.KLDivergence),
		)
	}
	return opp, nil
}

func (s *Scanner) evalConfig() arbitrage.Config {
	return arbitrage.Config{FeeRate: s.cfg.FeeRate, MinProfit: s.cfg.MinProfit}
}
