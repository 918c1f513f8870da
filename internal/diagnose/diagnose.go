// Package diagnose reports how close the market currently sits to an
// arbitrage: ask sums, bid sums, and the profit a fill would have produced,
// for the tightest binary markets and negative-risk groups.
package diagnose

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/polytrage/polytrage/internal/arbitrage"
	"github.com/polytrage/polytrage/internal/domain"
)

// MarketSource is the slice of the venue client the diagnostic needs.
type MarketSource interface {
	GetAllActiveMarkets(ctx context.Context, maxMarkets int) ([]domain.Market, error)
	GetMarketOrderBooks(ctx context.Context, m domain.Market) ([]domain.OrderBook, error)
	GetOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)
}

// Config tunes a diagnostic run.
type Config struct {
	MaxMarkets int // markets to fetch from the universe
	Deep       int // rows to deep-scan; 3x this many binary books are pulled
}

// DefaultConfig returns the standard diagnostic parameters.
func DefaultConfig() Config {
	return Config{MaxMarkets: 200, Deep: 10}
}

// binaryRow is one two-outcome market's book snapshot.
type binaryRow struct {
	AskSum   float64
	BidSum   float64
	Net      float64
	Question string
}

// groupRow is one negative-risk family's cross-bucket snapshot.
type groupRow struct {
	Buckets int
	AskSum  float64
	Net     float64
	Label   string
}

// Runner executes the diagnostic against a market source and renders the
// report to out.
type Runner struct {
	client MarketSource
	cfg    Config
	logger *slog.Logger
	out    io.Writer
}

// New creates a diagnostic runner.
func New(client MarketSource, cfg Config, logger *slog.Logger, out io.Writer) *Runner {
	return &Runner{
		client: client,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "diagnose")),
		out:    out,
	}
}

// Run fetches the universe, snapshots the closest candidates on both sides
// of the book, and prints the report. Individual market failures are
// skipped; only a dead universe fetch fails the run.
func (r *Runner) Run(ctx context.Context) error {
	markets, err := r.client.GetAllActiveMarkets(ctx, r.cfg.MaxMarkets)
	if err != nil {
		return fmt.Errorf("diagnose: fetch markets: %w", err)
	}

	fmt.Fprintf(r.out, "Polytrage diagnostics: %d active markets\n\n", len(markets))

	var binary, negRisk []domain.Market
	for _, m := range markets {
		switch {
		case m.NegRisk:
			negRisk = append(negRisk, m)
		case m.NumOutcomes() == 2:
			binary = append(binary, m)
		}
	}

	binaryRows := r.collectBinary(ctx, binary)
	r.printBinary(binaryRows, len(binary))

	groupRows := r.collectGroups(ctx, negRisk)
	r.printGroups(groupRows, len(negRisk))

	r.printSummary(binaryRows, groupRows)
	return nil
}

// collectBinary pulls books for the head of the binary list. Markets whose
// books fail to fetch or lack a two-sided quote are dropped.
func (r *Runner) collectBinary(ctx context.Context, markets []domain.Market) []binaryRow {
	limit := r.cfg.Deep * 3
	if limit > len(markets) {
		limit = len(markets)
	}

	var rows []binaryRow
	for _, m := range markets[:limit] {
		books, err := r.client.GetMarketOrderBooks(ctx, m)
		if err != nil {
			r.logger.DebugContext(ctx, "skipping market",
				slog.String("slug", m.Slug),
				slog.String("error", err.Error()))
			continue
		}

		var askSum, bidSum float64
		asks, bids := 0, 0
		for _, book := range books {
			if ask, ok := book.BestAsk(); ok {
				askSum += ask
				asks++
			}
			if bid, ok := book.BestBid(); ok {
				bidSum += bid
				bids++
			}
		}
		if asks != 2 || bids != 2 {
			continue
		}

		rows = append(rows, binaryRow{
			AskSum:   askSum,
			BidSum:   bidSum,
			Net:      wouldBeNet(askSum),
			Question: clip(m.Question, 55),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].AskSum < rows[j].AskSum })
	return rows
}

// collectGroups buckets negative-risk markets by slug family and sums the
// first outcome's best ask across each family. A family with any
// unfetchable or one-sided book is dropped, but still consumes one of the
// Deep analysis slots.
func (r *Runner) collectGroups(ctx context.Context, markets []domain.Market) []groupRow {
	keys, groups := groupBySlug(markets)

	var rows []groupRow
	analyzed := 0
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		if analyzed >= r.cfg.Deep {
			break
		}
		analyzed++

		askSum, ok := r.groupAskSum(ctx, group)
		if !ok {
			continue
		}
		rows = append(rows, groupRow{
			Buckets: len(group),
			AskSum:  askSum,
			Net:     wouldBeNet(askSum),
			Label:   clip(group[0].Question, 50),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].AskSum < rows[j].AskSum })
	return rows
}

// groupBySlug keys markets by their first four slug segments, the shared
// stem of one negative-risk family. Keys come back in first-seen order.
func groupBySlug(markets []domain.Market) ([]string, map[string][]domain.Market) {
	groups := make(map[string][]domain.Market)
	var keys []string
	for _, m := range markets {
		parts := strings.Split(m.Slug, "-")
		if len(parts) > 4 {
			parts = parts[:4]
		}
		key := strings.Join(parts, "-")
		if _, seen := groups[key]; !seen {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], m)
	}
	return keys, groups
}

func (r *Runner) groupAskSum(ctx context.Context, group []domain.Market) (float64, bool) {
	var total float64
	for _, m := range group {
		if len(m.TokenIDs) == 0 {
			return 0, false
		}
		book, err := r.client.GetOrderBook(ctx, m.TokenIDs[0])
		if err != nil {
			r.logger.DebugContext(ctx, "skipping group",
				slog.String("slug", m.Slug),
				slog.String("error", err.Error()))
			return 0, false
		}
		ask, ok := book.BestAsk()
		if !ok {
			return 0, false
		}
		total += ask
	}
	return total, true
}

// wouldBeNet is the profit a one-unit fill would net at the quoted asks,
// fee-adjusted only when the set actually costs under a dollar.
func wouldBeNet(askSum float64) float64 {
	if askSum < 1.0 {
		return (1.0 - askSum) * (1.0 - arbitrage.DefaultFeeRate)
	}
	return 1.0 - askSum
}

func (r *Runner) printBinary(rows []binaryRow, total int) {
	fmt.Fprintf(r.out, "Binary markets (%d total, %d quoted)\n", total, len(rows))
	w := tabwriter.NewWriter(r.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ASK SUM\tBID SUM\tSPREAD\tNET\tMARKET")
	for _, row := range rows {
		fmt.Fprintf(w, "$%.4f\t$%.4f\t$%.4f\t$%.4f\t%s%s\n",
			row.AskSum, row.BidSum, row.AskSum-row.BidSum, row.Net,
			arbMark(row.Net), row.Question)
	}
	w.Flush()
	fmt.Fprintln(r.out)
}

func (r *Runner) printGroups(rows []groupRow, total int) {
	fmt.Fprintf(r.out, "Negative-risk groups (%d markets, %d groups quoted)\n", total, len(rows))
	w := tabwriter.NewWriter(r.out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BUCKETS\tTOTAL ASK\tNET\tGROUP")
	for _, row := range rows {
		fmt.Fprintf(w, "%d\t$%.4f\t$%.4f\t%s%s\n",
			row.Buckets, row.AskSum, row.Net, arbMark(row.Net), row.Label)
	}
	w.Flush()
	fmt.Fprintln(r.out)
}

func (r *Runner) printSummary(binary []binaryRow, groups []groupRow) {
	binaryArbs := 0
	for _, row := range binary {
		if row.Net > 0 {
			binaryArbs++
		}
	}
	groupArbs := 0
	for _, row := range groups {
		if row.Net > 0 {
			groupArbs++
		}
	}

	fmt.Fprintln(r.out, "Summary")
	fmt.Fprintf(r.out, "  binary arbitrage opportunities:  %d\n", binaryArbs)
	fmt.Fprintf(r.out, "  negrisk arbitrage opportunities: %d\n", groupArbs)
	if len(binary) > 0 {
		fmt.Fprintf(r.out, "  closest binary to arb:  ask sum $%.4f (need < $1.00)\n", binary[0].AskSum)
	}
	if len(groups) > 0 {
		fmt.Fprintf(r.out, "  closest negrisk to arb: ask sum $%.4f (need < $1.00)\n", groups[0].AskSum)
	}
	if binaryArbs == 0 && groupArbs == 0 {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, "  Market is efficiently priced, no arbitrage detected.")
		fmt.Fprintln(r.out, "  Run the scanner continuously to catch fleeting openings.")
	}
}

func arbMark(net float64) string {
	if net > 0 {
		return "** ARB ** "
	}
	return ""
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
