package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polytrage/polytrage/internal/domain"
)

// defaultMaxMemory caps the in-memory record buffer behind Recent.
const defaultMaxMemory = 1000

// JournalStore implements domain.Journal using PostgreSQL. The table is the
// durable log; a bounded in-memory view backs Recent and Totals so reads
// never touch the database mid-scan.
type JournalStore struct {
	pool      *pgxpool.Pool
	maxMemory int

	mu      sync.Mutex
	records []domain.TradeRecord
	totals  domain.JournalTotals
}

// NewJournalStore creates a journal backed by the given connection pool.
// maxMemory bounds the record buffer; 0 or less selects the default.
func NewJournalStore(pool *pgxpool.Pool, maxMemory int) *JournalStore {
	if maxMemory <= 0 {
		maxMemory = defaultMaxMemory
	}
	return &JournalStore{pool: pool, maxMemory: maxMemory}
}

const journalSelectCols = `id, timestamp, market_id, market_question,
	total_cost, net_profit, roi_pct`

func scanJournalRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var recs []domain.TradeRecord
	for rows.Next() {
		var r domain.TradeRecord
		if err := rows.Scan(
			&r.ID, &r.Timestamp, &r.MarketID, &r.MarketQuestion,
			&r.TotalCost, &r.NetProfit, &r.ROIPct,
		); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Load seeds the totals and the recent-record buffer from the table.
func (s *JournalStore) Load(ctx context.Context) error {
	var totals domain.JournalTotals
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_cost), 0), COALESCE(SUM(net_profit), 0)
		FROM paper_trades`,
	).Scan(&totals.Trades, &totals.TotalInvested, &totals.TotalProfit)
	if err != nil {
		return fmt.Errorf("postgres: load journal totals: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+journalSelectCols+` FROM paper_trades ORDER BY timestamp DESC LIMIT $1`,
		s.maxMemory,
	)
	if err != nil {
		return fmt.Errorf("postgres: load recent trades: %w", err)
	}
	defer rows.Close()

	recs, err := scanJournalRows(rows)
	if err != nil {
		return fmt.Errorf("postgres: scan recent trades: %w", err)
	}

	// The query returns newest first; the buffer is kept oldest first.
	for i, j := 0, len(recs)-1; i < j; i, j = i+1, j-1 {
		recs[i], recs[j] = recs[j], recs[i]
	}

	s.mu.Lock()
	s.records = recs
	s.totals = totals
	s.mu.Unlock()
	return nil
}

// Record inserts one fill. Memory is updated only after the insert succeeds
// so Totals always matches what the table holds.
func (s *JournalStore) Record(ctx context.Context, rec domain.TradeRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO paper_trades (
			id, timestamp, market_id, market_question,
			total_cost, net_profit, roi_pct
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Timestamp, rec.MarketID, rec.MarketQuestion,
		rec.TotalCost, rec.NetProfit, rec.ROIPct,
	)
	if err != nil {
		return fmt.Errorf("postgres: record trade: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if n := len(s.records); n > s.maxMemory {
		trimmed := make([]domain.TradeRecord, s.maxMemory)
		copy(trimmed, s.records[n-s.maxMemory:])
		s.records = trimmed
	}
	s.totals.Trades++
	s.totals.TotalInvested += rec.TotalCost
	s.totals.TotalProfit += rec.NetProfit
	return nil
}

// Recent returns up to limit records, newest first. A limit of 0 or less
// returns everything in the buffer.
func (s *JournalStore) Recent(limit int) []domain.TradeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.TradeRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.records[i])
	}
	return out
}

// Totals reports everything ever recorded, including rows outside the
// in-memory buffer.
func (s *JournalStore) Totals() domain.JournalTotals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}
