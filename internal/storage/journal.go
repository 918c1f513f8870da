// Package storage persists the paper-trade journal as append-only JSON
// lines. The in-memory view is trimmed to a bounded buffer of the newest
// records; running totals keep counting past the trim.
package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/polytrage/polytrage/internal/domain"
)

// DefaultMaxMemory bounds the in-memory record buffer.
const DefaultMaxMemory = 1000

// Journal is the JSONL implementation of domain.Journal. An empty path keeps
// the journal memory-only. Safe for concurrent use.
type Journal struct {
	path      string
	maxMemory int
	logger    *slog.Logger

	mu      sync.Mutex
	records []domain.TradeRecord
	totals  domain.JournalTotals
}

// NewJournal creates a journal backed by the JSONL file at path. Pass an
// empty path for a memory-only journal.
func NewJournal(path string, maxMemory int, logger *slog.Logger) *Journal {
	if maxMemory <= 0 {
		maxMemory = DefaultMaxMemory
	}
	return &Journal{
		path:      path,
		maxMemory: maxMemory,
		logger:    logger.With(slog.String("component", "journal")),
	}
}

// Load restores records from disk. Malformed lines are logged and skipped so
// one bad write never loses the journal. A missing file is a clean first run.
func (j *Journal) Load(ctx context.Context) error {
	if j.path == "" {
		return nil
	}

	f, err := os.Open(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: open journal: %w", err)
	}
	defer f.Close()

	j.mu.Lock()
	defer j.mu.Unlock()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rec domain.TradeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			j.logger.WarnContext(ctx, "skipping malformed journal line",
				slog.Int("line", line),
				slog.String("error", err.Error()),
			)
			continue
		}
		j.add(rec)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("storage: read journal: %w", err)
	}

	if j.totals.Trades > 0 {
		j.logger.InfoContext(ctx, "journal loaded",
			slog.String("path", j.path),
			slog.Int("trades", j.totals.Trades),
			slog.Float64("total_profit", j.totals.TotalProfit),
		)
	}
	return nil
}

// Record appends one fill. The in-memory state always takes the record; a
// disk append failure is logged and swallowed so a full disk cannot stop
// paper trading.
func (j *Journal) Record(ctx context.Context, rec domain.TradeRecord) error {
	j.mu.Lock()
	j.add(rec)
	j.mu.Unlock()

	if j.path == "" {
		return nil
	}
	if err := j.appendLine(rec); err != nil {
		j.logger.WarnContext(ctx, "journal append failed",
			slog.String("path", j.path),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Recent returns up to limit records, newest first. limit <= 0 returns the
// whole buffer.
func (j *Journal) Recent(limit int) []domain.TradeRecord {
	j.mu.Lock()
	defer j.mu.Unlock()

	if limit <= 0 || limit > len(j.records) {
		limit = len(j.records)
	}
	out := make([]domain.TradeRecord, limit)
	for i := 0; i < limit; i++ {
		out[i] = j.records[len(j.records)-1-i]
	}
	return out
}

// Totals returns the running totals over everything ever recorded, including
// records trimmed out of the buffer.
func (j *Journal) Totals() domain.JournalTotals {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.totals
}

// add counts rec into the totals and buffer. Caller holds the lock.
func (j *Journal) add(rec domain.TradeRecord) {
	j.records = append(j.records, rec)
	j.totals.Trades++
	j.totals.TotalInvested += rec.TotalCost
	j.totals.TotalProfit += rec.NetProfit

	if n := len(j.records); n > j.maxMemory {
		j.records = append([]domain.TradeRecord(nil), j.records[n-j.maxMemory:]...)
	}
}

func (j *Journal) appendLine(rec domain.TradeRecord) error {
	if dir := filepath.Dir(j.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create journal dir: %w", err)
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}
