// Package health writes and checks the liveness heartbeat file. The scan
// loop updates the file after every successful cycle; an external monitor
// (or the health subcommand) judges the process alive while the file stays
// fresh.
package health

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DefaultStaleThreshold is how old a heartbeat may be before the process is
// considered dead.
const DefaultStaleThreshold = 300 * time.Second

type heartbeat struct {
	Timestamp      int64  `json:"timestamp"`
	ISO            string `json:"iso"`
	MarketsScanned int    `json:"markets_scanned"`
	Opportunities  int    `json:"opportunities"`
	Errors         int    `json:"errors"`
	Status         string `json:"status"`
}

// Writer persists the heartbeat file.
type Writer struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewWriter creates a heartbeat writer for the given file path.
func NewWriter(path string, logger *slog.Logger) *Writer {
	return &Writer{
		path:   path,
		logger: logger.With(slog.String("component", "health")),
		now:    time.Now,
	}
}

// Beat writes one cycle's stats. The write goes to a temp file in the same
// directory and is renamed into place, so a reader never sees a partial file.
func (w *Writer) Beat(marketsScanned, opportunities, errs int) error {
	now := w.now()
	hb := heartbeat{
		Timestamp:      now.Unix(),
		ISO:            now.UTC().Format(time.RFC3339),
		MarketsScanned: marketsScanned,
		Opportunities:  opportunities,
		Errors:         errs,
		Status:         "ok",
	}

	data, err := json.MarshalIndent(hb, "", "  ")
	if err != nil {
		return fmt.Errorf("health: marshal heartbeat: %w", err)
	}

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("health: create heartbeat dir: %w", err)
		}
	}

	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("health: write heartbeat: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		return fmt.Errorf("health: replace heartbeat: %w", err)
	}

	w.logger.Debug("heartbeat written",
		slog.Int("markets_scanned", marketsScanned),
		slog.Int("opportunities", opportunities),
	)
	return nil
}

// Status is the verdict of a heartbeat check.
type Status struct {
	Healthy bool
	Age     time.Duration
	Reason  string
}

// Check reads the heartbeat at path and reports whether it is younger than
// staleAfter. A missing or malformed file is unhealthy, not an error: the
// caller only needs the verdict.
func Check(path string, staleAfter time.Duration) Status {
	data, err := os.ReadFile(path)
	if err != nil {
		return Status{Reason: fmt.Sprintf("heartbeat unreadable: %v", err)}
	}

	var hb heartbeat
	if err := json.Unmarshal(data, &hb); err != nil {
		return Status{Reason: fmt.Sprintf("heartbeat malformed: %v", err)}
	}

	age := time.Since(time.Unix(hb.Timestamp, 0))
	if age >= staleAfter {
		return Status{Age: age, Reason: fmt.Sprintf("heartbeat stale: %s old", age.Round(time.Second))}
	}
	return Status{Healthy: true, Age: age, Reason: "ok"}
}
