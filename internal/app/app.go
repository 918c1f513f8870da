// Package app assembles the scanner process. It wires the venue client,
// scanner, notifier, journal, heartbeat writer, and archiver from the
// configuration, then drives the scan loop until the context ends.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polytrage/polytrage/internal/bot"
	"github.com/polytrage/polytrage/internal/config"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	root    *slog.Logger // untagged parent handed to collaborators
	logger  *slog.Logger
	closers []func()
}

// New creates an App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		root:   logger,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and drives the scan loop. It returns when the
// context is cancelled, a once-mode cycle completes, or the circuit breaker
// halts the loop.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting scanner",
		slog.Duration("interval", a.cfg.Scan.Interval.Duration),
		slog.Float64("min_profit", a.cfg.Scan.MinProfit),
		slog.Int("max_markets", a.cfg.Scan.MaxMarkets),
		slog.Bool("paper", a.cfg.Paper),
		slog.Bool("once", a.cfg.Once),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.root)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	loop := bot.New(deps.Scanner, bot.Config{
		Interval: a.cfg.Scan.Interval.Duration,
		Once:     a.cfg.Once,
	}, a.root)
	if deps.Notifier != nil {
		loop.WithNotifier(deps.Notifier)
	}
	if deps.Journal != nil {
		loop.WithJournal(deps.Journal)
	}
	if deps.Heartbeat != nil {
		loop.WithHeartbeat(deps.Heartbeat)
	}
	if deps.Archiver != nil {
		loop.WithArchiver(deps.Archiver)
	}
	if a.cfg.Paper {
		loop.WithPortfolio(bot.NewPortfolio())
	}

	return loop.Run(ctx)
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
