// Package bot drives the scanner on a fixed cadence and reacts to sustained
// failure. Each successful cycle is reported to the wired collaborators
// (notifier, journal, heartbeat, archiver); consecutive scanner failures back
// off exponentially until a circuit breaker halts the loop for good.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/polytrage/polytrage/internal/domain"
	"github.com/polytrage/polytrage/internal/scanner"
)

// ErrHalted is returned by Run when the circuit breaker opens.
var ErrHalted = errors.New("bot: circuit breaker open")

// State is the loop's lifecycle state.
type State int

const (
	// StateRunning means the loop is ticking normally.
	StateRunning State = iota
	// StateHalted means the circuit breaker tripped and the loop exited.
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// Scanner runs one scan cycle. A returned error is a cycle-level failure and
// feeds the circuit breaker; per-market problems live inside the Result.
type Scanner interface {
	Scan(ctx context.Context) (scanner.Result, error)
}

// Notifier receives lifecycle and opportunity events. Implementations own
// delivery failures and per-market cooldowns; the loop just reports.
type Notifier interface {
	Startup(ctx context.Context, message string)
	Opportunity(ctx context.Context, opp domain.Opportunity)
	Error(ctx context.Context, title, detail string)
	Shutdown(ctx context.Context, summary string)
}

// HeartbeatWriter persists per-cycle liveness stats for external health checks.
type HeartbeatWriter interface {
	Beat(marketsScanned, opportunities, errs int) error
}

// Archiver stores a completed scan result out of process.
type Archiver interface {
	Archive(ctx context.Context, result scanner.Result) error
}

// Config controls the loop cadence and failure policy. Zero values select the
// defaults.
type Config struct {
	Interval       time.Duration // wait between successful cycles (default 60s)
	InitialBackoff time.Duration // wait after the first failure (default 30s)
	MaxBackoff     time.Duration // backoff ceiling (default 600s)
	MaxFailures    int           // consecutive failures before halting (default 10)
	Once           bool          // run exactly one cycle and return
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 60 * time.Second
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 30 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 600 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 10
	}
	return c
}

// Loop is the resilient scan loop. Collaborators are optional; a nil
// collaborator is simply skipped. Not safe for concurrent Run calls.
type Loop struct {
	scanner Scanner
	cfg     Config
	logger  *slog.Logger

	notifier  Notifier
	journal   domain.Journal
	heartbeat HeartbeatWriter
	archiver  Archiver
	portfolio *Portfolio

	state    State
	failures int
	backoff  time.Duration
}

// New creates a scan loop around sc.
func New(sc Scanner, cfg Config, logger *slog.Logger) *Loop {
	return &Loop{
		scanner: sc,
		cfg:     cfg.withDefaults(),
		logger:  logger.With(slog.String("component", "bot")),
	}
}

// WithNotifier wires an event notifier.
func (l *Loop) WithNotifier(n Notifier) *Loop {
	l.notifier = n
	return l
}

// WithJournal wires a trade journal; every opportunity is recorded as a
// simulated fill.
func (l *Loop) WithJournal(j domain.Journal) *Loop {
	l.journal = j
	return l
}

// WithHeartbeat wires a heartbeat writer updated after each successful cycle.
func (l *Loop) WithHeartbeat(h HeartbeatWriter) *Loop {
	l.heartbeat = h
	return l
}

// WithArchiver wires a scan-result archiver.
func (l *Loop) WithArchiver(a Archiver) *Loop {
	l.archiver = a
	return l
}

// WithPortfolio wires the paper portfolio; opportunities become simulated
// fills with a running summary.
func (l *Loop) WithPortfolio(p *Portfolio) *Loop {
	l.portfolio = p
	return l
}

// State reports the loop's lifecycle state. Meaningful once Run has started.
func (l *Loop) State() State { return l.state }

// Run drives scan cycles until the context ends, the circuit breaker opens,
// or a single once-mode cycle completes. A cancelled context is returned
// as-is and never counts as a scan failure.
func (l *Loop) Run(ctx context.Context) error {
	l.state = StateRunning
	l.failures = 0
	l.backoff = l.cfg.InitialBackoff

	if l.journal != nil {
		if err := l.journal.Load(ctx); err != nil {
			l.logger.WarnContext(ctx, "journal load failed", slog.String("error", err.Error()))
		} else if totals := l.journal.Totals(); totals.Trades > 0 {
			l.logger.InfoContext(ctx, "journal restored",
				slog.Int("trades", totals.Trades),
				slog.Float64("total_profit", totals.TotalProfit),
			)
		}
	}

	l.logger.InfoContext(ctx, "scan loop starting",
		slog.Duration("interval", l.cfg.Interval),
		slog.Bool("once", l.cfg.Once),
		slog.Bool("paper", l.portfolio != nil),
	)
	if l.notifier != nil {
		l.notifier.Startup(ctx, fmt.Sprintf("Scanning every %s.", l.cfg.Interval))
	}
	defer l.shutdown()

	for {
		result, err := l.scanner.Scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if haltErr := l.onFailure(ctx, err); haltErr != nil {
				return haltErr
			}
			if l.cfg.Once {
				return fmt.Errorf("bot: scan: %w", err)
			}
			if err := l.sleep(ctx, l.backoff); err != nil {
				return err
			}
			if next := l.backoff * 2; next > l.cfg.MaxBackoff {
				l.backoff = l.cfg.MaxBackoff
			} else {
				l.backoff = next
			}
			continue
		}

		l.failures = 0
		l.backoff = l.cfg.InitialBackoff
		l.report(ctx, result)

		if l.cfg.Once {
			return nil
		}
		if err := l.sleep(ctx, l.cfg.Interval); err != nil {
			return err
		}
	}
}

// onFailure counts a cycle-level failure. It returns the terminal error once
// the consecutive-failure limit is reached, nil otherwise.
func (l *Loop) onFailure(ctx context.Context, err error) error {
	l.failures++
	l.logger.ErrorContext(ctx, "scan cycle failed",
		slog.Int("consecutive_failures", l.failures),
		slog.Int("max_failures", l.cfg.MaxFailures),
		slog.String("error", err.Error()),
	)

	if l.failures >= l.cfg.MaxFailures {
		l.state = StateHalted
		l.logger.ErrorContext(ctx, "circuit breaker open, halting loop",
			slog.Int("consecutive_failures", l.failures),
		)
		if l.notifier != nil {
			l.notifier.Error(ctx, "Circuit breaker open",
				fmt.Sprintf("Halting after %d consecutive scan failures. Last error: %v", l.failures, err))
		}
		return fmt.Errorf("%w after %d consecutive scan failures", ErrHalted, l.failures)
	}

	if l.notifier != nil {
		l.notifier.Error(ctx, "Scan cycle failed", err.Error())
	}
	l.logger.WarnContext(ctx, "backing off before next scan",
		slog.Duration("wait", l.backoff),
	)
	return nil
}

// report pushes one successful cycle's outcome to the collaborators.
// Collaborator failures are logged and never fail the cycle.
func (l *Loop) report(ctx context.Context, result scanner.Result) {
	l.logger.InfoContext(ctx, "scan cycle complete",
		slog.Int("markets_scanned", result.MarketsScanned),
		slog.Int("opportunities", len(result.Opportunities)),
		slog.Int("errors", len(result.Errors)),
	)
	for _, msg := range result.Errors {
		l.logger.WarnContext(ctx, "scan error", slog.String("error", msg))
	}

	for i := range result.Opportunities {
		opp := result.Opportunities[i]
		if l.notifier != nil {
			l.notifier.Opportunity(ctx, opp)
		}
		if l.portfolio != nil {
			l.portfolio.Record(opp)
			l.logger.InfoContext(ctx, "paper fill recorded",
				slog.String("market", opp.Market.Slug),
				slog.Float64("cost", opp.TotalCost),
				slog.Float64("net_profit", opp.NetProfit),
			)
		}
		if l.journal != nil {
			if err := l.journal.Record(ctx, domain.NewTradeRecord(opp)); err != nil {
				l.logger.WarnContext(ctx, "journal write failed", slog.String("error", err.Error()))
			}
		}
	}

	if l.portfolio != nil && len(result.Opportunities) > 0 {
		s := l.portfolio.Summary()
		l.logger.InfoContext(ctx, "paper portfolio",
			slog.Int("positions", s.Positions),
			slog.Float64("invested", s.Invested),
			slog.Float64("profit", s.Profit),
			slog.Float64("roi_pct", s.ROIPct),
		)
	}

	if l.heartbeat != nil {
		if err := l.heartbeat.Beat(result.MarketsScanned, len(result.Opportunities), len(result.Errors)); err != nil {
			l.logger.WarnContext(ctx, "heartbeat write failed", slog.String("error", err.Error()))
		}
	}
	if l.archiver != nil {
		if err := l.archiver.Archive(ctx, result); err != nil {
			l.logger.WarnContext(ctx, "scan archive failed", slog.String("error", err.Error()))
		}
	}
}

// shutdown sends the final notification on every exit path. The parent
// context is usually cancelled by the time we get here, so delivery runs on
// its own short deadline.
func (l *Loop) shutdown() {
	summary := "Scan loop stopped."
	if l.state == StateHalted {
		summary = "Scan loop halted by the circuit breaker."
	}
	if l.portfolio != nil {
		s := l.portfolio.Summary()
		summary += fmt.Sprintf(" Paper: %d positions, $%.4f invested, $%.4f profit (%.2f%% ROI).",
			s.Positions, s.Invested, s.Profit, s.ROIPct)
		l.logger.Info("final paper portfolio",
			slog.Int("positions", s.Positions),
			slog.Float64("invested", s.Invested),
			slog.Float64("profit", s.Profit),
			slog.Float64("roi_pct", s.ROIPct),
		)
	}
	if l.notifier != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		l.notifier.Shutdown(ctx, summary)
	}
	l.logger.Info("scan loop stopped", slog.String("state", l.state.String()))
}

// sleep waits for d unless the context ends first.
func (l *Loop) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
