// Package notify delivers operator alerts. Events are dispatched to every
// registered sender (Discord, Telegram, Redis, etc.); the notifier owns event
// gating and the per-market cooldown, so callers can report every hit without
// flooding a channel.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polytrage/polytrage/internal/domain"
)

// EventKind classifies a notification.
type EventKind string

const (
	EventStartup     EventKind = "startup"
	EventOpportunity EventKind = "opportunity"
	EventError       EventKind = "error"
	EventShutdown    EventKind = "shutdown"
)

// Event is one notification. Opportunity is set only for EventOpportunity.
type Event struct {
	Kind        EventKind
	Title       string
	Message     string
	Opportunity *domain.Opportunity
}

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a single event.
	Send(ctx context.Context, ev Event) error
	// Name returns a human-readable identifier for the sender (e.g. "discord").
	Name() string
}

// Config gates which event kinds go out. Shutdown notices are never gated.
type Config struct {
	Cooldown  time.Duration // minimum gap between alerts for the same market
	OnStartup bool
	OnError   bool
	OnArb     bool
}

// Notifier dispatches events to one or more Senders. Safe for concurrent use.
type Notifier struct {
	senders []Sender
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time // market ID -> last opportunity alert
}

// New creates a Notifier delivering to the given senders.
func New(senders []Sender, cfg Config, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders:  senders,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "notifier")),
		now:      time.Now,
		lastSent: make(map[string]time.Time),
	}
}

// Startup announces that scanning has begun.
func (n *Notifier) Startup(ctx context.Context, message string) {
	if !n.cfg.OnStartup {
		return
	}
	n.send(ctx, Event{Kind: EventStartup, Title: "Polytrage started", Message: message})
}

// Opportunity announces one arbitrage hit, subject to the per-market cooldown.
func (n *Notifier) Opportunity(ctx context.Context, opp domain.Opportunity) {
	if !n.cfg.OnArb {
		return
	}
	if !n.clearCooldown(opp.Market.ID) {
		n.logger.DebugContext(ctx, "opportunity alert suppressed by cooldown",
			slog.String("market", opp.Market.Slug),
		)
		return
	}
	n.send(ctx, Event{
		Kind:        EventOpportunity,
		Title:       "Arbitrage opportunity",
		Message:     opp.Market.Question,
		Opportunity: &opp,
	})
}

// Error announces a failure worth an operator's attention.
func (n *Notifier) Error(ctx context.Context, title, detail string) {
	if !n.cfg.OnError {
		return
	}
	n.send(ctx, Event{Kind: EventError, Title: title, Message: detail})
}

// Shutdown announces that the process is exiting. Always delivered so an
// operator learns about a stop even with all other alerts disabled.
func (n *Notifier) Shutdown(ctx context.Context, summary string) {
	n.send(ctx, Event{Kind: EventShutdown, Title: "Polytrage stopped", Message: summary})
}

// clearCooldown reports whether an alert for marketID may go out now, and
// records the send time when it may. An elapsed time equal to the cooldown
// passes.
func (n *Notifier) clearCooldown(marketID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if last, ok := n.lastSent[marketID]; ok && now.Sub(last) < n.cfg.Cooldown {
		return false
	}
	n.lastSent[marketID] = now
	return true
}

// send delivers ev to every sender. A sender failure is logged and does not
// prevent delivery to the remaining senders.
func (n *Notifier) send(ctx context.Context, ev Event) {
	for _, s := range n.senders {
		if err := s.Send(ctx, ev); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("kind", string(ev.Kind)),
				slog.String("error", err.Error()),
			)
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("kind", string(ev.Kind)),
		)
	}
}
