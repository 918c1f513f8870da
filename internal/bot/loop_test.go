package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrage/polytrage/internal/domain"
	"github.com/polytrage/polytrage/internal/logging"
	"github.com/polytrage/polytrage/internal/scanner"
)

type stubScanner struct {
	calls int
	fn    func(ctx context.Context, call int) (scanner.Result, error)
}

func (s *stubScanner) Scan(ctx context.Context) (scanner.Result, error) {
	s.calls++
	return s.fn(ctx, s.calls)
}

type recordingNotifier struct {
	startups      []string
	opportunities []domain.Opportunity
	errorTitles   []string
	shutdowns     []string
}

func (n *recordingNotifier) Startup(_ context.Context, message string) {
	n.startups = append(n.startups, message)
}

func (n *recordingNotifier) Opportunity(_ context.Context, opp domain.Opportunity) {
	n.opportunities = append(n.opportunities, opp)
}

func (n *recordingNotifier) Error(_ context.Context, title, _ string) {
	n.errorTitles = append(n.errorTitles, title)
}

func (n *recordingNotifier) Shutdown(_ context.Context, summary string) {
	n.shutdowns = append(n.shutdowns, summary)
}

type fakeJournal struct {
	loaded  bool
	records []domain.TradeRecord
}

func (j *fakeJournal) Load(context.Context) error {
	j.loaded = true
	return nil
}

func (j *fakeJournal) Record(_ context.Context, rec domain.TradeRecord) error {
	j.records = append(j.records, rec)
	return nil
}

func (j *fakeJournal) Recent(int) []domain.TradeRecord { return j.records }

func (j *fakeJournal) Totals() domain.JournalTotals {
	t := domain.JournalTotals{Trades: len(j.records)}
	for _, r := range j.records {
		t.TotalInvested += r.TotalCost
		t.TotalProfit += r.NetProfit
	}
	return t
}

type fakeHeartbeat struct {
	beats [][3]int
}

func (h *fakeHeartbeat) Beat(scanned, opportunities, errs int) error {
	h.beats = append(h.beats, [3]int{scanned, opportunities, errs})
	return nil
}

type fakeArchiver struct {
	archived []scanner.Result
}

func (a *fakeArchiver) Archive(_ context.Context, result scanner.Result) error {
	a.archived = append(a.archived, result)
	return nil
}

func fastConfig() Config {
	return Config{
		Interval:       time.Millisecond,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		MaxFailures:    10,
	}
}

func testOpportunity() domain.Opportunity {
	return domain.Opportunity{
		Market: domain.Market{
			ID:       "m1",
			Question: strings.Repeat("q", 250),
			Slug:     "slug-m1",
		},
		TotalCost: 0.9,
		NetProfit: 0.098,
		ROIPct:    10.8889,
	}
}

func TestRunHaltsAfterMaxFailures(t *testing.T) {
	src := &stubScanner{fn: func(context.Context, int) (scanner.Result, error) {
		return scanner.Result{}, errors.New("venue down")
	}}
	notifier := &recordingNotifier{}
	loop := New(src, fastConfig(), logging.Discard()).WithNotifier(notifier)

	err := loop.Run(context.Background())
	require.ErrorIs(t, err, ErrHalted)

	assert.Equal(t, 10, src.calls)
	assert.Equal(t, StateHalted, loop.State())
	assert.Equal(t, 4*time.Millisecond, loop.backoff, "backoff stays at the cap")

	require.Len(t, notifier.errorTitles, 10, "nine failure alerts plus the final one")
	assert.Equal(t, "Circuit breaker open", notifier.errorTitles[9])
	require.Len(t, notifier.shutdowns, 1)
	assert.Contains(t, notifier.shutdowns[0], "circuit breaker")
}

func TestRunSuccessResetsFailureCountAndBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &stubScanner{fn: func(ctx context.Context, call int) (scanner.Result, error) {
		switch {
		case call <= 3:
			return scanner.Result{}, errors.New("venue down")
		case call == 4:
			return scanner.Result{MarketsScanned: 7}, nil
		default:
			cancel()
			return scanner.Result{}, ctx.Err()
		}
	}}

	cfg := fastConfig()
	cfg.MaxFailures = 4 // without the reset, call 5 would have been one failure too many
	loop := New(src, cfg, logging.Discard())

	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrHalted)

	assert.Equal(t, 5, src.calls)
	assert.Zero(t, loop.failures)
	assert.Equal(t, cfg.InitialBackoff, loop.backoff)
	assert.Equal(t, StateRunning, loop.State())
}

func TestRunOnceReportsToCollaborators(t *testing.T) {
	result := scanner.Result{
		MarketsScanned: 5,
		Opportunities:  []domain.Opportunity{testOpportunity()},
		Errors:         []string{"scan slug-x: boom"},
	}
	src := &stubScanner{fn: func(context.Context, int) (scanner.Result, error) {
		return result, nil
	}}

	notifier := &recordingNotifier{}
	journal := &fakeJournal{}
	heartbeat := &fakeHeartbeat{}
	archiver := &fakeArchiver{}
	portfolio := NewPortfolio()

	cfg := fastConfig()
	cfg.Once = true
	loop := New(src, cfg, logging.Discard()).
		WithNotifier(notifier).
		WithJournal(journal).
		WithHeartbeat(heartbeat).
		WithArchiver(archiver).
		WithPortfolio(portfolio)

	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, 1, src.calls)

	require.Len(t, notifier.startups, 1)
	assert.Contains(t, notifier.startups[0], "Scanning every")
	require.Len(t, notifier.opportunities, 1)
	assert.Empty(t, notifier.errorTitles, "per-market scan errors are not cycle failures")
	require.Len(t, notifier.shutdowns, 1)

	assert.True(t, journal.loaded)
	require.Len(t, journal.records, 1)
	rec := journal.records[0]
	assert.Equal(t, "m1", rec.MarketID)
	assert.Len(t, rec.MarketQuestion, 200)
	assert.Equal(t, 0.9, rec.TotalCost)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Timestamp.IsZero())

	require.Len(t, heartbeat.beats, 1)
	assert.Equal(t, [3]int{5, 1, 1}, heartbeat.beats[0])

	require.Len(t, archiver.archived, 1)
	assert.Equal(t, 5, archiver.archived[0].MarketsScanned)

	summary := portfolio.Summary()
	assert.Equal(t, 1, summary.Positions)
	assert.Equal(t, 0.9, summary.Invested)
}

func TestRunOnceFailureReturnsScanError(t *testing.T) {
	scanErr := errors.New("venue down")
	src := &stubScanner{fn: func(context.Context, int) (scanner.Result, error) {
		return scanner.Result{}, scanErr
	}}
	notifier := &recordingNotifier{}

	cfg := fastConfig()
	cfg.Once = true
	loop := New(src, cfg, logging.Discard()).WithNotifier(notifier)

	err := loop.Run(context.Background())
	require.ErrorIs(t, err, scanErr)
	assert.NotErrorIs(t, err, ErrHalted)

	assert.Equal(t, 1, src.calls)
	assert.Equal(t, StateRunning, loop.State())
	assert.Equal(t, []string{"Scan cycle failed"}, notifier.errorTitles)
	require.Len(t, notifier.shutdowns, 1)
}

func TestRunCancelledScanIsNotAFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &stubScanner{fn: func(ctx context.Context, _ int) (scanner.Result, error) {
		<-ctx.Done()
		return scanner.Result{}, ctx.Err()
	}}
	notifier := &recordingNotifier{}
	loop := New(src, fastConfig(), logging.Discard()).WithNotifier(notifier)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := loop.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, loop.failures)
	assert.Empty(t, notifier.errorTitles)
	require.Len(t, notifier.shutdowns, 1, "shutdown notice still goes out on interrupt")
}
