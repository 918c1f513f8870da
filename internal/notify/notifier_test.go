package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrage/polytrage/internal/domain"
	"github.com/polytrage/polytrage/internal/logging"
)

type fakeSender struct {
	name   string
	events []Event
	err    error
}

func (f *fakeSender) Send(_ context.Context, ev Event) error {
	f.events = append(f.events, ev)
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func TestNotifierCooldownPerMarket(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSender{name: "sink"}
	n := New([]Sender{sink}, Config{Cooldown: 5 * time.Minute, OnArb: true}, logging.Discard())

	clock := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return clock }

	oppA := domain.Opportunity{Market: domain.Market{ID: "a", Slug: "a", Question: "A?"}}
	oppB := domain.Opportunity{Market: domain.Market{ID: "b", Slug: "b", Question: "B?"}}

	n.Opportunity(ctx, oppA)
	require.Len(t, sink.events, 1)
	assert.Equal(t, EventOpportunity, sink.events[0].Kind)
	require.NotNil(t, sink.events[0].Opportunity)
	assert.Equal(t, "A?", sink.events[0].Message)

	n.Opportunity(ctx, oppA)
	assert.Len(t, sink.events, 1, "repeat alert inside the cooldown is suppressed")

	n.Opportunity(ctx, oppB)
	assert.Len(t, sink.events, 2, "cooldown is per market")

	clock = clock.Add(5 * time.Minute)
	n.Opportunity(ctx, oppA)
	assert.Len(t, sink.events, 3, "an elapsed time equal to the cooldown passes")
}

func TestNotifierEventGates(t *testing.T) {
	ctx := context.Background()
	sink := &fakeSender{name: "sink"}
	n := New([]Sender{sink}, Config{}, logging.Discard())

	n.Startup(ctx, "hello")
	n.Error(ctx, "bad", "detail")
	n.Opportunity(ctx, domain.Opportunity{Market: domain.Market{ID: "a"}})
	assert.Empty(t, sink.events, "disabled kinds never reach a sender")

	n.Shutdown(ctx, "bye")
	require.Len(t, sink.events, 1, "shutdown notices bypass the gates")
	assert.Equal(t, EventShutdown, sink.events[0].Kind)
}

func TestNotifierSenderFailureDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	failing := &fakeSender{name: "bad", err: errors.New("webhook down")}
	healthy := &fakeSender{name: "good"}
	n := New([]Sender{failing, healthy}, Config{OnError: true}, logging.Discard())

	n.Error(ctx, "Scan cycle failed", "venue down")

	assert.Len(t, failing.events, 1)
	assert.Len(t, healthy.events, 1, "delivery continues past a failed sender")
}
