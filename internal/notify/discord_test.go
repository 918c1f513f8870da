package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrage/polytrage/internal/domain"
)

type webhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

func captureWebhook(t *testing.T, status int) (*httptest.Server, *webhookPayload) {
	t.Helper()
	got := &webhookPayload{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestDiscordSenderOpportunityEmbed(t *testing.T) {
	srv, got := captureWebhook(t, http.StatusNoContent)

	opp := &domain.Opportunity{TotalCost: 0.9, NetProfit: 0.098, ROIPct: 10.8889}
	ev := Event{
		Kind:        EventOpportunity,
		Title:       "Arbitrage opportunity",
		Message:     strings.Repeat("x", 300),
		Opportunity: opp,
	}

	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), ev))

	require.Len(t, got.Embeds, 1)
	embed := got.Embeds[0]
	assert.Equal(t, "Arbitrage opportunity", embed.Title)
	assert.Equal(t, colorGreen, embed.Color)
	assert.Len(t, embed.Description, 200, "opportunity description is clipped short")
	assert.NotEmpty(t, embed.Timestamp)

	require.Len(t, embed.Fields, 3)
	assert.Equal(t, "Net Profit", embed.Fields[0].Name)
	assert.Equal(t, "$0.0980", embed.Fields[0].Value)
	assert.Equal(t, "ROI", embed.Fields[1].Name)
	assert.Equal(t, "10.89%", embed.Fields[1].Value)
	assert.Equal(t, "Total Cost", embed.Fields[2].Name)
	assert.Equal(t, "$0.9000", embed.Fields[2].Value)
	assert.True(t, embed.Fields[0].Inline)
}

func TestDiscordSenderErrorEmbed(t *testing.T) {
	srv, got := captureWebhook(t, http.StatusNoContent)

	ev := Event{Kind: EventError, Title: "Circuit breaker open", Message: strings.Repeat("e", 3000)}
	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), ev))

	require.Len(t, got.Embeds, 1)
	embed := got.Embeds[0]
	assert.Equal(t, colorRed, embed.Color)
	assert.Len(t, embed.Description, 2000)
	assert.Empty(t, embed.Fields)
}

func TestDiscordSenderStartupColor(t *testing.T) {
	srv, got := captureWebhook(t, http.StatusNoContent)

	ev := Event{Kind: EventStartup, Title: "Polytrage started", Message: "hello"}
	require.NoError(t, NewDiscordSender(srv.URL).Send(context.Background(), ev))
	require.Len(t, got.Embeds, 1)
	assert.Equal(t, colorBlue, got.Embeds[0].Color)
}

func TestDiscordSenderRejectedWebhook(t *testing.T) {
	srv, _ := captureWebhook(t, http.StatusBadRequest)

	err := NewDiscordSender(srv.URL).Send(context.Background(), Event{Kind: EventError, Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
