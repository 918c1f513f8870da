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

func TestTelegramSenderPostsMessage(t *testing.T) {
	var (
		path string
		got  map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok123", "chat42")
	s.apiBase = srv.URL

	opp := &domain.Opportunity{TotalCost: 0.9, NetProfit: 0.098, ROIPct: 10.8889}
	ev := Event{Kind: EventOpportunity, Title: "Arbitrage opportunity", Message: "Will it rain?", Opportunity: opp}
	require.NoError(t, s.Send(context.Background(), ev))

	assert.Equal(t, "/bottok123/sendMessage", path)
	assert.Equal(t, "chat42", got["chat_id"])
	assert.Equal(t, "Markdown", got["parse_mode"])
	assert.True(t, strings.HasPrefix(got["text"], "*Arbitrage opportunity*"))
	assert.Contains(t, got["text"], "Net profit: $0.0980")
	assert.Contains(t, got["text"], "ROI: 10.89%")
}
