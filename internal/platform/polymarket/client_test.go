package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polytrage/polytrage/internal/domain"
	"github.com/polytrage/polytrage/internal/logging"
)

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c := New(Config{
		GammaURL:     srv.URL,
		ClobURL:      srv.URL,
		RetryBackoff: time.Millisecond,
	}, logging.Discard())
	t.Cleanup(c.Close)
	return c
}

func marketItem(i int) map[string]any {
	return map[string]any{
		"id":            strconv.Itoa(i),
		"question":      fmt.Sprintf("Market %d?", i),
		"slug":          fmt.Sprintf("market-%d", i),
		"outcomes":      `["Yes","No"]`,
		"outcomePrices": `["0.5","0.5"]`,
		"clobTokenIds":  fmt.Sprintf(`["%d-yes","%d-no"]`, i, i),
		"volume":        "1000",
		"liquidity":     "1000",
		"active":        true,
	}
}

func TestGetAllActiveMarketsPagination(t *testing.T) {
	const available = 150
	var offsets []int
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		assert.Equal(t, "false", r.URL.Query().Get("closed"))

		mu.Lock()
		offsets = append(offsets, offset)
		mu.Unlock()

		items := []map[string]any{}
		for i := offset; i < offset+limit && i < available; i++ {
			items = append(items, marketItem(i))
		}
		require.NoError(t, json.NewEncoder(w).Encode(items))
	}))
	defer srv.Close()
	c := testClient(t, srv)

	markets, err := c.GetAllActiveMarkets(context.Background(), 500)
	require.NoError(t, err)
	assert.Len(t, markets, available, "paging stops when the venue runs dry")
	assert.Equal(t, []int{0, 100, 150}, offsets)
	assert.Equal(t, "0", markets[0].ID)
	assert.Equal(t, "149", markets[available-1].ID)
}

func TestGetAllActiveMarketsTruncatesToMax(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		items := []map[string]any{}
		for i := offset; i < offset+limit; i++ {
			items = append(items, marketItem(i))
		}
		require.NoError(t, json.NewEncoder(w).Encode(items))
	}))
	defer srv.Close()
	c := testClient(t, srv)

	markets, err := c.GetAllActiveMarkets(context.Background(), 150)
	require.NoError(t, err)
	assert.Len(t, markets, 150)
}

func TestGetActiveMarketsSkipsBadItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		items := []any{
			marketItem(1),
			map[string]any{"id": map[string]any{"nested": true}}, // undecodable
			map[string]any{"id": "3"},                            // no CLOB data
			marketItem(4),
		}
		require.NoError(t, json.NewEncoder(w).Encode(items))
	}))
	defer srv.Close()
	c := testClient(t, srv)

	markets, err := c.GetActiveMarkets(context.Background(), 100, 0)
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, "1", markets[0].ID)
	assert.Equal(t, "4", markets[1].ID)
}

func TestClientFailsFastOnClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such token", http.StatusNotFound)
	}))
	defer srv.Close()
	c := testClient(t, srv)

	_, err := c.GetOrderBook(context.Background(), "tok")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream hiccup", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"bids":[],"asks":[{"price":"0.5","size":"10"}]}`)
	}))
	defer srv.Close()
	c := testClient(t, srv)

	book, err := c.GetOrderBook(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 0.5, ask)
}

func TestClientWrapsUpstreamAfterExhaustion(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "still broken", http.StatusBadGateway)
	}))
	defer srv.Close()
	c := testClient(t, srv)

	_, err := c.GetOrderBook(context.Background(), "tok")
	require.ErrorIs(t, err, domain.ErrUpstream)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetPriceSendsSide(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.URL.Query().Get("token_id"))
		assert.Equal(t, "buy", r.URL.Query().Get("side"))
		fmt.Fprint(w, `{"price":"0.47"}`)
	}))
	defer srv.Close()
	c := testClient(t, srv)

	price, err := c.GetPrice(context.Background(), "tok-1", "buy")
	require.NoError(t, err)
	assert.Equal(t, 0.47, price)
}

func TestGetPriceMissingField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()
	c := testClient(t, srv)

	_, err := c.GetPrice(context.Background(), "tok-1", "buy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing price")
}

func TestGetMidpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"mid":"0.515"}`)
	}))
	defer srv.Close()
	c := testClient(t, srv)

	mid, err := c.GetMidpoint(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, 0.515, mid)
}

func TestGetMarketOrderBooksPreservesTokenOrder(t *testing.T) {
	// The slowest response belongs to the first token; indexed assignment
	// must keep results in token order regardless of completion order.
	asks := map[string]string{"tok-a": "0.30", "tok-b": "0.31", "tok-c": "0.32"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token_id")
		if token == "tok-a" {
			time.Sleep(30 * time.Millisecond)
		}
		fmt.Fprintf(w, `{"bids":[],"asks":[{"price":"%s","size":"10"}]}`, asks[token])
	}))
	defer srv.Close()
	c := testClient(t, srv)

	m := domain.Market{TokenIDs: []string{"tok-a", "tok-b", "tok-c"}}
	books, err := c.GetMarketOrderBooks(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, books, 3)
	for i, want := range []float64{0.30, 0.31, 0.32} {
		ask, ok := books[i].BestAsk()
		require.True(t, ok)
		assert.Equal(t, want, ask)
	}
}

func TestGetMarketPricesFailsWhole(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token_id") == "tok-b" {
			http.Error(w, "gone", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, `{"price":"0.4"}`)
	}))
	defer srv.Close()
	c := testClient(t, srv)

	m := domain.Market{TokenIDs: []string{"tok-a", "tok-b"}}
	_, err := c.GetMarketPrices(context.Background(), m)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClientRefresh(t *testing.T) {
	c := New(Config{ClientRefresh: time.Nanosecond}, logging.Discard())
	defer c.Close()

	first := c.client()
	time.Sleep(time.Millisecond)
	assert.NotSame(t, first, c.client(), "client past its refresh interval is recreated")

	d := New(Config{ClientRefresh: -1}, logging.Discard())
	defer d.Close()
	first = d.client()
	time.Sleep(time.Millisecond)
	assert.Same(t, first, d.client(), "negative interval disables refresh")
}

func TestClientHonorsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"mid":"0.5"}`)
	}))
	defer srv.Close()

	c := New(Config{GammaURL: srv.URL, ClobURL: srv.URL, RateLimitRPS: 500}, logging.Discard())
	defer c.Close()

	for i := 0; i < 3; i++ {
		_, err := c.GetMidpoint(context.Background(), "tok")
		require.NoError(t, err)
	}
}
