package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/internal/rankindex"
	"github.com/hwahn/pricepulse/internal/session"
	"github.com/hwahn/pricepulse/pkg/logger"
)

type fakeRanks struct {
	page    *rankindex.Page
	lastQ   rankindex.Query
	pageErr error
}

func (f *fakeRanks) Page(_ context.Context, q rankindex.Query) (*rankindex.Page, error) {
	f.lastQ = q
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	return f.page, nil
}

type fakeQuotes struct {
	quotes map[string]contracts.StockQuote
}

func (f *fakeQuotes) GetQuotes(_ context.Context, symbols []string) (map[string]contracts.StockQuote, error) {
	out := make(map[string]contracts.StockQuote)
	for _, s := range symbols {
		if q, ok := f.quotes[s]; ok {
			out[s] = q
		}
	}
	return out, nil
}

var liveInstant = time.Date(2024, 1, 16, 15, 0, 0, 0, time.UTC) // 10:00 ET

func newStockHandler(ranks *fakeRanks, quotes *fakeQuotes, now time.Time) *StockHandler {
	if quotes == nil {
		quotes = &fakeQuotes{}
	}
	h := NewStockHandler(ranks, quotes, session.NewClock(), logger.NewNop())
	h.now = func() time.Time { return now }
	return h
}

func TestGetRanked(t *testing.T) {
	ranks := &fakeRanks{page: &rankindex.Page{
		Entries: []rankindex.Entry{
			{Symbol: "AAPL", Score: -3500},
			{Symbol: "MSFT", Score: -3400},
		},
		NextCursor: "-3400:MSFT",
		ETag:       `"v3-AAPL-MSFT-2"`,
	}}
	quotes := &fakeQuotes{quotes: map[string]contracts.StockQuote{
		"AAPL": {Price: 193.80, ChangePct: 2.0, MarketCap: 3_500_000, MarketCapDiff: 70_000},
		"MSFT": {Price: 405.00, ChangePct: -0.5, MarketCap: 3_400_000, MarketCapDiff: -17_000},
	}}

	h := newStockHandler(ranks, quotes, liveInstant)

	req := httptest.NewRequest("GET", "/api/stocks?sort=mcap&dir=desc&limit=2", nil)
	rec := httptest.NewRecorder()
	h.GetRanked(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `"v3-AAPL-MSFT-2"`, rec.Header().Get("ETag"))

	var resp RankedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "AAPL", resp.Rows[0].Ticker)
	assert.Equal(t, 193.80, resp.Rows[0].Price)
	assert.Equal(t, int64(70_000), resp.Rows[0].MarketCapDiff)
	assert.Equal(t, "-3400:MSFT", resp.NextCursor)

	// The query was scoped to the live session of the current trading day.
	assert.Equal(t, rankindex.MetricMarketCap, ranks.lastQ.Metric)
	assert.Equal(t, contracts.SessionLive, ranks.lastQ.Session)
	assert.True(t, ranks.lastQ.Day.Equal(time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, ranks.lastQ.Limit)
}

func TestGetRankedConditional(t *testing.T) {
	ranks := &fakeRanks{page: &rankindex.Page{
		Entries: []rankindex.Entry{{Symbol: "AAPL", Score: 1}},
		ETag:    `"v3-AAPL-AAPL-1"`,
	}}

	h := newStockHandler(ranks, nil, liveInstant)

	req := httptest.NewRequest("GET", "/api/stocks", nil)
	req.Header.Set("If-None-Match", `"v3-AAPL-AAPL-1"`)
	rec := httptest.NewRecorder()
	h.GetRanked(rec, req)

	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Equal(t, `"v3-AAPL-AAPL-1"`, rec.Header().Get("ETag"))
	assert.Empty(t, rec.Body.Bytes())

	// A stale tag gets a full response.
	req = httptest.NewRequest("GET", "/api/stocks", nil)
	req.Header.Set("If-None-Match", `"v2-AAPL-AAPL-1"`)
	rec = httptest.NewRecorder()
	h.GetRanked(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetRankedValidation(t *testing.T) {
	h := newStockHandler(&fakeRanks{page: &rankindex.Page{}}, nil, liveInstant)

	for _, target := range []string{
		"/api/stocks?sort=volume",
		"/api/stocks?dir=up",
		"/api/stocks?limit=0",
		"/api/stocks?limit=201",
		"/api/stocks?limit=abc",
	} {
		rec := httptest.NewRecorder()
		h.GetRanked(rec, httptest.NewRequest("GET", target, nil))
		assert.Equalf(t, http.StatusBadRequest, rec.Code, "target %s", target)
	}
}

// Weekend reads fall back to the live indexes of the last trading day.
func TestGetRankedClosedFallsBackToLive(t *testing.T) {
	saturday := time.Date(2024, 1, 13, 15, 0, 0, 0, time.UTC)
	ranks := &fakeRanks{page: &rankindex.Page{}}

	h := newStockHandler(ranks, nil, saturday)

	rec := httptest.NewRecorder()
	h.GetRanked(rec, httptest.NewRequest("GET", "/api/stocks?q=AA", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contracts.SessionLive, ranks.lastQ.Session)
	assert.True(t, ranks.lastQ.Day.Equal(time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "AA", ranks.lastQ.Prefix)
}
