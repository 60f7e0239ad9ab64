package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/internal/rankindex"
	"github.com/hwahn/pricepulse/internal/session"
	"github.com/hwahn/pricepulse/pkg/logger"
)

// RankReader serves keyset-paginated ranked pages.
type RankReader interface {
	Page(ctx context.Context, q rankindex.Query) (*rankindex.Page, error)
}

// QuoteReader hydrates per-symbol quotes for a page of symbols.
type QuoteReader interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]contracts.StockQuote, error)
}

// StockHandler serves the ranked stock read path.
// SSOT: ranked-read HTTP parameters are parsed in this handler only.
type StockHandler struct {
	ranks  RankReader
	quotes QuoteReader
	clock  *session.Clock
	logger *logger.Logger

	now func() time.Time
}

// NewStockHandler creates a stock handler.
func NewStockHandler(ranks RankReader, quotes QuoteReader, clock *session.Clock, log *logger.Logger) *StockHandler {
	return &StockHandler{
		ranks:  ranks,
		quotes: quotes,
		clock:  clock,
		logger: log,
		now:    time.Now,
	}
}

// StockRow is one row of the ranked response.
type StockRow struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	ChangePct     float64 `json:"changePct"`
	MarketCap     int64   `json:"marketCap"`
	MarketCapDiff int64   `json:"marketCapDiff,omitempty"`
}

// RankedResponse is the ranked read payload.
type RankedResponse struct {
	Rows       []StockRow `json:"rows"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// GetRanked serves GET /api/stocks.
// Query: sort ∈ {mcap, chgPct, price}, dir ∈ {asc, desc}, limit ≤ 200,
// cursor, q (symbol prefix). Conditional requests via If-None-Match.
func (h *StockHandler) GetRanked(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	metric, ok := parseMetric(r.URL.Query().Get("sort"))
	if !ok {
		respondError(w, http.StatusBadRequest, "sort must be one of: mcap, chgPct, price")
		return
	}

	dir := rankindex.DirDesc
	switch r.URL.Query().Get("dir") {
	case "", "desc":
	case "asc":
		dir = rankindex.DirAsc
	default:
		respondError(w, http.StatusBadRequest, "dir must be asc or desc")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > rankindex.MaxPageSize {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	snap := h.clock.Now(h.now())
	// Outside market sessions the live indexes of the trading day are the
	// freshest complete view.
	readSession := snap.Session
	if readSession == contracts.SessionClosed {
		readSession = contracts.SessionLive
	}

	page, err := h.ranks.Page(ctx, rankindex.Query{
		Metric:  metric,
		Day:     snap.TradingDay,
		Session: readSession,
		Dir:     dir,
		Limit:   limit,
		Cursor:  r.URL.Query().Get("cursor"),
		Prefix:  r.URL.Query().Get("q"),
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to read rank index")
		respondError(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	w.Header().Set("ETag", page.ETag)
	if match := r.Header.Get("If-None-Match"); match != "" && match == page.ETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	symbols := make([]string, len(page.Entries))
	for i, e := range page.Entries {
		symbols[i] = e.Symbol
	}

	quotes, err := h.quotes.GetQuotes(ctx, symbols)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hydrate quotes")
		respondError(w, http.StatusInternalServerError, "Failed to load quotes")
		return
	}

	resp := RankedResponse{Rows: make([]StockRow, 0, len(page.Entries)), NextCursor: page.NextCursor}
	for _, e := range page.Entries {
		row := StockRow{Ticker: e.Symbol}
		if q, ok := quotes[e.Symbol]; ok {
			row.Price = q.Price
			row.ChangePct = q.ChangePct
			row.MarketCap = q.MarketCap
			row.MarketCapDiff = q.MarketCapDiff
		}
		resp.Rows = append(resp.Rows, row)
	}

	respondJSON(w, http.StatusOK, resp)
}

func parseMetric(raw string) (rankindex.Metric, bool) {
	switch raw {
	case "", "mcap":
		return rankindex.MetricMarketCap, true
	case "chgPct":
		return rankindex.MetricPercentChange, true
	case "price":
		return rankindex.MetricPrice, true
	default:
		return "", false
	}
}
