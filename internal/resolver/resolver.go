package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/internal/store"
	"github.com/hwahn/pricepulse/pkg/logger"
)

// Resolver computes the price state for a symbol: current price, prior
// close baseline, and percent change.
//
// Baseline resolution walks cache, then the denormalized ticker field, then
// the per-day reference row. An unknown baseline stays nil and forces
// percent change to 0; consumers treat 0 as "no signal", not "flat".
type Resolver struct {
	cache     contracts.PrevCloseCache
	tickers   contracts.TickerRepository
	dailyRefs contracts.DailyRefRepository
	ticks     contracts.TickReader
	logger    *logger.Logger
}

// New creates a resolver.
func New(
	cache contracts.PrevCloseCache,
	tickers contracts.TickerRepository,
	dailyRefs contracts.DailyRefRepository,
	ticks contracts.TickReader,
	log *logger.Logger,
) *Resolver {
	return &Resolver{
		cache:     cache,
		tickers:   tickers,
		dailyRefs: dailyRefs,
		ticks:     ticks,
		logger:    log,
	}
}

// Resolve produces the price state for symbol on tradingDay during session.
func (r *Resolver) Resolve(ctx context.Context, symbol string, session contracts.Session, tradingDay time.Time) (*contracts.PriceState, error) {
	state := &contracts.PriceState{Symbol: symbol}

	ticker, err := r.tickers.GetBySymbol(ctx, symbol)
	if err != nil && !errors.Is(err, store.ErrTickerNotFound) {
		return nil, err
	}

	ref := r.dailyRef(ctx, symbol, tradingDay)
	state.PreviousClose = r.previousClose(ctx, symbol, tradingDay, ticker, ref)

	// Current price: most authoritative session tick, then the denormalized
	// last price, then the baseline itself as last resort.
	usedBaseline := false
	if tick, ok := r.ticks.Best(symbol); ok && tick.LastPrice > 0 {
		state.CurrentPrice = tick.LastPrice
	} else if ticker != nil && ticker.LastPrice > 0 {
		state.CurrentPrice = ticker.LastPrice
	} else if state.PreviousClose != nil {
		state.CurrentPrice = *state.PreviousClose
		usedBaseline = true
	}

	state.PercentChange = r.percentChange(state, session, ref, usedBaseline)

	return state, nil
}

// previousClose resolves the baseline: cache, then ticker denorm (only if
// its date matches the trading day), then the reference row.
func (r *Resolver) previousClose(ctx context.Context, symbol string, tradingDay time.Time, ticker *contracts.Ticker, ref *contracts.DailyRef) *float64 {
	if v, ok := r.cache.GetPrevClose(ctx, tradingDay, symbol); ok {
		return &v
	}

	if ticker != nil && ticker.LatestPrevClose != nil && *ticker.LatestPrevClose > 0 &&
		ticker.LatestPrevCloseDate != nil && ticker.LatestPrevCloseDate.Equal(tradingDay) {
		v := *ticker.LatestPrevClose
		return &v
	}

	if ref != nil && ref.PreviousClose != nil && *ref.PreviousClose > 0 {
		v := *ref.PreviousClose
		return &v
	}

	return nil
}

// percentChange picks the baseline by session. Pre/after sessions measure
// against the prior close; once the close has posted (live tail, closed),
// a same-day regular close is the more authoritative reference.
func (r *Resolver) percentChange(state *contracts.PriceState, session contracts.Session, ref *contracts.DailyRef, usedBaseline bool) float64 {
	// Price equals its own baseline by construction; computing would only
	// manufacture rounding noise.
	if usedBaseline {
		return 0
	}

	baseline := state.PreviousClose
	if session == contracts.SessionLive || session == contracts.SessionClosed {
		if ref != nil && ref.RegularClose != nil && *ref.RegularClose > 0 {
			baseline = ref.RegularClose
		}
	}

	if baseline == nil || *baseline <= 0 || state.CurrentPrice <= 0 {
		return 0
	}
	if state.CurrentPrice == *baseline {
		return 0
	}

	return (state.CurrentPrice - *baseline) / *baseline * 100
}

// dailyRef loads the reference row, treating not-found as nil.
func (r *Resolver) dailyRef(ctx context.Context, symbol string, tradingDay time.Time) *contracts.DailyRef {
	ref, err := r.dailyRefs.Get(ctx, symbol, tradingDay)
	if err != nil {
		if !errors.Is(err, store.ErrDailyRefNotFound) {
			r.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to load daily ref")
		}
		return nil
	}
	return ref
}
