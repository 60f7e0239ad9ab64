package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hwahn/pricepulse/internal/batch"
	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/internal/reconcile"
	"github.com/hwahn/pricepulse/internal/session"
	"github.com/hwahn/pricepulse/pkg/config"
	"github.com/hwahn/pricepulse/pkg/logger"
)

// Params controls a refresh run.
type Params struct {
	Force bool // refetch even when a regular close is already stored
}

// Report summarizes one run.
type Report struct {
	RegularCloseRefreshed  int `json:"regularCloseRefreshed"`
	PreviousCloseRefreshed int `json:"previousCloseRefreshed"`
	Errors                 int `json:"errors"`
}

// Job posts regular closes after the market closes and seeds the next
// trading day's baselines from them.
//
// For trading day D it writes regularClose(D), then previousClose on the
// NextTradingDay(D) row, the denormalized ticker baseline, and the cache
// entry for that next day. This is the forward half of the Model A
// contract; the reconciliation engine owns the backward-looking half.
type Job struct {
	cfg       *config.Config
	clock     *session.Clock
	tickers   contracts.TickerRepository
	dailyRefs contracts.DailyRefRepository
	cache     contracts.PrevCloseCache
	fetcher   reconcile.CloseFetcher
	executor  *batch.Executor
	logger    *logger.Logger

	now func() time.Time
}

// NewJob creates a close-refresh job.
func NewJob(
	cfg *config.Config,
	clock *session.Clock,
	tickers contracts.TickerRepository,
	dailyRefs contracts.DailyRefRepository,
	cache contracts.PrevCloseCache,
	fetcher reconcile.CloseFetcher,
	log *logger.Logger,
) *Job {
	opts := batch.Options{
		BatchSize:   cfg.Reconcile.BatchSize,
		Concurrency: cfg.Reconcile.Concurrency,
		Delay:       cfg.Reconcile.BatchDelay,
	}

	return &Job{
		cfg:       cfg,
		clock:     clock,
		tickers:   tickers,
		dailyRefs: dailyRefs,
		cache:     cache,
		fetcher:   fetcher,
		executor:  batch.NewExecutor(opts, log),
		logger:    log,
		now:       time.Now,
	}
}

// Run refreshes closes for the most recent trading day.
func (j *Job) Run(ctx context.Context, params Params) (*Report, error) {
	day := j.clock.TradingDayAt(j.now())
	nextDay := j.clock.NextTradingDay(day)

	symbols, err := j.tickers.ListByMarketCap(ctx, j.cfg.Reconcile.MaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"symbols":     len(symbols),
		"trading_day": day.Format("2006-01-02"),
		"force":       params.Force,
	}).Info("Starting close refresh")

	report := &Report{}
	var mu sync.Mutex

	result, err := batch.Run(ctx, j.executor, symbols, func(ctx context.Context, symbol string) error {
		regular, previous, err := j.refreshSymbol(ctx, symbol, day, nextDay, params.Force)
		if err != nil {
			return err
		}

		mu.Lock()
		if regular {
			report.RegularCloseRefreshed++
		}
		if previous {
			report.PreviousCloseRefreshed++
		}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return report, err
	}

	report.Errors = result.Failed

	j.logger.WithFields(map[string]interface{}{
		"regular_refreshed":  report.RegularCloseRefreshed,
		"previous_refreshed": report.PreviousCloseRefreshed,
		"errors":             report.Errors,
	}).Info("Close refresh complete")

	return report, nil
}

// refreshSymbol posts one symbol's close for the day and seeds the next
// day's baseline from it.
func (j *Job) refreshSymbol(ctx context.Context, symbol string, day, nextDay time.Time, force bool) (regular, previous bool, err error) {
	closePrice := 0.0

	if !force {
		if ref, refErr := j.dailyRefs.Get(ctx, symbol, day); refErr == nil &&
			ref.RegularClose != nil && *ref.RegularClose > 0 {
			closePrice = *ref.RegularClose
		}
	}

	if closePrice == 0 {
		closePrice, err = j.fetcher.DailyClose(ctx, symbol, day)
		if err != nil {
			return false, false, err
		}

		if err := j.dailyRefs.UpsertRegularClose(ctx, symbol, day, closePrice); err != nil {
			return false, false, err
		}
		regular = true
	}

	// Seed tomorrow's baseline unless it is already in place with the same
	// value (a forced rerun must still converge, not churn).
	next, nextErr := j.dailyRefs.Get(ctx, symbol, nextDay)
	seeded := nextErr == nil && next.PreviousClose != nil && *next.PreviousClose == closePrice
	if !seeded {
		if err := j.dailyRefs.PrepareNextDayPrevClose(ctx, symbol, nextDay, closePrice); err != nil {
			return regular, false, err
		}
		previous = true
	}

	if err := j.tickers.UpdatePrevClose(ctx, symbol, closePrice, nextDay); err != nil {
		return regular, previous, err
	}

	if err := j.cache.SetPrevClose(ctx, nextDay, symbol, closePrice); err != nil {
		j.logger.WithError(err).WithField("symbol", symbol).Warn("Cache write failed, will heal on read")
	}

	return regular, previous, nil
}
