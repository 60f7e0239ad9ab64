package reconcile

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hwahn/pricepulse/internal/batch"
	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/internal/session"
	"github.com/hwahn/pricepulse/pkg/config"
	"github.com/hwahn/pricepulse/pkg/logger"
)

// CloseFetcher is the slice of the provider the engine needs: an
// authoritative regular-session close for a symbol on a trading day.
type CloseFetcher interface {
	DailyClose(ctx context.Context, symbol string, day time.Time) (float64, error)
}

// Params controls a reconciliation run.
type Params struct {
	Limit  int
	DryRun bool
}

// Issue is one detected drift, reported for audit.
type Issue struct {
	Symbol       string  `json:"ticker"`
	DBValue      float64 `json:"dbValue"`
	CorrectValue float64 `json:"correctValue"`
	Diff         float64 `json:"diff"`
}

// Report is the structured summary of one run. Individual failures land in
// Errors; the run itself only fails on job-level problems.
type Report struct {
	Checked  int     `json:"checked"`
	NeedsFix int     `json:"needsFix"`
	Fixed    int     `json:"fixed"`
	Errors   int     `json:"errors"`
	Issues   []Issue `json:"issues"`
}

// Engine detects and corrects prior-close drift between the store and the
// external provider.
//
// Corrections write in a fixed order: the reference row for the trading day
// being reconciled, then the denormalized ticker fields, then the cache. A
// reader catching a correction mid-flight therefore never sees a ticker
// date ahead of the reference row it denormalizes. The reference write goes
// through CorrectPreviousClose, which cannot reach any other day's row.
type Engine struct {
	cfg       *config.Config
	clock     *session.Clock
	tickers   contracts.TickerRepository
	dailyRefs contracts.DailyRefRepository
	cache     contracts.PrevCloseCache
	fetcher   CloseFetcher
	executor  *batch.Executor
	logger    *logger.Logger

	now func() time.Time
}

// NewEngine creates a reconciliation engine.
func NewEngine(
	cfg *config.Config,
	clock *session.Clock,
	tickers contracts.TickerRepository,
	dailyRefs contracts.DailyRefRepository,
	cache contracts.PrevCloseCache,
	fetcher CloseFetcher,
	log *logger.Logger,
) *Engine {
	opts := batch.Options{
		BatchSize:   cfg.Reconcile.BatchSize,
		Concurrency: cfg.Reconcile.Concurrency,
		Delay:       cfg.Reconcile.BatchDelay,
	}

	return &Engine{
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

// Run scans candidate symbols for prior-close drift and corrects anything
// beyond tolerance. Dry-run detects and reports without writing.
func (e *Engine) Run(ctx context.Context, params Params) (*Report, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = e.cfg.Reconcile.MaxCandidates
	}

	tradingDay := e.clock.TradingDayAt(e.now())
	baselineDay := e.clock.LastTradingDay(tradingDay)

	candidates, err := e.tickers.ListReconcileCandidates(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	e.logger.WithFields(map[string]interface{}{
		"candidates":  len(candidates),
		"trading_day": tradingDay.Format("2006-01-02"),
		"dry_run":     params.DryRun,
	}).Info("Starting reconciliation run")

	report := &Report{}
	collect := newReportCollector(report, e.cfg.Reconcile.IssueCap)

	result, err := batch.Run(ctx, e.executor, candidates, func(ctx context.Context, t *contracts.Ticker) error {
		finding, err := e.verify(ctx, t, tradingDay, baselineDay, params.DryRun)
		collect.add(finding, err)
		return err
	})
	if err != nil {
		return report, err
	}

	report.Errors = result.Failed

	e.logger.WithFields(map[string]interface{}{
		"checked":   report.Checked,
		"needs_fix": report.NeedsFix,
		"fixed":     report.Fixed,
		"errors":    report.Errors,
	}).Info("Reconciliation run complete")

	return report, nil
}

// VerifySymbol runs the same verification for a single symbol. The ingest
// path calls this before propagating a large pre-market move.
func (e *Engine) VerifySymbol(ctx context.Context, symbol string) (*Report, error) {
	ticker, err := e.tickers.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", symbol, err)
	}

	tradingDay := e.clock.TradingDayAt(e.now())
	baselineDay := e.clock.LastTradingDay(tradingDay)

	report := &Report{}
	collect := newReportCollector(report, e.cfg.Reconcile.IssueCap)

	finding, err := e.verify(ctx, ticker, tradingDay, baselineDay, false)
	collect.add(finding, err)
	if err != nil {
		report.Errors = 1
	}

	return report, nil
}

// finding is the outcome of verifying one symbol.
type finding struct {
	issue *Issue
	fixed bool
}

// verify fetches the authoritative close and corrects the stored baseline
// when it drifts beyond tolerance.
func (e *Engine) verify(ctx context.Context, t *contracts.Ticker, tradingDay, baselineDay time.Time, dryRun bool) (finding, error) {
	authoritative, err := e.fetcher.DailyClose(ctx, t.Symbol, baselineDay)
	if err != nil {
		return finding{}, fmt.Errorf("fetch close %s: %w", t.Symbol, err)
	}

	stored := e.storedBaseline(ctx, t, tradingDay)
	diff := math.Abs(stored - authoritative)
	if stored > 0 && diff <= e.cfg.Reconcile.Tolerance {
		return finding{}, nil
	}

	f := finding{issue: &Issue{
		Symbol:       t.Symbol,
		DBValue:      stored,
		CorrectValue: authoritative,
		Diff:         diff,
	}}

	if dryRun {
		return f, nil
	}

	if err := e.correct(ctx, t.Symbol, tradingDay, authoritative); err != nil {
		return f, err
	}

	f.fixed = true
	return f, nil
}

// storedBaseline reads the baseline the store currently holds for the
// trading day. A denormalized value with a stale date does not count; the
// reference row is the fallback. Zero means broken.
func (e *Engine) storedBaseline(ctx context.Context, t *contracts.Ticker, tradingDay time.Time) float64 {
	if t.LatestPrevClose != nil && *t.LatestPrevClose > 0 &&
		t.LatestPrevCloseDate != nil && t.LatestPrevCloseDate.Equal(tradingDay) {
		return *t.LatestPrevClose
	}

	ref, err := e.dailyRefs.Get(ctx, t.Symbol, tradingDay)
	if err == nil && ref.PreviousClose != nil && *ref.PreviousClose > 0 {
		return *ref.PreviousClose
	}

	return 0
}

// correct writes the authoritative baseline: reference row first, then the
// denormalized ticker fields, then the cache. Each relational write gets
// one retry; a cache failure is logged and swallowed since the cache heals
// on the next read-through.
func (e *Engine) correct(ctx context.Context, symbol string, tradingDay time.Time, value float64) error {
	write := func(op string, fn func() error) error {
		if err := fn(); err != nil {
			e.logger.WithError(err).WithField("symbol", symbol).Warnf("Retrying %s", op)
			if err := fn(); err != nil {
				return fmt.Errorf("%s %s: %w", op, symbol, err)
			}
		}
		return nil
	}

	err := write("correct daily ref", func() error {
		return e.dailyRefs.CorrectPreviousClose(ctx, symbol, tradingDay, value)
	})
	if err != nil {
		return err
	}

	err = write("update ticker baseline", func() error {
		return e.tickers.UpdatePrevClose(ctx, symbol, value, tradingDay)
	})
	if err != nil {
		return err
	}

	if err := e.cache.SetPrevClose(ctx, tradingDay, symbol, value); err != nil {
		e.logger.WithError(err).WithField("symbol", symbol).Warn("Cache write failed, will heal on read")
	}

	return nil
}

// reportCollector serializes finding aggregation across batch goroutines.
type reportCollector struct {
	mu       sync.Mutex
	report   *Report
	issueCap int
}

func newReportCollector(report *Report, issueCap int) *reportCollector {
	if issueCap <= 0 {
		issueCap = 50
	}
	return &reportCollector{report: report, issueCap: issueCap}
}

func (c *reportCollector) add(f finding, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		return
	}

	c.report.Checked++
	if f.issue == nil {
		return
	}

	c.report.NeedsFix++
	if f.fixed {
		c.report.Fixed++
	}
	if len(c.report.Issues) < c.issueCap {
		c.report.Issues = append(c.report.Issues, *f.issue)
	}
}
