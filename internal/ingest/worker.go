package ingest

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/hwahn/pricepulse/internal/batch"
	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/internal/rankindex"
	"github.com/hwahn/pricepulse/internal/reconcile"
	"github.com/hwahn/pricepulse/internal/session"
	"github.com/hwahn/pricepulse/internal/store"
	"github.com/hwahn/pricepulse/internal/tiers"
	"github.com/hwahn/pricepulse/pkg/config"
	"github.com/hwahn/pricepulse/pkg/logger"
)

// SnapshotFetcher is the provider slice the worker needs.
type SnapshotFetcher interface {
	Snapshot(ctx context.Context, symbol string) (*contracts.Snapshot, error)
}

// StateResolver computes price state for a symbol.
type StateResolver interface {
	Resolve(ctx context.Context, symbol string, s contracts.Session, tradingDay time.Time) (*contracts.PriceState, error)
}

// Verifier re-checks a single symbol's baseline against the provider.
type Verifier interface {
	VerifySymbol(ctx context.Context, symbol string) (*reconcile.Report, error)
}

// QuoteSink receives the denormalized fast-read quote.
type QuoteSink interface {
	SetQuote(ctx context.Context, symbol string, q contracts.StockQuote) error
}

// RankSink receives ranked index updates.
type RankSink interface {
	Update(ctx context.Context, metric rankindex.Metric, day time.Time, s contracts.Session, entries []rankindex.Entry) error
}

// Worker drives the tiered ingestion loop: each cycle asks the scheduler
// which symbols are due, snapshots them under the shared provider budget,
// and fans the results out to the session tick store, the ticker rows, the
// quote hash, and the rank indexes.
//
// Workers publish their own Status; nothing downstream should infer
// progress from log output.
type Worker struct {
	cfg       *config.Config
	clock     *session.Clock
	scheduler *tiers.Scheduler
	fetcher   SnapshotFetcher
	resolver  StateResolver
	verifier  Verifier
	tickers   contracts.TickerRepository
	ticks     *store.SessionTickStore
	quotes    QuoteSink
	ranks     RankSink
	executor  *batch.Executor
	logger    *logger.Logger

	now func() time.Time

	mu     sync.Mutex
	status Status
}

// Status is the worker's self-published progress contract.
type Status struct {
	State               string `json:"state"` // idle, running, stopped
	CyclesCompleted     int    `json:"cyclesCompleted"`
	LastCycleDurationMs int64  `json:"lastCycleDurationMs"`
	LastCycleSymbols    int    `json:"lastCycleSymbols"`
	LastCycleErrors     int    `json:"lastCycleErrors"`
}

// NewWorker creates an ingestion worker.
func NewWorker(
	cfg *config.Config,
	clock *session.Clock,
	scheduler *tiers.Scheduler,
	fetcher SnapshotFetcher,
	resolver StateResolver,
	verifier Verifier,
	tickers contracts.TickerRepository,
	ticks *store.SessionTickStore,
	quotes QuoteSink,
	ranks RankSink,
	log *logger.Logger,
) *Worker {
	opts := batch.Options{
		BatchSize:   cfg.Reconcile.BatchSize,
		Concurrency: cfg.Reconcile.Concurrency,
	}

	return &Worker{
		cfg:       cfg,
		clock:     clock,
		scheduler: scheduler,
		fetcher:   fetcher,
		resolver:  resolver,
		verifier:  verifier,
		tickers:   tickers,
		ticks:     ticks,
		quotes:    quotes,
		ranks:     ranks,
		executor:  batch.NewExecutor(opts, log),
		logger:    log,
		now:       time.Now,
		status:    Status{State: "idle"},
	}
}

// Run drives cycles on a fixed tick until the context is cancelled.
func (w *Worker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.WithField("interval", interval.String()).Info("Ingest worker started")

	for {
		select {
		case <-ctx.Done():
			w.setState("stopped")
			w.logger.Info("Ingest worker stopped")
			return
		case <-ticker.C:
			if err := w.RunCycle(ctx); err != nil {
				w.logger.WithError(err).Error("Ingest cycle failed")
			}
		}
	}
}

// RunCycle processes every symbol currently due. Outside market sessions
// the cycle is a cheap no-op.
func (w *Worker) RunCycle(ctx context.Context) error {
	now := w.now()
	snap := w.clock.Now(now)

	if snap.Session == contracts.SessionClosed {
		return nil
	}

	// The tick store is day-scoped; roll it over on the first cycle of a
	// new trading day.
	if !w.ticks.Day().Equal(snap.TradingDay) {
		w.ticks.Reset(snap.TradingDay)
	}

	due := w.scheduler.TickersForUpdate(now)
	if len(due) == 0 {
		return nil
	}

	w.setState("running")
	started := now

	var mu sync.Mutex
	var entries struct {
		mcap   []rankindex.Entry
		chgPct []rankindex.Entry
		price  []rankindex.Entry
	}

	result, err := batch.Run(ctx, w.executor, due, func(ctx context.Context, symbol string) error {
		state, err := w.ingestSymbol(ctx, symbol, snap)
		if err != nil {
			return err
		}

		mu.Lock()
		defer mu.Unlock()
		entries.chgPct = append(entries.chgPct, rankindex.Entry{Symbol: symbol, Score: state.PercentChange})
		entries.price = append(entries.price, rankindex.Entry{Symbol: symbol, Score: state.CurrentPrice})
		if state.MarketCap > 0 {
			entries.mcap = append(entries.mcap, rankindex.Entry{Symbol: symbol, Score: float64(state.MarketCap)})
		}
		return nil
	})
	if err != nil {
		w.finishCycle(started, len(due), 0)
		return err
	}

	for metric, batchEntries := range map[rankindex.Metric][]rankindex.Entry{
		rankindex.MetricMarketCap:     entries.mcap,
		rankindex.MetricPercentChange: entries.chgPct,
		rankindex.MetricPrice:         entries.price,
	} {
		if err := w.ranks.Update(ctx, metric, snap.TradingDay, snap.Session, batchEntries); err != nil {
			w.logger.WithError(err).WithField("metric", string(metric)).Warn("Rank index update failed")
		}
	}

	w.finishCycle(started, len(due), result.Failed)
	return nil
}

// symbolState is what one ingested symbol contributes to the cycle.
type symbolState struct {
	CurrentPrice  float64
	PercentChange float64
	MarketCap     int64
}

func (w *Worker) ingestSymbol(ctx context.Context, symbol string, snap session.Snapshot) (*symbolState, error) {
	quote, err := w.fetcher.Snapshot(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if quote.LastPrice > 0 {
		w.ticks.Record(contracts.SessionTick{
			Symbol:    symbol,
			Session:   snap.Session,
			LastPrice: quote.LastPrice,
			ChangePct: quote.ChangePct,
			At:        quote.UpdatedAt,
		})
	}

	state, err := w.resolver.Resolve(ctx, symbol, snap.Session, snap.TradingDay)
	if err != nil {
		return nil, err
	}

	// A large pre-market move gets its baseline verified before it is
	// propagated anywhere consumers can see it.
	if snap.Session == contracts.SessionPre && math.Abs(state.PercentChange) >= w.cfg.Reconcile.MoveThresholdPct {
		if _, err := w.verifier.VerifySymbol(ctx, symbol); err != nil {
			w.logger.WithError(err).WithField("symbol", symbol).Warn("Pre-market verification failed")
		} else if state, err = w.resolver.Resolve(ctx, symbol, snap.Session, snap.TradingDay); err != nil {
			return nil, err
		}
	}

	out := &symbolState{CurrentPrice: state.CurrentPrice, PercentChange: state.PercentChange}
	if out.CurrentPrice <= 0 {
		return out, nil
	}

	var marketCap, marketCapDiff int64
	if ticker, err := w.tickers.GetBySymbol(ctx, symbol); err == nil && ticker.SharesOutstanding > 0 {
		marketCap = int64(float64(ticker.SharesOutstanding) * out.CurrentPrice)
		if state.PreviousClose != nil && *state.PreviousClose > 0 {
			marketCapDiff = marketCap - int64(float64(ticker.SharesOutstanding)**state.PreviousClose)
		}
	}
	out.MarketCap = marketCap

	if err := w.tickers.UpdateQuote(ctx, symbol, out.CurrentPrice, out.PercentChange, marketCap); err != nil {
		return nil, err
	}

	if err := w.quotes.SetQuote(ctx, symbol, contracts.StockQuote{
		Price:         out.CurrentPrice,
		ChangePct:     out.PercentChange,
		MarketCap:     marketCap,
		MarketCapDiff: marketCapDiff,
	}); err != nil {
		w.logger.WithError(err).WithField("symbol", symbol).Warn("Quote cache write failed")
	}

	return out, nil
}

// Status returns a copy of the worker's published status.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *Worker) setState(state string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status.State = state
}

func (w *Worker) finishCycle(started time.Time, symbols, errs int) {
	elapsed := w.now().Sub(started)

	w.mu.Lock()
	w.status.State = "idle"
	w.status.CyclesCompleted++
	w.status.LastCycleDurationMs = elapsed.Milliseconds()
	w.status.LastCycleSymbols = symbols
	w.status.LastCycleErrors = errs
	w.mu.Unlock()

	w.logger.WithFields(map[string]interface{}{
		"symbols":  symbols,
		"errors":   errs,
		"duration": elapsed.String(),
	}).Info("Ingest cycle complete")
}
