package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/hwahn/pricepulse/internal/batch"
	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/internal/tiers"
	"github.com/hwahn/pricepulse/pkg/config"
	"github.com/hwahn/pricepulse/pkg/logger"
)

// trackedUniverseSize is how many symbols the tier bands cover in total.
const trackedUniverseSize = 360

// ReferenceFetcher is the provider slice the universe job needs.
type ReferenceFetcher interface {
	CompanyReference(ctx context.Context, symbol string) (*contracts.CompanyReference, error)
}

// ReferenceStore is the ticker-repo slice the universe job writes through.
type ReferenceStore interface {
	ListByMarketCap(ctx context.Context, limit int) ([]string, error)
	UpdateReference(ctx context.Context, symbol, name string, sharesOutstanding int64) error
}

// UniverseJob rebuilds the tracked universe before the open: it re-ranks
// symbols by market cap, recomputes tier membership wholesale, and
// refreshes the slow-changing company reference data the market-cap math
// depends on.
type UniverseJob struct {
	cfg       *config.Config
	tickers   ReferenceStore
	scheduler *tiers.Scheduler
	fetcher   ReferenceFetcher
	executor  *batch.Executor
	logger    *logger.Logger
}

// NewUniverseJob creates the scheduled universe rebuild job.
func NewUniverseJob(
	cfg *config.Config,
	tickers ReferenceStore,
	scheduler *tiers.Scheduler,
	fetcher ReferenceFetcher,
	log *logger.Logger,
) *UniverseJob {
	opts := batch.Options{
		BatchSize:   cfg.Reconcile.BatchSize,
		Concurrency: cfg.Reconcile.Concurrency,
		Delay:       cfg.Reconcile.BatchDelay,
	}

	return &UniverseJob{
		cfg:       cfg,
		tickers:   tickers,
		scheduler: scheduler,
		fetcher:   fetcher,
		executor:  batch.NewExecutor(opts, log),
		logger:    log,
	}
}

// Name returns the job name.
func (j *UniverseJob) Name() string {
	return "universe_rebuild"
}

// Schedule runs at 07:30 ET on weekdays, before pre-market polling ramps
// up.
func (j *UniverseJob) Schedule() string {
	return "0 30 7 * * 1-5"
}

// Run rebuilds tier membership and refreshes company reference data.
func (j *UniverseJob) Run(ctx context.Context) error {
	universe, err := j.tickers.ListByMarketCap(ctx, trackedUniverseSize)
	if err != nil {
		return fmt.Errorf("list universe: %w", err)
	}

	j.scheduler.SetUniverse(universe, time.Now())
	j.logger.WithField("universe", len(universe)).Info("Tier membership recomputed")

	result, err := batch.Run(ctx, j.executor, universe, func(ctx context.Context, symbol string) error {
		ref, err := j.fetcher.CompanyReference(ctx, symbol)
		if err != nil {
			return err
		}
		if ref.SharesOutstanding <= 0 {
			return nil
		}
		return j.tickers.UpdateReference(ctx, symbol, ref.Name, ref.SharesOutstanding)
	})
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"refreshed": result.Succeeded,
		"errors":    result.Failed,
	}).Info("Company reference refresh finished")

	return nil
}
