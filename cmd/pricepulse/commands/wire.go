package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/hwahn/pricepulse/internal/ingest"
	"github.com/hwahn/pricepulse/internal/jobs"
	"github.com/hwahn/pricepulse/internal/marketdata"
	"github.com/hwahn/pricepulse/internal/rankindex"
	"github.com/hwahn/pricepulse/internal/reconcile"
	"github.com/hwahn/pricepulse/internal/refresh"
	"github.com/hwahn/pricepulse/internal/resolver"
	"github.com/hwahn/pricepulse/internal/session"
	"github.com/hwahn/pricepulse/internal/store"
	"github.com/hwahn/pricepulse/internal/tiers"
	"github.com/hwahn/pricepulse/pkg/config"
	"github.com/hwahn/pricepulse/pkg/database"
	"github.com/hwahn/pricepulse/pkg/httputil"
	"github.com/hwahn/pricepulse/pkg/logger"
	"github.com/hwahn/pricepulse/pkg/redis"
)

// trackedUniverseSize mirrors the tier bands: 50+100+150+60.
const trackedUniverseSize = 360

// app bundles the wired engine components shared by the commands.
// SSOT: dependency wiring happens here and nowhere else.
type app struct {
	cfg    *config.Config
	logger *logger.Logger
	db     *database.DB
	redis  *redis.Client

	clock     *session.Clock
	tickers   *store.TickerRepo
	dailyRefs *store.DailyRefRepo
	cache     *store.QuoteCache
	ticks     *store.SessionTickStore
	ranks     *rankindex.Store
	fetcher   *marketdata.Fetcher
	resolver  *resolver.Resolver
	engine    *reconcile.Engine
	refresh   *refresh.Job
	scheduler *tiers.Scheduler
	worker    *ingest.Worker
	universe  *jobs.UniverseJob
}

// newApp loads config and wires the full component graph.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	rdb, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	clock := session.NewClock()
	now := time.Now()

	tickerRepo := store.NewTickerRepo(db)
	dailyRefRepo := store.NewDailyRefRepo(db)
	quoteCache := store.NewQuoteCache(rdb, log)
	tickStore := store.NewSessionTickStore(clock.TradingDayAt(now))
	ranks := rankindex.NewStore(rdb, log)

	httpClient := httputil.NewWithTimeout(cfg, log, cfg.Provider.RequestTimeout).
		WithRetry(cfg.Provider.MaxRetries, 1*time.Second).
		WithRateLimiter(redis.NewRateLimiter(rdb, "pricepulse"),
			redis.ProviderRateLimit(cfg.Provider.CallsPerMinute))
	provider := marketdata.NewClient(cfg, httpClient, log).
		WithReferenceCache(redis.NewCache(rdb, "pricepulse"))
	fetcher := marketdata.NewFetcher(cfg, provider, log)

	priceResolver := resolver.New(quoteCache, tickerRepo, dailyRefRepo, tickStore, log)
	engine := reconcile.NewEngine(cfg, clock, tickerRepo, dailyRefRepo, quoteCache, fetcher, log)
	refreshJob := refresh.NewJob(cfg, clock, tickerRepo, dailyRefRepo, quoteCache, fetcher, log)

	universe, err := tickerRepo.ListByMarketCap(context.Background(), trackedUniverseSize)
	if err != nil {
		log.WithError(err).Warn("Failed to load universe, starting empty")
	}
	tierScheduler := tiers.NewScheduler(universe, now)

	worker := ingest.NewWorker(cfg, clock, tierScheduler, fetcher, priceResolver,
		engine, tickerRepo, tickStore, quoteCache, ranks, log)

	universeJob := jobs.NewUniverseJob(cfg, tickerRepo, tierScheduler, fetcher, log)

	return &app{
		cfg:       cfg,
		logger:    log,
		db:        db,
		redis:     rdb,
		clock:     clock,
		tickers:   tickerRepo,
		dailyRefs: dailyRefRepo,
		cache:     quoteCache,
		ticks:     tickStore,
		ranks:     ranks,
		fetcher:   fetcher,
		resolver:  priceResolver,
		engine:    engine,
		refresh:   refreshJob,
		scheduler: tierScheduler,
		worker:    worker,
		universe:  universeJob,
	}, nil
}

// close releases the app's connections.
func (a *app) close() {
	a.db.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close redis client")
	}
}
