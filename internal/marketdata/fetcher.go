package marketdata

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/pkg/config"
	"github.com/hwahn/pricepulse/pkg/logger"
)

// Fetcher wraps a MarketDataProvider with a shared in-process rate budget
// and a per-call timeout. Retries and Retry-After handling live in the HTTP
// layer underneath (pkg/httputil); the fetcher's job is to make sure no
// caller can exceed the minute-level quota or hang on a slow provider.
//
// SSOT: every provider call from the engine goes through a Fetcher.
type Fetcher struct {
	provider contracts.MarketDataProvider
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *logger.Logger
}

// NewFetcher creates a rate-limited fetcher around a provider.
func NewFetcher(cfg *config.Config, provider contracts.MarketDataProvider, log *logger.Logger) *Fetcher {
	perSecond := rate.Limit(float64(cfg.Provider.CallsPerMinute) / 60.0)

	return &Fetcher{
		provider: provider,
		limiter:  rate.NewLimiter(perSecond, cfg.Provider.CallsPerMinute/10+1),
		timeout:  cfg.Provider.RequestTimeout,
		logger:   log,
	}
}

// Snapshot fetches the current snapshot under the shared budget.
func (f *Fetcher) Snapshot(ctx context.Context, symbol string) (*contracts.Snapshot, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	return f.provider.Snapshot(callCtx, symbol)
}

// DailyClose fetches an authoritative close under the shared budget.
func (f *Fetcher) DailyClose(ctx context.Context, symbol string, day time.Time) (float64, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	return f.provider.DailyClose(callCtx, symbol, day)
}

// CompanyReference fetches static metadata under the shared budget.
func (f *Fetcher) CompanyReference(ctx context.Context, symbol string) (*contracts.CompanyReference, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	return f.provider.CompanyReference(callCtx, symbol)
}
