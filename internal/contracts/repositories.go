package contracts

import (
	"context"
	"time"
)

// SSOT: repository and provider interfaces are defined here only.
// Consumers depend on these; internal/store and internal/marketdata
// provide the concrete implementations.

// TickerRepository manages the denormalized per-symbol rows.
type TickerRepository interface {
	GetBySymbol(ctx context.Context, symbol string) (*Ticker, error)
	ListReconcileCandidates(ctx context.Context, limit int) ([]*Ticker, error)
	ListByMarketCap(ctx context.Context, limit int) ([]string, error)
	UpdateQuote(ctx context.Context, symbol string, price, changePct float64, marketCap int64) error
	UpdatePrevClose(ctx context.Context, symbol string, prevClose float64, prevCloseDate time.Time) error
}

// DailyRefRepository manages per-day reference rows.
//
// CorrectPreviousClose takes the target trading day as a narrowed parameter;
// there is deliberately no call that writes an arbitrary day's baseline, so
// clobbering a value prepared for the next trading day is impossible by
// construction.
type DailyRefRepository interface {
	Get(ctx context.Context, symbol string, day time.Time) (*DailyRef, error)
	UpsertRegularClose(ctx context.Context, symbol string, day time.Time, close float64) error
	PrepareNextDayPrevClose(ctx context.Context, symbol string, nextDay time.Time, prevClose float64) error
	CorrectPreviousClose(ctx context.Context, symbol string, day time.Time, prevClose float64) error
}

// PrevCloseCache is the key-value prior-close layer. Implementations must
// degrade to misses when the cache is unavailable.
type PrevCloseCache interface {
	GetPrevClose(ctx context.Context, day time.Time, symbol string) (float64, bool)
	SetPrevClose(ctx context.Context, day time.Time, symbol string, value float64) error
}

// TickReader serves the most authoritative in-memory session tick.
type TickReader interface {
	Best(symbol string) (*SessionTick, bool)
}

// Snapshot is the provider's current view of a symbol. A zero or absent
// close is "unknown", never a literal zero price.
type Snapshot struct {
	Symbol       string
	LastPrice    float64
	MinutePrice  float64
	DayClose     float64
	PrevDayClose float64
	ChangePct    float64
	UpdatedAt    time.Time
}

// CompanyReference is slow-changing static metadata.
type CompanyReference struct {
	Symbol            string
	Name              string
	SharesOutstanding int64
}

// MarketDataProvider is the external quote source. Every call may fail,
// rate-limit, or return stale data; callers own retries and budgets.
type MarketDataProvider interface {
	Snapshot(ctx context.Context, symbol string) (*Snapshot, error)
	DailyClose(ctx context.Context, symbol string, day time.Time) (float64, error)
	CompanyReference(ctx context.Context, symbol string) (*CompanyReference, error)
}
