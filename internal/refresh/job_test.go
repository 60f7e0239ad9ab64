package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/internal/session"
	"github.com/hwahn/pricepulse/internal/store"
	"github.com/hwahn/pricepulse/pkg/config"
	"github.com/hwahn/pricepulse/pkg/logger"
)

// Tuesday evening 2024-01-16; next trading day is Wednesday the 17th.
var (
	eveningNow = time.Date(2024, 1, 16, 23, 0, 0, 0, time.UTC)
	closedDay  = time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)
	nextDay    = time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)
)

type memTickers struct {
	mu       sync.Mutex
	universe []string
	baseline map[string]float64
	dates    map[string]time.Time
}

func (m *memTickers) GetBySymbol(_ context.Context, symbol string) (*contracts.Ticker, error) {
	return nil, store.ErrTickerNotFound
}

func (m *memTickers) ListReconcileCandidates(context.Context, int) ([]*contracts.Ticker, error) {
	return nil, nil
}

func (m *memTickers) ListByMarketCap(_ context.Context, limit int) ([]string, error) {
	if len(m.universe) > limit {
		return m.universe[:limit], nil
	}
	return m.universe, nil
}

func (m *memTickers) UpdateQuote(context.Context, string, float64, float64, int64) error {
	return nil
}

func (m *memTickers) UpdatePrevClose(_ context.Context, symbol string, prevClose float64, prevCloseDate time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.baseline == nil {
		m.baseline = make(map[string]float64)
		m.dates = make(map[string]time.Time)
	}
	m.baseline[symbol] = prevClose
	m.dates[symbol] = prevCloseDate
	return nil
}

type memDailyRefs struct {
	mu   sync.Mutex
	refs map[string]*contracts.DailyRef
}

func refKey(symbol string, day time.Time) string {
	return symbol + ":" + day.Format("2006-01-02")
}

func (m *memDailyRefs) Get(_ context.Context, symbol string, day time.Time) (*contracts.DailyRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref, ok := m.refs[refKey(symbol, day)]
	if !ok {
		return nil, store.ErrDailyRefNotFound
	}
	cp := *ref
	return &cp, nil
}

func (m *memDailyRefs) UpsertRegularClose(_ context.Context, symbol string, day time.Time, close float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsert(symbol, day).RegularClose = &close
	return nil
}

func (m *memDailyRefs) PrepareNextDayPrevClose(_ context.Context, symbol string, day time.Time, prevClose float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsert(symbol, day).PreviousClose = &prevClose
	return nil
}

func (m *memDailyRefs) CorrectPreviousClose(_ context.Context, symbol string, day time.Time, prevClose float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsert(symbol, day).PreviousClose = &prevClose
	return nil
}

func (m *memDailyRefs) upsert(symbol string, day time.Time) *contracts.DailyRef {
	if m.refs == nil {
		m.refs = make(map[string]*contracts.DailyRef)
	}
	key := refKey(symbol, day)
	ref, ok := m.refs[key]
	if !ok {
		ref = &contracts.DailyRef{Symbol: symbol, Date: day}
		m.refs[key] = ref
	}
	return ref
}

type memCache struct {
	mu     sync.Mutex
	values map[string]float64
}

func (m *memCache) GetPrevClose(_ context.Context, day time.Time, symbol string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[refKey(symbol, day)]
	return v, ok
}

func (m *memCache) SetPrevClose(_ context.Context, day time.Time, symbol string, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]float64)
	}
	m.values[refKey(symbol, day)] = value
	return nil
}

type fakeCloses struct {
	mu     sync.Mutex
	closes map[string]float64
	calls  int
}

func (f *fakeCloses) DailyClose(_ context.Context, symbol string, _ time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	v, ok := f.closes[symbol]
	if !ok {
		return 0, errors.New("close unknown")
	}
	return v, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Reconcile: config.ReconcileConfig{
			BatchSize:     10,
			Concurrency:   3,
			MaxCandidates: 500,
		},
	}
}

func newTestJob(tickers *memTickers, refs *memDailyRefs, cache *memCache, closes *fakeCloses) *Job {
	j := NewJob(testConfig(), session.NewClock(), tickers, refs, cache, closes, logger.NewNop())
	j.now = func() time.Time { return eveningNow }
	return j
}

func TestRunPostsCloseAndSeedsNextDay(t *testing.T) {
	tickers := &memTickers{universe: []string{"AAPL"}}
	refs := &memDailyRefs{}
	cache := &memCache{}
	closes := &fakeCloses{closes: map[string]float64{"AAPL": 195.50}}

	j := newTestJob(tickers, refs, cache, closes)

	report, err := j.Run(context.Background(), Params{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.RegularCloseRefreshed)
	assert.Equal(t, 1, report.PreviousCloseRefreshed)
	assert.Equal(t, 0, report.Errors)

	today, err := refs.Get(context.Background(), "AAPL", closedDay)
	require.NoError(t, err)
	assert.Equal(t, 195.50, *today.RegularClose)

	// Model A: tomorrow's baseline is today's close.
	next, err := refs.Get(context.Background(), "AAPL", nextDay)
	require.NoError(t, err)
	assert.Equal(t, 195.50, *next.PreviousClose)

	assert.Equal(t, 195.50, tickers.baseline["AAPL"])
	assert.True(t, tickers.dates["AAPL"].Equal(nextDay))

	v, ok := cache.GetPrevClose(context.Background(), nextDay, "AAPL")
	assert.True(t, ok)
	assert.Equal(t, 195.50, v)
}

// An already-posted close is not refetched; the next-day seed still heals
// if it is missing.
func TestRunSkipsPostedClose(t *testing.T) {
	tickers := &memTickers{universe: []string{"AAPL"}}
	refs := &memDailyRefs{}
	require.NoError(t, refs.UpsertRegularClose(context.Background(), "AAPL", closedDay, 195.50))
	closes := &fakeCloses{closes: map[string]float64{"AAPL": 999.99}}

	j := newTestJob(tickers, refs, &memCache{}, closes)

	report, err := j.Run(context.Background(), Params{})
	require.NoError(t, err)

	assert.Equal(t, 0, report.RegularCloseRefreshed)
	assert.Equal(t, 1, report.PreviousCloseRefreshed)
	assert.Equal(t, 0, closes.calls, "stored close must short-circuit the provider call")

	next, err := refs.Get(context.Background(), "AAPL", nextDay)
	require.NoError(t, err)
	assert.Equal(t, 195.50, *next.PreviousClose)
}

func TestRunForceRefetches(t *testing.T) {
	tickers := &memTickers{universe: []string{"AAPL"}}
	refs := &memDailyRefs{}
	require.NoError(t, refs.UpsertRegularClose(context.Background(), "AAPL", closedDay, 195.50))
	closes := &fakeCloses{closes: map[string]float64{"AAPL": 196.00}}

	j := newTestJob(tickers, refs, &memCache{}, closes)

	report, err := j.Run(context.Background(), Params{Force: true})
	require.NoError(t, err)

	assert.Equal(t, 1, report.RegularCloseRefreshed)
	assert.Equal(t, 1, closes.calls)

	today, _ := refs.Get(context.Background(), "AAPL", closedDay)
	assert.Equal(t, 196.00, *today.RegularClose)
}

// Rerunning with nothing changed converges to zero refreshes.
func TestRunConverges(t *testing.T) {
	tickers := &memTickers{universe: []string{"AAPL"}}
	refs := &memDailyRefs{}
	closes := &fakeCloses{closes: map[string]float64{"AAPL": 195.50}}

	j := newTestJob(tickers, refs, &memCache{}, closes)

	_, err := j.Run(context.Background(), Params{})
	require.NoError(t, err)

	report, err := j.Run(context.Background(), Params{})
	require.NoError(t, err)

	assert.Equal(t, 0, report.RegularCloseRefreshed)
	assert.Equal(t, 0, report.PreviousCloseRefreshed)
}

func TestRunUnknownCloseCounted(t *testing.T) {
	tickers := &memTickers{universe: []string{"AAPL", "MSFT"}}
	refs := &memDailyRefs{}
	closes := &fakeCloses{closes: map[string]float64{"AAPL": 195.50}}

	j := newTestJob(tickers, refs, &memCache{}, closes)

	report, err := j.Run(context.Background(), Params{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.RegularCloseRefreshed)
	assert.Equal(t, 1, report.Errors)

	_, err = refs.Get(context.Background(), "MSFT", closedDay)
	assert.ErrorIs(t, err, store.ErrDailyRefNotFound)
}
