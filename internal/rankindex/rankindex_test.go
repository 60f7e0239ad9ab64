package rankindex

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/pkg/config"
	"github.com/hwahn/pricepulse/pkg/logger"
	"github.com/hwahn/pricepulse/pkg/redis"
)

func TestCursorRoundTrip(t *testing.T) {
	raw := encodeCursor(123.45, "AAPL")
	assert.Equal(t, "123.45:AAPL", raw)

	cur, err := parseCursor(raw)
	require.NoError(t, err)
	assert.Equal(t, 123.45, cur.score)
	assert.Equal(t, "AAPL", cur.symbol)
	assert.True(t, cur.hasSymbol)
}

func TestParseCursor(t *testing.T) {
	cur, err := parseCursor("")
	require.NoError(t, err)
	assert.Nil(t, cur)

	cur, err = parseCursor("-42.5")
	require.NoError(t, err)
	assert.Equal(t, -42.5, cur.score)
	assert.False(t, cur.hasSymbol)

	_, err = parseCursor("notanumber:AAPL")
	assert.Error(t, err)
}

func TestAfterCursor(t *testing.T) {
	cur := &cursor{score: 100, symbol: "MMM", hasSymbol: true}

	assert.True(t, afterCursor(Entry{Symbol: "AAA", Score: 101}, cur))
	assert.False(t, afterCursor(Entry{Symbol: "ZZZ", Score: 99}, cur))

	// Score ties resolve on symbol, excluding the cursor row itself.
	assert.True(t, afterCursor(Entry{Symbol: "NNN", Score: 100}, cur))
	assert.False(t, afterCursor(Entry{Symbol: "MMM", Score: 100}, cur))
	assert.False(t, afterCursor(Entry{Symbol: "AAA", Score: 100}, cur))

	// A score-only cursor skips its whole score band.
	scoreOnly := &cursor{score: 100}
	assert.False(t, afterCursor(Entry{Symbol: "AAA", Score: 100}, scoreOnly))
	assert.True(t, afterCursor(Entry{Symbol: "AAA", Score: 100.01}, scoreOnly))

	assert.True(t, afterCursor(Entry{Symbol: "AAA", Score: -1000}, nil))
}

func TestRankKey(t *testing.T) {
	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	key := rankKey(MetricMarketCap, day, contracts.SessionLive, DirDesc)

	assert.Equal(t, "rank:mcap:2026-08-27:live:desc", key)
	assert.Equal(t, "meta:rank:mcap:2026-08-27:live:desc:v", versionKey(key))
}

func TestETag(t *testing.T) {
	entries := []Entry{{Symbol: "AAPL", Score: 1}, {Symbol: "MSFT", Score: 2}}

	a := etag(7, entries)
	assert.Equal(t, `"v7-AAPL-MSFT-2"`, a)

	// A version bump alone must change the tag.
	assert.NotEqual(t, a, etag(8, entries))
	// So must a different page shape.
	assert.NotEqual(t, a, etag(7, entries[:1]))
	assert.Equal(t, `"v0---0"`, etag(0, nil))
}

// Exercises a live Redis; run with -short to skip.
func TestStorePageIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client, err := redis.New(&config.Config{
		Redis: config.RedisConfig{Host: "localhost", Port: "6379", Enabled: true},
	})
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer client.Close()

	s := NewStore(client, logger.NewNop())
	ctx := context.Background()
	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

	entries := []Entry{
		{Symbol: "AAPL", Score: 3500},
		{Symbol: "MSFT", Score: 3400},
		{Symbol: "NVDA", Score: 3300},
		{Symbol: "AMZN", Score: 2100},
		{Symbol: "AMD", Score: 280},
	}
	require.NoError(t, s.Update(ctx, MetricMarketCap, day, contracts.SessionLive, entries))

	// Descending scan: stored scores are negated, so largest cap first.
	page, err := s.Page(ctx, Query{
		Metric: MetricMarketCap, Day: day, Session: contracts.SessionLive,
		Dir: DirDesc, Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "AAPL", page.Entries[0].Symbol)
	assert.Equal(t, "MSFT", page.Entries[1].Symbol)
	require.NotEmpty(t, page.NextCursor)
	firstTag := page.ETag

	// Second page picks up after the cursor without repeating rows.
	page, err = s.Page(ctx, Query{
		Metric: MetricMarketCap, Day: day, Session: contracts.SessionLive,
		Dir: DirDesc, Limit: 2, Cursor: page.NextCursor,
	})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "NVDA", page.Entries[0].Symbol)
	assert.Equal(t, "AMZN", page.Entries[1].Symbol)
	assert.NotEqual(t, firstTag, page.ETag)

	// Prefix filter applies after the cursor bound.
	page, err = s.Page(ctx, Query{
		Metric: MetricMarketCap, Day: day, Session: contracts.SessionLive,
		Dir: DirDesc, Limit: 10, Prefix: "AM",
	})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "AMZN", page.Entries[0].Symbol)
	assert.Equal(t, "AMD", page.Entries[1].Symbol)
	assert.Empty(t, page.NextCursor)

	// Any write advances the version and therefore the ETag.
	before := page.ETag
	require.NoError(t, s.Update(ctx, MetricMarketCap, day, contracts.SessionLive, entries[:1]))
	page, err = s.Page(ctx, Query{
		Metric: MetricMarketCap, Day: day, Session: contracts.SessionLive,
		Dir: DirDesc, Limit: 10, Prefix: "AM",
	})
	require.NoError(t, err)
	assert.NotEqual(t, before, page.ETag)

	// Removal drops the symbol from both directions.
	require.NoError(t, s.Remove(ctx, MetricMarketCap, day, contracts.SessionLive, []string{"AMD"}))
	for _, dir := range []Direction{DirAsc, DirDesc} {
		page, err = s.Page(ctx, Query{
			Metric: MetricMarketCap, Day: day, Session: contracts.SessionLive,
			Dir: dir, Limit: 10, Prefix: "AM",
		})
		require.NoError(t, err)
		require.Len(t, page.Entries, 1)
		assert.Equal(t, "AMZN", page.Entries[0].Symbol)
	}
}
