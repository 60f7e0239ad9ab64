package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/pkg/logger"
	"github.com/hwahn/pricepulse/pkg/redis"
)

// prevCloseTTL keeps baseline keys alive across one trading day plus slack
// for late reconciliation runs.
const prevCloseTTL = 48 * time.Hour

// QuoteCache is the Redis fast-read layer: per-day prior-close keys and the
// per-symbol quote hash the API serves from. Every read degrades to a miss
// when Redis is down or disabled; writes report errors but callers treat
// them as non-fatal.
type QuoteCache struct {
	client *redis.Client
	logger *logger.Logger
}

// NewQuoteCache creates the cache layer.
func NewQuoteCache(client *redis.Client, log *logger.Logger) *QuoteCache {
	return &QuoteCache{client: client, logger: log}
}

func prevCloseKey(day time.Time, symbol string) string {
	return fmt.Sprintf("prevclose:%s:%s", day.Format("2006-01-02"), symbol)
}

func stockKey(symbol string) string {
	return fmt.Sprintf("stock:%s", symbol)
}

// GetPrevClose reads the cached baseline for a symbol on a trading day.
// A missing key, a disabled client, and a non-positive stored value all
// report a miss.
func (c *QuoteCache) GetPrevClose(ctx context.Context, day time.Time, symbol string) (float64, bool) {
	if !c.client.Enabled() {
		return 0, false
	}

	raw, err := c.client.Redis().Get(ctx, prevCloseKey(day, symbol)).Result()
	if err != nil {
		return 0, false
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, false
	}

	return v, true
}

// SetPrevClose writes the baseline for a symbol on a trading day.
func (c *QuoteCache) SetPrevClose(ctx context.Context, day time.Time, symbol string, value float64) error {
	if !c.client.Enabled() {
		return nil
	}
	if value <= 0 {
		return fmt.Errorf("set prev close %s: non-positive value %f", symbol, value)
	}

	key := prevCloseKey(day, symbol)
	if err := c.client.Redis().Set(ctx, key, strconv.FormatFloat(value, 'f', -1, 64), prevCloseTTL).Err(); err != nil {
		return fmt.Errorf("set prev close %s: %w", symbol, err)
	}

	return nil
}

// SetQuote writes the denormalized per-symbol hash.
func (c *QuoteCache) SetQuote(ctx context.Context, symbol string, q contracts.StockQuote) error {
	if !c.client.Enabled() {
		return nil
	}

	fields := map[string]interface{}{
		"price":         strconv.FormatFloat(q.Price, 'f', -1, 64),
		"changePct":     strconv.FormatFloat(q.ChangePct, 'f', -1, 64),
		"marketCap":     strconv.FormatInt(q.MarketCap, 10),
		"marketCapDiff": strconv.FormatInt(q.MarketCapDiff, 10),
	}

	if err := c.client.Redis().HSet(ctx, stockKey(symbol), fields).Err(); err != nil {
		return fmt.Errorf("set quote %s: %w", symbol, err)
	}

	return nil
}

// GetQuote reads the per-symbol hash. An empty hash is a miss.
func (c *QuoteCache) GetQuote(ctx context.Context, symbol string) (contracts.StockQuote, bool) {
	var q contracts.StockQuote
	if !c.client.Enabled() {
		return q, false
	}

	fields, err := c.client.Redis().HGetAll(ctx, stockKey(symbol)).Result()
	if err != nil || len(fields) == 0 {
		return q, false
	}

	q.Price, _ = strconv.ParseFloat(fields["price"], 64)
	q.ChangePct, _ = strconv.ParseFloat(fields["changePct"], 64)
	q.MarketCap, _ = strconv.ParseInt(fields["marketCap"], 10, 64)
	q.MarketCapDiff, _ = strconv.ParseInt(fields["marketCapDiff"], 10, 64)

	return q, true
}

// GetQuotes reads many per-symbol hashes in one pipeline round trip.
// Symbols with no hash are absent from the result.
func (c *QuoteCache) GetQuotes(ctx context.Context, symbols []string) (map[string]contracts.StockQuote, error) {
	out := make(map[string]contracts.StockQuote, len(symbols))
	if !c.client.Enabled() || len(symbols) == 0 {
		return out, nil
	}

	pipe := c.client.Redis().Pipeline()
	cmds := make(map[string]*goredis.MapStringStringCmd, len(symbols))
	for _, sym := range symbols {
		cmds[sym] = pipe.HGetAll(ctx, stockKey(sym))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("pipeline quotes: %w", err)
	}

	for sym, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}

		var q contracts.StockQuote
		q.Price, _ = strconv.ParseFloat(fields["price"], 64)
		q.ChangePct, _ = strconv.ParseFloat(fields["changePct"], 64)
		q.MarketCap, _ = strconv.ParseInt(fields["marketCap"], 10, 64)
		q.MarketCapDiff, _ = strconv.ParseInt(fields["marketCapDiff"], 10, 64)
		out[sym] = q
	}

	return out, nil
}
