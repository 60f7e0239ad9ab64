package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/pkg/config"
	"github.com/hwahn/pricepulse/pkg/httputil"
	"github.com/hwahn/pricepulse/pkg/logger"
	"github.com/hwahn/pricepulse/pkg/redis"
)

// Client talks to the external market-data provider.
// SSOT: provider endpoints are called from this file only.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *httputil.Client
	refCache   *redis.Cache
	logger     *logger.Logger
}

// NewClient creates a provider client.
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		baseURL:    cfg.Provider.BaseURL,
		apiKey:     cfg.Provider.APIKey,
		httpClient: httpClient,
		logger:     log,
	}
}

// WithReferenceCache caches company reference lookups. Reference data moves
// slowly, so the universe rebuild should not refetch it every day.
func (c *Client) WithReferenceCache(cache *redis.Cache) *Client {
	c.refCache = cache
	return c
}

// Snapshot fetches the provider's current view of a symbol.
func (c *Client) Snapshot(ctx context.Context, symbol string) (*contracts.Snapshot, error) {
	endpoint := fmt.Sprintf("%s/v2/snapshot/locale/us/markets/stocks/tickers/%s?apiKey=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(c.apiKey))

	var resp snapshotResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", symbol, err)
	}

	if resp.Status != "OK" {
		return nil, fmt.Errorf("snapshot %s: provider status %q", symbol, resp.Status)
	}

	snap := &contracts.Snapshot{
		Symbol:       symbol,
		LastPrice:    resp.Ticker.LastTrade.Price,
		MinutePrice:  resp.Ticker.Minute.Close,
		DayClose:     resp.Ticker.Day.Close,
		PrevDayClose: resp.Ticker.PrevDay.Close,
		ChangePct:    resp.TodaysChangePerc,
		UpdatedAt:    time.Now(),
	}
	if resp.Ticker.LastTrade.At > 0 {
		snap.UpdatedAt = time.Unix(0, resp.Ticker.LastTrade.At)
	}

	// Minute bar beats last trade during thin sessions where the last trade
	// may be hours old
	if snap.LastPrice == 0 {
		snap.LastPrice = resp.Ticker.Minute.Close
	}

	return snap, nil
}

// DailyClose fetches the regular-session close for a symbol on a specific
// trading day. A zero close from the provider is "unknown" and is returned
// as an error so callers never mistake it for a price.
func (c *Client) DailyClose(ctx context.Context, symbol string, day time.Time) (float64, error) {
	endpoint := fmt.Sprintf("%s/v1/open-close/%s/%s?adjusted=true&apiKey=%s",
		c.baseURL, url.PathEscape(symbol), day.Format("2006-01-02"), url.QueryEscape(c.apiKey))

	var resp dailyOpenCloseResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return 0, fmt.Errorf("daily close %s %s: %w", symbol, day.Format("2006-01-02"), err)
	}

	if resp.Status != "OK" {
		return 0, fmt.Errorf("daily close %s: provider status %q", symbol, resp.Status)
	}
	if resp.Close <= 0 {
		return 0, fmt.Errorf("daily close %s %s: close unknown", symbol, day.Format("2006-01-02"))
	}

	return resp.Close, nil
}

// CompanyReference fetches static metadata for a symbol.
func (c *Client) CompanyReference(ctx context.Context, symbol string) (*contracts.CompanyReference, error) {
	cacheKey := "ref:" + symbol

	if c.refCache != nil {
		var cached contracts.CompanyReference
		if found, err := c.refCache.Get(ctx, cacheKey, &cached); err == nil && found {
			return &cached, nil
		}
	}

	endpoint := fmt.Sprintf("%s/v3/reference/tickers/%s?apiKey=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(c.apiKey))

	var resp referenceResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("company reference %s: %w", symbol, err)
	}

	shares := resp.Results.WeightedShares
	if shares == 0 {
		shares = resp.Results.ShareClassShares
	}

	ref := &contracts.CompanyReference{
		Symbol:            symbol,
		Name:              resp.Results.Name,
		SharesOutstanding: int64(shares),
	}

	if c.refCache != nil {
		if err := c.refCache.Set(ctx, cacheKey, ref, redis.TTLDaily); err != nil {
			c.logger.WithError(err).WithField("symbol", symbol).Warn("Failed to cache company reference")
		}
	}

	return ref, nil
}

// getJSON performs a GET and decodes the body.
func (c *Client) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	resp, err := c.httpClient.Get(ctx, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
