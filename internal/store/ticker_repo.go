package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hwahn/pricepulse/internal/contracts"
	"github.com/hwahn/pricepulse/pkg/database"
)

// ErrTickerNotFound is returned when a symbol has no tickers row.
var ErrTickerNotFound = errors.New("ticker not found")

// TickerRepo is the pgx-backed implementation of contracts.TickerRepository.
type TickerRepo struct {
	db *database.DB
}

// NewTickerRepo creates a ticker repository.
func NewTickerRepo(db *database.DB) *TickerRepo {
	return &TickerRepo{db: db}
}

const tickerColumns = `
	symbol, name, sector, industry, shares_outstanding,
	latest_prev_close, latest_prev_close_date,
	last_price, last_change_pct, last_market_cap, updated_at`

// GetBySymbol loads one denormalized row.
func (r *TickerRepo) GetBySymbol(ctx context.Context, symbol string) (*contracts.Ticker, error) {
	query := `SELECT ` + tickerColumns + ` FROM tickers WHERE symbol = $1`

	t, err := scanTicker(r.db.Pool.QueryRow(ctx, query, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTickerNotFound
		}
		return nil, fmt.Errorf("get ticker %s: %w", symbol, err)
	}

	return t, nil
}

// ListReconcileCandidates returns tickers worth re-verifying: anything with
// a live last price, plus rows whose baseline is missing or non-positive
// (the broken rows are exactly the ones a verification pass must heal).
func (r *TickerRepo) ListReconcileCandidates(ctx context.Context, limit int) ([]*contracts.Ticker, error) {
	query := `
		SELECT ` + tickerColumns + `
		FROM tickers
		WHERE last_price > 0
		   OR latest_prev_close IS NULL
		   OR latest_prev_close <= 0
		ORDER BY last_market_cap DESC, symbol
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list reconcile candidates: %w", err)
	}
	defer rows.Close()

	var tickers []*contracts.Ticker
	for rows.Next() {
		t, err := scanTicker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reconcile candidate: %w", err)
		}
		tickers = append(tickers, t)
	}

	return tickers, rows.Err()
}

// ListByMarketCap returns symbols ordered by descending market cap. This is
// the universe ordering the tier scheduler keys off.
func (r *TickerRepo) ListByMarketCap(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT symbol
		FROM tickers
		ORDER BY last_market_cap DESC, symbol
		LIMIT $1`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list by market cap: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	return symbols, rows.Err()
}

// UpdateQuote writes the fast-read price fields for a symbol.
func (r *TickerRepo) UpdateQuote(ctx context.Context, symbol string, price, changePct float64, marketCap int64) error {
	query := `
		UPDATE tickers
		SET last_price = $2, last_change_pct = $3, last_market_cap = $4, updated_at = NOW()
		WHERE symbol = $1`

	tag, err := r.db.Pool.Exec(ctx, query, symbol, price, changePct, marketCap)
	if err != nil {
		return fmt.Errorf("update quote %s: %w", symbol, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTickerNotFound
	}

	return nil
}

// UpdatePrevClose writes the denormalized baseline and the trading day it
// belongs to. Both move together so readers can reject stale dates.
func (r *TickerRepo) UpdatePrevClose(ctx context.Context, symbol string, prevClose float64, prevCloseDate time.Time) error {
	query := `
		UPDATE tickers
		SET latest_prev_close = $2, latest_prev_close_date = $3, updated_at = NOW()
		WHERE symbol = $1`

	tag, err := r.db.Pool.Exec(ctx, query, symbol, prevClose, prevCloseDate)
	if err != nil {
		return fmt.Errorf("update prev close %s: %w", symbol, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTickerNotFound
	}

	return nil
}

// Upsert inserts or refreshes the static half of a ticker row.
func (r *TickerRepo) Upsert(ctx context.Context, t *contracts.Ticker) error {
	query := `
		INSERT INTO tickers (symbol, name, sector, industry, shares_outstanding, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			shares_outstanding = EXCLUDED.shares_outstanding,
			updated_at = NOW()`

	if _, err := r.db.Pool.Exec(ctx, query, t.Symbol, t.Name, t.Sector, t.Industry, t.SharesOutstanding); err != nil {
		return fmt.Errorf("upsert ticker %s: %w", t.Symbol, err)
	}

	return nil
}

// UpdateReference refreshes the provider-sourced static fields.
func (r *TickerRepo) UpdateReference(ctx context.Context, symbol, name string, sharesOutstanding int64) error {
	query := `
		UPDATE tickers
		SET name = $2, shares_outstanding = $3, updated_at = NOW()
		WHERE symbol = $1`

	tag, err := r.db.Pool.Exec(ctx, query, symbol, name, sharesOutstanding)
	if err != nil {
		return fmt.Errorf("update reference %s: %w", symbol, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTickerNotFound
	}

	return nil
}

func scanTicker(row pgx.Row) (*contracts.Ticker, error) {
	var t contracts.Ticker
	err := row.Scan(
		&t.Symbol, &t.Name, &t.Sector, &t.Industry, &t.SharesOutstanding,
		&t.LatestPrevClose, &t.LatestPrevCloseDate,
		&t.LastPrice, &t.LastChangePct, &t.LastMarketCap, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
