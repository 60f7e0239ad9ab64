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

// ErrDailyRefNotFound is returned when no row exists for a symbol/day pair.
var ErrDailyRefNotFound = errors.New("daily ref not found")

// DailyRefRepo is the pgx-backed implementation of
// contracts.DailyRefRepository. Rows are keyed on (symbol, trade_date) with
// trade_date always a trading day at midnight UTC.
type DailyRefRepo struct {
	db *database.DB
}

// NewDailyRefRepo creates a daily reference repository.
func NewDailyRefRepo(db *database.DB) *DailyRefRepo {
	return &DailyRefRepo{db: db}
}

// Get loads the reference row for a symbol on a trading day.
func (r *DailyRefRepo) Get(ctx context.Context, symbol string, day time.Time) (*contracts.DailyRef, error) {
	query := `
		SELECT symbol, trade_date, previous_close, regular_close
		FROM daily_refs
		WHERE symbol = $1 AND trade_date = $2`

	var ref contracts.DailyRef
	err := r.db.Pool.QueryRow(ctx, query, symbol, day).Scan(
		&ref.Symbol, &ref.Date, &ref.PreviousClose, &ref.RegularClose,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDailyRefNotFound
		}
		return nil, fmt.Errorf("get daily ref %s %s: %w", symbol, day.Format("2006-01-02"), err)
	}

	return &ref, nil
}

// UpsertRegularClose records the authoritative regular-session close for a
// trading day. It never touches previous_close.
func (r *DailyRefRepo) UpsertRegularClose(ctx context.Context, symbol string, day time.Time, close float64) error {
	query := `
		INSERT INTO daily_refs (symbol, trade_date, regular_close)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			regular_close = EXCLUDED.regular_close`

	if _, err := r.db.Pool.Exec(ctx, query, symbol, day, close); err != nil {
		return fmt.Errorf("upsert regular close %s %s: %w", symbol, day.Format("2006-01-02"), err)
	}

	return nil
}

// PrepareNextDayPrevClose seeds previous_close on the next trading day's row.
// regular_close on that row stays untouched.
func (r *DailyRefRepo) PrepareNextDayPrevClose(ctx context.Context, symbol string, nextDay time.Time, prevClose float64) error {
	query := `
		INSERT INTO daily_refs (symbol, trade_date, previous_close)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			previous_close = EXCLUDED.previous_close`

	if _, err := r.db.Pool.Exec(ctx, query, symbol, nextDay, prevClose); err != nil {
		return fmt.Errorf("prepare prev close %s %s: %w", symbol, nextDay.Format("2006-01-02"), err)
	}

	return nil
}

// CorrectPreviousClose rewrites previous_close for exactly the day passed in.
// Callers hand it the trading day they are reconciling; there is no variant
// that can reach any other row.
func (r *DailyRefRepo) CorrectPreviousClose(ctx context.Context, symbol string, day time.Time, prevClose float64) error {
	query := `
		INSERT INTO daily_refs (symbol, trade_date, previous_close)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, trade_date) DO UPDATE SET
			previous_close = EXCLUDED.previous_close`

	if _, err := r.db.Pool.Exec(ctx, query, symbol, day, prevClose); err != nil {
		return fmt.Errorf("correct prev close %s %s: %w", symbol, day.Format("2006-01-02"), err)
	}

	return nil
}

// MissingRegularClose lists symbols that have a row for the day but no
// regular close yet. The close-refresh job drains this list.
func (r *DailyRefRepo) MissingRegularClose(ctx context.Context, day time.Time, limit int) ([]string, error) {
	query := `
		SELECT symbol
		FROM daily_refs
		WHERE trade_date = $1 AND regular_close IS NULL
		ORDER BY symbol
		LIMIT $2`

	rows, err := r.db.Pool.Query(ctx, query, day, limit)
	if err != nil {
		return nil, fmt.Errorf("list missing regular close: %w", err)
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
