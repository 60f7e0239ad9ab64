package contracts

import "time"

// Session identifies which part of the trading day an instant belongs to.
type Session string

const (
	SessionPre    Session = "pre"
	SessionLive   Session = "live"
	SessionAfter  Session = "after"
	SessionClosed Session = "closed"
)

// Authority returns the cross-session priority of a session's ticks when
// picking the most authoritative current price (live > pre > after).
func (s Session) Authority() int {
	switch s {
	case SessionLive:
		return 3
	case SessionPre:
		return 2
	case SessionAfter:
		return 1
	default:
		return 0
	}
}

// Ticker is the denormalized per-symbol row. The latest_* fields are a fast
// read path; the daily_refs table stays authoritative.
//
// Invariant: LatestPrevCloseDate is always a trading day (the day whose
// baseline LatestPrevClose is), never a plain calendar date.
type Ticker struct {
	Symbol              string     `json:"symbol"`
	Name                string     `json:"name"`
	Sector              string     `json:"sector"`
	Industry            string     `json:"industry"`
	SharesOutstanding   int64      `json:"shares_outstanding"`
	LatestPrevClose     *float64   `json:"latest_prev_close"`
	LatestPrevCloseDate *time.Time `json:"latest_prev_close_date"`
	LastPrice           float64    `json:"last_price"`
	LastChangePct       float64    `json:"last_change_pct"`
	LastMarketCap       int64      `json:"last_market_cap"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// DailyRef is the per-symbol, per-trading-day reference row.
//
// Model A contract: PreviousClose(D) == RegularClose(LastTradingDay(D)) once
// both are known. Correction jobs may only rewrite PreviousClose for the day
// they are reconciling, never the next trading day's row.
type DailyRef struct {
	Symbol        string    `json:"symbol"`
	Date          time.Time `json:"date"` // trading day, not calendar day
	PreviousClose *float64  `json:"previous_close"`
	RegularClose  *float64  `json:"regular_close"`
}

// SessionTick is an ephemeral intraday observation, one logical row per
// symbol x trading day x session. Newer ticks supersede older ones within
// the same session.
type SessionTick struct {
	Symbol    string    `json:"symbol"`
	Session   Session   `json:"session"`
	LastPrice float64   `json:"last_price"`
	ChangePct float64   `json:"change_pct"`
	At        time.Time `json:"at"`
}

// PriceState is what the resolver hands to consumers.
type PriceState struct {
	Symbol        string   `json:"symbol"`
	CurrentPrice  float64  `json:"current_price"`
	PreviousClose *float64 `json:"previous_close"` // nil means unknown, never zero
	PercentChange float64  `json:"percent_change"` // 0 means "no signal" when baseline unknown
}

// StockQuote is the denormalized per-symbol hash kept in the fast-read cache.
type StockQuote struct {
	Price         float64 `json:"price"`
	ChangePct     float64 `json:"changePct"`
	MarketCap     int64   `json:"marketCap"`
	MarketCapDiff int64   `json:"marketCapDiff"`
}
