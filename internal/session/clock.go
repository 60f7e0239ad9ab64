package session

import (
	"time"

	"github.com/hwahn/pricepulse/internal/contracts"
)

// Session boundaries in minutes from midnight, exchange-local time.
const (
	preOpenMinute   = 4 * 60          // 04:00
	regularMinute   = 9*60 + 30       // 09:30
	closeMinute     = 16 * 60         // 16:00
	afterHourMinute = 20 * 60         // 20:00
)

// Clock maps wall-clock instants to trading sessions and trading days.
// It is a pure function of time plus the exchange calendar; it holds no
// mutable state and is safe for concurrent use.
type Clock struct {
	loc *time.Location
}

// NewClock creates a Clock for the primary US equity exchanges.
func NewClock() *Clock {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// tzdata is compiled in on our deploy targets; a missing zone is a
		// build problem, not a runtime condition.
		panic("session: load America/New_York: " + err.Error())
	}
	return &Clock{loc: loc}
}

// Day normalizes an instant to its exchange-local calendar date, represented
// as midnight UTC. All trading-day arithmetic and storage use this form.
func (c *Clock) Day(t time.Time) time.Time {
	y, m, d := t.In(c.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsTradingDay reports whether the exchange is open on the given date.
func (c *Clock) IsTradingDay(d time.Time) bool {
	wd := d.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !isMarketHoliday(d)
}

// Session returns which part of the trading day t falls in. Any instant on
// a weekend or holiday is closed.
func (c *Clock) Session(t time.Time) contracts.Session {
	local := t.In(c.loc)
	if !c.IsTradingDay(c.Day(t)) {
		return contracts.SessionClosed
	}

	minute := local.Hour()*60 + local.Minute()
	switch {
	case minute >= preOpenMinute && minute < regularMinute:
		return contracts.SessionPre
	case minute >= regularMinute && minute < closeMinute:
		return contracts.SessionLive
	case minute >= closeMinute && minute < afterHourMinute:
		return contracts.SessionAfter
	default:
		return contracts.SessionClosed
	}
}

// TradingDayAt returns the most recent date the exchange was open at or
// before t. A trading date queried before the open still resolves to itself;
// this is the day whose close prices the caller is talking about. Use
// PrevCloseDay for the percent-change baseline instead.
func (c *Clock) TradingDayAt(t time.Time) time.Time {
	d := c.Day(t)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// PrevCloseDay returns the trading day whose regular close is the
// percent-change baseline for instant t. For any instant on trading day D
// (including pre-market) this is the trading day before D.
func (c *Clock) PrevCloseDay(t time.Time) time.Time {
	return c.LastTradingDay(c.TradingDayAt(t))
}

// LastTradingDay returns the last trading day strictly before d.
func (c *Clock) LastTradingDay(d time.Time) time.Time {
	prev := d.AddDate(0, 0, -1)
	for !c.IsTradingDay(prev) {
		prev = prev.AddDate(0, 0, -1)
	}
	return prev
}

// NextTradingDay returns the first trading day strictly after d. It is the
// exact inverse of LastTradingDay over trading days:
// NextTradingDay(LastTradingDay(d)) == d whenever d is a trading day.
func (c *Clock) NextTradingDay(d time.Time) time.Time {
	next := d.AddDate(0, 0, 1)
	for !c.IsTradingDay(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Snapshot bundles the session and trading day for an instant.
type Snapshot struct {
	Session    contracts.Session
	TradingDay time.Time
}

// Now evaluates the clock at an instant.
func (c *Clock) Now(t time.Time) Snapshot {
	return Snapshot{
		Session:    c.Session(t),
		TradingDay: c.TradingDayAt(t),
	}
}
