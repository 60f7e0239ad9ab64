package store

import (
	"sync"
	"time"

	"github.com/hwahn/pricepulse/internal/contracts"
)

// SessionTickStore keeps intraday observations in process memory, one slot
// per symbol x session, scoped to a single trading day. Best() picks by
// session authority first (live > pre > after), then recency within the
// winning session.
type SessionTickStore struct {
	mu    sync.RWMutex
	day   time.Time
	ticks map[string]map[contracts.Session]*contracts.SessionTick
}

// NewSessionTickStore creates an empty store for the given trading day.
func NewSessionTickStore(day time.Time) *SessionTickStore {
	return &SessionTickStore{
		day:   day,
		ticks: make(map[string]map[contracts.Session]*contracts.SessionTick),
	}
}

// Day returns the trading day this store is scoped to.
func (s *SessionTickStore) Day() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.day
}

// Reset clears all ticks and rebinds the store to a new trading day.
func (s *SessionTickStore) Reset(day time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.day = day
	s.ticks = make(map[string]map[contracts.Session]*contracts.SessionTick)
}

// Record stores a tick. Within the same symbol and session, an older tick
// never overwrites a newer one.
func (s *SessionTickStore) Record(tick contracts.SessionTick) {
	if tick.Session == contracts.SessionClosed {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bySession, ok := s.ticks[tick.Symbol]
	if !ok {
		bySession = make(map[contracts.Session]*contracts.SessionTick, 3)
		s.ticks[tick.Symbol] = bySession
	}

	if prev, ok := bySession[tick.Session]; ok && prev.At.After(tick.At) {
		return
	}

	t := tick
	bySession[tick.Session] = &t
}

// Best returns the most authoritative tick for a symbol: the tick from the
// highest-authority session that has one.
func (s *SessionTickStore) Best(symbol string) (*contracts.SessionTick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySession, ok := s.ticks[symbol]
	if !ok {
		return nil, false
	}

	var best *contracts.SessionTick
	for _, tick := range bySession {
		if best == nil || tick.Session.Authority() > best.Session.Authority() {
			best = tick
		}
	}
	if best == nil {
		return nil, false
	}

	t := *best
	return &t, true
}

// Len reports how many symbols currently hold at least one tick.
func (s *SessionTickStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ticks)
}
