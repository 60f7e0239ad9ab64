package tiers

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func universe(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("SYM%03d", i)
	}
	return out
}

func TestTierBoundaries(t *testing.T) {
	now := time.Date(2026, 8, 27, 13, 0, 0, 0, time.UTC)
	s := NewScheduler(universe(360), now)

	premium := s.TierTickers(TierPremium)
	require.Len(t, premium, 50)
	assert.Equal(t, "SYM000", premium[0])
	assert.Equal(t, "SYM049", premium[49])

	assert.Len(t, s.TierTickers(TierStandard), 100)
	assert.Len(t, s.TierTickers(TierExtended), 150)
	assert.Len(t, s.TierTickers(TierExtendedPlus), 60)

	// Rank 204 sits in the extended band with a 5 minute cadence.
	a, ok := s.TickerTier("SYM204")
	require.True(t, ok)
	assert.Equal(t, TierExtended, a.Tier)
	assert.Equal(t, 5, a.CadenceMinutes)
}

// Every symbol lands in exactly one tier and tier sizes sum to the
// universe size.
func TestTierPartitionExhaustive(t *testing.T) {
	now := time.Date(2026, 8, 27, 13, 0, 0, 0, time.UTC)
	s := NewScheduler(universe(360), now)

	seen := make(map[string]Tier)
	total := 0
	for _, tier := range []Tier{TierPremium, TierStandard, TierExtended, TierExtendedPlus} {
		for _, sym := range s.TierTickers(tier) {
			prev, dup := seen[sym]
			require.Falsef(t, dup, "%s assigned to both %s and %s", sym, prev, tier)
			seen[sym] = tier
		}
		total += len(s.TierTickers(tier))
	}

	assert.Equal(t, 360, total)
	assert.Equal(t, 360, s.Size())
}

func TestShortUniverseTruncatesBands(t *testing.T) {
	now := time.Date(2026, 8, 27, 13, 0, 0, 0, time.UTC)
	s := NewScheduler(universe(120), now)

	assert.Len(t, s.TierTickers(TierPremium), 50)
	assert.Len(t, s.TierTickers(TierStandard), 70)
	assert.Empty(t, s.TierTickers(TierExtended))
	assert.Empty(t, s.TierTickers(TierExtendedPlus))
	assert.Equal(t, 120, s.Size())
}

func TestStaggeredInitialDispatch(t *testing.T) {
	now := time.Date(2026, 8, 27, 13, 0, 0, 0, time.UTC)
	s := NewScheduler(universe(360), now)

	// At construction time only the first tier is due.
	due := s.TickersForUpdate(now)
	assert.Len(t, due, 50)

	// One minute in, premium is due again and the later tiers' staggered
	// initial offsets have all elapsed.
	due = s.TickersForUpdate(now.Add(time.Minute))
	assert.Len(t, due, 360-50+50)
}

func TestCadenceRescheduling(t *testing.T) {
	now := time.Date(2026, 8, 27, 13, 0, 0, 0, time.UTC)
	s := NewScheduler(universe(360), now)

	s.TickersForUpdate(now)
	s.TickersForUpdate(now.Add(time.Minute))

	// 30s later nothing is due.
	assert.Empty(t, s.TickersForUpdate(now.Add(90*time.Second)))

	// At +2m premium's 1 minute cadence has elapsed again; standard's 3
	// minute cadence has not.
	due := s.TickersForUpdate(now.Add(2 * time.Minute))
	assert.Len(t, due, 50)

	// At +4m both premium and standard are due.
	due = s.TickersForUpdate(now.Add(4 * time.Minute))
	assert.Len(t, due, 150)
}

// Universe changes recompute membership wholesale; a symbol whose rank
// moved across a band boundary changes tier.
func TestSetUniverseRecomputes(t *testing.T) {
	now := time.Date(2026, 8, 27, 13, 0, 0, 0, time.UTC)
	s := NewScheduler(universe(360), now)

	a, _ := s.TickerTier("SYM060")
	assert.Equal(t, TierStandard, a.Tier)

	// Promote SYM060 to the front of the universe.
	u := universe(360)
	u[0], u[60] = u[60], u[0]
	s.SetUniverse(u, now)

	a, ok := s.TickerTier("SYM060")
	require.True(t, ok)
	assert.Equal(t, TierPremium, a.Tier)

	a, _ = s.TickerTier("SYM000")
	assert.Equal(t, TierStandard, a.Tier)
	assert.Equal(t, 360, s.Size())
}

func TestUnknownSymbol(t *testing.T) {
	s := NewScheduler(universe(10), time.Now())

	_, ok := s.TickerTier("NOPE")
	assert.False(t, ok)
}
