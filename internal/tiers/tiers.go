package tiers

import (
	"sync"
	"time"
)

// Tier names the refresh priority bands.
type Tier string

const (
	TierPremium      Tier = "premium"
	TierStandard     Tier = "standard"
	TierExtended     Tier = "extended"
	TierExtendedPlus Tier = "extendedPlus"
)

// tierSpec is one positional band over the market-cap-ranked universe.
type tierSpec struct {
	tier    Tier
	size    int
	cadence time.Duration
}

// Band boundaries are positional: the first 50 symbols are premium, the
// next 100 standard, and so on. Symbols past the last band are not tracked.
var tierSpecs = []tierSpec{
	{TierPremium, 50, 1 * time.Minute},
	{TierStandard, 100, 3 * time.Minute},
	{TierExtended, 150, 5 * time.Minute},
	{TierExtendedPlus, 60, 15 * time.Minute},
}

// Assignment is a symbol's derived tier membership.
type Assignment struct {
	Tier           Tier `json:"tier"`
	CadenceMinutes int  `json:"frequency"`
}

// tierState is the per-tier slot of the dispatch state machine: idle until
// nextUpdate, then dispatched and rescheduled now + cadence.
type tierState struct {
	spec       tierSpec
	symbols    []string
	nextUpdate time.Time
}

// Scheduler partitions a market-cap-ranked universe into cadence tiers and
// yields the symbols due for refresh at each tick.
//
// Membership is recomputed wholesale on every universe change; ranks shift,
// so incremental patching would drift.
type Scheduler struct {
	mu     sync.Mutex
	states []*tierState
	byName map[string]Assignment
}

// NewScheduler builds a scheduler over the given ranked universe. Initial
// nextUpdate values are staggered by a fraction of a minute per tier index
// so tiers do not all come due on the first tick together.
func NewScheduler(universe []string, now time.Time) *Scheduler {
	s := &Scheduler{}
	s.rebuild(universe, now)
	return s
}

// SetUniverse replaces the ranked universe and recomputes all memberships.
func (s *Scheduler) SetUniverse(universe []string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebuild(universe, now)
}

func (s *Scheduler) rebuild(universe []string, now time.Time) {
	s.states = make([]*tierState, 0, len(tierSpecs))
	s.byName = make(map[string]Assignment, len(universe))

	offset := 0
	for i, spec := range tierSpecs {
		end := offset + spec.size
		if end > len(universe) {
			end = len(universe)
		}
		var symbols []string
		if offset < end {
			symbols = append([]string(nil), universe[offset:end]...)
		}

		state := &tierState{
			spec:       spec,
			symbols:    symbols,
			nextUpdate: now.Add(time.Duration(i) * 15 * time.Second),
		}
		s.states = append(s.states, state)

		for _, sym := range symbols {
			s.byName[sym] = Assignment{
				Tier:           spec.tier,
				CadenceMinutes: int(spec.cadence / time.Minute),
			}
		}

		offset = end
		if offset >= len(universe) {
			break
		}
	}
}

// TickersForUpdate returns the symbols of every tier due at now and
// reschedules those tiers to now + cadence. This is the sole mutating
// entry point of the dispatch state machine.
func (s *Scheduler) TickersForUpdate(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []string
	for _, state := range s.states {
		if now.Before(state.nextUpdate) {
			continue
		}
		due = append(due, state.symbols...)
		state.nextUpdate = now.Add(state.spec.cadence)
	}

	return due
}

// TierTickers returns the symbols currently assigned to a tier, in rank
// order.
func (s *Scheduler) TierTickers(tier Tier) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, state := range s.states {
		if state.spec.tier == tier {
			return append([]string(nil), state.symbols...)
		}
	}
	return nil
}

// TickerTier looks up a symbol's tier assignment.
func (s *Scheduler) TickerTier(symbol string) (Assignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byName[symbol]
	return a, ok
}

// Size reports how many symbols are currently assigned to any tier.
func (s *Scheduler) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byName)
}
