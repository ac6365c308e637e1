package pta

import (
	"slices"
	"sort"

	"github.com/rewired-gh/pdtta/internal/logger"
)

// criticalShare is the fraction of an "almost surely" count below which a
// critical-area transition is attributed to the opposite neighbour.
const criticalShare = 0.1

// Merge folds b into a. Both arguments are resolved to their live
// representatives first; merging a state with itself is a no-op.
//
// Incoming transitions of b are re-pointed to a. Outgoing transitions of b
// are re-owned by a, except where a already leaves on the same symbol: then
// the counts are summed and the two targets are merged as well. The cascade
// runs until no pair is pending; it terminates because every effective merge
// reduces the number of live states.
func (p *PTA) Merge(a, b *State) {
	p.pending = append(p.pending, statePair{a, b})
	p.drain()
}

// drain processes queued merges. Re-entrant calls only enqueue.
func (p *PTA) drain() {
	if p.merging {
		return
	}
	p.merging = true
	defer func() { p.merging = false }()

	for len(p.pending) > 0 {
		pair := p.pending[0]
		p.pending = p.pending[1:]
		p.mergeOne(pair.a, pair.b)
	}
	p.pending = nil
}

func (p *PTA) mergeOne(a, b *State) {
	a, b = a.Resolve(), b.Resolve()
	if a == b {
		return
	}
	if b == p.root {
		// the root keeps its identity so the start state survives compaction
		a, b = b, a
	}

	for _, t := range b.InTransitions() {
		p.unlink(t)
		p.link(t.source, a, t.subEvent, t.count)
	}

	for _, bt := range b.OutTransitions() {
		sym := bt.Symbol()
		p.unlink(bt)
		if at, ok := a.out[sym]; ok {
			at.count += bt.count
			p.pending = append(p.pending, statePair{at.target, bt.target})
		} else {
			p.link(a, bt.target, bt.subEvent, bt.count)
		}
	}

	if _, ok := p.tails[b.id]; ok {
		delete(p.tails, b.id)
		if len(a.out) == 0 {
			p.tails[a.id] = a
		}
	}
	if len(a.out) > 0 {
		delete(p.tails, a.id)
	}

	b.mergedInto = a
	logger.Debug("Merged state %d into %d", b.id, a.id)

	if p.strategy == IsolateCriticalAreasMergeInProcess {
		p.removeCritical(a)
	}
}

// RemoveCriticalTransitions resolves critical-area transitions of every live
// state by statistical majority, drops merged states from the state list and
// returns how many critical transitions were removed.
//
// A transition on a critical area is removed when one neighbouring interval
// has no transition, its count is below 10% of that side's almost-surely
// count, and the opposite neighbour has a transition. The critical count is
// added to the surviving neighbour transition and the critical target is
// merged into the neighbour's target.
func (p *PTA) RemoveCriticalTransitions() int {
	removed := 0
	for _, s := range slices.Clone(p.states) {
		if !s.Live() {
			continue
		}
		removed += p.removeCritical(s)
		p.drain()
	}
	p.Compact()
	return removed
}

// removeCritical handles one state and queues the resulting merges.
func (p *PTA) removeCritical(s *State) int {
	syms := make([]string, 0, len(s.out))
	for sym, t := range s.out {
		if t.subEvent.Critical {
			syms = append(syms, sym)
		}
	}
	sort.Strings(syms)

	removed := 0
	for _, sym := range syms {
		t, ok := s.out[sym]
		if !ok {
			continue
		}
		sub := t.subEvent
		var left, right *Transition
		if prev := sub.Previous(); prev != nil {
			left = s.out[prev.Symbol()]
		}
		if next := sub.Next(); next != nil {
			right = s.out[next.Symbol()]
		}

		var survivor *Transition
		switch {
		case left == nil && right != nil && float64(t.count) < criticalShare*sub.AlmostSurelyCountPrev:
			survivor = right
		case right == nil && left != nil && float64(t.count) < criticalShare*sub.AlmostSurelyCountNext:
			survivor = left
		default:
			continue
		}

		logger.Debug("Removing critical transition %s in favour of %s", t, survivor)
		p.unlink(t)
		survivor.count += t.count
		p.pending = append(p.pending, statePair{survivor.target, t.target})
		removed++
	}
	return removed
}
