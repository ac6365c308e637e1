package main

import (
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/rewired-gh/pdtta/internal/automaton"
)

const stopLabel = "$"

// compareAutomata walks both automata in lockstep from the start state and
// pairs transitions by their symbol text, since the learned automaton assigns
// its own symbol indexes. Reference states reached through a transition the
// learned automaton lacks are reported as missing and not descended into.
func compareAutomata(ref, learned *automaton.PDFA) ([]TransitionDrift, int) {
	type pair struct{ ref, learned int }

	var (
		drifts  []TransitionDrift
		extra   int
		queue   = []pair{{automaton.StartState, automaton.StartState}}
		visited = map[pair]bool{queue[0]: true}
	)

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]

		refFinal, _ := ref.FinalProbability(p.ref)
		learnedFinal, _ := learned.FinalProbability(p.learned)
		drifts = append(drifts, TransitionDrift{
			RefState:     p.ref,
			LearnedState: p.learned,
			Symbol:       stopLabel,
			RefProb:      refFinal,
			LearnedProb:  learnedFinal,
		})

		matched := make(map[int]bool)
		for _, rt := range ref.Transitions(p.ref, false) {
			sym := ref.Alphabet().Symbol(rt.Symbol)
			d := TransitionDrift{RefState: p.ref, LearnedState: p.learned, Symbol: sym, RefProb: rt.Probability}

			idx, ok := learned.Alphabet().Lookup(sym)
			lt, found := learned.Transition(p.learned, idx)
			if !ok || !found {
				d.Missing = true
				drifts = append(drifts, d)
				continue
			}
			matched[lt.Symbol] = true
			d.LearnedProb = lt.Probability
			drifts = append(drifts, d)

			next := pair{rt.To, lt.To}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
		for _, lt := range learned.Transitions(p.learned, false) {
			if !matched[lt.Symbol] {
				extra++
			}
		}
	}
	return drifts, extra
}

// summarize aggregates the absolute differences of all compared transitions.
func summarize(drifts []TransitionDrift, extra int) DriftSummary {
	s := DriftSummary{Extra: extra}
	var diffs stats.Float64Data
	for _, d := range drifts {
		if d.Missing {
			s.Missing++
			continue
		}
		diffs = append(diffs, d.Diff())
	}
	s.Compared = len(diffs)
	if len(diffs) == 0 {
		return s
	}

	s.MeanAbsDiff, _ = stats.Mean(diffs)
	s.MedianAbsDiff, _ = stats.Median(diffs)
	s.P95AbsDiff, _ = stats.Percentile(diffs, 95)
	s.MaxAbsDiff, _ = stats.Max(diffs)
	return s
}

// worstDrifts returns up to n compared transitions with the largest difference.
func worstDrifts(drifts []TransitionDrift, n int) []TransitionDrift {
	sorted := make([]TransitionDrift, 0, len(drifts))
	for _, d := range drifts {
		if !d.Missing {
			sorted = append(sorted, d)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Diff() > sorted[j].Diff()
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
