package learner

import (
	"fmt"
	"sort"

	"github.com/rewired-gh/pdtta/internal/automaton"
	"github.com/rewired-gh/pdtta/internal/models"
)

type stateSymbol struct {
	state, symbol int
}

// countTree is a prefix tree with transition and end counts. A new state is
// created for every unseen (state, symbol) pair.
type countTree struct {
	next   map[stateSymbol]int
	counts map[automaton.TransitionKey]int
	finals map[int]int
	states int
}

func newCountTree() *countTree {
	return &countTree{
		next:   make(map[stateSymbol]int),
		counts: make(map[automaton.TransitionKey]int),
		finals: make(map[int]int),
		states: 1,
	}
}

func (c *countTree) add(symbols []int) {
	state := automaton.StartState
	for _, sym := range symbols {
		key := stateSymbol{state, sym}
		to, ok := c.next[key]
		if !ok {
			to = c.states
			c.states++
			c.next[key] = to
		}
		c.counts[automaton.TransitionKey{From: state, To: to, Symbol: sym}]++
		state = to
	}
	c.finals[state]++
}

// prune deletes transitions counted less than threshold and zeroes the end
// counts below it. States are kept. It returns the number of removed transitions.
func (c *countTree) prune(threshold float64) int {
	removed := 0
	for k, n := range c.counts {
		if float64(n) < threshold {
			delete(c.counts, k)
			delete(c.next, stateSymbol{k.From, k.Symbol})
			removed++
		}
	}
	for s, n := range c.finals {
		if float64(n) < threshold {
			c.finals[s] = 0
		}
	}
	return removed
}

// automaton converts counts into probabilities count / (sibling counts + end
// count). States nobody passed through keep final probability 0 and no
// transitions.
func (c *countTree) automaton(alphabet *models.Alphabet) (*automaton.PDFA, error) {
	keys := make([]automaton.TransitionKey, 0, len(c.counts))
	occurrences := make(map[int]int)
	for k, n := range c.counts {
		keys = append(keys, k)
		occurrences[k.From] += n
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].From != keys[j].From {
			return keys[i].From < keys[j].From
		}
		return keys[i].Symbol < keys[j].Symbol
	})
	for s, n := range c.finals {
		occurrences[s] += n
	}

	a := automaton.NewPDFA(alphabet)
	for s := 0; s < c.states; s++ {
		a.AddState(s)
	}
	for _, k := range keys {
		p := float64(c.counts[k]) / float64(occurrences[k.From])
		if _, err := a.AddTransition(k.From, k.To, k.Symbol, p); err != nil {
			return nil, fmt.Errorf("failed to add transition %s: %w", k, err)
		}
	}
	for s := 0; s < c.states; s++ {
		total := occurrences[s]
		if total == 0 {
			continue
		}
		if err := a.AddFinalState(s, float64(c.finals[s])/float64(total)); err != nil {
			return nil, fmt.Errorf("failed to set final probability of state %d: %w", s, err)
		}
	}
	return a, nil
}
