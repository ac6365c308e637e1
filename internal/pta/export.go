package pta

import (
	"bufio"
	"fmt"
	"io"

	"github.com/rewired-gh/pdtta/internal/automaton"
	"github.com/rewired-gh/pdtta/internal/models"
)

// Alphabet numbers every sub-event symbol of the event set, events in name
// order and sub-events in interval order.
func (p *PTA) Alphabet() *models.Alphabet {
	alphabet := models.NewAlphabet()
	for _, name := range p.events.Names() {
		ev, _ := p.events.Get(name)
		for _, sub := range ev.SubEvents() {
			alphabet.Add(sub.Symbol())
		}
	}
	return alphabet
}

// ToAutomaton converts the live states into a consistent PDFA. The root
// becomes state 0 and the other live states follow in creation order.
// Transition probabilities are counts relative to all observations leaving
// the source state, sequence ends included.
func (p *PTA) ToAutomaton() (*automaton.PDFA, error) {
	alphabet := p.Alphabet()
	a := automaton.NewPDFA(alphabet)

	ids := make(map[StateID]int)
	ids[p.root.id] = automaton.StartState
	next := automaton.StartState + 1
	live := p.LiveStates()
	for _, s := range live {
		if s == p.root {
			continue
		}
		ids[s.id] = next
		next++
	}

	for _, s := range live {
		a.AddState(ids[s.id])
		total := float64(s.OutCount() + s.EndCount())
		for _, t := range s.OutTransitions() {
			sym, _ := alphabet.Lookup(t.Symbol())
			to, ok := ids[t.target.id]
			if !ok {
				return nil, fmt.Errorf("transition %s points to a merged state", t)
			}
			if _, err := a.AddTransition(ids[s.id], to, sym, float64(t.count)/total); err != nil {
				return nil, fmt.Errorf("failed to convert transition %s: %w", t, err)
			}
		}
		if err := a.AddFinalState(ids[s.id], s.EndProbability()); err != nil {
			return nil, fmt.Errorf("failed to convert state %d: %w", s.id, err)
		}
	}

	if _, err := a.CheckAndRestoreConsistency(); err != nil {
		return nil, err
	}
	return a, nil
}

// WriteGraphviz writes the live states as a DOT digraph. Tails are filled red
// and edges are labelled with symbol and count.
func (p *PTA) WriteGraphviz(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph PTA {")
	fmt.Fprintln(bw, "\trankdir=LR;")
	fmt.Fprintln(bw, "\tnode[style = filled, fillcolor = white, shape = circle];")
	for _, s := range p.LiveStates() {
		if _, tail := p.tails[s.id]; tail {
			fmt.Fprintf(bw, "\t%d [fillcolor = red];\n", s.id)
		} else {
			fmt.Fprintf(bw, "\t%d;\n", s.id)
		}
	}
	for _, s := range p.LiveStates() {
		for _, t := range s.OutTransitions() {
			fmt.Fprintf(bw, "\t%d -> %d [label = \"%s(%d)\"];\n", s.id, t.target.id, t.Symbol(), t.count)
		}
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
