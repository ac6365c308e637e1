// Package automaton implements probabilistic deterministic finite automata
// (PDFA) and their timed extension (PDTTA).
//
// States are plain integers with 0 as the start state. Every state owns a set
// of outgoing transitions keyed by symbol plus a final probability; in a
// consistent automaton these sum to exactly 1.0 per state. Restoring that
// invariant after edits first renormalizes in float64 and falls back to
// exact rational arithmetic if rounding still leaves a residue.
//
// Automata are not safe for concurrent use; each carries its own random
// source for sampling.
package automaton

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/rewired-gh/pdtta/internal/logger"
	"github.com/rewired-gh/pdtta/internal/models"
)

// PDFA is a probabilistic deterministic finite automaton.
type PDFA struct {
	out           map[int]map[int]Transition
	numTrans      int
	finalProbs    map[int]float64
	abnormalFinal map[int]AnomalyType
	alphabet      *models.Alphabet
	rng           *rand.Rand
}

// NewPDFA creates an empty automaton. alphabet names the integer symbols and
// may be nil.
func NewPDFA(alphabet *models.Alphabet) *PDFA {
	return &PDFA{
		out:           make(map[int]map[int]Transition),
		finalProbs:    make(map[int]float64),
		abnormalFinal: make(map[int]AnomalyType),
		alphabet:      alphabet,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRandom replaces the random source used for sampling.
func (a *PDFA) SetRandom(rng *rand.Rand) {
	a.rng = rng
}

// Random returns the random source used for sampling.
func (a *PDFA) Random() *rand.Rand {
	return a.rng
}

// Alphabet returns the symbol names, possibly nil.
func (a *PDFA) Alphabet() *models.Alphabet {
	return a.alphabet
}

// SetAlphabet replaces the symbol names.
func (a *PDFA) SetAlphabet(alphabet *models.Alphabet) {
	a.alphabet = alphabet
}

func checkProbability(p float64) error {
	if math.IsNaN(p) || p < 0 || p > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidProbability, p)
	}
	return nil
}

// AddState registers a state with final probability 0 unless it already exists.
func (a *PDFA) AddState(state int) {
	if _, ok := a.finalProbs[state]; !ok {
		a.finalProbs[state] = 0
	}
}

// HasState reports whether the state is known.
func (a *PDFA) HasState(state int) bool {
	_, ok := a.finalProbs[state]
	return ok
}

// States returns all known states in ascending order.
func (a *PDFA) States() []int {
	states := make([]int, 0, len(a.finalProbs))
	for s := range a.finalProbs {
		states = append(states, s)
	}
	sort.Ints(states)
	return states
}

// AddFinalState sets the final probability of a state, creating it if needed.
func (a *PDFA) AddFinalState(state int, p float64) error {
	if err := checkProbability(p); err != nil {
		return fmt.Errorf("final state %d: %w", state, err)
	}
	a.finalProbs[state] = p
	return nil
}

// AddAbnormalFinalState sets a final probability tagged with an anomaly type.
func (a *PDFA) AddAbnormalFinalState(state int, p float64, anomaly AnomalyType) error {
	if err := a.AddFinalState(state, p); err != nil {
		return err
	}
	if anomaly == Normal {
		delete(a.abnormalFinal, state)
	} else {
		a.abnormalFinal[state] = anomaly
	}
	return nil
}

// FinalProbability returns the final probability of a state.
func (a *PDFA) FinalProbability(state int) (float64, bool) {
	p, ok := a.finalProbs[state]
	return p, ok
}

// FinalAnomaly returns the anomaly tag of a state's final probability.
func (a *PDFA) FinalAnomaly(state int) AnomalyType {
	return a.abnormalFinal[state]
}

// AddTransition adds or overwrites the transition from --symbol--> to. Both
// states are created with final probability 0 when unknown.
func (a *PDFA) AddTransition(from, to, symbol int, p float64) (Transition, error) {
	return a.AddAbnormalTransition(from, to, symbol, p, Normal)
}

// AddAbnormalTransition is AddTransition with an anomaly tag.
func (a *PDFA) AddAbnormalTransition(from, to, symbol int, p float64, anomaly AnomalyType) (Transition, error) {
	if symbol < 0 {
		return Transition{}, fmt.Errorf("symbol %d is reserved", symbol)
	}
	if err := checkProbability(p); err != nil {
		return Transition{}, fmt.Errorf("transition %d-%d->%d: %w", from, symbol, to, err)
	}
	old, exists := a.out[from][symbol]
	if exists && old.To != to {
		return Transition{}, fmt.Errorf("%w: state %d already leaves on %d to %d, not %d",
			ErrNondeterministic, from, symbol, old.To, to)
	}
	a.AddState(from)
	a.AddState(to)
	bySymbol, ok := a.out[from]
	if !ok {
		bySymbol = make(map[int]Transition)
		a.out[from] = bySymbol
	}
	t := Transition{From: from, To: to, Symbol: symbol, Probability: p, Anomaly: anomaly}
	bySymbol[symbol] = t
	if !exists {
		a.numTrans++
	}
	return t, nil
}

// Transition returns the transition leaving state on symbol.
func (a *PDFA) Transition(state, symbol int) (Transition, bool) {
	t, ok := a.out[state][symbol]
	return t, ok
}

// Transitions returns the transitions leaving state ordered by symbol. With
// includeStop the stop transition of a known state is appended last.
func (a *PDFA) Transitions(state int, includeStop bool) []Transition {
	ts := make([]Transition, 0, len(a.out[state])+1)
	for _, t := range a.out[state] {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Symbol < ts[j].Symbol })
	if includeStop {
		if p, ok := a.finalProbs[state]; ok {
			ts = append(ts, Transition{From: state, To: state, Symbol: StopSymbol, Probability: p, Anomaly: a.abnormalFinal[state]})
		}
	}
	return ts
}

// AllTransitions returns every transition ordered by source then symbol.
func (a *PDFA) AllTransitions() []Transition {
	ts := make([]Transition, 0, a.numTrans)
	for _, bySymbol := range a.out {
		for _, t := range bySymbol {
			ts = append(ts, t)
		}
	}
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].From != ts[j].From {
			return ts[i].From < ts[j].From
		}
		return ts[i].Symbol < ts[j].Symbol
	})
	return ts
}

// NumTransitions returns the number of (non-stop) transitions.
func (a *PDFA) NumTransitions() int {
	return a.numTrans
}

// RemoveTransition deletes t. Removing an absent transition only logs a warning.
func (a *PDFA) RemoveTransition(t Transition) bool {
	cur, ok := a.out[t.From][t.Symbol]
	if !ok || cur.To != t.To {
		logger.Warn("Tried to remove a non existing transition=%s", t)
		return false
	}
	delete(a.out[t.From], t.Symbol)
	if len(a.out[t.From]) == 0 {
		delete(a.out, t.From)
	}
	a.numTrans--
	return true
}

// setProbability changes the probability of an existing transition or, for a
// stop transition, the final probability of its state.
func (a *PDFA) setProbability(t Transition, p float64) {
	if t.IsStop() {
		if _, ok := a.finalProbs[t.From]; !ok {
			logger.Warn("Was not possible to adjust final state prob for transition %s", t)
		}
		a.finalProbs[t.From] = p
		return
	}
	cur, ok := a.out[t.From][t.Symbol]
	if !ok {
		logger.Warn("Tried to change the probability of a non existing transition=%s", t)
		return
	}
	cur.Probability = p
	a.out[t.From][t.Symbol] = cur
}

// Next follows symbol from state.
func (a *PDFA) Next(state, symbol int) (int, bool) {
	t, ok := a.out[state][symbol]
	return t.To, ok
}

// Accepts reports whether the symbols lead from the start state along
// existing transitions into a state with positive final probability.
func (a *PDFA) Accepts(symbols []int) bool {
	state := StartState
	if !a.HasState(state) {
		return false
	}
	for _, sym := range symbols {
		next, ok := a.Next(state, sym)
		if !ok {
			return false
		}
		state = next
	}
	return a.finalProbs[state] > 0
}

// AcceptsSequence encodes seq with the automaton's alphabet and calls Accepts.
// Symbols unknown to the alphabet are rejected.
func (a *PDFA) AcceptsSequence(seq models.Sequence) bool {
	syms, err := a.alphabet.Encode(seq)
	if err != nil {
		return false
	}
	return a.Accepts(syms)
}

// Clone returns a deep copy sharing the alphabet and random source.
func (a *PDFA) Clone() *PDFA {
	c := &PDFA{
		out:           make(map[int]map[int]Transition, len(a.out)),
		numTrans:      a.numTrans,
		finalProbs:    make(map[int]float64, len(a.finalProbs)),
		abnormalFinal: make(map[int]AnomalyType, len(a.abnormalFinal)),
		alphabet:      a.alphabet,
		rng:           a.rng,
	}
	for s, bySymbol := range a.out {
		m := make(map[int]Transition, len(bySymbol))
		for sym, t := range bySymbol {
			m[sym] = t
		}
		c.out[s] = m
	}
	for k, v := range a.finalProbs {
		c.finalProbs[k] = v
	}
	for k, v := range a.abnormalFinal {
		c.abnormalFinal[k] = v
	}
	return c
}

// Equal reports whether both automata have the same states, transitions,
// probabilities, anomaly tags and alphabet.
func (a *PDFA) Equal(o *PDFA) bool {
	if a == nil || o == nil {
		return a == o
	}
	if a.numTrans != o.numTrans || len(a.finalProbs) != len(o.finalProbs) ||
		len(a.abnormalFinal) != len(o.abnormalFinal) {
		return false
	}
	for s, bySymbol := range a.out {
		for sym, t := range bySymbol {
			if ot, ok := o.out[s][sym]; !ok || ot != t {
				return false
			}
		}
	}
	for s, p := range a.finalProbs {
		if op, ok := o.finalProbs[s]; !ok || op != p {
			return false
		}
	}
	for s, an := range a.abnormalFinal {
		if o.abnormalFinal[s] != an {
			return false
		}
	}
	return a.alphabet.Equal(o.alphabet)
}

func (a *PDFA) String() string {
	return fmt.Sprintf("PDFA(states=%d, transitions=%d)", len(a.finalProbs), a.numTrans)
}
