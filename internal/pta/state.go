package pta

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rewired-gh/pdtta/internal/events"
)

// StateID identifies a state within one Arena.
type StateID int

// Arena hands out state identifiers for one construction run. Identifiers are
// monotonically increasing and never reused, including after merges.
type Arena struct {
	next StateID
}

// NewArena creates an allocator whose first identifier is 0.
func NewArena() *Arena {
	return &Arena{}
}

func (a *Arena) alloc() StateID {
	id := a.next
	a.next++
	return id
}

// Allocated returns how many identifiers were handed out.
func (a *Arena) Allocated() int {
	return int(a.next)
}

// State is a node of the prefix tree.
//
// A state is live while mergedInto is nil. Once merged it only forwards to
// its representative; Resolve follows the chain and compresses it.
type State struct {
	id     StateID
	word   string
	father *State

	out map[string]*Transition
	in  map[string]map[StateID]*Transition

	// starts counts sequences entering the graph here; only the root has any.
	starts int

	mergedInto *State
	marked     bool
}

func newState(id StateID, word string, father *State) *State {
	return &State{
		id:     id,
		word:   word,
		father: father,
		out:    make(map[string]*Transition),
		in:     make(map[string]map[StateID]*Transition),
	}
}

// ID returns the state identifier.
func (s *State) ID() StateID {
	return s.id
}

// Word returns the space separated event path from the root that created the state.
func (s *State) Word() string {
	return s.word
}

// Father returns the tree parent, nil for the root.
func (s *State) Father() *State {
	return s.father
}

// Live reports whether the state has not been merged into another one.
func (s *State) Live() bool {
	return s.mergedInto == nil
}

// Resolve returns the live representative of s, compressing the forwarding chain.
func (s *State) Resolve() *State {
	root := s
	for root.mergedInto != nil {
		root = root.mergedInto
	}
	for s.mergedInto != nil && s.mergedInto != root {
		next := s.mergedInto
		s.mergedInto = root
		s = next
	}
	return root
}

// Transition returns the outgoing transition on a sub-event symbol.
func (s *State) Transition(symbol string) (*Transition, bool) {
	t, ok := s.out[symbol]
	return t, ok
}

// Next returns the target reached on symbol, or nil.
func (s *State) Next(symbol string) *State {
	if t, ok := s.out[symbol]; ok {
		return t.target
	}
	return nil
}

// OutTransitions returns the outgoing transitions ordered by symbol.
func (s *State) OutTransitions() []*Transition {
	out := make([]*Transition, 0, len(s.out))
	for _, t := range s.out {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Symbol() < out[j].Symbol()
	})
	return out
}

// InTransitions returns the incoming transitions ordered by symbol, then source id.
func (s *State) InTransitions() []*Transition {
	var in []*Transition
	for _, bySource := range s.in {
		for _, t := range bySource {
			in = append(in, t)
		}
	}
	sort.Slice(in, func(i, j int) bool {
		if in[i].Symbol() != in[j].Symbol() {
			return in[i].Symbol() < in[j].Symbol()
		}
		return in[i].source.id < in[j].source.id
	})
	return in
}

// OutCount sums the counts of all outgoing transitions.
func (s *State) OutCount() int {
	sum := 0
	for _, t := range s.out {
		sum += t.count
	}
	return sum
}

// InCount sums the counts of all incoming transitions.
func (s *State) InCount() int {
	sum := 0
	for _, bySource := range s.in {
		for _, t := range bySource {
			sum += t.count
		}
	}
	return sum
}

// EndCount is the number of sequences ending in s: incoming (plus started)
// minus outgoing count, floored at zero.
func (s *State) EndCount() int {
	in, out := s.InCount()+s.starts, s.OutCount()
	if in < out {
		return 0
	}
	return in - out
}

// EndProbability is EndCount relative to all observations leaving s. A state
// without outgoing transitions always ends.
func (s *State) EndProbability() float64 {
	out := s.OutCount()
	if out == 0 {
		return 1.0
	}
	end := s.EndCount()
	return float64(end) / float64(out+end)
}

// Marked reports the bottom-up traversal mark.
func (s *State) Marked() bool {
	return s.marked
}

func (s *State) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "State %d(in: ", s.id)
	for _, t := range s.InTransitions() {
		sb.WriteString(t.String())
		sb.WriteByte(' ')
	}
	sb.WriteString(", out: ")
	for _, t := range s.OutTransitions() {
		sb.WriteString(t.String())
		sb.WriteByte(' ')
	}
	sb.WriteByte(')')
	return sb.String()
}

// Transition is a counted edge of the prefix tree.
type Transition struct {
	source   *State
	target   *State
	subEvent *events.SubEvent
	count    int
	removed  bool
}

// Source returns the source state.
func (t *Transition) Source() *State { return t.source }

// Target returns the target state.
func (t *Transition) Target() *State { return t.target }

// SubEvent returns the sub-event labelling the transition.
func (t *Transition) SubEvent() *events.SubEvent { return t.subEvent }

// Symbol returns the sub-event symbol.
func (t *Transition) Symbol() string { return t.subEvent.Symbol() }

// Count returns how many training sequences took the transition.
func (t *Transition) Count() int { return t.count }

// Exists reports whether the transition is still linked and both endpoints are live.
func (t *Transition) Exists() bool {
	return !t.removed && t.source.Live() && t.target.Live()
}

func (t *Transition) String() string {
	return fmt.Sprintf("%d-%s(%d)->%d", t.source.id, t.Symbol(), t.count, t.target.id)
}
