// Package pta builds prefix-tree acceptors from training sequences and
// compacts them by merging equivalent states.
//
// Each distinct prefix of the training data gets one state; transitions are
// labelled with sub-event symbols and count how many sequences used them. The
// merge engine folds one state into another, re-pointing transitions and
// cascading merges whenever two folded states both leave on the same symbol,
// so the tree stays deterministic while it turns into a general graph.
//
// A PTA is not safe for concurrent use.
package pta

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"sort"

	"github.com/rewired-gh/pdtta/internal/events"
	"github.com/rewired-gh/pdtta/internal/logger"
	"github.com/rewired-gh/pdtta/internal/models"
)

// ErrUnknownEvent is returned when a sequence uses an event that is not configured.
var ErrUnknownEvent = errors.New("unknown event")

// Ordering selects the traversal order of StatesOrdered.
type Ordering int

const (
	// TopDown visits states level by level from the root outward.
	TopDown Ordering = iota
	// BottomUp visits states level by level from the tails toward the root.
	BottomUp
)

func (o Ordering) String() string {
	switch o {
	case TopDown:
		return "top-down"
	case BottomUp:
		return "bottom-up"
	default:
		return fmt.Sprintf("ordering(%d)", int(o))
	}
}

// MergeStrategy controls when critical-area transitions are resolved.
type MergeStrategy int

const (
	// IsolateCriticalAreas resolves critical areas only when
	// RemoveCriticalTransitions is called.
	IsolateCriticalAreas MergeStrategy = iota
	// IsolateCriticalAreasMergeInProcess additionally resolves the critical
	// areas of the surviving state after every merge.
	IsolateCriticalAreasMergeInProcess
)

// ParseMergeStrategy maps a config string to a MergeStrategy.
func ParseMergeStrategy(s string) (MergeStrategy, error) {
	switch s {
	case "", "isolate":
		return IsolateCriticalAreas, nil
	case "merge_in_process":
		return IsolateCriticalAreasMergeInProcess, nil
	default:
		return 0, fmt.Errorf("unknown merge strategy %q", s)
	}
}

// PTA is a prefix-tree acceptor over the sub-events of an event set.
type PTA struct {
	events   *events.Set
	arena    *Arena
	strategy MergeStrategy

	root        *State
	states      []*State
	tails       map[StateID]*State
	transitions []*Transition
	depth       int

	pending []statePair
	merging bool
}

type statePair struct {
	a, b *State
}

// Option configures a PTA.
type Option func(*PTA)

// WithArena draws state identifiers from a shared allocator.
func WithArena(a *Arena) Option {
	return func(p *PTA) { p.arena = a }
}

// WithMergeStrategy selects the merge strategy.
func WithMergeStrategy(s MergeStrategy) Option {
	return func(p *PTA) { p.strategy = s }
}

// New creates a PTA holding only the root state.
func New(evs *events.Set, opts ...Option) *PTA {
	p := &PTA{
		events: evs,
		tails:  make(map[StateID]*State),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.arena == nil {
		p.arena = NewArena()
	}

	p.root = newState(p.arena.alloc(), "", nil)
	p.states = append(p.states, p.root)
	p.tails[p.root.id] = p.root
	return p
}

// Root returns the root state.
func (p *PTA) Root() *State {
	return p.root
}

// Depth returns the length of the longest sequence added.
func (p *PTA) Depth() int {
	return p.depth
}

// Events returns the configured event set.
func (p *PTA) Events() *events.Set {
	return p.events
}

// States returns all states in creation order, including merged ones until
// the next Compact.
func (p *PTA) States() []*State {
	return p.states
}

// LiveStates returns the live states in creation order.
func (p *PTA) LiveStates() []*State {
	live := make([]*State, 0, len(p.states))
	for _, s := range p.states {
		if s.Live() {
			live = append(live, s)
		}
	}
	return live
}

// Tails returns the states without outgoing transitions at the time they
// became sequence endpoints, ordered by id.
func (p *PTA) Tails() []*State {
	tails := make([]*State, 0, len(p.tails))
	for _, s := range p.tails {
		tails = append(tails, s)
	}
	sort.Slice(tails, func(i, j int) bool { return tails[i].id < tails[j].id })
	return tails
}

// Transitions returns the transitions that still exist.
func (p *PTA) Transitions() []*Transition {
	var ts []*Transition
	for _, t := range p.transitions {
		if t.Exists() {
			ts = append(ts, t)
		}
	}
	return ts
}

// AddSequences adds every sequence, stopping at the first error.
func (p *PTA) AddSequences(seqs []models.Sequence) error {
	for i := range seqs {
		if err := p.AddSequence(seqs[i]); err != nil {
			return fmt.Errorf("sequence %d: %w", i, err)
		}
	}
	return nil
}

// AddSequence walks seq from the root, incrementing the counts of existing
// transitions. At the first sub-event without a transition it creates a new
// chain of states for the rest of the sequence.
//
// Untimed events map to the first sub-event of their event.
func (p *PTA) AddSequence(seq models.Sequence) error {
	subs := make([]*events.SubEvent, seq.Len())
	for i, sym := range seq.Symbols {
		ev, ok := p.events.Get(sym)
		if !ok {
			return fmt.Errorf("%w %q in sequence %s", ErrUnknownEvent, sym, seq)
		}
		t, timed := seq.TimeAt(i)
		if !timed {
			t = math.NaN()
		}
		subs[i] = ev.SubEventByTime(t)
	}

	p.root.starts++
	current := p.root
	i := 0
	for ; i < len(subs); i++ {
		t, ok := current.out[subs[i].Symbol()]
		if !ok {
			break
		}
		t.count++
		current = t.target
	}

	if i < len(subs) {
		delete(p.tails, current.id)
		for ; i < len(subs); i++ {
			next := newState(p.arena.alloc(), joinWord(current.word, seq.Symbols[i]), current)
			p.states = append(p.states, next)
			p.link(current, next, subs[i], 1)
			current = next
		}
		p.tails[current.id] = current
	}

	if seq.Len() > p.depth {
		p.depth = seq.Len()
	}
	return nil
}

func joinWord(word, sym string) string {
	if word == "" {
		return sym
	}
	return word + " " + sym
}

// StatesOrdered returns a lazy, restartable traversal of the states.
//
// TopDown starts at the children of the root and proceeds breadth first; a
// state reached twice (possible after merges) is visited once. BottomUp
// starts at the tails and repeatedly moves to the live representative of each
// state's father that was not visited yet, stopping at the root. Marks are reset whenever the traversal restarts.
func (p *PTA) StatesOrdered(order Ordering) iter.Seq[*State] {
	switch order {
	case TopDown:
		return p.topDown
	case BottomUp:
		return p.bottomUp
	default:
		panic(fmt.Sprintf("pta: unsupported ordering %v", order))
	}
}

func (p *PTA) topDown(yield func(*State) bool) {
	visited := map[StateID]bool{p.root.id: true}
	var heads []*State
	for _, t := range p.root.OutTransitions() {
		if !visited[t.target.id] {
			visited[t.target.id] = true
			heads = append(heads, t.target)
		}
	}

	for len(heads) > 0 {
		for _, s := range heads {
			if !yield(s) {
				return
			}
		}
		var next []*State
		for _, s := range heads {
			for _, t := range s.OutTransitions() {
				if !visited[t.target.id] {
					visited[t.target.id] = true
					next = append(next, t.target)
				}
			}
		}
		heads = next
	}
}

func (p *PTA) bottomUp(yield func(*State) bool) {
	for _, s := range p.states {
		s.marked = false
	}

	current := p.Tails()
	for _, s := range current {
		s.marked = true
	}

	for len(current) > 0 {
		for _, s := range current {
			if !yield(s) {
				return
			}
		}
		var next []*State
		for _, s := range current {
			if s.father == nil {
				continue
			}
			// a merged father forwards to the state that absorbed it
			father := s.father.Resolve()
			if father == p.root || !father.Live() || father.marked {
				continue
			}
			father.marked = true
			next = append(next, father)
		}
		current = next
	}
}

// link creates a transition and registers it with both endpoints.
func (p *PTA) link(source, target *State, sub *events.SubEvent, count int) *Transition {
	t := &Transition{source: source, target: target, subEvent: sub, count: count}
	sym := sub.Symbol()
	source.out[sym] = t
	bySource, ok := target.in[sym]
	if !ok {
		bySource = make(map[StateID]*Transition)
		target.in[sym] = bySource
	}
	bySource[source.id] = t
	p.transitions = append(p.transitions, t)
	return t
}

// unlink detaches a transition from both endpoints.
func (p *PTA) unlink(t *Transition) {
	if t.removed {
		logger.Warn("Tried to remove a non existing transition=%s", t)
		return
	}
	sym := t.Symbol()
	if cur, ok := t.source.out[sym]; ok && cur == t {
		delete(t.source.out, sym)
	}
	if bySource, ok := t.target.in[sym]; ok {
		if cur, ok := bySource[t.source.id]; ok && cur == t {
			delete(bySource, t.source.id)
		}
		if len(bySource) == 0 {
			delete(t.target.in, sym)
		}
	}
	t.removed = true
}

// Compact drops merged states, dead tails and removed transitions from the
// bookkeeping lists.
func (p *PTA) Compact() {
	live := p.states[:0]
	for _, s := range p.states {
		if s.Live() {
			live = append(live, s)
		}
	}
	for i := len(live); i < len(p.states); i++ {
		p.states[i] = nil
	}
	p.states = live

	for id, s := range p.tails {
		if !s.Live() {
			delete(p.tails, id)
		}
	}

	ts := p.transitions[:0]
	for _, t := range p.transitions {
		if t.Exists() {
			ts = append(ts, t)
		}
	}
	for i := len(ts); i < len(p.transitions); i++ {
		p.transitions[i] = nil
	}
	p.transitions = ts
}
