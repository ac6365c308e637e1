package automaton

import (
	"fmt"
	"sort"

	"github.com/rewired-gh/pdtta/internal/distribution"
	"github.com/rewired-gh/pdtta/internal/logger"
	"github.com/rewired-gh/pdtta/internal/models"
)

// PDTTA is a PDFA whose transitions each carry a time distribution.
//
// A consistent PDTTA has a distribution for exactly the transitions that
// exist; restoring consistency removes transitions without a distribution and
// drops distributions whose transition is gone.
type PDTTA struct {
	*PDFA
	distributions map[TransitionKey]distribution.Distribution
}

// NewPDTTA creates an empty timed automaton.
func NewPDTTA(alphabet *models.Alphabet) *PDTTA {
	return &PDTTA{
		PDFA:          NewPDFA(alphabet),
		distributions: make(map[TransitionKey]distribution.Distribution),
	}
}

// FromPDFA wraps a copy of an untimed automaton and attaches distributions,
// then restores consistency.
func FromPDFA(a *PDFA, dists map[TransitionKey]distribution.Distribution) (*PDTTA, error) {
	t := &PDTTA{PDFA: a.Clone()}
	if err := t.SetTransitionDistributions(dists); err != nil {
		return nil, err
	}
	return t, nil
}

// SetTransitionDistributions replaces all distributions and restores
// consistency.
func (a *PDTTA) SetTransitionDistributions(dists map[TransitionKey]distribution.Distribution) error {
	a.distributions = make(map[TransitionKey]distribution.Distribution, len(dists))
	for k, d := range dists {
		a.distributions[k] = d
	}
	_, err := a.CheckAndRestoreConsistency()
	return err
}

// BindTransitionDistribution attaches d to an existing transition.
func (a *PDTTA) BindTransitionDistribution(t Transition, d distribution.Distribution) error {
	cur, ok := a.Transition(t.From, t.Symbol)
	if !ok || cur.To != t.To {
		return fmt.Errorf("cannot bind distribution: no transition %s", t.Key())
	}
	a.distributions[t.Key()] = d
	return nil
}

// Distribution returns the time distribution of a transition.
func (a *PDTTA) Distribution(key TransitionKey) (distribution.Distribution, bool) {
	d, ok := a.distributions[key]
	return d, ok
}

// TransitionDistributions returns a copy of the distribution map.
func (a *PDTTA) TransitionDistributions() map[TransitionKey]distribution.Distribution {
	out := make(map[TransitionKey]distribution.Distribution, len(a.distributions))
	for k, d := range a.distributions {
		out[k] = d
	}
	return out
}

// RemoveTransition deletes t together with its distribution.
func (a *PDTTA) RemoveTransition(t Transition) bool {
	removed := a.PDFA.RemoveTransition(t)
	delete(a.distributions, t.Key())
	return removed
}

// IsConsistent additionally requires a one to one match between transitions
// and distributions.
func (a *PDTTA) IsConsistent() bool {
	if err := a.checkDistributions(); err != nil {
		logger.Info("%v", err)
		return false
	}
	return a.PDFA.IsConsistent()
}

// checkDistributions reports the first transition without a distribution or
// distribution without a transition.
func (a *PDTTA) checkDistributions() error {
	for _, t := range a.AllTransitions() {
		if _, ok := a.distributions[t.Key()]; !ok {
			return &InvariantError{Op: "check distributions", State: t.From, Detail: "transition " + t.Key().String() + " has no time distribution"}
		}
	}
	keys := make([]TransitionKey, 0, len(a.distributions))
	for k := range a.distributions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, k := range keys {
		if cur, ok := a.Transition(k.From, k.Symbol); !ok || cur.To != k.To {
			return &InvariantError{Op: "check distributions", State: k.From, Detail: "time distribution for non existing transition " + k.String()}
		}
	}
	return nil
}

// RestoreConsistency removes transitions without distributions, drops
// distributions without transitions and renormalizes probabilities.
func (a *PDTTA) RestoreConsistency() error {
	for _, t := range a.AllTransitions() {
		if _, ok := a.distributions[t.Key()]; !ok {
			logger.Debug("Removing transition %s without time distribution", t)
			a.PDFA.RemoveTransition(t)
		}
	}

	var orphans []TransitionKey
	for k := range a.distributions {
		if cur, ok := a.Transition(k.From, k.Symbol); !ok || cur.To != k.To {
			orphans = append(orphans, k)
		}
	}
	sort.Slice(orphans, func(i, j int) bool { return orphans[i].String() < orphans[j].String() })
	for _, k := range orphans {
		logger.Warn("Dropping time distribution for non existing transition %s", k)
		delete(a.distributions, k)
	}

	return a.PDFA.RestoreConsistency()
}

// CheckAndRestoreConsistency repairs the automaton if needed and reports
// whether a repair was made.
func (a *PDTTA) CheckAndRestoreConsistency() (bool, error) {
	if a.IsConsistent() {
		return false, nil
	}
	if err := a.RestoreConsistency(); err != nil {
		return true, err
	}
	if !a.IsConsistent() {
		return true, &InvariantError{Op: "restore consistency", State: -1, Detail: "timed automaton still inconsistent after repair"}
	}
	return true, nil
}

// SampleSequence generates one timed sequence. Each chosen transition draws
// one value from its distribution.
func (a *PDTTA) SampleSequence() (models.Sequence, error) {
	return a.sample(func(t Transition) (float64, error) {
		d, ok := a.distributions[t.Key()]
		if !ok {
			return 0, &InvariantError{Op: "sample", State: t.From, Detail: "no time distribution for " + t.Key().String()}
		}
		return d.Sample(1, a.rng)[0], nil
	})
}

// SampleSequences generates n timed sequences.
func (a *PDTTA) SampleSequences(n int) ([]models.Sequence, error) {
	return sampleN(n, a.SampleSequence)
}

// Clone returns a deep copy of the structure sharing the distributions.
func (a *PDTTA) Clone() *PDTTA {
	return &PDTTA{PDFA: a.PDFA.Clone(), distributions: a.TransitionDistributions()}
}

// Equal compares structure, probabilities and distributions.
func (a *PDTTA) Equal(o *PDTTA) bool {
	if a == nil || o == nil {
		return a == o
	}
	if !a.PDFA.Equal(o.PDFA) || len(a.distributions) != len(o.distributions) {
		return false
	}
	for k, d := range a.distributions {
		od, ok := o.distributions[k]
		if !ok || !distribution.Equal(d, od) {
			return false
		}
	}
	return true
}

func (a *PDTTA) String() string {
	return fmt.Sprintf("PDTTA(states=%d, transitions=%d, distributions=%d)",
		len(a.States()), a.NumTransitions(), len(a.distributions))
}
