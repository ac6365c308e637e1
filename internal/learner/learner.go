// Package learner implements the count-based TauPTA learner.
//
// Training runs three passes over the data. Pass 1 counts a prefix tree and
// prunes rare transitions and end states relative to the number of
// sequences. Pass 2 recounts a fresh tree from the sequences the pruned tree
// still accepts. Pass 3 walks those sequences again, buckets the observed
// time values per transition and fits one distribution per bucket.
package learner

import (
	"errors"
	"fmt"

	"github.com/rewired-gh/pdtta/internal/automaton"
	"github.com/rewired-gh/pdtta/internal/distribution"
	"github.com/rewired-gh/pdtta/internal/logger"
	"github.com/rewired-gh/pdtta/internal/models"
)

// DefaultOmitFraction is the pruning threshold relative to the sequence count.
const DefaultOmitFraction = 0.0001

var (
	// ErrMixedInput is returned when timed and untimed sequences are combined.
	ErrMixedInput = errors.New("training sequences mix timed and untimed data")
	// ErrNoSequences is returned for empty training input.
	ErrNoSequences = errors.New("no training sequences")
)

// Stats summarizes one training run.
type Stats struct {
	Sequences int
	// OmittedSequences counts training sequences outside the language of the
	// pruned pass-1 automaton; they take no part in passes 2 and 3.
	OmittedSequences  int
	Threshold         float64
	RawStates         int
	RawTransitions    int
	PrunedTransitions int
	States            int
	Transitions       int
	Distributions     int
}

// Learner learns PDFA and PDTTA models from sequences.
type Learner struct {
	omitFraction float64
	fitter       distribution.Fitter
}

// Option configures a Learner.
type Option func(*Learner)

// WithOmitFraction sets the pruning threshold relative to the sequence count.
func WithOmitFraction(f float64) Option {
	return func(l *Learner) { l.omitFraction = f }
}

// WithFitter sets the time distribution fitter.
func WithFitter(f distribution.Fitter) Option {
	return func(l *Learner) { l.fitter = f }
}

// New creates a learner. Defaults: DefaultOmitFraction and a Gaussian KDE with
// Silverman bandwidth.
func New(opts ...Option) *Learner {
	l := &Learner{
		omitFraction: DefaultOmitFraction,
		fitter:       distribution.KDEFitter{Kernel: distribution.Gaussian},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Train learns a timed automaton. Every non-empty sequence must carry time values.
func (l *Learner) Train(seqs []models.Sequence) (*automaton.PDTTA, Stats, error) {
	timed, err := checkInput(seqs)
	if err != nil {
		return nil, Stats{}, err
	}
	if !timed {
		return nil, Stats{}, fmt.Errorf("%w: Train needs time values, use TrainUntimed", ErrMixedInput)
	}

	a, encoded, accepted, stats, err := l.learn(seqs)
	if err != nil {
		return nil, stats, err
	}

	buckets := make(map[automaton.TransitionKey][]float64)
	for i, ok := range accepted {
		if !ok {
			continue
		}
		state := automaton.StartState
		for j, sym := range encoded[i] {
			t, found := a.Transition(state, sym)
			if !found {
				return nil, stats, &automaton.InvariantError{
					Op:     "bucket time values",
					State:  state,
					Detail: fmt.Sprintf("accepted sequence %s has no transition on %d", seqs[i], sym),
				}
			}
			buckets[t.Key()] = append(buckets[t.Key()], seqs[i].Times[j])
			state = t.To
		}
	}

	dists := make(map[automaton.TransitionKey]distribution.Distribution, len(buckets))
	for k, values := range buckets {
		d, err := l.fitter.Fit(values)
		if err != nil {
			return nil, stats, fmt.Errorf("failed to fit time distribution for %s: %w", k, err)
		}
		dists[k] = d
	}
	stats.Distributions = len(dists)

	if len(dists) != a.NumTransitions() {
		var missing []automaton.Transition
		for _, t := range a.AllTransitions() {
			if _, ok := dists[t.Key()]; !ok {
				missing = append(missing, t)
			}
		}
		return nil, stats, &automaton.InvariantError{
			Op:     "train",
			State:  -1,
			Detail: fmt.Sprintf("%d distributions for %d transitions, missing %v", len(dists), a.NumTransitions(), missing),
		}
	}

	timedModel, err := automaton.FromPDFA(a, dists)
	if err != nil {
		return nil, stats, err
	}
	return timedModel, stats, nil
}

// TrainUntimed learns an automaton without time distributions (passes 1 and 2).
func (l *Learner) TrainUntimed(seqs []models.Sequence) (*automaton.PDFA, Stats, error) {
	if _, err := checkInput(seqs); err != nil {
		return nil, Stats{}, err
	}
	a, _, _, stats, err := l.learn(seqs)
	if err != nil {
		return nil, stats, err
	}
	return a, stats, nil
}

// checkInput validates the sequences and reports whether they are timed.
// Empty sequences fit either kind.
func checkInput(seqs []models.Sequence) (bool, error) {
	if len(seqs) == 0 {
		return false, ErrNoSequences
	}
	timedSeen, untimedSeen := false, false
	for i := range seqs {
		if err := seqs[i].Validate(); err != nil {
			return false, fmt.Errorf("invalid sequence %d: %w", i, err)
		}
		if seqs[i].Len() == 0 {
			continue
		}
		if seqs[i].Timed() {
			timedSeen = true
		} else {
			untimedSeen = true
		}
		if timedSeen && untimedSeen {
			return false, fmt.Errorf("%w (sequence %d)", ErrMixedInput, i)
		}
	}
	return timedSeen, nil
}

// learn runs passes 1 and 2 and returns the consistent pass-2 automaton, the
// encoded sequences and which of them took part in pass 2.
func (l *Learner) learn(seqs []models.Sequence) (*automaton.PDFA, [][]int, []bool, Stats, error) {
	stats := Stats{Sequences: len(seqs)}

	alphabet := models.NewAlphabet()
	encoded := make([][]int, len(seqs))
	for i, s := range seqs {
		enc := make([]int, s.Len())
		for j, sym := range s.Symbols {
			enc[j] = alphabet.Add(sym)
		}
		encoded[i] = enc
	}

	raw := newCountTree()
	for _, enc := range encoded {
		raw.add(enc)
	}
	stats.RawStates = raw.states
	stats.RawTransitions = len(raw.counts)

	stats.Threshold = l.omitFraction * float64(len(seqs))
	stats.PrunedTransitions = raw.prune(stats.Threshold)
	initial, err := raw.automaton(alphabet)
	if err != nil {
		return nil, nil, nil, stats, fmt.Errorf("pass 1: %w", err)
	}

	accepted := make([]bool, len(seqs))
	recount := newCountTree()
	for i, enc := range encoded {
		if initial.Accepts(enc) {
			accepted[i] = true
			recount.add(enc)
		} else {
			stats.OmittedSequences++
		}
	}
	logger.Info("OmittedSequenceCount=%d out of %d sequences at a threshold of less than %g absolute occurrences",
		stats.OmittedSequences, len(seqs), stats.Threshold)
	if stats.OmittedSequences == len(seqs) {
		return nil, nil, nil, stats, fmt.Errorf("all %d sequences were omitted at threshold %g", len(seqs), stats.Threshold)
	}

	a, err := recount.automaton(alphabet)
	if err != nil {
		return nil, nil, nil, stats, fmt.Errorf("pass 2: %w", err)
	}
	if _, err := a.CheckAndRestoreConsistency(); err != nil {
		return nil, nil, nil, stats, fmt.Errorf("pass 2: %w", err)
	}
	stats.States = len(a.States())
	stats.Transitions = a.NumTransitions()
	return a, encoded, accepted, stats, nil
}
