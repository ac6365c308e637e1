package automaton

import (
	"fmt"
	"sort"

	"github.com/rewired-gh/pdtta/internal/models"
)

// timeFunc draws the time value for a chosen transition. A nil timeFunc
// produces untimed sequences.
type timeFunc func(t Transition) (float64, error)

// SampleSequence generates one sequence by a random walk from the start state.
func (a *PDFA) SampleSequence() (models.Sequence, error) {
	return a.sample(nil)
}

// SampleSequences generates n sequences.
func (a *PDFA) SampleSequences(n int) ([]models.Sequence, error) {
	return sampleN(n, a.SampleSequence)
}

func sampleN(n int, one func() (models.Sequence, error)) ([]models.Sequence, error) {
	seqs := make([]models.Sequence, 0, n)
	for i := 0; i < n; i++ {
		seq, err := one()
		if err != nil {
			return seqs, fmt.Errorf("sample %d: %w", i, err)
		}
		seqs = append(seqs, seq)
	}
	return seqs, nil
}

func (a *PDFA) sample(timeOf timeFunc) (models.Sequence, error) {
	var symbols []string
	var times []float64
	if timeOf != nil {
		times = make([]float64, 0)
	}

	state := StartState
	for {
		chosen, err := a.choose(state)
		if err != nil {
			return models.Sequence{}, err
		}
		if chosen.IsStop() {
			break
		}
		if len(symbols) >= MaxSequenceLength {
			return models.Sequence{}, &InvariantError{
				Op:     "sample",
				State:  state,
				Detail: fmt.Sprintf("more than %d events", MaxSequenceLength),
				Err:    ErrSequenceTooLong,
			}
		}
		if timeOf != nil {
			v, err := timeOf(chosen)
			if err != nil {
				return models.Sequence{}, err
			}
			times = append(times, v)
		}
		symbols = append(symbols, a.alphabet.Symbol(chosen.Symbol))
		state = chosen.To
	}
	return models.Sequence{Symbols: symbols, Times: times, Label: models.Normal}, nil
}

// choose draws the next transition of state, stop included. Candidates are
// scanned from the most to the least probable; if rounding leaves the draw
// above the cumulative sum, the last candidate with positive probability wins.
func (a *PDFA) choose(state int) (Transition, error) {
	candidates := a.Transitions(state, true)
	if len(candidates) == 0 {
		return Transition{}, &InvariantError{Op: "sample", State: state, Detail: "unknown state"}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Probability > candidates[j].Probability
	})

	r := a.rng.Float64()
	cum := 0.0
	for _, c := range candidates {
		cum += c.Probability
		if r < cum {
			return c, nil
		}
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i].Probability > 0 {
			return candidates[i], nil
		}
	}
	return Transition{}, &InvariantError{Op: "sample", State: state, Detail: "no transition with positive probability"}
}
