package automaton

import (
	"math"
	"math/big"

	"github.com/rewired-gh/pdtta/internal/logger"
)

// maxULPs is the tolerance used when comparing a probability sum with 1.0.
const maxULPs = 1

// almostEqual reports whether x and y are at most maxUlps representable
// float64 values apart.
func almostEqual(x, y float64, maxUlps uint64) bool {
	if math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	xi := int64(math.Float64bits(x))
	yi := int64(math.Float64bits(y))
	if (xi < 0) != (yi < 0) {
		return x == y
	}
	d := xi - yi
	if d < 0 {
		d = -d
	}
	return uint64(d) <= maxUlps
}

// sumProbabilities adds the probabilities with Neumaier compensation, so the
// result is the correctly rounded total rather than a running sum that can
// drift by several ulps.
func sumProbabilities(ts []Transition) float64 {
	sum, c := 0.0, 0.0
	for _, t := range ts {
		p := t.Probability
		next := sum + p
		if math.Abs(sum) >= math.Abs(p) {
			c += (sum - next) + p
		} else {
			c += (p - next) + sum
		}
		sum = next
	}
	return sum + c
}

// IsConsistent reports whether the outgoing probabilities of every state,
// including its final probability, sum to 1.0.
func (a *PDFA) IsConsistent() bool {
	for _, state := range a.States() {
		sum := sumProbabilities(a.Transitions(state, true))
		if !almostEqual(sum, 1.0, maxULPs) {
			logger.Info("Probabilities do not sum up to one, but instead to %v for state %d", sum, state)
			return false
		}
	}
	return true
}

// RestoreConsistency renormalizes the outgoing probabilities of every state.
func (a *PDFA) RestoreConsistency() error {
	for _, state := range a.States() {
		if err := a.fixProbability(state); err != nil {
			return err
		}
	}
	return nil
}

// CheckAndRestoreConsistency repairs the automaton if it is not consistent and
// reports whether a repair was needed.
func (a *PDFA) CheckAndRestoreConsistency() (bool, error) {
	if a.IsConsistent() {
		return false, nil
	}
	if err := a.RestoreConsistency(); err != nil {
		return true, err
	}
	if !a.IsConsistent() {
		return true, &InvariantError{Op: "restore consistency", State: -1, Detail: "automaton still inconsistent after repair"}
	}
	return true, nil
}

// fixProbability scales the probabilities of one state by their sum. When
// float rounding leaves the sum off by more than the tolerance, the scaling
// is redone in exact rational arithmetic. A state that still misses 1.0 after
// that is rejected; its probabilities are never patched to hide the residue.
func (a *PDFA) fixProbability(state int) error {
	ts := a.Transitions(state, true)
	sum := sumProbabilities(ts)
	if almostEqual(sum, 1.0, maxULPs) {
		return nil
	}
	if sum <= 0 || math.IsInf(sum, 0) || math.IsNaN(sum) {
		return &InvariantError{Op: "fix probability", State: state, Detail: "cannot normalize probability mass " + formatFloat(sum)}
	}

	for _, t := range ts {
		a.setProbability(t, t.Probability/sum)
	}
	ts = a.Transitions(state, true)
	sum = sumProbabilities(ts)
	if almostEqual(sum, 1.0, maxULPs) {
		return nil
	}

	logger.Warn("Sum of probabilities for state %d is %v after normalization, renormalizing with exact fractions", state, sum)
	rats := make([]*big.Rat, len(ts))
	total := new(big.Rat)
	for i, t := range ts {
		r := new(big.Rat)
		if r.SetFloat64(t.Probability) == nil {
			return &InvariantError{Op: "fix probability", State: state, Detail: "non-finite probability " + formatFloat(t.Probability)}
		}
		rats[i] = r
		total.Add(total, r)
	}
	for i, r := range rats {
		f, _ := new(big.Rat).Quo(r, total).Float64()
		ts[i].Probability = f
		a.setProbability(ts[i], f)
	}

	sum = sumProbabilities(ts)
	if !almostEqual(sum, 1.0, maxULPs) {
		return &InvariantError{Op: "fix probability", State: state, Detail: "probabilities sum to " + formatFloat(sum) + " after exact repair"}
	}
	return nil
}
