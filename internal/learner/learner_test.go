package learner

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/pdtta/internal/automaton"
	"github.com/rewired-gh/pdtta/internal/distribution"
	"github.com/rewired-gh/pdtta/internal/models"
)

func untimed(words ...[]string) []models.Sequence {
	seqs := make([]models.Sequence, len(words))
	for i, w := range words {
		seqs[i] = models.NewSequence(w...)
	}
	return seqs
}

func repeat(n int, symbols ...string) [][]string {
	out := make([][]string, n)
	for i := range out {
		out[i] = symbols
	}
	return out
}

func TestTrainUntimed_Scenario(t *testing.T) {
	l := New(WithOmitFraction(0))
	a, stats, err := l.TrainUntimed(untimed([]string{"a", "b"}, []string{"a", "b"}, []string{"a", "c"}))
	require.NoError(t, err)

	alpha := a.Alphabet()
	aSym, _ := alpha.Lookup("a")
	bSym, _ := alpha.Lookup("b")
	cSym, _ := alpha.Lookup("c")

	assert.Len(t, a.Transitions(automaton.StartState, false), 1)
	ta, ok := a.Transition(automaton.StartState, aSym)
	require.True(t, ok)
	assert.Equal(t, 1.0, ta.Probability)

	tb, ok := a.Transition(ta.To, bSym)
	require.True(t, ok)
	tc, ok := a.Transition(ta.To, cSym)
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, tb.Probability, 1e-15)
	assert.InDelta(t, 1.0/3.0, tc.Probability, 1e-15)

	assert.Equal(t, 0, stats.OmittedSequences)
	assert.Equal(t, 4, stats.States)
	assert.Equal(t, 3, stats.Transitions)
	assert.True(t, a.IsConsistent())
}

func TestTrainUntimed_Pruning(t *testing.T) {
	words := append(repeat(99, "a", "b"), []string{"a", "c"})
	l := New(WithOmitFraction(0.05))
	a, stats, err := l.TrainUntimed(untimed(words...))
	require.NoError(t, err)

	assert.Equal(t, 5.0, stats.Threshold)
	assert.Equal(t, 1, stats.OmittedSequences)
	assert.Equal(t, 1, stats.PrunedTransitions)
	assert.Equal(t, 3, stats.RawTransitions)
	assert.Equal(t, 2, stats.Transitions)
	assert.LessOrEqual(t, stats.Transitions, stats.RawTransitions)

	assert.True(t, a.AcceptsSequence(models.NewSequence("a", "b")))
	assert.False(t, a.AcceptsSequence(models.NewSequence("a", "c")))
	assert.False(t, a.AcceptsSequence(models.NewSequence("a")))
}

func TestTrainUntimed_PruningMonotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	symbols := []string{"a", "b", "c", "d"}
	var words [][]string
	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(5)
		w := make([]string, n)
		for j := range w {
			// skewed so that some prefixes are rare
			w[j] = symbols[int(float64(len(symbols))*rng.Float64()*rng.Float64())]
		}
		words = append(words, w)
	}

	for _, frac := range []float64{0, 0.001, 0.01, 0.05} {
		a, stats, err := New(WithOmitFraction(frac)).TrainUntimed(untimed(words...))
		require.NoError(t, err, "omit fraction %v", frac)
		assert.LessOrEqual(t, stats.Transitions, stats.RawTransitions)
		assert.Equal(t, stats.Transitions, a.NumTransitions())
		assert.True(t, a.IsConsistent())
	}
}

func timedSeqs(rng *rand.Rand) []models.Sequence {
	var seqs []models.Sequence
	for i := 0; i < 60; i++ {
		seqs = append(seqs, models.NewTimedSequence(
			[]string{"open", "read", "close"},
			[]float64{rng.Float64(), 10 + rng.Float64(), 2 + rng.Float64()},
		))
	}
	for i := 0; i < 40; i++ {
		seqs = append(seqs, models.NewTimedSequence(
			[]string{"open", "close"},
			[]float64{rng.Float64(), 5 + rng.Float64()},
		))
	}
	return seqs
}

func TestTrain_Timed(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	l := New(WithOmitFraction(0.01), WithFitter(distribution.KDEFitter{Kernel: distribution.Gaussian, Bandwidth: 0.1}))

	a, stats, err := l.Train(timedSeqs(rng))
	require.NoError(t, err)

	assert.Equal(t, stats.Transitions, stats.Distributions)
	assert.Equal(t, a.NumTransitions(), len(a.TransitionDistributions()))
	assert.True(t, a.IsConsistent())

	a.SetRandom(rand.New(rand.NewSource(5)))
	samples, err := a.SampleSequences(200)
	require.NoError(t, err)
	for _, s := range samples {
		require.True(t, s.Timed())
		require.Len(t, s.Times, s.Len())
		if s.Len() == 3 {
			assert.Equal(t, []string{"open", "read", "close"}, s.Symbols)
			assert.InDelta(t, 10.5, s.Times[1], 1.5)
		}
	}
}

func TestTrain_InputErrors(t *testing.T) {
	timedSeq := models.NewTimedSequence([]string{"a"}, []float64{1})
	tests := []struct {
		name    string
		seqs    []models.Sequence
		wantErr error
	}{
		{"empty input", nil, ErrNoSequences},
		{"mixed", []models.Sequence{timedSeq, models.NewSequence("a")}, ErrMixedInput},
		{"untimed to Train", untimed([]string{"a"}), ErrMixedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := New().Train(tt.seqs)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	bad := models.NewTimedSequence([]string{"a", "b"}, []float64{1})
	if _, _, err := New().Train([]models.Sequence{bad}); err == nil {
		t.Error("expected validation error for mismatched times")
	}
}

func TestTrain_FitterError(t *testing.T) {
	boom := errors.New("boom")
	l := New(WithFitter(distribution.FitterFunc(func([]float64) (distribution.Distribution, error) {
		return nil, boom
	})))
	_, _, err := l.Train([]models.Sequence{models.NewTimedSequence([]string{"a"}, []float64{1})})
	assert.ErrorIs(t, err, boom)
}

func TestTrainUntimed_AllOmitted(t *testing.T) {
	words := [][]string{{"a"}, {"b"}, {"c"}, {"d"}}
	_, stats, err := New(WithOmitFraction(0.5)).TrainUntimed(untimed(words...))
	require.Error(t, err)
	assert.Equal(t, 4, stats.OmittedSequences)
}
