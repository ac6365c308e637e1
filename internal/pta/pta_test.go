package pta

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/pdtta/internal/events"
	"github.com/rewired-gh/pdtta/internal/models"
)

func untimedPTA(t *testing.T, seqs ...[]string) *PTA {
	t.Helper()
	set, err := events.Untimed("a", "b", "c", "d")
	require.NoError(t, err)
	p := New(set)
	for _, s := range seqs {
		require.NoError(t, p.AddSequence(models.NewSequence(s...)))
	}
	return p
}

func ids(seq func(func(*State) bool)) []StateID {
	var out []StateID
	for s := range seq {
		out = append(out, s.ID())
	}
	return out
}

func TestAddSequence_Counts(t *testing.T) {
	p := untimedPTA(t, []string{"a", "b"}, []string{"a", "b"}, []string{"a", "c"})

	root := p.Root()
	ta, ok := root.Transition("a0")
	require.True(t, ok)
	assert.Equal(t, 3, ta.Count())

	s1 := ta.Target()
	tb, _ := s1.Transition("b0")
	tc, _ := s1.Transition("c0")
	assert.Equal(t, 2, tb.Count())
	assert.Equal(t, 1, tc.Count())
	assert.Equal(t, "a b", tb.Target().Word())
	assert.Equal(t, s1, tb.Target().Father())

	assert.Equal(t, 2, p.Depth())
	assert.Len(t, p.States(), 4)
	assert.Equal(t, []StateID{2, 3}, []StateID{p.Tails()[0].ID(), p.Tails()[1].ID()})

	a, err := p.ToAutomaton()
	require.NoError(t, err)
	alpha := a.Alphabet()
	aSym, _ := alpha.Lookup("a0")
	bSym, _ := alpha.Lookup("b0")
	cSym, _ := alpha.Lookup("c0")

	tr, ok := a.Transition(0, aSym)
	require.True(t, ok)
	assert.Equal(t, 1.0, tr.Probability)
	trB, _ := a.Transition(tr.To, bSym)
	trC, _ := a.Transition(tr.To, cSym)
	assert.InDelta(t, 2.0/3.0, trB.Probability, 1e-15)
	assert.InDelta(t, 1.0/3.0, trC.Probability, 1e-15)
	final, _ := a.FinalProbability(trB.To)
	assert.Equal(t, 1.0, final)
	assert.True(t, a.IsConsistent())
}

func TestAddSequence_EmptySequenceEndsAtRoot(t *testing.T) {
	p := untimedPTA(t, []string{}, []string{"a"})
	assert.Equal(t, 1, p.Root().EndCount())
	assert.Equal(t, 0.5, p.Root().EndProbability())
}

func TestAddSequence_UnknownEvent(t *testing.T) {
	p := untimedPTA(t)
	err := p.AddSequence(models.NewSequence("a", "zzz"))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
	if len(p.States()) != 1 {
		t.Errorf("failed sequence must not create states, got %d", len(p.States()))
	}
}

func TestAddSequence_TimedSubEvents(t *testing.T) {
	x := events.MustEvent("x", events.Interval{Upper: 1}, events.Interval{Upper: math.Inf(1)})
	set, err := events.NewSet(x)
	require.NoError(t, err)
	p := New(set)

	require.NoError(t, p.AddSequence(models.NewTimedSequence([]string{"x", "x"}, []float64{0.5, 3})))
	require.NoError(t, p.AddSequence(models.NewTimedSequence([]string{"x"}, []float64{7})))

	_, ok := p.Root().Transition("x0")
	assert.True(t, ok)
	t1, ok := p.Root().Transition("x1")
	require.True(t, ok)
	assert.Equal(t, 1, t1.Count())
}

func TestStatesOrdered(t *testing.T) {
	p := untimedPTA(t, []string{"a", "b"}, []string{"a", "c"}, []string{"d"})

	assert.Equal(t, []StateID{1, 4, 2, 3}, ids(p.StatesOrdered(TopDown)))
	assert.Equal(t, []StateID{2, 3, 4, 1}, ids(p.StatesOrdered(BottomUp)))
	// restartable
	assert.Equal(t, []StateID{2, 3, 4, 1}, ids(p.StatesOrdered(BottomUp)))

	// early stop
	var first []StateID
	for s := range p.StatesOrdered(TopDown) {
		first = append(first, s.ID())
		break
	}
	assert.Equal(t, []StateID{1}, first)
}

func TestStatesOrdered_AfterMergeTerminates(t *testing.T) {
	p := untimedPTA(t, []string{"a", "a", "a"})
	s1 := p.Root().Next("a0")
	s2 := s1.Next("a0")
	p.Merge(s1, s2)

	got := ids(p.StatesOrdered(TopDown))
	assert.Equal(t, []StateID{1}, got)
}

func TestStatesOrdered_BottomUpAfterMerge(t *testing.T) {
	p := untimedPTA(t, []string{"a", "b"}, []string{"c", "d"})
	s1 := p.Root().Next("a0")
	s3 := p.Root().Next("c0")
	s4 := s3.Next("d0")

	p.Merge(s1, s3)
	require.False(t, s3.Live())
	assert.Equal(t, s3, s4.Father(), "tree parent is kept after the merge")

	var got []StateID
	for s := range p.StatesOrdered(BottomUp) {
		assert.True(t, s.Live(), "state %d was merged", s.ID())
		got = append(got, s.ID())
	}
	assert.Equal(t, []StateID{2, 4, 1}, got)
}

func TestMerge_Cascade(t *testing.T) {
	p := untimedPTA(t, []string{"a", "b"}, []string{"c", "b"})
	s1 := p.Root().Next("a0")
	s3 := p.Root().Next("c0")
	s2 := s1.Next("b0")
	s4 := s3.Next("b0")

	p.Merge(s1, s3)

	assert.False(t, s3.Live())
	assert.False(t, s4.Live())
	assert.Equal(t, s1, s3.Resolve())
	assert.Equal(t, s2, s4.Resolve())
	assert.Equal(t, s1, p.Root().Next("c0"))

	tb, ok := s1.Transition("b0")
	require.True(t, ok)
	assert.Equal(t, 2, tb.Count())
	assert.Equal(t, 2, s2.InCount())
	assert.Len(t, p.LiveStates(), 3)
	assert.Equal(t, []*State{s2}, p.Tails())

	before := len(p.Transitions())
	p.Merge(s1, s3)
	p.Merge(s2, s2)
	assert.Equal(t, before, len(p.Transitions()), "repeated merge must be a no-op")
}

func TestMerge_RootSurvives(t *testing.T) {
	p := untimedPTA(t, []string{"a", "a"})
	s1 := p.Root().Next("a0")

	p.Merge(s1, p.Root())

	assert.True(t, p.Root().Live())
	assert.False(t, s1.Live())
	tr, ok := p.Root().Transition("a0")
	require.True(t, ok)
	assert.Equal(t, p.Root(), tr.Target())
}

func TestMerge_Deterministic(t *testing.T) {
	build := func() string {
		p := untimedPTA(t, []string{"a", "b", "c"}, []string{"b", "a"}, []string{"a", "c"}, []string{"c", "b", "a"})
		live := p.LiveStates()
		p.Merge(live[1], live[4])
		p.Merge(live[2], live[6])
		var buf bytes.Buffer
		require.NoError(t, p.WriteGraphviz(&buf))
		return buf.String()
	}
	assert.Equal(t, build(), build())
}

func criticalSet(t *testing.T) *events.Set {
	t.Helper()
	x := events.MustEvent("x",
		events.Interval{Upper: 1},
		events.Interval{Upper: 2, Critical: true, AlmostSurelyCountPrev: 100, AlmostSurelyCountNext: 100},
		events.Interval{Upper: math.Inf(1)},
	)
	y := events.MustEvent("y")
	z := events.MustEvent("z")
	set, err := events.NewSet(x, y, z)
	require.NoError(t, err)
	return set
}

func addTimed(t *testing.T, p *PTA, n int, symbols []string, times []float64) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, p.AddSequence(models.NewTimedSequence(symbols, times)))
	}
}

func TestRemoveCriticalTransitions(t *testing.T) {
	tests := []struct {
		name        string
		leftCount   int
		rightCount  int
		critical    int
		wantRemoved int
		wantSymbols []string
		wantCounts  []int
	}{
		{"folded into left", 50, 0, 1, 1, []string{"x0"}, []int{51}},
		{"folded into right", 0, 40, 9, 1, []string{"x2"}, []int{49}},
		{"kept above threshold", 50, 0, 10, 0, []string{"x0", "x1"}, []int{50, 10}},
		{"kept without neighbour", 0, 0, 3, 0, []string{"x1"}, []int{3}},
		{"kept between both neighbours", 5, 5, 1, 0, []string{"x0", "x1", "x2"}, []int{5, 1, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(criticalSet(t))
			addTimed(t, p, tt.leftCount, []string{"x", "y"}, []float64{0.5, 0})
			addTimed(t, p, tt.rightCount, []string{"x", "y"}, []float64{5, 0})
			addTimed(t, p, tt.critical, []string{"x", "y"}, []float64{1.5, 0})

			removed := p.RemoveCriticalTransitions()
			assert.Equal(t, tt.wantRemoved, removed)

			var syms []string
			var counts []int
			for _, tr := range p.Root().OutTransitions() {
				syms = append(syms, tr.Symbol())
				counts = append(counts, tr.Count())
			}
			assert.Equal(t, tt.wantSymbols, syms)
			assert.Equal(t, tt.wantCounts, counts)

			for _, tr := range p.Root().OutTransitions() {
				ty, ok := tr.Target().Transition("y0")
				require.True(t, ok)
				assert.Equal(t, tr.Count(), ty.Count())
			}
			for _, s := range p.States() {
				assert.True(t, s.Live())
			}
		})
	}
}

func TestMerge_InProcessCriticalRemoval(t *testing.T) {
	p := New(criticalSet(t), WithMergeStrategy(IsolateCriticalAreasMergeInProcess))
	addTimed(t, p, 30, []string{"y", "x"}, []float64{0, 0.5})
	addTimed(t, p, 1, []string{"z", "x"}, []float64{0, 1.5})

	sy := p.Root().Next("y0")
	sz := p.Root().Next("z0")
	p.Merge(sy, sz)

	var syms []string
	for _, tr := range sy.OutTransitions() {
		syms = append(syms, tr.Symbol())
	}
	assert.Equal(t, []string{"x0"}, syms)
	tr, _ := sy.Transition("x0")
	assert.Equal(t, 31, tr.Count())
}

func TestMerge_IsolateKeepsCriticalUntilRemoval(t *testing.T) {
	p := New(criticalSet(t))
	addTimed(t, p, 30, []string{"y", "x"}, []float64{0, 0.5})
	addTimed(t, p, 1, []string{"z", "x"}, []float64{0, 1.5})

	sy := p.Root().Next("y0")
	p.Merge(sy, p.Root().Next("z0"))
	assert.Len(t, sy.OutTransitions(), 2)

	assert.Equal(t, 1, p.RemoveCriticalTransitions())
	assert.Len(t, sy.OutTransitions(), 1)
}

func TestCompact(t *testing.T) {
	p := untimedPTA(t, []string{"a", "b"}, []string{"c", "b"})
	p.Merge(p.Root().Next("a0"), p.Root().Next("c0"))
	p.Compact()

	assert.Len(t, p.States(), 3)
	for _, tr := range p.Transitions() {
		assert.True(t, tr.Exists())
	}
}

func TestWriteGraphviz(t *testing.T) {
	p := untimedPTA(t, []string{"a", "b"}, []string{"a", "b"}, []string{"a"})
	var buf bytes.Buffer
	require.NoError(t, p.WriteGraphviz(&buf))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "digraph PTA {"))
	assert.Contains(t, out, `0 -> 1 [label = "a0(3)"]`)
	assert.Contains(t, out, `1 -> 2 [label = "b0(2)"]`)
	assert.Contains(t, out, "2 [fillcolor = red]")
}

func TestParseMergeStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    MergeStrategy
		wantErr bool
	}{
		{"", IsolateCriticalAreas, false},
		{"isolate", IsolateCriticalAreas, false},
		{"merge_in_process", IsolateCriticalAreasMergeInProcess, false},
		{"greedy", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMergeStrategy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMergeStrategy(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMergeStrategy(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
