package models

import (
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceValidate(t *testing.T) {
	tests := []struct {
		name    string
		seq     Sequence
		wantErr bool
	}{
		{"valid untimed", NewSequence("a", "b"), false},
		{"valid timed", NewTimedSequence([]string{"a"}, []float64{1.5}), false},
		{"empty", NewSequence(), false},
		{"length mismatch", NewTimedSequence([]string{"a", "b"}, []float64{1}), true},
		{"empty symbol", NewSequence("a", ""), true},
		{"whitespace symbol", NewSequence("a b"), true},
		{"nan time", NewTimedSequence([]string{"a"}, []float64{math.NaN()}), true},
		{"bad label", Sequence{Symbols: []string{"a"}, Label: ClassLabel(7)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.seq.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSequenceTrimAndString(t *testing.T) {
	s := NewTimedSequence([]string{"a", "b", "c"}, []float64{1, 2.5, 3})
	assert.Equal(t, "a:1 b:2.5 c:3;normal", s.String())

	s.Trim(5)
	assert.Equal(t, 3, s.Len())
	s.Trim(2)
	assert.Equal(t, []string{"a", "b"}, s.Symbols)
	assert.Equal(t, []float64{1, 2.5}, s.Times)
	s.Trim(-1)
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Timed())

	u := NewSequence("x", "y")
	u.Label = Anomaly
	assert.Equal(t, "x y;anomaly", u.String())
	_, ok := u.TimeAt(0)
	assert.False(t, ok)
}

func TestSequenceEqual(t *testing.T) {
	a := NewTimedSequence([]string{"a"}, []float64{1})
	assert.True(t, a.Equal(NewTimedSequence([]string{"a"}, []float64{1})))
	assert.False(t, a.Equal(NewTimedSequence([]string{"a"}, []float64{2})))
	assert.False(t, a.Equal(NewSequence("a")))

	b := NewSequence("a")
	b.Label = Anomaly
	assert.False(t, NewSequence("a").Equal(b))
}

func TestClassLabelText(t *testing.T) {
	var seq Sequence
	require.NoError(t, json.Unmarshal([]byte(`{"symbols":["a"],"label":"anomaly"}`), &seq))
	assert.Equal(t, Anomaly, seq.Label)

	data, err := json.Marshal(NewSequence("a"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbols":["a"],"label":"normal"}`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`{"label":"weird"}`), &seq))
	_, err = ClassLabel(3).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "label(3)", ClassLabel(3).String())
}

func TestAlphabet(t *testing.T) {
	a := NewAlphabet("b", "a", "b")
	assert.Equal(t, 2, a.Size())
	assert.Equal(t, []string{"b", "a"}, a.Symbols())
	assert.Equal(t, 2, a.Add("c"))
	assert.Equal(t, "a", a.Symbol(1))
	assert.Equal(t, "9", a.Symbol(9))

	enc, err := a.Encode(NewSequence("a", "c", "b"))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 0}, enc)
	_, err = a.Encode(NewSequence("z"))
	assert.Error(t, err)

	var none *Alphabet
	i, ok := none.Lookup("4")
	assert.True(t, ok)
	assert.Equal(t, 4, i)
	_, ok = none.Lookup("x")
	assert.False(t, ok)
	assert.Equal(t, "3", none.Symbol(3))
	assert.True(t, none.Equal(NewAlphabet()))
}

func TestAlphabetJSON(t *testing.T) {
	a := NewAlphabet("x", "y")
	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `["x","y"]`, string(data))

	var b Alphabet
	require.NoError(t, json.Unmarshal(data, &b))
	assert.True(t, a.Equal(&b))

	assert.Error(t, json.Unmarshal([]byte(`["x","x"]`), &b))
}

func TestLoadSaveSequences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "seqs.json")
	seqs := []Sequence{
		NewTimedSequence([]string{"a", "b"}, []float64{1, 2}),
		NewSequence("c"),
	}
	require.NoError(t, SaveSequences(path, seqs))

	loaded, err := LoadSequences(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for i := range seqs {
		assert.True(t, seqs[i].Equal(loaded[i]), "sequence %d", i)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, SaveSequences(bad, []Sequence{NewSequence("a", "")}))
	_, err = LoadSequences(bad)
	assert.Error(t, err)

	_, err = LoadSequences(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
