// Package distribution fits continuous time distributions to the values
// observed on one automaton transition and samples from them.
//
// The automaton only relies on the Distribution contract ("draw n samples
// given a random source"); fitting is done once by the learner through a
// Fitter. KDE is the implementation shipped here.
package distribution

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
)

// ErrEmptyBucket is returned when fitting is attempted without observations.
var ErrEmptyBucket = errors.New("cannot fit a distribution to an empty bucket")

// Distribution is a sampleable continuous distribution.
type Distribution interface {
	Sample(n int, rng *rand.Rand) []float64
}

// Fitter turns a non-empty bucket of observed values into a Distribution.
type Fitter interface {
	Fit(values []float64) (Distribution, error)
}

// FitterFunc adapts a function to the Fitter interface.
type FitterFunc func(values []float64) (Distribution, error)

// Fit calls f(values).
func (f FitterFunc) Fit(values []float64) (Distribution, error) {
	return f(values)
}

type envelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Marshal encodes a distribution together with its kind so Unmarshal can
// restore the concrete type.
func Marshal(d Distribution) (json.RawMessage, error) {
	var kind string
	switch d.(type) {
	case *KDE:
		kind = "kde"
	default:
		return nil, fmt.Errorf("unsupported distribution type %T", d)
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s distribution: %w", kind, err)
	}
	return json.Marshal(envelope{Kind: kind, Data: data})
}

// Unmarshal decodes a distribution written by Marshal.
func Unmarshal(raw json.RawMessage) (Distribution, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal distribution envelope: %w", err)
	}
	switch env.Kind {
	case "kde":
		var k KDE
		if err := json.Unmarshal(env.Data, &k); err != nil {
			return nil, fmt.Errorf("failed to unmarshal kde: %w", err)
		}
		if err := k.Validate(); err != nil {
			return nil, err
		}
		return &k, nil
	default:
		return nil, fmt.Errorf("unknown distribution kind %q", env.Kind)
	}
}

// Equal reports whether two distributions are structurally identical.
func Equal(a, b Distribution) bool {
	ka, okA := a.(*KDE)
	kb, okB := b.(*KDE)
	if okA && okB {
		return ka.Equal(kb)
	}
	return reflect.DeepEqual(a, b)
}
