package automaton

import (
	"errors"
	"fmt"
	"strings"
)

// StopSymbol labels the virtual transition that ends a sequence in a state.
// Its probability is the state's final probability.
const StopSymbol = -1

// StartState is the state every sampled or accepted sequence starts in.
const StartState = 0

// MaxSequenceLength bounds sampled sequences.
const MaxSequenceLength = 1000

var (
	// ErrInvariantViolation marks a broken model invariant. Callers should treat
	// the model as unusable.
	ErrInvariantViolation = errors.New("automaton invariant violated")
	// ErrSequenceTooLong is returned when sampling exceeds MaxSequenceLength.
	ErrSequenceTooLong = errors.New("sampled sequence exceeds maximum length")
	// ErrMalformedLine is returned by ParseTreba for lines it cannot read.
	ErrMalformedLine = errors.New("malformed line")
	// ErrNondeterministic is returned when a second transition with the same
	// source and symbol but a different target is added.
	ErrNondeterministic = errors.New("nondeterministic transition")
	// ErrInvalidProbability is returned for probabilities outside [0, 1].
	ErrInvalidProbability = errors.New("invalid probability")
)

// InvariantError describes an invariant violation found in one state.
type InvariantError struct {
	Op     string
	State  int
	Detail string
	Err    error
}

func (e *InvariantError) Error() string {
	msg := fmt.Sprintf("%s: state %d: %s", e.Op, e.State, e.Detail)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both ErrInvariantViolation and the specific cause.
func (e *InvariantError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvariantViolation}
	}
	return []error{ErrInvariantViolation, e.Err}
}

// AnomalyType tags transitions and final states that were inserted for fault
// injection. The zero value is a normal element.
type AnomalyType int

const (
	Normal AnomalyType = iota
	AnomalyType1
	AnomalyType2
	AnomalyType3
	AnomalyType4
	AnomalyType5
)

func (a AnomalyType) String() string {
	if a == Normal {
		return "normal"
	}
	return fmt.Sprintf("anomaly%d", int(a))
}

// ParseAnomalyType reverses AnomalyType.String.
func ParseAnomalyType(s string) (AnomalyType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "normal" {
		return Normal, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "anomaly%d", &n); err != nil || n < 1 || n > int(AnomalyType5) {
		return Normal, fmt.Errorf("unknown anomaly type %q", s)
	}
	return AnomalyType(n), nil
}

// TransitionKey identifies a transition independent of its probability.
type TransitionKey struct {
	From   int `json:"from"`
	To     int `json:"to"`
	Symbol int `json:"symbol"`
}

func (k TransitionKey) String() string {
	return fmt.Sprintf("(%d)-%d->(%d)", k.From, k.Symbol, k.To)
}

// Transition is a probabilistic edge. A stop transition has Symbol ==
// StopSymbol and To == From.
type Transition struct {
	From        int
	To          int
	Symbol      int
	Probability float64
	Anomaly     AnomalyType
}

// IsStop reports whether t is the virtual stop transition.
func (t Transition) IsStop() bool {
	return t.Symbol == StopSymbol
}

// Abnormal reports whether t carries an anomaly tag.
func (t Transition) Abnormal() bool {
	return t.Anomaly != Normal
}

// Key returns the identity of t.
func (t Transition) Key() TransitionKey {
	return TransitionKey{From: t.From, To: t.To, Symbol: t.Symbol}
}

func (t Transition) String() string {
	if t.IsStop() {
		return fmt.Sprintf("(%d)-stop[%g]", t.From, t.Probability)
	}
	s := fmt.Sprintf("(%d)-%d[%g]->(%d)", t.From, t.Symbol, t.Probability, t.To)
	if t.Abnormal() {
		s += " " + t.Anomaly.String()
	}
	return s
}
