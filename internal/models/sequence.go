// Package models defines the core domain entities shared by the learner, the
// prefix-tree acceptor and the automaton: labeled event sequences and the
// alphabet that maps event symbols to the integer symbols used by automata.
//
// All models include built-in validation to ensure data integrity throughout
// the application.
package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ClassLabel classifies a sequence as normal or anomalous.
type ClassLabel int

const (
	// Normal marks sequences produced by the modelled process.
	Normal ClassLabel = iota
	// Anomaly marks sequences known to deviate from the modelled process.
	Anomaly
)

// String returns the label name.
func (c ClassLabel) String() string {
	switch c {
	case Normal:
		return "normal"
	case Anomaly:
		return "anomaly"
	default:
		return "label(" + strconv.Itoa(int(c)) + ")"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c ClassLabel) MarshalText() ([]byte, error) {
	switch c {
	case Normal, Anomaly:
		return []byte(c.String()), nil
	default:
		return nil, fmt.Errorf("unknown class label %d", int(c))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *ClassLabel) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "normal", "0", "":
		*c = Normal
	case "anomaly", "1":
		*c = Anomaly
	default:
		return fmt.Errorf("unknown class label %q", string(text))
	}
	return nil
}

// Sequence is an ordered list of event symbols, optionally annotated with one
// time value per event, plus a class label.
//
// Times is nil for untimed sequences. A sequence is treated as immutable once
// labeled; Trim is the only mutating operation.
type Sequence struct {
	Symbols []string   `json:"symbols"`
	Times   []float64  `json:"times,omitempty"`
	Label   ClassLabel `json:"label"`
}

// NewTimedSequence builds a normal sequence from parallel symbol and time slices.
func NewTimedSequence(symbols []string, times []float64) Sequence {
	return Sequence{Symbols: symbols, Times: times, Label: Normal}
}

// NewSequence builds a normal, untimed sequence.
func NewSequence(symbols ...string) Sequence {
	return Sequence{Symbols: symbols, Label: Normal}
}

// Len returns the number of events.
func (s Sequence) Len() int {
	return len(s.Symbols)
}

// Timed reports whether the sequence carries time values.
func (s Sequence) Timed() bool {
	return s.Times != nil
}

// TimeAt returns the time value of the i-th event. The second result is false
// for untimed sequences.
func (s Sequence) TimeAt(i int) (float64, bool) {
	if s.Times == nil {
		return 0, false
	}
	return s.Times[i], true
}

// Trim shortens the sequence to at most n events.
func (s *Sequence) Trim(n int) {
	if n < 0 {
		n = 0
	}
	if n >= len(s.Symbols) {
		return
	}
	s.Symbols = s.Symbols[:n]
	if s.Times != nil {
		s.Times = s.Times[:n]
	}
}

// Validate checks that the sequence is well formed.
func (s *Sequence) Validate() error {
	if s.Times != nil && len(s.Times) != len(s.Symbols) {
		return fmt.Errorf("sequence has %d symbols but %d time values", len(s.Symbols), len(s.Times))
	}
	for i, sym := range s.Symbols {
		if sym == "" {
			return fmt.Errorf("symbol %d must not be empty", i)
		}
		if strings.ContainsAny(sym, " \t\n") {
			return fmt.Errorf("symbol %d (%q) must not contain whitespace", i, sym)
		}
	}
	for i, t := range s.Times {
		if math.IsNaN(t) {
			return fmt.Errorf("time value %d is NaN", i)
		}
	}
	if s.Label != Normal && s.Label != Anomaly {
		return errors.New("label must be normal or anomaly")
	}
	return nil
}

// String renders the sequence as "sym[:time] ...;label".
func (s Sequence) String() string {
	var sb strings.Builder
	for i, sym := range s.Symbols {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(sym)
		if s.Times != nil {
			sb.WriteByte(':')
			sb.WriteString(strconv.FormatFloat(s.Times[i], 'g', -1, 64))
		}
	}
	sb.WriteByte(';')
	sb.WriteString(s.Label.String())
	return sb.String()
}

// Equal reports whether two sequences have the same symbols, times and label.
func (s Sequence) Equal(o Sequence) bool {
	if s.Label != o.Label || len(s.Symbols) != len(o.Symbols) || s.Timed() != o.Timed() {
		return false
	}
	for i := range s.Symbols {
		if s.Symbols[i] != o.Symbols[i] {
			return false
		}
		if s.Times != nil && s.Times[i] != o.Times[i] {
			return false
		}
	}
	return true
}
