package automaton

import (
	"encoding/json"
	"fmt"

	"github.com/rewired-gh/pdtta/internal/distribution"
	"github.com/rewired-gh/pdtta/internal/models"
)

type transitionJSON struct {
	From        int             `json:"from"`
	To          int             `json:"to"`
	Symbol      int             `json:"symbol"`
	Probability float64         `json:"probability"`
	Anomaly     AnomalyType     `json:"anomaly,omitempty"`
	Time        json.RawMessage `json:"time,omitempty"`
}

type finalJSON struct {
	State       int         `json:"state"`
	Probability float64     `json:"probability"`
	Anomaly     AnomalyType `json:"anomaly,omitempty"`
}

type automatonJSON struct {
	Alphabet    *models.Alphabet `json:"alphabet,omitempty"`
	Transitions []transitionJSON `json:"transitions"`
	FinalStates []finalJSON      `json:"final_states"`
}

func (a *PDFA) toJSON() automatonJSON {
	doc := automatonJSON{Alphabet: a.alphabet}
	for _, t := range a.AllTransitions() {
		doc.Transitions = append(doc.Transitions, transitionJSON{
			From: t.From, To: t.To, Symbol: t.Symbol, Probability: t.Probability, Anomaly: t.Anomaly,
		})
	}
	for _, s := range a.States() {
		doc.FinalStates = append(doc.FinalStates, finalJSON{State: s, Probability: a.finalProbs[s], Anomaly: a.abnormalFinal[s]})
	}
	return doc
}

func (a *PDFA) fromJSON(doc automatonJSON) error {
	fresh := NewPDFA(doc.Alphabet)
	fresh.rng = a.rng
	if fresh.rng == nil {
		fresh.rng = NewPDFA(nil).rng
	}
	for _, t := range doc.Transitions {
		if _, err := fresh.AddAbnormalTransition(t.From, t.To, t.Symbol, t.Probability, t.Anomaly); err != nil {
			return fmt.Errorf("failed to restore transition: %w", err)
		}
	}
	for _, f := range doc.FinalStates {
		if err := fresh.AddAbnormalFinalState(f.State, f.Probability, f.Anomaly); err != nil {
			return fmt.Errorf("failed to restore final state: %w", err)
		}
	}
	*a = *fresh
	return nil
}

// MarshalJSON encodes transitions, final probabilities, anomaly tags and the
// alphabet. The random source is not persisted.
func (a *PDFA) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.toJSON())
}

// UnmarshalJSON restores an automaton written by MarshalJSON.
func (a *PDFA) UnmarshalJSON(data []byte) error {
	var doc automatonJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	return a.fromJSON(doc)
}

// MarshalJSON encodes the automaton with each transition's time distribution.
func (a *PDTTA) MarshalJSON() ([]byte, error) {
	doc := a.PDFA.toJSON()
	for i, t := range doc.Transitions {
		d, ok := a.distributions[TransitionKey{From: t.From, To: t.To, Symbol: t.Symbol}]
		if !ok {
			continue
		}
		raw, err := distribution.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("transition %d-%d->%d: %w", t.From, t.Symbol, t.To, err)
		}
		doc.Transitions[i].Time = raw
	}
	return json.Marshal(doc)
}

// UnmarshalJSON restores an automaton written by MarshalJSON. Every
// transition must carry a time distribution.
func (a *PDTTA) UnmarshalJSON(data []byte) error {
	var doc automatonJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	if a.PDFA == nil {
		a.PDFA = NewPDFA(nil)
	}
	if err := a.PDFA.fromJSON(doc); err != nil {
		return err
	}
	a.distributions = make(map[TransitionKey]distribution.Distribution)
	for _, t := range doc.Transitions {
		if len(t.Time) == 0 {
			continue
		}
		d, err := distribution.Unmarshal(t.Time)
		if err != nil {
			return fmt.Errorf("transition %d-%d->%d: %w", t.From, t.Symbol, t.To, err)
		}
		a.distributions[TransitionKey{From: t.From, To: t.To, Symbol: t.Symbol}] = d
	}
	return a.checkDistributions()
}
