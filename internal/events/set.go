package events

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Set is the configured collection of events, keyed by name.
type Set struct {
	events map[string]*Event
	// symbols indexes every sub-event by its composite symbol.
	symbols map[string]*SubEvent
}

// NewSet builds a set and rejects duplicate names or colliding sub-event symbols.
func NewSet(evs ...*Event) (*Set, error) {
	s := &Set{
		events:  make(map[string]*Event, len(evs)),
		symbols: make(map[string]*SubEvent),
	}
	for _, e := range evs {
		if _, dup := s.events[e.Name]; dup {
			return nil, fmt.Errorf("duplicate event %q", e.Name)
		}
		s.events[e.Name] = e
		for _, sub := range e.subEvents {
			sym := sub.Symbol()
			if other, dup := s.symbols[sym]; dup {
				return nil, fmt.Errorf("sub-event symbol %q of event %q collides with event %q", sym, e.Name, other.event.Name)
			}
			s.symbols[sym] = sub
		}
	}
	return s, nil
}

// Untimed builds a set with a single whole-domain sub-event per name.
func Untimed(names ...string) (*Set, error) {
	evs := make([]*Event, 0, len(names))
	for _, n := range names {
		e, err := NewEvent(n)
		if err != nil {
			return nil, err
		}
		evs = append(evs, e)
	}
	return NewSet(evs...)
}

// Get returns the event with the given name.
func (s *Set) Get(name string) (*Event, bool) {
	e, ok := s.events[name]
	return e, ok
}

// SubEvent returns the sub-event with the given composite symbol.
func (s *Set) SubEvent(symbol string) (*SubEvent, bool) {
	sub, ok := s.symbols[symbol]
	return sub, ok
}

// Names returns the event names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.events))
	for n := range s.events {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of events.
func (s *Set) Len() int {
	return len(s.events)
}

// fileFormat mirrors the YAML layout of an event definition file:
//
//	events:
//	  - name: login
//	    intervals:
//	      - upper: 10
//	      - upper: 12
//	        critical: true
//	        almost_surely_count_prev: 20
//	        almost_surely_count_next: 20
//	      - {}            # upper omitted: +Inf
type fileFormat struct {
	Events []struct {
		Name      string `yaml:"name"`
		Intervals []struct {
			Upper                 *float64 `yaml:"upper"`
			Critical              bool     `yaml:"critical"`
			AlmostSurelyCountPrev float64  `yaml:"almost_surely_count_prev"`
			AlmostSurelyCountNext float64  `yaml:"almost_surely_count_next"`
		} `yaml:"intervals"`
	} `yaml:"events"`
}

// Parse decodes an event definition document.
func Parse(data []byte) (*Set, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse event definitions: %w", err)
	}

	evs := make([]*Event, 0, len(f.Events))
	for _, fe := range f.Events {
		intervals := make([]Interval, 0, len(fe.Intervals))
		for i, fi := range fe.Intervals {
			upper := math.Inf(1)
			if fi.Upper != nil {
				upper = *fi.Upper
			} else if i != len(fe.Intervals)-1 {
				return nil, fmt.Errorf("event %s: only the last interval may omit its upper bound", fe.Name)
			}
			intervals = append(intervals, Interval{
				Upper:                 upper,
				Critical:              fi.Critical,
				AlmostSurelyCountPrev: fi.AlmostSurelyCountPrev,
				AlmostSurelyCountNext: fi.AlmostSurelyCountNext,
			})
		}
		e, err := NewEvent(fe.Name, intervals...)
		if err != nil {
			return nil, err
		}
		evs = append(evs, e)
	}
	return NewSet(evs...)
}

// LoadFile reads and parses an event definition file.
func LoadFile(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read event definitions: %w", err)
	}
	return Parse(data)
}
