// Package events defines discrete event symbols and the partition of each
// event's time domain into ordered sub-event intervals ("time buckets").
//
// Every event covers the whole real line: the first interval starts at -Inf
// and the last one ends at +Inf, so looking up the sub-event of a time value
// always yields exactly one match. A sub-event may be a critical area, an
// ambiguous region between two regular intervals that the merge engine
// resolves by statistical majority.
package events

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ErrNotTotal is returned when interval bounds do not cover the time domain.
var ErrNotTotal = errors.New("intervals must end at +Inf")

// SubEvent is one half-open time interval [Lower, Upper) of an event.
type SubEvent struct {
	event *Event
	index int

	Lower float64
	Upper float64

	// Critical marks an ambiguous boundary region between the previous and
	// next sub-events.
	Critical bool
	// AlmostSurelyCountPrev is the transition count at which an observation
	// on the previous side is treated as certainly present.
	AlmostSurelyCountPrev float64
	// AlmostSurelyCountNext is the same threshold for the next side.
	AlmostSurelyCountNext float64
}

// Event returns the owning event.
func (s *SubEvent) Event() *Event {
	return s.event
}

// Index returns the position of the interval within its event.
func (s *SubEvent) Index() int {
	return s.index
}

// Symbol returns the composite symbol: event name followed by interval index.
func (s *SubEvent) Symbol() string {
	return s.event.Name + strconv.Itoa(s.index)
}

// Contains reports whether t falls inside [Lower, Upper).
func (s *SubEvent) Contains(t float64) bool {
	if math.IsInf(s.Upper, 1) {
		return t >= s.Lower
	}
	return t >= s.Lower && t < s.Upper
}

// Previous returns the preceding sub-event, or nil for the first one.
func (s *SubEvent) Previous() *SubEvent {
	if s.index == 0 {
		return nil
	}
	return s.event.subEvents[s.index-1]
}

// Next returns the following sub-event, or nil for the last one.
func (s *SubEvent) Next() *SubEvent {
	if s.index+1 >= len(s.event.subEvents) {
		return nil
	}
	return s.event.subEvents[s.index+1]
}

func (s *SubEvent) String() string {
	if s.Critical {
		return fmt.Sprintf("%s[%g,%g)!", s.Symbol(), s.Lower, s.Upper)
	}
	return fmt.Sprintf("%s[%g,%g)", s.Symbol(), s.Lower, s.Upper)
}

// Interval describes one sub-event by its exclusive upper bound.
type Interval struct {
	Upper                 float64
	Critical              bool
	AlmostSurelyCountPrev float64
	AlmostSurelyCountNext float64
}

// Event is a discrete symbol with an ordered set of sub-events.
type Event struct {
	Name      string
	subEvents []*SubEvent
}

// NewEvent builds an event from intervals given in ascending order of their
// upper bound. The last upper bound must be +Inf. Without intervals the event
// has a single sub-event covering the whole time domain.
func NewEvent(name string, intervals ...Interval) (*Event, error) {
	if name == "" {
		return nil, errors.New("event name must not be empty")
	}
	if len(intervals) == 0 {
		intervals = []Interval{{Upper: math.Inf(1)}}
	}

	e := &Event{Name: name}
	lower := math.Inf(-1)
	for i, iv := range intervals {
		if math.IsNaN(iv.Upper) || iv.Upper <= lower {
			return nil, fmt.Errorf("event %s: interval %d upper bound %g must exceed %g", name, i, iv.Upper, lower)
		}
		if iv.Critical {
			if i == 0 || i == len(intervals)-1 {
				return nil, fmt.Errorf("event %s: critical interval %d needs neighbours on both sides", name, i)
			}
			if intervals[i-1].Critical {
				return nil, fmt.Errorf("event %s: critical intervals %d and %d are adjacent", name, i-1, i)
			}
			if iv.AlmostSurelyCountPrev < 0 || iv.AlmostSurelyCountNext < 0 {
				return nil, fmt.Errorf("event %s: almost surely counts of interval %d must not be negative", name, i)
			}
		}
		e.subEvents = append(e.subEvents, &SubEvent{
			event:                 e,
			index:                 i,
			Lower:                 lower,
			Upper:                 iv.Upper,
			Critical:              iv.Critical,
			AlmostSurelyCountPrev: iv.AlmostSurelyCountPrev,
			AlmostSurelyCountNext: iv.AlmostSurelyCountNext,
		})
		lower = iv.Upper
	}
	if !math.IsInf(lower, 1) {
		return nil, fmt.Errorf("event %s: %w", name, ErrNotTotal)
	}
	return e, nil
}

// MustEvent is like NewEvent but panics on error. Intended for static tables and tests.
func MustEvent(name string, intervals ...Interval) *Event {
	e, err := NewEvent(name, intervals...)
	if err != nil {
		panic(err)
	}
	return e
}

// SubEvents returns the sub-events in interval order.
func (e *Event) SubEvents() []*SubEvent {
	return e.subEvents
}

// SubEventByTime returns the unique sub-event whose interval contains t.
// NaN maps to the first sub-event.
func (e *Event) SubEventByTime(t float64) *SubEvent {
	if math.IsNaN(t) {
		return e.subEvents[0]
	}
	i := sort.Search(len(e.subEvents), func(i int) bool {
		return t < e.subEvents[i].Upper
	})
	if i == len(e.subEvents) {
		// t == +Inf
		i = len(e.subEvents) - 1
	}
	return e.subEvents[i]
}

// SubEventBySymbol returns the sub-event with the given composite symbol.
func (e *Event) SubEventBySymbol(symbol string) (*SubEvent, bool) {
	for _, s := range e.subEvents {
		if s.Symbol() == symbol {
			return s, true
		}
	}
	return nil, false
}
