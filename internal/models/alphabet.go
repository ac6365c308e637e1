package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Alphabet maps event symbols to the dense integer symbols used by automata.
// Indexes are assigned in order of first appearance and never change.
type Alphabet struct {
	symbols []string
	index   map[string]int
}

// NewAlphabet creates an alphabet pre-populated with symbols.
func NewAlphabet(symbols ...string) *Alphabet {
	a := &Alphabet{index: make(map[string]int)}
	for _, s := range symbols {
		a.Add(s)
	}
	return a
}

// Add returns the index of sym, assigning the next free index if needed.
func (a *Alphabet) Add(sym string) int {
	if i, ok := a.index[sym]; ok {
		return i
	}
	i := len(a.symbols)
	a.symbols = append(a.symbols, sym)
	a.index[sym] = i
	return i
}

// Lookup returns the index of sym.
func (a *Alphabet) Lookup(sym string) (int, bool) {
	if a == nil {
		n, err := strconv.Atoi(sym)
		return n, err == nil
	}
	i, ok := a.index[sym]
	return i, ok
}

// Symbol returns the symbol for index i. A nil alphabet, or an index outside
// of it, renders the integer itself.
func (a *Alphabet) Symbol(i int) string {
	if a == nil || i < 0 || i >= len(a.symbols) {
		return strconv.Itoa(i)
	}
	return a.symbols[i]
}

// Size returns the number of symbols.
func (a *Alphabet) Size() int {
	if a == nil {
		return 0
	}
	return len(a.symbols)
}

// Symbols returns a copy of all symbols in index order.
func (a *Alphabet) Symbols() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.symbols))
	copy(out, a.symbols)
	return out
}

// Encode maps every symbol of seq to its index.
func (a *Alphabet) Encode(seq Sequence) ([]int, error) {
	out := make([]int, len(seq.Symbols))
	for i, sym := range seq.Symbols {
		idx, ok := a.Lookup(sym)
		if !ok {
			return nil, fmt.Errorf("symbol %q not in alphabet", sym)
		}
		out[i] = idx
	}
	return out, nil
}

// Equal reports whether both alphabets hold the same symbols in the same order.
func (a *Alphabet) Equal(o *Alphabet) bool {
	if a.Size() != o.Size() {
		return false
	}
	for i := 0; i < a.Size(); i++ {
		if a.symbols[i] != o.symbols[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the alphabet as its ordered symbol list.
func (a *Alphabet) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Symbols())
}

// UnmarshalJSON restores an alphabet from its ordered symbol list.
func (a *Alphabet) UnmarshalJSON(data []byte) error {
	var symbols []string
	if err := json.Unmarshal(data, &symbols); err != nil {
		return err
	}
	*a = *NewAlphabet()
	for _, s := range symbols {
		if _, dup := a.index[s]; dup {
			return fmt.Errorf("duplicate symbol %q in alphabet", s)
		}
		a.Add(s)
	}
	return nil
}
