package automaton

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseProbability(s string) (float64, error) {
	// some exporters write a decimal comma
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

// ParseTreba reads an automaton in Treba text format. Each non-blank line is
// either "from to symbol probability" (a transition) or "state probability"
// (a final probability). States referenced only by transitions get final
// probability 0.
func ParseTreba(r io.Reader) (*PDFA, error) {
	a := NewPDFA(nil)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		switch len(fields) {
		case 0:
			continue
		case 4:
			from, err1 := strconv.Atoi(fields[0])
			to, err2 := strconv.Atoi(fields[1])
			sym, err3 := strconv.Atoi(fields[2])
			p, err4 := parseProbability(fields[3])
			if err := firstErr(err1, err2, err3, err4); err != nil {
				return nil, fmt.Errorf("%w %d: %v", ErrMalformedLine, lineNo, err)
			}
			if _, err := a.AddTransition(from, to, sym, p); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		case 2:
			state, err1 := strconv.Atoi(fields[0])
			p, err2 := parseProbability(fields[1])
			if err := firstErr(err1, err2); err != nil {
				return nil, fmt.Errorf("%w %d: %v", ErrMalformedLine, lineNo, err)
			}
			if err := a.AddFinalState(state, p); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
		default:
			return nil, fmt.Errorf("%w %d: expected 2 or 4 fields, got %d", ErrMalformedLine, lineNo, len(fields))
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read automaton: %w", err)
	}
	return a, nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// WriteTreba writes the automaton in Treba text format: transitions ordered by
// source and symbol, then one final-probability line per state. Anomaly tags
// and the alphabet are not part of the format.
func (a *PDFA) WriteTreba(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, t := range a.AllTransitions() {
		if _, err := fmt.Fprintf(bw, "%d %d %d %s\n", t.From, t.To, t.Symbol, formatFloat(t.Probability)); err != nil {
			return err
		}
	}
	for _, s := range a.States() {
		if _, err := fmt.Fprintf(bw, "%d %s\n", s, formatFloat(a.finalProbs[s])); err != nil {
			return err
		}
	}
	return bw.Flush()
}
