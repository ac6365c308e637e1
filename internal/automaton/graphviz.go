package automaton

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// WriteGraphviz writes the automaton as a DOT digraph. Final probabilities
// are part of the state labels. With compressed, parallel transitions between
// the same pair of states are drawn as one edge listing all symbols.
func (a *PDFA) WriteGraphviz(w io.Writer, compressed bool) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "digraph PDFA {")
	fmt.Fprintln(bw, "\trankdir=LR;")
	fmt.Fprintln(bw, "\tnode[style = filled, fillcolor = white, fontsize = 8];")

	for _, s := range a.States() {
		p := a.finalProbs[s]
		attrs := fmt.Sprintf("label=\"%d\\n%.3g\"", s, p)
		if p > 0 {
			attrs += ", shape=doublecircle"
		} else {
			attrs += ", shape=circle"
		}
		if a.abnormalFinal[s] != Normal {
			attrs += ", fillcolor=red"
		}
		fmt.Fprintf(bw, "\t%d [%s];\n", s, attrs)
	}

	if compressed {
		type edge struct{ from, to int }
		labels := make(map[edge][]string)
		abnormal := make(map[edge]bool)
		var order []edge
		for _, t := range a.AllTransitions() {
			e := edge{t.From, t.To}
			if _, ok := labels[e]; !ok {
				order = append(order, e)
			}
			labels[e] = append(labels[e], a.edgeLabel(t))
			if t.Abnormal() {
				abnormal[e] = true
			}
		}
		sort.SliceStable(order, func(i, j int) bool {
			if order[i].from != order[j].from {
				return order[i].from < order[j].from
			}
			return order[i].to < order[j].to
		})
		for _, e := range order {
			attrs := fmt.Sprintf("label=%q", strings.Join(labels[e], "\n"))
			if abnormal[e] {
				attrs += ", color=red"
			}
			fmt.Fprintf(bw, "\t%d -> %d [%s];\n", e.from, e.to, attrs)
		}
	} else {
		for _, t := range a.AllTransitions() {
			attrs := fmt.Sprintf("label=%q", a.edgeLabel(t))
			if t.Abnormal() {
				attrs += ", color=red"
			}
			fmt.Fprintf(bw, "\t%d -> %d [%s];\n", t.From, t.To, attrs)
		}
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func (a *PDFA) edgeLabel(t Transition) string {
	return fmt.Sprintf("%s (%.3g)", a.alphabet.Symbol(t.Symbol), t.Probability)
}
