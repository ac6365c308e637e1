package main

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/pdtta/internal/automaton"
	"github.com/rewired-gh/pdtta/internal/learner"
)

// printAutomaton displays the size of an automaton
func printAutomaton(title string, a *automaton.PDFA) {
	fmt.Printf("\n  %s:\n", title)
	fmt.Printf("    States: %d\n", len(a.States()))
	fmt.Printf("    Transitions: %d\n", a.NumTransitions())
	fmt.Printf("    Consistent: %v\n", a.IsConsistent())
}

// printTrainingStats displays the learner statistics
func printTrainingStats(s learner.Stats) {
	fmt.Printf("\n  Sequences: %d (omitted: %d)\n", s.Sequences, s.OmittedSequences)
	fmt.Printf("  Pruning threshold: %.4f\n", s.Threshold)
	fmt.Printf("  Pass 1: %d states, %d transitions, %d pruned\n", s.RawStates, s.RawTransitions, s.PrunedTransitions)
	fmt.Printf("  Pass 2: %d states, %d transitions\n", s.States, s.Transitions)
}

// printSummary displays the drift statistics
func printSummary(s DriftSummary) {
	fmt.Printf("\n  Compared probabilities: %d\n", s.Compared)
	fmt.Printf("  Missing transitions: %d\n", s.Missing)
	fmt.Printf("  Extra transitions: %d\n", s.Extra)
	fmt.Printf("  Mean |diff|:   %.5f\n", s.MeanAbsDiff)
	fmt.Printf("  Median |diff|: %.5f\n", s.MedianAbsDiff)
	fmt.Printf("  P95 |diff|:    %.5f\n", s.P95AbsDiff)
	fmt.Printf("  Max |diff|:    %.5f\n", s.MaxAbsDiff)
}

// printDriftTable displays the largest per-transition differences
func printDriftTable(drifts []TransitionDrift) {
	fmt.Printf("\n  %-6s %-8s %-10s %-10s %-10s %-10s\n", "Ref", "Learned", "Symbol", "Ref p", "Learned p", "|diff|")
	fmt.Printf("  %s\n", strings.Repeat("-", 62))
	for _, d := range drifts {
		fmt.Printf("  %-6d %-8d %-10s %-10.5f %-10.5f %-10.5f\n",
			d.RefState, d.LearnedState, truncate(d.Symbol, 10), d.RefProb, d.LearnedProb, d.Diff())
	}
}

// printMissing lists reference transitions the learner never produced
func printMissing(drifts []TransitionDrift) {
	first := true
	for _, d := range drifts {
		if !d.Missing {
			continue
		}
		if first {
			fmt.Println("\n  Missing reference transitions (usually rare paths below the pruning threshold):")
			first = false
		}
		fmt.Printf("    state %d --%s--> p=%.5f\n", d.RefState, d.Symbol, d.RefProb)
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
