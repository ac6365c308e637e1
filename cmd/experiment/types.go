package main

// TransitionDrift compares one reference transition with its learned counterpart.
// A Symbol of "$" stands for the final (stop) probability.
type TransitionDrift struct {
	RefState     int
	LearnedState int
	Symbol       string
	RefProb      float64
	LearnedProb  float64
	Missing      bool
}

// Diff returns the absolute probability difference.
func (d TransitionDrift) Diff() float64 {
	if d.RefProb > d.LearnedProb {
		return d.RefProb - d.LearnedProb
	}
	return d.LearnedProb - d.RefProb
}

// DriftSummary holds aggregate statistics over all compared transitions
type DriftSummary struct {
	Compared      int
	Missing       int
	Extra         int
	MeanAbsDiff   float64
	MedianAbsDiff float64
	P95AbsDiff    float64
	MaxAbsDiff    float64
}
