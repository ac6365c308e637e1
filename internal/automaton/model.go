package automaton

import (
	"io"
	"math/rand"

	"github.com/rewired-gh/pdtta/internal/models"
)

// Model is the surface shared by *PDFA and *PDTTA once training is done.
type Model interface {
	States() []int
	NumTransitions() int
	Alphabet() *models.Alphabet
	IsConsistent() bool
	SetRandom(rng *rand.Rand)
	SampleSequences(n int) ([]models.Sequence, error)
	WriteTreba(w io.Writer) error
	WriteGraphviz(w io.Writer, compressed bool) error
}

var (
	_ Model = (*PDFA)(nil)
	_ Model = (*PDTTA)(nil)
)
