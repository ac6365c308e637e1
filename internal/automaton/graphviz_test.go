package automaton

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/pdtta/internal/models"
)

func edgeLine(t *testing.T, dot, prefix string) string {
	t.Helper()
	for _, line := range strings.Split(dot, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), prefix) {
			return line
		}
	}
	t.Fatalf("no edge %q in:\n%s", prefix, dot)
	return ""
}

func TestWriteGraphviz_CompressedAbnormal(t *testing.T) {
	a := NewPDFA(models.NewAlphabet("a", "b", "c"))
	_, err := a.AddTransition(0, 1, 0, 0.4)
	require.NoError(t, err)
	_, err = a.AddAbnormalTransition(0, 1, 1, 0.2, AnomalyType1)
	require.NoError(t, err)
	_, err = a.AddTransition(0, 2, 2, 0.4)
	require.NoError(t, err)
	require.NoError(t, a.AddFinalState(1, 1.0))
	require.NoError(t, a.AddFinalState(2, 1.0))

	var plain, compressed bytes.Buffer
	require.NoError(t, a.WriteGraphviz(&plain, false))
	require.NoError(t, a.WriteGraphviz(&compressed, true))

	grouped := edgeLine(t, compressed.String(), "0 -> 1 ")
	assert.Contains(t, grouped, "color=red", "a grouped edge with an abnormal member is red")
	assert.Contains(t, grouped, `a (0.4)\nb (0.2)`)
	assert.NotContains(t, edgeLine(t, compressed.String(), "0 -> 2 "), "color=red")

	assert.Equal(t, 1, strings.Count(plain.String(), "color=red"))
	assert.Equal(t, 1, strings.Count(compressed.String(), "color=red"))
}
