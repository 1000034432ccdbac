package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	before := [][]float64{{0, 0, 0}, {1, 1, 1}}
	after := [][]float64{{0, 2, 0}, {1, -3, 2}}

	s := Summarize(Diff(before, after))
	assert.Equal(t, 6, s.Cells)
	assert.Equal(t, 3, s.Changed)
	assert.InDelta(t, -1.0/3, s.Average, 1e-9)
	assert.Equal(t, 2.0, s.MaxIncrease)
	assert.Equal(t, -4.0, s.MaxDecrease)
}

func TestSummarizeUnchanged(t *testing.T) {
	s := Summarize(Diff([][]float64{{1, 2}}, [][]float64{{1, 2}}))
	assert.Equal(t, 0, s.Changed)
	assert.Equal(t, 0.0, s.Average)
}

func TestGetDiffSymbolNoChange(t *testing.T) {
	assert.Contains(t, getDiffSymbol(0, 0), "··")
}
