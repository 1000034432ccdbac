package ltft

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tosih/secu3-ltft/pkg/models"
)

func TestApplyTrimClampsExtremes(t *testing.T) {
	for _, delta := range []int32{32767, -32767, 1 << 20, -(1 << 20), 78, -73} {
		var trim models.TrimTable
		c := Correction{
			Quad:      Quad{X1: 2, X2: 3, Y1: 4, Y2: 5, Weights: [4]int32{512, 512, 512, 512}},
			TrimDelta: [4]int32{delta, delta, delta, delta},
		}
		n := ApplyTrim(&trim, &c, -72, 77)
		assert.Equal(t, 4, n)
		for i := 0; i < 4; i++ {
			l, r := c.Quad.Cell(i)
			v := trim.At(l, r)
			assert.True(t, v >= -72 && v <= 77, "delta %d corner %d -> %d", delta, i, v)
		}
	}
}

func TestApplyTrimAccumulates(t *testing.T) {
	var trim models.TrimTable
	trim.Set(0, 0, 70)
	c := Correction{
		Quad:      Quad{X1: 0, X2: 1, Y1: 0, Y2: 1, Weights: [4]int32{1024, 0, 1024, 0}},
		TrimDelta: [4]int32{10, 10, -5, 10},
	}
	n := ApplyTrim(&trim, &c, -72, 77)

	assert.Equal(t, 2, n)
	assert.Equal(t, int16(77), trim.At(0, 0), "clamped to max")
	assert.Equal(t, int16(0), trim.At(1, 0), "zero weight corner untouched")
	assert.Equal(t, int16(-5), trim.At(1, 1))
	assert.Equal(t, int16(0), trim.At(0, 1), "zero weight corner untouched")
}

func TestApplyTrimLeavesOtherCells(t *testing.T) {
	var trim models.TrimTable
	c := Correction{
		Quad:      Quad{X1: 7, X2: 8, Y1: 7, Y2: 8, Weights: [4]int32{512, 512, 512, 512}},
		TrimDelta: [4]int32{5, 5, 5, 5},
	}
	ApplyTrim(&trim, &c, -72, 77)

	touched := 0
	for l := 0; l < models.GridSize; l++ {
		for r := 0; r < models.GridSize; r++ {
			if trim.At(l, r) != 0 {
				touched++
			}
		}
	}
	assert.Equal(t, 4, touched)
}
