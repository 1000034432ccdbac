package ltft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosih/secu3-ltft/pkg/config"
	"github.com/tosih/secu3-ltft/pkg/models"
)

func axes() (models.Grid, models.Grid) {
	cal := config.DefaultCalibration()
	return cal.RPMAxis(), cal.LoadAxis()
}

func TestLocateAlwaysBrackets(t *testing.T) {
	rpm, load := axes()
	for _, g := range []models.Grid{rpm, load} {
		for v := int32(g.First()) - 500; v <= int32(g.Last())+500; v++ {
			lo, hi, n := Locate(g, int16(v))
			require.True(t, lo < hi, "v=%d lo=%d hi=%d", v, lo, hi)
			require.True(t, lo >= 0 && hi <= models.GridSize-1, "v=%d lo=%d hi=%d", v, lo, hi)
			require.True(t, g.Points[lo] < n && n < g.Points[hi], "v=%d nudged=%d", v, n)
		}
	}
}

func TestLocateBoundaries(t *testing.T) {
	rpm, _ := axes()
	tests := []struct {
		name       string
		v          int16
		wantLo     int
		wantHi     int
		wantNudged int16
	}{
		{"far below grid", 0, 0, 1, 901},
		{"at lowest point", 900, 0, 1, 901},
		{"at highest point", 6000, 14, 15, 5999},
		{"above grid", 7500, 14, 15, 5999},
		{"on interior point", 1100, 0, 1, 1099},
		{"inside segment", 2100, 5, 6, 2100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, n := Locate(rpm, tt.v)
			assert.Equal(t, tt.wantLo, lo)
			assert.Equal(t, tt.wantHi, hi)
			assert.Equal(t, tt.wantNudged, n)
		})
	}
}

func TestCornerWeightsSumToFullScale(t *testing.T) {
	rpm, load := axes()
	for r := int32(rpm.First()) - 10; r <= int32(rpm.Last())+10; r += 7 {
		for l := int32(load.First()) - 10; l <= int32(load.Last())+10; l += 37 {
			q := LocateQuad(rpm, load, models.OperatingPoint{RPM: int16(r), Load: int16(l)})
			var sum int32
			for i, w := range q.Weights {
				require.GreaterOrEqual(t, w, int32(0), "corner %d at %d/%d", i, r, l)
				sum += w
			}
			require.InDelta(t, models.WeightScale, sum, 1, "at %d/%d", r, l)
		}
	}
}

func TestCornerWeightsCentered(t *testing.T) {
	rpm, load := axes()
	q := LocateQuad(rpm, load, models.OperatingPoint{RPM: 1000, Load: 1600})
	assert.Equal(t, [4]int32{512, 512, 512, 512}, q.Weights)
	assert.Equal(t, 0, q.X1)
	assert.Equal(t, 1, q.X2)
	assert.Equal(t, 0, q.Y1)
	assert.Equal(t, 1, q.Y2)
}

func TestCornerWeightsOnGridLineLeavesCornerUntouched(t *testing.T) {
	rpm, load := axes()
	q := LocateQuad(rpm, load, models.OperatingPoint{RPM: 1100, Load: 1920})
	assert.Equal(t, int32(0), q.Weights[0])
	assert.Greater(t, q.Weights[2], int32(2000), "the grid node itself takes almost everything")
}

func TestQuadCellOrder(t *testing.T) {
	q := Quad{X1: 3, X2: 4, Y1: 7, Y2: 8}
	cells := [4][2]int{}
	for i := 0; i < 4; i++ {
		l, r := q.Cell(i)
		cells[i] = [2]int{l, r}
	}
	assert.Equal(t, [4][2]int{{7, 3}, {8, 3}, {8, 4}, {7, 4}}, cells)
}

func TestHitIndex(t *testing.T) {
	rpm, _ := axes()
	// band 64/256 of a 200 rpm span is 50 rpm
	i, ok := hitIndex(rpm, 1140, 64)
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = hitIndex(rpm, 1200, 64)
	assert.False(t, ok)

	i, ok = hitIndex(rpm, 6000, 0)
	assert.True(t, ok)
	assert.Equal(t, 15, i)
}

func TestHitIndexUsesSpanOnEachSide(t *testing.T) {
	var points [models.GridSize]int16
	for i := range points {
		points[i] = int16(i * 100)
		if i > 7 {
			points[i] = int16(700 + (i-7)*400)
		}
	}
	g := models.NewGrid(points)

	// node 7 at 700: 100 to the left, 400 to the right, band 1/4
	i, ok := hitIndex(g, 680, 64)
	assert.True(t, ok)
	assert.Equal(t, 7, i)

	_, ok = hitIndex(g, 660, 64)
	assert.False(t, ok, "left band is a quarter of the narrow segment")

	i, ok = hitIndex(g, 790, 64)
	assert.True(t, ok)
	assert.Equal(t, 7, i)

	_, ok = hitIndex(g, 810, 64)
	assert.False(t, ok)
}
