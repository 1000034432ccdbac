package models

import "math"

// Fixed-point scales used by the fuelling tables
const (
	GridSize = 16

	VEScale = 2048 // 100 % volumetric efficiency
	VEShift = 11

	TrimScale = 512 // 100 % trim
	TrimShift = 9

	KfScale = 64 // alignment gain 1.0
	KfShift = 6

	WeightScale = 2048 // full-scale corner weight
	WeightShift = 11
)

// Grid is one calibration axis: strictly increasing points and the span of
// each segment. Spans[i] = Points[i+1]-Points[i]; the last span repeats the
// previous one.
type Grid struct {
	Points [GridSize]int16
	Spans  [GridSize]int16
}

// NewGrid builds a grid and precomputes its segment spans
func NewGrid(points [GridSize]int16) Grid {
	g := Grid{Points: points}
	for i := 0; i < GridSize-1; i++ {
		g.Spans[i] = points[i+1] - points[i]
	}
	g.Spans[GridSize-1] = g.Spans[GridSize-2]
	return g
}

// Increasing reports whether every point is above the previous one
func (g Grid) Increasing() bool {
	for i := 1; i < GridSize; i++ {
		if g.Points[i] <= g.Points[i-1] {
			return false
		}
	}
	return true
}

// SpansFit reports whether every segment span fits in an int16
func (g Grid) SpansFit() bool {
	for i := 1; i < GridSize; i++ {
		if int32(g.Points[i])-int32(g.Points[i-1]) > math.MaxInt16 {
			return false
		}
	}
	return true
}

// First returns the lowest grid point
func (g Grid) First() int16 { return g.Points[0] }

// Last returns the highest grid point
func (g Grid) Last() int16 { return g.Points[GridSize-1] }

// VETable is the base volumetric efficiency map, indexed [load][rpm]
type VETable [GridSize][GridSize]uint16

// At returns the cell at the given load and RPM index
func (t *VETable) At(load, rpm int) uint16 { return t[load][rpm] }

// Set stores a cell
func (t *VETable) Set(load, rpm int, v uint16) { t[load][rpm] = v }

// Fill sets every cell to v
func (t *VETable) Fill(v uint16) {
	for l := range t {
		for r := range t[l] {
			t[l][r] = v
		}
	}
}

// ToMap converts the table to display units
func (t *VETable) ToMap() *ECUMap {
	cfg := MapConfigs[MapVE]
	data := make([][]float64, GridSize)
	for l := 0; l < GridSize; l++ {
		data[l] = make([]float64, GridSize)
		for r := 0; r < GridSize; r++ {
			data[l][r] = float64(t[l][r])*cfg.Scale + cfg.Offset2
		}
	}
	return &ECUMap{Config: cfg, Data: data}
}

// TrimTable holds learned per-cell corrections, indexed [load][rpm], scale 512 = 100 %
type TrimTable [GridSize][GridSize]int16

// At returns the cell at the given load and RPM index
func (t *TrimTable) At(load, rpm int) int16 { return t[load][rpm] }

// Set stores a cell
func (t *TrimTable) Set(load, rpm int, v int16) { t[load][rpm] = v }

// Reset zeroes every cell
func (t *TrimTable) Reset() { *t = TrimTable{} }

// ToMap converts the table of the given channel to display units
func (t *TrimTable) ToMap(channel int) *ECUMap {
	cfg := TrimMapConfig(channel)
	data := make([][]float64, GridSize)
	for l := 0; l < GridSize; l++ {
		data[l] = make([]float64, GridSize)
		for r := 0; r < GridSize; r++ {
			data[l][r] = float64(t[l][r])*cfg.Scale + cfg.Offset2
		}
	}
	return &ECUMap{Config: cfg, Data: data}
}

// OperatingPoint is an (RPM, load) pair. Load is manifold pressure in the
// same units as the load grid.
type OperatingPoint struct {
	RPM  int16
	Load int16
}
