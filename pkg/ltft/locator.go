package ltft

import (
	"github.com/tosih/secu3-ltft/pkg/fixedpoint"
	"github.com/tosih/secu3-ltft/pkg/models"
)

// Quad is the 2x2 block of cells around an operating point. Corner order:
//
//	1 2
//	0 3
//
// 0 = (X1, Y1), 1 = (X1, Y2), 2 = (X2, Y2), 3 = (X2, Y1). X indexes RPM,
// Y indexes load.
type Quad struct {
	X1, X2 int
	Y1, Y2 int

	// Point is the operating point after nudging into the quad.
	Point models.OperatingPoint

	// Weights are the bilinear shares of each corner, summing to WeightScale.
	Weights [4]int32
}

// Cell returns the (load, rpm) table indexes of corner i.
func (q Quad) Cell(i int) (load, rpm int) {
	switch i {
	case 0:
		return q.Y1, q.X1
	case 1:
		return q.Y2, q.X1
	case 2:
		return q.Y2, q.X2
	default:
		return q.Y1, q.X2
	}
}

// Nudge moves v strictly inside the grid and off interior grid points, so
// that a bracketing interval of non-zero width always exists.
func Nudge(g models.Grid, v int16) int16 {
	if v <= g.First() {
		return g.First() + 1
	}
	if v >= g.Last() {
		return g.Last() - 1
	}
	for i := 1; i < models.GridSize-1; i++ {
		if g.Points[i] == v {
			return v - 1
		}
	}
	return v
}

// Locate returns the bracketing index pair for v on one axis together with
// the nudged value. lo < hi always holds.
func Locate(g models.Grid, v int16) (lo, hi int, nudged int16) {
	nudged = Nudge(g, v)
	hi = models.GridSize - 1
	for i := 1; i < models.GridSize; i++ {
		if g.Points[i] >= nudged {
			hi = i
			break
		}
	}
	return hi - 1, hi, nudged
}

// LocateQuad resolves the quad and corner weights for an operating point.
func LocateQuad(rpmAxis, loadAxis models.Grid, p models.OperatingPoint) Quad {
	var q Quad
	q.X1, q.X2, q.Point.RPM = Locate(rpmAxis, p.RPM)
	q.Y1, q.Y2, q.Point.Load = Locate(loadAxis, p.Load)
	q.Weights = CornerWeights(
		rpmAxis.Points[q.X1], rpmAxis.Points[q.X2], q.Point.RPM,
		loadAxis.Points[q.Y1], loadAxis.Points[q.Y2], q.Point.Load,
	)
	return q
}

// fraction returns how far v lies from lo toward hi, in WeightScale units.
func fraction(lo, hi, v int16) int32 {
	f := fixedpoint.MulDiv(int32(v)-int32(lo), models.WeightScale, int32(hi)-int32(lo))
	return fixedpoint.Clamp(f, 0, models.WeightScale)
}

// CornerWeights computes the bilinear share of each quad corner. Corners 0
// and 3 are products of the axis fractions; corners 1 and 2 take the rest of
// their RPM column so the four weights sum to exactly WeightScale. A corner
// the point does not touch gets weight 0.
func CornerWeights(x1, x2, x, y1, y2, y int16) [4]int32 {
	fx2 := fraction(x1, x2, x)
	fx1 := models.WeightScale - fx2
	fy2 := fraction(y1, y2, y)
	fy1 := models.WeightScale - fy2

	var w [4]int32
	w[0] = (fx1 * fy1) >> models.WeightShift
	w[3] = (fx2 * fy1) >> models.WeightShift
	w[1] = fx1 - w[0]
	w[2] = fx2 - w[3]
	return w
}
