package ltft

import (
	fp "github.com/tosih/secu3-ltft/pkg/fixedpoint"
	"github.com/tosih/secu3-ltft/pkg/models"
)

// cfShift is the scale of the convergence factor, 1024 = 1.0
const cfShift = 10

// Correction is the working state of one correction cycle. It is built
// fresh for every cycle and never persisted.
type Correction struct {
	Quad Quad

	BaseVE    [4]int32 // x2048
	TrimmedVE [4]int32 // base VE with the current trim applied, x2048
	CalcVE    int32    // interpolated trimmed VE at the operating point
	TargetVE  int32    // VE that would have produced zero lambda error

	Align     [4]int32 // pull toward TargetVE, x2048
	LambdaAdd [4]int32 // lambda-driven share, x2048
	SummDelta int32
	TrimDelta [4]int32 // x512, before clamping
}

// Solver computes per-corner trim deltas for a quad.
type Solver struct {
	RPM         models.Grid
	Load        models.Grid
	Kf          int32 // x64
	Interpolate Interpolator
}

func (s *Solver) interpolate(q Quad, v [4]int32) int32 {
	f := s.Interpolate
	if f == nil {
		f = defaultInterpolator
	}
	return f(q.Point.RPM, q.Point.Load, v[0], v[1], v[2], v[3],
		s.RPM.Points[q.X1], s.Load.Points[q.Y1],
		s.RPM.Points[q.X2]-s.RPM.Points[q.X1],
		s.Load.Points[q.Y2]-s.Load.Points[q.Y1])
}

// Solve runs one damped correction step toward the VE that cancels
// lambdaErr. It reports false, with all deltas zero, when the lambda share
// cannot be distributed (SummDelta is 0).
func (s *Solver) Solve(q Quad, ve *models.VETable, trim *models.TrimTable, lambdaErr int16) (Correction, bool) {
	c := Correction{Quad: q}
	w := q.Weights

	for i := 0; i < 4; i++ {
		l, r := q.Cell(i)
		c.BaseVE[i] = int32(ve.At(l, r))
		c.TrimmedVE[i] = fp.MulShift(c.BaseVE[i], models.TrimScale+int32(trim.At(l, r)), models.TrimShift)
	}

	c.CalcVE = s.interpolate(q, c.TrimmedVE)
	c.TargetVE = fp.MulShift(c.CalcVE, models.TrimScale+int32(lambdaErr), models.TrimShift) + 1

	for i := 0; i < 4; i++ {
		a := fp.MulShift(c.TargetVE-c.TrimmedVE[i], w[i], models.WeightShift)
		c.Align[i] = fp.MulShift(a, s.Kf, models.KfShift)
	}

	absErr := fp.Abs(int32(lambdaErr))
	var g [4]int32
	for i := 0; i < 4; i++ {
		g[i] = fp.MulShift(c.TrimmedVE[i], absErr, models.TrimShift)
		g[i] = fp.MulShift(g[i], w[i], models.WeightShift)
		c.SummDelta += fp.MulShift(g[i], w[i], models.WeightShift)
	}
	if c.SummDelta == 0 {
		c.Align = [4]int32{}
		return c, false
	}

	var aligned [4]int32
	for i := 0; i < 4; i++ {
		aligned[i] = c.TrimmedVE[i] + c.Align[i]
	}
	diff := c.TargetVE - s.interpolate(q, aligned)
	cf := fp.MulDiv(fp.Abs(diff), 1<<cfShift, c.SummDelta)
	if diff != 0 {
		for i := 0; i < 4; i++ {
			c.LambdaAdd[i] = fp.Sign(diff) * fp.MulShift(g[i], cf, cfShift)
		}
	}

	for i := 0; i < 4; i++ {
		c.TrimDelta[i] = fp.MulDiv(c.Align[i]+c.LambdaAdd[i], models.TrimScale, c.BaseVE[i])
	}
	return c, true
}

// ZeroBaseVE reports whether any corner sits on a zero base VE cell. Such
// corners get no trim.
func (c *Correction) ZeroBaseVE() bool {
	for _, v := range c.BaseVE {
		if v == 0 {
			return true
		}
	}
	return false
}
