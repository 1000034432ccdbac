package ltft

import (
	"sync/atomic"

	fp "github.com/tosih/secu3-ltft/pkg/fixedpoint"
	"github.com/tosih/secu3-ltft/pkg/models"
)

// State is the learning gate state of one lambda channel.
type State uint8

const (
	// WaitForHit waits for the operating point to enter the band around a cell.
	WaitForHit State = iota
	// Stabilizing holds inside the band until time or strokes and lambda
	// sign switches are sufficient.
	Stabilizing
)

func (s State) String() string {
	if s == Stabilizing {
		return "stabilizing"
	}
	return "wait_for_hit"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type gate struct {
	state   State
	started uint16 // tick at entry to Stabilizing
	strokes atomic.Uint32
	rpmIdx  int
	loadIdx int
}

// hitIndex returns the grid node v lies within band/256 of the adjacent
// segment span of. Below a node the left segment is used, above it the right.
func hitIndex(g models.Grid, v int16, band uint8) (int, bool) {
	for i := 0; i < models.GridSize; i++ {
		d := int32(v) - int32(g.Points[i])
		span := g.Spans[i]
		if d < 0 && i > 0 {
			span = g.Spans[i-1]
		}
		if fp.Abs(d) <= (int32(span)*int32(band))>>8 {
			return i, true
		}
	}
	return 0, false
}

// step advances the gate of channel ch by one control tick.
func (e *Engine) step(ch int) {
	g := &e.gates[ch]
	live := e.livePoint()
	r, rok := hitIndex(e.solver.RPM, live.RPM, e.cal.CellBand)
	l, lok := hitIndex(e.solver.Load, live.Load, e.cal.CellBand)

	switch g.state {
	case WaitForHit:
		if !rok || !lok {
			return
		}
		e.lambda.ResetSwitchCounter(ch)
		g.started = e.clock.Ticks()
		g.strokes.Store(0)
		g.rpmIdx, g.loadIdx = r, l
		g.state = Stabilizing
		fallthrough

	case Stabilizing:
		if !rok || !lok || r != g.rpmIdx || l != g.loadIdx {
			g.state = WaitForHit
			return
		}

		var ready bool
		if e.cal.StabStrokes == 0 {
			ready = e.clock.Ticks()-g.started >= uint16(e.cal.StabTime)
		} else {
			ready = g.strokes.Load() >= uint32(e.cal.StabStrokes)
		}
		if !ready || e.lambda.SwitchCount(ch) < e.cal.SigSwtNum {
			return
		}

		e.correct(ch)
		g.state = WaitForHit
	}
}
