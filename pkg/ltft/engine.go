// Package ltft learns long term fuel trim. It nudges per-cell trim values
// of a 16x16 table so that the short-term lambda correction trends back to
// zero.
//
// Control is called once per scheduling tick and StrokeEvent once per engine
// stroke, possibly from another goroutine. Neither blocks; a correction cycle
// always completes inside the Control call that started it.
package ltft

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tosih/secu3-ltft/pkg/config"
	fp "github.com/tosih/secu3-ltft/pkg/fixedpoint"
	"github.com/tosih/secu3-ltft/pkg/models"
)

// Channels is the maximum number of lambda channels.
const Channels = 2

// ErrNilCollaborator is returned by New when a required collaborator is missing.
var ErrNilCollaborator = errors.New("ltft: nil collaborator")

// Config wires an Engine to its tables and collaborators.
type Config struct {
	Calibration config.Calibration

	VE   *models.VETable
	Trim [Channels]*models.TrimTable

	Sensors Sensors
	Lambda  Lambda
	Storage Storage
	Clock   Clock

	// Optional.
	Interpolate Interpolator
	Points      PointSource
	Observer    Observer
	Logger      *zap.Logger
}

// Engine is the LTFT learning engine.
type Engine struct {
	cal    config.Calibration
	solver Solver

	ve   *models.VETable
	trim [Channels]*models.TrimTable

	sensors  Sensors
	lambda   Lambda
	storage  Storage
	clock    Clock
	points   PointSource
	observer Observer
	log      *zap.Logger

	lag   LagBuffer
	gates [Channels]gate

	suspended   atomic.Uint32 // Reason of the last tick
	corrections atomic.Uint32
}

// New validates cfg and builds an Engine.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Calibration.Validate(); err != nil {
		return nil, errors.Wrap(err, "ltft: calibration")
	}
	switch {
	case cfg.VE == nil:
		return nil, errors.Wrap(ErrNilCollaborator, "VE table")
	case cfg.Sensors == nil:
		return nil, errors.Wrap(ErrNilCollaborator, "sensors")
	case cfg.Lambda == nil:
		return nil, errors.Wrap(ErrNilCollaborator, "lambda")
	case cfg.Storage == nil:
		return nil, errors.Wrap(ErrNilCollaborator, "storage")
	case cfg.Clock == nil:
		return nil, errors.Wrap(ErrNilCollaborator, "clock")
	}
	begin, end := cfg.Calibration.Channels()
	for ch := begin; ch < end; ch++ {
		if cfg.Trim[ch] == nil {
			return nil, errors.Wrapf(ErrNilCollaborator, "trim table %d", ch+1)
		}
	}

	e := &Engine{
		cal: cfg.Calibration,
		solver: Solver{
			RPM:         cfg.Calibration.RPMAxis(),
			Load:        cfg.Calibration.LoadAxis(),
			Kf:          int32(cfg.Calibration.Kf),
			Interpolate: cfg.Interpolate,
		},
		ve:       cfg.VE,
		trim:     cfg.Trim,
		sensors:  cfg.Sensors,
		lambda:   cfg.Lambda,
		storage:  cfg.Storage,
		clock:    cfg.Clock,
		points:   cfg.Points,
		observer: cfg.Observer,
		log:      cfg.Logger,
	}
	if e.observer == nil {
		e.observer = nopObserver{}
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	return e, nil
}

// IsActive reports whether learning is enabled for the current fuel.
func (e *Engine) IsActive() bool {
	switch e.cal.Mode {
	case config.ModeOff:
		return false
	case config.ModePetrol:
		return !e.sensors.OnGas()
	case config.ModeGas:
		return e.sensors.OnGas()
	}
	return true
}

// StrokeEvent records one engine stroke.
func (e *Engine) StrokeEvent() {
	e.gates[0].strokes.Add(1)
	e.gates[1].strokes.Add(1)
	e.lag.Add(e.livePoint())
}

// Control runs one learning tick.
func (e *Engine) Control() {
	r := e.suspendReason()
	e.suspended.Store(uint32(r))
	if r != ReasonNone {
		e.observer.Suspended(r)
		return
	}
	begin, end := e.cal.Channels()
	for ch := begin; ch < end; ch++ {
		e.step(ch)
	}
}

func (e *Engine) suspendReason() Reason {
	switch e.storage.PendingOpcode() {
	case OpcodeSaveLTFT, OpcodeResetLTFT:
		return ReasonStorageBusy
	}
	if e.sensors.CoolantTemp() < e.cal.LearnCLT {
		return ReasonColdEngine
	}
	if e.sensors.OnGas() {
		gas := e.sensors.GasPressure()
		if gas < e.cal.LearnGasPressure {
			return ReasonGasPressure
		}
		if e.cal.LearnGasDiffPressure != 0 && int32(gas)-int32(e.sensors.MAP()) < int32(e.cal.LearnGasDiffPressure) {
			return ReasonGasDiffPressure
		}
	}
	if !e.IsActive() {
		return ReasonFuelDisabled
	}
	if !e.sensors.ThrottleOpen() && (!e.cal.IdleCorrection || !e.cal.LearnOnIdle) {
		return ReasonIdle
	}
	return ReasonNone
}

func (e *Engine) livePoint() models.OperatingPoint {
	return models.OperatingPoint{RPM: e.sensors.RPM(), Load: e.sensors.MAP()}
}

// operatingPoint picks the point a correction is computed at: the injected
// source, the lag-compensated point, or the live one.
func (e *Engine) operatingPoint() models.OperatingPoint {
	if e.points != nil {
		return e.points.OperatingPoint()
	}
	if e.cal.UseLagBuffer {
		if p, ok := e.lag.Lagged(e.solver.Load, e.cal.LagTable); ok {
			return p
		}
	}
	return e.livePoint()
}

// correct runs one correction cycle for channel ch.
func (e *Engine) correct(ch int) {
	seen := e.lambda.Correction(ch)
	if fp.Abs(int32(seen)) < int32(e.cal.Deadband) {
		e.observer.Skipped(ch, SkipDeadband)
		return
	}

	table := e.trim[ch]
	q := LocateQuad(e.solver.RPM, e.solver.Load, e.operatingPoint())
	c, ok := e.solver.Solve(q, e.ve, table, seen)
	if !ok {
		e.log.Warn("ltft correction has no spread",
			zap.Int("channel", ch+1),
			zap.Int16("lambda", seen),
			zap.Int("rpm_idx", q.X1),
			zap.Int("load_idx", q.Y1))
		e.observer.Skipped(ch, SkipNoSpread)
		return
	}
	if c.ZeroBaseVE() {
		e.log.Warn("ltft quad touches zero base VE", zap.Int("rpm_idx", q.X1), zap.Int("load_idx", q.Y1))
	}

	if !e.lambda.ConsumeCorrection(ch, seen) {
		e.observer.Skipped(ch, SkipHandoff)
		return
	}
	n := ApplyTrim(table, &c, e.cal.TrimMin, e.cal.TrimMax)
	e.corrections.Add(1)
	e.observer.Corrected(ch, n)

	if ce := e.log.Check(zap.DebugLevel, "ltft correction applied"); ce != nil {
		ce.Write(
			zap.Int("channel", ch+1),
			zap.Int16("lambda", seen),
			zap.Int16("rpm", q.Point.RPM),
			zap.Int16("load", q.Point.Load),
			zap.Int32("calc_ve", c.CalcVE),
			zap.Int32("target_ve", c.TargetVE),
			zap.Int32s("weights", c.Quad.Weights[:]),
			zap.Int32s("trim_delta", c.TrimDelta[:]),
		)
	}
}

// ChannelStatus is a snapshot of one channel gate.
type ChannelStatus struct {
	State     State
	RPMIndex  int
	LoadIndex int
	Strokes   uint32
}

// Status is a diagnostic snapshot of the engine.
type Status struct {
	Active      bool
	Suspended   Reason
	Corrections uint32
	Channels    [Channels]ChannelStatus
}

// Status returns a diagnostic snapshot. Call it from the control goroutine.
func (e *Engine) Status() Status {
	s := Status{
		Active:      e.IsActive(),
		Suspended:   Reason(e.suspended.Load()),
		Corrections: e.corrections.Load(),
	}
	for ch := range e.gates {
		g := &e.gates[ch]
		s.Channels[ch] = ChannelStatus{
			State:     g.state,
			RPMIndex:  g.rpmIdx,
			LoadIndex: g.loadIdx,
			Strokes:   g.strokes.Load(),
		}
	}
	return s
}
