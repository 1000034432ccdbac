// Package sim runs the learning engine against a simulated engine on the
// bench. The plant needs a different VE than the base table holds; a
// narrowband lambda loop chases the difference and the engine learns it
// into the trim table.
package sim

import (
	"sync/atomic"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/tosih/secu3-ltft/pkg/config"
	"github.com/tosih/secu3-ltft/pkg/lambda"
	"github.com/tosih/secu3-ltft/pkg/ltft"
	"github.com/tosih/secu3-ltft/pkg/models"
	"github.com/tosih/secu3-ltft/pkg/storage"
)

// Cell addresses a grid node by load and RPM index.
type Cell struct {
	Load int
	RPM  int
}

// Options configures a bench run.
type Options struct {
	Calibration config.Calibration

	// BaseVE is the ECU's VE table. Zero cells are filled with 2048.
	BaseVE models.VETable
	// TrueTrim is the correction the plant really needs, per cell, x512.
	TrueTrim models.TrimTable

	Cells          []Cell // trajectory, visited in order and wrapped
	DwellTicks     int    // ticks spent on each cell
	StrokesPerTick int
	LambdaStep     int16 // integrator step per tick, x512
	LambdaLimit    int16
	SaveEvery      int // ticks between trim saves; 0 never saves

	Image    string // calibration image the storage writes to
	Observer ltft.Observer
	Logger   *zap.Logger
}

// DefaultOptions returns a bench that needs 8 % more fuel everywhere and
// dwells on a diagonal of cells.
func DefaultOptions() Options {
	o := Options{
		Calibration:    config.DefaultCalibration(),
		DwellTicks:     400,
		StrokesPerTick: 2,
		LambdaStep:     2,
		LambdaLimit:    128,
	}
	o.BaseVE.Fill(models.VEScale)
	for l := range o.TrueTrim {
		for r := range o.TrueTrim[l] {
			o.TrueTrim[l][r] = 41
		}
	}
	for i := 1; i < models.GridSize-1; i += 2 {
		o.Cells = append(o.Cells, Cell{Load: i, RPM: i})
	}
	return o
}

// Clock is a 10 ms tick counter.
type Clock struct{ t atomic.Uint32 }

// Ticks implements ltft.Clock.
func (c *Clock) Ticks() uint16 { return uint16(c.t.Load()) }

// Advance moves the clock by n ticks.
func (c *Clock) Advance(n uint32) { c.t.Add(n) }

// Sensors holds the live readings of the simulated engine.
type Sensors struct {
	rpm, load, gas, clt atomic.Int32
	onGas, throttle     atomic.Bool
}

// NewSensors returns a warm petrol engine, throttle open.
func NewSensors() *Sensors {
	s := &Sensors{}
	s.clt.Store(360)
	s.throttle.Store(true)
	return s
}

func (s *Sensors) RPM() int16         { return int16(s.rpm.Load()) }
func (s *Sensors) MAP() int16         { return int16(s.load.Load()) }
func (s *Sensors) GasPressure() int16 { return int16(s.gas.Load()) }
func (s *Sensors) CoolantTemp() int16 { return int16(s.clt.Load()) }
func (s *Sensors) OnGas() bool        { return s.onGas.Load() }
func (s *Sensors) ThrottleOpen() bool { return s.throttle.Load() }

// SetPoint moves the engine to p.
func (s *Sensors) SetPoint(p models.OperatingPoint) {
	s.rpm.Store(int32(p.RPM))
	s.load.Store(int32(p.Load))
}

// SetCoolant sets the coolant temperature, x4 C.
func (s *Sensors) SetCoolant(v int16) { s.clt.Store(int32(v)) }

// SetThrottle opens or closes the throttle.
func (s *Sensors) SetThrottle(open bool) { s.throttle.Store(open) }

// SetGas selects gas and sets its rail pressure.
func (s *Sensors) SetGas(on bool, pressure int16) {
	s.onGas.Store(on)
	s.gas.Store(int32(pressure))
}

// Bench is a simulated engine with the learning engine attached.
type Bench struct {
	Engine  *ltft.Engine
	Lambda  *lambda.Controller
	Storage *storage.EEPROM
	Sensors *Sensors
	Clock   *Clock

	VE   models.VETable
	Trim [ltft.Channels]models.TrimTable

	opts  Options
	rpm   models.Grid
	load  models.Grid
	ticks int
}

// NewBench builds a bench from opts.
func NewBench(opts Options) (*Bench, error) {
	if len(opts.Cells) == 0 {
		return nil, errors.New("sim: empty trajectory")
	}
	if opts.DwellTicks <= 0 {
		opts.DwellTicks = 1
	}
	if opts.LambdaStep <= 0 {
		opts.LambdaStep = 1
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	b := &Bench{
		Lambda:  lambda.NewController(opts.LambdaLimit),
		Sensors: NewSensors(),
		Clock:   &Clock{},
		VE:      opts.BaseVE,
		opts:    opts,
		rpm:     opts.Calibration.RPMAxis(),
		load:    opts.Calibration.LoadAxis(),
	}
	for l := range b.VE {
		for r := range b.VE[l] {
			if b.VE[l][r] == 0 {
				b.VE[l][r] = models.VEScale
			}
		}
	}
	for _, c := range opts.Cells {
		if c.Load < 0 || c.Load >= models.GridSize || c.RPM < 0 || c.RPM >= models.GridSize {
			return nil, errors.Errorf("sim: cell %d/%d outside the grid", c.Load, c.RPM)
		}
	}

	cal := opts.Calibration
	b.Storage = storage.New(storage.Config{
		Image:  opts.Image,
		Trim:   [ltft.Channels]*models.TrimTable{&b.Trim[0], &b.Trim[1]},
		Params: &cal,
		Logger: opts.Logger.Named("storage"),
	})

	eng, err := ltft.New(ltft.Config{
		Calibration: cal,
		VE:          &b.VE,
		Trim:        [ltft.Channels]*models.TrimTable{&b.Trim[0], &b.Trim[1]},
		Sensors:     b.Sensors,
		Lambda:      b.Lambda,
		Storage:     b.Storage,
		Clock:       b.Clock,
		Observer:    opts.Observer,
		Logger:      opts.Logger.Named("ltft"),
	})
	if err != nil {
		return nil, errors.Wrap(err, "sim")
	}
	b.Engine = eng
	return b, nil
}

// Point returns the operating point of a trajectory cell.
func (b *Bench) Point(c Cell) models.OperatingPoint {
	return models.OperatingPoint{RPM: b.rpm.Points[c.RPM], Load: b.load.Points[c.Load]}
}

// Ticks returns the number of ticks run so far.
func (b *Bench) Ticks() int { return b.ticks }

// Run advances the bench by n control ticks. Storage errors are returned
// after the run completes the tick that hit them.
func (b *Bench) Run(n int) error {
	begin, end := b.opts.Calibration.Channels()
	for i := 0; i < n; i++ {
		cell := b.opts.Cells[(b.ticks/b.opts.DwellTicks)%len(b.opts.Cells)]
		p := b.Point(cell)
		b.Sensors.SetPoint(p)

		for s := 0; s < b.opts.StrokesPerTick; s++ {
			b.Engine.StrokeEvent()
		}
		for ch := begin; ch < end; ch++ {
			b.Lambda.Sense(ch, b.Rich(ch, p), b.opts.LambdaStep)
		}
		if b.opts.SaveEvery > 0 && b.ticks > 0 && b.ticks%b.opts.SaveEvery == 0 {
			b.Storage.RequestSave()
		}
		if _, err := b.Storage.Tick(); err != nil {
			return err
		}

		b.Engine.Control()
		b.Clock.Advance(1)
		b.ticks++
	}
	return nil
}

// Rich reports whether the lambda sensor of ch reads rich at p: the fuel
// delivered by the base VE, the learned trim and the lambda correction
// exceeds what the plant needs.
func (b *Bench) Rich(ch int, p models.OperatingPoint) bool {
	q := ltft.LocateQuad(b.rpm, b.load, p)
	var delivered, needed int64
	for i, w := range q.Weights {
		l, r := q.Cell(i)
		ve := int64(b.VE.At(l, r))
		delivered += int64(w) * (ve * (models.TrimScale + int64(b.Trim[ch].At(l, r))) >> models.TrimShift)
		needed += int64(w) * (ve * (models.TrimScale + int64(b.opts.TrueTrim.At(l, r))) >> models.TrimShift)
	}
	delivered = delivered * (models.TrimScale + int64(b.Lambda.Correction(ch))) >> models.TrimShift
	return delivered > needed
}

// Flush queues a trim save and ticks storage until it completes. Learning
// is not advanced.
func (b *Bench) Flush() error {
	want := b.Storage.Saves() + 1
	b.Storage.RequestSave()
	for b.Storage.PendingOpcode() != ltft.OpcodeNone {
		if _, err := b.Storage.Tick(); err != nil {
			return err
		}
	}
	if b.Storage.Saves() != want {
		return errors.New("sim: trim save did not complete")
	}
	return nil
}

// Snapshot is a copy of the bench state safe to hand to other goroutines.
type Snapshot struct {
	Ticks  int
	Status ltft.Status
	VE     models.VETable
	Trim   [ltft.Channels]models.TrimTable
}

// Snapshot copies the current state. Call it between Run calls.
func (b *Bench) Snapshot() Snapshot {
	return Snapshot{
		Ticks:  b.ticks,
		Status: b.Engine.Status(),
		VE:     b.VE,
		Trim:   b.Trim,
	}
}
