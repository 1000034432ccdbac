package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tosih/secu3-ltft/pkg/models"
)

// ErrGridNotIncreasing is returned when a calibration axis is not strictly increasing.
var ErrGridNotIncreasing = errors.New("grid points must be strictly increasing")

// ErrGridSpanTooWide is returned when two adjacent grid points are more than 32767 apart.
var ErrGridSpanTooWide = errors.New("grid segment span exceeds 32767")

// Mode selects the fuels learning is enabled for.
type Mode string

const (
	ModeOff    Mode = "off"
	ModePetrol Mode = "petrol"
	ModeGas    Mode = "gas"
	ModeBoth   Mode = "both"
)

// ChannelMode selects which lambda channels are learned.
type ChannelMode string

const (
	ChannelSingle ChannelMode = "single" // channel 1 only
	ChannelDual   ChannelMode = "dual"   // channels 1 and 2
	ChannelSecond ChannelMode = "second" // channel 2 only
)

// Calibration holds the learning calibration. All numeric fields are raw
// fixed-point units as stored in the ECU.
type Calibration struct {
	RPMGrid  [models.GridSize]int16 `yaml:"rpm_grid"`  // min-1
	LoadGrid [models.GridSize]int16 `yaml:"load_grid"` // kPa x64

	Kf       int16 `yaml:"kf"`       // alignment gain, 64 = 1.0
	TrimMin  int16 `yaml:"trim_min"` // x512
	TrimMax  int16 `yaml:"trim_max"` // x512
	Deadband int16 `yaml:"deadband"` // lambda error below which nothing is learned

	LearnCLT             int16 `yaml:"learn_clt"`               // coolant, x4 C
	LearnGasPressure     int16 `yaml:"learn_gas_pressure"`      // gas pressure, kPa x64
	LearnGasDiffPressure int16 `yaml:"learn_gas_diff_pressure"` // gas minus MAP, kPa x64; 0 disables

	Mode           Mode `yaml:"mode"`
	LearnOnIdle    bool `yaml:"learn_on_idle"`
	IdleCorrection bool `yaml:"idle_correction"` // lambda correction active on idle

	StabTime    uint8 `yaml:"stab_time"`    // 10 ms ticks
	StabStrokes uint8 `yaml:"stab_strokes"` // 0 selects StabTime
	SigSwtNum   uint8 `yaml:"sigswt_num"`
	CellBand    uint8 `yaml:"cell_band"` // hit band, fraction of segment span x256

	ChannelMode ChannelMode `yaml:"channel_mode"`
	MixedSensor bool        `yaml:"mixed_sensor"`

	UseLagBuffer bool                   `yaml:"use_lag_buffer"`
	LagTable     [models.GridSize]uint8 `yaml:"lag_table"` // ring slots per load bucket
}

// DefaultCalibration returns the stock calibration.
func DefaultCalibration() Calibration {
	return Calibration{
		RPMGrid:  [models.GridSize]int16{900, 1100, 1300, 1500, 1700, 2000, 2300, 2600, 2900, 3200, 3500, 3800, 4100, 4500, 5000, 6000},
		LoadGrid: [models.GridSize]int16{1280, 1920, 2560, 3200, 3840, 4480, 5120, 5760, 6400, 7040, 7680, 8320, 8960, 9600, 10560, 11520},

		Kf:       13,
		TrimMin:  -72,
		TrimMax:  77,
		Deadband: 3,

		LearnCLT:             280, // 70 C
		LearnGasPressure:     0,
		LearnGasDiffPressure: 0,

		Mode:           ModeBoth,
		LearnOnIdle:    false,
		IdleCorrection: true,

		StabTime:    100,
		StabStrokes: 0,
		SigSwtNum:   4,
		CellBand:    64,

		ChannelMode: ChannelSingle,
		MixedSensor: false,

		UseLagBuffer: false,
		LagTable:     [models.GridSize]uint8{6, 6, 5, 5, 4, 4, 4, 3, 3, 3, 3, 2, 2, 2, 2, 2},
	}
}

// normalize clamps obvious invalids back to defaults.
func (c *Calibration) normalize() {
	if c == nil {
		return
	}
	def := DefaultCalibration()
	if c.Kf < 0 || c.Kf > models.KfScale {
		c.Kf = def.Kf
	}
	if c.TrimMin > 0 || c.TrimMax < 0 || c.TrimMin >= c.TrimMax {
		c.TrimMin = def.TrimMin
		c.TrimMax = def.TrimMax
	}
	if c.Deadband < 0 {
		c.Deadband = def.Deadband
	}
	if c.CellBand > 128 {
		c.CellBand = def.CellBand
	}
	c.Mode = Mode(strings.ToLower(strings.TrimSpace(string(c.Mode))))
	switch c.Mode {
	case ModeOff, ModePetrol, ModeGas, ModeBoth:
	default:
		c.Mode = def.Mode
	}
	c.ChannelMode = ChannelMode(strings.ToLower(strings.TrimSpace(string(c.ChannelMode))))
	switch c.ChannelMode {
	case ChannelSingle, ChannelDual, ChannelSecond:
	default:
		c.ChannelMode = def.ChannelMode
	}
}

// Validate reports calibration errors that cannot be repaired by defaults.
func (c Calibration) Validate() error {
	if err := validateGrid(c.RPMGrid); err != nil {
		return errors.Wrap(err, "rpm_grid")
	}
	if err := validateGrid(c.LoadGrid); err != nil {
		return errors.Wrap(err, "load_grid")
	}
	return nil
}

func validateGrid(points [models.GridSize]int16) error {
	g := models.NewGrid(points)
	if !g.Increasing() {
		return ErrGridNotIncreasing
	}
	if !g.SpansFit() {
		return ErrGridSpanTooWide
	}
	return nil
}

// RPMAxis returns the RPM grid with spans.
func (c Calibration) RPMAxis() models.Grid { return models.NewGrid(c.RPMGrid) }

// LoadAxis returns the load grid with spans.
func (c Calibration) LoadAxis() models.Grid { return models.NewGrid(c.LoadGrid) }

// Channels returns the first and one-past-last lambda channel to learn.
func (c Calibration) Channels() (begin, end int) {
	if c.MixedSensor {
		return 0, 1
	}
	switch c.ChannelMode {
	case ChannelDual:
		return 0, 2
	case ChannelSecond:
		return 1, 2
	default:
		return 0, 1
	}
}

// ApplyImageParams overrides fields with scalar parameters read from a
// calibration image. Unknown or missing keys are left alone.
func (c *Calibration) ApplyImageParams(values map[string]float64) {
	if v, ok := values[models.ParamKf]; ok {
		c.Kf = int16(v)
	}
	if v, ok := values[models.ParamTrimMin]; ok {
		c.TrimMin = int16(v)
	}
	if v, ok := values[models.ParamTrimMax]; ok {
		c.TrimMax = int16(v)
	}
	if v, ok := values[models.ParamLearnCLT]; ok {
		c.LearnCLT = int16(v)
	}
	if v, ok := values[models.ParamStabTime]; ok {
		c.StabTime = uint8(v)
	}
	if v, ok := values[models.ParamStabStr]; ok {
		c.StabStrokes = uint8(v)
	}
	if v, ok := values[models.ParamSigSwtNum]; ok {
		c.SigSwtNum = uint8(v)
	}
	if v, ok := values[models.ParamCellBand]; ok {
		c.CellBand = uint8(v)
	}
	if v, ok := values[models.ParamLearnOnIdl]; ok {
		c.LearnOnIdle = v != 0
	}
	c.normalize()
}

// ImageParams returns the fields stored in a calibration image, keyed like
// ApplyImageParams expects them.
func (c Calibration) ImageParams() map[string]float64 {
	onIdle := 0.0
	if c.LearnOnIdle {
		onIdle = 1
	}
	return map[string]float64{
		models.ParamKf:         float64(c.Kf),
		models.ParamTrimMin:    float64(c.TrimMin),
		models.ParamTrimMax:    float64(c.TrimMax),
		models.ParamLearnCLT:   float64(c.LearnCLT),
		models.ParamStabTime:   float64(c.StabTime),
		models.ParamStabStr:    float64(c.StabStrokes),
		models.ParamSigSwtNum:  float64(c.SigSwtNum),
		models.ParamCellBand:   float64(c.CellBand),
		models.ParamLearnOnIdl: onIdle,
	}
}

// LoadFile loads YAML calibration and applies defaults.
func LoadFile(path string) (Calibration, error) {
	cfg := DefaultCalibration()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	bs, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read calibration %s", path)
	}
	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse calibration %s", path)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
