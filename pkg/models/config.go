package models

// ConfigParam defines a single scalar calibration parameter in the image
type ConfigParam struct {
	Name        string
	Offset      int64
	DataType    string // uint8, uint16, int8, int16
	Scale       float64
	Offset2     float64
	Unit        string
	Description string
	MinValue    float64
	MaxValue    float64
}

// ECUConfig holds all scalar parameters read from an image
type ECUConfig struct {
	Params []ConfigParam
	Values map[string]float64
}

// Parameter names, used as keys of ECUConfig.Values
const (
	ParamKf         = "Smoothing Gain"
	ParamTrimMin    = "LTFT Min"
	ParamTrimMax    = "LTFT Max"
	ParamLearnCLT   = "LTFT Learn CLT"
	ParamStabTime   = "LTFT Stab Time"
	ParamStabStr    = "LTFT Stab Strokes"
	ParamSigSwtNum  = "LTFT Sign Switches"
	ParamCellBand   = "LTFT Cell Band"
	ParamLearnOnIdl = "LTFT On Idling"
)

// LTFT calibration parameters stored after the tables. Values are raw
// fixed-point units, so Scale is 1 throughout.
var ConfigParams = []ConfigParam{
	{
		Name:        ParamKf,
		Offset:      ParamsOffset,
		DataType:    "uint16",
		Scale:       1.0,
		Unit:        "x64",
		Description: "Cell alignment gain, 64 = 1.0",
		MinValue:    0,
		MaxValue:    64,
	},
	{
		Name:        ParamTrimMin,
		Offset:      ParamsOffset + 2,
		DataType:    "int16",
		Scale:       1.0,
		Unit:        "x512",
		Description: "Lower bound of a learned trim cell",
		MinValue:    -256,
		MaxValue:    0,
	},
	{
		Name:        ParamTrimMax,
		Offset:      ParamsOffset + 4,
		DataType:    "int16",
		Scale:       1.0,
		Unit:        "x512",
		Description: "Upper bound of a learned trim cell",
		MinValue:    0,
		MaxValue:    256,
	},
	{
		Name:        ParamLearnCLT,
		Offset:      ParamsOffset + 6,
		DataType:    "int16",
		Scale:       1.0,
		Unit:        "x4 C",
		Description: "Minimum coolant temperature for learning",
		MinValue:    -160,
		MaxValue:    480,
	},
	{
		Name:        ParamStabTime,
		Offset:      ParamsOffset + 8,
		DataType:    "uint8",
		Scale:       1.0,
		Unit:        "10ms",
		Description: "Stabilization time inside a cell band",
		MinValue:    0,
		MaxValue:    255,
	},
	{
		Name:        ParamStabStr,
		Offset:      ParamsOffset + 9,
		DataType:    "uint8",
		Scale:       1.0,
		Unit:        "strokes",
		Description: "Stabilization strokes, 0 selects the time criterion",
		MinValue:    0,
		MaxValue:    255,
	},
	{
		Name:        ParamSigSwtNum,
		Offset:      ParamsOffset + 10,
		DataType:    "uint8",
		Scale:       1.0,
		Unit:        "",
		Description: "Lambda sign switches required before learning",
		MinValue:    0,
		MaxValue:    255,
	},
	{
		Name:        ParamCellBand,
		Offset:      ParamsOffset + 11,
		DataType:    "uint8",
		Scale:       1.0,
		Unit:        "x256",
		Description: "Hit band around a grid node, fraction of segment span",
		MinValue:    0,
		MaxValue:    128,
	},
	{
		Name:        ParamLearnOnIdl,
		Offset:      ParamsOffset + 12,
		DataType:    "uint8",
		Scale:       1.0,
		Unit:        "",
		Description: "Allow learning while idling",
		MinValue:    0,
		MaxValue:    1,
	},
}
