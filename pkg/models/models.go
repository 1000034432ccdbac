package models

// MapConfig defines the structure of a map in the calibration image
type MapConfig struct {
	Name        string
	Offset      int64
	Rows        int
	Cols        int
	DataType    string
	Scale       float64
	Offset2     float64
	Unit        string
	Description string
}

// ECUMap represents a 2D map from the calibration image, in display units
type ECUMap struct {
	Config MapConfig
	Data   [][]float64
}

// Calibration image layout. Grids and tables are little-endian 16-bit words.
const (
	RPMGridOffset  int64 = 0x0000
	LoadGridOffset int64 = 0x0020
	VEMapOffset    int64 = 0x0040
	LTFT1Offset    int64 = 0x0240
	LTFT2Offset    int64 = 0x0440
	ParamsOffset   int64 = 0x0640
	ImageSize            = 0x0660
)

// Map indexes into MapConfigs
const (
	MapVE = iota
	MapLTFT1
	MapLTFT2
)

// Predefined map configurations for the LTFT calibration image
var MapConfigs = []MapConfig{
	{
		Name:        "Base VE Map",
		Offset:      VEMapOffset,
		Rows:        GridSize,
		Cols:        GridSize,
		DataType:    "uint16",
		Scale:       100.0 / VEScale,
		Offset2:     0,
		Unit:        "%",
		Description: "Volumetric efficiency, load rows x RPM columns",
	},
	{
		Name:        "LTFT Map 1",
		Offset:      LTFT1Offset,
		Rows:        GridSize,
		Cols:        GridSize,
		DataType:    "int16",
		Scale:       100.0 / TrimScale,
		Offset2:     0,
		Unit:        "%",
		Description: "Learned long term fuel trim, lambda channel 1",
	},
	{
		Name:        "LTFT Map 2",
		Offset:      LTFT2Offset,
		Rows:        GridSize,
		Cols:        GridSize,
		DataType:    "int16",
		Scale:       100.0 / TrimScale,
		Offset2:     0,
		Unit:        "%",
		Description: "Learned long term fuel trim, lambda channel 2",
	},
}

// TrimMapConfig returns the map layout of the trim table for a lambda channel
func TrimMapConfig(channel int) MapConfig {
	if channel == 1 {
		return MapConfigs[MapLTFT2]
	}
	return MapConfigs[MapLTFT1]
}
