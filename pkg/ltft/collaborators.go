package ltft

import (
	"github.com/tosih/secu3-ltft/pkg/fixedpoint"
	"github.com/tosih/secu3-ltft/pkg/models"
)

// Sensors provides the live engine readings the learning core needs.
type Sensors interface {
	RPM() int16          // min-1
	MAP() int16          // manifold pressure, load grid units
	GasPressure() int16  // gas rail pressure, load grid units
	CoolantTemp() int16  // x4 C
	OnGas() bool         // current fuel is gas
	ThrottleOpen() bool  // false while idling
}

// Lambda is the short-term closed loop that produces the lambda error.
// ConsumeCorrection zeroes the error only if it still equals seen, so the
// hand-off between the lambda loop and learning is a single atomic step.
type Lambda interface {
	Correction(ch int) int16
	ConsumeCorrection(ch int, seen int16) bool
	ResetSwitchCounter(ch int)
	SwitchCount(ch int) uint8
}

// Opcode identifies a persistent storage operation.
type Opcode uint8

const (
	OpcodeNone Opcode = iota
	OpcodeSaveParams
	OpcodeSaveLTFT
	OpcodeResetLTFT
)

func (o Opcode) String() string {
	switch o {
	case OpcodeNone:
		return "none"
	case OpcodeSaveParams:
		return "save_params"
	case OpcodeSaveLTFT:
		return "save_ltft"
	case OpcodeResetLTFT:
		return "reset_ltft"
	}
	return "unknown"
}

// Storage reports the operation persistent storage is busy with.
type Storage interface {
	PendingOpcode() Opcode
}

// Clock is the system tick counter, 10 ms per tick. It wraps.
type Clock interface {
	Ticks() uint16
}

// Interpolator is the bilinear interpolation primitive: operating point,
// four corner values, cell origin and cell spans.
type Interpolator func(x, y int16, a1, a2, a3, a4 int32, xs, ys, xl, yl int16) int32

// PointSource overrides where the corrected operating point comes from.
// Bench rigs use it to inject synthetic points.
type PointSource interface {
	OperatingPoint() models.OperatingPoint
}

var defaultInterpolator Interpolator = fixedpoint.Bilinear
