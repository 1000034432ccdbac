package ltft

// Reason explains why a control tick did not reach the channel gates.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonStorageBusy
	ReasonColdEngine
	ReasonGasPressure
	ReasonGasDiffPressure
	ReasonFuelDisabled
	ReasonIdle
)

var reasonNames = [...]string{
	ReasonNone:            "none",
	ReasonStorageBusy:     "storage_busy",
	ReasonColdEngine:      "cold_engine",
	ReasonGasPressure:     "gas_pressure",
	ReasonGasDiffPressure: "gas_diff_pressure",
	ReasonFuelDisabled:    "fuel_disabled",
	ReasonIdle:            "idle",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return "unknown"
}

// MarshalText encodes the reason by name.
func (r Reason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Skip explains why a dispatched correction wrote nothing.
type Skip uint8

const (
	SkipDeadband Skip = iota
	SkipNoSpread      // SummDelta was 0
	SkipHandoff       // lambda error changed while solving
)

func (s Skip) String() string {
	switch s {
	case SkipDeadband:
		return "deadband"
	case SkipNoSpread:
		return "no_spread"
	case SkipHandoff:
		return "handoff"
	}
	return "unknown"
}

// Observer receives learning events. Implementations must be cheap; they
// run inside the control tick.
type Observer interface {
	Suspended(r Reason)
	Corrected(ch int, corners int)
	Skipped(ch int, s Skip)
}

type nopObserver struct{}

func (nopObserver) Suspended(Reason)   {}
func (nopObserver) Corrected(int, int) {}
func (nopObserver) Skipped(int, Skip)  {}
