package protocol

import "strconv"

// Custom data layout, offsets into the frame buffer.
// Source(1) | Dest(1) | Func(1) | PollInterval(4 LE) | Power(1) | ValueID(1) | Value(4 LE)
const (
	OffsetSource   = 0
	OffsetDest     = 1
	OffsetFunc     = 2
	OffsetPoll     = 3
	OffsetPower    = 7
	OffsetValueID  = 8
	OffsetValue    = 9
	MaxFrameLength = 13
)

// Frame lengths observed on the wire.
const (
	LengthSignal    = 2  // source, dest
	LengthControl   = 7  // + func, poll interval
	LengthPower     = 8  // + power
	LengthTelemetry = 13 // + value id, value
)

type NodeID byte

const HubID NodeID = 0

type Func byte

const (
	FuncNone  Func = 0
	FuncStart Func = 1
	FuncStop  Func = 2
)

func (f Func) String() string {
	switch f {
	case FuncNone:
		return "none"
	case FuncStart:
		return "start"
	case FuncStop:
		return "stop"
	}
	return "func?" + strconv.Itoa(int(f))
}

type Power byte

const (
	PowerNone  Power = 0
	PowerAwake Power = 1
	PowerSleep Power = 2
)

func (p Power) String() string {
	switch p {
	case PowerNone:
		return "none"
	case PowerAwake:
		return "awake"
	case PowerSleep:
		return "sleep"
	}
	return "power?" + strconv.Itoa(int(p))
}

type ValueID byte

const (
	ValueNone        ValueID = 0
	ValueTemperature ValueID = 1
	ValueLight       ValueID = 2
)

// KnownValues in the order relays report them.
var KnownValues = [...]ValueID{ValueTemperature, ValueLight}

func (v ValueID) Known() bool { return v == ValueTemperature || v == ValueLight }

func (v ValueID) String() string {
	switch v {
	case ValueNone:
		return "none"
	case ValueTemperature:
		return "temp"
	case ValueLight:
		return "light"
	}
	return "value?" + strconv.Itoa(int(v))
}

// ParseValueID accepts operator spelling: temp, temperature, light.
func ParseValueID(s string) (ValueID, bool) {
	switch s {
	case "temp", "temperature":
		return ValueTemperature, true
	case "light":
		return ValueLight, true
	}
	return ValueNone, false
}
