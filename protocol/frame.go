package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/meshnode/helpers"
)

// Fields is the logical content of a custom data frame.
// Zero value of an optional field means absent.
// Value is only meaningful together with ValueID.
type Fields struct {
	Source          NodeID
	Dest            NodeID
	Func            Func
	PollIntervalSec uint32
	Power           Power
	ValueID         ValueID
	Value           uint32
}

// Length returns shortest wire length that holds every present field.
func (f Fields) Length() int {
	switch {
	case f.ValueID != ValueNone:
		return LengthTelemetry
	case f.Power != PowerNone:
		return LengthPower
	case f.Func != FuncNone || f.PollIntervalSec != 0:
		return LengthControl
	}
	return LengthSignal
}

func (f Fields) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "src=%d dst=%d", f.Source, f.Dest)
	if f.Func != FuncNone {
		fmt.Fprintf(&sb, " func=%s", f.Func)
	}
	if f.Length() >= LengthControl {
		fmt.Fprintf(&sb, " poll=%d", f.PollIntervalSec)
	}
	if f.Power != PowerNone {
		fmt.Fprintf(&sb, " power=%s", f.Power)
	}
	if f.ValueID != ValueNone {
		fmt.Fprintf(&sb, " %s=%d", f.ValueID, f.Value)
	}
	return sb.String()
}

// Encode never fails. Returned slice length is the frame dataLength.
func Encode(f Fields) []byte {
	length := f.Length()
	b := make([]byte, length)
	b[OffsetSource] = byte(f.Source)
	b[OffsetDest] = byte(f.Dest)
	if length >= LengthControl {
		b[OffsetFunc] = byte(f.Func)
		binary.LittleEndian.PutUint32(b[OffsetPoll:OffsetPoll+4], f.PollIntervalSec)
	}
	if length >= LengthPower {
		b[OffsetPower] = byte(f.Power)
	}
	if length >= LengthTelemetry {
		b[OffsetValueID] = byte(f.ValueID)
		binary.LittleEndian.PutUint32(b[OffsetValue:OffsetValue+4], f.Value)
	}
	return b
}

// Frame is a received custom data buffer with its declared length.
// Accessors of optional fields never read past the declared length.
type Frame struct {
	b [MaxFrameLength]byte
	l int
}

// Decode copies first `length` bytes of b.
// Source and Dest are mandatory, so length below 2 is truncated.
func Decode(b []byte, length int) (*Frame, error) {
	switch {
	case length < LengthSignal:
		return nil, truncated("dest", LengthSignal, length)
	case length > len(b):
		return nil, errors.Annotatef(ErrTruncated, "declared length=%d buffer=%d", length, len(b))
	case length > MaxFrameLength:
		return nil, errors.Annotatef(ErrOversize, "length=%d", length)
	}
	f := &Frame{l: length}
	copy(f.b[:], b[:length])
	return f, nil
}

func MustDecode(b []byte) *Frame {
	f, err := Decode(b, len(b))
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Frame) Len() int      { return f.l }
func (f *Frame) Bytes() []byte { return f.b[:f.l] }

func (f *Frame) Source() NodeID { return NodeID(f.b[OffsetSource]) }
func (f *Frame) Dest() NodeID   { return NodeID(f.b[OffsetDest]) }

func (f *Frame) need(field string, end int) error {
	if f.l < end {
		return truncated(field, end, f.l)
	}
	return nil
}

func (f *Frame) Func() (Func, error) {
	if err := f.need("func", OffsetFunc+1); err != nil {
		return FuncNone, err
	}
	return Func(f.b[OffsetFunc]), nil
}

func (f *Frame) PollInterval() (uint32, error) {
	if err := f.need("poll", OffsetPoll+4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(f.b[OffsetPoll : OffsetPoll+4]), nil
}

func (f *Frame) Power() (Power, error) {
	if err := f.need("power", OffsetPower+1); err != nil {
		return PowerNone, err
	}
	return Power(f.b[OffsetPower]), nil
}

func (f *Frame) ValueID() (ValueID, error) {
	if err := f.need("value_id", OffsetValueID+1); err != nil {
		return ValueNone, err
	}
	return ValueID(f.b[OffsetValueID]), nil
}

func (f *Frame) Value() (uint32, error) {
	if err := f.need("value", OffsetValue+4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(f.b[OffsetValue : OffsetValue+4]), nil
}

// Fields returns every field within declared length, absent ones zero.
// A partially present multi-byte field is treated as absent.
func (f *Frame) Fields() Fields {
	r := Fields{Source: f.Source(), Dest: f.Dest()}
	r.Func, _ = f.Func()
	r.PollIntervalSec, _ = f.PollInterval()
	r.Power, _ = f.Power()
	r.ValueID, _ = f.ValueID()
	if r.ValueID != ValueNone {
		r.Value, _ = f.Value()
	}
	return r
}

func (f *Frame) String() string {
	return fmt.Sprintf("len=%d [%s]", f.l, helpers.HexSpaced(f.Bytes()))
}
