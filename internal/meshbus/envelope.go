// Package meshbus carries custom data frames between nodes when no real
// mesh radio is attached: in-process loop for simulation and MQTT radio bridge.
package meshbus

import (
	"encoding/binary"

	"github.com/juju/errors"
	"github.com/temoto/meshnode/mesh"
	"github.com/temoto/meshnode/protocol"
)

const envelopeHeader = 3

// DeliverFunc is the inbound custom data callback, usually node.Deliver.
type DeliverFunc func(src mesh.Address, b []byte, length int)

// EncodeEnvelope: source address LE16, length byte, frame bytes.
func EncodeEnvelope(src mesh.Address, frame []byte) []byte {
	b := make([]byte, envelopeHeader+len(frame))
	binary.LittleEndian.PutUint16(b, uint16(src))
	b[2] = byte(len(frame))
	copy(b[envelopeHeader:], frame)
	return b
}

// DecodeEnvelope does not check length against frame bytes, that is frame decoder job.
func DecodeEnvelope(b []byte) (src mesh.Address, frame []byte, length int, err error) {
	if len(b) < envelopeHeader {
		return 0, nil, 0, errors.NotValidf("envelope length=%d", len(b))
	}
	src = mesh.Address(binary.LittleEndian.Uint16(b))
	length = int(b[2])
	if length > protocol.MaxFrameLength {
		return src, nil, length, errors.NotValidf("envelope frame length=%d", length)
	}
	return src, b[envelopeHeader:], length, nil
}

func checkSize(dst mesh.Address, frame []byte) error {
	if len(frame) > protocol.MaxFrameLength || len(frame) == 0 {
		return &mesh.SendError{Code: mesh.ResultTooLarge, Dst: dst}
	}
	return nil
}
