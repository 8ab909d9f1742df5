// Package mesh is the narrow boundary to the underlying mesh stack:
// node id to mesh address mapping and the custom data send primitive.
package mesh

import (
	"fmt"

	"github.com/temoto/meshnode/protocol"
)

type Address uint16

const (
	DefaultBase Address = 0x0100
	Broadcast   Address = 0x3FFF
)

func (a Address) String() string { return fmt.Sprintf("%04x", uint16(a)) }

// Mapper converts between compact node ids and mesh addresses.
// Base is fixed at startup, low byte must be zero for ToID to invert ToAddress.
type Mapper struct {
	Base Address
}

func NewMapper(base Address) Mapper {
	if base == 0 {
		base = DefaultBase
	}
	return Mapper{Base: base}
}

func (m Mapper) ToAddress(id protocol.NodeID) Address { return m.Base + Address(id) }

func (m Mapper) ToID(a Address) protocol.NodeID { return protocol.NodeID(a & 0xff) }

// Owns reports whether a is inside the node range of this base.
func (m Mapper) Owns(a Address) bool { return a&0xff00 == m.Base&0xff00 }
