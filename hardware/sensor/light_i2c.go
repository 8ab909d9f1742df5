package sensor

import (
	"encoding/binary"
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/meshnode/protocol"
	"periph.io/x/periph/conn/i2c"
	"periph.io/x/periph/conn/i2c/i2creg"
	"periph.io/x/periph/host"
)

// OPT3001 ambient light sensor, 0x88 in 8-bit address notation.
const (
	DefaultLightAddr = 0x44

	opt3001RegResult = 0x00
	opt3001RegConfig = 0x01
	// automatic full-scale, 800ms conversion, continuous mode
	opt3001ConfigContinuous = 0xcc10
)

type txer interface {
	Tx(w, r []byte) error
}

type I2CLight struct {
	bus  i2c.BusCloser
	dev  txer
	addr uint16
}

func OpenI2CLight(busName string, addr uint16) (*I2CLight, error) {
	if addr == 0 {
		addr = DefaultLightAddr
	}
	if _, err := host.Init(); err != nil {
		return nil, errors.Annotate(err, "periph/init")
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, errors.Annotatef(err, "i2c open bus=%s", busName)
	}
	self := &I2CLight{
		bus:  bus,
		dev:  &i2c.Dev{Bus: bus, Addr: addr},
		addr: addr,
	}
	if err = self.init(); err != nil {
		bus.Close()
		return nil, err
	}
	return self, nil
}

func (self *I2CLight) init() error {
	w := []byte{opt3001RegConfig, 0, 0}
	binary.BigEndian.PutUint16(w[1:], opt3001ConfigContinuous)
	return errors.Annotatef(self.dev.Tx(w, nil), "opt3001 addr=%02x configure", self.addr)
}

func (self *I2CLight) Kind() protocol.ValueID { return protocol.ValueLight }
func (self *I2CLight) String() string         { return fmt.Sprintf("i2c/light@%02x", self.addr) }

// Read returns whole lux.
func (self *I2CLight) Read() (int32, error) {
	var r [2]byte
	if err := self.dev.Tx([]byte{opt3001RegResult}, r[:]); err != nil {
		return 0, errors.Annotatef(err, "opt3001 addr=%02x read", self.addr)
	}
	return opt3001Lux(binary.BigEndian.Uint16(r[:])), nil
}

func (self *I2CLight) Close() error {
	if self.bus == nil {
		return nil
	}
	return self.bus.Close()
}

// lux = 0.01 * 2^exponent * mantissa
func opt3001Lux(raw uint16) int32 {
	e := uint(raw >> 12)
	m := int64(raw & 0x0fff)
	return int32((m << e) / 100)
}
