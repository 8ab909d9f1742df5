// Package sensor provides leaf sample sources.
package sensor

import (
	"fmt"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/protocol"
)

type Sensor interface {
	Kind() protocol.ValueID
	Read() (int32, error)
	String() string
}

const (
	DriverFixed = "fixed"
	DriverI2C   = "i2c"
	DriverIIO   = "iio"
	DriverUART  = "uart"
)

type Config struct {
	Kind   string `hcl:"kind"`
	Driver string `hcl:"driver"`
	// i2c bus name, iio sysfs file or serial port path
	Device  string `hcl:"device"`
	Addr    int    `hcl:"addr"`
	Baud    int    `hcl:"baud"`
	Initial int    `hcl:"initial"`
}

func (c *Config) ValueID() (protocol.ValueID, error) {
	v, ok := protocol.ParseValueID(c.Kind)
	if !ok {
		return protocol.ValueNone, errors.NotValidf("sensor kind=%q", c.Kind)
	}
	// i2c driver only knows the light chip
	if c.Driver == DriverI2C && v != protocol.ValueLight {
		return protocol.ValueNone, errors.NotSupportedf("sensor driver=%s kind=%s", c.Driver, v)
	}
	return v, nil
}

// Open builds sensor from config. Fixed driver is default.
func Open(c Config, log *log2.Log) (Sensor, error) {
	kind, err := c.ValueID()
	if err != nil {
		return nil, err
	}
	switch c.Driver {
	case "", DriverFixed:
		return NewFixed(kind, int32(c.Initial)), nil
	case DriverI2C:
		return OpenI2CLight(c.Device, uint16(c.Addr))
	case DriverIIO:
		return NewIIO(kind, c.Device), nil
	case DriverUART:
		return OpenUART(kind, c.Device, c.Baud, log)
	}
	return nil, errors.NotSupportedf("sensor driver=%q", c.Driver)
}

// Fixed returns stored value, Set is safe from other goroutines.
type Fixed struct {
	kind protocol.ValueID
	v    int32
}

func NewFixed(kind protocol.ValueID, v int32) *Fixed { return &Fixed{kind: kind, v: v} }

func (self *Fixed) Kind() protocol.ValueID { return self.kind }
func (self *Fixed) Read() (int32, error)   { return atomic.LoadInt32(&self.v), nil }
func (self *Fixed) Set(v int32)            { atomic.StoreInt32(&self.v, v) }
func (self *Fixed) String() string         { return fmt.Sprintf("fixed/%s", self.kind) }

type Func struct {
	K protocol.ValueID
	F func() (int32, error)
}

func (self Func) Kind() protocol.ValueID { return self.K }
func (self Func) Read() (int32, error)   { return self.F() }
func (self Func) String() string         { return fmt.Sprintf("func/%s", self.K) }
