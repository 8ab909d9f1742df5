package input

import (
	"fmt"
	"time"

	"github.com/juju/errors"
	gpio "github.com/temoto/gpio-cdev-go"
)

const GpioTag = "gpio"

// GpioSource reports a button wired to a GPIO line, active low.
type GpioSource struct {
	ev       gpio.Eventer
	line     uint32
	key      Key
	debounce time.Duration
	last     uint64
}

var _ Source = new(GpioSource)

func NewGpioSource(chip gpio.Chiper, line uint32, key Key, debounce time.Duration) (*GpioSource, error) {
	ev, err := chip.GetLineEvent(line, gpio.GPIOHANDLE_REQUEST_ACTIVE_LOW,
		gpio.GPIOEVENT_REQUEST_RISING_EDGE, "meshnode")
	if err != nil {
		return nil, errors.Annotatef(err, "gpio line=%d", line)
	}
	return &GpioSource{ev: ev, line: line, key: key, debounce: debounce}, nil
}

func (self *GpioSource) String() string { return fmt.Sprintf("%s:%d", GpioTag, self.line) }

func (self *GpioSource) Close() error { return self.ev.Close() }

// Read blocks until press. Timestamps closer than debounce are one press.
func (self *GpioSource) Read() (Event, error) {
	for {
		ed, err := self.ev.Wait(0)
		if err != nil {
			if gpio.IsTimeout(err) {
				continue
			}
			return Event{}, err
		}
		if self.last != 0 && ed.Timestamp-self.last < uint64(self.debounce) {
			self.last = ed.Timestamp
			continue
		}
		self.last = ed.Timestamp
		return Event{Source: GpioTag, Key: self.key}, nil
	}
}
