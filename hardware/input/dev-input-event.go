package input

import (
	"io"
	"os"

	"github.com/temoto/inputevent-go"
)

const DevInputEventTag = "dev-input-event"

// linux/input-event-codes.h
const evKey = 0x01

type DevInputEventSource struct {
	f      io.ReadCloser
	keymap map[uint16]Key
}

// compile-time interface compliance test
var _ Source = new(DevInputEventSource)

func (self *DevInputEventSource) String() string { return DevInputEventTag }

// keymap converts scan code to logical key, unmapped codes are skipped.
func NewDevInputEventSource(device string, keymap map[uint16]Key) (*DevInputEventSource, error) {
	f, err := os.Open(device)
	if err != nil {
		return nil, err
	}
	return newDevInputEventReader(f, keymap), nil
}

func newDevInputEventReader(r io.ReadCloser, keymap map[uint16]Key) *DevInputEventSource {
	return &DevInputEventSource{f: r, keymap: keymap}
}

func (self *DevInputEventSource) Close() error { return self.f.Close() }

func (self *DevInputEventSource) Read() (Event, error) {
	for {
		ie, err := inputevent.ReadOne(self.f)
		if err != nil {
			return Event{}, err
		}
		if ie.Type != evKey || ie.Value == int32(inputevent.KeyStateHold) {
			continue
		}
		key, ok := self.keymap[ie.Code]
		if !ok {
			continue
		}
		return Event{
			Source: DevInputEventTag,
			Key:    key,
			Up:     ie.Value == int32(inputevent.KeyStateUp),
		}, nil
	}
}
