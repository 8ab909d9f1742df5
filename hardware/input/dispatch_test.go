package input

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"
	"syscall"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	gpio "github.com/temoto/gpio-cdev-go"
	gpio_mock "github.com/temoto/gpio-cdev-go/mock"
	"github.com/temoto/inputevent-go"
	"github.com/temoto/meshnode/log2"
)

func TestDispatchDoubleSubscribe(t *testing.T) {
	log := log2.NewTest(t, log2.LDebug)
	dstop := make(chan struct{})
	d := NewDispatch(log, dstop)

	go func() {
		sub1stop := make(chan struct{})
		d.SubscribeChan("name", sub1stop)
		close(sub1stop)
		sub2stop := make(chan struct{})
		d.SubscribeChan("name", sub2stop)
		close(dstop)
	}()

	d.Run(nil)
}

type sliceSource struct {
	events []Event
	done   chan struct{}
}

func (s *sliceSource) String() string { return "slice" }
func (s *sliceSource) Read() (Event, error) {
	if len(s.events) == 0 {
		<-s.done
		return Event{}, io.EOF
	}
	e := s.events[0]
	s.events = s.events[1:]
	return e, nil
}

func TestDispatchFunc(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	stop := make(chan struct{})
	d := NewDispatch(log, stop)
	got := make(chan Event, 4)
	d.SubscribeFunc("node", func(e Event) { got <- e }, nil)
	src := &sliceSource{events: []Event{{Source: "slice", Key: Key1}, {}, {Source: "slice", Key: Key2}}, done: stop}
	go d.Run([]Source{src})

	assert.Equal(t, Key1, (<-got).Key)
	assert.Equal(t, Key2, (<-got).Key)
	close(stop)
}

func TestGpioSource(t *testing.T) {
	t.Parallel()
	ev := &gpio_mock.MockEvent{}
	chip := &gpio_mock.MockChip{}
	chip.On("GetLineEvent", uint32(17), gpio.GPIOHANDLE_REQUEST_ACTIVE_LOW, gpio.GPIOEVENT_REQUEST_RISING_EDGE, "meshnode").Return(ev, nil)
	ms := uint64(time.Millisecond)
	ev.On("Wait", time.Duration(0)).Return(gpio.EventData{}, gpio.ErrTimeout).Once()
	ev.On("Wait", time.Duration(0)).Return(gpio.EventData{Timestamp: 1000 * ms}, nil).Once()
	ev.On("Wait", time.Duration(0)).Return(gpio.EventData{Timestamp: 1010 * ms}, nil).Once()
	ev.On("Wait", time.Duration(0)).Return(gpio.EventData{Timestamp: 1500 * ms}, nil).Once()
	ev.On("Wait", time.Duration(0)).Return(gpio.EventData{}, gpio.ErrClosed).Once()

	src, err := NewGpioSource(chip, 17, Key2, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "gpio:17", src.String())
	e, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, Event{Source: GpioTag, Key: Key2}, e)
	_, err = src.Read()
	require.NoError(t, err)
	_, err = src.Read()
	assert.True(t, gpio.IsClosed(err))
	ev.AssertExpectations(t)
	chip.AssertExpectations(t)
}

func TestGpioSourceOpenError(t *testing.T) {
	t.Parallel()
	chip := &gpio_mock.MockChip{}
	chip.On("GetLineEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return((*gpio_mock.MockEvent)(nil), errors.New("busy"))
	_, err := NewGpioSource(chip, 3, Key1, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gpio line=3")
}

func TestDevInputEvent(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	write := func(typ, code uint16, value int32) {
		ie := inputevent.InputEvent{Time: syscall.Timeval{}, Type: typ, Code: code, Value: value}
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, &ie))
	}
	// EV_SYN, unmapped F1, KEY_1 down and hold, KEY_2 up
	write(0x00, 0, 0)
	write(evKey, 59, int32(inputevent.KeyStateDown))
	write(evKey, 2, int32(inputevent.KeyStateDown))
	write(evKey, 2, int32(inputevent.KeyStateHold))
	write(evKey, 3, int32(inputevent.KeyStateUp))
	src := newDevInputEventReader(ioutil.NopCloser(&buf), map[uint16]Key{2: Key1, 3: Key2})

	e, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, Event{Source: DevInputEventTag, Key: Key1}, e)
	e, err = src.Read()
	require.NoError(t, err)
	assert.Equal(t, Event{Source: DevInputEventTag, Key: Key2, Up: true}, e)
	_, err = src.Read()
	assert.Equal(t, io.EOF, err)
}

func TestKeyString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "key1", Key1.String())
	assert.Equal(t, "key7", Key(7).String())
}
