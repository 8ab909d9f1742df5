package sensor

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/protocol"
)

func TestOpenFixed(t *testing.T) {
	t.Parallel()
	s, err := Open(Config{Kind: "temp", Initial: 21}, nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.ValueTemperature, s.Kind())
	v, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, int32(21), v)
	s.(*Fixed).Set(-4)
	v, _ = s.Read()
	assert.Equal(t, int32(-4), v)

	_, err = Open(Config{Kind: "humidity"}, nil)
	assert.True(t, errors.IsNotValid(err))
	_, err = Open(Config{Kind: "light", Driver: "adc"}, nil)
	assert.True(t, errors.IsNotSupported(err))
	_, err = Open(Config{Kind: "temp", Driver: DriverI2C, Device: "1"}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsNotSupported(err))
	assert.Contains(t, err.Error(), "sensor driver=i2c kind=temp")
}

func TestFunc(t *testing.T) {
	t.Parallel()
	s := Func{K: protocol.ValueLight, F: func() (int32, error) { return 0, fmt.Errorf("bus") }}
	_, err := s.Read()
	assert.EqualError(t, err, "bus")
	assert.Equal(t, "func/light", s.String())
}

func TestIIO(t *testing.T) {
	t.Parallel()
	dir, err := ioutil.TempDir("", "meshnode-iio")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "in_temp_input")
	require.NoError(t, ioutil.WriteFile(path, []byte("23875\n"), 0644))

	s := NewIIO(protocol.ValueTemperature, path)
	v, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, int32(23), v)

	require.NoError(t, ioutil.WriteFile(path, []byte("garbage"), 0644))
	_, err = s.Read()
	assert.Error(t, err)
}

func TestOPT3001Lux(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw    uint16
		expect int32
	}{
		{0x0000, 0},
		{0x0064, 1},     // e=0 m=100 -> 1.00 lux
		{0x1fff, 81},    // e=1 m=4095 -> 81.90
		{0xbfff, 83865}, // e=11 m=4095 -> 83865.6
	}
	for _, c := range cases {
		assert.Equal(t, c.expect, opt3001Lux(c.raw), "raw=%04x", c.raw)
	}
}

type fakeTx struct {
	writes [][]byte
	result []byte
	err    error
}

func (f *fakeTx) Tx(w, r []byte) error {
	f.writes = append(f.writes, append([]byte(nil), w...))
	copy(r, f.result)
	return f.err
}

func TestI2CLight(t *testing.T) {
	t.Parallel()
	tx := &fakeTx{result: []byte{0x10, 0x64}}
	s := &I2CLight{dev: tx, addr: DefaultLightAddr}
	require.NoError(t, s.init())
	v, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
	assert.Equal(t, [][]byte{{0x01, 0xcc, 0x10}, {0x00}}, tx.writes)
	assert.Equal(t, "i2c/light@44", s.String())

	tx.err = fmt.Errorf("nack")
	_, err = s.Read()
	assert.Contains(t, err.Error(), "nack")
}

func TestUARTLines(t *testing.T) {
	t.Parallel()
	r, w := io.Pipe()
	s := NewUARTReader(protocol.ValueLight, "pipe", r, log2.NewTest(t, log2.LDebug))
	_, err := s.Read()
	assert.Equal(t, ErrNoSample, err)

	_, _ = w.Write([]byte("120\r\nnoise\n345\n"))
	require.Eventually(t, func() bool {
		v, err := s.Read()
		return err == nil && v == 345
	}, time.Second, time.Millisecond)

	w.Close()
	require.Eventually(t, func() bool {
		_, err := s.Read()
		return err != nil && err != ErrNoSample
	}, time.Second, time.Millisecond)
}
