package role

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/meshnode/hardware/input"
	"github.com/temoto/meshnode/mesh"
	"github.com/temoto/meshnode/protocol"
)

func TestHubTransfer(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, testHub)
	h := NewHub(e.env, HubSettings{PollIntervalSec: 5})
	relayAddr := e.mapper.ToAddress(testRelay)

	require.NoError(t, h.StartTransfer())
	assert.True(t, h.Streaming())
	require.NoError(t, h.SetPollInterval(8))
	require.NoError(t, h.StopTransfer())
	assert.Equal(t, StateIdle, h.Context().State)
	// idle: stored only
	require.NoError(t, h.SetPollInterval(9))

	assert.Equal(t, []sent{
		{relayAddr, protocol.Fields{Source: testHub, Dest: testRelay, Func: protocol.FuncStart, PollIntervalSec: 5, Power: protocol.PowerAwake}},
		{relayAddr, protocol.Fields{Source: testHub, Dest: testRelay, Func: protocol.FuncStart, PollIntervalSec: 8, Power: protocol.PowerAwake}},
		{relayAddr, protocol.Fields{Source: testHub, Dest: testRelay, Func: protocol.FuncStop, Power: protocol.PowerSleep}},
	}, e.stack.take())
	assert.Equal(t, uint32(9), h.PollInterval())
	assert.Empty(t, e.timers.Active(), "hub never arms local timer")
	assert.True(t, errors.IsNotValid(h.SetPollInterval(0)))
}

func TestHubStartSendError(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, testHub)
	h := NewHub(e.env, HubSettings{})
	assert.Equal(t, uint32(DefaultPollIntervalSec), h.PollInterval())
	e.stack.err = &mesh.SendError{Code: mesh.ResultNotReady}
	err := h.StartTransfer()
	require.Error(t, err)
	assert.Equal(t, mesh.ResultNotReady, mesh.ResultCode(err))
	assert.Equal(t, StateIdle, h.Context().State)
}

func TestHubTelemetry(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, testHub)
	h := NewHub(e.env, HubSettings{})
	var got []Telemetry
	h.AddObserver(TelemetryFunc(func(x Telemetry) { got = append(got, x) }))

	e.deliver(h, protocol.Fields{Source: testRelay, Dest: testHub, PollIntervalSec: 5, ValueID: protocol.ValueTemperature, Value: 24})
	// not from relay
	e.deliver(h, protocol.Fields{Source: testLeaf, Dest: testRelay, PollIntervalSec: 3, ValueID: protocol.ValueLight, Value: 1})
	// unknown value id
	e.deliver(h, protocol.Fields{Source: testRelay, Dest: testHub, PollIntervalSec: 5, ValueID: 7, Value: 2})
	assert.False(t, h.ToggleFrameLog())
	e.deliver(h, protocol.Fields{Source: testRelay, Dest: testHub, PollIntervalSec: 5, ValueID: protocol.ValueLight, Value: 90})

	assert.Equal(t, []Telemetry{
		{Hub: testHub, Source: testRelay, ValueID: protocol.ValueTemperature, Value: 24, IntervalSec: 5},
		{Hub: testHub, Source: testRelay, ValueID: protocol.ValueLight, Value: 90, IntervalSec: 5},
	}, got)
	assert.Equal(t, map[protocol.ValueID]uint32{protocol.ValueTemperature: 24, protocol.ValueLight: 90}, h.Context().Values)
	assert.Empty(t, e.stack.take(), "hub is pure sink")

	h.OnKey(input.Key1)
	h.OnTick(1)
	assert.Empty(t, e.stack.take())
}

func TestHubSettings(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, testHub)
	h := NewHub(e.env, HubSettings{PollIntervalSec: 4})
	changes := 0
	h.OnSettings(func(HubSettings) { changes++ })

	require.NoError(t, h.SetSensorPoll(protocol.ValueLight, 30))
	require.NoError(t, h.SetSensorPower(protocol.ValueTemperature, protocol.PowerSleep))
	assert.Error(t, h.SetSensorPoll(protocol.ValueID(5), 1))
	assert.Error(t, h.SetSensorPower(protocol.ValueLight, protocol.Power(7)))
	assert.Equal(t, 2, changes)

	assert.Equal(t, uint32(30), h.SensorPoll(protocol.ValueLight))
	assert.Equal(t, uint32(0), h.SensorPoll(protocol.ValueTemperature))
	assert.Equal(t, protocol.PowerSleep, h.SensorPower(protocol.ValueTemperature))
	assert.Equal(t, protocol.PowerAwake, h.SensorPower(protocol.ValueLight))

	s := h.Settings()
	s.SensorPollSec[protocol.ValueLight] = 1
	assert.Equal(t, uint32(30), h.SensorPoll(protocol.ValueLight), "Settings returns copy")
	assert.Empty(t, e.stack.take(), "sensor settings are local")
}

func TestContextString(t *testing.T) {
	t.Parallel()
	e := newTestEnv(t, testHub)
	h := NewHub(e.env, HubSettings{PollIntervalSec: 6})
	h.Context().Values[protocol.ValueLight] = 5
	h.Context().Values[protocol.ValueTemperature] = 20
	assert.Equal(t, "hub id=0 state=idle interval=6s armed=false temp=20 light=5", h.Context().String())
}
