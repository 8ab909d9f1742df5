package role

import (
	"github.com/juju/errors"
	"github.com/temoto/meshnode/hardware/input"
	"github.com/temoto/meshnode/internal/timer"
	"github.com/temoto/meshnode/mesh"
	"github.com/temoto/meshnode/protocol"
)

const DefaultPollIntervalSec = 5

// HubSettings are operator tunables, persisted between restarts.
// Sensor poll rates and power flags are informational only,
// they are stored and reported but never sent.
type HubSettings struct {
	PollIntervalSec uint32
	SensorPollSec   map[protocol.ValueID]uint32
	SensorPower     map[protocol.ValueID]protocol.Power
}

func (s HubSettings) clone() HubSettings {
	r := HubSettings{
		PollIntervalSec: s.PollIntervalSec,
		SensorPollSec:   make(map[protocol.ValueID]uint32, len(s.SensorPollSec)),
		SensorPower:     make(map[protocol.ValueID]protocol.Power, len(s.SensorPower)),
	}
	for k, v := range s.SensorPollSec {
		r.SensorPollSec[k] = v
	}
	for k, v := range s.SensorPower {
		r.SensorPower[k] = v
	}
	return r
}

// Telemetry is one accepted sample, as seen by the hub.
type Telemetry struct {
	Hub         protocol.NodeID
	Source      protocol.NodeID
	ValueID     protocol.ValueID
	Value       uint32
	IntervalSec uint32
}

// TelemetryObserver is called on the event loop, must not block on network.
type TelemetryObserver interface {
	OnTelemetry(Telemetry)
}

type TelemetryFunc func(Telemetry)

func (f TelemetryFunc) OnTelemetry(t Telemetry) { f(t) }

type Hub struct {
	base
	settings   HubSettings
	frameLog   bool
	observers  []TelemetryObserver
	onSettings func(HubSettings)
}

var _ Role = &Hub{}

func NewHub(env Env, settings HubSettings) *Hub {
	if settings.PollIntervalSec == 0 {
		settings.PollIntervalSec = DefaultPollIntervalSec
	}
	self := &Hub{
		base:     newBase(env, KindHub),
		settings: settings.clone(),
		frameLog: true,
	}
	self.ctx.IntervalSec = self.settings.PollIntervalSec
	return self
}

func (self *Hub) AddObserver(o TelemetryObserver) { self.observers = append(self.observers, o) }

// OnSettings is called after each operator change, e.g. to persist.
func (self *Hub) OnSettings(f func(HubSettings)) { self.onSettings = f }

func (self *Hub) Settings() HubSettings { return self.settings.clone() }

func (self *Hub) settingsChanged() {
	if self.onSettings != nil {
		self.onSettings(self.settings.clone())
	}
}

func (self *Hub) relay() mesh.Address { return self.address(self.env.IDs.Relay) }

func (self *Hub) startFrame() protocol.Fields {
	return protocol.Fields{
		Source:          self.ctx.Self,
		Dest:            self.env.IDs.Relay,
		Func:            protocol.FuncStart,
		PollIntervalSec: self.settings.PollIntervalSec,
		Power:           protocol.PowerAwake,
	}
}

func (self *Hub) StartTransfer() error {
	if err := self.send(self.relay(), self.startFrame()); err != nil {
		return errors.Annotate(err, "start transfer")
	}
	self.ctx.State = StateStreaming
	self.log.Infof("data transfer started interval=%ds", self.settings.PollIntervalSec)
	return nil
}

func (self *Hub) StopTransfer() error {
	f := protocol.Fields{
		Source: self.ctx.Self,
		Dest:   self.env.IDs.Relay,
		Func:   protocol.FuncStop,
		Power:  protocol.PowerSleep,
	}
	if err := self.send(self.relay(), f); err != nil {
		return errors.Annotate(err, "stop transfer")
	}
	self.ctx.State = StateIdle
	self.log.Infof("data transfer stopped")
	return nil
}

func (self *Hub) Streaming() bool { return self.ctx.State == StateStreaming }

// SetPollInterval stores n and while streaming tells relay about it.
// Hub itself never samples, so no local timer is involved.
func (self *Hub) SetPollInterval(n uint32) error {
	if n == 0 {
		return errors.NotValidf("poll interval=0")
	}
	self.settings.PollIntervalSec = n
	self.ctx.IntervalSec = n
	self.settingsChanged()
	if self.ctx.State == StateStreaming {
		return errors.Annotate(self.send(self.relay(), self.startFrame()), "update interval")
	}
	return nil
}

func (self *Hub) PollInterval() uint32 { return self.settings.PollIntervalSec }

func (self *Hub) SetSensorPoll(v protocol.ValueID, sec uint32) error {
	if !v.Known() {
		return errors.NotValidf("sensor %s", v)
	}
	if self.settings.SensorPollSec == nil {
		self.settings.SensorPollSec = make(map[protocol.ValueID]uint32)
	}
	self.settings.SensorPollSec[v] = sec
	self.settingsChanged()
	return nil
}

func (self *Hub) SensorPoll(v protocol.ValueID) uint32 { return self.settings.SensorPollSec[v] }

func (self *Hub) SetSensorPower(v protocol.ValueID, p protocol.Power) error {
	if !v.Known() {
		return errors.NotValidf("sensor %s", v)
	}
	if p != protocol.PowerAwake && p != protocol.PowerSleep {
		return errors.NotValidf("power %s", p)
	}
	if self.settings.SensorPower == nil {
		self.settings.SensorPower = make(map[protocol.ValueID]protocol.Power)
	}
	self.settings.SensorPower[v] = p
	self.settingsChanged()
	return nil
}

// SensorPower defaults to awake.
func (self *Hub) SensorPower(v protocol.ValueID) protocol.Power {
	if p, ok := self.settings.SensorPower[v]; ok {
		return p
	}
	return protocol.PowerAwake
}

// ToggleFrameLog switches operator log of received telemetry.
func (self *Hub) ToggleFrameLog() bool {
	self.frameLog = !self.frameLog
	return self.frameLog
}

func (self *Hub) OnFrame(src mesh.Address, b []byte, length int) {
	f, ok := self.decode(src, b, length)
	if !ok {
		return
	}
	if f.Source() != self.env.IDs.Relay {
		self.log.Debugf("ignore frame from=%d, expect relay=%d", f.Source(), self.env.IDs.Relay)
		return
	}
	vid, value, ok := self.cache(f)
	if !ok {
		return
	}
	interval, _ := f.PollInterval()
	if self.frameLog {
		self.log.Infof("telemetry from=%d %s=%d interval=%ds", f.Source(), vid, value, interval)
	}
	t := Telemetry{
		Hub:         self.ctx.Self,
		Source:      f.Source(),
		ValueID:     vid,
		Value:       value,
		IntervalSec: interval,
	}
	for _, o := range self.observers {
		o.OnTelemetry(t)
	}
}

func (self *Hub) OnTick(token timer.Handle) {
	self.log.Debugf("unexpected tick token=%d", token)
}

func (self *Hub) OnKey(key input.Key) {
	self.log.Debugf("key=%s no action", key)
}
