package role

import (
	"github.com/temoto/meshnode/hardware/input"
	"github.com/temoto/meshnode/hardware/sensor"
	"github.com/temoto/meshnode/internal/scheduler"
	"github.com/temoto/meshnode/internal/timer"
	"github.com/temoto/meshnode/mesh"
	"github.com/temoto/meshnode/protocol"
)

const DefaultLeafIntervalSec = 3

type LeafConfig struct {
	Sensor sensor.Sensor
	// interval armed by Key1
	KeyIntervalSec uint32
	Autostart      bool
}

type Leaf struct {
	base
	config LeafConfig
	sched  *scheduler.Scheduler
}

var _ Role = &Leaf{}

func NewLeaf(env Env, config LeafConfig) *Leaf {
	if config.KeyIntervalSec == 0 {
		config.KeyIntervalSec = DefaultLeafIntervalSec
	}
	self := &Leaf{
		base:   newBase(env, KindLeaf),
		config: config,
	}
	self.sched = scheduler.New(env.Timers, self.OnTick, self.log)
	self.ctx.sched = self.sched
	if config.Autostart {
		self.arm(config.KeyIntervalSec)
	}
	return self
}

func (self *Leaf) arm(sec uint32) {
	self.ctx.IntervalSec = sec
	self.sched.Reconfigure(sec)
	if self.sched.Armed() {
		self.ctx.State = StateReporting
	} else {
		self.ctx.State = StateIdle
	}
}

func (self *Leaf) disarm() {
	self.sched.Stop()
	self.ctx.State = StateIdle
}

func (self *Leaf) OnFrame(src mesh.Address, b []byte, length int) {
	f, ok := self.decode(src, b, length)
	if !ok {
		return
	}
	if f.Source() != self.env.IDs.Relay || f.Dest() != self.ctx.Self {
		self.log.Debugf("ignore frame from=%d dest=%d", f.Source(), f.Dest())
		return
	}
	interval, err := f.PollInterval()
	if err != nil {
		self.log.Errorf("drop relay frame err=%v", err)
		return
	}
	fun, _ := f.Func()
	power, _ := f.Power()
	if fun == protocol.FuncStop || power == protocol.PowerSleep {
		self.disarm()
		self.log.Infof("relay stop func=%s power=%s", fun, power)
		return
	}
	self.arm(interval)
	self.log.Infof("relay interval=%ds state=%s", interval, self.ctx.State)
}

func (self *Leaf) OnTick(token timer.Handle) {
	if self.ctx.State != StateReporting {
		self.log.Debugf("tick token=%d while %s", token, self.ctx.State)
		return
	}
	s := self.config.Sensor
	v, err := s.Read()
	if err != nil {
		self.log.Errorf("sensor=%s err=%v", s, err)
		return
	}
	value := uint32(v)
	self.ctx.Values[s.Kind()] = value
	_ = self.send(self.address(self.env.IDs.Relay), protocol.Fields{
		Source:          self.ctx.Self,
		Dest:            self.env.IDs.Relay,
		PollIntervalSec: self.ctx.IntervalSec,
		Power:           protocol.PowerAwake,
		ValueID:         s.Kind(),
		Value:           value,
	})
}

// Key1 arms at local interval if idle, Key2 disarms.
func (self *Leaf) OnKey(key input.Key) {
	switch key {
	case input.Key1:
		if self.sched.Armed() {
			self.log.Debugf("key=%s already reporting", key)
			return
		}
		self.arm(self.config.KeyIntervalSec)
		self.log.Infof("key=%s start interval=%ds", key, self.config.KeyIntervalSec)
	case input.Key2:
		self.disarm()
		self.log.Infof("key=%s stop", key)
	default:
		self.log.Debugf("key=%s no action", key)
	}
}
