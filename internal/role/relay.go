package role

import (
	"github.com/temoto/meshnode/hardware/input"
	"github.com/temoto/meshnode/internal/scheduler"
	"github.com/temoto/meshnode/internal/timer"
	"github.com/temoto/meshnode/mesh"
	"github.com/temoto/meshnode/protocol"
)

// RelayConfig.Keys maps local key to interval sent to Target leaf.
type RelayConfig struct {
	Target protocol.NodeID
	Keys   map[input.Key]uint32
}

func DefaultRelayKeys() map[input.Key]uint32 {
	return map[input.Key]uint32{input.Key1: 3, input.Key2: 10}
}

type Relay struct {
	base
	config RelayConfig
	sched  *scheduler.Scheduler
}

var _ Role = &Relay{}

func NewRelay(env Env, config RelayConfig) *Relay {
	if config.Keys == nil {
		config.Keys = DefaultRelayKeys()
	}
	self := &Relay{
		base:   newBase(env, KindRelay),
		config: config,
	}
	self.sched = scheduler.New(env.Timers, self.OnTick, self.log)
	self.ctx.sched = self.sched
	return self
}

func (self *Relay) OnFrame(src mesh.Address, b []byte, length int) {
	f, ok := self.decode(src, b, length)
	if !ok {
		return
	}
	if f.Source() == self.env.IDs.Hub {
		self.onHub(f)
		return
	}

	fun, err := f.Func()
	if err == nil && fun != protocol.FuncNone {
		self.log.Debugf("ignore control %s from=%d", fun, f.Source())
		return
	}
	if vid, value, ok := self.cache(f); ok {
		self.log.Debugf("cached from=%d %s=%d", f.Source(), vid, value)
	}
}

func (self *Relay) onHub(f *protocol.Frame) {
	if f.Dest() != self.ctx.Self {
		self.log.Debugf("ignore hub frame dest=%d", f.Dest())
		return
	}
	fun, err := f.Func()
	if err != nil {
		self.log.Errorf("drop hub frame err=%v", err)
		return
	}
	switch fun {
	case protocol.FuncStart:
		interval, err := f.PollInterval()
		if err != nil {
			self.log.Errorf("drop hub frame err=%v", err)
			return
		}
		self.ctx.IntervalSec = interval
		self.sched.Reconfigure(interval)
		if self.sched.Armed() {
			self.ctx.State = StateReporting
		} else {
			self.ctx.State = StateIdle
		}
		self.log.Infof("hub start interval=%ds state=%s", interval, self.ctx.State)

	case protocol.FuncStop:
		self.sched.Stop()
		self.ctx.State = StateIdle
		self.log.Infof("hub stop")

	default:
		self.log.Errorf("hub frame unknown %s", fun)
	}
}

// OnTick reports every cached value to hub and listening leaves.
func (self *Relay) OnTick(token timer.Handle) {
	if self.ctx.State != StateReporting {
		self.log.Debugf("tick token=%d while %s", token, self.ctx.State)
		return
	}
	for _, vid := range protocol.KnownValues {
		value, ok := self.ctx.Values[vid]
		if !ok {
			continue
		}
		_ = self.send(mesh.Broadcast, protocol.Fields{
			Source:          self.ctx.Self,
			Dest:            self.env.IDs.Hub,
			PollIntervalSec: self.ctx.IntervalSec,
			ValueID:         vid,
			Value:           value,
		})
	}
}

// OnKey asks target leaf to report at the key interval.
func (self *Relay) OnKey(key input.Key) {
	interval, ok := self.config.Keys[key]
	if !ok {
		self.log.Debugf("key=%s no action", key)
		return
	}
	self.log.Infof("key=%s leaf=%d interval=%ds", key, self.config.Target, interval)
	_ = self.send(self.address(self.config.Target), protocol.Fields{
		Source:          self.ctx.Self,
		Dest:            self.config.Target,
		PollIntervalSec: interval,
		Power:           protocol.PowerAwake,
	})
}
