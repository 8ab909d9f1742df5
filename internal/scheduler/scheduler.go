// Package scheduler owns the single reporting timer of a role.
// Stop always precedes start, so at most one timer is ever live.
// All methods must be called from the node event loop.
package scheduler

import (
	"time"

	"github.com/temoto/meshnode/helpers"
	"github.com/temoto/meshnode/internal/timer"
	"github.com/temoto/meshnode/log2"
)

// TickFunc receives the timer handle as opaque correlation token.
// Runs on the event loop, must not block.
type TickFunc func(token timer.Handle)

type Scheduler struct {
	log         *log2.Log
	timers      timer.Facility
	tick        TickFunc
	handle      timer.Handle
	oneShot     bool
	intervalSec uint32
}

func New(timers timer.Facility, tick TickFunc, log *log2.Log) *Scheduler {
	return &Scheduler{
		log:    log,
		timers: timers,
		tick:   tick,
	}
}

func Period(sec uint32) time.Duration {
	return time.Duration(helpers.IntervalMillis(sec)) * time.Millisecond
}

// Start arms periodic timer, stopping armed one first. Zero interval only disarms.
func (self *Scheduler) Start(sec uint32) { self.arm(sec, false) }

// StartOnce is Start with one-shot timer, scheduler goes idle after the tick.
func (self *Scheduler) StartOnce(sec uint32) { self.arm(sec, true) }

func (self *Scheduler) Reconfigure(sec uint32) {
	self.Stop()
	self.Start(sec)
}

func (self *Scheduler) Stop() {
	if self.handle == 0 {
		return
	}
	self.timers.Stop(self.handle)
	self.log.Debugf("scheduler stop timer=%d", self.handle)
	self.handle = 0
}

func (self *Scheduler) arm(sec uint32, oneShot bool) {
	self.Stop()
	if sec == 0 {
		return
	}
	self.intervalSec = sec
	self.oneShot = oneShot
	if oneShot {
		self.handle = self.timers.StartOneShot(Period(sec), self.onTick)
	} else {
		self.handle = self.timers.StartPeriodic(Period(sec), self.onTick)
	}
	self.log.Debugf("scheduler start interval=%ds once=%t timer=%d", sec, oneShot, self.handle)
}

func (self *Scheduler) onTick(h timer.Handle) {
	if h != self.handle {
		self.log.Debugf("scheduler stale tick timer=%d current=%d", h, self.handle)
		return
	}
	if self.oneShot {
		self.handle = 0
	}
	self.tick(h)
}

func (self *Scheduler) Armed() bool {
	return self.handle != 0 && self.timers.IsActive(self.handle)
}

