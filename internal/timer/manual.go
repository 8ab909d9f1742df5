package timer

import (
	"sort"
	"time"
)

type manualTimer struct {
	interval time.Duration
	oneShot  bool
	cb       Callback
}

// Manual is Facility for tests: nothing fires until Fire is called.
// Not safe for concurrent use, same as code running on the event loop.
type Manual struct {
	last   Handle
	timers map[Handle]manualTimer
}

func NewManual() *Manual { return &Manual{timers: make(map[Handle]manualTimer)} }

func (self *Manual) StartPeriodic(interval time.Duration, cb Callback) Handle {
	return self.start(interval, cb, false)
}

func (self *Manual) StartOneShot(interval time.Duration, cb Callback) Handle {
	return self.start(interval, cb, true)
}

func (self *Manual) start(interval time.Duration, cb Callback, oneShot bool) Handle {
	if interval <= 0 {
		return 0
	}
	self.last++
	self.timers[self.last] = manualTimer{interval: interval, oneShot: oneShot, cb: cb}
	return self.last
}

func (self *Manual) Stop(h Handle) { delete(self.timers, h) }

func (self *Manual) IsActive(h Handle) bool {
	_, ok := self.timers[h]
	return ok
}

// Fire runs callback of h as if its interval elapsed. Returns false for inactive h.
func (self *Manual) Fire(h Handle) bool {
	t, ok := self.timers[h]
	if !ok {
		return false
	}
	if t.oneShot {
		delete(self.timers, h)
	}
	t.cb(h)
	return true
}

// FireAll fires every timer active at call time, in start order.
func (self *Manual) FireAll() int {
	hs := self.Active()
	n := 0
	for _, h := range hs {
		if self.Fire(h) {
			n++
		}
	}
	return n
}

func (self *Manual) Active() []Handle {
	hs := make([]Handle, 0, len(self.timers))
	for h := range self.timers {
		hs = append(hs, h)
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// Interval of active timer, zero if h is not active.
func (self *Manual) Interval(h Handle) time.Duration { return self.timers[h].interval }
