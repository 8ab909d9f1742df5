// Package timer is the timer facility used by the reporting scheduler.
// Callbacks never run on timer goroutines, they are posted into the node
// event loop and run there one at a time.
package timer

import (
	"sync"
	"time"

	"github.com/temoto/meshnode/log2"
)

// Handle identifies a started timer. Zero is never a valid handle.
type Handle uint64

type Callback func(Handle)

type Facility interface {
	StartPeriodic(interval time.Duration, cb Callback) Handle
	StartOneShot(interval time.Duration, cb Callback) Handle
	Stop(h Handle)
	IsActive(h Handle) bool
}

// Poster runs fn on the event loop. Returns false if fn was dropped.
type Poster interface {
	Post(fn func()) bool
}

type PostFunc func(fn func()) bool

func (f PostFunc) Post(fn func()) bool { return f(fn) }

type hostTimer struct {
	stopch  chan struct{}
	oneShot bool
}

// Host is Facility backed by runtime timers.
type Host struct {
	log    *log2.Log
	post   Poster
	mu     sync.Mutex
	last   Handle
	active map[Handle]*hostTimer
}

func NewHost(post Poster, log *log2.Log) *Host {
	return &Host{
		log:    log,
		post:   post,
		active: make(map[Handle]*hostTimer),
	}
}

func (self *Host) StartPeriodic(interval time.Duration, cb Callback) Handle {
	return self.start(interval, cb, false)
}

func (self *Host) StartOneShot(interval time.Duration, cb Callback) Handle {
	return self.start(interval, cb, true)
}

func (self *Host) start(interval time.Duration, cb Callback, oneShot bool) Handle {
	if interval <= 0 {
		return 0
	}
	t := &hostTimer{stopch: make(chan struct{}), oneShot: oneShot}
	self.mu.Lock()
	self.last++
	h := self.last
	self.active[h] = t
	self.mu.Unlock()
	go self.run(h, t, interval, cb)
	return h
}

func (self *Host) run(h Handle, t *hostTimer, interval time.Duration, cb Callback) {
	if t.oneShot {
		tm := time.NewTimer(interval)
		defer tm.Stop()
		select {
		case <-tm.C:
			self.fire(h, cb)
		case <-t.stopch:
		}
		return
	}

	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-tk.C:
			self.fire(h, cb)
		case <-t.stopch:
			return
		}
	}
}

func (self *Host) fire(h Handle, cb Callback) {
	ok := self.post.Post(func() {
		// timer may be stopped while tick waited in queue
		self.mu.Lock()
		t, ok := self.active[h]
		if ok && t.oneShot {
			delete(self.active, h)
		}
		self.mu.Unlock()
		if ok {
			cb(h)
		}
	})
	if !ok {
		self.log.Debugf("timer=%d tick dropped", h)
	}
}

func (self *Host) Stop(h Handle) {
	self.mu.Lock()
	t, ok := self.active[h]
	if ok {
		delete(self.active, h)
	}
	self.mu.Unlock()
	if ok {
		close(t.stopch)
	}
}

func (self *Host) IsActive(h Handle) bool {
	self.mu.Lock()
	_, ok := self.active[h]
	self.mu.Unlock()
	return ok
}

// StopAll is used on shutdown.
func (self *Host) StopAll() {
	self.mu.Lock()
	all := self.active
	self.active = make(map[Handle]*hostTimer)
	self.mu.Unlock()
	for _, t := range all {
		close(t.stopch)
	}
}
