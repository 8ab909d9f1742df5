// Package node is the single logical execution context of a mesh node.
//
// Non-reentrancy: inbound frames, timer ticks, key presses and operator
// commands are posted as events and executed one at a time on the Run
// goroutine. Role and role.Context are only touched from there, so they
// carry no locks. Code running inside an event must not call Do, it would
// wait for itself.
package node

import (
	"context"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/meshnode/hardware/input"
	"github.com/temoto/meshnode/internal/role"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/mesh"
)

const DefaultQueueLength = 64

var ErrStopped = errors.New("node stopped")

type Node struct {
	log    *log2.Log
	alive  *alive.Alive
	role   role.Role
	events chan func()
}

func New(log *log2.Log, a *alive.Alive, queueLength int) *Node {
	if a == nil {
		a = alive.NewAlive()
	}
	if queueLength <= 0 {
		queueLength = DefaultQueueLength
	}
	return &Node{
		log:    log,
		alive:  a,
		events: make(chan func(), queueLength),
	}
}

// Bind sets role before Run. Timer facility needs Node as poster
// before role exists, hence separate from New.
func (self *Node) Bind(r role.Role) {
	if self.role != nil {
		panic("code error node role already bound")
	}
	self.role = r
}

func (self *Node) Role() role.Role { return self.role }
func (self *Node) Alive() *alive.Alive { return self.alive }

// Post queues fn without blocking. Returns false if queue is full or node stopped.
func (self *Node) Post(fn func()) bool {
	if !self.alive.IsRunning() {
		return false
	}
	select {
	case self.events <- fn:
		return true
	default:
		self.log.Errorf("node queue full, event dropped")
		return false
	}
}

// Deliver is the mesh stack inbound custom data entry point.
// b is copied, caller may reuse it.
func (self *Node) Deliver(src mesh.Address, b []byte, length int) {
	cp := append([]byte(nil), b...)
	self.Post(func() { self.role.OnFrame(src, cp, length) })
}

func (self *Node) Key(k input.Key) {
	self.Post(func() { self.role.OnKey(k) })
}

// Do runs fn on the event loop and waits for result.
func (self *Node) Do(ctx context.Context, fn func(role.Role) error) error {
	done := make(chan error, 1)
	ev := func() { done <- fn(self.role) }
	select {
	case self.events <- ev:
	case <-ctx.Done():
		return ctx.Err()
	case <-self.alive.StopChan():
		return ErrStopped
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-self.alive.StopChan():
		return ErrStopped
	}
}

// Run blocks until Stop.
func (self *Node) Run() {
	if self.role == nil {
		panic("code error node.Run without role")
	}
	if !self.alive.Add(1) {
		return
	}
	defer self.alive.Done()
	self.log.Debugf("node run %s", self.role.Context())
	stopch := self.alive.StopChan()
	for {
		select {
		case fn := <-self.events:
			fn()
		case <-stopch:
			return
		}
	}
}

func (self *Node) Stop() { self.alive.Stop() }
func (self *Node) Wait() { self.alive.Wait() }
