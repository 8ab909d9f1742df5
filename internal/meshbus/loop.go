package meshbus

import (
	"sort"
	"sync"

	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/mesh"
)

// Loop is in-process bus. Delivery is synchronous into DeliverFunc,
// which must not block (node.Deliver only queues).
type Loop struct {
	log   *log2.Log
	mu    sync.RWMutex
	ports map[mesh.Address]*Port
}

func NewLoop(log *log2.Log) *Loop {
	return &Loop{log: log, ports: make(map[mesh.Address]*Port)}
}

type Port struct {
	loop    *Loop
	addr    mesh.Address
	deliver DeliverFunc
}

var _ mesh.Stack = &Port{}

func (self *Loop) Attach(addr mesh.Address, deliver DeliverFunc) *Port {
	p := &Port{loop: self, addr: addr, deliver: deliver}
	self.mu.Lock()
	if _, ok := self.ports[addr]; ok {
		self.mu.Unlock()
		panic("code error meshbus duplicate address=" + addr.String())
	}
	self.ports[addr] = p
	self.mu.Unlock()
	return p
}

func (self *Loop) Detach(addr mesh.Address) {
	self.mu.Lock()
	delete(self.ports, addr)
	self.mu.Unlock()
}

func (self *Loop) Addresses() []mesh.Address {
	self.mu.RLock()
	defer self.mu.RUnlock()
	as := make([]mesh.Address, 0, len(self.ports))
	for a := range self.ports {
		as = append(as, a)
	}
	sort.Slice(as, func(i, j int) bool { return as[i] < as[j] })
	return as
}

func (self *Port) Addr() mesh.Address { return self.addr }

func (self *Port) SendCustomData(dst mesh.Address, frame []byte) error {
	if err := checkSize(dst, frame); err != nil {
		return err
	}
	env := EncodeEnvelope(self.addr, frame)

	self.loop.mu.RLock()
	defer self.loop.mu.RUnlock()
	if dst == mesh.Broadcast {
		for a, p := range self.loop.ports {
			if a != self.addr {
				p.receive(env)
			}
		}
		return nil
	}
	p, ok := self.loop.ports[dst]
	if !ok {
		return &mesh.SendError{Code: mesh.ResultUnreachable, Dst: dst}
	}
	p.receive(env)
	return nil
}

func (self *Port) receive(env []byte) {
	src, frame, length, err := DecodeEnvelope(env)
	if err != nil {
		self.loop.log.Errorf("meshbus port=%s drop err=%v", self.addr, err)
		return
	}
	self.loop.log.Debugf("meshbus %s -> %s length=%d", src, self.addr, length)
	self.deliver(src, frame, length)
}
