// Package role implements hub, relay and leaf behaviour.
// Every method must run on the node event loop: Role and its Context
// are not synchronized.
package role

import (
	"fmt"
	"sort"
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/meshnode/hardware/input"
	"github.com/temoto/meshnode/internal/scheduler"
	"github.com/temoto/meshnode/internal/timer"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/mesh"
	"github.com/temoto/meshnode/protocol"
)

type Kind string

const (
	KindHub   Kind = "hub"
	KindRelay Kind = "relay"
	KindLeaf  Kind = "leaf"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindHub, KindRelay, KindLeaf:
		return k, nil
	}
	return "", errors.NotValidf("role=%q", s)
}

type State uint8

const (
	StateIdle State = iota
	StateStreaming
	StateReporting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateReporting:
		return "reporting"
	}
	return fmt.Sprintf("state?%d", uint8(s))
}

// Context is the whole mutable state of a node role.
type Context struct {
	Kind        Kind
	Self        protocol.NodeID
	State       State
	Values      map[protocol.ValueID]uint32
	IntervalSec uint32

	sched *scheduler.Scheduler
}

// Armed reports scheduler state, always false on hub.
func (c *Context) Armed() bool { return c.sched != nil && c.sched.Armed() }

func (c *Context) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s id=%d state=%s interval=%ds armed=%t", c.Kind, c.Self, c.State, c.IntervalSec, c.Armed())
	vids := make([]int, 0, len(c.Values))
	for v := range c.Values {
		vids = append(vids, int(v))
	}
	sort.Ints(vids)
	for _, v := range vids {
		fmt.Fprintf(&sb, " %s=%d", protocol.ValueID(v), c.Values[protocol.ValueID(v)])
	}
	return sb.String()
}

type Role interface {
	OnFrame(src mesh.Address, b []byte, length int)
	OnTick(token timer.Handle)
	OnKey(key input.Key)
	Context() *Context
}

// IDs names every node the roles talk to.
type IDs struct {
	Self  protocol.NodeID
	Hub   protocol.NodeID
	Relay protocol.NodeID
}

type Env struct {
	Log    *log2.Log
	Stack  mesh.Stack
	Mapper mesh.Mapper
	Timers timer.Facility
	IDs    IDs
}

type Config struct {
	Kind  Kind
	Hub   HubSettings
	Relay RelayConfig
	Leaf  LeafConfig
}

func New(c Config, env Env) (Role, error) {
	switch c.Kind {
	case KindHub:
		return NewHub(env, c.Hub), nil
	case KindRelay:
		return NewRelay(env, c.Relay), nil
	case KindLeaf:
		if c.Leaf.Sensor == nil {
			return nil, errors.Errorf("leaf requires sensor")
		}
		return NewLeaf(env, c.Leaf), nil
	}
	return nil, errors.NotValidf("role=%q", c.Kind)
}

// base carries what every variant shares.
type base struct {
	env Env
	log *log2.Log
	ctx Context
}

func newBase(env Env, kind Kind) base {
	return base{
		env: env,
		log: env.Log.Prefixed(string(kind) + ": "),
		ctx: Context{
			Kind:   kind,
			Self:   env.IDs.Self,
			Values: make(map[protocol.ValueID]uint32, len(protocol.KnownValues)),
		},
	}
}

func (b *base) Context() *Context { return &b.ctx }

func (b *base) decode(src mesh.Address, bs []byte, length int) (*protocol.Frame, bool) {
	f, err := protocol.Decode(bs, length)
	if err != nil {
		b.log.Errorf("drop frame from=%s err=%v", src, err)
		return nil, false
	}
	b.log.Debugf("recv from=%s %s", src, f)
	return f, true
}

// send failure is logged with result code, caller state is unchanged and no retry
func (b *base) send(dst mesh.Address, fs protocol.Fields) error {
	err := b.env.Stack.SendCustomData(dst, protocol.Encode(fs))
	if err != nil {
		b.log.Errorf("send dst=%s %s code=%d err=%v", dst, fs, mesh.ResultCode(err), err)
		return err
	}
	b.log.Debugf("sent dst=%s %s", dst, fs)
	return nil
}

// cache stores known samples, returns false for unknown value id.
func (b *base) cache(f *protocol.Frame) (protocol.ValueID, uint32, bool) {
	vid, err := f.ValueID()
	if err != nil {
		b.log.Errorf("drop frame from=%d err=%v", f.Source(), err)
		return vid, 0, false
	}
	value, err := f.Value()
	if err != nil {
		b.log.Errorf("drop frame from=%d err=%v", f.Source(), err)
		return vid, 0, false
	}
	if !vid.Known() {
		b.log.Errorf("frame from=%d unknown %s value=%d", f.Source(), vid, value)
		return vid, value, false
	}
	b.ctx.Values[vid] = value
	return vid, value, true
}

func (b *base) address(id protocol.NodeID) mesh.Address { return b.env.Mapper.ToAddress(id) }
