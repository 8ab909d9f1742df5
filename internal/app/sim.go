package app

import (
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/meshnode/hardware/sensor"
	"github.com/temoto/meshnode/internal/config"
	"github.com/temoto/meshnode/internal/meshbus"
	"github.com/temoto/meshnode/internal/role"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/protocol"
)

// Initial fixed sensor readings of simulated leaves.
const (
	SimTemperature = 21
	SimLight       = 300
)

// Sim is hub, relay and leaves on one in-process bus.
type Sim struct {
	Alive *alive.Alive
	Bus   *meshbus.Loop
	Hub   *App
	Nodes []*App
}

// NewSim derives per node configs from base. Leaves come from ids.leaves,
// one leaf after relay id if empty; sensor kinds alternate temp/light.
func NewSim(base *config.Config, log *log2.Log) (*Sim, error) {
	self := &Sim{
		Alive: alive.NewAlive(),
		Bus:   meshbus.NewLoop(log.Prefixed("bus: ")),
	}
	leaves := base.IDs.Leaves
	if len(leaves) == 0 {
		leaves = []int{base.IDs.Relay + 1}
	}

	hub := *base
	hub.Node.Role = string(role.KindHub)
	hub.Node.ID = base.IDs.Hub
	hub.IDs.Leaves = leaves
	hub.Input.Gpio.Enable = false
	hub.Input.DevInputEvent.Enable = false
	if err := self.add(&hub, log); err != nil {
		self.Close()
		return nil, err
	}
	self.Hub = self.Nodes[0]

	relay := hub
	relay.Node.Role = string(role.KindRelay)
	relay.Node.ID = base.IDs.Relay
	relay.Uplink.Enabled = false
	relay.Hub.PersistDir = ""
	if err := self.add(&relay, log); err != nil {
		self.Close()
		return nil, err
	}

	for i, id := range leaves {
		leaf := relay
		leaf.Node.Role = string(role.KindLeaf)
		leaf.Node.ID = id
		leaf.Leaf.Autostart = true
		leaf.Leaf.Sensor = sensor.Config{Driver: sensor.DriverFixed}
		if i%2 == 0 {
			leaf.Leaf.Sensor.Kind = protocol.ValueTemperature.String()
			leaf.Leaf.Sensor.Initial = SimTemperature
		} else {
			leaf.Leaf.Sensor.Kind = protocol.ValueLight.String()
			leaf.Leaf.Sensor.Initial = SimLight
		}
		if err := self.add(&leaf, log); err != nil {
			self.Close()
			return nil, err
		}
	}
	return self, nil
}

func (self *Sim) add(c *config.Config, log *log2.Log) error {
	if err := c.Validate(); err != nil {
		return errors.Annotatef(err, "sim %s id=%d", c.Node.Role, c.Node.ID)
	}
	a := New(log.Prefixed(c.Node.Role + ": "))
	if err := a.Init(c, LoopAttacher(self.Bus)); err != nil {
		a.Close()
		return errors.Annotatef(err, "sim %s id=%d", c.Node.Role, c.Node.ID)
	}
	a.StopWith(self.Alive)
	self.Nodes = append(self.Nodes, a)
	return nil
}

func (self *Sim) Start() {
	for _, a := range self.Nodes {
		a.Start()
	}
}

func (self *Sim) Stop() { self.Alive.Stop() }

func (self *Sim) Wait() {
	for _, a := range self.Nodes {
		a.Wait()
	}
}

// Close releases nodes that were never started.
func (self *Sim) Close() {
	self.Alive.Stop()
	for _, a := range self.Nodes {
		a.Close()
	}
}
