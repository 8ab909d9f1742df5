// Package config reads node configuration from HCL files.
//
// Example:
//   node { id = 22 role = "relay" }
//   ids { hub = 0 relay = 22 leaves = [35, 36] }
//   relay { target = 35 key1_interval_sec = 3 key2_interval_sec = 10 }
//   mesh { driver = "mqtt" mqtt { broker = "tcp://127.0.0.1:1883" } }
//   include "local.hcl" { optional = true }
package config

import (
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/meshnode/hardware/input"
	"github.com/temoto/meshnode/hardware/sensor"
	"github.com/temoto/meshnode/helpers"
	"github.com/temoto/meshnode/internal/meshbus"
	"github.com/temoto/meshnode/internal/node"
	"github.com/temoto/meshnode/internal/role"
	"github.com/temoto/meshnode/internal/uplink"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/mesh"
	"github.com/temoto/meshnode/protocol"
)

const (
	MeshLoop = "loop"
	MeshMQTT = "mqtt"
)

const unset = -1

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []Source `hcl:"include"`

	Node struct {
		ID          int    `hcl:"id"`
		Role        string `hcl:"role"`
		AddressBase int    `hcl:"address_base"`
		QueueLength int    `hcl:"queue_length"`
	} `hcl:"node"`
	IDs struct {
		Hub    int   `hcl:"hub"`
		Relay  int   `hcl:"relay"`
		Leaves []int `hcl:"leaves"`
	} `hcl:"ids"`
	Hub struct {
		PollIntervalSec int            `hcl:"poll_interval_sec"`
		SensorPollSec   map[string]int `hcl:"sensor_poll_sec"`
		PersistDir      string         `hcl:"persist_dir"`
		Shell           bool           `hcl:"shell"`
	} `hcl:"hub"`
	Relay struct {
		Target          int `hcl:"target"`
		Key1IntervalSec int `hcl:"key1_interval_sec"`
		Key2IntervalSec int `hcl:"key2_interval_sec"`
	} `hcl:"relay"`
	Leaf struct {
		Sensor         sensor.Config `hcl:"sensor"`
		KeyIntervalSec int           `hcl:"key_interval_sec"`
		Autostart      bool          `hcl:"autostart"`
	} `hcl:"leaf"`
	Mesh struct {
		Driver string             `hcl:"driver"`
		MQTT   meshbus.MQTTConfig `hcl:"mqtt"`
	} `hcl:"mesh"`
	Uplink uplink.Config `hcl:"uplink"`
	Input  struct {
		Gpio struct {
			Enable     bool   `hcl:"enable"`
			Chip       string `hcl:"chip"`
			Key1Line   int    `hcl:"key1_line"`
			Key2Line   int    `hcl:"key2_line"`
			DebounceMs int    `hcl:"debounce_ms"`
		} `hcl:"gpio"`
		DevInputEvent struct {
			Enable   bool   `hcl:"enable"`
			Device   string `hcl:"device"`
			Key1Code int    `hcl:"key1_code"`
			Key2Code int    `hcl:"key2_code"`
		} `hcl:"dev_input_event"`
	} `hcl:"input"`
	Log struct {
		Debug      bool   `hcl:"debug"`
		File       string `hcl:"file"`
		MaxSizeMB  int    `hcl:"max_size_mb"`
		MaxBackups int    `hcl:"max_backups"`
		MaxAgeDays int    `hcl:"max_age_days"`
		Compress   bool   `hcl:"compress"`
	} `hcl:"log"`
}

type Source struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

// New returns config with defaults, before any source is read.
func New() *Config {
	c := &Config{includeSeen: make(map[string]struct{})}
	c.Node.ID = unset
	c.Node.Role = string(role.KindHub)
	c.Node.AddressBase = int(mesh.DefaultBase)
	c.Node.QueueLength = node.DefaultQueueLength
	c.IDs.Hub = int(protocol.HubID)
	c.IDs.Relay = unset
	c.Hub.PollIntervalSec = role.DefaultPollIntervalSec
	c.Relay.Target = unset
	c.Relay.Key1IntervalSec = 3
	c.Relay.Key2IntervalSec = 10
	c.Leaf.KeyIntervalSec = role.DefaultLeafIntervalSec
	c.Mesh.Driver = MeshLoop
	c.Input.Gpio.Chip = "/dev/gpiochip0"
	c.Input.Gpio.Key1Line = unset
	c.Input.Gpio.Key2Line = unset
	c.Input.Gpio.DebounceMs = 50
	c.Input.DevInputEvent.Device = "/dev/input/event0"
	c.Input.DevInputEvent.Key1Code = 2 // KEY_1
	c.Input.DevInputEvent.Key2Code = 3 // KEY_2
	c.Log.MaxSizeMB = 10
	c.Log.MaxBackups = 3
	return c
}

func (c *Config) read(log *log2.Log, fs FullReader, source Source, errs *[]error) {
	norm := fs.Normalize(source.Name)
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s", source.Name)
		*errs = append(*errs, err)
		return
	}

	var includes []Source
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// Read parses sources in order, later values override earlier.
// Returned error folds all read and validation problems.
func Read(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		panic("code error config.Read() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		if err := osfs.SetBase(dir); err != nil {
			return nil, err
		}
		names[0] = name
	}
	c := New()
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, Source{Name: name}, &errs)
	}
	if len(errs) == 0 {
		errs = append(errs, c.validate()...)
	}
	return c, helpers.FoldErrors(errs)
}

func MustRead(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := Read(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}

// Validate returns all problems folded into one error.
func (c *Config) Validate() error { return helpers.FoldErrors(c.validate()) }

func (c *Config) validate() []error {
	errs := make([]error, 0)
	checkID := func(name string, v int) {
		if v < 0 || v > 0xff {
			errs = append(errs, errors.NotValidf("%s=%d must be 0..255", name, v))
		}
	}
	checkSeconds := func(name string, v int) {
		if v < 0 {
			errs = append(errs, errors.NotValidf("%s=%d must be >= 0", name, v))
		}
	}
	kind, err := role.ParseKind(c.Node.Role)
	if err != nil {
		errs = append(errs, err)
	}
	if c.Node.ID == unset && kind == role.KindHub {
		c.Node.ID = c.IDs.Hub
	}
	checkID("node.id", c.Node.ID)
	checkID("ids.hub", c.IDs.Hub)
	checkID("ids.relay", c.IDs.Relay)
	for _, leaf := range c.IDs.Leaves {
		checkID("ids.leaves", leaf)
		if leaf == c.IDs.Hub || leaf == c.IDs.Relay {
			errs = append(errs, errors.NotValidf("ids.leaves contains hub or relay id=%d", leaf))
		}
	}
	if c.IDs.Relay == c.IDs.Hub {
		errs = append(errs, errors.NotValidf("ids.relay equals ids.hub=%d", c.IDs.Hub))
	}
	switch kind {
	case role.KindHub:
		if c.Node.ID != c.IDs.Hub {
			errs = append(errs, errors.NotValidf("hub node.id=%d differs from ids.hub=%d", c.Node.ID, c.IDs.Hub))
		}
	case role.KindRelay:
		if c.Node.ID != c.IDs.Relay {
			errs = append(errs, errors.NotValidf("relay node.id=%d differs from ids.relay=%d", c.Node.ID, c.IDs.Relay))
		}
		if c.Relay.Target != unset {
			checkID("relay.target", c.Relay.Target)
		}
		if c.Relay.Target == unset && len(c.IDs.Leaves) == 0 && c.IDs.Relay >= 0xff {
			errs = append(errs, errors.NotValidf("relay.target unset and ids.relay=%d has no next id", c.IDs.Relay))
		} else if target := int(c.RelayTarget()); target == c.IDs.Hub || target == c.IDs.Relay {
			errs = append(errs, errors.NotValidf("relay.target=%d is hub or relay", target))
		}
	case role.KindLeaf:
		if _, err := c.Leaf.Sensor.ValueID(); err != nil {
			errs = append(errs, errors.Annotate(err, "leaf.sensor"))
		}
	}
	if c.Node.AddressBase <= 0 || c.Node.AddressBase&0xff != 0 || c.Node.AddressBase+0xff >= int(mesh.Broadcast) {
		errs = append(errs, errors.NotValidf("node.address_base=%#04x", c.Node.AddressBase))
	}
	if c.Hub.PollIntervalSec <= 0 {
		errs = append(errs, errors.NotValidf("hub.poll_interval_sec=%d", c.Hub.PollIntervalSec))
	}
	for name, sec := range c.Hub.SensorPollSec {
		if _, ok := protocol.ParseValueID(name); !ok {
			errs = append(errs, errors.NotValidf("hub.sensor_poll_sec key=%q", name))
		}
		checkSeconds("hub.sensor_poll_sec."+name, sec)
	}
	checkSeconds("relay.key1_interval_sec", c.Relay.Key1IntervalSec)
	checkSeconds("relay.key2_interval_sec", c.Relay.Key2IntervalSec)
	checkSeconds("leaf.key_interval_sec", c.Leaf.KeyIntervalSec)
	switch c.Mesh.Driver {
	case MeshLoop:
	case MeshMQTT:
		if c.Mesh.MQTT.BrokerURL == "" {
			errs = append(errs, errors.NotValidf("mesh.mqtt.broker empty"))
		}
	default:
		errs = append(errs, errors.NotSupportedf("mesh.driver=%q", c.Mesh.Driver))
	}
	if c.Uplink.Enabled && kind != role.KindHub {
		errs = append(errs, errors.NotValidf("uplink enabled on role=%s", kind))
	}
	if c.Uplink.Enabled && c.Uplink.QueuePath == "" {
		errs = append(errs, errors.NotValidf("uplink.queue_path empty"))
	}
	return errs
}

func (c *Config) Kind() role.Kind {
	k, _ := role.ParseKind(c.Node.Role)
	return k
}

func (c *Config) Mapper() mesh.Mapper { return mesh.NewMapper(mesh.Address(c.Node.AddressBase)) }

func (c *Config) RoleIDs() role.IDs {
	return role.IDs{
		Self:  protocol.NodeID(c.Node.ID),
		Hub:   protocol.NodeID(c.IDs.Hub),
		Relay: protocol.NodeID(c.IDs.Relay),
	}
}

// RelayTarget defaults to first configured leaf.
func (c *Config) RelayTarget() protocol.NodeID {
	if c.Relay.Target != unset {
		return protocol.NodeID(c.Relay.Target)
	}
	if len(c.IDs.Leaves) != 0 {
		return protocol.NodeID(c.IDs.Leaves[0])
	}
	return protocol.NodeID(c.IDs.Relay + 1)
}

// HubSettings are defaults, persisted operator changes override them.
func (c *Config) HubSettings() role.HubSettings {
	s := role.HubSettings{
		PollIntervalSec: uint32(c.Hub.PollIntervalSec),
		SensorPollSec:   make(map[protocol.ValueID]uint32, len(c.Hub.SensorPollSec)),
		SensorPower:     make(map[protocol.ValueID]protocol.Power),
	}
	for name, sec := range c.Hub.SensorPollSec {
		if v, ok := protocol.ParseValueID(name); ok {
			s.SensorPollSec[v] = uint32(sec)
		}
	}
	return s
}

// RoleConfig assembles variant settings; leaf sensor is opened by caller.
func (c *Config) RoleConfig(s sensor.Sensor) role.Config {
	return role.Config{
		Kind: c.Kind(),
		Hub:  c.HubSettings(),
		Relay: role.RelayConfig{
			Target: c.RelayTarget(),
			Keys: map[input.Key]uint32{
				input.Key1: uint32(c.Relay.Key1IntervalSec),
				input.Key2: uint32(c.Relay.Key2IntervalSec),
			},
		},
		Leaf: role.LeafConfig{
			Sensor:         s,
			KeyIntervalSec: uint32(c.Leaf.KeyIntervalSec),
			Autostart:      c.Leaf.Autostart,
		},
	}
}

func (c *Config) Keymap() map[uint16]input.Key {
	return map[uint16]input.Key{
		uint16(c.Input.DevInputEvent.Key1Code): input.Key1,
		uint16(c.Input.DevInputEvent.Key2Code): input.Key2,
	}
}

func (c *Config) Debounce() time.Duration {
	return helpers.IntMillisecondDefault(c.Input.Gpio.DebounceMs, 50*time.Millisecond)
}

func (c *Config) LogRotate() log2.RotateConfig {
	return log2.RotateConfig{
		Path:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
		Compress:   c.Log.Compress,
	}
}

func (c *Config) LogLevel() log2.Level {
	if c.Log.Debug {
		return log2.LDebug
	}
	return log2.LInfo
}
