package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/meshnode/hardware/input"
	"github.com/temoto/meshnode/internal/role"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/mesh"
	"github.com/temoto/meshnode/protocol"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(testing.TB, *Config)
		expectErr string
	}
	cases := []Case{
		{"hub-defaults", `ids { relay = 22 }`, func(t testing.TB, c *Config) {
			assert.Equal(t, role.KindHub, c.Kind())
			assert.Equal(t, role.IDs{Self: 0, Hub: 0, Relay: 22}, c.RoleIDs())
			assert.Equal(t, mesh.DefaultBase, c.Mapper().Base)
			assert.Equal(t, MeshLoop, c.Mesh.Driver)
			assert.Equal(t, uint32(role.DefaultPollIntervalSec), c.HubSettings().PollIntervalSec)
			assert.Equal(t, log2.LInfo, c.LogLevel())
		}, ""},

		{"relay", `
node { id = 22 role = "relay" address_base = 0x0200 }
ids { relay = 22 leaves = [35, 36] }
relay { key2_interval_sec = 20 }
log { debug = true }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, role.KindRelay, c.Kind())
				assert.Equal(t, mesh.Address(0x0200), c.Mapper().Base)
				assert.Equal(t, protocol.NodeID(35), c.RelayTarget())
				rc := c.RoleConfig(nil).Relay
				assert.Equal(t, uint32(3), rc.Keys[input.Key1])
				assert.Equal(t, uint32(20), rc.Keys[input.Key2])
				assert.Equal(t, log2.LDebug, c.LogLevel())
			}, ""},

		{"leaf", `
node { id = 35 role = "leaf" }
ids { relay = 22 }
leaf {
	sensor { kind = "light" driver = "fixed" initial = 120 }
	key_interval_sec = 7
	autostart = true
}`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, "light", c.Leaf.Sensor.Kind)
				assert.Equal(t, 120, c.Leaf.Sensor.Initial)
				lc := c.RoleConfig(nil).Leaf
				assert.Equal(t, uint32(7), lc.KeyIntervalSec)
				assert.True(t, lc.Autostart)
			}, ""},

		{"hub-sensor-poll", `
ids { relay = 22 }
hub { poll_interval_sec = 9 sensor_poll_sec { temp = 4 light = 8 } }`,
			func(t testing.TB, c *Config) {
				s := c.HubSettings()
				assert.Equal(t, uint32(9), s.PollIntervalSec)
				assert.Equal(t, uint32(4), s.SensorPollSec[protocol.ValueTemperature])
				assert.Equal(t, uint32(8), s.SensorPollSec[protocol.ValueLight])
			}, ""},

		{"input", `
ids { relay = 22 }
input {
	gpio { enable = true key1_line = 17 debounce_ms = 20 }
	dev_input_event { enable = true device = "/dev/input/event3" key1_code = 59 }
}`,
			func(t testing.TB, c *Config) {
				assert.True(t, c.Input.Gpio.Enable)
				assert.Equal(t, 17, c.Input.Gpio.Key1Line)
				assert.Equal(t, unset, c.Input.Gpio.Key2Line)
				assert.Equal(t, "20ms", c.Debounce().String())
				assert.Equal(t, input.Key1, c.Keymap()[59])
				assert.Equal(t, input.Key2, c.Keymap()[3])
			}, ""},

		{"mqtt", `
ids { relay = 22 }
mesh { driver = "mqtt" mqtt { broker = "tcp://localhost:1883" topic_prefix = "m" } }
uplink { enable = true broker = "tcp://cloud:1883" queue_path = "/tmp/q" }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, "tcp://localhost:1883", c.Mesh.MQTT.BrokerURL)
				assert.Equal(t, "m", c.Mesh.MQTT.TopicPrefix)
				assert.True(t, c.Uplink.Enabled)
				assert.Equal(t, "/tmp/q", c.Uplink.QueuePath)
			}, ""},

		{"syntax", `node {`, nil, "config unmarshal source=test"},
		{"relay-missing", ``, nil, "ids.relay=-1 must be 0..255"},
		{"bad-role", `node { role = "gateway" } ids { relay = 22 }`, nil, `role="gateway" not valid`},
		{"relay-id-mismatch", `node { id = 23 role = "relay" } ids { relay = 22 }`, nil,
			"relay node.id=23 differs from ids.relay=22"},
		{"leaf-no-sensor", `node { id = 35 role = "leaf" } ids { relay = 22 }`, nil, `leaf.sensor: sensor kind="" not valid`},
		{"mesh-driver", `ids { relay = 22 } mesh { driver = "ble" }`, nil, `mesh.driver="ble" not supported`},
		{"uplink-on-relay", `
node { id = 22 role = "relay" }
ids { relay = 22 }
uplink { enable = true queue_path = "/tmp/q" }`, nil, "uplink enabled on role=relay"},
		{"relay-target-hub", `
node { id = 22 role = "relay" }
ids { relay = 22 }
relay { target = 0 }`, nil, "relay.target=0 is hub or relay"},
		{"relay-target-self", `
node { id = 22 role = "relay" }
ids { relay = 22 }
relay { target = 22 }`, nil, "relay.target=22 is hub or relay"},
		{"relay-target-wrap", `
node { id = 255 role = "relay" }
ids { relay = 255 }`, nil, "relay.target unset and ids.relay=255 has no next id"},
		{"relay-target-next-is-hub", `
node { id = 22 role = "relay" }
ids { hub = 23 relay = 22 }`, nil, "relay.target=23 is hub or relay"},
		{"i2c-temp", `
node { id = 35 role = "leaf" }
ids { relay = 22 }
leaf { sensor { kind = "temp" driver = "i2c" } }`, nil, "sensor driver=i2c kind=temp not supported"},
		{"negative-intervals", `
ids { relay = 22 }
hub { sensor_poll_sec { temp = -1 } }
relay { key1_interval_sec = -3 key2_interval_sec = -4 }
leaf { key_interval_sec = -5 }`, nil, "hub.sensor_poll_sec.temp=-1 must be >= 0"},
		{"fold", `
node { role = "leaf" }
ids { relay = 0 }
hub { poll_interval_sec = 0 }`, nil, "ids.relay equals ids.hub=0"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			log := log2.NewTest(t, log2.LDebug)
			fs := NewMockFullReader(map[string]string{"test": c.input})
			cfg, err := Read(log, fs, "test")
			if c.expectErr == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.expectErr)
				return
			}
			if c.check != nil {
				c.check(t, cfg)
			}
		})
	}
}

func TestReadInclude(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	fs := NewMockFullReader(map[string]string{
		"main":  `include "local" {} include "extra" { optional = true } ids { relay = 22 } hub { poll_interval_sec = 2 }`,
		"local": `hub { poll_interval_sec = 6 }`,
	})
	c, err := Read(log, fs, "main")
	require.NoError(t, err)
	assert.Equal(t, 6, c.Hub.PollIntervalSec)

	fs.Map["local"] = `include "main" {}`
	_, err = Read(log, fs, "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config include loop")

	fs.Map["main"] = `include "absent" {} ids { relay = 22 }`
	_, err = Read(log, fs, "main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config required name=absent")
}

func TestReadOsFile(t *testing.T) {
	t.Parallel()
	dir, err := ioutil.TempDir("", "meshnode-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "main.hcl"),
		[]byte(`include "ids.hcl" {}`), 0600))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "ids.hcl"),
		[]byte(`ids { relay = 40 }`), 0600))

	log := log2.NewTest(t, log2.LDebug)
	c, err := Read(log, NewOsFullReader(), filepath.Join(dir, "main.hcl"))
	require.NoError(t, err)
	assert.Equal(t, 40, c.IDs.Relay)
}

func TestValidateNegativeSeconds(t *testing.T) {
	t.Parallel()
	c := New()
	c.IDs.Relay = 22
	c.Hub.SensorPollSec = map[string]int{"light": -2}
	c.Relay.Key1IntervalSec = -3
	c.Relay.Key2IntervalSec = -4
	c.Leaf.KeyIntervalSec = -5
	err := c.Validate()
	require.Error(t, err)
	for _, s := range []string{
		"hub.sensor_poll_sec.light=-2 must be >= 0",
		"relay.key1_interval_sec=-3 must be >= 0",
		"relay.key2_interval_sec=-4 must be >= 0",
		"leaf.key_interval_sec=-5 must be >= 0",
	} {
		assert.Contains(t, err.Error(), s)
	}
}
