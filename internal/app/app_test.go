package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/meshnode/internal/config"
	"github.com/temoto/meshnode/internal/meshbus"
	"github.com/temoto/meshnode/internal/role"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/protocol"
)

func testConfig(t testing.TB, text string) *config.Config {
	fs := config.NewMockFullReader(map[string]string{"test.hcl": text})
	cfg, err := config.Read(log2.NewTest(t, log2.LDebug), fs, "test.hcl")
	require.NoError(t, err)
	return cfg
}

type collector struct {
	mu sync.Mutex
	ts []role.Telemetry
}

func (c *collector) OnTelemetry(t role.Telemetry) {
	c.mu.Lock()
	c.ts = append(c.ts, t)
	c.mu.Unlock()
}

func (c *collector) values() map[protocol.ValueID]uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := make(map[protocol.ValueID]uint32)
	for _, t := range c.ts {
		m[t.ValueID] = t.Value
	}
	return m
}

func TestAppRoles(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	bus := meshbus.NewLoop(log)

	type Case struct {
		name   string
		config string
		kind   role.Kind
		shell  bool
	}
	cases := []Case{
		{"hub", "ids { relay = 1 }", role.KindHub, true},
		{"relay", "node { role = \"relay\" id = 1 }\nids { relay = 1 }", role.KindRelay, false},
		{"leaf", "node { role = \"leaf\" id = 2 }\nids { relay = 1 }\nleaf { sensor { kind = \"light\" initial = 7 } }", role.KindLeaf, false},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			a := New(log)
			require.NoError(t, a.Init(testConfig(t, c.config), LoopAttacher(bus)))
			defer a.Close()
			assert.Equal(t, c.kind, a.Role.Context().Kind)
			assert.Equal(t, c.shell, a.Shell != nil)
			assert.NotNil(t, a.Input)
		})
	}
	assert.Len(t, bus.Addresses(), 3)
}

func TestAppInitError(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	cfg := testConfig(t, "node { role = \"leaf\" id = 2 }\nids { relay = 1 }\nleaf { sensor { kind = \"light\" driver = \"laser\" } }")
	a := New(log)
	err := a.Init(cfg, LoopAttacher(meshbus.NewLoop(log)))
	a.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leaf sensor")
}

func TestAppContext(t *testing.T) {
	t.Parallel()
	a := New(log2.NewTest(t, log2.LDebug))
	ctx := ContextWithApp(context.Background(), a)
	assert.Equal(t, a, GetApp(ctx))
	assert.Panics(t, func() { GetApp(context.Background()) })
}

func TestSim(t *testing.T) {
	t.Parallel()
	// timer goroutines may log dropped ticks at debug level after Wait
	log := log2.NewTest(t, log2.LInfo)
	cfg := testConfig(t, `
ids { relay = 1 leaves = [2, 3] }
hub { poll_interval_sec = 1 persist_dir = "" }
leaf { key_interval_sec = 1 }
`)
	sim, err := NewSim(cfg, log)
	require.NoError(t, err)
	require.Len(t, sim.Nodes, 4)
	assert.Len(t, sim.Bus.Addresses(), 4)

	hub := sim.Hub.Role.(*role.Hub)
	c := &collector{}
	hub.AddObserver(c)
	sim.Start()
	defer sim.Wait()
	defer sim.Stop()

	out, err := sim.Hub.Shell.Run(context.Background(), "datatx set start")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	require.Eventually(t, func() bool { return len(c.values()) == 2 }, 5*time.Second, 50*time.Millisecond)
	assert.Equal(t, map[protocol.ValueID]uint32{
		protocol.ValueTemperature: SimTemperature,
		protocol.ValueLight:       SimLight,
	}, c.values())

	status, err := sim.Hub.Shell.Run(context.Background(), "status")
	require.NoError(t, err)
	assert.Contains(t, status, "hub id=0 state=streaming interval=1s")
}

func TestSimConfigError(t *testing.T) {
	t.Parallel()
	log := log2.NewTest(t, log2.LDebug)
	cfg := config.New()
	cfg.IDs.Relay = 1
	cfg.IDs.Leaves = []int{0}
	_, err := NewSim(cfg, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ids.leaves contains hub or relay id=0")
}
