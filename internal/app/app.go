// Package app assembles one mesh node from config: transport, timers,
// role, event loop, key input, persistence, uplink and operator shell.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	gpio "github.com/temoto/gpio-cdev-go"
	"github.com/temoto/meshnode/hardware/input"
	"github.com/temoto/meshnode/hardware/sensor"
	"github.com/temoto/meshnode/helpers"
	"github.com/temoto/meshnode/internal/config"
	"github.com/temoto/meshnode/internal/meshbus"
	"github.com/temoto/meshnode/internal/node"
	"github.com/temoto/meshnode/internal/persist"
	"github.com/temoto/meshnode/internal/role"
	"github.com/temoto/meshnode/internal/shell"
	"github.com/temoto/meshnode/internal/timer"
	"github.com/temoto/meshnode/internal/uplink"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/mesh"
)

const ContextKey = "run/app"

// Attacher connects node inbound path to a mesh transport, returns send side.
type Attacher func(self mesh.Address, deliver meshbus.DeliverFunc) (mesh.Stack, error)

// LoopAttacher puts node on in-process bus.
func LoopAttacher(loop *meshbus.Loop) Attacher {
	return func(self mesh.Address, deliver meshbus.DeliverFunc) (mesh.Stack, error) {
		return loop.Attach(self, deliver), nil
	}
}

type App struct {
	Alive  *alive.Alive
	Config *config.Config
	Log    *log2.Log
	Node   *node.Node
	Timers *timer.Host
	Role   role.Role
	Input  *input.Dispatch
	Uplink *uplink.Uplink
	Store  *persist.HubStore
	Shell  *shell.Shell

	sources []input.Source
	closers []func()
}

func New(log *log2.Log) *App {
	return &App{
		Alive: alive.NewAlive(),
		Log:   log,
	}
}

func ContextWithApp(ctx context.Context, a *App) context.Context {
	return context.WithValue(ctx, ContextKey, a)
}

func GetApp(ctx context.Context) *App {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if a, ok := v.(*App); ok {
		return a
	}
	panic(fmt.Sprintf("context['%s'] expected type *App actual=%#v", ContextKey, v))
}

// Init builds everything but starts nothing that talks to the role.
// attach=nil picks transport from config.
// If Init fails, call Close to release what was opened.
func (self *App) Init(cfg *config.Config, attach Attacher) error {
	self.Config = cfg
	kind := cfg.Kind()
	ids := cfg.RoleIDs()
	mapper := cfg.Mapper()
	self.Log.Infof("init role=%s id=%d address=%s", kind, ids.Self, mapper.ToAddress(ids.Self))

	self.Node = node.New(self.Log.Prefixed("node: "), self.Alive, cfg.Node.QueueLength)
	self.Timers = timer.NewHost(self.Node, self.Log)
	self.addCloser(self.Timers.StopAll)

	if attach == nil {
		attach = self.configAttacher()
	}
	stack, err := attach(mapper.ToAddress(ids.Self), self.Node.Deliver)
	if err != nil {
		return errors.Annotate(err, "mesh stack")
	}

	var s sensor.Sensor
	if kind == role.KindLeaf {
		if s, err = sensor.Open(cfg.Leaf.Sensor, self.Log); err != nil {
			return errors.Annotate(err, "leaf sensor")
		}
		if c, ok := s.(io.Closer); ok {
			self.addCloser(func() { _ = c.Close() })
		}
	}

	rc := cfg.RoleConfig(s)
	if kind == role.KindHub {
		self.Store, err = persist.OpenHubStore(cfg.Hub.PersistDir, rc.Hub, self.Log)
		if err != nil {
			return errors.Annotate(err, "hub settings")
		}
		rc.Hub = self.Store.Settings()
	}

	self.Role, err = role.New(rc, role.Env{
		Log:    self.Log,
		Stack:  stack,
		Mapper: mapper,
		Timers: self.Timers,
		IDs:    ids,
	})
	if err != nil {
		return errors.Annotate(err, "role")
	}
	self.Node.Bind(self.Role)

	if hub, ok := self.Role.(*role.Hub); ok {
		if err = self.initHub(hub); err != nil {
			return err
		}
	}
	return errors.Annotate(self.initInput(), "input")
}

func (self *App) configAttacher() Attacher {
	cfg := self.Config
	switch cfg.Mesh.Driver {
	case config.MeshMQTT:
		return func(addr mesh.Address, deliver meshbus.DeliverFunc) (mesh.Stack, error) {
			m := meshbus.NewMQTT(cfg.Mesh.MQTT, addr, deliver, self.Log.Prefixed("mesh: "))
			m.Start()
			self.addCloser(m.Stop)
			return m, nil
		}
	}
	// standalone loop bus is only useful with `sim`, still valid for smoke test
	return LoopAttacher(meshbus.NewLoop(self.Log))
}

func (self *App) initHub(hub *role.Hub) error {
	self.Store.Bind(hub)
	self.Shell = shell.New(self.Node, os.Stdout, self.Log)

	// uplink log is cloned so its debug switch stays local
	self.Uplink = uplink.New()
	if err := self.Uplink.Init(self.Log.Clone(log2.LInfo).Prefixed("uplink: "), self.Config.Uplink, self.Config.RoleIDs().Self); err != nil {
		return errors.Annotate(err, "uplink")
	}
	self.addCloser(self.Uplink.Close)
	if self.Uplink.Enabled() {
		hub.AddObserver(self.Uplink)
		self.Shell.AddStatus("uplink", func() string {
			pushed, sent, retried, dropped := self.Uplink.Stat()
			return fmt.Sprintf("pushed=%d sent=%d retried=%d dropped=%d last_send=%s",
				pushed, sent, retried, dropped, self.Uplink.LastSend().Format("15:04:05"))
		})
	}
	return nil
}

func (self *App) initInput() error {
	cfg := &self.Config.Input
	if cfg.Gpio.Enable {
		chip, err := gpio.Open(cfg.Gpio.Chip, "meshnode")
		if err != nil {
			return errors.Annotatef(err, "gpio chip=%s", cfg.Gpio.Chip)
		}
		self.addCloser(func() { _ = chip.Close() })
		lines := []struct {
			line int
			key  input.Key
		}{{cfg.Gpio.Key1Line, input.Key1}, {cfg.Gpio.Key2Line, input.Key2}}
		for _, l := range lines {
			if l.line < 0 {
				continue
			}
			src, err := input.NewGpioSource(chip, uint32(l.line), l.key, self.Config.Debounce())
			if err != nil {
				return err
			}
			self.addCloser(func() { _ = src.Close() })
			self.sources = append(self.sources, src)
		}
	}
	if cfg.DevInputEvent.Enable {
		src, err := input.NewDevInputEventSource(cfg.DevInputEvent.Device, self.Config.Keymap())
		if err != nil {
			return errors.Annotatef(err, "device=%s", cfg.DevInputEvent.Device)
		}
		self.addCloser(func() { _ = src.Close() })
		self.sources = append(self.sources, src)
	}
	self.Input = input.NewDispatch(self.Log.Prefixed("input: "), self.Alive.StopChan())
	self.Input.SubscribeFunc("node", func(e input.Event) {
		if !e.Up {
			self.Node.Key(e.Key)
		}
	}, nil)
	return nil
}

func (self *App) addCloser(f func()) { self.closers = append(self.closers, f) }

// Start runs event loop and key dispatch in background.
func (self *App) Start() {
	go self.Node.Run()
	if self.Alive.Add(1) {
		go func() {
			defer self.Alive.Done()
			self.Input.Run(self.sources)
		}()
	}
}

// Stop is safe to call many times and from signal handler.
func (self *App) Stop() { self.Alive.Stop() }

// Wait for Stop, then release resources in reverse order.
func (self *App) Wait() {
	self.Alive.Wait()
	self.Close()
}

func (self *App) Close() {
	for i := len(self.closers) - 1; i >= 0; i-- {
		self.closers[i]()
	}
	self.closers = nil
}

// StopWith stops a when root stops, for sim nodes sharing one lifetime.
func (self *App) StopWith(root *alive.Alive) {
	go helpers.AliveSub(root, self.Alive)
}
