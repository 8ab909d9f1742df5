package main

import (
	"context"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/meshnode/cmd/meshnode/subcmd"
	"github.com/temoto/meshnode/helpers/cli"
	"github.com/temoto/meshnode/internal/app"
	"github.com/temoto/meshnode/internal/config"
	"github.com/temoto/meshnode/internal/shell"
	"github.com/temoto/meshnode/log2"
)

var runMod = subcmd.Mod{Name: "run", Usage: "node in configured role (default)", Main: runMain}

func runMain(ctx context.Context, cfg *config.Config, args []string) error {
	log := log2.ContextValueLogger(ctx)
	a := app.New(log)
	if err := a.Init(cfg, nil); err != nil {
		a.Close()
		return errors.Annotate(err, "init")
	}
	ctx = app.ContextWithApp(ctx, a)
	stopOnSignal(log, a.Stop)

	a.Start()
	subcmd.SdNotify(log, daemon.SdNotifyReady)
	log.Infof("role=%s id=%d running", cfg.Kind(), cfg.RoleIDs().Self)

	if a.Shell != nil && cfg.Hub.Shell {
		go shellLoop(ctx, log, string(cfg.Kind()), a.Shell, a.Alive.StopChan())
	}
	a.Wait()
	log.Infof("stopped")
	return nil
}

// shellLoop input end does not stop node, only signal does.
func shellLoop(ctx context.Context, log *log2.Log, tag string, sh *shell.Shell, stop <-chan struct{}) {
	exec := func(line string) { sh.Exec(ctx, line) }
	if err := cli.MainLoop(tag, stop, exec, sh.Complete); err != nil {
		log.Errorf("shell err=%v", err)
	}
	log.Debugf("shell input closed")
}
