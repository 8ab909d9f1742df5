package main

import (
	"context"

	"github.com/juju/errors"
	"github.com/temoto/meshnode/cmd/meshnode/subcmd"
	"github.com/temoto/meshnode/internal/app"
	"github.com/temoto/meshnode/internal/config"
	"github.com/temoto/meshnode/log2"
)

var simMod = subcmd.Mod{Name: "sim", Usage: "hub, relay and leaves in one process, shell on hub", Main: simMain}

func simMain(ctx context.Context, cfg *config.Config, args []string) error {
	log := log2.ContextValueLogger(ctx)
	sim, err := app.NewSim(cfg, log)
	if err != nil {
		return errors.Annotate(err, "sim init")
	}
	ctx = app.ContextWithApp(ctx, sim.Hub)
	stopOnSignal(log, sim.Stop)

	sim.Start()
	log.Infof("sim running nodes=%d bus=%v", len(sim.Nodes), sim.Bus.Addresses())
	go shellLoop(ctx, log, "sim", sim.Hub.Shell, sim.Alive.StopChan())
	sim.Wait()
	return nil
}
