package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/errors"
	"github.com/temoto/meshnode/cmd/meshnode/subcmd"
	"github.com/temoto/meshnode/internal/config"
	"github.com/temoto/meshnode/log2"
)

var log = log2.NewStderr(log2.LDebug)

var modules = []subcmd.Mod{
	runMod,
	simMod,
	frameMod,
}

func main() {
	flagset := flag.NewFlagSet("meshnode", flag.ContinueOnError)
	flagConfig := flagset.String("config", "meshnode.hcl", "")
	flagset.Usage = func() {
		fmt.Fprintf(flagset.Output(), "Usage: meshnode [-config=file.hcl] [command] [args]\nCommands:\n")
		for _, m := range modules {
			fmt.Fprintf(flagset.Output(), "  %-6s %s\n", m.Name, m.Usage)
		}
		flagset.PrintDefaults()
	}
	if err := flagset.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return
		}
		log.Fatal(err)
	}

	logFlags := log2.LInteractiveFlags
	if subcmd.SdNotify(log, "start") {
		// we're under systemd, assume systemd journal logging, remove timestamp
		logFlags = log2.LServiceFlags
	}
	log.SetFlags(logFlags)

	command := flagset.Arg(0)
	if command == "" {
		command = runMod.Name
	}
	mod, err := subcmd.Parse(command, modules)
	if err != nil {
		flagset.Usage()
		log.Fatal(err)
	}

	var cfg *config.Config
	if !mod.NoConfig {
		cfg = config.MustRead(log, config.NewOsFullReader(), *flagConfig)
		log = configLog(log, cfg, logFlags)
	}

	ctx := log2.ContextWithLogger(context.Background(), log)
	log.Debugf("command=%s config=%s", mod.Name, *flagConfig)
	if err := mod.Main(ctx, cfg, flagset.Args()[min(1, flagset.NArg()):]); err != nil {
		log.Fatalf("%s: %s", mod.Name, errors.ErrorStack(err))
	}
}

// configLog applies config level and optional rotated file, keeping flags.
func configLog(log *log2.Log, cfg *config.Config, flags int) *log2.Log {
	if cfg.Log.File == "" {
		log.SetLevel(cfg.LogLevel())
		return log
	}
	log = log2.NewRotate(cfg.LogRotate(), cfg.LogLevel())
	log.SetFlags(flags)
	return log
}

// stopOnSignal calls stop once on SIGINT or SIGTERM.
func stopOnSignal(log *log2.Log, stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Infof("signal=%s, stopping", sig)
		stop()
	}()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
