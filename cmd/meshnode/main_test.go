package main

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/meshnode/cmd/meshnode/subcmd"
	"github.com/temoto/meshnode/internal/config"
	"github.com/temoto/meshnode/log2"
)

func TestModules(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"run", "sim", "frame"} {
		m, err := subcmd.Parse(name, modules)
		require.NoError(t, err, name)
		assert.NotEmpty(t, m.Usage, name)
		assert.NotNil(t, m.Main, name)
	}
}

func TestConfigLogFile(t *testing.T) {
	t.Parallel()
	dir, err := ioutil.TempDir("", "meshnode-log")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	type Case struct {
		name   string
		flags  int
		expect *regexp.Regexp
	}
	cases := []Case{
		// systemd: no timestamp
		{"service", log2.LServiceFlags, regexp.MustCompile(`^\w+\.go:\d+: hello\n$`)},
		{"interactive", log2.LInteractiveFlags, regexp.MustCompile(`^\d\d:\d\d:\d\d\.\d{6} \w+\.go:\d+: hello\n$`)},
	}
	for _, c := range cases {
		cfg := config.New()
		cfg.Log.File = filepath.Join(dir, c.name+".log")
		base := log2.NewTest(t, log2.LDebug)
		log := configLog(base, cfg, c.flags)
		require.True(t, log != base, c.name)
		log.Info("hello")
		b, err := ioutil.ReadFile(cfg.Log.File)
		require.NoError(t, err, c.name)
		assert.Regexp(t, c.expect, string(b), c.name)
	}
}

func TestConfigLogLevel(t *testing.T) {
	t.Parallel()
	cfg := config.New()
	cfg.Log.Debug = true
	base := log2.NewTest(t, log2.LError)
	log := configLog(base, cfg, log2.LServiceFlags)
	assert.True(t, log == base)
	assert.Equal(t, log2.LDebug, log.Level())
}
