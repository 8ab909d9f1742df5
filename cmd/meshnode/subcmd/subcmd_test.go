package subcmd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/meshnode/internal/config"
)

func TestParse(t *testing.T) {
	t.Parallel()
	noop := func(context.Context, *config.Config, []string) error { return nil }
	mods := []Mod{{Name: "run", Main: noop}, {Name: "frame", Main: noop, NoConfig: true}}

	m, err := Parse("frame", mods)
	require.NoError(t, err)
	assert.Equal(t, "frame", m.Name)
	assert.True(t, m.NoConfig)

	_, err = Parse("", mods)
	assert.EqualError(t, err, "empty command")
	_, err = Parse("fly", mods)
	assert.EqualError(t, err, "unknown command='fly'")

	assert.Panics(t, func() { _, _ = Parse("x", []Mod{{Main: noop}}) })
}
