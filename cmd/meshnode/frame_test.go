package main

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/meshnode/protocol"
)

func TestDescribeFrame(t *testing.T) {
	t.Parallel()

	type Case struct {
		name   string
		args   []string
		expect string
		check  func(error) bool
	}
	cases := []Case{
		{"start", []string{"00 16 01 05 00 00 00 01"},
			"len=8 [00 16 01 05 00 00 00 01]\nsrc=0 dst=22 func=start poll=5 power=awake", nil},
		{"telemetry", []string{"1600010300000000022c010000"},
			"len=13 [16 00 01 03 00 00 00 00 02 2c 01 00 00]\nsrc=22 dst=0 func=start poll=3 light=300", nil},
		{"declared-short", []string{"2316", "2"}, "len=2 [23 16]\nsrc=35 dst=22", nil},
		{"truncated", []string{"23"}, "", protocol.IsTruncated},
		{"declared-long", []string{"2316", "7"}, "", protocol.IsTruncated},
		{"bad-hex", []string{"zz"}, "", errors.IsNotValid},
		{"no-args", nil, "", errors.IsNotValid},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			s, err := describeFrame(c.args)
			if c.check != nil {
				require.Error(t, err)
				assert.True(t, c.check(err), err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.expect, s)
		})
	}
}
