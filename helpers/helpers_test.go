package helpers

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/alive/v2"
)

func TestFoldErrors(t *testing.T) {
	t.Parallel()
	assert.NoError(t, FoldErrors(nil))
	assert.NoError(t, FoldErrors([]error{nil, nil}))
	err := FoldErrors([]error{fmt.Errorf("node.id missing"), nil, fmt.Errorf("ids.relay missing")})
	require.Error(t, err)
	assert.Equal(t, "node.id missing\nids.relay missing", err.Error())
}

func TestHexSpaced(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input  []byte
		expect string
	}{
		{nil, ""},
		{[]byte{0x00}, "00"},
		{[]byte{0x00, 0x16, 0x01, 0x0a, 0x00, 0x00, 0x00, 0x01}, "00 16 01 0a 00 00 00 01"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.expect, func(t *testing.T) {
			assert.Equal(t, c.expect, HexSpaced(c.input))
			if len(c.input) != 0 {
				assert.Equal(t, c.input, MustHex(c.expect))
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()
	b := Backoff{Min: 100 * time.Millisecond, Max: time.Second, K: 2}
	assert.Equal(t, time.Duration(0), b.DelayBefore())
	b.Failure()
	d1 := b.DelayBefore()
	assert.True(t, d1 > 0 && d1 <= 100*time.Millisecond, "d1=%v", d1)
	for i := 0; i < 10; i++ {
		b.Failure()
	}
	assert.True(t, b.DelayBefore() <= time.Second)
	b.Reset()
	assert.True(t, b.DelayBefore() <= 100*time.Millisecond)
}

func TestIntSecondDefault(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 7*time.Second, IntSecondDefault(0, 7*time.Second))
	assert.Equal(t, 3*time.Second, IntSecondDefault(3, 7*time.Second))
	assert.Equal(t, uint64(5000), IntervalMillis(5))
	assert.Equal(t, 20*time.Millisecond, IntMillisecondDefault(20, time.Second))
	assert.Equal(t, time.Second, IntMillisecondDefault(-1, time.Second))
}

func TestAliveSub(t *testing.T) {
	t.Parallel()
	root, leaf := alive.NewAlive(), alive.NewAlive()
	done := make(chan struct{})
	go func() {
		AliveSub(root, leaf)
		close(done)
	}()
	root.Stop()
	<-done
	assert.False(t, leaf.IsRunning())

	// stopped leaf releases without touching root
	root, leaf = alive.NewAlive(), alive.NewAlive()
	leaf.Stop()
	AliveSub(root, leaf)
	assert.True(t, root.IsRunning())
}
