package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReconnectPolicyGrowsAndCaps(t *testing.T) {
	p := NewReconnectPolicy(time.Second, 4*time.Second)

	var last time.Duration
	for i := 0; i < 20; i++ {
		d := p.Next()
		require.Greater(t, d, time.Duration(0))
		require.LessOrEqual(t, d, 5*time.Second, "should stay within cap plus jitter headroom")
		if i > 0 && i <= 2 {
			// 1s, 2s, 4s intervals with ±20% jitter never overlap
			require.Greater(t, d, last, "should grow until the cap")
		}
		last = d
	}
	_ = last
}

func TestReconnectPolicyResetReturnsToInitial(t *testing.T) {
	p := NewReconnectPolicy(time.Second, 30*time.Second)
	for i := 0; i < 5; i++ {
		p.Next()
	}
	p.Reset()
	d := p.Next()
	require.InDelta(t, float64(time.Second), float64(d), float64(400*time.Millisecond))
}
