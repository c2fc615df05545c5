package transport

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ReconnectPolicy implements spec.md §4.3's initiator retry policy:
// exponential backoff starting at 1 second, doubling to a configurable
// cap (default 30s), with ±20% jitter. A successful logon resets it.
type ReconnectPolicy struct {
	b *backoff.ExponentialBackOff
}

// NewReconnectPolicy returns a policy starting at initial and capped at max.
func NewReconnectPolicy(initial, max time.Duration) *ReconnectPolicy {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.Reset()
	return &ReconnectPolicy{b: b}
}

// Next returns the delay before the next connection attempt.
func (p *ReconnectPolicy) Next() time.Duration {
	return p.b.NextBackOff()
}

// Reset restores the policy to its initial interval, called after a
// successful logon per spec.md §4.3.
func (p *ReconnectPolicy) Reset() {
	p.b.Reset()
}
